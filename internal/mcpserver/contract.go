package mcpserver

// OrderingContract describes how the move tools treat sibling positions,
// so LLM consumers can predict the resulting order.
const OrderingContract = `# Outline Tree Ordering

Every note placement (tree edge) has a parent note id and an integer position.
Siblings are displayed by ascending position. Positions are sparse: gaps are
normal and are never compacted.

## Tools

- ` + "`move_to_parent`" + ` puts the edge last under the parent (max position + 1,
  or 0 when the parent has no active children). Unknown parents are accepted.
- ` + "`move_before`" + ` takes the anchor's position and pushes the anchor and every
  later active sibling up by one.
- ` + "`move_after`" + ` takes anchor position + 1 and pushes every sibling strictly
  after the anchor up by one. The anchor keeps its place.
- ` + "`set_expanded`" + ` only changes the display flag. It is not synced or audited.

## Rules

1. Deleted placements never take part in ordering and are never shifted.
2. Moves into the anchor's parent happen even when the edge used to live elsewhere.
3. A missing anchor fails the whole call; nothing is changed.
4. Moves and positions are recorded for sync; the origin of MCP calls is "mcp".
`
