package tree

import "github.com/starford/outline/internal/models"

// appendPosition is the slot after the last active child.
func appendPosition(max int, ok bool) int {
	if !ok {
		return 0
	}
	return max + 1
}

// beforeSlot frees the anchor's own position by pushing it and every later
// sibling up by one.
func beforeSlot(anchor models.TreeEdge) (Range, int) {
	return Range{ParentID: anchor.ParentID, From: anchor.Position, Inclusive: true}, anchor.Position
}

// afterSlot frees the position right after the anchor, leaving the anchor
// and everything before it in place.
func afterSlot(anchor models.TreeEdge) (Range, int) {
	return Range{ParentID: anchor.ParentID, From: anchor.Position}, anchor.Position + 1
}
