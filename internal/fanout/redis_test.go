package fanout

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/starford/outline/internal/memstore"
	"github.com/starford/outline/internal/testutil"
	"github.com/starford/outline/internal/tree"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestEncode(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := tree.Change{Kind: tree.ChangeEdgeMoved, EdgeID: "e1", ParentID: "root", Position: 3}

	data, err := Encode("node-a", c, at)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m.Instance != "node-a" || m.Change != c || !m.SentAt.Equal(at) {
		t.Errorf("message = %+v", m)
	}
}

func TestNewRedis_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// Port 1 is reserved; nothing listens there.
	if _, err := NewRedis(ctx, "127.0.0.1:1", "outline", "test", discard); err == nil {
		t.Fatal("expected error for unreachable redis")
	}
}

func TestPublishChange_Delivers(t *testing.T) {
	sent := make(chan []byte, 1)
	r := newRedis(newClient("127.0.0.1:1"), "outline", "node-a", discard, func(_ context.Context, p []byte) error {
		sent <- p
		return nil
	})
	defer r.Close()

	c := tree.Change{Kind: tree.ChangeParentReordered, ParentID: "root"}
	r.PublishChange(context.Background(), c)

	select {
	case p := <-sent:
		var m Message
		if err := json.Unmarshal(p, &m); err != nil {
			t.Fatal(err)
		}
		if m.Instance != "node-a" || m.Change != c {
			t.Errorf("message = %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for publish")
	}
}

func TestPublishChange_DropsWhenSenderStuck(t *testing.T) {
	release := make(chan struct{})
	r := newRedis(newClient("127.0.0.1:1"), "outline", "node-a", discard, func(ctx context.Context, _ []byte) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	defer r.Close()
	defer close(release)

	start := time.Now()
	for i := 0; i < queueSize*2; i++ {
		r.PublishChange(context.Background(), tree.Change{Kind: tree.ChangeEdgeMoved, EdgeID: "e", Position: i})
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("PublishChange blocked for %v with a stuck sender", elapsed)
	}
}

// silentListener accepts connections and never answers.
func silentListener(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	var conns []net.Conn
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			conns = append(conns, c)
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		<-done
		for _, c := range conns {
			c.Close()
		}
	})
	return ln.Addr().String()
}

func TestMoveNotBlockedByUnresponsiveRedis(t *testing.T) {
	r := newRedis(newClient(silentListener(t)), "outline", "node-a", discard, nil)
	defer r.Close()

	s := memstore.New()
	testutil.Insert(t, s,
		testutil.Edge("A", "P", 0),
		testutil.Edge("N", "Q", 0),
	)
	engine := tree.New(s, tree.WithLogger(discard), tree.WithPublisher(r))

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := engine.MoveBefore(context.Background(), "N", "A"); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("moves took %v with an unresponsive redis", elapsed)
	}
}
