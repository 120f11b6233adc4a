package replication

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nodeweave/peerdb/internal/transport"
)

type recordingHandler struct {
	puts      []map[string]any
	legacy    []struct{ id string; data map[string]any }
	deletes   []string
	snapshot  []map[string]any
}

func (h *recordingHandler) HandlePut(node map[string]any) { h.puts = append(h.puts, node) }
func (h *recordingHandler) HandleLegacyPut(id string, data map[string]any) {
	h.legacy = append(h.legacy, struct {
		id   string
		data map[string]any
	}{id, data})
}
func (h *recordingHandler) HandleDelete(id string) { h.deletes = append(h.deletes, id) }
func (h *recordingHandler) ServeSnapshot(send func(node map[string]any)) {
	for _, n := range h.snapshot {
		send(n)
	}
}

func fakeConn(id string) (*transport.Connection, chan transport.Message, *[]transport.Message) {
	inbound := make(chan transport.Message, 16)
	var sent []transport.Message
	return &transport.Connection{
		ID: id,
		Send: func(m transport.Message) error {
			sent = append(sent, m)
			return nil
		},
		Receive: func(ctx context.Context) (transport.Message, error) {
			select {
			case m := <-inbound:
				return m, nil
			case <-ctx.Done():
				return transport.Message{}, ctx.Err()
			}
		},
		Close: func() error { return nil },
	}, inbound, &sent
}

func TestFabricDropsSelfOriginMessage(t *testing.T) {
	h := &recordingHandler{}
	f := New("self", h, nil)

	conn, inbound, _ := fakeConn("c1")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.Accept(ctx, conn, false)

	inbound <- transport.Message{Type: transport.TypePut, OriginID: "self", Node: map[string]any{"id": "x"}}
	// give receiveLoop a turn
	waitForGoroutine()

	require.Empty(t, h.puts)
}

func TestFabricHandlesPutAndRebroadcastsExcludingSource(t *testing.T) {
	h := &recordingHandler{}
	f := New("self", h, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connA, inboundA, _ := fakeConn("a")
	connB, _, sentB := fakeConn("b")
	f.Accept(ctx, connA, false)
	f.Accept(ctx, connB, false)

	inboundA <- transport.Message{Type: transport.TypePut, OriginID: "peer-x", Node: map[string]any{"id": "n1"}}
	waitForGoroutine()

	require.Len(t, h.puts, 1)
	require.Len(t, *sentB, 1)
	require.Equal(t, transport.TypePut, (*sentB)[0].Type)
}

func TestFabricServesSnapshotOnSyncRequest(t *testing.T) {
	h := &recordingHandler{snapshot: []map[string]any{{"id": "s1"}, {"id": "s2"}}}
	f := New("self", h, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, inbound, sent := fakeConn("a")
	f.Accept(ctx, conn, false)

	inbound <- transport.Message{Type: transport.TypeSyncRequest, OriginID: "peer-x"}
	waitForGoroutine()

	require.Len(t, *sent, 2)
}

func TestFabricBroadcastPutReachesAllConnections(t *testing.T) {
	h := &recordingHandler{}
	f := New("self", h, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connA, _, sentA := fakeConn("a")
	connB, _, sentB := fakeConn("b")
	f.Accept(ctx, connA, false)
	f.Accept(ctx, connB, false)

	f.BroadcastPut(map[string]any{"id": "n1"})

	require.Len(t, *sentA, 1)
	require.Len(t, *sentB, 1)
}

func TestFabricDropRemovesConnectionOnClose(t *testing.T) {
	h := &recordingHandler{}
	f := New("self", h, nil)

	ctx, cancel := context.WithCancel(context.Background())
	conn, _, _ := fakeConn("a")
	f.Accept(ctx, conn, false)
	require.Equal(t, 1, f.PeerCount())

	cancel() // causes Receive to return ctx.Err(), ending receiveLoop
	waitForGoroutine()
	require.Equal(t, 0, f.PeerCount())
}

func waitForGoroutine() {
	// the fabric's receive loops run on their own goroutines; give them a
	// scheduling turn without reaching for a sleep-based fixed duration.
	for i := 0; i < 100; i++ {
		done := make(chan struct{})
		go close(done)
		<-done
	}
}
