// Package replication implements the peer connection lifecycle, message
// framing, loop suppression, and snapshot exchange described in spec.md
// §4.6. It depends only on the transport abstraction and a small Handler
// callback interface the façade implements, so it has no knowledge of
// storage, merge, or the vector index directly.
package replication

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nodeweave/peerdb/internal/transport"
)

// Handler is the façade surface the fabric calls back into for every
// accepted inbound message. Implementations must not re-enter the fabric
// synchronously from within these calls without care — Broadcast is safe
// to call from a Handler method since it never blocks on the handler
// itself.
type Handler interface {
	HandlePut(node map[string]any)
	HandleLegacyPut(id string, data map[string]any)
	HandleDelete(id string)
	// ServeSnapshot is called to serve a sync_request: it must invoke send
	// once per currently stored record, each as a "put" message.
	ServeSnapshot(send func(node map[string]any))
}

// Fabric owns the live connection set and the self-origin id used to drop
// echoed messages. One Fabric instance backs one façade.
type Fabric struct {
	mu      sync.Mutex
	conns   map[string]*transport.Connection
	originID string
	handler  Handler
	log      *logrus.Entry
}

func New(originID string, handler Handler, log *logrus.Entry) *Fabric {
	return &Fabric{
		conns:    make(map[string]*transport.Connection),
		originID: originID,
		handler:  handler,
		log:      log,
	}
}

// Accept registers conn in the fabric's connection map and starts its
// receive loop. Used both for inbound (server-accepted) and outbound
// (dialed) connections once they reach the OPEN state.
func (f *Fabric) Accept(ctx context.Context, conn *transport.Connection, sendSyncRequestOnOpen bool) {
	f.mu.Lock()
	f.conns[conn.ID] = conn
	f.mu.Unlock()

	if sendSyncRequestOnOpen {
		_ = conn.Send(transport.Message{Type: transport.TypeSyncRequest, OriginID: f.originID})
	}

	go f.receiveLoop(ctx, conn)
}

func (f *Fabric) receiveLoop(ctx context.Context, conn *transport.Connection) {
	defer f.drop(conn.ID)

	for {
		msg, err := conn.Receive(ctx)
		if err != nil {
			if f.log != nil {
				f.log.WithFields(logrus.Fields{"conn_id": conn.ID, "error": err}).Debug("connection closed")
			}
			return
		}
		f.handle(conn, msg)
	}
}

func (f *Fabric) handle(source *transport.Connection, msg transport.Message) {
	if msg.OriginID == f.originID {
		return // drop self-origin echo
	}

	switch msg.Type {
	case transport.TypePut:
		if msg.Node != nil {
			f.handler.HandlePut(msg.Node)
		} else {
			f.handler.HandleLegacyPut(msg.ID, msg.Data)
		}
		f.rebroadcastExcluding(source.ID, msg)
	case transport.TypeDelete:
		f.handler.HandleDelete(msg.ID)
		f.rebroadcastExcluding(source.ID, msg)
	case transport.TypeSyncRequest:
		f.serveSnapshotTo(source)
	default:
		if f.log != nil {
			f.log.WithField("type", msg.Type).Warn("unknown message type")
		}
	}
}

func (f *Fabric) serveSnapshotTo(dest *transport.Connection) {
	f.handler.ServeSnapshot(func(node map[string]any) {
		err := dest.Send(transport.Message{Type: transport.TypePut, OriginID: f.originID, Node: node})
		if err != nil && f.log != nil {
			f.log.WithField("conn_id", dest.ID).WithError(err).Warn("snapshot send failed")
		}
	})
}

// BroadcastPut sends a put message carrying node to every connected peer.
func (f *Fabric) BroadcastPut(node map[string]any) {
	f.broadcast(transport.Message{Type: transport.TypePut, OriginID: f.originID, Node: node})
}

// BroadcastDelete sends a delete message for id to every connected peer.
func (f *Fabric) BroadcastDelete(id string) {
	f.broadcast(transport.Message{Type: transport.TypeDelete, OriginID: f.originID, ID: id})
}

func (f *Fabric) broadcast(msg transport.Message) {
	f.rebroadcastExcluding("", msg)
}

// rebroadcastExcluding sends msg to every connection except excludeID
// (spec.md §4.6: "re-broadcast excludes the connection the message
// arrived on"). excludeID == "" means send to everyone, used for locally
// originated writes which have no source connection to exclude.
func (f *Fabric) rebroadcastExcluding(excludeID string, msg transport.Message) {
	f.mu.Lock()
	targets := make([]*transport.Connection, 0, len(f.conns))
	for id, c := range f.conns {
		if id == excludeID {
			continue
		}
		targets = append(targets, c)
	}
	f.mu.Unlock()

	for _, c := range targets {
		if err := c.Send(msg); err != nil && f.log != nil {
			// Send failures are logged and ignored — they must not
			// interrupt broadcast to the remaining peers (spec.md §4.6).
			f.log.WithField("conn_id", c.ID).WithError(err).Warn("broadcast send failed")
		}
	}
}

func (f *Fabric) drop(connID string) {
	f.mu.Lock()
	delete(f.conns, connID)
	f.mu.Unlock()
}

// PeerCount reports how many connections are currently open.
func (f *Fabric) PeerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

// Close asks every connection to close and clears the connection map.
// Idempotent.
func (f *Fabric) Close() error {
	f.mu.Lock()
	conns := make([]*transport.Connection, 0, len(f.conns))
	for _, c := range f.conns {
		conns = append(conns, c)
	}
	f.conns = make(map[string]*transport.Connection)
	f.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	return nil
}
