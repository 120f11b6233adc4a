// Package transport defines the abstraction every connection-carrying
// mechanism implements, per spec.md §4.6/§9 ("abstract a Transport
// capability set"). Concrete variants live in sibling packages: wsserver
// (built-in server socket), relay (plain net.Conn stream), and dhtswarm
// (libp2p discovery + pubsub).
package transport

import "context"

// Message is the wire-level envelope exchanged between peers. Node is
// used for the "put" message with a full record payload; ID/Data are only
// populated for the legacy "put" compatibility shape, accepted on inbound
// but never produced by this module. The field is a plain map here (not
// record.Record) to keep this package free of a dependency on the record
// package — callers decode Node into whatever representation they use.
type Message struct {
	Type      string         `json:"type"`
	OriginID  string         `json:"originId"`
	Node      map[string]any `json:"node,omitempty"`
	ID        string         `json:"id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

const (
	TypePut         = "put"
	TypeDelete      = "delete"
	TypeSyncRequest = "sync_request"
)

// Connection is one peer link, in either direction. Receive is pull-based:
// callers loop on it until it returns an error, which signals the
// connection has moved to CLOSED/ERROR.
type Connection struct {
	// ID is a best-effort identifier: the remote public key hex on the
	// DHT transport, otherwise a connection index or remote address.
	ID string

	Send    func(Message) error
	Receive func(ctx context.Context) (Message, error)
	Close   func() error
}

// Transport is the capability set a concrete mechanism provides. Listen
// starts accepting inbound connections and calls onAccept for each one;
// it returns once the listener itself fails to start (not per-connection
// errors). Dial opens one outbound connection, honoring ctx's deadline as
// the per-attempt timeout spec.md §4.6 requires.
type Transport interface {
	Listen(ctx context.Context, onAccept func(*Connection)) error
	Dial(ctx context.Context, address string) (*Connection, error)
	Close() error
}
