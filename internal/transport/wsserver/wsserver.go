// Package wsserver is the built-in server-hosted transport: an
// http.Server upgrading every inbound request to a gorilla/websocket
// connection, and a client dialer for the matching outbound side. Each
// message is one send/receive event on the socket, matching spec.md
// §4.6's framing rule for the built-in transport (no NDJSON buffering
// needed — gorilla/websocket already frames messages for us).
package wsserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/nodeweave/peerdb/internal/transport"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Transport listens on a single HTTP port, upgrading every request to a
// websocket connection and handing it to the caller's onAccept.
type Transport struct {
	port     int
	server   *http.Server
	nextConn int64
}

func New(port int) *Transport {
	return &Transport{port: port}
}

func (t *Transport) Listen(ctx context.Context, onAccept func(*transport.Connection)) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		onAccept(wrap(conn, t.connID()))
	})

	t.server = &http.Server{Addr: fmt.Sprintf(":%d", t.port), Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- t.server.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		return nil
	}
}

func (t *Transport) Dial(ctx context.Context, address string) (*transport.Connection, error) {
	dialer := websocket.Dialer{}
	conn, _, err := dialer.DialContext(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("wsserver: dial %s: %w", address, err)
	}
	return wrap(conn, t.connID()), nil
}

func (t *Transport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.server.Close()
}

func (t *Transport) connID() string {
	n := atomic.AddInt64(&t.nextConn, 1)
	return fmt.Sprintf("ws-%d", n)
}

func wrap(conn *websocket.Conn, id string) *transport.Connection {
	return &transport.Connection{
		ID: id,
		Send: func(msg transport.Message) error {
			return conn.WriteJSON(msg)
		},
		Receive: func(ctx context.Context) (transport.Message, error) {
			var msg transport.Message
			_, data, err := conn.ReadMessage()
			if err != nil {
				return transport.Message{}, err
			}
			if err := json.Unmarshal(data, &msg); err != nil {
				return transport.Message{}, err
			}
			return msg, nil
		},
		Close: conn.Close,
	}
}
