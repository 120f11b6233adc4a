// Package relay is the plain-stream transport: any net.Conn (TCP in
// production, net.Pipe in tests) framed as newline-delimited JSON, per
// spec.md §4.6's framing rule for stream transports. The reader buffers
// partial bytes across reads, splits on '\n', and retains any trailing
// incomplete segment — bufio.Scanner already gives us exactly that.
package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/nodeweave/peerdb/internal/transport"
)

type Transport struct {
	mu       sync.Mutex
	listener net.Listener
	nextConn int64
}

func New() *Transport {
	return &Transport{}
}

func (t *Transport) Listen(ctx context.Context, onAccept func(*transport.Connection)) error {
	lc := &net.ListenConfig{}
	return t.ListenAddr(ctx, "tcp", "", onAccept, lc)
}

// ListenAddr starts a listener on network/addr, useful for tests that
// want a fixed port or a net.Pipe-free TCP loopback. Production callers
// normally use Listen.
func (t *Transport) ListenAddr(ctx context.Context, network, addr string, onAccept func(*transport.Connection), lc *net.ListenConfig) error {
	ln, err := lc.Listen(ctx, network, addr)
	if err != nil {
		return fmt.Errorf("relay: listen: %w", err)
	}

	t.mu.Lock()
	t.listener = ln
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			return nil
		}
		onAccept(t.wrap(conn))
	}
}

func (t *Transport) Dial(ctx context.Context, address string) (*transport.Connection, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("relay: dial %s: %w", address, err)
	}
	return t.wrap(conn), nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Close()
}

func (t *Transport) wrap(conn net.Conn) *transport.Connection {
	n := atomic.AddInt64(&t.nextConn, 1)
	id := fmt.Sprintf("relay-%d-%s", n, conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var writeMu sync.Mutex

	return &transport.Connection{
		ID: id,
		Send: func(msg transport.Message) error {
			writeMu.Lock()
			defer writeMu.Unlock()

			data, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			data = append(data, '\n')
			_, err = conn.Write(data)
			return err
		},
		Receive: func(ctx context.Context) (transport.Message, error) {
			// A malformed line is dropped, not treated as connection
			// failure (spec.md §4.6: "parse failures... drop the
			// offending line but continue processing subsequent lines").
			for scanner.Scan() {
				var msg transport.Message
				if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
					continue
				}
				return msg, nil
			}
			if err := scanner.Err(); err != nil {
				return transport.Message{}, err
			}
			return transport.Message{}, fmt.Errorf("relay: connection closed")
		},
		Close: conn.Close,
	}
}
