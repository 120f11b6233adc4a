package db

import (
	"context"
	"fmt"
	"time"

	"github.com/nodeweave/peerdb/internal/config"
	"github.com/nodeweave/peerdb/internal/dberr"
	"github.com/nodeweave/peerdb/internal/record"
	"github.com/nodeweave/peerdb/internal/transport"
	"github.com/nodeweave/peerdb/internal/transport/dhtswarm"
	"github.com/nodeweave/peerdb/internal/transport/relay"
	"github.com/nodeweave/peerdb/internal/transport/wsserver"
)

const dialAttemptTimeout = 5 * time.Second

// Serve starts the built-in server transport (wsserver) listening on
// port. Inbound connections send no unsolicited sync_request; only the
// dialing side does, per spec.md §4.6's "On OPEN (outbound dial), send a
// sync_request once".
func (d *DB) Serve(ctx context.Context, port int) error {
	d.mu.Lock()
	if err := d.requireReady(); err != nil {
		d.mu.Unlock()
		return err
	}
	ws := wsserver.New(port)
	d.wsTransport = ws
	fabric := d.fabric
	d.mu.Unlock()

	go func() {
		err := ws.Listen(ctx, func(conn *transport.Connection) {
			fabric.Accept(ctx, conn, false)
		})
		if err != nil {
			d.log.WithError(err).Warn("server transport stopped")
		}
	}()
	return nil
}

// Connect dials address through the transport chain (the built-in server
// transport first, then the relay transport if that dial fails), giving
// each attempt its own timeout, and sends a sync_request once the
// connection opens (spec.md §4.6).
func (d *DB) Connect(address string) error {
	d.mu.Lock()
	if err := d.requireReady(); err != nil {
		d.mu.Unlock()
		return err
	}
	fabric := d.fabric
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), dialAttemptTimeout)
	defer cancel()

	ws := wsserver.New(0)
	conn, err := ws.Dial(ctx, address)
	if err != nil {
		relayCtx, relayCancel := context.WithTimeout(context.Background(), dialAttemptTimeout)
		defer relayCancel()
		relayTransport := relay.New()
		conn, err = relayTransport.Dial(relayCtx, address)
		if err != nil {
			return fmt.Errorf("%w: %v", dberr.ErrTransportFailure, err)
		}
	}

	fabric.Accept(context.Background(), conn, true)
	return nil
}

// EnableSync starts the DHT-discovery transport on the given 32-byte hex
// sync key. Key validation rejects anything not matching
// /^[0-9a-f]{64}$/ (spec.md §4.4/§4.6).
func (d *DB) EnableSync(key string) error {
	if !config.ValidSyncKey(key) {
		return fmt.Errorf("%w: sync key must be 64 lowercase hex characters", dberr.ErrInvalidSyncKey)
	}

	d.mu.Lock()
	if err := d.requireReady(); err != nil {
		d.mu.Unlock()
		return err
	}
	if d.dhtSwarm != nil {
		d.mu.Unlock()
		_ = d.DisableSync()
		d.mu.Lock()
	}
	fabric := d.fabric
	d.mu.Unlock()

	swarm, err := dhtswarm.Join(context.Background(), key, func(conn *transport.Connection) {
		fabric.Accept(context.Background(), conn, false)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", dberr.ErrTransportFailure, err)
	}

	d.mu.Lock()
	d.dhtSwarm = swarm
	d.mu.Unlock()
	return nil
}

// DisableSync tears down the DHT-discovery transport, if running.
func (d *DB) DisableSync() error {
	d.mu.Lock()
	swarm := d.dhtSwarm
	d.dhtSwarm = nil
	d.mu.Unlock()

	if swarm == nil {
		return nil
	}
	return swarm.Close()
}

// Stats reports a snapshot of peer counts and node counts by type,
// updating the prometheus gauges in the same call (SPEC_FULL.md §4.4).
type Stats struct {
	PeersConnected int
	NodesTotal     int
	NodesByType    map[string]int
}

func (d *DB) GetStats() (Stats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.requireReady(); err != nil {
		return Stats{}, err
	}

	byType := make(map[string]int)
	total := 0
	err := d.store.ListNodes(func(rec *record.Record) bool {
		total++
		if rec.Type != "" {
			byType[rec.Type]++
		}
		return true
	})
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %v", dberr.ErrStorageRead, err)
	}

	d.metrics.Observe(total, byType)

	return Stats{
		PeersConnected: d.fabric.PeerCount(),
		NodesTotal:     total,
		NodesByType:    byType,
	}, nil
}
