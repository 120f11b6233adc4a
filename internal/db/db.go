// Package db is the database façade: the single entry point that
// orchestrates storage, merge, the vector index, the rule engine, and the
// replication fabric behind one serialisation primitive, per spec.md
// §4.4/§5. Every exported method is safe to call from multiple
// goroutines; internally they all funnel through mu.
package db

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nodeweave/peerdb/internal/dberr"
	"github.com/nodeweave/peerdb/internal/metrics"
	"github.com/nodeweave/peerdb/internal/record"
	"github.com/nodeweave/peerdb/internal/replication"
	"github.com/nodeweave/peerdb/internal/rules"
	"github.com/nodeweave/peerdb/internal/store"
	"github.com/nodeweave/peerdb/internal/transport/dhtswarm"
	"github.com/nodeweave/peerdb/internal/transport/relay"
	"github.com/nodeweave/peerdb/internal/transport/wsserver"
	"github.com/nodeweave/peerdb/internal/vectorindex"
)

type state int

const (
	stateNotReady state = iota
	stateReady
	stateClosed
)

// subscription is one registered (id-specific or any-listener) callback.
type subscription struct {
	token uint64
	id    string // empty for an any-listener
	fn    func(id string, rec map[string]any)
}

// Token is the opaque handle returned by On/OnAny, safe to pass
// across a language-binding boundary since it carries no raw pointer.
type Token struct {
	value uint64
}

// DB is one running peer instance.
type DB struct {
	mu    sync.Mutex
	state state

	peerID string
	store  store.Store
	index  *vectorindex.Index
	rules  *rules.Engine
	fabric *replication.Fabric
	metrics *metrics.Set
	log    *logrus.Entry

	subs         map[string][]subscription
	anySubs      []subscription
	nextSubToken uint64

	emitCh   chan func()
	emitDone chan struct{}

	wsTransport    *wsserver.Transport
	relayTransport *relay.Transport
	dhtSwarm       *dhtswarm.Swarm
}

// Options configures a new DB instance.
type Options struct {
	PeerID string
	Store  store.Store
	Log    *logrus.Entry
}

// Open constructs a ready façade: it rebuilds the vector index by
// streaming every stored record with a non-empty vector (spec.md §4.3:
// "rebuilt at startup"), then starts the subscription emission worker.
func Open(opts Options) (*DB, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("db: Options.Store is required")
	}
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}

	d := &DB{
		state:   stateNotReady,
		peerID:  opts.PeerID,
		store:   opts.Store,
		index:   vectorindex.New(),
		rules:   rules.New(),
		metrics: metrics.New(),
		log:     log.WithField("peer_id", opts.PeerID),
		subs:    make(map[string][]subscription),
		emitCh:  make(chan func(), 256),
	}
	d.fabric = replication.New(opts.PeerID, d, d.log)

	if err := d.rebuildIndex(); err != nil {
		return nil, fmt.Errorf("db: rebuild vector index: %w", err)
	}

	d.emitDone = make(chan struct{})
	go d.emitWorker()

	d.state = stateReady
	return d, nil
}

func (d *DB) rebuildIndex() error {
	return d.store.ListNodes(func(rec *record.Record) bool {
		if rec.HasNonEmptyVector() {
			d.index.Upsert(rec.ID, rec.Vector)
		}
		return true
	})
}

// GetActorID returns this peer's stable identifier (spec.md §6.4).
func (d *DB) GetActorID() string {
	return d.peerID
}

// MetricsRegistry exposes the private prometheus registry stats() feeds,
// per SPEC_FULL.md §4.4: the core never serves /metrics itself.
func (d *DB) MetricsRegistry() *metrics.Set {
	return d.metrics
}

func (d *DB) requireReady() error {
	switch d.state {
	case stateReady:
		return nil
	case stateClosed:
		return fmt.Errorf("%w: db is closed", dberr.ErrNotReady)
	default:
		return fmt.Errorf("%w: db is not ready", dberr.ErrNotReady)
	}
}

// emitWorker drains the emission queue so put/delete can return before
// subscription callbacks run (spec.md §9's "deferred post-task queue").
func (d *DB) emitWorker() {
	defer close(d.emitDone)
	for fn := range d.emitCh {
		func() {
			defer func() {
				if p := recover(); p != nil {
					d.log.WithField("panic", p).Error("subscription callback panicked")
				}
			}()
			fn()
		}()
	}
}

func (d *DB) scheduleEmit(fn func()) {
	select {
	case d.emitCh <- fn:
	default:
		// Queue saturated: run on its own goroutine rather than drop the
		// notification outright or block the caller indefinitely.
		go fn()
	}
}

// Close terminates all transports, clears subscription registries, and
// closes storage. Idempotent (spec.md §4.4).
func (d *DB) Close() error {
	d.mu.Lock()
	if d.state == stateClosed {
		d.mu.Unlock()
		return nil
	}
	d.state = stateClosed
	fabric := d.fabric
	ws := d.wsTransport
	relayT := d.relayTransport
	dhtSwarm := d.dhtSwarm
	st := d.store
	d.subs = make(map[string][]subscription)
	d.anySubs = nil
	d.mu.Unlock()

	if fabric != nil {
		_ = fabric.Close()
	}
	if ws != nil {
		_ = ws.Close()
	}
	if relayT != nil {
		_ = relayT.Close()
	}
	if dhtSwarm != nil {
		_ = dhtSwarm.Close()
	}

	close(d.emitCh)
	<-d.emitDone

	return st.Close()
}

// Snapshot exposes a history-compaction knob for storage backends that
// support it (walstore); a no-op for backends that don't (SPEC_FULL.md §9).
func (d *DB) Snapshot() error {
	type snapshotter interface{ Snapshot() error }
	if s, ok := d.store.(snapshotter); ok {
		return s.Snapshot()
	}
	return nil
}

// now is a seam so tests can't accidentally depend on wall-clock
// ordering flakiness; production always uses time.Now().
var now = func() int64 { return time.Now().UnixNano() }
