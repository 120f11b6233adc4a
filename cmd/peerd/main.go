// cmd/peerd is the entrypoint for a single peerdb node: one process
// hosting the core façade, the built-in server transport, and (if a sync
// key is configured) DHT-based peer discovery.
//
// Example — two nodes dialing each other directly:
//
//	./peerd --port 7070 --data-dir /var/peerdb/a
//	./peerd --port 7071 --data-dir /var/peerdb/b --peers ws://127.0.0.1:7070/
//
// Example — discovery via a shared sync key instead of explicit peers:
//
//	./peerd --port 7070 --data-dir /var/peerdb/a --sync-key <64 hex chars>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nodeweave/peerdb/internal/config"
	"github.com/nodeweave/peerdb/internal/db"
	"github.com/nodeweave/peerdb/internal/store"
	"github.com/nodeweave/peerdb/internal/store/boltstore"
	"github.com/nodeweave/peerdb/internal/store/memory"
	"github.com/nodeweave/peerdb/internal/store/walstore"
)

func main() {
	// ── Flags ──────────────────────────────────────────────────────────
	envPath := flag.String("env", "", "Optional .env file path")
	peerID := flag.String("peer-id", "", "Stable peer identifier (generated if empty)")
	port := flag.Int("port", 0, "Listen port for the built-in server transport")
	dataDir := flag.String("data-dir", "", "Storage location: a directory for wal, a file path for bolt (empty means in-memory only)")
	backend := flag.String("backend", "wal", "Durable storage backend when --data-dir is set: wal or bolt")
	peers := flag.String("peers", "", "Comma-separated ws:// addresses to dial at startup")
	syncKey := flag.String("sync-key", "", "64-char hex key enabling DHT peer discovery")
	snapshotEvery := flag.Duration("snapshot-interval", 60*time.Second, "History compaction interval for snapshot-capable backends")
	flag.Parse()

	log := logrus.NewEntry(logrus.New())

	cfg, err := config.Load(*envPath, &config.Config{
		KVPath: *dataDir,
		Port:   *port,
		Peers:  splitNonEmpty(*peers),
		PeerID: *peerID,
	})
	if err != nil {
		log.WithError(err).Fatal("load configuration")
	}

	st, err := openStore(cfg.KVPath, *backend)
	if err != nil {
		log.WithError(err).Fatal("open storage backend")
	}

	instance, err := db.Open(db.Options{PeerID: cfg.PeerID, Store: st, Log: log})
	if err != nil {
		log.WithError(err).Fatal("open database")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := instance.Serve(ctx, cfg.Port); err != nil {
		log.WithError(err).Fatal("start server transport")
	}
	log.WithField("port", cfg.Port).Info("peerdb listening")

	for _, addr := range cfg.Peers {
		if err := instance.Connect(addr); err != nil {
			log.WithField("address", addr).WithError(err).Warn("failed to connect to peer")
			continue
		}
		log.WithField("address", addr).Info("connected to peer")
	}

	if *syncKey != "" {
		if err := instance.EnableSync(*syncKey); err != nil {
			log.WithError(err).Fatal("enable DHT sync")
		}
		log.WithField("peer_id", instance.GetActorID()).Info("DHT discovery enabled")
	}

	go runSnapshotLoop(ctx, instance, log, *snapshotEvery)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	if err := instance.Snapshot(); err != nil {
		log.WithError(err).Warn("final snapshot failed")
	}
	if err := instance.Close(); err != nil {
		log.WithError(err).Warn("close database")
	}
}

func openStore(kvPath, backend string) (store.Store, error) {
	if kvPath == "" {
		return memory.New(), nil
	}
	switch backend {
	case "bolt":
		return boltstore.New(kvPath)
	case "wal":
		return walstore.New(kvPath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want wal or bolt)", backend)
	}
}

func runSnapshotLoop(ctx context.Context, instance *db.DB, log *logrus.Entry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := instance.Snapshot(); err != nil {
				log.WithError(err).Warn("periodic snapshot failed")
			}
		}
	}
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
