// Package boltstore is the second durable Store variant: a single
// go.etcd.io/bbolt file with two buckets, "records" and "history", in place
// of the walstore package's hand-rolled WAL-plus-snapshot files. bbolt
// already gives ACID transactions and mmap'd reads, so there's no separate
// snapshot/compaction step here — see spec.md §4.2.
//
// Bucket layout:
//
//	records: key = node id                      value = JSON record.Record
//	history: key = node id + 0x00 + 20-digit ts  value = JSON record.Record
//
// The history key embeds a zero-padded timestamp so bucket.Cursor() yields
// entries for a given id in chronological order via prefix scan.
package boltstore

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nodeweave/peerdb/internal/record"
	bolt "go.etcd.io/bbolt"
)

var (
	recordsBucket = []byte("records")
	historyBucket = []byte("history")
)

type Store struct {
	db *bolt.DB
}

func New(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltstore: open: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(recordsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(historyBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: init buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) SetNode(rec *record.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(recordsBucket).Put([]byte(rec.ID), data); err != nil {
			return err
		}
		key := historyKey(rec.ID, rec.Timestamp)
		return tx.Bucket(historyBucket).Put(key, data)
	})
}

func (s *Store) GetNode(id string) (*record.Record, bool, error) {
	var rec *record.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(recordsBucket).Get([]byte(id))
		if data == nil {
			return nil
		}
		rec = &record.Record{}
		return json.Unmarshal(data, rec)
	})
	if err != nil {
		return nil, false, err
	}
	return rec, rec != nil, nil
}

func (s *Store) DeleteNode(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(recordsBucket).Delete([]byte(id))
	})
}

func (s *Store) ListNodes(yield func(*record.Record) bool) error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(recordsBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			rec := &record.Record{}
			if err := json.Unmarshal(v, rec); err != nil {
				continue // corrupt entry — skip
			}
			if !yield(rec) {
				return nil
			}
		}
		return nil
	})
}

func (s *Store) GetNodeHistory(id string) ([]*record.Record, error) {
	prefix := append([]byte(id), 0x00)
	var out []*record.Record

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(historyBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			rec := &record.Record{}
			if err := json.Unmarshal(v, rec); err != nil {
				continue
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// historyKey embeds a zero-padded timestamp after the id so lexical byte
// order equals chronological order within a bbolt cursor scan.
func historyKey(id string, ts int64) []byte {
	return []byte(fmt.Sprintf("%s\x00%020d", id, ts))
}
