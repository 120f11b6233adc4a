package walstore

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"

	"github.com/nodeweave/peerdb/internal/record"
)

// WAL is an append-only, newline-delimited-JSON write-ahead log. Every
// mutation is durably recorded here, fsynced, before the in-memory map is
// updated — adapted directly from the teacher's internal/store/wal.go,
// generalized from its string Value payload to a full record.Record.
const (
	opPut    = "PUT"
	opDelete = "DELETE"
)

type walEntry struct {
	Op     string         `json:"op"`
	ID     string         `json:"id"`
	Record *record.Record `json:"record,omitempty"`
}

type WAL struct {
	mu   sync.Mutex
	file *os.File
}

func newWAL(path string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &WAL{file: f}, nil
}

// append serialises entry as JSON and fsyncs it — without the Sync call a
// crash could lose the entry even though Write returned nil.
func (w *WAL) append(entry walEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if _, err := w.file.Write(data); err != nil {
		return err
	}
	return w.file.Sync()
}

func (w *WAL) readAll() ([]walEntry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, 0); err != nil {
		return nil, err
	}

	var entries []walEntry
	scanner := bufio.NewScanner(w.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e walEntry
		if err := json.Unmarshal(line, &e); err != nil {
			// Corrupt entry — skip it and keep going (spec.md §4.2: the
			// backend may skip the offending entry during recovery).
			continue
		}
		entries = append(entries, e)
	}
	if _, err := w.file.Seek(0, 2); err != nil {
		return nil, err
	}
	return entries, scanner.Err()
}

func (w *WAL) truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Truncate(0); err != nil {
		return err
	}
	_, err := w.file.Seek(0, 0)
	return err
}

func (w *WAL) close() error {
	return w.file.Close()
}
