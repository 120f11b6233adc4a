package walstore

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"

	"github.com/nodeweave/peerdb/internal/record"
)

// historyLog is a second append-only NDJSON file, never truncated, holding
// the immutable history entries keyed by (id, timestamp) described in
// spec.md §3.2/§6.2. Kept separate from the WAL so a Snapshot() (which
// truncates the WAL once current state is captured) never loses history.
type historyLog struct {
	mu   sync.Mutex
	file *os.File
}

type historyEntry struct {
	ID     string         `json:"id"`
	Record *record.Record `json:"record"`
}

func newHistoryLog(path string) (*historyLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &historyLog{file: f}, nil
}

func (h *historyLog) append(id string, rec *record.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := json.Marshal(historyEntry{ID: id, Record: rec})
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := h.file.Write(data); err != nil {
		return err
	}
	return h.file.Sync()
}

func (h *historyLog) readAll() (map[string][]*record.Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.file.Seek(0, 0); err != nil {
		return nil, err
	}

	out := make(map[string][]*record.Record)
	scanner := bufio.NewScanner(h.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e historyEntry
		if err := json.Unmarshal(line, &e); err != nil {
			continue // corrupt entry — skip, rest of iteration continues
		}
		out[e.ID] = append(out[e.ID], e.Record)
	}
	if _, err := h.file.Seek(0, 2); err != nil {
		return nil, err
	}
	return out, scanner.Err()
}

func (h *historyLog) close() error {
	return h.file.Close()
}
