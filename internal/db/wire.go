package db

import (
	"encoding/json"
	"fmt"

	"github.com/nodeweave/peerdb/internal/record"
)

// recordToWire round-trips rec through JSON into the plain
// map[string]any shape transport.Message.Node carries, reusing
// record.Record's and value.Value's own (Un)MarshalJSON so the wire
// encoding is identical to what's stored on disk.
func recordToWire(rec *record.Record) (map[string]any, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("db: encode record for wire: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("db: decode wire record: %w", err)
	}
	return out, nil
}

func wireToRecord(node map[string]any) (*record.Record, error) {
	data, err := json.Marshal(node)
	if err != nil {
		return nil, fmt.Errorf("db: encode wire node: %w", err)
	}
	var rec record.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("db: decode record from wire: %w", err)
	}
	return &rec, nil
}
