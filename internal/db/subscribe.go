package db

import (
	"github.com/nodeweave/peerdb/internal/record"
	"github.com/nodeweave/peerdb/internal/value"
)

// On registers cb to be called after every accepted write to id. Emission
// is deferred (spec.md §4.4: "callers must not assume synchronous
// delivery"). The returned Token unsubscribes when passed to Unsubscribe.
func (d *DB) On(id string, cb func(id string, rec map[string]any)) (Token, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.requireReady(); err != nil {
		return Token{}, err
	}

	d.nextSubToken++
	tok := d.nextSubToken
	d.subs[id] = append(d.subs[id], subscription{token: tok, id: id, fn: cb})
	return Token{value: tok}, nil
}

// OnAny registers cb to be called after every accepted write to any id.
func (d *DB) OnAny(cb func(id string, rec map[string]any)) (Token, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.requireReady(); err != nil {
		return Token{}, err
	}

	d.nextSubToken++
	tok := d.nextSubToken
	d.anySubs = append(d.anySubs, subscription{token: tok, fn: cb})
	return Token{value: tok}, nil
}

// Unsubscribe removes the subscription identified by tok, wherever it is
// registered. Unsubscribing an unknown or already-removed token is a
// no-op, not an error.
func (d *DB) Unsubscribe(tok Token) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, list := range d.subs {
		d.subs[id] = removeSub(list, tok.value)
	}
	d.anySubs = removeSub(d.anySubs, tok.value)
}

func removeSub(list []subscription, tok uint64) []subscription {
	out := list[:0]
	for _, s := range list {
		if s.token != tok {
			out = append(out, s)
		}
	}
	return out
}

// emitPutLocked schedules id-specific and any-listener callbacks for a
// successful put. Must be called with d.mu held.
func (d *DB) emitPutLocked(rec *record.Record) {
	payload := value.MappingToAny(rec.Data)
	d.dispatchLocked(rec.ID, payload)
}

// emitDeleteLocked schedules callbacks carrying a nil payload for id.
func (d *DB) emitDeleteLocked(id string) {
	d.dispatchLocked(id, nil)
}

func (d *DB) dispatchLocked(id string, payload map[string]any) {
	idSubs := append([]subscription(nil), d.subs[id]...)
	anySubs := append([]subscription(nil), d.anySubs...)

	d.scheduleEmit(func() {
		for _, s := range idSubs {
			s.fn(id, payload)
		}
		for _, s := range anySubs {
			s.fn(id, payload)
		}
	})
}
