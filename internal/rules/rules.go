// Package rules implements the reactive rule engine described in
// spec.md §3.5/§4.5: process-local match/predicate/action triples
// evaluated after every accepted write. Rules never talk to storage or
// the network directly; the façade hands each matching rule a Context
// whose Put re-enters the façade through a broadcast- and rule-suppressed
// path, which is what keeps rule-triggered writes from recursing forever.
package rules

import (
	"sync"

	"github.com/nodeweave/peerdb/internal/record"
)

// Context is the limited façade surface an action is allowed to touch.
// Put on a Context never re-triggers rule evaluation and never broadcasts
// to peers — the façade is responsible for wiring that distinction in,
// rules only see the effect.
type Context struct {
	Put func(id string, data map[string]any) error
	Get func(id string) (*record.Record, bool, error)
}

// Rule is one registered match/predicate/action triple.
type Rule struct {
	Name      string
	Type      string // empty matches every type
	Predicate func(rec *record.Record) bool
	Action    func(ctx Context, rec *record.Record)
}

func (r Rule) matches(rec *record.Record) bool {
	if r.Type != "" && rec.Type != r.Type {
		return false
	}
	if r.Predicate != nil && !r.Predicate(rec) {
		return false
	}
	return true
}

// Engine holds the registered rule set and runs it against a record after
// every accepted write.
type Engine struct {
	mu    sync.Mutex
	rules map[string]Rule
	order []string // registration order, since map iteration isn't ordered
}

func New() *Engine {
	return &Engine{rules: make(map[string]Rule)}
}

// AddRule stores rule by name, overwriting any prior rule with that name
// in place (registration order is preserved on overwrite, matching
// spec.md §4.5's "stores by name").
func (e *Engine) AddRule(r Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.rules[r.Name]; !exists {
		e.order = append(e.order, r.Name)
	}
	e.rules[r.Name] = r
}

func (e *Engine) RemoveRule(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.rules[name]; !exists {
		return
	}
	delete(e.rules, name)
	for i, n := range e.order {
		if n == name {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// EvaluateNode runs every rule whose selector matches rec, sequentially in
// registration order, each given the same ctx. A panicking action is
// recovered and logged by the caller-supplied onErr — the write that
// triggered evaluation must not be aborted by a misbehaving rule
// (spec.md §7: "errors in a rule action do not abort the underlying
// write").
func (e *Engine) EvaluateNode(rec *record.Record, ctx Context, onErr func(rule string, err any)) {
	e.mu.Lock()
	snapshot := make([]Rule, 0, len(e.order))
	for _, name := range e.order {
		snapshot = append(snapshot, e.rules[name])
	}
	e.mu.Unlock()

	for _, r := range snapshot {
		if !r.matches(rec) {
			continue
		}
		runSafely(r, ctx, rec, onErr)
	}
}

func runSafely(r Rule, ctx Context, rec *record.Record, onErr func(rule string, err any)) {
	defer func() {
		if p := recover(); p != nil && onErr != nil {
			onErr(r.Name, p)
		}
	}()
	r.Action(ctx, rec)
}
