package db

import (
	"github.com/nodeweave/peerdb/internal/record"
	"github.com/nodeweave/peerdb/internal/rules"
)

// AddRule registers r, overwriting any prior rule with the same name.
func (d *DB) AddRule(r rules.Rule) {
	d.rules.AddRule(r)
}

// RemoveRule unregisters the rule named name, if any.
func (d *DB) RemoveRule(name string) {
	d.rules.RemoveRule(name)
}

// evaluateRulesLocked runs every matching rule against rec. A rule action's
// Put re-enters applyPut with both broadcast and rule evaluation
// suppressed, which is what keeps the recursion from running forever
// (spec.md §4.5). Must be called with d.mu held — rule actions call back
// into d.applyPut, so that internal path must tolerate the lock already
// being held by using the *Locked entry point rather than Put directly.
func (d *DB) evaluateRulesLocked(rec *record.Record) {
	ctx := rules.Context{
		Put: func(id string, data map[string]any) error {
			_, err := d.applyPutLocked(id, data, putOptions{suppressBroadcast: true, suppressRules: true})
			return err
		},
		Get: func(id string) (*record.Record, bool, error) {
			return d.store.GetNode(id)
		},
	}
	d.rules.EvaluateNode(rec, ctx, func(rule string, err any) {
		d.log.WithField("rule", rule).WithField("panic", err).Error("rule action failed")
	})
}
