package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nodeweave/peerdb/internal/record"
	"github.com/nodeweave/peerdb/internal/rules"
	"github.com/nodeweave/peerdb/internal/value"
)

func TestRuleActionWritesDerivedField(t *testing.T) {
	d := newTestDB(t)

	d.AddRule(rules.Rule{
		Name: "tag-adults",
		Type: "Person",
		Predicate: func(rec *record.Record) bool {
			age, ok := rec.Data["age"]
			return ok && age.Kind() == value.KindNumber && age.AsNumber() >= 18
		},
		Action: func(ctx rules.Context, rec *record.Record) {
			_ = ctx.Put(rec.ID, map[string]any{"adult": true})
		},
	})

	require.NoError(t, d.Put("p1", map[string]any{"type": "Person", "age": 30}))

	rec, ok, err := d.Get("p1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, rec.Data["adult"].AsBool())
}

func TestRuleActionDoesNotRecurseForever(t *testing.T) {
	d := newTestDB(t)

	d.AddRule(rules.Rule{
		Name: "self-touch",
		Type: "Counter",
		Predicate: func(rec *record.Record) bool { return true },
		Action: func(ctx rules.Context, rec *record.Record) {
			_ = ctx.Put(rec.ID, map[string]any{"touched": true})
		},
	})

	done := make(chan struct{})
	go func() {
		_ = d.Put("c1", map[string]any{"type": "Counter"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("rule action appears to have recursed indefinitely")
	}
}

func TestRemoveRuleStopsFutureEvaluation(t *testing.T) {
	d := newTestDB(t)

	d.AddRule(rules.Rule{
		Name:      "always-tag",
		Type:      "Thing",
		Predicate: func(rec *record.Record) bool { return true },
		Action: func(ctx rules.Context, rec *record.Record) {
			_ = ctx.Put(rec.ID, map[string]any{"tagged": true})
		},
	})
	d.RemoveRule("always-tag")

	require.NoError(t, d.Put("t1", map[string]any{"type": "Thing"}))

	rec, ok, err := d.Get("t1")
	require.NoError(t, err)
	require.True(t, ok)
	_, hasTag := rec.Data["tagged"]
	require.False(t, hasTag)
}
