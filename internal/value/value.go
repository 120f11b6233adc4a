// Package value defines the tagged sum type every node payload is built
// from: Null, Bool, Number, Text, Sequence, or Mapping. Inbound JSON decodes
// into plain Go interfaces (map[string]any, []any, float64, ...); this
// package converts that loosely-typed tree into an explicit Value so the
// merge engine and sanitiser never have to type-switch on bare `any`.
package value

import "sort"

// Kind tags which alternative of Value is populated.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindText
	KindSequence
	KindMapping
)

// Value is an immutable tagged union. The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	seq  []Value
	m    map[string]Value
}

func Null() Value                  { return Value{kind: KindNull} }
func Bool(b bool) Value            { return Value{kind: KindBool, b: b} }
func Number(n float64) Value       { return Value{kind: KindNumber, n: n} }
func Text(s string) Value          { return Value{kind: KindText, s: s} }
func Sequence(vs ...Value) Value   { return Value{kind: KindSequence, seq: vs} }
func Mapping(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMapping, m: m}
}

func (v Value) Kind() Kind       { return v.kind }
func (v Value) IsNull() bool     { return v.kind == KindNull }
func (v Value) AsBool() bool     { return v.b }
func (v Value) AsNumber() float64 { return v.n }
func (v Value) AsText() string   { return v.s }
func (v Value) AsSequence() []Value {
	return v.seq
}
func (v Value) AsMapping() map[string]Value {
	return v.m
}

// Equal reports deep structural equality. Used by the merge tests'
// commutativity and idempotence checks.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.n == b.n
	case KindText:
		return a.s == b.s
	case KindSequence:
		if len(a.seq) != len(b.seq) {
			return false
		}
		for i := range a.seq {
			if !Equal(a.seq[i], b.seq[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		if len(a.m) != len(b.m) {
			return false
		}
		for k, av := range a.m {
			bv, ok := b.m[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// SortedKeys returns a Mapping's keys in deterministic order, for callers
// (encoders, tests) that need stable iteration.
func SortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToAny converts a Value back into a plain Go tree suitable for JSON
// encoding or for handing to a caller as a "sanitised shallow copy of data".
func ToAny(v Value) any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindText:
		return v.s
	case KindSequence:
		out := make([]any, len(v.seq))
		for i, e := range v.seq {
			out[i] = ToAny(e)
		}
		return out
	case KindMapping:
		out := make(map[string]any, len(v.m))
		for k, e := range v.m {
			out[k] = ToAny(e)
		}
		return out
	}
	return nil
}

// MappingToAny converts a top-level data mapping (map[string]Value, the
// shape Record.Data uses) to a plain map[string]any.
func MappingToAny(m map[string]Value) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = ToAny(v)
	}
	return out
}
