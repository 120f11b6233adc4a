package value

import "encoding/json"

// MarshalJSON encodes a Value as the plain JSON shape it represents (not a
// tagged envelope) — a Number becomes a JSON number, a Mapping a JSON
// object, and so on. This is what lets Record.Data round-trip through the
// wire protocol and the storage backends as ordinary JSON.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(ToAny(v))
}

// UnmarshalJSON decodes plain JSON into a Value tree via Sanitize, so a
// Value read back from the wire or from disk has already had cycle/func
// sentinels and proto-key stripping applied (vacuously, since encoding/json
// never produces funcs, cycles, or Go pointers).
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = Sanitize(raw)
	return nil
}
