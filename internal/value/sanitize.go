package value

import "reflect"

// CycleSentinel and FuncSentinel are the fixed replacement strings the
// façade's payload sanitiser substitutes for unsupported input, per
// spec.md §4.4's sanitisation rules.
const (
	CycleSentinel = "[circular]"
	FuncSentinel  = "[function]"
)

// protoKeys are stripped unconditionally from incoming mappings so a
// malicious remote payload can never perturb a receiving runtime's object
// prototype — relevant when this peer interoperates with a JavaScript
// implementation of the same protocol, even though Go has no prototype
// chain of its own to corrupt.
var protoKeys = map[string]bool{
	"__proto__":   true,
	"constructor": true,
}

// Sanitize converts an arbitrary Go value (typically the result of
// json.Unmarshal into `any`, or a caller-constructed map[string]any) into a
// Value tree. Cycles are detected via a visited-set keyed on pointer
// identity threaded through the traversal; any back-reference is replaced
// with CycleSentinel. Function-typed values are replaced with
// FuncSentinel. Keys named "__proto__" or "constructor" are dropped from
// every mapping encountered.
func Sanitize(raw any) Value {
	visited := map[uintptr]bool{}
	return sanitize(raw, visited)
}

func sanitize(raw any, visited map[uintptr]bool) Value {
	if raw == nil {
		return Null()
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return Text(FuncSentinel)

	case reflect.Bool:
		return Bool(rv.Bool())

	case reflect.String:
		return Text(rv.String())

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Number(float64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Number(float64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		return Number(rv.Float())

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice {
			if rv.IsNil() {
				return Sequence()
			}
			ptr := rv.Pointer()
			if visited[ptr] {
				return Text(CycleSentinel)
			}
			visited[ptr] = true
			defer delete(visited, ptr)
		}
		out := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = sanitize(rv.Index(i).Interface(), visited)
		}
		return Sequence(out...)

	case reflect.Map:
		if rv.IsNil() {
			return Mapping(nil)
		}
		ptr := rv.Pointer()
		if visited[ptr] {
			return Text(CycleSentinel)
		}
		visited[ptr] = true
		defer delete(visited, ptr)

		out := map[string]Value{}
		iter := rv.MapRange()
		for iter.Next() {
			key, ok := iter.Key().Interface().(string)
			if !ok {
				continue // non-string keys cannot occur in a JSON-shaped payload
			}
			if protoKeys[key] {
				continue
			}
			out[key] = sanitize(iter.Value().Interface(), visited)
		}
		return Mapping(out)

	case reflect.Interface:
		return sanitize(rv.Elem().Interface(), visited)

	case reflect.Ptr:
		if rv.IsNil() {
			return Null()
		}
		ptr := rv.Pointer()
		if visited[ptr] {
			return Text(CycleSentinel)
		}
		visited[ptr] = true
		defer delete(visited, ptr)
		return sanitize(rv.Elem().Interface(), visited)

	case reflect.Struct:
		// Structs only arise from programmatic (non-JSON) callers; treat
		// fields as a mapping so sanitisation rules still apply uniformly.
		out := map[string]Value{}
		t := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() || protoKeys[f.Name] {
				continue
			}
			out[f.Name] = sanitize(rv.Field(i).Interface(), visited)
		}
		return Mapping(out)

	default:
		return Null()
	}
}
