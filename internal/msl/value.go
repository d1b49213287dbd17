package msl

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Value is the dynamic value representation MSL programs operate on.
// Deliberately just the JSON-compatible shapes: string, int, float, bool,
// null, list, dict, plus an internal function value that never escapes
// into `context`/`memory`/`FINAL`.
type Value interface{ valueNode() }

type (
	Null   struct{}
	Int    int64
	Float  float64
	Bool   bool
	String string
)

// List is a mutable, ordered sequence of Values.
type List struct{ Items []Value }

// Dict is an insertion-ordered string-keyed map of Values. Ordering is
// preserved for `for k in dict` and iteration built-ins so program output
// is deterministic given deterministic LM output.
type Dict struct {
	keys   []string
	values map[string]Value
}

// Function is a user-defined `def` closure.
type Function struct {
	Def   *FuncDef
	Scope *Scope
}

func (Null) valueNode()       {}
func (Int) valueNode()        {}
func (Float) valueNode()      {}
func (Bool) valueNode()       {}
func (String) valueNode()     {}
func (*List) valueNode()      {}
func (*Dict) valueNode()      {}
func (*Function) valueNode()  {}

// NewDict builds an empty, ordered Dict.
func NewDict() *Dict {
	return &Dict{values: map[string]Value{}}
}

// Set inserts or updates a key, preserving first-insertion order.
func (d *Dict) Set(key string, v Value) {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
}

// Get returns the value for key and whether it was present.
func (d *Dict) Get(key string) (Value, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Keys returns keys in insertion order.
func (d *Dict) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.keys) }

// Truthy implements MSL's truthiness rules: 0/0.0/""/empty list/empty
// dict/None/False are falsy, everything else truthy.
func Truthy(v Value) bool {
	switch vv := v.(type) {
	case Null:
		return false
	case Bool:
		return bool(vv)
	case Int:
		return vv != 0
	case Float:
		return vv != 0
	case String:
		return vv != ""
	case *List:
		return len(vv.Items) > 0
	case *Dict:
		return vv.Len() > 0
	default:
		return true
	}
}

// ToString renders v the way `str(v)` and `FINAL(v)` do: plain text for
// strings, Python-ish reprs for everything else.
func ToString(v Value) string {
	switch vv := v.(type) {
	case Null:
		return "None"
	case Bool:
		if vv {
			return "True"
		}
		return "False"
	case Int:
		return strconv.FormatInt(int64(vv), 10)
	case Float:
		return strconv.FormatFloat(float64(vv), 'g', -1, 64)
	case String:
		return string(vv)
	case *List:
		parts := make([]string, len(vv.Items))
		for i, item := range vv.Items {
			parts[i] = reprOf(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Dict:
		parts := make([]string, 0, vv.Len())
		for _, k := range vv.Keys() {
			val, _ := vv.Get(k)
			parts = append(parts, fmt.Sprintf("%q: %s", k, reprOf(val)))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Function:
		return fmt.Sprintf("<function %s>", vv.Def.Name)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func reprOf(v Value) string {
	if s, ok := v.(String); ok {
		return strconv.Quote(string(s))
	}
	return ToString(v)
}

// TypeName reports the MSL-facing type name, used in runtime error
// messages (e.g. "cannot concatenate str and int").
func TypeName(v Value) string {
	switch v.(type) {
	case Null:
		return "None"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "str"
	case *List:
		return "list"
	case *Dict:
		return "dict"
	case *Function:
		return "function"
	default:
		return "unknown"
	}
}

// Equal reports whether a and b are equal under MSL's `==`. Numeric
// values compare across int/float; all other types require identical
// dynamic type and structural equality.
func Equal(a, b Value) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
	}
	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case *List:
		bv, ok := b.(*List)
		if !ok || len(av.Items) != len(bv.Items) {
			return false
		}
		for i := range av.Items {
			if !Equal(av.Items[i], bv.Items[i]) {
				return false
			}
		}
		return true
	case *Dict:
		bv, ok := b.(*Dict)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for _, k := range av.Keys() {
			aval, _ := av.Get(k)
			bval, ok := bv.Get(k)
			if !ok || !Equal(aval, bval) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func asFloat(v Value) (float64, bool) {
	switch vv := v.(type) {
	case Int:
		return float64(vv), true
	case Float:
		return float64(vv), true
	default:
		return 0, false
	}
}

// Less implements `<` ordering for numbers and strings. Used directly by
// comparison ops and by the `sorted` built-in.
func Less(a, b Value) (bool, error) {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af < bf, nil
		}
	}
	if as, aok := a.(String); aok {
		if bs, bok := b.(String); bok {
			return as < bs, nil
		}
	}
	return false, fmt.Errorf("unorderable types: %s and %s", TypeName(a), TypeName(b))
}

// SortValues returns a new, stably sorted copy of items by Less.
func SortValues(items []Value) ([]Value, error) {
	out := make([]Value, len(items))
	copy(out, items)
	var sortErr error
	sort.SliceStable(out, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		less, err := Less(out[i], out[j])
		if err != nil {
			sortErr = err
			return false
		}
		return less
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return out, nil
}

// FromGo converts a decoded JSON value (as produced by encoding/json into
// any) into an MSL Value tree. Used to seed `memory` from
// session/execution state. Map keys are inserted in sorted order so the
// resulting Dict iterates deterministically.
func FromGo(v any) Value {
	switch vv := v.(type) {
	case nil:
		return Null{}
	case bool:
		return Bool(vv)
	case string:
		return String(vv)
	case int:
		return Int(vv)
	case int64:
		return Int(vv)
	case float64:
		return Float(vv)
	case []any:
		items := make([]Value, len(vv))
		for i, item := range vv {
			items[i] = FromGo(item)
		}
		return &List{Items: items}
	case map[string]any:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := NewDict()
		for _, k := range keys {
			d.Set(k, FromGo(vv[k]))
		}
		return d
	default:
		return String(fmt.Sprintf("%v", vv))
	}
}

// ToGo converts an MSL Value back into a plain Go value (string, int64,
// float64, bool, nil, []any, map[string]any) suitable for JSON encoding or storage
// into session memory.
func ToGo(v Value) any {
	switch vv := v.(type) {
	case Null:
		return nil
	case Bool:
		return bool(vv)
	case Int:
		return int64(vv)
	case Float:
		return float64(vv)
	case String:
		return string(vv)
	case *List:
		out := make([]any, len(vv.Items))
		for i, item := range vv.Items {
			out[i] = ToGo(item)
		}
		return out
	case *Dict:
		out := make(map[string]any, vv.Len())
		for _, k := range vv.Keys() {
			val, _ := vv.Get(k)
			out[k] = ToGo(val)
		}
		return out
	case *Function:
		return nil
	default:
		return nil
	}
}
