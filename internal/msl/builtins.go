package msl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pmukeshreddy/rlm-engine/internal/errs"
)

// builtinFunc is a free function callable from MSL source, e.g. `len(x)`.
type builtinFunc func(args []Value) (Value, error)

// builtinFuncs is the complete, fixed set of free functions a program may
// call. Anything not in this map and not a user `def` is a sandbox
// violation (evalCall in interpreter.go) — an allow-list, not a
// blacklist, so new host capabilities can't leak in by omission.
var builtinFuncs = map[string]builtinFunc{
	"len":       builtinLen,
	"range":     builtinRange,
	"enumerate": builtinEnumerate,
	"min":       builtinMin,
	"max":       builtinMax,
	"sum":       builtinSum,
	"sorted":    builtinSorted,
	"str":       builtinStr,
	"int":       builtinInt,
	"float":     builtinFloat,
	"bool":      builtinBool,
	"list":      builtinList,
	"dict":      builtinDict,
}

func argErr(name string, want int, got int) error {
	return errs.New(errs.KindProgramRuntimeError, fmt.Sprintf("%s takes %d argument(s), got %d", name, want, got))
}

func builtinLen(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, argErr("len", 1, len(args))
	}
	switch v := args[0].(type) {
	case String:
		return Int(len([]rune(string(v)))), nil
	case *List:
		return Int(len(v.Items)), nil
	case *Dict:
		return Int(v.Len()), nil
	default:
		return nil, errs.New(errs.KindProgramRuntimeError, fmt.Sprintf("object of type %s has no len()", TypeName(v)))
	}
}

func builtinRange(args []Value) (Value, error) {
	var start, stop, step int64 = 0, 0, 1
	switch len(args) {
	case 1:
		n, ok := args[0].(Int)
		if !ok {
			return nil, errs.New(errs.KindProgramRuntimeError, "range() arguments must be int")
		}
		stop = int64(n)
	case 2:
		s, ok1 := args[0].(Int)
		e, ok2 := args[1].(Int)
		if !ok1 || !ok2 {
			return nil, errs.New(errs.KindProgramRuntimeError, "range() arguments must be int")
		}
		start, stop = int64(s), int64(e)
	case 3:
		s, ok1 := args[0].(Int)
		e, ok2 := args[1].(Int)
		st, ok3 := args[2].(Int)
		if !ok1 || !ok2 || !ok3 {
			return nil, errs.New(errs.KindProgramRuntimeError, "range() arguments must be int")
		}
		start, stop, step = int64(s), int64(e), int64(st)
		if step == 0 {
			return nil, errs.New(errs.KindProgramRuntimeError, "range() step cannot be zero")
		}
	default:
		return nil, errs.New(errs.KindProgramRuntimeError, fmt.Sprintf("range() takes 1 to 3 arguments, got %d", len(args)))
	}
	var items []Value
	if step > 0 {
		for n := start; n < stop; n += step {
			items = append(items, Int(n))
		}
	} else {
		for n := start; n > stop; n += step {
			items = append(items, Int(n))
		}
	}
	return &List{Items: items}, nil
}

func builtinEnumerate(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, argErr("enumerate", 1, len(args))
	}
	items, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(items))
	for idx, item := range items {
		out[idx] = &List{Items: []Value{Int(idx), item}}
	}
	return &List{Items: out}, nil
}

func builtinMin(args []Value) (Value, error) {
	items, err := flattenForReduce("min", args)
	if err != nil {
		return nil, err
	}
	best := items[0]
	for _, v := range items[1:] {
		less, err := Less(v, best)
		if err != nil {
			return nil, errs.New(errs.KindProgramRuntimeError, err.Error())
		}
		if less {
			best = v
		}
	}
	return best, nil
}

func builtinMax(args []Value) (Value, error) {
	items, err := flattenForReduce("max", args)
	if err != nil {
		return nil, err
	}
	best := items[0]
	for _, v := range items[1:] {
		less, err := Less(best, v)
		if err != nil {
			return nil, errs.New(errs.KindProgramRuntimeError, err.Error())
		}
		if less {
			best = v
		}
	}
	return best, nil
}

func flattenForReduce(name string, args []Value) ([]Value, error) {
	var items []Value
	if len(args) == 1 {
		lst, err := iterate(args[0])
		if err != nil {
			return nil, err
		}
		items = lst
	} else {
		items = args
	}
	if len(items) == 0 {
		return nil, errs.New(errs.KindProgramRuntimeError, fmt.Sprintf("%s() arg is an empty sequence", name))
	}
	return items, nil
}

func builtinSum(args []Value) (Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, errs.New(errs.KindProgramRuntimeError, "sum() takes 1 or 2 arguments")
	}
	items, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	var acc Value = Int(0)
	if len(args) == 2 {
		acc = args[1]
	}
	for _, v := range items {
		acc, err = arithValues("+", acc, v)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func builtinSorted(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, argErr("sorted", 1, len(args))
	}
	items, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	sorted, err := SortValues(items)
	if err != nil {
		return nil, errs.New(errs.KindProgramRuntimeError, err.Error())
	}
	return &List{Items: sorted}, nil
}

func builtinStr(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, argErr("str", 1, len(args))
	}
	return String(ToString(args[0])), nil
}

func builtinInt(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, argErr("int", 1, len(args))
	}
	switch v := args[0].(type) {
	case Int:
		return v, nil
	case Float:
		return Int(int64(v)), nil
	case Bool:
		if v {
			return Int(1), nil
		}
		return Int(0), nil
	case String:
		n, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
		if err != nil {
			return nil, errs.New(errs.KindProgramRuntimeError, fmt.Sprintf("invalid literal for int(): %q", string(v)))
		}
		return Int(n), nil
	default:
		return nil, errs.New(errs.KindProgramRuntimeError, fmt.Sprintf("int() argument cannot be %s", TypeName(v)))
	}
}

func builtinFloat(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, argErr("float", 1, len(args))
	}
	switch v := args[0].(type) {
	case Float:
		return v, nil
	case Int:
		return Float(v), nil
	case Bool:
		if v {
			return Float(1), nil
		}
		return Float(0), nil
	case String:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
		if err != nil {
			return nil, errs.New(errs.KindProgramRuntimeError, fmt.Sprintf("invalid literal for float(): %q", string(v)))
		}
		return Float(f), nil
	default:
		return nil, errs.New(errs.KindProgramRuntimeError, fmt.Sprintf("float() argument cannot be %s", TypeName(v)))
	}
}

func builtinBool(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, argErr("bool", 1, len(args))
	}
	return Bool(Truthy(args[0])), nil
}

func builtinList(args []Value) (Value, error) {
	if len(args) == 0 {
		return &List{}, nil
	}
	if len(args) != 1 {
		return nil, argErr("list", 1, len(args))
	}
	items, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(items))
	copy(out, items)
	return &List{Items: out}, nil
}

func builtinDict(args []Value) (Value, error) {
	if len(args) == 0 {
		return NewDict(), nil
	}
	if len(args) != 1 {
		return nil, argErr("dict", 1, len(args))
	}
	src, ok := args[0].(*Dict)
	if !ok {
		return nil, errs.New(errs.KindProgramRuntimeError, "dict() argument must be a dict")
	}
	out := NewDict()
	for _, k := range src.Keys() {
		v, _ := src.Get(k)
		out.Set(k, v)
	}
	return out, nil
}

// callMethod dispatches `recv.method(args...)`, the only allow-listed
// method-call surface MSL exposes (string, list and dict methods). A method not
// in this table is a sandbox violation, the same as an unknown free
// function.
func callMethod(recv Value, method string, args []Value) (Value, error) {
	switch r := recv.(type) {
	case String:
		return callStringMethod(r, method, args)
	case *List:
		return callListMethod(r, method, args)
	case *Dict:
		return callDictMethod(r, method, args)
	default:
		return nil, errs.New(errs.KindSandboxViolation, fmt.Sprintf("%s has no method %q", TypeName(recv), method))
	}
}

func callStringMethod(s String, method string, args []Value) (Value, error) {
	str := string(s)
	switch method {
	case "split":
		sep := " "
		if len(args) == 1 {
			a, ok := args[0].(String)
			if !ok {
				return nil, errs.New(errs.KindProgramRuntimeError, "split() argument must be a string")
			}
			sep = string(a)
		}
		var parts []string
		if len(args) == 0 {
			parts = strings.Fields(str)
		} else {
			parts = strings.Split(str, sep)
		}
		out := make([]Value, len(parts))
		for i, p := range parts {
			out[i] = String(p)
		}
		return &List{Items: out}, nil
	case "join":
		if len(args) != 1 {
			return nil, argErr("join", 1, len(args))
		}
		items, err := iterate(args[0])
		if err != nil {
			return nil, err
		}
		parts := make([]string, len(items))
		for i, item := range items {
			sv, ok := item.(String)
			if !ok {
				return nil, errs.New(errs.KindProgramRuntimeError, "join() sequence item must be a string")
			}
			parts[i] = string(sv)
		}
		return String(strings.Join(parts, str)), nil
	case "strip":
		return String(strings.TrimSpace(str)), nil
	case "upper":
		return String(strings.ToUpper(str)), nil
	case "lower":
		return String(strings.ToLower(str)), nil
	case "find":
		if len(args) != 1 {
			return nil, argErr("find", 1, len(args))
		}
		sub, ok := args[0].(String)
		if !ok {
			return nil, errs.New(errs.KindProgramRuntimeError, "find() argument must be a string")
		}
		return Int(strings.Index(str, string(sub))), nil
	case "replace":
		if len(args) != 2 {
			return nil, argErr("replace", 2, len(args))
		}
		old, ok1 := args[0].(String)
		new, ok2 := args[1].(String)
		if !ok1 || !ok2 {
			return nil, errs.New(errs.KindProgramRuntimeError, "replace() arguments must be strings")
		}
		return String(strings.ReplaceAll(str, string(old), string(new))), nil
	case "startswith":
		if len(args) != 1 {
			return nil, argErr("startswith", 1, len(args))
		}
		p, ok := args[0].(String)
		if !ok {
			return nil, errs.New(errs.KindProgramRuntimeError, "startswith() argument must be a string")
		}
		return Bool(strings.HasPrefix(str, string(p))), nil
	case "endswith":
		if len(args) != 1 {
			return nil, argErr("endswith", 1, len(args))
		}
		p, ok := args[0].(String)
		if !ok {
			return nil, errs.New(errs.KindProgramRuntimeError, "endswith() argument must be a string")
		}
		return Bool(strings.HasSuffix(str, string(p))), nil
	default:
		return nil, errs.New(errs.KindSandboxViolation, fmt.Sprintf("str has no method %q", method))
	}
}

func callListMethod(l *List, method string, args []Value) (Value, error) {
	switch method {
	case "append":
		if len(args) != 1 {
			return nil, argErr("append", 1, len(args))
		}
		l.Items = append(l.Items, args[0])
		return Null{}, nil
	default:
		return nil, errs.New(errs.KindSandboxViolation, fmt.Sprintf("list has no method %q", method))
	}
}

func callDictMethod(d *Dict, method string, args []Value) (Value, error) {
	switch method {
	case "get":
		if len(args) < 1 || len(args) > 2 {
			return nil, errs.New(errs.KindProgramRuntimeError, "get() takes 1 or 2 arguments")
		}
		key, ok := args[0].(String)
		if !ok {
			return nil, errs.New(errs.KindProgramRuntimeError, "get() key must be a string")
		}
		if v, ok := d.Get(string(key)); ok {
			return v, nil
		}
		if len(args) == 2 {
			return args[1], nil
		}
		return Null{}, nil
	case "keys":
		ks := d.Keys()
		out := make([]Value, len(ks))
		for i, k := range ks {
			out[i] = String(k)
		}
		return &List{Items: out}, nil
	case "values":
		ks := d.Keys()
		out := make([]Value, len(ks))
		for i, k := range ks {
			v, _ := d.Get(k)
			out[i] = v
		}
		return &List{Items: out}, nil
	default:
		return nil, errs.New(errs.KindSandboxViolation, fmt.Sprintf("dict has no method %q", method))
	}
}
