package msl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pmukeshreddy/rlm-engine/internal/errs"
)

// Host is the interpreter's sole channel out of the sandbox: the single
// `llm_query(prompt)` primitive a running program may call. Everything
// else a program can do is pure evaluation over `context`/`memory`. The
// orchestrator supplies the Host implementation that actually spawns a
// child agent-loop invocation.
type Host interface {
	LLMQuery(ctx context.Context, prompt string) (string, error)
}

// Limits bounds a single interpreter run: a step counter to catch
// runaway/infinite loops cheaply, and a wall-clock deadline checked
// periodically against ctx.
type Limits struct {
	MaxSteps int64
	Deadline time.Time
}

// DefaultLimits returns generous but finite limits for a single program
// run; the orchestrator may tighten MaxSteps for smaller resource budgets.
func DefaultLimits(deadline time.Time) Limits {
	return Limits{MaxSteps: 2_000_000, Deadline: deadline}
}

// OutcomeKind distinguishes how an interpreter run ended.
type OutcomeKind string

const (
	OutcomeFinal   OutcomeKind = "final"
	OutcomeError   OutcomeKind = "error"
	OutcomeTimeout OutcomeKind = "timeout"
)

// Outcome is the terminal result of running a program: it either calls
// FINAL(value), raises a sandbox or runtime error, or is cut off by the
// deadline/step budget without ever calling FINAL.
type Outcome struct {
	Kind       OutcomeKind
	Value      string
	ErrKind    errs.Kind
	ErrMessage string
}

// Scope is a lexical environment frame. Variable lookup walks the parent
// chain; assignment updates the nearest enclosing binding if one exists,
// otherwise defines a new binding in the current frame — ordinary
// dynamic-scripting-language semantics, no explicit global/nonlocal needed
// for a language this small.
type Scope struct {
	vars   map[string]Value
	parent *Scope
}

// NewScope creates a root scope (no parent).
func NewScope() *Scope {
	return &Scope{vars: map[string]Value{}}
}

func (s *Scope) child() *Scope {
	return &Scope{vars: map[string]Value{}, parent: s}
}

// Get looks up name, walking outward through parent scopes.
func (s *Scope) Get(name string) (Value, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Define binds name in this exact frame, shadowing any outer binding.
func (s *Scope) Define(name string, v Value) {
	s.vars[name] = v
}

// Assign updates the nearest existing binding for name, or defines it in
// this frame if no binding exists anywhere in the chain.
func (s *Scope) Assign(name string, v Value) {
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.vars[name]; ok {
			cur.vars[name] = v
			return
		}
	}
	s.vars[name] = v
}

// control-flow sentinels. Neither is an MSL-visible exception type (the
// AST has none, per ast.go) — these are purely internal Go plumbing for a
// tree-walking evaluator, never exposed across the Host boundary.
type returnSignal struct{ value Value }
type finalSignal struct{ text string }

func (*returnSignal) Error() string { return "return outside function" }
func (*finalSignal) Error() string  { return "FINAL called" }

// Interpreter evaluates one parsed Program against a Host, under Limits.
type Interpreter struct {
	host    Host
	limits  Limits
	steps   int64
	global  *Scope
}

// NewInterpreter builds an interpreter with `context`, `memory`, and the
// built-in primitives bound into a fresh global scope. memory is mutated
// in place by the program and is the caller's responsibility to persist
// back into session state after Run returns.
func NewInterpreter(host Host, limits Limits, contextValue Value, memory *Dict) *Interpreter {
	g := NewScope()
	g.Define("context", contextValue)
	g.Define("memory", memory)
	return &Interpreter{host: host, limits: limits, global: g}
}

// Run executes program to completion, returning the terminal Outcome.
// Run never panics on program errors — every MSL-level failure, however
// it originates, is reported back through Outcome instead of a raw Go
// panic escaping into the caller's goroutine.
func (i *Interpreter) Run(ctx context.Context, program *Program) Outcome {
	fscope := i.global.child()
	for _, stmt := range program.Statements {
		if err := i.checkBudget(ctx); err != nil {
			return i.outcomeFromError(err)
		}
		if err := i.execStmt(ctx, stmt, fscope); err != nil {
			return i.outcomeFromError(err)
		}
	}
	return Outcome{
		Kind:       OutcomeError,
		ErrKind:    errs.KindNoFinal,
		ErrMessage: "program completed without calling FINAL",
	}
}

func (i *Interpreter) outcomeFromError(err error) Outcome {
	var fin *finalSignal
	if errors.As(err, &fin) {
		return Outcome{Kind: OutcomeFinal, Value: fin.text}
	}
	var ret *returnSignal
	if errors.As(err, &ret) {
		return Outcome{
			Kind:       OutcomeError,
			ErrKind:    errs.KindProgramRuntimeError,
			ErrMessage: "return statement outside of a function",
		}
	}
	var sbErr *errs.Error
	if errors.As(err, &sbErr) {
		kind := sbErr.Kind
		if kind == "" {
			kind = errs.KindProgramRuntimeError
		}
		if kind == errs.KindDeadlineExceeded {
			return Outcome{Kind: OutcomeTimeout, ErrKind: kind, ErrMessage: sbErr.Message}
		}
		return Outcome{Kind: OutcomeError, ErrKind: kind, ErrMessage: sbErr.Message}
	}
	return Outcome{Kind: OutcomeError, ErrKind: errs.KindProgramRuntimeError, ErrMessage: err.Error()}
}

func (i *Interpreter) checkBudget(ctx context.Context) error {
	i.steps++
	if i.steps > i.limits.MaxSteps {
		return errs.New(errs.KindDeadlineExceeded, "program exceeded step budget")
	}
	if i.steps%2048 == 0 {
		select {
		case <-ctx.Done():
			return errs.New(errs.KindDeadlineExceeded, "execution deadline exceeded")
		default:
		}
		if !i.limits.Deadline.IsZero() && time.Now().After(i.limits.Deadline) {
			return errs.New(errs.KindDeadlineExceeded, "execution deadline exceeded")
		}
	}
	return nil
}

// ---- Statement execution ----

func (i *Interpreter) execStmt(ctx context.Context, stmt Stmt, scope *Scope) error {
	if err := i.checkBudget(ctx); err != nil {
		return err
	}
	switch s := stmt.(type) {
	case *Assign:
		val, err := i.eval(ctx, s.Value, scope)
		if err != nil {
			return err
		}
		return i.execAssignTarget(ctx, s.Target, val, scope)
	case *FuncDef:
		scope.Define(s.Name, &Function{Def: s, Scope: scope})
		return nil
	case *If:
		return i.execIf(ctx, s, scope)
	case *For:
		return i.execFor(ctx, s, scope)
	case *Return:
		var v Value = Null{}
		if s.Value != nil {
			val, err := i.eval(ctx, s.Value, scope)
			if err != nil {
				return err
			}
			v = val
		}
		return &returnSignal{value: v}
	case *ExprStmt:
		_, err := i.eval(ctx, s.X, scope)
		return err
	default:
		return errs.New(errs.KindSandboxViolation, fmt.Sprintf("unsupported statement type %T", stmt))
	}
}

func (i *Interpreter) execAssignTarget(ctx context.Context, target Expr, val Value, scope *Scope) error {
	switch t := target.(type) {
	case *Ident:
		scope.Assign(t.Name, val)
		return nil
	case *Index:
		container, err := i.eval(ctx, t.X, scope)
		if err != nil {
			return err
		}
		if t.Slice {
			return errs.New(errs.KindProgramRuntimeError, "cannot assign to a slice expression")
		}
		idx, err := i.eval(ctx, t.Index, scope)
		if err != nil {
			return err
		}
		switch c := container.(type) {
		case *List:
			n, ok := idx.(Int)
			if !ok {
				return errs.New(errs.KindProgramRuntimeError, "list index must be an int")
			}
			pos := int(n)
			if pos < 0 {
				pos += len(c.Items)
			}
			if pos < 0 || pos >= len(c.Items) {
				return errs.New(errs.KindProgramRuntimeError, "list index out of range")
			}
			c.Items[pos] = val
			return nil
		case *Dict:
			key, ok := idx.(String)
			if !ok {
				return errs.New(errs.KindProgramRuntimeError, "dict key must be a string")
			}
			c.Set(string(key), val)
			return nil
		default:
			return errs.New(errs.KindProgramRuntimeError, fmt.Sprintf("%s does not support item assignment", TypeName(container)))
		}
	default:
		return errs.New(errs.KindProgramRuntimeError, "invalid assignment target")
	}
}

func (i *Interpreter) execIf(ctx context.Context, s *If, scope *Scope) error {
	cond, err := i.eval(ctx, s.Cond, scope)
	if err != nil {
		return err
	}
	if Truthy(cond) {
		return i.execBlock(ctx, s.Then, scope)
	}
	for _, ei := range s.ElseIf {
		c, err := i.eval(ctx, ei.Cond, scope)
		if err != nil {
			return err
		}
		if Truthy(c) {
			return i.execBlock(ctx, ei.Body, scope)
		}
	}
	if s.Else != nil {
		return i.execBlock(ctx, s.Else, scope)
	}
	return nil
}

func (i *Interpreter) execFor(ctx context.Context, s *For, scope *Scope) error {
	iterable, err := i.eval(ctx, s.Iterable, scope)
	if err != nil {
		return err
	}
	items, err := iterate(iterable)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := i.checkBudget(ctx); err != nil {
			return err
		}
		loopScope := scope.child()
		loopScope.Define(s.Var, item)
		if err := i.execBlock(ctx, s.Body, loopScope); err != nil {
			return err
		}
	}
	return nil
}

func (i *Interpreter) execBlock(ctx context.Context, stmts []Stmt, scope *Scope) error {
	for _, stmt := range stmts {
		if err := i.execStmt(ctx, stmt, scope); err != nil {
			return err
		}
	}
	return nil
}

// iterate enumerates a Value's elements for `for x in v`: lists yield
// items, dicts yield keys as strings, strings yield one-character strings.
func iterate(v Value) ([]Value, error) {
	switch vv := v.(type) {
	case *List:
		return vv.Items, nil
	case *Dict:
		out := make([]Value, 0, vv.Len())
		for _, k := range vv.Keys() {
			out = append(out, String(k))
		}
		return out, nil
	case String:
		out := make([]Value, 0, len(vv))
		for _, r := range string(vv) {
			out = append(out, String(string(r)))
		}
		return out, nil
	default:
		return nil, errs.New(errs.KindProgramRuntimeError, fmt.Sprintf("%s is not iterable", TypeName(v)))
	}
}

// ---- Expression evaluation ----

func (i *Interpreter) eval(ctx context.Context, expr Expr, scope *Scope) (Value, error) {
	if err := i.checkBudget(ctx); err != nil {
		return nil, err
	}
	switch e := expr.(type) {
	case *Ident:
		v, ok := scope.Get(e.Name)
		if !ok {
			return nil, errs.New(errs.KindSandboxViolation, fmt.Sprintf("name %q is not defined", e.Name))
		}
		return v, nil
	case *StringLit:
		return String(e.Value), nil
	case *IntLit:
		return Int(e.Value), nil
	case *FloatLit:
		return Float(e.Value), nil
	case *BoolLit:
		return Bool(e.Value), nil
	case *NullLit:
		return Null{}, nil
	case *ListLit:
		items := make([]Value, len(e.Items))
		for idx, item := range e.Items {
			v, err := i.eval(ctx, item, scope)
			if err != nil {
				return nil, err
			}
			items[idx] = v
		}
		return &List{Items: items}, nil
	case *DictLit:
		d := NewDict()
		for idx := range e.Keys {
			k, err := i.eval(ctx, e.Keys[idx], scope)
			if err != nil {
				return nil, err
			}
			ks, ok := k.(String)
			if !ok {
				return nil, errs.New(errs.KindProgramRuntimeError, "dict keys must be strings")
			}
			v, err := i.eval(ctx, e.Values[idx], scope)
			if err != nil {
				return nil, err
			}
			d.Set(string(ks), v)
		}
		return d, nil
	case *UnaryOp:
		return i.evalUnary(ctx, e, scope)
	case *BinOp:
		return i.evalBinOp(ctx, e, scope)
	case *Index:
		return i.evalIndex(ctx, e, scope)
	case *Call:
		return i.evalCall(ctx, e, scope)
	case *MethodCall:
		return i.evalMethodCall(ctx, e, scope)
	default:
		return nil, errs.New(errs.KindSandboxViolation, fmt.Sprintf("unsupported expression type %T", expr))
	}
}

func (i *Interpreter) evalUnary(ctx context.Context, e *UnaryOp, scope *Scope) (Value, error) {
	v, err := i.eval(ctx, e.X, scope)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "not":
		return Bool(!Truthy(v)), nil
	case "-":
		switch n := v.(type) {
		case Int:
			return Int(-n), nil
		case Float:
			return Float(-n), nil
		default:
			return nil, errs.New(errs.KindProgramRuntimeError, fmt.Sprintf("bad operand type for unary -: %s", TypeName(v)))
		}
	default:
		return nil, errs.New(errs.KindSandboxViolation, fmt.Sprintf("unknown unary operator %q", e.Op))
	}
}

func (i *Interpreter) evalBinOp(ctx context.Context, e *BinOp, scope *Scope) (Value, error) {
	if e.Op == "and" {
		left, err := i.eval(ctx, e.Left, scope)
		if err != nil {
			return nil, err
		}
		if !Truthy(left) {
			return left, nil
		}
		return i.eval(ctx, e.Right, scope)
	}
	if e.Op == "or" {
		left, err := i.eval(ctx, e.Left, scope)
		if err != nil {
			return nil, err
		}
		if Truthy(left) {
			return left, nil
		}
		return i.eval(ctx, e.Right, scope)
	}

	left, err := i.eval(ctx, e.Left, scope)
	if err != nil {
		return nil, err
	}
	right, err := i.eval(ctx, e.Right, scope)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case "==":
		return Bool(Equal(left, right)), nil
	case "!=":
		return Bool(!Equal(left, right)), nil
	case "<", "<=", ">", ">=":
		less, err := Less(left, right)
		if err != nil {
			return nil, errs.New(errs.KindProgramRuntimeError, err.Error())
		}
		eq := Equal(left, right)
		switch e.Op {
		case "<":
			return Bool(less), nil
		case "<=":
			return Bool(less || eq), nil
		case ">":
			return Bool(!less && !eq), nil
		default: // >=
			return Bool(!less || eq), nil
		}
	case "+":
		return addValues(left, right)
	case "-", "*", "/", "//", "%":
		return arithValues(e.Op, left, right)
	default:
		return nil, errs.New(errs.KindSandboxViolation, fmt.Sprintf("unknown operator %q", e.Op))
	}
}

func addValues(left, right Value) (Value, error) {
	if ls, ok := left.(String); ok {
		if rs, ok := right.(String); ok {
			return String(string(ls) + string(rs)), nil
		}
		return nil, errs.New(errs.KindProgramRuntimeError, fmt.Sprintf("cannot concatenate str and %s", TypeName(right)))
	}
	if ll, ok := left.(*List); ok {
		if rl, ok := right.(*List); ok {
			out := make([]Value, 0, len(ll.Items)+len(rl.Items))
			out = append(out, ll.Items...)
			out = append(out, rl.Items...)
			return &List{Items: out}, nil
		}
		return nil, errs.New(errs.KindProgramRuntimeError, fmt.Sprintf("cannot concatenate list and %s", TypeName(right)))
	}
	return arithValues("+", left, right)
}

func arithValues(op string, left, right Value) (Value, error) {
	li, liok := left.(Int)
	ri, riok := right.(Int)
	if liok && riok {
		switch op {
		case "+":
			return li + ri, nil
		case "-":
			return li - ri, nil
		case "*":
			return li * ri, nil
		case "//":
			if ri == 0 {
				return nil, errs.New(errs.KindProgramRuntimeError, "integer division by zero")
			}
			return Int(floorDivInt(int64(li), int64(ri))), nil
		case "%":
			if ri == 0 {
				return nil, errs.New(errs.KindProgramRuntimeError, "modulo by zero")
			}
			return Int(floorModInt(int64(li), int64(ri))), nil
		case "/":
			if ri == 0 {
				return nil, errs.New(errs.KindProgramRuntimeError, "division by zero")
			}
			return Float(float64(li) / float64(ri)), nil
		}
	}
	lf, lok := asFloat(left)
	rf, rok := asFloat(right)
	if !lok || !rok {
		return nil, errs.New(errs.KindProgramRuntimeError, fmt.Sprintf("unsupported operand types for %s: %s and %s", op, TypeName(left), TypeName(right)))
	}
	switch op {
	case "+":
		return Float(lf + rf), nil
	case "-":
		return Float(lf - rf), nil
	case "*":
		return Float(lf * rf), nil
	case "/":
		if rf == 0 {
			return nil, errs.New(errs.KindProgramRuntimeError, "division by zero")
		}
		return Float(lf / rf), nil
	case "//":
		if rf == 0 {
			return nil, errs.New(errs.KindProgramRuntimeError, "division by zero")
		}
		return Float(floorDivFloat(lf, rf)), nil
	case "%":
		if rf == 0 {
			return nil, errs.New(errs.KindProgramRuntimeError, "modulo by zero")
		}
		return Float(floorModFloat(lf, rf)), nil
	default:
		return nil, errs.New(errs.KindSandboxViolation, fmt.Sprintf("unknown operator %q", op))
	}
}

func floorDivInt(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorModInt(a, b int64) int64 {
	m := a % b
	if m != 0 && ((a < 0) != (b < 0)) {
		m += b
	}
	return m
}

func floorDivFloat(a, b float64) float64 {
	q := a / b
	return float64(int64(q)) - boolToFloat(q < 0 && float64(int64(q)) != q)
}

func floorModFloat(a, b float64) float64 {
	m := a - floorDivFloat(a, b)*b
	return m
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (i *Interpreter) evalIndex(ctx context.Context, e *Index, scope *Scope) (Value, error) {
	container, err := i.eval(ctx, e.X, scope)
	if err != nil {
		return nil, err
	}
	if e.Slice {
		return evalSlice(container, ctx, i, e, scope)
	}
	idx, err := i.eval(ctx, e.Index, scope)
	if err != nil {
		return nil, err
	}
	switch c := container.(type) {
	case *List:
		n, ok := idx.(Int)
		if !ok {
			return nil, errs.New(errs.KindProgramRuntimeError, "list index must be an int")
		}
		pos := int(n)
		if pos < 0 {
			pos += len(c.Items)
		}
		if pos < 0 || pos >= len(c.Items) {
			return nil, errs.New(errs.KindProgramRuntimeError, "list index out of range")
		}
		return c.Items[pos], nil
	case String:
		n, ok := idx.(Int)
		if !ok {
			return nil, errs.New(errs.KindProgramRuntimeError, "string index must be an int")
		}
		runes := []rune(string(c))
		pos := int(n)
		if pos < 0 {
			pos += len(runes)
		}
		if pos < 0 || pos >= len(runes) {
			return nil, errs.New(errs.KindProgramRuntimeError, "string index out of range")
		}
		return String(string(runes[pos])), nil
	case *Dict:
		key, ok := idx.(String)
		if !ok {
			return nil, errs.New(errs.KindProgramRuntimeError, "dict key must be a string")
		}
		v, ok := c.Get(string(key))
		if !ok {
			return nil, errs.New(errs.KindProgramRuntimeError, fmt.Sprintf("key %q not found", string(key)))
		}
		return v, nil
	default:
		return nil, errs.New(errs.KindProgramRuntimeError, fmt.Sprintf("%s is not subscriptable", TypeName(container)))
	}
}

func evalSlice(container Value, ctx context.Context, i *Interpreter, e *Index, scope *Scope) (Value, error) {
	startIdx := 0
	haveStart := e.Index != nil
	if haveStart {
		v, err := i.eval(ctx, e.Index, scope)
		if err != nil {
			return nil, err
		}
		n, ok := v.(Int)
		if !ok {
			return nil, errs.New(errs.KindProgramRuntimeError, "slice bound must be an int")
		}
		startIdx = int(n)
	}
	var endIdx int
	haveEnd := e.End != nil
	if haveEnd {
		v, err := i.eval(ctx, e.End, scope)
		if err != nil {
			return nil, err
		}
		n, ok := v.(Int)
		if !ok {
			return nil, errs.New(errs.KindProgramRuntimeError, "slice bound must be an int")
		}
		endIdx = int(n)
	}
	switch c := container.(type) {
	case *List:
		start, end := clampSlice(startIdx, endIdx, haveStart, haveEnd, len(c.Items))
		out := make([]Value, end-start)
		copy(out, c.Items[start:end])
		return &List{Items: out}, nil
	case String:
		runes := []rune(string(c))
		start, end := clampSlice(startIdx, endIdx, haveStart, haveEnd, len(runes))
		return String(string(runes[start:end])), nil
	default:
		return nil, errs.New(errs.KindProgramRuntimeError, fmt.Sprintf("%s is not sliceable", TypeName(container)))
	}
}

func clampSlice(start, end int, haveStart, haveEnd bool, length int) (int, int) {
	if !haveStart {
		start = 0
	}
	if !haveEnd {
		end = length
	}
	if start < 0 {
		start += length
	}
	if end < 0 {
		end += length
	}
	if start < 0 {
		start = 0
	}
	if end > length {
		end = length
	}
	if start > length {
		start = length
	}
	if end < start {
		end = start
	}
	return start, end
}

func (i *Interpreter) evalCall(ctx context.Context, e *Call, scope *Scope) (Value, error) {
	args := make([]Value, len(e.Args))
	for idx, a := range e.Args {
		v, err := i.eval(ctx, a, scope)
		if err != nil {
			return nil, err
		}
		args[idx] = v
	}

	switch e.Callee {
	case "llm_query":
		if len(args) != 1 {
			return nil, errs.New(errs.KindProgramRuntimeError, "llm_query takes exactly one argument")
		}
		prompt, ok := args[0].(String)
		if !ok {
			return nil, errs.New(errs.KindProgramRuntimeError, "llm_query argument must be a string")
		}
		result, err := i.host.LLMQuery(ctx, string(prompt))
		if err != nil {
			var sbErr *errs.Error
			if errors.As(err, &sbErr) {
				return nil, sbErr
			}
			return nil, errs.Wrap(errs.KindProviderError, "llm_query failed", err)
		}
		return String(result), nil
	case "FINAL":
		if len(args) != 1 {
			return nil, errs.New(errs.KindProgramRuntimeError, "FINAL takes exactly one argument")
		}
		return nil, &finalSignal{text: ToString(args[0])}
	}

	if fn, ok := builtinFuncs[e.Callee]; ok {
		return fn(args)
	}

	v, ok := scope.Get(e.Callee)
	if !ok {
		return nil, errs.New(errs.KindSandboxViolation, fmt.Sprintf("call to undefined function %q", e.Callee))
	}
	fnVal, ok := v.(*Function)
	if !ok {
		return nil, errs.New(errs.KindProgramRuntimeError, fmt.Sprintf("%q is not callable", e.Callee))
	}
	return i.callFunction(ctx, fnVal, args)
}

func (i *Interpreter) callFunction(ctx context.Context, fn *Function, args []Value) (Value, error) {
	if len(args) != len(fn.Def.Params) {
		return nil, errs.New(errs.KindProgramRuntimeError,
			fmt.Sprintf("function %s takes %d argument(s), got %d", fn.Def.Name, len(fn.Def.Params), len(args)))
	}
	callScope := fn.Scope.child()
	for idx, param := range fn.Def.Params {
		callScope.Define(param, args[idx])
	}
	err := i.execBlock(ctx, fn.Def.Body, callScope)
	if err == nil {
		return Null{}, nil
	}
	var ret *returnSignal
	if errors.As(err, &ret) {
		return ret.value, nil
	}
	return nil, err
}

func (i *Interpreter) evalMethodCall(ctx context.Context, e *MethodCall, scope *Scope) (Value, error) {
	recv, err := i.eval(ctx, e.Recv, scope)
	if err != nil {
		return nil, err
	}
	args := make([]Value, len(e.Args))
	for idx, a := range e.Args {
		v, err := i.eval(ctx, a, scope)
		if err != nil {
			return nil, err
		}
		args[idx] = v
	}
	return callMethod(recv, e.Method, args)
}
