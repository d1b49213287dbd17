package msl

import (
	"context"
	"testing"
	"time"

	"github.com/pmukeshreddy/rlm-engine/internal/errs"
)

type fakeHost struct {
	responses []string
	calls     []string
	err       error
}

func (f *fakeHost) LLMQuery(ctx context.Context, prompt string) (string, error) {
	f.calls = append(f.calls, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func runProgram(t *testing.T, src string, host Host, ctxVal Value, mem *Dict) Outcome {
	t.Helper()
	program, err := Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if mem == nil {
		mem = NewDict()
	}
	interp := NewInterpreter(host, DefaultLimits(time.Now().Add(5*time.Second)), ctxVal, mem)
	return interp.Run(context.Background(), program)
}

func TestTrivialFinal(t *testing.T) {
	out := runProgram(t, "FINAL(\"hello\")\n", &fakeHost{}, String(""), nil)
	if out.Kind != OutcomeFinal || out.Value != "hello" {
		t.Fatalf("got %+v", out)
	}
}

func TestArithmeticAndVariables(t *testing.T) {
	src := "total = 0\nfor x in range(5):\n    total = total + x\nFINAL(str(total))\n"
	out := runProgram(t, src, &fakeHost{}, String(""), nil)
	if out.Kind != OutcomeFinal || out.Value != "10" {
		t.Fatalf("got %+v", out)
	}
}

func TestChunkedMapReduceViaLLMQuery(t *testing.T) {
	src := "" +
		"chunks = [\"a\", \"b\", \"c\"]\n" +
		"results = []\n" +
		"for c in chunks:\n" +
		"    results.append(llm_query(\"summarize: \" + c))\n" +
		"FINAL(\", \".join(results))\n"
	host := &fakeHost{responses: []string{"A", "B", "C"}}
	out := runProgram(t, src, host, String(""), nil)
	if out.Kind != OutcomeFinal {
		t.Fatalf("got %+v", out)
	}
	if out.Value != "A, B, C" {
		t.Fatalf("value = %q", out.Value)
	}
	if len(host.calls) != 3 {
		t.Fatalf("expected 3 llm_query calls, got %d", len(host.calls))
	}
}

func TestSandboxViolationUndefinedName(t *testing.T) {
	out := runProgram(t, "FINAL(mystery)\n", &fakeHost{}, String(""), nil)
	if out.Kind != OutcomeError || out.ErrKind != errs.KindSandboxViolation {
		t.Fatalf("got %+v", out)
	}
}

func TestNoFinalIsError(t *testing.T) {
	out := runProgram(t, "x = 1\ny = x + 1\n", &fakeHost{}, String(""), nil)
	if out.Kind != OutcomeError || out.ErrKind != errs.KindNoFinal {
		t.Fatalf("got %+v", out)
	}
}

func TestProviderErrorPropagates(t *testing.T) {
	host := &fakeHost{err: errs.New(errs.KindProviderError, "upstream outage")}
	out := runProgram(t, "r = llm_query(\"x\")\nFINAL(r)\n", host, String(""), nil)
	if out.Kind != OutcomeError || out.ErrKind != errs.KindProviderError {
		t.Fatalf("got %+v", out)
	}
}

func TestStepBudgetExceeded(t *testing.T) {
	src := "def loopforever(n):\n    for i in range(n):\n        loopforever(1)\n    return 0\n\nFINAL(str(loopforever(1000000)))\n"
	program, err := Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	interp := NewInterpreter(&fakeHost{}, Limits{MaxSteps: 1000, Deadline: time.Now().Add(time.Minute)}, String(""), NewDict())
	out := interp.Run(context.Background(), program)
	if out.Kind != OutcomeTimeout {
		t.Fatalf("expected timeout outcome, got %+v", out)
	}
}

func TestDeadlineInPast(t *testing.T) {
	src := "for i in range(100000):\n    x = i\nFINAL(\"done\")\n"
	program, err := Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	interp := NewInterpreter(&fakeHost{}, Limits{MaxSteps: 2_000_000, Deadline: time.Now().Add(-time.Second)}, String(""), NewDict())
	out := interp.Run(context.Background(), program)
	if out.Kind != OutcomeTimeout {
		t.Fatalf("expected timeout outcome, got %+v", out)
	}
}

func TestContextAndMemoryBound(t *testing.T) {
	mem := NewDict()
	mem.Set("seen", Int(3))
	out := runProgram(t, "memory[\"seen\"] = memory[\"seen\"] + 1\nFINAL(str(memory[\"seen\"]) + context)\n", &fakeHost{}, String("-ctx"), mem)
	if out.Kind != OutcomeFinal || out.Value != "4-ctx" {
		t.Fatalf("got %+v", out)
	}
	if v, _ := mem.Get("seen"); v != Int(4) {
		t.Fatalf("memory not mutated: %+v", v)
	}
}

func TestIfElifElse(t *testing.T) {
	src := "x = 2\nif x == 1:\n    r = \"one\"\nelif x == 2:\n    r = \"two\"\nelse:\n    r = \"other\"\nFINAL(r)\n"
	out := runProgram(t, src, &fakeHost{}, String(""), nil)
	if out.Kind != OutcomeFinal || out.Value != "two" {
		t.Fatalf("got %+v", out)
	}
}

func TestUserFunctionWithReturn(t *testing.T) {
	src := "def double(n):\n    return n * 2\n\nFINAL(str(double(21)))\n"
	out := runProgram(t, src, &fakeHost{}, String(""), nil)
	if out.Kind != OutcomeFinal || out.Value != "42" {
		t.Fatalf("got %+v", out)
	}
}

func TestStringAndListMethods(t *testing.T) {
	src := "words = \"a,b,c\".split(\",\")\nFINAL(\"-\".join(words).upper())\n"
	out := runProgram(t, src, &fakeHost{}, String(""), nil)
	if out.Kind != OutcomeFinal || out.Value != "A-B-C" {
		t.Fatalf("got %+v", out)
	}
}

func TestDivisionByZeroIsRuntimeError(t *testing.T) {
	out := runProgram(t, "x = 1 / 0\nFINAL(str(x))\n", &fakeHost{}, String(""), nil)
	if out.Kind != OutcomeError || out.ErrKind != errs.KindProgramRuntimeError {
		t.Fatalf("got %+v", out)
	}
}
