package msl

import (
	"testing"

	"github.com/pmukeshreddy/rlm-engine/internal/errs"
)

func TestParseFuncDefAndCall(t *testing.T) {
	src := "def add(a, b):\n    return a + b\n\nFINAL(str(add(1, 2)))\n"
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(prog.Statements) != 2 {
		t.Fatalf("expected 2 top-level statements, got %d", len(prog.Statements))
	}
	if _, ok := prog.Statements[0].(*FuncDef); !ok {
		t.Fatalf("expected first statement to be FuncDef, got %T", prog.Statements[0])
	}
}

func TestParseSliceExpression(t *testing.T) {
	prog, err := Parse("x = y[1:3]\nFINAL(x)\n")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	assign, ok := prog.Statements[0].(*Assign)
	if !ok {
		t.Fatalf("expected Assign, got %T", prog.Statements[0])
	}
	idx, ok := assign.Value.(*Index)
	if !ok || !idx.Slice {
		t.Fatalf("expected slice Index, got %+v", assign.Value)
	}
}

func TestParseUnknownKeywordLikeSyntaxIsNotASpecialForm(t *testing.T) {
	// "import" and "class" are not reserved words in this grammar at all —
	// there is no AST node for them (see ast.go) — so `import os` merely
	// parses as two ordinary bare-name expression statements. Rejection
	// happens later, at evaluation time, because neither name is bound.
	prog, err := Parse("import os\n")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(prog.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(prog.Statements))
	}
}

func TestParseMissingColonErrors(t *testing.T) {
	_, err := Parse("if True\n    x = 1\n")
	if err == nil {
		t.Fatalf("expected parse error for missing colon")
	}
}

func TestParseInvalidAssignmentTargetErrors(t *testing.T) {
	_, err := Parse("1 + 1 = 2\n")
	if err == nil {
		t.Fatalf("expected parse error for invalid assignment target")
	}
}

func TestImportLikeNameIsSandboxViolationAtRuntime(t *testing.T) {
	out := runProgram(t, "import os\nFINAL(\"unreachable\")\n", &fakeHost{}, String(""), nil)
	if out.Kind != OutcomeError || out.ErrKind != errs.KindSandboxViolation {
		t.Fatalf("expected SandboxViolation error outcome, got %+v", out)
	}
}
