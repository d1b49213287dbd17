package msl

import "testing"

func TestLexIndentDedent(t *testing.T) {
	src := "if True:\n    x = 1\n    y = 2\nz = 3\n"
	toks, err := Lex(src)
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	var kinds []TokKind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	wantHasIndent, wantHasDedent := false, false
	for _, k := range kinds {
		if k == TokIndent {
			wantHasIndent = true
		}
		if k == TokDedent {
			wantHasDedent = true
		}
	}
	if !wantHasIndent || !wantHasDedent {
		t.Fatalf("expected INDENT and DEDENT tokens, got kinds %v", kinds)
	}
}

func TestLexInconsistentIndentationErrors(t *testing.T) {
	src := "if True:\n    x = 1\n  y = 2\n"
	_, err := Lex(src)
	if err == nil {
		t.Fatalf("expected inconsistent indentation error")
	}
}

func TestLexStringEscapes(t *testing.T) {
	toks, err := Lex(`x = "a\nb"` + "\n")
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	found := false
	for _, tok := range toks {
		if tok.Kind == TokString && tok.Text == "a\nb" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected decoded string literal with escaped newline")
	}
}

func TestLexUnterminatedStringErrors(t *testing.T) {
	_, err := Lex(`x = "unterminated` + "\n")
	if err == nil {
		t.Fatalf("expected unterminated string error")
	}
}

func TestLexParenSuppressesNewline(t *testing.T) {
	src := "x = [\n    1,\n    2,\n]\n"
	toks, err := Lex(src)
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	newlines := 0
	for _, tok := range toks {
		if tok.Kind == TokNewline {
			newlines++
		}
	}
	if newlines != 1 {
		t.Fatalf("expected exactly 1 newline token (trailing), got %d", newlines)
	}
}
