package msl

import "fmt"

// parser is a recursive-descent parser over the Token stream produced by
// the lexer. It only accepts the fixed MSL grammar; constructs outside it
// are parse errors. Words such as `import` are not reserved, so `import
// os` parses as two bare-name expression statements and is rejected by
// the interpreter when it resolves the unbound name.
type parser struct {
	toks []Token
	pos  int
}

// Parse lexes and parses src into a Program.
func Parse(src string) (*Program, error) {
	toks, err := Lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	stmts, err := p.parseStatements(false)
	if err != nil {
		return nil, err
	}
	return &Program{Statements: stmts}, nil
}

func (p *parser) cur() Token  { return p.toks[p.pos] }
func (p *parser) line() int   { return p.cur().Line }
func (p *parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) check(kind TokKind) bool { return p.cur().Kind == kind }

func (p *parser) checkKeyword(kw string) bool {
	return p.cur().Kind == TokKeyword && p.cur().Text == kw
}

func (p *parser) checkOp(op string) bool {
	return p.cur().Kind == TokOp && p.cur().Text == op
}

func (p *parser) expect(kind TokKind, what string) (Token, error) {
	if !p.check(kind) {
		return Token{}, fmt.Errorf("line %d: expected %s, got %q", p.line(), what, p.cur().Text)
	}
	return p.advance(), nil
}

func (p *parser) skipNewlines() {
	for p.check(TokNewline) {
		p.advance()
	}
}

// parseStatements parses statements until DEDENT (if inBlock) or EOF.
func (p *parser) parseStatements(inBlock bool) ([]Stmt, error) {
	var stmts []Stmt
	p.skipNewlines()
	for {
		if p.check(TokEOF) {
			return stmts, nil
		}
		if inBlock && p.check(TokDedent) {
			p.advance()
			return stmts, nil
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		p.skipNewlines()
	}
}

func (p *parser) parseBlock() ([]Stmt, error) {
	if _, err := p.expect(TokColon, "':'"); err != nil {
		return nil, err
	}
	p.skipNewlines()
	if !p.check(TokIndent) {
		return nil, fmt.Errorf("line %d: expected indented block", p.line())
	}
	p.advance()
	return p.parseStatements(true)
}

func (p *parser) parseStatement() (Stmt, error) {
	switch {
	case p.checkKeyword("if"):
		return p.parseIf()
	case p.checkKeyword("for"):
		return p.parseFor()
	case p.checkKeyword("def"):
		return p.parseFuncDef()
	case p.checkKeyword("return"):
		return p.parseReturn()
	default:
		return p.parseSimpleStatement()
	}
}

func (p *parser) parseIf() (Stmt, error) {
	line := p.line()
	p.advance() // if
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	thenBody, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	node := &If{Cond: cond, Then: thenBody, Line: line}
	for p.checkKeyword("elif") {
		p.advance()
		c, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		node.ElseIf = append(node.ElseIf, ElseIf{Cond: c, Body: body})
	}
	if p.checkKeyword("else") {
		p.advance()
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		node.Else = body
	}
	return node, nil
}

func (p *parser) parseFor() (Stmt, error) {
	line := p.line()
	p.advance() // for
	name, err := p.expect(TokIdent, "loop variable")
	if err != nil {
		return nil, err
	}
	if !p.checkKeyword("in") {
		return nil, fmt.Errorf("line %d: expected 'in'", p.line())
	}
	p.advance()
	iterable, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &For{Var: name.Text, Iterable: iterable, Body: body, Line: line}, nil
}

func (p *parser) parseFuncDef() (Stmt, error) {
	line := p.line()
	p.advance() // def
	name, err := p.expect(TokIdent, "function name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokLParen, "'('"); err != nil {
		return nil, err
	}
	var params []string
	for !p.check(TokRParen) {
		id, err := p.expect(TokIdent, "parameter name")
		if err != nil {
			return nil, err
		}
		params = append(params, id.Text)
		if p.check(TokComma) {
			p.advance()
		}
	}
	p.advance() // )
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &FuncDef{Name: name.Text, Params: params, Body: body, Line: line}, nil
}

func (p *parser) parseReturn() (Stmt, error) {
	line := p.line()
	p.advance() // return
	if p.check(TokNewline) || p.check(TokEOF) || p.check(TokDedent) {
		return &Return{Line: line}, nil
	}
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &Return{Value: val, Line: line}, nil
}

func (p *parser) parseSimpleStatement() (Stmt, error) {
	line := p.line()
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.checkOp("=") {
		switch expr.(type) {
		case *Ident, *Index:
		default:
			return nil, fmt.Errorf("line %d: invalid assignment target", line)
		}
		p.advance()
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &Assign{Target: expr, Value: val, Line: line}, nil
	}
	return &ExprStmt{X: expr, Line: line}, nil
}

// ---- Expressions ----
// Precedence, low to high: or, and, not, comparison, add/sub, mul/div, unary, postfix, primary.

func (p *parser) parseExpr() (Expr, error) { return p.parseOr() }

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.checkKeyword("or") {
		line := p.line()
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinOp{Op: "or", Left: left, Right: right, Line: line}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.checkKeyword("and") {
		line := p.line()
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinOp{Op: "and", Left: left, Right: right, Line: line}
	}
	return left, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.checkKeyword("not") {
		line := p.line()
		p.advance()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: "not", X: x, Line: line}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseAddSub()
	if err != nil {
		return nil, err
	}
	for p.check(TokOp) && comparisonOps[p.cur().Text] {
		op := p.advance().Text
		right, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		left = &BinOp{Op: op, Left: left, Right: right, Line: p.line()}
	}
	return left, nil
}

func (p *parser) parseAddSub() (Expr, error) {
	left, err := p.parseMulDiv()
	if err != nil {
		return nil, err
	}
	for p.check(TokOp) && (p.cur().Text == "+" || p.cur().Text == "-") {
		op := p.advance().Text
		right, err := p.parseMulDiv()
		if err != nil {
			return nil, err
		}
		left = &BinOp{Op: op, Left: left, Right: right, Line: p.line()}
	}
	return left, nil
}

var mulDivOps = map[string]bool{"*": true, "/": true, "//": true, "%": true}

func (p *parser) parseMulDiv() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.check(TokOp) && mulDivOps[p.cur().Text] {
		op := p.advance().Text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinOp{Op: op, Left: left, Right: right, Line: p.line()}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.check(TokOp) && p.cur().Text == "-" {
		line := p.line()
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: "-", X: x, Line: line}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.check(TokLBracket):
			line := p.line()
			p.advance()
			idx, err := p.parseSliceOrIndex(expr, line)
			if err != nil {
				return nil, err
			}
			expr = idx
		case p.check(TokDot):
			p.advance()
			name, err := p.expect(TokIdent, "method name")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokLParen, "'('"); err != nil {
				return nil, err
			}
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			expr = &MethodCall{Recv: expr, Method: name.Text, Args: args, Line: p.line()}
		case p.check(TokLParen):
			ident, ok := expr.(*Ident)
			if !ok {
				return nil, fmt.Errorf("line %d: calls are only allowed on plain names", p.line())
			}
			p.advance()
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			expr = &Call{Callee: ident.Name, Args: args, Line: ident.Line}
		default:
			return expr, nil
		}
	}
}

func (p *parser) parseSliceOrIndex(x Expr, line int) (Expr, error) {
	if p.check(TokColon) {
		p.advance()
		var end Expr
		if !p.check(TokRBracket) {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			end = e
		}
		if _, err := p.expect(TokRBracket, "']'"); err != nil {
			return nil, err
		}
		return &Index{X: x, Slice: true, End: end, Line: line}, nil
	}
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.check(TokColon) {
		p.advance()
		var end Expr
		if !p.check(TokRBracket) {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			end = e
		}
		if _, err := p.expect(TokRBracket, "']'"); err != nil {
			return nil, err
		}
		return &Index{X: x, Index: first, Slice: true, End: end, Line: line}, nil
	}
	if _, err := p.expect(TokRBracket, "']'"); err != nil {
		return nil, err
	}
	return &Index{X: x, Index: first, Line: line}, nil
}

func (p *parser) parseArgs() ([]Expr, error) {
	var args []Expr
	for !p.check(TokRParen) {
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.check(TokComma) {
			p.advance()
		}
	}
	p.advance() // )
	return args, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	tok := p.cur()
	switch tok.Kind {
	case TokInt:
		p.advance()
		var v int64
		fmt.Sscanf(tok.Text, "%d", &v)
		return &IntLit{Value: v, Line: tok.Line}, nil
	case TokFloat:
		p.advance()
		var v float64
		fmt.Sscanf(tok.Text, "%g", &v)
		return &FloatLit{Value: v, Line: tok.Line}, nil
	case TokString:
		p.advance()
		return &StringLit{Value: tok.Text, Line: tok.Line}, nil
	case TokIdent:
		p.advance()
		return &Ident{Name: tok.Text, Line: tok.Line}, nil
	case TokKeyword:
		switch tok.Text {
		case "True":
			p.advance()
			return &BoolLit{Value: true, Line: tok.Line}, nil
		case "False":
			p.advance()
			return &BoolLit{Value: false, Line: tok.Line}, nil
		case "None":
			p.advance()
			return &NullLit{Line: tok.Line}, nil
		}
		return nil, fmt.Errorf("line %d: unexpected keyword %q", tok.Line, tok.Text)
	case TokLParen:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	case TokLBracket:
		line := tok.Line
		p.advance()
		var items []Expr
		for !p.check(TokRBracket) {
			item, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			if p.check(TokComma) {
				p.advance()
			}
		}
		p.advance() // ]
		return &ListLit{Items: items, Line: line}, nil
	case TokLBrace:
		line := tok.Line
		p.advance()
		var keys, values []Expr
		for !p.check(TokRBrace) {
			k, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokColon, "':'"); err != nil {
				return nil, err
			}
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			keys = append(keys, k)
			values = append(values, v)
			if p.check(TokComma) {
				p.advance()
			}
		}
		p.advance() // }
		return &DictLit{Keys: keys, Values: values, Line: line}, nil
	default:
		return nil, fmt.Errorf("line %d: unexpected token %q", tok.Line, tok.Text)
	}
}
