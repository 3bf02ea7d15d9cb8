package jack

import (
	"its-hmny.dev/nand2tetris/pkg/source"
	"its-hmny.dev/nand2tetris/pkg/utils"
)

// Parser is a recursive-descent parser over a peekable TokenStream. Each
// production either returns an AST node or a ParseError; the first error
// aborts the translation unit (see errors.go).
type Parser struct {
	ts  *TokenStream
	src *source.Source
}

// ParseSource lexes and parses src into a single Class.
func ParseSource(src *source.Source) (Class, error) {
	tokens, err := NewLexer(src).Tokenize()
	if err != nil {
		return Class{}, err
	}
	p := &Parser{ts: NewTokenStream(tokens), src: src}
	return p.parseClass()
}

func (p *Parser) parseClass() (Class, error) {
	loc := p.ts.Location()
	if _, err := p.ts.ExpectKeyword("class"); err != nil {
		return Class{}, err
	}
	name, err := p.ts.ExpectIdentifier()
	if err != nil {
		return Class{}, err
	}
	if _, err := p.ts.ExpectSymbol('{'); err != nil {
		return Class{}, err
	}

	class := Class{Name: name.Lexeme, Vars: utils.NewOrderedMap[string, Variable](), Subroutines: utils.NewOrderedMap[string, Subroutine](), Loc: loc}

	for p.ts.Peek().IsKeyword("static") || p.ts.Peek().IsKeyword("field") {
		vars, err := p.parseClassVarDec()
		if err != nil {
			return Class{}, err
		}
		for _, v := range vars {
			class.Vars.Set(v.Name, v)
		}
	}

	for p.ts.Peek().IsKeyword("constructor") || p.ts.Peek().IsKeyword("function") || p.ts.Peek().IsKeyword("method") {
		sub, err := p.parseSubroutineDec()
		if err != nil {
			return Class{}, err
		}
		class.Subroutines.Set(sub.Name, sub)
	}

	if _, err := p.ts.ExpectSymbol('}'); err != nil {
		return Class{}, err
	}
	return class, nil
}

func (p *Parser) parseClassVarDec() ([]Variable, error) {
	kindTok := p.ts.Next() // 'static' or 'field'
	kind := Field
	if kindTok.Lexeme == "static" {
		kind = Static
	}

	dataType, className, err := p.parseType()
	if err != nil {
		return nil, err
	}

	var vars []Variable
	first, err := p.ts.ExpectIdentifier()
	if err != nil {
		return nil, err
	}
	vars = append(vars, Variable{Name: first.Lexeme, Kind: kind, DataType: dataType, ClassName: className, Loc: first.Loc})

	for {
		if _, ok := p.ts.ConsumeIf(func(t Token) bool { return t.IsSymbol(',') }); !ok {
			break
		}
		id, err := p.ts.ExpectIdentifier()
		if err != nil {
			return nil, err
		}
		vars = append(vars, Variable{Name: id.Lexeme, Kind: kind, DataType: dataType, ClassName: className, Loc: id.Loc})
	}

	if _, err := p.ts.ExpectSymbol(';'); err != nil {
		return nil, err
	}
	return vars, nil
}

func (p *Parser) parseType() (DataType, string, error) {
	tok := p.ts.Peek()
	switch {
	case tok.IsKeyword("int"):
		p.ts.Next()
		return Int, "", nil
	case tok.IsKeyword("char"):
		p.ts.Next()
		return Char, "", nil
	case tok.IsKeyword("boolean"):
		p.ts.Next()
		return Bool, "", nil
	default:
		id, err := p.ts.ExpectIdentifier()
		if err != nil {
			return "", "", err
		}
		return Object, id.Lexeme, nil
	}
}

func (p *Parser) parseSubroutineDec() (Subroutine, error) {
	loc := p.ts.Location()
	kindTok := p.ts.Next() // constructor|function|method
	var kind SubroutineKind
	switch kindTok.Lexeme {
	case "constructor":
		kind = Constructor
	case "function":
		kind = Function
	case "method":
		kind = Method
	}

	var returnType DataType
	var returnName string
	if _, ok := p.ts.ConsumeIf(func(t Token) bool { return t.IsKeyword("void") }); ok {
		returnType = Void
	} else {
		var err error
		returnType, returnName, err = p.parseType()
		if err != nil {
			return Subroutine{}, err
		}
	}

	name, err := p.ts.ExpectIdentifier()
	if err != nil {
		return Subroutine{}, err
	}
	if _, err := p.ts.ExpectSymbol('('); err != nil {
		return Subroutine{}, err
	}
	params, err := p.parseParamList()
	if err != nil {
		return Subroutine{}, err
	}
	if _, err := p.ts.ExpectSymbol(')'); err != nil {
		return Subroutine{}, err
	}

	locals, stmts, err := p.parseSubroutineBody()
	if err != nil {
		return Subroutine{}, err
	}

	return Subroutine{
		Name: name.Lexeme, Kind: kind, ReturnType: returnType, ReturnName: returnName,
		Parameters: params, Locals: locals, Statements: stmts, Loc: loc,
	}, nil
}

func (p *Parser) parseParamList() ([]Variable, error) {
	var params []Variable
	if p.ts.Peek().IsSymbol(')') {
		return params, nil
	}
	for {
		dataType, className, err := p.parseType()
		if err != nil {
			return nil, err
		}
		id, err := p.ts.ExpectIdentifier()
		if err != nil {
			return nil, err
		}
		params = append(params, Variable{Name: id.Lexeme, Kind: Arg, DataType: dataType, ClassName: className, Loc: id.Loc})

		if _, ok := p.ts.ConsumeIf(func(t Token) bool { return t.IsSymbol(',') }); !ok {
			break
		}
	}
	return params, nil
}

func (p *Parser) parseSubroutineBody() ([]Variable, []Statement, error) {
	if _, err := p.ts.ExpectSymbol('{'); err != nil {
		return nil, nil, err
	}

	var locals []Variable
	for p.ts.Peek().IsKeyword("var") {
		vars, err := p.parseVarDec()
		if err != nil {
			return nil, nil, err
		}
		locals = append(locals, vars...)
	}

	stmts, err := p.parseStatements()
	if err != nil {
		return nil, nil, err
	}

	if _, err := p.ts.ExpectSymbol('}'); err != nil {
		return nil, nil, err
	}
	return locals, stmts, nil
}

func (p *Parser) parseVarDec() ([]Variable, error) {
	if _, err := p.ts.ExpectKeyword("var"); err != nil {
		return nil, err
	}
	dataType, className, err := p.parseType()
	if err != nil {
		return nil, err
	}

	var vars []Variable
	first, err := p.ts.ExpectIdentifier()
	if err != nil {
		return nil, err
	}
	vars = append(vars, Variable{Name: first.Lexeme, Kind: Var, DataType: dataType, ClassName: className, Loc: first.Loc})

	for {
		if _, ok := p.ts.ConsumeIf(func(t Token) bool { return t.IsSymbol(',') }); !ok {
			break
		}
		id, err := p.ts.ExpectIdentifier()
		if err != nil {
			return nil, err
		}
		vars = append(vars, Variable{Name: id.Lexeme, Kind: Var, DataType: dataType, ClassName: className, Loc: id.Loc})
	}

	if _, err := p.ts.ExpectSymbol(';'); err != nil {
		return nil, err
	}
	return vars, nil
}

func isStatementStart(tok Token) bool {
	return tok.IsKeyword("let") || tok.IsKeyword("if") || tok.IsKeyword("while") ||
		tok.IsKeyword("do") || tok.IsKeyword("return")
}

func (p *Parser) parseStatements() ([]Statement, error) {
	var stmts []Statement
	for isStatementStart(p.ts.Peek()) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

func (p *Parser) parseStatement() (Statement, error) {
	switch {
	case p.ts.Peek().IsKeyword("let"):
		return p.parseLetStmt()
	case p.ts.Peek().IsKeyword("if"):
		return p.parseIfStmt()
	case p.ts.Peek().IsKeyword("while"):
		return p.parseWhileStmt()
	case p.ts.Peek().IsKeyword("do"):
		return p.parseDoStmt()
	case p.ts.Peek().IsKeyword("return"):
		return p.parseReturnStmt()
	default:
		return nil, unexpectedTokenErr(p.ts.Location(), "statement", p.ts.Peek())
	}
}

func (p *Parser) parseLetStmt() (Statement, error) {
	loc := p.ts.Location()
	if _, err := p.ts.ExpectKeyword("let"); err != nil {
		return nil, err
	}
	name, err := p.ts.ExpectIdentifier()
	if err != nil {
		return nil, err
	}

	var index Expression
	if _, ok := p.ts.ConsumeIf(func(t Token) bool { return t.IsSymbol('[') }); ok {
		index, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.ts.ExpectSymbol(']'); err != nil {
			return nil, err
		}
	}

	if _, err := p.ts.ExpectSymbol('='); err != nil {
		return nil, err
	}
	rhs, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.ts.ExpectSymbol(';'); err != nil {
		return nil, err
	}
	return LetStmt{Name: name.Lexeme, Index: index, Rhs: rhs, Loc: loc}, nil
}

func (p *Parser) parseIfStmt() (Statement, error) {
	loc := p.ts.Location()
	if _, err := p.ts.ExpectKeyword("if"); err != nil {
		return nil, err
	}
	if _, err := p.ts.ExpectSymbol('('); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.ts.ExpectSymbol(')'); err != nil {
		return nil, err
	}
	if _, err := p.ts.ExpectSymbol('{'); err != nil {
		return nil, err
	}
	then, err := p.parseStatements()
	if err != nil {
		return nil, err
	}
	if _, err := p.ts.ExpectSymbol('}'); err != nil {
		return nil, err
	}

	var elseBlock []Statement
	if _, ok := p.ts.ConsumeIf(func(t Token) bool { return t.IsKeyword("else") }); ok {
		if _, err := p.ts.ExpectSymbol('{'); err != nil {
			return nil, err
		}
		elseBlock, err = p.parseStatements()
		if err != nil {
			return nil, err
		}
		if _, err := p.ts.ExpectSymbol('}'); err != nil {
			return nil, err
		}
	}

	return IfStmt{Cond: cond, Then: then, Else: elseBlock, Loc: loc}, nil
}

func (p *Parser) parseWhileStmt() (Statement, error) {
	loc := p.ts.Location()
	if _, err := p.ts.ExpectKeyword("while"); err != nil {
		return nil, err
	}
	if _, err := p.ts.ExpectSymbol('('); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.ts.ExpectSymbol(')'); err != nil {
		return nil, err
	}
	if _, err := p.ts.ExpectSymbol('{'); err != nil {
		return nil, err
	}
	body, err := p.parseStatements()
	if err != nil {
		return nil, err
	}
	if _, err := p.ts.ExpectSymbol('}'); err != nil {
		return nil, err
	}
	return WhileStmt{Cond: cond, Body: body, Loc: loc}, nil
}

func (p *Parser) parseDoStmt() (Statement, error) {
	loc := p.ts.Location()
	if _, err := p.ts.ExpectKeyword("do"); err != nil {
		return nil, err
	}
	call, err := p.parseSubroutineCall()
	if err != nil {
		return nil, err
	}
	if _, err := p.ts.ExpectSymbol(';'); err != nil {
		return nil, err
	}
	return DoStmt{Call: call, Loc: loc}, nil
}

func (p *Parser) parseSubroutineCall() (FuncCallExpr, error) {
	loc := p.ts.Location()
	first, err := p.ts.ExpectIdentifier()
	if err != nil {
		return FuncCallExpr{}, err
	}

	receiver := ""
	name := first.Lexeme
	if _, ok := p.ts.ConsumeIf(func(t Token) bool { return t.IsSymbol('.') }); ok {
		member, err := p.ts.ExpectIdentifier()
		if err != nil {
			return FuncCallExpr{}, err
		}
		receiver, name = first.Lexeme, member.Lexeme
	}

	if _, err := p.ts.ExpectSymbol('('); err != nil {
		return FuncCallExpr{}, err
	}
	args, err := p.parseExprList()
	if err != nil {
		return FuncCallExpr{}, err
	}
	if _, err := p.ts.ExpectSymbol(')'); err != nil {
		return FuncCallExpr{}, err
	}

	return FuncCallExpr{Receiver: receiver, Name: name, Args: args, Loc: loc}, nil
}

func (p *Parser) parseReturnStmt() (Statement, error) {
	loc := p.ts.Location()
	if _, err := p.ts.ExpectKeyword("return"); err != nil {
		return nil, err
	}
	var value Expression
	if !p.ts.Peek().IsSymbol(';') {
		var err error
		value, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.ts.ExpectSymbol(';'); err != nil {
		return nil, err
	}
	return ReturnStmt{Value: value, Loc: loc}, nil
}

func (p *Parser) parseExprList() ([]Expression, error) {
	var exprs []Expression
	if p.ts.Peek().IsSymbol(')') {
		return exprs, nil
	}
	for {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
		if _, ok := p.ts.ConsumeIf(func(t Token) bool { return t.IsSymbol(',') }); !ok {
			break
		}
	}
	return exprs, nil
}

// binaryOps maps the grammar's operator symbols to ExprType. '-' is handled
// specially since it is also the unary-minus symbol (see parseTerm).
var binaryOps = map[string]ExprType{
	"+": Plus, "-": Minus, "*": Multiply, "/": Divide,
	"&": BoolAnd, "|": BoolOr, "<": LessThan, ">": GreatThan, "=": Equal,
}

// parseExpr implements the flat, right-associative grammar: `expr := term (op expr)?`.
// `a+b*c` becomes BinaryExpr{+, a, BinaryExpr{*, b, c}} — never precedence-climbed.
func (p *Parser) parseExpr() (Expression, error) {
	loc := p.ts.Location()
	lhs, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	tok := p.ts.Peek()
	if tok.Kind == SymbolTok {
		if op, ok := binaryOps[tok.Lexeme]; ok {
			p.ts.Next()
			rhs, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			return BinaryExpr{Op: op, Lhs: lhs, Rhs: rhs, Loc: loc}, nil
		}
	}
	return lhs, nil
}

func (p *Parser) parseTerm() (Expression, error) {
	loc := p.ts.Location()
	tok := p.ts.Peek()

	switch {
	case tok.Kind == IntegerTok:
		p.ts.Next()
		return IntegerExpr{Value: tok.IntValue, Loc: loc}, nil

	case tok.Kind == StringTok:
		p.ts.Next()
		return StringExpr{Value: tok.Lexeme, Loc: loc}, nil

	case tok.IsKeyword("true"):
		p.ts.Next()
		return KeywordConstExpr{Kind: KeywordTrue, Loc: loc}, nil
	case tok.IsKeyword("false"):
		p.ts.Next()
		return KeywordConstExpr{Kind: KeywordFalse, Loc: loc}, nil
	case tok.IsKeyword("null"):
		p.ts.Next()
		return KeywordConstExpr{Kind: KeywordNull, Loc: loc}, nil
	case tok.IsKeyword("this"):
		p.ts.Next()
		return KeywordConstExpr{Kind: KeywordThis, Loc: loc}, nil

	case tok.IsSymbol('('):
		p.ts.Next()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.ts.ExpectSymbol(')'); err != nil {
			return nil, err
		}
		return inner, nil

	case tok.IsSymbol('-'):
		p.ts.Next()
		operand, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return UnaryExpr{Op: UnaryNeg, Operand: operand, Loc: loc}, nil

	case tok.IsSymbol('~'):
		p.ts.Next()
		operand, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return UnaryExpr{Op: UnaryNot, Operand: operand, Loc: loc}, nil

	case tok.Kind == IdentifierTok:
		p.ts.Next()
		switch {
		case p.ts.Peek().IsSymbol('['):
			p.ts.Next()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.ts.ExpectSymbol(']'); err != nil {
				return nil, err
			}
			return IndexExpr{Name: tok.Lexeme, Index: idx, Loc: loc}, nil

		case p.ts.Peek().IsSymbol('('):
			p.ts.Next()
			args, err := p.parseExprList()
			if err != nil {
				return nil, err
			}
			if _, err := p.ts.ExpectSymbol(')'); err != nil {
				return nil, err
			}
			return FuncCallExpr{Name: tok.Lexeme, Args: args, Loc: loc}, nil

		case p.ts.Peek().IsSymbol('.'):
			p.ts.Next()
			member, err := p.ts.ExpectIdentifier()
			if err != nil {
				return nil, err
			}
			if _, err := p.ts.ExpectSymbol('('); err != nil {
				return nil, err
			}
			args, err := p.parseExprList()
			if err != nil {
				return nil, err
			}
			if _, err := p.ts.ExpectSymbol(')'); err != nil {
				return nil, err
			}
			return FuncCallExpr{Receiver: tok.Lexeme, Name: member.Lexeme, Args: args, Loc: loc}, nil

		default:
			return VarExpr{Name: tok.Lexeme, Loc: loc}, nil
		}

	default:
		return nil, unexpectedTokenErr(loc, "term", tok)
	}
}
