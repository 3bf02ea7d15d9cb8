package jack

import (
	"fmt"

	"its-hmny.dev/nand2tetris/pkg/source"
)

// LexError reports an ill-formed token: a bad integer literal, an
// unterminated string or block comment.
type LexError struct {
	Loc     source.Location
	Message string
}

func (e LexError) Error() string {
	return fmt.Sprintf("%s: lex error: %s", e.Loc, e.Message)
}

// ParseError reports a grammar violation or a missing expected token.
type ParseError struct {
	Loc     source.Location
	Message string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%s: parse error: %s", e.Loc, e.Message)
}

// SemanticError reports a failure during symbol/type resolution: an
// undefined symbol, an arity mismatch, a method call on a primitive, and so on.
type SemanticError struct {
	Loc     source.Location
	Message string
}

func (e SemanticError) Error() string {
	return fmt.Sprintf("%s: semantic error: %s", e.Loc, e.Message)
}

func unexpectedTokenErr(loc source.Location, expected string, got Token) error {
	return ParseError{Loc: loc, Message: fmt.Sprintf("unexpected token: expected %s, got '%s'", expected, got.Lexeme)}
}
