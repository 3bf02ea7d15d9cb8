// Package source tracks the origin of every token and AST node produced by
// the toolchain's three front ends, so errors can be reported precisely.
package source

import "fmt"

// Source is an immutable record of one translation unit: its path and the
// raw bytes read from it. Tokens and AST nodes derived from a Source share
// a pointer to it rather than copying the content.
type Source struct {
	Path    string
	Content string
}

// New wraps path/content as a Source.
func New(path, content string) *Source {
	return &Source{Path: path, Content: content}
}

// Location pinpoints a single position within a Source: the line/column seen
// by a human reader, plus the raw byte offset.
type Location struct {
	Source *Source
	Line   int
	Column int
	Offset int
}

// String renders the location as "path:line:column", used in error messages.
func (l Location) String() string {
	path := "<unknown>"
	if l.Source != nil {
		path = l.Source.Path
	}
	return fmt.Sprintf("%s:%d:%d", path, l.Line, l.Column)
}
