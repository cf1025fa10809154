// Package token defines the span and token model shared by the Callisto
// lexer and parser. Tokens are produced once by the lexer and are
// read-only for the rest of the pipeline.
package token

import "fmt"

// Span locates a token or AST node in the original source text. It never
// affects semantics, only diagnostics, but every token and every AST node
// carries a non-null one (spec.md §3).
type Span struct {
	File   string
	Line   int // 1-based
	Column int // 1-based
	Length int // number of bytes/runes the span covers
}

// String renders the span in the "<file>:<line>:<col>" prefix used by the
// diagnostic format (spec.md §6); the renderer that underlines the span
// with a caret is an external collaborator, not implemented here.
func (s Span) String() string {
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

// Kind enumerates every token kind the lexer can produce.
type Kind int

const (
	Integer Kind = iota
	Identifier
	String
	LSquare
	RSquare
	Ampersand
	EOF
)

func (k Kind) String() string {
	switch k {
	case Integer:
		return "Integer"
	case Identifier:
		return "Identifier"
	case String:
		return "String"
	case LSquare:
		return "LSquare"
	case RSquare:
		return "RSquare"
	case Ampersand:
		return "Ampersand"
	case EOF:
		return "EOF"
	default:
		return "Unknown"
	}
}

// Token is the atomic unit the lexer hands to the parser.
type Token struct {
	Kind Kind
	// Contents is the textual lexeme: decimal/hex digits for Integer, the
	// unescaped body for String, the exact text (including punctuation
	// identifiers such as "->" and ":") for Identifier.
	Contents string
	// Extra carries the String token's prefix tag (e.g. "c" in c"..."),
	// empty for every other kind.
	Extra string
	Span  Span
}

// Is reports whether the token is an Identifier whose contents equal one
// of the given keywords; the parser uses this for keyword dispatch since
// keywords (including punctuation ones like "->" or ":") are lexed as
// plain Identifier tokens and distinguished only by string comparison.
func (t Token) Is(keywords ...string) bool {
	if t.Kind != Identifier {
		return false
	}
	for _, kw := range keywords {
		if t.Contents == kw {
			return true
		}
	}
	return false
}
