// Package lexer turns Callisto source bytes into a token stream.
//
// It is a hand-written, single-pass byte-cursor scanner (no regex, no
// parser-combinator library) grounded on the corpus's own hand-rolled
// lexers (gmofishsauce-wut4's assembler lexer, th13vn-solast-go's
// Solidity lexer): a cursor 'i' advances over the whole source, emitting
// one token.Token at a time, with comments and whitespace skipped inline.
package lexer

import (
	"fmt"
	"strings"

	"github.com/callisto-lang/callisto/pkg/token"
)

// Lexer holds the scanning cursor over one source file's bytes.
type Lexer struct {
	file   string
	src    []byte
	pos    int // byte offset of the next unread byte
	line   int // 1-based
	column int // 1-based, column of 'pos' on the current line
}

// New returns a Lexer ready to scan 'src', attributing spans to 'file'.
func New(file string, src []byte) *Lexer {
	return &Lexer{file: file, src: src, pos: 0, line: 1, column: 1}
}

// Tokenize scans the whole source and returns its token vector, or the
// first lexing error encountered (unterminated string, bad numeric
// literal), tagged with the span of the offending byte.
func Tokenize(file string, src []byte) ([]token.Token, error) {
	lx := New(file, src)
	tokens := []token.Token{}

	for {
		tok, err := lx.Next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == token.EOF {
			return tokens, nil
		}
		tokens = append(tokens, tok)
	}
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(offset int) byte {
	if l.pos+offset >= len(l.src) {
		return 0
	}
	return l.src[l.pos+offset]
}

func (l *Lexer) advance() byte {
	b := l.src[l.pos]
	l.pos++
	if b == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return b
}

func (l *Lexer) span(startLine, startCol, length int) token.Span {
	return token.Span{File: l.file, Line: startLine, Column: startCol, Length: length}
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\r' || b == '\n' }

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isHexDigit(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

// isBoundary reports whether 'b' terminates a bare Identifier run: any
// whitespace, bracket, ampersand, quote or end of input.
func isBoundary(b byte) bool {
	return b == 0 || isSpace(b) || b == '[' || b == ']' || b == '&' || b == '"'
}

// Next scans and returns the next token, or a token.EOF token once the
// source is exhausted.
func (l *Lexer) Next() (token.Token, error) {
	for {
		l.skipWhitespace()
		if l.pos < len(l.src) && l.peek() == '/' && l.peekAt(1) == '/' {
			l.skipLineComment()
			continue
		}
		break
	}

	if l.pos >= len(l.src) {
		return token.Token{Kind: token.EOF, Span: l.span(l.line, l.column, 0)}, nil
	}

	startLine, startCol := l.line, l.column
	b := l.peek()

	switch {
	case b == '[':
		l.advance()
		return token.Token{Kind: token.LSquare, Contents: "[", Span: l.span(startLine, startCol, 1)}, nil
	case b == ']':
		l.advance()
		return token.Token{Kind: token.RSquare, Contents: "]", Span: l.span(startLine, startCol, 1)}, nil
	case b == '&':
		l.advance()
		return token.Token{Kind: token.Ampersand, Contents: "&", Span: l.span(startLine, startCol, 1)}, nil
	case b == '"':
		return l.lexString(startLine, startCol, l.pos, "")
	case isDigit(b):
		return l.lexInteger(startLine, startCol)
	default:
		// A single-letter string tag (e.g. `c` in c"...") precedes an opening
		// quote with no intervening whitespace; anything else that looks like
		// an identifier run but abuts a quote is still just an Identifier.
		if isLetter(b) && l.peekAt(1) == '"' {
			tokStart := l.pos
			l.advance()
			return l.lexString(startLine, startCol, tokStart, string(b))
		}
		return l.lexIdentifier(startLine, startCol)
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_'
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) && isSpace(l.peek()) {
		l.advance()
	}
}

func (l *Lexer) skipLineComment() {
	for l.pos < len(l.src) && l.peek() != '\n' {
		l.advance()
	}
}

func (l *Lexer) lexInteger(startLine, startCol int) (token.Token, error) {
	start := l.pos

	if l.peek() == '0' && (l.peekAt(1) == 'x' || l.peekAt(1) == 'X') {
		l.advance()
		l.advance()
		hexStart := l.pos
		for l.pos < len(l.src) && isHexDigit(l.peek()) {
			l.advance()
		}
		if l.pos == hexStart {
			return token.Token{}, fmt.Errorf("%s: invalid numeric literal %q", l.span(startLine, startCol, l.pos-start), string(l.src[start:l.pos]))
		}
		return token.Token{Kind: token.Integer, Contents: string(l.src[start:l.pos]), Span: l.span(startLine, startCol, l.pos-start)}, nil
	}

	for l.pos < len(l.src) && isDigit(l.peek()) {
		l.advance()
	}
	// A digit run followed directly by a letter (e.g. the "16Bit" feature
	// tag) is not a decimal integer: the whole run is an Identifier.
	if l.pos < len(l.src) && isLetter(l.peek()) {
		for l.pos < len(l.src) && !isBoundary(l.peek()) {
			l.advance()
		}
		return token.Token{Kind: token.Identifier, Contents: string(l.src[start:l.pos]), Span: l.span(startLine, startCol, l.pos-start)}, nil
	}

	return token.Token{Kind: token.Integer, Contents: string(l.src[start:l.pos]), Span: l.span(startLine, startCol, l.pos-start)}, nil
}

func (l *Lexer) lexString(startLine, startCol, tokStart int, extra string) (token.Token, error) {
	l.advance() // consume opening quote

	var body strings.Builder
	for {
		if l.pos >= len(l.src) {
			return token.Token{}, fmt.Errorf("%s: unterminated string literal", l.span(startLine, startCol, l.pos-tokStart))
		}
		b := l.peek()
		if b == '"' {
			l.advance()
			break
		}
		if b == '\\' && l.pos+1 < len(l.src) {
			l.advance()
			esc := l.advance()
			body.WriteByte(unescape(esc))
			continue
		}
		body.WriteByte(l.advance())
	}

	return token.Token{
		Kind: token.String, Contents: body.String(), Extra: extra,
		Span: l.span(startLine, startCol, l.pos-tokStart),
	}, nil
}

func unescape(b byte) byte {
	switch b {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	default:
		return b
	}
}

func (l *Lexer) lexIdentifier(startLine, startCol int) (token.Token, error) {
	start := l.pos
	for l.pos < len(l.src) && !isBoundary(l.peek()) {
		l.advance()
	}
	if l.pos == start {
		b := l.advance()
		return token.Token{}, fmt.Errorf("%s: unexpected byte %q", l.span(startLine, startCol, 1), b)
	}
	return token.Token{Kind: token.Identifier, Contents: string(l.src[start:l.pos]), Span: l.span(startLine, startCol, l.pos-start)}, nil
}
