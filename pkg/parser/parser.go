// Package parser implements Callisto's recursive-descent parser: a cursor
// walks a flat token vector (produced by pkg/lexer) and each production
// advances the cursor to its own last-consumed token before returning,
// leaving the caller (the top-level loop, or a statement-list helper) to
// step past it. This mirrors the pipeline shape of skx-math-compiler's
// compiler package (tokenize → walk tokens → build an internal form) and
// th13vn-solast-go's builder, adapted to a single-pass, single-cursor
// design rather than that corpus's own goparsec-combinator style, because
// the exact breadcrumb/EOF-diagnostic and production-stop contracts this
// language calls for need direct control over the cursor (see DESIGN.md).
package parser

import (
	"fmt"
	"strconv"

	"github.com/callisto-lang/callisto/pkg/ast"
	"github.com/callisto-lang/callisto/pkg/token"
)

// keywords recognized by parseStatement's dispatch (spec.md §4.2). "raw"
// and "C" are keywords too, but only inside specific productions
// (FuncDef, Extern) rather than at the top-level dispatch.
var statementKeywords = []string{
	"func", "inline", "include", "asm", "if", "while", "let",
	"enable", "requires", "struct", "version", "const", "enum",
	"restrict", "union", "alias", "extern", "implement", "->",
}

// Parser walks a token vector with a single integer cursor. 'parsing' is
// a breadcrumb stack of production names, used only to phrase the
// "Unexpected EOF while parsing X" diagnostic for the innermost open
// production (see SPEC_FULL.md's resolution of the breadcrumb Open
// Question: push on entry, pop on return, rather than a single
// overwritten field).
type Parser struct {
	tokens  []token.Token
	i       int
	parsing []string
	// funcBodyDepth counts how many FuncDef/Implement bodies currently
	// enclose the cursor; a second "func"/"inline" keyword encountered
	// while this is > 0 is illegal nesting (spec.md §4.2).
	funcBodyDepth int
}

// New returns a Parser ready to walk 'tokens'.
func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse runs the recursive-descent pass over the whole token vector,
// returning the ordered list of top-level AST roots.
func Parse(tokens []token.Token) ([]ast.Node, error) {
	p := New(tokens)
	return p.ParseProgram()
}

// ParseProgram is the top-level loop: it calls parseStatement for every
// token position, advancing the cursor past each statement's last token.
func (p *Parser) ParseProgram() ([]ast.Node, error) {
	nodes := []ast.Node{}
	for p.i < len(p.tokens) {
		node, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
		p.i++
	}
	return nodes, nil
}

// ----------------------------------------------------------------------------
// Cursor helpers

func (p *Parser) atEOF() bool { return p.i >= len(p.tokens) }

func (p *Parser) cur() token.Token {
	if p.atEOF() {
		return token.Token{Kind: token.EOF}
	}
	return p.tokens[p.i]
}

// eofSpan returns a plausible span to attach to an EOF diagnostic: the
// last real token's span if there was one, zero value otherwise.
func (p *Parser) eofSpan() token.Span {
	if len(p.tokens) == 0 {
		return token.Span{}
	}
	return p.tokens[len(p.tokens)-1].Span
}

func (p *Parser) pushParsing(name string) { p.parsing = append(p.parsing, name) }
func (p *Parser) popParsing() {
	if len(p.parsing) > 0 {
		p.parsing = p.parsing[:len(p.parsing)-1]
	}
}

func (p *Parser) currentProduction() string {
	if len(p.parsing) == 0 {
		return "top-level"
	}
	return p.parsing[len(p.parsing)-1]
}

func (p *Parser) eofError() error {
	return fmt.Errorf("%s: Unexpected EOF while parsing %s", p.eofSpan(), p.currentProduction())
}

// consumeIdent validates the current token is an Identifier with one of the
// given contents (if any given; empty means "any identifier"), then
// advances the cursor past it — used for every token that is NOT the
// final token of the enclosing production.
func (p *Parser) consumeIdent(expected ...string) (token.Token, error) {
	if p.atEOF() {
		return token.Token{}, p.eofError()
	}
	tok := p.cur()
	if tok.Kind != token.Identifier {
		return token.Token{}, fmt.Errorf("%s: Unexpected %s, expected Identifier", tok.Span, tok.Kind)
	}
	if len(expected) > 0 && !tok.Is(expected...) {
		return token.Token{}, fmt.Errorf("%s: Unexpected identifier %q, expected one of %v", tok.Span, tok.Contents, expected)
	}
	p.i++
	return tok, nil
}

func (p *Parser) consumeInteger() (token.Token, error) {
	if p.atEOF() {
		return token.Token{}, p.eofError()
	}
	tok := p.cur()
	if tok.Kind != token.Integer {
		return token.Token{}, fmt.Errorf("%s: Unexpected %s, expected Integer", tok.Span, tok.Kind)
	}
	p.i++
	return tok, nil
}

func parseIntLiteral(tok token.Token) (int64, error) {
	v, err := strconv.ParseInt(tok.Contents, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid numeric literal %q", tok.Span, tok.Contents)
	}
	return v, nil
}

// ----------------------------------------------------------------------------
// Statement dispatch

func (p *Parser) parseStatement() (ast.Node, error) {
	if p.atEOF() {
		return nil, p.eofError()
	}
	tok := p.cur()

	switch tok.Kind {
	case token.Integer:
		v, err := parseIntLiteral(tok)
		if err != nil {
			return nil, err
		}
		return ast.Integer{Value: v, Span: tok.Span}, nil

	case token.String:
		return ast.String{Body: tok.Contents, Constant: tok.Extra == "c", Span: tok.Span}, nil

	case token.LSquare:
		return p.parseArray()

	case token.Ampersand:
		return p.parseAddr()

	case token.Identifier:
		if tok.Is(statementKeywords...) {
			return p.dispatchKeyword(tok.Contents)
		}
		return ast.Word{Name: tok.Contents, Span: tok.Span}, nil

	default:
		return nil, fmt.Errorf("%s: Unexpected %s", tok.Span, tok.Kind)
	}
}

func (p *Parser) dispatchKeyword(keyword string) (ast.Node, error) {
	switch keyword {
	case "func", "inline":
		return p.parseFuncDef()
	case "include":
		return p.parseInclude()
	case "asm":
		return p.parseAsm()
	case "if":
		return p.parseIf()
	case "while":
		return p.parseWhile()
	case "let":
		return p.parseLet()
	case "enable":
		return p.parseEnable()
	case "requires":
		return p.parseRequires()
	case "struct":
		return p.parseStruct()
	case "version":
		return p.parseVersion()
	case "const":
		return p.parseConst()
	case "enum":
		return p.parseEnum()
	case "restrict":
		return p.parseRestrict()
	case "union":
		return p.parseUnion()
	case "alias":
		return p.parseAlias()
	case "extern":
		return p.parseExtern()
	case "implement":
		return p.parseImplement()
	case "->":
		return p.parseSet()
	default:
		return nil, fmt.Errorf("%s: Unexpected keyword %q", p.cur().Span, keyword)
	}
}

// parseStatementsUntil repeatedly calls parseStatement, stopping (without
// consuming) once the cursor lands on an Identifier matching one of
// 'stops'. It is the building block for every "statements until KEYWORD"
// contract in spec.md §4.2 (FuncDef body, If/While bodies, Implement body).
func (p *Parser) parseStatementsUntil(stops ...string) ([]ast.Node, error) {
	nodes := []ast.Node{}
	for {
		if p.atEOF() {
			return nil, p.eofError()
		}
		if p.cur().Is(stops...) {
			return nodes, nil
		}
		node, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
		p.i++
	}
}

// ----------------------------------------------------------------------------
// Productions

func (p *Parser) parseFuncDef() (ast.Node, error) {
	if p.funcBodyDepth > 0 {
		return nil, fmt.Errorf("%s: a func may not be defined inside another func or implement body", p.cur().Span)
	}

	p.pushParsing("FuncDef")
	defer p.popParsing()

	start := p.cur().Span
	kw, err := p.consumeIdent("func", "inline")
	if err != nil {
		return nil, err
	}
	inline := kw.Contents == "inline"

	raw := false
	if p.cur().Is("raw") {
		if _, err := p.consumeIdent("raw"); err != nil {
			return nil, err
		}
		raw = true
	}

	nameTok, err := p.consumeIdent()
	if err != nil {
		return nil, err
	}

	params := []ast.Param{}
	for {
		if p.atEOF() {
			return nil, p.eofError()
		}
		if p.cur().Is("begin") {
			break
		}
		typeTok, err := p.consumeIdent()
		if err != nil {
			return nil, err
		}
		paramNameTok, err := p.consumeIdent()
		if err != nil {
			return nil, err
		}
		params = append(params, ast.Param{Type: typeTok.Contents, Name: paramNameTok.Contents})
	}
	if _, err := p.consumeIdent("begin"); err != nil {
		return nil, err
	}

	p.funcBodyDepth++
	body, err := p.parseStatementsUntil("end")
	p.funcBodyDepth--
	if err != nil {
		return nil, err
	}
	if !p.cur().Is("end") {
		return nil, p.eofError()
	}

	return ast.FuncDef{
		Name: nameTok.Contents, Inline: inline, Raw: raw,
		Params: params, Body: body, Span: spanRange(start, p.cur().Span),
	}, nil
}

func (p *Parser) parseInclude() (ast.Node, error) {
	p.pushParsing("Include")
	defer p.popParsing()

	start := p.cur().Span
	if _, err := p.consumeIdent("include"); err != nil {
		return nil, err
	}
	if p.atEOF() {
		return nil, p.eofError()
	}
	pathTok := p.cur()
	if pathTok.Kind != token.String && pathTok.Kind != token.Identifier {
		return nil, fmt.Errorf("%s: Unexpected %s, expected a path", pathTok.Span, pathTok.Kind)
	}
	return ast.Include{Path: pathTok.Contents, Span: spanRange(start, pathTok.Span)}, nil
}

func (p *Parser) parseAsm() (ast.Node, error) {
	p.pushParsing("Asm")
	defer p.popParsing()

	start := p.cur().Span
	if _, err := p.consumeIdent("asm"); err != nil {
		return nil, err
	}

	text := ""
	found := false
	for p.cur().Kind == token.String {
		text += p.cur().Contents
		found = true
		if p.i+1 < len(p.tokens) && p.tokens[p.i+1].Kind == token.String {
			p.i++
			continue
		}
		break
	}
	if !found {
		return nil, fmt.Errorf("%s: expected a string literal after 'asm'", p.cur().Span)
	}

	return ast.Asm{Text: text, Span: spanRange(start, p.cur().Span)}, nil
}

func (p *Parser) parseIf() (ast.Node, error) {
	p.pushParsing("If")
	defer p.popParsing()

	start := p.cur().Span
	if _, err := p.consumeIdent("if"); err != nil {
		return nil, err
	}

	clauses := []ast.IfClause{}
	for {
		cond, err := p.parseStatementsUntil("then")
		if err != nil {
			return nil, err
		}
		if _, err := p.consumeIdent("then"); err != nil {
			return nil, err
		}
		body, err := p.parseStatementsUntil("elseif", "else", "end")
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, ast.IfClause{Condition: cond, Body: body})

		if p.cur().Is("elseif") {
			if _, err := p.consumeIdent("elseif"); err != nil {
				return nil, err
			}
			continue
		}
		break
	}

	var elseBody []ast.Node
	if p.cur().Is("else") {
		if _, err := p.consumeIdent("else"); err != nil {
			return nil, err
		}
		body, err := p.parseStatementsUntil("end")
		if err != nil {
			return nil, err
		}
		elseBody = body
	}

	if !p.cur().Is("end") {
		return nil, p.eofError()
	}
	return ast.If{Clauses: clauses, Else: elseBody, Span: spanRange(start, p.cur().Span)}, nil
}

func (p *Parser) parseWhile() (ast.Node, error) {
	p.pushParsing("While")
	defer p.popParsing()

	start := p.cur().Span
	if _, err := p.consumeIdent("while"); err != nil {
		return nil, err
	}
	cond, err := p.parseStatementsUntil("do")
	if err != nil {
		return nil, err
	}
	if _, err := p.consumeIdent("do"); err != nil {
		return nil, err
	}
	body, err := p.parseStatementsUntil("end")
	if err != nil {
		return nil, err
	}
	if !p.cur().Is("end") {
		return nil, p.eofError()
	}
	return ast.While{Condition: cond, Body: body, Span: spanRange(start, p.cur().Span)}, nil
}

func (p *Parser) parseLet() (ast.Node, error) {
	p.pushParsing("Let")
	defer p.popParsing()

	start := p.cur().Span
	if _, err := p.consumeIdent("let"); err != nil {
		return nil, err
	}

	isArray := false
	var size int64
	if p.cur().Is("array") {
		if _, err := p.consumeIdent("array"); err != nil {
			return nil, err
		}
		sizeTok, err := p.consumeInteger()
		if err != nil {
			return nil, err
		}
		v, err := parseIntLiteral(sizeTok)
		if err != nil {
			return nil, err
		}
		isArray, size = true, v
	}

	typeTok, err := p.consumeIdent()
	if err != nil {
		return nil, err
	}
	if p.atEOF() {
		return nil, p.eofError()
	}
	nameTok := p.cur()
	if nameTok.Kind != token.Identifier {
		return nil, fmt.Errorf("%s: Unexpected %s, expected Identifier", nameTok.Span, nameTok.Kind)
	}

	return ast.Let{
		Type: typeTok.Contents, Name: nameTok.Contents,
		Array: isArray, ArraySize: size, Span: spanRange(start, nameTok.Span),
	}, nil
}

func (p *Parser) parseEnable() (ast.Node, error) {
	return p.parseFeatureRef("Enable", "enable", func(id string, span token.Span) ast.Node {
		return ast.Enable{Feature: id, Span: span}
	})
}

func (p *Parser) parseRequires() (ast.Node, error) {
	return p.parseFeatureRef("Requires", "requires", func(id string, span token.Span) ast.Node {
		return ast.Requires{Feature: id, Span: span}
	})
}

func (p *Parser) parseRestrict() (ast.Node, error) {
	return p.parseFeatureRef("Restrict", "restrict", func(id string, span token.Span) ast.Node {
		return ast.Restrict{Identifier: id, Span: span}
	})
}

// parseFeatureRef covers the shared "<keyword> <identifier>" shape of
// Enable/Requires/Restrict.
func (p *Parser) parseFeatureRef(production, keyword string, build func(string, token.Span) ast.Node) (ast.Node, error) {
	p.pushParsing(production)
	defer p.popParsing()

	start := p.cur().Span
	if _, err := p.consumeIdent(keyword); err != nil {
		return nil, err
	}
	if p.atEOF() {
		return nil, p.eofError()
	}
	idTok := p.cur()
	if idTok.Kind != token.Identifier {
		return nil, fmt.Errorf("%s: Unexpected %s, expected Identifier", idTok.Span, idTok.Kind)
	}
	return build(idTok.Contents, spanRange(start, idTok.Span)), nil
}

func (p *Parser) parseVersion() (ast.Node, error) {
	p.pushParsing("Version")
	defer p.popParsing()

	start := p.cur().Span
	if _, err := p.consumeIdent("version"); err != nil {
		return nil, err
	}

	not := false
	if p.cur().Is("not") {
		if _, err := p.consumeIdent("not"); err != nil {
			return nil, err
		}
		not = true
	}

	nameTok, err := p.consumeIdent()
	if err != nil {
		return nil, err
	}

	body, err := p.parseStatementsUntil("end")
	if err != nil {
		return nil, err
	}
	if !p.cur().Is("end") {
		return nil, p.eofError()
	}

	return ast.Version{Name: nameTok.Contents, Not: not, Body: body, Span: spanRange(start, p.cur().Span)}, nil
}

func (p *Parser) parseStruct() (ast.Node, error) {
	p.pushParsing("Struct")
	defer p.popParsing()

	start := p.cur().Span
	if _, err := p.consumeIdent("struct"); err != nil {
		return nil, err
	}
	nameTok, err := p.consumeIdent()
	if err != nil {
		return nil, err
	}

	parent := ""
	if p.cur().Is(":") {
		if _, err := p.consumeIdent(":"); err != nil {
			return nil, err
		}
		parentTok, err := p.consumeIdent()
		if err != nil {
			return nil, err
		}
		parent = parentTok.Contents
	}

	members := []ast.StructMember{}
	for {
		if p.atEOF() {
			return nil, p.eofError()
		}
		if p.cur().Is("end") {
			break
		}
		isArray := false
		var size int64
		if p.cur().Is("array") {
			if _, err := p.consumeIdent("array"); err != nil {
				return nil, err
			}
			sizeTok, err := p.consumeInteger()
			if err != nil {
				return nil, err
			}
			v, err := parseIntLiteral(sizeTok)
			if err != nil {
				return nil, err
			}
			isArray, size = true, v
		}
		typeTok, err := p.consumeIdent()
		if err != nil {
			return nil, err
		}
		memberNameTok, err := p.consumeIdent()
		if err != nil {
			return nil, err
		}
		members = append(members, ast.StructMember{Type: typeTok.Contents, Name: memberNameTok.Contents, Array: isArray, Size: size})
	}

	return ast.Struct{Name: nameTok.Contents, Parent: parent, Members: members, Span: spanRange(start, p.cur().Span)}, nil
}

func (p *Parser) parseConst() (ast.Node, error) {
	p.pushParsing("Const")
	defer p.popParsing()

	start := p.cur().Span
	if _, err := p.consumeIdent("const"); err != nil {
		return nil, err
	}
	nameTok, err := p.consumeIdent()
	if err != nil {
		return nil, err
	}
	valTok, err := p.consumeInteger()
	if err != nil {
		return nil, err
	}
	v, err := parseIntLiteral(valTok)
	if err != nil {
		return nil, err
	}

	return ast.Const{Name: nameTok.Contents, Value: v, Span: spanRange(start, valTok.Span)}, nil
}

func (p *Parser) parseEnum() (ast.Node, error) {
	p.pushParsing("Enum")
	defer p.popParsing()

	start := p.cur().Span
	if _, err := p.consumeIdent("enum"); err != nil {
		return nil, err
	}
	nameTok, err := p.consumeIdent()
	if err != nil {
		return nil, err
	}

	base := "cell"
	if p.cur().Is(":") {
		if _, err := p.consumeIdent(":"); err != nil {
			return nil, err
		}
		baseTok, err := p.consumeIdent()
		if err != nil {
			return nil, err
		}
		base = baseTok.Contents
	}

	members := []ast.EnumMember{}
	var prev int64 = -1
	for {
		if p.atEOF() {
			return nil, p.eofError()
		}
		if p.cur().Is("end") {
			break
		}
		memberNameTok, err := p.consumeIdent()
		if err != nil {
			return nil, err
		}
		value := prev + 1
		if p.cur().Is("=") {
			if _, err := p.consumeIdent("="); err != nil {
				return nil, err
			}
			valTok, err := p.consumeInteger()
			if err != nil {
				return nil, err
			}
			v, err := parseIntLiteral(valTok)
			if err != nil {
				return nil, err
			}
			value = v
		}
		members = append(members, ast.EnumMember{Name: memberNameTok.Contents, Value: value})
		prev = value
	}

	return ast.Enum{Name: nameTok.Contents, BaseType: base, Members: members, Span: spanRange(start, p.cur().Span)}, nil
}

func (p *Parser) parseUnion() (ast.Node, error) {
	p.pushParsing("Union")
	defer p.popParsing()

	start := p.cur().Span
	if _, err := p.consumeIdent("union"); err != nil {
		return nil, err
	}
	nameTok, err := p.consumeIdent()
	if err != nil {
		return nil, err
	}

	members := []string{}
	for {
		if p.atEOF() {
			return nil, p.eofError()
		}
		if p.cur().Is("end") {
			break
		}
		memberTok, err := p.consumeIdent()
		if err != nil {
			return nil, err
		}
		members = append(members, memberTok.Contents)
	}

	return ast.Union{Name: nameTok.Contents, Members: members, Span: spanRange(start, p.cur().Span)}, nil
}

func (p *Parser) parseAlias() (ast.Node, error) {
	p.pushParsing("Alias")
	defer p.popParsing()

	start := p.cur().Span
	if _, err := p.consumeIdent("alias"); err != nil {
		return nil, err
	}

	overwrite := false
	if p.cur().Is("overwrite") {
		if _, err := p.consumeIdent("overwrite"); err != nil {
			return nil, err
		}
		overwrite = true
	}

	toTok, err := p.consumeIdent()
	if err != nil {
		return nil, err
	}
	if p.atEOF() {
		return nil, p.eofError()
	}
	fromTok := p.cur()
	if fromTok.Kind != token.Identifier {
		return nil, fmt.Errorf("%s: Unexpected %s, expected Identifier", fromTok.Span, fromTok.Kind)
	}

	return ast.Alias{To: toTok.Contents, From: fromTok.Contents, Overwrite: overwrite, Span: spanRange(start, fromTok.Span)}, nil
}

func (p *Parser) parseExtern() (ast.Node, error) {
	p.pushParsing("Extern")
	defer p.popParsing()

	start := p.cur().Span
	if _, err := p.consumeIdent("extern"); err != nil {
		return nil, err
	}

	if p.cur().Is("raw") {
		if _, err := p.consumeIdent("raw"); err != nil {
			return nil, err
		}
		nameTok, err := p.consumeIdent()
		if err != nil {
			return nil, err
		}
		return ast.Extern{Name: nameTok.Contents, Kind: ast.ExternRaw, Span: spanRange(start, nameTok.Span)}, nil
	}

	if p.cur().Is("C") {
		if _, err := p.consumeIdent("C"); err != nil {
			return nil, err
		}
		retTok, err := p.consumeIdent()
		if err != nil {
			return nil, err
		}
		nameTok, err := p.consumeIdent()
		if err != nil {
			return nil, err
		}
		params := []string{}
		for {
			if p.atEOF() {
				return nil, p.eofError()
			}
			if p.cur().Is("end") {
				break
			}
			paramTok, err := p.consumeIdent()
			if err != nil {
				return nil, err
			}
			params = append(params, paramTok.Contents)
		}
		return ast.Extern{
			Name: nameTok.Contents, Kind: ast.ExternC, ReturnType: retTok.Contents,
			ParamTypes: params, Span: spanRange(start, p.cur().Span),
		}, nil
	}

	nameTok, err := p.consumeIdent()
	if err != nil {
		return nil, err
	}
	return ast.Extern{Name: nameTok.Contents, Kind: ast.ExternNative, Span: spanRange(start, nameTok.Span)}, nil
}

func (p *Parser) parseImplement() (ast.Node, error) {
	p.pushParsing("Implement")
	defer p.popParsing()

	start := p.cur().Span
	if _, err := p.consumeIdent("implement"); err != nil {
		return nil, err
	}
	structTok, err := p.consumeIdent()
	if err != nil {
		return nil, err
	}
	methodTok, err := p.consumeIdent()
	if err != nil {
		return nil, err
	}

	p.funcBodyDepth++
	body, err := p.parseStatementsUntil("end")
	p.funcBodyDepth--
	if err != nil {
		return nil, err
	}
	if !p.cur().Is("end") {
		return nil, p.eofError()
	}

	return ast.Implement{
		Struct: structTok.Contents, Method: methodTok.Contents,
		Body: body, Span: spanRange(start, p.cur().Span),
	}, nil
}

func (p *Parser) parseSet() (ast.Node, error) {
	p.pushParsing("Set")
	defer p.popParsing()

	start := p.cur().Span
	if _, err := p.consumeIdent("->"); err != nil {
		return nil, err
	}
	if p.atEOF() {
		return nil, p.eofError()
	}
	varTok := p.cur()
	if varTok.Kind != token.Identifier {
		return nil, fmt.Errorf("%s: Unexpected %s, expected Identifier", varTok.Span, varTok.Kind)
	}
	return ast.Set{Variable: varTok.Contents, Span: spanRange(start, varTok.Span)}, nil
}

func (p *Parser) parseArray() (ast.Node, error) {
	p.pushParsing("Array")
	defer p.popParsing()

	start := p.cur().Span
	if p.atEOF() || p.cur().Kind != token.LSquare {
		return nil, fmt.Errorf("%s: Unexpected %s, expected '['", p.cur().Span, p.cur().Kind)
	}
	p.i++ // consume '['

	constant := false
	if p.cur().Is("c") {
		if _, err := p.consumeIdent("c"); err != nil {
			return nil, err
		}
		constant = true
	}

	elemTypeTok, err := p.consumeIdent()
	if err != nil {
		return nil, err
	}

	elements := []ast.Node{}
	for {
		if p.atEOF() {
			return nil, p.eofError()
		}
		if p.cur().Kind == token.RSquare {
			break
		}
		elem, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		elements = append(elements, elem)
		p.i++
	}

	return ast.Array{
		ElementType: elemTypeTok.Contents, Elements: elements,
		Constant: constant, Span: spanRange(start, p.cur().Span),
	}, nil
}

func (p *Parser) parseAddr() (ast.Node, error) {
	p.pushParsing("Addr")
	defer p.popParsing()

	start := p.cur().Span
	if p.atEOF() || p.cur().Kind != token.Ampersand {
		return nil, fmt.Errorf("%s: Unexpected %s, expected '&'", p.cur().Span, p.cur().Kind)
	}
	p.i++ // consume '&'

	if p.atEOF() {
		return nil, p.eofError()
	}
	targetTok := p.cur()
	if targetTok.Kind != token.Identifier {
		return nil, fmt.Errorf("%s: Unexpected %s, expected Identifier", targetTok.Span, targetTok.Kind)
	}
	return ast.Addr{Target: targetTok.Contents, Span: spanRange(start, targetTok.Span)}, nil
}

// spanRange combines a production's opening and closing spans into one
// span covering the whole construct, attributed to the opening position.
func spanRange(start, end token.Span) token.Span {
	length := end.Length
	if start.Line == end.Line {
		length = (end.Column - start.Column) + end.Length
	}
	return token.Span{File: start.File, Line: start.Line, Column: start.Column, Length: length}
}
