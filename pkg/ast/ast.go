// Package ast defines Callisto's abstract syntax tree: a closed set of
// node variants produced by the parser and never mutated afterwards.
//
// Following the teacher's jack.Statement/jack.Expression convention
// (pkg/jack/jack.go), each macro-category of node shares a marker
// interface; unlike jack's this one is sealed (the marker method is
// unexported) since spec.md requires AST to be a closed variant set with
// no room for external implementers, and every variant also satisfies
// Node so the lowerer can grab its Span without a type switch.
package ast

import "github.com/callisto-lang/callisto/pkg/token"

// Node is satisfied by every AST variant. The unexported astNode method
// seals the set: only types declared in this package can implement it.
type Node interface {
	GetSpan() token.Span
	astNode()
}

// ----------------------------------------------------------------------------
// Values

// Word is a bare identifier: a function call, variable load or constant
// push, disambiguated only at lowering time (spec.md §4.3 word resolution).
type Word struct {
	Name string
	Span token.Span
}

// Integer is a signed 64-bit literal.
type Integer struct {
	Value int64
	Span  token.Span
}

// String desugars to an Array of u8 at lowering time but is kept as its
// own node through parsing so the 'constant'/prefix-tag distinction and
// the source span survive intact.
type String struct {
	Body     string
	Constant bool
	Span     token.Span
}

// Array is a literal sequence of same-type elements. The parser accepts any
// statement as an element; lowering (not parsing, since the parser has no
// type information yet) rejects every element that is not an Integer.
type Array struct {
	ElementType string
	Elements    []Node
	Constant    bool
	Span        token.Span
}

func (n Word) GetSpan() token.Span    { return n.Span }
func (n Integer) GetSpan() token.Span { return n.Span }
func (n String) GetSpan() token.Span  { return n.Span }
func (n Array) GetSpan() token.Span   { return n.Span }
func (Word) astNode()                 {}
func (Integer) astNode()              {}
func (String) astNode()               {}
func (Array) astNode()                {}

// ----------------------------------------------------------------------------
// Definitions

// Param is one (type, name) pair in a FuncDef's parameter list.
type Param struct {
	Type string
	Name string
}

// FuncDef declares a function. Inline and Raw are mutually exclusive
// (spec.md invariant); a FuncDef may never nest inside another FuncDef's
// Body (enforced by the parser, not representable here).
type FuncDef struct {
	Name   string
	Inline bool
	Raw    bool
	Params []Param
	Body   []Node
	Span   token.Span
}

// Include names a source file to be spliced in by an external collaborator
// (the driver); the lowering core treats it as opaque.
type Include struct {
	Path string
	Span token.Span
}

// Asm carries raw assembly text accumulated from one or more adjacent
// string tokens, emitted verbatim by the backend.
type Asm struct {
	Text string
	Span token.Span
}

func (n FuncDef) GetSpan() token.Span { return n.Span }
func (n Include) GetSpan() token.Span { return n.Span }
func (n Asm) GetSpan() token.Span     { return n.Span }
func (FuncDef) astNode()              {}
func (Include) astNode()              {}
func (Asm) astNode()                  {}

// ----------------------------------------------------------------------------
// Control flow

// IfClause is one (condition, then-body) pair; If.Clauses is non-empty
// (spec.md invariant: If.condition.length == If.doIf.length >= 1, read
// per-clause here), while a single clause's Condition or Body may be empty.
type IfClause struct {
	Condition []Node
	Body      []Node
}

// If models the full if/elseif*/else?/end chain as an ordered list of
// clauses plus an optional else body.
type If struct {
	Clauses []IfClause
	Else    []Node // nil if no else arm
	Span    token.Span
}

// While is a pre-tested loop: Condition runs before every iteration of Body.
type While struct {
	Condition []Node
	Body      []Node
	Span      token.Span
}

func (n If) GetSpan() token.Span    { return n.Span }
func (n While) GetSpan() token.Span { return n.Span }
func (If) astNode()                 {}
func (While) astNode()              {}

// ----------------------------------------------------------------------------
// Variables, constants, types

// Let declares a new local variable in the enclosing scope, optionally as
// an array of ArraySize elements.
type Let struct {
	Type      string
	Name      string
	Array     bool
	ArraySize int64
	Span      token.Span
}

// Const declares a compile-time integer constant.
type Const struct {
	Name  string
	Value int64
	Span  token.Span
}

// EnumMember is one (name, value) pair of an Enum; Value is always
// resolved by the parser (implicit values auto-increment from 0 or from
// the previous member's value, spec.md §4.2).
type EnumMember struct {
	Name  string
	Value int64
}

// Enum declares a new type that aliases BaseType's size (defaulting to
// "cell" when omitted) and a set of named integer members.
type Enum struct {
	Name     string
	BaseType string
	Members  []EnumMember
	Span     token.Span
}

// StructMember is one field of a Struct, optionally an inline array.
type StructMember struct {
	Type  string
	Name  string
	Array bool
	Size  int64
}

// Struct declares a structural type, optionally inheriting a Parent's
// members (which are laid out first, in the parent's declared order).
type Struct struct {
	Name    string
	Parent  string // "" if no parent
	Members []StructMember
	Span    token.Span
}

// Union declares a type whose size is the max of its member types' sizes;
// duplicate member types are rejected at lowering, not here.
type Union struct {
	Name    string
	Members []string
	Span    token.Span
}

// Alias copies an existing type record under a new name. Overwrite permits
// replacing an existing name; otherwise a name collision is a lowering error.
type Alias struct {
	To        string
	From      string
	Overwrite bool
	Span      token.Span
}

func (n Let) GetSpan() token.Span    { return n.Span }
func (n Const) GetSpan() token.Span  { return n.Span }
func (n Enum) GetSpan() token.Span   { return n.Span }
func (n Struct) GetSpan() token.Span { return n.Span }
func (n Union) GetSpan() token.Span  { return n.Span }
func (n Alias) GetSpan() token.Span  { return n.Span }
func (Let) astNode()                 {}
func (Const) astNode()               {}
func (Enum) astNode()                {}
func (Struct) astNode()              {}
func (Union) astNode()               {}
func (Alias) astNode()               {}

// ----------------------------------------------------------------------------
// Feature flags

// Enable turns on an optional backend feature/version identifier for the
// remainder of the translation unit.
type Enable struct {
	Feature string
	Span    token.Span
}

// Requires aborts lowering unless the named feature/version is available
// on the selected backend.
type Requires struct {
	Feature string
	Span    token.Span
}

// Version guards its Body on whether 'Name' is (or, if Not, is not) one of
// the backend's declared feature tags.
type Version struct {
	Name string
	Not  bool
	Body []Node
	Span token.Span
}

// Restrict forbids use of 'Identifier' as a name for the rest of the unit;
// a language-policy level block distinct from the reserved word list.
type Restrict struct {
	Identifier string
	Span       token.Span
}

func (n Enable) GetSpan() token.Span   { return n.Span }
func (n Requires) GetSpan() token.Span { return n.Span }
func (n Version) GetSpan() token.Span  { return n.Span }
func (n Restrict) GetSpan() token.Span { return n.Span }
func (Enable) astNode()                {}
func (Requires) astNode()              {}
func (Version) astNode()               {}
func (Restrict) astNode()              {}

// ----------------------------------------------------------------------------
// Externs, addresses, implement blocks, assignment

// ExternKind distinguishes how an extern'd function's symbol/ABI is
// treated (spec.md §3/§4.3).
type ExternKind int

const (
	ExternNative ExternKind = iota // default: mangled symbol, normal calling convention
	ExternRaw                      // literal symbol, no mangling
	ExternC                        // foreign C ABI, carries a return type + param types
)

func (k ExternKind) String() string {
	switch k {
	case ExternRaw:
		return "raw"
	case ExternC:
		return "C"
	default:
		return "native"
	}
}

// Extern registers a word implemented outside the translation unit. For
// ExternC, ReturnType and ParamTypes describe the foreign signature;
// they're empty/zero for the other two kinds.
type Extern struct {
	Name       string
	Kind       ExternKind
	ReturnType string
	ParamTypes []string
	Span       token.Span
}

// Addr takes the address of a local or global variable. A constant is a
// lowering-time error, and so is a function name: lowering does not
// resolve Addr targets against the words table.
type Addr struct {
	Target string
	Span   token.Span
}

// Implement attaches an 'init' or 'deinit' method to a previously declared
// struct; FuncDef may not nest inside Body (parser-enforced).
type Implement struct {
	Struct string
	Method string // "init" or "deinit"
	Body   []Node
	Span   token.Span
}

// Set assigns the value on top of the (conceptual) data stack into the
// named variable.
type Set struct {
	Variable string
	Span     token.Span
}

func (n Extern) GetSpan() token.Span    { return n.Span }
func (n Addr) GetSpan() token.Span      { return n.Span }
func (n Implement) GetSpan() token.Span { return n.Span }
func (n Set) GetSpan() token.Span       { return n.Span }
func (Extern) astNode()                 {}
func (Addr) astNode()                   {}
func (Implement) astNode()              {}
func (Set) astNode()                    {}
