package lower

// Backend is the lowering core's only extension point: one object per
// target machine, implementing every emitter the lowering traversal needs
// plus the handful of whole-compile hooks. The lowering core (Lowerer)
// owns every symbol table and all offset/size/mangling arithmetic; Backend
// methods receive already-resolved facts and only emit instructions, the
// way pkg/hack/codegen.go's CodeGenerator translates an already-classified
// Instruction without itself deciding addressing modes.
//
// Several methods take a 'body func() error' continuation: the backend
// emits whatever prologue it needs, invokes the continuation exactly once
// to let the lowering core recurse into the construct's children (which
// may themselves call back into other Backend methods), then emits its
// epilogue. This mirrors the enter/recurse/exit shape of a classic visitor
// without requiring Backend to hold any AST or symbol-table state itself.
type Backend interface {
	// Init emits the runtime preamble (virtual stack-pointer setup, reset
	// vector, jump to the main entry point).
	Init() error
	// BeginMain opens the calmain entry section; subsequent top-level
	// statement emissions land inside it until End.
	BeginMain() error
	// End closes calmain (destructor calls for every global with
	// hasDeinit, then a return) and emits the data segments: globals,
	// realised arrays, and their metadata blocks.
	End(globals []GlobalInfo, arrays []ArrayInfo) error

	// GetVersions reports the feature/version tags this backend declares,
	// consulted by Version/Enable/Requires/Restrict.
	GetVersions() []string
	// MaxInt is the largest Integer literal value this backend accepts.
	MaxInt() int64
	// DefaultHeader is prefixed verbatim to the emitted output.
	DefaultHeader() string
	// HandleOption processes one backend-specific CLI option (name=value);
	// reports whether it recognised the option.
	HandleOption(name, value string) bool
	// FinalCommands lists, in order, the shell invocations (assembler,
	// linker, ...) the driver should run after emission.
	FinalCommands() []string
	// NewConst registers an additional integer constant the backend
	// itself wants visible to the program (e.g. a platform-defined size).
	NewConst(name string, value int64) error

	CompileWord(ref WordRef) error
	CompileInteger(value int64) error
	// CompileCall emits a call to 'symbol'; raw calls use the literal
	// symbol with no further mangling applied by the backend.
	CompileCall(symbol string, raw bool) error

	CompileFuncDef(info FuncDefInfo, body func() error) error
	CompileIf(id int, clauses []IfClauseInfo, hasElse bool, elseBody func() error) error
	CompileWhile(id int, condition func() error, body func() error) error
	CompileLet(v LocalVar) error
	CompileArray(info ArrayInfo) error
	CompileString(info ArrayInfo) error
	CompileStruct(info StructInfo) error
	CompileConst(name string, value int64) error
	CompileEnum(info EnumInfo) error
	CompileUnion(info UnionInfo) error
	CompileAlias(to, from string) error
	CompileExtern(info ExternInfo) error
	CompileAddr(ref AddrRef) error
	CompileImplement(info ImplementInfo, body func() error) error
	CompileSet(ref WordRef) error
	CompileReturn(cleanup ScopeCleanup) error
	CompileBreak(loopID int) error
	CompileContinue(loopID int) error
	// CompileAsm emits raw assembly text verbatim. Not part of spec.md
	// §4.3's explicit Backend method list, but Asm is a full AST variant
	// (§3) that must reach the backend somehow.
	CompileAsm(text string) error
	// CompileScopeExit emits a non-function-exit scope teardown (an
	// if-branch, while-body, implement body, or the top-level calmain
	// block ending): deinit calls for 'cleanup.Locals' followed by a
	// single VSP release of 'cleanup.TotalSize'. Distinct from
	// CompileReturn, which additionally emits the machine return.
	CompileScopeExit(cleanup ScopeCleanup) error
}

// WordKind classifies a resolved Word/Set/Addr target.
type WordKind int

const (
	WordLocal WordKind = iota
	WordGlobal
	WordConst
)

// WordRef is the lowering core's resolution of a bare identifier: which of
// local/global/const it names, and the facts the backend needs to emit a
// load, store, or address-of for it.
type WordRef struct {
	Kind   WordKind
	Name   string
	Offset int   // WordLocal: offset from VSP
	Size   int   // WordLocal/WordGlobal: load/store width in bytes
	Symbol string // WordGlobal: the global's emitted symbol
	Value  int64  // WordConst: the captured integer
}

// AddrRef is the resolution of an Addr node's target: the same three kinds
// as WordRef, minus WordConst (taking a constant's address is an error,
// rejected before AddrRef is constructed).
type AddrRef = WordRef

// ParamInfo is one parameter slot in a function's frame.
type ParamInfo struct {
	Name   string
	Type   string
	Offset int
	Size   int
}

// FuncDefInfo carries everything CompileFuncDef needs to emit a symbol and
// prologue for a raw or regular function definition (never called for
// inline functions, which never reach the backend).
type FuncDefInfo struct {
	Name          string
	MangledSymbol string
	Raw           bool
	Params        []ParamInfo
	FrameSize     int // paramCount * cellSize, the VSP decrement for the frame
}

// IfClauseInfo is one (condition, body) pair of an If chain; both
// continuations recurse into the lowering core when invoked.
type IfClauseInfo struct {
	Condition func() error
	Body      func() error
}

// LocalVar describes one local slot as CompileLet must materialise it.
type LocalVar struct {
	Name        string
	Type        string
	Offset      int
	Size        int // total slot size, including the 6-byte array header when Array
	Array       bool
	ArraySize   int64
	ElementSize int
	InitSymbol  string // "" unless the type has hasInit
}

// CleanupVar is one local a closing scope must run a deinit hook for.
// Distinct from LocalVar: LocalVar.InitSymbol is consulted at Let time,
// DeinitSymbol here is consulted when the scope holding it closes.
type CleanupVar struct {
	Name         string
	Type         string
	Offset       int
	Size         int
	DeinitSymbol string
}

// ScopeCleanup lists the locals a closing scope must run deinit hooks for,
// most-recently-declared first, plus the total byte size to release from VSP.
type ScopeCleanup struct {
	Locals    []CleanupVar // only those whose type has hasDeinit
	TotalSize int
}

// GlobalInfo describes one global for End's data-segment emission.
type GlobalInfo struct {
	Name         string
	Symbol       string
	Type         string
	Size         int
	Array        bool
	ArraySize    int64
	DeinitSymbol string // "" unless the type has hasDeinit
}

// ArrayInfo describes one realised array (global or local, literal or
// desugared from a String) for CompileArray/CompileString/End.
type ArrayInfo struct {
	Ordinal     int
	ElementType string
	ElementSize int
	Elements    []int64
	Global      bool
	Constant    bool
	Symbol      string // "array_<n>" once realised
	MetaSymbol  string // "array_<n>_meta" once realised
}

// StructFieldInfo is one laid-out struct member.
type StructFieldInfo struct {
	Name   string
	Type   string
	Offset int
	Size   int
	Array  bool
	Count  int64
}

// StructInfo describes a fully laid out struct type.
type StructInfo struct {
	Name      string
	Parent    string
	SizeBytes int
	Fields    []StructFieldInfo
}

// EnumMemberInfo is one resolved enum member.
type EnumMemberInfo struct {
	Name  string
	Value int64
}

// EnumInfo describes a fully resolved enum type.
type EnumInfo struct {
	Name      string
	BaseType  string
	SizeBytes int
	Members   []EnumMemberInfo
	Min, Max  int64
}

// UnionInfo describes a fully resolved union type.
type UnionInfo struct {
	Name      string
	SizeBytes int
	Members   []string
}

// ExternInfo describes a registered extern word.
type ExternInfo struct {
	Name       string
	Kind       string // "native", "raw", "C"
	ReturnType string
	ParamTypes []string
	Symbol     string
}

// ImplementInfo names the (struct, method) pair an Implement block attaches to.
type ImplementInfo struct {
	Struct string
	Method string // "init" or "deinit"
}
