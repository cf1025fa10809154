// Package lower implements Callisto's backend-agnostic lowering core: it
// walks the AST produced by pkg/parser, owns every symbol table (types,
// words, the local-variable stack, globals, consts, realised arrays), and
// drives a Backend through the emission interface declared in backend.go.
//
// Grounded on the teacher's pkg/jack/lowering.go + pkg/jack/scopes.go (the
// Lowerer-owns-scopes shape, a single mutable walker with push/pop scope
// helpers) and pkg/asm/lowering.go (the two-pass symbol-then-emit split),
// generalised from a fixed Jack/VM pipeline to an arbitrary pluggable
// Backend.
package lower

import (
	"fmt"

	"github.com/callisto-lang/callisto/pkg/ast"
	"github.com/callisto-lang/callisto/pkg/cstack"
	"github.com/callisto-lang/callisto/pkg/policy"
	"github.com/callisto-lang/callisto/pkg/token"
)

// CompileError wraps a lowering failure with the source span it occurred
// at, following the teacher's practice (pkg/jack/lowering.go) of attaching
// position information to every reported error rather than returning bare
// fmt.Errorf strings.
type CompileError struct {
	Span token.Span
	Err  error
}

func (e *CompileError) Error() string { return fmt.Sprintf("%s: %s", e.Span, e.Err) }
func (e *CompileError) Unwrap() error { return e.Err }

func errorf(span token.Span, format string, args ...any) error {
	return &CompileError{Span: span, Err: fmt.Errorf(format, args...)}
}

// Lowerer walks a parsed program once, maintaining every symbol table
// spec.md §3 assigns to it, and calls into a single Backend to emit code.
type Lowerer struct {
	backend Backend

	types cstack.OrderedMap[string, TypeRecord]
	words map[string]WordRecord

	variables cstack.Stack[Variable]
	globals   cstack.OrderedMap[string, GlobalRecord]
	consts    cstack.OrderedMap[string, ConstRecord]
	arrays    []RealisedArray

	implemented map[string]bool // "<struct>.<method>" already attached
	enabled     map[string]bool // feature tags turned on by Enable

	inFuncBody bool
	inWhile    bool
	loopStack  []int // nested While ids, innermost last

	blockCounter int // monotonic id source for If/While/array ordinals

	thisFunc          string
	funcEntrySnapshot []Variable
}

// New builds a Lowerer targeting 'backend', with the primitive type table
// pre-seeded (spec.md §3: "types" starts containing the built-ins before
// any user declaration is processed).
func New(backend Backend) *Lowerer {
	return &Lowerer{
		backend:     backend,
		types:       primitiveTypes(),
		words:       map[string]WordRecord{},
		globals:     cstack.NewOrderedMap[string, GlobalRecord](),
		consts:      cstack.NewOrderedMap[string, ConstRecord](),
		implemented: map[string]bool{},
		enabled:     map[string]bool{},
	}
}

// Compile lowers an entire parsed program: Init, then every top-level
// statement inside BeginMain/End, in source order (spec.md §4.1).
func Compile(backend Backend, nodes []ast.Node) error {
	return New(backend).Compile(nodes)
}

func (l *Lowerer) Compile(nodes []ast.Node) error {
	if err := l.backend.Init(); err != nil {
		return err
	}
	if err := l.backend.BeginMain(); err != nil {
		return err
	}

	entry := l.variables.Snapshot()
	for _, n := range nodes {
		if err := l.compileNode(n); err != nil {
			return err
		}
	}
	cleanup := l.computeCleanup(entry)
	if err := l.backend.CompileScopeExit(cleanup); err != nil {
		return err
	}

	globalInfos := make([]GlobalInfo, 0, l.globals.Size())
	for _, e := range l.globals.Entries() {
		g := e.Value
		deinit := ""
		if t, ok := l.types.Get(g.Type); ok && t.HasDeinit {
			deinit = fmt.Sprintf("type_deinit_%s", mangle(g.Type))
		}
		globalInfos = append(globalInfos, GlobalInfo{
			Name: g.Name, Symbol: g.Symbol, Type: g.Type, Size: g.Size,
			Array: g.Array, ArraySize: g.ArraySize, DeinitSymbol: deinit,
		})
	}
	arrayInfos := make([]ArrayInfo, 0, len(l.arrays))
	for _, a := range l.arrays {
		arrayInfos = append(arrayInfos, l.arrayInfo(a))
	}
	return l.backend.End(globalInfos, arrayInfos)
}

func mangle(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
			for _, h := range fmt.Sprintf("%04x", r) {
				out = append(out, h)
			}
			out = append(out, '_')
		}
	}
	return string(out)
}

func (l *Lowerer) arrayInfo(a RealisedArray) ArrayInfo {
	return ArrayInfo{
		Ordinal: a.Ordinal, ElementType: a.ElementType, ElementSize: a.ElementSize,
		Elements: a.Elements, Global: a.Global, Constant: a.Constant,
		Symbol:     fmt.Sprintf("array_%d", a.Ordinal),
		MetaSymbol: fmt.Sprintf("array_%d_meta", a.Ordinal),
	}
}

// compileNode dispatches a single statement to its compile* method.
func (l *Lowerer) compileNode(n ast.Node) error {
	switch v := n.(type) {
	case ast.Word:
		return l.compileWordNode(v)
	case ast.Integer:
		if v.Value > l.backend.MaxInt() {
			return errorf(v.Span, "integer literal %d exceeds backend's maximum of %d", v.Value, l.backend.MaxInt())
		}
		return l.backend.CompileInteger(v.Value)
	case ast.String:
		return l.compileString(v)
	case ast.Array:
		return l.compileArray(v)
	case ast.FuncDef:
		return l.compileFuncDef(v)
	case ast.Include:
		// Splicing included source is the driver's responsibility; by the
		// time nodes reach the lowerer, Include has already been resolved
		// or intentionally left as a no-op marker.
		return nil
	case ast.Asm:
		return l.backend.CompileAsm(v.Text)
	case ast.If:
		return l.compileIf(v)
	case ast.While:
		return l.compileWhile(v)
	case ast.Let:
		return l.compileLet(v)
	case ast.Const:
		return l.compileConst(v)
	case ast.Enum:
		return l.compileEnum(v)
	case ast.Struct:
		return l.compileStruct(v)
	case ast.Union:
		return l.compileUnion(v)
	case ast.Alias:
		return l.compileAlias(v)
	case ast.Enable:
		l.enabled[v.Feature] = true
		return nil
	case ast.Requires:
		if !l.featureAvailable(v.Feature) {
			return errorf(v.Span, "backend does not provide required feature %q", v.Feature)
		}
		return nil
	case ast.Version:
		has := l.featureAvailable(v.Name)
		if v.Not {
			has = !has
		}
		if !has {
			return nil
		}
		for _, stmt := range v.Body {
			if err := l.compileNode(stmt); err != nil {
				return err
			}
		}
		return nil
	case ast.Restrict:
		policy.ReservedWords[v.Identifier] = true
		return nil
	case ast.Extern:
		return l.compileExtern(v)
	case ast.Addr:
		return l.compileAddrNode(v)
	case ast.Implement:
		return l.compileImplement(v)
	case ast.Set:
		return l.compileSet(v)
	default:
		return errorf(n.GetSpan(), "unhandled node type %T", n)
	}
}

// featureAvailable reports whether 'tag' is live: either Enable'd in this
// unit, or declared by the backend's own GetVersions().
func (l *Lowerer) featureAvailable(tag string) bool {
	if l.enabled[tag] {
		return true
	}
	for _, v := range l.backend.GetVersions() {
		if v == tag {
			return true
		}
	}
	return false
}

// ----------------------------------------------------------------------------
// Word resolution (spec.md §4.3): known word -> local -> global -> const -> error.

func (l *Lowerer) compileWordNode(w ast.Word) error {
	switch w.Name {
	case "return":
		return l.compileReturnWord(w)
	case "break":
		return l.compileBreakWord(w)
	case "continue":
		return l.compileContinueWord(w)
	}

	if rec, ok := l.words[w.Name]; ok {
		if rec.Inline {
			for _, stmt := range rec.InlineBody {
				if err := l.compileNode(stmt); err != nil {
					return err
				}
			}
			return nil
		}
		return l.backend.CompileCall(rec.MangledSymbol, rec.Raw)
	}

	if v, ok := l.findLocal(w.Name); ok {
		if err := l.checkScalarType(v.Type, w.Span); err != nil {
			return err
		}
		return l.backend.CompileWord(WordRef{Kind: WordLocal, Name: w.Name, Offset: v.Offset, Size: v.Size})
	}
	if g, ok := l.globals.Get(w.Name); ok {
		if err := l.checkScalarType(g.Type, w.Span); err != nil {
			return err
		}
		return l.backend.CompileWord(WordRef{Kind: WordGlobal, Name: w.Name, Symbol: g.Symbol, Size: g.Size})
	}
	if c, ok := l.consts.Get(w.Name); ok {
		return l.backend.CompileWord(WordRef{Kind: WordConst, Name: w.Name, Value: c.Value})
	}
	return errorf(w.Span, "undefined identifier %q", w.Name)
}

// checkScalarType rejects a struct-typed local/global used where a scalar
// value is required (spec.md §7's "struct value used where a scalar is
// required"), and rejects any non-struct type whose size isn't a load/store
// width the backend understands (spec.md §7's "invalid size load"; UXN's
// emitLoad/emitStore only know 1-byte and 2-byte widths).
func (l *Lowerer) checkScalarType(typeName string, span token.Span) error {
	t, ok := l.types.Get(typeName)
	if !ok {
		return nil
	}
	if t.IsStruct {
		return errorf(span, "struct value %q used where a scalar is required", typeName)
	}
	if t.SizeBytes != 1 && t.SizeBytes != 2 {
		return errorf(span, "invalid size load: type %q has size %d", typeName, t.SizeBytes)
	}
	return nil
}

func (l *Lowerer) findLocal(name string) (Variable, bool) {
	slice := l.variables.Slice()
	for i := len(slice) - 1; i >= 0; i-- {
		if slice[i].Name == name {
			return slice[i], true
		}
	}
	return Variable{}, false
}

func (l *Lowerer) compileReturnWord(w ast.Word) error {
	if !l.inFuncBody {
		return errorf(w.Span, "return used outside a function body")
	}
	return l.backend.CompileReturn(l.computeCleanup(l.funcEntrySnapshot))
}

func (l *Lowerer) compileBreakWord(w ast.Word) error {
	if !l.inWhile {
		return errorf(w.Span, "break used outside a while loop")
	}
	return l.backend.CompileBreak(l.loopStack[len(l.loopStack)-1])
}

func (l *Lowerer) compileContinueWord(w ast.Word) error {
	if !l.inWhile {
		return errorf(w.Span, "continue used outside a while loop")
	}
	return l.backend.CompileContinue(l.loopStack[len(l.loopStack)-1])
}

// ----------------------------------------------------------------------------
// Scope bookkeeping.

// computeCleanup diffs the current variables stack against 'entrySnapshot',
// collecting every local pushed since then (in offset order, i.e.
// most-recently-declared first) that needs a deinit hook, plus the total
// byte size to release.
func (l *Lowerer) computeCleanup(entrySnapshot []Variable) ScopeCleanup {
	all := l.variables.Slice()
	pushed := all[len(entrySnapshot):]

	var cleanup ScopeCleanup
	for i := len(pushed) - 1; i >= 0; i-- {
		v := pushed[i]
		cleanup.TotalSize += v.Size
		if t, ok := l.types.Get(v.Type); ok && t.HasDeinit && !v.Array {
			cleanup.Locals = append(cleanup.Locals, CleanupVar{
				Name: v.Name, Type: v.Type, Offset: v.Offset, Size: v.Size,
				DeinitSymbol: fmt.Sprintf("type_deinit_%s", mangle(v.Type)),
			})
		}
	}
	return cleanup
}

// pushLocal shifts every existing local's offset up by 'size' then pushes
// a new local at offset 0, matching the VSP model where offset 0 is always
// the most-recently-declared local (spec.md §3/§4.3, Open Question #2).
func (l *Lowerer) pushLocal(v Variable) {
	slice := l.variables.Slice()
	for i := range slice {
		slice[i].Offset += v.Size
	}
	v.Offset = 0
	l.variables.Push(v)
}

// ----------------------------------------------------------------------------
// Let / Const / Set / Addr

func (l *Lowerer) compileLet(n ast.Let) error {
	t, ok := l.types.Get(n.Type)
	if !ok {
		return errorf(n.Span, "unknown type %q", n.Type)
	}
	if policy.IsReserved(n.Name) {
		return errorf(n.Span, "%q is a reserved word", n.Name)
	}

	if n.Array && n.ArraySize <= 0 {
		return errorf(n.Span, "local array %q must have a length of at least 1, got %d", n.Name, n.ArraySize)
	}

	v := Variable{Name: n.Name, Type: n.Type, Array: n.Array, ArraySize: n.ArraySize}
	if n.Array {
		v.ElementSize = t.SizeBytes
		v.Size = int(n.ArraySize)*t.SizeBytes + arrayHeaderSize
	} else {
		v.Size = t.SizeBytes
	}
	l.pushLocal(v)
	local, _ := l.findLocal(n.Name)

	initSymbol := ""
	if t.HasInit && !n.Array {
		initSymbol = fmt.Sprintf("type_init_%s", mangle(n.Type))
	}
	return l.backend.CompileLet(LocalVar{
		Name: local.Name, Type: local.Type, Offset: local.Offset, Size: local.Size,
		Array: local.Array, ArraySize: local.ArraySize, ElementSize: local.ElementSize,
		InitSymbol: initSymbol,
	})
}

func (l *Lowerer) compileConst(n ast.Const) error {
	if l.consts.Has(n.Name) {
		return errorf(n.Span, "const %q already defined", n.Name)
	}
	if n.Value > l.backend.MaxInt() {
		return errorf(n.Span, "const %q value %d exceeds backend's maximum of %d", n.Name, n.Value, l.backend.MaxInt())
	}
	l.consts.Set(n.Name, ConstRecord{Name: n.Name, Value: n.Value})
	return l.backend.CompileConst(n.Name, n.Value)
}

func (l *Lowerer) compileSet(n ast.Set) error {
	if v, ok := l.findLocal(n.Variable); ok {
		if err := l.checkScalarType(v.Type, n.Span); err != nil {
			return err
		}
		return l.backend.CompileSet(WordRef{Kind: WordLocal, Name: v.Name, Offset: v.Offset, Size: v.Size})
	}
	if g, ok := l.globals.Get(n.Variable); ok {
		if err := l.checkScalarType(g.Type, n.Span); err != nil {
			return err
		}
		return l.backend.CompileSet(WordRef{Kind: WordGlobal, Name: g.Name, Symbol: g.Symbol, Size: g.Size})
	}
	if l.consts.Has(n.Variable) {
		return errorf(n.Span, "cannot assign to const %q", n.Variable)
	}
	return errorf(n.Span, "undefined identifier %q", n.Variable)
}

func (l *Lowerer) compileAddrNode(n ast.Addr) error {
	if v, ok := l.findLocal(n.Target); ok {
		if err := l.checkScalarType(v.Type, n.Span); err != nil {
			return err
		}
		return l.backend.CompileAddr(AddrRef{Kind: WordLocal, Name: v.Name, Offset: v.Offset, Size: v.Size})
	}
	if g, ok := l.globals.Get(n.Target); ok {
		if err := l.checkScalarType(g.Type, n.Span); err != nil {
			return err
		}
		return l.backend.CompileAddr(AddrRef{Kind: WordGlobal, Name: g.Name, Symbol: g.Symbol, Size: g.Size})
	}
	if l.consts.Has(n.Target) {
		return errorf(n.Span, "cannot take the address of const %q", n.Target)
	}
	return errorf(n.Span, "undefined identifier %q", n.Target)
}

// ----------------------------------------------------------------------------
// Arrays / strings

// realizeArray registers a new entry in the append-only 'arrays' table and
// asks the backend to emit it. Global classification (spec.md's Open
// Question resolution): an array is global whenever it occurs outside any
// user function body, or is explicitly tagged constant.
func (l *Lowerer) realizeArray(elementType string, elementSize int, elements []int64, constant bool) (RealisedArray, error) {
	global := !l.inFuncBody || constant
	a := RealisedArray{
		Ordinal: l.blockCounter, ElementType: elementType, ElementSize: elementSize,
		Elements: elements, Global: global, Constant: constant,
	}
	l.blockCounter++
	l.arrays = append(l.arrays, a)
	return a, nil
}

func (l *Lowerer) compileArray(n ast.Array) error {
	t, ok := l.types.Get(n.ElementType)
	if !ok {
		return errorf(n.Span, "unknown element type %q", n.ElementType)
	}
	values := make([]int64, 0, len(n.Elements))
	for _, el := range n.Elements {
		i, ok := el.(ast.Integer)
		if !ok {
			return errorf(el.GetSpan(), "array literal elements must be integers")
		}
		values = append(values, i.Value)
	}
	a, err := l.realizeArray(n.ElementType, t.SizeBytes, values, n.Constant)
	if err != nil {
		return err
	}
	return l.backend.CompileArray(l.arrayInfo(a))
}

func (l *Lowerer) compileString(n ast.String) error {
	bytes := []byte(n.Body)
	values := make([]int64, len(bytes))
	for i, b := range bytes {
		values[i] = int64(b)
	}
	a, err := l.realizeArray("u8", 1, values, n.Constant)
	if err != nil {
		return err
	}
	return l.backend.CompileString(l.arrayInfo(a))
}

// ----------------------------------------------------------------------------
// Struct / Enum / Union / Alias

func (l *Lowerer) compileStruct(n ast.Struct) error {
	if l.types.Has(n.Name) {
		return errorf(n.Span, "type %q already defined", n.Name)
	}

	var fields []TypeField
	offset := 0
	hasInit, hasDeinit := false, false
	seen := map[string]bool{}

	if n.Parent != "" {
		parent, ok := l.types.Get(n.Parent)
		if !ok {
			return errorf(n.Span, "unknown parent type %q", n.Parent)
		}
		fields = append(fields, parent.Members...)
		offset = parent.SizeBytes
		hasInit, hasDeinit = parent.HasInit, parent.HasDeinit
		for _, f := range parent.Members {
			seen[f.Name] = true
		}
	}

	for _, m := range n.Members {
		if seen[m.Name] {
			return errorf(n.Span, "duplicate member name %q (struct and its inherited parent chain must have unique names)", m.Name)
		}
		seen[m.Name] = true
		mt, ok := l.types.Get(m.Type)
		if !ok {
			return errorf(n.Span, "unknown member type %q", m.Type)
		}
		size := mt.SizeBytes
		if m.Array {
			size = int(m.Size)*mt.SizeBytes + arrayHeaderSize
		}
		fields = append(fields, TypeField{
			Name: m.Name, Type: m.Type, Offset: offset, Size: size,
			Array: m.Array, ArraySize: m.Size,
		})
		offset += size
	}

	l.types.Set(n.Name, TypeRecord{Name: n.Name, SizeBytes: offset, IsStruct: true, Members: fields, HasInit: hasInit, HasDeinit: hasDeinit})

	infoFields := make([]StructFieldInfo, 0, len(fields))
	for _, f := range fields {
		infoFields = append(infoFields, StructFieldInfo{
			Name: f.Name, Type: f.Type, Offset: f.Offset, Size: f.Size,
			Array: f.Array, Count: f.ArraySize,
		})
	}
	return l.backend.CompileStruct(StructInfo{Name: n.Name, Parent: n.Parent, SizeBytes: offset, Fields: infoFields})
}

func (l *Lowerer) compileEnum(n ast.Enum) error {
	if l.types.Has(n.Name) {
		return errorf(n.Span, "type %q already defined", n.Name)
	}
	base := n.BaseType
	if base == "" {
		base = "cell"
	}
	bt, ok := l.types.Get(base)
	if !ok {
		return errorf(n.Span, "unknown base type %q", base)
	}

	members := make([]EnumMemberInfo, 0, len(n.Members))
	min, max := int64(0), int64(0)
	for i, m := range n.Members {
		if i == 0 {
			min, max = m.Value, m.Value
		} else {
			if m.Value < min {
				min = m.Value
			}
			if m.Value > max {
				max = m.Value
			}
		}
		members = append(members, EnumMemberInfo{Name: m.Name, Value: m.Value})
		l.consts.Set(m.Name, ConstRecord{Name: m.Name, Value: m.Value})
	}

	l.types.Set(n.Name, TypeRecord{Name: n.Name, SizeBytes: bt.SizeBytes})
	return l.backend.CompileEnum(EnumInfo{Name: n.Name, BaseType: base, SizeBytes: bt.SizeBytes, Members: members, Min: min, Max: max})
}

func (l *Lowerer) compileUnion(n ast.Union) error {
	if l.types.Has(n.Name) {
		return errorf(n.Span, "type %q already defined", n.Name)
	}
	maxSize := 0
	seen := map[string]bool{}
	for _, m := range n.Members {
		if seen[m] {
			return errorf(n.Span, "duplicate union member type %q", m)
		}
		seen[m] = true
		mt, ok := l.types.Get(m)
		if !ok {
			return errorf(n.Span, "unknown union member type %q", m)
		}
		if mt.SizeBytes > maxSize {
			maxSize = mt.SizeBytes
		}
	}
	l.types.Set(n.Name, TypeRecord{Name: n.Name, SizeBytes: maxSize})
	return l.backend.CompileUnion(UnionInfo{Name: n.Name, SizeBytes: maxSize, Members: n.Members})
}

func (l *Lowerer) compileAlias(n ast.Alias) error {
	if l.types.Has(n.To) && !n.Overwrite {
		return errorf(n.Span, "type %q already defined (use overwrite)", n.To)
	}
	from, ok := l.types.Get(n.From)
	if !ok {
		return errorf(n.Span, "unknown type %q", n.From)
	}
	aliased := from
	aliased.Name = n.To
	l.types.Set(n.To, aliased)
	return l.backend.CompileAlias(n.To, n.From)
}

// ----------------------------------------------------------------------------
// Extern / Implement

func (l *Lowerer) compileExtern(n ast.Extern) error {
	if policy.IsReserved(n.Name) {
		return errorf(n.Span, "%q is a reserved word", n.Name)
	}
	symbol := n.Name
	if n.Kind != ast.ExternRaw {
		symbol = fmt.Sprintf("func__%s", mangle(n.Name))
	}
	l.words[n.Name] = WordRecord{Name: n.Name, Raw: n.Kind == ast.ExternRaw, MangledSymbol: symbol}
	return l.backend.CompileExtern(ExternInfo{
		Name: n.Name, Kind: n.Kind.String(), ReturnType: n.ReturnType,
		ParamTypes: n.ParamTypes, Symbol: symbol,
	})
}

func (l *Lowerer) compileImplement(n ast.Implement) error {
	t, ok := l.types.Get(n.Struct)
	if !ok || !t.IsStruct {
		return errorf(n.Span, "unknown struct type %q", n.Struct)
	}
	if n.Method != "init" && n.Method != "deinit" {
		return errorf(n.Span, "implement method must be init or deinit, got %q", n.Method)
	}
	key := n.Struct + "." + n.Method
	if l.implemented[key] {
		return errorf(n.Span, "%s already implemented for %q", n.Method, n.Struct)
	}
	l.implemented[key] = true

	if n.Method == "init" {
		t.HasInit = true
	} else {
		t.HasDeinit = true
	}
	l.types.Set(n.Struct, t)

	wasInFunc := l.inFuncBody
	l.inFuncBody = true
	entry := l.variables.Snapshot()

	err := l.backend.CompileImplement(ImplementInfo{Struct: n.Struct, Method: n.Method}, func() error {
		for _, stmt := range n.Body {
			if err := l.compileNode(stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		l.inFuncBody = wasInFunc
		return err
	}

	cleanup := l.computeCleanup(entry)
	l.variables.Restore(entry)
	l.inFuncBody = wasInFunc
	return l.backend.CompileScopeExit(cleanup)
}

// ----------------------------------------------------------------------------
// FuncDef

func (l *Lowerer) compileFuncDef(n ast.FuncDef) error {
	if policy.IsReserved(n.Name) {
		return errorf(n.Span, "%q is a reserved word", n.Name)
	}
	if _, exists := l.words[n.Name]; exists {
		return errorf(n.Span, "word %q already defined", n.Name)
	}

	if n.Inline {
		l.words[n.Name] = WordRecord{Name: n.Name, Inline: true, InlineBody: n.Body}
		return nil
	}

	symbol := n.Name
	if !n.Raw {
		symbol = fmt.Sprintf("func__%s", mangle(n.Name))
	}
	l.words[n.Name] = WordRecord{Name: n.Name, Raw: n.Raw, MangledSymbol: symbol}

	wasInFunc := l.inFuncBody
	l.inFuncBody = true
	prevFunc := l.thisFunc
	prevSnapshot := l.funcEntrySnapshot
	l.thisFunc = n.Name

	entry := l.variables.Snapshot()

	params := make([]ParamInfo, len(n.Params))
	// Params occupy the frame in declared order but are pushed onto the
	// VSP-offset local stack like Lets, so the last-declared parameter
	// ends up at the lowest offset; Sets below run in reverse declared
	// order to match a stack-based calling convention.
	for _, p := range n.Params {
		pt, ok := l.types.Get(p.Type)
		if !ok {
			return errorf(n.Span, "unknown param type %q", p.Type)
		}
		if pt.IsStruct {
			return errorf(n.Span, "struct type %q cannot be used as a function parameter", p.Type)
		}
		// Every parameter occupies one fixed-width cell slot in the frame
		// regardless of its declared type, matching FrameSize's
		// paramCount*cellSize formula; Type is still recorded for CompileWord.
		l.pushLocal(Variable{Name: p.Name, Type: p.Type, Size: cellSize})
	}
	for i, p := range n.Params {
		v, _ := l.findLocal(p.Name)
		params[i] = ParamInfo{Name: p.Name, Type: p.Type, Offset: v.Offset, Size: v.Size}
	}
	l.funcEntrySnapshot = l.variables.Snapshot()

	frameSize := len(n.Params) * cellSize

	err := l.backend.CompileFuncDef(FuncDefInfo{
		Name: n.Name, MangledSymbol: symbol, Raw: n.Raw, Params: params, FrameSize: frameSize,
	}, func() error {
		for _, stmt := range n.Body {
			if err := l.compileNode(stmt); err != nil {
				return err
			}
		}
		return nil
	})

	implicitReturn := l.computeCleanup(l.funcEntrySnapshot)
	l.variables.Restore(entry)
	l.inFuncBody = wasInFunc
	l.thisFunc = prevFunc
	l.funcEntrySnapshot = prevSnapshot

	if err != nil {
		return err
	}
	return l.backend.CompileReturn(implicitReturn)
}

// ----------------------------------------------------------------------------
// If / While

func (l *Lowerer) compileIf(n ast.If) error {
	id := l.blockCounter
	l.blockCounter++

	clauses := make([]IfClauseInfo, len(n.Clauses))
	for i := range n.Clauses {
		clause := n.Clauses[i]
		clauses[i] = IfClauseInfo{
			Condition: func() error {
				for _, stmt := range clause.Condition {
					if err := l.compileNode(stmt); err != nil {
						return err
					}
				}
				return nil
			},
			Body: l.scopedBody(clause.Body),
		}
	}

	hasElse := n.Else != nil
	var elseBody func() error
	if hasElse {
		elseBody = l.scopedBody(n.Else)
	}
	return l.backend.CompileIf(id, clauses, hasElse, elseBody)
}

func (l *Lowerer) compileWhile(n ast.While) error {
	id := l.blockCounter
	l.blockCounter++

	wasInWhile := l.inWhile
	l.inWhile = true
	l.loopStack = append(l.loopStack, id)

	condition := func() error {
		for _, stmt := range n.Condition {
			if err := l.compileNode(stmt); err != nil {
				return err
			}
		}
		return nil
	}
	body := l.scopedBody(n.Body)

	err := l.backend.CompileWhile(id, condition, body)

	l.loopStack = l.loopStack[:len(l.loopStack)-1]
	l.inWhile = wasInWhile
	return err
}

// scopedBody returns a continuation that compiles 'body' inside its own
// local scope: a snapshot is taken before and the variables stack is
// restored to it afterward, with CompileScopeExit emitting the deinit
// calls/VSP release for whatever locals 'body' declared.
func (l *Lowerer) scopedBody(body []ast.Node) func() error {
	return func() error {
		entry := l.variables.Snapshot()
		for _, stmt := range body {
			if err := l.compileNode(stmt); err != nil {
				return err
			}
		}
		cleanup := l.computeCleanup(entry)
		l.variables.Restore(entry)
		return l.backend.CompileScopeExit(cleanup)
	}
}
