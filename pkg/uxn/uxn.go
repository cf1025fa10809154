// Package uxn implements Callisto's reference Backend: a translation from
// lowered program facts to Uxntal assembly text for the UXN 16-bit stack
// machine.
//
// Grounded on the teacher's pkg/hack/codegen.go (translation-table
// constants for the parts that are genuinely table-driven, a single
// exported CodeGenerator owning the growing output) and pkg/vm/codegen.go/
// pkg/asm/codegen.go's Generate-then-GenerateXxxOp per-node-kind dispatch
// pattern, adapted from "translate an already-built Program" to "implement
// lower.Backend's streaming emission contract".
package uxn

import (
	"fmt"
	"strings"

	"github.com/callisto-lang/callisto/pkg/lower"
)

// vspCell, arraySrcCell and arrayDestCell are the three zero-page cells
// the reference runtime reserves for itself: the virtual stack pointer and
// a pair of scratch pointers used by the array load/store helpers.
const (
	vspCell       = "vsp"
	arraySrcCell  = "arraySrc"
	arrayDestCell = "arrayDest"
)

// versions are the feature/version tags this backend declares available to
// Enable/Requires/Version (spec.md §6's illustrative IO/16Bit/BigEndian).
var versions = []string{"IO", "16Bit"}

// CodeGenerator accumulates Uxntal source text and implements lower.Backend.
// One CodeGenerator is used per compiled program, mirroring the teacher's
// one-CodeGenerator-per-Program lifetime.
type CodeGenerator struct {
	out strings.Builder

	mainOpen bool
}

// New returns a ready to use CodeGenerator.
func New() *CodeGenerator { return &CodeGenerator{} }

var _ lower.Backend = (*CodeGenerator)(nil)

// Source returns the accumulated Uxntal text once compilation is complete.
func (cg *CodeGenerator) Source() string { return cg.out.String() }

func (cg *CodeGenerator) emit(format string, args ...any) {
	fmt.Fprintf(&cg.out, format, args...)
	cg.out.WriteByte('\n')
}

// ----------------------------------------------------------------------------
// Whole-compile hooks

func (cg *CodeGenerator) Init() error {
	cg.emit("( callisto: generated Uxntal, do not edit by hand )")
	cg.emit("|0")
	cg.emit("@%s $2", vspCell)
	cg.emit("@%s $2", arraySrcCell)
	cg.emit("@%s $2", arrayDestCell)
	cg.emit("")
	cg.emit("|100")
	cg.emit("#ffff .%s STZ2", vspCell)
	cg.emit(";on-reset JMP2")
	return nil
}

func (cg *CodeGenerator) BeginMain() error {
	cg.emit("")
	cg.emit("@on-reset")
	cg.mainOpen = true
	return nil
}

func (cg *CodeGenerator) End(globals []lower.GlobalInfo, arrays []lower.ArrayInfo) error {
	for _, g := range globals {
		if g.DeinitSymbol != "" {
			cg.emit(".%s LDZ2 ;%s JSR2", vspCell, g.DeinitSymbol)
		}
	}
	cg.emit("BRK")
	cg.mainOpen = false

	cg.emit("")
	cg.emit("|e0000")
	for _, g := range globals {
		cg.emit("@global_%s $%d", mangle(g.Name), g.Size)
	}
	for _, a := range arrays {
		if !a.Global {
			continue
		}
		cg.emitArrayData(a)
	}
	return nil
}

func (cg *CodeGenerator) GetVersions() []string { return versions }
func (cg *CodeGenerator) MaxInt() int64         { return 0xffff }
func (cg *CodeGenerator) DefaultHeader() string { return "" }

func (cg *CodeGenerator) HandleOption(name, value string) bool {
	return false
}

func (cg *CodeGenerator) FinalCommands() []string {
	return []string{"uxnasm %s.tal %s.rom"}
}

func (cg *CodeGenerator) NewConst(name string, value int64) error {
	cg.emit("( const %s = %d, resolved at lowering time )", name, value)
	return nil
}

// ----------------------------------------------------------------------------
// Values / words

func (cg *CodeGenerator) CompileInteger(value int64) error {
	if value > 0xff {
		cg.emit("#%04x", uint16(value))
	} else {
		cg.emit("#%02x", uint8(value))
	}
	return nil
}

func (cg *CodeGenerator) CompileWord(ref lower.WordRef) error {
	switch ref.Kind {
	case lower.WordConst:
		return cg.CompileInteger(ref.Value)
	case lower.WordLocal:
		cg.emitLoad(ref.Offset, ref.Size, vspCell)
		return nil
	case lower.WordGlobal:
		if ref.Size == 1 {
			cg.emit(";global_%s LDA", mangle(ref.Name))
		} else {
			cg.emit(";global_%s LDA2", mangle(ref.Name))
		}
		return nil
	}
	return nil
}

// emitLoad reads a 'size'-byte local at 'offset' bytes from the cell named
// 'base' (always the virtual stack pointer for locals). 8-bit loads use a
// bare LDA (UXN's LDA leaves a single byte, so no NIP follows), 16-bit
// loads use LDA2.
func (cg *CodeGenerator) emitLoad(offset, size int, base string) {
	cg.emit(".%s LDZ2 #%04x ADD2", base, uint16(offset))
	if size == 1 {
		cg.emit("LDA")
	} else {
		cg.emit("LDA2")
	}
}

func (cg *CodeGenerator) emitStore(offset, size int, base string) {
	cg.emit(".%s LDZ2 #%04x ADD2", base, uint16(offset))
	if size == 1 {
		cg.emit("STA")
	} else {
		cg.emit("STA2")
	}
}

func (cg *CodeGenerator) CompileSet(ref lower.WordRef) error {
	switch ref.Kind {
	case lower.WordLocal:
		cg.emitStore(ref.Offset, ref.Size, vspCell)
	case lower.WordGlobal:
		if ref.Size == 1 {
			cg.emit(";global_%s STA", mangle(ref.Name))
		} else {
			cg.emit(";global_%s STA2", mangle(ref.Name))
		}
	}
	return nil
}

func (cg *CodeGenerator) CompileAddr(ref lower.AddrRef) error {
	switch ref.Kind {
	case lower.WordLocal:
		cg.emit(".%s LDZ2 #%04x ADD2", vspCell, uint16(ref.Offset))
	case lower.WordGlobal:
		cg.emit(";global_%s", mangle(ref.Name))
	}
	return nil
}

func (cg *CodeGenerator) CompileCall(symbol string, raw bool) error {
	cg.emit(";%s JSR2", symbol)
	return nil
}

func (cg *CodeGenerator) CompileAsm(text string) error {
	cg.out.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		cg.out.WriteByte('\n')
	}
	return nil
}

// ----------------------------------------------------------------------------
// Let / scope exit / return

func (cg *CodeGenerator) CompileLet(v lower.LocalVar) error {
	cg.emit("( let %s: reserve %d bytes on vsp )", v.Name, v.Size)
	cg.emit(".%s LDZ2 #%04x SUB2 .%s STZ2", vspCell, uint16(v.Size), vspCell)
	if v.InitSymbol != "" {
		cg.emit(".%s LDZ2 ;%s JSR2", vspCell, v.InitSymbol)
	}
	return nil
}

// emitRelease always emits 16-bit ADD2 when adjusting vsp, since vsp is a
// 2-byte zero-page cell: an 8-bit ADD there truncates the high byte.
func (cg *CodeGenerator) emitRelease(totalSize int) {
	if totalSize == 0 {
		return
	}
	cg.emit("#%04x .%s LDZ2 ADD2 .%s STZ2", uint16(totalSize), vspCell, vspCell)
}

func (cg *CodeGenerator) CompileScopeExit(cleanup lower.ScopeCleanup) error {
	for _, v := range cleanup.Locals {
		cg.emit(".%s LDZ2 #%04x ADD2 ;%s JSR2", vspCell, uint16(v.Offset), v.DeinitSymbol)
	}
	cg.emitRelease(cleanup.TotalSize)
	return nil
}

func (cg *CodeGenerator) CompileReturn(cleanup lower.ScopeCleanup) error {
	for _, v := range cleanup.Locals {
		cg.emit(".%s LDZ2 #%04x ADD2 ;%s JSR2", vspCell, uint16(v.Offset), v.DeinitSymbol)
	}
	cg.emitRelease(cleanup.TotalSize)
	cg.emit("JMP2r")
	return nil
}

func (cg *CodeGenerator) CompileBreak(loopID int) error {
	cg.emit(";while_%d_end JMP2", loopID)
	return nil
}

func (cg *CodeGenerator) CompileContinue(loopID int) error {
	cg.emit(";while_%d_cond JMP2", loopID)
	return nil
}

// ----------------------------------------------------------------------------
// Control flow

func (cg *CodeGenerator) CompileIf(id int, clauses []lower.IfClauseInfo, hasElse bool, elseBody func() error) error {
	end := fmt.Sprintf("if_%d_end", id)
	for i, clause := range clauses {
		next := fmt.Sprintf("if_%d_%d", id, i+1)
		last := i == len(clauses)-1
		if last {
			if hasElse {
				next = fmt.Sprintf("if_%d_else", id)
			} else {
				next = end
			}
		}
		if err := clause.Condition(); err != nil {
			return err
		}
		cg.emit("#00 EQU ;%s JCN2", next)
		if err := clause.Body(); err != nil {
			return err
		}
		cg.emit(";%s JMP2", end)
		if !last {
			cg.emit("@%s", next)
		}
	}
	if hasElse {
		cg.emit("@if_%d_else", id)
		if err := elseBody(); err != nil {
			return err
		}
	}
	cg.emit("@%s", end)
	return nil
}

func (cg *CodeGenerator) CompileWhile(id int, condition func() error, body func() error) error {
	cg.emit("@while_%d_cond", id)
	if err := condition(); err != nil {
		return err
	}
	cg.emit("#00 EQU ;while_%d_end JCN2", id)
	if err := body(); err != nil {
		return err
	}
	cg.emit(";while_%d_cond JMP2", id)
	cg.emit("@while_%d_end", id)
	return nil
}

func (cg *CodeGenerator) CompileFuncDef(info lower.FuncDefInfo, body func() error) error {
	cg.emit("@%s", info.MangledSymbol)
	if info.FrameSize > 0 {
		cg.emit(".%s LDZ2 #%04x SUB2 .%s STZ2", vspCell, uint16(info.FrameSize), vspCell)
		// Parameters arrive on the working stack in declared order; Sets
		// below must run last-declared first so the first pop (the top of
		// the working stack) goes to the last-declared parameter's (lowest)
		// vsp offset.
		for i := len(info.Params) - 1; i >= 0; i-- {
			p := info.Params[i]
			cg.emitStore(p.Offset, p.Size, vspCell)
		}
	}
	return body()
}

func (cg *CodeGenerator) CompileImplement(info lower.ImplementInfo, body func() error) error {
	cg.emit("@type_%s_%s", info.Method, mangle(info.Struct))
	return body()
}

// ----------------------------------------------------------------------------
// Types / data

func (cg *CodeGenerator) CompileStruct(info lower.StructInfo) error {
	cg.emit("( struct %s: %d bytes )", info.Name, info.SizeBytes)
	return nil
}

func (cg *CodeGenerator) CompileEnum(info lower.EnumInfo) error {
	cg.emit("( enum %s: %s, %d members )", info.Name, info.BaseType, len(info.Members))
	return nil
}

func (cg *CodeGenerator) CompileUnion(info lower.UnionInfo) error {
	cg.emit("( union %s: %d bytes )", info.Name, info.SizeBytes)
	return nil
}

func (cg *CodeGenerator) CompileAlias(to, from string) error {
	cg.emit("( alias %s = %s )", to, from)
	return nil
}

func (cg *CodeGenerator) CompileConst(name string, value int64) error {
	cg.emit("( const %s = %d )", name, value)
	return nil
}

func (cg *CodeGenerator) CompileExtern(info lower.ExternInfo) error {
	cg.emit("( extern %s %s -> %s )", info.Kind, info.Name, info.Symbol)
	return nil
}

func (cg *CodeGenerator) CompileArray(info lower.ArrayInfo) error {
	if !info.Global {
		cg.emitLocalArrayInit(info)
	}
	return nil
}

func (cg *CodeGenerator) CompileString(info lower.ArrayInfo) error {
	return cg.CompileArray(info)
}

// emitLocalArrayInit copies a literal's element bytes, one store per
// element, into the freshly reserved local slot's payload (past its
// 6-byte Array header) starting at the current vsp.
func (cg *CodeGenerator) emitLocalArrayInit(info lower.ArrayInfo) {
	cg.emit("( local array literal: %d %s elements )", len(info.Elements), info.ElementType)
	for i, v := range info.Elements {
		off := i * info.ElementSize
		if info.ElementSize == 1 {
			cg.emit("#%02x .%s LDZ2 #%04x ADD2 STA", uint8(v), vspCell, uint16(off))
		} else {
			cg.emit("#%04x .%s LDZ2 #%04x ADD2 STA2", uint16(v), vspCell, uint16(off))
		}
	}
}

func (cg *CodeGenerator) emitArrayData(a lower.ArrayInfo) {
	cg.emit("@%s", a.Symbol)
	for _, v := range a.Elements {
		if a.ElementSize == 1 {
			cg.emit("|%02x", uint8(v))
		} else {
			cg.emit("|%04x", uint16(v))
		}
	}
	cg.emit("@%s", a.MetaSymbol)
	cg.emit("|%04x", len(a.Elements))
	cg.emit("|%04x", a.ElementSize)
	cg.emit(";%s", a.Symbol)
}

// mangle escapes every character other than ASCII letters, digits and '_'
// (which covers those unsafe for the Uxntal assembler's label syntax:
// whitespace, '.', '@', ';', '$', '&', '#') as _<4 hex digits>_, the same
// way func__<mangled> symbols are built by the lowering core. '_' itself is
// not escaped, so the mapping is not reversible: a name that already
// contains such an escape sequence mangles to the same text as the name it
// encodes.
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
