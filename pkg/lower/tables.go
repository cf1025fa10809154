package lower

import (
	"github.com/callisto-lang/callisto/pkg/ast"
	"github.com/callisto-lang/callisto/pkg/cstack"
)

// TypeField is one laid-out member of a struct type record.
type TypeField struct {
	Name      string
	Type      string
	Offset    int
	Size      int
	Array     bool
	ArraySize int64
}

// TypeRecord is one entry of the 'types' table (spec.md §3): primitives,
// the built-in Array struct, and every user Struct/Enum/Union/Alias.
type TypeRecord struct {
	Name      string
	SizeBytes int
	IsStruct  bool
	Members   []TypeField
	HasInit   bool
	HasDeinit bool
}

// WordRecord is one entry of the 'words' table: a function known to the
// lowerer, either captured inline, emitted raw (literal symbol), or
// emitted regular (mangled symbol).
type WordRecord struct {
	Name          string
	Raw           bool
	Inline        bool
	InlineBody    []ast.Node // set only when Inline
	MangledSymbol string
}

// Variable is one entry of the local-scope 'variables' stack (spec.md §3).
type Variable struct {
	Name        string
	Type        string
	Offset      int
	Size        int // total slot size, including the array header when Array
	Array       bool
	ArraySize   int64
	ElementSize int
}

// GlobalRecord is one entry of the 'globals' table.
type GlobalRecord struct {
	Name      string
	Type      string
	Array     bool
	ArraySize int64
	Size      int
	Symbol    string
}

// ConstRecord is one entry of the 'consts' table: a name bound to a
// captured Integer value.
type ConstRecord struct {
	Name  string
	Value int64
}

// RealisedArray is one entry of the append-only 'arrays' table.
type RealisedArray struct {
	Ordinal     int
	ElementType string
	ElementSize int
	Elements    []int64
	Global      bool
	Constant    bool
}

// cellSize is the native word size of the reference target (UXN: 16 bits).
// Non-UXN backends still share this constant since spec.md fixes "cell" as
// a single primitive with one size across the front end; a backend with a
// different word size would need its own type table, out of scope here.
const cellSize = 2

// arrayHeaderSize is the built-in Array struct's size: length(2) +
// memberSize(2) + elements-pointer(2), per spec.md §3/§4.3 and the UXN
// array_<n>_meta layout in spec.md §6. This is also the answer to the
// local-array-VSP-release Open Question: every local array's released
// byte count must include this header, not just its element payload.
const arrayHeaderSize = 6

func primitiveTypes() cstack.OrderedMap[string, TypeRecord] {
	m := cstack.NewOrderedMap[string, TypeRecord]()
	prims := []TypeRecord{
		{Name: "u8", SizeBytes: 1},
		{Name: "i8", SizeBytes: 1},
		{Name: "u16", SizeBytes: 2},
		{Name: "i16", SizeBytes: 2},
		{Name: "addr", SizeBytes: 2},
		{Name: "size", SizeBytes: 2},
		{Name: "usize", SizeBytes: 2},
		{Name: "cell", SizeBytes: cellSize},
		{
			Name: "Array", SizeBytes: arrayHeaderSize, IsStruct: true,
			Members: []TypeField{
				{Name: "length", Type: "usize", Offset: 0, Size: 2},
				{Name: "memberSize", Type: "usize", Offset: 2, Size: 2},
				{Name: "elements", Type: "addr", Offset: 4, Size: 2},
			},
		},
	}
	for _, t := range prims {
		m.Set(t.Name, t)
	}
	return m
}
