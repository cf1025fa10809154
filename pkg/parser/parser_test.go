package parser_test

import (
	"testing"

	"github.com/callisto-lang/callisto/pkg/ast"
	"github.com/callisto-lang/callisto/pkg/lexer"
	"github.com/callisto-lang/callisto/pkg/parser"
)

func parse(t *testing.T, src string) []ast.Node {
	t.Helper()
	toks, err := lexer.Tokenize("test.cal", []byte(src))
	if err != nil {
		t.Fatalf("tokenizing %q: %s", src, err)
	}
	nodes, err := parser.Parse(toks)
	if err != nil {
		t.Fatalf("parsing %q: %s", src, err)
	}
	return nodes
}

func parseErr(t *testing.T, src string) {
	t.Helper()
	toks, err := lexer.Tokenize("test.cal", []byte(src))
	if err != nil {
		return
	}
	if _, err := parser.Parse(toks); err == nil {
		t.Fatalf("parsing %q: expected an error, got none", src)
	}
}

func TestParseLeaves(t *testing.T) {
	t.Run("integer", func(t *testing.T) {
		nodes := parse(t, "42")
		if len(nodes) != 1 {
			t.Fatalf("expected 1 node, got %d", len(nodes))
		}
		i, ok := nodes[0].(ast.Integer)
		if !ok || i.Value != 42 {
			t.Fatalf("expected Integer{42}, got %#v", nodes[0])
		}
	})

	t.Run("word", func(t *testing.T) {
		nodes := parse(t, "dup")
		w, ok := nodes[0].(ast.Word)
		if !ok || w.Name != "dup" {
			t.Fatalf("expected Word{dup}, got %#v", nodes[0])
		}
	})

	t.Run("string constant tag", func(t *testing.T) {
		nodes := parse(t, `c"hello"`)
		s, ok := nodes[0].(ast.String)
		if !ok || s.Body != "hello" || !s.Constant {
			t.Fatalf("expected constant String{hello}, got %#v", nodes[0])
		}
	})

	t.Run("addr", func(t *testing.T) {
		nodes := parse(t, "&counter")
		a, ok := nodes[0].(ast.Addr)
		if !ok || a.Target != "counter" {
			t.Fatalf("expected Addr{counter}, got %#v", nodes[0])
		}
	})
}

func TestParseFuncDef(t *testing.T) {
	t.Run("regular with params", func(t *testing.T) {
		nodes := parse(t, "func add u16 a u16 b begin a b end")
		fn, ok := nodes[0].(ast.FuncDef)
		if !ok {
			t.Fatalf("expected FuncDef, got %#v", nodes[0])
		}
		if fn.Name != "add" || fn.Inline || fn.Raw {
			t.Fatalf("unexpected flags: %#v", fn)
		}
		if len(fn.Params) != 2 || fn.Params[0].Type != "u16" || fn.Params[0].Name != "a" {
			t.Fatalf("unexpected params: %#v", fn.Params)
		}
		if len(fn.Body) != 2 {
			t.Fatalf("expected 2 body statements, got %d", len(fn.Body))
		}
	})

	t.Run("inline raw with no params", func(t *testing.T) {
		nodes := parse(t, "inline raw helper begin end")
		fn := nodes[0].(ast.FuncDef)
		if !fn.Inline || !fn.Raw || len(fn.Params) != 0 || len(fn.Body) != 0 {
			t.Fatalf("unexpected FuncDef: %#v", fn)
		}
	})

	t.Run("missing end is an eof error", func(t *testing.T) {
		parseErr(t, "func broken begin 1 2")
	})

	t.Run("nested funcdef is rejected", func(t *testing.T) {
		parseErr(t, "func outer begin func inner begin end end")
	})
}

func TestParseIf(t *testing.T) {
	t.Run("if then end", func(t *testing.T) {
		nodes := parse(t, "if cond then 1 end")
		n := nodes[0].(ast.If)
		if len(n.Clauses) != 1 || len(n.Clauses[0].Condition) != 1 || len(n.Clauses[0].Body) != 1 {
			t.Fatalf("unexpected If: %#v", n)
		}
		if n.Else != nil {
			t.Fatalf("expected no else body, got %#v", n.Else)
		}
	})

	t.Run("if elseif else end", func(t *testing.T) {
		nodes := parse(t, "if a then 1 elseif b then 2 else 3 end")
		n := nodes[0].(ast.If)
		if len(n.Clauses) != 2 {
			t.Fatalf("expected 2 clauses, got %d", len(n.Clauses))
		}
		if len(n.Else) != 1 {
			t.Fatalf("expected 1 else statement, got %d", len(n.Else))
		}
	})

	t.Run("missing then is an eof error", func(t *testing.T) {
		parseErr(t, "if cond 1 end")
	})
}

func TestParseWhile(t *testing.T) {
	t.Run("while do end", func(t *testing.T) {
		nodes := parse(t, "while cond do 1 end")
		n := nodes[0].(ast.While)
		if len(n.Condition) != 1 || len(n.Body) != 1 {
			t.Fatalf("unexpected While: %#v", n)
		}
	})
}

func TestParseLet(t *testing.T) {
	t.Run("scalar", func(t *testing.T) {
		nodes := parse(t, "let u16 counter")
		n := nodes[0].(ast.Let)
		if n.Type != "u16" || n.Name != "counter" || n.Array {
			t.Fatalf("unexpected Let: %#v", n)
		}
	})

	t.Run("array", func(t *testing.T) {
		nodes := parse(t, "let array 4 u8 buf")
		n := nodes[0].(ast.Let)
		if !n.Array || n.ArraySize != 4 || n.Type != "u8" || n.Name != "buf" {
			t.Fatalf("unexpected Let: %#v", n)
		}
	})
}

func TestParseStruct(t *testing.T) {
	t.Run("no parent", func(t *testing.T) {
		nodes := parse(t, "struct point u16 x u16 y end")
		n := nodes[0].(ast.Struct)
		if n.Name != "point" || n.Parent != "" || len(n.Members) != 2 {
			t.Fatalf("unexpected Struct: %#v", n)
		}
	})

	t.Run("with parent and array member", func(t *testing.T) {
		nodes := parse(t, "struct rect : shape array 2 u16 corners end")
		n := nodes[0].(ast.Struct)
		if n.Parent != "shape" || len(n.Members) != 1 || !n.Members[0].Array || n.Members[0].Size != 2 {
			t.Fatalf("unexpected Struct: %#v", n)
		}
	})
}

func TestParseEnum(t *testing.T) {
	t.Run("implicit increment", func(t *testing.T) {
		nodes := parse(t, "enum color red green blue end")
		n := nodes[0].(ast.Enum)
		if n.BaseType != "cell" || len(n.Members) != 3 {
			t.Fatalf("unexpected Enum: %#v", n)
		}
		if n.Members[0].Value != 0 || n.Members[1].Value != 1 || n.Members[2].Value != 2 {
			t.Fatalf("unexpected implicit values: %#v", n.Members)
		}
	})

	t.Run("explicit value resumes increment from there", func(t *testing.T) {
		nodes := parse(t, "enum flag : u8 a = 4 b c end")
		n := nodes[0].(ast.Enum)
		if n.BaseType != "u8" {
			t.Fatalf("unexpected base type: %s", n.BaseType)
		}
		if n.Members[0].Value != 4 || n.Members[1].Value != 5 || n.Members[2].Value != 6 {
			t.Fatalf("unexpected values: %#v", n.Members)
		}
	})
}

func TestParseArray(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		nodes := parse(t, "[ u8 1 2 3 ]")
		n := nodes[0].(ast.Array)
		if n.ElementType != "u8" || n.Constant || len(n.Elements) != 3 {
			t.Fatalf("unexpected Array: %#v", n)
		}
	})

	t.Run("constant tag", func(t *testing.T) {
		nodes := parse(t, "[ c u16 1 2 ]")
		n := nodes[0].(ast.Array)
		if !n.Constant || len(n.Elements) != 2 {
			t.Fatalf("unexpected Array: %#v", n)
		}
	})

	t.Run("unterminated is an eof error", func(t *testing.T) {
		parseErr(t, "[ u8 1 2")
	})
}

func TestParseExtern(t *testing.T) {
	t.Run("native", func(t *testing.T) {
		nodes := parse(t, "extern putchar")
		n := nodes[0].(ast.Extern)
		if n.Kind != ast.ExternNative || n.Name != "putchar" {
			t.Fatalf("unexpected Extern: %#v", n)
		}
	})

	t.Run("raw", func(t *testing.T) {
		nodes := parse(t, "extern raw vsp")
		n := nodes[0].(ast.Extern)
		if n.Kind != ast.ExternRaw || n.Name != "vsp" {
			t.Fatalf("unexpected Extern: %#v", n)
		}
	})

	t.Run("C with params", func(t *testing.T) {
		nodes := parse(t, "extern C u16 add u16 u16 end")
		n := nodes[0].(ast.Extern)
		if n.Kind != ast.ExternC || n.ReturnType != "u16" || n.Name != "add" || len(n.ParamTypes) != 2 {
			t.Fatalf("unexpected Extern: %#v", n)
		}
	})
}

func TestParseImplementAndSet(t *testing.T) {
	t.Run("implement init", func(t *testing.T) {
		nodes := parse(t, "implement point init 0 end")
		n := nodes[0].(ast.Implement)
		if n.Struct != "point" || n.Method != "init" || len(n.Body) != 1 {
			t.Fatalf("unexpected Implement: %#v", n)
		}
	})

	t.Run("nested funcdef inside implement is rejected", func(t *testing.T) {
		parseErr(t, "implement point init begin func bad begin end end end")
	})

	t.Run("set", func(t *testing.T) {
		nodes := parse(t, "-> counter")
		n := nodes[0].(ast.Set)
		if n.Variable != "counter" {
			t.Fatalf("unexpected Set: %#v", n)
		}
	})
}

func TestParseFeatureFlags(t *testing.T) {
	t.Run("enable requires restrict", func(t *testing.T) {
		nodes := parse(t, "enable IO requires 16Bit restrict foo")
		if _, ok := nodes[0].(ast.Enable); !ok {
			t.Fatalf("expected Enable, got %#v", nodes[0])
		}
		if _, ok := nodes[1].(ast.Requires); !ok {
			t.Fatalf("expected Requires, got %#v", nodes[1])
		}
		if _, ok := nodes[2].(ast.Restrict); !ok {
			t.Fatalf("expected Restrict, got %#v", nodes[2])
		}
	})

	t.Run("version guard with not", func(t *testing.T) {
		nodes := parse(t, "version not BigEndian 1 end")
		n := nodes[0].(ast.Version)
		if n.Name != "BigEndian" || !n.Not || len(n.Body) != 1 {
			t.Fatalf("unexpected Version: %#v", n)
		}
	})
}

func TestParseConstUnionAlias(t *testing.T) {
	t.Run("const", func(t *testing.T) {
		nodes := parse(t, "const MAX 65535")
		n := nodes[0].(ast.Const)
		if n.Name != "MAX" || n.Value != 65535 {
			t.Fatalf("unexpected Const: %#v", n)
		}
	})

	t.Run("union", func(t *testing.T) {
		nodes := parse(t, "union number i16 u16 end")
		n := nodes[0].(ast.Union)
		if n.Name != "number" || len(n.Members) != 2 {
			t.Fatalf("unexpected Union: %#v", n)
		}
	})

	t.Run("alias with overwrite", func(t *testing.T) {
		nodes := parse(t, "alias overwrite byte u8")
		n := nodes[0].(ast.Alias)
		if n.To != "byte" || n.From != "u8" || !n.Overwrite {
			t.Fatalf("unexpected Alias: %#v", n)
		}
	})
}

func TestParseProgramSequencing(t *testing.T) {
	t.Run("multiple top-level statements advance past each other", func(t *testing.T) {
		nodes := parse(t, "let u16 x 1 -> x x")
		if len(nodes) != 4 {
			t.Fatalf("expected 4 top-level nodes, got %d: %#v", len(nodes), nodes)
		}
	})
}
