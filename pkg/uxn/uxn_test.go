package uxn_test

import (
	"strings"
	"testing"

	"github.com/callisto-lang/callisto/pkg/lower"
	"github.com/callisto-lang/callisto/pkg/uxn"
)

func TestInitPreamble(t *testing.T) {
	cg := uxn.New()
	if err := cg.Init(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	src := cg.Source()

	for _, want := range []string{"|0", "@vsp $2", "|100", "#ffff .vsp STZ2", ";on-reset JMP2"} {
		if !strings.Contains(src, want) {
			t.Fatalf("expected preamble to contain %q, got:\n%s", want, src)
		}
	}
}

func TestIntegerEmission(t *testing.T) {
	test := func(value int64, want string) {
		cg := uxn.New()
		if err := cg.CompileInteger(value); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if !strings.Contains(cg.Source(), want) {
			t.Fatalf("CompileInteger(%d): expected to contain %q, got %q", value, want, cg.Source())
		}
	}

	t.Run("byte-sized value uses the short literal form", func(t *testing.T) {
		test(0x12, "#12")
	})

	t.Run("word-sized value uses the long literal form", func(t *testing.T) {
		test(0x1234, "#1234")
	})
}

func TestLocalWordLoadStore(t *testing.T) {
	t.Run("8-bit local load uses LDA not LDA2", func(t *testing.T) {
		cg := uxn.New()
		if err := cg.CompileWord(lower.WordRef{Kind: lower.WordLocal, Offset: 2, Size: 1}); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if !strings.Contains(cg.Source(), "LDA\n") {
			t.Fatalf("expected an 8-bit LDA, got %q", cg.Source())
		}
	})

	t.Run("16-bit local load uses LDA2", func(t *testing.T) {
		cg := uxn.New()
		if err := cg.CompileWord(lower.WordRef{Kind: lower.WordLocal, Offset: 2, Size: 2}); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if !strings.Contains(cg.Source(), "LDA2") {
			t.Fatalf("expected a 16-bit LDA2, got %q", cg.Source())
		}
	})

	t.Run("global load references the mangled symbol", func(t *testing.T) {
		cg := uxn.New()
		if err := cg.CompileWord(lower.WordRef{Kind: lower.WordGlobal, Name: "counter", Size: 2}); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if !strings.Contains(cg.Source(), ";global_counter LDA2") {
			t.Fatalf("expected a global load, got %q", cg.Source())
		}
	})
}

func TestScopeExitAlwaysUsesAdd2(t *testing.T) {
	t.Run("releasing vsp always emits ADD2, never 8-bit ADD", func(t *testing.T) {
		cg := uxn.New()
		err := cg.CompileScopeExit(lower.ScopeCleanup{TotalSize: 4})
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		src := cg.Source()
		if !strings.Contains(src, "ADD2") {
			t.Fatalf("expected ADD2 in scope-exit release, got %q", src)
		}
		if strings.Contains(strings.ReplaceAll(src, "ADD2", ""), "ADD") {
			t.Fatalf("expected no bare 8-bit ADD alongside ADD2, got %q", src)
		}
	})

	t.Run("zero total size emits no release at all", func(t *testing.T) {
		cg := uxn.New()
		if err := cg.CompileScopeExit(lower.ScopeCleanup{}); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if cg.Source() != "" {
			t.Fatalf("expected no emission for an empty scope, got %q", cg.Source())
		}
	})

	t.Run("return with locals runs deinit before releasing and then returns", func(t *testing.T) {
		cg := uxn.New()
		cleanup := lower.ScopeCleanup{
			Locals:    []lower.CleanupVar{{Name: "buf", Offset: 0, DeinitSymbol: "type_deinit_buf_t"}},
			TotalSize: 10,
		}
		if err := cg.CompileReturn(cleanup); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		src := cg.Source()
		if !strings.Contains(src, ";type_deinit_buf_t JSR2") {
			t.Fatalf("expected a deinit call, got %q", src)
		}
		if strings.Index(src, ";type_deinit_buf_t JSR2") > strings.Index(src, "#000a .vsp LDZ2 ADD2") {
			t.Fatalf("expected the deinit call before the vsp release, got %q", src)
		}
		if !strings.HasSuffix(strings.TrimSpace(src), "JMP2r") {
			t.Fatalf("expected the function return to end with JMP2r, got %q", src)
		}
	})
}

func TestIfWhileLabels(t *testing.T) {
	t.Run("if with no else branches straight to the end label", func(t *testing.T) {
		cg := uxn.New()
		clauses := []lower.IfClauseInfo{{
			Condition: func() error { return cg.CompileInteger(1) },
			Body:      func() error { return cg.CompileInteger(2) },
		}}
		if err := cg.CompileIf(7, clauses, false, nil); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		src := cg.Source()
		if !strings.Contains(src, "@if_7_end") {
			t.Fatalf("expected an end label, got %q", src)
		}
	})

	t.Run("while emits a condition label and an end label for break", func(t *testing.T) {
		cg := uxn.New()
		err := cg.CompileWhile(3,
			func() error { return cg.CompileInteger(1) },
			func() error { return cg.CompileBreak(3) },
		)
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		src := cg.Source()
		if !strings.Contains(src, "@while_3_cond") || !strings.Contains(src, "@while_3_end") {
			t.Fatalf("expected while_3_cond and while_3_end labels, got %q", src)
		}
		if !strings.Contains(src, ";while_3_end JMP2") {
			t.Fatalf("expected break to jump to while_3_end, got %q", src)
		}
	})
}

func TestFuncDefFrameAndParamOrder(t *testing.T) {
	t.Run("param stores run in reverse declared order", func(t *testing.T) {
		cg := uxn.New()
		info := lower.FuncDefInfo{
			Name: "add", MangledSymbol: "func__add", FrameSize: 4,
			Params: []lower.ParamInfo{
				{Name: "a", Offset: 2, Size: 2},
				{Name: "b", Offset: 0, Size: 2},
			},
		}
		called := false
		err := cg.CompileFuncDef(info, func() error { called = true; return nil })
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if !called {
			t.Fatal("expected the body continuation to run")
		}
		// Params are pushed in declared order (a then b), which places the
		// last-declared param (b) at the lowest vsp offset; a stack-based
		// calling convention pops in reverse push order, so b's store must
		// run before a's.
		src := cg.Source()
		bStore := strings.Index(src, "#0000")
		aStore := strings.Index(src, "#0002")
		if bStore == -1 || aStore == -1 || bStore > aStore {
			t.Fatalf("expected offset 0 (b) stored before offset 2 (a), got %q", src)
		}
	})
}

func TestMaxIntAndVersions(t *testing.T) {
	cg := uxn.New()
	if cg.MaxInt() != 0xffff {
		t.Fatalf("expected MaxInt 0xffff, got %#x", cg.MaxInt())
	}
	found := false
	for _, v := range cg.GetVersions() {
		if v == "IO" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected IO in GetVersions, got %v", cg.GetVersions())
	}
}
