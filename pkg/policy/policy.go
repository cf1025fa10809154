// Package policy holds Callisto's process-wide language policy: the
// reserved word list and the standard feature/version tags a backend may
// declare (spec.md §4.4). It is deliberately a small, static table rather
// than a loaded ABI description (contrast pkg/jack/stdlib.go's
// go:embed'd JSON) since nothing here varies per compiled program, only
// per backend, and every backend ships its own GetVersions() override.
package policy

// ReservedWords lists every identifier that may not be used as a function
// or variable name: the keyword surface (spec.md §6) plus the
// Word-resolution-level control verbs that have no dedicated keyword of
// their own (spec.md §4.3's CompileReturn/CompileBreak/CompileContinue).
var ReservedWords = buildReservedWords()

func buildReservedWords() map[string]bool {
	words := []string{
		"func", "inline", "raw", "begin", "end", "include", "asm",
		"if", "then", "elseif", "else", "while", "do", "let", "array",
		"enable", "requires", "struct", "version", "not", "const", "enum",
		"restrict", "union", "alias", "overwrite", "extern", "C", "implement",
		"->", "&", "[", "]", ":", "=",
		// Word-resolution-level control verbs (spec.md §4.3/§7), not lexical
		// keywords since they are resolved like any other bare identifier.
		"return", "break", "continue",
	}

	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// IsReserved reports whether 'name' may not be used as a function or
// variable name.
func IsReserved(name string) bool { return ReservedWords[name] }

// StandardFeatureTags are the feature/version identifiers any backend may
// plausibly declare through GetVersions(); spec.md §6 lists these as
// illustrative (IO, 16Bit, BigEndian). Version/Enable/Requires/Restrict
// consult a specific backend's GetVersions(), not this list directly —
// it exists so policy has a single place documenting the vocabulary.
var StandardFeatureTags = []string{"IO", "16Bit", "BigEndian"}

// IsKnownFeatureTag reports whether 'tag' is one of the standard,
// cross-backend feature vocabulary (a backend may still declare others).
func IsKnownFeatureTag(tag string) bool {
	for _, known := range StandardFeatureTags {
		if known == tag {
			return true
		}
	}
	return false
}
