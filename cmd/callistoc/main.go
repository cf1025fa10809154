package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/callisto-lang/callisto/pkg/lexer"
	"github.com/callisto-lang/callisto/pkg/lower"
	"github.com/callisto-lang/callisto/pkg/parser"
	"github.com/callisto-lang/callisto/pkg/uxn"
	"github.com/teris-io/cli"
)

var Description = strings.ReplaceAll(`
The Callisto compiler translates a stack-oriented Callisto source file into
assembly for a selected target backend, then optionally invokes that
backend's assembler/linker to produce a final binary.
`, "\n", " ")

var Callistoc = cli.New(Description).
	WithArg(cli.NewArg("input", "The Callisto source (.cal) file to compile").
		WithType(cli.TypeString)).
	WithOption(cli.NewOption("output", "The compiled assembly output path").
		WithType(cli.TypeString)).
	WithOption(cli.NewOption("backend", "The target backend to compile for (default: uxn)").
		WithType(cli.TypeString)).
	WithOption(cli.NewOption("keep-asm", "Keeps the intermediate assembly file instead of deleting it").
		WithType(cli.TypeBool)).
	WithOption(cli.NewOption("opt", "A backend-specific option in key=value form, may be repeated").
		WithType(cli.TypeString)).
	WithAction(Handler)

// newBackend resolves the --backend flag to a concrete lower.Backend. UXN
// is the only backend shipped with this compiler; a second backend would
// be added here, not inside pkg/lower.
func newBackend(name string) (lower.Backend, error) {
	switch name {
	case "", "uxn":
		return uxn.New(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

func Handler(args []string, options map[string]string) int {
	if len(args) != 1 {
		fmt.Printf("ERROR: exactly one input file is required, use --help\n")
		return -1
	}
	input := args[0]
	output := options["output"]
	if output == "" {
		output = strings.TrimSuffix(input, ".cal") + ".tal"
	}

	backend, err := newBackend(options["backend"])
	if err != nil {
		fmt.Printf("ERROR: %s\n", err)
		return -1
	}

	if opt, ok := options["opt"]; ok {
		key, value, found := strings.Cut(opt, "=")
		if !found || !backend.HandleOption(key, value) {
			fmt.Printf("ERROR: backend does not recognise option %q\n", opt)
			return -1
		}
	}

	content, err := os.ReadFile(input)
	if err != nil {
		fmt.Printf("ERROR: unable to open input file: %s\n", err)
		return -1
	}

	tokens, err := lexer.Tokenize(input, content)
	if err != nil {
		fmt.Printf("ERROR: unable to complete 'lexing' pass: %s\n", err)
		return -1
	}
	nodes, err := parser.Parse(tokens)
	if err != nil {
		fmt.Printf("ERROR: unable to complete 'parsing' pass: %s\n", err)
		return -1
	}
	if err := lower.Compile(backend, nodes); err != nil {
		fmt.Printf("ERROR: unable to complete 'lowering' pass: %s\n", err)
		return -1
	}

	source, ok := backend.(interface{ Source() string })
	if !ok {
		fmt.Printf("ERROR: backend does not expose compiled source\n")
		return -1
	}
	if err := os.WriteFile(output, []byte(source.Source()), 0o644); err != nil {
		fmt.Printf("ERROR: unable to write output file: %s\n", err)
		return -1
	}

	ranFinal := false
	for _, cmdLine := range backend.FinalCommands() {
		cmdLine = strings.ReplaceAll(cmdLine, "%s", strings.TrimSuffix(output, ".tal"))
		parts := strings.Fields(cmdLine)
		if len(parts) == 0 {
			continue
		}
		cmd := exec.Command(parts[0], parts[1:]...)
		cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
		if err := cmd.Run(); err != nil {
			fmt.Printf("ERROR: final command %q failed: %s\n", cmdLine, err)
			return -1
		}
		ranFinal = true
	}

	if _, keep := options["keep-asm"]; !keep && ranFinal {
		// Once the backend's assembler has consumed the intermediate
		// assembly, it's scratch output rather than the thing the user
		// asked for; --keep-asm opts back in.
		os.Remove(output)
	}

	return 0
}

func main() { os.Exit(Callistoc.Run(os.Args, os.Stdout)) }
