package main

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/teris-io/cli"
	"nand2go.dev/toolchain/pkg/asm"
	"nand2go.dev/toolchain/pkg/vm"
)

var Description = strings.ReplaceAll(`
The VM Translator translates programs (composed of multiple modules/files) written in
the VM language into Hack assembly code that can be further elaborated. The VM language
is a higher-level (bytecode'like) language tailored for use with the Hack computer arch.
`, "\n", " ")

var VmTranslator = cli.New(Description).
	// 'AsOptional()' allows to have more than one input .vm file
	WithArg(cli.NewArg("inputs", "The bytecode (.vm) file to be compiled").
		AsOptional().WithType(cli.TypeString)).
	WithOption(cli.NewOption("output", "The compiled binary output (.asm)").
		WithType(cli.TypeString)).
	WithOption(cli.NewOption("bootstrap", "Includes bootstrap code in the final .asm file").
		WithType(cli.TypeBool)).
	WithAction(Handler)

// bootstrapPrelude sets SP to its base address (256) and jumps into Sys.init, matching
// what a real Hack computer's ROM must contain before any compiled VM code runs.
var bootstrapPrelude = []asm.Statement{
	asm.AInstruction{Location: "256"},
	asm.CInstruction{Dest: "D", Comp: "A"},
	asm.AInstruction{Location: "SP"},
	asm.CInstruction{Dest: "M", Comp: "D"},
	asm.AInstruction{Location: "Sys.init"},
	asm.CInstruction{Comp: "0", Jump: "JMP"},
}

// parseInputs parses every '.vm' input file into its own vm.Module, keyed by filename
// (each VM file gets independent static-variable namespacing, so the key must be
// preserved through to lowering rather than collapsed early).
func parseInputs(inputs []string) (vm.Program, error) {
	program := vm.Program{}

	for _, input := range inputs {
		content, err := os.ReadFile(input)
		if err != nil {
			return nil, fmt.Errorf("unable to open input file: %w", err)
		}

		parser := vm.NewParser(bytes.NewReader(content))
		module, err := parser.Parse()
		if err != nil {
			return nil, fmt.Errorf("unable to complete 'parsing' pass: %w", err)
		}
		program[path.Base(input)] = module
	}

	return program, nil
}

// translate lowers a parsed vm.Program to Hack assembly text, optionally prefixing the
// bootstrap sequence that initializes the stack pointer and enters Sys.init.
func translate(program vm.Program, includeBootstrap bool) ([]string, error) {
	lowerer := vm.NewLowerer(program)
	asmProgram, err := lowerer.Lowerer()
	if err != nil {
		return nil, fmt.Errorf("unable to complete 'lowering' pass: %w", err)
	}

	if includeBootstrap {
		asmProgram = append(append([]asm.Statement{}, bootstrapPrelude...), asmProgram...)
	}

	codegen := asm.NewCodeGenerator(asmProgram)
	compiled, err := codegen.Generate()
	if err != nil {
		return nil, fmt.Errorf("unable to complete 'codegen' pass: %w", err)
	}

	return compiled, nil
}

func Handler(args []string, options map[string]string) int {
	if len(args) < 1 || options["output"] == "" {
		fmt.Printf("ERROR: Not enough arguments provided, use --help\n")
		return -1
	}

	program, err := parseInputs(args)
	if err != nil {
		fmt.Printf("ERROR: %s\n", err)
		return -1
	}

	_, bootstrap := options["bootstrap"]
	compiled, err := translate(program, bootstrap)
	if err != nil {
		fmt.Printf("ERROR: %s\n", err)
		return -1
	}

	output, err := os.Create(options["output"])
	if err != nil {
		fmt.Printf("ERROR: Unable to open output file: %s\n", err)
		return -1
	}
	defer output.Close()

	for _, line := range compiled {
		fmt.Fprintf(output, "%s\n", line)
	}

	return 0
}

func main() { os.Exit(VmTranslator.Run(os.Args, os.Stdout)) }
