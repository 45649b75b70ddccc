package main

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"nand2go.dev/toolchain/pkg/jack"
	"nand2go.dev/toolchain/pkg/utils"
	"nand2go.dev/toolchain/pkg/vm"

	"github.com/teris-io/cli"
)

var Description = strings.ReplaceAll(`
The Jack Compiler compiles programs (composed of multiple classes/files) written in
the Jack language into VM modules that can be further elaborated. The Jack language
is a higher-level OOP language tailored for use with the Hack computer architecture.
`, "\n", " ")

var JackCompiler = cli.New(Description).
	// 'AsOptional()' allows to have more than one input .jack file or directory
	WithArg(cli.NewArg("inputs", "The source (.jack) files to be compiled").
		AsOptional().WithType(cli.TypeString)).
	WithOption(cli.NewOption("stdlib", "Uses the built-in ABI of the standard library for lowering").
		WithType(cli.TypeBool)).
	WithOption(cli.NewOption("typecheck", "Does a full type check of source code before emitting any output").
		WithType(cli.TypeBool)).
	WithAction(Handler)

// moduleName strips a translation unit's directory and extension, yielding the class
// name the rest of the pipeline uses as both the jack.Program key and the .vm stem.
func moduleName(tu string) string {
	filename, extension := path.Base(tu), path.Ext(tu)
	return strings.TrimSuffix(filename, extension)
}

// discoverInputs expands each CLI argument (a file or a directory) into the flat list
// of '.jack' translation units to compile, recursing into directories.
func discoverInputs(args []string) []string {
	var tus []string
	for _, input := range args {
		filepath.Walk(input, func(p string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || filepath.Ext(p) != ".jack" {
				return nil
			}
			tus = append(tus, p)
			return nil
		})
	}
	return tus
}

// parseSources parses every translation unit into its jack.Class, keyed by module name.
func parseSources(tus []string) (jack.Program, error) {
	program := jack.Program{}

	for _, tu := range tus {
		content, err := os.ReadFile(tu)
		if err != nil {
			return nil, fmt.Errorf("unable to open input file: %w", err)
		}

		parser := jack.NewParser(bytes.NewReader(content))
		class, err := parser.Parse()
		if err != nil {
			return nil, fmt.Errorf("unable to complete 'parsing' pass: %w", err)
		}
		program[moduleName(tu)] = class
	}

	return program, nil
}

// linkStandardLibrary registers every OS class's call signatures into 'program' (as
// subroutine declarations with no body) so later passes can resolve calls to them
// without requiring their Jack source to be present.
func linkStandardLibrary(program jack.Program) {
	for name, abi := range jack.StandardLibraryABI {
		class := jack.Class{Name: name, Subroutines: utils.OrderedMap[string, jack.Subroutine]{}}
		for subName, subroutine := range abi {
			class.Subroutines.Set(subName, subroutine)
		}
		program[name] = class
	}
}

// writeModules emits one '<tu-without-ext>.vm' file per translation unit from the
// generator's output, matching modules back to their source file by name.
func writeModules(tus []string, compiled map[string][]string) error {
	for _, tu := range tus {
		module, ok := compiled[moduleName(tu)]
		if !ok {
			return fmt.Errorf("unable to compile module for class file '%s'", tu)
		}

		dest := fmt.Sprintf("%s.vm", strings.TrimSuffix(tu, path.Ext(tu)))
		output, err := os.Create(dest)
		if err != nil {
			return fmt.Errorf("unable to open output file: %w", err)
		}

		var buf bytes.Buffer
		for _, line := range module {
			fmt.Fprintf(&buf, "%s\n", line)
		}
		_, writeErr := output.Write(buf.Bytes())
		output.Close()
		if writeErr != nil {
			return fmt.Errorf("unable to write output file: %w", writeErr)
		}
	}
	return nil
}

// Handler drives the Jack compiler pipeline: discover sources, parse, optionally link
// the standard library ABI and typecheck, lower to VM operations, generate VM text,
// and write one '.vm' file per input class.
func Handler(args []string, options map[string]string) int {
	if len(args) < 1 {
		fmt.Printf("ERROR: Not enough arguments provided, use --help\n")
		return -1
	}

	tus := discoverInputs(args)

	program, err := parseSources(tus)
	if err != nil {
		fmt.Printf("ERROR: %s\n", err)
		return -1
	}

	// Adds the stdlib ABI so calls into it resolve without requiring its Jack source;
	// these declarations are lowered like any other class, but only the modules that
	// match an input file are written out, so no stdlib '.vm' file is produced.
	if _, enabled := options["stdlib"]; enabled {
		linkStandardLibrary(program)
	}

	if _, enabled := options["typecheck"]; enabled {
		checker := jack.NewTypeChecker(program)
		if _, err := checker.Check(); err != nil {
			fmt.Printf("ERROR: Unable to complete 'typecheck' pass: %s\n", err)
			return -1
		}
	}

	lowerer := jack.NewLowerer(program)
	vmProgram, err := lowerer.Lowerer()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'lowering' pass: %s\n", err)
		return -1
	}

	codegen := vm.NewCodeGenerator(vmProgram)
	compiled, err := codegen.Generate()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'codegen' pass: %s\n", err)
		return -1
	}

	if err := writeModules(tus, compiled); err != nil {
		fmt.Printf("ERROR: %s\n", err)
		return -1
	}

	return 0
}

func main() { os.Exit(JackCompiler.Run(os.Args, os.Stdout)) }
