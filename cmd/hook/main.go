// Command hook is the canonical launcher for the Hook scripting
// language (spec.md §6.3): it compiles or loads a program, optionally
// dumps its disassembly, and runs it on a fresh VM.
package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/hooklang/hook/pkg/bytecode"
	"github.com/hooklang/hook/pkg/compiler"
	"github.com/hooklang/hook/pkg/value"
	"github.com/hooklang/hook/pkg/vm"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	flags := pflag.NewFlagSet("hook", pflag.ContinueOnError)
	flags.SetOutput(io.Discard)

	help := flags.BoolP("help", "h", false, "print usage and exit")
	showVersion := flags.BoolP("version", "v", false, "print version and exit")
	eval := flags.BoolP("eval", "e", false, "treat the input path as source text, not a file")
	analyze := flags.BoolP("analyze", "a", false, "compile only, do not run")
	dump := flags.BoolP("dump", "d", false, "print bytecode disassembly")
	compile := flags.StringP("compile", "c", "", "write serialized bytecode to path (default a.out)")
	compileFlag := flags.Lookup("compile")
	compileFlag.NoOptDefVal = "a.out"
	runBytecode := flags.BoolP("run", "r", false, "interpret the input as serialized bytecode")
	stackSize := flags.IntP("stack-size", "s", vm.DefaultStackSize, "VM stack size")

	if err := flags.Parse(argv); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	log := newLogger()
	errColor := newErrorColor()

	if *help {
		printUsage(os.Stdout)
		return 0
	}
	if *showVersion {
		fmt.Println("hook", version)
		return 0
	}

	positional := flags.Args()
	inputPath := "-"
	if len(positional) > 0 {
		inputPath = positional[0]
		positional = positional[1:]
	}

	closure, err := load(inputPath, *eval, *runBytecode, *analyze)
	if err != nil {
		fmt.Fprintln(os.Stderr, errColor.Sprintf("error: %v", err))
		log.Error().Err(err).Str("input", inputPath).Msg("failed to load program")
		return 1
	}
	if *analyze {
		return 0
	}

	if *dump {
		bytecode.Dump(os.Stdout, closure.Proto)
		return 0
	}

	if *compile != "" {
		outPath := *compile
		if len(positional) > 0 {
			outPath = positional[0]
			positional = positional[1:]
		}
		if err := writeBytecode(outPath, closure.Proto); err != nil {
			fmt.Fprintln(os.Stderr, errColor.Sprintf("error: %v", err))
			return 1
		}
		return 0
	}

	args := make([]value.Value, len(positional))
	for i, a := range positional {
		args[i] = value.Retain(value.FromString(value.NewString(a)))
	}

	machine := vm.New(vm.WithStackSize(*stackSize), vm.WithLogger(log))
	result, err := machine.Run(closure, vm.NewArrayValue(args))
	if err != nil {
		fmt.Fprintln(os.Stderr, errColor.Sprintf("runtime error: %v", err))
		log.Error().Err(err).Msg("script raised an error")
		if machine.IsExit() {
			return machine.ExitCode()
		}
		return 1
	}

	if result.IsInteger() {
		return int(result.AsInt())
	}
	return 0
}

// load compiles a source file/string or decodes a .hkb bytecode file,
// honoring --eval, --run, and --analyze.
func load(inputPath string, eval, asBytecode, analyze bool) (*bytecode.Closure, error) {
	var source []byte
	var err error
	if eval {
		source = []byte(inputPath)
	} else if inputPath == "-" || inputPath == "" {
		source, err = io.ReadAll(os.Stdin)
	} else {
		source, err = os.ReadFile(inputPath)
	}
	if err != nil {
		return nil, err
	}

	if asBytecode {
		fn, err := bytecode.Decode(bytes.NewReader(source))
		if err != nil {
			return nil, err
		}
		return bytecode.NewClosure(fn), nil
	}

	opts := []compiler.Option{}
	if analyze {
		opts = append(opts, compiler.WithAnalyze())
	}
	name := inputPath
	if eval {
		name = "<eval>"
	}
	return compiler.Compile(name, stripShebang(string(source)), opts...)
}

func writeBytecode(path string, fn *bytecode.Function) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return bytecode.Encode(f, fn)
}

func stripShebang(src string) string {
	if len(src) >= 2 && src[0] == '#' && src[1] == '!' {
		for i := 2; i < len(src); i++ {
			if src[i] == '\n' {
				return src[i+1:]
			}
		}
		return ""
	}
	return src
}

func newLogger() zerolog.Logger {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func newErrorColor() *color.Color {
	c := color.New(color.FgRed, color.Bold)
	c.EnableColor()
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		c.DisableColor()
	}
	return c
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "hook - a small dynamically typed scripting language")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "usage: hook [flags] [input] [args...]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "flags:")
	fmt.Fprintln(w, "  -h, --help            print usage and exit")
	fmt.Fprintln(w, "  -v, --version         print version and exit")
	fmt.Fprintln(w, "  -e, --eval            treat input as source text")
	fmt.Fprintln(w, "  -a, --analyze         compile only, do not run")
	fmt.Fprintln(w, "  -d, --dump            print bytecode disassembly")
	fmt.Fprintln(w, "  -c, --compile[=path]  write bytecode to path (default a.out)")
	fmt.Fprintln(w, "  -r, --run             interpret input as serialized bytecode")
	fmt.Fprintln(w, "  -s=<n>                set VM stack size")
}
