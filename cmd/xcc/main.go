package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goforj/godump"
	"github.com/xplshn/xcc/pkg/cli"
	"github.com/xplshn/xcc/pkg/compiler"
	"github.com/xplshn/xcc/pkg/config"
	"github.com/xplshn/xcc/pkg/util"
)

type options struct {
	output       string
	target       string
	backend      string
	libs         []string
	verbose      bool
	optimize     bool
	noOptimize   bool
	wall         bool
	noPreprocess bool

	lex, parse, validate, tacky, codegen bool
	assembly, object                     bool
	dumpAST, dumpTAC, dumpAsm            bool
}

func (o *options) stop() compiler.Stage {
	switch {
	case o.lex:
		return compiler.StopLex
	case o.parse:
		return compiler.StopParse
	case o.validate:
		return compiler.StopValidate
	case o.tacky:
		return compiler.StopTacky
	case o.codegen:
		return compiler.StopCodegen
	}
	return compiler.StopEmit
}

// exitError carries a status for main without printing anything more.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	app := cli.NewApp("xcc")
	app.Synopsis = "[options] <input.c>"
	app.Description = "A compiler for a subset of C targeting x86-64. It lowers C to three-address code, optionally optimizes it, and emits GNU assembly."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/xcc>"
	app.Since = 2025

	var o options
	fs := app.FlagSet
	fs.String(&o.output, "output", "o", "", "Place the output into <file>.", "file")
	fs.String(&o.target, "target", "t", "", "Set the target ABI (amd64_sysv, amd64_apple, arm64, ...).", "target")
	fs.String(&o.backend, "backend", "b", "", "Select the code generator: x86 or qbe.", "backend")
	fs.Prefix(&o.libs, "l", "Link with a library (e.g., -lm).", "lib")
	fs.Bool(&o.verbose, "verbose", "v", false, "Log every compilation stage.")
	fs.Bool(&o.optimize, "optimize", "O", false, "Enable every optimization pass.")
	fs.Bool(&o.noOptimize, "O0", "", false, "Disable every optimization pass.")
	fs.Bool(&o.wall, "Wall", "", false, "Enable all warnings.")
	fs.Bool(&o.noPreprocess, "no-preprocess", "", false, "Compile the input as is, without running the C preprocessor.")
	fs.Bool(&o.lex, "lex", "", false, "Stop after lexing.")
	fs.Bool(&o.parse, "parse", "", false, "Stop after parsing.")
	fs.Bool(&o.validate, "validate", "", false, "Stop after semantic analysis.")
	fs.Bool(&o.tacky, "tacky", "", false, "Stop after generating three-address code.")
	fs.Bool(&o.codegen, "codegen", "", false, "Stop after instruction selection.")
	fs.Bool(&o.assembly, "assembly", "S", false, "Write assembly to <input>.s and stop.")
	fs.Bool(&o.object, "compile", "c", false, "Assemble to an object file and stop.")
	fs.Bool(&o.dumpAST, "dump-ast", "", false, "Print the syntax tree.")
	fs.Bool(&o.dumpTAC, "dump-tac", "", false, "Print the three-address code.")
	fs.Bool(&o.dumpAsm, "dump-asm", "", false, "Print the generated assembly.")

	cfg := config.NewConfig()
	cfg.FromEnv()
	warnings, features := cfg.SetupFlagGroups(fs)

	app.Action = func(inputs []string) error {
		if len(inputs) != 1 {
			fmt.Fprintln(os.Stderr, "xcc: expected exactly one input file")
			app.Usage(os.Stderr)
			return exitError{1}
		}
		level := slog.LevelInfo
		if o.verbose {
			level = slog.LevelDebug
		}
		log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		if err := configure(cfg, &o, warnings, features); err != nil {
			util.Report(os.Stderr, "", nil, err)
			return exitError{1}
		}
		return compile(inputs[0], cfg, &o, log)
	}

	if err := app.Run(os.Args[1:]); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

func configure(cfg *config.Config, o *options, warnings, features []cli.FlagGroupEntry) error {
	target := o.target
	if target == "" {
		target = cfg.QbeTarget
	}
	if err := cfg.SetTarget(runtime.GOOS, runtime.GOARCH, target); err != nil {
		return err
	}
	if o.backend != "" {
		cfg.BackendName = o.backend
	}
	if cfg.BackendName == compiler.BackendX86 && !cfg.NativeX86() {
		fmt.Fprintf(os.Stderr, "xcc: info: target '%s' is not x86-64, using the qbe backend\n", cfg.QbeTarget)
		cfg.BackendName = compiler.BackendQBE
	}

	if o.optimize {
		cfg.SetOptimize(true)
	}
	if o.noOptimize {
		cfg.SetOptimize(false)
	}
	if o.wall {
		cfg.ProcessFlags([]string{"Wall"})
	}
	cfg.ApplyFlagGroups(warnings, features)
	return nil
}

func compile(input string, cfg *config.Config, o *options, log *slog.Logger) error {
	src, err := readSource(input, cfg, o.noPreprocess, log)
	if err != nil {
		util.Report(os.Stderr, input, nil, err)
		return exitError{1}
	}

	res, err := compiler.Compile(src, cfg, compiler.Options{Stop: o.stop(), Backend: cfg.BackendName, Log: log})
	if res == nil {
		util.Report(os.Stderr, input, src, err)
		return exitError{1}
	}
	for _, w := range res.Warnings {
		util.Report(os.Stderr, input, src, w)
	}
	if err != nil {
		util.Report(os.Stderr, input, src, err)
		return exitError{util.ExitCode(err)}
	}

	if o.dumpAST && res.Typed != nil {
		godump.Dump(res.Typed)
	} else if o.dumpAST && res.AST != nil {
		godump.Dump(res.AST)
	}
	if o.dumpTAC && res.TAC != nil {
		fmt.Print(res.Final().String())
	}
	if o.dumpAsm && res.Output != "" {
		fmt.Print(res.Output)
	}
	if o.stop() != compiler.StopEmit {
		return nil
	}

	base := strings.TrimSuffix(input, filepath.Ext(input))
	if o.assembly {
		out := o.output
		if out == "" {
			out = base + ".s"
		}
		if err := os.WriteFile(out, []byte(res.Output), 0o644); err != nil {
			util.Report(os.Stderr, input, nil, fmt.Errorf("writing assembly: %w", err))
			return exitError{1}
		}
		return nil
	}

	out := o.output
	if out == "" {
		out = base
		if o.object {
			out = base + ".o"
		} else if out == input {
			out = "a.out"
		}
	}
	log.Debug("assembling and linking", "output", out, "cc", cfg.CC)
	if err := assemble(cfg, res.Output, out, o.object, o.libs); err != nil {
		util.Report(os.Stderr, input, nil, err)
		return exitError{1}
	}
	return nil
}

// readSource returns the input after running it through "cc -E -P", or the raw
// file with noPreprocess.
func readSource(input string, cfg *config.Config, noPreprocess bool, log *slog.Logger) ([]byte, error) {
	if noPreprocess {
		return os.ReadFile(input)
	}
	log.Debug("preprocessing", "input", input, "cc", cfg.CC)
	cmd := exec.Command(cfg.CC, "-E", "-P", input)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("preprocessor failed: %w\n%s", err, stderr.String())
	}
	return out, nil
}

func assemble(cfg *config.Config, asm, out string, object bool, libs []string) error {
	f, err := os.CreateTemp("", "xcc-*.s")
	if err != nil {
		return fmt.Errorf("creating temp file for assembly: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(asm); err != nil {
		f.Close()
		return fmt.Errorf("writing temp file for assembly: %w", err)
	}
	f.Close()

	args := []string{"-o", out, f.Name()}
	switch {
	case object:
		args = append([]string{"-c"}, args...)
	case cfg.Platform == config.Linux:
		// Extern data is addressed directly rather than through the GOT.
		args = append([]string{"-no-pie"}, args...)
	}
	if !object {
		for _, lib := range libs {
			args = append(args, "-l"+lib)
		}
	}
	if output, err := exec.Command(cfg.CC, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("%s failed: %w\n%s", cfg.CC, err, output)
	}
	return nil
}
