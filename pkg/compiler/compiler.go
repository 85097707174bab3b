// Package compiler runs the whole xcc pipeline, from source bytes to assembly text,
// and hands back everything the stages produced on the way. The driver, the corpus
// runner and the end-to-end tests all compile through it.
package compiler

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/codegen"
	"github.com/xplshn/xcc/pkg/config"
	"github.com/xplshn/xcc/pkg/intern"
	"github.com/xplshn/xcc/pkg/ir"
	"github.com/xplshn/xcc/pkg/lexer"
	"github.com/xplshn/xcc/pkg/optimizer"
	"github.com/xplshn/xcc/pkg/parser"
	"github.com/xplshn/xcc/pkg/resolve"
	"github.com/xplshn/xcc/pkg/symtab"
	"github.com/xplshn/xcc/pkg/token"
	"github.com/xplshn/xcc/pkg/typeChecker"
	"github.com/xplshn/xcc/pkg/util"
	"github.com/xplshn/xcc/pkg/x86"
)

// Stage names the last pipeline stage Compile runs.
type Stage int

const (
	StopLex Stage = iota + 1
	StopParse
	StopValidate
	StopTacky
	StopCodegen
	StopEmit
)

var stageNames = map[Stage]string{
	StopLex:      "lex",
	StopParse:    "parse",
	StopValidate: "validate",
	StopTacky:    "tacky",
	StopCodegen:  "codegen",
	StopEmit:     "emit",
}

func (s Stage) String() string { return stageNames[s] }

const (
	BackendX86 = "x86"
	BackendQBE = "qbe"
)

type Options struct {
	// Stop is the last stage to run; the zero value runs them all.
	Stop Stage
	// Backend is BackendX86 (the default) or BackendQBE.
	Backend string
	// Log receives stage progress at debug level. Nil discards it.
	Log *slog.Logger
}

// Result holds the output of every stage that ran. Fields of stages after
// Options.Stop are left zero.
type Result struct {
	Tokens   []token.Token
	AST      *ast.Program
	Resolved *ast.Program
	Typed    *ast.Program
	Types    ast.TypeMap
	Symbols  *symtab.Table
	TAC      *ir.Program
	// Optimized is nil unless an optimizer pass is enabled.
	Optimized *ir.Program
	Asm       []*x86.Function
	Consts    []x86.StaticConst
	IL        string
	Output    string
	Warnings  []*util.Error
}

// Final is the TAC handed to the code generator.
func (r *Result) Final() *ir.Program {
	if r.Optimized != nil {
		return r.Optimized
	}
	return r.TAC
}

// Compile runs src through the pipeline up to opts.Stop. On failure it returns the
// partial result together with the first diagnostic, a *util.Error.
func Compile(src []byte, cfg *config.Config, opts Options) (*Result, error) {
	stop := opts.Stop
	if stop == 0 {
		stop = StopEmit
	}
	backend := opts.Backend
	if backend == "" {
		backend = BackendX86
	}
	log := opts.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	switch backend {
	case BackendX86:
		if cfg.QbeTarget != "" && !cfg.NativeX86() {
			return nil, fmt.Errorf("the x86 backend cannot generate code for target '%s'", cfg.QbeTarget)
		}
	case BackendQBE:
		if cfg.QbeTarget == "" {
			return nil, fmt.Errorf("the qbe backend needs a target")
		}
	default:
		return nil, fmt.Errorf("unsupported backend '%s'", backend)
	}

	res := &Result{}
	pool := intern.NewPool()

	log.Debug("tokenizing", "bytes", len(src))
	toks, err := lexer.Tokenize(src, pool)
	if err != nil {
		return res, err
	}
	res.Tokens = toks
	if stop == StopLex {
		return res, nil
	}

	log.Debug("parsing", "tokens", len(toks))
	res.AST, err = parser.Parse(toks)
	if err != nil {
		return res, err
	}
	if stop == StopParse {
		return res, nil
	}

	log.Debug("resolving")
	res.Resolved, err = resolve.Resolve(res.AST, pool)
	if err != nil {
		return res, err
	}
	log.Debug("type checking")
	res.Symbols = symtab.New()
	tc := typeChecker.NewTypeChecker(cfg, res.Symbols, pool)
	res.Typed, res.Types, err = tc.Check(res.Resolved)
	res.Warnings = tc.Warnings()
	if err != nil {
		return res, err
	}
	if stop == StopValidate {
		return res, nil
	}

	log.Debug("lowering to TAC")
	res.TAC, err = codegen.NewContext(cfg, res.Symbols, pool, res.Types).GenerateIR(res.Typed)
	if err != nil {
		return res, err
	}
	if cfg.Optimizing() {
		log.Debug("optimizing", "functions", len(res.TAC.Funcs))
		res.Optimized = optimizer.Optimize(res.TAC, cfg)
	}
	if stop == StopTacky {
		return res, nil
	}

	log.Debug("generating assembly", "backend", backend, "target", cfg.QbeTarget)
	if backend == BackendQBE {
		return res, qbe(res, cfg, stop)
	}
	res.Asm, res.Consts, err = x86.Lower(res.Final())
	if err != nil || stop == StopCodegen {
		return res, err
	}
	var buf bytes.Buffer
	x86.Emit(&buf, cfg, res.Final(), res.Asm, res.Consts)
	res.Output = buf.String()
	return res, nil
}

func qbe(res *Result, cfg *config.Config, stop Stage) error {
	var err error
	res.IL, err = codegen.GenerateQBEIL(res.Final(), cfg)
	if err != nil || stop == StopCodegen {
		return err
	}
	buf, err := codegen.NewQBEBackend().Generate(res.Final(), cfg)
	if err != nil {
		return util.Errorf(util.CodegenError, token.Span{}, "%v", err)
	}
	res.Output = buf.String()
	return nil
}
