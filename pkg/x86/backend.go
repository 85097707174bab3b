package x86

import (
	"bytes"

	"github.com/xplshn/xcc/pkg/codegen"
	"github.com/xplshn/xcc/pkg/config"
	"github.com/xplshn/xcc/pkg/ir"
	"github.com/xplshn/xcc/pkg/token"
	"github.com/xplshn/xcc/pkg/util"
)

type bailout struct{ err *util.Error }

func fail(format string, args ...any) {
	panic(bailout{util.Errorf(util.CodegenError, token.Span{}, format, args...)})
}

// Backend emits GAS assembly for x86-64 directly, without an external code generator.
type Backend struct{}

func NewBackend() codegen.Backend { return &Backend{} }

func catch(err *error) {
	if r := recover(); r != nil {
		bo, ok := r.(bailout)
		if !ok {
			panic(r)
		}
		*err = bo.err
	}
}

func (b *Backend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	funcs, consts, err := Lower(prog)
	if err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	Emit(buf, cfg, prog, funcs, consts)
	return buf, nil
}

// Lower turns prog into abstract assembly with every operand on the stack or in a
// hard register, ready for Emit.
func Lower(prog *ir.Program) (funcs []*Function, consts []StaticConst, err error) {
	defer catch(&err)
	funcs, consts = lower(prog)
	return funcs, consts, nil
}

// lower selects instructions for every function in prog, then assigns stack slots
// and fixes up operands.
func lower(prog *ir.Program) ([]*Function, []StaticConst) {
	consts := &constPool{}
	labels := 0
	var out []*Function
	for _, fn := range prog.Funcs {
		s := &selector{
			prog:    prog,
			symbols: prog.Symbols,
			consts:  consts,
			labels:  &labels,
			extra:   make(map[string]AsmType),
		}
		f := s.function(fn)
		allocateStack(f, prog.Symbols, s.extra)
		fixInstructions(f)
		out = append(out, f)
	}
	return out, consts.list
}
