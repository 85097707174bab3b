// Package optimizer rewrites TAC function bodies with four classic passes: constant
// folding, unreachable-code elimination, copy propagation and dead-store
// elimination. Each pass is enabled by its own feature flag, and the enabled passes
// run in turn until none of them changes the body.
package optimizer

import (
	"github.com/xplshn/xcc/pkg/config"
	"github.com/xplshn/xcc/pkg/ir"
	"github.com/xplshn/xcc/pkg/symtab"
)

// Optimize returns a copy of prog with every function body optimized. prog itself
// is left untouched.
func Optimize(prog *ir.Program, cfg *config.Config) *ir.Program {
	out := &ir.Program{Globals: prog.Globals, Symbols: prog.Symbols}
	for _, fn := range prog.Funcs {
		opt := *fn
		opt.Body = OptimizeFunc(fn.Body, prog.Symbols, cfg)
		out.Funcs = append(out.Funcs, &opt)
	}
	return out
}

// OptimizeFunc runs the enabled passes over a copy of body until it stops changing.
func OptimizeFunc(body []*ir.Instruction, symbols *symtab.Table, cfg *config.Config) []*ir.Instruction {
	cur := make([]*ir.Instruction, len(body))
	for i, instr := range body {
		cur[i] = instr.Clone()
	}
	if len(cur) == 0 {
		return cur
	}

	aliased := Aliased(cur, symbols)
	for {
		changed := false
		if cfg.IsFeatureEnabled(config.FeatFoldConstants) {
			var c bool
			cur, c = FoldConstants(cur, symbols)
			changed = changed || c
		}
		g := BuildGraph(cur)
		if cfg.IsFeatureEnabled(config.FeatEliminateUnreachable) {
			changed = EliminateUnreachable(g) || changed
		}
		if cfg.IsFeatureEnabled(config.FeatPropagateCopies) {
			changed = PropagateCopies(g, symbols, aliased) || changed
		}
		if cfg.IsFeatureEnabled(config.FeatEliminateDeadStores) {
			changed = EliminateDeadStores(g, symbols, aliased) || changed
		}
		cur = g.Instructions()
		if !changed {
			return cur
		}
	}
}

// Aliased collects the variables a function can reach other than by name: those
// whose address it takes and every static object it mentions.
func Aliased(body []*ir.Instruction, symbols *symtab.Table) map[string]bool {
	out := make(map[string]bool)
	mark := func(v ir.Value) {
		if vr, ok := v.(ir.Var); ok && symbols.IsStatic(vr.Name) {
			out[vr.Name] = true
		}
	}
	for _, instr := range body {
		if instr.Op == ir.OpAddr {
			if vr, ok := instr.Args[0].(ir.Var); ok {
				out[vr.Name] = true
			}
		}
		for _, a := range instr.Args {
			mark(a)
		}
		if instr.Dst != nil {
			mark(instr.Dst)
		}
	}
	return out
}
