package optimizer

import (
	"github.com/xplshn/xcc/pkg/ir"
	"github.com/xplshn/xcc/pkg/symtab"
)

type liveSet map[string]bool

func (s liveSet) clone() liveSet {
	out := make(liveSet, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

func (s liveSet) equal(o liveSet) bool {
	if len(s) != len(o) {
		return false
	}
	for k := range s {
		if !o[k] {
			return false
		}
	}
	return true
}

type deadStores struct {
	g       *Graph
	symbols *symtab.Table
	aliased map[string]bool
	escaped []string
	in      map[int]liveSet
	after   map[instrKey]liveSet
}

// EliminateDeadStores removes instructions whose only effect is to write a
// variable that is never read afterwards. Stores through pointers, calls, and
// writes to static or address-taken variables always stay.
func EliminateDeadStores(g *Graph, symbols *symtab.Table, aliased map[string]bool) bool {
	ds := &deadStores{g: g, symbols: symbols, aliased: aliased}
	for name := range aliased {
		ds.escaped = append(ds.escaped, name)
	}
	ds.escaped = append(ds.escaped, symbols.Statics()...)
	ds.solve()
	return ds.rewrite()
}

func (ds *deadStores) keep(name string) bool {
	return ds.aliased[name] || ds.symbols.IsStatic(name)
}

func (ds *deadStores) genEscaped(set liveSet) {
	for _, name := range ds.escaped {
		set[name] = true
	}
}

func use(set liveSet, v ir.Value) {
	if vr, ok := v.(ir.Var); ok {
		set[vr.Name] = true
	}
}

// transfer moves set from just after instr to just before it.
func (ds *deadStores) transfer(instr *ir.Instruction, set liveSet) {
	if dst, ok := instr.Dst.(ir.Var); ok {
		delete(set, dst.Name)
	}
	for _, a := range instr.Args {
		use(set, a)
	}
	switch instr.Op {
	case ir.OpCall, ir.OpLoad:
		ds.genEscaped(set)
	case ir.OpCopyFromOffset:
		set[instr.Label] = true
	}
}

func (ds *deadStores) meet(b *Block) liveSet {
	out := make(liveSet)
	for _, s := range b.Succs {
		if s == ExitID {
			ds.genEscaped(out)
			continue
		}
		for k := range ds.in[s] {
			out[k] = true
		}
	}
	return out
}

func (ds *deadStores) solve() {
	ds.in = make(map[int]liveSet)
	ds.after = make(map[instrKey]liveSet)
	order := ds.g.postorder()

	queued := make(map[int]bool)
	work := append([]*Block(nil), order...)
	for _, b := range work {
		queued[b.ID] = true
	}
	for len(work) > 0 {
		b := work[0]
		work = work[1:]
		queued[b.ID] = false

		set := ds.meet(b)
		for i := len(b.Instrs) - 1; i >= 0; i-- {
			ds.after[instrKey{b.ID, i}] = set.clone()
			ds.transfer(b.Instrs[i], set)
		}
		if old, ok := ds.in[b.ID]; !ok || !set.equal(old) {
			ds.in[b.ID] = set
			for _, p := range b.Preds {
				if p >= 0 && !queued[p] {
					work = append(work, ds.g.Blocks[p])
					queued[p] = true
				}
			}
		}
	}
}

// dead reports whether instr only writes a variable that is dead after it.
func (ds *deadStores) dead(instr *ir.Instruction, live liveSet) bool {
	var name string
	switch {
	case instr.Op == ir.OpCall || instr.Op == ir.OpStore:
		return false
	case instr.Op == ir.OpCopyToOffset:
		name = instr.Label
	default:
		dst, ok := instr.Dst.(ir.Var)
		if !ok {
			return false
		}
		name = dst.Name
	}
	return !live[name] && !ds.keep(name)
}

func (ds *deadStores) rewrite() bool {
	changed := false
	for _, b := range ds.g.Blocks {
		kept := b.Instrs[:0]
		for i, instr := range b.Instrs {
			live, ok := ds.after[instrKey{b.ID, i}]
			if ok && ds.dead(instr, live) {
				changed = true
				continue
			}
			kept = append(kept, instr)
		}
		b.Instrs = kept
	}
	return changed
}
