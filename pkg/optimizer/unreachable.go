package optimizer

import "github.com/xplshn/xcc/pkg/ir"

// EliminateUnreachable drops blocks that cannot be reached from the entry, jumps
// to the block that follows anyway, and labels nothing jumps to.
func EliminateUnreachable(g *Graph) bool {
	changed := false

	reachable := make(map[int]bool)
	stack := []int{EntryID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reachable[id] {
			continue
		}
		reachable[id] = true
		stack = append(stack, g.node(id).Succs...)
	}
	kept := g.Blocks[:0]
	for _, b := range g.Blocks {
		if reachable[b.ID] {
			kept = append(kept, b)
		} else {
			changed = true
		}
	}
	g.Blocks = kept

	// Jumps to the next block.
	for i, b := range g.Blocks {
		last := b.Instrs[len(b.Instrs)-1]
		if !last.Op.IsJump() || i+1 >= len(g.Blocks) {
			continue
		}
		next := g.Blocks[i+1].Instrs[0]
		if next.Op == ir.OpLabel && next.Label == last.Label {
			b.Instrs = b.Instrs[:len(b.Instrs)-1]
			changed = true
		}
	}

	// Labels without a jump.
	targets := make(map[string]bool)
	for _, b := range g.Blocks {
		for _, instr := range b.Instrs {
			if instr.Op.IsJump() {
				targets[instr.Label] = true
			}
		}
	}
	for _, b := range g.Blocks {
		if len(b.Instrs) > 0 && b.Instrs[0].Op == ir.OpLabel && !targets[b.Instrs[0].Label] {
			b.Instrs = b.Instrs[1:]
			changed = true
		}
	}

	if changed {
		*g = *BuildGraph(g.Instructions())
	}
	return changed
}
