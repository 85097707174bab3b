package optimizer

import "github.com/xplshn/xcc/pkg/ir"

// Distinguished node ids of every graph.
const (
	EntryID = -1
	ExitID  = -2
)

// Block is a basic block: a run of instructions entered only at the top and left
// only through its last instruction.
type Block struct {
	ID     int
	Instrs []*ir.Instruction
	Preds  []int
	Succs  []int
}

// Graph is the control-flow graph of one function body. Blocks keep the order of
// the instruction list they were cut from, and a block's ID is its index.
type Graph struct {
	Blocks []*Block
	Entry  *Block
	Exit   *Block
}

func (g *Graph) node(id int) *Block {
	switch id {
	case EntryID:
		return g.Entry
	case ExitID:
		return g.Exit
	}
	return g.Blocks[id]
}

func endsBlock(instr *ir.Instruction) bool {
	return instr.Op == ir.OpRet || instr.Op.IsJump()
}

// BuildGraph cuts body into basic blocks and links them.
func BuildGraph(body []*ir.Instruction) *Graph {
	g := &Graph{Entry: &Block{ID: EntryID}, Exit: &Block{ID: ExitID}}
	var cur *Block
	for _, instr := range body {
		if instr.Op == ir.OpLabel && cur != nil && len(cur.Instrs) > 0 {
			cur = nil
		}
		if cur == nil {
			cur = &Block{ID: len(g.Blocks)}
			g.Blocks = append(g.Blocks, cur)
		}
		cur.Instrs = append(cur.Instrs, instr)
		if endsBlock(instr) {
			cur = nil
		}
	}
	g.link()
	return g
}

// link recomputes every edge from the block contents.
func (g *Graph) link() {
	g.Entry.Succs, g.Exit.Preds = nil, nil
	labels := make(map[string]int)
	for i, b := range g.Blocks {
		b.ID = i
		b.Preds, b.Succs = nil, nil
		if len(b.Instrs) > 0 && b.Instrs[0].Op == ir.OpLabel {
			labels[b.Instrs[0].Label] = i
		}
	}

	if len(g.Blocks) == 0 {
		g.addEdge(g.Entry, g.Exit)
		return
	}
	g.addEdge(g.Entry, g.Blocks[0])
	for i, b := range g.Blocks {
		next := g.Exit
		if i+1 < len(g.Blocks) {
			next = g.Blocks[i+1]
		}
		last := b.Instrs[len(b.Instrs)-1]
		switch last.Op {
		case ir.OpRet:
			g.addEdge(b, g.Exit)
		case ir.OpJmp:
			g.addEdge(b, g.Blocks[labels[last.Label]])
		case ir.OpJz, ir.OpJnz:
			g.addEdge(b, g.Blocks[labels[last.Label]])
			g.addEdge(b, next)
		default:
			g.addEdge(b, next)
		}
	}
}

func (g *Graph) addEdge(from, to *Block) {
	for _, s := range from.Succs {
		if s == to.ID {
			return
		}
	}
	from.Succs = append(from.Succs, to.ID)
	to.Preds = append(to.Preds, from.ID)
}

// Instructions flattens the graph back into a function body.
func (g *Graph) Instructions() []*ir.Instruction {
	var out []*ir.Instruction
	for _, b := range g.Blocks {
		out = append(out, b.Instrs...)
	}
	return out
}

// reversePostorder lists the blocks reachable from the entry so that, outside of
// loops, every block comes after its predecessors.
func (g *Graph) reversePostorder() []*Block {
	seen := make(map[int]bool)
	var order []*Block
	var visit func(b *Block)
	visit = func(b *Block) {
		seen[b.ID] = true
		for _, id := range b.Succs {
			if !seen[id] {
				visit(g.node(id))
			}
		}
		if b.ID >= 0 {
			order = append(order, b)
		}
	}
	visit(g.Entry)
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// postorder is the order for backward problems: reachable blocks in postorder,
// then any block the entry does not reach.
func (g *Graph) postorder() []*Block {
	rpo := g.reversePostorder()
	seen := make(map[int]bool)
	var order []*Block
	for i := len(rpo) - 1; i >= 0; i-- {
		order = append(order, rpo[i])
		seen[rpo[i].ID] = true
	}
	for _, b := range g.Blocks {
		if !seen[b.ID] {
			order = append(order, b)
		}
	}
	return order
}
