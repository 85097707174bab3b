package resolve

import (
	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/intern"
)

type target struct {
	label  string
	isLoop bool
	sw     *switchInfo
}

type switchInfo struct {
	cases      []ast.SwitchCase
	seen       map[int64]bool
	hasDefault bool
}

type labeler struct {
	resolver
	stack []target
}

// LabelLoops gives every loop and switch a unique label, binds break and continue
// to their enclosing construct and collects the cases of each switch.
func LabelLoops(prog *ast.Program, pool *intern.Pool) (out *ast.Program, err error) {
	defer catch(&err)
	l := &labeler{resolver: resolver{pool: pool}}
	out = &ast.Program{NextID: prog.NextID, Decls: make([]ast.Decl, len(prog.Decls))}
	for i, d := range prog.Decls {
		fd, ok := d.(*ast.FuncDecl)
		if !ok || fd.Body == nil {
			out.Decls[i] = d
			continue
		}
		nfd := *fd
		nfd.Body = l.block(fd.Body)
		out.Decls[i] = &nfd
	}
	return out, nil
}

func (l *labeler) block(b *ast.Block) *ast.Block {
	out := &ast.Block{Span: b.Span, Items: make([]ast.BlockItem, len(b.Items))}
	for i, item := range b.Items {
		if s, ok := item.(ast.Stmt); ok {
			out.Items[i] = l.stmt(s)
		} else {
			out.Items[i] = item
		}
	}
	return out
}

func (l *labeler) push(t target) { l.stack = append(l.stack, t) }
func (l *labeler) pop()          { l.stack = l.stack[:len(l.stack)-1] }

func (l *labeler) innermost(loopOnly bool) (target, bool) {
	for i := len(l.stack) - 1; i >= 0; i-- {
		if !loopOnly || l.stack[i].isLoop {
			return l.stack[i], true
		}
	}
	return target{}, false
}

func (l *labeler) innermostSwitch() *switchInfo {
	for i := len(l.stack) - 1; i >= 0; i-- {
		if l.stack[i].sw != nil {
			return l.stack[i].sw
		}
	}
	return nil
}

func (l *labeler) loopBody(label string, body ast.Stmt) ast.Stmt {
	l.push(target{label: label, isLoop: true})
	defer l.pop()
	return l.stmt(body)
}

func (l *labeler) stmt(s ast.Stmt) ast.Stmt {
	switch s := s.(type) {
	case *ast.Break:
		t, ok := l.innermost(false)
		if !ok {
			l.errorf(s.Span, "'break' statement not in loop or switch statement")
		}
		return &ast.Break{Label: t.label, Span: s.Span}
	case *ast.Continue:
		t, ok := l.innermost(true)
		if !ok {
			l.errorf(s.Span, "'continue' statement not in loop statement")
		}
		return &ast.Continue{Label: t.label, Span: s.Span}
	case *ast.While:
		label := l.pool.Fresh("while")
		return &ast.While{Cond: s.Cond, Body: l.loopBody(label, s.Body), Label: label, Span: s.Span}
	case *ast.DoWhile:
		label := l.pool.Fresh("do")
		return &ast.DoWhile{Body: l.loopBody(label, s.Body), Cond: s.Cond, Label: label, Span: s.Span}
	case *ast.For:
		label := l.pool.Fresh("for")
		return &ast.For{Init: s.Init, Cond: s.Cond, Post: s.Post,
			Body: l.loopBody(label, s.Body), Label: label, Span: s.Span}
	case *ast.Switch:
		label := l.pool.Fresh("switch")
		info := &switchInfo{seen: make(map[int64]bool)}
		l.push(target{label: label, sw: info})
		body := l.stmt(s.Body)
		l.pop()
		return &ast.Switch{Expr: s.Expr, Body: body, Cases: info.cases, Label: label, Span: s.Span}
	case *ast.Case:
		sw := l.innermostSwitch()
		if sw == nil {
			l.errorf(s.Span, "'case' statement not in switch statement")
		}
		v, ok := ast.EvalInt(s.Value)
		if !ok {
			l.errorf(s.Value.NodeSpan(), "case label is not an integer constant expression")
		}
		if sw.seen[v] {
			l.errorf(s.Span, "duplicate case value '%d'", v)
		}
		sw.seen[v] = true
		label := l.pool.Fresh("case")
		sw.cases = append(sw.cases, ast.SwitchCase{Value: ast.ConstLong{V: v}, Label: label})
		return &ast.Case{Value: s.Value, Body: l.stmt(s.Body), Label: label, Span: s.Span}
	case *ast.Default:
		sw := l.innermostSwitch()
		if sw == nil {
			l.errorf(s.Span, "'default' statement not in switch statement")
		}
		if sw.hasDefault {
			l.errorf(s.Span, "multiple default labels in one switch")
		}
		sw.hasDefault = true
		label := l.pool.Fresh("default")
		sw.cases = append(sw.cases, ast.SwitchCase{Label: label})
		return &ast.Default{Body: l.stmt(s.Body), Label: label, Span: s.Span}
	case *ast.If:
		out := &ast.If{Cond: s.Cond, Then: l.stmt(s.Then), Span: s.Span}
		if s.Else != nil {
			out.Else = l.stmt(s.Else)
		}
		return out
	case *ast.Compound:
		return &ast.Compound{Block: l.block(s.Block)}
	case *ast.Labeled:
		return &ast.Labeled{Name: s.Name, Body: l.stmt(s.Body), Span: s.Span}
	}
	return s
}
