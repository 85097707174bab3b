// Package ast defines the syntax tree of the C subset.
//
// Expression nodes carry a Meta with a NodeID and a byte span. Passes after the
// parser never mutate a node in place: they build new nodes (keeping the NodeID of
// the node they replace) and record per-expression facts in side maps keyed by
// NodeID, such as the TypeMap produced by the type checker.
package ast

import "github.com/xplshn/xcc/pkg/token"

type NodeID int

type Meta struct {
	ID   NodeID
	Span token.Span
}

func (m Meta) NodeID() NodeID       { return m.ID }
func (m Meta) NodeSpan() token.Span { return m.Span }

// TypeMap holds the resolved type of every expression node.
type TypeMap map[NodeID]Type

func (m TypeMap) Of(e Expr) Type { return m[e.NodeID()] }

type Program struct {
	Decls []Decl
	// NextID is the first NodeID not used by the tree.
	NextID NodeID
}

type StorageClass int

const (
	NoStorage StorageClass = iota
	Static
	Extern
)

func (s StorageClass) String() string {
	switch s {
	case Static:
		return "static"
	case Extern:
		return "extern"
	}
	return ""
}

// Declarations

type Decl interface {
	BlockItem
	isDecl()
}

type VarDecl struct {
	Name    string
	Type    Type
	Init    Initializer
	Storage StorageClass
	Span    token.Span
}

type FuncDecl struct {
	Name    string
	Type    FunType
	Params  []string
	Body    *Block
	Storage StorageClass
	Span    token.Span
}

// StructDecl declares a structure or union tag. Members is nil for a forward
// declaration such as `struct s;`.
type StructDecl struct {
	Tag     string
	Union   bool
	Members []MemberDecl
	Span    token.Span
}

type MemberDecl struct {
	Name string
	Type Type
	Span token.Span
}

func (*VarDecl) isDecl()    {}
func (*FuncDecl) isDecl()   {}
func (*StructDecl) isDecl() {}

func (*VarDecl) isBlockItem()    {}
func (*FuncDecl) isBlockItem()   {}
func (*StructDecl) isBlockItem() {}

// Initializers

type Initializer interface {
	isInitializer()
	InitSpan() token.Span
}

type SingleInit struct{ Expr Expr }

type CompoundInit struct {
	Inits []Initializer
	Span  token.Span
}

func (*SingleInit) isInitializer()   {}
func (*CompoundInit) isInitializer() {}

func (i *SingleInit) InitSpan() token.Span   { return i.Expr.NodeSpan() }
func (i *CompoundInit) InitSpan() token.Span { return i.Span }

// Statements

type BlockItem interface{ isBlockItem() }

type Block struct {
	Items []BlockItem
	Span  token.Span
}

type Stmt interface {
	BlockItem
	isStmt()
}

type (
	Return struct {
		Expr Expr // nil for `return;`
		Span token.Span
	}

	ExprStmt struct{ Expr Expr }

	If struct {
		Cond Expr
		Then Stmt
		Else Stmt
		Span token.Span
	}

	Compound struct{ Block *Block }

	Break struct {
		Label string
		Span  token.Span
	}

	Continue struct {
		Label string
		Span  token.Span
	}

	While struct {
		Cond  Expr
		Body  Stmt
		Label string
		Span  token.Span
	}

	DoWhile struct {
		Body  Stmt
		Cond  Expr
		Label string
		Span  token.Span
	}

	For struct {
		Init  ForInit
		Cond  Expr // nil when omitted
		Post  Expr // nil when omitted
		Body  Stmt
		Label string
		Span  token.Span
	}

	Switch struct {
		Expr  Expr
		Body  Stmt
		Cases []SwitchCase
		Label string
		Span  token.Span
	}

	// Case holds an integer constant expression until the type checker replaces it
	// with a Constant of the controlling expression's type.
	Case struct {
		Value Expr
		Body  Stmt
		Label string
		Span  token.Span
	}

	Default struct {
		Body  Stmt
		Label string
		Span  token.Span
	}

	Labeled struct {
		Name string
		Body Stmt
		Span token.Span
	}

	Goto struct {
		Name string
		Span token.Span
	}

	Null struct{}
)

// SwitchCase is one entry of a switch's jump table. Value is nil for default.
type SwitchCase struct {
	Value Const
	Label string
}

type ForInit interface{ isForInit() }

type (
	InitDecl struct{ Decl *VarDecl }
	InitExpr struct{ Expr Expr } // Expr is nil when omitted
)

func (*InitDecl) isForInit() {}
func (*InitExpr) isForInit() {}

func (*Return) isStmt()   {}
func (*ExprStmt) isStmt() {}
func (*If) isStmt()       {}
func (*Compound) isStmt() {}
func (*Break) isStmt()    {}
func (*Continue) isStmt() {}
func (*While) isStmt()    {}
func (*DoWhile) isStmt()  {}
func (*For) isStmt()      {}
func (*Switch) isStmt()   {}
func (*Case) isStmt()     {}
func (*Default) isStmt()  {}
func (*Labeled) isStmt()  {}
func (*Goto) isStmt()     {}
func (*Null) isStmt()     {}

func (*Return) isBlockItem()   {}
func (*ExprStmt) isBlockItem() {}
func (*If) isBlockItem()       {}
func (*Compound) isBlockItem() {}
func (*Break) isBlockItem()    {}
func (*Continue) isBlockItem() {}
func (*While) isBlockItem()    {}
func (*DoWhile) isBlockItem()  {}
func (*For) isBlockItem()      {}
func (*Switch) isBlockItem()   {}
func (*Case) isBlockItem()     {}
func (*Default) isBlockItem()  {}
func (*Labeled) isBlockItem()  {}
func (*Goto) isBlockItem()     {}
func (*Null) isBlockItem()     {}

// Expressions

type Expr interface {
	NodeID() NodeID
	NodeSpan() token.Span
	isExpr()
}

type UnaryOp int

const (
	Negate UnaryOp = iota
	Complement
	Not
	Plus
	PreInc
	PreDec
)

type PostfixOp int

const (
	PostInc PostfixOp = iota
	PostDec
)

type BinaryOp int

const (
	Add BinaryOp = iota
	Subtract
	Multiply
	Divide
	Remainder
	BitAnd
	BitOr
	BitXor
	ShiftLeft
	ShiftRight
	And
	Or
	EqualTo
	NotEqualTo
	LessThan
	LessOrEqual
	GreaterThan
	GreaterOrEqual
)

var binaryOpStrings = map[BinaryOp]string{
	Add: "+", Subtract: "-", Multiply: "*", Divide: "/", Remainder: "%",
	BitAnd: "&", BitOr: "|", BitXor: "^", ShiftLeft: "<<", ShiftRight: ">>",
	And: "&&", Or: "||", EqualTo: "==", NotEqualTo: "!=",
	LessThan: "<", LessOrEqual: "<=", GreaterThan: ">", GreaterOrEqual: ">=",
}

func (op BinaryOp) String() string { return binaryOpStrings[op] }

func (op BinaryOp) IsRelational() bool { return op >= EqualTo }

func (op BinaryOp) IsShift() bool { return op == ShiftLeft || op == ShiftRight }

func (op BinaryOp) IsBitwise() bool { return op >= BitAnd && op <= ShiftRight }

type (
	Constant struct {
		Meta
		Value Const
	}

	String struct {
		Meta
		Value string
	}

	Var struct {
		Meta
		Name string
	}

	// Unary covers prefix operators. OpType is set by the type checker for ++ and --:
	// the type the increment is computed in before converting back.
	Unary struct {
		Meta
		Op     UnaryOp
		Expr   Expr
		OpType Type
	}

	Postfix struct {
		Meta
		Op     PostfixOp
		Expr   Expr
		OpType Type
	}

	Binary struct {
		Meta
		Op    BinaryOp
		Left  Expr
		Right Expr
	}

	// Assignment is `Left = Right` when Compound is false, otherwise `Left Op= Right`.
	// For compound assignments the type checker records in OpType the type the
	// operation is carried out in; Right already has that type (or long for pointer
	// arithmetic).
	Assignment struct {
		Meta
		Compound bool
		Op       BinaryOp
		Left     Expr
		Right    Expr
		OpType   Type
	}

	Conditional struct {
		Meta
		Cond Expr
		Then Expr
		Else Expr
	}

	FunctionCall struct {
		Meta
		Name string
		Args []Expr
	}

	Cast struct {
		Meta
		Target Type
		Expr   Expr
	}

	AddressOf struct {
		Meta
		Expr Expr
	}

	Dereference struct {
		Meta
		Expr Expr
	}

	Subscript struct {
		Meta
		Left  Expr
		Index Expr
	}

	SizeOfType struct {
		Meta
		Type Type
	}

	SizeOfExpr struct {
		Meta
		Expr Expr
	}

	Member struct {
		Meta
		Expr  Expr
		Field string
	}

	Arrow struct {
		Meta
		Expr  Expr
		Field string
	}
)

func (*Constant) isExpr()     {}
func (*String) isExpr()       {}
func (*Var) isExpr()          {}
func (*Unary) isExpr()        {}
func (*Postfix) isExpr()      {}
func (*Binary) isExpr()       {}
func (*Assignment) isExpr()   {}
func (*Conditional) isExpr()  {}
func (*FunctionCall) isExpr() {}
func (*Cast) isExpr()         {}
func (*AddressOf) isExpr()    {}
func (*Dereference) isExpr()  {}
func (*Subscript) isExpr()    {}
func (*SizeOfType) isExpr()   {}
func (*SizeOfExpr) isExpr()   {}
func (*Member) isExpr()       {}
func (*Arrow) isExpr()        {}
