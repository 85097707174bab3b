package token

import (
	"fmt"
	"strconv"
	"strings"
)

type Type int

const (
	EOF Type = iota
	Ident
	IntConst
	DoubleConst
	CharConst
	String
	// Keywords
	Int
	Long
	Unsigned
	Signed
	Char
	Double
	Void
	Struct
	Union
	Static
	Extern
	Return
	If
	Else
	While
	Do
	For
	Break
	Continue
	Switch
	Case
	Default
	Goto
	Sizeof
	// Punctuators
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Semi
	Comma
	Colon
	Question
	Dot
	Arrow
	Eq
	PlusEq
	MinusEq
	StarEq
	SlashEq
	RemEq
	AndEq
	OrEq
	XorEq
	ShlEq
	ShrEq
	Plus
	Minus
	Star
	Slash
	Rem
	And
	Or
	Xor
	Shl
	Shr
	EqEq
	Neq
	Lt
	Gt
	Gte
	Lte
	AndAnd
	OrOr
	Not
	Complement
	Inc
	Dec
)

var KeywordMap = map[string]Type{
	"int":      Int,
	"long":     Long,
	"unsigned": Unsigned,
	"signed":   Signed,
	"char":     Char,
	"double":   Double,
	"void":     Void,
	"struct":   Struct,
	"union":    Union,
	"static":   Static,
	"extern":   Extern,
	"return":   Return,
	"if":       If,
	"else":     Else,
	"while":    While,
	"do":       Do,
	"for":      For,
	"break":    Break,
	"continue": Continue,
	"switch":   Switch,
	"case":     Case,
	"default":  Default,
	"goto":     Goto,
	"sizeof":   Sizeof,
}

var punctuators = map[Type]string{
	LParen: "(", RParen: ")", LBrace: "{", RBrace: "}", LBracket: "[", RBracket: "]",
	Semi: ";", Comma: ",", Colon: ":", Question: "?", Dot: ".", Arrow: "->",
	Eq: "=", PlusEq: "+=", MinusEq: "-=", StarEq: "*=", SlashEq: "/=", RemEq: "%=",
	AndEq: "&=", OrEq: "|=", XorEq: "^=", ShlEq: "<<=", ShrEq: ">>=",
	Plus: "+", Minus: "-", Star: "*", Slash: "/", Rem: "%", And: "&", Or: "|", Xor: "^",
	Shl: "<<", Shr: ">>", EqEq: "==", Neq: "!=", Lt: "<", Gt: ">", Gte: ">=", Lte: "<=",
	AndAnd: "&&", OrOr: "||", Not: "!", Complement: "~", Inc: "++", Dec: "--",
}

// Reverse mapping from Type to the keyword or punctuator spelling
var TypeStrings = make(map[Type]string)

func init() {
	for str, typ := range KeywordMap {
		TypeStrings[typ] = str
	}
	for typ, str := range punctuators {
		TypeStrings[typ] = str
	}
}

func (t Type) String() string {
	if s, ok := TypeStrings[t]; ok {
		return "'" + s + "'"
	}
	switch t {
	case EOF:
		return "end of file"
	case Ident:
		return "identifier"
	case IntConst:
		return "integer constant"
	case DoubleConst:
		return "floating constant"
	case CharConst:
		return "character constant"
	case String:
		return "string literal"
	}
	return fmt.Sprintf("token(%d)", int(t))
}

func (t Type) IsKeyword() bool { return t >= Int && t <= Sizeof }

// Suffix tags an integer constant by its literal suffix.
type Suffix int

const (
	SuffixNone Suffix = iota
	SuffixL
	SuffixU
	SuffixUL
)

func (s Suffix) String() string {
	switch s {
	case SuffixL:
		return "l"
	case SuffixU:
		return "u"
	case SuffixUL:
		return "ul"
	}
	return ""
}

// Span is a half-open byte range [Lo, Hi) into the source.
type Span struct {
	Lo int
	Hi int
}

func (s Span) Join(o Span) Span {
	if o.Lo < s.Lo {
		s.Lo = o.Lo
	}
	if o.Hi > s.Hi {
		s.Hi = o.Hi
	}
	return s
}

func (s Span) Len() int { return s.Hi - s.Lo }

type Token struct {
	Type   Type
	Value  string
	Suffix Suffix
	Span   Span
}

// Lexeme renders the token back into source text that lexes to an equal token.
func (t Token) Lexeme() string {
	switch t.Type {
	case Ident, DoubleConst:
		return t.Value
	case IntConst:
		return t.Value + t.Suffix.String()
	case CharConst:
		v, _ := strconv.Atoi(t.Value)
		return fmt.Sprintf("'\\%o'", byte(v))
	case String:
		return Quote(t.Value)
	case EOF:
		return ""
	}
	return TypeStrings[t.Type]
}

// Quote renders s as a C string literal, escaping everything outside printable ASCII.
func Quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c >= 0x20 && c < 0x7f:
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, "\\%03o", c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
