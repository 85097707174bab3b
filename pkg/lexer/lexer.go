package lexer

import (
	"strconv"
	"strings"

	"github.com/xplshn/xcc/pkg/intern"
	"github.com/xplshn/xcc/pkg/token"
	"github.com/xplshn/xcc/pkg/util"
)

type Lexer struct {
	source []byte
	pos    int
	pool   *intern.Pool
}

func NewLexer(source []byte, pool *intern.Pool) *Lexer {
	if pool == nil {
		pool = intern.NewPool()
	}
	return &Lexer{source: source, pool: pool}
}

// Tokenize scans the whole source. Adjacent string literals are merged into one token.
func Tokenize(source []byte, pool *intern.Pool) ([]token.Token, error) {
	l := NewLexer(source, pool)
	var toks []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		if n := len(toks); tok.Type == token.String && n > 0 && toks[n-1].Type == token.String {
			toks[n-1].Value += tok.Value
			toks[n-1].Span = toks[n-1].Span.Join(tok.Span)
			continue
		}
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks, nil
		}
	}
}

func (l *Lexer) Next() (token.Token, error) {
	if err := l.skipWhitespaceAndComments(); err != nil {
		return token.Token{}, err
	}
	start := l.pos

	if l.isAtEnd() {
		return l.makeToken(token.EOF, "", start), nil
	}

	ch := l.peek()
	if isIdentStart(ch) {
		l.advance()
		return l.identifierOrKeyword(start), nil
	}
	if isDigit(ch) || (ch == '.' && isDigit(l.peekNext())) {
		return l.numberLiteral(start)
	}

	l.advance()
	switch ch {
	case '(':
		return l.makeToken(token.LParen, "", start), nil
	case ')':
		return l.makeToken(token.RParen, "", start), nil
	case '{':
		return l.makeToken(token.LBrace, "", start), nil
	case '}':
		return l.makeToken(token.RBrace, "", start), nil
	case '[':
		return l.makeToken(token.LBracket, "", start), nil
	case ']':
		return l.makeToken(token.RBracket, "", start), nil
	case ';':
		return l.makeToken(token.Semi, "", start), nil
	case ',':
		return l.makeToken(token.Comma, "", start), nil
	case '?':
		return l.makeToken(token.Question, "", start), nil
	case ':':
		return l.makeToken(token.Colon, "", start), nil
	case '.':
		return l.makeToken(token.Dot, "", start), nil
	case '~':
		return l.makeToken(token.Complement, "", start), nil
	case '!':
		return l.matchThen('=', token.Neq, token.Not, start), nil
	case '^':
		return l.matchThen('=', token.XorEq, token.Xor, start), nil
	case '%':
		return l.matchThen('=', token.RemEq, token.Rem, start), nil
	case '*':
		return l.matchThen('=', token.StarEq, token.Star, start), nil
	case '/':
		return l.matchThen('=', token.SlashEq, token.Slash, start), nil
	case '=':
		return l.matchThen('=', token.EqEq, token.Eq, start), nil
	case '+':
		return l.plus(start), nil
	case '-':
		return l.minus(start), nil
	case '&':
		return l.ampersand(start), nil
	case '|':
		return l.pipe(start), nil
	case '<':
		return l.less(start), nil
	case '>':
		return l.greater(start), nil
	case '"':
		return l.stringLiteral(start)
	case '\'':
		return l.charLiteral(start)
	}

	return token.Token{}, util.Errorf(util.LexError, token.Span{Lo: start, Hi: l.pos}, "unexpected character %q", ch)
}

func (l *Lexer) peek() byte {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() byte {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

func (l *Lexer) advance() byte {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	l.pos++
	return ch
}

func (l *Lexer) match(expected byte) bool {
	if l.isAtEnd() || l.source[l.pos] != expected {
		return false
	}
	l.pos++
	return true
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(tokType token.Type, value string, start int) token.Token {
	return token.Token{Type: tokType, Value: value, Span: token.Span{Lo: start, Hi: l.pos}}
}

func (l *Lexer) errorf(start int, format string, args ...any) error {
	return util.Errorf(util.LexError, token.Span{Lo: start, Hi: l.pos}, format, args...)
}

func (l *Lexer) skipWhitespaceAndComments() error {
	for {
		switch l.peek() {
		case ' ', '\t', '\n', '\r', '\v', '\f':
			l.advance()
		case '/':
			switch l.peekNext() {
			case '*':
				if err := l.blockComment(); err != nil {
					return err
				}
			case '/':
				l.lineComment()
			default:
				return nil
			}
		default:
			return nil
		}
	}
}

func (l *Lexer) blockComment() error {
	start := l.pos
	l.advance()
	l.advance()
	for !l.isAtEnd() {
		if l.peek() == '*' && l.peekNext() == '/' {
			l.advance()
			l.advance()
			return nil
		}
		l.advance()
	}
	return util.Errorf(util.LexError, token.Span{Lo: start, Hi: start + 2}, "unterminated block comment")
}

func (l *Lexer) lineComment() {
	for !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
}

func (l *Lexer) identifierOrKeyword(start int) token.Token {
	for isIdentStart(l.peek()) || isDigit(l.peek()) {
		l.advance()
	}
	value := string(l.source[start:l.pos])
	if tokType, isKeyword := token.KeywordMap[value]; isKeyword {
		return l.makeToken(tokType, "", start)
	}
	return l.makeToken(token.Ident, l.pool.Intern(value), start)
}

func (l *Lexer) numberLiteral(start int) (token.Token, error) {
	isFloat := false
	for isDigit(l.peek()) {
		l.advance()
	}
	if l.peek() == '.' {
		isFloat = true
		l.advance()
		for isDigit(l.peek()) {
			l.advance()
		}
	}
	if l.peek() == 'e' || l.peek() == 'E' {
		isFloat = true
		l.advance()
		if l.peek() == '+' || l.peek() == '-' {
			l.advance()
		}
		if !isDigit(l.peek()) {
			return token.Token{}, l.errorf(start, "malformed floating constant: exponent has no digits")
		}
		for isDigit(l.peek()) {
			l.advance()
		}
	}
	digitsEnd := l.pos

	if isFloat {
		if isIdentStart(l.peek()) || l.peek() == '.' {
			l.advance()
			return token.Token{}, l.errorf(start, "invalid suffix on floating constant")
		}
		return l.makeToken(token.DoubleConst, string(l.source[start:digitsEnd]), start), nil
	}

	suffix := l.integerSuffix()
	if isIdentStart(l.peek()) || isDigit(l.peek()) || l.peek() == '.' {
		for isIdentStart(l.peek()) || isDigit(l.peek()) {
			l.advance()
		}
		return token.Token{}, l.errorf(start, "invalid suffix on integer constant '%s'", l.source[start:l.pos])
	}

	digits := string(l.source[start:digitsEnd])
	val, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return token.Token{}, l.errorf(start, "integer constant '%s' is too large", digits)
	}
	if (suffix == token.SuffixNone || suffix == token.SuffixL) && val > 1<<63-1 {
		return token.Token{}, l.errorf(start, "integer constant '%s' is too large for a signed type", digits)
	}
	tok := l.makeToken(token.IntConst, strings.TrimLeft(digits, "0"), start)
	if tok.Value == "" {
		tok.Value = "0"
	}
	tok.Suffix = suffix
	return tok, nil
}

func (l *Lexer) integerSuffix() token.Suffix {
	isL := func(c byte) bool { return c == 'l' || c == 'L' }
	isU := func(c byte) bool { return c == 'u' || c == 'U' }
	switch c := l.peek(); {
	case isL(c):
		l.advance()
		if isU(l.peek()) {
			l.advance()
			return token.SuffixUL
		}
		return token.SuffixL
	case isU(c):
		l.advance()
		if isL(l.peek()) {
			l.advance()
			return token.SuffixUL
		}
		return token.SuffixU
	}
	return token.SuffixNone
}

func (l *Lexer) stringLiteral(start int) (token.Token, error) {
	var sb strings.Builder
	for !l.isAtEnd() {
		c := l.peek()
		switch c {
		case '"':
			l.advance()
			return l.makeToken(token.String, sb.String(), start), nil
		case '\n':
			return token.Token{}, l.errorf(start, "unterminated string literal")
		case '\\':
			l.advance()
			val, err := l.decodeEscape(start)
			if err != nil {
				return token.Token{}, err
			}
			sb.WriteByte(val)
		default:
			l.advance()
			sb.WriteByte(c)
		}
	}
	return token.Token{}, l.errorf(start, "unterminated string literal")
}

func (l *Lexer) charLiteral(start int) (token.Token, error) {
	var val byte
	switch c := l.peek(); c {
	case '\'':
		l.advance()
		return token.Token{}, l.errorf(start, "empty character constant")
	case '\n', 0:
		return token.Token{}, l.errorf(start, "unterminated character constant")
	case '\\':
		l.advance()
		v, err := l.decodeEscape(start)
		if err != nil {
			return token.Token{}, err
		}
		val = v
	default:
		l.advance()
		val = c
	}
	if !l.match('\'') {
		return token.Token{}, l.errorf(start, "unterminated or multi-character constant")
	}
	// Plain char is signed, so '\377' has the value -1.
	return l.makeToken(token.CharConst, strconv.Itoa(int(int8(val))), start), nil
}

func (l *Lexer) decodeEscape(start int) (byte, error) {
	if l.isAtEnd() {
		return 0, l.errorf(start, "unterminated escape sequence")
	}
	c := l.advance()

	if c == 'x' {
		return l.parseHexEscape(start)
	}

	if c >= '0' && c <= '7' {
		val := int(c - '0')
		for i := 0; i < 2 && l.peek() >= '0' && l.peek() <= '7'; i++ {
			val = val*8 + int(l.advance()-'0')
		}
		if val > 0xff {
			return 0, l.errorf(start, "octal escape sequence out of range")
		}
		return byte(val), nil
	}

	switch c {
	case 'n':
		return '\n', nil
	case 't':
		return '\t', nil
	case 'r':
		return '\r', nil
	case 'a':
		return '\a', nil
	case 'b':
		return '\b', nil
	case 'f':
		return '\f', nil
	case 'v':
		return '\v', nil
	case '\\', '\'', '"', '?':
		return c, nil
	}
	return 0, l.errorf(start, "unknown escape sequence '\\%c'", c)
}

func (l *Lexer) parseHexEscape(start int) (byte, error) {
	var val int
	digits := 0
	for {
		c := l.peek()
		var digit int
		switch {
		case c >= '0' && c <= '9':
			digit = int(c - '0')
		case c >= 'a' && c <= 'f':
			digit = int(c - 'a' + 10)
		case c >= 'A' && c <= 'F':
			digit = int(c - 'A' + 10)
		default:
			if digits == 0 {
				return 0, l.errorf(start, "\\x used with no following hex digits")
			}
			if val > 0xff {
				return 0, l.errorf(start, "hex escape sequence out of range")
			}
			return byte(val), nil
		}
		val = val*16 + digit
		digits++
		l.advance()
	}
}

func (l *Lexer) matchThen(expected byte, thenType, elseType token.Type, start int) token.Token {
	if l.match(expected) {
		return l.makeToken(thenType, "", start)
	}
	return l.makeToken(elseType, "", start)
}

func (l *Lexer) plus(start int) token.Token {
	if l.match('+') {
		return l.makeToken(token.Inc, "", start)
	}
	return l.matchThen('=', token.PlusEq, token.Plus, start)
}

func (l *Lexer) minus(start int) token.Token {
	switch {
	case l.match('-'):
		return l.makeToken(token.Dec, "", start)
	case l.match('>'):
		return l.makeToken(token.Arrow, "", start)
	}
	return l.matchThen('=', token.MinusEq, token.Minus, start)
}

func (l *Lexer) ampersand(start int) token.Token {
	if l.match('&') {
		return l.makeToken(token.AndAnd, "", start)
	}
	return l.matchThen('=', token.AndEq, token.And, start)
}

func (l *Lexer) pipe(start int) token.Token {
	if l.match('|') {
		return l.makeToken(token.OrOr, "", start)
	}
	return l.matchThen('=', token.OrEq, token.Or, start)
}

func (l *Lexer) less(start int) token.Token {
	if l.match('<') {
		return l.matchThen('=', token.ShlEq, token.Shl, start)
	}
	return l.matchThen('=', token.Lte, token.Lt, start)
}

func (l *Lexer) greater(start int) token.Token {
	if l.match('>') {
		return l.matchThen('=', token.ShrEq, token.Shr, start)
	}
	return l.matchThen('=', token.Gte, token.Gt, start)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}
