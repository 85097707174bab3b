package lexer

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/xplshn/xcc/pkg/intern"
	"github.com/xplshn/xcc/pkg/token"
	"github.com/xplshn/xcc/pkg/util"
)

func types(toks []token.Token) []token.Type {
	out := make([]token.Type, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func TestTokenizeTypes(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []token.Type
	}{
		{"empty", "", []token.Type{token.EOF}},
		{"main", "int main(void) { return 0; }", []token.Type{
			token.Int, token.Ident, token.LParen, token.Void, token.RParen, token.LBrace,
			token.Return, token.IntConst, token.Semi, token.RBrace, token.EOF}},
		{"longest match", "a<<=b>>=c->d", []token.Type{
			token.Ident, token.ShlEq, token.Ident, token.ShrEq, token.Ident, token.Arrow, token.Ident, token.EOF}},
		{"increments", "x++ + --y", []token.Type{
			token.Ident, token.Inc, token.Plus, token.Dec, token.Ident, token.EOF}},
		{"logical", "!a && b || c != d == e", []token.Type{
			token.Not, token.Ident, token.AndAnd, token.Ident, token.OrOr, token.Ident,
			token.Neq, token.Ident, token.EqEq, token.Ident, token.EOF}},
		{"comments", "a /* x\ny */ b // c\nd", []token.Type{token.Ident, token.Ident, token.Ident, token.EOF}},
		{"member", "s.a", []token.Type{token.Ident, token.Dot, token.Ident, token.EOF}},
		{"doubles", "1.0 .5 1e10 2.E-3", []token.Type{
			token.DoubleConst, token.DoubleConst, token.DoubleConst, token.DoubleConst, token.EOF}},
		{"keyword prefix", "integer returns", []token.Type{token.Ident, token.Ident, token.EOF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := Tokenize([]byte(tt.src), intern.NewPool())
			if err != nil {
				t.Fatalf("Tokenize(%q) error: %v", tt.src, err)
			}
			if diff := cmp.Diff(tt.want, types(toks)); diff != "" {
				t.Errorf("Tokenize(%q) types mismatch (-want +got):\n%s", tt.src, diff)
			}
		})
	}
}

func TestIntegerSuffixes(t *testing.T) {
	tests := []struct {
		src    string
		value  string
		suffix token.Suffix
	}{
		{"42", "42", token.SuffixNone},
		{"42l", "42", token.SuffixL},
		{"42L", "42", token.SuffixL},
		{"42u", "42", token.SuffixU},
		{"42UL", "42", token.SuffixUL},
		{"42lu", "42", token.SuffixUL},
		{"007", "7", token.SuffixNone},
		{"18446744073709551615u", "18446744073709551615", token.SuffixU},
	}
	for _, tt := range tests {
		toks, err := Tokenize([]byte(tt.src), nil)
		if err != nil {
			t.Fatalf("Tokenize(%q) error: %v", tt.src, err)
		}
		if toks[0].Value != tt.value || toks[0].Suffix != tt.suffix {
			t.Errorf("Tokenize(%q) = %q/%v, want %q/%v", tt.src, toks[0].Value, toks[0].Suffix, tt.value, tt.suffix)
		}
	}
}

func TestLiterals(t *testing.T) {
	toks, err := Tokenize([]byte(`'a' '\n' '\377' "hi\t" "there\x41" '\''`), nil)
	if err != nil {
		t.Fatal(err)
	}
	got := []string{toks[0].Value, toks[1].Value, toks[2].Value, toks[3].Value, toks[4].Value}
	want := []string{"97", "10", "-1", "hi\tthereA", "39"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("literal values mismatch (-want +got):\n%s", diff)
	}
	if toks[3].Span != (token.Span{Lo: 16, Hi: 34}) {
		t.Errorf("concatenated string span = %+v, want {16 34}", toks[3].Span)
	}
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		src  string
		lo   int
		text string
	}{
		{"int 0invalid;", 4, "invalid suffix"},
		{"int x = 1ll;", 8, "invalid suffix"},
		{"a @ b", 2, "unexpected character"},
		{"x = 1.5.2;", 4, "invalid suffix"},
		{"/* never closed", 0, "unterminated block comment"},
		{`"abc`, 0, "unterminated string"},
		{"'ab'", 0, "multi-character"},
		{"''", 0, "empty character"},
		{`"\q"`, 0, "unknown escape"},
		{"99999999999999999999", 0, "too large"},
		{"9223372036854775808", 0, "too large for a signed type"},
		{"a $", 2, "unexpected character"},
	}
	for _, tt := range tests {
		_, err := Tokenize([]byte(tt.src), nil)
		var e *util.Error
		if !errors.As(err, &e) {
			t.Errorf("Tokenize(%q) error = %v, want a lex error", tt.src, err)
			continue
		}
		if e.Kind != util.LexError {
			t.Errorf("Tokenize(%q) kind = %v, want lex error", tt.src, e.Kind)
		}
		if e.Span.Lo != tt.lo {
			t.Errorf("Tokenize(%q) span.Lo = %d, want %d", tt.src, e.Span.Lo, tt.lo)
		}
		if !strings.Contains(e.Msg, tt.text) {
			t.Errorf("Tokenize(%q) message = %q, want it to mention %q", tt.src, e.Msg, tt.text)
		}
	}
}

// Re-tokenizing the rendered tokens must reproduce the same stream.
func TestLexRoundTrip(t *testing.T) {
	sources := []string{
		"int main(void) { return 1+2; }",
		`static char *s = "a\"b\\c\n" "d"; unsigned long x = 10ul; double d = 1.5e3;`,
		"int f(int a, int b) { a <<= b; b >>= 1; return a ? b : 'x'; }",
		"struct s { int a; } *p; int g(void) { return p->a + sizeof(struct s) + (int)'\\0'; }",
		"for (;;) { x++; --y; z %= 3; w ^= ~q & r | t; }",
	}
	ignoreSpans := cmpopts.IgnoreFields(token.Token{}, "Span")
	for _, src := range sources {
		first, err := Tokenize([]byte(src), nil)
		if err != nil {
			t.Fatalf("Tokenize(%q) error: %v", src, err)
		}
		var parts []string
		for _, tok := range first {
			parts = append(parts, tok.Lexeme())
		}
		rendered := strings.Join(parts, " ")
		second, err := Tokenize([]byte(rendered), nil)
		if err != nil {
			t.Fatalf("Tokenize(rendered %q) error: %v", rendered, err)
		}
		if diff := cmp.Diff(first, second, ignoreSpans); diff != "" {
			t.Errorf("round trip of %q mismatch (-first +second):\n%s", src, diff)
		}
	}
}
