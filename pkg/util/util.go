package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/xplshn/xcc/pkg/config"
	"github.com/xplshn/xcc/pkg/token"
	"golang.org/x/term"
)

// Kind classifies a diagnostic by the pass that raised it.
type Kind int

const (
	LexError Kind = iota
	ParseError
	ResolveError
	TypeError
	CodegenError
	Warning
)

func (k Kind) String() string {
	switch k {
	case LexError:
		return "lex error"
	case ParseError:
		return "parse error"
	case ResolveError:
		return "resolve error"
	case TypeError:
		return "type error"
	case CodegenError:
		return "codegen error"
	case Warning:
		return "warning"
	}
	return "error"
}

// Reason refines a TypeError.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonConflict
	ReasonIncompatible
	ReasonNotLvalue
	ReasonNonScalar
	ReasonPointerArith
	ReasonDuplicateMember
	ReasonIncomplete
	ReasonStorageClass
	ReasonInitializer
	ReasonInvalidOperand
)

var reasonNames = map[Reason]string{
	ReasonConflict:        "conflicting declaration",
	ReasonIncompatible:    "incompatible types",
	ReasonNotLvalue:       "not an lvalue",
	ReasonNonScalar:       "non-scalar operand",
	ReasonPointerArith:    "invalid pointer arithmetic",
	ReasonDuplicateMember: "duplicate member",
	ReasonIncomplete:      "incomplete type",
	ReasonStorageClass:    "illegal storage class",
	ReasonInitializer:     "invalid initializer",
	ReasonInvalidOperand:  "invalid operand",
}

func (r Reason) String() string { return reasonNames[r] }

// Error is a diagnostic anchored at a byte span of the source.
type Error struct {
	Kind   Kind
	Reason Reason
	Span   token.Span
	Msg    string
	Flag   string // -W name for warnings
}

func (e *Error) Error() string { return e.Kind.String() + ": " + e.Msg }

func Errorf(kind Kind, span token.Span, format string, args ...any) *Error {
	return &Error{Kind: kind, Span: span, Msg: fmt.Sprintf(format, args...)}
}

func TypeErrorf(reason Reason, span token.Span, format string, args ...any) *Error {
	return &Error{Kind: TypeError, Reason: reason, Span: span, Msg: fmt.Sprintf(format, args...)}
}

// Warn returns nil when the warning is disabled in cfg.
func Warn(cfg *config.Config, wt config.Warning, span token.Span, format string, args ...any) *Error {
	if cfg == nil || !cfg.IsWarningEnabled(wt) {
		return nil
	}
	return &Error{Kind: Warning, Span: span, Msg: fmt.Sprintf(format, args...), Flag: cfg.Warnings[wt].Name}
}

// ExitCode maps an error returned by the pipeline to the driver's exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if !errors.As(err, &e) {
		return 1
	}
	switch e.Kind {
	case LexError, ParseError:
		return 1
	case ResolveError, TypeError:
		return 2
	case CodegenError:
		return 3
	}
	return 1
}

// Position converts a byte offset into a 1-based line and column.
func Position(src []byte, off int) (line, col int) {
	if off > len(src) {
		off = len(src)
	}
	line, col = 1, 1
	for _, c := range src[:off] {
		if c == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// Report writes err the way a compiler does: location, message, source line and a
// caret under the offending span. Colour is only kept when w is a terminal.
func Report(w io.Writer, filename string, src []byte, err error) {
	var sb strings.Builder
	var e *Error
	if !errors.As(err, &e) {
		fmt.Fprintf(&sb, "xcc: \033[31merror:\033[0m %v\n", err)
		writeMaybeColoured(w, sb.String())
		return
	}

	line, col := Position(src, e.Span.Lo)
	label := "\033[31merror:\033[0m"
	if e.Kind == Warning {
		label = "\033[33mwarning:\033[0m"
	}
	fmt.Fprintf(&sb, "%s:%d:%d: %s %s", filename, line, col, label, e.Msg)
	if e.Flag != "" {
		fmt.Fprintf(&sb, " [-W%s]", e.Flag)
	}
	sb.WriteByte('\n')
	printErrorLine(&sb, src, e.Span, col)
	writeMaybeColoured(w, sb.String())
}

// printErrorLine prints the source line and a caret indicating the error position
func printErrorLine(sb *strings.Builder, src []byte, span token.Span, col int) {
	if span.Lo > len(src) {
		return
	}
	lineStart := span.Lo - (col - 1)
	lineEnd := len(src)
	for i := lineStart; i < len(src); i++ {
		if src[i] == '\n' {
			lineEnd = i
			break
		}
	}
	fmt.Fprintf(sb, "  %s\n", src[lineStart:lineEnd])

	n := span.Len()
	if span.Lo+n > lineEnd {
		n = lineEnd - span.Lo
	}
	fmt.Fprintf(sb, "  %s\033[32m^", strings.Repeat(" ", col-1))
	if n > 1 {
		sb.WriteString(strings.Repeat("~", n-1))
	}
	sb.WriteString("\033[0m\n")
}

func writeMaybeColoured(w io.Writer, s string) {
	if f, ok := w.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		s = ansi.Strip(s)
	}
	io.WriteString(w, s)
}

func AlignUp(n, align int64) int64 {
	if align <= 0 {
		return n
	}
	return (n + align - 1) / align * align
}
