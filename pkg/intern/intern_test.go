package intern

import (
	"strings"
	"testing"
	"unsafe"
)

func TestInternSharesStorage(t *testing.T) {
	p := NewPool()
	a := p.Intern(strings.Repeat("x", 3))
	b := p.Intern("xxx")
	if a != b {
		t.Fatalf("Intern = %q and %q, want equal", a, b)
	}
	if unsafeData(a) != unsafeData(b) {
		t.Errorf("interned strings do not share backing storage")
	}
	if p.Len() != 1 {
		t.Errorf("Len() = %d, want 1", p.Len())
	}
}

func TestFreshIsUnique(t *testing.T) {
	p := NewPool()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		for _, prefix := range []string{"tmp", "loop", "tmp.0"} {
			name := p.Fresh(prefix)
			if seen[name] {
				t.Fatalf("Fresh(%q) returned duplicate %q", prefix, name)
			}
			seen[name] = true
			if !strings.HasPrefix(name, prefix+".") {
				t.Errorf("Fresh(%q) = %q, want prefix %q", prefix, name, prefix+".")
			}
		}
	}
}

func unsafeData(s string) *byte { return unsafe.StringData(s) }

func TestUnmangle(t *testing.T) {
	p := NewPool()
	v := p.Fresh("v")
	s := p.Fresh("s")
	nested := p.Fresh(p.Fresh("tmp"))
	if got := p.Source(nested); got != "tmp" {
		t.Errorf("Source(%q) = %q, want tmp", nested, got)
	}
	tests := []struct{ in, want string }{
		{"variable '" + v + "' has incomplete type 'struct " + s + "'", "variable 'v' has incomplete type 'struct s'"},
		{"'struct " + s + "*' and 'double'", "'struct s*' and 'double'"},
		{"changes value from 300 to 44", "changes value from 300 to 44"},
		{"constant 1.5 and x.7", "constant 1.5 and x.7"},
		{"temporary " + nested, "temporary tmp"},
	}
	for _, tt := range tests {
		if got := p.Unmangle(tt.in); got != tt.want {
			t.Errorf("Unmangle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
