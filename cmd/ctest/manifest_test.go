package main

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadManifest(t *testing.T) {
	m, err := LoadManifest(filepath.Join("testdata", "core.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "core" || time.Duration(m.Timeout) != 5*time.Second {
		t.Errorf("name %q timeout %v", m.Name, time.Duration(m.Timeout))
	}
	if diff := cmp.Diff([]string{"x86", "qbe"}, m.Backends); diff != "" {
		t.Errorf("backends mismatch (-want +got):\n%s", diff)
	}
	var fib *Case
	for i := range m.Cases {
		if m.Cases[i].Name == "fibonacci" {
			fib = &m.Cases[i]
		}
	}
	if fib == nil || !strings.Contains(fib.Source, "fib(n - 1)") {
		t.Fatalf("fibonacci case not loaded from its file: %+v", fib)
	}
	if got, want := len(m.Jobs()), len(m.Cases)*2*2; got != want {
		t.Errorf("Jobs() = %d, want %d", got, want)
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no name", "cases:\n  - source: 'int main(void){return 0;}'\n", "has no name"},
		{"no source", "cases:\n  - name: empty\n", "has no source"},
		{"both", "cases:\n  - name: both\n    source: x\n    file: y.c\n", "sets both"},
		{"bad timeout", "timeout: soon\n", "invalid duration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "m.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadManifest(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadManifest error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestJobKey(t *testing.T) {
	c := &Case{Name: "a", Source: "int main(void){return 0;}"}
	base := Job{Case: c, Backend: "x86"}
	if base.Key() != (Job{Case: c, Backend: "x86"}).Key() {
		t.Error("Key is not deterministic")
	}
	keys := map[string]string{base.Key(): "base"}
	for name, j := range map[string]Job{
		"optimized": {Case: c, Backend: "x86", Optimize: true},
		"backend":   {Case: c, Backend: "qbe"},
		"flags":     {Case: &Case{Name: "a", Source: c.Source, Flags: []string{"Wall"}}, Backend: "x86"},
		"expect":    {Case: &Case{Name: "a", Source: c.Source, Expect: Expect{ExitCode: 1}}, Backend: "x86"},
	} {
		if prev, dup := keys[j.Key()]; dup {
			t.Errorf("%s job shares its key with %s", name, prev)
		}
		keys[j.Key()] = name
	}
}

func TestCacheSkipsPassedJobs(t *testing.T) {
	m := &Manifest{Cases: []Case{{Name: "a", Source: "int main(void){return 0;}"}}, Backends: []string{"x86"}}
	jobs := m.Jobs()
	cache := Cache{jobs[0].Key(): time.Now(), jobs[1].Key(): time.Now()}
	r := &Runner{Jobs: 2, Cache: cache, TempDir: t.TempDir()}
	results, err := r.Run(context.Background(), jobs)
	if err != nil {
		t.Fatal(err)
	}
	for _, res := range results {
		if res.Status != Cached {
			t.Errorf("%s: status %s, want %s", res.Job.Name(), res.Status, Cached)
		}
	}
}

func TestCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	when := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := (Cache{"k": when}).save(path); err != nil {
		t.Fatal(err)
	}
	got := loadCache(path)
	if !got["k"].Equal(when) {
		t.Errorf("loadCache = %v", got)
	}
	if len(loadCache(filepath.Join(t.TempDir(), "missing.json"))) != 0 {
		t.Error("missing cache file is not empty")
	}
}

func TestRunCoreManifest(t *testing.T) {
	if runtime.GOOS != "linux" || runtime.GOARCH != "amd64" {
		t.Skip("needs linux/amd64")
	}
	cc, err := exec.LookPath("cc")
	if err != nil {
		t.Skip("cc not found")
	}
	m, err := LoadManifest(filepath.Join("testdata", "core.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	r := &Runner{CC: cc, Timeout: time.Duration(m.Timeout), Jobs: 4, TempDir: t.TempDir(), Cache: make(Cache)}
	results, err := r.Run(context.Background(), m.Jobs())
	if err != nil {
		t.Fatal(err)
	}
	for _, res := range results {
		if res.Status != Pass {
			t.Errorf("%s: %s %s\n%s", res.Job.Name(), res.Status, res.Message, res.Diff)
		}
	}
}
