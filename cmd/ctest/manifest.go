package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"
)

// Manifest is a YAML list of C programs and what running them must produce.
type Manifest struct {
	Name    string   `yaml:"name"`
	Timeout Duration `yaml:"timeout"`
	// Backends defaults to [x86].
	Backends []string `yaml:"backends"`
	Cases    []Case   `yaml:"cases"`
}

type Case struct {
	Name string `yaml:"name"`
	// Source is inline C; File is a path relative to the manifest. Exactly one is set.
	Source string   `yaml:"source"`
	File   string   `yaml:"file"`
	Flags  []string `yaml:"flags"`
	Expect Expect   `yaml:"expect"`
}

type Expect struct {
	ExitCode int    `yaml:"exit_code"`
	Stdout   string `yaml:"stdout"`
	// CompileExit, when non-zero, is the exit status the compiler must fail with.
	CompileExit int `yaml:"compile_exit"`
}

type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// LoadManifest reads path and inlines every case's File.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if m.Timeout == 0 {
		m.Timeout = Duration(5 * time.Second)
	}
	if len(m.Backends) == 0 {
		m.Backends = []string{"x86"}
	}

	dir := filepath.Dir(path)
	for i := range m.Cases {
		c := &m.Cases[i]
		switch {
		case c.Name == "":
			return nil, fmt.Errorf("%s: case %d has no name", path, i)
		case c.Source != "" && c.File != "":
			return nil, fmt.Errorf("%s: case '%s' sets both source and file", path, c.Name)
		case c.File != "":
			src, err := os.ReadFile(filepath.Join(dir, c.File))
			if err != nil {
				return nil, fmt.Errorf("case '%s': %w", c.Name, err)
			}
			c.Source = string(src)
		case c.Source == "":
			return nil, fmt.Errorf("%s: case '%s' has no source", path, c.Name)
		}
	}
	return &m, nil
}

// Job is one case compiled one way.
type Job struct {
	Case     *Case
	Backend  string
	Optimize bool
}

func (j Job) Name() string {
	name := j.Case.Name + " [" + j.Backend
	if j.Optimize {
		name += " -O"
	}
	return name + "]"
}

// Key digests everything that decides the job's outcome.
func (j Job) Key() string {
	h := xxhash.New()
	h.WriteString(j.Case.Source)
	for _, f := range j.Case.Flags {
		h.WriteString("\x00" + f)
	}
	h.WriteString("\x00" + j.Backend + "\x00" + strconv.FormatBool(j.Optimize))
	h.WriteString(fmt.Sprintf("\x00%d\x00%q\x00%d", j.Case.Expect.ExitCode, j.Case.Expect.Stdout, j.Case.Expect.CompileExit))
	return fmt.Sprintf("%016x", h.Sum64())
}

// Jobs expands every case into one job per backend, with the optimizer off and on.
func (m *Manifest) Jobs() []Job {
	var jobs []Job
	for i := range m.Cases {
		for _, b := range m.Backends {
			for _, opt := range []bool{false, true} {
				jobs = append(jobs, Job{Case: &m.Cases[i], Backend: b, Optimize: opt})
			}
		}
	}
	return jobs
}
