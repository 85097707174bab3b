package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/schollz/progressbar/v3"
	"github.com/xplshn/xcc/pkg/compiler"
	"github.com/xplshn/xcc/pkg/config"
	"github.com/xplshn/xcc/pkg/util"
	"golang.org/x/sync/errgroup"
)

type Status string

const (
	Pass   Status = "PASS"
	Fail   Status = "FAIL"
	Error  Status = "ERROR"
	Cached Status = "CACHED"
)

type Result struct {
	Job      Job
	Status   Status
	Message  string
	Diff     string
	Duration time.Duration
}

// Cache maps a job key to the time it last passed.
type Cache map[string]time.Time

func loadCache(path string) Cache {
	c := make(Cache)
	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	if json.Unmarshal(data, &c) != nil {
		return make(Cache)
	}
	return c
}

func (c Cache) save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

type Runner struct {
	CC      string
	Target  string
	Timeout time.Duration
	Jobs    int
	TempDir string
	Cache   Cache
	Bar     *progressbar.ProgressBar
}

// Run executes jobs in parallel and returns their results in job order.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	results := make([]Result, len(jobs))
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Jobs)
	for i, job := range jobs {
		key := job.Key()
		mu.Lock()
		_, hit := r.Cache[key]
		mu.Unlock()
		if hit {
			results[i] = Result{Job: job, Status: Cached}
			r.tick()
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			res := r.runJob(ctx, job, fmt.Sprintf("job%d", i))
			res.Duration = time.Since(start)
			results[i] = res
			if res.Status == Pass {
				mu.Lock()
				r.Cache[key] = time.Now()
				mu.Unlock()
			}
			r.tick()
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

func (r *Runner) tick() {
	if r.Bar != nil {
		r.Bar.Add(1)
	}
}

func (r *Runner) config(job Job) (*config.Config, error) {
	cfg := config.NewConfig()
	if err := cfg.SetTarget(runtime.GOOS, runtime.GOARCH, r.Target); err != nil {
		return nil, err
	}
	cfg.SetOptimize(job.Optimize)
	cfg.ProcessFlags(job.Case.Flags)
	return cfg, nil
}

func (r *Runner) runJob(ctx context.Context, job Job, stem string) Result {
	res := Result{Job: job}
	cfg, err := r.config(job)
	if err != nil {
		res.Status, res.Message = Error, err.Error()
		return res
	}

	out, err := compiler.Compile([]byte(job.Case.Source), cfg, compiler.Options{Backend: job.Backend})
	want := job.Case.Expect
	if want.CompileExit != 0 {
		got := util.ExitCode(err)
		if got != want.CompileExit {
			res.Status = Fail
			res.Message = fmt.Sprintf("compiler exit status %d, want %d (%v)", got, want.CompileExit, err)
			return res
		}
		res.Status = Pass
		return res
	}
	if err != nil {
		res.Status, res.Message = Fail, "compilation failed: "+err.Error()
		return res
	}

	asm := filepath.Join(r.TempDir, stem+".s")
	bin := filepath.Join(r.TempDir, stem)
	if err := os.WriteFile(asm, []byte(out.Output), 0o644); err != nil {
		res.Status, res.Message = Error, err.Error()
		return res
	}
	args := []string{"-o", bin, asm}
	if cfg.Platform == config.Linux {
		args = append([]string{"-no-pie"}, args...)
	}
	if b, err := exec.CommandContext(ctx, r.CC, args...).CombinedOutput(); err != nil {
		res.Status, res.Message = Fail, fmt.Sprintf("%s failed: %v", r.CC, err)
		res.Diff = string(b)
		return res
	}

	runCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()
	var stdout bytes.Buffer
	cmd := exec.CommandContext(runCtx, bin)
	cmd.Stdout = &stdout
	err = cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		res.Status, res.Message = Fail, "timed out after "+r.Timeout.String()
		return res
	case err != nil && !errors.As(err, &exitErr):
		res.Status, res.Message = Error, err.Error()
		return res
	}

	code := cmd.ProcessState.ExitCode()
	var diff bytes.Buffer
	if code != want.ExitCode {
		fmt.Fprintf(&diff, "exit code: got %d, want %d\n", code, want.ExitCode)
	}
	if d := cmp.Diff(want.Stdout, stdout.String()); d != "" {
		fmt.Fprintf(&diff, "stdout mismatch (-want +got):\n%s", d)
	}
	if diff.Len() > 0 {
		res.Status, res.Message, res.Diff = Fail, "runtime behaviour mismatch", diff.String()
		return res
	}
	res.Status = Pass
	return res
}
