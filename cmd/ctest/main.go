// Command ctest compiles the programs listed in YAML manifests with xcc, runs them
// and checks their exit status and output. Every program is built with the
// optimizer off and on, so the two must agree.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/xplshn/xcc/pkg/cli"
	"golang.org/x/term"
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	log.SetFlags(0)

	app := cli.NewApp("ctest")
	app.Synopsis = "[options] <manifest.yaml> ..."
	app.Description = "Run the C programs of one or more manifests through xcc and compare what they do with what the manifest expects."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/xcc>"
	app.Since = 2025

	var (
		jobs      int
		cc        string
		target    string
		backends  []string
		cachePath string
		noCache   bool
		verbose   bool
		timeout   string
	)
	fs := app.FlagSet
	fs.Int(&jobs, "jobs", "j", 4, "Number of parallel jobs.", "n")
	fs.String(&cc, "cc", "", "cc", "Assembler and linker driver.", "command")
	fs.String(&target, "target", "t", "", "Target ABI to compile for.", "target")
	fs.List(&backends, "backend", "b", nil, "Override the manifest's backends.", "backend")
	fs.String(&cachePath, "cache", "", ".ctest-cache.json", "File remembering which jobs passed.", "file")
	fs.Bool(&noCache, "no-cache", "", false, "Run every job even if it passed before.")
	fs.Bool(&verbose, "verbose", "v", false, "Report passing jobs too.")
	fs.String(&timeout, "timeout", "", "", "Override the manifest's per-program timeout.", "duration")

	app.Action = func(paths []string) error {
		if len(paths) == 0 {
			app.Usage(os.Stderr)
			return errors.New("no manifest given")
		}
		tempDir, err := os.MkdirTemp("", "ctest-*")
		if err != nil {
			return fmt.Errorf("creating temp directory: %w", err)
		}
		defer os.RemoveAll(tempDir)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		cache := make(Cache)
		if !noCache {
			cache = loadCache(cachePath)
		}

		failed := false
		for _, path := range paths {
			m, err := LoadManifest(path)
			if err != nil {
				return err
			}
			if len(backends) > 0 {
				m.Backends = backends
			}
			perRun := time.Duration(m.Timeout)
			if timeout != "" {
				if perRun, err = time.ParseDuration(timeout); err != nil {
					return fmt.Errorf("--timeout: %w", err)
				}
			}

			list := m.Jobs()
			r := &Runner{CC: cc, Target: target, Timeout: perRun, Jobs: max(jobs, 1), TempDir: tempDir, Cache: cache}
			if term.IsTerminal(int(os.Stderr.Fd())) {
				r.Bar = progressbar.Default(int64(len(list)), m.Name)
			}
			results, err := r.Run(ctx, list)
			if err != nil {
				return err
			}
			if r.Bar != nil {
				r.Bar.Finish()
			}
			if report(m.Name, results, verbose) {
				failed = true
			}
		}

		if !noCache {
			if err := cache.save(cachePath); err != nil {
				log.Printf("%s[WARN]%s could not write cache %s: %v", cYellow, cNone, cachePath, err)
			}
		}
		if failed {
			return errors.New("some jobs failed")
		}
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		log.Printf("%s[ERROR]%s %v", cRed, cNone, err)
		os.Exit(1)
	}
}

// report prints failures (and, verbosely, passes) followed by a summary line. It
// reports whether anything failed.
func report(name string, results []Result, verbose bool) bool {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Job.Case.Name < results[j].Job.Case.Name })
	counts := make(map[Status]int)
	for _, r := range results {
		counts[r.Status]++
		switch r.Status {
		case Pass, Cached:
			if verbose {
				log.Printf("%s[%s]%s %s %s", cGreen, r.Status, cNone, r.Job.Name(), formatDuration(r.Duration))
			}
		default:
			log.Printf("%s[%s]%s %s: %s", cRed, r.Status, cNone, r.Job.Name(), r.Message)
			if r.Diff != "" {
				log.Print(indent(r.Diff))
			}
		}
	}
	log.Printf("%s%s%s: %s%d passed%s, %d cached, %s%d failed%s, %d errors",
		cBold, name, cNone, cGreen, counts[Pass], cNone, counts[Cached], cRed, counts[Fail], cNone, counts[Error])
	return counts[Fail]+counts[Error] > 0
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return cCyan + d.Round(time.Millisecond).String() + cNone
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}
