package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xplshn/xcc/pkg/cli"
	"github.com/xyproto/env/v2"
	"modernc.org/libqbe"
)

type Feature int

const (
	FeatFoldConstants Feature = iota
	FeatEliminateUnreachable
	FeatPropagateCopies
	FeatEliminateDeadStores
	FeatCount
)

type Warning int

const (
	WarnOverflow Warning = iota
	WarnPointerConversion
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

// Platform selects the object-file conventions of the emitted assembly.
type Platform int

const (
	Linux Platform = iota
	Darwin
)

func (p Platform) String() string {
	if p == Darwin {
		return "darwin"
	}
	return "linux"
}

type Config struct {
	Features       map[Feature]Info
	Warnings       map[Warning]Info
	FeatureMap     map[string]Feature
	WarningMap     map[string]Warning
	TargetArch     string
	QbeTarget      string
	Platform       Platform
	WordSize       int
	StackAlignment int
	BackendName    string
	CC             string
}

func NewConfig() *Config {
	cfg := &Config{
		Features:    make(map[Feature]Info),
		Warnings:    make(map[Warning]Info),
		FeatureMap:  make(map[string]Feature),
		WarningMap:  make(map[string]Warning),
		BackendName: "x86",
		CC:          "cc",
	}

	features := map[Feature]Info{
		FeatFoldConstants:        {"fold-constants", false, "Evaluate TAC instructions whose operands are all constants."},
		FeatEliminateUnreachable: {"eliminate-unreachable-code", false, "Remove blocks, jumps and labels that control never reaches."},
		FeatPropagateCopies:      {"propagate-copies", false, "Replace uses of copied variables with their sources."},
		FeatEliminateDeadStores:  {"eliminate-dead-stores", false, "Delete writes to variables that are never read afterwards."},
	}

	warnings := map[Warning]Info{
		WarnOverflow:          {"overflow", true, "Warn when a constant changes value on conversion."},
		WarnPointerConversion: {"pointer-conversion", true, "Warn about casts between unrelated pointer types."},
		WarnExtra:             {"extra", false, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}
	cfg.WordSize, cfg.StackAlignment = 8, 16

	return cfg
}

// FromEnv applies XCC_* environment defaults; command-line flags override them later.
func (c *Config) FromEnv() {
	c.QbeTarget = env.Str("XCC_TARGET", c.QbeTarget)
	c.BackendName = env.Str("XCC_BACKEND", c.BackendName)
	c.CC = env.Str("XCC_CC", c.CC)
	if env.Bool("XCC_OPT") {
		c.SetOptimize(true)
	}
}

// SetTarget configures the compiler for a QBE-style target name, defaulting to the host.
func (c *Config) SetTarget(goos, goarch, target string) error {
	if target == "" {
		target = libqbe.DefaultTarget(goos, goarch)
	}
	c.QbeTarget = target
	c.TargetArch = goarch

	switch target {
	case "amd64_sysv":
		c.Platform, c.TargetArch = Linux, "amd64"
	case "amd64_apple":
		c.Platform, c.TargetArch = Darwin, "amd64"
	case "arm64", "rv64":
		c.Platform = Linux
	case "arm64_apple":
		c.Platform = Darwin
	default:
		return fmt.Errorf("unsupported target '%s'", target)
	}
	c.WordSize, c.StackAlignment = 8, 16
	return nil
}

// NativeX86 reports whether the built-in x86-64 generator can serve the target.
func (c *Config) NativeX86() bool { return c.QbeTarget == "amd64_sysv" || c.QbeTarget == "amd64_apple" }

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// SetOptimize toggles every optimizer pass at once, as -O and -O0 do.
func (c *Config) SetOptimize(on bool) {
	for i := Feature(0); i < FeatCount; i++ {
		c.SetFeature(i, on)
	}
}

// Optimizing reports whether any optimizer pass is enabled.
func (c *Config) Optimizing() bool {
	for i := Feature(0); i < FeatCount; i++ {
		if c.IsFeatureEnabled(i) {
			return true
		}
	}
	return false
}

func (c *Config) applyFlag(flag string) {
	trimmed := strings.TrimPrefix(flag, "-")
	isNo := strings.HasPrefix(trimmed, "Wno-") || strings.HasPrefix(trimmed, "Fno-")
	enable := !isNo

	var name string
	var isWarning bool

	switch {
	case strings.HasPrefix(trimmed, "W"):
		name = strings.TrimPrefix(trimmed, "W")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(trimmed, "F")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
	default:
		name = trimmed
		isWarning = true
	}

	if name == "all" && isWarning {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, enable)
		}
		return
	}

	if isWarning {
		if w, ok := c.WarningMap[name]; ok {
			c.SetWarning(w, enable)
		}
	} else {
		if f, ok := c.FeatureMap[name]; ok {
			c.SetFeature(f, enable)
		}
	}
}

// ProcessFlags applies -W/-F style flags, with -Wall first so specific flags win.
func (c *Config) ProcessFlags(flags []string) {
	for _, f := range flags {
		if f == "Wall" || f == "Wno-all" {
			c.applyFlag("-" + f)
		}
	}
	for _, f := range flags {
		if f != "Wall" && f != "Wno-all" {
			c.applyFlag("-" + f)
		}
	}
}

// SetupFlagGroups registers -W<warning>/-Wno-<warning> and -F<feature>/-Fno-<feature>
// switches on fs. The returned entries are indexed by Warning and Feature; pass
// them to ApplyFlagGroups after parsing.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) (warnings, features []cli.FlagGroupEntry) {
	warnings = make([]cli.FlagGroupEntry, WarnCount)
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		warnings[i] = cli.FlagGroupEntry{Name: info.Name, Prefix: "W", Usage: info.Description, Default: info.Enabled, Enabled: new(bool), Disabled: new(bool)}
	}
	features = make([]cli.FlagGroupEntry, FeatCount)
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		features[i] = cli.FlagGroupEntry{Name: info.Name, Prefix: "F", Usage: info.Description, Default: info.Enabled, Enabled: new(bool), Disabled: new(bool)}
	}
	fs.AddFlagGroup("Warning Flags", "warning", byName(warnings))
	fs.AddFlagGroup("Optimization Flags", "feature", byName(features))
	return warnings, features
}

func byName(entries []cli.FlagGroupEntry) []cli.FlagGroupEntry {
	out := append([]cli.FlagGroupEntry(nil), entries...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ApplyFlagGroups copies the parsed switches back into c; -Wno-x beats -Wx.
func (c *Config) ApplyFlagGroups(warnings, features []cli.FlagGroupEntry) {
	for i, e := range warnings {
		c.SetWarning(Warning(i), e.On(c.IsWarningEnabled(Warning(i))))
	}
	for i, e := range features {
		c.SetFeature(Feature(i), e.On(c.IsFeatureEnabled(Feature(i))))
	}
}
