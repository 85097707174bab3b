// Package cli is the small flag parser and help printer shared by the xcc binaries.
// Besides GNU-style long options it understands the compiler conventions that the
// standard flag package cannot express: single-dash long names (-Wall, -O0),
// attached values (-oprog) and prefix flags that collect their suffix (-lm).
package cli

import (
	"fmt"
	"strconv"
	"strings"
)

type Value interface {
	String() string
	Set(string) error
	Get() any
}

type stringValue struct{ p *string }

func (v stringValue) Set(s string) error { *v.p = s; return nil }
func (v stringValue) String() string     { return *v.p }
func (v stringValue) Get() any           { return *v.p }

type boolValue struct{ p *bool }

// Set treats an empty string as a bare switch.
func (v boolValue) Set(s string) error {
	if s == "" {
		*v.p = true
		return nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean value '%s': %w", s, err)
	}
	*v.p = b
	return nil
}
func (v boolValue) String() string { return strconv.FormatBool(*v.p) }
func (v boolValue) Get() any       { return *v.p }

type intValue struct{ p *int }

func (v intValue) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer value '%s': %w", s, err)
	}
	*v.p = n
	return nil
}
func (v intValue) String() string { return strconv.Itoa(*v.p) }
func (v intValue) Get() any       { return *v.p }

type listValue struct{ p *[]string }

func (v listValue) Set(s string) error { *v.p = append(*v.p, s); return nil }
func (v listValue) String() string     { return strings.Join(*v.p, ",") }
func (v listValue) Get() any           { return *v.p }

func isSwitch(v Value) bool {
	_, ok := v.(boolValue)
	return ok
}

type Flag struct {
	Name      string
	Shorthand string
	Usage     string
	Value     Value
	DefValue  string
	// Arg names the flag's argument in help output.
	Arg string

	prefix bool
}

// FlagGroupEntry is one -<Prefix><Name> / -<Prefix>no-<Name> pair.
type FlagGroupEntry struct {
	Name     string
	Prefix   string
	Usage    string
	Default  bool
	Enabled  *bool
	Disabled *bool
}

// On reports whether the entry ends up enabled, given its default.
func (e FlagGroupEntry) On(def bool) bool {
	switch {
	case e.Disabled != nil && *e.Disabled:
		return false
	case e.Enabled != nil && *e.Enabled:
		return true
	}
	return def
}

type FlagGroup struct {
	Title   string
	Kind    string
	Entries []FlagGroupEntry
}

type FlagSet struct {
	name     string
	flags    map[string]*Flag
	short    map[string]*Flag
	prefixes map[string]*Flag
	groups   []FlagGroup
	args     []string
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:     name,
		flags:    make(map[string]*Flag),
		short:    make(map[string]*Flag),
		prefixes: make(map[string]*Flag),
	}
}

// Args returns the operands left after Parse.
func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) Lookup(name string) *Flag { return f.flags[name] }

func (f *FlagSet) String(p *string, name, shorthand, value, usage, arg string) {
	*p = value
	f.Var(stringValue{p}, name, shorthand, usage, value, arg)
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	f.Var(boolValue{p}, name, shorthand, usage, strconv.FormatBool(value), "")
}

func (f *FlagSet) Int(p *int, name, shorthand string, value int, usage, arg string) {
	*p = value
	f.Var(intValue{p}, name, shorthand, usage, strconv.Itoa(value), arg)
}

func (f *FlagSet) List(p *[]string, name, shorthand string, value []string, usage, arg string) {
	*p = value
	f.Var(listValue{p}, name, shorthand, usage, strings.Join(value, ","), arg)
}

// Prefix registers a flag written as -<prefix><value>, like -lm.
func (f *FlagSet) Prefix(p *[]string, prefix, usage, arg string) {
	*p = nil
	f.Var(listValue{p}, prefix, "", usage, "", arg)
	f.flags[prefix].prefix = true
	f.prefixes[prefix] = f.flags[prefix]
}

func (f *FlagSet) Var(v Value, name, shorthand, usage, def, arg string) {
	if name == "" {
		panic("cli: flag with an empty name")
	}
	if _, dup := f.flags[name]; dup {
		panic("cli: flag redefined: " + name)
	}
	fl := &Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: v, DefValue: def, Arg: arg}
	f.flags[name] = fl
	if shorthand == "" {
		return
	}
	if _, dup := f.short[shorthand]; dup {
		panic("cli: shorthand redefined: " + shorthand)
	}
	f.short[shorthand] = fl
}

// AddFlagGroup defines the switches of every entry and lists them under title in
// the help page.
func (f *FlagSet) AddFlagGroup(title, kind string, entries []FlagGroupEntry) {
	for _, e := range entries {
		if e.Enabled != nil {
			f.Bool(e.Enabled, e.Prefix+e.Name, "", false, e.Usage)
		}
		if e.Disabled != nil {
			f.Bool(e.Disabled, e.Prefix+"no-"+e.Name, "", false, "Disable "+e.Name+".")
		}
	}
	f.groups = append(f.groups, FlagGroup{Title: title, Kind: kind, Entries: entries})
}

func (f *FlagSet) inGroup(name string) bool {
	for _, g := range f.groups {
		for _, e := range g.Entries {
			if name == e.Prefix+e.Name || name == e.Prefix+"no-"+e.Name {
				return true
			}
		}
	}
	return false
}

// Parse consumes arguments. Flags and operands may be interleaved; everything after
// "--" is an operand.
func (f *FlagSet) Parse(arguments []string) error {
	f.args = nil
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		switch {
		case arg == "--":
			f.args = append(f.args, arguments[i+1:]...)
			return nil
		case len(arg) < 2 || arg[0] != '-':
			f.args = append(f.args, arg)
			continue
		}

		dashes := "-"
		if strings.HasPrefix(arg, "--") {
			dashes = "--"
		}
		name, value, hasValue := strings.Cut(arg[len(dashes):], "=")
		fl, ok := f.flags[name]
		if !ok && dashes == "-" {
			var err error
			fl, value, hasValue, err = f.shortForm(arg)
			if err != nil {
				return err
			}
			ok = true
		}
		if !ok {
			return fmt.Errorf("unknown flag: %s%s", dashes, name)
		}

		if !hasValue && !isSwitch(fl.Value) {
			if i+1 >= len(arguments) {
				return fmt.Errorf("flag needs an argument: %s", arg)
			}
			i++
			value = arguments[i]
		}
		if err := fl.Value.Set(value); err != nil {
			return fmt.Errorf("%s: %w", arg, err)
		}
	}
	return nil
}

// shortForm resolves -lfoo, -S and -ofile.
func (f *FlagSet) shortForm(arg string) (*Flag, string, bool, error) {
	for prefix, fl := range f.prefixes {
		if rest, ok := strings.CutPrefix(arg[1:], prefix); ok && rest != "" {
			return fl, rest, true, nil
		}
	}
	fl, ok := f.short[arg[1:2]]
	if !ok {
		return nil, "", false, fmt.Errorf("unknown flag: %s", arg)
	}
	rest := arg[2:]
	if isSwitch(fl.Value) {
		if rest != "" {
			return nil, "", false, fmt.Errorf("unknown flag: %s", arg)
		}
		return fl, "", true, nil
	}
	return fl, rest, rest != "", nil
}
