package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/term"
)

type App struct {
	Name        string
	Synopsis    string
	Description string
	Authors     []string
	Repository  string
	Since       int
	FlagSet     *FlagSet
	Action      func(args []string) error

	// Stdout and Stderr default to the process streams.
	Stdout io.Writer
	Stderr io.Writer
}

func NewApp(name string) *App {
	return &App{Name: name, FlagSet: NewFlagSet(name), Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run parses arguments and calls Action with the operands. A parse error prints
// the short usage to Stderr and is returned.
func (a *App) Run(arguments []string) error {
	var help bool
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information.")

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintf(a.Stderr, "%s: %v\n", a.Name, err)
		a.Usage(a.Stderr)
		return err
	}
	if help {
		a.Help(a.Stdout)
		return nil
	}
	if a.Action == nil {
		return nil
	}
	return a.Action(a.FlagSet.Args())
}

// Usage prints the synopsis line and a pointer to --help.
func (a *App) Usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s %s\n", a.Name, a.Synopsis)
	fmt.Fprintf(w, "Run '%s --help' for all available options.\n", a.Name)
}

// Help prints the full help page, wrapped to the terminal width when w is one.
func (a *App) Help(w io.Writer) {
	p := &page{width: width(w)}
	for _, fl := range a.options() {
		p.measure(fl.left(), fl.Usage)
	}
	for _, g := range a.FlagSet.groups {
		p.measure(g.enableForm(), "")
		for _, e := range g.Entries {
			p.measure(e.Name, e.Usage)
		}
	}

	years := fmt.Sprint(a.Since)
	if now := time.Now().Year(); a.Since != 0 && now > a.Since {
		years = fmt.Sprintf("%d-%d", a.Since, now)
	}
	p.heading("")
	p.text(fmt.Sprintf("Copyright (c) %s: %s and contributors", years, strings.Join(a.Authors, ", ")))
	if a.Repository != "" {
		p.text("For more details refer to " + a.Repository)
	}
	if a.Synopsis != "" {
		p.heading("Synopsis")
		p.item(a.Name+" "+a.Synopsis, "", "")
	}
	if a.Description != "" {
		p.heading("Description")
		for _, line := range wrap(a.Description, p.width-2*indentWidth) {
			p.item(line, "", "")
		}
	}

	p.heading("Options")
	for _, fl := range a.options() {
		def := ""
		if !isSwitch(fl.Value) && fl.DefValue != "" {
			def = "|" + fl.DefValue + "|"
		}
		p.item(fl.left(), fl.Usage, def)
	}

	groups := append([]FlagGroup(nil), a.FlagSet.groups...)
	sort.Slice(groups, func(i, j int) bool { return groups[i].Title < groups[j].Title })
	for _, g := range groups {
		p.heading(g.Title)
		p.item(g.enableForm(), "Enable a "+g.Kind+".", "")
		p.item(g.disableForm(), "Disable a "+g.Kind+".", "")
		entries := append([]FlagGroupEntry(nil), g.Entries...)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		for _, e := range entries {
			mark := "|-|"
			if e.Default {
				mark = "|x|"
			}
			p.item(e.Name, e.Usage, mark)
		}
	}
	io.WriteString(w, p.sb.String())
}

func (a *App) options() []*Flag {
	var out []*Flag
	for name, fl := range a.FlagSet.flags {
		if _, prefix := a.FlagSet.prefixes[name]; prefix || a.FlagSet.inGroup(name) {
			continue
		}
		out = append(out, fl)
	}
	for _, fl := range a.FlagSet.prefixes {
		out = append(out, fl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (fl *Flag) left() string {
	var sb strings.Builder
	if fl.prefix {
		return "-" + fl.Name + "<" + fl.Arg + ">"
	}
	if fl.Shorthand != "" {
		sb.WriteString("-" + fl.Shorthand + ", ")
	}
	if compilerStyle(fl.Name) {
		sb.WriteString("-" + fl.Name)
	} else {
		sb.WriteString("--" + fl.Name)
	}
	if !isSwitch(fl.Value) && fl.Arg != "" {
		sb.WriteString(" <" + fl.Arg + ">")
	}
	return sb.String()
}

// compilerStyle reports whether name is spelled like a C compiler option (-Wall,
// -O0) and is shown with a single dash.
func compilerStyle(name string) bool {
	return len(name) > 1 && name[0] >= 'A' && name[0] <= 'Z'
}

func (g FlagGroup) prefix() string {
	if len(g.Entries) == 0 {
		return ""
	}
	return g.Entries[0].Prefix
}

func (g FlagGroup) enableForm() string  { return "-" + g.prefix() + "<" + g.Kind + ">" }
func (g FlagGroup) disableForm() string { return "-" + g.prefix() + "no-<" + g.Kind + ">" }

const indentWidth = 4

// page lays out help entries in three columns: flag, usage and default.
type page struct {
	sb    strings.Builder
	width int
	left  int
	usage int
}

func (p *page) measure(left, usage string) {
	p.left = max(p.left, len(left))
	p.usage = max(p.usage, len(usage))
}

func (p *page) heading(title string) {
	p.sb.WriteByte('\n')
	if title != "" {
		fmt.Fprintf(&p.sb, "%s%s\n", strings.Repeat(" ", indentWidth), title)
	}
}

func (p *page) text(s string) {
	fmt.Fprintf(&p.sb, "%s%s\n", strings.Repeat(" ", indentWidth), s)
}

func (p *page) item(left, usage, right string) {
	pad := strings.Repeat(" ", 2*indentWidth)
	if usage == "" && right == "" {
		fmt.Fprintf(&p.sb, "%s%s\n", pad, left)
		return
	}
	room := max(p.width-len(pad)-p.left-1-len(right)-2, 10)
	lines := wrap(usage, room)
	if len(lines) == 0 {
		lines = []string{""}
	}
	col := min(p.usage, room)
	if right != "" {
		fmt.Fprintf(&p.sb, "%s%-*s %-*s  %s\n", pad, p.left, left, col, lines[0], right)
	} else {
		fmt.Fprintf(&p.sb, "%s%-*s %s\n", pad, p.left, left, lines[0])
	}
	cont := pad + strings.Repeat(" ", p.left+1)
	for _, l := range lines[1:] {
		fmt.Fprintf(&p.sb, "%s%s\n", cont, l)
	}
}

func width(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 80
	}
	cols, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 80
	}
	return max(cols, 20)
}

func wrap(text string, n int) []string {
	var lines []string
	var cur strings.Builder
	for _, word := range strings.Fields(text) {
		if cur.Len() > 0 && cur.Len()+1+len(word) > n {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}
