// Package intern deduplicates identifier text and mints compiler-generated names.
//
// A symbol is an ordinary Go string: interning guarantees that every occurrence of
// the same identifier shares one backing array, so symbols are cheap to copy and
// compare. Generated names have the form "prefix.N"; the lexer never produces a '.'
// inside an identifier, so they cannot collide with user names.
package intern

import (
	"regexp"
	"strconv"
)

type Pool struct {
	strs    map[string]string
	minted  map[string]string // generated name -> prefix
	counter int
}

func NewPool() *Pool {
	return &Pool{strs: make(map[string]string), minted: make(map[string]string)}
}

// Intern returns the canonical copy of text.
func (p *Pool) Intern(text string) string {
	if s, ok := p.strs[text]; ok {
		return s
	}
	p.strs[text] = text
	return text
}

// Fresh returns a name that has never been returned before.
func (p *Pool) Fresh(prefix string) string {
	name := p.Intern(prefix + "." + strconv.Itoa(p.counter))
	p.counter++
	p.minted[name] = prefix
	return name
}

// Source returns the identifier a generated name was minted from, or name itself.
func (p *Pool) Source(name string) string {
	for {
		prefix, ok := p.minted[name]
		if !ok {
			return name
		}
		name = prefix
	}
}

var generatedName = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*(?:\.[0-9]+)+`)

// Unmangle rewrites every name in text that this pool generated back to its source
// identifier, for messages shown to the user.
func (p *Pool) Unmangle(text string) string {
	return generatedName.ReplaceAllStringFunc(text, func(m string) string {
		if _, ok := p.minted[m]; ok {
			return p.Source(m)
		}
		return m
	})
}

func (p *Pool) Len() int { return len(p.strs) }
