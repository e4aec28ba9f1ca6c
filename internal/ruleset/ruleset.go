// Copyright 2024 The Stu Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ruleset

import (
	"fmt"
	"strings"

	"stu/internal/dep"
	"stu/internal/flags"
	"stu/internal/hashdep"
	"stu/internal/name"
	"stu/internal/place"
)

// trieNode is one node of the literal-prefix/-suffix trie. Rules are
// stored at the node reached by walking their literal text, so any request
// string that shares that prefix passes through (and picks up) the node.
type trieNode struct {
	children map[byte]*trieNode
	rules    []*Rule
}

func newTrieNode() *trieNode { return &trieNode{children: make(map[byte]*trieNode)} }

type trie struct{ root *trieNode }

func newTrie() *trie { return &trie{root: newTrieNode()} }

func (t *trie) insert(key string, r *Rule) {
	n := t.root
	for i := 0; i < len(key); i++ {
		c := key[i]
		child, ok := n.children[c]
		if !ok {
			child = newTrieNode()
			n.children[c] = child
		}
		n = child
	}
	n.rules = append(n.rules, r)
}

// candidates returns every rule whose indexed key is a prefix of s.
func (t *trie) candidates(s string) []*Rule {
	var out []*Rule
	n := t.root
	out = append(out, n.rules...)
	for i := 0; i < len(s); i++ {
		child, ok := n.children[s[i]]
		if !ok {
			break
		}
		n = child
		out = append(out, n.rules...)
	}
	return out
}

// RuleSet indexes unparametrized and parametrized rules (spec.md §3
// "RuleSet"): an exact map for unparametrized targets, a prefix trie and a
// suffix trie (keyed by reversed text) for parametrized ones whose target
// starts or ends in literal text, and a bare list for rules whose targets
// are fully parameter-bounded on both ends.
type RuleSet struct {
	exact  map[string]*Rule
	prefix *trie
	suffix *trie
	bare   []*Rule
}

// New returns an empty RuleSet.
func New() *RuleSet {
	return &RuleSet{
		exact:  make(map[string]*Rule),
		prefix: newTrie(),
		suffix: newTrie(),
	}
}

func exactKey(transient bool, text string) string {
	var f flags.Flags
	if transient {
		f = flags.Transient
	}
	return hashdep.New(f, text).Key()
}

// Add canonicalizes and inserts a rule. It returns a logical error if any
// of the rule's unparametrized targets duplicates one already present.
func (rs *RuleSet) Add(r *Rule) *place.Error {
	r.Canonicalize()

	if !r.IsParametrized() {
		for _, t := range r.Targets {
			key := exactKey(t.Transient, t.Name.Literal())
			if existing, ok := rs.exact[key]; ok {
				return place.NewLogical(t.Place, "duplicate rule for target %q (first defined at %s)",
					t.Name.Literal(), existing.At.String())
			}
		}
		for _, t := range r.Targets {
			rs.exact[exactKey(t.Transient, t.Name.Literal())] = r
		}
		return nil
	}

	for _, t := range r.Targets {
		first, last := t.Name.Fragments[0], t.Name.Fragments[len(t.Name.Fragments)-1]
		switch {
		case first != "":
			rs.prefix.insert(first, r)
		case last != "":
			rs.suffix.insert(reverse(last), r)
		default:
			rs.bare = append(rs.bare, r)
		}
	}
	return nil
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// candidate pairs a matched Rule/target with its match and priority, used
// while computing dominance.
type candidate struct {
	rule     *Rule
	target   name.PlaceTarget
	match    name.Match
	priority name.Priority
}

func coverage(spans []name.Span, length int) []bool {
	cov := make([]bool, length)
	for _, sp := range spans {
		for i := sp.Start; i < sp.End && i < length; i++ {
			cov[i] = true
		}
	}
	return cov
}

func priorityScore(p name.Priority) int {
	score := 0
	if p.BeginsWithParam {
		score++
	}
	if p.EndsWithParam {
		score++
	}
	return score
}

// dominates reports whether x dominates y for the given request length, per
// spec.md §4.1.
func dominates(x, y candidate, length int) bool {
	cx := coverage(x.match.Spans, length)
	cy := coverage(y.match.Spans, length)
	for i := 0; i < length; i++ {
		if cx[i] && !cy[i] {
			return false
		}
	}
	strictlySmaller := false
	for i := 0; i < length; i++ {
		if cy[i] && !cx[i] {
			strictlySmaller = true
			break
		}
	}
	if strictlySmaller {
		return true
	}
	return priorityScore(x.priority) < priorityScore(y.priority)
}

// Resolve finds the best-matching rule for a non-dynamic HashDep, per
// spec.md §4.3.
func (rs *RuleSet) Resolve(h hashdep.HashDep, at place.Place) (*Instance, *place.Error) {
	h = h.StripLinks()

	if r, ok := rs.exact[h.Key()]; ok {
		return &Instance{Instantiated: r, Source: r, Params: map[string]string{}}, nil
	}

	text := h.Text
	transient := h.IsTransient()

	seen := make(map[*Rule]bool)
	var pool []*Rule
	for _, r := range rs.prefix.candidates(text) {
		if !seen[r] {
			seen[r] = true
			pool = append(pool, r)
		}
	}
	for _, r := range rs.suffix.candidates(reverse(text)) {
		if !seen[r] {
			seen[r] = true
			pool = append(pool, r)
		}
	}
	for _, r := range rs.bare {
		if !seen[r] {
			seen[r] = true
			pool = append(pool, r)
		}
	}

	var candidates []candidate
	for _, r := range pool {
		for _, t := range r.Targets {
			if t.Transient != transient {
				continue
			}
			m, ok := t.Name.Match(text)
			if !ok {
				continue
			}
			candidates = append(candidates, candidate{
				rule: r, target: t, match: m, priority: name.PriorityOf(t.Name),
			})
		}
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	var minimal []candidate
	for i, c := range candidates {
		dominated := false
		for j, d := range candidates {
			if i == j {
				continue
			}
			if dominates(d, c, len(text)) {
				dominated = true
				break
			}
		}
		if !dominated {
			minimal = append(minimal, c)
		}
	}

	// De-duplicate by underlying rule: the same rule reached through both
	// tries, or matched by two of its own targets, counts once.
	uniq := make(map[*Rule]candidate)
	var order []*Rule
	for _, c := range minimal {
		if _, ok := uniq[c.rule]; !ok {
			order = append(order, c.rule)
		}
		uniq[c.rule] = c
	}

	if len(order) == 1 {
		c := uniq[order[0]]
		return instantiate(c)
	}

	msg := &strings.Builder{}
	fmt.Fprintf(msg, "no unique best matching rule for target %q; %d candidates tie:", text, len(order))
	for _, r := range order {
		fmt.Fprintf(msg, "\n  %s", r.At.String())
	}
	return nil, &place.Error{Code: place.CodeLogical, Message: msg.String(), Places: []place.Place{at}}
}

func instantiate(c candidate) (*Instance, *place.Error) {
	values := make(map[string]string, len(c.target.Name.Params))
	for i, p := range c.target.Name.Params {
		values[p] = c.match.Values[i]
	}

	inst := &Rule{
		At:                 c.rule.At,
		IsHardcode:         c.rule.IsHardcode,
		IsCopy:             c.rule.IsCopy,
		CopyOptionalSource: c.rule.CopyOptionalSource,
		HardcodeContent:    substituteText(c.rule.HardcodeContent, values),
		RedirectIndex:      c.rule.RedirectIndex,
	}
	inst.Targets = make([]name.PlaceTarget, len(c.rule.Targets))
	for i, t := range c.rule.Targets {
		inst.Targets[i] = name.PlaceTarget{
			Name:      name.NewLiteral(substituteName(t.Name, values)),
			Transient: t.Transient,
			Place:     t.Place,
		}
	}
	inst.InputFile = name.NewLiteral(substituteName(c.rule.InputFile, values))
	if c.rule.Command != nil {
		inst.Command = &Command{Text: substituteText(c.rule.Command.Text, values), At: c.rule.Command.At}
	}
	inst.Deps = make([]dep.Dep, len(c.rule.Deps))
	for i, d := range c.rule.Deps {
		inst.Deps[i] = substituteDep(d, values)
	}

	return &Instance{Instantiated: inst, Source: c.rule, Params: values}, nil
}

// substituteDep replaces every parameter reference in d's Names with its
// bound value, recursively through Dynamic/Concat/Compound wrappers.
// Invariant 8 guarantees every parameter found here is bound.
func substituteDep(d dep.Dep, values map[string]string) dep.Dep {
	switch v := d.(type) {
	case *dep.Plain:
		cp := *v
		cp.Target.Name = name.NewLiteral(substituteName(v.Target.Name, values))
		return &cp
	case *dep.Dynamic:
		cp := *v
		cp.Inner = substituteDep(v.Inner, values)
		return &cp
	case *dep.Concat:
		cp := *v
		cp.Children = make([]dep.Dep, len(v.Children))
		for i, c := range v.Children {
			cp.Children[i] = substituteDep(c, values)
		}
		return &cp
	case *dep.Compound:
		cp := *v
		cp.Children = make([]dep.Dep, len(v.Children))
		for i, c := range v.Children {
			cp.Children[i] = substituteDep(c, values)
		}
		return &cp
	default:
		return d
	}
}

// substituteName joins a parametrized Name's fragments with each
// parameter's bound value, producing plain literal text.
func substituteName(n name.Name, values map[string]string) string {
	var b strings.Builder
	for i, frag := range n.Fragments {
		b.WriteString(frag)
		if i < len(n.Params) {
			b.WriteString(values[n.Params[i]])
		}
	}
	return b.String()
}

func substituteText(text string, values map[string]string) string {
	if text == "" {
		return text
	}
	out := text
	for k, v := range values {
		out = strings.ReplaceAll(out, "$["+k+"]", v)
	}
	return out
}
