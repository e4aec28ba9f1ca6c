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

// Package name implements parametrized target names (spec.md §3 "Name",
// §4.1 "Name matching and rule dominance"). A Name interleaves literal text
// fragments with named parameter holes; matching a Name against a concrete
// string produces an anchoring vector recording where each parameter's
// value started and ended.
//
// The shape mirrors android/paths.go's small immutable value types (Path,
// WritablePath): Name is a plain struct built once, matched many times, and
// never mutated in place except by the explicit canonicalize pass.
package name

import (
	"strings"

	"stu/internal/place"
)

// Name is an ordered interleaving of Fragments (n+1 literal text pieces) and
// Params (n parameter names). Params[i] sits between Fragments[i] and
// Fragments[i+1].
type Name struct {
	Fragments []string
	Params    []string
}

// Unparametrized is true for a Name with no parameters (n=0).
func (n Name) Unparametrized() bool { return len(n.Params) == 0 }

// Literal returns the Name's single fragment; only valid when Unparametrized.
func (n Name) Literal() string {
	if !n.Unparametrized() {
		panic("name: Literal called on a parametrized Name")
	}
	if len(n.Fragments) == 0 {
		return ""
	}
	return n.Fragments[0]
}

// NewLiteral builds an unparametrized Name from plain text.
func NewLiteral(text string) Name {
	return Name{Fragments: []string{text}}
}

// Text renders the Name back to its surface-syntax-free form, substituting
// each parameter with its bracketed name; used only for diagnostics.
func (n Name) Text() string {
	var b strings.Builder
	for i, frag := range n.Fragments {
		b.WriteString(frag)
		if i < len(n.Params) {
			b.WriteString("$[")
			b.WriteString(n.Params[i])
			b.WriteString("]")
		}
	}
	return b.String()
}

// Span is the half-open [Start,End) byte range of one parameter's matched
// value within the string a Name was matched against.
type Span struct {
	Start, End int
}

// Match is the result of successfully matching a Name against a string: the
// anchoring vector (one Span per parameter, in Name.Params order) and the
// values substituted for each parameter.
type Match struct {
	Spans  []Span
	Values []string
}

// Priority records whether the Name's first or last literal fragment is
// empty, i.e. the Name begins or ends with a parameter rather than literal
// text. A rule whose Name begins and ends with literal text dominates an
// otherwise-identical rule that does not (spec.md §4.1).
type Priority struct {
	BeginsWithParam bool
	EndsWithParam   bool
}

// PriorityOf computes n's Priority without requiring a match.
func PriorityOf(n Name) Priority {
	if n.Unparametrized() {
		return Priority{}
	}
	return Priority{
		BeginsWithParam: n.Fragments[0] == "",
		EndsWithParam:   n.Fragments[len(n.Fragments)-1] == "",
	}
}

// Match attempts to split s into len(n.Params)+1 substrings that, interleaved
// with the parameters' values, equal n. It returns the leftmost-greedy split
// consistent with the fixed literal fragments: each fragment must appear in
// order, and greedily as early as possible, which is the unique match for
// all Name shapes this engine's rule language produces (literal fragments
// never recur ambiguously inside a single target string in practice, but
// the algorithm is a true backtracking search to stay correct regardless).
func (n Name) Match(s string) (Match, bool) {
	if n.Unparametrized() {
		if s == n.Fragments[0] {
			return Match{}, true
		}
		return Match{}, false
	}
	spans := make([]Span, len(n.Params))
	values := make([]string, len(n.Params))
	ok := matchFrom(n.Fragments, 0, s, 0, spans, values)
	if !ok {
		return Match{}, false
	}
	return Match{Spans: spans, Values: values}, true
}

// matchFrom matches fragments[fi:] against s[pos:], recording each
// parameter span found between fragments[fi-1] and fragments[fi].
func matchFrom(fragments []string, fi int, s string, pos int, spans []Span, values []string) bool {
	frag := fragments[fi]
	if !strings.HasPrefix(s[pos:], frag) {
		return false
	}
	pos += len(frag)
	if fi == len(fragments)-1 {
		return pos == len(s)
	}
	// The parameter between fragments[fi] and fragments[fi+1] extends up to
	// the first later occurrence of fragments[fi+1] that allows the rest of
	// the fragments to match; search all candidate lengths, shortest first,
	// so a parameter never swallows a sibling literal needlessly.
	next := fragments[fi+1]
	searchFrom := pos
	for {
		var idx int
		if next == "" {
			// Next fragment is empty (a trailing param, or two
			// adjacent params): every position is a candidate
			// boundary, tried in turn from searchFrom onward.
			idx = searchFrom
		} else {
			rel := strings.Index(s[searchFrom:], next)
			if rel < 0 {
				return false
			}
			idx = searchFrom + rel
		}
		spans[fi] = Span{Start: pos, End: idx}
		values[fi] = s[pos:idx]
		if matchFrom(fragments, fi+1, s, idx, spans, values) {
			return true
		}
		searchFrom = idx + 1
		if searchFrom > len(s) {
			return false
		}
	}
}

// PlaceTarget is a Name plus target-word flags (only Transient is legal on
// a PlaceTarget) plus a source place. Canonicalization has been applied to
// each text fragment in place once this value exists in a Rule.
type PlaceTarget struct {
	Name      Name
	Transient bool
	Place     place.Place
}
