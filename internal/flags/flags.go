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

// Package flags defines the bitset carried on every dependency edge
// (spec.md §3 "Flags"). It mirrors the small explicit status/flag types the
// teacher favors (e.g. android/rule_builder.go's RemoteRuleSupports) rather
// than a pile of booleans.
package flags

// Flags is a bitset of at most ~12 bits, split into three subsets: placed,
// target-word, and link flags. They share one bitset type because a single
// Dep edge carries all three kinds at once, but each accessor below only
// ever looks at its own subset.
type Flags uint16

const (
	// Placed flags: each carries a source Place alongside its bit.
	Persistent Flags = 1 << iota // -p
	Optional                     // -o
	Trivial                      // -t

	// Target-word flags: identify the shape of the target; stored in the
	// flat HashDep encoding.
	Dynamic          // [ ... ]
	Transient        // @name
	Variable         // $[NAME]
	NewlineSeparated // dynamic file is newline-separated filenames
	NulSeparated     // dynamic file is nul-separated filenames
	Code             // dynamic file is hardcoded content (= { ... })

	// Link flags: attach to an edge, not to a target.
	InputRedirect // <
	ResultNotify  // child must hand over its raw discovered list
	ResultCopy    // child's accumulated result is copied to the parent
	PhaseB        // edge was asked for in the second scheduling phase
)

// placedMask is the subset of bits considered "placed" flags.
const placedMask = Persistent | Optional | Trivial

// targetWordMask is the subset of bits stored in a HashDep's per-word flags.
const targetWordMask = Dynamic | Transient | Variable | NewlineSeparated | NulSeparated | Code

// linkMask is the subset of bits that only make sense on an edge.
const linkMask = InputRedirect | ResultNotify | ResultCopy | PhaseB

// Has reports whether all bits in want are set in f.
func (f Flags) Has(want Flags) bool { return f&want == want }

// Any reports whether any bit in want is set in f.
func (f Flags) Any(want Flags) bool { return f&want != 0 }

// With returns f with the bits in add set.
func (f Flags) With(add Flags) Flags { return f | add }

// Without returns f with the bits in remove cleared.
func (f Flags) Without(remove Flags) Flags { return f &^ remove }

// Placed returns only the placed-flag bits of f.
func (f Flags) Placed() Flags { return f & placedMask }

// TargetWord returns only the target-word bits of f, as stored in a
// HashDep's per-word prefix.
func (f Flags) TargetWord() Flags { return f & targetWordMask }

// Link returns only the link-flag bits of f; these must be stripped before
// a Flags value is used as (part of) a cache key, per spec.md's HashDep
// definition ("with link-only flags stripped").
func (f Flags) Link() Flags { return f & linkMask }

// StripLink clears the link-flag bits, matching the HashDep cache-key rule.
func (f Flags) StripLink() Flags { return f &^ linkMask }

func (f Flags) String() string {
	names := []struct {
		bit  Flags
		name string
	}{
		{Persistent, "p"}, {Optional, "o"}, {Trivial, "t"},
		{Dynamic, "dyn"}, {Transient, "@"}, {Variable, "$"},
		{NewlineSeparated, "nl"}, {NulSeparated, "nul"}, {Code, "code"},
		{InputRedirect, "<"}, {ResultNotify, "notify"}, {ResultCopy, "copy"},
		{PhaseB, "B"},
	}
	out := ""
	for _, n := range names {
		if f.Has(n.bit) {
			if out != "" {
				out += "|"
			}
			out += n.name
		}
	}
	if out == "" {
		return "-"
	}
	return out
}
