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

// Package ruleset holds the Rule type and the RuleSet index (spec.md §3
// "Rule"/"RuleSet", §4.3 "Rule resolution").
package ruleset

import (
	"stu/internal/canon"
	"stu/internal/dep"
	"stu/internal/name"
	"stu/internal/place"
)

// Command is a rule's shell command block, carrying its own place so
// diagnostics about a failing command point at the `{ ... }` token.
type Command struct {
	Text string
	At   place.Place
}

// Rule is a list of PlaceTargets (the rule's output multiset), a list of
// Dep (its prerequisites), an optional Command, optional input-file Name,
// the redirect-target index, and the hardcode/copy booleans.
type Rule struct {
	Targets []name.PlaceTarget
	Deps    []dep.Dep
	At      place.Place

	Command *Command // nil when the rule ends in ';', or is_hardcode/is_copy

	// InputFile is the name of the file from which input is read
	// (redirected with '<'); empty if there is no input redirection.
	// When IsCopy, it is the copy source and is never empty.
	InputFile name.Name

	// RedirectIndex is the index within Targets of the output-redirected
	// target, or -1 if none.
	RedirectIndex int

	IsHardcode bool
	IsCopy     bool

	// CopyOptionalSource is set when a copy rule's source was declared
	// with -o (e.g. "A = -o SRC ;"): spec.md §4.6 step 11's "optional
	// copy source missing" check only applies to such rules.
	CopyOptionalSource bool

	// HardcodeContent holds the literal file content for a `= { ... }`
	// rule; valid only when IsHardcode.
	HardcodeContent string

	// Params is the rule's declared parameter set (from its targets' Names).
	// Every target of one rule shares this same parameter set.
	Params []string
}

// IsParametrized reports whether the rule's targets carry parameters.
func (r *Rule) IsParametrized() bool {
	return len(r.Params) > 0
}

// Canonicalize applies canon.Fragment to every literal fragment of every
// target Name and of InputFile, in place, per spec.md "Canonicalization is
// applied to every rule on insertion."
func (r *Rule) Canonicalize() {
	for i := range r.Targets {
		canonicalizeName(&r.Targets[i].Name)
	}
	canonicalizeName(&r.InputFile)
}

func canonicalizeName(n *name.Name) {
	for i := range n.Fragments {
		var f canon.Flags
		if i == 0 {
			f |= canon.Begin
		}
		if i == len(n.Fragments)-1 {
			f |= canon.End
		}
		n.Fragments[i] = canon.Fragment(f, n.Fragments[i])
	}
}

// Instance is the result of successfully resolving a target against a
// RuleSet: the instantiated (parameter-substituted) Rule, the original
// parametrized Rule (kept for rule-level cycle identity, spec.md §4.5), and
// the parameter assignment that produced it.
type Instance struct {
	Instantiated *Rule
	Source       *Rule
	Params       map[string]string
}
