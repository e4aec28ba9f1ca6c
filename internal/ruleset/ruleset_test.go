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
	"testing"

	"stu/internal/hashdep"
	"stu/internal/name"
	"stu/internal/place"
)

func literalRule(target string) *Rule {
	return &Rule{Targets: []name.PlaceTarget{{Name: name.NewLiteral(target)}}}
}

func paramRule(fragments []string, params []string) *Rule {
	return &Rule{
		Targets: []name.PlaceTarget{{Name: name.Name{Fragments: fragments, Params: params}}},
		Params:  params,
	}
}

func TestResolveExactMatch(t *testing.T) {
	rs := New()
	r := literalRule("main.o")
	if err := rs.Add(r); err != nil {
		t.Fatalf("Add: unexpected error: %v", err)
	}
	inst, err := rs.Resolve(hashdep.New(0, "main.o"), place.Place{})
	if err != nil {
		t.Fatalf("Resolve: unexpected error: %v", err)
	}
	if inst == nil || inst.Source != r {
		t.Fatalf("Resolve returned %+v, want instance of the added rule", inst)
	}
}

func TestResolveNoMatch(t *testing.T) {
	rs := New()
	if err := rs.Add(literalRule("a")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	inst, err := rs.Resolve(hashdep.New(0, "b"), place.Place{})
	if err != nil {
		t.Fatalf("Resolve: unexpected error: %v", err)
	}
	if inst != nil {
		t.Fatalf("Resolve found a match for an unrelated target: %+v", inst)
	}
}

func TestAddDuplicateUnparametrizedTarget(t *testing.T) {
	rs := New()
	if err := rs.Add(literalRule("a")); err != nil {
		t.Fatalf("first Add: unexpected error: %v", err)
	}
	if err := rs.Add(literalRule("a")); err == nil {
		t.Fatalf("second Add of the same target succeeded, want a duplicate-rule error")
	}
}

func TestResolveDominance(t *testing.T) {
	// Testable property 4: a rule whose match covers more of the target
	// string dominates a less specific one. "pre$X" covers target up to the
	// literal prefix only; "pre$X.o" additionally anchors a literal suffix,
	// so it dominates for any target matching both.
	rs := New()
	general := paramRule([]string{"pre", ""}, []string{"X"})
	specific := paramRule([]string{"pre", ".o"}, []string{"X"})
	if err := rs.Add(general); err != nil {
		t.Fatalf("Add(general): %v", err)
	}
	if err := rs.Add(specific); err != nil {
		t.Fatalf("Add(specific): %v", err)
	}

	inst, err := rs.Resolve(hashdep.New(0, "prefoo.o"), place.Place{})
	if err != nil {
		t.Fatalf("Resolve: unexpected error: %v", err)
	}
	if inst == nil || inst.Source != specific {
		t.Fatalf("Resolve picked %+v, want the more specific rule", inst)
	}
}

func TestResolveAmbiguousTie(t *testing.T) {
	rs := New()
	a := paramRule([]string{"", ".o"}, []string{"X"})
	b := paramRule([]string{"", ".o"}, []string{"Y"})
	if err := rs.Add(a); err != nil {
		t.Fatalf("Add(a): %v", err)
	}
	if err := rs.Add(b); err != nil {
		t.Fatalf("Add(b): %v", err)
	}
	if _, err := rs.Resolve(hashdep.New(0, "main.o"), place.Place{}); err == nil {
		t.Fatalf("Resolve of an ambiguous tie succeeded, want a logical error")
	}
}

func TestResolveSubstitutesParameters(t *testing.T) {
	rs := New()
	r := paramRule([]string{"", ".o"}, []string{"X"})
	if err := rs.Add(r); err != nil {
		t.Fatalf("Add: %v", err)
	}
	inst, err := rs.Resolve(hashdep.New(0, "main.o"), place.Place{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := inst.Params["X"]; got != "main" {
		t.Fatalf("Params[X] = %q, want %q", got, "main")
	}
	if got := inst.Instantiated.Targets[0].Name.Literal(); got != "main.o" {
		t.Fatalf("instantiated target = %q, want %q", got, "main.o")
	}
}
