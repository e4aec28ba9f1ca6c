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

package parser

import (
	"testing"

	"stu/internal/dep"
	"stu/internal/flags"
)

func TestParseSimpleRule(t *testing.T) {
	rules, err := Parse(`a: b c { cmd }`, "test")
	if err != nil {
		t.Fatalf("Parse: unexpected error: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(rules))
	}
	r := rules[0]
	if got := r.Targets[0].Name.Literal(); got != "a" {
		t.Fatalf("target = %q, want %q", got, "a")
	}
	if len(r.Deps) != 2 {
		t.Fatalf("got %d deps, want 2", len(r.Deps))
	}
	if r.Command == nil || r.Command.Text != " cmd " {
		t.Fatalf("Command = %+v, want text %q", r.Command, " cmd ")
	}
}

func TestParseRuleWithNoCommand(t *testing.T) {
	rules, err := Parse(`a: b;`, "test")
	if err != nil {
		t.Fatalf("Parse: unexpected error: %v", err)
	}
	if rules[0].Command != nil {
		t.Fatalf("Command = %+v, want nil", rules[0].Command)
	}
}

func TestParseTransientTarget(t *testing.T) {
	rules, err := Parse(`@all: b { cmd }`, "test")
	if err != nil {
		t.Fatalf("Parse: unexpected error: %v", err)
	}
	if !rules[0].Targets[0].Transient {
		t.Fatalf("expected @all's target to be marked transient")
	}
}

func TestParseOutputRedirectTarget(t *testing.T) {
	rules, err := Parse(`>out in { cmd }`, "test")
	if err != nil {
		t.Fatalf("Parse: unexpected error: %v", err)
	}
	if rules[0].RedirectIndex != 0 {
		t.Fatalf("RedirectIndex = %d, want 0", rules[0].RedirectIndex)
	}
}

func TestParseInputRedirectDep(t *testing.T) {
	rules, err := Parse(`a: <in { cmd }`, "test")
	if err != nil {
		t.Fatalf("Parse: unexpected error: %v", err)
	}
	if rules[0].InputFile.Fragments == nil {
		t.Fatalf("InputFile was not bound from the '<' dependency")
	}
	if got := rules[0].InputFile.Literal(); got != "in" {
		t.Fatalf("InputFile = %q, want %q", got, "in")
	}
}

func TestParseParametrizedTarget(t *testing.T) {
	rules, err := Parse(`file$X.o: file$X.c { cc }`, "test")
	if err != nil {
		t.Fatalf("Parse: unexpected error: %v", err)
	}
	r := rules[0]
	if len(r.Params) != 1 || r.Params[0] != "X" {
		t.Fatalf("Params = %v, want [X]", r.Params)
	}
	p, ok := r.Deps[0].(*dep.Plain)
	if !ok {
		t.Fatalf("dep[0] = %T, want *dep.Plain", r.Deps[0])
	}
	if len(p.Target.Name.Params) != 1 || p.Target.Name.Params[0] != "X" {
		t.Fatalf("dep target params = %v, want [X]", p.Target.Name.Params)
	}
}

func TestParseDynamicDependency(t *testing.T) {
	rules, err := Parse(`a: [list.txt] { cmd }`, "test")
	if err != nil {
		t.Fatalf("Parse: unexpected error: %v", err)
	}
	d, ok := rules[0].Deps[0].(*dep.Dynamic)
	if !ok {
		t.Fatalf("dep[0] = %T, want *dep.Dynamic", rules[0].Deps[0])
	}
	inner, ok := d.Inner.(*dep.Plain)
	if !ok || inner.Target.Name.Literal() != "list.txt" {
		t.Fatalf("Dynamic.Inner = %+v, want a Plain naming list.txt", d.Inner)
	}
}

func TestParseGroupWithMultipleDeps(t *testing.T) {
	rules, err := Parse(`a: (b c) { cmd }`, "test")
	if err != nil {
		t.Fatalf("Parse: unexpected error: %v", err)
	}
	c, ok := rules[0].Deps[0].(*dep.Compound)
	if !ok {
		t.Fatalf("dep[0] = %T, want *dep.Compound", rules[0].Deps[0])
	}
	if len(c.Children) != 2 {
		t.Fatalf("Compound has %d children, want 2", len(c.Children))
	}
}

func TestParseEmptyGroupIsEmptyCompound(t *testing.T) {
	rules, err := Parse(`a: () { cmd }`, "test")
	if err != nil {
		t.Fatalf("Parse: unexpected error: %v", err)
	}
	c, ok := rules[0].Deps[0].(*dep.Compound)
	if !ok {
		t.Fatalf("dep[0] = %T, want an empty *dep.Compound", rules[0].Deps[0])
	}
	if len(c.Children) != 0 {
		t.Fatalf("Compound has %d children, want 0", len(c.Children))
	}
}

func TestParseVariableInclusion(t *testing.T) {
	rules, err := Parse(`a: $[FOO] { cmd }`, "test")
	if err != nil {
		t.Fatalf("Parse: unexpected error: %v", err)
	}
	p, ok := rules[0].Deps[0].(*dep.Plain)
	if !ok {
		t.Fatalf("dep[0] = %T, want *dep.Plain", rules[0].Deps[0])
	}
	if !p.Flags.Has(flags.Variable) {
		t.Fatalf("expected the Variable flag on a $[...] dependency")
	}
	if p.VariableName != "FOO" {
		t.Fatalf("VariableName = %q, want %q", p.VariableName, "FOO")
	}
}

func TestParseConcatenationByAdjacency(t *testing.T) {
	rules, err := Parse(`a: (x)(y) { cmd }`, "test")
	if err != nil {
		t.Fatalf("Parse: unexpected error: %v", err)
	}
	c, ok := rules[0].Deps[0].(*dep.Concat)
	if !ok {
		t.Fatalf("dep[0] = %T, want *dep.Concat", rules[0].Deps[0])
	}
	if len(c.Children) != 2 {
		t.Fatalf("Concat has %d children, want 2", len(c.Children))
	}
}

func TestParsePrefixFlags(t *testing.T) {
	rules, err := Parse(`a: !persist ?optional &trivial { cmd }`, "test")
	if err != nil {
		t.Fatalf("Parse: unexpected error: %v", err)
	}
	wantFlags := []flags.Flags{flags.Persistent, flags.Optional, flags.Trivial}
	for i, want := range wantFlags {
		p, ok := rules[0].Deps[i].(*dep.Plain)
		if !ok {
			t.Fatalf("dep[%d] = %T, want *dep.Plain", i, rules[0].Deps[i])
		}
		if !p.Flags.Has(want) {
			t.Fatalf("dep[%d].Flags = %v, want to have %v set", i, p.Flags, want)
		}
	}
}

func TestParseFlagsRejectedOnGroup(t *testing.T) {
	_, err := Parse(`a: !(b c) { cmd }`, "test")
	if err == nil {
		t.Fatalf("Parse succeeded for a flag applied directly to a group, want an error")
	}
}

func TestParseCopyRule(t *testing.T) {
	rules, err := Parse(`a = b;`, "test")
	if err != nil {
		t.Fatalf("Parse: unexpected error: %v", err)
	}
	r := rules[0]
	if !r.IsCopy {
		t.Fatalf("expected IsCopy on a copy rule")
	}
	if got := r.InputFile.Literal(); got != "b" {
		t.Fatalf("InputFile = %q, want %q", got, "b")
	}
	if r.CopyOptionalSource {
		t.Fatalf("expected CopyOptionalSource false without -o")
	}
}

func TestParseCopyRuleWithOptionalSource(t *testing.T) {
	rules, err := Parse(`a = -o b;`, "test")
	if err != nil {
		t.Fatalf("Parse: unexpected error: %v", err)
	}
	if !rules[0].CopyOptionalSource {
		t.Fatalf("expected CopyOptionalSource true with -o")
	}
}

func TestParseHardcodeRule(t *testing.T) {
	rules, err := Parse(`a = { some content here };`, "test")
	if err != nil {
		t.Fatalf("Parse: unexpected error: %v", err)
	}
	r := rules[0]
	if !r.IsHardcode {
		t.Fatalf("expected IsHardcode on a hardcode rule")
	}
	if r.HardcodeContent != " some content here " {
		t.Fatalf("HardcodeContent = %q, want %q", r.HardcodeContent, " some content here ")
	}
}

func TestParseHardcodeRuleNestedBraces(t *testing.T) {
	rules, err := Parse(`a = { if true { x } };`, "test")
	if err != nil {
		t.Fatalf("Parse: unexpected error: %v", err)
	}
	if got := rules[0].HardcodeContent; got != " if true { x } " {
		t.Fatalf("HardcodeContent = %q, want %q", got, " if true { x } ")
	}
}

func TestParseMultipleRulesAndComments(t *testing.T) {
	text := `
# a comment
a: b { cmd1 }
c: d { cmd2 }
`
	rules, err := Parse(text, "test")
	if err != nil {
		t.Fatalf("Parse: unexpected error: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
}

func TestParseMissingSemicolonIsError(t *testing.T) {
	if _, err := Parse(`a: b`, "test"); err == nil {
		t.Fatalf("Parse succeeded without a terminating ';', want an error")
	}
}

func TestParseTargetArgPlain(t *testing.T) {
	d, err := ParseTargetArg("main.o")
	if err != nil {
		t.Fatalf("ParseTargetArg: unexpected error: %v", err)
	}
	p, ok := d.(*dep.Plain)
	if !ok {
		t.Fatalf("ParseTargetArg = %T, want *dep.Plain", d)
	}
	if got := p.Target.Name.Literal(); got != "main.o" {
		t.Fatalf("target = %q, want %q", got, "main.o")
	}
}

func TestParseTargetArgRejectsTrailingText(t *testing.T) {
	if _, err := ParseTargetArg("a b"); err == nil {
		t.Fatalf("ParseTargetArg succeeded on trailing text, want an error")
	}
}

func TestParseTargetArgRejectsEmpty(t *testing.T) {
	if _, err := ParseTargetArg("   "); err == nil {
		t.Fatalf("ParseTargetArg succeeded on an empty argument, want an error")
	}
}
