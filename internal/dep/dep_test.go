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

package dep

import (
	"testing"

	"stu/internal/flags"
	"stu/internal/name"
	"stu/internal/place"
)

func plain(text string) *Plain {
	return &Plain{Target: name.PlaceTarget{Name: name.NewLiteral(text)}}
}

func normalizeHelper(t *testing.T, d Dep) []Dep {
	t.Helper()
	var errs []*place.Error
	out := Normalize(d, nil, &errs)
	for _, e := range errs {
		t.Fatalf("Normalize produced unexpected error: %v", e)
	}
	return out
}

func TestNormalizePlainPassesThrough(t *testing.T) {
	p := plain("a.c")
	out := normalizeHelper(t, p)
	if len(out) != 1 || out[0] != Dep(p) {
		t.Fatalf("Normalize(plain) = %v, want [plain]", out)
	}
	if !IsNormalized(out[0]) {
		t.Fatalf("expected normalized result to report IsNormalized")
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	// Testable property 1: normalizing an already-normalized Dep again
	// yields the same number of results, each still normalized.
	tests := []struct {
		name string
		d    Dep
	}{
		{"plain", plain("a.c")},
		{"dynamic", &Dynamic{Inner: plain("a.c")}},
		{"concat", &Concat{Children: []Dep{plain("a"), plain("b"), plain("c")}}},
		{"nested dynamic", &Dynamic{Inner: &Dynamic{Inner: plain("a.list")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := normalizeHelper(t, tt.d)
			var twice []Dep
			for _, d := range once {
				twice = append(twice, normalizeHelper(t, d)...)
			}
			if len(once) != len(twice) {
				t.Fatalf("normalizing twice changed the result count: %d vs %d", len(once), len(twice))
			}
			for _, d := range once {
				if !IsNormalized(d) {
					t.Fatalf("Normalize produced a non-normalized Dep %T", d)
				}
			}
		})
	}
}

func TestNormalizeConcatDistributes(t *testing.T) {
	// Testable property 2: concatenation distributes. Concat(a, b) where a
	// and b are each single Plain deps reduces to one combined Plain whose
	// name is the text-concatenation of the two.
	a := plain("foo")
	b := plain("bar")
	c := &Concat{Children: []Dep{a, b}}

	out := normalizeHelper(t, c)
	if len(out) != 1 {
		t.Fatalf("Normalize(Concat(foo,bar)) produced %d deps, want 1", len(out))
	}
	got, ok := out[0].(*Plain)
	if !ok {
		t.Fatalf("Normalize(Concat(foo,bar))[0] = %T, want *Plain", out[0])
	}
	if got.Target.Name.Literal() != "foobar" {
		t.Fatalf("concatenated name = %q, want %q", got.Target.Name.Literal(), "foobar")
	}
}

func TestConcatenateForbiddenCombinations(t *testing.T) {
	redirected := &Plain{Target: name.PlaceTarget{Name: name.NewLiteral("in")}, Flags: flags.InputRedirect}
	placedRight := &Plain{Target: name.PlaceTarget{Name: name.NewLiteral("b")}, Flags: flags.Optional}
	transientRight := &Plain{Target: name.PlaceTarget{Name: name.NewLiteral("b"), Transient: true}, Flags: flags.Transient}
	variableLeft := &Plain{Target: name.PlaceTarget{Name: name.NewLiteral("a")}, Flags: flags.Variable, VariableName: "a"}
	variableRight := &Plain{Target: name.PlaceTarget{Name: name.NewLiteral("b")}, Flags: flags.Variable, VariableName: "b"}

	tests := []struct {
		name string
		a, b Dep
	}{
		{"left input redirect", redirected, plain("b")},
		{"right input redirect", plain("a"), redirected},
		{"right placed", plain("a"), placedRight},
		{"right transient", plain("a"), transientRight},
		{"left variable", variableLeft, plain("b")},
		{"right variable", plain("a"), variableRight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Concatenate(tt.a, tt.b); err == nil {
				t.Fatalf("Concatenate(%s) = nil error, want a rejection", tt.name)
			}
		})
	}
}

func TestConcatenatePlainJoinsText(t *testing.T) {
	d, err := Concatenate(plain("foo"), plain("bar"))
	if err != nil {
		t.Fatalf("Concatenate: unexpected error: %v", err)
	}
	p, ok := d.(*Plain)
	if !ok {
		t.Fatalf("Concatenate(plain, plain) = %T, want *Plain", d)
	}
	if p.Target.Name.Literal() != "foobar" {
		t.Fatalf("joined name = %q, want %q", p.Target.Name.Literal(), "foobar")
	}
}

func TestIsNormalizedRejectsNestedConcat(t *testing.T) {
	inner := &Concat{Children: []Dep{plain("a"), plain("b")}}
	outer := &Concat{Children: []Dep{inner, plain("c")}}
	if IsNormalized(outer) {
		t.Fatalf("IsNormalized(Concat containing Concat) = true, want false")
	}
}
