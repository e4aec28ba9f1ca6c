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

package name

import (
	"reflect"
	"testing"
)

func TestMatchUnparametrized(t *testing.T) {
	n := NewLiteral("foo.c")
	if _, ok := n.Match("foo.c"); !ok {
		t.Fatalf("expected literal name to match itself")
	}
	if _, ok := n.Match("foo.cc"); ok {
		t.Fatalf("expected literal name not to match a different string")
	}
}

func TestMatchSingleParam(t *testing.T) {
	// "$X.o" matching "main.o" anchors X to "main".
	n := Name{Fragments: []string{"", ".o"}, Params: []string{"X"}}
	m, ok := n.Match("main.o")
	if !ok {
		t.Fatalf("expected match")
	}
	want := Match{Spans: []Span{{Start: 0, End: 4}}, Values: []string{"main"}}
	if !reflect.DeepEqual(m, want) {
		t.Fatalf("Match = %+v, want %+v", m, want)
	}
}

func TestMatchMiddleParam(t *testing.T) {
	// "pre$X.post" matching "preMIDDLE.post" anchors X to "MIDDLE".
	n := Name{Fragments: []string{"pre", ".post"}, Params: []string{"X"}}
	m, ok := n.Match("preMIDDLE.post")
	if !ok {
		t.Fatalf("expected match")
	}
	if len(m.Values) != 1 || m.Values[0] != "MIDDLE" {
		t.Fatalf("Values = %v, want [MIDDLE]", m.Values)
	}
	if m.Spans[0] != (Span{Start: 3, End: 9}) {
		t.Fatalf("Spans = %v, want [{3 9}]", m.Spans)
	}
}

func TestMatchTwoParams(t *testing.T) {
	n := Name{Fragments: []string{"", "/", ".o"}, Params: []string{"DIR", "FILE"}}
	m, ok := n.Match("src/main.o")
	if !ok {
		t.Fatalf("expected match")
	}
	want := []string{"src", "main"}
	if !reflect.DeepEqual(m.Values, want) {
		t.Fatalf("Values = %v, want %v", m.Values, want)
	}
}

func TestMatchFailsWhenLiteralMissing(t *testing.T) {
	n := Name{Fragments: []string{"pre", ".post"}, Params: []string{"X"}}
	if _, ok := n.Match("nopostfixhere"); ok {
		t.Fatalf("expected no match when the trailing fragment is absent")
	}
}

func TestPriorityOf(t *testing.T) {
	tests := []struct {
		name string
		n    Name
		want Priority
	}{
		{"unparametrized", NewLiteral("a"), Priority{}},
		{"begins with param", Name{Fragments: []string{"", ".o"}, Params: []string{"X"}}, Priority{BeginsWithParam: true}},
		{"ends with param", Name{Fragments: []string{"a.", ""}, Params: []string{"X"}}, Priority{EndsWithParam: true}},
		{"both", Name{Fragments: []string{"", ""}, Params: []string{"X"}}, Priority{BeginsWithParam: true, EndsWithParam: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PriorityOf(tt.n); got != tt.want {
				t.Fatalf("PriorityOf(%+v) = %+v, want %+v", tt.n, got, tt.want)
			}
		})
	}
}

func TestTextRendersParameters(t *testing.T) {
	n := Name{Fragments: []string{"pre", ".post"}, Params: []string{"X"}}
	if got, want := n.Text(), "pre$[X].post"; got != want {
		t.Fatalf("Text() = %q, want %q", got, want)
	}
}
