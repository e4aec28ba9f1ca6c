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

package hashdep

import (
	"testing"

	"stu/internal/flags"
)

func TestNewAndKeyDistinguishesFlags(t *testing.T) {
	plain := New(0, "a.o")
	transient := New(flags.Transient, "a.o")
	if plain.Key() == transient.Key() {
		t.Fatalf("plain and transient HashDeps of the same text collided")
	}
}

func TestKeyDistinguishesText(t *testing.T) {
	a := New(0, "a.o")
	b := New(0, "b.o")
	if a.Key() == b.Key() {
		t.Fatalf("distinct texts collided on the same key")
	}
}

func TestWrapAddsOuterWord(t *testing.T) {
	inner := New(flags.Transient, "list.txt")
	outer := Wrap(flags.Dynamic, inner)
	if len(outer.Words) != 2 {
		t.Fatalf("Wrap produced %d words, want 2", len(outer.Words))
	}
	if outer.Text != inner.Text {
		t.Fatalf("Wrap changed Text: got %q, want %q", outer.Text, inner.Text)
	}
	if !outer.IsDynamic() {
		t.Fatalf("expected outer.IsDynamic() after Wrap(flags.Dynamic, ...)")
	}
	if !outer.IsTransient() {
		t.Fatalf("expected outer.IsTransient() to reflect the innermost word")
	}
}

func TestStripLinksClearsOnlyLinkBits(t *testing.T) {
	h := New(flags.Transient|flags.ResultCopy, "a")
	stripped := h.StripLinks()
	if !stripped.BaseFlags().Has(flags.Transient) {
		t.Fatalf("StripLinks cleared a non-link bit")
	}
	if stripped.BaseFlags().Has(flags.ResultCopy) {
		t.Fatalf("StripLinks left a link bit set")
	}
}

func TestEqualIsBytewise(t *testing.T) {
	a := New(flags.Transient, "x")
	b := New(flags.Transient, "x")
	if !a.Equal(b) {
		t.Fatalf("expected two identically-built HashDeps to be Equal")
	}
	c := New(0, "x")
	if a.Equal(c) {
		t.Fatalf("expected HashDeps with different flags to differ")
	}
}
