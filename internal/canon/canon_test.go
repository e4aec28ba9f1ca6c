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

package canon

import "testing"

func TestFragmentWholeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapse slashes", "a//b///c", "a/b/c"},
		{"leading double slash preserved", "//a/b", "//a/b"},
		{"leading triple slash folds", "///a/b", "/a/b"},
		{"trailing slash stripped", "a/b/", "a/b"},
		{"leading dot-slash stripped", "./a/b", "a/b"},
		{"interior dot-slash folds", "a/./b", "a/b"},
		{"trailing slash-dot stripped", "a/b/.", "a/b"},
		{"lone dot kept", ".", "."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fragment(Begin|End, tt.in); got != tt.want {
				t.Fatalf("Fragment(Begin|End, %q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFragmentIdempotent(t *testing.T) {
	// Testable property 3: canonicalization is idempotent.
	inputs := []string{"a//b///c", "//a/b", "///a/b", "a/b/", "./a/b", "a/./b", "a/b/.", ".", "a/b"}
	for _, in := range inputs {
		once := Fragment(Begin|End, in)
		twice := Fragment(Begin|End, once)
		if once != twice {
			t.Errorf("Fragment not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestFragmentInteriorDoesNotStripBoundaries(t *testing.T) {
	// An interior fragment (no Begin, no End) keeps a trailing slash and a
	// leading "./", since real text may follow or precede a parameter there.
	if got := Fragment(0, "a/b/"); got != "a/b/" {
		t.Fatalf("interior fragment trailing slash stripped: got %q", got)
	}
	if got := Fragment(0, "./a"); got != "./a" {
		t.Fatalf("interior fragment leading dot-slash stripped: got %q", got)
	}
}

func TestFragmentEmpty(t *testing.T) {
	if got := Fragment(Begin|End, ""); got != "" {
		t.Fatalf("Fragment(Begin|End, \"\") = %q, want empty", got)
	}
}
