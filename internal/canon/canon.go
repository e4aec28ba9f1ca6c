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

// Package canon implements the in-place '/'/'.' folding applied to every
// target name fragment (spec.md §4.12). Unlike android/paths.go's
// filepath.Clean-based cleaning, this folding must never resolve symlinks
// or collapse "..", and must preserve the POSIX leading "//" exception even
// inside a parameter fragment that abuts the name's start — a property
// plain path/filepath cannot express, so this package is hand-written
// against spec.md rather than delegating to the standard library.
package canon

import "strings"

// Flags describes whether the fragment being canonicalized abuts the start
// or end of the full (possibly parametrized) Name it belongs to. Only the
// first fragment of a Name can carry Begin, and only the last can carry End.
type Flags int

const (
	// Begin marks a fragment that abuts the Name's start.
	Begin Flags = 1 << iota
	// End marks a fragment that abuts the Name's end.
	End
)

// Fragment canonicalizes one literal text fragment of a Name in place,
// given whether it abuts the Name's start/end. It performs zero system
// calls, never resolves symlinks, and never folds "..".
func Fragment(f Flags, s string) string {
	s = foldSlashes(f, s)
	s = foldDots(f, s)
	return s
}

// foldSlashes collapses runs of '/' to a single '/', preserving a leading
// "//" (POSIX semantics), and strips a trailing '/' unless the whole
// fragment is slashes.
func foldSlashes(f Flags, s string) string {
	if s == "" {
		return s
	}

	var lead string
	rest := s
	if f&Begin != 0 {
		n := 0
		for n < len(s) && s[n] == '/' {
			n++
		}
		switch {
		case n == 2 && (len(s) == 2 || s[2] != '/'):
			// Exactly a leading "//" not followed by more slashes:
			// preserve both, per POSIX.
			lead = "//"
			rest = s[2:]
		case n > 0:
			lead = "/"
			rest = s[n:]
		}
	}

	var b strings.Builder
	b.WriteString(lead)
	prevSlash := false
	allSlashes := lead != "" && rest == ""
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
			b.WriteByte('/')
			continue
		}
		prevSlash = false
		b.WriteByte(c)
	}
	out := b.String()

	if allSlashes {
		return out
	}
	// Strip a trailing '/' only when this fragment abuts the name's end and
	// is not made entirely of slashes (an interior fragment's trailing '/' is
	// real text preceding a parameter, not the name's end).
	if f&End != 0 && len(out) > 0 && out[len(out)-1] == '/' && !isAllSlashes(out) {
		out = out[:len(out)-1]
	}
	return out
}

func isAllSlashes(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '/' {
			return false
		}
	}
	return s != ""
}

// foldDots folds "/./" to "/", drops a leading "./" (unless Begin is unset,
// i.e. a parameter precedes this fragment so "./" is real text), and drops
// a trailing "/." (unless End is unset). A lone "." is kept.
func foldDots(f Flags, s string) string {
	if s == "." {
		return s
	}

	if f&Begin != 0 {
		for strings.HasPrefix(s, "./") {
			s = s[2:]
		}
	}

	s = strings.ReplaceAll(s, "/./", "/")

	if f&End != 0 && strings.HasSuffix(s, "/.") && s != "." {
		s = s[:len(s)-2]
		if s == "" {
			s = "."
		}
	}

	return s
}
