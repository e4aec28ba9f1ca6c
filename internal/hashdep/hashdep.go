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

// Package hashdep implements the flat, hashable encoding of a (possibly
// dynamic) plain target used as an executor cache key (spec.md §3
// "HashDep"). Every dynamic wrapping contributes one prefix word carrying
// that level's target-word flags; the innermost word carries the base
// target's flags; the tail holds the name text. Equality is bytewise.
package hashdep

import (
	"strings"

	"stu/internal/flags"
)

// HashDep is the flat encoding. Words[0] is the outermost wrapping (the
// dynamic dep nearest the Root), Words[len-1] is the innermost (base)
// target. Text is the literal, fully-substituted name of the base target.
type HashDep struct {
	Words []flags.Flags
	Text  string
}

// New builds a HashDep for a non-dynamic base target: a single word.
func New(baseFlags flags.Flags, text string) HashDep {
	return HashDep{Words: []flags.Flags{baseFlags.TargetWord()}, Text: text}
}

// Wrap adds one outer Dynamic wrapping word in front of inner.
func Wrap(wrapperFlags flags.Flags, inner HashDep) HashDep {
	words := make([]flags.Flags, 0, len(inner.Words)+1)
	words = append(words, wrapperFlags.TargetWord())
	words = append(words, inner.Words...)
	return HashDep{Words: words, Text: inner.Text}
}

// Key returns a bytewise-unique string suitable for use as a Go map key.
// Link flags must already have been stripped by the caller (the cache key
// ignores them per spec.md's HashDep definition), and StripLinks below does
// exactly that.
func (h HashDep) Key() string {
	var b strings.Builder
	for _, w := range h.Words {
		b.WriteByte(byte(w))
		b.WriteByte(byte(w >> 8))
	}
	b.WriteByte(0)
	b.WriteString(h.Text)
	return b.String()
}

// StripLinks returns a copy of h with every word's link-flag bits cleared,
// matching "HashDep... is used as the cache key for executors (with
// link-only flags stripped)".
func (h HashDep) StripLinks() HashDep {
	words := make([]flags.Flags, len(h.Words))
	for i, w := range h.Words {
		words[i] = w.StripLink()
	}
	return HashDep{Words: words, Text: h.Text}
}

// IsDynamic reports whether the outermost word carries the Dynamic bit,
// i.e. this HashDep describes a dynamic dependency rather than a plain one.
func (h HashDep) IsDynamic() bool {
	return len(h.Words) > 0 && h.Words[0].Has(flags.Dynamic)
}

// IsTransient reports whether the innermost (base) word carries Transient.
func (h HashDep) IsTransient() bool {
	return len(h.Words) > 0 && h.Words[len(h.Words)-1].Has(flags.Transient)
}

// BaseFlags returns the innermost word, i.e. the base target's flags.
func (h HashDep) BaseFlags() flags.Flags {
	if len(h.Words) == 0 {
		return 0
	}
	return h.Words[len(h.Words)-1]
}

// Equal reports bytewise equality, per spec.md's "HashDep's equality is
// bytewise".
func (h HashDep) Equal(o HashDep) bool {
	return h.Key() == o.Key()
}
