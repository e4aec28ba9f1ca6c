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

package executor

import "stu/internal/flags"

// Done encodes which of a FileExecutor's four build outcomes have been
// satisfied (spec.md §4.6): the non-persistent and non-optional aspects,
// each tracked separately for trivial and non-trivial requests, since a
// trivial dependency's rebuild decision is deferred independently of a
// non-trivial one's.
type Done uint8

const (
	NonpersistentTrivial Done = 1 << iota
	NonoptionalTrivial
	NonpersistentNontrivial
	NonoptionalNontrivial

	DoneAll         = NonpersistentTrivial | NonoptionalTrivial | NonpersistentNontrivial | NonoptionalNontrivial
	DoneAllOptional = NonpersistentTrivial | NonpersistentNontrivial
)

// IsAll reports whether every outcome bit is set.
func (d Done) IsAll() bool { return d&DoneAll == DoneAll }

// Request computes which outcome bits a given edge's flags ask for: the
// trivial pair if the edge is trivial, the non-trivial pair otherwise, and
// only the non-persistent (resp. non-optional) half when the edge does not
// already carry -p (resp. -o).
func Request(f flags.Flags) Done {
	var need Done
	trivial := f.Has(flags.Trivial)
	if !f.Has(flags.Persistent) {
		if trivial {
			need |= NonpersistentTrivial
		} else {
			need |= NonpersistentNontrivial
		}
	}
	if !f.Has(flags.Optional) {
		if trivial {
			need |= NonoptionalTrivial
		} else {
			need |= NonoptionalNontrivial
		}
	}
	return need
}

// Satisfies reports whether d already covers every bit req asks for.
func (d Done) Satisfies(req Done) bool { return d&req == req }
