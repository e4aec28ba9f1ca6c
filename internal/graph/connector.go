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

package graph

import (
	"stu/internal/dep"
	"stu/internal/place"
)

// Connector is implemented by the engine package's Context. It lets an
// executor variant ask for the (possibly freshly-constructed) child
// executor for a Dep without the executor package needing to import the
// engine package that owns the cache, avoiding an import cycle: engine
// imports executor to build new FileExecutor/TransientExecutor values on a
// cache miss, so executor cannot import engine back.
type Connector interface {
	// Connect implements get_executor (spec.md §4.4): construct or look up
	// the child executor for d, run the cycle finder if this is a new edge
	// to an existing cached node, and call the child's Execute to make
	// initial progress. It returns the child executor, or a logical error if
	// connecting would close a cycle.
	Connect(parent Executor, d dep.Dep, edge *Edge) (Executor, *place.Error)

	// Lookup returns the cached executor for a non-dynamic Plain target
	// name, if one has already been built this run. FileExecutor uses this
	// to inspect a copy rule's source executor for spec.md §4.6 step 11's
	// "optional copy source missing" check.
	Lookup(transient bool, text string) (Executor, bool)
}
