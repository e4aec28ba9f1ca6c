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

import (
	"stu/internal/dep"
	"stu/internal/flags"
	"stu/internal/graph"
	"stu/internal/place"
)

// RootExecutor is the synthetic sink of the executor DAG: one instance per
// build, parent of every command-line target request (spec.md §4.4 "The
// executor graph is a DAG whose unique sink is the Root").
type RootExecutor struct {
	base *graph.Base
	conn graph.Connector
}

// NewRootExecutor returns an empty RootExecutor ready to have targets
// requested against it via RequestTarget.
func NewRootExecutor(order graph.Order, conn graph.Connector) *RootExecutor {
	return &RootExecutor{base: graph.NewBase(order), conn: conn}
}

func (re *RootExecutor) Base() *graph.Base { return re.base }

// WantDelete is true: spec.md lists Root among the variants deleted on
// disconnect, though in practice exactly one Root exists for the process's
// whole lifetime and it is never itself a child.
func (re *RootExecutor) WantDelete() bool { return true }

// RequestTarget connects a single command-line requested dependency to the
// root, with the given link flags (e.g. nothing special for an ordinary
// target, ResultCopy is meaningless at the root since nothing reads its
// result further).
func (re *RootExecutor) RequestTarget(d dep.Dep, f flags.Flags) *place.Error {
	edge := &graph.Edge{Dep: d, Flags: d.LinkFlags() | f}
	if p, ok := d.(*dep.Plain); ok {
		edge.Placed = p.Placed
	}
	_, err := re.conn.Connect(re, d, edge)
	return err
}

// Execute drains every outstanding top-level request; the main loop calls
// this in a loop until it reports Finished.
func (re *RootExecutor) Execute(parent graph.Executor, edge *graph.Edge) graph.Proceed {
	p := graph.DrainBuffer(re, re.base.A)
	if p.Wait || p.Abort {
		return p
	}
	return graph.DrainBuffer(re, re.base.B)
}

// NotifyResult drops results: nothing above the Root ever reads them.
func (re *RootExecutor) NotifyResult(child graph.Executor, edge *graph.Edge, result []dep.Dep) {
}
