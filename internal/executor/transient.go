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
	"stu/internal/ruleset"
)

// TransientExecutor drives a rule whose every target is transient and which
// has no command (spec.md §4.10): a pure pass-through that pushes each of
// the rule's own deps as a RESULT_COPY child and forwards whatever comes
// back up. It is cached for the life of the process, like FileExecutor.
type TransientExecutor struct {
	base *graph.Base

	Rule *ruleset.Instance
	conn graph.Connector
}

// NewTransientExecutor builds a TransientExecutor for inst and immediately
// connects every one of the rule's own dependencies.
func NewTransientExecutor(order graph.Order, inst *ruleset.Instance, conn graph.Connector) *TransientExecutor {
	te := &TransientExecutor{
		base: graph.NewBase(order),
		Rule: inst,
		conn: conn,
	}
	te.base.RuleIdentity = inst.Source
	var errs []*place.Error
	for _, d := range inst.Instantiated.Deps {
		for _, nd := range dep.Normalize(d, nil, &errs) {
			lf := nd.LinkFlags() | flags.ResultCopy
			edge := &graph.Edge{Dep: nd, Flags: lf}
			if p, ok := nd.(*dep.Plain); ok {
				edge.Placed = p.Placed
			}
			te.conn.Connect(te, nd, edge)
		}
	}
	for _, e := range errs {
		place.Print(e)
		te.base.Error |= e.Code
	}
	return te
}

func (te *TransientExecutor) Base() *graph.Base { return te.base }

// WantDelete is false: TransientExecutor is cached like FileExecutor.
func (te *TransientExecutor) WantDelete() bool { return false }

func (te *TransientExecutor) Execute(parent graph.Executor, edge *graph.Edge) graph.Proceed {
	return graph.DrainBuffer(te, te.base.A)
}

// NotifyResult forwards every child's result upward unconditionally, the
// pure pass-through spec.md §4.10 describes.
func (te *TransientExecutor) NotifyResult(child graph.Executor, edge *graph.Edge, result []dep.Dep) {
	te.base.PushResult(edge.Flags.Has(flags.Trivial), result)
}
