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
	"stu/internal/flags"
)

// hasTimestampEffect reports whether a finished child's timestamp should
// propagate to its parent: only non-result-notify, non-persistent edges
// contribute (spec.md §4.4 "Result propagation").
func hasTimestampEffect(edge *Edge) bool {
	return !edge.Flags.Has(flags.ResultNotify) && edge.Placed.Persistent.IsEmpty()
}

// DrainBuffer repeatedly pops and executes children from buf until it is
// empty, one waits, or one aborts (spec.md §4.4 execute_phase_A/B). Every
// child that finishes is disconnected from parent before the next pop.
func DrainBuffer(parent Executor, buf *Buffer) Proceed {
	for {
		child, edge, ok := buf.Pop()
		if !ok {
			return Proceed{Finished: true}
		}
		p := child.Execute(parent, edge)
		if p.Abort {
			buf.Push(child, edge)
			return Proceed{Abort: true}
		}
		if p.Wait {
			buf.Push(child, edge)
			return Proceed{Wait: true, CallAgain: p.CallAgain}
		}
		Disconnect(parent, child, edge)
	}
}

// Disconnect folds a finished child's result, timestamp, variables, and
// error bits into parent, then removes the edge (spec.md §4.4
// "Disconnect"). It does not evict the child from any process-wide cache;
// that decision (WantDelete) is left to the caller, which owns the cache.
func Disconnect(parent Executor, child Executor, edge *Edge) {
	pb := parent.Base()
	cb := child.Base()

	switch {
	case edge.Flags.Has(flags.ResultCopy):
		parent.NotifyResult(child, edge, append(append([]dep.Dep(nil), cb.Result[0]...), cb.Result[1]...))
	case edge.Flags.Has(flags.ResultNotify):
		parent.NotifyResult(child, edge, append(append([]dep.Dep(nil), cb.Result[0]...), cb.Result[1]...))
	}

	if cb.HasTimestamp && hasTimestampEffect(edge) {
		pb.PropagateTimestamp(cb.LatestTimestamp)
	}

	pb.PropagateVariables(cb.Variables)
	pb.Error |= cb.Error
	if cb.State.Has(NeedBuild) && !edge.Flags.Has(flags.ResultNotify) {
		pb.State |= NeedBuild
	}
	pb.RemoveChild(child)
}
