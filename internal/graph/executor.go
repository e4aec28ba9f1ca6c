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

// Package graph holds the executor-graph core shared by every executor
// variant (spec.md §3 "Executor", §4.4 "Executor graph core"): the base
// state every executor carries, the two-phase A/B scheduling buffers, and
// the rule-level cycle finder.
//
// The shape follows android/module.go's Module/ModuleBase split: an
// Executor interface implemented by every variant, each of which embeds
// *Base for the state and bookkeeping every variant shares.
package graph

import (
	"time"

	"stu/internal/dep"
	"stu/internal/flags"
	"stu/internal/place"
	"stu/internal/ruleset"
)

// State is the bitset of per-executor flags from spec.md §3.
type State int

const (
	NeedBuild State = 1 << iota
	Checked
	Existing
	Missing
)

func (s State) Has(bit State) bool { return s&bit != 0 }

// Edge is the incoming-edge record stored as a parent's value for one
// child: the Dep describing the edge, accumulated link flags/places from
// every request that reached this child (unioned on a cache hit, spec.md
// §4.4), and whether the edge has been asked for in the second scheduling
// phase.
type Edge struct {
	Dep    dep.Dep
	Flags  flags.Flags
	Placed dep.Placed
	PhaseB bool
}

// Union merges another edge's flags/places into e, as happens when a
// second request reaches an already-connected child.
func (e *Edge) Union(add flags.Flags, placed dep.Placed) {
	e.Flags |= add
	unionPlace(&e.Placed.Persistent, placed.Persistent)
	unionPlace(&e.Placed.Optional, placed.Optional)
	unionPlace(&e.Placed.Trivial, placed.Trivial)
}

func unionPlace(dst *place.Place, src place.Place) {
	if dst.IsEmpty() && !src.IsEmpty() {
		*dst = src
	}
}

// Proceed is the small struct of independent facts returned by an
// executor's Execute, replacing the bitset of the same name from the
// original source per spec.md §9's own design note.
type Proceed struct {
	Wait      bool
	CallAgain bool
	Finished  bool
	Abort     bool
}

// Executor is implemented by every executor variant (File, Dynamic,
// Concat, Transient, Root).
type Executor interface {
	Base() *Base
	// Execute advances this executor by one step, per spec.md §4.4's
	// two-phase scheduling. parent is nil only for the Root executor's own
	// top-level drive from the main loop.
	Execute(parent Executor, edge *Edge) Proceed
	// WantDelete reports whether this executor is deleted from its parent
	// on disconnect (true for Concat, non-plain Dynamic, and Root; false
	// for File, Transient, and plain Dynamic, which are cached for the
	// life of the process).
	WantDelete() bool
	// NotifyResult delivers a child's discovered/result dep list upward,
	// per spec.md §4.7/§4.9's notify_result / push_result.
	NotifyResult(child Executor, edge *Edge, result []dep.Dep)
}

// Base is the state every executor carries (spec.md §3 "Executor").
type Base struct {
	State State
	Error place.Code

	Parents map[Executor]*Edge
	Child   map[Executor]bool

	LatestTimestamp time.Time
	HasTimestamp    bool

	// Result is indexed by the trivial bit (0 = non-trivial result list, 1
	// = trivial result list), matching "two result vectors indexed by the
	// trivial bit".
	Result [2][]dep.Dep

	Variables map[string]string

	// RuleIdentity and DynamicDepth together identify this executor for
	// rule-level cycle detection (spec.md §4.5): two executors sharing both
	// are the same cycle identity.
	RuleIdentity *ruleset.Rule
	DynamicDepth int

	A *Buffer // non-trivial children
	B *Buffer // trivial children
}

// NewBase returns a Base with its buffers and maps initialized.
func NewBase(order Order) *Base {
	return &Base{
		Parents:   make(map[Executor]*Edge),
		Child:     make(map[Executor]bool),
		Variables: make(map[string]string),
		A:         NewBuffer(order),
		B:         NewBuffer(order),
	}
}

// PropagateTimestamp updates b's latest timestamp to the max of its current
// value and t, per spec.md §4.4 "Result propagation": "Timestamps
// propagate from child to parent as the maximum of any non-persistent,
// non-result-notify child timestamp."
func (b *Base) PropagateTimestamp(t time.Time) {
	if !b.HasTimestamp || t.After(b.LatestTimestamp) {
		b.LatestTimestamp = t
		b.HasTimestamp = true
	}
}

// PropagateVariables unions src into b.Variables.
func (b *Base) PropagateVariables(src map[string]string) {
	for k, v := range src {
		b.Variables[k] = v
	}
}

// PushResult appends to the result vector selected by trivial.
func (b *Base) PushResult(trivial bool, ds []dep.Dep) {
	idx := 0
	if trivial {
		idx = 1
	}
	b.Result[idx] = append(b.Result[idx], ds...)
}

// AddChild records a new child/edge on this executor.
func (b *Base) AddChild(child Executor, edge *Edge) {
	b.Child[child] = true
	if edge.Flags.Has(flags.Trivial) {
		b.B.Push(child, edge)
	} else {
		b.A.Push(child, edge)
	}
}

// RemoveChild drops the bookkeeping for a finished child (spec.md §4.4
// "Disconnect"). It does not itself notify the parent executor's owner
// variant; callers invoke variant-specific disconnect logic first.
func (b *Base) RemoveChild(child Executor) {
	delete(b.Child, child)
}
