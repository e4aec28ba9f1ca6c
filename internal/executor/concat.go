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

type concatStage int

const (
	stageDynamic concatStage = iota
	stageNormal
)

// ConcatExecutor expands a Concat dependency's Cartesian product once every
// dynamic child it contains has been resolved (spec.md §4.9). It is never
// cached and has exactly one parent.
type ConcatExecutor struct {
	base *graph.Base

	Node   *dep.Concat
	conn   graph.Connector
	parent graph.Executor

	stage      concatStage
	buckets    [][]dep.Dep // one per position in Node.Children
	pending    int         // outstanding RESULT_NOTIFY children
	childIndex map[graph.Executor]int
}

// NewConcatExecutor builds a ConcatExecutor for node, immediately entering
// stage DYNAMIC: Plain children are stashed directly into their bucket,
// Dynamic children's inner is pushed as a RESULT_NOTIFY child tagged with
// its position.
func NewConcatExecutor(order graph.Order, node *dep.Concat, conn graph.Connector, parent graph.Executor) *ConcatExecutor {
	ce := &ConcatExecutor{
		base:       graph.NewBase(order),
		Node:       node,
		conn:       conn,
		parent:     parent,
		buckets:    make([][]dep.Dep, len(node.Children)),
		childIndex: make(map[graph.Executor]int),
	}
	for i, c := range node.Children {
		switch v := c.(type) {
		case *dep.Plain:
			ce.buckets[i] = append(ce.buckets[i], v)
		case *dep.Dynamic:
			ce.pending++
			edge := &graph.Edge{
				Dep:   v.Inner,
				Flags: v.Inner.LinkFlags() | flags.ResultNotify,
			}
			if child, err := ce.conn.Connect(ce, v.Inner, edge); err == nil && child != nil {
				ce.childIndex[child] = i
			}
		default:
			ce.buckets[i] = append(ce.buckets[i], c)
		}
	}
	if ce.pending == 0 {
		ce.stage = stageNormal
	}
	return ce
}

func (ce *ConcatExecutor) Base() *graph.Base { return ce.base }

// WantDelete is always true: a ConcatExecutor is never cached (spec.md
// §4.9).
func (ce *ConcatExecutor) WantDelete() bool { return true }

func (ce *ConcatExecutor) Execute(parent graph.Executor, edge *graph.Edge) graph.Proceed {
	p := graph.DrainBuffer(ce, ce.base.A)
	if p.Wait || p.Abort {
		return p
	}
	if ce.pending > 0 {
		return graph.Proceed{Wait: true}
	}
	if ce.stage == stageDynamic {
		ce.stage = stageNormal
		ce.expand()
	}
	return graph.Proceed{Finished: true}
}

// NotifyResult handles a RESULT_NOTIFY child finishing ingestion: its
// discovered list is appended to the bucket whose index childIndex recorded
// for that child.
func (ce *ConcatExecutor) NotifyResult(child graph.Executor, edge *graph.Edge, result []dep.Dep) {
	if !edge.Flags.Has(flags.ResultNotify) {
		return
	}
	idx, ok := ce.childIndex[child]
	if !ok {
		return
	}
	ce.buckets[idx] = append(ce.buckets[idx], result...)
	ce.pending--
}

// expand implements stage NORMAL: assemble a fresh Concat from the filled
// buckets, normalize it (the Cartesian product, spec.md §4.2), and push one
// RESULT_COPY child per resulting combination.
func (ce *ConcatExecutor) expand() {
	node := &dep.Concat{Children: make([]dep.Dep, len(ce.buckets)), At: ce.Node.At}
	for i, bucket := range ce.buckets {
		if len(bucket) == 1 {
			node.Children[i] = bucket[0]
		} else {
			node.Children[i] = &dep.Compound{Children: bucket, At: ce.Node.At}
		}
	}

	var errs []*place.Error
	for _, result := range dep.Normalize(node, nil, &errs) {
		lf := result.LinkFlags() | flags.ResultCopy
		edge := &graph.Edge{Dep: result, Flags: lf}
		if p, ok := result.(*dep.Plain); ok {
			edge.Placed = p.Placed
		}
		ce.conn.Connect(ce, result, edge)
	}
	for _, e := range errs {
		place.Print(e)
		ce.base.Error |= e.Code
	}
}
