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

import "math/rand"

// Order selects how a Buffer hands out queued children: in declaration
// (depth-first) order, or in a seeded-random order (spec.md §5, "-m
// random"/"-M seed").
type Order int

const (
	DepthFirst Order = iota
	Random
)

// Buffer is the normalized-dep queue an executor drains one child at a
// time (spec.md §3 "Buffer"). Buffer A holds non-trivial children, Buffer B
// holds trivial ones; spec.md §4.4 describes their roles.
type Buffer struct {
	order Order
	rnd   *rand.Rand
	items []bufItem
}

type bufItem struct {
	child Executor
	edge  *Edge
}

// NewBuffer returns an empty Buffer using the given Order. Random order
// uses a package-level seeded generator set by SeedRandom so that a whole
// build's scheduling is reproducible given -M.
func NewBuffer(order Order) *Buffer {
	return &Buffer{order: order, rnd: sharedRand}
}

var sharedRand = rand.New(rand.NewSource(1))

// SeedRandom reseeds the shared random source used by every Random-order
// Buffer, implementing "-M seed".
func SeedRandom(seed int64) {
	sharedRand = rand.New(rand.NewSource(seed))
}

// Push adds a child/edge pair to the buffer.
func (b *Buffer) Push(child Executor, edge *Edge) {
	b.items = append(b.items, bufItem{child: child, edge: edge})
}

// Len reports how many items remain.
func (b *Buffer) Len() int { return len(b.items) }

// Pop removes and returns one item: the first in DepthFirst order, or a
// uniformly random one in Random order.
func (b *Buffer) Pop() (Executor, *Edge, bool) {
	if len(b.items) == 0 {
		return nil, nil, false
	}
	idx := 0
	if b.order == Random {
		idx = b.rnd.Intn(len(b.items))
	}
	item := b.items[idx]
	b.items = append(b.items[:idx], b.items[idx+1:]...)
	return item.child, item.edge, true
}

// Peek returns an item without removing it: the next one in DepthFirst
// order, a randomly chosen one in Random order (not necessarily the one the
// next Pop returns).
func (b *Buffer) Peek() (Executor, *Edge, bool) {
	if len(b.items) == 0 {
		return nil, nil, false
	}
	idx := 0
	if b.order == Random {
		idx = b.rnd.Intn(len(b.items))
	}
	item := b.items[idx]
	return item.child, item.edge, true
}
