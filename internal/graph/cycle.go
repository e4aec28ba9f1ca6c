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

import "fmt"

// sameIdentity reports whether two executors are the same cycle identity:
// instantiated from the same parametrized rule, at the same dynamic depth
// (spec.md §4.5).
func sameIdentity(a, b Executor) bool {
	ab, bb := a.Base(), b.Base()
	if ab.RuleIdentity == nil || bb.RuleIdentity == nil {
		return false
	}
	return ab.RuleIdentity == bb.RuleIdentity && ab.DynamicDepth == bb.DynamicDepth
}

// FindCycle searches upward from parent through the parents maps for an
// ancestor sharing child's cycle identity (parent itself included). It
// returns the executors on the cycle, starting with that ancestor and ending
// with parent, or nil if adding parent->child would not close a cycle.
func FindCycle(parent, child Executor) []Executor {
	visited := make(map[Executor]bool)
	var path []Executor

	var walk func(e Executor) []Executor
	walk = func(e Executor) []Executor {
		if visited[e] {
			return nil
		}
		visited[e] = true
		path = append(path, e)
		if sameIdentity(e, child) {
			cycle := make([]Executor, len(path))
			copy(cycle, path)
			return cycle
		}
		for anc := range e.Base().Parents {
			if found := walk(anc); found != nil {
				return found
			}
		}
		path = path[:len(path)-1]
		return nil
	}

	found := walk(parent)
	if found == nil {
		return nil
	}
	// The walk collected parent first; reverse so the result starts at the
	// ancestor that closes the cycle and ends at parent, the order in which
	// DescribeCycle prints each consecutive pair as "X depends on Y".
	for i, j := 0, len(found)-1; i < j; i, j = i+1, j-1 {
		found[i], found[j] = found[j], found[i]
	}
	return found
}

// DescribeCycle renders a cycle (as returned by FindCycle) the way spec.md
// Scenario D expects: one "X depends on Y" line per edge.
func DescribeCycle(cycle []Executor, nameOf func(Executor) string) string {
	out := ""
	for i := 0; i+1 < len(cycle); i++ {
		if i > 0 {
			out += "\n"
		}
		out += fmt.Sprintf("%s depends on %s", nameOf(cycle[i]), nameOf(cycle[i+1]))
	}
	return out
}
