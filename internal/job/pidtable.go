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

package job

import "sort"

// Owner is whatever the caller associates with a running pid; the engine
// passes its FileExecutor here, but this package stays engine-agnostic.
type Owner interface{}

// Table is the process-wide pid table (spec.md §3 "Process-wide state":
// "a sorted array mapping running pid to its owning executor"). It is only
// ever touched from the main thread, except for the read a termination
// handler does while signals are blocked around the mutation (job.go's
// callers are expected to hold that discipline; Table itself is not
// goroutine-safe by design, mirroring the single-threaded cooperative
// scheduler the rest of the engine runs under).
type Table struct {
	pids   []int
	owners []Owner
}

// NewTable returns an empty pid table.
func NewTable() *Table {
	return &Table{}
}

// Add records a newly started job under pid, keeping the table sorted by
// pid so a termination handler can binary-search it.
func (t *Table) Add(pid int, owner Owner) {
	i := sort.SearchInts(t.pids, pid)
	t.pids = append(t.pids, 0)
	copy(t.pids[i+1:], t.pids[i:])
	t.pids[i] = pid

	t.owners = append(t.owners, nil)
	copy(t.owners[i+1:], t.owners[i:])
	t.owners[i] = owner
}

// Remove drops pid from the table. It is a no-op if pid is not present.
func (t *Table) Remove(pid int) {
	i := sort.SearchInts(t.pids, pid)
	if i >= len(t.pids) || t.pids[i] != pid {
		return
	}
	t.pids = append(t.pids[:i], t.pids[i+1:]...)
	t.owners = append(t.owners[:i], t.owners[i+1:]...)
}

// Lookup returns the owner registered for pid, if any.
func (t *Table) Lookup(pid int) (Owner, bool) {
	i := sort.SearchInts(t.pids, pid)
	if i >= len(t.pids) || t.pids[i] != pid {
		return nil, false
	}
	return t.owners[i], true
}

// Len reports how many jobs are currently tracked.
func (t *Table) Len() int { return len(t.pids) }

// Pids returns a snapshot of every tracked pid, in ascending order.
func (t *Table) Pids() []int {
	out := make([]int, len(t.pids))
	copy(out, t.pids)
	return out
}

// Each calls f for every tracked (pid, owner) pair in ascending pid order.
// f must not mutate the table.
func (t *Table) Each(f func(pid int, owner Owner)) {
	for i, pid := range t.pids {
		f(pid, t.owners[i])
	}
}
