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

import (
	"reflect"
	"testing"
)

func TestTableAddKeepsSortedOrder(t *testing.T) {
	// Testable property 7: the pid table stays sorted regardless of
	// insertion order.
	tbl := NewTable()
	for _, pid := range []int{30, 10, 20, 5, 25} {
		tbl.Add(pid, pid)
	}
	got := tbl.Pids()
	want := []int{5, 10, 20, 25, 30}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Pids() = %v, want %v", got, want)
	}
}

func TestTableLookupReturnsOwner(t *testing.T) {
	tbl := NewTable()
	tbl.Add(10, "ten")
	tbl.Add(20, "twenty")

	owner, ok := tbl.Lookup(10)
	if !ok || owner != "ten" {
		t.Fatalf("Lookup(10) = (%v, %v), want (\"ten\", true)", owner, ok)
	}
	if _, ok := tbl.Lookup(15); ok {
		t.Fatalf("Lookup(15) found an owner for an absent pid")
	}
}

func TestTableRemove(t *testing.T) {
	tbl := NewTable()
	for _, pid := range []int{10, 20, 30} {
		tbl.Add(pid, pid)
	}
	tbl.Remove(20)

	if got := tbl.Pids(); !reflect.DeepEqual(got, []int{10, 30}) {
		t.Fatalf("Pids() after Remove(20) = %v, want [10 30]", got)
	}
	if _, ok := tbl.Lookup(20); ok {
		t.Fatalf("Lookup(20) found an owner after Remove(20)")
	}
	// Owners stay aligned with their pids after the shift.
	if owner, ok := tbl.Lookup(30); !ok || owner != 30 {
		t.Fatalf("Lookup(30) = (%v, %v), want (30, true)", owner, ok)
	}
}

func TestTableRemoveAbsentIsNoop(t *testing.T) {
	tbl := NewTable()
	tbl.Add(10, "ten")
	tbl.Remove(999)
	if tbl.Len() != 1 {
		t.Fatalf("Len() = %d after removing an absent pid, want 1", tbl.Len())
	}
}

func TestTableEachVisitsInAscendingOrder(t *testing.T) {
	tbl := NewTable()
	for _, pid := range []int{30, 10, 20} {
		tbl.Add(pid, pid)
	}
	var seen []int
	tbl.Each(func(pid int, owner Owner) {
		seen = append(seen, pid)
		if owner != pid {
			t.Errorf("owner for pid %d = %v, want %d", pid, owner, pid)
		}
	})
	if !reflect.DeepEqual(seen, []int{10, 20, 30}) {
		t.Fatalf("Each visited %v, want ascending [10 20 30]", seen)
	}
}

func TestTableLen(t *testing.T) {
	tbl := NewTable()
	if tbl.Len() != 0 {
		t.Fatalf("Len() = %d for a new table, want 0", tbl.Len())
	}
	tbl.Add(1, nil)
	tbl.Add(2, nil)
	if tbl.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tbl.Len())
	}
}
