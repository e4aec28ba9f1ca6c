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
	"bufio"
	"fmt"
	"os"
	"strings"

	"stu/internal/dep"
	"stu/internal/flags"
	"stu/internal/graph"
	"stu/internal/name"
	"stu/internal/parser"
	"stu/internal/place"
)

// DynamicExecutor drives a Dynamic(inner) dependency whose ingestion target
// is a single file: it requests that file, reads its contents as a list of
// further dependencies once built, and feeds them in as new children
// (spec.md §4.7 "DynamicExecutor").
type DynamicExecutor struct {
	base *graph.Base

	Wrapper  *dep.Dynamic // the Dynamic node this executor represents
	conn     graph.Connector
	cacheable bool

	ingested bool
}

// NewDynamicExecutor constructs a DynamicExecutor for wrapper. cacheable is
// false when wrapper's stripped inner is not Plain (contains a Concat),
// matching spec.md's "forbid caching" rule for that shape.
func NewDynamicExecutor(order graph.Order, wrapper *dep.Dynamic, conn graph.Connector, cacheable bool) *DynamicExecutor {
	de := &DynamicExecutor{
		base:      graph.NewBase(order),
		Wrapper:   wrapper,
		conn:      conn,
		cacheable: cacheable,
	}
	innerEdge := &graph.Edge{
		Dep:   wrapper.Inner,
		Flags: wrapper.Inner.LinkFlags() | flags.ResultNotify,
	}
	conn.Connect(de, wrapper.Inner, innerEdge)
	return de
}

func (de *DynamicExecutor) Base() *graph.Base { return de.base }

// WantDelete matches spec.md: a plain-inner Dynamic is cached for the life
// of the process (false); a non-plain-inner one (one that ultimately
// contains a Concat) is never cached (true).
func (de *DynamicExecutor) WantDelete() bool { return !de.cacheable }

// Execute drains buffer A (the ingestion request and whatever it produced),
// then reports finished once ingestion has happened and nothing is
// outstanding.
func (de *DynamicExecutor) Execute(parent graph.Executor, edge *graph.Edge) graph.Proceed {
	p := graph.DrainBuffer(de, de.base.A)
	if p.Wait || p.Abort {
		return p
	}
	if !de.ingested {
		return graph.Proceed{Wait: true}
	}
	return graph.Proceed{Finished: true}
}

// NotifyResult implements spec.md §4.7: a RESULT_NOTIFY child (the file
// being ingested) triggers ingestion of its produced file into new Plain
// children tagged RESULT_COPY; a RESULT_COPY child (one of those new
// children, once built) is forwarded upward via push_result.
func (de *DynamicExecutor) NotifyResult(child graph.Executor, edge *graph.Edge, result []dep.Dep) {
	if edge.Flags.Has(flags.ResultNotify) {
		de.ingest()
		return
	}
	if edge.Flags.Has(flags.ResultCopy) {
		de.base.PushResult(edge.Flags.Has(flags.Trivial), result)
	}
}

// ingest implements spec.md §4.8: read the dynamic-dependency file named by
// the wrapped Plain target and push each record as a new child.
func (de *DynamicExecutor) ingest() {
	de.ingested = true
	inner := de.Wrapper.Inner
	plain, ok := inner.(*dep.Plain)
	if !ok {
		place.Print(place.NewLogical(de.Wrapper.At, "dynamic dependency's innermost target is not a plain file reference"))
		de.base.Error |= place.CodeLogical
		return
	}
	path := plain.Target.Name.Literal()

	switch {
	case plain.Flags.Has(flags.NewlineSeparated):
		de.ingestRecords(path, '\n')
	case plain.Flags.Has(flags.NulSeparated):
		de.ingestRecords(path, 0)
	default:
		de.ingestExpr(path)
	}
}

// ingestRecords implements spec.md §4.8's newline/nul-separated ingestion
// modes: each non-empty line or nul-terminated record is a bare file name.
func (de *DynamicExecutor) ingestRecords(path string, sep byte) {
	records, err := splitFile(path, sep)
	if err != nil {
		place.Print(place.NewBuild(de.Wrapper.At, "reading dynamic dependency file %q: %v", path, err))
		de.base.Error |= place.CodeBuild
		return
	}
	for _, rec := range records {
		if rec == "" {
			place.Print(place.NewLogical(de.Wrapper.At, "empty record in dynamic dependency file %q", path))
			de.base.Error |= place.CodeLogical
			continue
		}
		de.ingestChild(&dep.Plain{
			Target: name.PlaceTarget{Name: name.NewLiteral(rec), Place: de.Wrapper.At},
		})
	}
}

// ingestExpr implements spec.md §4.8's default ingestion mode: the file's
// contents are parsed with the same dependency-expression grammar a rule's
// own deps use (internal/parser), rather than split into bare names.
func (de *DynamicExecutor) ingestExpr(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		place.Print(place.NewBuild(de.Wrapper.At, "reading dynamic dependency file %q: %v", path, err))
		de.base.Error |= place.CodeBuild
		return
	}
	deps, perr := parser.ParseDynamicFile(string(data), path)
	if perr != nil {
		place.Print(perr)
		de.base.Error |= perr.Code
		return
	}
	var errs []*place.Error
	for _, d := range deps {
		for _, nd := range dep.Normalize(d, nil, &errs) {
			de.ingestChild(nd)
		}
	}
	for _, e := range errs {
		place.Print(e)
		de.base.Error |= e.Code
	}
}

// ingestChild connects one ingested record (a bare name from the
// newline/nul modes, or a parsed expression from the default mode) as a
// RESULT_COPY child of this dynamic dependency, carrying the wrapper's own
// placed/flag treatment the way every ingested record shares it.
func (de *DynamicExecutor) ingestChild(d dep.Dep) {
	add := de.Wrapper.Flags.Without(flags.ResultNotify) | flags.ResultCopy
	if p, ok := d.(*dep.Plain); ok {
		child := p.WithLinkFlags(add)
		child.Placed = de.Wrapper.Placed
		edge := &graph.Edge{Dep: child, Flags: child.Flags, Placed: child.Placed}
		de.conn.Connect(de, child, edge)
		return
	}
	edge := &graph.Edge{Dep: d, Flags: d.LinkFlags() | flags.ResultCopy, Placed: de.Wrapper.Placed}
	de.conn.Connect(de, d, edge)
}

// splitFile reads path and splits it on sep, matching spec.md §4.8's
// newline/nul-separated ingestion mode.
func splitFile(path string, sep byte) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var records []string
	var cur strings.Builder
	for {
		b, err := r.ReadByte()
		if err != nil {
			break
		}
		if b == sep {
			records = append(records, cur.String())
			cur.Reset()
			continue
		}
		if sep == 0 && b == 0 {
			return nil, fmt.Errorf("nul record contains an embedded nul")
		}
		cur.WriteByte(b)
	}
	if cur.Len() > 0 {
		records = append(records, cur.String())
	}
	return records, nil
}
