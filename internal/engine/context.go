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

// Package engine owns every piece of process-wide state spec.md §3 lists
// (rule set, executor cache, transient map, startup timestamp, pid table)
// and implements graph.Connector: the lazy construction step of the
// executor graph (spec.md §4.4 get_executor). It is the one package that
// imports both internal/graph and internal/executor, so it is the natural
// home for the wiring that would otherwise create an import cycle between
// them.
package engine

import (
	"time"

	"stu/internal/dep"
	"stu/internal/executor"
	"stu/internal/flags"
	"stu/internal/graph"
	"stu/internal/hashdep"
	"stu/internal/job"
	"stu/internal/name"
	"stu/internal/place"
	"stu/internal/ruleset"
)

// Options configures a Context (spec.md §5 command-line options).
type Options struct {
	Jobs        int
	Order       graph.Order
	KeepGoing   bool
	DisableK    bool
	TraceShell  bool
	Interactive bool
}

// Context is the process-wide state every executor variant shares access
// to through the graph.Connector interface.
type Context struct {
	Rules   *ruleset.RuleSet
	cache   map[string]graph.Executor
	trans   executor.TransientMap
	jobs    *executor.Semaphore
	order   graph.Order
	start   time.Time
	opts    Options
	Manager *job.Manager
	Root    *executor.RootExecutor

	// byPid tracks which FileExecutor owns each running job's pid, for the
	// main loop's Waited dispatch.
	byPid map[int]*executor.FileExecutor

	// jobsStarted counts every job ever spawned this run, so the main loop
	// can tell "nothing to do" (spec.md Scenario B's "Targets are up to
	// date") from "everything finished successfully".
	jobsStarted int
}

// New builds an empty Context around the given rule set and options.
func New(rules *ruleset.RuleSet, opts Options) *Context {
	ctx := &Context{
		Rules: rules,
		cache: make(map[string]graph.Executor),
		trans: make(executor.TransientMap),
		jobs:  &executor.Semaphore{Max: opts.Jobs},
		order: opts.Order,
		start: time.Now(),
		opts:  opts,
		byPid: make(map[int]*executor.FileExecutor),
	}
	ctx.Manager = job.NewManager(opts.DisableK)
	ctx.Root = executor.NewRootExecutor(opts.Order, ctx)
	return ctx
}

// RequestTarget connects a top-level command-line target to the root
// executor.
func (c *Context) RequestTarget(d dep.Dep, f flags.Flags) *place.Error {
	return c.Root.RequestTarget(d, f)
}

// Connect implements graph.Connector (spec.md §4.4 get_executor).
func (c *Context) Connect(parent graph.Executor, d dep.Dep, edge *graph.Edge) (graph.Executor, *place.Error) {
	switch v := d.(type) {
	case *dep.Concat:
		child := executor.NewConcatExecutor(c.order, v, c, parent)
		parent.Base().AddChild(child, edge)
		child.Execute(parent, edge)
		return child, nil

	case *dep.Dynamic:
		if !plainBased(v.Inner) {
			child := executor.NewDynamicExecutor(c.order, v, c, false)
			parent.Base().AddChild(child, edge)
			child.Execute(parent, edge)
			return child, nil
		}
		return c.connectCacheable(parent, d, edge, v.At)

	default:
		return c.connectCacheable(parent, d, edge, d.Place())
	}
}

// plainBased reports whether d's ultimate base (after peeling any nested
// Dynamic wrappers) is Plain, i.e. whether a Dynamic wrapping it is
// cacheable (spec.md §4.7).
func plainBased(d dep.Dep) bool {
	for {
		dy, ok := d.(*dep.Dynamic)
		if !ok {
			_, isPlain := d.(*dep.Plain)
			return isPlain
		}
		d = dy.Inner
	}
}

// connectCacheable handles the cache-keyed path of get_executor: Plain
// deps, and Dynamic deps whose ultimate base is Plain.
func (c *Context) connectCacheable(parent graph.Executor, d dep.Dep, edge *graph.Edge, at place.Place) (graph.Executor, *place.Error) {
	h := dep.HashDepOf(d).StripLinks()
	key := h.Key()

	if existing, ok := c.cache[key]; ok {
		if parent.Base().Child[existing] {
			if ee, ok2 := existing.Base().Parents[parent]; ok2 {
				ee.Union(edge.Flags, edge.Placed)
			}
			return existing, nil
		}
		if cycle := graph.FindCycle(parent, existing); cycle != nil {
			return nil, place.NewLogical(at, "dependency cycle detected")
		}
		parent.Base().AddChild(existing, edge)
		existing.Base().Parents[parent] = edge
		return existing, nil
	}

	child, err := c.build(d, h, at)
	if err != nil {
		return nil, err
	}
	c.cache[key] = child
	parent.Base().AddChild(child, edge)
	child.Base().Parents[parent] = edge
	child.Execute(parent, edge)
	return child, nil
}

// Lookup implements graph.Connector's cache inspection, used by
// FileExecutor to check a copy source's build state (spec.md §4.6 step 11).
func (c *Context) Lookup(transient bool, text string) (graph.Executor, bool) {
	var f flags.Flags
	if transient {
		f = flags.Transient
	}
	h := hashdep.New(f, text)
	e, ok := c.cache[h.Key()]
	return e, ok
}

// build constructs a brand-new executor for a cache miss: either a
// DynamicExecutor (cacheable shape, wrapping a Plain base), or a
// FileExecutor/TransientExecutor chosen by resolving the rule that governs
// the underlying plain target.
func (c *Context) build(d dep.Dep, h hashdep.HashDep, at place.Place) (graph.Executor, *place.Error) {
	if dyn, ok := d.(*dep.Dynamic); ok {
		return executor.NewDynamicExecutor(c.order, dyn, c, true), nil
	}

	inst, err := c.Rules.Resolve(h, at)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		if h.IsTransient() {
			return nil, place.NewLogical(at, "no rule to build transient target %q", h.Text)
		}
		// A file with no matching rule is an implicit leaf source: spec.md
		// §4.6 step 5 ("the rule has no command/copy/hardcode") already
		// covers this shape, so a bare file reference is synthesized as a
		// command-free, dep-free rule instance rather than erroring here.
		inst = implicitFileRule(h.Text, at)
	}

	if fileExecuted(inst) {
		fe := executor.NewFileExecutor(c.order, inst, c, c.trans, c.jobs, c.start, c.opts.Order == graph.Random, c.opts.DisableK, c.RegisterJob)
		return fe, nil
	}
	return executor.NewTransientExecutor(c.order, inst, c), nil
}

// implicitFileRule builds the synthetic command-free, dep-free rule
// instance used for a file target with no matching rule in the rule set: it
// is expected to already exist on disk, exactly as if the rule file had
// declared "text: ;".
func implicitFileRule(text string, at place.Place) *ruleset.Instance {
	r := &ruleset.Rule{
		Targets:       []name.PlaceTarget{{Name: name.NewLiteral(text), Place: at}},
		At:            at,
		RedirectIndex: -1,
	}
	return &ruleset.Instance{Instantiated: r, Source: r, Params: map[string]string{}}
}

// fileExecuted reports whether a rule instance is built by FileExecutor
// rather than TransientExecutor: spec.md §4.4 "a target is file-executed
// iff its HashDep is a file, or the rule has a command, or any target of
// the rule is a file."
func fileExecuted(inst *ruleset.Instance) bool {
	r := inst.Instantiated
	if r.Command != nil || r.IsHardcode || r.IsCopy {
		return true
	}
	for _, t := range r.Targets {
		if !t.Transient {
			return true
		}
	}
	return false
}

// RegisterJob records that pid belongs to fe, for dispatching the result of
// job.Manager.Reap back to the right FileExecutor.
func (c *Context) RegisterJob(pid int, fe *executor.FileExecutor) {
	c.byPid[pid] = fe
	c.jobsStarted++
	c.Manager.Register(pid, fe)
}

// JobsStarted reports how many jobs have been spawned so far this run.
func (c *Context) JobsStarted() int { return c.jobsStarted }

// OutstandingJobs reports how many jobs are currently running.
func (c *Context) OutstandingJobs() int { return len(c.byPid) }

// Dispatch looks up and forgets the FileExecutor owning pid, handing its
// wait result to FileExecutor.Waited.
func (c *Context) Dispatch(res job.Result) {
	fe, ok := c.byPid[res.Pid]
	if !ok {
		return
	}
	delete(c.byPid, res.Pid)
	c.Manager.Unregister(res.Pid)
	fe.Waited(res)
}

// PartialOutputs collects every cached FileExecutor's non-transient target
// paths, for the termination handler's partial-file cleanup list.
func (c *Context) PartialOutputs() []string {
	var out []string
	for _, e := range c.cache {
		if fe, ok := e.(*executor.FileExecutor); ok {
			out = append(out, fe.PartialTargetPaths()...)
		}
	}
	return out
}

// ErrorCode returns the accumulated error code across the root and every
// cached executor, per spec.md §6's combined exit-status rule.
func (c *Context) ErrorCode() place.Code {
	code := c.Root.Base().Error
	for _, e := range c.cache {
		code |= e.Base().Error
	}
	return code
}
