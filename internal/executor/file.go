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

// Package executor holds the concrete Executor variants (spec.md §4.6
// through §4.10): FileExecutor, DynamicExecutor, ConcatExecutor,
// TransientExecutor, and RootExecutor. Each embeds *graph.Base for the
// state every variant shares and asks a graph.Connector (the engine's
// Context) to construct or look up its children, the same
// embed-the-base/depend-on-an-interface split android/module.go uses
// between ModuleBase and the surrounding build graph.
package executor

import (
	"fmt"
	"os"
	"time"

	"stu/internal/dep"
	"stu/internal/flags"
	"stu/internal/graph"
	"stu/internal/hashdep"
	"stu/internal/job"
	"stu/internal/place"
	"stu/internal/ruleset"
)

// TransientMap is the process-wide record of which transient targets have
// been "produced" and when (spec.md §3 "Process-wide state"). A transient
// target counts as built once its name appears here.
type TransientMap map[string]time.Time

// FileExecutor drives the build of one rule instance whose targets include
// at least one file (spec.md §4.6). It is cached for the life of the
// process, keyed by HashDep.
type FileExecutor struct {
	base *graph.Base

	Rule   *ruleset.Instance
	Params map[string]string

	hashDeps     []hashdep.HashDep
	preTimestamp []time.Time // parallel to Rule.Instantiated.Targets
	haveBuilt    bool

	done   Done
	job    *job.Job
	conn     graph.Connector
	trans    TransientMap
	jobs     *Semaphore
	start    time.Time // process startup, for "mtime older than startup" checks
	random         bool
	register       func(pid int, fe *FileExecutor)
	disableRemoval bool // -K: spec.md testable property 6's escape hatch
}

// Semaphore is a counting token bucket used to enforce -j (spec.md §4.6
// step 10: "If options_jobs == 0, return WAIT").
type Semaphore struct {
	Max, InUse int
}

func (s *Semaphore) TryAcquire() bool {
	if s.Max > 0 && s.InUse >= s.Max {
		return false
	}
	s.InUse++
	return true
}

func (s *Semaphore) Release() {
	if s.InUse > 0 {
		s.InUse--
	}
}

// NewFileExecutor builds a FileExecutor for a resolved rule instance.
// register is called with the child pid once a job is spawned so the
// caller (the engine's Context) can dispatch the eventual wait result back
// to this FileExecutor (spec.md §3 invariant 9, §4.11 "Parent bookkeeping").
func NewFileExecutor(order graph.Order, inst *ruleset.Instance, conn graph.Connector, trans TransientMap, jobs *Semaphore, start time.Time, random, disableRemoval bool, register func(pid int, fe *FileExecutor)) *FileExecutor {
	fe := &FileExecutor{
		base:           graph.NewBase(order),
		Rule:           inst,
		Params:         inst.Params,
		preTimestamp:   make([]time.Time, len(inst.Instantiated.Targets)),
		conn:           conn,
		trans:          trans,
		jobs:           jobs,
		start:          start,
		random:         random,
		register:       register,
		disableRemoval: disableRemoval,
	}
	fe.base.RuleIdentity = inst.Source
	for _, t := range inst.Instantiated.Targets {
		var f flags.Flags
		if t.Transient {
			f = flags.Transient
		}
		fe.hashDeps = append(fe.hashDeps, hashdep.New(f, t.Name.Literal()))
	}
	for _, d := range inst.Instantiated.Deps {
		fe.connectDep(d)
	}
	return fe
}

// Base returns the shared executor state, satisfying graph.Executor.
func (fe *FileExecutor) Base() *graph.Base { return fe.base }

// connectDep normalizes and connects one of the rule's own Deps as a child,
// tagging it RESULT_COPY so its contribution reaches this FileExecutor's
// own result list (spec.md §4.4 "Result propagation").
func (fe *FileExecutor) connectDep(d dep.Dep) {
	var errs []*place.Error
	for _, nd := range dep.Normalize(d, nil, &errs) {
		lf := nd.LinkFlags() | flags.ResultCopy
		edge := &graph.Edge{Dep: nd, Flags: lf}
		if p, ok := nd.(*dep.Plain); ok {
			edge.Placed = p.Placed
		}
		if _, err := fe.conn.Connect(fe, nd, edge); err != nil {
			fe.base.Error |= place.CodeLogical
		}
	}
	for _, e := range errs {
		place.Print(e)
		fe.base.Error |= e.Code
	}
}

func (fe *FileExecutor) WantDelete() bool { return false }

// NotifyResult implements spec.md §4.4's disconnect-time result handling
// for a child connected with RESULT_COPY: the child's copied-result list is
// folded into this FileExecutor's own buffer so it in turn reaches its
// parents.
func (fe *FileExecutor) NotifyResult(child graph.Executor, edge *graph.Edge, result []dep.Dep) {
	if edge.Flags.Has(flags.ResultCopy) {
		fe.base.PushResult(edge.Flags.Has(flags.Trivial), result)
	}
}

// filePaths returns the literal filesystem paths of every non-transient
// target, used for stat/unlink.
func (fe *FileExecutor) filePaths() []string {
	var out []string
	for _, t := range fe.Rule.Instantiated.Targets {
		if !t.Transient {
			out = append(out, t.Name.Literal())
		}
	}
	return out
}

func (fe *FileExecutor) hasFileTarget() bool {
	for _, t := range fe.Rule.Instantiated.Targets {
		if !t.Transient {
			return true
		}
	}
	return false
}

// Execute advances the build of this rule instance by one step, per spec.md
// §4.6's numbered execution procedure.
func (fe *FileExecutor) Execute(parent graph.Executor, edge *graph.Edge) graph.Proceed {
	req := Request(edge.Flags)

	// Step 1: phase A.
	if p := fe.executePhaseA(); p.Abort || (!fe.done.Satisfies(req) && p.Wait) {
		return p
	}

	// Step 2.
	if fe.done.Satisfies(req) {
		return graph.Proceed{Finished: true}
	}

	// Step 3.
	if fe.job != nil {
		return graph.Proceed{Wait: true}
	}

	if !fe.base.State.Has(graph.Checked) {
		if p, done := fe.check(edge); done {
			return p
		}
	}

	// Step 7.
	if !fe.base.State.Has(graph.NeedBuild) {
		fe.done = DoneAll
		return graph.Proceed{Finished: true}
	}

	// Step 8: phase B.
	if p := fe.executePhaseB(); p.Wait {
		return p
	}

	inst := fe.Rule.Instantiated

	// Step 9: hardcode rule.
	if inst.IsHardcode {
		if err := fe.writeHardcode(); err != nil {
			place.Print(place.NewBuild(inst.At, "writing hardcoded content: %v", err))
			fe.base.Error |= place.CodeBuild
		}
		fe.done = DoneAll
		fe.base.PropagateTimestamp(time.Now())
		return graph.Proceed{Finished: true}
	}

	// Step 11 (part 1): optional copy source missing.
	if inst.IsCopy && inst.CopyOptionalSource && fe.base.State.Has(graph.Missing) {
		if src, ok := fe.conn.Lookup(false, inst.InputFile.Literal()); ok && src.Base().State.Has(graph.Missing) {
			place.Print(place.NewBuild(inst.At, "source file %s in optional copy rule must exist", inst.InputFile.Literal()))
			fe.base.Error |= place.CodeBuild
			fe.done = DoneAll
			return graph.Proceed{Finished: true}
		}
	}

	// Step 10.
	if !fe.jobs.TryAcquire() {
		return graph.Proceed{Wait: true}
	}

	// Steps 11-12.
	if err := fe.spawn(); err != nil {
		fe.jobs.Release()
		place.Print(place.NewBuild(inst.At, "starting command: %v", err))
		fe.base.Error |= place.CodeBuild
		fe.done = DoneAll
		return graph.Proceed{Finished: true}
	}

	p := graph.Proceed{Wait: true}
	if fe.random {
		p.CallAgain = true
	}
	return p
}

func (fe *FileExecutor) executePhaseA() graph.Proceed {
	return graph.DrainBuffer(fe, fe.base.A)
}

func (fe *FileExecutor) executePhaseB() graph.Proceed {
	return graph.DrainBuffer(fe, fe.base.B)
}

// check implements spec.md §4.6 steps 4-6.
func (fe *FileExecutor) check(edge *graph.Edge) (graph.Proceed, bool) {
	inst := fe.Rule.Instantiated
	anyMissing := false
	for i, t := range inst.Targets {
		if t.Transient {
			continue
		}
		path := t.Name.Literal()
		fi, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				if edge.Flags.Has(flags.Optional) {
					fe.done |= NonpersistentTrivial | NonpersistentNontrivial
					fe.base.State |= graph.Checked | graph.Missing
					return graph.Proceed{Finished: true}, true
				}
				fe.base.State |= graph.NeedBuild | graph.Missing | graph.Checked
				anyMissing = true
				continue
			}
			place.Print(place.NewBuild(t.Place, "stat %q: %v", path, err))
			fe.base.Error |= place.CodeBuild
			continue
		}
		fe.preTimestamp[i] = fi.ModTime()
		if fi.ModTime().After(time.Now()) {
			fmt.Fprintf(os.Stderr, "stu: warning: %s has a timestamp in the future\n", path)
		}
		if fe.base.HasTimestamp && fi.ModTime().Before(fe.base.LatestTimestamp) {
			fe.base.State |= graph.NeedBuild
		}
		fe.base.PropagateTimestamp(fi.ModTime())
	}
	fe.base.State |= graph.Checked

	inputLess := inst.Command == nil && !inst.IsHardcode && !inst.IsCopy
	if anyMissing && inputLess {
		place.Print(place.NewBuild(inst.At, "expected file to exist: %s", fe.filePaths()))
		fe.base.Error |= place.CodeBuild
		fe.done = DoneAll
		return graph.Proceed{Finished: true}, true
	}

	for _, t := range inst.Targets {
		if !t.Transient {
			continue
		}
		if _, ok := fe.trans[t.Name.Literal()]; !ok && !fe.hasFileTarget() && inst.Command != nil {
			fe.base.State |= graph.NeedBuild
		}
	}

	return graph.Proceed{}, false
}

func (fe *FileExecutor) writeHardcode() error {
	inst := fe.Rule.Instantiated
	for _, t := range inst.Targets {
		if t.Transient {
			continue
		}
		if err := os.WriteFile(t.Name.Literal(), []byte(inst.HardcodeContent), 0o666); err != nil {
			return err
		}
	}
	return nil
}

// spawn implements spec.md §4.6 steps 11-12: copy rules exec cp, regular
// rules exec the shell.
func (fe *FileExecutor) spawn() error {
	inst := fe.Rule.Instantiated
	env := make(map[string]string, len(fe.Params))
	for k, v := range fe.Params {
		env[k] = v
	}
	for k, v := range fe.base.Variables {
		env[k] = v
	}

	spec := job.Spec{Place: inst.At.String(), Env: env}
	if inst.IsCopy {
		spec.Copy = true
		spec.Src = inst.InputFile.Literal()
		if len(inst.Targets) > 0 {
			spec.Dst = inst.Targets[0].Name.Literal()
		}
	} else {
		spec.Command = inst.Command.Text
		if inst.RedirectIndex >= 0 && inst.RedirectIndex < len(inst.Targets) {
			spec.RedirectOutput = inst.Targets[inst.RedirectIndex].Name.Literal()
		}
		if !inst.InputFile.Unparametrized() || inst.InputFile.Literal() != "" {
			spec.RedirectInput = inst.InputFile.Literal()
		} else {
			spec.Batch = true
		}
	}

	j, err := job.Start(spec)
	if err != nil {
		return err
	}
	fe.job = j
	if fe.register != nil {
		fe.register(j.Pid(), fe)
	}

	for _, t := range inst.Targets {
		if t.Transient {
			fe.trans[t.Name.Literal()] = time.Now()
		}
	}
	return nil
}

// Waited implements spec.md §4.6's post-wait verification, invoked by the
// main loop once job.Wait/Reap identifies this executor's pid.
func (fe *FileExecutor) Waited(res job.Result) {
	fe.jobs.Release()
	fe.job = nil
	inst := fe.Rule.Instantiated

	if res.Success {
		for _, t := range inst.Targets {
			if t.Transient {
				continue
			}
			path := t.Name.Literal()
			fi, err := os.Stat(path)
			if err != nil {
				place.Print(place.NewBuild(t.Place, "%s was not produced by its command", path))
				fe.base.Error |= place.CodeBuild
				continue
			}
			if fi.ModTime().Before(fe.start) && fi.Mode()&os.ModeSymlink == 0 {
				place.Print(place.NewBuild(t.Place, "%s has a timestamp older than this build", path))
				fe.base.Error |= place.CodeBuild
			}
			fe.base.PropagateTimestamp(fi.ModTime())
		}
		fe.done = DoneAll
		return
	}

	if res.Signal != nil {
		place.Print(place.NewBuild(inst.At, "command for %s killed by signal %s", fe.primaryTargetName(), res.Signal))
	} else {
		place.Print(place.NewBuild(inst.At, "command for %s failed with exit status %d", fe.primaryTargetName(), res.ExitCode))
	}
	fe.removeIfExisting(true)
	fe.base.Error |= place.CodeBuild
	fe.done = DoneAll
}

func (fe *FileExecutor) primaryTargetName() string {
	if len(fe.Rule.Instantiated.Targets) == 0 {
		return "?"
	}
	return fe.Rule.Instantiated.Targets[0].Name.Literal()
}

// removeIfExisting unlinks every file target whose pre-build timestamp is
// undefined or older than "now" (spec.md §4.6, §4.11 "remove_if_existing").
// async is true for the cleanup after a failed command (Waited) and false
// for a call from the termination path; both share the same logic here
// since Go's os.Remove is already a single syscall.
func (fe *FileExecutor) removeIfExisting(async bool) {
	if fe.disableRemoval {
		return
	}
	now := time.Now()
	for i, t := range fe.Rule.Instantiated.Targets {
		if t.Transient {
			continue
		}
		path := t.Name.Literal()
		if fe.preTimestamp[i].IsZero() || fe.preTimestamp[i].Before(now) {
			_ = os.Remove(path)
		}
	}
}

// PartialTargetPaths exposes this executor's non-transient target paths so
// the termination handler can offer them to removeIfExisting-style cleanup
// without depending on FileExecutor's internals.
func (fe *FileExecutor) PartialTargetPaths() []string { return fe.filePaths() }
