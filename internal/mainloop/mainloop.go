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

// Package mainloop drives the root executor to completion (spec.md §2
// "Control flow", §4.11 "wait", §9 "MainLoop"): repeatedly call Execute,
// and whenever it reports Wait, block until a job finishes or a signal
// arrives, the way the teacher's main_loop.cc drives its own
// Root_Execution.
package mainloop

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"stu/internal/engine"
	"stu/internal/job"
	"stu/internal/place"
)

// Result is what Run reports once the root executor finishes.
type Result struct {
	Code       place.Code
	UpToDate   bool // no job was ever spawned this run
	Terminated bool // a caught signal cut the build short
}

// Run drives ctx's root executor until it finishes. It asks the root to
// advance, and when nothing can proceed without a child finishing, blocks
// on ctx's job manager exactly as spec.md §4.11's combined
// waitpid-plus-sigwait loop describes.
func Run(ctx *engine.Context, keepGoing bool) Result {
	for {
		p := ctx.Root.Execute(nil, nil)
		if p.Finished || p.Abort {
			break
		}
		if !keepGoing && ctx.ErrorCode() != 0 {
			// spec.md §7: "without -k, the first error throws up through
			// the main loop and triggers termination" — the exception
			// unwind of the original becomes an explicit check here
			// (spec.md §9 "Exceptions-as-control-flow").
			abortOnError(ctx)
			break
		}
		if !p.Wait {
			continue
		}
		if ctx.OutstandingJobs() == 0 {
			// A Wait with nothing running can never be satisfied; this
			// only happens on an internal scheduling bug.
			place.Print(place.NewFatal("scheduler deadlock: wait requested with no outstanding jobs"))
			return Result{Code: place.CodeFatal}
		}
		if !waitOnce(ctx) {
			return Result{Code: place.CodeFatal, Terminated: true}
		}
	}

	res := Result{Code: ctx.ErrorCode(), UpToDate: ctx.JobsStarted() == 0}
	report(res, keepGoing)
	return res
}

// abortOnError implements spec.md §7's default-mode behavior once an
// unrecoverable error has been raised: terminate every outstanding job and
// clean up the files it was partway through writing.
func abortOnError(ctx *engine.Context) {
	if ctx.OutstandingJobs() == 0 {
		return
	}
	fmt.Fprintln(os.Stderr, "stu: terminating all jobs")
	partial := ctx.PartialOutputs()
	fmt.Fprintf(os.Stderr, "stu: removing partially built files (%d)\n", len(partial))
	ctx.Manager.Terminate(partial)
}

// waitOnce blocks for exactly one of: a job finishing (SIGCHLD), SIGUSR1
// (print status and keep waiting), or a caught termination signal (tear
// down and report failure). It returns false iff a termination signal
// fired.
func waitOnce(ctx *engine.Context) bool {
	mgr := ctx.Manager
	for {
		sig, ok := <-mgr.Signals()
		if !ok {
			return true
		}
		switch sig {
		case syscall.SIGCHLD:
			for _, res := range mgr.Reap() {
				ctx.Dispatch(res)
			}
			return true
		case syscall.SIGUSR1:
			fmt.Fprintf(os.Stderr, "stu: %d job(s) running\n", ctx.OutstandingJobs())
		default:
			if job.IsCaught(sig) {
				terminate(ctx, sig)
				return false
			}
		}
	}
}

// terminate implements spec.md §4.11's termination handler and §7's
// user-visible behavior on an unrecoverable signal: kill every tracked
// job's process group, remove partially built files (unless -K), print the
// two status lines spec.md §7 names, then re-raise sig so the process dies
// with the conventional signal exit status.
func terminate(ctx *engine.Context, sig os.Signal) {
	fmt.Fprintln(os.Stderr, "stu: terminating all jobs")
	partial := ctx.PartialOutputs()
	fmt.Fprintf(os.Stderr, "stu: removing partially built files (%d)\n", len(partial))
	ctx.Manager.Terminate(partial)

	if ss, ok := sig.(syscall.Signal); ok {
		signal.Reset(sig)
		if p, err := os.FindProcess(os.Getpid()); err == nil {
			_ = p.Signal(ss)
		}
	}
}

// report prints spec.md §2's two success banners and §7's keep-going
// reminder, matching original_source/src/show.hh.
func report(res Result, keepGoing bool) {
	if res.Code == place.CodeOK {
		if res.UpToDate {
			fmt.Println("Targets are up to date")
		} else {
			fmt.Println("Build successful")
		}
		return
	}
	if keepGoing {
		fmt.Fprintln(os.Stderr, "stu: targets not up to date because of errors")
	}
}
