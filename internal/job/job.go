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

// Package job spawns and tracks the child processes that run rule commands
// (spec.md §4.11 "Job and signals"). It is the one package in this repo
// that talks to the kernel directly (fork/exec, process groups, waitpid,
// signal delivery), the way cmd/run_with_timeout and cmd/sbox are the only
// packages in the teacher that touch os/exec and syscall directly.
//
// Process-group control and TTY handoff use golang.org/x/sys/unix, the same
// dependency other_examples' distr1-distri batch scheduler reaches for to
// do the equivalent job in Go (IoctlGetTermios and friends); the standard
// library's os/exec has no notion of process groups.
package job

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"syscall"

	"golang.org/x/sys/unix"
)

// Shell and copy tool, overridable via STU_SHELL / STU_CP (spec.md §6).
var (
	defaultShell = "/bin/sh"
	defaultCp    = "/bin/cp"
)

func shellPath() string {
	if s := os.Getenv("STU_SHELL"); s != "" {
		return s
	}
	return defaultShell
}

func cpPath() string {
	if s := os.Getenv("STU_CP"); s != "" {
		return s
	}
	return defaultCp
}

// Job is a single child process executing one rule's command. An instance
// executes only once.
type Job struct {
	cmd *exec.Cmd
	pid int
}

// Started reports whether Start succeeded.
func (j *Job) Started() bool { return j.cmd != nil && j.pid >= 0 }

// Pid returns the child's pid; valid only once Started.
func (j *Job) Pid() int { return j.pid }

// Spec describes one command to run (spec.md §4.6 steps 11-12 and §4.11).
type Spec struct {
	// Command is the shell command text for a regular rule, unused for Copy.
	Command string
	// Copy, when true, runs "cp -- Src Dst" (or $STU_CP) instead of a shell
	// command.
	Copy     bool
	Src, Dst string

	Env   map[string]string
	Place string // human-readable location string, used as argv[0]

	RedirectOutput string // file to redirect stdout to, or "" for none
	RedirectInput  string // file to redirect stdin from, or "" for none (see Batch)
	Batch          bool   // true: redirect stdin from /dev/null when RedirectInput is ""
	TraceShell     bool   // -x: use "sh -cex" instead of "sh -ce"
}

// Start forks and execs the command described by spec, placing the child
// in its own process group (spec.md §4.11 "Spawn"). On failure it returns a
// non-nil error and the caller should treat this as a build error; a
// failure between fork and exec inside the child always exits 127, handled
// by the shell/cp binary itself since exec.Cmd has no fork-without-exec
// primitive in Go — the equivalent async-signal-safety requirement instead
// falls on the exec'd program failing fast, matching how a failed exec of
// /bin/sh itself already reports a shell-launch error to the parent.
func Start(spec Spec) (*Job, error) {
	var cmd *exec.Cmd
	if spec.Copy {
		cmd = exec.Command(cpPath(), "--", spec.Src, spec.Dst)
	} else {
		args := []string{"-ce"}
		if spec.TraceShell {
			args = []string{"-cex"}
		}
		args = append(args, spec.Command)
		cmd = exec.Command(shellPath(), args...)
	}
	if spec.Place != "" {
		cmd.Args[0] = spec.Place
	}

	cmd.Env = buildEnv(spec.Env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if spec.RedirectOutput != "" {
		f, err := os.Create(spec.RedirectOutput)
		if err != nil {
			return nil, fmt.Errorf("job: creating output redirect %q: %w", spec.RedirectOutput, err)
		}
		cmd.Stdout = f
		cmd.Stderr = os.Stderr
		defer f.Close()
	} else {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	switch {
	case spec.RedirectInput != "":
		f, err := os.Open(spec.RedirectInput)
		if err != nil {
			return nil, fmt.Errorf("job: opening input redirect %q: %w", spec.RedirectInput, err)
		}
		cmd.Stdin = f
		defer f.Close()
	case spec.Batch:
		devnull, err := os.Open(os.DevNull)
		if err != nil {
			return nil, err
		}
		cmd.Stdin = devnull
		defer devnull.Close()
	default:
		cmd.Stdin = os.Stdin
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	j := &Job{cmd: cmd, pid: cmd.Process.Pid}
	return j, nil
}

// buildEnv copies the parent's environment, overriding or appending the
// given variables, and always appends STU_STATUS=1 (spec.md §6), which lets
// a spawned rule command detect and refuse a recursive invocation.
func buildEnv(overrides map[string]string) []string {
	base := os.Environ()
	seen := make(map[string]bool, len(overrides))
	out := make([]string, 0, len(base)+len(overrides)+1)
	for _, kv := range base {
		key := kv
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				key = kv[:i]
				break
			}
		}
		if v, ok := overrides[key]; ok {
			out = append(out, key+"="+v)
			seen[key] = true
		} else {
			out = append(out, kv)
		}
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overrides[k])
	}
	out = append(out, "STU_STATUS=1")
	return out
}

// Result describes a terminated child (spec.md §4.6 "waited").
type Result struct {
	Pid      int
	Success  bool
	ExitCode int
	Signal   os.Signal
}

// Wait blocks until one tracked child process changes state, the way
// spec.md §4.11 describes the combined waitpid/sigwait loop. It is a thin
// blocking wrapper around wait4; the engine itself collects finished
// children with the non-blocking Manager.Reap below.
func Wait(pid int) (Result, error) {
	var ws syscall.WaitStatus
	wpid, err := syscall.Wait4(pid, &ws, 0, nil)
	if err != nil {
		return Result{}, err
	}
	res := Result{Pid: wpid}
	switch {
	case ws.Exited():
		res.ExitCode = ws.ExitStatus()
		res.Success = res.ExitCode == 0
	case ws.Signaled():
		res.Signal = ws.Signal()
	}
	return res, nil
}

// KillGroup sends sig to the process group led by pid (spec.md §4.11
// "Termination handler": "Kill every tracked pid via kill(-pid, SIGTERM)
// then SIGCONT").
func KillGroup(pid int, sig syscall.Signal) {
	_ = unix.Kill(-pid, sig)
}

// Reap non-blockingly collects every child that has changed state since the
// last call, the way a SIGCHLD handler's follow-up wait loop must (a single
// SIGCHLD can coalesce more than one child's exit). Call it once per SIGCHLD
// delivery on m.Signals().
func (m *Manager) Reap() []Result {
	var out []Result
	for {
		var ws syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &ws, syscall.WNOHANG, nil)
		if err != nil || pid <= 0 {
			return out
		}
		res := Result{Pid: pid}
		switch {
		case ws.Exited():
			res.ExitCode = ws.ExitStatus()
			res.Success = res.ExitCode == 0
		case ws.Signaled():
			res.Signal = ws.Signal()
		default:
			// Stopped/continued notifications: not a terminal state, keep
			// reaping but don't report it as a finished job.
			continue
		}
		out = append(out, res)
	}
}

// StartAndRegister starts spec's job and records its pid in m's table under
// owner; Register holds m's mutex so the pid table is never read mid-insert.
func (m *Manager) StartAndRegister(spec Spec, owner Owner) (*Job, error) {
	j, err := Start(spec)
	if err != nil {
		return nil, err
	}
	m.Register(j.Pid(), owner)
	return j, nil
}
