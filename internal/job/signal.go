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
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// caughtSignals are delivered to Manager's channel and trigger the
// termination handler (spec.md §4.11 "Caught signals").
var caughtSignals = []os.Signal{
	syscall.SIGTERM,
	syscall.SIGINT,
	syscall.SIGQUIT,
	syscall.SIGABRT,
	syscall.SIGSEGV,
	syscall.SIGPIPE,
	syscall.SIGILL,
	syscall.SIGHUP,
}

// productiveSignals wake the scheduling loop without themselves being a
// request to terminate (spec.md §4.11 "Productive signals"): SIGCHLD means
// a job finished, SIGUSR1 is stu's own "print status" request.
var productiveSignals = []os.Signal{
	syscall.SIGCHLD,
	syscall.SIGUSR1,
}

// Manager owns the pid table and the signal channel the main loop selects
// on, plus the async-signal-safe termination handler.
type Manager struct {
	Table *Table

	sigCh    chan os.Signal
	mu       sync.Mutex
	disableK bool // -K: never remove partial targets on termination

	onTerminate func(partial []string)
}

// NewManager returns a Manager with signal delivery wired up: caught and
// productive signals are both funneled into one channel, the way the
// original's single sigwait loop multiplexed both categories (spec.md
// §4.11). SIGTTIN/SIGTTOU are explicitly ignored so a backgrounded stu does
// not stop when a child job tries to read/write the controlling terminal.
func NewManager(disableRemoval bool) *Manager {
	m := &Manager{
		Table:    NewTable(),
		sigCh:    make(chan os.Signal, 64),
		disableK: disableRemoval,
	}
	signal.Notify(m.sigCh, caughtSignals...)
	signal.Notify(m.sigCh, productiveSignals...)
	signal.Ignore(syscall.SIGTTIN, syscall.SIGTTOU)
	return m
}

// SetTerminateHook installs the callback invoked with the list of
// known-partial output files just before a caught signal tears everything
// down. The engine wires its own bookkeeping of which FileExecutors are
// mid-build here; job stays unaware of executor types.
func (m *Manager) SetTerminateHook(f func(partial []string)) {
	m.onTerminate = f
}

// Signals returns the channel the main loop selects on alongside job exit
// notifications.
func (m *Manager) Signals() <-chan os.Signal { return m.sigCh }

// IsCaught reports whether sig is one of the terminating signals, as
// opposed to a merely productive one.
func IsCaught(sig os.Signal) bool {
	for _, s := range caughtSignals {
		if s == sig {
			return true
		}
	}
	return false
}

// Block runs f with the caught signals' delivery suspended for the
// duration, so a mutation of shared state (the pid table, the executor
// cache) cannot be interrupted midway by a handler that reads the same
// state (spec.md §4.11 "Signal blocker"). Suspending delivery via
// signal.Stop and re-arming with signal.Notify afterward has the same
// effect as blocking at the kernel level for a cooperative, single-
// threaded scheduler like this one: nothing else drains m.sigCh while f
// runs. Productive signals are left deliverable since they carry no state
// mutation of their own.
func (m *Manager) Block(f func()) {
	signal.Stop(m.sigCh)
	defer func() {
		signal.Notify(m.sigCh, caughtSignals...)
		signal.Notify(m.sigCh, productiveSignals...)
	}()
	f()
}

// Terminate implements spec.md §4.11's termination handler: every tracked
// job's whole process group is sent SIGTERM then SIGCONT (so a stopped
// child still receives and can act on the TERM), partial output files are
// unlinked unless -K was given, and the onTerminate callback, if set, is
// called with partial. Terminate does not exit the process itself.
func (m *Manager) Terminate(partial []string) {
	m.mu.Lock()
	pids := m.Table.Pids()
	m.mu.Unlock()

	for _, pid := range pids {
		KillGroup(pid, syscall.SIGTERM)
	}
	for _, pid := range pids {
		KillGroup(pid, syscall.SIGCONT)
	}

	if !m.disableK {
		for _, name := range partial {
			_ = os.Remove(name)
		}
	}

	if m.onTerminate != nil {
		m.onTerminate(partial)
	}
}

// Register adds pid to the table under the given owner, holding m's mutex
// so a concurrent reader never observes a half-inserted row.
func (m *Manager) Register(pid int, owner Owner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Table.Add(pid, owner)
}

// Unregister removes pid from the table.
func (m *Manager) Unregister(pid int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Table.Remove(pid)
}

// HandoverTTY gives the controlling terminal's foreground process group to
// pgid, used when exactly one job is outstanding and stu wants that job's
// process group to receive terminal signals/input directly (spec.md §4.11
// "Interactive TTY handoff"). It is a best-effort call: a non-interactive
// stdin (redirected from a file, or no controlling terminal at all) makes
// the ioctl fail harmlessly, which callers ignore.
func HandoverTTY(pgid int) {
	fd := int(os.Stdin.Fd())
	_ = unix.IoctlSetInt(fd, unix.TIOCSPGRP, pgid)
}

// RestoreTTY gives the foreground process group back to stu's own group,
// undoing a prior HandoverTTY once the handed-over job has finished.
func RestoreTTY() {
	HandoverTTY(unix.Getpgrp())
}
