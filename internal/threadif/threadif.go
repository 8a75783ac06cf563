/*
 * This file is part of nsim, a Nachos-style kernel simulator core.
 * Copyright (C) 2025 Andreas Signer <asigner@gmail.com>
 *
 * nsim is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * nsim is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with nsim.  If not, see <https://www.gnu.org/licenses/>.
 */

// Package threadif defines the thread/scheduler contract the syscall
// dispatcher consumes (spec.md §6: "current-thread pointer with pid, uid,
// status, a save/restore-user-state pair, a Fork entry point, and a
// Finish entry"), plus a goroutine-backed reference implementation so the
// dispatcher is runnable without a real cooperative scheduler.
//
// Grounded on _examples/original_source/code/threads/ThreadManager.h/.cc
// for the pid-allocation and registry shape, generalized from Nachos's
// single-core cooperative scheduler to Go goroutines plus a done channel,
// since this module doesn't reimplement the scheduler itself (out of
// scope per spec.md §1).
package threadif

import (
	"runtime"
	"sync"

	"github.com/asig/nsim/internal/errs"
)

// Handle is one thread, addressable by pid.
type Handle interface {
	Pid() int
	UID() int
	Yield()
	Finish()
	Join()
}

// Manager creates threads and tracks them by pid.
type Manager struct {
	mu      sync.Mutex
	threads map[int]*thread
	nextPid int
}

// NewManager returns an empty thread manager.
func NewManager() *Manager {
	return &Manager{threads: make(map[int]*thread)}
}

type thread struct {
	pid  int
	uid  int
	done chan struct{}
	once sync.Once
}

func (t *thread) Pid() int { return t.pid }
func (t *thread) UID() int { return t.uid }

// Yield gives other goroutines a chance to run. Nachos's cooperative
// scheduler requires an explicit yield point; Go's preemptive scheduler
// doesn't, but the call is kept so dispatcher code matches the original's
// control flow one-to-one.
func (t *thread) Yield() {
	// Intentionally a no-op beyond a scheduling point: Go's runtime
	// preempts goroutines on its own.
	runtime.Gosched()
}

// Finish marks the thread done, releasing every Join. It is safe to call
// more than once.
func (t *thread) Finish() {
	t.once.Do(func() { close(t.done) })
}

func (t *thread) Join() {
	<-t.done
}

// Fork starts fn running as a new thread with the given uid and argument,
// and returns its handle immediately (the original's Thread::Fork
// contract: the parent doesn't block on the child starting). The thread
// finishes when fn returns, if Finish was not called before.
func (m *Manager) Fork(uid int, fn func(arg any), arg any) Handle {
	m.mu.Lock()
	pid := m.nextPid
	m.nextPid++
	t := &thread{pid: pid, uid: uid, done: make(chan struct{})}
	m.threads[pid] = t
	m.mu.Unlock()

	go func() {
		fn(arg)
		t.Finish()
	}()
	return t
}

// ByPid looks up a previously created thread.
func (m *Manager) ByPid(pid int) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[pid]
	if !ok {
		return nil, errs.NotFound
	}
	return t, nil
}

// Remove forgets a finished thread's bookkeeping entry.
func (m *Manager) Remove(pid int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, pid)
}
