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

// Package syscall implements the dispatcher that turns a trapped user-mode
// syscall into a call against the filesystem and thread subsystems.
//
// Grounded on _examples/original_source/code/userprog/exception.cc:
// register 2 carries the syscall code and doubles as the return-value
// register, registers 4-7 carry up to four arguments, FS-family codes
// (Create/Open/Read/Write/Seek/Close/Remove) are grouped into one
// handler and thread-family codes (Exec/Fork/Yield/Join/Exit) into
// another, a zero-terminated string is read from user memory one byte at
// a time, and the program counter is advanced after every handled call —
// including unhandled ones, to avoid livelock (spec.md §4.8).
package syscall

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/asig/nsim/internal/directory"
	"github.com/asig/nsim/internal/errs"
	"github.com/asig/nsim/internal/fileheader"
	"github.com/asig/nsim/internal/filesystem"
	"github.com/asig/nsim/internal/threadif"
)

// Register numbers, per the machine's calling convention.
const (
	RegSyscall = 2
	RegArg1    = 4
	RegArg2    = 5
	RegArg3    = 6
	RegArg4    = 7
)

// Syscall codes routed by Dispatch.
const (
	SCHalt = iota + 1
	SCAdd
	SCCreate
	SCOpen
	SCRead
	SCWrite
	SCSeek
	SCClose
	SCRemove
	SCExec
	SCFork
	SCYield
	SCJoin
	SCExit
)

// Machine is the simulator's user-mode boundary: register access and
// byte-granular user memory access. The dispatcher advances the PC once
// for every code it is given, halt and unhandled codes included.
type Machine interface {
	ReadRegister(n int) uint32
	WriteRegister(n int, v uint32)
	ReadMem(addr uint32) (byte, error)
	WriteMem(addr uint32, b byte) error
	AdvancePC()
	Halt()
}

// openFile is one entry in the dispatcher's file-descriptor table: a file
// handle plus the byte cursor Read/Write/Seek advance.
type openFile struct {
	f   *filesystem.File
	pos uint32
}

// Dispatcher routes trapped syscalls to the filesystem and thread
// subsystems. It owns the open-file-descriptor table; VM/TLB faults are
// handled by the caller (the simulator's memory-access path) before a
// syscall's ReadMem/WriteMem ever reaches here.
type Dispatcher struct {
	fs      *filesystem.FileSystem
	threads *threadif.Manager

	openFiles map[int]*openFile
	nextFD    int
}

// NewDispatcher returns a dispatcher over fs and threads.
func NewDispatcher(fs *filesystem.FileSystem, threads *threadif.Manager) *Dispatcher {
	return &Dispatcher{
		fs:        fs,
		threads:   threads,
		openFiles: make(map[int]*openFile),
		nextFD:    1,
	}
}

// Dispatch handles one trapped syscall for threadID, the thread the trap
// occurred on. It always advances the PC before returning, including for
// unhandled codes.
func (d *Dispatcher) Dispatch(m Machine, threadID int) error {
	code := m.ReadRegister(RegSyscall)
	defer m.AdvancePC()

	switch code {
	case SCHalt:
		log.Info().Msg("syscall: halt requested by user program")
		m.Halt()
		return nil
	case SCAdd:
		a := int32(m.ReadRegister(RegArg1))
		b := int32(m.ReadRegister(RegArg2))
		m.WriteRegister(RegSyscall, uint32(a+b))
		return nil
	case SCCreate, SCOpen, SCRead, SCWrite, SCSeek, SCClose, SCRemove:
		return d.fileSyscall(m, code)
	case SCExec, SCFork, SCYield, SCJoin, SCExit:
		return d.threadSyscall(m, code, threadID)
	default:
		log.Error().Uint32("code", code).Msg("syscall: unhandled code")
		m.WriteRegister(RegSyscall, ^uint32(0))
		return nil
	}
}

func (d *Dispatcher) fileSyscall(m Machine, code uint32) error {
	switch code {
	case SCCreate:
		name, err := readString(m, m.ReadRegister(RegArg1))
		if err != nil {
			return errors.Wrap(err, "syscall: create: read name")
		}
		err = d.fs.Create(name, fileheader.File)
		m.WriteRegister(RegSyscall, boolReg(err == nil))
		return nil

	case SCOpen:
		name, err := readString(m, m.ReadRegister(RegArg1))
		if err != nil {
			return errors.Wrap(err, "syscall: open: read name")
		}
		f, err := d.fs.Open(name)
		if err != nil {
			m.WriteRegister(RegSyscall, ^uint32(0))
			return nil
		}
		fd := d.nextFD
		d.nextFD++
		d.openFiles[fd] = &openFile{f: f}
		m.WriteRegister(RegSyscall, uint32(fd))
		return nil

	case SCRead:
		addr := m.ReadRegister(RegArg1)
		n := m.ReadRegister(RegArg2)
		fd := int(m.ReadRegister(RegArg3))
		of, ok := d.openFiles[fd]
		if !ok {
			m.WriteRegister(RegSyscall, ^uint32(0))
			return nil
		}
		buf := make([]byte, n)
		got, err := of.f.ReadAt(buf, of.pos)
		if err != nil {
			return errors.Wrap(err, "syscall: read")
		}
		for i := 0; i < got; i++ {
			if err := m.WriteMem(addr+uint32(i), buf[i]); err != nil {
				return errors.Wrap(err, "syscall: read: write user memory")
			}
		}
		of.pos += uint32(got)
		m.WriteRegister(RegSyscall, uint32(got))
		return nil

	case SCWrite:
		addr := m.ReadRegister(RegArg1)
		n := m.ReadRegister(RegArg2)
		fd := int(m.ReadRegister(RegArg3))
		of, ok := d.openFiles[fd]
		if !ok {
			m.WriteRegister(RegSyscall, ^uint32(0))
			return nil
		}
		buf := make([]byte, n)
		for i := uint32(0); i < n; i++ {
			b, err := m.ReadMem(addr + i)
			if err != nil {
				return errors.Wrap(err, "syscall: write: read user memory")
			}
			buf[i] = b
		}
		put, err := of.f.WriteAt(buf, of.pos)
		if err != nil {
			return errors.Wrap(err, "syscall: write")
		}
		of.pos += uint32(put)
		m.WriteRegister(RegSyscall, uint32(put))
		return nil

	case SCSeek:
		pos := m.ReadRegister(RegArg1)
		fd := int(m.ReadRegister(RegArg2))
		of, ok := d.openFiles[fd]
		if !ok {
			m.WriteRegister(RegSyscall, ^uint32(0))
			return nil
		}
		of.pos = pos
		m.WriteRegister(RegSyscall, 0)
		return nil

	case SCClose:
		fd := int(m.ReadRegister(RegArg1))
		delete(d.openFiles, fd)
		m.WriteRegister(RegSyscall, 1)
		return nil

	case SCRemove:
		name, err := readString(m, m.ReadRegister(RegArg1))
		if err != nil {
			return errors.Wrap(err, "syscall: remove: read name")
		}
		err = d.fs.Remove(name)
		m.WriteRegister(RegSyscall, boolReg(err == nil))
		return nil
	}
	return fmt.Errorf("syscall: unreachable file syscall code %d", code)
}

func (d *Dispatcher) threadSyscall(m Machine, code uint32, threadID int) error {
	switch code {
	case SCFork, SCExec:
		arg := m.ReadRegister(RegArg1)
		h := d.threads.Fork(threadID, func(any) {}, arg)
		m.WriteRegister(RegSyscall, uint32(h.Pid()))
		return nil

	case SCJoin:
		childPid := int(m.ReadRegister(RegArg1))
		h, err := d.threads.ByPid(childPid)
		if err != nil {
			if errors.Is(err, errs.NotFound) {
				m.WriteRegister(RegSyscall, ^uint32(0))
				return nil
			}
			return errors.Wrap(err, "syscall: join")
		}
		h.Join()
		d.threads.Remove(childPid)
		m.WriteRegister(RegSyscall, 0)
		return nil

	case SCYield:
		if h, err := d.threads.ByPid(threadID); err == nil {
			h.Yield()
		}
		return nil

	case SCExit:
		if h, err := d.threads.ByPid(threadID); err == nil {
			h.Finish()
		}
		return nil
	}
	return fmt.Errorf("syscall: unreachable thread syscall code %d", code)
}

// readString reads a zero-terminated string from user memory, one byte at
// a time, truncated to directory.FileNameMaxLen.
func readString(m Machine, addr uint32) (string, error) {
	buf := make([]byte, 0, directory.FileNameMaxLen)
	for i := 0; i < directory.FileNameMaxLen; i++ {
		b, err := m.ReadMem(addr + uint32(i))
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		buf = append(buf, b)
	}
	return string(buf), nil
}

func boolReg(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
