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

package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/asig/nsim/internal/disk"
	"github.com/asig/nsim/internal/filesystem"
	"github.com/asig/nsim/internal/syscall"
	"github.com/asig/nsim/internal/threadif"
)

// simMachine is a headless stand-in for the simulator's register file and
// user address space: enough of syscall.Machine to drive a trace file
// without a real CPU core, since emulating the MIPS-style ISA itself is
// out of scope (spec.md §1).
type simMachine struct {
	regs [8]uint32
	mem  []byte
	pc   int
}

func newSimMachine() *simMachine {
	return &simMachine{mem: make([]byte, 64*1024)}
}

func (m *simMachine) ReadRegister(n int) uint32     { return m.regs[n] }
func (m *simMachine) WriteRegister(n int, v uint32) { m.regs[n] = v }
func (m *simMachine) ReadMem(addr uint32) (byte, error) {
	if int(addr) >= len(m.mem) {
		return 0, fmt.Errorf("run: read past simulated memory bound at %d", addr)
	}
	return m.mem[addr], nil
}
func (m *simMachine) WriteMem(addr uint32, b byte) error {
	if int(addr) >= len(m.mem) {
		return fmt.Errorf("run: write past simulated memory bound at %d", addr)
	}
	m.mem[addr] = b
	return nil
}
func (m *simMachine) AdvancePC() { m.pc++ }
func (m *simMachine) Halt()      {}

// putString writes a zero-terminated string at a fresh region past the
// previous allocation, scratch-allocator style, and returns its address.
func (m *simMachine) putString(cursor *uint32, s string) uint32 {
	addr := *cursor
	copy(m.mem[addr:], s)
	m.mem[addr+uint32(len(s))] = 0
	*cursor = addr + uint32(len(s)) + 1
	return addr
}

var runCmd = &cobra.Command{
	Use:   "run IMAGE TRACE",
	Short: "Run a syscall trace against a disk image's filesystem",
	Long: `Run interprets a line-oriented trace of syscalls against IMAGE, driving
internal/syscall.Dispatcher the same way a trapped user program would.
Supported instructions (one per line, blank lines and '#' comments ignored):

  HALT
  ADD a b
  CREATE name
  OPEN name -> prints the resulting file descriptor
  WRITE fd text
  READ fd n
  SEEK fd pos
  CLOSE fd
  REMOVE name
  FORK
  YIELD
  JOIN pid
  EXIT
`,
	Args:                  cobra.ExactArgs(2),
	DisableFlagsInUseLine: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := disk.Open(args[0])
		if err != nil {
			return err
		}
		defer d.Close()
		fs, err := filesystem.Open(d)
		if err != nil {
			return err
		}

		dispatcher := syscall.NewDispatcher(fs, threadif.NewManager())
		m := newSimMachine()
		var cursor uint32 = 1024
		threadID := 0

		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			fields := strings.Fields(line)
			op := strings.ToUpper(fields[0])
			args := fields[1:]

			switch op {
			case "HALT":
				m.WriteRegister(syscall.RegSyscall, syscall.SCHalt)
			case "ADD":
				a, _ := strconv.Atoi(args[0])
				b, _ := strconv.Atoi(args[1])
				m.WriteRegister(syscall.RegSyscall, syscall.SCAdd)
				m.WriteRegister(syscall.RegArg1, uint32(a))
				m.WriteRegister(syscall.RegArg2, uint32(b))
			case "CREATE":
				m.WriteRegister(syscall.RegSyscall, syscall.SCCreate)
				m.WriteRegister(syscall.RegArg1, m.putString(&cursor, args[0]))
			case "OPEN":
				m.WriteRegister(syscall.RegSyscall, syscall.SCOpen)
				m.WriteRegister(syscall.RegArg1, m.putString(&cursor, args[0]))
			case "WRITE":
				fd, _ := strconv.Atoi(args[0])
				text := strings.Join(args[1:], " ")
				addr := m.putString(&cursor, text)
				m.WriteRegister(syscall.RegSyscall, syscall.SCWrite)
				m.WriteRegister(syscall.RegArg1, addr)
				m.WriteRegister(syscall.RegArg2, uint32(len(text)))
				m.WriteRegister(syscall.RegArg3, uint32(fd))
			case "READ":
				fd, _ := strconv.Atoi(args[0])
				n, _ := strconv.Atoi(args[1])
				addr := cursor
				cursor += uint32(n)
				m.WriteRegister(syscall.RegSyscall, syscall.SCRead)
				m.WriteRegister(syscall.RegArg1, addr)
				m.WriteRegister(syscall.RegArg2, uint32(n))
				m.WriteRegister(syscall.RegArg3, uint32(fd))
			case "SEEK":
				fd, _ := strconv.Atoi(args[0])
				pos, _ := strconv.Atoi(args[1])
				m.WriteRegister(syscall.RegSyscall, syscall.SCSeek)
				m.WriteRegister(syscall.RegArg1, uint32(pos))
				m.WriteRegister(syscall.RegArg2, uint32(fd))
			case "CLOSE":
				fd, _ := strconv.Atoi(args[0])
				m.WriteRegister(syscall.RegSyscall, syscall.SCClose)
				m.WriteRegister(syscall.RegArg1, uint32(fd))
			case "REMOVE":
				m.WriteRegister(syscall.RegSyscall, syscall.SCRemove)
				m.WriteRegister(syscall.RegArg1, m.putString(&cursor, args[0]))
			case "FORK":
				m.WriteRegister(syscall.RegSyscall, syscall.SCFork)
			case "YIELD":
				m.WriteRegister(syscall.RegSyscall, syscall.SCYield)
			case "JOIN":
				pid, _ := strconv.Atoi(args[0])
				m.WriteRegister(syscall.RegSyscall, syscall.SCJoin)
				m.WriteRegister(syscall.RegArg1, uint32(pid))
			case "EXIT":
				m.WriteRegister(syscall.RegSyscall, syscall.SCExit)
			default:
				return fmt.Errorf("run: unknown instruction %q", op)
			}

			if err := dispatcher.Dispatch(m, threadID); err != nil {
				return fmt.Errorf("run: %q: %w", line, err)
			}
			if op == "READ" {
				n, _ := strconv.Atoi(args[1])
				addr := m.ReadRegister(syscall.RegArg1)
				got := m.ReadRegister(syscall.RegSyscall)
				fmt.Printf("%s -> %q\n", line, string(m.mem[addr:addr+min(got, uint32(n))]))
			} else {
				fmt.Printf("%s -> r2=%d\n", line, int32(m.ReadRegister(syscall.RegSyscall)))
			}
		}
		return scanner.Err()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
