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

package vm

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/asig/nsim/internal/errs"
	"github.com/asig/nsim/internal/frame"
)

// TLBInvalidator is the collaborator notified whenever the fault handler
// evicts a page, so stale translations never outlive their page table
// entry. internal/tlb's TLB satisfies it.
type TLBInvalidator interface {
	Invalidate(threadID, vpn int)
}

// Manager creates and destroys address spaces and resolves page faults
// against a shared frame pool. It also owns the simulated physical
// memory the frame pool's indices address — the Go-side stand-in for the
// original's kernel->machine->mainMemory array.
type Manager struct {
	frames *frame.Pool
	mem    []byte
	spaces map[int]*AddrSpace
	tlb    TLBInvalidator
}

// NewManager creates a manager over a frame pool of the given size. tlb
// may be nil if no TLB is in use.
func NewManager(poolSize uint32, tlb TLBInvalidator) *Manager {
	return &Manager{
		frames: frame.NewPool(poolSize, nil),
		mem:    make([]byte, uint32(poolSize)*PageSize),
		spaces: make(map[int]*AddrSpace),
		tlb:    tlb,
	}
}

// CreateAddrSpace returns threadID's address space, creating it from exe
// if it doesn't exist yet. Per spec.md §9, there is no global cap on the
// sum of virtual pages across processes (the original's MAX_VIRT_PAGES
// check is dropped; see DESIGN.md).
func (m *Manager) CreateAddrSpace(threadID int, exe Executable, numPages int) *AddrSpace {
	if as, ok := m.spaces[threadID]; ok {
		return as
	}
	as := NewAddrSpace(threadID, exe, numPages)
	m.spaces[threadID] = as
	return as
}

// AddrSpaceOf returns threadID's address space, or nil.
func (m *Manager) AddrSpaceOf(threadID int) *AddrSpace {
	return m.spaces[threadID]
}

// DestroyAddrSpace frees every frame threadID's address space owns and
// forgets it.
func (m *Manager) DestroyAddrSpace(threadID int) {
	as, ok := m.spaces[threadID]
	if !ok {
		return
	}
	for _, pte := range as.pageTable {
		if pte.Valid {
			m.frames.Clear(uint32(pte.PhysicalPage))
		}
	}
	delete(m.spaces, threadID)
}

// PageFault resolves a fault on virtualPage for threadID, per §4.6's
// six-step algorithm.
func (m *Manager) PageFault(threadID int, virtualPage int) error {
	as, ok := m.spaces[threadID]
	if !ok {
		return fmt.Errorf("vm: no address space for thread %d: %w", threadID, errs.BadArgument)
	}
	if virtualPage < 0 || virtualPage >= len(as.pageTable) {
		return fmt.Errorf("vm: virtual page %d out of range: %w", virtualPage, errs.BadArgument)
	}
	if as.pageTable[virtualPage].Valid {
		return nil // step 1: already valid, nothing to do
	}

	f := m.frames.FindOneEmpty() // step 2
	if f == -1 {
		victim := m.frames.SwapOne() // step 3
		owner, err := m.frames.Owner(uint32(victim))
		if err != nil {
			return err
		}
		victimSpace, ok := m.spaces[owner.ThreadID]
		if !ok {
			return fmt.Errorf("vm: frame %d owner thread %d has no address space", victim, owner.ThreadID)
		}
		victimPTE := &victimSpace.pageTable[owner.VirtualPage]

		if victimPTE.Dirty {
			off := uint32(owner.VirtualPage)*PageSize + HeaderSize
			buf := m.mem[uint32(victim)*PageSize : uint32(victim)*PageSize+PageSize]
			if _, err := victimSpace.exe.WriteAt(buf, off); err != nil {
				return fmt.Errorf("vm: write back dirty frame %d: %w", victim, err)
			}
		}
		if m.tlb != nil {
			m.tlb.Invalidate(owner.ThreadID, owner.VirtualPage)
		}
		victimPTE.Valid = false
		f = victim

		log.Debug().Msgf("vm: evicted thread=%d vpage=%d from frame=%d for thread=%d vpage=%d",
			owner.ThreadID, owner.VirtualPage, victim, threadID, virtualPage)
	}

	if err := m.frames.Bind(uint32(f), threadID, virtualPage); err != nil { // step 4
		return err
	}
	as.pageTable[virtualPage] = PageTableEntry{ // step 5
		VirtualPage:  virtualPage,
		PhysicalPage: f,
		Valid:        true,
		Use:          false,
		Dirty:        false,
		ReadOnly:     as.pageTable[virtualPage].ReadOnly,
	}

	off := uint32(virtualPage)*PageSize + HeaderSize // step 6
	buf := m.mem[uint32(f)*PageSize : uint32(f)*PageSize+PageSize]
	if _, err := as.exe.ReadAt(buf, off); err != nil {
		return fmt.Errorf("vm: read page %d from executable: %w", virtualPage, err)
	}
	return nil
}

// Frames exposes the underlying pool, for inspection in tests and status
// reporting.
func (m *Manager) Frames() *frame.Pool {
	return m.frames
}
