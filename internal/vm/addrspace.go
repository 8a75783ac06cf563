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

// Package vm implements the per-process address space, the shared frame
// pool's demand-paging consumer, and the page fault handler of §4.6.
//
// Grounded on _examples/original_source/code/userprog/addrspace.h (the
// page table + executable-file-handle + Translate shape) and
// _examples/original_source/code/vm/MemoryManager.cc's pageFaultHandler
// (the six-step fault algorithm: find-or-evict a frame, write back if
// dirty, invalidate the evicted owner's TLB entry and PTE, bind and load
// the new page).
package vm

import (
	"fmt"

	"github.com/asig/nsim/internal/errs"
)

// PageSize matches the classic Nachos convention of one page per disk
// sector.
const PageSize = 128

// HeaderSize is the executable-image header every page offset is computed
// past, the Go-side analog of Nachos's NoffHeader.
const HeaderSize = 32

// PageTableEntry is one virtual-to-physical binding.
type PageTableEntry struct {
	VirtualPage  int
	PhysicalPage int
	Valid        bool
	Use          bool
	Dirty        bool
	ReadOnly     bool
}

// Executable is the byte-addressable collaborator an address space
// demand-pages from; internal/filesystem's File satisfies it.
type Executable interface {
	ReadAt(buf []byte, offset uint32) (int, error)
	WriteAt(buf []byte, offset uint32) (int, error)
}

// AddrSpace is one process's page table plus a handle to the executable
// image it is paged in from.
type AddrSpace struct {
	ThreadID  int
	pageTable []PageTableEntry
	exe       Executable
}

// NewAddrSpace returns an address space of numPages, every entry initially
// invalid.
func NewAddrSpace(threadID int, exe Executable, numPages int) *AddrSpace {
	table := make([]PageTableEntry, numPages)
	for i := range table {
		table[i].VirtualPage = i
	}
	return &AddrSpace{ThreadID: threadID, pageTable: table, exe: exe}
}

// NumPages returns the address space's page count.
func (as *AddrSpace) NumPages() int {
	return len(as.pageTable)
}

// PTE returns a copy of the page table entry at virtualPage.
func (as *AddrSpace) PTE(virtualPage int) (PageTableEntry, error) {
	if virtualPage < 0 || virtualPage >= len(as.pageTable) {
		return PageTableEntry{}, fmt.Errorf("vm: virtual page %d out of range: %w", virtualPage, errs.BadArgument)
	}
	return as.pageTable[virtualPage], nil
}

// Translate converts a virtual address to a physical one. It never faults
// a page in itself: if the owning entry is invalid, it reports pageFault
// so the caller can run the fault handler and retry, matching the
// original's Translate/pageFaultHandler split (Translate returns an
// exception type; the exception handler drives the retry loop).
func (as *AddrSpace) Translate(vaddr uint32, write bool) (paddr uint32, pageFault bool, err error) {
	vpn := int(vaddr / PageSize)
	offset := vaddr % PageSize
	if vpn < 0 || vpn >= len(as.pageTable) {
		return 0, false, fmt.Errorf("vm: vaddr %d out of range: %w", vaddr, errs.BadArgument)
	}
	pte := &as.pageTable[vpn]
	if !pte.Valid {
		return 0, true, nil
	}
	if write && pte.ReadOnly {
		return 0, false, fmt.Errorf("vm: write to read-only page %d: %w", vpn, errs.BadArgument)
	}
	pte.Use = true
	if write {
		pte.Dirty = true
	}
	return uint32(pte.PhysicalPage)*PageSize + offset, false, nil
}
