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

// Package tlb implements a 4-way set-associative translation cache, tagged
// per process so one thread's stale entries can never satisfy another
// thread's lookup.
//
// Grounded on _examples/original_source/code/machine/TLBManager.cc: four
// sets of four ways, set = vpn & 3, tag = vpn >> 2, per-way LRU counter
// incremented for every valid way on each update of that set, and reset
// to 0 on the way that a lookup hits or an update installs.
package tlb

import "github.com/asig/nsim/internal/vm"

const (
	numSets = 4
	numWays = 4
)

// PageSize matches vm.PageSize; kept local so this package has no import
// cycle back to vm for anything beyond the TLBInvalidator contract it
// satisfies.
const PageSize = vm.PageSize

type entry struct {
	tag      uint32
	ppn      int
	valid    bool
	lru      int
	threadID int
}

// TLB is a 4x4 set-associative cache of virtual-to-physical translations.
type TLB struct {
	sets [numSets][numWays]entry
}

// New returns an empty TLB.
func New() *TLB {
	t := &TLB{}
	for s := range t.sets {
		for w := range t.sets[s] {
			t.sets[s][w].threadID = -1
		}
	}
	return t
}

func split(vpn int) (set int, tag uint32) {
	set = vpn & (numSets - 1)
	tag = uint32(vpn>>2) & 0x3FFFFFFF
	return
}

// Lookup translates a virtual address for threadID. It returns
// (physAddr, true) on a hit, resetting that way's LRU counter; (0, false)
// on a miss, which the caller treats as a fault and resolves via the VM
// manager before retrying.
func (t *TLB) Lookup(threadID int, vaddr uint32) (uint32, bool) {
	vpn := int(vaddr / PageSize)
	offset := vaddr % PageSize
	set, tag := split(vpn)

	for i := range t.sets[set] {
		e := &t.sets[set][i]
		if e.valid && e.tag == tag && e.threadID == threadID {
			e.lru = 0
			return uint32(e.ppn)*PageSize + offset, true
		}
	}
	return 0, false
}

// Update installs a (vpn, ppn) translation for threadID, evicting the
// first invalid way in the target set, or else the way with the largest
// LRU counter. Every valid way in the set is aged by one during the scan.
func (t *TLB) Update(threadID int, vpn int, ppn int) {
	set, tag := split(vpn)
	ways := &t.sets[set]

	invalid, oldest := -1, -1
	for i := range ways {
		if !ways[i].valid {
			if invalid == -1 {
				invalid = i
			}
			continue
		}
		ways[i].lru++
		if oldest == -1 || ways[i].lru > ways[oldest].lru {
			oldest = i
		}
	}
	index := invalid
	if index == -1 {
		index = oldest
	}

	ways[index] = entry{tag: tag, ppn: ppn, valid: true, lru: 0, threadID: threadID}
}

// Invalidate clears every way in vpn's set whose tag and thread match,
// per §5's ordering invariant: the fault handler must invalidate the TLB
// before any subsequent translation observes the evicted page as valid.
func (t *TLB) Invalidate(threadID int, vpn int) {
	set, tag := split(vpn)
	for i := range t.sets[set] {
		e := &t.sets[set][i]
		if e.valid && e.tag == tag && e.threadID == threadID {
			e.valid = false
		}
	}
}
