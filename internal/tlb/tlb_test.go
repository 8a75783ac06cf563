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

package tlb

import "testing"

// Scenario 6: per-process tagging. Installing a translation for process P
// must not be visible to process Q, even for the same vpn.
func TestPerProcessTagging(t *testing.T) {
	tl := New()
	const P, Q = 1, 2
	const vpn, ppn = 5, 7

	tl.Update(P, vpn, ppn)

	if _, ok := tl.Lookup(Q, uint32(vpn)*PageSize+3); ok {
		t.Errorf("Lookup(Q) should miss an entry installed for P")
	}
	paddr, ok := tl.Lookup(P, uint32(vpn)*PageSize+3)
	if !ok {
		t.Fatalf("Lookup(P) should hit")
	}
	if want := uint32(ppn)*PageSize + 3; paddr != want {
		t.Errorf("Lookup(P) = %d, want %d", paddr, want)
	}
}

func TestSetIndexing(t *testing.T) {
	tl := New()
	// vpn 1 and vpn 5 share set 1 (vpn & 3) but differ in tag (vpn >> 2).
	tl.Update(1, 1, 10)
	tl.Update(1, 5, 20)

	p1, ok1 := tl.Lookup(1, 1*PageSize)
	p5, ok5 := tl.Lookup(1, 5*PageSize)
	if !ok1 || !ok5 {
		t.Fatalf("both entries should still be present: ok1=%v ok5=%v", ok1, ok5)
	}
	if p1 != 10*PageSize || p5 != 20*PageSize {
		t.Errorf("got p1=%d p5=%d, want %d and %d", p1, p5, 10*PageSize, 20*PageSize)
	}
}

func TestUpdateEvictsLeastRecentlyUsedWay(t *testing.T) {
	tl := New()
	// Fill all four ways of set 0 with vpns 0, 4, 8, 12.
	for i, vpn := range []int{0, 4, 8, 12} {
		tl.Update(1, vpn, i+1)
	}
	// Touch everything except vpn 4, so it becomes the LRU victim.
	tl.Lookup(1, 0*PageSize)
	tl.Lookup(1, 8*PageSize)
	tl.Lookup(1, 12*PageSize)

	// A fifth entry in the same set must evict vpn 4's way.
	tl.Update(1, 16, 99)

	if _, ok := tl.Lookup(1, 4*PageSize); ok {
		t.Errorf("vpn 4 should have been evicted as the LRU way")
	}
	if _, ok := tl.Lookup(1, 0*PageSize); !ok {
		t.Errorf("vpn 0 should still be present")
	}
}

func TestInvalidate(t *testing.T) {
	tl := New()
	tl.Update(1, 5, 7)
	tl.Update(2, 5, 9) // same vpn, different set-slot occupant via a different thread

	tl.Invalidate(1, 5)

	if _, ok := tl.Lookup(1, 5*PageSize); ok {
		t.Errorf("Lookup after Invalidate(1, 5) should miss")
	}
	if _, ok := tl.Lookup(2, 5*PageSize); !ok {
		t.Errorf("Invalidate(1, 5) must not touch thread 2's entry")
	}
}

func TestInvalidateUnknownEntryIsNoop(t *testing.T) {
	tl := New()
	tl.Invalidate(1, 5) // never installed; must not panic
}
