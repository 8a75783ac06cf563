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

package frame

import "testing"

func TestFindOneEmptyAscending(t *testing.T) {
	p := NewPool(4, nil)
	f := p.FindOneEmpty()
	if f != 0 {
		t.Errorf("FindOneEmpty() = %d, want 0", f)
	}
	if err := p.Bind(uint32(f), 1, 10); err != nil {
		t.Fatalf("Bind() failed: %v", err)
	}
	f2 := p.FindOneEmpty()
	if f2 != 1 {
		t.Errorf("FindOneEmpty() = %d, want 1", f2)
	}
}

func TestClearFreesFrame(t *testing.T) {
	p := NewPool(2, nil)
	f := p.FindOneEmpty()
	p.Bind(uint32(f), 1, 0)
	if !p.IsValid(uint32(f)) {
		t.Fatalf("IsValid() should be true after Bind")
	}
	if err := p.Clear(uint32(f)); err != nil {
		t.Fatalf("Clear() failed: %v", err)
	}
	if p.IsValid(uint32(f)) {
		t.Errorf("IsValid() after Clear should be false")
	}
}

// LRU fairness: three frames, access sequence A B C A B D, eviction
// selects C.
func TestLRUFairness(t *testing.T) {
	p := NewPool(3, nil)

	bind := func(label string, vp int) uint32 {
		f := p.FindOneEmpty()
		if f == -1 {
			t.Fatalf("pool unexpectedly full before binding %s", label)
		}
		if err := p.Bind(uint32(f), 0, vp); err != nil {
			t.Fatalf("Bind(%s) failed: %v", label, err)
		}
		return uint32(f)
	}
	touch := func(f uint32) {
		if err := p.Bind(f, 0, 0); err != nil {
			t.Fatalf("touch failed: %v", err)
		}
	}

	a := bind("A", 0)
	b := bind("B", 1)
	c := bind("C", 2)
	touch(a)
	touch(b)
	// D must evict the least-recently-used frame, which is C.
	victim := p.SwapOne()
	if uint32(victim) != c {
		t.Errorf("SwapOne() = %d, want frame %d (C)", victim, c)
	}
}

func TestLRUTieBreakLowestIndex(t *testing.T) {
	l := NewLRU(4)
	if got := l.FindOneToSwap(); got != 0 {
		t.Errorf("FindOneToSwap() on an untouched pool = %d, want 0", got)
	}
}
