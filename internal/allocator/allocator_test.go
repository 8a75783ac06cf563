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

package allocator

import (
	"path/filepath"
	"testing"

	"github.com/asig/nsim/internal/disk"
)

func TestMarkClearTest(t *testing.T) {
	a := New(8)
	if a.Test(3) {
		t.Fatalf("sector 3 should start free")
	}
	if err := a.Mark(3); err != nil {
		t.Fatalf("Mark(3) failed: %v", err)
	}
	if !a.Test(3) {
		t.Errorf("Test(3) after Mark should be true")
	}
	if err := a.Clear(3); err != nil {
		t.Fatalf("Clear(3) failed: %v", err)
	}
	if a.Test(3) {
		t.Errorf("Test(3) after Clear should be false")
	}
}

func TestMarkOutOfRange(t *testing.T) {
	a := New(4)
	if err := a.Mark(4); err == nil {
		t.Errorf("Mark(4) on a 4-sector map should fail")
	}
}

func TestFindAndSetAscending(t *testing.T) {
	a := New(4)
	a.Mark(0)
	got := a.FindAndSet()
	if got != 1 {
		t.Errorf("FindAndSet() = %d, want 1 (lowest free)", got)
	}
	a.Mark(3)
	got = a.FindAndSet()
	if got != 2 {
		t.Errorf("FindAndSet() = %d, want 2", got)
	}
	if got := a.FindAndSet(); got != -1 {
		t.Errorf("FindAndSet() on a full map = %d, want -1", got)
	}
}

func TestNumClear(t *testing.T) {
	a := New(10)
	if got := a.NumClear(); got != 10 {
		t.Errorf("NumClear() = %d, want 10", got)
	}
	a.Mark(0)
	a.Mark(5)
	if got := a.NumClear(); got != 8 {
		t.Errorf("NumClear() = %d, want 8", got)
	}
}

func TestFetchWriteBackRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.img")
	numSectors := uint32(64)
	base := uint32(3)
	d, err := disk.Create(path, base+NumMapSectors(numSectors)+1)
	if err != nil {
		t.Fatalf("disk.Create() failed: %v", err)
	}
	defer d.Close()

	a := New(numSectors)
	a.Mark(0)
	a.Mark(1)
	a.Mark(2)
	a.Mark(40)
	if err := a.WriteBackTo(d, base); err != nil {
		t.Fatalf("WriteBackTo() failed: %v", err)
	}

	b := New(numSectors)
	if err := b.FetchFrom(d, base); err != nil {
		t.Fatalf("FetchFrom() failed: %v", err)
	}
	for _, s := range []uint32{0, 1, 2, 40} {
		if !b.Test(s) {
			t.Errorf("Test(%d) after round trip = false, want true", s)
		}
	}
	if got, want := b.NumClear(), a.NumClear(); got != want {
		t.Errorf("NumClear() after round trip = %d, want %d", got, want)
	}
}

// allocate/deallocate law: a sequence of Mark/Clear returns the map to its
// pre-allocate state.
func TestAllocateDeallocateLaw(t *testing.T) {
	a := New(16)
	a.Mark(1)
	before := a.NumClear()

	var marked []int
	for i := 0; i < 5; i++ {
		s := a.FindAndSet()
		if s == -1 {
			t.Fatalf("unexpected full map")
		}
		marked = append(marked, s)
	}
	for _, s := range marked {
		a.Clear(uint32(s))
	}

	if got := a.NumClear(); got != before {
		t.Errorf("NumClear() after allocate+deallocate = %d, want %d", got, before)
	}
}
