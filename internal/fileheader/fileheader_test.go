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

package fileheader

import (
	"path/filepath"
	"testing"

	"github.com/asig/nsim/internal/allocator"
	"github.com/asig/nsim/internal/disk"
)

func newTestDisk(t *testing.T, numSectors uint32) (*disk.Disk, *allocator.Allocator) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.img")
	d, err := disk.Create(path, numSectors)
	if err != nil {
		t.Fatalf("disk.Create() failed: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d, allocator.New(numSectors)
}

func TestAllocateWithinDirect(t *testing.T) {
	d, a := newTestDisk(t, 64)
	h := New(File)
	if err := h.Allocate(d, a, 5*disk.SectorSize); err != nil {
		t.Fatalf("Allocate() failed: %v", err)
	}
	if got, want := h.NumSectors(), uint32(5); got != want {
		t.Errorf("NumSectors() = %d, want %d", got, want)
	}
	if got, want := h.Capacity(), uint32(5*disk.SectorSize); got != want {
		t.Errorf("Capacity() = %d, want %d", got, want)
	}
	if a.NumClear() != 64-5 {
		t.Errorf("NumClear() = %d, want %d", a.NumClear(), 64-5)
	}
}

func TestAllocateOverflowsIntoIndirect(t *testing.T) {
	d, a := newTestDisk(t, 256)
	h := New(File)
	size := (NumDirect + 10) * disk.SectorSize
	if err := h.Allocate(d, a, uint32(size)); err != nil {
		t.Fatalf("Allocate() failed: %v", err)
	}
	// NumDirect+10 data sectors, plus one indirect block sector.
	wantUsed := uint32(NumDirect + 10 + 1)
	if got := 256 - a.NumClear(); got != wantUsed {
		t.Errorf("sectors used = %d, want %d", got, wantUsed)
	}

	for i := uint32(0); i < NumDirect+10; i++ {
		s, err := h.sectorIndexAddr(d, i)
		if err != nil {
			t.Fatalf("sectorIndexAddr(%d) failed: %v", i, err)
		}
		if s == 0 {
			t.Errorf("sectorIndexAddr(%d) = 0, want a real sector", i)
		}
	}
}

func TestAllocateTooLarge(t *testing.T) {
	d, a := newTestDisk(t, 4096)
	h := New(File)
	if err := h.Allocate(d, a, MaxFileSize+disk.SectorSize); err == nil {
		t.Errorf("Allocate() beyond MaxFileSize should fail")
	}
	if h.NumSectors() != 0 {
		t.Errorf("failed Allocate() must not allocate anything")
	}
}

func TestAllocateNoSpace(t *testing.T) {
	d, a := newTestDisk(t, 4)
	h := New(File)
	if err := h.Allocate(d, a, 10*disk.SectorSize); err == nil {
		t.Errorf("Allocate() with insufficient free sectors should fail")
	}
	if got, want := a.NumClear(), uint32(4); got != want {
		t.Errorf("NumClear() after failed Allocate() = %d, want %d (no partial allocation)", got, want)
	}
}

// Header round trip: FetchFrom(d, WriteBack(h)) reproduces h exactly.
func TestHeaderRoundTrip(t *testing.T) {
	d, a := newTestDisk(t, 64)
	h := New(Dir)
	h.SetName("root")
	if err := h.Allocate(d, a, 3*disk.SectorSize); err != nil {
		t.Fatalf("Allocate() failed: %v", err)
	}
	if err := h.SetLimit(100); err != nil {
		t.Fatalf("SetLimit() failed: %v", err)
	}
	h.SetSelfSector(1)

	if err := h.WriteBack(d, 1); err != nil {
		t.Fatalf("WriteBack() failed: %v", err)
	}
	got, err := FetchFrom(d, 1)
	if err != nil {
		t.Fatalf("FetchFrom() failed: %v", err)
	}
	if got != h {
		t.Errorf("FetchFrom(WriteBack(h)) != h")
	}
	if got.Name() != "root" {
		t.Errorf("Name() = %q, want %q", got.Name(), "root")
	}
	if got.Type() != Dir {
		t.Errorf("Type() = %v, want %v", got.Type(), Dir)
	}
}

func TestSetLimitRejectsBeyondCapacity(t *testing.T) {
	h := New(File)
	if err := h.SetLimit(1); err == nil {
		t.Errorf("SetLimit() beyond capacity 0 should fail")
	}
}

func TestByteToSector(t *testing.T) {
	d, a := newTestDisk(t, 64)
	h := New(File)
	if err := h.Allocate(d, a, 3*disk.SectorSize); err != nil {
		t.Fatalf("Allocate() failed: %v", err)
	}
	if _, err := h.ByteToSector(d, 3*disk.SectorSize); err == nil {
		t.Errorf("ByteToSector() at capacity should fail")
	}
	if _, err := h.ByteToSector(d, disk.SectorSize); err != nil {
		t.Errorf("ByteToSector() within capacity failed: %v", err)
	}
}

func TestDeallocateFreesDirectAndIndirect(t *testing.T) {
	d, a := newTestDisk(t, 256)
	before := a.NumClear()

	h := New(File)
	size := (NumDirect + 5) * disk.SectorSize
	if err := h.Allocate(d, a, uint32(size)); err != nil {
		t.Fatalf("Allocate() failed: %v", err)
	}
	if err := h.Deallocate(d, a); err != nil {
		t.Fatalf("Deallocate() failed: %v", err)
	}
	if got := a.NumClear(); got != before {
		t.Errorf("NumClear() after Deallocate() = %d, want %d", got, before)
	}
	if h.NumSectors() != 0 || h.Capacity() != 0 {
		t.Errorf("Deallocate() should reset numSectors/capacity to 0")
	}
}
