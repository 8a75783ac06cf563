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

// Package allocator implements the sector allocator of §4.1: a persistent
// map from sector number to allocation state.
//
// spec.md §4.1/§9 describes two shapes: a presence-only bitmap, or a
// linked integer map whose value doubles as the successor sector in a
// file's chain. This module picks the file header's direct-indirect
// layout (§4.2's recommendation), which needs no successor chain, so the
// allocator here is the presence-only bitmap shape. byteToSector is the
// only contract that shape decision has to honor, and fileheader keeps it
// stable.
package allocator

import (
	"fmt"

	"github.com/asig/nsim/internal/disk"
	"github.com/asig/nsim/internal/util"
)

// Allocator tracks per-sector allocation state in memory, with fetch/
// writeBack to a fixed, contiguous sector range.
type Allocator struct {
	numSectors uint32
	bits       util.BitSet
}

// New creates an allocator covering sectors [0, numSectors), all initially
// free.
func New(numSectors uint32) *Allocator {
	return &Allocator{
		numSectors: numSectors,
		bits:       util.NewBitSet(numSectors),
	}
}

// NumMapSectors returns how many disk sectors are needed to persist a map
// covering numSectors sectors.
func NumMapSectors(numSectors uint32) uint32 {
	bytes := (numSectors + 7) / 8
	return (bytes + disk.SectorSize - 1) / disk.SectorSize
}

func (a *Allocator) checkRange(s uint32) error {
	if s >= a.numSectors {
		return fmt.Errorf("allocator: sector %d out of range [0, %d)", s, a.numSectors)
	}
	return nil
}

// Mark records s as used. Postcondition: Test(s) == true.
func (a *Allocator) Mark(s uint32) error {
	if err := a.checkRange(s); err != nil {
		return err
	}
	a.bits.Set(s)
	return nil
}

// Clear records s as free. Postcondition: Test(s) == false.
func (a *Allocator) Clear(s uint32) error {
	if err := a.checkRange(s); err != nil {
		return err
	}
	a.bits.Clear(s)
	return nil
}

// Test reports whether s is currently allocated.
func (a *Allocator) Test(s uint32) bool {
	if s >= a.numSectors {
		return false
	}
	return a.bits.Test(s)
}

// FindAndSet returns the lowest free sector, marking it used, or -1 if the
// map is full. Ties are broken by strictly ascending sector index, which
// BitSet.FindAndSet already guarantees by scanning from 0.
func (a *Allocator) FindAndSet() int {
	return a.bits.FindAndSet(a.numSectors)
}

// NumClear returns the number of free sectors.
func (a *Allocator) NumClear() uint32 {
	return a.bits.NumClear(a.numSectors)
}

// FetchFrom reads the map back from mapSectors sectors starting at base.
// Self-bootstrapping: this talks directly to the block device, never
// through a file header, since the free map is what makes file headers
// resolvable in the first place.
func (a *Allocator) FetchFrom(d *disk.Disk, base uint32) error {
	n := NumMapSectors(a.numSectors)
	buf := make([]byte, 0, n*disk.SectorSize)
	for i := uint32(0); i < n; i++ {
		sec, err := d.ReadSector(base + i)
		if err != nil {
			return fmt.Errorf("allocator: fetch sector %d: %w", base+i, err)
		}
		buf = append(buf, sec[:]...)
	}
	for i := range a.bits {
		a.bits[i] = 0
	}
	for i := uint32(0); i < a.numSectors; i++ {
		byteIdx := i / 8
		bitIdx := i % 8
		if byteIdx < uint32(len(buf)) && buf[byteIdx]&(1<<bitIdx) != 0 {
			a.bits.Set(i)
		}
	}
	return nil
}

// WriteBackTo serializes the entire map to mapSectors sectors starting at
// base.
func (a *Allocator) WriteBackTo(d *disk.Disk, base uint32) error {
	n := NumMapSectors(a.numSectors)
	buf := make([]byte, n*disk.SectorSize)
	for i := uint32(0); i < a.numSectors; i++ {
		if a.bits.Test(i) {
			buf[i/8] |= 1 << (i % 8)
		}
	}
	for i := uint32(0); i < n; i++ {
		var sec disk.Sector
		copy(sec[:], buf[i*disk.SectorSize:(i+1)*disk.SectorSize])
		if err := d.WriteSector(base+i, sec); err != nil {
			return fmt.Errorf("allocator: write-back sector %d: %w", base+i, err)
		}
	}
	return nil
}
