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

// Package fileheader implements the per-file i-node record of §4.2: a
// fixed record that fits in one sector, describing a file's length and the
// set of sectors that hold its data.
//
// Of the two layouts spec.md §3/§9 allows, this picks direct-indirect (the
// recommended one): NumDirect direct sector pointers, plus one indirect
// sector holding NumInDirect further pointers. byteToSector is the stable
// contract the rest of the system depends on; everything else (Allocate's
// slot-filling order, Deallocate's sweep) is free to change as long as
// that contract holds.
//
// Grounded on _examples/asig-odit/internal/filesystem/fileheader.go (fixed
// on-disk record cast directly from a disk.Sector, little-endian field
// accessors) and indexsector.go (the indirect block's pointer array),
// generalized from the teacher's sector-table-plus-extension-table scheme
// down to exactly one indirect block, per the original's
// _examples/original_source/code/filesys/filehdr.cc Allocate/Deallocate/
// ByteToSector contract.
package fileheader

import (
	"fmt"
	"time"

	"github.com/asig/nsim/internal/allocator"
	"github.com/asig/nsim/internal/disk"
	"github.com/asig/nsim/internal/errs"
	"github.com/asig/nsim/internal/util"
)

type Type byte

const (
	Unknown Type = iota
	File
	Dir
	Pipe
)

func (t Type) String() string {
	switch t {
	case File:
		return "FILE"
	case Dir:
		return "DIR"
	case Pipe:
		return "PIPE"
	default:
		return "UNKNOWN"
	}
}

const (
	headerMark = 0x4E53494D // "NSIM"

	// NumDirect direct pointers plus one indirect sector holding
	// NumInDirect further pointers gives MaxFileSize = (NumDirect +
	// NumInDirect) * SectorSize. Laid out so the whole record is exactly
	// one disk.Sector:
	//   mark(4) type(4) limit(4) capacity(4) numSectors(4) selfSector(4)
	//   createTime(4) name(12) indirect(4) direct(21*4=84) = 128
	NumDirect   = 21
	NumInDirect = disk.SectorSize / 4

	nameLen = 12

	ofsMark       = 0
	ofsType       = 4
	ofsLimit      = 8
	ofsCapacity   = 12
	ofsNumSectors = 16
	ofsSelfSector = 20
	ofsCreateTime = 24
	ofsName       = 28
	ofsIndirect   = ofsName + nameLen
	ofsDirect     = ofsIndirect + 4
)

// MaxFileSize is the largest capacity a file header can address.
const MaxFileSize = (NumDirect + NumInDirect) * disk.SectorSize

// Header is a fixed-size on-disk record, cast directly from a disk.Sector
// the way the teacher's fileHeader type does.
type Header disk.Sector

// New returns a zeroed, valid header of the given type.
func New(t Type) Header {
	var h Header
	util.WriteLEUint32(h[:], ofsMark, headerMark)
	h[ofsType] = byte(t)
	return h
}

func (h *Header) IsValid() bool {
	return util.ReadLEUint32(h[:], ofsMark) == headerMark
}

func (h *Header) Type() Type {
	return Type(h[ofsType])
}

func (h *Header) SetType(t Type) {
	h[ofsType] = byte(t)
}

func (h *Header) Limit() uint32 {
	return util.ReadLEUint32(h[:], ofsLimit)
}

// SetLimit accepts any 0 <= p <= capacity.
func (h *Header) SetLimit(p uint32) error {
	if p > h.Capacity() {
		return fmt.Errorf("fileheader: SetLimit(%d) exceeds capacity %d: %w", p, h.Capacity(), errs.BadArgument)
	}
	util.WriteLEUint32(h[:], ofsLimit, p)
	return nil
}

func (h *Header) Capacity() uint32 {
	return util.ReadLEUint32(h[:], ofsCapacity)
}

func (h *Header) NumSectors() uint32 {
	return util.ReadLEUint32(h[:], ofsNumSectors)
}

func (h *Header) SelfSector() uint32 {
	return util.ReadLEUint32(h[:], ofsSelfSector)
}

func (h *Header) SetSelfSector(s uint32) {
	util.WriteLEUint32(h[:], ofsSelfSector, s)
}

func (h *Header) CreateTime() time.Time {
	return time.Unix(int64(util.ReadLEUint32(h[:], ofsCreateTime)), 0)
}

func (h *Header) SetCreateTime(t time.Time) {
	util.WriteLEUint32(h[:], ofsCreateTime, uint32(t.Unix()))
}

func (h *Header) Name() string {
	return util.StringFromBytes(h[ofsName : ofsName+nameLen])
}

func (h *Header) SetName(name string) {
	util.WriteFixedLengthString(h[:], ofsName, nameLen, name)
}

func (h *Header) indirectSector() uint32 {
	return util.ReadLEUint32(h[:], ofsIndirect)
}

func (h *Header) setIndirectSector(s uint32) {
	util.WriteLEUint32(h[:], ofsIndirect, s)
}

func (h *Header) directSector(i uint32) uint32 {
	return util.ReadLEUint32(h[:], ofsDirect+int(i)*4)
}

func (h *Header) setDirectSector(i uint32, addr uint32) {
	util.WriteLEUint32(h[:], ofsDirect+int(i)*4, addr)
}

func (h *Header) setNumSectors(n uint32) {
	util.WriteLEUint32(h[:], ofsNumSectors, n)
}

func (h *Header) setCapacity(c uint32) {
	util.WriteLEUint32(h[:], ofsCapacity, c)
}

// indirectBlock is the indirect sector's pointer array: NumInDirect disk
// sector addresses, zero meaning unused.
type indirectBlock disk.Sector

func (b *indirectBlock) get(i uint32) uint32 {
	return util.ReadLEUint32(b[:], int(i)*4)
}

func (b *indirectBlock) set(i uint32, addr uint32) {
	util.WriteLEUint32(b[:], int(i)*4, addr)
}

// FetchFrom reads the header record from sector s, bit-exact.
func FetchFrom(d *disk.Disk, s uint32) (Header, error) {
	sec, err := d.ReadSector(s)
	if err != nil {
		return Header{}, fmt.Errorf("fileheader: fetch %d: %w", s, err)
	}
	return Header(sec), nil
}

// WriteBack writes h to sector s, bit-exact.
func (h *Header) WriteBack(d *disk.Disk, s uint32) error {
	if err := d.WriteSector(s, disk.Sector(*h)); err != nil {
		return fmt.Errorf("fileheader: write-back %d: %w", s, err)
	}
	return nil
}

// sectorIndexAddr returns the disk sector holding the idx-th data sector of
// the file, fetching the indirect block if needed. idx must be < numSectors
// already allocated (callers check via byteToSector / addSector bounds).
func (h *Header) sectorIndexAddr(d *disk.Disk, idx uint32) (uint32, error) {
	if idx < NumDirect {
		return h.directSector(idx), nil
	}
	idx -= NumDirect
	if idx >= NumInDirect {
		return 0, fmt.Errorf("fileheader: sector index %d exceeds indirect capacity: %w", idx, errs.TooLarge)
	}
	indirectAddr := h.indirectSector()
	if indirectAddr == 0 {
		return 0, fmt.Errorf("fileheader: indirect block missing for index %d", idx)
	}
	sec, err := d.ReadSector(indirectAddr)
	if err != nil {
		return 0, fmt.Errorf("fileheader: read indirect block: %w", err)
	}
	blk := indirectBlock(sec)
	return blk.get(idx), nil
}

// ByteToSector returns the sector holding the byte at offset, for offset in
// [0, capacity).
func (h *Header) ByteToSector(d *disk.Disk, offset uint32) (uint32, error) {
	if offset >= h.Capacity() {
		return 0, fmt.Errorf("fileheader: offset %d >= capacity %d: %w", offset, h.Capacity(), errs.BadArgument)
	}
	return h.sectorIndexAddr(d, offset/disk.SectorSize)
}

// addSector binds data-sector index idx (0-based, contiguous from the
// file's start) to the disk sector addr, allocating the indirect block on
// first overflow past NumDirect.
func (h *Header) addSector(d *disk.Disk, alloc *allocator.Allocator, idx uint32, addr uint32) error {
	if idx < NumDirect {
		h.setDirectSector(idx, addr)
		return nil
	}
	idx -= NumDirect
	if idx >= NumInDirect {
		return fmt.Errorf("fileheader: file too large at index %d: %w", idx, errs.TooLarge)
	}
	indirectAddr := h.indirectSector()
	if indirectAddr == 0 {
		s := alloc.FindAndSet()
		if s == -1 {
			return fmt.Errorf("fileheader: no space for indirect block: %w", errs.NoSpace)
		}
		indirectAddr = uint32(s)
		h.setIndirectSector(indirectAddr)
		if err := d.WriteSector(indirectAddr, disk.Sector{}); err != nil {
			return fmt.Errorf("fileheader: zero indirect block: %w", err)
		}
	}
	sec, err := d.ReadSector(indirectAddr)
	if err != nil {
		return fmt.Errorf("fileheader: read indirect block: %w", err)
	}
	blk := indirectBlock(sec)
	blk.set(idx, addr)
	if err := d.WriteSector(indirectAddr, disk.Sector(blk)); err != nil {
		return fmt.Errorf("fileheader: write indirect block: %w", err)
	}
	return nil
}

// Allocate extends capacity by ceil(size/SectorSize) sectors, filling
// direct slots first and overflowing into the indirect block. It fails
// without allocating anything if there isn't enough free space.
func (h *Header) Allocate(d *disk.Disk, alloc *allocator.Allocator, size uint32) error {
	if size == 0 {
		return nil
	}
	if h.Capacity()+size > MaxFileSize {
		return fmt.Errorf("fileheader: capacity %d + %d exceeds MaxFileSize %d: %w", h.Capacity(), size, MaxFileSize, errs.TooLarge)
	}

	n := (size + disk.SectorSize - 1) / disk.SectorSize
	existing := h.NumSectors()

	needIndirectBlock := existing < NumDirect && existing+n > NumDirect && h.indirectSector() == 0
	required := n
	if needIndirectBlock {
		required++
	}
	if alloc.NumClear() < required {
		return fmt.Errorf("fileheader: need %d free sectors, have %d: %w", required, alloc.NumClear(), errs.NoSpace)
	}

	for i := uint32(0); i < n; i++ {
		s := alloc.FindAndSet()
		if s == -1 {
			// Preconditions were checked above; this would be an
			// invariant violation in the allocator.
			return fmt.Errorf("fileheader: allocator exhausted mid-allocation: %w", errs.NoSpace)
		}
		if err := h.addSector(d, alloc, existing+i, uint32(s)); err != nil {
			return err
		}
	}

	h.setNumSectors(existing + n)
	h.setCapacity(h.Capacity() + size)
	return nil
}

// Deallocate returns every sector referenced by h — every data sector
// (direct and, via the indirect block, indirect) plus the indirect block
// itself, if any — to alloc, and resets the length fields.
func (h *Header) Deallocate(d *disk.Disk, alloc *allocator.Allocator) error {
	sectors, err := h.DataSectors(d)
	if err != nil {
		return err
	}
	for _, s := range sectors {
		if err := alloc.Clear(s); err != nil {
			return err
		}
	}
	for i := uint32(0); i < NumDirect; i++ {
		h.setDirectSector(i, 0)
	}
	if indirectAddr := h.indirectSector(); indirectAddr != 0 {
		if err := alloc.Clear(indirectAddr); err != nil {
			return err
		}
		h.setIndirectSector(0)
	}
	h.setNumSectors(0)
	h.setCapacity(0)
	util.WriteLEUint32(h[:], ofsLimit, 0)
	return nil
}

// SetBootstrapExtent records capacity/numSectors directly, bypassing
// Allocate's slot-filling. The free map's own header uses this: its data
// sectors are a fixed, self-bootstrapping range (see allocator.FetchFrom/
// WriteBackTo) that the allocator addresses directly rather than through
// this header's direct/indirect table, so there is nothing for Allocate to
// fill in — only the length fields need to reflect reality for Print and
// for the free-map coverage invariant.
func (h *Header) SetBootstrapExtent(capacity, numSectors uint32) {
	h.setCapacity(capacity)
	h.setNumSectors(numSectors)
	util.WriteLEUint32(h[:], ofsLimit, capacity)
}

// DataSectors returns every data sector currently referenced by h (direct
// and, via the indirect block, indirect). Deallocate uses this to free
// indirectly-referenced sectors, and tests use it for the free-map
// coverage check.
func (h *Header) DataSectors(d *disk.Disk) ([]uint32, error) {
	n := h.NumSectors()
	sectors := make([]uint32, 0, n)
	for i := uint32(0); i < n; i++ {
		addr, err := h.sectorIndexAddr(d, i)
		if err != nil {
			return nil, err
		}
		sectors = append(sectors, addr)
	}
	return sectors, nil
}
