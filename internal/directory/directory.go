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

// Package directory implements the in-memory directory table of §4.3: an
// ordered sequence of fixed (inUse, name, sector) entries, fetched from and
// written back to an open file's byte stream.
//
// namex, the recursive path resolver, is not here: walking a path needs to
// open arbitrary directory files and inspect file headers along the way,
// which only the facade in internal/filesystem has the collaborators for.
// This package owns exactly what spec.md §4.3 calls the in-memory table
// operations: findIndex/addInCurrent/removeInCurrent.
//
// Grounded on _examples/original_source/code/filesys/directory.cc for the
// operation contracts (FindIndex/Add/Remove/List/Print) and on the fixed-
// width record idiom from _examples/asig-odit/internal/filesystem/dirpage.go
// (cast-and-offset accessors via internal/util's little-endian helpers),
// adapted from the teacher's B-tree page down to the flat array the
// original Nachos format actually uses.
package directory

import (
	"fmt"
	"strings"

	"github.com/asig/nsim/internal/errs"
	"github.com/asig/nsim/internal/fileheader"
	"github.com/asig/nsim/internal/util"
)

// FileNameMaxLen bounds a path component; longer names are truncated, per
// spec.md §4.3's namex step 1.
const FileNameMaxLen = 15

const (
	nameFieldLen = FileNameMaxLen + 1
	entrySize    = 1 + nameFieldLen + 4
	countSize    = 4

	// defaultEntries is the initial table size for a freshly created
	// directory (New), before any growth.
	defaultEntries = 16
)

// maxEntries bounds how large a directory table may grow: a directory's
// backing file can never exceed fileheader.MaxFileSize, so neither can the
// table it stores.
var maxEntries = (fileheader.MaxFileSize - countSize) / entrySize

// Entry is one directory slot.
type Entry struct {
	InUse  bool
	Name   string
	Sector uint32
}

// Directory is the in-memory image of a directory file.
type Directory struct {
	entries []Entry
}

// New returns an empty directory with room for defaultEntries names before
// it needs to grow.
func New() *Directory {
	return &Directory{entries: make([]Entry, defaultEntries)}
}

func truncate(name string) string {
	if len(name) > FileNameMaxLen {
		return name[:FileNameMaxLen]
	}
	return name
}

// FindIndex returns the index of the in-use entry matching name (truncated
// byte-wise compare), or -1.
func (d *Directory) FindIndex(name string) int {
	name = truncate(name)
	for i, e := range d.entries {
		if e.InUse && e.Name == name {
			return i
		}
	}
	return -1
}

// Find returns the sector of the in-use entry matching name, and whether
// it was found.
func (d *Directory) Find(name string) (uint32, bool) {
	i := d.FindIndex(name)
	if i == -1 {
		return 0, false
	}
	return d.entries[i].Sector, true
}

// AddInCurrent adds (name, sector) to the table. Fails with errs.Exists if
// name is already present, or errs.DirFull if the table is full and cannot
// grow any further without exceeding maxEntries.
func (d *Directory) AddInCurrent(name string, sector uint32) error {
	name = truncate(name)
	if d.FindIndex(name) != -1 {
		return fmt.Errorf("directory: %q already exists: %w", name, errs.Exists)
	}
	for i := range d.entries {
		if !d.entries[i].InUse {
			d.entries[i] = Entry{InUse: true, Name: name, Sector: sector}
			return nil
		}
	}
	if len(d.entries) >= maxEntries {
		return fmt.Errorf("directory: table full at %d entries: %w", len(d.entries), errs.DirFull)
	}
	newSize := len(d.entries) * 2
	if newSize > maxEntries {
		newSize = maxEntries
	}
	grown := make([]Entry, newSize)
	// Preserve inUse faithfully; the original's bug sets inUse=true on
	// every copied slot regardless of its prior state, resurrecting
	// removed names. Not reproduced here.
	copy(grown, d.entries)
	idx := len(d.entries)
	d.entries = grown
	d.entries[idx] = Entry{InUse: true, Name: name, Sector: sector}
	return nil
}

// RemoveInCurrent clears inUse on the matching entry. Reports whether a
// removal occurred.
func (d *Directory) RemoveInCurrent(name string) bool {
	i := d.FindIndex(name)
	if i == -1 {
		return false
	}
	d.entries[i].InUse = false
	return true
}

// Clone returns an independent copy, used to test whether a mutation would
// succeed without committing to it.
func (d *Directory) Clone() *Directory {
	entries := make([]Entry, len(d.entries))
	copy(entries, d.entries)
	return &Directory{entries: entries}
}

// Entries returns the in-use entries, in table order.
func (d *Directory) Entries() []Entry {
	var out []Entry
	for _, e := range d.entries {
		if e.InUse {
			out = append(out, e)
		}
	}
	return out
}

// List returns the in-use names, in table order.
func (d *Directory) List() []string {
	entries := d.Entries()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// File is the byte-addressable collaborator a directory is fetched from
// and written back to; internal/filesystem's open-file handles implement
// it.
type File interface {
	ReadAt(buf []byte, offset uint32) (int, error)
	WriteAt(buf []byte, offset uint32) (int, error)
}

// FetchFrom reads the directory's on-disk image: a 4-byte little-endian
// count, then that many fixed-width entries.
func FetchFrom(f File) (*Directory, error) {
	var countBuf [countSize]byte
	if _, err := f.ReadAt(countBuf[:], 0); err != nil {
		return nil, fmt.Errorf("directory: fetch count: %w", err)
	}
	count := util.ReadLEUint32(countBuf[:], 0)

	buf := make([]byte, count*entrySize)
	if count > 0 {
		if _, err := f.ReadAt(buf, countSize); err != nil {
			return nil, fmt.Errorf("directory: fetch entries: %w", err)
		}
	}

	d := &Directory{entries: make([]Entry, count)}
	for i := uint32(0); i < count; i++ {
		off := int(i) * entrySize
		inUse := buf[off] != 0
		name := util.StringFromBytes(buf[off+1 : off+1+nameFieldLen])
		sector := util.ReadLEUint32(buf, off+1+nameFieldLen)
		d.entries[i] = Entry{InUse: inUse, Name: name, Sector: sector}
	}
	return d, nil
}

// WriteBack persists the directory's in-memory image: count, then every
// entry (including unused ones, to keep slot indices stable across a
// fetch/writeBack round trip).
func (d *Directory) WriteBack(f File) error {
	var countBuf [countSize]byte
	util.WriteLEUint32(countBuf[:], 0, uint32(len(d.entries)))
	if _, err := f.WriteAt(countBuf[:], 0); err != nil {
		return fmt.Errorf("directory: write-back count: %w", err)
	}

	buf := make([]byte, len(d.entries)*entrySize)
	for i, e := range d.entries {
		off := i * entrySize
		if e.InUse {
			buf[off] = 1
		}
		util.WriteFixedLengthString(buf, off+1, nameFieldLen, e.Name)
		util.WriteLEUint32(buf, off+1+nameFieldLen, e.Sector)
	}
	if len(buf) > 0 {
		if _, err := f.WriteAt(buf, countSize); err != nil {
			return fmt.Errorf("directory: write-back entries: %w", err)
		}
	}
	return nil
}

// ByteSize returns how many bytes the on-disk image currently occupies,
// used by the facade to size the backing file.
func (d *Directory) ByteSize() uint32 {
	return countSize + uint32(len(d.entries))*entrySize
}

// SplitPath splits the next path component off a slash-separated path, per
// namex step 1: leading slashes are skipped, the component is truncated to
// FileNameMaxLen, and trailing slashes before the remainder are skipped.
// Returns ("", "") once the path is exhausted.
func SplitPath(path string) (name string, rest string) {
	path = strings.TrimLeft(path, "/")
	if path == "" {
		return "", ""
	}
	i := strings.IndexByte(path, '/')
	if i == -1 {
		return truncate(path), ""
	}
	return truncate(path[:i]), strings.TrimLeft(path[i:], "/")
}
