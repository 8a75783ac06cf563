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

// Package filesystem implements the facade of §4.4: the two permanently
// known files (the free map at sector 0, the root directory at sector 1)
// plus a fixed pipe header at sector 2, and the operations built on top of
// them (create, open, remove, list, print, readPipe/writePipe).
//
// Grounded on _examples/original_source/code/filesys/filesys.cc for the
// bootstrap sequence (mark reserved sectors, allocate their data through
// the same free map they describe, write headers back before opening them)
// and the Create/Open/Remove/ReadPipe/WritePipe contracts, adapted to a
// hierarchical namespace (the original has a single flat directory; this
// walks namex per spec.md §4.3 instead). Logging idiom follows
// _examples/asig-odit's use of github.com/rs/zerolog/log.
package filesystem

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/asig/nsim/internal/allocator"
	"github.com/asig/nsim/internal/directory"
	"github.com/asig/nsim/internal/disk"
	"github.com/asig/nsim/internal/errs"
	"github.com/asig/nsim/internal/fileheader"
)

const (
	FreeMapSector  = 0
	RootDirSector  = 1
	PipeSector     = 2
	reservedSectors = 3

	// PipeFileSize mirrors the original's fixed 1KB pipe buffer
	// (filesys.cc's PipeFileSize).
	PipeFileSize = 1024
)

// FileSystem owns the free map and the two bootstrap files, and resolves
// every other file through them.
type FileSystem struct {
	d       *disk.Disk
	alloc   *allocator.Allocator
	mapBase uint32
}

// Format initializes a fresh disk: free map, root directory, pipe header,
// all persisted before returning.
func Format(d *disk.Disk) (*FileSystem, error) {
	numSectors := d.NumSectors()
	alloc := allocator.New(numSectors)
	for _, s := range []uint32{FreeMapSector, RootDirSector, PipeSector} {
		if err := alloc.Mark(s); err != nil {
			return nil, fmt.Errorf("filesystem: format: mark reserved sector %d: %w", s, err)
		}
	}

	mapBase := uint32(reservedSectors)
	numMapSectors := allocator.NumMapSectors(numSectors)
	for i := uint32(0); i < numMapSectors; i++ {
		if err := alloc.Mark(mapBase + i); err != nil {
			return nil, fmt.Errorf("filesystem: format: mark free-map sector %d: %w", mapBase+i, err)
		}
	}

	freeMapHeader := fileheader.New(fileheader.File)
	freeMapHeader.SetSelfSector(FreeMapSector)
	freeMapHeader.SetBootstrapExtent(numMapSectors*disk.SectorSize, numMapSectors)
	if err := freeMapHeader.WriteBack(d, FreeMapSector); err != nil {
		return nil, fmt.Errorf("filesystem: format: write free-map header: %w", err)
	}

	rootHeader := fileheader.New(fileheader.Dir)
	rootHeader.SetSelfSector(RootDirSector)
	rootHeader.SetCreateTime(time.Now())
	rootImage := directory.New()
	if err := rootHeader.Allocate(d, alloc, rootImage.ByteSize()); err != nil {
		return nil, fmt.Errorf("filesystem: format: allocate root directory: %w", err)
	}
	if err := rootHeader.SetLimit(rootImage.ByteSize()); err != nil {
		return nil, fmt.Errorf("filesystem: format: set root directory limit: %w", err)
	}
	if err := rootHeader.WriteBack(d, RootDirSector); err != nil {
		return nil, fmt.Errorf("filesystem: format: write root directory header: %w", err)
	}
	rootFile := &File{d: d, alloc: alloc, mapBase: mapBase, header: rootHeader, sector: RootDirSector}
	if err := rootImage.WriteBack(rootFile); err != nil {
		return nil, fmt.Errorf("filesystem: format: write root directory image: %w", err)
	}

	pipeHeader := fileheader.New(fileheader.Pipe)
	pipeHeader.SetSelfSector(PipeSector)
	if err := pipeHeader.Allocate(d, alloc, PipeFileSize); err != nil {
		return nil, fmt.Errorf("filesystem: format: allocate pipe buffer: %w", err)
	}
	if err := pipeHeader.WriteBack(d, PipeSector); err != nil {
		return nil, fmt.Errorf("filesystem: format: write pipe header: %w", err)
	}

	if err := alloc.WriteBackTo(d, mapBase); err != nil {
		return nil, fmt.Errorf("filesystem: format: write free map: %w", err)
	}

	log.Info().Msgf("filesystem: formatted %d sectors, %d free", numSectors, alloc.NumClear())
	return &FileSystem{d: d, alloc: alloc, mapBase: mapBase}, nil
}

// Open mounts an already-formatted disk: reconstructs the in-memory free
// map from its fixed, self-bootstrapping range.
func Open(d *disk.Disk) (*FileSystem, error) {
	alloc := allocator.New(d.NumSectors())
	mapBase := uint32(reservedSectors)
	if err := alloc.FetchFrom(d, mapBase); err != nil {
		return nil, fmt.Errorf("filesystem: open: fetch free map: %w", err)
	}
	return &FileSystem{d: d, alloc: alloc, mapBase: mapBase}, nil
}

func (fs *FileSystem) loadDir(sector uint32) (*directory.Directory, *File, error) {
	f, err := fs.openFile(sector)
	if err != nil {
		return nil, nil, err
	}
	if f.header.Type() != fileheader.Dir {
		return nil, nil, fmt.Errorf("filesystem: sector %d is not a directory: %w", sector, errs.NotDirectory)
	}
	dir, err := directory.FetchFrom(f)
	if err != nil {
		return nil, nil, err
	}
	return dir, f, nil
}

func (fs *FileSystem) openFile(sector uint32) (*File, error) {
	h, err := fileheader.FetchFrom(fs.d, sector)
	if err != nil {
		return nil, fmt.Errorf("filesystem: fetch header at sector %d: %w", sector, err)
	}
	return &File{d: fs.d, alloc: fs.alloc, mapBase: fs.mapBase, header: h, sector: sector}, nil
}

// namex walks path from the root, per spec.md §4.3. With wantParent=true it
// returns the sector of the directory that would contain path's last
// component, plus that component's name. With wantParent=false it returns
// the sector path itself resolves to. Every path is absolute; there is no
// current-working-directory collaborator.
func (fs *FileSystem) namex(path string, wantParent bool) (sector uint32, name string, err error) {
	cur := uint32(RootDirSector)
	remaining := path
	for {
		n, rest := directory.SplitPath(remaining)
		if n == "" {
			if wantParent {
				return 0, "", fmt.Errorf("filesystem: %q has no parent: %w", path, errs.NotFound)
			}
			return cur, "", nil
		}
		if rest == "" {
			if wantParent {
				return cur, n, nil
			}
			dir, _, err := fs.loadDir(cur)
			if err != nil {
				return 0, "", err
			}
			sector, ok := dir.Find(n)
			if !ok {
				return 0, n, fmt.Errorf("filesystem: %q not found: %w", path, errs.NotFound)
			}
			return sector, n, nil
		}

		dir, _, err := fs.loadDir(cur)
		if err != nil {
			return 0, "", err
		}
		sector, ok := dir.Find(n)
		if !ok {
			return 0, "", fmt.Errorf("filesystem: %q not found: %w", path, errs.NotFound)
		}
		cur = sector
		remaining = rest
	}
}

// Create makes a new file or directory at path. Preconditions are
// validated against a clone of the parent directory before any sector is
// allocated, so a failure never leaves a partial mutation behind.
func (fs *FileSystem) Create(path string, t fileheader.Type) error {
	parentSector, name, err := fs.namex(path, true)
	if err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("filesystem: create(%q): empty name: %w", path, errs.BadArgument)
	}

	parentDir, parentFile, err := fs.loadDir(parentSector)
	if err != nil {
		return err
	}
	if parentDir.FindIndex(name) != -1 {
		return fmt.Errorf("filesystem: create(%q): %w", path, errs.Exists)
	}
	if err := parentDir.Clone().AddInCurrent(name, 0); err != nil {
		return fmt.Errorf("filesystem: create(%q): %w", path, err)
	}

	sector := fs.alloc.FindAndSet()
	if sector == -1 {
		return fmt.Errorf("filesystem: create(%q): %w", path, errs.NoSpace)
	}
	headerSector := uint32(sector)

	header := fileheader.New(t)
	header.SetSelfSector(headerSector)
	header.SetCreateTime(time.Now())
	header.SetName(name)

	if t == fileheader.Dir {
		image := directory.New()
		if err := header.Allocate(fs.d, fs.alloc, image.ByteSize()); err != nil {
			fs.alloc.Clear(headerSector)
			return fmt.Errorf("filesystem: create(%q): %w", path, err)
		}
		if err := header.SetLimit(image.ByteSize()); err != nil {
			return err
		}
		if err := header.WriteBack(fs.d, headerSector); err != nil {
			return fmt.Errorf("filesystem: create(%q): %w", path, err)
		}
		newFile := &File{d: fs.d, alloc: fs.alloc, mapBase: fs.mapBase, header: header, sector: headerSector}
		if err := image.WriteBack(newFile); err != nil {
			return fmt.Errorf("filesystem: create(%q): %w", path, err)
		}
	} else {
		if err := header.WriteBack(fs.d, headerSector); err != nil {
			return fmt.Errorf("filesystem: create(%q): %w", path, err)
		}
	}

	if err := parentDir.AddInCurrent(name, headerSector); err != nil {
		header.Deallocate(fs.d, fs.alloc)
		fs.alloc.Clear(headerSector)
		return fmt.Errorf("filesystem: create(%q): %w", path, err)
	}
	if err := parentDir.WriteBack(parentFile); err != nil {
		return fmt.Errorf("filesystem: create(%q): write parent directory: %w", path, err)
	}
	if err := fs.alloc.WriteBackTo(fs.d, fs.mapBase); err != nil {
		return fmt.Errorf("filesystem: create(%q): write free map: %w", path, err)
	}
	log.Debug().Msgf("filesystem: created %q (type=%v) at sector %d", path, t, headerSector)
	return nil
}

// Open returns a handle for path, or an error if path doesn't resolve.
func (fs *FileSystem) Open(path string) (*File, error) {
	sector, _, err := fs.namex(path, false)
	if err != nil {
		return nil, err
	}
	return fs.openFile(sector)
}

// Remove deletes the file at path: releases its data sectors and header
// sector, and removes its directory entry.
func (fs *FileSystem) Remove(path string) error {
	parentSector, name, err := fs.namex(path, true)
	if err != nil {
		return err
	}
	parentDir, parentFile, err := fs.loadDir(parentSector)
	if err != nil {
		return err
	}
	sector, ok := parentDir.Find(name)
	if !ok {
		return fmt.Errorf("filesystem: remove(%q): %w", path, errs.NotFound)
	}

	header, err := fileheader.FetchFrom(fs.d, sector)
	if err != nil {
		return err
	}
	if err := header.Deallocate(fs.d, fs.alloc); err != nil {
		return fmt.Errorf("filesystem: remove(%q): %w", path, err)
	}
	if err := fs.alloc.Clear(sector); err != nil {
		return fmt.Errorf("filesystem: remove(%q): %w", path, err)
	}
	parentDir.RemoveInCurrent(name)

	if err := parentDir.WriteBack(parentFile); err != nil {
		return fmt.Errorf("filesystem: remove(%q): write parent directory: %w", path, err)
	}
	if err := fs.alloc.WriteBackTo(fs.d, fs.mapBase); err != nil {
		return fmt.Errorf("filesystem: remove(%q): write free map: %w", path, err)
	}
	log.Debug().Msgf("filesystem: removed %q", path)
	return nil
}

// List returns the root directory's entry names.
func (fs *FileSystem) List() ([]string, error) {
	dir, _, err := fs.loadDir(RootDirSector)
	if err != nil {
		return nil, err
	}
	return dir.List(), nil
}

// ListAt returns the in-use entries of the directory at path, for
// callers (e.g. internal/fsmount) that need a child's sector alongside
// its name rather than just the name.
func (fs *FileSystem) ListAt(path string) ([]directory.Entry, error) {
	sector, _, err := fs.namex(path, false)
	if err != nil {
		return nil, err
	}
	dir, _, err := fs.loadDir(sector)
	if err != nil {
		return nil, err
	}
	var entries []directory.Entry
	for _, e := range dir.Entries() {
		if e.InUse {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// Print renders a human-readable report of the free map and root directory
// headers, for debugging — mirrors FileSystem::Print in the original.
func (fs *FileSystem) Print() (string, error) {
	mapHeader, err := fileheader.FetchFrom(fs.d, FreeMapSector)
	if err != nil {
		return "", err
	}
	rootHeader, err := fileheader.FetchFrom(fs.d, RootDirSector)
	if err != nil {
		return "", err
	}
	dir, _, err := fs.loadDir(RootDirSector)
	if err != nil {
		return "", err
	}

	s := fmt.Sprintf("Free map header: capacity=%d numSectors=%d, %d sectors free\n",
		mapHeader.Capacity(), mapHeader.NumSectors(), fs.alloc.NumClear())
	s += fmt.Sprintf("Root directory header: capacity=%d numSectors=%d\n",
		rootHeader.Capacity(), rootHeader.NumSectors())
	s += "Directory contents:\n"
	for _, e := range dir.Entries() {
		s += fmt.Sprintf("  %s -> sector %d\n", e.Name, e.Sector)
	}
	return s, nil
}

// ReadPipe reads up to len(buf) bytes from the fixed pipe header at offset
// 0. No blocking or EOF semantics are defined (spec.md §9).
func (fs *FileSystem) ReadPipe(buf []byte) (int, error) {
	f, err := fs.openFile(PipeSector)
	if err != nil {
		return 0, err
	}
	return f.ReadAt(buf, 0)
}

// WritePipe writes data at offset 0 of the fixed pipe header.
func (fs *FileSystem) WritePipe(data []byte) error {
	f, err := fs.openFile(PipeSector)
	if err != nil {
		return err
	}
	_, err = f.WriteAt(data, 0)
	return err
}
