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

package filesystem

import (
	"fmt"
	"time"

	"github.com/asig/nsim/internal/allocator"
	"github.com/asig/nsim/internal/disk"
	"github.com/asig/nsim/internal/fileheader"
)

// File is a byte-addressable handle onto one file's data sectors,
// mediated by its header. It satisfies directory.File, so directory
// images can be fetched from and written back to it directly.
type File struct {
	d       *disk.Disk
	alloc   *allocator.Allocator
	mapBase uint32
	header  fileheader.Header
	sector  uint32
}

// Sector returns the file header's own disk sector.
func (f *File) Sector() uint32 {
	return f.sector
}

// Size returns the file's user-visible length.
func (f *File) Size() uint32 {
	return f.header.Limit()
}

// Type returns the file's header type.
func (f *File) Type() fileheader.Type {
	return f.header.Type()
}

// Name returns the file's name as recorded in its header at creation.
func (f *File) Name() string {
	return f.header.Name()
}

// CreationTime returns the file's creation timestamp.
func (f *File) CreationTime() time.Time {
	return f.header.CreateTime()
}

// ReadAt reads into buf starting at offset, clamped to the file's current
// limit; it never extends the file. Returns the number of bytes read.
func (f *File) ReadAt(buf []byte, offset uint32) (int, error) {
	limit := f.header.Limit()
	if offset >= limit {
		return 0, nil
	}
	n := len(buf)
	if offset+uint32(n) > limit {
		n = int(limit - offset)
	}
	return f.copySectors(buf[:n], offset, false)
}

// WriteAt writes buf starting at offset, extending capacity and limit as
// needed, and persists the updated header immediately. Whenever it grows
// the file it also flushes the free map, since Allocate mutates the
// shared in-memory allocator and the on-disk map must never claim fewer
// sectors than the header it's being persisted alongside.
func (f *File) WriteAt(buf []byte, offset uint32) (int, error) {
	end := offset + uint32(len(buf))
	grew := false
	if end > f.header.Capacity() {
		if err := f.header.Allocate(f.d, f.alloc, end-f.header.Capacity()); err != nil {
			return 0, fmt.Errorf("filesystem: write-at sector %d: %w", f.sector, err)
		}
		grew = true
	}
	if end > f.header.Limit() {
		if err := f.header.SetLimit(end); err != nil {
			return 0, err
		}
	}
	n, err := f.copySectors(buf, offset, true)
	if err != nil {
		return n, err
	}
	if err := f.header.WriteBack(f.d, f.sector); err != nil {
		return n, fmt.Errorf("filesystem: write-at sector %d: persist header: %w", f.sector, err)
	}
	if grew {
		if err := f.alloc.WriteBackTo(f.d, f.mapBase); err != nil {
			return n, fmt.Errorf("filesystem: write-at sector %d: persist free map: %w", f.sector, err)
		}
	}
	return n, nil
}

func (f *File) copySectors(buf []byte, offset uint32, write bool) (int, error) {
	total := 0
	for total < len(buf) {
		pos := offset + uint32(total)
		s, err := f.header.ByteToSector(f.d, pos)
		if err != nil {
			return total, err
		}
		sec, err := f.d.ReadSector(s)
		if err != nil {
			return total, err
		}
		within := int(pos % disk.SectorSize)
		n := disk.SectorSize - within
		if remaining := len(buf) - total; n > remaining {
			n = remaining
		}
		if write {
			copy(sec[within:within+n], buf[total:total+n])
			if err := f.d.WriteSector(s, sec); err != nil {
				return total, err
			}
		} else {
			copy(buf[total:total+n], sec[within:within+n])
		}
		total += n
	}
	return total, nil
}
