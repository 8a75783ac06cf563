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
	"path/filepath"
	"testing"

	"github.com/asig/nsim/internal/disk"
	"github.com/asig/nsim/internal/fileheader"
)

func newFormattedDisk(t *testing.T, numSectors uint32) *FileSystem {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.img")
	d, err := disk.Create(path, numSectors)
	if err != nil {
		t.Fatalf("disk.Create() failed: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	fs, err := Format(d)
	if err != nil {
		t.Fatalf("Format() failed: %v", err)
	}
	return fs
}

// Scenario 1: format-and-query.
func TestFormatAndQuery(t *testing.T) {
	fs := newFormattedDisk(t, 128)
	names, err := fs.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("List() on a fresh format = %v, want empty", names)
	}
	report, err := fs.Print()
	if err != nil {
		t.Fatalf("Print() failed: %v", err)
	}
	if report == "" {
		t.Errorf("Print() returned empty report")
	}
}

// Scenario 2: create / reopen.
func TestCreateAndReopen(t *testing.T) {
	fs := newFormattedDisk(t, 128)
	if err := fs.Create("/a", fileheader.Dir); err != nil {
		t.Fatalf("Create(/a) failed: %v", err)
	}
	if err := fs.Create("/a/b", fileheader.File); err != nil {
		t.Fatalf("Create(/a/b) failed: %v", err)
	}

	f, err := fs.Open("/a/b")
	if err != nil {
		t.Fatalf("Open(/a/b) failed: %v", err)
	}
	payload := []byte("hello world\n")
	if _, err := f.WriteAt(payload, 0); err != nil {
		t.Fatalf("WriteAt() failed: %v", err)
	}

	f2, err := fs.Open("/a/b")
	if err != nil {
		t.Fatalf("re-Open(/a/b) failed: %v", err)
	}
	got := make([]byte, len(payload))
	n, err := f2.ReadAt(got, 0)
	if err != nil {
		t.Fatalf("ReadAt() failed: %v", err)
	}
	if n != len(payload) || string(got) != string(payload) {
		t.Errorf("ReadAt() = %q (n=%d), want %q", got[:n], n, payload)
	}
}

// Scenario 3: remove reclaims.
func TestRemoveReclaims(t *testing.T) {
	fs := newFormattedDisk(t, 128)
	before := fs.alloc.NumClear()

	if err := fs.Create("/a", fileheader.Dir); err != nil {
		t.Fatalf("Create(/a) failed: %v", err)
	}
	afterMkdir := fs.alloc.NumClear()

	if err := fs.Create("/a/b", fileheader.File); err != nil {
		t.Fatalf("Create(/a/b) failed: %v", err)
	}
	f, err := fs.Open("/a/b")
	if err != nil {
		t.Fatalf("Open(/a/b) failed: %v", err)
	}
	if _, err := f.WriteAt([]byte("hello world\n"), 0); err != nil {
		t.Fatalf("WriteAt() failed: %v", err)
	}

	if err := fs.Remove("/a/b"); err != nil {
		t.Fatalf("Remove(/a/b) failed: %v", err)
	}
	if got := fs.alloc.NumClear(); got != afterMkdir {
		t.Errorf("NumClear() after Remove(/a/b) = %d, want %d", got, afterMkdir)
	}
	if _, err := fs.Open("/a/b"); err == nil {
		t.Errorf("Open(/a/b) after Remove() should fail")
	}

	if err := fs.Remove("/a"); err != nil {
		t.Fatalf("Remove(/a) failed: %v", err)
	}
	if got := fs.alloc.NumClear(); got != before {
		t.Errorf("NumClear() after Remove(/a) = %d, want %d", got, before)
	}
}

// Scenario 4: path errors.
func TestPathErrors(t *testing.T) {
	fs := newFormattedDisk(t, 128)

	if err := fs.Create("/x/y", fileheader.File); err == nil {
		t.Errorf("Create(/x/y) with /x absent should fail")
	}
	if err := fs.Create("/", fileheader.File); err == nil {
		t.Errorf("Create(/) should fail")
	}
	if err := fs.Create("/a", fileheader.Dir); err != nil {
		t.Fatalf("Create(/a) failed: %v", err)
	}
	if err := fs.Create("/a", fileheader.Dir); err == nil {
		t.Errorf("Create(/a) twice should fail")
	}
}

func TestOpenSubdirFile(t *testing.T) {
	fs := newFormattedDisk(t, 256)
	if err := fs.Create("/a", fileheader.Dir); err != nil {
		t.Fatalf("Create(/a) failed: %v", err)
	}
	if err := fs.Create("/a/b", fileheader.Dir); err != nil {
		t.Fatalf("Create(/a/b) failed: %v", err)
	}
	if err := fs.Create("/a/b/c", fileheader.File); err != nil {
		t.Fatalf("Create(/a/b/c) failed: %v", err)
	}
	if _, err := fs.Open("/a/b/c"); err != nil {
		t.Errorf("Open(/a/b/c) failed: %v", err)
	}
	if err := fs.Create("/a/b/c/d", fileheader.File); err == nil {
		t.Errorf("Create() under a non-directory should fail")
	}
}

func TestPipeRoundTrip(t *testing.T) {
	fs := newFormattedDisk(t, 128)
	if err := fs.WritePipe([]byte("ping")); err != nil {
		t.Fatalf("WritePipe() failed: %v", err)
	}
	buf := make([]byte, 4)
	n, err := fs.ReadPipe(buf)
	if err != nil {
		t.Fatalf("ReadPipe() failed: %v", err)
	}
	if string(buf[:n]) != "ping" {
		t.Errorf("ReadPipe() = %q, want %q", buf[:n], "ping")
	}
}
