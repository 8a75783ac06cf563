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

package vm

import "testing"

// fakeExe is an in-memory Executable used to exercise the fault handler
// without a real disk-backed filesystem.
type fakeExe struct {
	buf []byte
}

func newFakeExe(size int) *fakeExe {
	return &fakeExe{buf: make([]byte, size)}
}

func (f *fakeExe) ReadAt(buf []byte, offset uint32) (int, error) {
	return copy(buf, f.buf[offset:]), nil
}

func (f *fakeExe) WriteAt(buf []byte, offset uint32) (int, error) {
	need := int(offset) + len(buf)
	if need > len(f.buf) {
		grown := make([]byte, need)
		copy(grown, f.buf)
		f.buf = grown
	}
	return copy(f.buf[offset:], buf), nil
}

type fakeTLB struct {
	invalidated []struct{ threadID, vpn int }
}

func (f *fakeTLB) Invalidate(threadID, vpn int) {
	f.invalidated = append(f.invalidated, struct{ threadID, vpn int }{threadID, vpn})
}

func TestPageFaultBasic(t *testing.T) {
	m := NewManager(2, nil)
	exe := newFakeExe(HeaderSize + 4*PageSize)
	as := m.CreateAddrSpace(1, exe, 4)

	if err := m.PageFault(1, 0); err != nil {
		t.Fatalf("PageFault() failed: %v", err)
	}
	pte, err := as.PTE(0)
	if err != nil {
		t.Fatalf("PTE() failed: %v", err)
	}
	if !pte.Valid {
		t.Errorf("PTE(0).Valid = false, want true")
	}

	// Frame/PTE consistency: the frame believes it's owned by (1, 0).
	owner, err := m.frames.Owner(uint32(pte.PhysicalPage))
	if err != nil {
		t.Fatalf("Owner() failed: %v", err)
	}
	if owner.ThreadID != 1 || owner.VirtualPage != 0 {
		t.Errorf("frame owner = %+v, want {1 0}", owner)
	}
}

func TestPageFaultAlreadyValidIsNoop(t *testing.T) {
	m := NewManager(2, nil)
	exe := newFakeExe(HeaderSize + PageSize)
	m.CreateAddrSpace(1, exe, 1)
	if err := m.PageFault(1, 0); err != nil {
		t.Fatalf("PageFault() failed: %v", err)
	}
	if err := m.PageFault(1, 0); err != nil {
		t.Fatalf("second PageFault() on a valid page failed: %v", err)
	}
}

// Scenario 5: page fault and eviction, with a 2-frame pool and a 4-page
// address space.
func TestPageFaultEviction(t *testing.T) {
	tl := &fakeTLB{}
	m := NewManager(2, tl)
	exe := newFakeExe(HeaderSize + 4*PageSize)
	as := m.CreateAddrSpace(7, exe, 4)

	for _, vp := range []int{0, 1} {
		if err := m.PageFault(7, vp); err != nil {
			t.Fatalf("PageFault(%d) failed: %v", vp, err)
		}
	}
	pte0, _ := as.PTE(0)
	pte1, _ := as.PTE(1)
	if !pte0.Valid || !pte1.Valid {
		t.Fatalf("pages 0 and 1 should both be resident: %+v %+v", pte0, pte1)
	}

	// Mark page 0 as dirty via a write translation, so eviction exercises
	// the write-back path.
	if _, _, err := as.Translate(uint32(0), true); err != nil {
		t.Fatalf("Translate() failed: %v", err)
	}

	// Touching page 2 forces an eviction; the LRU policy (untouched since
	// bind for both) evicts frame 0 (page 0), the one bound earlier.
	if err := m.PageFault(7, 2); err != nil {
		t.Fatalf("PageFault(2) failed: %v", err)
	}

	pte0After, _ := as.PTE(0)
	if pte0After.Valid {
		t.Errorf("page 0's PTE should be invalidated after eviction")
	}
	pte2, _ := as.PTE(2)
	if !pte2.Valid {
		t.Errorf("page 2 should now be resident")
	}

	if len(tl.invalidated) != 1 || tl.invalidated[0].threadID != 7 || tl.invalidated[0].vpn != 0 {
		t.Errorf("TLB invalidation = %+v, want one entry for (7, 0)", tl.invalidated)
	}
}

func TestDestroyAddrSpaceFreesFrames(t *testing.T) {
	m := NewManager(2, nil)
	exe := newFakeExe(HeaderSize + 2*PageSize)
	m.CreateAddrSpace(3, exe, 2)
	m.PageFault(3, 0)
	m.PageFault(3, 1)
	if got := m.frames.NumFree(); got != 0 {
		t.Fatalf("NumFree() before destroy = %d, want 0", got)
	}
	m.DestroyAddrSpace(3)
	if got := m.frames.NumFree(); got != 2 {
		t.Errorf("NumFree() after destroy = %d, want 2", got)
	}
}
