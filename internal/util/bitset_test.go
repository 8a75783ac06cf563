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

package util

import (
	"testing"
)

func TestBitSet(t *testing.T) {
	bitset := NewBitSet(129)

	expected := []uint64{0, 0, 0}
	for i, v := range expected {
		if bitset[i] != v {
			t.Errorf("Expected bitset[%d] to be %d, got %d", i, v, bitset[i])
		}
	}

	bitset.Set(5)
	expected = []uint64{
		1 << 5, 0, 0,
	}
	for i, v := range expected {
		if bitset[i] != v {
			t.Errorf("Expected bitset[%d] to be %d, got %d", i, v, bitset[i])
		}
	}

	if !bitset.Test(5) {
		t.Errorf("Expected bit 5 to be set")
	}

	bitset.Clear(5)
	expected = []uint64{
		0, 0, 0,
	}
	for i, v := range expected {
		if bitset[i] != v {
			t.Errorf("Expected bitset[%d] to be %d, got %d", i, v, bitset[i])
		}
	}
	if bitset.Test(5) {
		t.Errorf("Expected bit 5 to be cleared")
	}
}

func TestBitSetFindAndSet(t *testing.T) {
	bitset := NewBitSet(8)

	for want := 0; want < 8; want++ {
		got := bitset.FindAndSet(8)
		if got != want {
			t.Fatalf("FindAndSet() = %d, want %d", got, want)
		}
	}

	if got := bitset.FindAndSet(8); got != -1 {
		t.Errorf("FindAndSet() on full set = %d, want -1", got)
	}
}

func TestBitSetNumClear(t *testing.T) {
	bitset := NewBitSet(10)
	if got := bitset.NumClear(10); got != 10 {
		t.Errorf("NumClear() = %d, want 10", got)
	}
	bitset.Set(3)
	bitset.Set(7)
	if got := bitset.NumClear(10); got != 8 {
		t.Errorf("NumClear() = %d, want 8", got)
	}
}
