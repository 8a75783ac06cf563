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

// BitSet is a flat bit vector, used both for in-memory scratch state and as
// the serialization shape for any on-disk presence map (the sector
// allocator, the frame pool).
type BitSet []uint64

func NewBitSet(size uint32) BitSet {
	return make(BitSet, (size+63)/64)
}

func (b BitSet) Set(bit uint32) {
	b[bit/64] |= 1 << (bit % 64)
}

func (b BitSet) Clear(bit uint32) {
	b[bit/64] &^= 1 << (bit % 64)
}

func (b BitSet) Test(bit uint32) bool {
	return b[bit/64]&(1<<(bit%64)) != 0
}

// Bits returns the number of addressable bits in the set.
func (b BitSet) Bits() uint32 {
	return uint32(len(b)) * 64
}

// FindAndSet returns the lowest-numbered clear bit in [0, limit), sets it,
// and returns its index; or -1 if every bit in range is set.
func (b BitSet) FindAndSet(limit uint32) int {
	for i := uint32(0); i < limit; i++ {
		if !b.Test(i) {
			b.Set(i)
			return int(i)
		}
	}
	return -1
}

// NumClear returns the count of clear bits in [0, limit).
func (b BitSet) NumClear(limit uint32) uint32 {
	var n uint32
	for i := uint32(0); i < limit; i++ {
		if !b.Test(i) {
			n++
		}
	}
	return n
}
