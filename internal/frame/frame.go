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

// Package frame implements the physical frame pool of §4.5: a bitmap of
// free frames, per-frame owner metadata (which thread, which virtual
// page), and a pluggable replacement policy.
//
// Grounded on _examples/original_source/code/vm/PhyMemManager.cc (the
// bitmap + owner-table + policy-delegate shape: findOneEmptyPage/
// swapOnePage/clearOnePage/setMainThreadId/setVirtualPage/
// updatePageWeight) and SwappingLRU.cc/SwappingStrategy.h for the
// replacement-policy interface, with the original's kernel->stats->
// totalTicks replaced by LRU's own simulated tick counter
// so the policy stays deterministic and testable without a running
// scheduler.
package frame

import (
	"fmt"

	"github.com/asig/nsim/internal/errs"
	"github.com/asig/nsim/internal/util"
)

// Owner records which thread and virtual page a frame is currently bound
// to.
type Owner struct {
	ThreadID    int
	VirtualPage int
}

// Policy selects a victim frame and tracks recency, per
// SwappingStrategy.h: findOneElementToSwap / updateElementWeight.
type Policy interface {
	// FindOneToSwap returns the index with the minimum weight, ties
	// broken by lowest index.
	FindOneToSwap() int
	// UpdateWeight sets index's weight to the current tick.
	UpdateWeight(index int)
}

// LRU is the provided replacement policy: the victim is whichever frame
// was least recently bound, using a simulated tick counter rather than
// wall-clock time so tests are deterministic.
type LRU struct {
	weight []int64
	tick   int64
}

// NewLRU returns an LRU policy over size frames, all with weight 0.
func NewLRU(size int) *LRU {
	return &LRU{weight: make([]int64, size)}
}

// FindOneToSwap returns the index with the smallest weight, ties broken by
// lowest index — the original's findOneElementToSwap loop, which keeps the
// first index seen for a tie since it only updates on strict "<".
func (l *LRU) FindOneToSwap() int {
	min := l.weight[0]
	target := 0
	for i := 1; i < len(l.weight); i++ {
		if l.weight[i] < min {
			min = l.weight[i]
			target = i
		}
	}
	return target
}

// UpdateWeight stamps index with the next tick, guaranteeing it becomes
// the most recently used entry regardless of what the caller's external
// clock is doing.
func (l *LRU) UpdateWeight(index int) {
	l.tick++
	l.weight[index] = l.tick
}

// Pool is the physical frame array: NumPhysPages frames, each either free
// or bound to an (Owner, weight).
type Pool struct {
	bits   util.BitSet
	size   uint32
	owners []Owner
	policy Policy
}

// NewPool creates a pool of size frames, all initially free, using policy
// for replacement. A nil policy defaults to LRU.
func NewPool(size uint32, policy Policy) *Pool {
	if policy == nil {
		policy = NewLRU(int(size))
	}
	return &Pool{
		bits:   util.NewBitSet(size),
		size:   size,
		owners: make([]Owner, size),
		policy: policy,
	}
}

func (p *Pool) checkRange(f uint32) error {
	if f >= p.size {
		return fmt.Errorf("frame: frame %d out of range [0, %d)", f, p.size)
	}
	return nil
}

// FindOneEmpty returns the lowest unallocated frame, marking it used, or
// -1 if the pool is full.
func (p *Pool) FindOneEmpty() int {
	return p.bits.FindAndSet(p.size)
}

// SwapOne asks the replacement policy for a victim frame index. It does
// not free the frame — only names it; the caller (the page fault handler)
// is responsible for evicting its owner and rebinding it.
func (p *Pool) SwapOne() int {
	return p.policy.FindOneToSwap()
}

// Clear marks f free.
func (p *Pool) Clear(f uint32) error {
	if err := p.checkRange(f); err != nil {
		return err
	}
	p.bits.Clear(f)
	p.owners[f] = Owner{}
	return nil
}

// IsValid reports whether frame f is currently allocated.
func (p *Pool) IsValid(f uint32) bool {
	return f < p.size && p.bits.Test(f)
}

// Owner returns the (threadID, virtualPage) currently bound to frame f.
func (p *Pool) Owner(f uint32) (Owner, error) {
	if err := p.checkRange(f); err != nil {
		return Owner{}, err
	}
	return p.owners[f], nil
}

// Bind records (threadID, virtualPage) on frame f and refreshes its
// replacement weight — the invariant §4.5 requires: updateWeight must run
// whenever a frame is newly bound, or stale weights bias eviction.
func (p *Pool) Bind(f uint32, threadID, virtualPage int) error {
	if err := p.checkRange(f); err != nil {
		return err
	}
	if !p.bits.Test(f) {
		return fmt.Errorf("frame: frame %d is not allocated: %w", f, errs.BadArgument)
	}
	p.owners[f] = Owner{ThreadID: threadID, VirtualPage: virtualPage}
	p.policy.UpdateWeight(int(f))
	return nil
}

// NumFree returns the number of unallocated frames.
func (p *Pool) NumFree() uint32 {
	return p.bits.NumClear(p.size)
}

// Size returns the pool's frame count.
func (p *Pool) Size() uint32 {
	return p.size
}
