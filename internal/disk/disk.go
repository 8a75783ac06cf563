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

// Package disk implements the block device §6 describes: a fixed array of
// fixed-size sectors on top of a regular host file, with atomic
// read-sector/write-sector operations. It is the external collaborator the
// rest of the kernel core consumes; nothing above this package knows the
// file is backed by the host filesystem.
package disk

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

// SectorSize is the conventional sector size named in the GLOSSARY.
const SectorSize = 128

// Sector is the fixed-size unit the rest of the kernel core reads and
// writes; every on-disk record (free map, file header, directory page,
// index block) is exactly one Sector.
type Sector [SectorSize]byte

// Disk is a fixed-length array of Sectors backed by a host file. Sector 0
// is never a valid argument from the kernel core's point of view in the
// sense that it's reserved (§6), but the device itself places no
// restriction on it.
type Disk struct {
	f          *os.File
	numSectors uint32
}

// Create formats a new disk image of numSectors sectors, all zeroed, and
// returns it opened.
func Create(path string, numSectors uint32) (*Disk, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("disk: create %s: %w", path, err)
	}
	d := &Disk{f: f, numSectors: numSectors}
	zero := make([]byte, SectorSize*int(numSectors))
	if _, err := f.WriteAt(zero, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("disk: zero-fill %s: %w", path, err)
	}
	log.Info().Msgf("disk: created %s with %d sectors of %d bytes", path, numSectors, SectorSize)
	return d, nil
}

// Open opens an existing disk image. numSectors is derived from the file
// size.
func Open(path string) (*Disk, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("disk: open %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("disk: stat %s: %w", path, err)
	}
	if fi.Size()%SectorSize != 0 {
		f.Close()
		return nil, fmt.Errorf("disk: %s size %d is not a multiple of sector size %d", path, fi.Size(), SectorSize)
	}
	d := &Disk{f: f, numSectors: uint32(fi.Size() / SectorSize)}
	return d, nil
}

func (d *Disk) Close() error {
	return d.f.Close()
}

// NumSectors returns the fixed sector count established at format time.
func (d *Disk) NumSectors() uint32 {
	return d.numSectors
}

func (d *Disk) checkRange(n uint32) error {
	if n >= d.numSectors {
		return fmt.Errorf("disk: sector %d out of range [0, %d)", n, d.numSectors)
	}
	return nil
}

// ReadSector returns the contents of sector n.
func (d *Disk) ReadSector(n uint32) (Sector, error) {
	var sec Sector
	if err := d.checkRange(n); err != nil {
		return sec, err
	}
	if _, err := d.f.ReadAt(sec[:], int64(n)*SectorSize); err != nil {
		return sec, fmt.Errorf("disk: read sector %d: %w", n, err)
	}
	return sec, nil
}

// WriteSector writes sec to sector n.
func (d *Disk) WriteSector(n uint32, sec Sector) error {
	if err := d.checkRange(n); err != nil {
		return err
	}
	if _, err := d.f.WriteAt(sec[:], int64(n)*SectorSize); err != nil {
		return fmt.Errorf("disk: write sector %d: %w", n, err)
	}
	return nil
}
