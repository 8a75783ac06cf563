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

// Package errs enumerates the kernel-core error taxonomy as sentinel
// values, so callers can use errors.Is instead of string matching.
package errs

import "errors"

var (
	NotFound     = errors.New("not found")
	Exists       = errors.New("already exists")
	NoSpace      = errors.New("no space")
	DirFull      = errors.New("directory full")
	TooLarge     = errors.New("too large")
	NotDirectory = errors.New("not a directory")
	BadArgument  = errors.New("bad argument")
	IOError      = errors.New("i/o error")
)
