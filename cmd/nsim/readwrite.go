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

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/asig/nsim/internal/disk"
	"github.com/asig/nsim/internal/fileheader"
	"github.com/asig/nsim/internal/filesystem"
)

var readCmd = &cobra.Command{
	Use:                   "read IMAGE SRC DEST",
	Short:                 "Copy a file from a disk image to the host filesystem",
	Args:                  cobra.ExactArgs(3),
	DisableFlagsInUseLine: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := disk.Open(args[0])
		if err != nil {
			return err
		}
		defer d.Close()
		fs, err := filesystem.Open(d)
		if err != nil {
			return err
		}
		f, err := fs.Open(args[1])
		if err != nil {
			return err
		}
		buf := make([]byte, f.Size())
		if _, err := f.ReadAt(buf, 0); err != nil {
			return err
		}
		if err := os.WriteFile(args[2], buf, 0644); err != nil {
			return err
		}
		fmt.Printf("Copied %s (%d bytes) -> %s\n", args[1], len(buf), args[2])
		return nil
	},
}

var writeCmd = &cobra.Command{
	Use:                   "write IMAGE SRC DEST",
	Short:                 "Copy a file from the host filesystem into a disk image",
	Args:                  cobra.ExactArgs(3),
	DisableFlagsInUseLine: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		d, err := disk.Open(args[0])
		if err != nil {
			return err
		}
		defer d.Close()
		fs, err := filesystem.Open(d)
		if err != nil {
			return err
		}
		if err := fs.Create(args[2], fileheader.File); err != nil {
			return err
		}
		f, err := fs.Open(args[2])
		if err != nil {
			return err
		}
		if _, err := f.WriteAt(data, 0); err != nil {
			return err
		}
		fmt.Printf("Copied %s -> %s (%d bytes)\n", args[1], args[2], len(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)
}
