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

	"github.com/spf13/cobra"

	"github.com/asig/nsim/internal/disk"
	"github.com/asig/nsim/internal/filesystem"
)

var listDir string

var listCmd = &cobra.Command{
	Use:                   "list IMAGE",
	Short:                 "List files in a disk image directory",
	Args:                  cobra.ExactArgs(1),
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
		entries, err := fs.ListAt(listDir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s\tsector %d\n", e.Name, e.Sector)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVarP(&listDir, "dir", "d", "/", "Directory path to list")
	rootCmd.AddCommand(listCmd)
}
