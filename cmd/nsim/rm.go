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

var rmCmd = &cobra.Command{
	Use:                   "rm IMAGE PATH",
	Short:                 "Remove a file or directory from a disk image",
	Args:                  cobra.ExactArgs(2),
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
		if err := fs.Remove(args[1]); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}
