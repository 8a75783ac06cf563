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

var formatNumSectors uint32

var formatCmd = &cobra.Command{
	Use:                   "format IMAGE",
	Short:                 "Create and format a new disk image",
	Args:                  cobra.ExactArgs(1),
	DisableFlagsInUseLine: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := disk.Create(args[0], formatNumSectors)
		if err != nil {
			return err
		}
		defer d.Close()
		if _, err := filesystem.Format(d); err != nil {
			return err
		}
		fmt.Printf("Formatted %s: %d sectors\n", args[0], formatNumSectors)
		return nil
	},
}

func init() {
	formatCmd.Flags().Uint32VarP(&formatNumSectors, "sectors", "n", 512, "Number of sectors")
	rootCmd.AddCommand(formatCmd)
}
