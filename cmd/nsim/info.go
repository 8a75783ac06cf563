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
	"github.com/asig/nsim/internal/fileheader"
	"github.com/asig/nsim/internal/filesystem"
	"github.com/asig/nsim/internal/util"
)

var infoHex bool

var infoCmd = &cobra.Command{
	Use:                   "info IMAGE [PATH]",
	Short:                 "Show information about a file, or the whole image",
	Args:                  cobra.RangeArgs(1, 2),
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

		if len(args) == 1 {
			report, err := fs.Print()
			if err != nil {
				return err
			}
			fmt.Print(report)
			return nil
		}

		f, err := fs.Open(args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Path: %s\n", args[1])
		fmt.Printf("Name: %s\n", f.Name())
		fmt.Printf("Type: %s\n", f.Type())
		fmt.Printf("Sector: %d\n", f.Sector())
		fmt.Printf("Size: %d bytes\n", f.Size())
		fmt.Printf("Created: %s\n", f.CreationTime())

		if infoHex && f.Type() == fileheader.File {
			buf := make([]byte, f.Size())
			if _, err := f.ReadAt(buf, 0); err != nil {
				return err
			}
			fmt.Print(util.HexDump(buf, 0, len(buf)))
		}
		return nil
	},
}

func init() {
	infoCmd.Flags().BoolVarP(&infoHex, "hex", "x", false, "dump the file's contents as a hex/ASCII listing")
	rootCmd.AddCommand(infoCmd)
}
