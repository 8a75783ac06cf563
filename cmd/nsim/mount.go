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
	"os/signal"
	"syscall"

	bazilfuse "bazil.org/fuse"
	bazilfs "bazil.org/fuse/fs"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/asig/nsim/internal/disk"
	"github.com/asig/nsim/internal/filesystem"
	"github.com/asig/nsim/internal/fsmount"
)

var mountCmd = &cobra.Command{
	Use:                   "mount IMAGE MOUNTPOINT",
	Short:                 "Mount a disk image's filesystem via FUSE",
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

		conn, err := bazilfuse.Mount(args[1], bazilfuse.FSName("nsim"), bazilfuse.Subtype("nsimfs"))
		if err != nil {
			return err
		}
		defer conn.Close()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			log.Info().Msg("fsmount: unmounting on signal")
			bazilfuse.Unmount(args[1])
		}()

		log.Info().Msgf("fsmount: serving %s at %s", args[0], args[1])
		if err := bazilfs.Serve(conn, fsmount.NewFS(fs)); err != nil {
			return err
		}

		<-conn.Ready
		if err := conn.MountError; err != nil {
			return fmt.Errorf("fsmount: mount error: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mountCmd)
}
