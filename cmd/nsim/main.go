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
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const version = "v0.1"

// logLevelFlag implements pflag.Value for zerolog.Level, lifted from
// asig-odit's odit.go.
type logLevelFlag struct {
	level zerolog.Level
}

func (f *logLevelFlag) String() string { return f.level.String() }

func (f *logLevelFlag) Set(value string) error {
	level, err := zerolog.ParseLevel(strings.ToLower(value))
	if err != nil {
		return err
	}
	f.level = level
	return nil
}

func (f *logLevelFlag) Type() string { return "level" }

var flagLogLevel = &logLevelFlag{level: zerolog.InfoLevel}

func initLogging(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = zerolog.
		New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    false,
		}).
		With().Timestamp().Caller().
		Logger()
}

var rootCmd = &cobra.Command{
	Use:     "nsim",
	Short:   "Nachos-style kernel core simulator and disk image tool",
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogging(flagLogLevel.level)
	},
}

func init() {
	rootCmd.PersistentFlags().VarP(flagLogLevel, "log-level", "l",
		"Log level (trace, debug, info, warn, error, fatal, panic)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
