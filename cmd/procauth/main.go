// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Command procauth serves the dbms.security procedures and runs them from
// the command line.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/holomush/procauth/pkg/errutil"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := cmd.Execute(); err != nil {
		errutil.LogError(slog.Default(), "procauth failed", err)
		os.Exit(1)
	}
}
