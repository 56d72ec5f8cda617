// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/holomush/procauth/internal/procedure"
	"github.com/holomush/procauth/internal/security"
)

type proceduresOptions struct {
	filter string
	output string
}

// NewProceduresCmd creates the procedures subcommand. Listing needs no realm,
// so the registry is built over an empty in-memory one.
func NewProceduresCmd(deps *AppDeps) *cobra.Command {
	opts := &proceduresOptions{}

	cmd := &cobra.Command{
		Use:   "procedures",
		Short: "List the registered procedures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProcedures(cmd, opts, deps)
		},
	}

	cmd.Flags().StringVarP(&opts.filter, "filter", "f", "", "glob over procedure names, e.g. 'dbms.security.*User*'")
	cmd.Flags().StringVarP(&opts.output, "output", "o", outputTable, "output format (table, json or yaml)")

	return cmd
}

func runProcedures(cmd *cobra.Command, opts *proceduresOptions, deps *AppDeps) error {
	if err := validateOutput(opts.output); err != nil {
		return err
	}
	deps = deps.withDefaults()

	registry, _, err := buildRegistry(security.NewMemoryRealm(), deps.Hasher)
	if err != nil {
		return err
	}
	descriptors, err := registry.List(opts.filter)
	if err != nil {
		return err
	}

	records := make([]procedure.Record, len(descriptors))
	for i, d := range descriptors {
		records[i] = procedureRecord(d)
	}
	return writeRecords(cmd.OutOrStdout(), opts.output,
		[]string{"name", "signature", "requires", "description"}, records)
}

func procedureRecord(d procedure.Descriptor) procedure.Record {
	requires := make([]string, 0, len(d.Requires()))
	for _, c := range d.Requires() {
		requires = append(requires, c.String())
	}
	sig := d.Signature()
	return procedure.Record{
		"name":        d.Name(),
		"signature":   strings.TrimPrefix(sig, d.Name()),
		"requires":    requires,
		"description": d.Description(),
	}
}
