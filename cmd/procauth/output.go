// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/holomush/procauth/internal/procedure"
)

// Output formats accepted by --output.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func validateOutput(format string) error {
	switch format {
	case outputTable, outputJSON, outputYAML:
		return nil
	default:
		return oops.Code("INVALID_OUTPUT").
			With("output", format).
			Errorf("output must be table, json or yaml, got %q", format)
	}
}

// writeRecords renders records in format. columns fixes the table column
// order; keys missing from it are appended sorted.
func writeRecords(w io.Writer, format string, columns []string, records []procedure.Record) error {
	if records == nil {
		records = []procedure.Record{}
	}

	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return oops.Code("OUTPUT_FAILED").Wrap(err)
		}
		return nil
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return oops.Code("OUTPUT_FAILED").Wrap(err)
		}
		if err := enc.Close(); err != nil {
			return oops.Code("OUTPUT_FAILED").Wrap(err)
		}
		return nil
	default:
		return writeTable(w, tableColumns(columns, records), records)
	}
}

func tableColumns(declared []string, records []procedure.Record) []string {
	cols := slices.Clone(declared)
	var extra []string
	for _, r := range records {
		for k := range r {
			if !slices.Contains(cols, k) && !slices.Contains(extra, k) {
				extra = append(extra, k)
			}
		}
	}
	slices.Sort(extra)
	return append(cols, extra...)
}

func writeTable(w io.Writer, columns []string, records []procedure.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if len(columns) > 0 {
		_, _ = fmt.Fprintln(tw, strings.ToUpper(strings.Join(columns, "\t")))
		for _, r := range records {
			cells := make([]string, len(columns))
			for i, c := range columns {
				cells[i] = formatCell(r[c])
			}
			_, _ = fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
	}
	if err := tw.Flush(); err != nil {
		return oops.Code("OUTPUT_FAILED").Wrap(err)
	}

	noun := "rows"
	if len(records) == 1 {
		noun = "row"
	}
	if _, err := fmt.Fprintf(w, "%d %s\n", len(records), noun); err != nil {
		return oops.Code("OUTPUT_FAILED").Wrap(err)
	}
	return nil
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return "[" + strings.Join(val, ", ") + "]"
	default:
		return fmt.Sprint(val)
	}
}
