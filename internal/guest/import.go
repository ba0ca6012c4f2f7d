// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package guest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olegiv/confreg/internal/table"
)

// SkippedRow records why an imported line was not added.
type SkippedRow struct {
	Line   int
	Reason string
}

// ImportReport summarizes a bulk import.
type ImportReport struct {
	Added   int
	Skipped []SkippedRow
}

var errNothingToImport = errors.New("nothing to import")

// Import appends guests read from a CSV document. Column names are matched
// case-insensitively. Rows that fail validation or reuse a phone number
// already present (in the table or earlier in the file) are skipped.
func (r *Repository) Import(ctx context.Context, src io.Reader) (ImportReport, error) {
	header, rows, lines, err := table.DecodeLines(src)
	if err != nil {
		return ImportReport{}, &ValidationError{Problems: []string{"The CSV file could not be read: " + err.Error()}}
	}
	columns := make(map[string]string, len(header))
	for _, h := range header {
		columns[strings.ToLower(h)] = h
	}
	get := func(row table.Row, col string) string {
		if h, ok := columns[strings.ToLower(col)]; ok {
			return row[h]
		}
		return ""
	}

	var report ImportReport
	type candidate struct {
		line  int
		input Input
	}
	candidates := make([]candidate, 0, len(rows))
	for i, row := range rows {
		line := lines[i]
		in := Input{
			Name:        get(row, ColName),
			Email:       get(row, ColEmail),
			Institution: get(row, ColInstitution),
			Phone:       get(row, ColPhone),
		}
		for f := range in.Fields {
			in.Fields[f] = get(row, FieldColumn(f))
		}
		in = in.normalize(r.countryCode)
		if err := Validate(in); err != nil {
			report.Skipped = append(report.Skipped, SkippedRow{Line: line, Reason: strings.Join(Problems(err), " ")})
			continue
		}
		candidates = append(candidates, candidate{line: line, input: in})
	}

	err = r.store.Update(ctx, func(existing []table.Row) ([]table.Row, error) {
		phones := make(map[string]struct{}, len(existing))
		ids := make(map[string]struct{}, len(existing))
		for _, row := range existing {
			phones[row[ColPhone]] = struct{}{}
			ids[row[ColID]] = struct{}{}
		}
		added := 0
		for _, c := range candidates {
			if _, dup := phones[c.input.Phone]; dup {
				report.Skipped = append(report.Skipped, SkippedRow{Line: c.line, Reason: "Phone already registered."})
				continue
			}
			id, err := r.uniqueID(ids)
			if err != nil {
				return nil, err
			}
			existing = append(existing, r.newGuest(id, c.input).Row())
			phones[c.input.Phone] = struct{}{}
			added++
		}
		report.Added = added
		if added == 0 {
			return nil, errNothingToImport
		}
		return existing, nil
	}, Schema)
	if err != nil && !errors.Is(err, errNothingToImport) {
		return ImportReport{}, fmt.Errorf("importing guests: %w", err)
	}

	sort.Slice(report.Skipped, func(i, j int) bool { return report.Skipped[i].Line < report.Skipped[j].Line })
	r.logger.Info("bulk import finished", "added", report.Added, "skipped", len(report.Skipped), "category", "admin")
	return report, nil
}
