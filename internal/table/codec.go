// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package table

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode parses a header line followed by data rows. A leading UTF-8 BOM is
// skipped. Short rows are padded with empty values and surplus fields are
// dropped. Empty input decodes to no header and no rows.
func Decode(r io.Reader) ([]string, []Row, error) {
	header, rows, _, err := DecodeLines(r)
	return header, rows, err
}

// DecodeLines is Decode that also returns, for each row, the physical line
// on which its record starts. Quoted values may span several lines.
func DecodeLines(r io.Reader) ([]string, []Row, []int, error) {
	br := bufio.NewReader(r)
	if lead, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(lead, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil, nil
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}

	seen := make(map[string]struct{}, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, nil, nil, fmt.Errorf("%w: empty column name at position %d", ErrCorrupt, i+1)
		}
		if _, dup := seen[name]; dup {
			return nil, nil, nil, fmt.Errorf("%w: duplicate column %q", ErrCorrupt, name)
		}
		seen[name] = struct{}{}
		header[i] = name
	}

	var rows []Row
	var lines []int
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		row := make(Row, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = record[i]
			} else {
				row[name] = ""
			}
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, row)
		lines = append(lines, line)
	}
	return header, rows, lines, nil
}

// Encode writes schema as the header line followed by one line per row.
// Values for columns missing from a row are written empty and keys outside
// the schema are ignored.
func Encode(w io.Writer, schema []string, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(schema); err != nil {
		return err
	}
	record := make([]string, len(schema))
	for _, row := range rows {
		for i, name := range schema {
			record[i] = row[name]
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// DeriveSchema returns the sorted union of keys across rows.
func DeriveSchema(rows []Row) []string {
	keys := make(map[string]struct{})
	for _, row := range rows {
		for k := range row {
			keys[k] = struct{}{}
		}
	}
	schema := make([]string, 0, len(keys))
	for k := range keys {
		schema = append(schema, k)
	}
	sort.Strings(schema)
	return schema
}
