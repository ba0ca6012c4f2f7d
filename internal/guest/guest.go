// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package guest models conference attendees and stores them as rows of the
// guest table.
package guest

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/olegiv/confreg/internal/table"
)

// Column names of the guest table.
const (
	ColID          = "ID"
	ColName        = "Name"
	ColEmail       = "Email"
	ColInstitution = "Institution"
	ColPhone       = "Phone"
	ColCreatedAt   = "CreatedAt"
	ColUpdatedAt   = "UpdatedAt"
)

// ExtraFields is the number of free-form extension slots.
const ExtraFields = 5

// Schema is the ordered column list written to the guest table.
var Schema = []string{
	ColID, ColName, ColEmail, ColInstitution, ColPhone,
	"Field1", "Field2", "Field3", "Field4", "Field5",
	ColCreatedAt, ColUpdatedAt,
}

// FieldColumn returns the column name of extension slot i (0-based).
func FieldColumn(i int) string {
	return Schema[5+i]
}

// Guest is one registered attendee.
type Guest struct {
	ID          string
	Name        string
	Email       string
	Institution string
	Phone       string
	Fields      [ExtraFields]string
	CreatedAt   string
	UpdatedAt   string
}

// FromRow converts a table row into a Guest.
func FromRow(r table.Row) Guest {
	g := Guest{
		ID:          r[ColID],
		Name:        r[ColName],
		Email:       r[ColEmail],
		Institution: r[ColInstitution],
		Phone:       r[ColPhone],
		CreatedAt:   r[ColCreatedAt],
		UpdatedAt:   r[ColUpdatedAt],
	}
	for i := range g.Fields {
		g.Fields[i] = r[FieldColumn(i)]
	}
	return g
}

// Row converts g into a table row covering every schema column.
func (g Guest) Row() table.Row {
	r := table.Row{
		ColID:          g.ID,
		ColName:        g.Name,
		ColEmail:       g.Email,
		ColInstitution: g.Institution,
		ColPhone:       g.Phone,
		ColCreatedAt:   g.CreatedAt,
		ColUpdatedAt:   g.UpdatedAt,
	}
	for i, v := range g.Fields {
		r[FieldColumn(i)] = v
	}
	return r
}

// Input carries user supplied guest attributes.
type Input struct {
	Name        string
	Email       string
	Institution string
	Phone       string
	Fields      [ExtraFields]string
}

var nonDigits = regexp.MustCompile(`\D`)

// NormalizePhone strips everything but digits. When countryCode is set, a
// number written in international form for that country ("+44 20 ..." or
// "0044 20 ...") is rewritten to its national form with a leading 0.
func NormalizePhone(raw, countryCode string) string {
	trimmed := strings.TrimSpace(raw)
	digits := nonDigits.ReplaceAllString(trimmed, "")
	if countryCode == "" {
		return digits
	}
	switch {
	case strings.HasPrefix(trimmed, "+") && strings.HasPrefix(digits, countryCode):
		return "0" + digits[len(countryCode):]
	case strings.HasPrefix(digits, "00"+countryCode):
		return "0" + digits[2+len(countryCode):]
	}
	return digits
}

// normalize trims text fields, composes name and institution to NFC and
// normalizes the phone.
func (in Input) normalize(countryCode string) Input {
	out := in
	out.Name = norm.NFC.String(strings.TrimSpace(in.Name))
	out.Email = strings.TrimSpace(in.Email)
	out.Institution = norm.NFC.String(strings.TrimSpace(in.Institution))
	out.Phone = NormalizePhone(in.Phone, countryCode)
	return out
}

// matches reports whether q (lower case) appears in the ID, name, phone or email.
func (g Guest) matches(q string) bool {
	for _, v := range []string{g.ID, g.Name, g.Phone, g.Email} {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}
