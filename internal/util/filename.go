// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ASCIIFilename transliterates name to a plain ASCII filename suitable for
// the legacy filename parameter of Content-Disposition.
func ASCIIFilename(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, _ := transform.String(t, name)
	folded = unidecode.Unidecode(folded)
	folded = strings.ReplaceAll(folded, " ", "_")
	folded = unsafeFilenameChars.ReplaceAllString(folded, "")
	folded = strings.Trim(folded, "._-")
	if folded == "" {
		return "download"
	}
	return folded
}

// ContentDisposition builds an attachment header value carrying both an
// ASCII fallback and the UTF-8 name in RFC 5987 form.
func ContentDisposition(name string) string {
	return `attachment; filename="` + ASCIIFilename(name) + `"; filename*=UTF-8''` + url.PathEscape(name)
}
