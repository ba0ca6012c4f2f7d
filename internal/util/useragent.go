// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mileusna/useragent"
)

// DescribeUserAgent condenses a User-Agent header into "Browser on OS (device)"
// for activity log lines.
func DescribeUserAgent(ua string) string {
	if strings.TrimSpace(ua) == "" {
		return "unknown"
	}
	parsed := useragent.Parse(ua)

	browser := parsed.Name
	if browser == "" {
		browser = "unknown client"
	}
	var b strings.Builder
	b.WriteString(browser)
	if parsed.OS != "" {
		b.WriteString(" on ")
		b.WriteString(parsed.OS)
	}
	switch {
	case parsed.Bot:
		b.WriteString(" (bot)")
	case parsed.Tablet:
		b.WriteString(" (tablet)")
	case parsed.Mobile:
		b.WriteString(" (mobile)")
	}
	return b.String()
}
