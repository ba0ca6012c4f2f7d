// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package version

import (
	"runtime/debug"
	"testing"
)

func TestInfoString(t *testing.T) {
	tests := []struct {
		info Info
		want string
	}{
		{Info{Version: "dev"}, "confreg dev"},
		{Info{Version: "v1.0.0", GitCommit: "abc1234"}, "confreg v1.0.0 (abc1234)"},
		{Info{Version: "v1.0.0", GitCommit: "abc1234", BuildTime: "2025-01-30T12:00:00Z"}, "confreg v1.0.0 (abc1234) built 2025-01-30T12:00:00Z"},
	}
	for _, tt := range tests {
		if got := tt.info.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestFillFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{Settings: []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
	}}

	info := Info{Version: "dev"}
	fillFromBuildInfo(&info, bi)
	if info.GitCommit != "0123456" {
		t.Errorf("GitCommit = %q, want 0123456", info.GitCommit)
	}
	if info.BuildTime != "2026-01-02T03:04:05Z" {
		t.Errorf("BuildTime = %q", info.BuildTime)
	}

	injected := Info{Version: "v1", GitCommit: "feedbee"}
	fillFromBuildInfo(&injected, bi)
	if injected.GitCommit != "feedbee" {
		t.Errorf("injected commit overwritten: %q", injected.GitCommit)
	}
}

func TestGetDefaults(t *testing.T) {
	if got := Get().Version; got != Version {
		t.Errorf("Get().Version = %q, want %q", got, Version)
	}
}
