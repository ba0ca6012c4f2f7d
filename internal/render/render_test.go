// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package render

import (
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/confreg/internal/settings"
	"github.com/olegiv/confreg/web"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"layouts/base.html": {Data: []byte(
			`{{define "base"}}<title>{{.Title}}</title>{{if .Flash}}<p class="{{.FlashType}}">{{.Flash}}</p>{{end}}{{template "content" .}}{{end}}`)},
		"partials/hello.html": {Data: []byte(`{{define "hello"}}hello {{.}}{{end}}`)},
		"pages/home.html":     {Data: []byte(`{{define "content"}}{{template "hello" .Data}} {{formatSize 2048}}{{end}}`)},
		"admin/panel.html":    {Data: []byte(`{{define "content"}}panel {{add 1 2}}{{end}}`)},
	}
}

func TestNew(t *testing.T) {
	r, err := New(Config{TemplatesFS: testFS()})
	require.NoError(t, err)
	assert.True(t, r.Has("pages/home"))
	assert.True(t, r.Has("admin/panel"))
	assert.False(t, r.Has("home"))
}

func TestNewEmpty(t *testing.T) {
	_, err := New(Config{TemplatesFS: fstest.MapFS{}})
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	r, err := New(Config{TemplatesFS: testFS()})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	err = r.Render(w, req, http.StatusTeapot, "pages/home", TemplateData{Title: "Home", Data: "world"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "<title>Home</title>hello world 2.0 KiB", w.Body.String())

	w = httptest.NewRecorder()
	require.NoError(t, r.Render(w, req, http.StatusOK, "admin/panel", TemplateData{}))
	assert.Contains(t, w.Body.String(), "panel 3")
}

func TestRenderUnknownPage(t *testing.T) {
	r, err := New(Config{TemplatesFS: testFS()})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	err = r.Render(w, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, "pages/missing", TemplateData{})
	assert.Error(t, err)
	assert.Empty(t, w.Body.String())
}

func TestRenderEscapes(t *testing.T) {
	r, err := New(Config{TemplatesFS: testFS()})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, r.Render(w, req, http.StatusOK, "pages/home", TemplateData{Data: "<b>x</b>"}))
	assert.Contains(t, w.Body.String(), "&lt;b&gt;x&lt;/b&gt;")
}

func TestEmbeddedTemplates(t *testing.T) {
	templates, err := fs.Sub(web.Templates, "templates")
	require.NoError(t, err)
	r, err := New(Config{TemplatesFS: templates})
	require.NoError(t, err)

	for _, name := range []string{
		"pages/login", "pages/register", "pages/closed", "pages/guest",
		"pages/admin_login", "pages/error",
		"admin/dashboard", "admin/guests", "admin/guest", "admin/settings", "admin/backups",
	} {
		assert.True(t, r.Has(name), name)
	}

	w := httptest.NewRecorder()
	conf := settings.Defaults()
	conf.Name = "Test Meeting"
	err = r.Render(w, httptest.NewRequest(http.MethodGet, "/login", nil), http.StatusOK, "pages/login",
		TemplateData{Title: "Login", Conference: conf})
	require.NoError(t, err)
	assert.Contains(t, w.Body.String(), "Welcome to Test Meeting")
}

func TestMarkdown(t *testing.T) {
	r, err := New(Config{TemplatesFS: testFS()})
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    string
		contains []string
		excludes []string
	}{
		{
			name:     "emphasis",
			input:    "**bold** and ~~gone~~",
			contains: []string{"<strong>bold</strong>", "<del>gone</del>"},
		},
		{
			name:     "linkify",
			input:    "see https://example.com",
			contains: []string{`href="https://example.com"`},
		},
		{
			name:     "script stripped",
			input:    "hi <script>alert(1)</script>",
			excludes: []string{"<script", "alert(1)</script>"},
		},
		{
			name:     "javascript link",
			input:    "[x](javascript:alert(1))",
			excludes: []string{"javascript:"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(r.Markdown(tt.input))
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			for _, bad := range tt.excludes {
				assert.NotContains(t, got, bad)
			}
		})
	}

	assert.Empty(t, string(r.Markdown("   ")))
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{2 << 20, "2.0 MiB"},
		{5 << 30, "5.0 GiB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.in); got != tt.want {
			t.Errorf("FormatSize(%d) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "Mar 1, 2026 09:05", FormatTimestamp("2026-03-01T09:05:00Z"))
	assert.Equal(t, "not a time", FormatTimestamp("not a time"))
	assert.Empty(t, FormatTimestamp(""))
}
