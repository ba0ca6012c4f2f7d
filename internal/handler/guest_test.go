// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/confreg/internal/guest"
)

func TestGuestUpdateProfile(t *testing.T) {
	app := newTestApp(t)
	c := app.register("Ada", "ada@x.io", "UCL", "020 7946 0958")

	resp := c.postForm(RouteGuestUpdate, url.Values{
		"name":        {"Ada Lovelace"},
		"email":       {"ada@x.io"},
		"institution": {"UCL"},
		"phone":       {"0000000000"},
		"field2":      {"vegetarian"},
	})
	assertStatus(t, resp.status, http.StatusSeeOther)
	assert.Equal(t, RouteGuest, resp.location)

	rows := app.rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "Ada Lovelace", rows[0][guest.ColName])
	assert.Equal(t, "02079460958", rows[0][guest.ColPhone], "guests cannot change their phone")
	assert.Equal(t, "vegetarian", rows[0][guest.FieldColumn(1)])

	resp = c.get(RouteGuest)
	assert.Contains(t, resp.body, "Profile updated.")
}

func TestGuestUpdateInvalid(t *testing.T) {
	app := newTestApp(t)
	c := app.register("Ada", "ada@x.io", "UCL", "020 7946 0958")

	resp := c.postForm(RouteGuestUpdate, url.Values{
		"name":        {"Ada"},
		"email":       {"nope"},
		"institution": {"UCL"},
	})
	assertStatus(t, resp.status, http.StatusBadRequest)
	assert.Contains(t, resp.body, "Valid email is required.")
	assert.Equal(t, "ada@x.io", app.rows()[0][guest.ColEmail])
}

func TestGuestUploadAndDownload(t *testing.T) {
	app := newTestApp(t)
	c := app.register("Ada", "ada@x.io", "UCL", "020 7946 0958")
	content := []byte("abstract text")

	resp := c.postFile(RouteGuestUpload, "file", "../../abstract.txt", content)
	assertStatus(t, resp.status, http.StatusSeeOther)

	resp = c.get(RouteGuest)
	assert.Contains(t, resp.body, "abstract.txt")

	resp = c.get("/guest/download/abstract.txt")
	assertStatus(t, resp.status, http.StatusOK)
	assert.Equal(t, string(content), resp.body)
	assert.Contains(t, resp.header.Get("Content-Type"), "text/plain")
	assert.Contains(t, resp.header.Get("Content-Disposition"), `attachment; filename="abstract.txt"`)
}

func TestGuestUploadTooLarge(t *testing.T) {
	app := newTestApp(t, withMaxUpload(1024))
	c := app.register("Ada", "ada@x.io", "UCL", "020 7946 0958")

	resp := c.postFile(RouteGuestUpload, "file", "big.bin", bytes.Repeat([]byte{'x'}, 2048))
	assertStatus(t, resp.status, http.StatusBadRequest)
	assert.Contains(t, resp.body, "File too large")

	id := app.rows()[0][guest.ColID]
	files, err := app.uploads.List(id)
	require.NoError(t, err)
	assert.Empty(t, files)

	resp = c.postFile(RouteGuestUpload, "file", "fits.bin", bytes.Repeat([]byte{'x'}, 1024))
	assertStatus(t, resp.status, http.StatusSeeOther)
}

func TestGuestUploadMissingFile(t *testing.T) {
	app := newTestApp(t)
	c := app.register("Ada", "ada@x.io", "UCL", "020 7946 0958")

	resp := c.postFile(RouteGuestUpload, "other", "a.txt", []byte("x"))
	assertStatus(t, resp.status, http.StatusBadRequest)
	assert.Contains(t, resp.body, msgNoFile)
}

func TestUploadScoping(t *testing.T) {
	app := newTestApp(t)
	ada := app.register("Ada", "ada@x.io", "UCL", "020 7946 0958")
	bob := app.register("Bob", "bob@x.io", "MIT", "123-456-7890")

	resp := ada.postFile(RouteGuestUpload, "file", "notes.txt", []byte("private"))
	assertStatus(t, resp.status, http.StatusSeeOther)

	var adaID string
	for _, row := range app.rows() {
		if row[guest.ColName] == "Ada" {
			adaID = row[guest.ColID]
		}
	}
	require.NotEmpty(t, adaID)

	for _, path := range []string{
		"/guest/download/notes.txt",
		"/guest/download/..%2F" + adaID + "%2Fnotes.txt",
		"/guest/download/%2E%2E",
	} {
		resp = bob.get(path)
		assertStatus(t, resp.status, http.StatusNotFound)
		assert.NotContains(t, resp.body, "private", path)
	}

	resp = ada.get("/guest/download/notes.txt")
	assertStatus(t, resp.status, http.StatusOK)
}

func TestGuestRemovedByClearLosesSession(t *testing.T) {
	app := newTestApp(t)
	c := app.register("Ada", "ada@x.io", "UCL", "020 7946 0958")
	token := c.sessionToken()

	require.NoError(t, app.guests.Clear(t.Context()))

	resp := c.get(RouteGuest)
	assertStatus(t, resp.status, http.StatusSeeOther)
	assert.Equal(t, RouteLogin, resp.location)
	assert.False(t, app.sessions.Has(token))
}
