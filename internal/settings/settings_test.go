package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/confreg/internal/testutil"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "settings.json"), testutil.TestLoggerSilent())
	require.NoError(t, err)
	return s
}

func TestOpenWritesDefaults(t *testing.T) {
	s := openTest(t)
	assert.FileExists(t, s.path)

	got, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), got)
	assert.True(t, got.RegistrationOpen)
	assert.False(t, got.ShowSecretaryPhone)
}

func TestGetMergesPartialFile(t *testing.T) {
	s := openTest(t)
	require.NoError(t, os.WriteFile(s.path, []byte(`{"name":"GoCon","show_secretary_phone":"yes","unknown":1}`), 0o640))

	got, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, "GoCon", got.Name)
	assert.True(t, got.ShowSecretaryPhone)
	assert.True(t, got.RegistrationOpen, "missing keys fall back to defaults")
}

func TestGetRecreatesMissingFile(t *testing.T) {
	s := openTest(t)
	require.NoError(t, os.Remove(s.path))

	got, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), got)
	assert.FileExists(t, s.path)
}

func TestGetBrokenFileServesDefaults(t *testing.T) {
	s := openTest(t)
	require.NoError(t, os.WriteFile(s.path, []byte("{not json"), 0o640))

	got, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), got)
}

func TestUpdate(t *testing.T) {
	s := openTest(t)

	got, err := s.Update(map[string]string{
		"name":                   "  Magna Summit ",
		"tagline":                "Science & <code>",
		"show_chairperson_phone": "ON",
		"registration_open":      "no",
	})
	require.NoError(t, err)
	assert.Equal(t, "Magna Summit", got.Name)
	assert.True(t, got.ShowChairpersonPhone)
	assert.False(t, got.RegistrationOpen)

	data, err := os.ReadFile(s.path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, false, raw["registration_open"])
	assert.Contains(t, string(data), "Science & <code>")
	assert.NoFileExists(t, s.path+".tmp")

	reopened, err := Open(s.path, testutil.TestLoggerSilent())
	require.NoError(t, err)
	again, err := reopened.Get()
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestUpdateUnknownKey(t *testing.T) {
	s := openTest(t)
	_, err := s.Update(map[string]string{"name": "X", "theme": "dark"})
	assert.ErrorIs(t, err, ErrUnknownField)

	got, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, "Conference", got.Name, "rejected update writes nothing")
}

func TestCacheFollowsExternalEdits(t *testing.T) {
	s := openTest(t)
	_, err := s.Get()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(s.path, []byte(`{"name":"Edited elsewhere"}`), 0o640))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(s.path, future, future))

	got, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, "Edited elsewhere", got.Name)
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", "Yes", " on "} {
		assert.True(t, ParseBool(v), v)
	}
	for _, v := range []string{"", "0", "false", "off", "nope"} {
		assert.False(t, ParseBool(v), v)
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Len(t, keys, 16)
	assert.True(t, IsFlag("registration_open"))
	assert.False(t, IsFlag("name"))
	assert.False(t, IsFlag("bogus"))
}
