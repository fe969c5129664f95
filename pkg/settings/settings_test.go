package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/batthud/pkg/alert"
)

func TestSQLiteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)

	_, ok, err := s.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("a", "1"))
	require.NoError(t, s.Set("a", "2"))
	require.NoError(t, s.Set("b", "x"))

	v, ok, err := s.Get("a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	all, err := s.All()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "2", "b": "x"}, all)
	require.NoError(t, s.Close())

	// Values survive reopening.
	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	v, _, err = s.Get("b")
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}

func TestPreferences(t *testing.T) {
	for name, store := range map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemory() },
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "settings.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	} {
		t.Run(name, func(t *testing.T) {
			s := store(t)
			p := NewPreferences(s)

			assert.True(t, p.AlertEnabled(alert.DeviceConnected))
			assert.True(t, p.SoundEnabled())

			require.NoError(t, p.SetAlertEnabled(alert.DeviceConnected, false))
			require.NoError(t, p.SetSoundEnabled(false))
			assert.False(t, p.AlertEnabled(alert.DeviceConnected))
			assert.True(t, p.AlertEnabled(alert.DeviceRemoved))
			assert.False(t, p.SoundEnabled())

			v, ok, err := s.Get("alert.deviceConnected.enabled")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "false", v)

			// Garbage falls back to the default.
			require.NoError(t, s.Set(KeySoundEnabled, "maybe"))
			assert.True(t, p.SoundEnabled())
		})
	}
}

func TestRecordLaunch(t *testing.T) {
	p := NewPreferences(NewMemory())
	assert.Equal(t, "", p.LastLaunchedVersion())

	changed, err := p.RecordLaunch("v1.0.0")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = p.RecordLaunch("v1.0.0")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = p.RecordLaunch("v1.1.0")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "v1.1.0", p.LastLaunchedVersion())
}
