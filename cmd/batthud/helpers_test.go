package main

import (
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/batthud/pkg/accessory"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{30 * time.Second, "<1m"},
		{90 * time.Second, "~2m"},
		{59 * time.Minute, "~59m"},
		{65 * time.Minute, "~1h 5m"},
		{3 * time.Hour, "~3h 0m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.in), tt.in.String())
	}
}

func TestParseArgs(t *testing.T) {
	n, err := parseIntArg([]string{"80"}, "limit")
	require.NoError(t, err)
	assert.Equal(t, 80, n)

	_, err = parseIntArg([]string{"eighty"}, "limit")
	assert.Error(t, err)
	_, err = parseIntArg(nil, "limit")
	assert.Error(t, err)

	b, err := parseBoolArg([]string{"true"}, "hover state")
	require.NoError(t, err)
	assert.True(t, b)
	_, err = parseBoolArg([]string{"maybe"}, "hover state")
	assert.Error(t, err)
}

func TestFormatDevice(t *testing.T) {
	color.NoColor = true

	pct := 80
	got := formatDevice(accessory.Record{
		Address:         "aa-bb-cc-dd-ee-ff",
		ConnectionState: accessory.Connected,
		BatteryPercent:  &pct,
		Distance:        accessory.Near,
		Category:        accessory.Headphones,
	})
	assert.True(t, strings.HasPrefix(got, "aa:bb:cc:dd:ee:ff (headphones)"), got)
	assert.Contains(t, got, "battery 80%")
	assert.Contains(t, got, "near")
}

func TestCommandTree(t *testing.T) {
	cmd := NewCommand()
	for _, path := range [][]string{
		{"status"},
		{"devices"},
		{"click"},
		{"settings", "alert", "deviceConnected", "disable"},
		{"settings", "sound", "enable"},
		{"tray"},
	} {
		found, _, err := cmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], found.Name())
	}
}
