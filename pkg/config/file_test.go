package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "batthud.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestDefaults(t *testing.T) {
	f, err := NewFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, f.PowerPollInterval())
	assert.Equal(t, 15*time.Second, f.DevicePollInterval())
	assert.Equal(t, []int{25, 10, 5, 1}, f.Thresholds())
	assert.Equal(t, 2*time.Second, f.DebounceInterval())
	assert.Equal(t, 5*time.Second, f.DismissInterval())
	assert.Equal(t, 600*time.Millisecond, f.EntranceDuration())
	assert.Equal(t, 400*time.Millisecond, f.ExitDuration())
	assert.Equal(t, -50, f.RSSIProximate())
	assert.Equal(t, -70, f.RSSINear())
	assert.Equal(t, 100, f.ChargeLimit())
	assert.Equal(t, 60, f.EstimatorWindow())
	assert.Equal(t, 10*time.Second, f.ProfilerTimeout())
	assert.Equal(t, time.Duration(0), f.BLEScanWindow())
	assert.Equal(t, "", f.MQTTBroker())
	assert.Equal(t, "batthud/alerts", f.MQTTTopic())
	assert.False(t, f.AllowNonRootAccess())
	assert.NoError(t, f.Validate())
}

func TestEmptyFile(t *testing.T) {
	f, err := NewFile(writeConfig(t, "  \n"))
	require.NoError(t, err)
	assert.Equal(t, 100, f.ChargeLimit())
}

func TestLoadYAMLAndJSON(t *testing.T) {
	f, err := NewFile(writeConfig(t, `
powerPollInterval: 1s
thresholds: [50, 20]
rssiProximate: -40
chargeLimit: 80
mqttBroker: tcp://localhost:1883
`))
	require.NoError(t, err)
	assert.Equal(t, time.Second, f.PowerPollInterval())
	assert.Equal(t, []int{50, 20}, f.Thresholds())
	assert.Equal(t, -40, f.RSSIProximate())
	assert.Equal(t, 80, f.ChargeLimit())
	assert.Equal(t, "tcp://localhost:1883", f.MQTTBroker())

	f, err = NewFile(writeConfig(t, `{"chargeLimit": 90, "dismissInterval": "3s"}`))
	require.NoError(t, err)
	assert.Equal(t, 90, f.ChargeLimit())
	assert.Equal(t, 3*time.Second, f.DismissInterval())
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		invalid bool
	}{
		{"unknown key", "bogus: 1\n", false},
		{"bad duration", "powerPollInterval: soon\n", true},
		{"zero poll interval", "devicePollInterval: 0s\n", true},
		{"negative debounce", "debounceInterval: -1s\n", true},
		{"ascending thresholds", "thresholds: [5, 10]\n", true},
		{"threshold out of range", "thresholds: [120]\n", true},
		{"inverted rssi", "rssiProximate: -80\nrssiNear: -60\n", true},
		{"zero charge limit", "chargeLimit: 0\n", true},
		{"charge limit above 100", "chargeLimit: 101\n", true},
		{"tiny estimator window", "estimatorWindow: 1\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFile(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Equal(t, tt.invalid, errors.Is(err, ErrInvalid), "err: %v", err)
		})
	}
}

func TestReloadKeepsPreviousOnError(t *testing.T) {
	p := writeConfig(t, "chargeLimit: 80\n")
	f, err := NewFile(p)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(p, []byte("chargeLimit: 500\n"), 0644))
	assert.Error(t, f.Load())
	assert.Equal(t, 80, f.ChargeLimit())

	require.NoError(t, os.WriteFile(p, []byte("chargeLimit: 70\n"), 0644))
	require.NoError(t, f.Load())
	assert.Equal(t, 70, f.ChargeLimit())
}

func TestSetChargeLimitAndSave(t *testing.T) {
	p := filepath.Join(t.TempDir(), "batthud.yaml")
	f := NewFileFromConfig(nil, p)

	assert.ErrorIs(t, f.SetChargeLimit(0), ErrInvalid)
	assert.ErrorIs(t, f.SetChargeLimit(101), ErrInvalid)
	require.NoError(t, f.SetChargeLimit(85))
	f.SetAllowNonRootAccess(true)
	require.NoError(t, f.Save())

	g, err := NewFile(p)
	require.NoError(t, err)
	assert.Equal(t, 85, g.ChargeLimit())
	assert.True(t, g.AllowNonRootAccess())
	// Unset keys are not written out.
	assert.Equal(t, 5*time.Second, g.PowerPollInterval())
}

func TestEffectiveConfig(t *testing.T) {
	f := NewFileFromConfig(&RawFileConfig{}, "")
	raw, err := NewRawFileConfigFromConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "5s", *raw.PowerPollInterval)
	assert.Equal(t, "600ms", *raw.EntranceDuration)
	assert.Equal(t, 100, *raw.ChargeLimit)

	_, err = NewRawFileConfigFromConfig(nil)
	assert.Error(t, err)
}
