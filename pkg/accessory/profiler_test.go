package accessory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profilerXML = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<array>
	<dict>
		<key>_dataType</key>
		<string>SPBluetoothDataType</string>
		<key>_items</key>
		<array>
			<dict>
				<key>device_connected</key>
				<array>
					<dict>
						<key>AirPods Pro</key>
						<dict>
							<key>device_address</key>
							<string>AA:BB:CC:DD:EE:FF</string>
							<key>device_minorType</key>
							<string>Headphones</string>
							<key>device_batteryLevelLeft</key>
							<string>80%</string>
							<key>device_batteryLevelRight</key>
							<string>75%</string>
							<key>device_rssi</key>
							<string>-48</string>
						</dict>
					</dict>
				</array>
				<key>device_not_connected</key>
				<array>
					<dict>
						<key>Magic Keyboard</key>
						<dict>
							<key>device_address</key>
							<string>11:22:33:44:55:66</string>
							<key>device_minorType</key>
							<string>Keyboard</string>
						</dict>
					</dict>
					<dict>
						<key>Fridge</key>
						<dict>
							<key>device_address</key>
							<string>66:55:44:33:22:11</string>
							<key>device_minorType</key>
							<string>Appliance</string>
						</dict>
					</dict>
				</array>
			</dict>
		</array>
	</dict>
</array>
</plist>`

func TestParseProfilerOutput(t *testing.T) {
	devices, err := ParseProfilerOutput([]byte(profilerXML))
	require.NoError(t, err)
	require.Len(t, devices, 3)

	byName := map[string]Record{}
	for _, d := range devices {
		byName[d.Name] = d
	}

	pods := byName["AirPods Pro"]
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", pods.Address)
	assert.Equal(t, Connected, pods.ConnectionState)
	assert.Equal(t, Headphones, pods.Category)
	require.NotNil(t, pods.BatteryPercent)
	assert.Equal(t, 75, *pods.BatteryPercent)
	require.NotNil(t, pods.RSSI)
	assert.Equal(t, -48, *pods.RSSI)

	kb := byName["Magic Keyboard"]
	assert.Equal(t, Disconnected, kb.ConnectionState)
	assert.Equal(t, Keyboard, kb.Category)
	assert.Nil(t, kb.BatteryPercent)

	assert.Equal(t, Other, byName["Fridge"].Category)
}

func TestProfilerUnavailable(t *testing.T) {
	p := NewProfiler(50 * time.Millisecond)
	p.Run = func(ctx context.Context, _ string, _ ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	start := time.Now()
	_, err := p.Devices(context.Background())
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestProfilerMalformedOutput(t *testing.T) {
	p := NewProfiler(time.Second)
	p.Run = func(context.Context, string, ...string) ([]byte, error) {
		return []byte("not a plist"), nil
	}

	_, err := p.Devices(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMergeRSSI(t *testing.T) {
	existing := -30
	records := []Record{
		{Address: "AA:BB:CC:DD:EE:FF", Name: "Pods"},
		{Address: "11:22:33:44:55:66", Name: "Keyboard"},
		{Address: "66:55:44:33:22:11", Name: "Mouse", RSSI: &existing},
	}
	sightings := []Sighting{
		{Address: "aa-bb-cc-dd-ee-ff", RSSI: -55},
		{Address: "uuid-1234", Name: "keyboard", RSSI: -72},
		{Address: "66:55:44:33:22:11", RSSI: -90},
	}

	got := MergeRSSI(records, sightings)
	require.NotNil(t, got[0].RSSI)
	assert.Equal(t, -55, *got[0].RSSI)
	require.NotNil(t, got[1].RSSI)
	assert.Equal(t, -72, *got[1].RSSI)
	assert.Equal(t, -30, *got[2].RSSI)
}
