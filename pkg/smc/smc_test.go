package smc

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/charlie0129/batthud/pkg/power"
)

func float32Bytes(f float32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(f))
	return b
}

func TestBatteryReads(t *testing.T) {
	c := NewMock(map[string][]byte{
		BatteryChargeKey: {73},
		ACPowerKey:       {1},
	})

	charge, err := c.GetBatteryCharge()
	if err != nil || charge != 73 {
		t.Fatalf("GetBatteryCharge() = %d, %v", charge, err)
	}
	plugged, err := c.IsPluggedIn()
	if err != nil || !plugged {
		t.Fatalf("IsPluggedIn() = %t, %v", plugged, err)
	}
}

func TestBatteryTemperature(t *testing.T) {
	tests := []struct {
		name  string
		raw   []byte
		want  float64
		state power.ThermalState
	}{
		{"flt optimal", float32Bytes(30.5), 30.5, power.Optimal},
		{"flt suboptimal", float32Bytes(38), 38, power.Suboptimal},
		{"flt critical", float32Bytes(47.25), 47.25, power.Critical},
		{"sp78", []byte{0x2d, 0x80}, 45.5, power.Critical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewMock(map[string][]byte{BatteryTemperatureKey: tt.raw})
			got, err := c.GetBatteryTemperature()
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("temperature = %v, want %v", got, tt.want)
			}
			s, err := c.GetThermalState()
			if err != nil || s != tt.state {
				t.Fatalf("GetThermalState() = %v, %v, want %v", s, err, tt.state)
			}
		})
	}
}

func TestBatteryTemperatureBadLength(t *testing.T) {
	c := NewMock(map[string][]byte{BatteryTemperatureKey: {1, 2, 3}})
	if _, err := c.GetBatteryTemperature(); err == nil {
		t.Fatalf("expected error for 3-byte value")
	}
}

func TestPowerTelemetry(t *testing.T) {
	current := make([]byte, 2)
	binary.LittleEndian.PutUint16(current, uint16(2000))
	voltage := make([]byte, 2)
	binary.LittleEndian.PutUint16(voltage, 12000)

	c := NewMock(map[string][]byte{
		DCInCurrentKey:    float32Bytes(3),
		DCInVoltageKey:    float32Bytes(20),
		BatteryCurrentKey: current,
		BatteryVoltageKey: voltage,
	})

	tel, err := c.GetPowerTelemetry()
	if err != nil {
		t.Fatal(err)
	}
	if tel.ACPower != 60 || tel.BatteryPower != 24 || tel.SystemPower != 36 {
		t.Fatalf("unexpected telemetry %+v", tel)
	}
}

func TestProbe(t *testing.T) {
	prefill := map[string][]byte{}
	for _, k := range allKeys {
		prefill[k] = []byte{0}
	}
	c := NewMock(prefill)
	if missing := c.Probe(); len(missing) != 0 {
		t.Fatalf("unexpected missing keys %v", missing)
	}
}
