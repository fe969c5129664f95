package smc

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// Telemetry holds power figures in watts, volts and amperes. BatteryPower is
// positive while charging.
type Telemetry struct {
	ACPower      float64 `json:"acPower"`
	BatteryPower float64 `json:"batteryPower"`
	SystemPower  float64 `json:"systemPower"`
	ACVoltage    float64 `json:"acVoltage"`
	ACAmperage   float64 `json:"acAmperage"`
}

// GetPowerTelemetry reads the raw SMC keys and returns calculated power metrics.
func (c *AppleSMC) GetPowerTelemetry() (*Telemetry, error) {
	dcinCurrent, err := c.Read(DCInCurrentKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read dcin current")
	}
	dcinVoltage, err := c.Read(DCInVoltageKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read dcin voltage")
	}
	battCurrent, err := c.Read(BatteryCurrentKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read battery current")
	}
	battVoltage, err := c.Read(BatteryVoltageKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read battery voltage")
	}

	acAmperage := decodeFloat(dcinCurrent.Bytes)
	acVoltage := decodeFloat(dcinVoltage.Bytes)
	pAC := acAmperage * acVoltage

	// mA * mV
	pBatt := (float64(decodeInt(battCurrent.Bytes)) / 1000.0) * (float64(decodeUint(battVoltage.Bytes)) / 1000.0)

	return &Telemetry{
		ACPower:      pAC,
		BatteryPower: pBatt,
		SystemPower:  pAC - pBatt,
		ACVoltage:    acVoltage,
		ACAmperage:   acAmperage,
	}, nil
}

// decodeFloat decodes a 4-byte slice into a little-endian float32.
func decodeFloat(b []byte) float64 {
	if len(b) != 4 {
		return 0
	}
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
}

// decodeInt decodes a 2-byte slice into a little-endian int16.
func decodeInt(b []byte) int16 {
	if len(b) != 2 {
		return 0
	}
	return int16(binary.LittleEndian.Uint16(b))
}

// decodeUint decodes a 2-byte slice into a little-endian uint16.
func decodeUint(b []byte) uint16 {
	if len(b) != 2 {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}
