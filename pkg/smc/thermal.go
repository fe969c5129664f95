package smc

import (
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/batthud/pkg/power"
)

// GetBatteryTemperature returns the battery temperature in °C.
func (c *AppleSMC) GetBatteryTemperature() (float64, error) {
	logrus.Tracef("GetBatteryTemperature called")

	v, err := c.Read(BatteryTemperatureKey)
	if err != nil {
		return 0, err
	}

	switch len(v.Bytes) {
	case 4:
		// flt on Apple Silicon
		return decodeFloat(v.Bytes), nil
	case 2:
		// sp78 on Intel
		return float64(int16(binary.BigEndian.Uint16(v.Bytes))) / 256.0, nil
	default:
		return 0, fmt.Errorf("incorrect data length %d", len(v.Bytes))
	}
}

// GetThermalState maps the battery temperature to a thermal state.
func (c *AppleSMC) GetThermalState() (power.ThermalState, error) {
	t, err := c.GetBatteryTemperature()
	if err != nil {
		return power.Optimal, err
	}

	s := ThermalStateFor(t)
	logrus.WithFields(logrus.Fields{
		"celsius": t,
		"state":   s,
	}).Trace("GetThermalState returned")

	return s, nil
}

// ThermalStateFor classifies a battery temperature in °C.
func ThermalStateFor(celsius float64) power.ThermalState {
	switch {
	case celsius >= CriticalTemperature:
		return power.Critical
	case celsius >= SuboptimalTemperature:
		return power.Suboptimal
	default:
		return power.Optimal
	}
}
