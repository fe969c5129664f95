package power

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ChargingState represents the charging state of the battery.
type ChargingState int

const (
	// OnBattery indicates the device is running from its battery.
	OnBattery ChargingState = iota
	// Charging indicates the battery is charging.
	Charging
	// ChargeComplete indicates the adapter is connected and the battery is
	// full, or held at the charge limit.
	ChargeComplete
)

var chargingStateNames = map[ChargingState]string{
	OnBattery:      "onBattery",
	Charging:       "charging",
	ChargeComplete: "chargeComplete",
}

func (s ChargingState) String() string {
	if n, ok := chargingStateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("ChargingState(%d)", int(s))
}

// PluggedIn reports whether external power is connected.
func (s ChargingState) PluggedIn() bool {
	return s == Charging || s == ChargeComplete
}

func (s ChargingState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ChargingState) UnmarshalText(b []byte) error {
	for k, v := range chargingStateNames {
		if strings.EqualFold(v, string(b)) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown charging state %q", string(b))
}

// ThermalState is the coarse thermal pressure of the device.
type ThermalState int

const (
	Optimal ThermalState = iota
	Suboptimal
	Critical
)

var thermalStateNames = map[ThermalState]string{
	Optimal:    "optimal",
	Suboptimal: "suboptimal",
	Critical:   "critical",
}

func (s ThermalState) String() string {
	if n, ok := thermalStateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("ThermalState(%d)", int(s))
}

func (s ThermalState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ThermalState) UnmarshalText(b []byte) error {
	for k, v := range thermalStateNames {
		if strings.EqualFold(v, string(b)) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown thermal state %q", string(b))
}

// Sample is one reading from the battery.
// Units:
// - Percentage: 0-100
// - FullCapacity, DesignCapacity: mWh, zero when unknown
// - ChargeRate: mW, zero when unknown
type Sample struct {
	Percentage     float64       `json:"percentage"`
	ChargingState  ChargingState `json:"chargingState"`
	ThermalState   ThermalState  `json:"thermalState"`
	Timestamp      time.Time     `json:"timestamp"`
	FullCapacity   float64       `json:"fullCapacity,omitempty"`
	DesignCapacity float64       `json:"designCapacity,omitempty"`
	ChargeRate     float64       `json:"chargeRate,omitempty"`
}

// HasCapacity reports whether the sample carries enough metadata to express
// rates in watts.
func (s Sample) HasCapacity() bool {
	return s.FullCapacity > 0 || s.DesignCapacity > 0
}

// Capacity returns the best known full capacity in mWh.
func (s Sample) Capacity() float64 {
	if s.FullCapacity > 0 {
		return s.FullCapacity
	}
	return s.DesignCapacity
}

// Validate returns an error for readings the detector must not act on.
func (s *Sample) Validate() error {
	if s == nil {
		return fmt.Errorf("missing sample")
	}
	if math.IsNaN(s.Percentage) || s.Percentage < 0 || s.Percentage > 100 {
		return fmt.Errorf("percentage %v out of range [0,100]", s.Percentage)
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("missing timestamp")
	}
	return nil
}
