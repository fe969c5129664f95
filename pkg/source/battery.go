package source

import (
	"github.com/distatus/battery"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/batthud/pkg/clock"
	"github.com/charlie0129/batthud/pkg/power"
)

// Sensors are the SMC readings that refine a battery sample.
type Sensors interface {
	GetBatteryCharge() (int, error)
	IsPluggedIn() (bool, error)
	GetThermalState() (power.ThermalState, error)
}

// BatterySource reads power samples from the OS battery API, with the SMC
// supplying the exact percentage and the thermal state when available.
type BatterySource struct {
	// GetAll lists the batteries. Defaults to battery.GetAll.
	GetAll  func() ([]*battery.Battery, error)
	Sensors Sensors
	Clock   clock.Clock
}

func NewBatterySource(sensors Sensors, c clock.Clock) *BatterySource {
	if c == nil {
		c = clock.Real{}
	}
	return &BatterySource{
		GetAll:  battery.GetAll,
		Sensors: sensors,
		Clock:   c,
	}
}

// Sample takes one reading. An error means the cycle should be skipped.
func (s *BatterySource) Sample() (*power.Sample, error) {
	batteries, err := s.GetAll()
	if err != nil && len(batteries) == 0 {
		return nil, pkgerrors.Wrap(err, "failed to read batteries")
	}
	if len(batteries) == 0 || batteries[0] == nil {
		return nil, pkgerrors.New("no batteries found")
	}

	// All Apple Silicon MacBooks only have one battery.
	bat := batteries[0]

	sample := &power.Sample{
		FullCapacity:   bat.Full,
		DesignCapacity: bat.Design,
		ChargeRate:     bat.ChargeRate,
		Timestamp:      s.Clock.Now(),
	}
	known := bat.Full > 0
	if known {
		sample.Percentage = bat.Current / bat.Full * 100
		if sample.Percentage > 100 {
			sample.Percentage = 100
		}
	}

	var pluggedIn *bool
	if s.Sensors != nil {
		if charge, err := s.Sensors.GetBatteryCharge(); err == nil {
			sample.Percentage = float64(charge)
			known = true
		} else {
			logrus.WithError(err).Trace("smc battery charge unavailable")
		}
		if p, err := s.Sensors.IsPluggedIn(); err == nil {
			pluggedIn = &p
		}
		if t, err := s.Sensors.GetThermalState(); err == nil {
			sample.ThermalState = t
		} else {
			logrus.WithError(err).Trace("smc thermal state unavailable")
		}
	}

	// A zero here would read as an empty battery.
	if !known {
		return nil, pkgerrors.New("battery capacity unknown")
	}

	state, err := chargingState(bat.State, pluggedIn)
	if err != nil {
		return nil, err
	}
	sample.ChargingState = state

	return sample, nil
}

// chargingState maps the OS battery state. A battery that is neither
// charging nor discharging while on AC is held by a charge limit or
// optimized charging, which counts as charge complete.
func chargingState(st battery.State, pluggedIn *bool) (power.ChargingState, error) {
	switch st {
	case battery.Charging:
		return power.Charging, nil
	case battery.Full:
		return power.ChargeComplete, nil
	case battery.Discharging, battery.Empty:
		return power.OnBattery, nil
	}

	if pluggedIn == nil {
		return power.OnBattery, pkgerrors.Errorf("unknown battery state %v", st)
	}
	if *pluggedIn {
		return power.ChargeComplete, nil
	}
	return power.OnBattery, nil
}
