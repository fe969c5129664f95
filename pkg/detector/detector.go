// Package detector turns raw power and accessory readings into alert events.
//
// A Detector is not safe for concurrent use. Its methods and the callbacks
// of the timers it arms must all run on the same goroutine; the daemon's
// event loop guarantees this by posting timer callbacks back into the loop.
package detector

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/batthud/pkg/accessory"
	"github.com/charlie0129/batthud/pkg/alert"
	"github.com/charlie0129/batthud/pkg/clock"
	"github.com/charlie0129/batthud/pkg/estimator"
	"github.com/charlie0129/batthud/pkg/power"
)

const DefaultDebounce = 2 * time.Second

// Sink receives every emitted event.
type Sink func(alert.Event)

// Options configure a Detector.
type Options struct {
	Thresholds []int
	Debounce   time.Duration
	// ChargeLimit is the percentage at which a charging battery is
	// considered complete. 100 disables the limit.
	ChargeLimit int
}

// chargingState holds the debounced charging state. Pending is only
// meaningful while timer is non-nil.
type chargingState struct {
	Stable  power.ChargingState
	Pending power.ChargingState
	timer   clock.Timer
	gen     uint64
}

// Detector compares successive samples and emits de-duplicated events.
type Detector struct {
	clock     clock.Clock
	estimator *estimator.Estimator
	tracker   *accessory.Tracker
	sink      Sink

	thresholds  []int
	debounce    time.Duration
	chargeLimit int

	baselined  bool
	percentage float64
	charging   chargingState
	thermal    power.ThermalState

	devicesBaselined bool

	stopped bool
}

// New returns a Detector. It fails only when the threshold list is
// malformed.
func New(c clock.Clock, est *estimator.Estimator, tracker *accessory.Tracker, opts Options, sink Sink) (*Detector, error) {
	if err := alert.ValidateThresholds(opts.Thresholds); err != nil {
		return nil, err
	}
	if c == nil {
		c = clock.Real{}
	}
	if sink == nil {
		sink = func(alert.Event) {}
	}

	d := &Detector{
		clock:      c,
		estimator:  est,
		tracker:    tracker,
		sink:       sink,
		thresholds: append([]int(nil), opts.Thresholds...),
		debounce:   opts.Debounce,
	}
	d.SetChargeLimit(opts.ChargeLimit)

	return d, nil
}

// SetChargeLimit changes the charge limit used to classify a charging
// battery as complete.
func (d *Detector) SetChargeLimit(limit int) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	d.chargeLimit = limit
	if d.estimator != nil {
		d.estimator.SetTarget(limit)
	}
}

// SetThresholds replaces the low battery thresholds.
func (d *Detector) SetThresholds(thresholds []int) error {
	if err := alert.ValidateThresholds(thresholds); err != nil {
		return err
	}
	d.thresholds = append([]int(nil), thresholds...)
	return nil
}

// SetDebounce changes the charging debounce window. A pending change keeps
// its original deadline.
func (d *Detector) SetDebounce(debounce time.Duration) {
	d.debounce = debounce
}

// ProcessSample handles one power sample. Invalid samples are logged and
// skipped without touching any state.
func (d *Detector) ProcessSample(s *power.Sample) {
	if d.stopped {
		return
	}
	if err := s.Validate(); err != nil {
		logrus.WithError(err).Warn("skipping invalid power sample")
		return
	}

	sample := *s
	sample.ChargingState = d.observedState(sample)

	if d.estimator != nil {
		d.estimator.Record(sample)
	}

	if !d.baselined {
		d.baselined = true
		d.percentage = sample.Percentage
		d.charging.Stable = sample.ChargingState
		d.thermal = sample.ThermalState
		logrus.WithFields(logrus.Fields{
			"percentage":    sample.Percentage,
			"chargingState": sample.ChargingState,
			"thermalState":  sample.ThermalState,
		}).Debug("power baseline established")
		return
	}

	prev := d.percentage
	d.percentage = sample.Percentage

	if t, ok := alert.LowestCrossed(d.thresholds, prev, sample.Percentage); ok {
		logrus.WithFields(logrus.Fields{
			"previous":  prev,
			"current":   sample.Percentage,
			"threshold": t,
		}).Debug("battery threshold crossed")
		pct := sample.Percentage
		d.emit(alert.Event{
			Kind:       alert.PercentThreshold,
			Threshold:  &t,
			Percentage: &pct,
			Timestamp:  sample.Timestamp,
		})
	}

	d.processCharging(sample.ChargingState)

	if sample.ThermalState != d.thermal {
		from := d.thermal
		d.thermal = sample.ThermalState
		logrus.WithFields(logrus.Fields{
			"from": from,
			"to":   d.thermal,
		}).Debug("thermal state changed")
		th := d.thermal
		d.emit(alert.Event{
			Kind:            alert.DeviceOverheating,
			Thermal:         &th,
			PreviousThermal: &from,
			Timestamp:       sample.Timestamp,
		})
	}
}

// observedState applies the charge limit to the reported state.
func (d *Detector) observedState(s power.Sample) power.ChargingState {
	if s.ChargingState == power.Charging && d.chargeLimit < 100 && s.Percentage >= float64(d.chargeLimit) {
		return power.ChargeComplete
	}
	return s.ChargingState
}

func (d *Detector) processCharging(observed power.ChargingState) {
	pending := d.charging.timer != nil

	switch {
	case observed == d.charging.Stable:
		if pending {
			logrus.WithFields(logrus.Fields{
				"stable":  d.charging.Stable,
				"pending": d.charging.Pending,
			}).Debug("charging state reverted before debounce, discarding")
			d.cancelDebounce()
		}
	case pending && observed == d.charging.Pending:
		// Still waiting for the debounce timer.
	default:
		d.cancelDebounce()
		d.charging.Pending = observed
		if d.debounce <= 0 {
			d.commitCharging(d.charging.gen)
			return
		}
		gen := d.charging.gen
		d.charging.timer = d.clock.AfterFunc(d.debounce, func() {
			d.commitCharging(gen)
		})
		logrus.WithFields(logrus.Fields{
			"stable":   d.charging.Stable,
			"pending":  observed,
			"debounce": d.debounce,
		}).Debug("charging state change observed, debouncing")
	}
}

func (d *Detector) cancelDebounce() {
	if d.charging.timer != nil {
		d.charging.timer.Stop()
		d.charging.timer = nil
	}
	// Invalidate callbacks that were already scheduled.
	d.charging.gen++
}

func (d *Detector) commitCharging(gen uint64) {
	if d.stopped || gen != d.charging.gen {
		return
	}
	d.charging.timer = nil
	d.charging.gen++

	from := d.charging.Stable
	to := d.charging.Pending
	if from == to {
		return
	}
	d.charging.Stable = to

	var kind alert.Kind
	switch to {
	case power.Charging:
		kind = alert.ChargingBegan
	case power.ChargeComplete:
		kind = alert.ChargingComplete
	default:
		kind = alert.ChargingStopped
	}

	logrus.WithFields(logrus.Fields{
		"from": from,
		"to":   to,
	}).Debug("charging state committed")

	pct := d.percentage
	d.emit(alert.Event{
		Kind:       kind,
		Percentage: &pct,
		Timestamp:  d.clock.Now(),
	})
}

// ProcessSnapshot updates the accessory tracker and emits connect and
// disconnect events. Known devices absent from the snapshot are treated as
// disconnected. The first snapshot only establishes the baseline.
func (d *Detector) ProcessSnapshot(s *accessory.Snapshot) {
	if d.stopped || d.tracker == nil {
		return
	}
	if s == nil {
		logrus.Warn("skipping missing accessory snapshot")
		return
	}

	seen := make(map[string]bool, len(s.Devices))
	for _, dev := range s.Devices {
		addr := accessory.NormalizeAddress(dev.Address)
		if addr == "" {
			continue
		}
		seen[addr] = true

		prev, known := d.tracker.State(addr)
		now := d.tracker.UpdateConnection(dev, dev.ConnectionState)
		if !known && now == accessory.Disconnected {
			continue
		}
		if known && prev == now {
			continue
		}
		d.emitDevice(addr, now, s.Timestamp)
	}

	for _, addr := range d.tracker.Addresses() {
		if seen[addr] {
			continue
		}
		prev, _ := d.tracker.State(addr)
		if prev != accessory.Connected {
			continue
		}
		d.tracker.UpdateConnection(accessory.Record{Address: addr}, accessory.Disconnected)
		d.emitDevice(addr, accessory.Disconnected, s.Timestamp)
	}

	if !d.devicesBaselined {
		d.devicesBaselined = true
		logrus.WithField("devices", len(d.tracker.List())).Debug("accessory baseline established")
	}
}

func (d *Detector) emitDevice(addr string, state accessory.ConnectionState, ts time.Time) {
	if !d.devicesBaselined {
		return
	}
	rec, ok := d.tracker.Device(addr)
	if !ok {
		return
	}
	kind := alert.DeviceRemoved
	if state == accessory.Connected {
		kind = alert.DeviceConnected
	}
	d.emit(alert.Event{
		Kind:      kind,
		Device:    &rec,
		Timestamp: ts,
	})
}

func (d *Detector) emit(e alert.Event) {
	fields := logrus.Fields{"kind": e.Kind}
	if e.Threshold != nil {
		fields["threshold"] = *e.Threshold
	}
	if e.Device != nil {
		fields["device"] = e.Device.Address
	}
	if e.Thermal != nil {
		fields["thermal"] = *e.Thermal
	}
	logrus.WithFields(fields).Info("alert detected")

	d.sink(e)
}

// ChargingState returns the committed charging state.
func (d *Detector) ChargingState() power.ChargingState {
	return d.charging.Stable
}

// Stop cancels the pending debounce timer. Events are no longer emitted
// after Stop returns. Calling Stop more than once is a no-op.
func (d *Detector) Stop() {
	if d.stopped {
		return
	}
	d.stopped = true
	d.cancelDebounce()
}
