// Package estimator derives time-to-full, time-to-empty and charge rate from
// the recent history of battery percentage readings.
package estimator

import (
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/batthud/pkg/power"
)

const (
	// DefaultWindow is the default number of samples kept.
	DefaultWindow = 60

	UnitWatts          = "W"
	UnitPercentPerHour = "%/h"
)

// RateSample is one stored percentage reading.
type RateSample struct {
	Percentage float64   `json:"percentage"`
	Timestamp  time.Time `json:"timestamp"`
}

// Estimate is the output of the estimator. Nil fields mean no meaningful
// estimate is available.
type Estimate struct {
	Percentage    float64             `json:"percentage"`
	ChargingState power.ChargingState `json:"chargingState"`
	UntilFull     *time.Duration      `json:"untilFull,omitempty"`
	UntilEmpty    *time.Duration      `json:"untilEmpty,omitempty"`
	HourlyRate    *float64            `json:"hourlyRate,omitempty"`
	RateUnit      string              `json:"rateUnit,omitempty"`
	Target        float64             `json:"target"`
	Samples       int                 `json:"samples"`
}

// Estimator keeps a bounded ring buffer of percentage readings. The oldest
// reading is evicted when the buffer is full.
type Estimator struct {
	mu sync.Mutex

	window    int
	samples   []RateSample
	pluggedIn bool
	target    float64
	last      *power.Sample
}

// New returns an Estimator keeping at most window samples.
func New(window int) *Estimator {
	if window < 2 {
		window = DefaultWindow
	}
	return &Estimator{
		window:  window,
		samples: make([]RateSample, 0, window),
		target:  100,
	}
}

// SetTarget sets the percentage considered "full", i.e. the charge limit.
func (e *Estimator) SetTarget(limit int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if limit <= 0 || limit > 100 {
		limit = 100
	}
	e.target = float64(limit)
}

// Record adds a sample. A sample is stored only when its percentage differs
// from the last stored one. The buffer is cleared when the charging
// direction flips so slopes of opposite sign are never averaged together.
func (e *Estimator) Record(s power.Sample) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pluggedIn := s.ChargingState.PluggedIn()
	if e.last != nil && pluggedIn != e.pluggedIn {
		logrus.WithFields(logrus.Fields{
			"pluggedIn": pluggedIn,
			"dropped":   len(e.samples),
		}).Debug("charging direction changed, resetting rate window")
		e.samples = e.samples[:0]
	}
	e.pluggedIn = pluggedIn
	e.last = &s

	if n := len(e.samples); n > 0 && e.samples[n-1].Percentage == s.Percentage {
		return
	}

	if len(e.samples) >= e.window {
		e.samples = e.samples[1:]
	}
	// Round to strip monotonic clock reading.
	e.samples = append(e.samples, RateSample{Percentage: s.Percentage, Timestamp: s.Timestamp.Round(0)})
}

// Reset drops every stored sample.
func (e *Estimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.samples = e.samples[:0]
	e.last = nil
}

// Samples returns a copy of the stored samples, oldest first.
func (e *Estimator) Samples() []RateSample {
	e.mu.Lock()
	defer e.mu.Unlock()

	ret := make([]RateSample, len(e.samples))
	copy(ret, e.samples)
	return ret
}

// Rate returns the average slope in percent per second over the window.
// Pairs with a non-positive time delta are discarded.
func (e *Estimator) Rate() (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.rate()
}

func (e *Estimator) rate() (float64, bool) {
	var sum float64
	var n int
	for i := 1; i < len(e.samples); i++ {
		dt := e.samples[i].Timestamp.Sub(e.samples[i-1].Timestamp).Seconds()
		if dt <= 0 {
			continue
		}
		sum += (e.samples[i].Percentage - e.samples[i-1].Percentage) / dt
		n++
	}
	if n == 0 {
		return 0, false
	}
	r := sum / float64(n)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return r, true
}

// Estimate computes the current estimate from the stored window and the
// last recorded sample.
func (e *Estimator) Estimate() Estimate {
	e.mu.Lock()
	defer e.mu.Unlock()

	est := Estimate{
		Target:  e.target,
		Samples: len(e.samples),
	}
	if e.last == nil {
		return est
	}

	pct := e.last.Percentage
	est.Percentage = pct
	est.ChargingState = e.last.ChargingState

	rate, ok := e.rate()
	if !ok || rate == 0 {
		return est
	}

	hourly := rate * 3600
	est.RateUnit = UnitPercentPerHour
	if e.last.HasCapacity() {
		// %/h of a mWh capacity is mW; report W.
		hourly = hourly / 100 * e.last.Capacity() / 1000
		est.RateUnit = UnitWatts
	}
	est.HourlyRate = &hourly

	switch e.last.ChargingState {
	case power.Charging:
		if pct >= e.target || rate <= 0 {
			break
		}
		d := secondsToDuration((e.target - pct) / rate)
		est.UntilFull = &d
	case power.OnBattery:
		if pct <= 0 || rate >= 0 {
			break
		}
		d := secondsToDuration(pct / -rate)
		est.UntilEmpty = &d
	}

	return est
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second)).Round(time.Second)
}
