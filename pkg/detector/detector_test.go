package detector

import (
	"math"
	"testing"
	"time"

	"github.com/charlie0129/batthud/pkg/accessory"
	"github.com/charlie0129/batthud/pkg/alert"
	"github.com/charlie0129/batthud/pkg/clock"
	"github.com/charlie0129/batthud/pkg/estimator"
	"github.com/charlie0129/batthud/pkg/power"
)

type recorder struct {
	events []alert.Event
}

func (r *recorder) sink(e alert.Event) { r.events = append(r.events, e) }

func (r *recorder) kinds() []alert.Kind {
	var ret []alert.Kind
	for _, e := range r.events {
		ret = append(ret, e.Kind)
	}
	return ret
}

func newTestDetector(t *testing.T, opts Options) (*Detector, *clock.Fake, *recorder) {
	t.Helper()
	if opts.Thresholds == nil {
		opts.Thresholds = alert.DefaultThresholds
	}
	c := clock.NewFake(time.Unix(1700000000, 0))
	r := &recorder{}
	d, err := New(c, estimator.New(10), accessory.NewTracker(c, accessory.DefaultThresholds), opts, r.sink)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return d, c, r
}

func sampleAt(c *clock.Fake, pct float64, state power.ChargingState) *power.Sample {
	return &power.Sample{Percentage: pct, ChargingState: state, Timestamp: c.Now()}
}

func TestNewRejectsMalformedThresholds(t *testing.T) {
	_, err := New(nil, nil, nil, Options{Thresholds: []int{5, 10}}, nil)
	if err == nil {
		t.Fatalf("expected error for ascending thresholds")
	}
}

func TestThresholdCrossing(t *testing.T) {
	tests := []struct {
		name       string
		prev, curr float64
		want       []int
	}{
		{"skip to lowest crossed", 30, 8, []int{10}},
		{"skip past five", 30, 4, []int{5}},
		{"none in range", 30, 26, nil},
		{"upward", 8, 30, nil},
		{"same", 20, 20, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, c, r := newTestDetector(t, Options{Debounce: DefaultDebounce})
			d.ProcessSample(sampleAt(c, tt.prev, power.OnBattery))
			c.Advance(5 * time.Second)
			d.ProcessSample(sampleAt(c, tt.curr, power.OnBattery))

			var got []int
			for _, e := range r.events {
				if e.Kind != alert.PercentThreshold {
					t.Fatalf("unexpected event kind %s", e.Kind)
				}
				got = append(got, *e.Threshold)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got thresholds %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got thresholds %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestThresholdNotRepeatedAcrossCycles(t *testing.T) {
	d, c, r := newTestDetector(t, Options{Debounce: DefaultDebounce})
	for _, pct := range []float64{27, 26, 25, 25, 24, 24} {
		d.ProcessSample(sampleAt(c, pct, power.OnBattery))
		c.Advance(5 * time.Second)
	}
	if len(r.events) != 1 || *r.events[0].Threshold != 25 {
		t.Fatalf("expected a single threshold 25 event, got %+v", r.kinds())
	}
}

func TestChargingDebounceRevertWithinWindow(t *testing.T) {
	d, c, r := newTestDetector(t, Options{Debounce: 2 * time.Second})

	d.ProcessSample(sampleAt(c, 50, power.OnBattery))
	c.Advance(500 * time.Millisecond)
	d.ProcessSample(sampleAt(c, 50, power.Charging))
	c.Advance(500 * time.Millisecond)
	d.ProcessSample(sampleAt(c, 50, power.OnBattery))
	c.Advance(10 * time.Second)

	if len(r.events) != 0 {
		t.Fatalf("expected no events, got %v", r.kinds())
	}
	if c.Pending() != 0 {
		t.Fatalf("expected debounce timer to be cancelled, %d pending", c.Pending())
	}
}

func TestChargingDebounceSpacedTransitions(t *testing.T) {
	d, c, r := newTestDetector(t, Options{Debounce: 2 * time.Second})

	d.ProcessSample(sampleAt(c, 50, power.OnBattery))
	c.Advance(time.Second)
	d.ProcessSample(sampleAt(c, 50, power.Charging))
	c.Advance(3 * time.Second)
	d.ProcessSample(sampleAt(c, 51, power.OnBattery))
	c.Advance(3 * time.Second)

	got := r.kinds()
	if len(got) != 2 || got[0] != alert.ChargingBegan || got[1] != alert.ChargingStopped {
		t.Fatalf("expected began then stopped, got %v", got)
	}
}

func TestChargingDebounceRepeatedSamplesDoNotRearm(t *testing.T) {
	d, c, r := newTestDetector(t, Options{Debounce: 2 * time.Second})

	d.ProcessSample(sampleAt(c, 50, power.OnBattery))
	d.ProcessSample(sampleAt(c, 50, power.Charging))
	c.Advance(time.Second)
	d.ProcessSample(sampleAt(c, 50, power.Charging))
	c.Advance(time.Second)

	if got := r.kinds(); len(got) != 1 || got[0] != alert.ChargingBegan {
		t.Fatalf("expected a single chargingBegan at the original deadline, got %v", got)
	}

	for i := 0; i < 5; i++ {
		c.Advance(time.Second)
		d.ProcessSample(sampleAt(c, 50, power.Charging))
	}
	if len(r.events) != 1 {
		t.Fatalf("committed state must not be re-emitted, got %v", r.kinds())
	}
}

func TestChargingDebounceSupersede(t *testing.T) {
	d, c, r := newTestDetector(t, Options{Debounce: 2 * time.Second})

	d.ProcessSample(sampleAt(c, 99, power.OnBattery))
	d.ProcessSample(sampleAt(c, 99, power.Charging))
	c.Advance(1500 * time.Millisecond)
	d.ProcessSample(sampleAt(c, 100, power.ChargeComplete))
	if c.Pending() != 1 {
		t.Fatalf("expected exactly one debounce timer, got %d", c.Pending())
	}
	c.Advance(1 * time.Second)
	if len(r.events) != 0 {
		t.Fatalf("superseded timer fired: %v", r.kinds())
	}
	c.Advance(1 * time.Second)

	if got := r.kinds(); len(got) != 1 || got[0] != alert.ChargingComplete {
		t.Fatalf("expected chargingComplete only, got %v", got)
	}
}

func TestChargingRapidToggling(t *testing.T) {
	d, c, r := newTestDetector(t, Options{Debounce: 2 * time.Second})

	d.ProcessSample(sampleAt(c, 60, power.OnBattery))
	states := []power.ChargingState{power.Charging, power.OnBattery, power.Charging, power.OnBattery, power.Charging}
	for _, s := range states {
		c.Advance(300 * time.Millisecond)
		d.ProcessSample(sampleAt(c, 60, s))
	}
	c.Advance(5 * time.Second)

	if got := r.kinds(); len(got) != 1 || got[0] != alert.ChargingBegan {
		t.Fatalf("expected one chargingBegan, got %v", got)
	}
}

func TestChargeLimitCompletesCharging(t *testing.T) {
	d, c, r := newTestDetector(t, Options{Debounce: time.Second, ChargeLimit: 80})

	d.ProcessSample(sampleAt(c, 78, power.Charging))
	c.Advance(5 * time.Second)
	d.ProcessSample(sampleAt(c, 80, power.Charging))
	c.Advance(5 * time.Second)

	if got := r.kinds(); len(got) != 1 || got[0] != alert.ChargingComplete {
		t.Fatalf("expected chargingComplete at the limit, got %v", got)
	}
	if d.ChargingState() != power.ChargeComplete {
		t.Fatalf("expected committed state chargeComplete, got %v", d.ChargingState())
	}
}

func TestZeroDebounceCommitsImmediately(t *testing.T) {
	d, c, r := newTestDetector(t, Options{Debounce: 0})

	d.ProcessSample(sampleAt(c, 50, power.OnBattery))
	d.ProcessSample(sampleAt(c, 50, power.Charging))

	if got := r.kinds(); len(got) != 1 || got[0] != alert.ChargingBegan {
		t.Fatalf("expected chargingBegan, got %v", got)
	}
}

func TestThermalTransitions(t *testing.T) {
	d, c, r := newTestDetector(t, Options{Debounce: DefaultDebounce})

	seq := []power.ThermalState{
		power.Optimal, power.Optimal, power.Suboptimal, power.Suboptimal,
		power.Critical, power.Critical, power.Optimal,
	}
	for _, th := range seq {
		s := sampleAt(c, 70, power.OnBattery)
		s.ThermalState = th
		d.ProcessSample(s)
		c.Advance(5 * time.Second)
	}

	want := []power.ThermalState{power.Suboptimal, power.Critical, power.Optimal}
	wantPrev := []power.ThermalState{power.Optimal, power.Suboptimal, power.Critical}
	if len(r.events) != len(want) {
		t.Fatalf("expected %d thermal events, got %v", len(want), r.kinds())
	}
	for i, e := range r.events {
		if e.Kind != alert.DeviceOverheating || *e.Thermal != want[i] {
			t.Fatalf("event %d: got %s/%v, want deviceOverheating/%v", i, e.Kind, *e.Thermal, want[i])
		}
		if e.PreviousThermal == nil || *e.PreviousThermal != wantPrev[i] {
			t.Fatalf("event %d: previous thermal %v, want %v", i, e.PreviousThermal, wantPrev[i])
		}
	}
}

func TestInvalidSamplesAreSkipped(t *testing.T) {
	d, c, r := newTestDetector(t, Options{Debounce: DefaultDebounce})

	d.ProcessSample(sampleAt(c, 30, power.OnBattery))
	d.ProcessSample(nil)
	d.ProcessSample(sampleAt(c, -5, power.OnBattery))
	d.ProcessSample(sampleAt(c, 150, power.OnBattery))
	d.ProcessSample(sampleAt(c, math.NaN(), power.OnBattery))
	if len(r.events) != 0 {
		t.Fatalf("invalid samples produced events: %v", r.kinds())
	}

	// The previous valid percentage is still 30.
	d.ProcessSample(sampleAt(c, 24, power.OnBattery))
	if len(r.events) != 1 || *r.events[0].Threshold != 25 {
		t.Fatalf("expected threshold 25 after invalid samples, got %v", r.kinds())
	}
}

func TestSnapshotConnectAndRemove(t *testing.T) {
	d, c, r := newTestDetector(t, Options{Debounce: DefaultDebounce})

	pods := accessory.Record{Address: "AA:BB:CC:DD:EE:FF", Name: "AirPods", Category: accessory.Headphones}
	kb := accessory.Record{Address: "11:22:33:44:55:66", Name: "Keyboard", Category: accessory.Keyboard}

	connected := func(r accessory.Record) accessory.Record {
		r.ConnectionState = accessory.Connected
		return r
	}

	// Baseline: keyboard already connected, no events.
	d.ProcessSnapshot(&accessory.Snapshot{Devices: []accessory.Record{connected(kb)}, Timestamp: c.Now()})
	if len(r.events) != 0 {
		t.Fatalf("baseline produced events: %v", r.kinds())
	}

	c.Advance(15 * time.Second)
	d.ProcessSnapshot(&accessory.Snapshot{Devices: []accessory.Record{connected(kb), connected(pods)}, Timestamp: c.Now()})
	c.Advance(15 * time.Second)
	// Repeated poll, nothing changes.
	d.ProcessSnapshot(&accessory.Snapshot{Devices: []accessory.Record{connected(kb), connected(pods)}, Timestamp: c.Now()})
	c.Advance(15 * time.Second)
	// Keyboard missing from the snapshot.
	d.ProcessSnapshot(&accessory.Snapshot{Devices: []accessory.Record{connected(pods)}, Timestamp: c.Now()})
	c.Advance(15 * time.Second)
	d.ProcessSnapshot(&accessory.Snapshot{Devices: []accessory.Record{connected(pods)}, Timestamp: c.Now()})

	got := r.kinds()
	if len(got) != 2 || got[0] != alert.DeviceConnected || got[1] != alert.DeviceRemoved {
		t.Fatalf("expected connected then removed, got %v", got)
	}
	if r.events[0].Device.Address != "aa-bb-cc-dd-ee-ff" || r.events[0].Device.Name != "AirPods" {
		t.Fatalf("unexpected device on connect: %+v", r.events[0].Device)
	}
	if r.events[1].Device.Name != "Keyboard" {
		t.Fatalf("unexpected device on remove: %+v", r.events[1].Device)
	}

	d.ProcessSnapshot(nil)
	if len(r.events) != 2 {
		t.Fatalf("nil snapshot produced events")
	}
}

func TestSnapshotPairedButDisconnectedIsSilent(t *testing.T) {
	d, c, r := newTestDetector(t, Options{Debounce: DefaultDebounce})
	d.ProcessSnapshot(&accessory.Snapshot{Timestamp: c.Now()})
	d.ProcessSnapshot(&accessory.Snapshot{
		Devices:   []accessory.Record{{Address: "11:22:33:44:55:66", ConnectionState: accessory.Disconnected}},
		Timestamp: c.Now(),
	})
	if len(r.events) != 0 {
		t.Fatalf("expected no events, got %v", r.kinds())
	}
}

func TestStopCancelsDebounce(t *testing.T) {
	d, c, r := newTestDetector(t, Options{Debounce: 2 * time.Second})

	d.ProcessSample(sampleAt(c, 50, power.OnBattery))
	d.ProcessSample(sampleAt(c, 50, power.Charging))
	d.Stop()
	d.Stop()
	c.Advance(5 * time.Second)

	if len(r.events) != 0 {
		t.Fatalf("events emitted after Stop: %v", r.kinds())
	}
	if c.Pending() != 0 {
		t.Fatalf("expected no pending timers after Stop")
	}
}

func TestSetThresholds(t *testing.T) {
	d, c, r := newTestDetector(t, Options{Debounce: time.Second})

	if err := d.SetThresholds([]int{10, 20}); err == nil {
		t.Fatalf("expected error for ascending thresholds")
	}
	if err := d.SetThresholds([]int{50}); err != nil {
		t.Fatalf("SetThresholds() error: %v", err)
	}

	d.ProcessSample(sampleAt(c, 60, power.OnBattery))
	d.ProcessSample(sampleAt(c, 40, power.OnBattery))
	if len(r.events) != 1 || *r.events[0].Threshold != 50 {
		t.Fatalf("expected one threshold event at 50, got %v", r.kinds())
	}
}
