package daemon

import (
	"context"
	"sync/atomic"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/batthud/pkg/accessory"
	"github.com/charlie0129/batthud/pkg/alert"
	"github.com/charlie0129/batthud/pkg/clock"
	"github.com/charlie0129/batthud/pkg/detector"
	"github.com/charlie0129/batthud/pkg/estimator"
	"github.com/charlie0129/batthud/pkg/events"
	"github.com/charlie0129/batthud/pkg/hud"
	"github.com/charlie0129/batthud/pkg/power"
	"github.com/charlie0129/batthud/pkg/scheduler"
)

const (
	defaultQueueSize = 64
	timerQueueSize   = 16
	// Sample gaps longer than this, or three poll intervals if that is
	// longer, mean the system slept. The rate history is dropped then.
	minSampleGap = time.Minute
)

// ErrEngineStopped is returned by queries made after the loop exited.
var ErrEngineStopped = pkgerrors.New("engine stopped")

// AlertDecision is streamed to renderers for every scheduled alert.
type AlertDecision struct {
	Kind   alert.Kind  `json:"kind"`
	Shown  bool        `json:"shown"`
	Reason string      `json:"reason"`
	Sound  alert.Sound `json:"sound,omitempty"`
}

// EngineOptions configure an Engine.
type EngineOptions struct {
	// Clock is the base clock. Timer callbacks are moved onto the loop.
	Clock clock.Clock

	Detector        detector.Options
	HUD             hud.Options
	EstimatorWindow int
	RSSI            accessory.Thresholds
	// PollInterval is the expected time between power samples.
	PollInterval time.Duration

	Preferences scheduler.Preferences
	Sound       scheduler.SoundPlayer
	// OnAlert receives every detected alert before scheduling. It runs on
	// the loop and must not block.
	OnAlert func(alert.Event)

	QueueSize int
}

// Engine owns the detector, the scheduler and the HUD machine and
// serializes every input through one loop.
type Engine struct {
	clock  clock.Clock
	inputs chan func()
	timers chan func()
	done   chan struct{}

	estimator *estimator.Estimator
	tracker   *accessory.Tracker
	detector  *detector.Detector
	hud       *hud.Machine
	scheduler *scheduler.Scheduler
	onAlert   func(alert.Event)

	samples      *TimeSeriesRecorder
	pollInterval time.Duration

	frames    *events.Hub[hud.Frame]
	decisions *events.Hub[AlertDecision]

	latest     atomic.Pointer[hud.Frame]
	lastSample atomic.Pointer[power.Sample]
	dropped    atomic.Uint64
	running    atomic.Bool
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	base := opts.Clock
	if base == nil {
		base = clock.Real{}
	}
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}

	e := &Engine{
		inputs:    make(chan func(), size),
		timers:    make(chan func(), timerQueueSize),
		done:      make(chan struct{}),
		onAlert:   opts.OnAlert,
		samples:   NewTimeSeriesRecorder(60),
		frames:    events.NewHub[hud.Frame](),
		decisions: events.NewHub[AlertDecision](),
	}
	e.clock = &loopClock{base: base, post: e.postTimer}
	e.pollInterval = opts.PollInterval
	if e.pollInterval <= 0 {
		e.pollInterval = 5 * time.Second
	}

	thresholds := opts.RSSI
	if thresholds == (accessory.Thresholds{}) {
		thresholds = accessory.DefaultThresholds
	}

	e.estimator = estimator.New(opts.EstimatorWindow)
	e.tracker = accessory.NewTracker(e.clock, thresholds)

	var err error
	e.detector, err = detector.New(e.clock, e.estimator, e.tracker, opts.Detector, e.handleAlert)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create detector")
	}

	e.hud = hud.New(e.clock, opts.HUD, e.handleFrame)
	e.scheduler = scheduler.New(e.hud, opts.Sound, opts.Preferences)

	initial := e.hud.Snapshot()
	e.latest.Store(&initial)

	return e, nil
}

// Run processes inputs until ctx is done. Timers are stopped and the hubs
// are closed on exit.
func (e *Engine) Run(ctx context.Context) {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	defer close(e.done)

	logrus.Debug("engine loop started")
	for {
		// Expired timers go before queued inputs.
		select {
		case f := <-e.timers:
			f()
			continue
		default:
		}

		select {
		case f := <-e.timers:
			f()
		case f := <-e.inputs:
			f()
		case <-ctx.Done():
			e.detector.Stop()
			e.hud.Stop()
			e.frames.Close()
			e.decisions.Close()
			logrus.WithField("dropped", e.dropped.Load()).Debug("engine loop stopped")
			return
		}
	}
}

// Done is closed when Run returns.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// post queues f for the loop without blocking. It reports false when the
// queue is full or the loop has stopped.
func (e *Engine) post(f func()) bool {
	select {
	case <-e.done:
		return false
	default:
	}

	select {
	case e.inputs <- f:
		return true
	default:
		e.dropped.Add(1)
		logrus.Warn("engine queue full, dropping input")
		return false
	}
}

// postTimer queues a timer callback. Unlike post it never drops: when the
// timer queue is full the send is retried on its own goroutine until the
// loop takes it or stops.
func (e *Engine) postTimer(f func()) bool {
	select {
	case <-e.done:
		return false
	default:
	}

	select {
	case e.timers <- f:
	default:
		go func() {
			select {
			case e.timers <- f:
			case <-e.done:
			}
		}()
	}
	return true
}

// call runs f on the loop and waits for it.
func (e *Engine) call(ctx context.Context, f func()) error {
	ran := make(chan struct{})
	if !e.post(func() {
		f()
		close(ran)
	}) {
		return ErrEngineStopped
	}

	select {
	case <-ran:
		return nil
	case <-e.done:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) handleAlert(ev alert.Event) {
	if e.onAlert != nil {
		e.onAlert(ev)
	}
	d := e.scheduler.Handle(ev)
	e.decisions.Publish(AlertDecision{
		Kind:   ev.Kind,
		Shown:  d.Shown,
		Reason: d.Reason,
		Sound:  d.Sound,
	})
}

func (e *Engine) handleFrame(f hud.Frame) {
	e.latest.Store(&f)
	if dropped := e.frames.Publish(f); dropped > 0 {
		logrus.WithField("subscribers", dropped).Debug("slow frame subscribers missed a frame")
	}
}

// SubmitSample queues a power sample.
func (e *Engine) SubmitSample(s *power.Sample) bool {
	return e.post(func() {
		if s != nil && s.Validate() == nil {
			e.checkGap(s.Timestamp)
			e.samples.AddRecord(s.Timestamp)
			e.lastSample.Store(s)
		}
		e.detector.ProcessSample(s)
	})
}

func (e *Engine) checkGap(at time.Time) {
	last := e.samples.GetLastRecord()
	if last.IsZero() {
		return
	}
	threshold := 3 * e.pollInterval
	if threshold < minSampleGap {
		threshold = minSampleGap
	}
	if gap := at.Round(0).Sub(last); gap > threshold {
		logrus.WithFields(logrus.Fields{
			"gap":       gap.String(),
			"threshold": threshold.String(),
		}).Info("possibly missed samples while asleep, resetting rate history")
		e.estimator.Reset()
	}
}

// Health summarizes the sample flow.
type Health struct {
	LastSample    time.Time `json:"lastSample"`
	RecentSamples int       `json:"recentSamples"`
	Dropped       uint64    `json:"dropped"`
}

func (e *Engine) Health() Health {
	return Health{
		LastSample:    e.samples.GetLastRecord(),
		RecentSamples: e.samples.GetRecordsIn(e.clock.Now(), time.Minute, e.pollInterval),
		Dropped:       e.dropped.Load(),
	}
}

// SubmitSnapshot queues an accessory snapshot.
func (e *Engine) SubmitSnapshot(s *accessory.Snapshot) bool {
	return e.post(func() {
		e.detector.ProcessSnapshot(s)
	})
}

// Alert schedules ev directly, bypassing detection. Used for user initiated
// and launch alerts.
func (e *Engine) Alert(ev alert.Event) bool {
	return e.post(func() {
		if ev.Timestamp.IsZero() {
			ev.Timestamp = e.clock.Now()
		}
		if ev.Kind == alert.UserInitiated && ev.Percentage == nil {
			if s := e.lastSample.Load(); s != nil {
				pct := s.Percentage
				ev.Percentage = &pct
			}
		}
		e.handleAlert(ev)
	})
}

// Hover forwards a hover change from the renderer.
func (e *Engine) Hover(hovered bool) bool {
	return e.post(func() {
		e.hud.Hover(hovered)
	})
}

// Click forwards a click from the renderer.
func (e *Engine) Click(to hud.State) bool {
	return e.post(func() {
		e.hud.Click(to)
	})
}

// ApplyOptions updates tunables after a config reload.
type ApplyOptions struct {
	Thresholds  []int
	Debounce    time.Duration
	ChargeLimit int
	HUD         hud.Options
	RSSI        accessory.Thresholds
}

// Apply changes tunables on the loop.
func (e *Engine) Apply(ctx context.Context, o ApplyOptions) error {
	var err error
	cerr := e.call(ctx, func() {
		if err = e.detector.SetThresholds(o.Thresholds); err != nil {
			return
		}
		e.detector.SetDebounce(o.Debounce)
		e.detector.SetChargeLimit(o.ChargeLimit)
		e.hud.SetOptions(o.HUD)
		e.tracker.SetThresholds(o.RSSI)
	})
	if cerr != nil {
		return cerr
	}
	return err
}

// SetChargeLimit changes the charge limit on the loop.
func (e *Engine) SetChargeLimit(limit int) bool {
	return e.post(func() {
		e.detector.SetChargeLimit(limit)
	})
}

// Frame returns the latest HUD frame.
func (e *Engine) Frame() hud.Frame {
	return *e.latest.Load()
}

// LastSample returns the latest valid power sample, or nil.
func (e *Engine) LastSample() *power.Sample {
	return e.lastSample.Load()
}

// Estimate returns the current remaining-time estimate.
func (e *Engine) Estimate() estimator.Estimate {
	return e.estimator.Estimate()
}

// Devices returns every known accessory.
func (e *Engine) Devices() []accessory.Record {
	return e.tracker.List()
}

// ConnectedDevices returns the connected accessories.
func (e *Engine) ConnectedDevices() []accessory.Record {
	return e.tracker.Connected()
}

// Frames is the hub of HUD frames.
func (e *Engine) Frames() *events.Hub[hud.Frame] {
	return e.frames
}

// Decisions is the hub of scheduler decisions.
func (e *Engine) Decisions() *events.Hub[AlertDecision] {
	return e.decisions
}

// Dropped returns the number of inputs dropped because the queue was full.
func (e *Engine) Dropped() uint64 {
	return e.dropped.Load()
}
