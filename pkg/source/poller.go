// Package source polls the battery and the paired accessories and hands
// the readings to the daemon loop.
package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// TaskFunc is one polling cycle.
type TaskFunc func(ctx context.Context) error

// Poller runs a task on a cron schedule. Runs never overlap: a slow run
// delays the next one instead of stacking up.
type Poller struct {
	Name    string
	Task    TaskFunc
	OnError func(error) // called when the error of a run differs from the previous one

	parser cron.Parser

	mu       sync.Mutex
	schedule cron.Schedule
	nextRun  time.Time
	running  bool
	runs     int

	controlCh chan controlMsg
	stopCh    chan struct{}
	stopOnce  sync.Once
	doneCh    chan struct{}
}

type controlKind int

const (
	ctrlRecalculate controlKind = iota // schedule changed
	ctrlRunNow                         // run immediately, then continue the schedule
)

type controlMsg struct {
	kind controlKind
	data any
}

func NewPoller(name string, task TaskFunc, onError func(error)) *Poller {
	if task == nil {
		panic("task function cannot be nil")
	}

	return &Poller{
		Name:      name,
		Task:      task,
		OnError:   onError,
		parser:    cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		controlCh: make(chan controlMsg, 4),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Schedule sets the cron expression, e.g. "@every 5s". It can be called
// while running.
func (p *Poller) Schedule(expr string) error {
	sh, err := p.parser.Parse(expr)
	if err != nil {
		return pkgerrors.Wrapf(err, "invalid schedule %q", expr)
	}

	p.mu.Lock()
	running := p.running
	if !running {
		p.schedule = sh
		p.nextRun = sh.Next(time.Now())
	}
	p.mu.Unlock()

	if running {
		p.trySendControl(ctrlRecalculate, sh)
	}
	return nil
}

// Every schedules the task at a fixed interval. Cron schedules have
// one-second resolution, so d is rounded up to whole seconds.
func (p *Poller) Every(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("interval must be positive, got %s", d)
	}
	secs := (d + time.Second - 1) / time.Second
	return p.Schedule(fmt.Sprintf("@every %ds", secs))
}

// Start runs the task once right away and then on schedule until ctx is
// done or Stop is called.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	go p.run(ctx)
}

// Stop stops the poller and waits for a run in progress to return.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })

	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	if running {
		<-p.doneCh
	}
}

// RunNow asks for an immediate run.
func (p *Poller) RunNow() {
	p.trySendControl(ctrlRunNow, nil)
}

// Status returns the next scheduled run and the number of completed runs.
func (p *Poller) Status() (nextRun time.Time, runs int, running bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextRun, p.runs, p.running
}

func (p *Poller) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer func() {
		cancel()
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		close(p.doneCh)
		logrus.WithField("poller", p.Name).Debug("poller stopped")
	}()

	logrus.WithField("poller", p.Name).Debug("poller started")

	go func() {
		select {
		case <-p.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	var lastErr error
	runOnce := func() {
		err := p.Task(ctx)
		p.mu.Lock()
		p.runs++
		p.mu.Unlock()
		if err == nil {
			if lastErr != nil {
				logrus.WithField("poller", p.Name).Info("poller recovered")
			}
			lastErr = nil
			return
		}
		if ctx.Err() != nil {
			return
		}
		if lastErr == nil || err.Error() != lastErr.Error() {
			if p.OnError != nil {
				p.OnError(err)
			}
		}
		lastErr = err
	}

	runOnce()

	for {
		schedule, nextRun := p.snapshot()
		var timer *time.Timer
		if schedule == nil || nextRun.IsZero() {
			timer = time.NewTimer(time.Hour * 10000)
		} else {
			wait := time.Until(nextRun)
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
		}

		select {
		case <-timer.C:
			if schedule == nil {
				continue
			}
			runOnce()
			p.advanceNextRun()
		case <-ctx.Done():
			timer.Stop()
			return
		case msg := <-p.controlCh:
			timer.Stop()
			switch msg.kind {
			case ctrlRecalculate:
				sh := msg.data.(cron.Schedule)
				p.mu.Lock()
				p.schedule = sh
				p.nextRun = sh.Next(time.Now())
				p.mu.Unlock()
			case ctrlRunNow:
				runOnce()
			}
		}
	}
}

func (p *Poller) snapshot() (cron.Schedule, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.schedule, p.nextRun
}

func (p *Poller) advanceNextRun() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.schedule == nil {
		return
	}
	// Skip runs missed while the task was busy.
	next := p.schedule.Next(p.nextRun)
	if now := time.Now(); next.Before(now) {
		next = p.schedule.Next(now)
	}
	p.nextRun = next
}

func (p *Poller) trySendControl(kind controlKind, data any) {
	select {
	case p.controlCh <- controlMsg{kind: kind, data: data}:
	default:
	}
}
