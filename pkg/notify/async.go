package notify

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/batthud/pkg/alert"
)

// Async publishes alerts from a background goroutine so callers never wait
// on the broker. Alerts are dropped when the queue is full.
type Async struct {
	p     Publisher
	queue chan alert.Event
	wg    sync.WaitGroup
	once  sync.Once
}

func NewAsync(p Publisher, size int) *Async {
	if size <= 0 {
		size = 64
	}
	a := &Async{
		p:     p,
		queue: make(chan alert.Event, size),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *Async) run() {
	defer a.wg.Done()
	for ev := range a.queue {
		if err := a.p.Publish(ev); err != nil {
			logrus.WithFields(logrus.Fields{
				"kind": ev.Kind,
			}).WithError(err).Error("failed to publish alert")
		}
	}
}

// Enqueue queues ev and reports whether it was accepted.
func (a *Async) Enqueue(ev alert.Event) bool {
	select {
	case a.queue <- ev:
		return true
	default:
		logrus.WithField("kind", ev.Kind).Warn("mqtt queue full, dropping alert")
		return false
	}
}

// Close drains the queue, then closes the publisher. Enqueue must not be
// called afterwards.
func (a *Async) Close() error {
	var err error
	a.once.Do(func() {
		close(a.queue)
		a.wg.Wait()
		err = a.p.Close()
	})
	return err
}

// PublishSystem sends a lifecycle event right away, bypassing the queue.
func (a *Async) PublishSystem(ev SystemEvent) error {
	return a.p.PublishSystem(ev)
}
