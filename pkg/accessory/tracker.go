package accessory

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/batthud/pkg/clock"
)

// Tracker is the authoritative list of known accessories and the subset
// that is currently connected. Both views are updated under one lock, so
// every connected address is always present in the list.
type Tracker struct {
	mu         sync.RWMutex
	clock      clock.Clock
	thresholds Thresholds

	list      []Record
	index     map[string]int
	connected []string
}

// NewTracker returns an empty Tracker.
func NewTracker(c clock.Clock, t Thresholds) *Tracker {
	if c == nil {
		c = clock.Real{}
	}
	return &Tracker{
		clock:      c,
		thresholds: t,
		index:      make(map[string]int),
	}
}

// SetThresholds changes the RSSI distance thresholds. Existing records are
// re-bucketed.
func (t *Tracker) SetThresholds(th Thresholds) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.thresholds = th
	for i := range t.list {
		t.list[i].Distance = th.Distance(t.list[i].RSSI)
	}
}

// UpdateConnection records the desired state for device and returns the
// resulting state. Name, battery, RSSI and category are only overwritten
// when device carries them.
func (t *Tracker) UpdateConnection(device Record, state ConnectionState) ConnectionState {
	addr := NormalizeAddress(device.Address)
	if addr == "" {
		logrus.WithField("name", device.Name).Warn("ignoring accessory without address")
		return Disconnected
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.index[addr]
	if !ok {
		t.list = append(t.list, Record{Address: addr, Category: Other})
		i = len(t.list) - 1
		t.index[addr] = i
	}

	rec := &t.list[i]
	if device.Name != "" {
		rec.Name = device.Name
	}
	if device.BatteryPercent != nil {
		v := *device.BatteryPercent
		rec.BatteryPercent = &v
	}
	if device.RSSI != nil {
		v := *device.RSSI
		rec.RSSI = &v
	}
	if device.Category != "" {
		rec.Category = device.Category
	}
	rec.Distance = t.thresholds.Distance(rec.RSSI)
	rec.ConnectionState = state
	rec.LastUpdated = t.clock.Now()

	if state == Connected {
		if !t.isConnected(addr) {
			t.connected = append(t.connected, addr)
		}
	} else {
		for j, a := range t.connected {
			if a == addr {
				t.connected = append(t.connected[:j], t.connected[j+1:]...)
				break
			}
		}
	}

	return rec.ConnectionState
}

func (t *Tracker) isConnected(addr string) bool {
	for _, a := range t.connected {
		if a == addr {
			return true
		}
	}
	return false
}

// State returns the connection state of addr and whether it is known.
func (t *Tracker) State(addr string) (ConnectionState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	i, ok := t.index[NormalizeAddress(addr)]
	if !ok {
		return Disconnected, false
	}
	return t.list[i].ConnectionState, true
}

// Device returns a copy of the record for addr.
func (t *Tracker) Device(addr string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	i, ok := t.index[NormalizeAddress(addr)]
	if !ok {
		return Record{}, false
	}
	return t.list[i].clone(), true
}

// List returns copies of every known record in insertion order.
func (t *Tracker) List() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ret := make([]Record, 0, len(t.list))
	for _, r := range t.list {
		ret = append(ret, r.clone())
	}
	return ret
}

// Connected returns copies of the connected records in connection order.
func (t *Tracker) Connected() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ret := make([]Record, 0, len(t.connected))
	for _, a := range t.connected {
		ret = append(ret, t.list[t.index[a]].clone())
	}
	return ret
}

// Addresses returns the normalized addresses of every known record.
func (t *Tracker) Addresses() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ret := make([]string, 0, len(t.list))
	for _, r := range t.list {
		ret = append(ret, r.Address)
	}
	return ret
}
