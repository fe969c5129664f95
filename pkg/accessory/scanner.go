package accessory

import (
	"context"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"
)

// Sighting is one advertisement seen during a scan window.
type Sighting struct {
	Address string
	Name    string
	RSSI    int
}

// Scanner collects RSSI readings from BLE advertisements.
type Scanner interface {
	Scan(ctx context.Context, window time.Duration) ([]Sighting, error)
}

// BLEScanner scans with the default host adapter.
type BLEScanner struct {
	adapter *bluetooth.Adapter

	once      sync.Once
	enableErr error
}

func NewBLEScanner() *BLEScanner {
	return &BLEScanner{adapter: bluetooth.DefaultAdapter}
}

// Scan listens for advertisements for window, or until ctx is done, and
// returns the strongest reading per address.
func (s *BLEScanner) Scan(ctx context.Context, window time.Duration) ([]Sighting, error) {
	s.once.Do(func() {
		s.enableErr = s.adapter.Enable()
	})
	if s.enableErr != nil {
		return nil, pkgerrors.Wrap(ErrUnavailable, s.enableErr.Error())
	}

	var mu sync.Mutex
	seen := make(map[string]Sighting)

	done := make(chan error, 1)
	go func() {
		done <- s.adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
			sg := Sighting{
				Address: r.Address.String(),
				Name:    r.LocalName(),
				RSSI:    int(r.RSSI),
			}
			mu.Lock()
			if prev, ok := seen[sg.Address]; !ok || sg.RSSI > prev.RSSI {
				seen[sg.Address] = sg
			}
			mu.Unlock()
		})
	}()

	timer := time.NewTimer(window)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	case err := <-done:
		// Scan returned before we stopped it.
		if err != nil {
			return nil, pkgerrors.Wrap(ErrUnavailable, err.Error())
		}
	}

	if err := s.adapter.StopScan(); err != nil {
		logrus.WithError(err).Debug("failed to stop BLE scan")
	}

	mu.Lock()
	defer mu.Unlock()

	ret := make([]Sighting, 0, len(seen))
	for _, sg := range seen {
		ret = append(ret, sg)
	}
	return ret, nil
}

// MergeRSSI fills in RSSI for records that lack one. Sightings are matched
// by normalized address first and then by name, since some platforms do
// not expose the hardware address of BLE peripherals.
func MergeRSSI(records []Record, sightings []Sighting) []Record {
	byAddr := make(map[string]int, len(sightings))
	byName := make(map[string]int, len(sightings))
	for _, sg := range sightings {
		byAddr[NormalizeAddress(sg.Address)] = sg.RSSI
		if sg.Name != "" {
			byName[strings.ToLower(sg.Name)] = sg.RSSI
		}
	}

	for i := range records {
		if records[i].RSSI != nil {
			continue
		}
		if v, ok := byAddr[NormalizeAddress(records[i].Address)]; ok {
			records[i].RSSI = &v
			continue
		}
		if v, ok := byName[strings.ToLower(records[i].Name)]; ok {
			records[i].RSSI = &v
		}
	}
	return records
}
