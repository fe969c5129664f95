package source

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/batthud/pkg/accessory"
	"github.com/charlie0129/batthud/pkg/clock"
)

// DeviceLister lists paired devices.
type DeviceLister interface {
	Devices(ctx context.Context) ([]accessory.Record, error)
}

// DeviceSource builds accessory snapshots from system_profiler, adding RSSI
// from a BLE scan when a scanner is configured.
type DeviceSource struct {
	Lister     DeviceLister
	Scanner    accessory.Scanner
	ScanWindow time.Duration
	Clock      clock.Clock
}

func NewDeviceSource(lister DeviceLister, scanner accessory.Scanner, window time.Duration, c clock.Clock) *DeviceSource {
	if c == nil {
		c = clock.Real{}
	}
	return &DeviceSource{
		Lister:     lister,
		Scanner:    scanner,
		ScanWindow: window,
		Clock:      c,
	}
}

// Snapshot lists the devices. A failed scan only loses the RSSI readings.
func (s *DeviceSource) Snapshot(ctx context.Context) (*accessory.Snapshot, error) {
	devices, err := s.Lister.Devices(ctx)
	if err != nil {
		return nil, err
	}

	if s.Scanner != nil && s.ScanWindow > 0 {
		sightings, err := s.Scanner.Scan(ctx, s.ScanWindow)
		if err != nil {
			logrus.WithError(err).Warn("BLE scan failed")
		} else {
			devices = accessory.MergeRSSI(devices, sightings)
		}
	}

	return &accessory.Snapshot{
		Devices:   devices,
		Timestamp: s.Clock.Now(),
	}, nil
}
