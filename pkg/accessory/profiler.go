package accessory

import (
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"howett.net/plist"
)

// ErrUnavailable is returned when device metadata could not be obtained
// this cycle. Callers should skip the cycle.
var ErrUnavailable = errors.New("accessory information unavailable")

const DefaultProfilerTimeout = 10 * time.Second

// RunFunc runs an external command and returns its stdout.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Profiler reads paired Bluetooth devices from system_profiler.
type Profiler struct {
	Timeout time.Duration
	Run     RunFunc
}

// NewProfiler returns a Profiler that runs system_profiler with the given
// timeout.
func NewProfiler(timeout time.Duration) *Profiler {
	if timeout <= 0 {
		timeout = DefaultProfilerTimeout
	}
	return &Profiler{
		Timeout: timeout,
		Run:     execRun,
	}
}

// Devices returns every paired device with its connection state. Any
// failure of the helper, including the timeout, is reported as
// ErrUnavailable.
func (p *Profiler) Devices(ctx context.Context) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	out, err := p.Run(ctx, "system_profiler", "SPBluetoothDataType", "-xml")
	if err != nil {
		logrus.WithError(err).WithField("timeout", p.Timeout).Warn("system_profiler failed")
		return nil, pkgerrors.Wrap(ErrUnavailable, err.Error())
	}

	devices, err := ParseProfilerOutput(out)
	if err != nil {
		logrus.WithError(err).Warn("failed to parse system_profiler output")
		return nil, pkgerrors.Wrap(ErrUnavailable, err.Error())
	}

	return devices, nil
}

type spDataType struct {
	Items []spController `plist:"_items"`
}

type spController struct {
	Connected    []map[string]spDevice `plist:"device_connected"`
	NotConnected []map[string]spDevice `plist:"device_not_connected"`
}

type spDevice struct {
	Address      string `plist:"device_address"`
	MinorType    string `plist:"device_minorType"`
	BatteryMain  string `plist:"device_batteryLevelMain"`
	Battery      string `plist:"device_batteryLevel"`
	BatteryLeft  string `plist:"device_batteryLevelLeft"`
	BatteryRight string `plist:"device_batteryLevelRight"`
	RSSI         any    `plist:"device_rssi"`
}

// ParseProfilerOutput parses the XML plist printed by
// `system_profiler SPBluetoothDataType -xml`.
func ParseProfilerOutput(b []byte) ([]Record, error) {
	var data []spDataType
	if _, err := plist.Unmarshal(b, &data); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to unmarshal plist")
	}

	var ret []Record
	for _, dt := range data {
		for _, ctrl := range dt.Items {
			ret = appendDevices(ret, ctrl.Connected, Connected)
			ret = appendDevices(ret, ctrl.NotConnected, Disconnected)
		}
	}
	return ret, nil
}

func appendDevices(ret []Record, entries []map[string]spDevice, state ConnectionState) []Record {
	for _, entry := range entries {
		for name, d := range entry {
			if d.Address == "" {
				continue
			}
			ret = append(ret, Record{
				Address:         d.Address,
				Name:            name,
				ConnectionState: state,
				BatteryPercent:  d.battery(),
				RSSI:            parseRSSI(d.RSSI),
				Category:        ParseCategory(d.MinorType),
			})
		}
	}
	return ret
}

// battery prefers the main level, then the lower of the two earbuds.
func (d spDevice) battery() *int {
	if v, ok := parsePercent(d.BatteryMain); ok {
		return &v
	}
	if v, ok := parsePercent(d.Battery); ok {
		return &v
	}
	l, lok := parsePercent(d.BatteryLeft)
	r, rok := parsePercent(d.BatteryRight)
	switch {
	case lok && rok:
		v := min(l, r)
		return &v
	case lok:
		return &l
	case rok:
		return &r
	}
	return nil
}

func parsePercent(s string) (int, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 || v > 100 {
		return 0, false
	}
	return v, true
}

func parseRSSI(v any) *int {
	var r int
	switch x := v.(type) {
	case int64:
		r = int(x)
	case uint64:
		r = int(int64(x))
	case float64:
		r = int(x)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return nil
		}
		r = i
	default:
		return nil
	}
	return &r
}
