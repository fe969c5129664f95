package daemon

import (
	"sync"
	"time"
)

// TimeSeriesRecorder records the last N sample arrival times.
type TimeSeriesRecorder struct {
	MaxRecordCount int
	records        []time.Time
	mu             *sync.Mutex
}

// NewTimeSeriesRecorder returns a new TimeSeriesRecorder.
func NewTimeSeriesRecorder(maxRecordCount int) *TimeSeriesRecorder {
	return &TimeSeriesRecorder{
		MaxRecordCount: maxRecordCount,
		records:        make([]time.Time, 0, maxRecordCount),
		mu:             &sync.Mutex{},
	}
}

// AddRecord adds a new record.
func (r *TimeSeriesRecorder) AddRecord(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Strip monotonic clock reading.
	// This will prevent Sub from returning values that are not accurate (especially when the system is in sleep mode).
	t = t.Round(0)

	if len(r.records) >= r.MaxRecordCount {
		r.records = r.records[1:]
	}
	r.records = append(r.records, t)
}

// ClearRecords clears all records.
func (r *TimeSeriesRecorder) ClearRecords() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = r.records[:0]
}

// GetRecordsIn returns the number of continuous records within last before
// now. Two records are continuous when they are less than interval+1s apart.
func (r *TimeSeriesRecorder) GetRecordsIn(now time.Time, last, interval time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now = now.Round(0)
	maxGap := interval + time.Second

	// The last record must be recent.
	if len(r.records) == 0 || now.Sub(r.records[len(r.records)-1]) >= maxGap {
		return 0
	}

	count := 0
	for i := len(r.records) - 1; i >= 0; i-- {
		record := r.records[i]
		if now.Sub(record) > last {
			break
		}

		theRecordAfter := record
		if i+1 < len(r.records) {
			theRecordAfter = r.records[i+1]
		}
		if theRecordAfter.Sub(record) >= maxGap {
			break
		}
		count++
	}

	return count
}

// GetLastRecord returns the last record.
func (r *TimeSeriesRecorder) GetLastRecord() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.records) == 0 {
		return time.Time{}
	}

	return r.records[len(r.records)-1]
}
