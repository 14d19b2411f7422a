package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidMetrics is returned when job metrics are inconsistent.
var ErrInvalidMetrics = errors.New("invalid job metrics")

// JobMetrics summarizes one execution of an ingestion job.
type JobMetrics struct {
	ItemsCollected     int64 `json:"items_collected"`
	DuplicatesDetected int64 `json:"duplicates_detected"`
	ErrorsEncountered  int64 `json:"errors_encountered"`
	BytesProcessed     int64 `json:"bytes_processed"`
	DurationMs         int64 `json:"duration_ms"`
}

// NewJobMetrics validates counters: all non-negative, and duplicates cannot
// exceed items collected.
func NewJobMetrics(items, duplicates, errCount, bytes, durationMs int64) (JobMetrics, error) {
	if items < 0 || duplicates < 0 || errCount < 0 || bytes < 0 || durationMs < 0 {
		return JobMetrics{}, fmt.Errorf("%w: counters must be non-negative", ErrInvalidMetrics)
	}
	if duplicates > items {
		return JobMetrics{}, fmt.Errorf("%w: duplicates (%d) exceed items collected (%d)",
			ErrInvalidMetrics, duplicates, items)
	}
	return JobMetrics{
		ItemsCollected:     items,
		DuplicatesDetected: duplicates,
		ErrorsEncountered:  errCount,
		BytesProcessed:     bytes,
		DurationMs:         durationMs,
	}, nil
}

// SuccessRate is (items-errors)/items, 1.0 when nothing was collected.
func (m JobMetrics) SuccessRate() float64 {
	if m.ItemsCollected == 0 {
		return 1.0
	}
	rate := float64(m.ItemsCollected-m.ErrorsEncountered) / float64(m.ItemsCollected)
	if rate < 0 {
		return 0
	}
	return rate
}

// DuplicateRate is duplicates/items, 0 when nothing was collected.
func (m JobMetrics) DuplicateRate() float64 {
	if m.ItemsCollected == 0 {
		return 0
	}
	return float64(m.DuplicatesDetected) / float64(m.ItemsCollected)
}

// Throughput is bytes per second, 0 when the duration is unknown.
func (m JobMetrics) Throughput() float64 {
	if m.DurationMs == 0 {
		return 0
	}
	return float64(m.BytesProcessed) / float64(m.DurationMs) * 1000
}
