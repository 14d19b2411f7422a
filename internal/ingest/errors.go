package ingest

import "errors"

// Errors shared by repository implementations.
var (
	// ErrJobNotFound is returned when a job ID is unknown.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobExists is returned when creating a job whose ID is taken.
	ErrJobExists = errors.New("job already exists")
	// ErrVersionConflict is returned when an optimistic save loses a
	// write-write race.
	ErrVersionConflict = errors.New("job version conflict")
	// ErrQueueClosed is returned by Dequeue once a closed queue is drained.
	ErrQueueClosed = errors.New("queue closed")
)
