package aggregator

import "errors"

var (
	// ErrStore wraps packet store failures during ingestion.
	ErrStore = errors.New("packet store failure")
	// ErrNotify wraps notifier failures.
	ErrNotify = errors.New("notify failure")
)
