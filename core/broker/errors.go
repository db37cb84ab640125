package broker

import "errors"

var (
	// ErrNoValue is returned by a Source when a path has no commanded value.
	ErrNoValue = errors.New("no value for path")
	// ErrNotConnected is returned when publishing before a successful Dial.
	ErrNotConnected = errors.New("broker not connected")
)
