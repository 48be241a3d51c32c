package model

import (
	"errors"
	"fmt"
)

// User-facing failures. None of them mutate state.
var (
	ErrConfiguration     = errors.New("invalid configuration value")
	ErrVoteLimitExceeded = errors.New("vote limit exceeded")
	ErrEmptySelection    = errors.New("empty selection")
	ErrUnknownSelection  = errors.New("unknown selection")
	ErrSlotConflict      = errors.New("slot already booked")
	ErrEmptyInput        = errors.New("empty input")
	ErrNothingToProcess  = errors.New("nothing to process")
	ErrNoBookings        = errors.New("no bookings")
	ErrNoTopics          = errors.New("no topics")
)

// ConfigurationError reports a malformed layout setting.
type ConfigurationError struct {
	Field string
	Input string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Field, e.Input)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}
