package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// IntervalUnit is the unit RunSettings.Interval is expressed in.
type IntervalUnit string

const (
	UnitSeconds IntervalUnit = "seconds"
	UnitMinutes IntervalUnit = "minutes"
	UnitHours   IntervalUnit = "hours"
)

// ErrInvalidSettings is returned for a non-positive interval or unknown unit.
var ErrInvalidSettings = errors.New("invalid run settings")

// Milliseconds returns the unit-to-ms factor, or 0 for an unknown unit.
func (u IntervalUnit) Milliseconds() int64 {
	switch u {
	case UnitSeconds:
		return 1000
	case UnitMinutes:
		return 60 * 1000
	case UnitHours:
		return 60 * 60 * 1000
	default:
		return 0
	}
}

// ParseIntervalUnit accepts exactly one of seconds, minutes or hours.
func ParseIntervalUnit(s string) (IntervalUnit, error) {
	u := IntervalUnit(strings.ToLower(strings.TrimSpace(s)))
	if u.Milliseconds() == 0 {
		return "", fmt.Errorf("%w: unknown interval unit %q", ErrInvalidSettings, s)
	}
	return u, nil
}

// RunSettings configures a deck run.
type RunSettings struct {
	Interval     float64      `json:"interval"`
	IntervalUnit IntervalUnit `json:"intervalUnit"`
	Shuffle      bool         `json:"shuffle"`
}

// maxDelayMillis is the largest delay a time.Duration can hold, in ms.
const maxDelayMillis = math.MaxInt64 / int64(time.Millisecond)

// Validate enforces a known unit and an interval that works out to a delay
// of at least 1ms that fits a time.Duration.
func (s RunSettings) Validate() error {
	if math.IsNaN(s.Interval) || math.IsInf(s.Interval, 0) || s.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %v", ErrInvalidSettings, s.Interval)
	}
	if s.IntervalUnit.Milliseconds() == 0 {
		return fmt.Errorf("%w: unknown interval unit %q", ErrInvalidSettings, s.IntervalUnit)
	}
	ms := s.millis()
	if ms < 1 {
		return fmt.Errorf("%w: %v %s is under 1ms", ErrInvalidSettings, s.Interval, s.IntervalUnit)
	}
	if ms > float64(maxDelayMillis) {
		return fmt.Errorf("%w: %v %s is too long", ErrInvalidSettings, s.Interval, s.IntervalUnit)
	}
	return nil
}

// Delay is the inter-card delay: interval x unit factor, in whole milliseconds.
// It is only meaningful for settings that pass Validate.
func (s RunSettings) Delay() time.Duration {
	return time.Duration(s.millis()) * time.Millisecond
}

func (s RunSettings) millis() float64 {
	return math.Round(s.Interval * float64(s.IntervalUnit.Milliseconds()))
}

func (s RunSettings) String() string {
	return fmt.Sprintf("every %g %s", s.Interval, s.IntervalUnit)
}
