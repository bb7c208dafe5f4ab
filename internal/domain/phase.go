package domain

import (
	"strings"
	"time"
)

// Phase is the lifecycle stage of a contest, always derived from the clock
type Phase string

const (
	PhaseUpcoming Phase = "UPCOMING"
	PhaseOngoing  Phase = "ONGOING"
	PhaseEnded    Phase = "ENDED"
)

// PhaseAt computes the phase of the window [start, end] at now.
// Both boundaries belong to ONGOING.
func PhaseAt(now, start, end time.Time) Phase {
	if now.Before(start) {
		return PhaseUpcoming
	}
	if now.After(end) {
		return PhaseEnded
	}
	return PhaseOngoing
}

// Clock abstracts the current time so phase decisions can be tested
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// PhaseFilter selects contests by phase in listings
type PhaseFilter string

const (
	FilterAll      PhaseFilter = "ALL"
	FilterUpcoming PhaseFilter = "UPCOMING"
	FilterOngoing  PhaseFilter = "ONGOING"
	FilterEnded    PhaseFilter = "ENDED"
)

// ParsePhaseFilter accepts the filter names case-insensitively; an empty value means ALL
func ParsePhaseFilter(raw string) (PhaseFilter, error) {
	switch PhaseFilter(strings.ToUpper(strings.TrimSpace(raw))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterUpcoming:
		return FilterUpcoming, nil
	case FilterOngoing:
		return FilterOngoing, nil
	case FilterEnded:
		return FilterEnded, nil
	}
	return "", ErrInvalidFilter
}

// Matches reports whether a contest in phase p passes the filter
func (f PhaseFilter) Matches(p Phase) bool {
	if f == FilterAll {
		return true
	}
	return Phase(f) == p
}
