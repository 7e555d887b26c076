package model

import (
	"errors"
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusReplied    Status = "replied"
	StatusSkipped    Status = "skipped"
	StatusFailed     Status = "failed"
)

// AllStatuses lists every status in lifecycle order
var AllStatuses = []Status{StatusPending, StatusProcessing, StatusReplied, StatusSkipped, StatusFailed}

var ErrIllegalTransition = errors.New("illegal status transition")

func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(s)) {
	case StatusPending:
		return StatusPending, nil
	case StatusProcessing:
		return StatusProcessing, nil
	case StatusReplied:
		return StatusReplied, nil
	case StatusSkipped:
		return StatusSkipped, nil
	case StatusFailed:
		return StatusFailed, nil
	default:
		return StatusPending, fmt.Errorf("unknown status: %s", s)
	}
}

// IsTerminal reports whether no further transitions are possible from s.
func (s Status) IsTerminal() bool {
	return s == StatusReplied || s == StatusSkipped || s == StatusFailed
}

// ValidateTransition checks a move against the mention lifecycle:
//
//	pending -> processing -> replied | skipped | failed
//	processing -> pending (stale recovery only)
func ValidateTransition(from, to Status) error {
	switch from {
	case StatusPending:
		if to == StatusProcessing {
			return nil
		}
	case StatusProcessing:
		switch to {
		case StatusReplied, StatusSkipped, StatusFailed, StatusPending:
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}
