package syncer

import (
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/ledgersync/internal/core/domain"
)

// Status is the outcome of one record kind within a cycle.
type Status string

const (
	StatusUnchanged   Status = "unchanged"
	StatusUpdated     Status = "updated"
	StatusFetchFailed Status = "fetch_failed"
	StatusWriteFailed Status = "write_failed"
)

// Failed reports whether the kind could not be brought in sync.
func (s Status) Failed() bool {
	return s == StatusFetchFailed || s == StatusWriteFailed
}

// KindResult describes what happened to one record kind.
type KindResult struct {
	Kind   string
	Status Status
	Writes int // successful sink writes, or ids offered for discovery
	Err    error
}

// Cycle outcomes.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// Result summarizes one sync cycle.
type Result struct {
	CycleID  string
	ChainID  domain.ChainID
	Started  time.Time
	Duration time.Duration
	Kinds    []KindResult
}

// Failures counts kinds that failed.
func (r Result) Failures() int {
	n := 0
	for _, k := range r.Kinds {
		if k.Status.Failed() {
			n++
		}
	}
	return n
}

// Writes counts successful writes across kinds.
func (r Result) Writes() int {
	n := 0
	for _, k := range r.Kinds {
		n += k.Writes
	}
	return n
}

// Failed reports whether every kind of the cycle failed.
func (r Result) Failed() bool {
	return len(r.Kinds) > 0 && r.Failures() == len(r.Kinds)
}

// Partial reports whether some, but not all, kinds failed.
func (r Result) Partial() bool {
	f := r.Failures()
	return f > 0 && f < len(r.Kinds)
}

// Outcome labels the cycle for metrics and health.
func (r Result) Outcome() string {
	switch {
	case r.Failed():
		return OutcomeFailed
	case r.Partial():
		return OutcomePartial
	default:
		return OutcomeOK
	}
}

// Kind returns the result of the named kind.
func (r Result) Kind(name string) (KindResult, bool) {
	for _, k := range r.Kinds {
		if k.Kind == name {
			return k, true
		}
	}
	return KindResult{}, false
}

// Err joins the errors of failed kinds, or returns nil.
func (r Result) Err() error {
	var errs []error
	for _, k := range r.Kinds {
		if k.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k.Kind, k.Err))
		}
	}
	return errors.Join(errs...)
}
