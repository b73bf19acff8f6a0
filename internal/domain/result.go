package domain

// OutcomeStatus is the terminal status of one panel's send.
type OutcomeStatus int

const (
	// Delivered means the device acknowledged the complete frame.
	Delivered OutcomeStatus = iota

	// Failed means the send reached a terminal failure; Reason says why.
	Failed

	// Skipped means the panel's session was not Ready at dispatch time and
	// no send was attempted.
	Skipped
)

// String returns a human-readable representation of the status.
func (s OutcomeStatus) String() string {
	switch s {
	case Delivered:
		return "Delivered"
	case Failed:
		return "Failed"
	case Skipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}

// Outcome is the result of one panel's send attempt.
type Outcome struct {
	Status OutcomeStatus
	Reason FailureReason
	Err    error
}

// CompositeResult maps panel names to their outcomes for one SendImage
// call. Every configured panel appears exactly once; the report is never
// partial.
type CompositeResult map[string]Outcome

// AllDelivered reports whether every panel's frame was acknowledged.
func (r CompositeResult) AllDelivered() bool {
	for _, o := range r {
		if o.Status != Delivered {
			return false
		}
	}
	return len(r) > 0
}

// Counts returns the number of delivered, failed, and skipped panels.
func (r CompositeResult) Counts() (delivered, failed, skipped int) {
	for _, o := range r {
		switch o.Status {
		case Delivered:
			delivered++
		case Failed:
			failed++
		case Skipped:
			skipped++
		}
	}
	return delivered, failed, skipped
}
