package structured

import "time"

// Completion outcomes reported per delta.
const (
	OutcomeValid            = "valid"             // buffer was already a complete document
	OutcomeCompleted        = "completed"         // a suffix was synthesized
	OutcomeNotCompletable   = "not_completable"   // no safe completion yet
	OutcomeDepthExceeded    = "depth_exceeded"    // nesting past the configured limit
	OutcomeMalformed        = "malformed"         // buffer is not a JSON prefix
	OutcomeParseFailed      = "parse_failed"      // completed text did not parse
	OutcomeProjectionFailed = "projection_failed" // content did not map onto the target type
)

// Stream termination statuses.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
	StatusNoContent = "no_content"
)

// StreamStats summarizes one finished stream.
type StreamStats struct {
	Deltas    int
	Snapshots int
	Bytes     int
	Duration  time.Duration
}

// Observer receives decode events. One Observer is shared by every stream of
// a Decoder, so implementations must be safe for concurrent use.
type Observer interface {
	ObserveCompletion(outcome string)
	ObserveSnapshot(complete bool)
	ObserveStreamEnd(status string, stats StreamStats)
}

type nopObserver struct{}

func (nopObserver) ObserveCompletion(string)             {}
func (nopObserver) ObserveSnapshot(bool)                 {}
func (nopObserver) ObserveStreamEnd(string, StreamStats) {}

type multiObserver []Observer

// MultiObserver fans events out to every non-nil observer.
func MultiObserver(observers ...Observer) Observer {
	var m multiObserver
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	if len(m) == 0 {
		return nopObserver{}
	}
	return m
}

func (m multiObserver) ObserveCompletion(outcome string) {
	for _, o := range m {
		o.ObserveCompletion(outcome)
	}
}

func (m multiObserver) ObserveSnapshot(complete bool) {
	for _, o := range m {
		o.ObserveSnapshot(complete)
	}
}

func (m multiObserver) ObserveStreamEnd(status string, stats StreamStats) {
	for _, o := range m {
		o.ObserveStreamEnd(status, stats)
	}
}
