package gather

import (
	"context"
	"time"
)

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs one gathering pass. It returns early when ctx is cancelled.
	Run(ctx context.Context) error
}

// DateRange represents a time range for data fetching.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the range is non-empty.
func (r DateRange) Valid() bool { return r.Start.Before(r.End) }

// Key identifies the range in progress files.
func (r DateRange) Key() string {
	return r.Start.UTC().Format(time.RFC3339) + "_" + r.End.UTC().Format(time.RFC3339)
}

// Split cuts the range into consecutive windows of at most step. Adjacent
// windows share no instant: each ends 1ms before the next one starts. The
// last window always ends at r.End, which loaders treat as inclusive.
func (r DateRange) Split(step time.Duration) []DateRange {
	if !r.Valid() {
		return nil
	}
	if step <= 0 {
		return []DateRange{r}
	}
	var out []DateRange
	for s := r.Start; s.Before(r.End); {
		next := s.Add(step)
		e := next.Add(-time.Millisecond)
		if !next.Before(r.End) {
			e = r.End
		}
		out = append(out, DateRange{Start: s, End: e})
		s = next
	}
	return out
}
