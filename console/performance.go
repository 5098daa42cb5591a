package console

import (
	"fmt"
	"io"
	"time"
)

// PerformanceChecker prints the time elapsed between successive calls.
type PerformanceChecker struct {
	out  io.Writer
	now  func() time.Time
	last time.Time
}

// NewPerformanceChecker starts measuring from now.
func NewPerformanceChecker(out io.Writer) *PerformanceChecker {
	return newPerformanceChecker(out, time.Now)
}

func newPerformanceChecker(out io.Writer, now func() time.Time) *PerformanceChecker {
	return &PerformanceChecker{out: out, now: now, last: now()}
}

// DisplayTimeElapsed prints the milliseconds since creation or the previous
// call, then restarts the measurement.
func (p *PerformanceChecker) DisplayTimeElapsed(label string) time.Duration {
	current := p.now()
	elapsed := current.Sub(p.last)
	p.last = current
	if label == "" {
		fmt.Fprintf(p.out, "Time elapsed %dms.\n", elapsed.Milliseconds())
	} else {
		fmt.Fprintf(p.out, "Time elapsed for %s %dms.\n", label, elapsed.Milliseconds())
	}
	return elapsed
}
