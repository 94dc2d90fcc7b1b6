package schedule

import (
	"fmt"
	"time"

	"github.com/adhocore/gronx"
)

// DefaultRefreshInterval is how often schedules are refetched when nothing
// else is configured.
const DefaultRefreshInterval = 5 * time.Minute

// RefreshPolicy decides when the next periodic refetch is due.
type RefreshPolicy interface {
	Next(now time.Time) time.Time
}

// IntervalPolicy refetches at a fixed interval.
type IntervalPolicy time.Duration

// Next implements RefreshPolicy.Next.
func (p IntervalPolicy) Next(now time.Time) time.Time {
	d := time.Duration(p)
	if d <= 0 {
		d = DefaultRefreshInterval
	}
	return now.Add(d)
}

// CronPolicy refetches on the ticks of a cron expression.
type CronPolicy struct {
	expr string
}

// NewCronPolicy validates expr and returns a policy for it.
func NewCronPolicy(expr string) (CronPolicy, error) {
	if !gronx.IsValid(expr) {
		return CronPolicy{}, fmt.Errorf("invalid refresh cron expression %q", expr)
	}
	return CronPolicy{expr: expr}, nil
}

// Next implements RefreshPolicy.Next. If the expression has no further tick
// the default interval is used instead.
func (p CronPolicy) Next(now time.Time) time.Time {
	next, err := gronx.NextTickAfter(p.expr, now, false)
	if err != nil {
		return now.Add(DefaultRefreshInterval)
	}
	return next
}
