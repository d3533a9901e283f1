package service

import (
	"fmt"
	"time"

	"github.com/sejink/gatehouse/internal/gatehouse/types"
)

// Evaluator decides whether a principal is authorized at a given instant.
// Pure computation: no I/O, no side effects.  All comparisons happen in one
// fixed timezone offset so decisions do not depend on deployment locale.
type Evaluator struct {
	loc *time.Location
}

// NewEvaluator builds an evaluator pinned to the given UTC offset in hours.
func NewEvaluator(offsetHours int) *Evaluator {
	name := fmt.Sprintf("UTC%+d", offsetHours)
	return &Evaluator{loc: time.FixedZone(name, offsetHours*3600)}
}

// Location returns the evaluator's fixed zone, shared with log timestamps.
func (e *Evaluator) Location() *time.Location { return e.loc }

// Authorized reports whether p may act at now.  Date bounds are inclusive
// through the end of DateTo's day; hour bounds are [HourFrom, HourTo) with
// 0/0 meaning unrestricted.  Malformed dates fail closed.
func (e *Evaluator) Authorized(p types.Principal, now time.Time) bool {
	if !p.Active() {
		return false
	}

	now = now.In(e.loc)
	w := p.Window

	if w.DateFrom != types.NoDateBound {
		from, err := time.ParseInLocation("2006-01-02", w.DateFrom, e.loc)
		if err != nil {
			return false
		}
		if now.Before(from) {
			return false
		}
	}

	if w.DateTo != types.NoDateBound {
		to, err := time.ParseInLocation("2006-01-02", w.DateTo, e.loc)
		if err != nil {
			return false
		}
		// Inclusive through 23:59:59 of the end date.
		if now.After(to.Add(24*time.Hour - time.Second)) {
			return false
		}
	}

	if w.HourFrom+w.HourTo != 0 {
		h := now.Hour()
		if h < w.HourFrom || h >= w.HourTo {
			return false
		}
	}

	return true
}
