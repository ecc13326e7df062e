package access

import (
	"fmt"
	"time"

	"github.com/uniedit/quotagate/internal/model"
)

// CurrentPeriod returns the rolling billing period containing now.
//
// Boundaries are aligned to start + n*length; the returned period is the
// half-open interval [boundary, boundary+length) with the greatest boundary
// not after now. The function is pure and safe for concurrent use.
func CurrentPeriod(start time.Time, length time.Duration, now time.Time) (model.Period, error) {
	if length <= 0 {
		return model.Period{}, fmt.Errorf("%w: period length %s is not positive", ErrInvalidPeriod, length)
	}
	if start.IsZero() {
		return model.Period{}, fmt.Errorf("%w: subscription start is not set", ErrInvalidPeriod)
	}
	if now.Before(start) {
		return model.Period{}, fmt.Errorf("%w: %s precedes subscription start %s",
			ErrInvalidPeriod, now.UTC().Format(time.RFC3339), start.UTC().Format(time.RFC3339))
	}

	start = start.UTC().Round(0)
	n := now.Sub(start) / length
	boundary := start.Add(n * length)

	return model.Period{
		Key:   periodKey(boundary, length),
		Start: boundary,
		End:   boundary.Add(length),
	}, nil
}

// CurrentPeriodKey returns only the key of CurrentPeriod.
func CurrentPeriodKey(start time.Time, length time.Duration, now time.Time) (string, error) {
	p, err := CurrentPeriod(start, length, now)
	if err != nil {
		return "", err
	}
	return p.Key, nil
}

// periodKey encodes the boundary and the length, so a plan whose period
// length changes starts a fresh counter instead of reusing a misaligned one.
func periodKey(boundary time.Time, length time.Duration) string {
	return fmt.Sprintf("%s/%d", boundary.Format(time.RFC3339Nano), int64(length/time.Second))
}
