package health

import (
	"context"
	"fmt"
)

// CapacityThreshold is the fill ratio at which SessionCapacity starts
// reporting degraded.
const CapacityThreshold = 0.9

// SessionCapacity reports degraded once open games reach CapacityThreshold
// of limit. A full server still serves existing games, so it never reports
// unhealthy.
func SessionCapacity(count func() int, limit int) Check {
	return func(ctx context.Context) error {
		if limit <= 0 {
			return nil
		}
		n := count()
		switch {
		case n >= limit:
			return fmt.Errorf("%w: session limit reached (%d/%d)", ErrDegraded, n, limit)
		case float64(n) >= CapacityThreshold*float64(limit):
			return fmt.Errorf("%w: %d of %d sessions in use", ErrDegraded, n, limit)
		default:
			return nil
		}
	}
}
