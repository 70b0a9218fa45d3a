package observability

import (
	"context"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

type readinessChecks []sharedobs.ReadinessChecker

// AllReady combines readiness checkers; the result is ready when every checker is.
func AllReady(checkers ...sharedobs.ReadinessChecker) sharedobs.ReadinessChecker {
	return readinessChecks(checkers)
}

func (r readinessChecks) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
