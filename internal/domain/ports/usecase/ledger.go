package usecase

import "context"

// CreditLedger reserves and settles spend units for a user.
//
// Reserve is the enqueue caller's precondition; the job core itself only ever
// rolls a reservation back (commit is implicit, cost is pre-deducted).
type CreditLedger interface {
	Reserve(ctx context.Context, userID string, units int64) error
	Rollback(ctx context.Context, userID string, units int64) error
	Balance(ctx context.Context, userID string) (int64, error)
}
