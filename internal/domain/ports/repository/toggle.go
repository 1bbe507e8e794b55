package repository

import "context"

// ToggleStore is the externally-supplied feature toggle lookup.
// Implementations must fall back to def on a missing key or a store error;
// toggles gate behavior, they never fail it.
type ToggleStore interface {
	Enabled(ctx context.Context, key string, def bool) bool
}
