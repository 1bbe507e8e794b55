package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-video-gen/internal/domain"
	"telegram-video-gen/internal/domain/ports/usecase"
)

var _ usecase.CreditLedger = (*creditLedger)(nil)

// creditLedger keeps per-user spend balances in a single row each.
// Reserve and Rollback are single-statement row-atomic updates, so no
// cross-row transaction is needed.
type creditLedger struct {
	pool *pgxpool.Pool
}

func NewCreditLedger(pool *pgxpool.Pool) *creditLedger {
	return &creditLedger{pool: pool}
}

func (l *creditLedger) Reserve(ctx context.Context, userID string, units int64) error {
	if units < 0 {
		return domain.ErrInvalidArgument
	}
	tag, err := execSQL(ctx, l.pool, nil, `
UPDATE user_credits SET balance = balance - $2, updated_at = now()
WHERE user_id = $1 AND balance >= $2;`, userID, units)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientCredits
	}
	return nil
}

func (l *creditLedger) Rollback(ctx context.Context, userID string, units int64) error {
	if units < 0 {
		return domain.ErrInvalidArgument
	}
	_, err := execSQL(ctx, l.pool, nil, `
INSERT INTO user_credits (user_id, balance, updated_at) VALUES ($1, $2, now())
ON CONFLICT (user_id) DO UPDATE SET balance = user_credits.balance + $2, updated_at = now();`,
		userID, units)
	return err
}

func (l *creditLedger) Balance(ctx context.Context, userID string) (int64, error) {
	row, err := pickRow(ctx, l.pool, nil,
		`SELECT balance FROM user_credits WHERE user_id = $1;`, userID)
	if err != nil {
		return 0, err
	}
	var balance int64
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, domain.ErrReadDatabaseRow
	}
	return balance, nil
}
