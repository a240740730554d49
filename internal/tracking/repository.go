package tracking

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kitbuild/internal/apperr"
	"kitbuild/internal/audit"
	"kitbuild/pkg/db"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

func (r *Repository) Insert(ctx context.Context, l Link, createdBy string) (Link, error) {
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		const q = `
INSERT INTO tracking_tokens (order_id, token, expires_at, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id, order_id, token, expires_at, revoked_at, created_at
`
		if err := tx.QueryRow(ctx, q, l.OrderID, l.Token, l.ExpiresAt, l.CreatedAt).Scan(
			&l.ID, &l.OrderID, &l.Token, &l.ExpiresAt, &l.RevokedAt, &l.CreatedAt,
		); err != nil {
			if db.IsForeignKeyViolation(err) {
				return apperr.NotFound("order")
			}
			return err
		}
		return audit.Insert(ctx, tx, audit.Record{
			OrderID:  &l.OrderID,
			Action:   audit.ActionTrackingLinkCreated,
			Actor:    createdBy,
			Metadata: map[string]any{"linkId": l.ID, "expiresAt": l.ExpiresAt},
		})
	})
	if err != nil {
		return Link{}, err
	}
	return l, nil
}

func (r *Repository) Resolve(ctx context.Context, token string, now time.Time) (string, error) {
	const q = `
SELECT order_id
FROM tracking_tokens
WHERE token = $1 AND revoked_at IS NULL AND expires_at > $2
`
	var orderID string
	err := r.db.QueryRow(ctx, q, token, now).Scan(&orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.NotFound("tracking link")
	}
	return orderID, err
}
