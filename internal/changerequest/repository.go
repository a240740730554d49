package changerequest

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kitbuild/internal/apperr"
	"kitbuild/internal/audit"
	"kitbuild/internal/progress"
	"kitbuild/pkg/db"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const selectColumns = `
SELECT id, order_id, description, status, requested_by, resolution_note, resolved_by, created_at, resolved_at
FROM change_requests
`

func scan(row pgx.Row) (ChangeRequest, error) {
	var cr ChangeRequest
	err := row.Scan(&cr.ID, &cr.OrderID, &cr.Description, &cr.Status, &cr.RequestedBy,
		&cr.ResolutionNote, &cr.ResolvedBy, &cr.CreatedAt, &cr.ResolvedAt)
	return cr, err
}

func (r *Repository) OrderRef(ctx context.Context, orderID string) (OrderRef, error) {
	var ref OrderRef
	err := r.db.QueryRow(ctx, `SELECT client_id, status FROM orders WHERE id = $1`, orderID).Scan(&ref.ClientID, &ref.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderRef{}, apperr.NotFound("order")
	}
	return ref, err
}

func (r *Repository) Get(ctx context.Context, id string) (ChangeRequest, error) {
	cr, err := scan(r.db.QueryRow(ctx, selectColumns+`WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ChangeRequest{}, apperr.NotFound("change request")
	}
	return cr, err
}

func (r *Repository) ListByOrder(ctx context.Context, orderID string) ([]ChangeRequest, error) {
	rows, err := r.db.Query(ctx, selectColumns+`WHERE order_id = $1 ORDER BY created_at ASC, id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ChangeRequest{}
	for rows.Next() {
		cr, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

func (r *Repository) Create(ctx context.Context, cr ChangeRequest, e progress.Entry) (ChangeRequest, progress.Entry, error) {
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		locked, err := progress.LockOrder(ctx, tx, cr.OrderID)
		if err != nil {
			return err
		}
		if err := (OrderRef{ClientID: locked.ClientID, Status: locked.Status}).checkOpen(); err != nil {
			return err
		}
		const q = `
INSERT INTO change_requests (order_id, description, status, requested_by, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id
`
		if err := tx.QueryRow(ctx, q, cr.OrderID, cr.Description, cr.Status, cr.RequestedBy, cr.CreatedAt).Scan(&cr.ID); err != nil {
			return err
		}
		if e, err = progress.Insert(ctx, tx, e); err != nil {
			return err
		}
		return audit.Insert(ctx, tx, audit.Record{
			OrderID:  &cr.OrderID,
			Action:   audit.ActionChangeRequestOpened,
			Actor:    cr.RequestedBy,
			Metadata: map[string]any{"changeRequestId": cr.ID},
		})
	})
	if err != nil {
		return ChangeRequest{}, progress.Entry{}, err
	}
	return cr, e, nil
}

func (r *Repository) Close(ctx context.Context, cr ChangeRequest, e progress.Entry) (ChangeRequest, progress.Entry, error) {
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := progress.LockOrder(ctx, tx, cr.OrderID); err != nil {
			return err
		}
		const q = `
UPDATE change_requests
SET status = $2, resolution_note = $3, resolved_by = $4, resolved_at = $5
WHERE id = $1 AND status = 'open'
`
		tag, err := tx.Exec(ctx, q, cr.ID, cr.Status, cr.ResolutionNote, cr.ResolvedBy, cr.ResolvedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperr.Conflict("change request was closed concurrently")
		}
		if e, err = progress.Insert(ctx, tx, e); err != nil {
			return err
		}
		action := audit.ActionChangeRequestResolved
		if cr.Status == StatusRejected {
			action = audit.ActionChangeRequestRejected
		}
		var by string
		if cr.ResolvedBy != nil {
			by = *cr.ResolvedBy
		}
		return audit.Insert(ctx, tx, audit.Record{
			OrderID:  &cr.OrderID,
			Action:   action,
			Actor:    by,
			Metadata: map[string]any{"changeRequestId": cr.ID, "note": cr.ResolutionNote},
		})
	})
	if err != nil {
		return ChangeRequest{}, progress.Entry{}, err
	}
	return cr, e, nil
}
