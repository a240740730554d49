package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	ActionOrderCreated          = "order.created"
	ActionOrderTransitioned     = "order.transitioned"
	ActionOrderReestimated      = "order.reestimated"
	ActionOrderItemsReplaced    = "order.items_replaced"
	ActionChangeRequestOpened   = "change_request.opened"
	ActionChangeRequestResolved = "change_request.resolved"
	ActionChangeRequestRejected = "change_request.rejected"
	ActionTrackingLinkCreated   = "tracking_link.created"
	ActionCatalogSaved          = "catalog.saved"
	ActionCatalogDeactivated    = "catalog.deactivated"
)

type Record struct {
	OrderID  *string
	Action   string
	Actor    string
	Metadata any
}

type Entry struct {
	ID        string          `json:"id"`
	OrderID   *string         `json:"orderId,omitempty"`
	Action    string          `json:"action"`
	Actor     string          `json:"actor"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func Insert(ctx context.Context, tx pgx.Tx, rec Record) error {
	_, err := tx.Exec(ctx, insertSQL, rec.OrderID, rec.Action, rec.Actor, metadataJSON(rec.Metadata))
	return err
}

// Record writes rec outside any caller transaction.
func (r *Repository) Record(ctx context.Context, rec Record) error {
	_, err := r.db.Exec(ctx, insertSQL, rec.OrderID, rec.Action, rec.Actor, metadataJSON(rec.Metadata))
	return err
}

func (r *Repository) ListByOrder(ctx context.Context, orderID string) ([]Entry, error) {
	const q = `
SELECT id, order_id, action, actor, COALESCE(metadata, '{}'::jsonb), created_at
FROM audit_logs
WHERE order_id = $1
ORDER BY created_at ASC, id ASC
`
	rows, err := r.db.Query(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		var meta []byte
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Action, &e.Actor, &meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Metadata = meta
		out = append(out, e)
	}
	return out, rows.Err()
}

const insertSQL = `
INSERT INTO audit_logs (order_id, action, actor, metadata)
VALUES ($1, $2, $3, CAST($4 AS jsonb))
`

func metadataJSON(metadata any) *string {
	if metadata == nil {
		return nil
	}
	b, _ := json.Marshal(metadata)
	s := string(b)
	return &s
}
