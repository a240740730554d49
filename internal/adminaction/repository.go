package adminaction

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jackc/pgx/v5"

	"kitbuild/internal/apperr"
)

// Record is a staff override. Every override carries a reason.
type Record struct {
	OrderID  string
	Type     ActionType
	Reason   string
	Actor    string
	Metadata any
}

func (r Record) Validate() error {
	if strings.TrimSpace(r.Reason) == "" {
		return apperr.Validation(apperr.CodeReasonRequired, "reason", "", "a reason is required for "+string(r.Type))
	}
	return nil
}

func Insert(ctx context.Context, tx pgx.Tx, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	var s *string
	if rec.Metadata != nil {
		b, _ := json.Marshal(rec.Metadata)
		str := string(b)
		s = &str
	}
	const q = `
INSERT INTO admin_actions (order_id, action_type, reason, actor, metadata)
VALUES ($1, $2, $3, $4, CAST($5 AS jsonb))
`
	_, err := tx.Exec(ctx, q, rec.OrderID, string(rec.Type), strings.TrimSpace(rec.Reason), rec.Actor, s)
	return err
}
