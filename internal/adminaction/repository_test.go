package adminaction

import (
	"errors"
	"testing"

	"kitbuild/internal/apperr"
)

func TestRecordValidate_RequiresReason(t *testing.T) {
	rec := Record{OrderID: "o-1", Type: ActionOverrideFinalValues, Actor: "staff:s-1", Reason: "  "}

	var ae *apperr.Error
	if err := rec.Validate(); !errors.As(err, &ae) || ae.Code != apperr.CodeReasonRequired {
		t.Fatalf("expected REASON_REQUIRED, got %v", err)
	}

	rec.Reason = "client supplied own paints"
	if err := rec.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
