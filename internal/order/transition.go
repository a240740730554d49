package order

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"kitbuild/internal/actor"
	"kitbuild/internal/apperr"
	"kitbuild/internal/estimate"
	"kitbuild/internal/progress"
)

// FinalOverride replaces the estimate copied into the final values on completion.
type FinalOverride struct {
	PriceCents int64 `json:"priceCents"`
	Days       int   `json:"days"`
}

type TransitionRequest struct {
	To    Status
	Actor actor.Actor
	// Reason is required when cancelling and when Override is set.
	Reason   string
	Note     string
	Override *FinalOverride
}

// Transition validates and applies one status change to o and returns the new
// order state with the single ledger entry describing it. o is not modified.
//
// Rules:
// - The target must be an allowed edge from the current status; terminal
//   statuses accept nothing.
// - Staff and admins may take any allowed edge. A client may only cancel their
//   own order. Anonymous callers may do nothing.
// - Cancelling requires a reason, which is appended to the notes.
// - Completing copies the estimate into the final values, or the override when
//   one is given with a reason. Final values never change afterwards.
func Transition(o Order, req TransitionRequest, now time.Time) (Order, progress.Entry, error) {
	from := o.Status
	if !CanTransition(from, req.To) {
		return o, progress.Entry{}, apperr.State(apperr.CodeInvalidTransition,
			fmt.Sprintf("cannot move order from %s to %s", from, req.To))
	}
	if err := authorizeTransition(o, req.To, req.Actor); err != nil {
		return o, progress.Entry{}, err
	}

	reason := strings.TrimSpace(req.Reason)
	note := strings.TrimSpace(req.Note)
	if req.Override != nil && req.To != StatusCompleted {
		return o, progress.Entry{}, apperr.Validation(apperr.CodeValidationFailed, "override", "", "final values can only be overridden when completing")
	}

	next := o
	detail := note
	switch req.To {
	case StatusCancelled:
		if reason == "" {
			return o, progress.Entry{}, apperr.Validation(apperr.CodeReasonRequired, "reason", "", "a reason is required to cancel an order")
		}
		next.Notes = appendNote(o.Notes, "Cancelled: "+reason)
		detail = joinDetail(reason, note)

	case StatusCompleted:
		if o.HasFinalValues() {
			return o, progress.Entry{}, apperr.State(apperr.CodeFinalValuesLocked, "final values are already set")
		}
		price, days := o.EstimatedPriceCents, o.EstimatedDays
		if ov := req.Override; ov != nil {
			if reason == "" {
				return o, progress.Entry{}, apperr.Validation(apperr.CodeReasonRequired, "reason", "", "a reason is required to override final values")
			}
			if ov.PriceCents < 0 {
				return o, progress.Entry{}, apperr.Validation(apperr.CodeValidationFailed, "override.priceCents", strconv.FormatInt(ov.PriceCents, 10), "must be >= 0")
			}
			if ov.Days < 0 {
				return o, progress.Entry{}, apperr.Validation(apperr.CodeValidationFailed, "override.days", strconv.Itoa(ov.Days), "must be >= 0")
			}
			price, days = ov.PriceCents, ov.Days
			detail = joinDetail("override: "+reason, note)
		}
		next.FinalPriceCents = &price
		next.FinalDays = &days
	}

	next.Status = req.To
	next.UpdatedAt = now.UTC()

	msg := fmt.Sprintf("Status changed from %s to %s", from, req.To)
	if detail != "" {
		msg += ": " + detail
	}
	entry := progress.New(o.ID, progress.KindStatusChange, msg, req.Actor, now)
	entry.FromStatus = statusPtr(from)
	entry.ToStatus = statusPtr(req.To)
	return next, entry, nil
}

func authorizeTransition(o Order, to Status, a actor.Actor) error {
	if a.IsStaff() {
		return nil
	}
	if to == StatusCancelled && o.Status.Cancellable() && a.Owns(o.ClientID) {
		return nil
	}
	return apperr.Forbidden(fmt.Sprintf("role %s may not move this order to %s", a.Role, to))
}

// Reestimate stores a fresh calculator result on o. Only draft and estimated
// orders can be re-priced, and never once final values exist.
func Reestimate(o Order, res estimate.Result, a actor.Actor, now time.Time) (Order, progress.Entry, error) {
	if err := canReestimate(o, a); err != nil {
		return o, progress.Entry{}, err
	}
	if len(res.LineItems) != len(o.Items) {
		return o, progress.Entry{}, fmt.Errorf("estimate has %d lines for %d items", len(res.LineItems), len(o.Items))
	}

	next := applyEstimate(o, res, now)
	msg := fmt.Sprintf("Re-estimated: %d cents, %d days (was %d cents, %d days)",
		res.TotalPriceCents, res.TotalDays, o.EstimatedPriceCents, o.EstimatedDays)
	return next, progress.New(o.ID, progress.KindEstimate, msg, a, now), nil
}

func canReestimate(o Order, a actor.Actor) error {
	if !a.IsStaff() {
		return apperr.Forbidden("only staff may re-estimate an order")
	}
	if o.HasFinalValues() {
		return apperr.State(apperr.CodeFinalValuesLocked, "final values are set; the estimate can no longer change")
	}
	if o.Status != StatusDraft && o.Status != StatusEstimated {
		return apperr.State(apperr.CodeEstimateLocked, fmt.Sprintf("an order in %s cannot be re-estimated", o.Status))
	}
	return nil
}

// ReplaceItems swaps the item list of a draft order and re-prices it.
func ReplaceItems(o Order, items []Item, res estimate.Result, a actor.Actor, now time.Time) (Order, progress.Entry, error) {
	if !a.IsStaff() {
		return o, progress.Entry{}, apperr.Forbidden("only staff may replace order items")
	}
	if o.Status != StatusDraft {
		return o, progress.Entry{}, apperr.State(apperr.CodeItemsLocked, "items can only be replaced while the order is a draft; open a change request instead")
	}

	next := o
	next.Items = items
	for i := range next.Items {
		next.Items[i].OrderID = o.ID
	}
	next.EstimatedPriceCents = res.TotalPriceCents
	next.EstimatedDays = res.TotalDays
	next.UpdatedAt = now.UTC()

	msg := fmt.Sprintf("Items replaced (%d items): %d cents, %d days", len(items), res.TotalPriceCents, res.TotalDays)
	return next, progress.New(o.ID, progress.KindEstimate, msg, a, now), nil
}

func applyEstimate(o Order, res estimate.Result, now time.Time) Order {
	next := o
	next.Items = make([]Item, len(o.Items))
	copy(next.Items, o.Items)
	for i := range next.Items {
		next.Items[i].LinePriceCents = res.LineItems[i].PriceCents
		next.Items[i].LineDays = res.LineItems[i].Days
	}
	next.EstimatedPriceCents = res.TotalPriceCents
	next.EstimatedDays = res.TotalDays
	next.UpdatedAt = now.UTC()
	return next
}

func appendNote(notes, line string) string {
	if strings.TrimSpace(notes) == "" {
		return line
	}
	return notes + "\n" + line
}

func joinDetail(a, b string) string {
	if b == "" {
		return a
	}
	return a + " (" + b + ")"
}

func statusPtr(s Status) *string {
	v := string(s)
	return &v
}
