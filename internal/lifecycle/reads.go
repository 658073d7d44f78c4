package lifecycle

import (
	"context"
	"fmt"

	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/orders"
)

// Buckets groups a customer's orders by status, newest first in each.
type Buckets struct {
	Processing    []orders.Order `json:"processing"`
	UnderDelivery []orders.Order `json:"underDelivery"`
	Completed     []orders.Order `json:"completed"`
	Cancelled     []orders.Order `json:"cancelled"`
}

// GetStatus returns the order with its timeline.
func (e *Engine) GetStatus(ctx context.Context, orderID string) (*orders.Order, error) {
	return e.load(ctx, orderID)
}

// OrderForUser is the customer's view of one order, hand-off code included.
// Only the customer who placed it may read it.
func (e *Engine) OrderForUser(ctx context.Context, orderID, userID string) (*orders.Order, error) {
	return e.loadForUser(ctx, orderID, userID)
}

// OrderForSeller is the seller's view of one order, without the hand-off code.
func (e *Engine) OrderForSeller(ctx context.Context, orderID, sellerID string) (*orders.Order, error) {
	o, err := e.loadForSeller(ctx, orderID, sellerID)
	if err != nil {
		return nil, err
	}
	view := o.ForSeller()
	return &view, nil
}

func (e *Engine) ListForUser(ctx context.Context, userID string) (*Buckets, error) {
	if userID == "" {
		return nil, validationError(map[string]string{"userId": "required"}, "user id is required")
	}
	list, err := e.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders for user %s: %w", userID, err)
	}
	b := &Buckets{
		Processing:    []orders.Order{},
		UnderDelivery: []orders.Order{},
		Completed:     []orders.Order{},
		Cancelled:     []orders.Order{},
	}
	for i := range list {
		o, err := e.expireIfDue(ctx, &list[i])
		if err != nil {
			return nil, err
		}
		switch o.Status {
		case orders.StatusProcessing:
			b.Processing = append(b.Processing, *o)
		case orders.StatusUnderDelivery:
			b.UnderDelivery = append(b.UnderDelivery, *o)
		case orders.StatusCompleted:
			b.Completed = append(b.Completed, *o)
		case orders.StatusCancelled:
			b.Cancelled = append(b.Cancelled, *o)
		}
	}
	return b, nil
}

// ListPendingForSeller returns the seller's orders still awaiting a
// decision, most urgent first. Overdue orders are auto-rejected on the way
// and left out. Delivery codes are stripped.
func (e *Engine) ListPendingForSeller(ctx context.Context, sellerID string) ([]orders.Order, error) {
	if sellerID == "" {
		return nil, validationError(map[string]string{"sellerId": "required"}, "seller id is required")
	}
	list, err := e.repo.ListAwaitingSeller(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("list pending orders for seller %s: %w", sellerID, err)
	}
	out := make([]orders.Order, 0, len(list))
	for i := range list {
		o, err := e.expireIfDue(ctx, &list[i])
		if err != nil {
			return nil, err
		}
		if o.AwaitingSeller() {
			out = append(out, o.ForSeller())
		}
	}
	return out, nil
}

// ExpireOverdue auto-rejects every order whose approval deadline has passed.
// With dryRun it only counts them.
func (e *Engine) ExpireOverdue(ctx context.Context, dryRun bool) (int, error) {
	list, err := e.repo.ScanAwaitingSeller(ctx)
	if err != nil {
		return 0, fmt.Errorf("scan pending orders: %w", err)
	}
	now := e.now()
	expired := 0
	for i := range list {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		o := &list[i]
		if !o.AwaitingSeller() || !now.After(o.SellerApprovalDeadline) {
			continue
		}
		if dryRun {
			expired++
			continue
		}
		after, err := e.expireIfDue(ctx, o)
		if err != nil {
			return expired, err
		}
		if after.CancelledBy == orders.CancelledBySystem {
			expired++
		}
	}
	e.log.Info().Int("expired", expired).Bool("dry_run", dryRun).Int("scanned", len(list)).Msg("approval deadline sweep")
	return expired, nil
}
