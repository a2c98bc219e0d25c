package clarify

import (
	"context"
	"fmt"

	"movedesk/internal"
)

// OrderService is the persistence boundary for finalized line items.
type OrderService interface {
	AddOrderItem(ctx context.Context, orderID string, payload internal.OrderItemPayload) (internal.OrderItem, error)
}

// SubmitItems issues one item-creation call per entry, sequentially. The
// first failure aborts the remaining submissions; items already created stay
// created (no rollback). The successfully created items are returned either
// way.
func SubmitItems(ctx context.Context, svc OrderService, orderID string, items []internal.ParsedItem) ([]internal.OrderItem, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	created := make([]internal.OrderItem, 0, len(items))
	for _, item := range items {
		orderItem, err := svc.AddOrderItem(ctx, orderID, payloadFrom(item))
		if err != nil {
			return created, fmt.Errorf("submit item %q: %w", item.DisplayName(), err)
		}
		created = append(created, orderItem)
	}
	return created, nil
}

// Finalize submits the session's item list. Submission while clarifications
// are pending is a hard error, not just a disabled button.
func (s *Session) Finalize(ctx context.Context, svc OrderService) ([]internal.OrderItem, error) {
	if len(s.queue) > 0 {
		return nil, ErrClarificationsPending
	}
	return SubmitItems(ctx, svc, s.orderID, s.items)
}

func payloadFrom(item internal.ParsedItem) internal.OrderItemPayload {
	return internal.OrderItemPayload{
		ItemTypeID:              item.ItemTypeID,
		NameEn:                  item.NameEn,
		NameHe:                  item.NameHe,
		Quantity:                item.Quantity,
		RequiresAssembly:        item.RequiresAssembly,
		RequiresDisassembly:     item.RequiresDisassembly,
		IsFragile:               item.IsFragile,
		RequiresSpecialHandling: item.RequiresSpecialHandling,
		SpecialNotes:            item.SpecialNotes,
		Room:                    item.Room,
		UnitPrice:               item.UnitPrice,
	}
}
