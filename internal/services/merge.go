package service

import (
	"context"
	"log/slog"

	appErrors "github.com/bakehouse/cart-service/internal/errors"
	"github.com/bakehouse/cart-service/internal/events"
	"github.com/bakehouse/cart-service/internal/metrics"
	"github.com/bakehouse/cart-service/internal/models"
)

// MergeCarts folds the source cart's ACTIVE items into the target, typically
// when a guest logs in and their session cart meets their user cart. Unlike
// AddItem, duplicate quantities are clamped silently: a merge is a background
// consolidation and must not fail over a ceiling the user never chose.
func (s *cartService) MergeCarts(ctx context.Context, req *models.MergeCartsRequest) (*models.Cart, error) {
	if req.SourceCartID == req.TargetCartID {
		return nil, appErrors.BadRequestError("Source and target carts must differ")
	}

	source, err := s.loadCart(ctx, req.SourceCartID)
	if err != nil {
		return nil, err
	}

	limits := s.cfg.CartLimits

	target, err := s.mutateCart(ctx, req.TargetCartID, func(target *models.Cart) error {
		if !target.IsMutable() {
			return appErrors.CartNotMutableError("Target cart is not active")
		}

		for _, item := range source.ActiveItems() {
			if existing := target.FindActiveItem(item.ProductID); existing != nil {
				if !req.HandleDuplicates {
					continue
				}

				combined := existing.Quantity + item.Quantity
				if combined > limits.MaxQuantityPerItem {
					combined = limits.MaxQuantityPerItem
				}

				existing.SetQuantity(combined)

				continue
			}

			if len(target.ActiveItems()) >= limits.MaxItemsPerCart {
				slog.Warn("Merge skipped items beyond cart capacity",
					slog.String("sourceCartId", source.ID.String()),
					slog.String("targetCartId", target.ID.String()),
				)

				break
			}

			target.AddItem(item.Clone(target.ID), s.policy())
		}

		// A guest source cart hands its user over to the target when the
		// target has none.
		if source.HasUser() && !target.HasUser() {
			target.AttachUser(*source.UserID, s.policy())
		}

		// Customer identity fills in from the source only where the target
		// has none; the target's own values always win.
		if target.CustomerName == "" {
			target.CustomerName = source.CustomerName
		}

		if target.CustomerEmail == "" {
			target.CustomerEmail = source.CustomerEmail
		}

		target.RecomputeTotals()
		target.UpdateActivity(s.policy())

		return nil
	})
	if err != nil {
		return nil, err
	}

	// The merge is an additive copy: the source is left untouched unless the
	// caller asked for it to be deleted.
	if req.DeleteSourceCart {
		if err := s.DeleteCart(ctx, source.ID); err != nil {
			// The merge itself succeeded; report but do not fail the call.
			slog.Error("Failed to delete source cart after merge",
				slog.String("sourceCartId", source.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	metrics.CartMerged()
	s.publish(ctx, events.CartEvent{
		Type:        events.EventCartMerged,
		CartID:      target.ID,
		UserID:      target.UserID,
		ItemCount:   target.ItemCount,
		TotalAmount: target.TotalAmount,
	})

	return target, nil
}
