package service

import (
	"context"
	"fmt"

	appErrors "github.com/bakehouse/cart-service/internal/errors"
	"github.com/bakehouse/cart-service/internal/events"
	"github.com/bakehouse/cart-service/internal/metrics"
	"github.com/bakehouse/cart-service/internal/models"
	"github.com/bakehouse/cart-service/internal/utils"
	"github.com/google/uuid"
)

// Checkout converts the cart into an order. It runs in three phases: a
// strict revalidation-and-freeze write, the order gateway call, and the
// irreversible CONVERTED flip. The order call sits between the two writes so
// a cart only converts once the order provably exists; the gateway call
// itself is never retried here, only guarded by an idempotency key.
func (s *cartService) Checkout(ctx context.Context, cartID uuid.UUID, req *models.CheckoutRequest) (*models.CheckoutResult, error) {
	cart, err := s.prepareCheckout(ctx, cartID, req)
	if err != nil {
		return nil, err
	}

	submission := buildOrderSubmission(cart, req)
	idempotencyKey := fmt.Sprintf("cart-%s-v%d", cart.ID, cart.Version)

	gatewayCtx, cancel := utils.WithGatewayTimeout(ctx, s.cfg.Gateways.Timeout)
	defer cancel()

	order, err := s.orders.CreateOrder(gatewayCtx, submission, idempotencyKey)
	if err != nil {
		metrics.CheckoutFailed("order_gateway")

		return nil, appErrors.ExternalServiceError("Order creation failed").WithError(err)
	}

	converted, err := s.mutateCart(ctx, cartID, func(cart *models.Cart) error {
		if cart.Status == models.CartStatusConverted {
			// A concurrent retry already landed the same order.
			return nil
		}

		cart.MarkAsConverted(order.ID)

		return nil
	})
	if err != nil {
		// The order exists but the flip failed; surface the order so the
		// caller is not double-charged by retrying checkout.
		metrics.CheckoutFailed("conversion_write")

		return nil, appErrors.ConflictError("Order was created but the cart could not be finalized").
			WithDetail("order_id: " + order.ID.String()).WithError(err)
	}

	metrics.CartConverted()
	s.publish(ctx, events.CartEvent{
		Type:        events.EventCartConverted,
		CartID:      converted.ID,
		UserID:      converted.UserID,
		OrderID:     &order.ID,
		ItemCount:   converted.ItemCount,
		TotalAmount: converted.TotalAmount,
	})

	return &models.CheckoutResult{Cart: converted, Order: order}, nil
}

// prepareCheckout freezes the cart for ordering: strict catalog
// revalidation, customer/delivery details applied, totals settled.
func (s *cartService) prepareCheckout(ctx context.Context, cartID uuid.UUID, req *models.CheckoutRequest) (*models.Cart, error) {
	return s.mutateCart(ctx, cartID, func(cart *models.Cart) error {
		if cart.Status == models.CartStatusConverted {
			return appErrors.CartNotMutableError("Cart has already been checked out")
		}

		if !cart.IsMutable() {
			return appErrors.CartNotMutableError("Cart is not active")
		}

		if cart.IsEmpty() {
			return appErrors.EmptyCartError("Cannot check out an empty cart")
		}

		if err := s.validateItems(ctx, cart); err != nil {
			metrics.CheckoutFailed("validation")

			return err
		}

		for _, item := range cart.ActiveItems() {
			if item.HasStockIssue() {
				metrics.CheckoutFailed("stock")

				return appErrors.BadRequestError(
					fmt.Sprintf("Item %q is unavailable or short on stock", item.ProductName)).
					WithDetail(item.AvailabilityMessage)
			}
		}

		cart.CustomerName = req.CustomerName
		cart.CustomerEmail = req.CustomerEmail
		cart.DeliveryType = req.DeliveryType
		cart.DeliveryAddress = req.DeliveryAddress

		if req.SpecialInstructions != "" {
			cart.SpecialInstructions = req.SpecialInstructions
		}

		if req.DiscountCode != "" {
			cart.DiscountCode = req.DiscountCode
		}

		cart.RecomputeTotals()
		cart.UpdateActivity(s.policy())

		return s.checkCartValue(cart)
	})
}

func buildOrderSubmission(cart *models.Cart, req *models.CheckoutRequest) *models.OrderSubmission {
	items := make([]models.OrderLine, 0, len(cart.ActiveItems()))
	for _, item := range cart.ActiveItems() {
		items = append(items, models.OrderLine{
			ProductID:           item.ProductID,
			Quantity:            item.Quantity,
			UnitPriceOverride:   item.UnitPrice,
			SpecialInstructions: item.SpecialInstructions,
		})
	}

	return &models.OrderSubmission{
		UserID:                cart.UserID,
		CustomerName:          req.CustomerName,
		CustomerEmail:         req.CustomerEmail,
		CustomerPhone:         req.CustomerPhone,
		DeliveryType:          req.DeliveryType,
		DeliveryAddress:       req.DeliveryAddress,
		DeliveryDate:          req.DeliveryDate,
		SpecialInstructions:   req.SpecialInstructions,
		DiscountCode:          req.DiscountCode,
		PaymentMethod:         req.PaymentMethod,
		PaymentAmount:         cart.TotalAmount,
		CurrencyCode:          cart.CurrencyCode,
		CardLastFour:          req.CardLastFour,
		CardBrand:             req.CardBrand,
		CardType:              req.CardType,
		DigitalWalletProvider: req.DigitalWalletProvider,
		BankName:              req.BankName,
		PaymentNotes:          req.PaymentNotes,
		Items:                 items,
	}
}
