package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	appErrors "github.com/bakehouse/cart-service/internal/errors"
	"github.com/bakehouse/cart-service/internal/events"
	"github.com/bakehouse/cart-service/internal/models"
	"github.com/bakehouse/cart-service/pkg/productclient"
	"github.com/google/uuid"
)

// AddItem adds a product to the cart. A second add of the same product folds
// into the existing ACTIVE line; the combined quantity must stay within the
// per-item ceiling or the whole request is rejected.
func (s *cartService) AddItem(ctx context.Context, cartID uuid.UUID, req *models.AddItemRequest) (*models.Cart, error) {
	limits := s.cfg.CartLimits

	if req.Quantity > limits.MaxQuantityPerItem {
		return nil, appErrors.LimitExceededError(
			fmt.Sprintf("Quantity cannot exceed %d per item", limits.MaxQuantityPerItem))
	}

	cart, err := s.mutateCart(ctx, cartID, func(cart *models.Cart) error {
		if !cart.IsMutable() {
			return appErrors.CartNotMutableError("Cart is not active")
		}

		if existing := cart.FindActiveItem(req.ProductID); existing != nil {
			return s.mergeIntoExisting(cart, existing, req)
		}

		return s.addNewItem(ctx, cart, req)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.CartEvent{
		Type:        events.EventCartItemAdded,
		CartID:      cart.ID,
		UserID:      cart.UserID,
		ProductID:   &req.ProductID,
		ItemCount:   cart.ItemCount,
		TotalAmount: cart.TotalAmount,
	})

	return cart, nil
}

func (s *cartService) mergeIntoExisting(cart *models.Cart, existing *models.CartItem, req *models.AddItemRequest) error {
	limits := s.cfg.CartLimits

	combined := existing.Quantity + req.Quantity
	if combined > limits.MaxQuantityPerItem {
		return appErrors.LimitExceededError(fmt.Sprintf(
			"Adding %d would exceed the limit of %d for this item (currently %d)",
			req.Quantity, limits.MaxQuantityPerItem, existing.Quantity))
	}

	existing.SetQuantity(combined)

	if req.SpecialInstructions != "" {
		existing.SpecialInstructions = req.SpecialInstructions
	}

	cart.RecomputeTotals()
	cart.UpdateActivity(s.policy())

	return s.checkCartValue(cart)
}

func (s *cartService) addNewItem(ctx context.Context, cart *models.Cart, req *models.AddItemRequest) error {
	limits := s.cfg.CartLimits

	if len(cart.ActiveItems()) >= limits.MaxItemsPerCart {
		return appErrors.LimitExceededError(
			fmt.Sprintf("Cart cannot hold more than %d items", limits.MaxItemsPerCart))
	}

	product, err := s.products.GetProduct(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, productclient.ErrProductNotFound) {
			return appErrors.NotFoundError("Product not found").WithError(err)
		}

		return appErrors.ExternalServiceError("Product service unavailable").WithError(err)
	}

	unitPrice := product.EffectivePrice
	if req.UnitPriceOverride != nil {
		unitPrice = *req.UnitPriceOverride
	}

	item := models.NewCartItem(cart.ID, product.ID, product.Name, req.Quantity, unitPrice, cart.CurrencyCode)
	item.ProductSKU = product.SKU
	item.ProductCategory = product.Category
	item.ProductDescription = product.Description
	item.ProductImageURL = product.ImageURL
	item.PrepTimeMinutes = product.PrepTimeMinutes
	item.SpecialInstructions = req.SpecialInstructions
	item.AddedFrom = req.AddedFrom
	item.Metadata = req.Metadata

	if s.cfg.CartValidation.CheckStockOnAdd {
		if err := s.applyStockCheck(ctx, item, req.Quantity); err != nil {
			return err
		}
	}

	cart.AddItem(item, s.policy())

	return s.checkCartValue(cart)
}

// applyStockCheck enforces the configured stock policy: "hard" rejects the
// add, "soft" records the shortfall on the line and lets checkout catch it.
func (s *cartService) applyStockCheck(ctx context.Context, item *models.CartItem, quantity int) error {
	stock, err := s.products.CheckStock(ctx, item.ProductID, quantity)
	if err != nil {
		// Catalog hiccups must not block adds; checkout revalidates anyway.
		slog.Warn("Stock check failed, accepting item unverified",
			slog.String("productId", item.ProductID.String()),
			slog.String("error", err.Error()),
		)

		return nil
	}

	item.StockQuantity = &stock.StockQuantity
	item.MarkValidated()

	if stock.Sufficient {
		return nil
	}

	if s.cfg.CartValidation.StockFailureMode == "hard" {
		return appErrors.BadRequestError(fmt.Sprintf(
			"Insufficient stock: %d available", stock.StockQuantity))
	}

	item.IsAvailable = stock.StockQuantity > 0
	item.AvailabilityMessage = fmt.Sprintf("Only %d in stock", stock.StockQuantity)

	return nil
}

func (s *cartService) checkCartValue(cart *models.Cart) error {
	maxValue := s.cfg.CartLimits.MaxCartValue
	if maxValue > 0 && cart.TotalAmount > maxValue {
		return appErrors.LimitExceededError(
			fmt.Sprintf("Cart total cannot exceed %.2f %s", maxValue, cart.CurrencyCode))
	}

	return nil
}

// GetItem returns a single line regardless of status; REMOVED lines stay
// retrievable for audit until the sweep purges them.
func (s *cartService) GetItem(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFoundError("Item not found").WithError(err)
		}

		return nil, appErrors.DatabaseError("Failed to fetch item").WithError(err)
	}

	return item, nil
}

func (s *cartService) UpdateItem(ctx context.Context, cartID, itemID uuid.UUID, req *models.UpdateItemRequest) (*models.Cart, error) {
	limits := s.cfg.CartLimits

	if req.Quantity > limits.MaxQuantityPerItem {
		return nil, appErrors.LimitExceededError(
			fmt.Sprintf("Quantity cannot exceed %d per item", limits.MaxQuantityPerItem))
	}

	cart, err := s.mutateCart(ctx, cartID, func(cart *models.Cart) error {
		if !cart.IsMutable() {
			return appErrors.CartNotMutableError("Cart is not active")
		}

		item := cart.FindItem(itemID)
		if item == nil || item.IsRemoved() {
			return appErrors.NotFoundError("Item not found in cart")
		}

		if !item.IsActive() {
			return appErrors.BadRequestError("Only active items can be updated")
		}

		item.SetQuantity(req.Quantity)

		if req.SpecialInstructions != nil {
			item.SpecialInstructions = *req.SpecialInstructions
		}

		if len(req.Metadata) > 0 {
			item.Metadata = req.Metadata
		}

		cart.RecomputeTotals()
		cart.UpdateActivity(s.policy())

		return s.checkCartValue(cart)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.CartEvent{
		Type:        events.EventCartItemUpdated,
		CartID:      cart.ID,
		UserID:      cart.UserID,
		ItemCount:   cart.ItemCount,
		TotalAmount: cart.TotalAmount,
	})

	return cart, nil
}

// RemoveItem soft-deletes the line; the maintenance sweep purges it later.
func (s *cartService) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.Cart, error) {
	cart, err := s.mutateCart(ctx, cartID, func(cart *models.Cart) error {
		if !cart.IsMutable() {
			return appErrors.CartNotMutableError("Cart is not active")
		}

		item := cart.FindItem(itemID)
		if item == nil || item.IsRemoved() {
			return appErrors.NotFoundError("Item not found in cart")
		}

		item.Remove()
		cart.RecomputeTotals()
		cart.UpdateActivity(s.policy())

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.CartEvent{
		Type:        events.EventCartItemRemoved,
		CartID:      cart.ID,
		UserID:      cart.UserID,
		ItemCount:   cart.ItemCount,
		TotalAmount: cart.TotalAmount,
	})

	return cart, nil
}

func (s *cartService) SaveItemForLater(ctx context.Context, cartID, itemID uuid.UUID) (*models.Cart, error) {
	return s.mutateCart(ctx, cartID, func(cart *models.Cart) error {
		if !cart.IsMutable() {
			return appErrors.CartNotMutableError("Cart is not active")
		}

		item := cart.FindItem(itemID)
		if item == nil || item.IsRemoved() {
			return appErrors.NotFoundError("Item not found in cart")
		}

		if !item.IsActive() {
			return appErrors.BadRequestError("Item is not active")
		}

		item.SaveForLater()
		cart.RecomputeTotals()
		cart.UpdateActivity(s.policy())

		return nil
	})
}

// MoveItemToCart brings a saved-for-later line back. If an ACTIVE line for
// the same product appeared in the meantime, the quantities fold together
// under the per-item ceiling and the saved line is retired.
func (s *cartService) MoveItemToCart(ctx context.Context, cartID, itemID uuid.UUID) (*models.Cart, error) {
	limits := s.cfg.CartLimits

	return s.mutateCart(ctx, cartID, func(cart *models.Cart) error {
		if !cart.IsMutable() {
			return appErrors.CartNotMutableError("Cart is not active")
		}

		item := cart.FindItem(itemID)
		if item == nil || item.IsRemoved() {
			return appErrors.NotFoundError("Item not found in cart")
		}

		if !item.IsSavedForLater() {
			return appErrors.BadRequestError("Item is not saved for later")
		}

		if existing := cart.FindActiveItem(item.ProductID); existing != nil {
			combined := existing.Quantity + item.Quantity
			if combined > limits.MaxQuantityPerItem {
				return appErrors.LimitExceededError(fmt.Sprintf(
					"Moving this item would exceed the limit of %d per item", limits.MaxQuantityPerItem))
			}

			existing.SetQuantity(combined)
			item.Remove()
		} else {
			if len(cart.ActiveItems()) >= limits.MaxItemsPerCart {
				return appErrors.LimitExceededError(
					fmt.Sprintf("Cart cannot hold more than %d items", limits.MaxItemsPerCart))
			}

			item.MoveToCart()
		}

		cart.RecomputeTotals()
		cart.UpdateActivity(s.policy())

		return s.checkCartValue(cart)
	})
}

// validateItems refreshes availability, stock and price for every ACTIVE
// item from the catalog and persists the validation columns. Totals are
// recomputed in memory; the next cart write persists them.
func (s *cartService) validateItems(ctx context.Context, cart *models.Cart) error {
	active := cart.ActiveItems()
	if len(active) == 0 {
		return nil
	}

	queries := make([]productclient.ValidationQuery, 0, len(active))
	for _, item := range active {
		queries = append(queries, productclient.ValidationQuery{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	results, err := s.products.ValidateProducts(ctx, queries)
	if err != nil {
		return appErrors.ExternalServiceError("Product validation failed").WithError(err)
	}

	byProduct := make(map[uuid.UUID]models.ProductValidation, len(results))
	for _, result := range results {
		byProduct[result.ProductID] = result
	}

	for _, item := range active {
		result, ok := byProduct[item.ProductID]
		if !ok {
			continue
		}

		item.IsAvailable = result.Available
		item.StockQuantity = &result.StockQuantity

		if !result.Available {
			item.AvailabilityMessage = "Product is no longer available"
		} else if result.StockQuantity < item.Quantity {
			item.AvailabilityMessage = fmt.Sprintf("Only %d in stock", result.StockQuantity)
		} else {
			item.AvailabilityMessage = ""
		}

		if result.CurrentPrice > 0 && result.CurrentPrice != item.UnitPrice {
			item.SetUnitPrice(result.CurrentPrice)
		}

		item.MarkValidated()

		if err := s.repo.UpdateItemValidation(ctx, item); err != nil {
			slog.Warn("Failed to persist item validation",
				slog.String("itemId", item.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	cart.RecomputeTotals()

	return nil
}

// reconcileItems is the best-effort flavor of validateItems used on reads.
func (s *cartService) reconcileItems(ctx context.Context, cart *models.Cart) {
	if err := s.validateItems(ctx, cart); err != nil {
		slog.Warn("Cart reconciliation skipped",
			slog.String("cartId", cart.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}
