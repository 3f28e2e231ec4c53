package service_test

import (
	"context"
	"errors"
	"testing"

	appErrors "github.com/bakehouse/cart-service/internal/errors"
	"github.com/bakehouse/cart-service/internal/models"
	"github.com/bakehouse/cart-service/pkg/productclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/google/uuid"
)

func catalogProduct(id uuid.UUID, price float64) *models.Product {
	return &models.Product{
		ID:             id,
		SKU:            "CRS-001",
		Name:           "Butter Croissant",
		Category:       "PASTRY",
		EffectivePrice: price,
	}
}

func TestAddItem(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Add New Item", func(t *testing.T) {
		// Arrange
		svc, deps := newCartService(t)
		cart := activeUserCart(uuid.New())
		productID := uuid.New()

		deps.repo.On("GetCart", mock.Anything, cart.ID).Return(cart, nil).Once()
		deps.repo.On("UpdateCart", mock.Anything, cart).Return(nil).Once()
		deps.products.On("GetProduct", mock.Anything, productID).Return(catalogProduct(productID, 12.50), nil).Once()
		deps.products.On("CheckStock", mock.Anything, productID, 2).
			Return(&models.StockInfo{Sufficient: true, StockQuantity: 10}, nil).Once()

		// Act
		got, err := svc.AddItem(ctx, cart.ID, &models.AddItemRequest{ProductID: productID, Quantity: 2})

		// Assert
		assert.NoError(t, err)
		assert.Len(t, got.Items, 1)
		assert.Equal(t, 1, got.ItemCount)
		assert.Equal(t, 2, got.TotalQuantity)
		assert.InDelta(t, 25.00, got.Subtotal, 0.001)
		assert.InDelta(t, 2.00, got.TaxAmount, 0.001)
		assert.InDelta(t, 27.00, got.TotalAmount, 0.001)
		assert.Equal(t, "Butter Croissant", got.Items[0].ProductName)
		assert.NotNil(t, got.Items[0].LastValidatedAt)
		deps.repo.AssertExpectations(t)
		deps.products.AssertExpectations(t)
	})

	t.Run("Success - Duplicate Add Folds Into Existing Line", func(t *testing.T) {
		// Arrange
		svc, deps := newCartService(t)
		cart := activeUserCart(uuid.New())
		productID := uuid.New()
		item := cartWithItem(cart, productID, 2, 12.50)

		deps.repo.On("GetCart", mock.Anything, cart.ID).Return(cart, nil).Once()
		deps.repo.On("UpdateCart", mock.Anything, cart).Return(nil).Once()

		// Act
		got, err := svc.AddItem(ctx, cart.ID, &models.AddItemRequest{ProductID: productID, Quantity: 3})

		// Assert
		assert.NoError(t, err)
		assert.Len(t, got.Items, 1)
		assert.Equal(t, 5, item.Quantity)
		assert.InDelta(t, 62.50, got.Subtotal, 0.001)
		deps.products.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything)
		deps.repo.AssertExpectations(t)
	})

	t.Run("Failure - Quantity Above Per-Item Ceiling", func(t *testing.T) {
		// Arrange
		svc, deps := newCartService(t)
		cartID := uuid.New()

		// Act
		got, err := svc.AddItem(ctx, cartID, &models.AddItemRequest{ProductID: uuid.New(), Quantity: 51})

		// Assert
		assert.Error(t, err)
		assert.Nil(t, got)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeLimitExceeded))
		deps.repo.AssertNotCalled(t, "GetCart", mock.Anything, mock.Anything)
	})

	t.Run("Failure - Combined Duplicate Quantity Above Ceiling", func(t *testing.T) {
		// Arrange
		svc, deps := newCartService(t)
		cart := activeUserCart(uuid.New())
		productID := uuid.New()
		item := cartWithItem(cart, productID, 48, 1.00)

		deps.repo.On("GetCart", mock.Anything, cart.ID).Return(cart, nil).Once()

		// Act
		got, err := svc.AddItem(ctx, cart.ID, &models.AddItemRequest{ProductID: productID, Quantity: 5})

		// Assert
		assert.Error(t, err)
		assert.Nil(t, got)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeLimitExceeded))
		assert.Equal(t, 48, item.Quantity)
		deps.repo.AssertNotCalled(t, "UpdateCart", mock.Anything, mock.Anything)
	})

	t.Run("Failure - Cart Full", func(t *testing.T) {
		// Arrange
		svc, deps := newCartService(t)
		deps.cfg.CartLimits.MaxItemsPerCart = 1

		cart := activeUserCart(uuid.New())
		cartWithItem(cart, uuid.New(), 1, 5.00)

		deps.repo.On("GetCart", mock.Anything, cart.ID).Return(cart, nil).Once()

		// Act
		got, err := svc.AddItem(ctx, cart.ID, &models.AddItemRequest{ProductID: uuid.New(), Quantity: 1})

		// Assert
		assert.Error(t, err)
		assert.Nil(t, got)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeLimitExceeded))
	})

	t.Run("Failure - Product Not Found", func(t *testing.T) {
		// Arrange
		svc, deps := newCartService(t)
		cart := activeUserCart(uuid.New())
		productID := uuid.New()

		deps.repo.On("GetCart", mock.Anything, cart.ID).Return(cart, nil).Once()
		deps.products.On("GetProduct", mock.Anything, productID).
			Return(nil, productclient.ErrProductNotFound).Once()

		// Act
		got, err := svc.AddItem(ctx, cart.ID, &models.AddItemRequest{ProductID: productID, Quantity: 1})

		// Assert
		assert.Error(t, err)
		assert.Nil(t, got)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeNotFound))
		deps.products.AssertExpectations(t)
	})

	t.Run("Failure - Catalog Unreachable", func(t *testing.T) {
		// Arrange
		svc, deps := newCartService(t)
		cart := activeUserCart(uuid.New())
		productID := uuid.New()

		deps.repo.On("GetCart", mock.Anything, cart.ID).Return(cart, nil).Once()
		deps.products.On("GetProduct", mock.Anything, productID).
			Return(nil, errors.New("dial tcp: connection refused")).Once()

		// Act
		got, err := svc.AddItem(ctx, cart.ID, &models.AddItemRequest{ProductID: productID, Quantity: 1})

		// Assert
		assert.Error(t, err)
		assert.Nil(t, got)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeExternalService))
	})

	t.Run("Failure - Hard Stock Mode Rejects Shortfall", func(t *testing.T) {
		// Arrange
		svc, deps := newCartService(t)
		deps.cfg.CartValidation.StockFailureMode = "hard"

		cart := activeUserCart(uuid.New())
		productID := uuid.New()

		deps.repo.On("GetCart", mock.Anything, cart.ID).Return(cart, nil).Once()
		deps.products.On("GetProduct", mock.Anything, productID).Return(catalogProduct(productID, 4.00), nil).Once()
		deps.products.On("CheckStock", mock.Anything, productID, 5).
			Return(&models.StockInfo{Sufficient: false, StockQuantity: 2}, nil).Once()

		// Act
		got, err := svc.AddItem(ctx, cart.ID, &models.AddItemRequest{ProductID: productID, Quantity: 5})

		// Assert
		assert.Error(t, err)
		assert.Nil(t, got)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeBadRequest))
		assert.Contains(t, err.Error(), "Insufficient stock")
		deps.repo.AssertNotCalled(t, "UpdateCart", mock.Anything, mock.Anything)
	})

	t.Run("Success - Soft Stock Mode Flags The Line", func(t *testing.T) {
		// Arrange
		svc, deps := newCartService(t)
		cart := activeUserCart(uuid.New())
		productID := uuid.New()

		deps.repo.On("GetCart", mock.Anything, cart.ID).Return(cart, nil).Once()
		deps.repo.On("UpdateCart", mock.Anything, cart).Return(nil).Once()
		deps.products.On("GetProduct", mock.Anything, productID).Return(catalogProduct(productID, 4.00), nil).Once()
		deps.products.On("CheckStock", mock.Anything, productID, 5).
			Return(&models.StockInfo{Sufficient: false, StockQuantity: 2}, nil).Once()

		// Act
		got, err := svc.AddItem(ctx, cart.ID, &models.AddItemRequest{ProductID: productID, Quantity: 5})

		// Assert
		assert.NoError(t, err)
		assert.True(t, got.Items[0].IsAvailable)
		assert.Equal(t, "Only 2 in stock", got.Items[0].AvailabilityMessage)
		assert.True(t, got.Items[0].HasStockIssue())
		deps.repo.AssertExpectations(t)
	})

	t.Run("Success - Stock Check Outage Does Not Block Add", func(t *testing.T) {
		// Arrange
		svc, deps := newCartService(t)
		cart := activeUserCart(uuid.New())
		productID := uuid.New()

		deps.repo.On("GetCart", mock.Anything, cart.ID).Return(cart, nil).Once()
		deps.repo.On("UpdateCart", mock.Anything, cart).Return(nil).Once()
		deps.products.On("GetProduct", mock.Anything, productID).Return(catalogProduct(productID, 4.00), nil).Once()
		deps.products.On("CheckStock", mock.Anything, productID, 1).
			Return(nil, errors.New("timeout")).Once()

		// Act
		got, err := svc.AddItem(ctx, cart.ID, &models.AddItemRequest{ProductID: productID, Quantity: 1})

		// Assert
		assert.NoError(t, err)
		assert.Len(t, got.Items, 1)
		assert.Nil(t, got.Items[0].LastValidatedAt)
		deps.repo.AssertExpectations(t)
	})

	t.Run("Failure - Cart Value Ceiling", func(t *testing.T) {
		// Arrange
		svc, deps := newCartService(t)
		cart := activeUserCart(uuid.New())
		productID := uuid.New()

		deps.repo.On("GetCart", mock.Anything, cart.ID).Return(cart, nil).Once()
		deps.products.On("GetProduct", mock.Anything, productID).Return(catalogProduct(productID, 1500.00), nil).Once()
		deps.products.On("CheckStock", mock.Anything, productID, 2).
			Return(&models.StockInfo{Sufficient: true, StockQuantity: 10}, nil).Once()

		// Act
		got, err := svc.AddItem(ctx, cart.ID, &models.AddItemRequest{ProductID: productID, Quantity: 2})

		// Assert
		assert.Error(t, err)
		assert.Nil(t, got)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeLimitExceeded))
		deps.repo.AssertNotCalled(t, "UpdateCart", mock.Anything, mock.Anything)
	})

	t.Run("Success - Price Override Skips Catalog Price", func(t *testing.T) {
		// Arrange
		svc, deps := newCartService(t)
		cart := activeUserCart(uuid.New())
		productID := uuid.New()
		override := 9.99

		deps.repo.On("GetCart", mock.Anything, cart.ID).Return(cart, nil).Once()
		deps.repo.On("UpdateCart", mock.Anything, cart).Return(nil).Once()
		deps.products.On("GetProduct", mock.Anything, productID).Return(catalogProduct(productID, 12.50), nil).Once()
		deps.products.On("CheckStock", mock.Anything, productID, 1).
			Return(&models.StockInfo{Sufficient: true, StockQuantity: 10}, nil).Once()

		// Act
		got, err := svc.AddItem(ctx, cart.ID, &models.AddItemRequest{
			ProductID:         productID,
			Quantity:          1,
			UnitPriceOverride: &override,
		})

		// Assert
		assert.NoError(t, err)
		assert.InDelta(t, 9.99, got.Items[0].UnitPrice, 0.001)
		deps.repo.AssertExpectations(t)
	})
}

func TestUpdateItem(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Update Quantity", func(t *testing.T) {
		// Arrange
		svc, deps := newCartService(t)
		cart := activeUserCart(uuid.New())
		item := cartWithItem(cart, uuid.New(), 2, 10.00)

		deps.repo.On("GetCart", mock.Anything, cart.ID).Return(cart, nil).Once()
		deps.repo.On("UpdateCart", mock.Anything, cart).Return(nil).Once()

		// Act
		got, err := svc.UpdateItem(ctx, cart.ID, item.ID, &models.UpdateItemRequest{Quantity: 4})

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, 4, item.Quantity)
		assert.InDelta(t, 40.00, got.Subtotal, 0.001)
		deps.repo.AssertExpectations(t)
	})

	t.Run("Failure - Item Not Found", func(t *testing.T) {
		// Arrange
		svc, deps := newCartService(t)
		cart := activeUserCart(uuid.New())

		deps.repo.On("GetCart", mock.Anything, cart.ID).Return(cart, nil).Once()

		// Act
		got, err := svc.UpdateItem(ctx, cart.ID, uuid.New(), &models.UpdateItemRequest{Quantity: 1})

		// Assert
		assert.Error(t, err)
		assert.Nil(t, got)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeNotFound))
	})

	t.Run("Failure - Removed Item Behaves As Missing", func(t *testing.T) {
		// Arrange
		svc, deps := newCartService(t)
		cart := activeUserCart(uuid.New())
		item := cartWithItem(cart, uuid.New(), 2, 10.00)
		item.Remove()
		cart.RecomputeTotals()

		deps.repo.On("GetCart", mock.Anything, cart.ID).Return(cart, nil).Once()

		// Act
		got, err := svc.UpdateItem(ctx, cart.ID, item.ID, &models.UpdateItemRequest{Quantity: 1})

		// Assert
		assert.Error(t, err)
		assert.Nil(t, got)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeNotFound))
	})
}

func TestRemoveItem(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Soft Remove", func(t *testing.T) {
		// Arrange
		svc, deps := newCartService(t)
		cart := activeUserCart(uuid.New())
		item := cartWithItem(cart, uuid.New(), 2, 10.00)

		deps.repo.On("GetCart", mock.Anything, cart.ID).Return(cart, nil).Once()
		deps.repo.On("UpdateCart", mock.Anything, cart).Return(nil).Once()

		// Act
		got, err := svc.RemoveItem(ctx, cart.ID, item.ID)

		// Assert
		assert.NoError(t, err)
		assert.True(t, item.IsRemoved())
		assert.NotNil(t, item.RemovedAt)
		assert.Zero(t, got.TotalAmount)
		assert.Len(t, got.Items, 1)
		deps.repo.AssertExpectations(t)
	})
}

func TestSaveItemForLaterAndMoveBack(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Save For Later Excludes From Totals", func(t *testing.T) {
		// Arrange
		svc, deps := newCartService(t)
		cart := activeUserCart(uuid.New())
		item := cartWithItem(cart, uuid.New(), 2, 10.00)

		deps.repo.On("GetCart", mock.Anything, cart.ID).Return(cart, nil).Once()
		deps.repo.On("UpdateCart", mock.Anything, cart).Return(nil).Once()

		// Act
		got, err := svc.SaveItemForLater(ctx, cart.ID, item.ID)

		// Assert
		assert.NoError(t, err)
		assert.True(t, item.IsSavedForLater())
		assert.Zero(t, got.TotalAmount)
		assert.Zero(t, got.ItemCount)
		deps.repo.AssertExpectations(t)
	})

	t.Run("Success - Move Back Restores Totals", func(t *testing.T) {
		// Arrange
		svc, deps := newCartService(t)
		cart := activeUserCart(uuid.New())
		item := cartWithItem(cart, uuid.New(), 2, 10.00)
		item.SaveForLater()
		cart.RecomputeTotals()

		deps.repo.On("GetCart", mock.Anything, cart.ID).Return(cart, nil).Once()
		deps.repo.On("UpdateCart", mock.Anything, cart).Return(nil).Once()

		// Act
		got, err := svc.MoveItemToCart(ctx, cart.ID, item.ID)

		// Assert
		assert.NoError(t, err)
		assert.True(t, item.IsActive())
		assert.InDelta(t, 21.60, got.TotalAmount, 0.001)
		deps.repo.AssertExpectations(t)
	})

	t.Run("Success - Move Back Folds Into Newer Active Line", func(t *testing.T) {
		// Arrange
		svc, deps := newCartService(t)
		cart := activeUserCart(uuid.New())
		productID := uuid.New()

		saved := cartWithItem(cart, productID, 2, 10.00)
		saved.SaveForLater()
		newer := cartWithItem(cart, productID, 3, 10.00)
		cart.RecomputeTotals()

		deps.repo.On("GetCart", mock.Anything, cart.ID).Return(cart, nil).Once()
		deps.repo.On("UpdateCart", mock.Anything, cart).Return(nil).Once()

		// Act
		got, err := svc.MoveItemToCart(ctx, cart.ID, saved.ID)

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, 5, newer.Quantity)
		assert.True(t, saved.IsRemoved())
		assert.Equal(t, 1, got.ItemCount)
		deps.repo.AssertExpectations(t)
	})

	t.Run("Failure - Move Back Over Per-Item Ceiling", func(t *testing.T) {
		// Arrange
		svc, deps := newCartService(t)
		cart := activeUserCart(uuid.New())
		productID := uuid.New()

		saved := cartWithItem(cart, productID, 20, 1.00)
		saved.SaveForLater()
		cartWithItem(cart, productID, 40, 1.00)
		cart.RecomputeTotals()

		deps.repo.On("GetCart", mock.Anything, cart.ID).Return(cart, nil).Once()

		// Act
		got, err := svc.MoveItemToCart(ctx, cart.ID, saved.ID)

		// Assert
		assert.Error(t, err)
		assert.Nil(t, got)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeLimitExceeded))
	})

	t.Run("Failure - Move Back On Active Item", func(t *testing.T) {
		// Arrange
		svc, deps := newCartService(t)
		cart := activeUserCart(uuid.New())
		item := cartWithItem(cart, uuid.New(), 1, 5.00)

		deps.repo.On("GetCart", mock.Anything, cart.ID).Return(cart, nil).Once()

		// Act
		got, err := svc.MoveItemToCart(ctx, cart.ID, item.ID)

		// Assert
		assert.Error(t, err)
		assert.Nil(t, got)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeBadRequest))
	})
}

func TestValidateCart(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Refreshes Availability And Price", func(t *testing.T) {
		// Arrange
		svc, deps := newCartService(t)
		cart := activeUserCart(uuid.New())
		item := cartWithItem(cart, uuid.New(), 2, 10.00)

		deps.repo.On("GetCart", mock.Anything, cart.ID).Return(cart, nil).Once()
		deps.repo.On("UpdateItemValidation", mock.Anything, item).Return(nil).Once()
		deps.products.On("ValidateProducts", mock.Anything, mock.Anything).
			Return([]models.ProductValidation{{
				ProductID:     item.ProductID,
				Available:     true,
				StockQuantity: 1,
				CurrentPrice:  11.00,
			}}, nil).Once()

		// Act
		got, err := svc.ValidateCart(ctx, cart.ID)

		// Assert
		assert.NoError(t, err)
		assert.InDelta(t, 11.00, item.UnitPrice, 0.001)
		assert.True(t, item.PriceChanged)
		assert.InDelta(t, 1.00, item.PriceChangeAmount, 0.001)
		assert.Equal(t, "Only 1 in stock", item.AvailabilityMessage)
		assert.InDelta(t, 22.00, got.Subtotal, 0.001)
		deps.repo.AssertExpectations(t)
		deps.products.AssertExpectations(t)
	})

	t.Run("Success - Unavailable Product Is Flagged", func(t *testing.T) {
		// Arrange
		svc, deps := newCartService(t)
		cart := activeUserCart(uuid.New())
		item := cartWithItem(cart, uuid.New(), 1, 10.00)

		deps.repo.On("GetCart", mock.Anything, cart.ID).Return(cart, nil).Once()
		deps.repo.On("UpdateItemValidation", mock.Anything, item).Return(nil).Once()
		deps.products.On("ValidateProducts", mock.Anything, mock.Anything).
			Return([]models.ProductValidation{{
				ProductID: item.ProductID,
				Available: false,
			}}, nil).Once()

		// Act
		_, err := svc.ValidateCart(ctx, cart.ID)

		// Assert
		assert.NoError(t, err)
		assert.False(t, item.IsAvailable)
		assert.Equal(t, "Product is no longer available", item.AvailabilityMessage)
		assert.True(t, item.HasStockIssue())
	})

	t.Run("Failure - Validation Service Down", func(t *testing.T) {
		// Arrange
		svc, deps := newCartService(t)
		cart := activeUserCart(uuid.New())
		cartWithItem(cart, uuid.New(), 1, 10.00)

		deps.repo.On("GetCart", mock.Anything, cart.ID).Return(cart, nil).Once()
		deps.products.On("ValidateProducts", mock.Anything, mock.Anything).
			Return(nil, errors.New("502 bad gateway")).Once()

		// Act
		got, err := svc.ValidateCart(ctx, cart.ID)

		// Assert
		assert.Error(t, err)
		assert.Nil(t, got)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeExternalService))
	})
}
