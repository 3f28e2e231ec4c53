package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type CartItemStatus string

const (
	ItemStatusActive        CartItemStatus = "ACTIVE"
	ItemStatusSavedForLater CartItemStatus = "SAVED_FOR_LATER"
	ItemStatusRemoved       CartItemStatus = "REMOVED"
)

// CartItem is one line of a cart. It carries a denormalized snapshot of the
// product taken at add-time so the cart stays renderable even when the
// catalog is unreachable.
type CartItem struct {
	ID                  uuid.UUID       `json:"id"`
	CartID              uuid.UUID       `json:"cart_id"`
	ProductID           uuid.UUID       `json:"product_id"`
	ProductSKU          string          `json:"product_sku,omitempty"`
	ProductName         string          `json:"product_name"`
	ProductCategory     string          `json:"product_category,omitempty"`
	ProductDescription  string          `json:"product_description,omitempty"`
	ProductImageURL     string          `json:"product_image_url,omitempty"`
	PrepTimeMinutes     int             `json:"preparation_time_minutes,omitempty"`
	Quantity            int             `json:"quantity"`
	UnitPrice           float64         `json:"unit_price"`
	TotalPrice          float64         `json:"total_price"`
	OriginalUnitPrice   float64         `json:"original_unit_price"`
	Status              CartItemStatus  `json:"status"`
	CurrencyCode        string          `json:"currency_code"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	IsAvailable         bool            `json:"is_available"`
	StockQuantity       *int            `json:"stock_quantity,omitempty"`
	AvailabilityMessage string          `json:"availability_message,omitempty"`
	PriceChanged        bool            `json:"price_changed"`
	PriceChangeAmount   float64         `json:"price_change_amount"`
	AddedAt             time.Time       `json:"added_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	LastValidatedAt     *time.Time      `json:"last_validated_at,omitempty"`
	SavedForLaterAt     *time.Time      `json:"saved_for_later_at,omitempty"`
	RemovedAt           *time.Time      `json:"removed_at,omitempty"`
	AddedFrom           string          `json:"added_from,omitempty"`
	Metadata            json.RawMessage `json:"metadata,omitempty"`
}

// NewCartItem captures the original unit price at creation so later catalog
// price changes remain visible to the customer.
func NewCartItem(cartID, productID uuid.UUID, name string, quantity int, unitPrice float64, currencyCode string) *CartItem {
	now := time.Now()

	item := &CartItem{
		ID:                uuid.New(),
		CartID:            cartID,
		ProductID:         productID,
		ProductName:       name,
		Quantity:          quantity,
		UnitPrice:         unitPrice,
		OriginalUnitPrice: unitPrice,
		Status:            ItemStatusActive,
		CurrencyCode:      currencyCode,
		IsAvailable:       true,
		AddedAt:           now,
		UpdatedAt:         now,
	}
	item.recalculateTotalPrice()

	return item
}

// SetQuantity keeps totalPrice derived; it is never written independently.
func (i *CartItem) SetQuantity(quantity int) {
	i.Quantity = quantity
	i.recalculateTotalPrice()
	i.UpdatedAt = time.Now()
}

// SetUnitPrice updates the current price (not the original one) and refreshes
// the price-change flags.
func (i *CartItem) SetUnitPrice(unitPrice float64) {
	i.UnitPrice = unitPrice
	i.recalculateTotalPrice()
	i.checkPriceChange()
	i.UpdatedAt = time.Now()
}

func (i *CartItem) recalculateTotalPrice() {
	i.TotalPrice = i.UnitPrice * float64(i.Quantity)
}

func (i *CartItem) checkPriceChange() {
	i.PriceChangeAmount = i.UnitPrice - i.OriginalUnitPrice
	i.PriceChanged = i.PriceChangeAmount != 0
}

func (i *CartItem) SaveForLater() {
	now := time.Now()
	i.Status = ItemStatusSavedForLater
	i.SavedForLaterAt = &now
	i.UpdatedAt = now
}

func (i *CartItem) MoveToCart() {
	i.Status = ItemStatusActive
	i.SavedForLaterAt = nil
	i.UpdatedAt = time.Now()
}

// Remove soft-deletes the item; it stays retrievable for audit until the
// maintenance sweep purges it.
func (i *CartItem) Remove() {
	now := time.Now()
	i.Status = ItemStatusRemoved
	i.RemovedAt = &now
	i.UpdatedAt = now
}

func (i *CartItem) IsActive() bool {
	return i.Status == ItemStatusActive
}

func (i *CartItem) IsSavedForLater() bool {
	return i.Status == ItemStatusSavedForLater
}

func (i *CartItem) IsRemoved() bool {
	return i.Status == ItemStatusRemoved
}

func (i *CartItem) HasStockIssue() bool {
	return !i.IsAvailable || (i.StockQuantity != nil && *i.StockQuantity < i.Quantity)
}

func (i *CartItem) MarkValidated() {
	now := time.Now()
	i.LastValidatedAt = &now
}

// Clone produces a copy with a fresh identity for merging into another cart.
func (i *CartItem) Clone(targetCartID uuid.UUID) *CartItem {
	clone := NewCartItem(targetCartID, i.ProductID, i.ProductName, i.Quantity, i.UnitPrice, i.CurrencyCode)
	clone.ProductSKU = i.ProductSKU
	clone.ProductCategory = i.ProductCategory
	clone.ProductDescription = i.ProductDescription
	clone.ProductImageURL = i.ProductImageURL
	clone.PrepTimeMinutes = i.PrepTimeMinutes
	clone.SpecialInstructions = i.SpecialInstructions
	clone.AddedFrom = i.AddedFrom

	return clone
}
