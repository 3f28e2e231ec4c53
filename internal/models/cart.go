package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type CartStatus string

const (
	CartStatusActive    CartStatus = "ACTIVE"
	CartStatusSaved     CartStatus = "SAVED"
	CartStatusAbandoned CartStatus = "ABANDONED"
	CartStatusConverted CartStatus = "CONVERTED"
	CartStatusExpired   CartStatus = "EXPIRED"
)

// ExpirationPolicy controls how far expiresAt is pushed out on activity.
// Carts attached to a known user live much longer than guest carts.
type ExpirationPolicy struct {
	UserWindow  time.Duration
	GuestWindow time.Duration
}

var DefaultExpirationPolicy = ExpirationPolicy{
	UserWindow:  30 * 24 * time.Hour,
	GuestWindow: 24 * time.Hour,
}

// Cart is the aggregate root. Items are only ever modified through the cart
// so totals, counters and status stay consistent as a unit.
type Cart struct {
	ID                  uuid.UUID       `json:"id"`
	UserID              *uuid.UUID      `json:"user_id,omitempty"`
	SessionID           string          `json:"session_id,omitempty"`
	Status              CartStatus      `json:"status"`
	CustomerName        string          `json:"customer_name,omitempty"`
	CustomerEmail       string          `json:"customer_email,omitempty"`
	Subtotal            float64         `json:"subtotal"`
	TaxAmount           float64         `json:"tax_amount"`
	DiscountAmount      float64         `json:"discount_amount"`
	TotalAmount         float64         `json:"total_amount"`
	ItemCount           int             `json:"item_count"`
	TotalQuantity       int             `json:"total_quantity"`
	CurrencyCode        string          `json:"currency_code"`
	DiscountCode        string          `json:"discount_code,omitempty"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	DeliveryType        string          `json:"delivery_type,omitempty"`
	DeliveryAddress     string          `json:"delivery_address,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	ExpiresAt           time.Time       `json:"expires_at"`
	LastActivityAt      time.Time       `json:"last_activity_at"`
	AbandonedAt         *time.Time      `json:"abandoned_at,omitempty"`
	ConvertedAt         *time.Time      `json:"converted_at,omitempty"`
	ConvertedOrderID    *uuid.UUID      `json:"converted_order_id,omitempty"`
	Items               []*CartItem     `json:"items"`
	Metadata            json.RawMessage `json:"metadata,omitempty"`
	Source              string          `json:"source,omitempty"`
	DeviceType          string          `json:"device_type,omitempty"`
	UserAgent           string          `json:"user_agent,omitempty"`

	// Version backs optimistic locking in the store; bumped on every write.
	Version int64 `json:"-"`
}

// NewCart creates an ACTIVE cart owned by either a user or a guest session.
func NewCart(userID *uuid.UUID, sessionID string, policy ExpirationPolicy) *Cart {
	now := time.Now()

	cart := &Cart{
		ID:             uuid.New(),
		UserID:         userID,
		SessionID:      sessionID,
		Status:         CartStatusActive,
		CurrencyCode:   "USD",
		CreatedAt:      now,
		UpdatedAt:      now,
		LastActivityAt: now,
		Version:        1,
	}
	cart.refreshExpiration(policy)

	return cart
}

func (c *Cart) IsGuest() bool {
	return c.UserID == nil
}

func (c *Cart) HasUser() bool {
	return c.UserID != nil
}

// AttachUser binds a guest cart to a user after login. The user id is never
// cleared once set; attaching immediately extends the expiration window.
func (c *Cart) AttachUser(userID uuid.UUID, policy ExpirationPolicy) {
	if c.UserID != nil {
		return
	}
	c.UserID = &userID
	c.UpdateActivity(policy)
}

// UpdateActivity refreshes lastActivityAt and pushes expiresAt out using the
// window for the cart's current ownership mode.
func (c *Cart) UpdateActivity(policy ExpirationPolicy) {
	c.LastActivityAt = time.Now()
	c.refreshExpiration(policy)
}

func (c *Cart) refreshExpiration(policy ExpirationPolicy) {
	window := policy.GuestWindow
	if c.HasUser() {
		window = policy.UserWindow
	}
	c.ExpiresAt = time.Now().Add(window)
}

// RecomputeTotals re-derives all aggregate counters from the item set. It
// must run after every structural or quantity/price change to any item.
func (c *Cart) RecomputeTotals() {
	t := ComputeTotals(c.Items, c.DiscountAmount)
	c.Subtotal = t.Subtotal
	c.TaxAmount = t.TaxAmount
	c.TotalAmount = t.TotalAmount
	c.ItemCount = t.ItemCount
	c.TotalQuantity = t.TotalQuantity
	c.UpdatedAt = time.Now()
}

func (c *Cart) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// IsEmpty reports whether the cart has no ACTIVE items.
func (c *Cart) IsEmpty() bool {
	for _, item := range c.Items {
		if item.IsActive() {
			return false
		}
	}

	return true
}

// IsMutable reports whether item mutation is still allowed. Terminal states
// reject mutation; SAVED carts must be reactivated first.
func (c *Cart) IsMutable() bool {
	return c.Status == CartStatusActive
}

func (c *Cart) MarkAsAbandoned() {
	now := time.Now()
	c.Status = CartStatusAbandoned
	c.AbandonedAt = &now
	c.UpdatedAt = now
}

// MarkAsConverted is the irreversible checkout transition. It must only be
// called after the order gateway confirmed order creation.
func (c *Cart) MarkAsConverted(orderID uuid.UUID) {
	now := time.Now()
	c.Status = CartStatusConverted
	c.ConvertedAt = &now
	c.ConvertedOrderID = &orderID
	c.UpdatedAt = now
}

func (c *Cart) MarkAsExpired() {
	c.Status = CartStatusExpired
	c.UpdatedAt = time.Now()
}

func (c *Cart) MarkAsSaved(policy ExpirationPolicy) {
	c.Status = CartStatusSaved
	c.UpdateActivity(policy)
}

func (c *Cart) Reactivate(policy ExpirationPolicy) {
	c.Status = CartStatusActive
	c.UpdateActivity(policy)
}

// AddItem appends an item and rolls the aggregate forward.
func (c *Cart) AddItem(item *CartItem, policy ExpirationPolicy) {
	item.CartID = c.ID
	c.Items = append(c.Items, item)
	c.RecomputeTotals()
	c.UpdateActivity(policy)
}

// FindActiveItem returns the single ACTIVE line for a product, if any. At
// most one ACTIVE item per product may exist in a cart.
func (c *Cart) FindActiveItem(productID uuid.UUID) *CartItem {
	for _, item := range c.Items {
		if item.ProductID == productID && item.IsActive() {
			return item
		}
	}

	return nil
}

func (c *Cart) FindItem(itemID uuid.UUID) *CartItem {
	for _, item := range c.Items {
		if item.ID == itemID {
			return item
		}
	}

	return nil
}

func (c *Cart) ActiveItems() []*CartItem {
	var active []*CartItem

	for _, item := range c.Items {
		if item.IsActive() {
			active = append(active, item)
		}
	}

	return active
}

func (c *Cart) SavedItems() []*CartItem {
	var saved []*CartItem

	for _, item := range c.Items {
		if item.IsSavedForLater() {
			saved = append(saved, item)
		}
	}

	return saved
}
