package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CartRequest creates (or revives) a cart. Exactly one of UserID/SessionID
// must identify the owner.
type CartRequest struct {
	UserID              *uuid.UUID      `json:"user_id,omitempty"`
	SessionID           string          `json:"session_id,omitempty" validate:"max=255"`
	CustomerName        string          `json:"customer_name,omitempty" validate:"max=100"`
	CustomerEmail       string          `json:"customer_email,omitempty" validate:"omitempty,email,max=255"`
	CurrencyCode        string          `json:"currency_code,omitempty" validate:"omitempty,len=3"`
	DiscountCode        string          `json:"discount_code,omitempty" validate:"max=50"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	DeliveryType        string          `json:"delivery_type,omitempty" validate:"omitempty,oneof=PICKUP DELIVERY"`
	DeliveryAddress     string          `json:"delivery_address,omitempty"`
	Source              string          `json:"source,omitempty" validate:"max=50"`
	DeviceType          string          `json:"device_type,omitempty" validate:"max=20"`
	UserAgent           string          `json:"user_agent,omitempty"`
	Metadata            json.RawMessage `json:"metadata,omitempty"`
}

// CartUpdateRequest patches cart-level details; nil/empty fields are left
// untouched.
type CartUpdateRequest struct {
	CustomerName        *string         `json:"customer_name,omitempty" validate:"omitempty,max=100"`
	CustomerEmail       *string         `json:"customer_email,omitempty" validate:"omitempty,email,max=255"`
	DiscountCode        *string         `json:"discount_code,omitempty" validate:"omitempty,max=50"`
	SpecialInstructions *string         `json:"special_instructions,omitempty"`
	DeliveryType        *string         `json:"delivery_type,omitempty" validate:"omitempty,oneof=PICKUP DELIVERY"`
	DeliveryAddress     *string         `json:"delivery_address,omitempty"`
	Metadata            json.RawMessage `json:"metadata,omitempty"`
}

type AddItemRequest struct {
	ProductID           uuid.UUID       `json:"product_id" validate:"required"`
	Quantity            int             `json:"quantity" validate:"required,min=1"`
	UnitPriceOverride   *float64        `json:"unit_price_override,omitempty" validate:"omitempty,min=0"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	AddedFrom           string          `json:"added_from,omitempty" validate:"max=50"`
	Metadata            json.RawMessage `json:"metadata,omitempty"`
}

type UpdateItemRequest struct {
	Quantity            int             `json:"quantity" validate:"required,min=1"`
	SpecialInstructions *string         `json:"special_instructions,omitempty"`
	Metadata            json.RawMessage `json:"metadata,omitempty"`
}

type MergeCartsRequest struct {
	SourceCartID     uuid.UUID `json:"source_cart_id" validate:"required"`
	TargetCartID     uuid.UUID `json:"target_cart_id" validate:"required"`
	HandleDuplicates bool      `json:"handle_duplicates"`
	DeleteSourceCart bool      `json:"delete_source_cart"`
}

// EmailNotificationRequest is the payload for outbound transactional email,
// such as abandoned-cart reminders.
type EmailNotificationRequest struct {
	To          string `json:"to" validate:"required,email"`
	Subject     string `json:"subject" validate:"required"`
	Content     string `json:"content" validate:"required"`
	HTMLContent string `json:"html_content,omitempty"`
}

type CheckoutRequest struct {
	CustomerName          string          `json:"customer_name" validate:"required,max=100"`
	CustomerEmail         string          `json:"customer_email" validate:"required,email,max=255"`
	CustomerPhone         string          `json:"customer_phone,omitempty" validate:"max=20"`
	DeliveryType          string          `json:"delivery_type" validate:"required,oneof=PICKUP DELIVERY"`
	DeliveryAddress       string          `json:"delivery_address,omitempty"`
	DeliveryDate          *time.Time      `json:"delivery_date,omitempty"`
	SpecialInstructions   string          `json:"special_instructions,omitempty"`
	DiscountCode          string          `json:"discount_code,omitempty" validate:"max=50"`
	PaymentMethod         string          `json:"payment_method" validate:"required,oneof=CASH CARD DIGITAL_WALLET"`
	CardLastFour          string          `json:"card_last_four,omitempty" validate:"omitempty,len=4"`
	CardBrand             string          `json:"card_brand,omitempty"`
	CardType              string          `json:"card_type,omitempty"`
	DigitalWalletProvider string          `json:"digital_wallet_provider,omitempty"`
	BankName              string          `json:"bank_name,omitempty"`
	PaymentNotes          string          `json:"payment_notes,omitempty"`
	Metadata              json.RawMessage `json:"metadata,omitempty"`
}
