package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the catalog snapshot used when an item is added to a cart.
type Product struct {
	ID              uuid.UUID `json:"id"`
	SKU             string    `json:"sku"`
	Name            string    `json:"name"`
	Category        string    `json:"category"`
	Description     string    `json:"description"`
	EffectivePrice  float64   `json:"effective_price"`
	ImageURL        string    `json:"primary_image_url"`
	PrepTimeMinutes int       `json:"preparation_time_minutes"`
}

type StockInfo struct {
	Sufficient    bool `json:"sufficient"`
	StockQuantity int  `json:"stock_quantity"`
}

// ProductValidation is one entry of a batch validation result, aligned by
// input order with the requested product ids.
type ProductValidation struct {
	ProductID     uuid.UUID `json:"product_id"`
	Available     bool      `json:"available"`
	StockQuantity int       `json:"stock_quantity"`
	CurrentPrice  float64   `json:"current_price"`
}

// OrderSubmission is the payload handed to the order service at checkout.
type OrderSubmission struct {
	UserID                *uuid.UUID  `json:"user_id,omitempty"`
	CustomerName          string      `json:"customer_name"`
	CustomerEmail         string      `json:"customer_email"`
	CustomerPhone         string      `json:"customer_phone,omitempty"`
	DeliveryType          string      `json:"delivery_type"`
	DeliveryAddress       string      `json:"delivery_address,omitempty"`
	DeliveryDate          *time.Time  `json:"delivery_date,omitempty"`
	SpecialInstructions   string      `json:"special_instructions,omitempty"`
	DiscountCode          string      `json:"discount_code,omitempty"`
	PaymentMethod         string      `json:"payment_method"`
	PaymentAmount         float64     `json:"payment_amount"`
	CurrencyCode          string      `json:"currency_code"`
	CardLastFour          string      `json:"card_last_four,omitempty"`
	CardBrand             string      `json:"card_brand,omitempty"`
	CardType              string      `json:"card_type,omitempty"`
	DigitalWalletProvider string      `json:"digital_wallet_provider,omitempty"`
	BankName              string      `json:"bank_name,omitempty"`
	PaymentNotes          string      `json:"payment_notes,omitempty"`
	Items                 []OrderLine `json:"items"`
}

// OrderLine mirrors one ACTIVE cart item in the order submission.
type OrderLine struct {
	ProductID           uuid.UUID `json:"product_id"`
	Quantity            int       `json:"quantity"`
	UnitPriceOverride   float64   `json:"unit_price_override"`
	SpecialInstructions string    `json:"special_instructions,omitempty"`
}

// OrderRef is the order service's acknowledgement of a created order.
type OrderRef struct {
	ID          uuid.UUID `json:"id"`
	OrderNumber string    `json:"order_number,omitempty"`
	Status      string    `json:"status,omitempty"`
	TotalAmount float64   `json:"total_amount,omitempty"`
}

// CheckoutResult pairs the converted cart with the created order reference.
type CheckoutResult struct {
	Cart  *Cart     `json:"cart"`
	Order *OrderRef `json:"order"`
}
