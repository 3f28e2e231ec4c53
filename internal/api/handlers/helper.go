package handlers

import (
	"github.com/bakehouse/cart-service/internal/models"
	"github.com/microcosm-cc/bluemonday"
)

// canAccessCart decides whether the caller may touch this cart. Admins see
// everything; users see their own carts; guests must present the session id
// the cart was created under. A user-owned cart is never reachable by
// session id alone.
func canAccessCart(claims *models.Claims, sessionID string, cart *models.Cart) bool {
	if claims != nil && claims.Role == models.RoleAdmin {
		return true
	}

	if cart.HasUser() {
		return claims != nil && claims.UserID == *cart.UserID
	}

	return cart.SessionID != "" && cart.SessionID == sessionID
}

// sanitizeCartRequest strips markup from free-text fields before they reach
// storage. Structured fields are covered by validator tags.
func sanitizeCartRequest(p *bluemonday.Policy, req *models.CartRequest) {
	req.CustomerName = p.Sanitize(req.CustomerName)
	req.SpecialInstructions = p.Sanitize(req.SpecialInstructions)
	req.DeliveryAddress = p.Sanitize(req.DeliveryAddress)
}

func sanitizeCartUpdateRequest(p *bluemonday.Policy, req *models.CartUpdateRequest) {
	if req.CustomerName != nil {
		clean := p.Sanitize(*req.CustomerName)
		req.CustomerName = &clean
	}

	if req.SpecialInstructions != nil {
		clean := p.Sanitize(*req.SpecialInstructions)
		req.SpecialInstructions = &clean
	}

	if req.DeliveryAddress != nil {
		clean := p.Sanitize(*req.DeliveryAddress)
		req.DeliveryAddress = &clean
	}
}

func sanitizeAddItemRequest(p *bluemonday.Policy, req *models.AddItemRequest) {
	req.SpecialInstructions = p.Sanitize(req.SpecialInstructions)
}

func sanitizeUpdateItemRequest(p *bluemonday.Policy, req *models.UpdateItemRequest) {
	if req.SpecialInstructions != nil {
		clean := p.Sanitize(*req.SpecialInstructions)
		req.SpecialInstructions = &clean
	}
}

func sanitizeCheckoutRequest(p *bluemonday.Policy, req *models.CheckoutRequest) {
	req.CustomerName = p.Sanitize(req.CustomerName)
	req.SpecialInstructions = p.Sanitize(req.SpecialInstructions)
	req.DeliveryAddress = p.Sanitize(req.DeliveryAddress)
	req.PaymentNotes = p.Sanitize(req.PaymentNotes)
}
