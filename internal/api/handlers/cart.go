package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/bakehouse/cart-service/internal/api/middleware"
	"github.com/bakehouse/cart-service/internal/errors"
	"github.com/bakehouse/cart-service/internal/models"
	service "github.com/bakehouse/cart-service/internal/services"
	"github.com/bakehouse/cart-service/internal/utils"
	"github.com/bakehouse/cart-service/internal/utils/response"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

type CartHandler struct {
	cartService service.CartService
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
}

func NewCartHandler(cartService service.CartService) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		validator:   validator.New(),
		sanitizer:   bluemonday.StrictPolicy(),
	}
}

// authorizeCart loads the cart and enforces the ownership rules. It writes
// the error response itself; callers bail out on false.
func (h *CartHandler) authorizeCart(w http.ResponseWriter, r *http.Request, cartID uuid.UUID) (*models.Cart, bool) {
	logger := middleware.LoggerFromContext(r.Context())

	cart, err := h.cartService.GetCart(r.Context(), cartID)
	if err != nil {
		logger.Warn("Failed to load cart", slog.String("cartId", cartID.String()), slog.Any("error", err))
		response.Error(w, err)

		return nil, false
	}

	claims, _ := middleware.ClaimsFromContext(r.Context())
	if !canAccessCart(claims, r.Header.Get("X-Session-ID"), cart) {
		logger.Warn("Cart access denied", slog.String("cartId", cartID.String()))
		response.Error(w, errors.ForbiddenError("You don't have permission to access this cart"))

		return nil, false
	}

	return cart, true
}

func (h *CartHandler) CreateCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		var req models.CartRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid create cart input")

			return
		}

		// An authenticated caller always owns the cart they create; guests
		// fall back to the session header when the body names no session.
		if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
			req.UserID = &claims.UserID
		} else if req.SessionID == "" {
			req.SessionID = r.Header.Get("X-Session-ID")
		}

		sanitizeCartRequest(h.sanitizer, &req)

		cart, err := h.cartService.CreateCart(r.Context(), &req)
		if err != nil {
			logger.Error("Failed to create cart", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		logger.Info("Cart created", slog.String("cartId", cart.ID.String()))
		response.Success(w, http.StatusCreated, cart)
	}
}

func (h *CartHandler) GetCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := utils.ParseID(r, "id")
		if err != nil {
			response.Error(w, err)

			return
		}

		cart, ok := h.authorizeCart(w, r, id)
		if !ok {
			return
		}

		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) GetUserCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, errors.UnauthorizedError("Authentication required"))

			return
		}

		userID, err := utils.ParseID(r, "userId")
		if err != nil {
			response.Error(w, err)

			return
		}

		if claims.UserID != userID && claims.Role != models.RoleAdmin {
			logger.Warn("Attempted to access another user's cart", slog.String("targetUserId", userID.String()))
			response.Error(w, errors.ForbiddenError("You don't have permission to access this cart"))

			return
		}

		cart, err := h.cartService.GetOrCreateCartForUser(r.Context(), userID)
		if err != nil {
			logger.Error("Failed to get or create user cart", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) GetSessionCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		sessionID := r.PathValue("sessionId")
		if sessionID == "" {
			response.Error(w, errors.BadRequestError("Session ID is required"))

			return
		}

		cart, err := h.cartService.GetOrCreateCartForSession(r.Context(), sessionID)
		if err != nil {
			logger.Error("Failed to get or create session cart", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) ListUserCarts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, errors.UnauthorizedError("Authentication required"))

			return
		}

		userID, err := utils.ParseID(r, "userId")
		if err != nil {
			response.Error(w, err)

			return
		}

		if claims.UserID != userID && claims.Role != models.RoleAdmin {
			response.Error(w, errors.ForbiddenError("You don't have permission to list these carts"))

			return
		}

		carts, err := h.cartService.ListCartsByUser(r.Context(), userID)
		if err != nil {
			logger.Error("Failed to list carts", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, carts)
	}
}

func (h *CartHandler) UpdateCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		id, err := utils.ParseID(r, "id")
		if err != nil {
			response.Error(w, err)

			return
		}

		if _, ok := h.authorizeCart(w, r, id); !ok {
			return
		}

		var req models.CartUpdateRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid update cart input")

			return
		}

		sanitizeCartUpdateRequest(h.sanitizer, &req)

		cart, err := h.cartService.UpdateCartDetails(r.Context(), id, &req)
		if err != nil {
			logger.Error("Failed to update cart", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) DeleteCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		id, err := utils.ParseID(r, "id")
		if err != nil {
			response.Error(w, err)

			return
		}

		if _, ok := h.authorizeCart(w, r, id); !ok {
			return
		}

		if err := h.cartService.DeleteCart(r.Context(), id); err != nil {
			logger.Error("Failed to delete cart", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		logger.Info("Cart deleted", slog.String("cartId", id.String()))
		response.Success(w, http.StatusOK, nil)
	}
}

func (h *CartHandler) ClearCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		id, err := utils.ParseID(r, "id")
		if err != nil {
			response.Error(w, err)

			return
		}

		if _, ok := h.authorizeCart(w, r, id); !ok {
			return
		}

		cart, err := h.cartService.ClearCart(r.Context(), id)
		if err != nil {
			logger.Error("Failed to clear cart", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) SaveCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.transition(w, r, h.cartService.SaveCart)
	}
}

func (h *CartHandler) ReactivateCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.transition(w, r, h.cartService.ReactivateCart)
	}
}

func (h *CartHandler) ValidateCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.transition(w, r, h.cartService.ValidateCart)
	}
}

// transition handles the bodyless POST lifecycle endpoints, which differ
// only in the service call.
func (h *CartHandler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, uuid.UUID) (*models.Cart, error)) {
	logger := middleware.LoggerFromContext(r.Context())

	id, err := utils.ParseID(r, "id")
	if err != nil {
		response.Error(w, err)

		return
	}

	if _, ok := h.authorizeCart(w, r, id); !ok {
		return
	}

	cart, err := op(r.Context(), id)
	if err != nil {
		logger.Error("Cart transition failed", slog.String("cartId", id.String()), slog.Any("error", err))
		response.Error(w, err)

		return
	}

	response.Success(w, http.StatusOK, cart)
}

func (h *CartHandler) AttachUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, errors.UnauthorizedError("Authentication required"))

			return
		}

		id, err := utils.ParseID(r, "id")
		if err != nil {
			response.Error(w, err)

			return
		}

		if _, ok := h.authorizeCart(w, r, id); !ok {
			return
		}

		cart, err := h.cartService.AttachUserToCart(r.Context(), id, claims.UserID)
		if err != nil {
			logger.Error("Failed to attach user to cart", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		logger.Info("User attached to cart", slog.String("cartId", id.String()))
		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) MergeCarts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		var req models.MergeCartsRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid merge carts input")

			return
		}

		// The caller must be allowed to touch both sides of the merge.
		if _, ok := h.authorizeCart(w, r, req.SourceCartID); !ok {
			return
		}

		if _, ok := h.authorizeCart(w, r, req.TargetCartID); !ok {
			return
		}

		cart, err := h.cartService.MergeCarts(r.Context(), &req)
		if err != nil {
			logger.Error("Failed to merge carts", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		logger.Info("Carts merged",
			slog.String("sourceCartId", req.SourceCartID.String()),
			slog.String("targetCartId", req.TargetCartID.String()),
		)
		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) Checkout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		id, err := utils.ParseID(r, "id")
		if err != nil {
			response.Error(w, err)

			return
		}

		if _, ok := h.authorizeCart(w, r, id); !ok {
			return
		}

		var req models.CheckoutRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid checkout input")

			return
		}

		sanitizeCheckoutRequest(h.sanitizer, &req)

		result, err := h.cartService.Checkout(r.Context(), id, &req)
		if err != nil {
			logger.Error("Checkout failed", slog.String("cartId", id.String()), slog.Any("error", err))
			response.Error(w, err)

			return
		}

		logger.Info("Checkout completed",
			slog.String("cartId", id.String()),
			slog.String("orderId", result.Order.ID.String()),
		)
		response.Success(w, http.StatusCreated, result)
	}
}
