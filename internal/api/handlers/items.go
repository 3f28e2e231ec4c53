package handlers

import (
	"log/slog"
	"net/http"

	"github.com/bakehouse/cart-service/internal/api/middleware"
	"github.com/bakehouse/cart-service/internal/models"
	"github.com/bakehouse/cart-service/internal/utils"
	"github.com/bakehouse/cart-service/internal/utils/response"
	"github.com/google/uuid"
)

func (h *CartHandler) AddItem() http.HandlerFunc {
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

		var req models.AddItemRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid add item input")

			return
		}

		sanitizeAddItemRequest(h.sanitizer, &req)

		cart, err := h.cartService.AddItem(r.Context(), id, &req)
		if err != nil {
			logger.Error("Failed to add item",
				slog.String("cartId", id.String()),
				slog.String("productId", req.ProductID.String()),
				slog.Any("error", err),
			)
			response.Error(w, err)

			return
		}

		logger.Info("Item added to cart",
			slog.String("cartId", id.String()),
			slog.String("productId", req.ProductID.String()),
		)
		response.Success(w, http.StatusCreated, cart)
	}
}

func (h *CartHandler) UpdateItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		cartID, itemID, ok := h.parseItemPath(w, r)
		if !ok {
			return
		}

		if _, ok := h.authorizeCart(w, r, cartID); !ok {
			return
		}

		var req models.UpdateItemRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid update item input")

			return
		}

		sanitizeUpdateItemRequest(h.sanitizer, &req)

		cart, err := h.cartService.UpdateItem(r.Context(), cartID, itemID, &req)
		if err != nil {
			logger.Error("Failed to update item", slog.String("itemId", itemID.String()), slog.Any("error", err))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) RemoveItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		cartID, itemID, ok := h.parseItemPath(w, r)
		if !ok {
			return
		}

		if _, ok := h.authorizeCart(w, r, cartID); !ok {
			return
		}

		cart, err := h.cartService.RemoveItem(r.Context(), cartID, itemID)
		if err != nil {
			logger.Error("Failed to remove item", slog.String("itemId", itemID.String()), slog.Any("error", err))
			response.Error(w, err)

			return
		}

		logger.Info("Item removed from cart", slog.String("itemId", itemID.String()))
		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) ListItems() http.HandlerFunc {
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

		response.Success(w, http.StatusOK, cart.ActiveItems())
	}
}

func (h *CartHandler) ListSavedItems() http.HandlerFunc {
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

		response.Success(w, http.StatusOK, cart.SavedItems())
	}
}

// GetItem serves a single line by id, REMOVED ones included; the line's cart
// still gates access.
func (h *CartHandler) GetItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, ok := h.authorizeItem(w, r)
		if !ok {
			return
		}

		response.Success(w, http.StatusOK, item)
	}
}

func (h *CartHandler) SaveItemForLater() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		item, ok := h.authorizeItem(w, r)
		if !ok {
			return
		}

		cart, err := h.cartService.SaveItemForLater(r.Context(), item.CartID, item.ID)
		if err != nil {
			logger.Error("Failed to save item for later", slog.String("itemId", item.ID.String()), slog.Any("error", err))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) MoveItemToCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		item, ok := h.authorizeItem(w, r)
		if !ok {
			return
		}

		cart, err := h.cartService.MoveItemToCart(r.Context(), item.CartID, item.ID)
		if err != nil {
			logger.Error("Failed to move item to cart", slog.String("itemId", item.ID.String()), slog.Any("error", err))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) parseItemPath(w http.ResponseWriter, r *http.Request) (cartID, itemID uuid.UUID, ok bool) {
	cartID, err := utils.ParseID(r, "id")
	if err != nil {
		response.Error(w, err)

		return uuid.Nil, uuid.Nil, false
	}

	itemID, err = utils.ParseID(r, "itemId")
	if err != nil {
		response.Error(w, err)

		return uuid.Nil, uuid.Nil, false
	}

	return cartID, itemID, true
}

// authorizeItem resolves an item-only route to its cart and runs the cart
// access check.
func (h *CartHandler) authorizeItem(w http.ResponseWriter, r *http.Request) (*models.CartItem, bool) {
	itemID, err := utils.ParseID(r, "itemId")
	if err != nil {
		response.Error(w, err)

		return nil, false
	}

	item, err := h.cartService.GetItem(r.Context(), itemID)
	if err != nil {
		response.Error(w, err)

		return nil, false
	}

	if _, ok := h.authorizeCart(w, r, item.CartID); !ok {
		return nil, false
	}

	return item, true
}
