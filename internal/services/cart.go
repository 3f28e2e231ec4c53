package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/bakehouse/cart-service/internal/cache"
	"github.com/bakehouse/cart-service/internal/config"
	appErrors "github.com/bakehouse/cart-service/internal/errors"
	"github.com/bakehouse/cart-service/internal/events"
	"github.com/bakehouse/cart-service/internal/metrics"
	"github.com/bakehouse/cart-service/internal/models"
	repository "github.com/bakehouse/cart-service/internal/repositories"
	"github.com/bakehouse/cart-service/pkg/orderclient"
	"github.com/bakehouse/cart-service/pkg/productclient"
	"github.com/google/uuid"
)

// CartService is the transactional API over the cart aggregate.
type CartService interface {
	CreateCart(ctx context.Context, req *models.CartRequest) (*models.Cart, error)
	GetCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	GetOrCreateCartForUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	GetOrCreateCartForSession(ctx context.Context, sessionID string) (*models.Cart, error)
	ListCartsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Cart, error)
	UpdateCartDetails(ctx context.Context, cartID uuid.UUID, req *models.CartUpdateRequest) (*models.Cart, error)
	AttachUserToCart(ctx context.Context, cartID, userID uuid.UUID) (*models.Cart, error)
	ClearCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	SaveCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	ReactivateCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	DeleteCart(ctx context.Context, cartID uuid.UUID) error
	ValidateCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)

	AddItem(ctx context.Context, cartID uuid.UUID, req *models.AddItemRequest) (*models.Cart, error)
	GetItem(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error)
	UpdateItem(ctx context.Context, cartID, itemID uuid.UUID, req *models.UpdateItemRequest) (*models.Cart, error)
	RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.Cart, error)
	SaveItemForLater(ctx context.Context, cartID, itemID uuid.UUID) (*models.Cart, error)
	MoveItemToCart(ctx context.Context, cartID, itemID uuid.UUID) (*models.Cart, error)

	MergeCarts(ctx context.Context, req *models.MergeCartsRequest) (*models.Cart, error)
	Checkout(ctx context.Context, cartID uuid.UUID, req *models.CheckoutRequest) (*models.CheckoutResult, error)
}

// maxWriteAttempts bounds the optimistic-lock retry loop per operation.
const maxWriteAttempts = 3

type cartService struct {
	repo     repository.CartRepository
	cache    cache.Cache
	products productclient.Client
	orders   orderclient.Client
	producer events.Producer
	cfg      *config.Config
}

func NewCartService(
	repo repository.CartRepository,
	cacheStore cache.Cache,
	products productclient.Client,
	orders orderclient.Client,
	producer events.Producer,
	cfg *config.Config,
) CartService {
	return &cartService{
		repo:     repo,
		cache:    cacheStore,
		products: products,
		orders:   orders,
		producer: producer,
		cfg:      cfg,
	}
}

func (s *cartService) policy() models.ExpirationPolicy {
	return models.ExpirationPolicy{
		UserWindow:  s.cfg.CartExpiration.UserCartWindow,
		GuestWindow: s.cfg.CartExpiration.GuestCartWindow,
	}
}

func (s *cartService) CreateCart(ctx context.Context, req *models.CartRequest) (*models.Cart, error) {
	if req.UserID == nil && req.SessionID == "" {
		return nil, appErrors.BadRequestError("Either user_id or session_id is required")
	}

	cart := models.NewCart(req.UserID, req.SessionID, s.policy())
	cart.CustomerName = req.CustomerName
	cart.CustomerEmail = req.CustomerEmail
	cart.DiscountCode = req.DiscountCode
	cart.SpecialInstructions = req.SpecialInstructions
	cart.DeliveryType = req.DeliveryType
	cart.DeliveryAddress = req.DeliveryAddress
	cart.Source = req.Source
	cart.DeviceType = req.DeviceType
	cart.UserAgent = req.UserAgent
	cart.Metadata = req.Metadata

	if req.CurrencyCode != "" {
		cart.CurrencyCode = req.CurrencyCode
	}

	if err := s.repo.CreateCart(ctx, cart); err != nil {
		return nil, appErrors.DatabaseError("Failed to create cart").WithError(err)
	}

	metrics.CartCreated()
	s.cacheCart(ctx, cart)
	s.publish(ctx, events.CartEvent{
		Type:      events.EventCartCreated,
		CartID:    cart.ID,
		UserID:    cart.UserID,
		SessionID: cart.SessionID,
	})

	return cart, nil
}

// GetCart serves reads cache-first and lazily expires overdue carts. When
// price checking on view is enabled, live catalog data is reconciled into
// the cart best-effort before returning.
func (s *cartService) GetCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	if cart, ok := s.cachedCart(ctx, cartID); ok {
		if !s.needsExpiration(cart) {
			if s.cfg.CartValidation.CheckPriceOnView {
				s.reconcileItems(ctx, cart)
			}

			return cart, nil
		}

		// Cached copies carry no write token, so reload before expiring.
		s.dropCart(ctx, cartID)
	}

	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	if !s.lazyExpire(ctx, cart) && s.cfg.CartValidation.CheckPriceOnView {
		s.reconcileItems(ctx, cart)
	}

	s.cacheCart(ctx, cart)

	return cart, nil
}

func (s *cartService) GetOrCreateCartForUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	lookupKey := cache.Key(cache.UserCartKeyPrefix, userID.String())
	if cart, ok := s.lookedUpCart(ctx, lookupKey); ok {
		return cart, nil
	}

	cart, err := s.repo.FindActiveCartByUser(ctx, userID)
	if err == nil {
		if !s.lazyExpire(ctx, cart) {
			s.cacheLookup(ctx, lookupKey, cart.ID)

			return cart, nil
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.DatabaseError("Failed to look up cart").WithError(err)
	}

	cart, err = s.CreateCart(ctx, &models.CartRequest{UserID: &userID})
	if err != nil {
		return nil, err
	}

	s.cacheLookup(ctx, lookupKey, cart.ID)

	return cart, nil
}

func (s *cartService) GetOrCreateCartForSession(ctx context.Context, sessionID string) (*models.Cart, error) {
	if sessionID == "" {
		return nil, appErrors.BadRequestError("Session ID is required")
	}

	lookupKey := cache.Key(cache.SessionCartKeyPrefix, sessionID)
	if cart, ok := s.lookedUpCart(ctx, lookupKey); ok {
		return cart, nil
	}

	cart, err := s.repo.FindActiveCartBySession(ctx, sessionID)
	if err == nil {
		if !s.lazyExpire(ctx, cart) {
			s.cacheLookup(ctx, lookupKey, cart.ID)

			return cart, nil
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.DatabaseError("Failed to look up cart").WithError(err)
	}

	cart, err = s.CreateCart(ctx, &models.CartRequest{SessionID: sessionID})
	if err != nil {
		return nil, err
	}

	s.cacheLookup(ctx, lookupKey, cart.ID)

	return cart, nil
}

// lookedUpCart resolves a cached owner-to-cart mapping and serves the cart
// through the regular read path. A mapping that points at a cart which is no
// longer ACTIVE is stale and gets dropped.
func (s *cartService) lookedUpCart(ctx context.Context, lookupKey string) (*models.Cart, bool) {
	cartID, ok := s.cachedLookup(ctx, lookupKey)
	if !ok {
		return nil, false
	}

	cart, err := s.GetCart(ctx, cartID)
	if err != nil || cart.Status != models.CartStatusActive {
		s.dropLookup(ctx, lookupKey)

		return nil, false
	}

	return cart, true
}

func (s *cartService) ListCartsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Cart, error) {
	carts, err := s.repo.ListCartsByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to list carts").WithError(err)
	}

	return carts, nil
}

func (s *cartService) UpdateCartDetails(ctx context.Context, cartID uuid.UUID, req *models.CartUpdateRequest) (*models.Cart, error) {
	return s.mutateCart(ctx, cartID, func(cart *models.Cart) error {
		if !cart.IsMutable() {
			return appErrors.CartNotMutableError("Cart is not active")
		}

		if req.CustomerName != nil {
			cart.CustomerName = *req.CustomerName
		}

		if req.CustomerEmail != nil {
			cart.CustomerEmail = *req.CustomerEmail
		}

		if req.DiscountCode != nil {
			cart.DiscountCode = *req.DiscountCode
		}

		if req.SpecialInstructions != nil {
			cart.SpecialInstructions = *req.SpecialInstructions
		}

		if req.DeliveryType != nil {
			cart.DeliveryType = *req.DeliveryType
		}

		if req.DeliveryAddress != nil {
			cart.DeliveryAddress = *req.DeliveryAddress
		}

		if len(req.Metadata) > 0 {
			cart.Metadata = req.Metadata
		}

		cart.UpdateActivity(s.policy())

		return nil
	})
}

func (s *cartService) AttachUserToCart(ctx context.Context, cartID, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.mutateCart(ctx, cartID, func(cart *models.Cart) error {
		if cart.HasUser() && *cart.UserID != userID {
			return appErrors.ForbiddenError("Cart already belongs to another user")
		}

		if !cart.IsMutable() {
			return appErrors.CartNotMutableError("Cart is not active")
		}

		cart.AttachUser(userID, s.policy())

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dropLookup(ctx, cache.Key(cache.SessionCartKeyPrefix, cart.SessionID))

	return cart, nil
}

// ClearCart soft-removes every ACTIVE item but keeps the cart usable.
func (s *cartService) ClearCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	return s.mutateCart(ctx, cartID, func(cart *models.Cart) error {
		if !cart.IsMutable() {
			return appErrors.CartNotMutableError("Cart is not active")
		}

		for _, item := range cart.ActiveItems() {
			item.Remove()
		}

		cart.RecomputeTotals()
		cart.UpdateActivity(s.policy())

		return nil
	})
}

func (s *cartService) SaveCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	cart, err := s.mutateCart(ctx, cartID, func(cart *models.Cart) error {
		if cart.Status != models.CartStatusActive {
			return appErrors.CartNotMutableError("Only active carts can be saved")
		}

		cart.MarkAsSaved(s.policy())

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.CartEvent{Type: events.EventCartSaved, CartID: cart.ID, UserID: cart.UserID})

	return cart, nil
}

func (s *cartService) ReactivateCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	cart, err := s.mutateCart(ctx, cartID, func(cart *models.Cart) error {
		// Only a SAVED cart comes back; reactivating an ACTIVE cart is a
		// harmless no-op.
		switch cart.Status {
		case models.CartStatusSaved:
			cart.Reactivate(s.policy())

			return nil
		case models.CartStatusActive:
			return nil
		default:
			return appErrors.CartNotMutableError("Cart cannot be reactivated from status " + string(cart.Status))
		}
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.CartEvent{Type: events.EventCartReactivated, CartID: cart.ID, UserID: cart.UserID})

	return cart, nil
}

func (s *cartService) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	if err := s.repo.DeleteCart(ctx, cartID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.NotFoundError("Cart not found").WithError(err)
		}

		return appErrors.DatabaseError("Failed to delete cart").WithError(err)
	}

	s.dropCart(ctx, cartID)

	return nil
}

// ValidateCart reconciles live catalog availability and prices into the cart
// and persists the per-item validation columns.
func (s *cartService) ValidateCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	if err := s.validateItems(ctx, cart); err != nil {
		return nil, err
	}

	s.cacheCart(ctx, cart)

	return cart, nil
}

// loadCart fetches from the store and maps the not-found case.
func (s *cartService) loadCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.GetCart(ctx, cartID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFoundError("Cart not found").WithError(err)
		}

		return nil, appErrors.DatabaseError("Failed to fetch cart").WithError(err)
	}

	return cart, nil
}

// mutateCart runs the whole read-mutate-write cycle, retrying on version
// conflicts with a fresh read each attempt. fn sees the latest state and must
// be side-effect free until it returns nil.
func (s *cartService) mutateCart(ctx context.Context, cartID uuid.UUID, fn func(cart *models.Cart) error) (*models.Cart, error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		cart, err := s.loadCart(ctx, cartID)
		if err != nil {
			return nil, err
		}

		s.lazyExpire(ctx, cart)

		if err := fn(cart); err != nil {
			return nil, err
		}

		err = s.repo.UpdateCart(ctx, cart)
		if err == nil {
			s.cacheCart(ctx, cart)

			return cart, nil
		}

		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, appErrors.DatabaseError("Failed to update cart").WithError(err)
		}

		metrics.VersionConflictRetry()
		slog.Debug("Cart version conflict, retrying",
			slog.String("cartId", cartID.String()),
			slog.Int("attempt", attempt),
		)
	}

	return nil, appErrors.ConflictError("Cart was modified concurrently, please retry")
}

func (s *cartService) needsExpiration(cart *models.Cart) bool {
	if cart.Status != models.CartStatusActive && cart.Status != models.CartStatusSaved {
		return false
	}

	return cart.IsExpired(time.Now())
}

// lazyExpire flips an overdue cart to EXPIRED on first touch rather than
// waiting for the sweep. Returns true when the cart is (now) expired.
func (s *cartService) lazyExpire(ctx context.Context, cart *models.Cart) bool {
	if cart.Status == models.CartStatusExpired {
		return true
	}

	if !s.needsExpiration(cart) {
		return false
	}

	cart.MarkAsExpired()

	if err := s.repo.UpdateCart(ctx, cart); err != nil {
		// The sweep will catch it; the caller still sees the expired state.
		slog.Warn("Failed to persist lazy expiration",
			slog.String("cartId", cart.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	s.cacheCart(ctx, cart)
	s.publish(ctx, events.CartEvent{Type: events.EventCartExpired, CartID: cart.ID, UserID: cart.UserID})

	return true
}

func (s *cartService) cacheCart(ctx context.Context, cart *models.Cart) {
	if !s.cfg.Cache.Enabled || s.cache == nil {
		return
	}

	key := cache.Key(cache.CartKeyPrefix, cart.ID.String())
	if err := s.cache.Set(ctx, key, cart, 0); err != nil {
		slog.Warn("Failed to cache cart", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (s *cartService) cachedCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, bool) {
	if !s.cfg.Cache.Enabled || s.cache == nil {
		return nil, false
	}

	var cart models.Cart

	key := cache.Key(cache.CartKeyPrefix, cartID.String())

	found, err := s.cache.Get(ctx, key, &cart)
	if err != nil {
		slog.Warn("Cart cache lookup failed", slog.String("key", key), slog.String("error", err.Error()))

		return nil, false
	}

	if !found {
		return nil, false
	}

	return &cart, true
}

// cacheLookup stores an owner-to-cart-id mapping so get-or-create can skip
// the store on repeat visits.
func (s *cartService) cacheLookup(ctx context.Context, key string, cartID uuid.UUID) {
	if !s.cfg.Cache.Enabled || s.cache == nil {
		return
	}

	if err := s.cache.Set(ctx, key, cartID.String(), 0); err != nil {
		slog.Warn("Failed to cache cart lookup", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (s *cartService) cachedLookup(ctx context.Context, key string) (uuid.UUID, bool) {
	if !s.cfg.Cache.Enabled || s.cache == nil {
		return uuid.Nil, false
	}

	var raw string

	found, err := s.cache.Get(ctx, key, &raw)
	if err != nil {
		slog.Warn("Cart lookup cache failed", slog.String("key", key), slog.String("error", err.Error()))

		return uuid.Nil, false
	}

	if !found {
		return uuid.Nil, false
	}

	cartID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}

	return cartID, true
}

func (s *cartService) dropCart(ctx context.Context, cartID uuid.UUID) {
	s.dropLookup(ctx, cache.Key(cache.CartKeyPrefix, cartID.String()))
}

func (s *cartService) dropLookup(ctx context.Context, key string) {
	if !s.cfg.Cache.Enabled || s.cache == nil {
		return
	}

	if err := s.cache.Delete(ctx, key); err != nil {
		slog.Warn("Failed to drop cache key", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// publish emits a lifecycle event best-effort; cart state is never held
// hostage to the broker.
func (s *cartService) publish(ctx context.Context, event events.CartEvent) {
	if err := s.producer.Publish(ctx, event); err != nil {
		slog.Warn("Failed to publish cart event",
			slog.String("type", string(event.Type)),
			slog.String("cartId", event.CartID.String()),
			slog.String("error", err.Error()),
		)
	}
}
