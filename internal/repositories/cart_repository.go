package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bakehouse/cart-service/internal/models"
	"github.com/bakehouse/cart-service/internal/utils"
	"github.com/google/uuid"
)

// ErrVersionConflict signals that the cart row changed between read and
// write. Callers reload the aggregate and retry.
var ErrVersionConflict = errors.New("cart version conflict")

type CartRepository interface {
	CreateCart(ctx context.Context, cart *models.Cart) error
	GetCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	FindActiveCartByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	FindActiveCartBySession(ctx context.Context, sessionID string) (*models.Cart, error)
	ListCartsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Cart, error)
	ListCartsByStatus(ctx context.Context, status models.CartStatus) ([]*models.Cart, error)
	UpdateCart(ctx context.Context, cart *models.Cart) error
	DeleteCart(ctx context.Context, cartID uuid.UUID) error
	GetItem(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error)
	UpdateItemValidation(ctx context.Context, item *models.CartItem) error

	// Maintenance sweep queries.
	MarkExpiredCarts(ctx context.Context, now time.Time) (int64, error)
	MarkAbandonedCarts(ctx context.Context, now, cutoff time.Time) (int64, error)
	DeleteTerminalCartsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteEmptyCartsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeRemovedItemsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	FindAbandonedCartsSince(ctx context.Context, since time.Time) ([]*models.Cart, error)
}

type cartRepository struct {
	DB *sql.DB
}

func NewCartRepo(db *sql.DB) CartRepository {
	return &cartRepository{DB: db}
}

const cartColumns = `id, user_id, session_id, status, customer_name, customer_email,
	subtotal, tax_amount, discount_amount, total_amount, item_count, total_quantity,
	currency_code, discount_code, special_instructions, delivery_type, delivery_address,
	created_at, updated_at, expires_at, last_activity_at, abandoned_at, converted_at,
	converted_order_id, metadata, source, device_type, user_agent, version`

const itemColumns = `id, cart_id, product_id, product_sku, product_name, product_category,
	product_description, product_image_url, prep_time_minutes, quantity, unit_price,
	total_price, original_unit_price, status, currency_code, special_instructions,
	is_available, stock_quantity, availability_message, price_changed, price_change_amount,
	added_at, updated_at, last_validated_at, saved_for_later_at, removed_at, added_from, metadata`

func (r *cartRepository) CreateCart(ctx context.Context, cart *models.Cart) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO carts (` + cartColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)
	`

	_, err := r.DB.ExecContext(dbCtx, query,
		cart.ID, cart.UserID, nullString(cart.SessionID), cart.Status,
		cart.CustomerName, cart.CustomerEmail,
		cart.Subtotal, cart.TaxAmount, cart.DiscountAmount, cart.TotalAmount,
		cart.ItemCount, cart.TotalQuantity,
		cart.CurrencyCode, cart.DiscountCode, cart.SpecialInstructions,
		cart.DeliveryType, cart.DeliveryAddress,
		cart.CreatedAt, cart.UpdatedAt, cart.ExpiresAt, cart.LastActivityAt,
		cart.AbandonedAt, cart.ConvertedAt, cart.ConvertedOrderID,
		nullBytes(cart.Metadata), cart.Source, cart.DeviceType, cart.UserAgent,
		cart.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to insert cart: %w", err)
	}

	for _, item := range cart.Items {
		if err := r.upsertItem(dbCtx, r.DB, item); err != nil {
			return err
		}
	}

	return nil
}

func (r *cartRepository) GetCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `SELECT ` + cartColumns + ` FROM carts WHERE id = $1`

	cart, err := r.scanCart(r.DB.QueryRowContext(dbCtx, query, cartID))
	if err != nil {
		return nil, err
	}

	if err := r.loadItems(dbCtx, cart); err != nil {
		return nil, err
	}

	return cart, nil
}

func (r *cartRepository) FindActiveCartByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts
		WHERE user_id = $1 AND status = 'ACTIVE'
		ORDER BY last_activity_at DESC LIMIT 1`

	return r.findOne(ctx, query, userID)
}

func (r *cartRepository) FindActiveCartBySession(ctx context.Context, sessionID string) (*models.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts
		WHERE session_id = $1 AND status = 'ACTIVE'
		ORDER BY last_activity_at DESC LIMIT 1`

	return r.findOne(ctx, query, sessionID)
}

func (r *cartRepository) findOne(ctx context.Context, query string, arg any) (*models.Cart, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	cart, err := r.scanCart(r.DB.QueryRowContext(dbCtx, query, arg))
	if err != nil {
		return nil, err
	}

	if err := r.loadItems(dbCtx, cart); err != nil {
		return nil, err
	}

	return cart, nil
}

func (r *cartRepository) ListCartsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts WHERE user_id = $1 ORDER BY created_at DESC`

	return r.list(ctx, query, userID)
}

func (r *cartRepository) ListCartsByStatus(ctx context.Context, status models.CartStatus) ([]*models.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts WHERE status = $1 ORDER BY updated_at DESC`

	return r.list(ctx, query, status)
}

func (r *cartRepository) list(ctx context.Context, query string, arg any) ([]*models.Cart, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	rows, err := r.DB.QueryContext(dbCtx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("querying carts: %w", err)
	}
	defer rows.Close()

	var carts []*models.Cart

	for rows.Next() {
		cart, err := r.scanCart(rows)
		if err != nil {
			return nil, err
		}

		carts = append(carts, cart)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating carts: %w", err)
	}

	for _, cart := range carts {
		if err := r.loadItems(dbCtx, cart); err != nil {
			return nil, err
		}
	}

	return carts, nil
}

// UpdateCart writes the whole aggregate guarded by the version column. On a
// version mismatch nothing is written and ErrVersionConflict is returned.
func (r *cartRepository) UpdateCart(ctx context.Context, cart *models.Cart) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	tx, err := r.DB.BeginTx(dbCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE carts SET
			user_id = $1, status = $2, customer_name = $3, customer_email = $4,
			subtotal = $5, tax_amount = $6, discount_amount = $7, total_amount = $8,
			item_count = $9, total_quantity = $10, currency_code = $11, discount_code = $12,
			special_instructions = $13, delivery_type = $14, delivery_address = $15,
			updated_at = $16, expires_at = $17, last_activity_at = $18, abandoned_at = $19,
			converted_at = $20, converted_order_id = $21, metadata = $22,
			version = version + 1
		WHERE id = $23 AND version = $24
	`

	result, err := tx.ExecContext(dbCtx, query,
		cart.UserID, cart.Status, cart.CustomerName, cart.CustomerEmail,
		cart.Subtotal, cart.TaxAmount, cart.DiscountAmount, cart.TotalAmount,
		cart.ItemCount, cart.TotalQuantity, cart.CurrencyCode, cart.DiscountCode,
		cart.SpecialInstructions, cart.DeliveryType, cart.DeliveryAddress,
		cart.UpdatedAt, cart.ExpiresAt, cart.LastActivityAt, cart.AbandonedAt,
		cart.ConvertedAt, cart.ConvertedOrderID, nullBytes(cart.Metadata),
		cart.ID, cart.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update the cart: %w", err)
	}

	updatedRows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get updated rows: %w", err)
	}

	if updatedRows == 0 {
		return ErrVersionConflict
	}

	for _, item := range cart.Items {
		if err := r.upsertItem(dbCtx, tx, item); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cart update: %w", err)
	}

	cart.Version++

	return nil
}

func (r *cartRepository) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	tx, err := r.DB.BeginTx(dbCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(dbCtx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("failed to delete cart items: %w", err)
	}

	result, err := tx.ExecContext(dbCtx, `DELETE FROM carts WHERE id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get deleted rows: %w", err)
	}

	if deleted == 0 {
		return sql.ErrNoRows
	}

	return tx.Commit()
}

func (r *cartRepository) GetItem(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `SELECT ` + itemColumns + ` FROM cart_items WHERE id = $1`

	return r.scanItem(r.DB.QueryRowContext(dbCtx, query, itemID))
}

// UpdateItemValidation touches only the availability/price/validation
// columns so background reconciliation never clobbers user-driven fields.
func (r *cartRepository) UpdateItemValidation(ctx context.Context, item *models.CartItem) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE cart_items SET
			unit_price = $1, total_price = $2, is_available = $3, stock_quantity = $4,
			availability_message = $5, price_changed = $6, price_change_amount = $7,
			last_validated_at = $8, updated_at = $9
		WHERE id = $10
	`

	_, err := r.DB.ExecContext(dbCtx, query,
		item.UnitPrice, item.TotalPrice, item.IsAvailable, item.StockQuantity,
		item.AvailabilityMessage, item.PriceChanged, item.PriceChangeAmount,
		item.LastValidatedAt, time.Now(), item.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update item validation: %w", err)
	}

	return nil
}

func (r *cartRepository) MarkExpiredCarts(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE carts SET status = 'EXPIRED', updated_at = $1
		WHERE expires_at < $1 AND status IN ('ACTIVE', 'SAVED')
	`

	return r.execCount(ctx, query, now)
}

func (r *cartRepository) MarkAbandonedCarts(ctx context.Context, now, cutoff time.Time) (int64, error) {
	query := `
		UPDATE carts SET status = 'ABANDONED', abandoned_at = $1, updated_at = $1
		WHERE status = 'ACTIVE' AND last_activity_at < $2 AND item_count > 0
	`

	return r.execCount(ctx, query, now, cutoff)
}

func (r *cartRepository) DeleteTerminalCartsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	tx, err := r.DB.BeginTx(dbCtx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	where := `(status = 'EXPIRED' AND updated_at < $1) OR (status = 'ABANDONED' AND abandoned_at < $1)`

	if _, err := tx.ExecContext(dbCtx,
		`DELETE FROM cart_items WHERE cart_id IN (SELECT id FROM carts WHERE `+where+`)`, cutoff); err != nil {
		return 0, fmt.Errorf("failed to delete terminal cart items: %w", err)
	}

	result, err := tx.ExecContext(dbCtx, `DELETE FROM carts WHERE `+where, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete terminal carts: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted rows: %w", err)
	}

	return count, tx.Commit()
}

func (r *cartRepository) DeleteEmptyCartsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	tx, err := r.DB.BeginTx(dbCtx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	where := `item_count = 0 AND updated_at < $1 AND status NOT IN ('CONVERTED')`

	if _, err := tx.ExecContext(dbCtx,
		`DELETE FROM cart_items WHERE cart_id IN (SELECT id FROM carts WHERE `+where+`)`, cutoff); err != nil {
		return 0, fmt.Errorf("failed to delete empty cart items: %w", err)
	}

	result, err := tx.ExecContext(dbCtx, `DELETE FROM carts WHERE `+where, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete empty carts: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted rows: %w", err)
	}

	return count, tx.Commit()
}

func (r *cartRepository) PurgeRemovedItemsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM cart_items WHERE status = 'REMOVED' AND removed_at < $1`

	return r.execCount(ctx, query, cutoff)
}

func (r *cartRepository) FindAbandonedCartsSince(ctx context.Context, since time.Time) ([]*models.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts
		WHERE status = 'ABANDONED' AND abandoned_at >= $1
		ORDER BY abandoned_at ASC`

	return r.list(ctx, query, since)
}

func (r *cartRepository) execCount(ctx context.Context, query string, args ...any) (int64, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	result, err := r.DB.ExecContext(dbCtx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("maintenance query failed: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return count, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *cartRepository) upsertItem(ctx context.Context, ex execer, item *models.CartItem) error {
	query := `
		INSERT INTO cart_items (` + itemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)
		ON CONFLICT (id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			unit_price = EXCLUDED.unit_price,
			total_price = EXCLUDED.total_price,
			status = EXCLUDED.status,
			special_instructions = EXCLUDED.special_instructions,
			is_available = EXCLUDED.is_available,
			stock_quantity = EXCLUDED.stock_quantity,
			availability_message = EXCLUDED.availability_message,
			price_changed = EXCLUDED.price_changed,
			price_change_amount = EXCLUDED.price_change_amount,
			updated_at = EXCLUDED.updated_at,
			last_validated_at = EXCLUDED.last_validated_at,
			saved_for_later_at = EXCLUDED.saved_for_later_at,
			removed_at = EXCLUDED.removed_at,
			metadata = EXCLUDED.metadata
	`

	_, err := ex.ExecContext(ctx, query,
		item.ID, item.CartID, item.ProductID, item.ProductSKU, item.ProductName,
		item.ProductCategory, item.ProductDescription, item.ProductImageURL,
		item.PrepTimeMinutes, item.Quantity, item.UnitPrice, item.TotalPrice,
		item.OriginalUnitPrice, item.Status, item.CurrencyCode, item.SpecialInstructions,
		item.IsAvailable, item.StockQuantity, item.AvailabilityMessage,
		item.PriceChanged, item.PriceChangeAmount,
		item.AddedAt, item.UpdatedAt, item.LastValidatedAt, item.SavedForLaterAt,
		item.RemovedAt, item.AddedFrom, nullBytes(item.Metadata),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cart item: %w", err)
	}

	return nil
}

func (r *cartRepository) loadItems(ctx context.Context, cart *models.Cart) error {
	query := `SELECT ` + itemColumns + ` FROM cart_items WHERE cart_id = $1 ORDER BY added_at ASC`

	rows, err := r.DB.QueryContext(ctx, query, cart.ID)
	if err != nil {
		return fmt.Errorf("querying cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := r.scanItem(rows)
		if err != nil {
			return err
		}

		cart.Items = append(cart.Items, item)
	}

	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *cartRepository) scanCart(row rowScanner) (*models.Cart, error) {
	cart := &models.Cart{}

	var (
		sessionID sql.NullString
		metadata  []byte
	)

	err := row.Scan(
		&cart.ID, &cart.UserID, &sessionID, &cart.Status,
		&cart.CustomerName, &cart.CustomerEmail,
		&cart.Subtotal, &cart.TaxAmount, &cart.DiscountAmount, &cart.TotalAmount,
		&cart.ItemCount, &cart.TotalQuantity,
		&cart.CurrencyCode, &cart.DiscountCode, &cart.SpecialInstructions,
		&cart.DeliveryType, &cart.DeliveryAddress,
		&cart.CreatedAt, &cart.UpdatedAt, &cart.ExpiresAt, &cart.LastActivityAt,
		&cart.AbandonedAt, &cart.ConvertedAt, &cart.ConvertedOrderID,
		&metadata, &cart.Source, &cart.DeviceType, &cart.UserAgent,
		&cart.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("scanning cart: %w", err)
	}

	cart.SessionID = sessionID.String
	cart.Metadata = metadata

	return cart, nil
}

func (r *cartRepository) scanItem(row rowScanner) (*models.CartItem, error) {
	item := &models.CartItem{}

	var metadata []byte

	err := row.Scan(
		&item.ID, &item.CartID, &item.ProductID, &item.ProductSKU, &item.ProductName,
		&item.ProductCategory, &item.ProductDescription, &item.ProductImageURL,
		&item.PrepTimeMinutes, &item.Quantity, &item.UnitPrice, &item.TotalPrice,
		&item.OriginalUnitPrice, &item.Status, &item.CurrencyCode, &item.SpecialInstructions,
		&item.IsAvailable, &item.StockQuantity, &item.AvailabilityMessage,
		&item.PriceChanged, &item.PriceChangeAmount,
		&item.AddedAt, &item.UpdatedAt, &item.LastValidatedAt, &item.SavedForLaterAt,
		&item.RemovedAt, &item.AddedFrom, &metadata,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("scanning cart item: %w", err)
	}

	item.Metadata = metadata

	return item, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}

	return b
}
