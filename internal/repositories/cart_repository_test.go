package repository_test

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bakehouse/cart-service/internal/models"
	repository "github.com/bakehouse/cart-service/internal/repositories"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cartColumns = []string{
	"id", "user_id", "session_id", "status", "customer_name", "customer_email",
	"subtotal", "tax_amount", "discount_amount", "total_amount", "item_count", "total_quantity",
	"currency_code", "discount_code", "special_instructions", "delivery_type", "delivery_address",
	"created_at", "updated_at", "expires_at", "last_activity_at", "abandoned_at", "converted_at",
	"converted_order_id", "metadata", "source", "device_type", "user_agent", "version",
}

var itemColumns = []string{
	"id", "cart_id", "product_id", "product_sku", "product_name", "product_category",
	"product_description", "product_image_url", "prep_time_minutes", "quantity", "unit_price",
	"total_price", "original_unit_price", "status", "currency_code", "special_instructions",
	"is_available", "stock_quantity", "availability_message", "price_changed", "price_change_amount",
	"added_at", "updated_at", "last_validated_at", "saved_for_later_at", "removed_at", "added_from", "metadata",
}

func cartRow(cartID uuid.UUID, sessionID string, now time.Time, version int64) []driver.Value {
	return []driver.Value{
		cartID.String(), nil, sessionID, "ACTIVE", "", "",
		10.0, 0.8, 0.0, 10.8, 1, 2,
		"USD", "", "", "", "",
		now, now, now.Add(24 * time.Hour), now, nil, nil,
		nil, nil, "web", "", "", version,
	}
}

func setupCartRepoTest(t *testing.T) (repository.CartRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "Failed to create sqlmock")

	t.Cleanup(func() {
		db.Close()
	})

	repo := repository.NewCartRepo(db)
	require.NotNil(t, repo, "NewCartRepo should return a non-nil repository")

	return repo, mock
}

func TestNewCartRepo(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := repository.NewCartRepo(db)
	assert.NotNil(t, repo, "NewCartRepo should return a non-nil repository")
}

func TestCartRepository(t *testing.T) {
	repo, mock := setupCartRepoTest(t)
	ctx := t.Context()

	t.Run("Create Cart", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			// Arrange
			cart := models.NewCart(nil, "sess-123", models.DefaultExpirationPolicy)
			mock.ExpectExec(`INSERT INTO carts`).
				WillReturnResult(sqlmock.NewResult(0, 1))

			// Act
			err := repo.CreateCart(ctx, cart)

			// Assert
			require.NoError(t, err, "CreateCart should not return an error on success")
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Success - With Items", func(t *testing.T) {
			// Arrange
			cart := models.NewCart(nil, "sess-123", models.DefaultExpirationPolicy)
			item := models.NewCartItem(cart.ID, uuid.New(), "Sourdough Loaf", 2, 5.25, "USD")
			cart.AddItem(item, models.DefaultExpirationPolicy)

			mock.ExpectExec(`INSERT INTO carts`).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(`INSERT INTO cart_items`).
				WillReturnResult(sqlmock.NewResult(0, 1))

			// Act
			err := repo.CreateCart(ctx, cart)

			// Assert
			require.NoError(t, err, "CreateCart should persist the cart and its items")
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Failure - Database Error", func(t *testing.T) {
			// Arrange
			cart := models.NewCart(nil, "sess-123", models.DefaultExpirationPolicy)
			dbError := errors.New("database insertion error")
			mock.ExpectExec(`INSERT INTO carts`).
				WillReturnError(dbError)

			// Act
			err := repo.CreateCart(ctx, cart)

			// Assert
			require.Error(t, err, "CreateCart should return an error on DB failure")
			assert.ErrorIs(t, err, dbError, "Returned error should wrap the expected database error")
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})
	})

	t.Run("Get Cart", func(t *testing.T) {
		cartID := uuid.New()
		itemID := uuid.New()
		productID := uuid.New()
		now := time.Now()

		t.Run("Success", func(t *testing.T) {
			// Arrange
			mock.ExpectQuery(`FROM carts WHERE id = \$1`).
				WithArgs(cartID).
				WillReturnRows(sqlmock.NewRows(cartColumns).
					AddRow(cartRow(cartID, "sess-123", now, 3)...))
			mock.ExpectQuery(`FROM cart_items WHERE cart_id = \$1`).
				WithArgs(cartID).
				WillReturnRows(sqlmock.NewRows(itemColumns).
					AddRow(itemID.String(), cartID.String(), productID.String(), "SKU-1", "Sourdough Loaf", "bread",
						"", "", 0, 2, 5.25,
						10.50, 5.25, "ACTIVE", "USD", "",
						true, nil, "", false, 0.0,
						now, now, nil, nil, nil, "web", nil))

			// Act
			cart, err := repo.GetCart(ctx, cartID)

			// Assert
			require.NoError(t, err, "GetCart should not return an error when the cart exists")
			require.NotNil(t, cart, "Returned cart should not be nil")
			assert.Equal(t, cartID, cart.ID)
			assert.Equal(t, "sess-123", cart.SessionID)
			assert.Equal(t, models.CartStatusActive, cart.Status)
			assert.Equal(t, int64(3), cart.Version)
			require.Len(t, cart.Items, 1)
			assert.Equal(t, productID, cart.Items[0].ProductID)
			assert.Equal(t, 2, cart.Items[0].Quantity)
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Failure - Not Found", func(t *testing.T) {
			// Arrange
			mock.ExpectQuery(`FROM carts WHERE id = \$1`).
				WithArgs(cartID).
				WillReturnError(sql.ErrNoRows)

			// Act
			cart, err := repo.GetCart(ctx, cartID)

			// Assert
			require.Error(t, err, "GetCart should return an error when cart is not found")
			assert.ErrorIs(t, err, sql.ErrNoRows, "Error should be sql.ErrNoRows")
			assert.Nil(t, cart, "Returned cart should be nil")
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})
	})

	t.Run("Find Active Cart By Session", func(t *testing.T) {
		cartID := uuid.New()
		now := time.Now()

		t.Run("Success", func(t *testing.T) {
			// Arrange
			mock.ExpectQuery(`WHERE session_id = \$1 AND status = 'ACTIVE'`).
				WithArgs("sess-123").
				WillReturnRows(sqlmock.NewRows(cartColumns).
					AddRow(cartRow(cartID, "sess-123", now, 1)...))
			mock.ExpectQuery(`FROM cart_items WHERE cart_id = \$1`).
				WithArgs(cartID).
				WillReturnRows(sqlmock.NewRows(itemColumns))

			// Act
			cart, err := repo.FindActiveCartBySession(ctx, "sess-123")

			// Assert
			require.NoError(t, err)
			require.NotNil(t, cart)
			assert.Equal(t, cartID, cart.ID)
			assert.Empty(t, cart.Items)
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Failure - Not Found", func(t *testing.T) {
			// Arrange
			mock.ExpectQuery(`WHERE session_id = \$1 AND status = 'ACTIVE'`).
				WithArgs("missing").
				WillReturnError(sql.ErrNoRows)

			// Act
			cart, err := repo.FindActiveCartBySession(ctx, "missing")

			// Assert
			require.Error(t, err)
			assert.ErrorIs(t, err, sql.ErrNoRows)
			assert.Nil(t, cart)
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})
	})

	t.Run("Update Cart", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			// Arrange
			cart := models.NewCart(nil, "sess-123", models.DefaultExpirationPolicy)
			item := models.NewCartItem(cart.ID, uuid.New(), "Croissant", 1, 3.50, "USD")
			cart.AddItem(item, models.DefaultExpirationPolicy)
			cart.Version = 4

			mock.ExpectBegin()
			mock.ExpectExec(`UPDATE carts SET`).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(`INSERT INTO cart_items`).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			// Act
			err := repo.UpdateCart(ctx, cart)

			// Assert
			require.NoError(t, err, "UpdateCart should not return an error on success")
			assert.Equal(t, int64(5), cart.Version, "Version should be bumped after a successful write")
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Failure - Version Conflict", func(t *testing.T) {
			// Arrange
			cart := models.NewCart(nil, "sess-123", models.DefaultExpirationPolicy)
			cart.Version = 4

			mock.ExpectBegin()
			mock.ExpectExec(`UPDATE carts SET`).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectRollback()

			// Act
			err := repo.UpdateCart(ctx, cart)

			// Assert
			require.Error(t, err, "UpdateCart should fail when the version no longer matches")
			assert.ErrorIs(t, err, repository.ErrVersionConflict)
			assert.Equal(t, int64(4), cart.Version, "Version should not change on conflict")
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Failure - Database Error", func(t *testing.T) {
			// Arrange
			cart := models.NewCart(nil, "sess-123", models.DefaultExpirationPolicy)
			dbError := errors.New("database update error")

			mock.ExpectBegin()
			mock.ExpectExec(`UPDATE carts SET`).
				WillReturnError(dbError)
			mock.ExpectRollback()

			// Act
			err := repo.UpdateCart(ctx, cart)

			// Assert
			require.Error(t, err)
			assert.ErrorIs(t, err, dbError)
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})
	})

	t.Run("Delete Cart", func(t *testing.T) {
		cartID := uuid.New()

		t.Run("Success", func(t *testing.T) {
			// Arrange
			mock.ExpectBegin()
			mock.ExpectExec(`DELETE FROM cart_items WHERE cart_id = \$1`).
				WithArgs(cartID).
				WillReturnResult(sqlmock.NewResult(0, 2))
			mock.ExpectExec(`DELETE FROM carts WHERE id = \$1`).
				WithArgs(cartID).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			// Act
			err := repo.DeleteCart(ctx, cartID)

			// Assert
			require.NoError(t, err)
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Failure - Not Found", func(t *testing.T) {
			// Arrange
			mock.ExpectBegin()
			mock.ExpectExec(`DELETE FROM cart_items WHERE cart_id = \$1`).
				WithArgs(cartID).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectExec(`DELETE FROM carts WHERE id = \$1`).
				WithArgs(cartID).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectRollback()

			// Act
			err := repo.DeleteCart(ctx, cartID)

			// Assert
			require.Error(t, err)
			assert.ErrorIs(t, err, sql.ErrNoRows)
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})
	})

	t.Run("Maintenance Queries", func(t *testing.T) {
		now := time.Now()
		cutoff := now.Add(-24 * time.Hour)

		t.Run("Mark Expired Carts", func(t *testing.T) {
			// Arrange
			mock.ExpectExec(`SET status = 'EXPIRED'`).
				WithArgs(now).
				WillReturnResult(sqlmock.NewResult(0, 7))

			// Act
			count, err := repo.MarkExpiredCarts(ctx, now)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, int64(7), count)
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Mark Abandoned Carts", func(t *testing.T) {
			// Arrange
			mock.ExpectExec(`SET status = 'ABANDONED'`).
				WithArgs(now, cutoff).
				WillReturnResult(sqlmock.NewResult(0, 3))

			// Act
			count, err := repo.MarkAbandonedCarts(ctx, now, cutoff)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, int64(3), count)
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Delete Terminal Carts", func(t *testing.T) {
			// Arrange
			mock.ExpectBegin()
			mock.ExpectExec(`DELETE FROM cart_items WHERE cart_id IN`).
				WithArgs(cutoff).
				WillReturnResult(sqlmock.NewResult(0, 5))
			mock.ExpectExec(`DELETE FROM carts WHERE`).
				WithArgs(cutoff).
				WillReturnResult(sqlmock.NewResult(0, 2))
			mock.ExpectCommit()

			// Act
			count, err := repo.DeleteTerminalCartsBefore(ctx, cutoff)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Delete Empty Carts", func(t *testing.T) {
			// Arrange
			mock.ExpectBegin()
			mock.ExpectExec(`DELETE FROM cart_items WHERE cart_id IN`).
				WithArgs(cutoff).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectExec(`DELETE FROM carts WHERE`).
				WithArgs(cutoff).
				WillReturnResult(sqlmock.NewResult(0, 4))
			mock.ExpectCommit()

			// Act
			count, err := repo.DeleteEmptyCartsBefore(ctx, cutoff)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, int64(4), count)
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Purge Removed Items", func(t *testing.T) {
			// Arrange
			mock.ExpectExec(`DELETE FROM cart_items WHERE status = 'REMOVED'`).
				WithArgs(cutoff).
				WillReturnResult(sqlmock.NewResult(0, 11))

			// Act
			count, err := repo.PurgeRemovedItemsBefore(ctx, cutoff)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, int64(11), count)
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})

		t.Run("Failure - Database Error", func(t *testing.T) {
			// Arrange
			dbError := errors.New("sweep query error")
			mock.ExpectExec(`SET status = 'EXPIRED'`).
				WithArgs(now).
				WillReturnError(dbError)

			// Act
			count, err := repo.MarkExpiredCarts(ctx, now)

			// Assert
			require.Error(t, err)
			assert.ErrorIs(t, err, dbError)
			assert.Zero(t, count)
			require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
		})
	})

	t.Run("Find Abandoned Carts Since", func(t *testing.T) {
		cartID := uuid.New()
		now := time.Now()
		since := now.Add(-6 * time.Hour)

		// Arrange
		row := cartRow(cartID, "sess-123", now, 1)
		row[3] = "ABANDONED"
		row[21] = now
		mock.ExpectQuery(`WHERE status = 'ABANDONED' AND abandoned_at >= \$1`).
			WithArgs(since).
			WillReturnRows(sqlmock.NewRows(cartColumns).AddRow(row...))
		mock.ExpectQuery(`FROM cart_items WHERE cart_id = \$1`).
			WithArgs(cartID).
			WillReturnRows(sqlmock.NewRows(itemColumns))

		// Act
		carts, err := repo.FindAbandonedCartsSince(ctx, since)

		// Assert
		require.NoError(t, err)
		require.Len(t, carts, 1)
		assert.Equal(t, models.CartStatusAbandoned, carts[0].Status)
		require.NotNil(t, carts[0].AbandonedAt)
		require.NoError(t, mock.ExpectationsWereMet(), "SQL mock expectations were not met")
	})
}
