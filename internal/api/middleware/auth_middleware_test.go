package middleware_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/bakehouse/cart-service/internal/api/middleware"
	"github.com/bakehouse/cart-service/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testJwtKey = []byte("test-secret-key-123456789012345")

func createTestToken(userID uuid.UUID, email, role string, duration time.Duration, key []byte, method jwt.SigningMethod) (string, error) {
	claims := &models.Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(method, claims)

	return token.SignedString(key)
}

func TestAuthMiddleware(t *testing.T) {
	// Arrange
	authMiddleware := middleware.NewAuthMiddleware(testJwtKey)
	userID := uuid.New()
	userEmail := "test@example.com"

	// Mock handler to check if the request reaches the next handler
	// and to verify the context values.
	mockNextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.ClaimsFromContext(r.Context())
		require.True(t, ok, "User claims should be in context")
		assert.Equal(t, userID, claims.UserID)
		assert.Equal(t, userEmail, claims.Email)

		logger := middleware.LoggerFromContext(r.Context())
		require.NotNil(t, logger)

		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(`{"success": true}`))
		require.NoError(t, err)
	})

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "Success - Valid Token",
			authHeader: func() string {
				token, err := createTestToken(userID, userEmail, "", time.Hour, testJwtKey, jwt.SigningMethodHS256)
				require.NoError(t, err)

				return "Bearer " + token
			}(),
			expectedStatus: http.StatusOK,
			expectedBody:   `{"success": true}`,
		},
		{
			name:           "Fail - Missing Authorization Header",
			authHeader:     "",
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"success": false, "error": {"code": "UNAUTHORIZED", "message": "Authorization header is required"}}`,
		},
		{
			name:           "Fail - Invalid Authorization Header Format (No Bearer)",
			authHeader:     "InvalidTokenFormat",
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"success": false, "error": {"code": "UNAUTHORIZED", "message": "Invalid authorization format"}}`,
		},
		{
			name:           "Fail - Invalid Token (Malformed)",
			authHeader:     "Bearer not.a.valid.token",
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"success": false, "error": {"code": "UNAUTHORIZED", "message": "Invalid or expired token"}}`,
		},
		{
			name: "Fail - Invalid Token (Wrong Signing Key)",
			authHeader: func() string {
				wrongKey := []byte("different-secret-key-0987654321")
				token, err := createTestToken(userID, userEmail, "", time.Hour, wrongKey, jwt.SigningMethodHS256)
				require.NoError(t, err)

				return "Bearer " + token
			}(),
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"success": false, "error": {"code": "UNAUTHORIZED", "message": "Invalid or expired token"}}`,
		},
		{
			name: "Fail - Expired Token",
			authHeader: func() string {
				token, err := createTestToken(userID, userEmail, "", -time.Hour, testJwtKey, jwt.SigningMethodHS256)
				require.NoError(t, err)

				return "Bearer " + token
			}(),
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"success": false, "error": {"code": "UNAUTHORIZED", "message": "Invalid or expired token"}}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}

			// Add a base logger to the context, simulating the Logging middleware
			baseLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))
			ctx := context.WithValue(req.Context(), middleware.LoggerKey, baseLogger)
			req = req.WithContext(ctx)

			rr := httptest.NewRecorder()

			handlerToTest := authMiddleware.Authenticate(mockNextHandler)

			// Act
			handlerToTest.ServeHTTP(rr, req)

			// Assert
			assert.Equal(t, tc.expectedStatus, rr.Code, "Unexpected status code")

			if tc.expectedBody != "" {
				assert.JSONEq(t, tc.expectedBody, rr.Body.String(), "Unexpected response body")
			}
		})
	}
}

func TestOptionalAuthenticate(t *testing.T) {
	authMiddleware := middleware.NewAuthMiddleware(testJwtKey)
	userID := uuid.New()

	t.Run("Anonymous Request Passes Without Claims", func(t *testing.T) {
		// Arrange
		nextCalled := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nextCalled = true
			_, ok := middleware.ClaimsFromContext(r.Context())
			assert.False(t, ok, "Anonymous request must carry no claims")
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		// Act
		authMiddleware.OptionalAuthenticate(next).ServeHTTP(rr, req)

		// Assert
		assert.True(t, nextCalled)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Valid Token Attaches Claims", func(t *testing.T) {
		// Arrange
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := middleware.ClaimsFromContext(r.Context())
			require.True(t, ok)
			assert.Equal(t, userID, claims.UserID)
			w.WriteHeader(http.StatusOK)
		})

		token, err := createTestToken(userID, "user@example.com", models.RoleAdmin, time.Hour, testJwtKey, jwt.SigningMethodHS256)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()

		// Act
		authMiddleware.OptionalAuthenticate(next).ServeHTTP(rr, req)

		// Assert
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Invalid Token Is Still Rejected", func(t *testing.T) {
		// Arrange
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run with an invalid token")
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not.a.valid.token")
		rr := httptest.NewRecorder()

		// Act
		authMiddleware.OptionalAuthenticate(next).ServeHTTP(rr, req)

		// Assert
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestNewAuthMiddleware(t *testing.T) {
	key := []byte("some-key")
	mw := middleware.NewAuthMiddleware(key)
	assert.NotNil(t, mw, "Middleware should not be nil")
}
