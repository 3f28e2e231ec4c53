package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bakehouse/cart-service/internal/errors"
	models "github.com/bakehouse/cart-service/internal/models"
	"github.com/bakehouse/cart-service/internal/utils/response"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey uuid.UUID

var UserContextKey = contextKey(uuid.New())

type AuthMiddleware struct {
	jwtKey []byte
}

func NewAuthMiddleware(jwtKey []byte) *AuthMiddleware {
	return &AuthMiddleware{jwtKey: jwtKey}
}

// Authenticate requires a valid bearer token and puts the claims on the
// request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := LoggerFromContext(r.Context())

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			logger.Warn("Missing authorization header")
			response.Error(w, errors.UnauthorizedError("Authorization header is required"))

			return
		}

		ctx, ok := m.verify(w, r, authHeader)
		if !ok {
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// OptionalAuthenticate attaches claims when a bearer token is present but
// lets anonymous requests straight through. Guest cart routes use this: the
// handler decides access from claims and the session header together. A
// token that is present but invalid is still rejected.
func (m *AuthMiddleware) OptionalAuthenticate(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)

			return
		}

		ctx, ok := m.verify(w, r, authHeader)
		if !ok {
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func (m *AuthMiddleware) verify(w http.ResponseWriter, r *http.Request, authHeader string) (context.Context, bool) {
	logger := LoggerFromContext(r.Context())

	// Token is of format: "Bearer <token>"
	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
		logger.Warn("Invalid authorization header format", slog.String("header", authHeader))
		response.Error(w, errors.UnauthorizedError("Invalid authorization format"))

		return nil, false
	}

	tokenString := tokenParts[1]

	claims := &models.Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			logger.Error("Unexpected signing method used in JWT", slog.Any("alg", t.Header["alg"]))

			return nil, errors.BadRequestError("unexpected signing method")
		}

		return m.jwtKey, nil
	})
	if err != nil {
		logger.Warn("JWT parsing failed", slog.String("error", err.Error()))

		if appErr, ok := errors.IsAppError(err); ok {
			response.Error(w, appErr)
		} else {
			response.Error(w, errors.UnauthorizedError("Invalid or expired token"))
		}

		return nil, false
	}

	if !token.Valid {
		logger.Warn("Invalid token")
		response.Error(w, errors.UnauthorizedError("Invalid token"))

		return nil, false
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now()) {
		logger.Warn("Expired token", slog.String("userId", claims.UserID.String()))
		response.Error(w, errors.UnauthorizedError("Token expired"))

		return nil, false
	}

	ctx := context.WithValue(r.Context(), UserContextKey, claims)

	requestScopedLogger := logger.With(slog.String("userId", claims.UserID.String()))
	ctx = context.WithValue(ctx, LoggerKey, requestScopedLogger)

	requestScopedLogger.Info("User authenticated")

	return ctx, true
}

// ClaimsFromContext returns the authenticated claims, if any.
func ClaimsFromContext(ctx context.Context) (*models.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*models.Claims)

	return claims, ok
}
