package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/factory"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/types"
	"github.com/vibast-solutions/ms-go-checkout-payments/config"
)

const claimsContextKey = "auth_claims"

var ErrInvalidToken = errors.New("invalid token")

// Claims is the access token issued by the storefront auth service.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func ParseAccessToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateAccessToken signs a token the way the auth service does. Used by tests
// and local tooling.
func GenerateAccessToken(secret, userID, email, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// AdminMiddleware only lets through bearer tokens carrying the admin role. With no
// secret configured every request is rejected.
func AdminMiddleware(cfg config.AuthConfig) echo.MiddlewareFunc {
	logger := factory.NewModuleLogger("admin-auth")
	adminRole := strings.TrimSpace(cfg.AdminRole)
	if adminRole == "" {
		adminRole = "ADMIN"
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if strings.TrimSpace(cfg.JWTSecret) == "" {
				return ctx.JSON(http.StatusUnauthorized, &types.ErrorResponse{Error: "unauthorized"})
			}

			header := ctx.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return ctx.JSON(http.StatusUnauthorized, &types.ErrorResponse{Error: "missing authorization header"})
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return ctx.JSON(http.StatusUnauthorized, &types.ErrorResponse{Error: "invalid authorization format"})
			}

			claims, err := ParseAccessToken(cfg.JWTSecret, strings.TrimSpace(parts[1]))
			if err != nil {
				return ctx.JSON(http.StatusUnauthorized, &types.ErrorResponse{Error: "invalid or expired token"})
			}
			if !strings.EqualFold(claims.Role, adminRole) {
				factory.LoggerWithContext(logger, ctx).WithField("user_id", claims.UserID).Warn("admin route denied")
				return ctx.JSON(http.StatusForbidden, &types.ErrorResponse{Error: "forbidden"})
			}

			ctx.Set(claimsContextKey, claims)
			return next(ctx)
		}
	}
}

func ClaimsFromContext(ctx echo.Context) *Claims {
	claims, _ := ctx.Get(claimsContextKey).(*Claims)
	return claims
}
