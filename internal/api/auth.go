package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"storefront-service/internal/entity"
	"storefront-service/internal/service"
)

const apiKeyHeader = "X-API-Key"

type principalKey struct{}

// WithPrincipal stores the authenticated customer in ctx.
func WithPrincipal(ctx context.Context, customer *entity.Customer) context.Context {
	return context.WithValue(ctx, principalKey{}, customer)
}

func PrincipalFrom(ctx context.Context) (*entity.Customer, bool) {
	customer, ok := ctx.Value(principalKey{}).(*entity.Customer)
	return customer, ok
}

// Authenticate resolves the caller from an X-API-Key header or, failing that,
// a bearer token, and stores it in the request context.
func Authenticate(customers service.CustomerDirectory, secret []byte) echo.MiddlewareFunc {
	bearer := echojwt.WithConfig(echojwt.Config{
		SigningKey: secret,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(service.CustomerClaims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		},
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withToken := bearer(fromToken(customers, next))

		return func(c echo.Context) error {
			key := c.Request().Header.Get(apiKeyHeader)
			if key == "" {
				return withToken(c)
			}

			customer, err := customers.FindByAPIKey(c.Request().Context(), key)
			if err != nil {
				if errors.Is(err, entity.ErrCustomerNotFound) {
					return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
				}
				return respondError(c, err)
			}
			return servePrincipal(c, customer, next)
		}
	}
}

func fromToken(customers service.CustomerDirectory, next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := c.Get("user").(*jwt.Token)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}
		claims, ok := token.Claims.(*service.CustomerClaims)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}
		id, err := claims.CustomerID()
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		customer, err := customers.FindCustomer(c.Request().Context(), id)
		if err != nil {
			if errors.Is(err, entity.ErrCustomerNotFound) {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}
			return respondError(c, err)
		}
		return servePrincipal(c, customer, next)
	}
}

func servePrincipal(c echo.Context, customer *entity.Customer, next echo.HandlerFunc) error {
	c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), customer)))
	return next(c)
}

func principal(c echo.Context) (*entity.Customer, error) {
	customer, ok := PrincipalFrom(c.Request().Context())
	if !ok {
		return nil, entity.ErrUnauthorized
	}
	return customer, nil
}
