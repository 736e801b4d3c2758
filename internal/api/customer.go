package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"storefront-service/internal/entity"
	"storefront-service/internal/service"
)

type CustomerHandler struct {
	customerService *service.CustomerService
}

func NewCustomerHandler(customerService *service.CustomerService) *CustomerHandler {
	return &CustomerHandler{customerService: customerService}
}

// Register creates a customer and returns it with its API key --> POST /customers
func (h *CustomerHandler) Register(c echo.Context) error {
	var req entity.RegisterRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	customer, err := h.customerService.Register(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, customer)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login --> POST /login
func (h *CustomerHandler) Login(c echo.Context) error {
	var req loginRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	token, err := h.customerService.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"token": token})
}

// Me returns the authenticated customer --> GET /customers/me
func (h *CustomerHandler) Me(c echo.Context) error {
	customer, err := principal(c)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, customer)
}
