package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"storefront-service/internal/entity"
	"storefront-service/internal/service"
)

type ItemHandler struct {
	catalog *service.CatalogService
}

func NewItemHandler(catalog *service.CatalogService) *ItemHandler {
	return &ItemHandler{catalog: catalog}
}

// GetItem --> GET /items/:id
func (h *ItemHandler) GetItem(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid item ID"})
	}

	item, err := h.catalog.FindItem(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, item)
}

// ListItems --> GET /items
func (h *ItemHandler) ListItems(c echo.Context) error {
	items, err := h.catalog.ListItems(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, items)
}

// CreateItem --> POST /items
func (h *ItemHandler) CreateItem(c echo.Context) error {
	var item entity.Item
	if ok, err := bindAndValidate(c, &item); !ok {
		return err
	}
	item.ID = 0

	created, err := h.catalog.CreateItem(c.Request().Context(), &item)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, created)
}

// WarmCache --> POST /items/warmup-cache
func (h *ItemHandler) WarmCache(c echo.Context) error {
	if err := h.catalog.WarmCache(c.Request().Context()); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Cache pre-warmed"})
}
