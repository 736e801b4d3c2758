package service

import (
	"context"
	"fmt"

	"storefront-service/internal/entity"
)

// CatalogLookup is the read side of the item catalog.
type CatalogLookup interface {
	FindItem(ctx context.Context, id int64) (*entity.Item, error)
	ItemExists(ctx context.Context, id int64) (bool, error)
}

// Workbook is the working set of line items for one order. It has no side
// effects beyond its own lines; persisting them is up to the caller.
type Workbook struct {
	catalog CatalogLookup
	lines   []entity.LineItem
}

func NewWorkbook(catalog CatalogLookup) *Workbook {
	return &Workbook{catalog: catalog}
}

// LoadWorkbook starts a workbook from lines already persisted for an order.
func LoadWorkbook(catalog CatalogLookup, lines []entity.LineItem) *Workbook {
	w := &Workbook{catalog: catalog, lines: make([]entity.LineItem, len(lines))}
	copy(w.lines, lines)
	return w
}

// AddLine appends a line bound to the item's current catalog price.
func (w *Workbook) AddLine(ctx context.Context, itemID int64, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("item %d quantity %d: %w", itemID, quantity, entity.ErrInvalidQuantity)
	}

	item, err := w.catalog.FindItem(ctx, itemID)
	if err != nil {
		return fmt.Errorf("item %d: %w", itemID, err)
	}

	w.lines = append(w.lines, entity.LineItem{
		ItemID:    item.ID,
		Quantity:  quantity,
		UnitPrice: item.Price,
	})
	return nil
}

func (w *Workbook) Total() int64 {
	var total int64
	for _, l := range w.lines {
		total += l.Subtotal()
	}
	return total
}

func (w *Workbook) Clear() {
	w.lines = nil
}

// Contains reports whether any line references itemID.
func (w *Workbook) Contains(itemID int64) bool {
	for _, l := range w.lines {
		if l.ItemID == itemID {
			return true
		}
	}
	return false
}

// Lines returns a copy of the working lines in insertion order.
func (w *Workbook) Lines() []entity.LineItem {
	out := make([]entity.LineItem, len(w.lines))
	copy(out, w.lines)
	return out
}
