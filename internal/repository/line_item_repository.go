package repository

import (
	"context"
	"database/sql"

	"storefront-service/internal/entity"
)

type LineItemRepository struct {
	db *sql.DB
}

func NewLineItemRepository(db *sql.DB) *LineItemRepository {
	return &LineItemRepository{db}
}

func (r *LineItemRepository) Save(ctx context.Context, line *entity.LineItem) (*entity.LineItem, error) {
	query := `INSERT INTO order_items (order_id, item_id, quantity, unit_price) VALUES (?, ?, ?, ?)`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, line.OrderID, line.ItemID, line.Quantity, line.UnitPrice)
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	line.ID = id
	return line, nil
}

func (r *LineItemRepository) FindByOrderID(ctx context.Context, orderID int64) ([]entity.LineItem, error) {
	query := `SELECT id, order_id, item_id, quantity, unit_price FROM order_items WHERE order_id = ? ORDER BY id`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []entity.LineItem
	for rows.Next() {
		line := entity.LineItem{}
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ItemID, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	return lines, rows.Err()
}

func (r *LineItemRepository) DeleteAllForOrder(ctx context.Context, orderID int64) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, orderID)
	return err
}
