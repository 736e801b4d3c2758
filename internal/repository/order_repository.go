package repository

import (
	"context"
	"database/sql"
	"errors"

	"storefront-service/internal/entity"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db}
}

// Save inserts the order when it has no ID yet and updates it otherwise.
func (r *OrderRepository) Save(ctx context.Context, order *entity.Order) (*entity.Order, error) {
	if order.ID == 0 {
		query := `INSERT INTO orders (customer_id, date, total_price, delivery_status) VALUES (?, ?, ?, ?)`
		res, err := conn(ctx, r.db).ExecContext(ctx, query, order.CustomerID, order.Date, order.TotalPrice, order.DeliveryStatus)
		if err != nil {
			return nil, err
		}

		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}

		order.ID = id
		return order, nil
	}

	query := `UPDATE orders SET customer_id = ?, date = ?, total_price = ?, delivery_status = ? WHERE id = ?`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, order.CustomerID, order.Date, order.TotalPrice, order.DeliveryStatus, order.ID)
	if err != nil {
		return nil, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// MySQL reports 0 when the row exists but nothing changed, so confirm.
		if _, err := r.FindByID(ctx, order.ID); err != nil {
			return nil, err
		}
	}

	return order, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id int64) (*entity.Order, error) {
	query := `SELECT id, customer_id, date, total_price, delivery_status FROM orders WHERE id = ?`

	order := &entity.Order{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(&order.ID, &order.CustomerID, &order.Date, &order.TotalPrice, &order.DeliveryStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrOrderNotFound
		}
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) FindAllByCustomerID(ctx context.Context, customerID int64) ([]*entity.Order, error) {
	query := `SELECT id, customer_id, date, total_price, delivery_status FROM orders WHERE customer_id = ? ORDER BY id`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*entity.Order
	for rows.Next() {
		order := &entity.Order{}
		if err := rows.Scan(&order.ID, &order.CustomerID, &order.Date, &order.TotalPrice, &order.DeliveryStatus); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	return orders, rows.Err()
}

// DeleteByID removes the order together with its line items.
func (r *OrderRepository) DeleteByID(ctx context.Context, id int64) error {
	db := conn(ctx, r.db)

	// order_items also cascades, but the explicit delete keeps engines
	// without FK enforcement consistent.
	if _, err := db.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, id); err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return entity.ErrOrderNotFound
	}

	return nil
}

// UpdateDeliveryStatus moves every order in status from to status to and
// returns how many rows changed.
func (r *OrderRepository) UpdateDeliveryStatus(ctx context.Context, from, to entity.DeliveryStatus) (int64, error) {
	query := `UPDATE orders SET delivery_status = ? WHERE delivery_status = ?`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, to, from)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
