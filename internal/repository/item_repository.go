package repository

import (
	"context"
	"database/sql"
	"errors"

	"storefront-service/internal/entity"
)

type ItemRepository struct {
	db *sql.DB
}

func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{db}
}

func (r *ItemRepository) GetItemByID(ctx context.Context, id int64) (*entity.Item, error) {
	query := `SELECT id, name, price, stock FROM items WHERE id = ?`

	item := &entity.Item{}
	var stock sql.NullInt64
	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(&item.ID, &item.Name, &item.Price, &stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrItemNotFound
		}
		return nil, err
	}
	item.Stock = stockPtr(stock)

	return item, nil
}

func (r *ItemRepository) GetItems(ctx context.Context) ([]*entity.Item, error) {
	query := `SELECT id, name, price, stock FROM items ORDER BY id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*entity.Item
	for rows.Next() {
		item := &entity.Item{}
		var stock sql.NullInt64
		if err := rows.Scan(&item.ID, &item.Name, &item.Price, &stock); err != nil {
			return nil, err
		}
		item.Stock = stockPtr(stock)
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *ItemRepository) CreateItem(ctx context.Context, item *entity.Item) (*entity.Item, error) {
	query := `INSERT INTO items (name, price, stock) VALUES (?, ?, ?)`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, item.Name, item.Price, stockArg(item.Stock))
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	item.ID = id
	return item, nil
}

// AdjustStock adds delta to a tracked stock count. A negative delta that
// would take stock below zero fails with ErrOutOfStock; untracked items are
// left alone.
func (r *ItemRepository) AdjustStock(ctx context.Context, id int64, delta int) error {
	query := `UPDATE items SET stock = stock + ? WHERE id = ? AND stock IS NOT NULL AND stock + ? >= 0`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, delta, id, delta)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	item, err := r.GetItemByID(ctx, id)
	if err != nil {
		return err
	}
	if item.Stock == nil {
		return nil
	}
	return entity.ErrOutOfStock
}

func stockPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	s := int(v.Int64)
	return &s
}

func stockArg(s *int) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
