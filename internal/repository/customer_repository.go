package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"storefront-service/internal/entity"
)

type CustomerRepository struct {
	db *sql.DB
}

func NewCustomerRepository(db *sql.DB) *CustomerRepository {
	return &CustomerRepository{db}
}

const customerColumns = `id, username, credential, display_name, email, api_key`

func (r *CustomerRepository) GetCustomerByID(ctx context.Context, id int64) (*entity.Customer, error) {
	return r.getOne(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
}

func (r *CustomerRepository) GetCustomerByUsername(ctx context.Context, username string) (*entity.Customer, error) {
	return r.getOne(ctx, `SELECT `+customerColumns+` FROM customers WHERE username = ?`, username)
}

func (r *CustomerRepository) GetCustomerByAPIKey(ctx context.Context, apiKey string) (*entity.Customer, error) {
	return r.getOne(ctx, `SELECT `+customerColumns+` FROM customers WHERE api_key = ?`, apiKey)
}

func (r *CustomerRepository) CreateCustomer(ctx context.Context, customer *entity.Customer) (*entity.Customer, error) {
	query := `INSERT INTO customers (username, credential, display_name, email, api_key) VALUES (?, ?, ?, ?, ?)`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, customer.Username, customer.Credential, customer.DisplayName, customer.Email, customer.APIKey)
	if err != nil {
		if isDuplicateEntry(err) {
			return nil, entity.ErrDuplicateCustomer
		}
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	customer.ID = id
	return customer, nil
}

func (r *CustomerRepository) getOne(ctx context.Context, query string, arg interface{}) (*entity.Customer, error) {
	c := &entity.Customer{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, arg).Scan(&c.ID, &c.Username, &c.Credential, &c.DisplayName, &c.Email, &c.APIKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrCustomerNotFound
		}
		return nil, err
	}
	return c, nil
}

// ER_DUP_ENTRY
const mysqlDuplicateEntry = 1062

func isDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
