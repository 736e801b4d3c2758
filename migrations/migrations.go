package migrations

import (
	"database/sql"
	"fmt"
	"time"
)

var tables = []struct {
	name  string
	query string
}{
	{"customers", `
		CREATE TABLE IF NOT EXISTS customers (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			username VARCHAR(50) NOT NULL UNIQUE,
			credential VARCHAR(255) NOT NULL,
			display_name VARCHAR(100) NOT NULL,
			email VARCHAR(255) NOT NULL,
			api_key VARCHAR(64) NOT NULL UNIQUE
		);
	`},
	{"items", `
		CREATE TABLE IF NOT EXISTS items (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			price BIGINT NOT NULL CHECK (price >= 0),
			stock INT NULL
		);
	`},
	{"orders", `
		CREATE TABLE IF NOT EXISTS orders (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			customer_id BIGINT NOT NULL,
			date DATETIME NOT NULL,
			total_price BIGINT NOT NULL,
			delivery_status VARCHAR(20) NOT NULL,
			INDEX idx_orders_customer (customer_id),
			INDEX idx_orders_delivery (delivery_status),
			FOREIGN KEY (customer_id) REFERENCES customers(id)
		);
	`},
	{"order_items", `
		CREATE TABLE IF NOT EXISTS order_items (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			order_id BIGINT NOT NULL,
			item_id BIGINT NOT NULL,
			quantity INT NOT NULL CHECK (quantity >= 1),
			unit_price BIGINT NOT NULL,
			FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE,
			FOREIGN KEY (item_id) REFERENCES items(id)
		);
	`},
}

// AutoMigrate creates every table that does not exist yet, retrying each
// statement while the database is still coming up.
func AutoMigrate(retries int, db *sql.DB) error {
	for _, t := range tables {
		var err error
		for i := 0; i <= retries; i++ {
			if i > 0 {
				time.Sleep(1 * time.Second)
			}
			if _, err = db.Exec(t.query); err == nil {
				break
			}
		}
		if err != nil {
			return fmt.Errorf("migrate %s: %w", t.name, err)
		}
	}
	return nil
}
