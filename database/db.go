package database

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func InitDB(logger *zap.Logger) (*sql.DB, error) {
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	password := getEnv("DB_PASSWORD", "postgres")
	dbname := getEnv("DB_NAME", "fulfillmentdb")

	psqlInfo := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := bootstrapSchema(db); err != nil {
		return nil, fmt.Errorf("failed to bootstrap schema: %w", err)
	}

	logger.Info("Database connection established")
	return db, nil
}

func bootstrapSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS customers (
		id SERIAL PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		name VARCHAR(255) NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS orders (
		id SERIAL PRIMARY KEY,
		order_number VARCHAR(64) NOT NULL UNIQUE,
		customer_id INTEGER NOT NULL REFERENCES customers(id),
		status VARCHAR(32) NOT NULL DEFAULT 'pending',
		payment_status VARCHAR(32) NOT NULL DEFAULT 'unpaid',
		payment_reference VARCHAR(255) NOT NULL UNIQUE,
		subtotal DECIMAL(10, 2) NOT NULL DEFAULT 0,
		total DECIMAL(10, 2) NOT NULL DEFAULT 0 CHECK (total >= 0),
		coupon_code VARCHAR(64),
		shipping_name VARCHAR(255) NOT NULL DEFAULT '',
		shipping_address VARCHAR(255) NOT NULL DEFAULT '',
		shipping_city VARCHAR(128) NOT NULL DEFAULT '',
		shipping_postal_code VARCHAR(32) NOT NULL DEFAULT '',
		shipping_country VARCHAR(64) NOT NULL DEFAULT '',
		tracking_number VARCHAR(128),
		tracking_url VARCHAR(512),
		supplier_order_id VARCHAR(128),
		supplier_order_url VARCHAR(512),
		admin_notes TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		shipped_at TIMESTAMP,
		delivered_at TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS order_items (
		id SERIAL PRIMARY KEY,
		order_id INTEGER NOT NULL REFERENCES orders(id),
		product_id INTEGER NOT NULL,
		product_name VARCHAR(255) NOT NULL,
		image_url VARCHAR(512) NOT NULL DEFAULT '',
		unit_price DECIMAL(10, 2) NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0)
	);

	CREATE TABLE IF NOT EXISTS coupons (
		id SERIAL PRIMARY KEY,
		code VARCHAR(64) NOT NULL UNIQUE,
		discount_type VARCHAR(16) NOT NULL,
		discount_value DECIMAL(10, 2) NOT NULL CHECK (discount_value >= 0),
		max_uses INTEGER,
		current_uses INTEGER NOT NULL DEFAULT 0,
		min_order_amount DECIMAL(10, 2),
		max_discount_amount DECIMAL(10, 2),
		start_date TIMESTAMP,
		end_date TIMESTAMP,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS products (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		price DECIMAL(10, 2) NOT NULL,
		base_price DECIMAL(10, 2) NOT NULL DEFAULT 0,
		stock_quantity INTEGER CHECK (stock_quantity >= 0),
		image_url VARCHAR(512) NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS carts (
		session_id VARCHAR(128) PRIMARY KEY,
		customer_email VARCHAR(255),
		items JSONB NOT NULL DEFAULT '[]',
		total DECIMAL(10, 2) NOT NULL DEFAULT 0,
		recovery_email_sent BOOLEAN NOT NULL DEFAULT FALSE,
		last_updated TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS admins (
		id SERIAL PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_carts_last_updated ON carts (last_updated);
	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status);
	`

	_, err := db.Exec(schema)
	return err
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
