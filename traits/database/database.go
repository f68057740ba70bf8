package database

import (
	"database/sql"
	"os"
	"yolda/config"

	"go.uber.org/zap"
)

// InitDatabase initializes the SQLite database
func InitDatabase(cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DBPath, 0755); err != nil {
		return nil, err
	}

	// Open database connection
	db, err := sql.Open("sqlite3", cfg.GetDatabasePath()+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Database initialized successfully",
		zap.String("path", cfg.GetDatabasePath()),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
	)

	return db, nil
}

// CreateTables creates users, regions, districts, orders and order_status tables
func CreateTables(db *sql.DB, logger *zap.Logger) error {
	usersTable := `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			telegram_id INTEGER NOT NULL UNIQUE,
			telegram_username TEXT DEFAULT '',
			first_name TEXT NOT NULL,
			last_name TEXT DEFAULT '',
			phone_number TEXT DEFAULT '',
			role TEXT NOT NULL DEFAULT 'PASSENGER' CHECK (role IN ('PASSENGER', 'DRIVER', 'ADMIN')),
			is_active BOOLEAN DEFAULT TRUE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`

	regionsTable := `
		CREATE TABLE IF NOT EXISTS regions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`

	districtsTable := `
		CREATE TABLE IF NOT EXISTS districts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			region_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (region_id, name),
			FOREIGN KEY (region_id) REFERENCES regions(id) ON DELETE CASCADE
		);`

	// channel_message_id lives on the order row so announcements survive
	// restarts and stay consistent with status changes.
	ordersTable := `
		CREATE TABLE IF NOT EXISTS orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL CHECK (kind IN ('TRIP', 'DELIVERY')),
			passenger_id TEXT NOT NULL,
			driver_id TEXT NULL,
			from_region_id INTEGER NOT NULL,
			from_district_id INTEGER NOT NULL,
			to_region_id INTEGER NOT NULL,
			to_district_id INTEGER NOT NULL,
			passengers INTEGER DEFAULT 0,
			departure_time DATETIME NULL,
			package_type TEXT DEFAULT '',
			package_size TEXT DEFAULT '',
			package_weight REAL NULL,
			package_description TEXT DEFAULT '',
			receiver_name TEXT DEFAULT '',
			receiver_phone TEXT DEFAULT '',
			channel_message_id INTEGER NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (passenger_id) REFERENCES users(id),
			FOREIGN KEY (driver_id) REFERENCES users(id),
			FOREIGN KEY (from_region_id) REFERENCES regions(id),
			FOREIGN KEY (from_district_id) REFERENCES districts(id),
			FOREIGN KEY (to_region_id) REFERENCES regions(id),
			FOREIGN KEY (to_district_id) REFERENCES districts(id)
		);`

	orderStatusTable := `
		CREATE TABLE IF NOT EXISTS order_status (
			order_id INTEGER PRIMARY KEY,
			status TEXT NOT NULL DEFAULT 'initiated' CHECK (status IN ('initiated', 'processing', 'completed', 'canceled', 'failed')),
			actor_id TEXT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE,
			FOREIGN KEY (actor_id) REFERENCES users(id)
		);`

	tables := []struct {
		name string
		sql  string
	}{
		{"users", usersTable},
		{"regions", regionsTable},
		{"districts", districtsTable},
		{"orders", ordersTable},
		{"order_status", orderStatusTable},
	}

	for _, table := range tables {
		if _, err := db.Exec(table.sql); err != nil {
			logger.Error("Failed to create table", zap.String("table", table.name), zap.Error(err))
			return err
		}
		logger.Info("Table created/verified", zap.String("table", table.name))
	}

	indexes := []struct {
		name string
		sql  string
	}{
		{
			name: "idx_users_telegram_id",
			sql:  "CREATE INDEX IF NOT EXISTS idx_users_telegram_id ON users(telegram_id);",
		},
		{
			name: "idx_users_role",
			sql:  "CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);",
		},
		{
			name: "idx_districts_region_id",
			sql:  "CREATE INDEX IF NOT EXISTS idx_districts_region_id ON districts(region_id);",
		},
		{
			name: "idx_orders_passenger_id",
			sql:  "CREATE INDEX IF NOT EXISTS idx_orders_passenger_id ON orders(passenger_id);",
		},
		{
			name: "idx_orders_created_at",
			sql:  "CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);",
		},
		{
			// The restart-recovery sweep scans by status.
			name: "idx_order_status_status",
			sql:  "CREATE INDEX IF NOT EXISTS idx_order_status_status ON order_status(status);",
		},
	}

	for _, index := range indexes {
		if _, err := db.Exec(index.sql); err != nil {
			logger.Warn("Failed to create index",
				zap.String("index", index.name),
				zap.Error(err),
			)
		} else {
			logger.Info("Index created/verified", zap.String("index", index.name))
		}
	}

	triggers := []struct {
		name string
		sql  string
	}{
		{
			name: "trigger_users_updated_at",
			sql: `
				CREATE TRIGGER IF NOT EXISTS trigger_users_updated_at
				AFTER UPDATE ON users
				BEGIN
					UPDATE users SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
				END;`,
		},
		{
			name: "trigger_order_status_updated_at",
			sql: `
				CREATE TRIGGER IF NOT EXISTS trigger_order_status_updated_at
				AFTER UPDATE ON order_status
				BEGIN
					UPDATE order_status SET updated_at = CURRENT_TIMESTAMP WHERE order_id = NEW.order_id;
				END;`,
		},
	}

	for _, trigger := range triggers {
		if _, err := db.Exec(trigger.sql); err != nil {
			logger.Warn("Failed to create trigger",
				zap.String("trigger", trigger.name),
				zap.Error(err))
		} else {
			logger.Info("Trigger created/verified", zap.String("trigger", trigger.name))
		}
	}

	logger.Info("Database schema created successfully")
	return nil
}
