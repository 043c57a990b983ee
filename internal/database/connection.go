package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DB is the global database connection
var DB *sqlx.DB

// Connect establishes the database connection selected by DB_TYPE
// ("sqlite", the default, or "postgres") and initializes the schema.
func Connect() error {
	dbType := strings.ToLower(os.Getenv("DB_TYPE"))
	if dbType == "" {
		dbType = "sqlite"
	}

	switch dbType {
	case "sqlite", "sqlite3":
		path := os.Getenv("DB_PATH")
		if path == "" {
			path = filepath.Join("data", "flashdeck.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		return openSQLite(path)
	case "postgres":
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			return fmt.Errorf("DATABASE_URL is not set")
		}
		return openPostgres(dsn)
	default:
		return fmt.Errorf("unsupported DB_TYPE %q", dbType)
	}
}

// Close closes the database connection
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

func openSQLite(path string) error {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// SQLite doesn't support multiple writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	DB = db
	return initializeSchema()
}

func openPostgres(dsn string) error {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	DB = db
	return initializeSchema()
}

// pkColumn is the auto-increment primary key fragment for the active driver.
func pkColumn() string {
	if DB.DriverName() == "postgres" {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema() error {
	_, err := DB.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS users (
			id %s,
			telegram_id BIGINT UNIQUE NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			is_admin BOOLEAN NOT NULL DEFAULT false,
			is_demo BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`, pkColumn()))
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	_, err = DB.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS decks (
			id %s,
			user_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			daily_scaler DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id),
			UNIQUE(user_id, name)
		)
	`, pkColumn()))
	if err != nil {
		return fmt.Errorf("failed to create decks table: %w", err)
	}

	_, err = DB.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS cards (
			id %s,
			deck_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			front TEXT NOT NULL,
			back TEXT NOT NULL DEFAULT '',
			state INTEGER NOT NULL DEFAULT 0,
			due TIMESTAMP,
			stability DOUBLE PRECISION NOT NULL DEFAULT 0,
			difficulty DOUBLE PRECISION NOT NULL DEFAULT 0,
			elapsed_days INTEGER NOT NULL DEFAULT 0,
			scheduled_days INTEGER NOT NULL DEFAULT 0,
			reps INTEGER NOT NULL DEFAULT 0,
			lapses INTEGER NOT NULL DEFAULT 0,
			last_review TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (deck_id) REFERENCES decks(id),
			FOREIGN KEY (user_id) REFERENCES users(id)
		)
	`, pkColumn()))
	if err != nil {
		return fmt.Errorf("failed to create cards table: %w", err)
	}

	_, err = DB.Exec(`
		CREATE TABLE IF NOT EXISTS user_settings (
			user_id BIGINT PRIMARY KEY,
			request_retention DOUBLE PRECISION NOT NULL,
			maximum_interval INTEGER NOT NULL,
			weights TEXT NOT NULL,
			enable_fuzz BOOLEAN NOT NULL,
			enable_short_term BOOLEAN NOT NULL,
			new_per_day INTEGER NOT NULL,
			max_reviews_per_day INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create user_settings table: %w", err)
	}

	_, err = DB.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS review_logs (
			id %s,
			user_id BIGINT NOT NULL,
			card_id BIGINT NOT NULL,
			deck_id BIGINT NOT NULL,
			rating INTEGER NOT NULL,
			prev_state INTEGER NOT NULL,
			new_state INTEGER NOT NULL,
			prev_due TIMESTAMP,
			new_due TIMESTAMP NOT NULL,
			prev_stability DOUBLE PRECISION NOT NULL,
			new_stability DOUBLE PRECISION NOT NULL,
			prev_difficulty DOUBLE PRECISION NOT NULL,
			new_difficulty DOUBLE PRECISION NOT NULL,
			elapsed_days INTEGER NOT NULL,
			scheduled_days INTEGER NOT NULL,
			reviewed_at TIMESTAMP NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)
	`, pkColumn()))
	if err != nil {
		return fmt.Errorf("failed to create review_logs table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_cards_user_state_due ON cards(user_id, state, due)",
		"CREATE INDEX IF NOT EXISTS idx_cards_deck ON cards(deck_id)",
		"CREATE INDEX IF NOT EXISTS idx_review_logs_user_time ON review_logs(user_id, reviewed_at)",
		"CREATE INDEX IF NOT EXISTS idx_review_logs_deck ON review_logs(deck_id)",
	}
	for _, stmt := range indexes {
		if _, err := DB.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}
