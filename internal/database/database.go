package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	_ "github.com/mattn/go-sqlite3"
)

// DB — SQLite-хранилище броней, мероприятий и пользователей.
// Реализует domain.BookingStore, domain.EventStore, domain.UserDirectory
// и domain.TxManager.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		// Создаем директорию для БД, если её нет
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// busy_timeout нужен, чтобы конкурирующие транзакции ждали блокировку
	// мероприятия, а не падали с SQLITE_BUSY.
	dsn := path
	if path != ":memory:" && !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=10000&_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{DB: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Таблица мероприятий
		`CREATE TABLE IF NOT EXISTS events (
            id INTEGER PRIMARY KEY,
            title TEXT NOT NULL,
            date DATETIME,
            end_date DATETIME,
            booking_deadline DATETIME,
            number_of_places INTEGER NOT NULL DEFAULT 0,
            audience_tags TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'OPEN',
            allow_group_reservation BOOLEAN NOT NULL DEFAULT 0,
            group_reservation_limit INTEGER NOT NULL DEFAULT 0,
            group_token TEXT,
            lock_owner INTEGER NOT NULL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		// Таблица броней. Одна строка на пару (мероприятие, пользователь):
		// повторная запись после отмены обновляет существующую строку.
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            event_id INTEGER NOT NULL,
            user_id INTEGER NOT NULL,
            reserved_by INTEGER,
            status TEXT NOT NULL,
            booking_date DATETIME NOT NULL,
            updated DATETIME NOT NULL,
            additional_info TEXT NOT NULL DEFAULT '{}',
            UNIQUE(event_id, user_id)
        )`,
		// Таблица пользователей
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY,
            email TEXT NOT NULL,
            first_name TEXT,
            last_name TEXT,
            role TEXT NOT NULL DEFAULT 'STUDENT',
            email_verified BOOLEAN NOT NULL DEFAULT 0,
            deleted BOOLEAN NOT NULL DEFAULT 0,
            telegram_id INTEGER,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_event_id ON bookings(event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_event_status ON bookings(event_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_reserved_by ON bookings(reserved_by)`,
		`CREATE INDEX IF NOT EXISTS idx_users_role ON users(role)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
