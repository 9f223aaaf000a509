package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sobytnik/internal/domain"
	"sobytnik/internal/models"
)

// UpsertUser создает или обновляет пользователя справочника.
func (db *DB) UpsertUser(ctx context.Context, user *models.User) error {
	query := `
        INSERT INTO users (id, email, first_name, last_name, role, email_verified, deleted, telegram_id, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            email = excluded.email,
            first_name = excluded.first_name,
            last_name = excluded.last_name,
            role = excluded.role,
            email_verified = excluded.email_verified,
            deleted = excluded.deleted,
            telegram_id = excluded.telegram_id,
            updated_at = excluded.updated_at
    `

	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.Role,
		user.EmailVerified,
		user.Deleted,
		user.TelegramID,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (db *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT id, email, COALESCE(first_name, ''), COALESCE(last_name, ''),
                     role, email_verified, deleted, COALESCE(telegram_id, 0), created_at, updated_at
              FROM users WHERE id = ?`

	user := &models.User{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.EmailVerified,
		&user.Deleted,
		&user.TelegramID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
