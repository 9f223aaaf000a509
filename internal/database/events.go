package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"sobytnik/internal/domain"
	"sobytnik/internal/models"
)

// UpsertEvent создает или обновляет мероприятие. Используется при загрузке
// мероприятий из конфигурации и внешними системами управления контентом.
func (db *DB) UpsertEvent(ctx context.Context, event *models.Event) error {
	query := `
        INSERT INTO events (id, title, date, end_date, booking_deadline, number_of_places,
                            audience_tags, status, allow_group_reservation, group_reservation_limit,
                            group_token, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            title = excluded.title,
            date = excluded.date,
            end_date = excluded.end_date,
            booking_deadline = excluded.booking_deadline,
            number_of_places = excluded.number_of_places,
            audience_tags = excluded.audience_tags,
            status = excluded.status,
            allow_group_reservation = excluded.allow_group_reservation,
            group_reservation_limit = excluded.group_reservation_limit,
            group_token = excluded.group_token,
            updated_at = excluded.updated_at
    `

	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, query,
		event.ID,
		event.Title,
		event.Date,
		event.EndDate,
		event.BookingDeadline,
		event.NumberOfPlaces,
		strings.Join(event.AudienceTags, ","),
		event.Status,
		event.AllowGroupReservation,
		event.GroupReservationLimit,
		event.GroupToken,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert event: %w", err)
	}
	return nil
}

func (db *DB) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	query := `SELECT id, title, date, end_date, booking_deadline, number_of_places,
                     audience_tags, status, allow_group_reservation, group_reservation_limit,
                     COALESCE(group_token, '')
              FROM events WHERE id = ?`

	event := &models.Event{}
	var tags string
	err := db.QueryRowContext(ctx, query, id).Scan(
		&event.ID,
		&event.Title,
		&event.Date,
		&event.EndDate,
		&event.BookingDeadline,
		&event.NumberOfPlaces,
		&tags,
		&event.Status,
		&event.AllowGroupReservation,
		&event.GroupReservationLimit,
		&event.GroupToken,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	if tags != "" {
		event.AudienceTags = strings.Split(tags, ",")
	}
	return event, nil
}

// UpdateEventStatus переводит мероприятие в новый статус (OPEN,
// WAITING_LIST_ONLY, FULLY_BOOKED, CANCELLED). Переход управляется извне
// движка бронирования.
func (db *DB) UpdateEventStatus(ctx context.Context, id int64, status models.EventStatus) error {
	result, err := db.ExecContext(ctx,
		`UPDATE events SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}
	if rows == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}
