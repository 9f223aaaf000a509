package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"sobytnik/internal/domain"
	"sobytnik/internal/models"
)

// LockEvent берет эксклюзивную блокировку мероприятия: запись в строку
// events переводит транзакцию SQLite в режим писателя, и конкурирующие
// мутации того же (и любого другого) мероприятия ждут коммита. Блокировка
// видна между процессами, так как живет на уровне файла БД.
func (db *DB) LockEvent(ctx context.Context, tx domain.Tx, eventID int64) error {
	stx, err := sqlTx(tx)
	if err != nil {
		return err
	}

	result, err := stx.ExecContext(ctx,
		`UPDATE events SET lock_owner = lock_owner + 1 WHERE id = ?`, eventID)
	if err != nil {
		return fmt.Errorf("failed to lock event %d: %w", eventID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to lock event %d: %w", eventID, err)
	}
	if rows == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

const bookingColumns = `id, event_id, user_id, reserved_by, status, booking_date, updated, additional_info`

func scanBooking(row interface{ Scan(...any) error }) (*models.Booking, error) {
	b := &models.Booking{}
	var reservedBy sql.NullInt64
	var infoJSON string
	err := row.Scan(&b.ID, &b.EventID, &b.UserID, &reservedBy, &b.Status,
		&b.BookingDate, &b.Updated, &infoJSON)
	if err != nil {
		return nil, err
	}
	if reservedBy.Valid {
		b.ReservedBy = &reservedBy.Int64
	}
	if infoJSON != "" && infoJSON != "{}" {
		if err := json.Unmarshal([]byte(infoJSON), &b.AdditionalInfo); err != nil {
			return nil, fmt.Errorf("failed to decode additional info: %w", err)
		}
	}
	return b, nil
}

// FindBooking возвращает бронь пары (мероприятие, пользователь) или nil.
func (db *DB) FindBooking(ctx context.Context, eventID, userID int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE event_id = ? AND user_id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, eventID, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return booking, nil
}

func (db *DB) FindBookingsByEvent(ctx context.Context, eventID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE event_id = ?
              ORDER BY booking_date ASC, id ASC`
	return db.queryBookings(ctx, query, eventID)
}

// FindBookingsByEventAndStatus возвращает брони статуса, упорядоченные по
// дате создания. Порядок обязателен: продвижение из листа ожидания берет
// самую раннюю бронь.
func (db *DB) FindBookingsByEventAndStatus(ctx context.Context, eventID int64, status models.BookingStatus) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE event_id = ? AND status = ?
              ORDER BY booking_date ASC, id ASC`
	return db.queryBookings(ctx, query, eventID, status)
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// StatusCounts собирает снимок статус → роль → количество для мероприятия.
// Брони анонимизированных пользователей исключаются, если includeDeletedUsers
// не выставлен.
func (db *DB) StatusCounts(ctx context.Context, eventID int64, includeDeletedUsers bool) (models.StatusCounts, error) {
	query := `SELECT b.status, COALESCE(u.role, 'STUDENT'), COUNT(*)
              FROM bookings b
              LEFT JOIN users u ON u.id = b.user_id
              WHERE b.event_id = ? AND (? = 1 OR COALESCE(u.deleted, 0) = 0)
              GROUP BY b.status, u.role`

	include := 0
	if includeDeletedUsers {
		include = 1
	}

	rows, err := db.QueryContext(ctx, query, eventID, include)
	if err != nil {
		return nil, fmt.Errorf("failed to get status counts: %w", err)
	}
	defer rows.Close()

	counts := models.StatusCounts{}
	for rows.Next() {
		var status models.BookingStatus
		var role models.Role
		var n int64
		if err := rows.Scan(&status, &role, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts.Add(status, role, n)
	}
	return counts, rows.Err()
}

// CreateBooking вставляет новую бронь внутри транзакции вызывающей стороны.
func (db *DB) CreateBooking(ctx context.Context, tx domain.Tx, booking *models.Booking) error {
	stx, err := sqlTx(tx)
	if err != nil {
		return err
	}

	infoJSON, err := encodeAdditionalInfo(booking.AdditionalInfo)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if booking.BookingDate.IsZero() {
		booking.BookingDate = now
	}
	booking.Updated = now

	var reservedBy sql.NullInt64
	if booking.ReservedBy != nil {
		reservedBy = sql.NullInt64{Int64: *booking.ReservedBy, Valid: true}
	}

	query := `INSERT INTO bookings (event_id, user_id, reserved_by, status, booking_date, updated, additional_info)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	result, err := stx.ExecContext(ctx, query,
		booking.EventID,
		booking.UserID,
		reservedBy,
		booking.Status,
		booking.BookingDate,
		booking.Updated,
		infoJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	return nil
}

// UpdateBookingStatus переводит бронь в новый статус. reserved_by
// выставляется в переданное значение (nil очищает); additionalInfo nil
// оставляет прежнюю информацию.
func (db *DB) UpdateBookingStatus(ctx context.Context, tx domain.Tx, eventID, userID int64, reservedBy *int64, status models.BookingStatus, additionalInfo map[string]string) (*models.Booking, error) {
	stx, err := sqlTx(tx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	var reserved sql.NullInt64
	if reservedBy != nil {
		reserved = sql.NullInt64{Int64: *reservedBy, Valid: true}
	}

	var result sql.Result
	if additionalInfo != nil {
		infoJSON, err := encodeAdditionalInfo(additionalInfo)
		if err != nil {
			return nil, err
		}
		result, err = stx.ExecContext(ctx,
			`UPDATE bookings SET status = ?, reserved_by = ?, additional_info = ?, updated = ?
             WHERE event_id = ? AND user_id = ?`,
			status, reserved, infoJSON, now, eventID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to update booking status: %w", err)
		}
	} else {
		result, err = stx.ExecContext(ctx,
			`UPDATE bookings SET status = ?, reserved_by = ?, updated = ?
             WHERE event_id = ? AND user_id = ?`,
			status, reserved, now, eventID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to update booking status: %w", err)
		}
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}
	if rows == 0 {
		return nil, domain.ErrBookingNotFound
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE event_id = ? AND user_id = ?`
	booking, err := scanBooking(stx.QueryRowContext(ctx, query, eventID, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to reload booking: %w", err)
	}
	return booking, nil
}

func encodeAdditionalInfo(info map[string]string) (string, error) {
	if len(info) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return "", fmt.Errorf("failed to encode additional info: %w", err)
	}
	return string(raw), nil
}
