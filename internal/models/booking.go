package models

import "time"

type BookingStatus string

const (
	StatusConfirmed   BookingStatus = "CONFIRMED"
	StatusWaitingList BookingStatus = "WAITING_LIST"
	StatusReserved    BookingStatus = "RESERVED"
	StatusCancelled   BookingStatus = "CANCELLED"
	StatusAttended    BookingStatus = "ATTENDED"
	StatusAbsent      BookingStatus = "ABSENT"
)

// Booking — заявка пользователя на место на мероприятии.
// ReservedBy заполняется только для броней, созданных от имени пользователя.
type Booking struct {
	ID             int64             `json:"id"`
	EventID        int64             `json:"event_id"`
	UserID         int64             `json:"user_id"`
	ReservedBy     *int64            `json:"reserved_by,omitempty"`
	Status         BookingStatus     `json:"status"`
	BookingDate    time.Time         `json:"booking_date"`
	Updated        time.Time         `json:"updated"`
	AdditionalInfo map[string]string `json:"additional_info,omitempty"`
}

// IsActive сообщает, занимает ли бронь место (нетерминальный статус).
func (b *Booking) IsActive() bool {
	switch b.Status {
	case StatusConfirmed, StatusWaitingList, StatusReserved:
		return true
	default:
		return false
	}
}

// BookingView is the PII-stripped projection returned to non-privileged callers.
type BookingView struct {
	ID          int64         `json:"id"`
	EventID     int64         `json:"event_id"`
	Status      BookingStatus `json:"status"`
	BookingDate time.Time     `json:"booking_date"`
	Updated     time.Time     `json:"updated"`
	Reserved    bool          `json:"reserved"`
}

// DetailedBookingView carries user PII and is gated by event-manage permissions.
type DetailedBookingView struct {
	BookingView
	UserID         int64             `json:"user_id"`
	UserName       string            `json:"user_name"`
	UserEmail      string            `json:"user_email"`
	UserRole       Role              `json:"user_role"`
	ReservedBy     *int64            `json:"reserved_by,omitempty"`
	AdditionalInfo map[string]string `json:"additional_info,omitempty"`
}

// View строит проекцию без персональных данных.
func (b *Booking) View() BookingView {
	return BookingView{
		ID:          b.ID,
		EventID:     b.EventID,
		Status:      b.Status,
		BookingDate: b.BookingDate,
		Updated:     b.Updated,
		Reserved:    b.ReservedBy != nil,
	}
}

// DetailedView строит проекцию с персональными данными для менеджеров мероприятия.
func (b *Booking) DetailedView(user *User) DetailedBookingView {
	view := DetailedBookingView{
		BookingView:    b.View(),
		UserID:         b.UserID,
		ReservedBy:     b.ReservedBy,
		AdditionalInfo: b.AdditionalInfo,
	}
	if user != nil {
		view.UserName = user.DisplayName()
		view.UserEmail = user.Email
		view.UserRole = user.Role
	}
	return view
}
