package models

import "time"

type EventStatus string

const (
	EventOpen            EventStatus = "OPEN"
	EventWaitingListOnly EventStatus = "WAITING_LIST_ONLY"
	EventFullyBooked     EventStatus = "FULLY_BOOKED"
	EventCancelled       EventStatus = "CANCELLED"
)

// Теги аудитории мероприятия.
const (
	TagStudent = "student"
	TagTeacher = "teacher"
)

// Event — мероприятие с фиксированным числом мест. Движок бронирования
// не изменяет мероприятие, только читает его параметры.
type Event struct {
	ID                    int64       `json:"id" yaml:"id"`
	Title                 string      `json:"title" yaml:"title"`
	Date                  time.Time   `json:"date" yaml:"date"`
	EndDate               time.Time   `json:"end_date" yaml:"end_date"`
	BookingDeadline       time.Time   `json:"booking_deadline" yaml:"booking_deadline"`
	NumberOfPlaces        int64       `json:"number_of_places" yaml:"number_of_places"`
	AudienceTags          []string    `json:"audience_tags" yaml:"audience_tags"`
	Status                EventStatus `json:"status" yaml:"status"`
	AllowGroupReservation bool        `json:"allow_group_reservation" yaml:"allow_group_reservation"`
	GroupReservationLimit int64       `json:"group_reservation_limit" yaml:"group_reservation_limit"` // 0 = без лимита
	GroupToken            string      `json:"group_token,omitempty" yaml:"group_token"`
}

// Targets сообщает, входит ли роль в целевую аудиторию мероприятия.
// Роли, не входящие в аудиторию, не учитываются при подсчете мест.
func (e *Event) Targets(role Role) bool {
	student := false
	teacher := false
	for _, tag := range e.AudienceTags {
		switch tag {
		case TagStudent:
			student = true
		case TagTeacher:
			teacher = true
		}
	}
	// Мероприятие без тегов считается студенческим.
	if !student && !teacher {
		student = true
	}

	if role == RoleStudent {
		return student
	}
	return teacher
}

// DeadlinePassed проверяет, истек ли срок записи на момент now.
func (e *Event) DeadlinePassed(now time.Time) bool {
	return !e.BookingDeadline.IsZero() && !now.Before(e.BookingDeadline)
}
