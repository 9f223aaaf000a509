package models

// Шаблоны уведомлений.
const (
	TemplateBookingConfirmed   = "booking_confirmed"
	TemplateBookingWaitlisted  = "booking_waitlisted"
	TemplateBookingPromoted    = "booking_promoted"
	TemplateBookingCancelled   = "booking_cancelled"
	TemplateReservationRequest = "reservation_requested"
	TemplateReservationRecap   = "reservation_recap"
)

// Каналы доставки уведомлений.
const (
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
)

const (
	// NotifyQueueSize размер локальной очереди уведомлений
	NotifyQueueSize = 256

	// DefaultGroupReservationLimit лимит групповых броней по умолчанию
	DefaultGroupReservationLimit = 10

	// RateLimitRPS / RateLimitBurst значения лимитера API по умолчанию
	RateLimitRPS   = 10
	RateLimitBurst = 5
)
