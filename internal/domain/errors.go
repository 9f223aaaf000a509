package domain

import "errors"

var (
	ErrEventNotFound   = errors.New("event not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrBookingNotFound = errors.New("booking not found")
)

var (
	ErrEventFull                    = errors.New("event is full")
	ErrEventCancelled               = errors.New("event is cancelled")
	ErrDeadlinePassed               = errors.New("booking deadline has passed")
	ErrEmailNotVerified             = errors.New("email must be verified before booking")
	ErrAlreadyBooked                = errors.New("user already has an active booking for this event")
	ErrGroupReservationsDisabled    = errors.New("event does not allow group reservations")
	ErrGroupReservationLimitReached = errors.New("group reservation limit reached")
)

var (
	ErrNotPromotable = errors.New("booking is not in a promotable status")
	ErrForbidden     = errors.New("operation is not permitted for this user")
	ErrTemplate      = errors.New("notification template error")
)
