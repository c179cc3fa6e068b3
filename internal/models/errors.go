package models

import "errors"

var (
	ErrSlotUnavailable  = errors.New("slot unavailable")
	ErrDuplicateBooking = errors.New("duplicate booking")
	ErrServiceNotFound  = errors.New("service not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrNotOwner         = errors.New("booking belongs to another user")
	ErrPastDate         = errors.New("cannot book in the past")
)
