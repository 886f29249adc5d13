package models

import (
	"time"
)

type BookingStatus string

const (
	BookingStatusPendingDeposit BookingStatus = "PENDING_DEPOSIT"
	BookingStatusConfirmed      BookingStatus = "CONFIRMED"
	BookingStatusPickUp         BookingStatus = "PICK_UP"
	BookingStatusPendingPayment BookingStatus = "PENDING_PAYMENT"
	BookingStatusCompleted      BookingStatus = "COMPLETED"
	BookingStatusCancelled      BookingStatus = "CANCELLED"
)

// Booking represents one rental of a car for a time window
type Booking struct {
	ID              int           `json:"id" db:"id"`
	CarID           int           `json:"car_id" db:"car_id"`
	UserID          int           `json:"user_id" db:"user_id"`
	StartDateTime   time.Time     `json:"start_date_time" db:"start_date_time"`
	EndDateTime     time.Time     `json:"end_date_time" db:"end_date_time"`
	Status          BookingStatus `json:"status" db:"status"`
	Note            string        `json:"note" db:"note"`
	LateMinute      int           `json:"late_minute" db:"late_minute"`
	ExtraFee        int64         `json:"extra_fee" db:"extra_fee"`
	CompensationFee int64         `json:"compensation_fee" db:"compensation_fee"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// NumberOfHours returns the whole hours in the booking window.
func (b *Booking) NumberOfHours() int64 {
	return int64(b.EndDateTime.Sub(b.StartDateTime).Hours())
}

// RentalTotal computes the rent for the window at the car's daily price.
// Always derived from the window, never stored.
func (b *Booking) RentalTotal(basePrice int64) int64 {
	return b.NumberOfHours() * basePrice / 24
}
