package models

import (
	"time"
)

// User represents a wallet-holding account (customer or car owner)
type User struct {
	ID          int       `json:"id" db:"id"`
	Email       string    `json:"email" db:"email"`
	Name        string    `json:"name" db:"name"`
	PhoneNumber string    `json:"phone_number" db:"phone_number"`
	Wallet      int64     `json:"wallet" db:"wallet"` // VND
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
