package models

import (
	"time"
)

// Car represents a rentable car owned by a user
type Car struct {
	ID           int       `json:"id" db:"id"`
	OwnerID      int       `json:"owner_id" db:"owner_id"`
	Name         string    `json:"name" db:"name"`
	LicensePlate string    `json:"license_plate" db:"license_plate"`
	BasePrice    int64     `json:"base_price" db:"base_price"` // VND per 24h
	Deposit      int64     `json:"deposit" db:"deposit"`       // VND held at booking creation
	IsActive     bool      `json:"is_active" db:"is_active"`
	IsAvailable  bool      `json:"is_available" db:"is_available"`
	IsStopped    bool      `json:"is_stopped" db:"is_stopped"` // taken out of rotation permanently
	PhotoURL     string    `json:"photo_url" db:"photo_url"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// HourlyRate is the pro-rated rate used for late fees.
func (c *Car) HourlyRate() float64 {
	return float64(c.BasePrice) / 24.0
}
