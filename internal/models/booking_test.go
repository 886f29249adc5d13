package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRentalTotal(t *testing.T) {
	start := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)

	t.Run("full day at daily price", func(t *testing.T) {
		b := &Booking{StartDateTime: start, EndDateTime: start.Add(24 * time.Hour)}
		assert.Equal(t, int64(24), b.NumberOfHours())
		assert.Equal(t, int64(240), b.RentalTotal(240))
	})

	t.Run("partial hours are truncated", func(t *testing.T) {
		b := &Booking{StartDateTime: start, EndDateTime: start.Add(6*time.Hour + 45*time.Minute)}
		assert.Equal(t, int64(6), b.NumberOfHours())
		assert.Equal(t, int64(60), b.RentalTotal(240))
	})

	t.Run("multi day window", func(t *testing.T) {
		b := &Booking{StartDateTime: start, EndDateTime: start.Add(72 * time.Hour)}
		assert.Equal(t, int64(720), b.RentalTotal(240))
	})
}
