package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carlink/backend/internal/models"
)

// pickUpGracePeriod is how long after the start time a confirmed booking may
// wait for pick-up before the sweeper force-cancels it.
const pickUpGracePeriod = 30 * time.Minute

// BookingStateError reports an illegal lifecycle transition. The booking and
// all wallet state are left untouched.
type BookingStateError struct {
	Current  models.BookingStatus
	Required models.BookingStatus
}

func (e *BookingStateError) Error() string {
	return fmt.Sprintf("booking is %s, operation requires %s", e.Current, e.Required)
}

var errBookingNotFound = errors.New("booking not found")

// BookingService drives the booking lifecycle. Every transition runs in one
// database transaction covering the status check, the wallet movements and
// the car availability flip.
type BookingService struct {
	db        *sql.DB
	wallet    *WalletLedgerService
	mailer    *MailService
	validator *ValidationHelper
	now       func() time.Time
}

func NewBookingService(db *sql.DB, mailer *MailService) *BookingService {
	return &BookingService{
		db:        db,
		wallet:    NewWalletLedgerService(db),
		mailer:    mailer,
		validator: NewValidationHelper(),
		now:       time.Now,
	}
}

type AddBookingRequest struct {
	CarID         int       `json:"carId" validate:"required,gt=0"`
	StartDateTime time.Time `json:"startDateTime" validate:"required"`
	EndDateTime   time.Time `json:"endDateTime" validate:"required"`
}

type ReturnCarRequest struct {
	Note            string `json:"note,omitempty"`
	CompensationFee int64  `json:"compensationFee,omitempty" validate:"omitempty,gte=0"`
}

func (bs *BookingService) getBookingTx(tx *sql.Tx, id int) (*models.Booking, error) {
	var b models.Booking
	err := tx.QueryRow(`
		SELECT id, car_id, user_id, start_date_time, end_date_time, status, note, late_minute, extra_fee, compensation_fee, created_at, updated_at
		FROM bookings
		WHERE id = $1
		FOR UPDATE`, id).Scan(
		&b.ID, &b.CarID, &b.UserID, &b.StartDateTime, &b.EndDateTime, &b.Status,
		&b.Note, &b.LateMinute, &b.ExtraFee, &b.CompensationFee, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errBookingNotFound
	}
	return &b, err
}

func (bs *BookingService) getCarTx(tx *sql.Tx, id int) (*models.Car, error) {
	var c models.Car
	err := tx.QueryRow(`
		SELECT id, owner_id, name, license_plate, base_price, deposit, is_active, is_available, is_stopped, photo_url, created_at
		FROM cars
		WHERE id = $1
		FOR UPDATE`, id).Scan(
		&c.ID, &c.OwnerID, &c.Name, &c.LicensePlate, &c.BasePrice, &c.Deposit,
		&c.IsActive, &c.IsAvailable, &c.IsStopped, &c.PhotoURL, &c.CreatedAt)
	return &c, err
}

func (bs *BookingService) setBookingStatusTx(tx *sql.Tx, id int, status models.BookingStatus) error {
	_, err := tx.Exec(`
		UPDATE bookings
		SET status = $1, updated_at = $2
		WHERE id = $3`, status, bs.now(), id)
	return err
}

func (bs *BookingService) setCarAvailabilityTx(tx *sql.Tx, carID int, available bool) error {
	_, err := tx.Exec(`
		UPDATE cars
		SET is_available = $1
		WHERE id = $2`, available, carID)
	return err
}

func (bs *BookingService) hasScheduleConflictTx(tx *sql.Tx, carID int, start, end time.Time) (bool, error) {
	var conflict bool
	err := tx.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE car_id = $1
			  AND status IN ('PENDING_DEPOSIT', 'CONFIRMED', 'PICK_UP', 'PENDING_PAYMENT')
			  AND start_date_time < $3
			  AND end_date_time > $2
		)`, carID, start, end).Scan(&conflict)
	return conflict, err
}

func (bs *BookingService) userEmail(userID int) string {
	var email string
	if err := bs.db.QueryRow(`SELECT email FROM users WHERE id = $1`, userID).Scan(&email); err != nil {
		return ""
	}
	return email
}

// CreateBooking books a car for a time window, holding the deposit
// @Summary Create a booking
// @Description Books the car, debits the deposit from the customer and credits it to the owner
// @Tags bookings
// @Accept json
// @Produce json
// @Param request body AddBookingRequest true "Booking window"
// @Success 201 {object} models.Booking
// @Failure 400 {object} ErrorResponse
// @Failure 402 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Security BearerAuth
// @Router /bookings [post]
func (bs *BookingService) CreateBooking(w http.ResponseWriter, r *http.Request) {
	userID, err := CurrentUserID(r)
	if err != nil {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req AddBookingRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := bs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if !req.EndDateTime.After(req.StartDateTime) {
		SendErrorResponse(w, "End time must be after start time", http.StatusBadRequest, nil)
		return
	}

	booking, err := bs.createBooking(userID, req)
	if err != nil {
		bs.sendTransitionError(w, err)
		return
	}

	car, _ := bs.carName(booking.CarID)
	go bs.mailer.BookingConfirmed(bs.userEmail(userID), car, *booking)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(booking)
}

func (bs *BookingService) carName(carID int) (string, error) {
	var name string
	err := bs.db.QueryRow(`SELECT name FROM cars WHERE id = $1`, carID).Scan(&name)
	return name, err
}

// createBooking holds the deposit and creates the booking in CONFIRMED state.
func (bs *BookingService) createBooking(userID int, req AddBookingRequest) (*models.Booking, error) {
	tx, err := bs.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	car, err := bs.getCarTx(tx, req.CarID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("car not found")
		}
		return nil, err
	}
	if !car.IsActive || car.IsStopped {
		return nil, errors.New("car is not open for booking")
	}

	conflict, err := bs.hasScheduleConflictTx(tx, car.ID, req.StartDateTime, req.EndDateTime)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, errors.New("car is already booked for this window")
	}

	now := bs.now()
	var booking models.Booking
	err = tx.QueryRow(`
		INSERT INTO bookings (car_id, user_id, start_date_time, end_date_time, status, note, late_minute, extra_fee, compensation_fee, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, '', 0, 0, 0, $6, $6)
		RETURNING id`,
		car.ID, userID, req.StartDateTime, req.EndDateTime, models.BookingStatusConfirmed, now).Scan(&booking.ID)
	if err != nil {
		return nil, err
	}

	booking.CarID = car.ID
	booking.UserID = userID
	booking.StartDateTime = req.StartDateTime
	booking.EndDateTime = req.EndDateTime
	booking.Status = models.BookingStatusConfirmed
	booking.CreatedAt = now
	booking.UpdatedAt = now

	if err := bs.wallet.TransferTx(tx, userID, car.OwnerID, car.Deposit,
		models.TransactionTypePayDeposit, models.TransactionTypeReceiveDeposit,
		&booking.ID, car.Name); err != nil {
		return nil, err
	}

	if err := bs.setCarAvailabilityTx(tx, car.ID, false); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[BOOKING] Created booking=%d car=%d user=%d deposit=%d", booking.ID, car.ID, userID, car.Deposit)
	return &booking, nil
}

// ConfirmDeposit moves a booking from PENDING_DEPOSIT to CONFIRMED
// @Summary Confirm a booking deposit
// @Tags bookings
// @Produce json
// @Param id path int true "Booking ID"
// @Success 200 {object} models.Booking
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Security BearerAuth
// @Router /bookings/{id}/confirm-deposit [post]
func (bs *BookingService) ConfirmDeposit(w http.ResponseWriter, r *http.Request) {
	bs.handleTransition(w, r, func(tx *sql.Tx, b *models.Booking, car *models.Car) error {
		if b.Status != models.BookingStatusPendingDeposit {
			return &BookingStateError{Current: b.Status, Required: models.BookingStatusPendingDeposit}
		}
		b.Status = models.BookingStatusConfirmed
		if err := bs.setBookingStatusTx(tx, b.ID, b.Status); err != nil {
			return err
		}
		return bs.setCarAvailabilityTx(tx, car.ID, false)
	}, func(b *models.Booking, car *models.Car) {
		go bs.mailer.BookingConfirmed(bs.userEmail(b.UserID), car.Name, *b)
	})
}

// ConfirmPickUp moves a booking from CONFIRMED to PICK_UP
// @Summary Confirm car pick-up
// @Tags bookings
// @Produce json
// @Param id path int true "Booking ID"
// @Success 200 {object} models.Booking
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Security BearerAuth
// @Router /bookings/{id}/pick-up [post]
func (bs *BookingService) ConfirmPickUp(w http.ResponseWriter, r *http.Request) {
	bs.handleTransition(w, r, func(tx *sql.Tx, b *models.Booking, car *models.Car) error {
		if b.Status != models.BookingStatusConfirmed {
			return &BookingStateError{Current: b.Status, Required: models.BookingStatusConfirmed}
		}
		b.Status = models.BookingStatusPickUp
		return bs.setBookingStatusTx(tx, b.ID, b.Status)
	}, nil)
}

// ReturnCar settles a booking at drop-off
// @Summary Return the car and settle the booking
// @Description Computes late and compensation fees, then either refunds the deposit surplus or defers the shortfall
// @Tags bookings
// @Accept json
// @Produce json
// @Param id path int true "Booking ID"
// @Param request body ReturnCarRequest false "Damage note and compensation"
// @Success 200 {object} models.Booking
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Security BearerAuth
// @Router /bookings/{id}/return [post]
func (bs *BookingService) ReturnCar(w http.ResponseWriter, r *http.Request) {
	var req ReturnCarRequest
	if r.Body != nil {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1_048_576))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil && err != io.EOF {
			SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
			return
		}
	}
	if err := bs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	settled := false
	bs.handleTransition(w, r, func(tx *sql.Tx, b *models.Booking, car *models.Car) error {
		if b.Status != models.BookingStatusPickUp {
			return &BookingStateError{Current: b.Status, Required: models.BookingStatusPickUp}
		}

		lateMinutes, extraFee := bs.lateCharges(b, car)
		compensation := int64(0)
		if req.Note != "" {
			compensation = req.CompensationFee
		}

		total := b.RentalTotal(car.BasePrice) + extraFee + compensation

		b.LateMinute = lateMinutes
		b.ExtraFee = extraFee
		b.CompensationFee = compensation
		b.Note = req.Note

		if car.Deposit >= total {
			if surplus := car.Deposit - total; surplus > 0 {
				if err := bs.wallet.TransferTx(tx, car.OwnerID, b.UserID, surplus,
					models.TransactionTypeOffsetFinalPayment, models.TransactionTypeOffsetFinalPayment,
					&b.ID, car.Name); err != nil {
					return err
				}
			}
			b.Status = models.BookingStatusCompleted
			settled = true
		} else {
			b.Status = models.BookingStatusPendingPayment
		}

		_, err := tx.Exec(`
			UPDATE bookings
			SET status = $1, note = $2, late_minute = $3, extra_fee = $4, compensation_fee = $5, updated_at = $6
			WHERE id = $7`,
			b.Status, b.Note, b.LateMinute, b.ExtraFee, b.CompensationFee, bs.now(), b.ID)
		if err != nil {
			return err
		}

		// Retired from rotation after its rental, pending an owner relisting.
		_, err = tx.Exec(`UPDATE cars SET is_stopped = TRUE WHERE id = $1`, car.ID)
		return err
	}, func(b *models.Booking, car *models.Car) {
		go bs.mailer.BookingReturned(bs.userEmail(b.UserID), car.Name, *b, settled)
	})
}

// lateCharges computes whole minutes past the end time and the late penalty:
// each started hour of lateness costs double the hourly rate.
func (bs *BookingService) lateCharges(b *models.Booking, car *models.Car) (int, int64) {
	overdue := bs.now().Sub(b.EndDateTime)
	if overdue <= 0 {
		return 0, 0
	}
	lateMinutes := int(overdue.Minutes())
	lateHours := math.Ceil(float64(lateMinutes) / 60.0)
	return lateMinutes, int64(lateHours * car.HourlyRate() * 2)
}

// ConfirmPayment settles the outstanding balance of a PENDING_PAYMENT booking
// @Summary Settle the outstanding balance after return
// @Tags bookings
// @Produce json
// @Param id path int true "Booking ID"
// @Success 200 {object} models.Booking
// @Failure 402 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Security BearerAuth
// @Router /bookings/{id}/confirm-payment [post]
func (bs *BookingService) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	bs.handleTransition(w, r, func(tx *sql.Tx, b *models.Booking, car *models.Car) error {
		if b.Status != models.BookingStatusPendingPayment {
			return &BookingStateError{Current: b.Status, Required: models.BookingStatusPendingPayment}
		}

		total := b.RentalTotal(car.BasePrice) + b.ExtraFee + b.CompensationFee
		shortfall := total - car.Deposit
		if shortfall > 0 {
			if err := bs.wallet.TransferTx(tx, b.UserID, car.OwnerID, shortfall,
				models.TransactionTypeOffsetFinalPayment, models.TransactionTypeOffsetFinalPayment,
				&b.ID, car.Name); err != nil {
				return err
			}
		}

		b.Status = models.BookingStatusCompleted
		return bs.setBookingStatusTx(tx, b.ID, b.Status)
	}, nil)
}

// CancelBooking cancels a booking and refunds the held deposit
// @Summary Cancel a booking
// @Tags bookings
// @Produce json
// @Param id path int true "Booking ID"
// @Success 200 {object} models.Booking
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Security BearerAuth
// @Router /bookings/{id}/cancel [post]
func (bs *BookingService) CancelBooking(w http.ResponseWriter, r *http.Request) {
	bs.handleTransition(w, r, func(tx *sql.Tx, b *models.Booking, car *models.Car) error {
		if b.Status != models.BookingStatusPendingDeposit && b.Status != models.BookingStatusConfirmed {
			return &BookingStateError{Current: b.Status, Required: models.BookingStatusConfirmed}
		}
		return bs.cancelTx(tx, b, car)
	}, func(b *models.Booking, car *models.Car) {
		go bs.mailer.BookingCancelled(bs.userEmail(b.UserID), car.Name, *b)
	})
}

// cancelTx refunds the held deposit from owner to customer and releases the
// car. The refund is recorded as a single REFUND_DEPOSIT credit on the
// customer's ledger; an underfunded owner wallet rejects the cancellation.
func (bs *BookingService) cancelTx(tx *sql.Tx, b *models.Booking, car *models.Car) error {
	firstLock, secondLock := b.UserID, car.OwnerID
	if firstLock > secondLock {
		firstLock, secondLock = secondLock, firstLock
	}
	firstBalance, err := bs.wallet.lockWallet(tx, firstLock)
	if err != nil {
		return err
	}
	secondBalance, err := bs.wallet.lockWallet(tx, secondLock)
	if err != nil {
		return err
	}

	customerBalance, ownerBalance := firstBalance, secondBalance
	if firstLock != b.UserID {
		customerBalance, ownerBalance = secondBalance, firstBalance
	}

	if ownerBalance < car.Deposit {
		return ErrInsufficientFunds
	}

	if err := bs.wallet.updateWallet(tx, car.OwnerID, ownerBalance-car.Deposit); err != nil {
		return err
	}
	if err := bs.wallet.updateWallet(tx, b.UserID, customerBalance+car.Deposit); err != nil {
		return err
	}

	refund := models.Transaction{
		UserID:    b.UserID,
		BookingID: &b.ID,
		CarName:   car.Name,
		Amount:    car.Deposit,
		Type:      models.TransactionTypeRefundDeposit,
		Status:    models.TransactionStatusSuccess,
	}
	if err := bs.wallet.AddEntryTx(tx, refund); err != nil {
		return err
	}

	b.Status = models.BookingStatusCancelled
	if err := bs.setBookingStatusTx(tx, b.ID, b.Status); err != nil {
		return err
	}
	return bs.setCarAvailabilityTx(tx, car.ID, true)
}

// CancelExpired force-cancels one CONFIRMED booking whose pick-up deadline
// has passed. Safe to call repeatedly: a booking no longer in CONFIRMED, or
// one still within the grace window, is skipped without error.
func (bs *BookingService) CancelExpired(bookingID int) error {
	tx, err := bs.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	b, err := bs.getBookingTx(tx, bookingID)
	if err != nil {
		if err == errBookingNotFound {
			return nil
		}
		return err
	}
	if b.Status != models.BookingStatusConfirmed {
		return nil
	}
	if bs.now().Before(b.StartDateTime.Add(pickUpGracePeriod)) {
		return nil
	}

	car, err := bs.getCarTx(tx, b.CarID)
	if err != nil {
		return err
	}

	if err := bs.cancelTx(tx, b, car); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	log.Printf("[BOOKING] Expired booking=%d cancelled, deposit=%d refunded", b.ID, car.Deposit)
	go bs.mailer.BookingCancelled(bs.userEmail(b.UserID), car.Name, *b)
	return nil
}

// ExpiredBookingIDs lists CONFIRMED bookings whose pick-up deadline elapsed.
func (bs *BookingService) ExpiredBookingIDs() ([]int, error) {
	rows, err := bs.db.Query(`
		SELECT id
		FROM bookings
		WHERE status = $1 AND start_date_time < $2
		ORDER BY id`,
		models.BookingStatusConfirmed, bs.now().Add(-pickUpGracePeriod))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// handleTransition runs one lifecycle transition for the booking in the URL:
// load booking and car under lock, apply the step, commit, respond with the
// updated booking.
func (bs *BookingService) handleTransition(w http.ResponseWriter, r *http.Request,
	step func(tx *sql.Tx, b *models.Booking, car *models.Car) error,
	after func(b *models.Booking, car *models.Car)) {

	bookingID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid booking id", http.StatusBadRequest, nil)
		return
	}

	tx, err := bs.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	b, err := bs.getBookingTx(tx, bookingID)
	if err != nil {
		bs.sendTransitionError(w, err)
		return
	}
	car, err := bs.getCarTx(tx, b.CarID)
	if err != nil {
		bs.sendTransitionError(w, err)
		return
	}

	if err := step(tx, b, car); err != nil {
		bs.sendTransitionError(w, err)
		return
	}
	if err := tx.Commit(); err != nil {
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}

	if after != nil {
		after(b, car)
	}

	b.UpdatedAt = bs.now()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(b)
}

func (bs *BookingService) sendTransitionError(w http.ResponseWriter, err error) {
	var stateErr *BookingStateError
	switch {
	case errors.As(err, &stateErr):
		SendErrorResponse(w, stateErr.Error(), http.StatusConflict, nil)
	case err == errBookingNotFound:
		SendErrorResponse(w, "Booking not found", http.StatusNotFound, nil)
	case err == ErrInsufficientFunds:
		SendErrorResponse(w, "Insufficient wallet balance", http.StatusPaymentRequired, nil)
	case err == sql.ErrNoRows:
		SendErrorResponse(w, "Not found", http.StatusNotFound, nil)
	default:
		msg := err.Error()
		switch msg {
		case "car not found":
			SendErrorResponse(w, "Car not found", http.StatusNotFound, nil)
		case "car is not open for booking", "car is already booked for this window":
			SendErrorResponse(w, msg, http.StatusConflict, nil)
		default:
			log.Printf("[BOOKING] Transition failed: %v", err)
			SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		}
	}
}

// ListMyBookings lists the authenticated customer's bookings
// @Summary List my bookings
// @Tags bookings
// @Produce json
// @Param page query int false "Page number"
// @Param size query int false "Page size"
// @Success 200 {array} models.Booking
// @Security BearerAuth
// @Router /bookings [get]
func (bs *BookingService) ListMyBookings(w http.ResponseWriter, r *http.Request) {
	userID, err := CurrentUserID(r)
	if err != nil {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	page, size := pagination(r)
	rows, err := bs.db.Query(`
		SELECT id, car_id, user_id, start_date_time, end_date_time, status, note, late_minute, extra_fee, compensation_fee, created_at, updated_at
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, size, (page-1)*size)
	if err != nil {
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	bs.writeBookingRows(w, rows)
}

// ListOwnerBookings lists bookings against cars the authenticated user owns
// @Summary List bookings on my cars
// @Tags bookings
// @Produce json
// @Param page query int false "Page number"
// @Param size query int false "Page size"
// @Success 200 {array} models.Booking
// @Security BearerAuth
// @Router /bookings/owner [get]
func (bs *BookingService) ListOwnerBookings(w http.ResponseWriter, r *http.Request) {
	userID, err := CurrentUserID(r)
	if err != nil {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	page, size := pagination(r)
	rows, err := bs.db.Query(`
		SELECT b.id, b.car_id, b.user_id, b.start_date_time, b.end_date_time, b.status, b.note, b.late_minute, b.extra_fee, b.compensation_fee, b.created_at, b.updated_at
		FROM bookings b
		JOIN cars c ON c.id = b.car_id
		WHERE c.owner_id = $1
		ORDER BY b.created_at DESC
		LIMIT $2 OFFSET $3`, userID, size, (page-1)*size)
	if err != nil {
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	bs.writeBookingRows(w, rows)
}

// OwnerMonthlySummary reports booking counts per month across the owner's cars
// @Summary Monthly booking counts for my cars
// @Tags bookings
// @Produce json
// @Success 200 {array} map[string]interface{}
// @Security BearerAuth
// @Router /bookings/owner/summary [get]
func (bs *BookingService) OwnerMonthlySummary(w http.ResponseWriter, r *http.Request) {
	userID, err := CurrentUserID(r)
	if err != nil {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := bs.db.Query(`
		SELECT to_char(b.start_date_time, 'YYYY-MM') AS month, COUNT(*) AS bookings
		FROM bookings b
		JOIN cars c ON c.id = b.car_id
		WHERE c.owner_id = $1
		GROUP BY month
		ORDER BY month DESC
		LIMIT 12`, userID)
	if err != nil {
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	type monthCount struct {
		Month    string `json:"month"`
		Bookings int    `json:"bookings"`
	}
	summary := []monthCount{}
	for rows.Next() {
		var m monthCount
		if err := rows.Scan(&m.Month, &m.Bookings); err != nil {
			SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
			return
		}
		summary = append(summary, m)
	}
	if err := rows.Err(); err != nil {
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// GetBooking returns one booking with its recomputed rental total
// @Summary Get booking detail
// @Tags bookings
// @Produce json
// @Param id path int true "Booking ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /bookings/{id} [get]
func (bs *BookingService) GetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid booking id", http.StatusBadRequest, nil)
		return
	}

	var b models.Booking
	var basePrice int64
	var carName string
	err = bs.db.QueryRow(`
		SELECT b.id, b.car_id, b.user_id, b.start_date_time, b.end_date_time, b.status, b.note, b.late_minute, b.extra_fee, b.compensation_fee, b.created_at, b.updated_at, c.base_price, c.name
		FROM bookings b
		JOIN cars c ON c.id = b.car_id
		WHERE b.id = $1`, bookingID).Scan(
		&b.ID, &b.CarID, &b.UserID, &b.StartDateTime, &b.EndDateTime, &b.Status,
		&b.Note, &b.LateMinute, &b.ExtraFee, &b.CompensationFee, &b.CreatedAt, &b.UpdatedAt,
		&basePrice, &carName)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Booking not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"booking":     b,
		"carName":     carName,
		"rentalTotal": b.RentalTotal(basePrice),
	})
}

func (bs *BookingService) writeBookingRows(w http.ResponseWriter, rows *sql.Rows) {
	bookings := []models.Booking{}
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(&b.ID, &b.CarID, &b.UserID, &b.StartDateTime, &b.EndDateTime, &b.Status,
			&b.Note, &b.LateMinute, &b.ExtraFee, &b.CompensationFee, &b.CreatedAt, &b.UpdatedAt); err != nil {
			SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
			return
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(bookings)
}

func pagination(r *http.Request) (page, size int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	size, _ = strconv.Atoi(r.URL.Query().Get("size"))
	if size < 1 || size > 100 {
		size = 20
	}
	return page, size
}
