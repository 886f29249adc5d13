package services

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/carlink/backend/internal/models"
)

// UserService exposes profile, wallet and ledger history for the
// authenticated user.
type UserService struct {
	db *sql.DB
}

func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db}
}

// GetProfile returns the authenticated user's profile
// @Summary Get my profile
// @Tags users
// @Produce json
// @Success 200 {object} models.User
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /users/me [get]
func (us *UserService) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := CurrentUserID(r)
	if err != nil {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var u models.User
	err = us.db.QueryRow(`
		SELECT id, email, name, phone_number, wallet, created_at
		FROM users
		WHERE id = $1`, userID).Scan(&u.ID, &u.Email, &u.Name, &u.PhoneNumber, &u.Wallet, &u.CreatedAt)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(u)
}

// GetWallet returns the authenticated user's wallet balance
// @Summary Get my wallet balance
// @Tags users
// @Produce json
// @Success 200 {object} map[string]int64
// @Security BearerAuth
// @Router /users/me/wallet [get]
func (us *UserService) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, err := CurrentUserID(r)
	if err != nil {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var balance int64
	if err := us.db.QueryRow(`SELECT wallet FROM users WHERE id = $1`, userID).Scan(&balance); err != nil {
		SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"wallet": balance})
}

// ListTransactions returns the authenticated user's ledger history
// @Summary List my wallet transactions
// @Tags users
// @Produce json
// @Param page query int false "Page number"
// @Param size query int false "Page size"
// @Success 200 {array} models.Transaction
// @Security BearerAuth
// @Router /users/me/transactions [get]
func (us *UserService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := CurrentUserID(r)
	if err != nil {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	page, size := pagination(r)
	rows, err := us.db.Query(`
		SELECT id, user_id, booking_id, car_name, amount, type, status,
		       COALESCE(payment_reference, ''), COALESCE(payment_gateway, ''), COALESCE(gateway_transaction_no, ''), created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, size, (page-1)*size)
	if err != nil {
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	entries := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.BookingID, &t.CarName, &t.Amount, &t.Type, &t.Status,
			&t.PaymentReference, &t.PaymentGateway, &t.GatewayTransactionNo, &t.CreatedAt); err != nil {
			SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
			return
		}
		entries = append(entries, t)
	}
	if err := rows.Err(); err != nil {
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}
