package services

import (
	"database/sql"
	"errors"
	"time"

	"github.com/carlink/backend/internal/models"
)

// ErrInsufficientFunds is returned when a debit would take a wallet below zero.
var ErrInsufficientFunds = errors.New("insufficient wallet balance")

// WalletLedgerService owns every wallet mutation. Balances change only inside
// a transaction and every change is paired with a ledger row, so the
// transactions table replays to the wallet column.
type WalletLedgerService struct {
	db *sql.DB
}

func NewWalletLedgerService(db *sql.DB) *WalletLedgerService {
	return &WalletLedgerService{db: db}
}

func (s *WalletLedgerService) lockWallet(tx *sql.Tx, userID int) (int64, error) {
	var balance int64
	err := tx.QueryRow(`
		SELECT wallet
		FROM users
		WHERE id = $1
		FOR UPDATE`, userID).Scan(&balance)
	return balance, err
}

func (s *WalletLedgerService) updateWallet(tx *sql.Tx, userID int, newBalance int64) error {
	result, err := tx.Exec(`
		UPDATE users
		SET wallet = $1
		WHERE id = $2`,
		newBalance, userID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AddEntryTx appends one ledger row. Amount carries its sign: debits are
// negative, credits positive.
func (s *WalletLedgerService) AddEntryTx(tx *sql.Tx, entry models.Transaction) error {
	_, err := tx.Exec(`
		INSERT INTO transactions (user_id, booking_id, car_name, amount, type, status, payment_reference, payment_gateway, gateway_transaction_no, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.UserID, entry.BookingID, entry.CarName, entry.Amount, entry.Type,
		entry.Status, nullIfEmpty(entry.PaymentReference), nullIfEmpty(entry.PaymentGateway),
		nullIfEmpty(entry.GatewayTransactionNo), time.Now())
	return err
}

// CreditWalletTx adds amount to the user's wallet and records a ledger entry.
// The caller owns the transaction.
func (s *WalletLedgerService) CreditWalletTx(tx *sql.Tx, userID int, amount int64, entry models.Transaction) error {
	balance, err := s.lockWallet(tx, userID)
	if err != nil {
		return err
	}

	if err := s.updateWallet(tx, userID, balance+amount); err != nil {
		return err
	}

	entry.UserID = userID
	entry.Amount = amount
	return s.AddEntryTx(tx, entry)
}

// DebitWalletTx subtracts amount from the user's wallet and records a ledger
// entry. Fails with ErrInsufficientFunds when the balance cannot cover it.
func (s *WalletLedgerService) DebitWalletTx(tx *sql.Tx, userID int, amount int64, entry models.Transaction) error {
	balance, err := s.lockWallet(tx, userID)
	if err != nil {
		return err
	}

	if balance < amount {
		return ErrInsufficientFunds
	}

	if err := s.updateWallet(tx, userID, balance-amount); err != nil {
		return err
	}

	entry.UserID = userID
	entry.Amount = -amount
	return s.AddEntryTx(tx, entry)
}

// TransferTx moves amount between two wallets, writing one debit and one
// credit entry. Wallets are locked in id order to prevent deadlocks.
func (s *WalletLedgerService) TransferTx(tx *sql.Tx, fromUserID, toUserID int, amount int64, fromType, toType models.TransactionType, bookingID *int, carName string) error {
	firstLock, secondLock := fromUserID, toUserID
	if fromUserID > toUserID {
		firstLock, secondLock = toUserID, fromUserID
	}

	firstBalance, err := s.lockWallet(tx, firstLock)
	if err != nil {
		return err
	}
	secondBalance, err := s.lockWallet(tx, secondLock)
	if err != nil {
		return err
	}

	fromBalance, toBalance := firstBalance, secondBalance
	if firstLock != fromUserID {
		fromBalance, toBalance = secondBalance, firstBalance
	}

	if fromBalance < amount {
		return ErrInsufficientFunds
	}

	if err := s.updateWallet(tx, fromUserID, fromBalance-amount); err != nil {
		return err
	}
	if err := s.updateWallet(tx, toUserID, toBalance+amount); err != nil {
		return err
	}

	debit := models.Transaction{
		UserID:    fromUserID,
		BookingID: bookingID,
		CarName:   carName,
		Amount:    -amount,
		Type:      fromType,
		Status:    models.TransactionStatusSuccess,
	}
	if err := s.AddEntryTx(tx, debit); err != nil {
		return err
	}

	credit := models.Transaction{
		UserID:    toUserID,
		BookingID: bookingID,
		CarName:   carName,
		Amount:    amount,
		Type:      toType,
		Status:    models.TransactionStatusSuccess,
	}
	return s.AddEntryTx(tx, credit)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
