package models

import (
	"time"
)

type TransactionType string

const (
	TransactionTypePayDeposit         TransactionType = "PAY_DEPOSIT"
	TransactionTypeReceiveDeposit     TransactionType = "RECEIVE_DEPOSIT"
	TransactionTypeRefundDeposit      TransactionType = "REFUND_DEPOSIT"
	TransactionTypeOffsetFinalPayment TransactionType = "OFFSET_FINAL_PAYMENT"
	TransactionTypeTopUp              TransactionType = "TOP_UP"
)

type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "PENDING"
	TransactionStatusSuccess TransactionStatus = "SUCCESS"
	TransactionStatusFailed  TransactionStatus = "FAILED"
)

// Transaction is one immutable ledger entry for a wallet movement.
// Amount is signed from the wallet owner's perspective: negative debit,
// positive credit. PaymentReference is the gateway idempotency key and is
// unique across all rows; only gateway-settled entries carry one.
type Transaction struct {
	ID                   int               `json:"id" db:"id"`
	UserID               int               `json:"user_id" db:"user_id"`
	BookingID            *int              `json:"booking_id,omitempty" db:"booking_id"`
	CarName              string            `json:"car_name" db:"car_name"`
	Amount               int64             `json:"amount" db:"amount"`
	Type                 TransactionType   `json:"type" db:"type"`
	Status               TransactionStatus `json:"status" db:"status"`
	PaymentReference     string            `json:"payment_reference,omitempty" db:"payment_reference"`
	PaymentGateway       string            `json:"payment_gateway,omitempty" db:"payment_gateway"`
	GatewayTransactionNo string            `json:"gateway_transaction_no,omitempty" db:"gateway_transaction_no"`
	CreatedAt            time.Time         `json:"created_at" db:"created_at"`
}
