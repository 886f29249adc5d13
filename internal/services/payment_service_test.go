package services

import (
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlink/backend/internal/config"
	"github.com/carlink/backend/internal/vnpay"
)

const testGatewaySecret = "QWERTYUIOPASDFGHJKLZXCVBNM123456"

func testVNPayConfig() config.VNPayConfig {
	return config.VNPayConfig{
		PayURL:        "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:     "http://localhost:8080/api/v1/payments/vnpay/return",
		TmnCode:       "DEMO0001",
		SecretKey:     testGatewaySecret,
		Version:       "2.1.0",
		Command:       "pay",
		OrderType:     "wallet_topup",
		CurrCode:      "VND",
		DefaultLocale: "vn",
		ExpireMinutes: 15,
	}
}

func signedTopUpCallback(t *testing.T, userID int, amount int64, txnRef, responseCode, transactionStatus string) map[string]string {
	t.Helper()
	params := map[string]string{
		vnpay.ParamAmount:            strconv.FormatInt(amount*100, 10),
		vnpay.ParamTxnRef:            txnRef,
		vnpay.ParamOrderInfo:         vnpay.BuildOrderInfo(userID, amount),
		vnpay.ParamResponseCode:      responseCode,
		vnpay.ParamTransactionStatus: transactionStatus,
		vnpay.ParamTransactionNo:     "14400996",
		"vnp_TmnCode":                "DEMO0001",
		"vnp_BankCode":               "NCB",
	}
	params[vnpay.ParamSecureHash] = vnpay.GenerateSecureHash(params, testGatewaySecret)
	return params
}

func newTestPaymentService(t *testing.T) (*PaymentService, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	ps := NewPaymentService(db, testVNPayConfig())
	ps.now = func() time.Time { return time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC) }
	return ps, mock, func() { db.Close() }
}

func expectUserExists(mock sqlmock.Sqlmock, userID int, exists bool) {
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(exists))
}

func TestProcessCallback_DuplicateDelivery(t *testing.T) {
	ps, mock, done := newTestPaymentService(t)
	defer done()

	params := signedTopUpCallback(t, 7, 500000, "R1", "00", "00")

	// First delivery settles the payment and credits the wallet.
	expectUserExists(mock, 7, true)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM transactions WHERE payment_reference = \\$1 FOR UPDATE").
		WithArgs("R1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT wallet FROM users WHERE id = \\$1 FOR UPDATE").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"wallet"}).AddRow(100000))
	mock.ExpectExec("UPDATE users SET wallet = \\$1 WHERE id = \\$2").
		WithArgs(int64(600000), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(7, nil, "", int64(500000), "TOP_UP", "SUCCESS", "R1", "VNPAY", "14400996", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result, err := ps.ProcessCallback(params)
	require.NoError(t, err)
	assert.Equal(t, vnpay.RspProcessed, result.RspCode)
	assert.True(t, result.Success)
	assert.Equal(t, "R1", result.TxnRef)
	assert.Equal(t, int64(500000), result.Amount)

	// Second identical delivery short-circuits without touching the wallet.
	// The payment is settled, so the duplicate still reads as a success.
	expectUserExists(mock, 7, true)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM transactions WHERE payment_reference = \\$1 FOR UPDATE").
		WithArgs("R1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("SUCCESS"))
	mock.ExpectRollback()

	result, err = ps.ProcessCallback(params)
	require.NoError(t, err)
	assert.Equal(t, vnpay.RspAlreadyConfirmed, result.RspCode)
	assert.Equal(t, "Transaction already confirmed", result.Message)
	assert.True(t, result.Success)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessCallback_FailedPayment(t *testing.T) {
	ps, mock, done := newTestPaymentService(t)
	defer done()

	params := signedTopUpCallback(t, 7, 500000, "R2", "24", "02")

	expectUserExists(mock, 7, true)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM transactions WHERE payment_reference = \\$1 FOR UPDATE").
		WithArgs("R2").
		WillReturnError(sql.ErrNoRows)
	// Recorded as FAILED, wallet untouched.
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(7, nil, "", int64(500000), "TOP_UP", "FAILED", "R2", "VNPAY", "14400996", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result, err := ps.ProcessCallback(params)
	require.NoError(t, err)
	assert.Equal(t, vnpay.RspProcessed, result.RspCode)
	assert.False(t, result.Success)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessCallback_PendingSettledLater(t *testing.T) {
	ps, mock, done := newTestPaymentService(t)
	defer done()

	params := signedTopUpCallback(t, 7, 500000, "R3", "00", "00")

	expectUserExists(mock, 7, true)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM transactions WHERE payment_reference = \\$1 FOR UPDATE").
		WithArgs("R3").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("PENDING"))
	mock.ExpectExec("UPDATE transactions SET status = \\$1, gateway_transaction_no = \\$2 WHERE payment_reference = \\$3 AND status <> 'SUCCESS'").
		WithArgs("SUCCESS", "14400996", "R3").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT wallet FROM users WHERE id = \\$1 FOR UPDATE").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"wallet"}).AddRow(0))
	mock.ExpectExec("UPDATE users SET wallet = \\$1 WHERE id = \\$2").
		WithArgs(int64(500000), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := ps.ProcessCallback(params)
	require.NoError(t, err)
	assert.Equal(t, vnpay.RspProcessed, result.RspCode)
	assert.True(t, result.Success)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessCallback_RacedStatusUpdateDoesNotCredit(t *testing.T) {
	ps, mock, done := newTestPaymentService(t)
	defer done()

	params := signedTopUpCallback(t, 7, 500000, "R4", "00", "00")

	expectUserExists(mock, 7, true)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM transactions WHERE payment_reference = \\$1 FOR UPDATE").
		WithArgs("R4").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("PENDING"))
	// Zero rows: another transaction already moved the entry to SUCCESS.
	mock.ExpectExec("UPDATE transactions SET status = \\$1, gateway_transaction_no = \\$2 WHERE payment_reference = \\$3 AND status <> 'SUCCESS'").
		WithArgs("SUCCESS", "14400996", "R4").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	result, err := ps.ProcessCallback(params)
	require.NoError(t, err)
	assert.Equal(t, vnpay.RspProcessed, result.RspCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessCallback_InvalidSignature(t *testing.T) {
	ps, mock, done := newTestPaymentService(t)
	defer done()

	params := signedTopUpCallback(t, 7, 500000, "R5", "00", "00")
	params[vnpay.ParamAmount] = "999"

	result, err := ps.ProcessCallback(params)
	require.NoError(t, err)
	assert.Equal(t, vnpay.RspInvalidSignature, result.RspCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessCallback_UnknownUser(t *testing.T) {
	ps, mock, done := newTestPaymentService(t)
	defer done()

	params := signedTopUpCallback(t, 404, 500000, "R6", "00", "00")

	expectUserExists(mock, 404, false)

	result, err := ps.ProcessCallback(params)
	require.NoError(t, err)
	assert.Equal(t, vnpay.RspInvalidReference, result.RspCode)
	assert.Equal(t, "Order not found", result.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleIPN_StorageFailureIsNotAcknowledged(t *testing.T) {
	ps, mock, done := newTestPaymentService(t)
	defer done()

	params := signedTopUpCallback(t, 7, 500000, "R7", "00", "00")

	expectUserExists(mock, 7, true)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM transactions WHERE payment_reference = \\$1 FOR UPDATE").
		WithArgs("R7").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	r := httptest.NewRequest("GET", "/api/v1/payments/vnpay/ipn?"+q.Encode(), nil)
	w := httptest.NewRecorder()

	ps.HandleIPN(w, r)

	// A ledger failure is undecided, not a final answer; the gateway only
	// redelivers when the acknowledgment is not a clean 200 with a final code.
	assert.Equal(t, 500, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, vnpay.RspUnknownError, body["RspCode"])
	assert.NotEqual(t, vnpay.RspInvalidReference, body["RspCode"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleReturn_StorageFailureReportsRetry(t *testing.T) {
	ps, mock, done := newTestPaymentService(t)
	defer done()

	params := signedTopUpCallback(t, 7, 500000, "R8", "00", "00")

	// The users-exists probe itself failing is equally undecided.
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(7).
		WillReturnError(assert.AnError)

	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	r := httptest.NewRequest("GET", "/api/v1/payments/vnpay/return?"+q.Encode(), nil)
	w := httptest.NewRecorder()

	ps.HandleReturn(w, r)

	assert.Equal(t, 500, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "retry")
	assert.NoError(t, mock.ExpectationsWereMet())
}
