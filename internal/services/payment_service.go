package services

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/lib/pq"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/carlink/backend/internal/config"
	"github.com/carlink/backend/internal/models"
	"github.com/carlink/backend/internal/vnpay"
)

const pqUniqueViolation = "23505"

// PaymentService owns wallet top-ups through the VNPay gateway: building
// signed payment links and reconciling the gateway's callbacks against the
// ledger. Reconciliation is idempotent on the payment reference; the wallet
// is credited at most once per reference no matter how many callbacks arrive.
type PaymentService struct {
	db        *sql.DB
	cfg       config.VNPayConfig
	wallet    *WalletLedgerService
	validator *ValidationHelper
	now       func() time.Time
}

func NewPaymentService(db *sql.DB, cfg config.VNPayConfig) *PaymentService {
	return &PaymentService{
		db:        db,
		cfg:       cfg,
		wallet:    NewWalletLedgerService(db),
		validator: NewValidationHelper(),
		now:       time.Now,
	}
}

type TopUpRequest struct {
	Amount   int64  `json:"amount" validate:"required,gt=0"`
	BankCode string `json:"bankCode,omitempty"`
	Locale   string `json:"locale,omitempty" validate:"omitempty,oneof=vn en"`
}

type TopUpResponse struct {
	PaymentURL           string `json:"paymentUrl"`
	TransactionReference string `json:"transactionReference"`
	Amount               int64  `json:"amount"`
	ExpireAt             string `json:"expireAt"`
}

func (ps *PaymentService) decodeTopUpRequest(w http.ResponseWriter, r *http.Request) (*TopUpRequest, bool) {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req TopUpRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return nil, false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return nil, false
	}

	if err := ps.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return nil, false
	}
	return &req, true
}

func (ps *PaymentService) buildLink(r *http.Request, userID int, req *TopUpRequest) vnpay.PaymentLink {
	return vnpay.BuildPaymentLink(ps.cfg, vnpay.CreatePaymentInput{
		UserID:   userID,
		Amount:   req.Amount,
		BankCode: req.BankCode,
		Locale:   req.Locale,
		ClientIP: clientIP(r),
	}, ps.now())
}

// CreateTopUp builds a signed VNPay redirect for a wallet top-up
// @Summary Create a wallet top-up payment link
// @Description Returns a signed VNPay payment URL for the requested amount
// @Tags payments
// @Accept json
// @Produce json
// @Param request body TopUpRequest true "Top-up data"
// @Success 201 {object} TopUpResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Security BearerAuth
// @Router /payments/vnpay/topup [post]
func (ps *PaymentService) CreateTopUp(w http.ResponseWriter, r *http.Request) {
	userID, err := CurrentUserID(r)
	if err != nil {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	req, ok := ps.decodeTopUpRequest(w, r)
	if !ok {
		return
	}

	link := ps.buildLink(r, userID, req)
	log.Printf("[PAYMENT] Created top-up link user=%d amount=%d ref=%s", userID, link.Amount, link.TxnRef)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(TopUpResponse{
		PaymentURL:           link.URL,
		TransactionReference: link.TxnRef,
		Amount:               link.Amount,
		ExpireAt:             link.ExpireAt.Format(time.RFC3339),
	})
}

// TopUpQR builds a top-up link and renders it as a QR code
// @Summary Create a wallet top-up QR code
// @Description Returns the payment URL encoded as a base64 PNG QR code
// @Tags payments
// @Accept json
// @Produce json
// @Param request body TopUpRequest true "Top-up data"
// @Success 201 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /payments/vnpay/topup/qr [post]
func (ps *PaymentService) TopUpQR(w http.ResponseWriter, r *http.Request) {
	userID, err := CurrentUserID(r)
	if err != nil {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	req, ok := ps.decodeTopUpRequest(w, r)
	if !ok {
		return
	}

	link := ps.buildLink(r, userID, req)

	png, err := qrcode.Encode(link.URL, qrcode.Medium, 256)
	if err != nil {
		SendErrorResponse(w, "Failed to generate QR code", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"qrCode":               "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		"transactionReference": link.TxnRef,
		"expireAt":             link.ExpireAt.Format(time.RFC3339),
	})
}

// HandleIPN processes the gateway's server-to-server callback
// @Summary VNPay IPN endpoint
// @Description Verifies and reconciles a gateway callback, acknowledging with a gateway response code
// @Tags payments
// @Produce json
// @Success 200 {object} map[string]string
// @Router /payments/vnpay/ipn [get]
func (ps *PaymentService) HandleIPN(w http.ResponseWriter, r *http.Request) {
	result, err := ps.ProcessCallback(callbackParams(r))

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		// Undecided outcome: answer non-200 so the gateway redelivers instead
		// of recording a final code for a settlement we may have rolled back.
		log.Printf("[PAYMENT] IPN reconciliation unavailable: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"RspCode": vnpay.RspUnknownError,
			"Message": "Unknown error",
		})
		return
	}

	log.Printf("[PAYMENT] IPN ref=%s rsp=%s %s", result.TxnRef, result.RspCode, result.Message)
	json.NewEncoder(w).Encode(map[string]string{
		"RspCode": result.RspCode,
		"Message": result.Message,
	})
}

// HandleReturn processes the browser redirect back from the gateway
// @Summary VNPay return endpoint
// @Description Verifies the redirect parameters and reports the payment outcome to the user
// @Tags payments
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /payments/vnpay/return [get]
func (ps *PaymentService) HandleReturn(w http.ResponseWriter, r *http.Request) {
	result, err := ps.ProcessCallback(callbackParams(r))
	if err != nil {
		log.Printf("[PAYMENT] Return reconciliation unavailable: %v", err)
		SendErrorResponse(w, "Payment verification temporarily unavailable, please retry", http.StatusInternalServerError, nil)
		return
	}
	log.Printf("[PAYMENT] Return ref=%s rsp=%s %s", result.TxnRef, result.RspCode, result.Message)

	status := http.StatusOK
	if result.RspCode == vnpay.RspInvalidSignature {
		status = http.StatusBadRequest
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success":              result.Success,
		"message":              result.Message,
		"transactionReference": result.TxnRef,
		"amount":               result.Amount,
		"responseCode":         result.ResponseCode,
	})
}

// ProcessCallback runs the full reconciliation for one callback. Both the IPN
// and the return endpoint go through here, so whichever arrives first settles
// the reference and the other observes the settled state. A non-nil error
// means the outcome is undecided and the gateway must redeliver; only decided
// outcomes get a final acknowledgment code.
func (ps *PaymentService) ProcessCallback(params map[string]string) (*vnpay.CallbackResult, error) {
	if res := vnpay.VerifySignature(params, ps.cfg.SecretKey); res != nil {
		return res, nil
	}

	ctx, res := vnpay.ExtractContext(params)
	if res != nil {
		return res, nil
	}

	var exists bool
	if err := ps.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, ctx.UserID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return ps.result(ctx, vnpay.RspInvalidReference, "Order not found", false), nil
	}

	result, err := ps.reconcile(ctx)
	if err != nil {
		// A concurrent callback inserted the same reference first. The row now
		// exists, so one retry resolves through the update path.
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == pqUniqueViolation {
			result, err = ps.reconcile(ctx)
		}
	}
	if err != nil {
		log.Printf("[PAYMENT] Reconciliation error ref=%s: %v", ctx.TxnRef, err)
		return nil, err
	}
	return result, nil
}

// reconcile settles one callback inside a single database transaction. The
// ledger row for the payment reference is the idempotency record: locked with
// FOR UPDATE, inserted if absent, and never moved off SUCCESS.
func (ps *PaymentService) reconcile(ctx *vnpay.PaymentContext) (*vnpay.CallbackResult, error) {
	tx, err := ps.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var status models.TransactionStatus
	err = tx.QueryRow(`
		SELECT status
		FROM transactions
		WHERE payment_reference = $1
		FOR UPDATE`, ctx.TxnRef).Scan(&status)

	switch {
	case err == sql.ErrNoRows:
		if err := ps.recordNewCallback(tx, ctx); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case status == models.TransactionStatusSuccess:
		// The payment itself succeeded; only the delivery is a duplicate.
		return ps.result(ctx, vnpay.RspAlreadyConfirmed, "Transaction already confirmed", true), nil
	default:
		if err := ps.settleExistingCallback(tx, ctx); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if ctx.Settled() {
		return ps.result(ctx, vnpay.RspProcessed, "Transaction confirmed successfully", true), nil
	}
	return ps.result(ctx, vnpay.RspProcessed, "Transaction marked as failed", false), nil
}

func (ps *PaymentService) recordNewCallback(tx *sql.Tx, ctx *vnpay.PaymentContext) error {
	entry := models.Transaction{
		Type:                 models.TransactionTypeTopUp,
		PaymentReference:     ctx.TxnRef,
		PaymentGateway:       vnpay.GatewayName,
		GatewayTransactionNo: ctx.TransactionNo,
	}

	if ctx.Settled() {
		entry.Status = models.TransactionStatusSuccess
		return ps.wallet.CreditWalletTx(tx, ctx.UserID, ctx.Amount, entry)
	}

	entry.UserID = ctx.UserID
	entry.Amount = ctx.Amount
	entry.Status = models.TransactionStatusFailed
	return ps.wallet.AddEntryTx(tx, entry)
}

// settleExistingCallback moves a PENDING or FAILED row to its final state.
// The status guard keeps the credit single-shot even if two transactions
// raced to this point.
func (ps *PaymentService) settleExistingCallback(tx *sql.Tx, ctx *vnpay.PaymentContext) error {
	final := models.TransactionStatusFailed
	if ctx.Settled() {
		final = models.TransactionStatusSuccess
	}

	result, err := tx.Exec(`
		UPDATE transactions
		SET status = $1, gateway_transaction_no = $2
		WHERE payment_reference = $3 AND status <> 'SUCCESS'`,
		final, nullIfEmpty(ctx.TransactionNo), ctx.TxnRef)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 || !ctx.Settled() {
		return nil
	}

	balance, err := ps.wallet.lockWallet(tx, ctx.UserID)
	if err != nil {
		return err
	}
	return ps.wallet.updateWallet(tx, ctx.UserID, balance+ctx.Amount)
}

func (ps *PaymentService) result(ctx *vnpay.PaymentContext, code, message string, success bool) *vnpay.CallbackResult {
	return &vnpay.CallbackResult{
		RspCode:           code,
		Message:           message,
		Success:           success,
		TxnRef:            ctx.TxnRef,
		Amount:            ctx.Amount,
		ResponseCode:      ctx.ResponseCode,
		TransactionStatus: ctx.TransactionStatus,
	}
}

func callbackParams(r *http.Request) map[string]string {
	params := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
