package vnpay

import (
	"regexp"
	"strconv"
)

// Acknowledgment codes returned to the gateway's IPN call.
const (
	RspProcessed        = "00"
	RspInvalidReference = "01"
	RspAlreadyConfirmed = "02"
	RspInvalidAmount    = "04"
	RspInvalidSignature = "97"
	RspUnknownError     = "99"
)

var orderInfoPattern = regexp.MustCompile(`^WALLET_TOPUP_USER_(\d+)_AMOUNT_(\d+)$`)

// PaymentContext is the decoded view of one verified inbound callback.
// It is built once per callback and consumed once; a partial context is
// never handed downstream.
type PaymentContext struct {
	UserID            int
	Amount            int64 // VND, major unit, already unscaled
	TxnRef            string
	TransactionNo     string
	ResponseCode      string
	TransactionStatus string
}

// Settled reports whether the gateway settled the payment successfully.
// Both the response code and the transaction status must read "00".
func (c *PaymentContext) Settled() bool {
	return c.ResponseCode == "00" && c.TransactionStatus == "00"
}

// CallbackResult is the terminal outcome of one callback gate.
type CallbackResult struct {
	RspCode           string
	Message           string
	Success           bool
	TxnRef            string
	Amount            int64
	ResponseCode      string
	TransactionStatus string
}

// VerifySignature is the first gate: the callback must carry a signature and
// it must validate against the shared secret. Returns nil when the gate
// passes.
func VerifySignature(params map[string]string, secretKey string) *CallbackResult {
	secureHash := params[ParamSecureHash]
	if secureHash == "" {
		return &CallbackResult{RspCode: RspInvalidSignature, Message: "Missing payment signature"}
	}
	if !ValidateSecureHash(params, secretKey, secureHash) {
		return &CallbackResult{RspCode: RspInvalidSignature, Message: "Invalid payment signature"}
	}
	return nil
}

// ExtractContext parses a signature-verified parameter set into a
// PaymentContext. Each gate is terminal: the first failure produces a coded
// result and no context.
func ExtractContext(params map[string]string) (*PaymentContext, *CallbackResult) {
	txnRef := params[ParamTxnRef]
	responseCode := params[ParamResponseCode]
	transactionStatus := params[ParamTransactionStatus]
	transactionNo := params[ParamTransactionNo]

	fail := func(code, message string, amount int64) *CallbackResult {
		return &CallbackResult{
			RspCode:           code,
			Message:           message,
			TxnRef:            txnRef,
			Amount:            amount,
			ResponseCode:      responseCode,
			TransactionStatus: transactionStatus,
		}
	}

	scaled, err := strconv.ParseInt(params[ParamAmount], 10, 64)
	if err != nil {
		return nil, fail(RspInvalidAmount, "Invalid amount", 0)
	}
	amount := scaled / amountScale

	m := orderInfoPattern.FindStringSubmatch(params[ParamOrderInfo])
	if m == nil {
		return nil, fail(RspInvalidReference, "Invalid transaction reference", amount)
	}

	userID, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, fail(RspInvalidReference, "Invalid transaction reference", amount)
	}
	declaredAmount, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return nil, fail(RspInvalidAmount, "Invalid amount", amount)
	}
	if declaredAmount != amount {
		return nil, fail(RspInvalidAmount, "Amount mismatch", amount)
	}

	return &PaymentContext{
		UserID:            userID,
		Amount:            amount,
		TxnRef:            txnRef,
		TransactionNo:     transactionNo,
		ResponseCode:      responseCode,
		TransactionStatus: transactionStatus,
	}, nil
}
