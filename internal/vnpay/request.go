package vnpay

import (
	"fmt"
	"strconv"
	"time"

	"github.com/carlink/backend/internal/config"
)

const (
	// GatewayName tags ledger entries settled through this gateway.
	GatewayName = "VNPAY"

	// amountScale is the gateway's fixed minor-unit factor: VND amounts are
	// transmitted multiplied by 100.
	amountScale = 100

	timestampFormat = "20060102150405"
)

// gatewayZone is the timezone all gateway timestamps are expressed in.
var gatewayZone = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		return time.FixedZone("ICT", 7*60*60)
	}
	return loc
}()

// CreatePaymentInput carries one wallet top-up attempt.
type CreatePaymentInput struct {
	UserID    int
	Amount    int64 // VND, major unit
	BankCode  string
	Locale    string
	ReturnURL string
	ClientIP  string
}

// PaymentLink is the outbound redirect produced for one attempt. Nothing is
// persisted at link-creation time; an abandoned link leaves no record.
type PaymentLink struct {
	URL      string
	TxnRef   string
	Amount   int64
	ExpireAt time.Time
}

// BuildOrderInfo embeds the user and declared amount in the strict order-info
// format the callback extractor parses back out.
func BuildOrderInfo(userID int, amount int64) string {
	return fmt.Sprintf("WALLET_TOPUP_USER_%d_AMOUNT_%d", userID, amount)
}

// BuildTransactionReference builds a reference unique per attempt: user id,
// second-resolution timestamp and a random numeric suffix.
func BuildTransactionReference(userID int, now time.Time) string {
	return strconv.Itoa(userID) + now.In(gatewayZone).Format("060102150405") + RandomNumeric(3)
}

// BuildPaymentLink assembles the signed redirect URL for one top-up attempt.
func BuildPaymentLink(cfg config.VNPayConfig, in CreatePaymentInput, now time.Time) PaymentLink {
	now = now.In(gatewayZone)
	expireAt := now.Add(time.Duration(cfg.ExpireMinutes) * time.Minute)
	txnRef := BuildTransactionReference(in.UserID, now)

	params := map[string]string{
		"vnp_Version":    cfg.Version,
		"vnp_Command":    cfg.Command,
		"vnp_TmnCode":    cfg.TmnCode,
		ParamAmount:      strconv.FormatInt(in.Amount*amountScale, 10),
		"vnp_CurrCode":   cfg.CurrCode,
		ParamTxnRef:      txnRef,
		ParamOrderInfo:   BuildOrderInfo(in.UserID, in.Amount),
		"vnp_OrderType":  cfg.OrderType,
		"vnp_Locale":     cfg.DefaultLocale,
		"vnp_ReturnUrl":  cfg.ReturnURL,
		"vnp_IpAddr":     "127.0.0.1",
		"vnp_CreateDate": now.Format(timestampFormat),
		"vnp_ExpireDate": expireAt.Format(timestampFormat),
	}
	if in.BankCode != "" {
		params["vnp_BankCode"] = in.BankCode
	}
	if in.Locale != "" {
		params["vnp_Locale"] = in.Locale
	}
	if in.ReturnURL != "" {
		params["vnp_ReturnUrl"] = in.ReturnURL
	}
	if in.ClientIP != "" {
		params["vnp_IpAddr"] = in.ClientIP
	}

	query := BuildQueryString(params)
	secureHash := GenerateSecureHash(params, cfg.SecretKey)

	return PaymentLink{
		URL:      cfg.PayURL + "?" + query + "&" + ParamSecureHash + "=" + secureHash,
		TxnRef:   txnRef,
		Amount:   in.Amount,
		ExpireAt: expireAt,
	}
}
