package vnpay

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlink/backend/internal/config"
)

func testConfig() config.VNPayConfig {
	return config.VNPayConfig{
		PayURL:        "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:     "http://localhost:8080/api/v1/payments/vnpay/return",
		TmnCode:       "DEMO0001",
		SecretKey:     "QWERTYUIOPASDFGHJKLZXCVBNM123456",
		Version:       "2.1.0",
		Command:       "pay",
		OrderType:     "wallet_topup",
		CurrCode:      "VND",
		DefaultLocale: "vn",
		ExpireMinutes: 15,
	}
}

func TestBuildOrderInfo(t *testing.T) {
	assert.Equal(t, "WALLET_TOPUP_USER_7_AMOUNT_500000", BuildOrderInfo(7, 500000))
}

func TestBuildTransactionReference(t *testing.T) {
	now := time.Date(2025, 9, 1, 12, 30, 45, 0, gatewayZone)

	ref := BuildTransactionReference(7, now)
	assert.True(t, strings.HasPrefix(ref, "7250901123045"))
	assert.Len(t, ref, len("7250901123045")+3)
}

func TestBuildPaymentLink(t *testing.T) {
	cfg := testConfig()
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, gatewayZone)

	link := BuildPaymentLink(cfg, CreatePaymentInput{UserID: 7, Amount: 500000}, now)

	parsed, err := url.Parse(link.URL)
	require.NoError(t, err)
	query := parsed.Query()

	t.Run("amount is scaled by 100", func(t *testing.T) {
		assert.Equal(t, "50000000", query.Get("vnp_Amount"))
	})

	t.Run("timestamps use the gateway format", func(t *testing.T) {
		assert.Equal(t, "20250901120000", query.Get("vnp_CreateDate"))
		assert.Equal(t, "20250901121500", query.Get("vnp_ExpireDate"))
	})

	t.Run("order info embeds user and amount", func(t *testing.T) {
		assert.Equal(t, "WALLET_TOPUP_USER_7_AMOUNT_500000", query.Get("vnp_OrderInfo"))
	})

	t.Run("defaults are applied", func(t *testing.T) {
		assert.Equal(t, "vn", query.Get("vnp_Locale"))
		assert.Equal(t, "VND", query.Get("vnp_CurrCode"))
		assert.Equal(t, cfg.ReturnURL, query.Get("vnp_ReturnUrl"))
		assert.Equal(t, "127.0.0.1", query.Get("vnp_IpAddr"))
		assert.Empty(t, query.Get("vnp_BankCode"))
	})

	t.Run("signature verifies", func(t *testing.T) {
		params := make(map[string]string)
		for k := range query {
			params[k] = query.Get(k)
		}
		assert.True(t, ValidateSecureHash(params, cfg.SecretKey, query.Get(ParamSecureHash)))
	})

	t.Run("expiry matches the link", func(t *testing.T) {
		assert.Equal(t, now.Add(15*time.Minute), link.ExpireAt)
	})
}

func TestBuildPaymentLinkOverrides(t *testing.T) {
	cfg := testConfig()
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, gatewayZone)

	link := BuildPaymentLink(cfg, CreatePaymentInput{
		UserID:    7,
		Amount:    500000,
		BankCode:  "VIETCOMBANK",
		Locale:    "en",
		ReturnURL: "https://app.example.com/wallet/return",
		ClientIP:  "203.0.113.9",
	}, now)

	parsed, err := url.Parse(link.URL)
	require.NoError(t, err)
	query := parsed.Query()

	assert.Equal(t, "VIETCOMBANK", query.Get("vnp_BankCode"))
	assert.Equal(t, "en", query.Get("vnp_Locale"))
	assert.Equal(t, "https://app.example.com/wallet/return", query.Get("vnp_ReturnUrl"))
	assert.Equal(t, "203.0.113.9", query.Get("vnp_IpAddr"))
}
