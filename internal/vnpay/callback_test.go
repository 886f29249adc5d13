package vnpay

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "QWERTYUIOPASDFGHJKLZXCVBNM123456"

func signedCallback(t *testing.T, userID int, amount int64, txnRef, responseCode, transactionStatus string) map[string]string {
	t.Helper()
	params := map[string]string{
		ParamAmount:            strconv.FormatInt(amount*amountScale, 10),
		ParamTxnRef:            txnRef,
		ParamOrderInfo:         BuildOrderInfo(userID, amount),
		ParamResponseCode:      responseCode,
		ParamTransactionStatus: transactionStatus,
		ParamTransactionNo:     "14400996",
		"vnp_TmnCode":          "DEMO0001",
		"vnp_BankCode":         "NCB",
		"vnp_PayDate":          "20250901120500",
	}
	params[ParamSecureHash] = GenerateSecureHash(params, testSecret)
	return params
}

func TestVerifySignature(t *testing.T) {
	t.Run("valid signature passes", func(t *testing.T) {
		params := signedCallback(t, 7, 500000, "R1", "00", "00")
		assert.Nil(t, VerifySignature(params, testSecret))
	})

	t.Run("missing signature", func(t *testing.T) {
		params := signedCallback(t, 7, 500000, "R1", "00", "00")
		delete(params, ParamSecureHash)

		res := VerifySignature(params, testSecret)
		require.NotNil(t, res)
		assert.Equal(t, RspInvalidSignature, res.RspCode)
	})

	t.Run("forged parameter", func(t *testing.T) {
		params := signedCallback(t, 7, 500000, "R1", "00", "00")
		params[ParamAmount] = "100"

		res := VerifySignature(params, testSecret)
		require.NotNil(t, res)
		assert.Equal(t, RspInvalidSignature, res.RspCode)
	})
}

func TestExtractContext(t *testing.T) {
	t.Run("valid settled callback", func(t *testing.T) {
		params := signedCallback(t, 7, 500000, "R1", "00", "00")

		ctx, res := ExtractContext(params)
		require.Nil(t, res)
		assert.Equal(t, 7, ctx.UserID)
		assert.Equal(t, int64(500000), ctx.Amount)
		assert.Equal(t, "R1", ctx.TxnRef)
		assert.Equal(t, "14400996", ctx.TransactionNo)
		assert.True(t, ctx.Settled())
	})

	t.Run("declined callback is extracted but not settled", func(t *testing.T) {
		params := signedCallback(t, 7, 500000, "R1", "24", "02")

		ctx, res := ExtractContext(params)
		require.Nil(t, res)
		assert.False(t, ctx.Settled())
	})

	t.Run("response code alone does not settle", func(t *testing.T) {
		params := signedCallback(t, 7, 500000, "R1", "00", "01")

		ctx, res := ExtractContext(params)
		require.Nil(t, res)
		assert.False(t, ctx.Settled())
	})

	t.Run("non-numeric amount", func(t *testing.T) {
		params := signedCallback(t, 7, 500000, "R1", "00", "00")
		params[ParamAmount] = "not-a-number"

		ctx, res := ExtractContext(params)
		assert.Nil(t, ctx)
		require.NotNil(t, res)
		assert.Equal(t, RspInvalidAmount, res.RspCode)
	})

	t.Run("malformed order info", func(t *testing.T) {
		params := signedCallback(t, 7, 500000, "R1", "00", "00")
		params[ParamOrderInfo] = "Thanh toan don hang"

		ctx, res := ExtractContext(params)
		assert.Nil(t, ctx)
		require.NotNil(t, res)
		assert.Equal(t, RspInvalidReference, res.RspCode)
	})

	t.Run("declared and settled amount must match", func(t *testing.T) {
		params := signedCallback(t, 7, 500000, "R1", "00", "00")
		params[ParamAmount] = strconv.FormatInt(400000*int64(amountScale), 10)

		ctx, res := ExtractContext(params)
		assert.Nil(t, ctx)
		require.NotNil(t, res)
		assert.Equal(t, RspInvalidAmount, res.RspCode)
		assert.Equal(t, "Amount mismatch", res.Message)
	})

	t.Run("late callback is still extracted", func(t *testing.T) {
		// Links expire on the gateway side; an extraction here carries no
		// expiry gate, so a callback long after the link's window still parses.
		params := signedCallback(t, 7, 500000, "R1", "00", "00")
		params["vnp_PayDate"] = time.Date(2020, 1, 1, 0, 0, 0, 0, gatewayZone).Format(timestampFormat)
		delete(params, ParamSecureHash)
		params[ParamSecureHash] = GenerateSecureHash(params, testSecret)

		assert.Nil(t, VerifySignature(params, testSecret))
		ctx, res := ExtractContext(params)
		require.Nil(t, res)
		assert.True(t, ctx.Settled())
	})
}
