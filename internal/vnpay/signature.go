package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"math/rand"
	"sort"
	"strings"
)

// VNPay parameter names shared by the request builder and callback handling.
const (
	ParamSecureHash        = "vnp_SecureHash"
	ParamSecureHashType    = "vnp_SecureHashType"
	ParamTxnRef            = "vnp_TxnRef"
	ParamOrderInfo         = "vnp_OrderInfo"
	ParamAmount            = "vnp_Amount"
	ParamResponseCode      = "vnp_ResponseCode"
	ParamTransactionStatus = "vnp_TransactionStatus"
	ParamTransactionNo     = "vnp_TransactionNo"
)

// HmacSHA512 computes the keyed hash over data and returns lowercase hex.
func HmacSHA512(key, data string) string {
	mac := hmac.New(sha512.New, []byte(key))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// sortedKeys returns the keys of params with non-blank values, sorted
// lexicographically. Blank and missing values never participate in signing.
func sortedKeys(params map[string]string) []string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if strings.TrimSpace(v) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// urlEncode percent-encodes s the way java.net.URLEncoder does: unreserved
// characters pass through, space becomes '+', everything else is %XX per
// UTF-8 byte. Both parties must encode identically or signatures diverge.
func urlEncode(s string) string {
	var b strings.Builder
	for _, c := range []byte(s) {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '.', c == '-', c == '*', c == '_':
			b.WriteByte(c)
		case c == ' ':
			b.WriteByte('+')
		default:
			b.WriteString("%")
			b.WriteString(strings.ToUpper(hex.EncodeToString([]byte{c})))
		}
	}
	return b.String()
}

// BuildHashData builds the canonical "key=value&..." string that gets signed.
// Only values are encoded, matching the gateway's signing convention.
func BuildHashData(params map[string]string) string {
	keys := sortedKeys(params)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+urlEncode(params[k]))
	}
	return strings.Join(pairs, "&")
}

// BuildQueryString builds the redirect query string with both keys and
// values encoded.
func BuildQueryString(params map[string]string) string {
	keys := sortedKeys(params)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, urlEncode(k)+"="+urlEncode(params[k]))
	}
	return strings.Join(pairs, "&")
}

// GenerateSecureHash signs the canonical form of params with the secret key.
func GenerateSecureHash(params map[string]string, secretKey string) string {
	return HmacSHA512(secretKey, BuildHashData(params))
}

// ValidateSecureHash recomputes the signature over params (minus the
// signature fields themselves) and compares case-insensitively.
func ValidateSecureHash(params map[string]string, secretKey, secureHash string) bool {
	sanitized := make(map[string]string, len(params))
	for k, v := range params {
		if k == ParamSecureHash || k == ParamSecureHashType {
			continue
		}
		sanitized[k] = v
	}
	calculated := GenerateSecureHash(sanitized, secretKey)
	return strings.EqualFold(calculated, secureHash)
}

// RandomNumeric returns n random decimal digits.
func RandomNumeric(n int) string {
	const digits = "0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = digits[rand.Intn(len(digits))]
	}
	return string(b)
}
