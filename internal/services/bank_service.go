package services

import (
	"encoding/json"
	"net/http"
)

// Bank is one gateway bank option shown on the top-up screen.
type Bank struct {
	Code    string `json:"code"`    // vnp_BankCode value
	Name    string `json:"name"`    // Display name
	LogoURL string `json:"logoUrl"` // Served from the static file handler
}

// supportedBanks mirrors the bank codes accepted by the gateway sandbox.
var supportedBanks = []Bank{
	{Code: "VNPAYQR", Name: "VNPay QR", LogoURL: "/static/banks/vnpayqr.png"},
	{Code: "VNBANK", Name: "Domestic ATM card", LogoURL: "/static/banks/vnbank.png"},
	{Code: "INTCARD", Name: "International card", LogoURL: "/static/banks/intcard.png"},
	{Code: "VIETCOMBANK", Name: "Vietcombank", LogoURL: "/static/banks/vietcombank.png"},
	{Code: "VIETINBANK", Name: "VietinBank", LogoURL: "/static/banks/vietinbank.png"},
	{Code: "BIDV", Name: "BIDV", LogoURL: "/static/banks/bidv.png"},
	{Code: "AGRIBANK", Name: "Agribank", LogoURL: "/static/banks/agribank.png"},
	{Code: "TECHCOMBANK", Name: "Techcombank", LogoURL: "/static/banks/techcombank.png"},
	{Code: "MBBANK", Name: "MBBank", LogoURL: "/static/banks/mbbank.png"},
	{Code: "ACB", Name: "ACB", LogoURL: "/static/banks/acb.png"},
}

type BankService struct{}

func NewBankService() *BankService {
	return &BankService{}
}

// ListBanks lists the bank codes accepted for top-ups
// @Summary List supported banks
// @Tags banks
// @Produce json
// @Success 200 {array} Bank
// @Router /banks [get]
func (bs *BankService) ListBanks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(supportedBanks)
}
