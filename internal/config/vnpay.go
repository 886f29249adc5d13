package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// VNPayConfig holds the gateway integration settings. It is built once at
// startup and never mutated afterwards; handlers receive it by value.
type VNPayConfig struct {
	PayURL        string
	ReturnURL     string
	TmnCode       string
	SecretKey     string
	Version       string
	Command       string
	OrderType     string
	CurrCode      string
	DefaultLocale string
	ExpireMinutes int
}

// GetVNPayConfig returns the gateway configuration with defaults
func GetVNPayConfig() VNPayConfig {
	viper.SetDefault("vnpay.version", "2.1.0")
	viper.SetDefault("vnpay.command", "pay")
	viper.SetDefault("vnpay.order_type", "wallet_topup")
	viper.SetDefault("vnpay.curr_code", "VND")
	viper.SetDefault("vnpay.default_locale", "vn")
	viper.SetDefault("vnpay.expire_minutes", 15)

	return VNPayConfig{
		PayURL:        viper.GetString("vnpay.pay_url"),
		ReturnURL:     viper.GetString("vnpay.return_url"),
		TmnCode:       viper.GetString("vnpay.tmn_code"),
		SecretKey:     viper.GetString("vnpay.secret_key"),
		Version:       viper.GetString("vnpay.version"),
		Command:       viper.GetString("vnpay.command"),
		OrderType:     viper.GetString("vnpay.order_type"),
		CurrCode:      viper.GetString("vnpay.curr_code"),
		DefaultLocale: viper.GetString("vnpay.default_locale"),
		ExpireMinutes: viper.GetInt("vnpay.expire_minutes"),
	}
}

// Validate reports a configuration error for any missing mandatory field.
// A broken gateway config is fatal at startup, never a per-request failure.
func (c VNPayConfig) Validate() error {
	if c.PayURL == "" {
		return fmt.Errorf("vnpay.pay_url is required")
	}
	if c.ReturnURL == "" {
		return fmt.Errorf("vnpay.return_url is required")
	}
	if c.TmnCode == "" {
		return fmt.Errorf("vnpay.tmn_code is required")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("vnpay.secret_key is required")
	}
	return nil
}
