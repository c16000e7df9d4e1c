package domain

import "github.com/shopspring/decimal"

type PaymentRequest struct {
	LoanID string
	Amount decimal.Decimal
}

type PaymentResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type TokenRequest struct {
	DeviceToken string `json:"deviceToken"`
}

type TokenResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
