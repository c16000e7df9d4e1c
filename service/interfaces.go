package service

import (
	"context"

	"github.com/shopspring/decimal"

	"loan-widget/domain"
)

// ProgressStore is the persistent widget cache.
type ProgressStore interface {
	SetLoanProgress(ctx context.Context, p domain.LoanProgress) error
	GetLoanProgress(ctx context.Context) (*domain.LoanProgress, error)
	SetPaymentOutcome(ctx context.Context, message string) error
	GetPaymentOutcome(ctx context.Context) (string, bool, error)
}

type PaymentInitiator interface {
	InitiatePayment(ctx context.Context, loanID string, amount decimal.Decimal) (domain.PaymentResponse, error)
}

type TokenRegistrar interface {
	RegisterDeviceToken(ctx context.Context, token string) (domain.TokenResponse, error)
}

type ProgressFetcher interface {
	GetLoanProgress(ctx context.Context) (*domain.LoanProgress, error)
}

// RefreshSignaler emits the in-process widget refresh signal.
type RefreshSignaler interface {
	Broadcast()
}
