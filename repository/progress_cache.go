package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"loan-widget/apperr"
	"loan-widget/domain"
)

const (
	KeyLoanProgress   = "loan_progress"
	KeyPaymentOutcome = "payment_outcome"
)

// ProgressCache holds the single cached LoanProgress record and the last
// payment outcome message. Each value lives under its own key; writes are
// last-write-wins with no cross-key consistency.
type ProgressCache struct {
	store KeyValueStore
}

func NewProgressCache(store KeyValueStore) *ProgressCache {
	return &ProgressCache{store: store}
}

func (c *ProgressCache) SetLoanProgress(ctx context.Context, p domain.LoanProgress) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode loan progress: %w", err)
	}
	if err := c.store.Set(ctx, KeyLoanProgress, string(raw)); err != nil {
		return fmt.Errorf("store loan progress: %w", err)
	}
	return nil
}

// GetLoanProgress returns nil when no record has been cached.
func (c *ProgressCache) GetLoanProgress(ctx context.Context) (*domain.LoanProgress, error) {
	raw, ok, err := c.store.Get(ctx, KeyLoanProgress)
	if err != nil {
		return nil, fmt.Errorf("read loan progress: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var p domain.LoanProgress
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, &apperr.DeserializationError{What: "cached loan progress", Err: err}
	}
	return &p, nil
}

func (c *ProgressCache) SetPaymentOutcome(ctx context.Context, message string) error {
	if err := c.store.Set(ctx, KeyPaymentOutcome, message); err != nil {
		return fmt.Errorf("store payment outcome: %w", err)
	}
	return nil
}

func (c *ProgressCache) GetPaymentOutcome(ctx context.Context) (string, bool, error) {
	msg, ok, err := c.store.Get(ctx, KeyPaymentOutcome)
	if err != nil {
		return "", false, fmt.Errorf("read payment outcome: %w", err)
	}
	return msg, ok, nil
}
