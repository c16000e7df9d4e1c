package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LoanProgress is the cached snapshot of a single loan's repayment state.
type LoanProgress struct {
	LoanID      string          `json:"loanId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	AmountPaid  decimal.Decimal `json:"amountPaid"`
	DueDate     string          `json:"dueDate"`
}

// ProgressPercentage returns floor(amountPaid / totalAmount * 100).
// A record without a positive total reports 0.
func (p LoanProgress) ProgressPercentage() int {
	if !p.TotalAmount.IsPositive() {
		return 0
	}
	// QuoRem at precision 0 truncates without rounding first; paid is never
	// negative, so truncation is the floor.
	q, _ := p.AmountPaid.Mul(hundred).QuoRem(p.TotalAmount, 0)
	return int(q.IntPart())
}

// Validate checks the fields a record must carry before it is cached.
func (p LoanProgress) Validate() error {
	if strings.TrimSpace(p.LoanID) == "" {
		return errors.New("loanId is required")
	}
	if !p.TotalAmount.IsPositive() {
		return errors.New("totalAmount must be greater than zero")
	}
	if p.AmountPaid.IsNegative() {
		return errors.New("amountPaid must not be negative")
	}
	return nil
}
