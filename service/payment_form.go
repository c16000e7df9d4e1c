package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"loan-widget/apperr"
	"loan-widget/domain"
)

// PaymentForm coordinates one payment form session.
//
// State moves idle -> validating -> submitting -> success|failed -> idle.
// Input changes are ignored while a submission is in flight. Submit itself
// does not refuse a second call while busy; callers that need that guard
// check IsBusy first.
type PaymentForm struct {
	payments PaymentInitiator
	logger   *slog.Logger

	mu        sync.Mutex
	state     domain.FormState
	observers []func(domain.FormState)
}

func NewPaymentForm(payments PaymentInitiator, logger *slog.Logger) *PaymentForm {
	return &PaymentForm{
		payments: payments,
		logger:   logger,
		state:    domain.FormState{Phase: domain.PhaseIdle},
	}
}

// State returns a snapshot of the form.
func (f *PaymentForm) State() domain.FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// OnChange registers fn to receive a snapshot after every state change.
func (f *PaymentForm) OnChange(fn func(domain.FormState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers = append(f.observers, fn)
}

func (f *PaymentForm) OnLoanIDChange(v string) bool {
	return f.update(func(s *domain.FormState) { s.LoanID = v })
}

func (f *PaymentForm) OnAmountChange(v string) bool {
	return f.update(func(s *domain.FormState) { s.Amount = v })
}

func (f *PaymentForm) update(apply func(*domain.FormState)) bool {
	f.mu.Lock()
	if f.state.Phase == domain.PhaseSubmitting {
		f.mu.Unlock()
		return false
	}
	apply(&f.state)
	snap, observers := f.snapshotLocked()
	f.mu.Unlock()

	notify(observers, snap)
	return true
}

// Submit validates the form and, when valid, starts the payment in the
// background. The returned channel is closed once the outcome has been
// applied; for rejected input it is already closed. The payment is not
// cancelled when ctx is.
func (f *PaymentForm) Submit(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	// Observers see the validating snapshot, then the result.
	f.mu.Lock()
	f.state.Phase = domain.PhaseValidating
	validating, observers := f.snapshotLocked()
	loanID := f.state.LoanID
	amount, err := validatePaymentInput(loanID, f.state.Amount)
	if err != nil {
		f.state.Status = err.Error()
		f.state.Phase = domain.PhaseIdle
		snap, _ := f.snapshotLocked()
		f.mu.Unlock()

		notify(observers, validating)
		notify(observers, snap)
		close(done)
		return done
	}

	f.state.IsBusy = true
	f.state.Status = ""
	f.state.Phase = domain.PhaseSubmitting
	snap, _ := f.snapshotLocked()
	f.mu.Unlock()
	notify(observers, validating)
	notify(observers, snap)

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer close(done)

		resp, err := f.payments.InitiatePayment(ctx, loanID, amount)
		status, phase := paymentStatus(resp, err)
		if err != nil {
			f.logger.Error("payment submission failed", "loan_id", loanID, "error", err, "kind", apperr.Kind(err))
		} else {
			f.logger.Info("payment submitted", "loan_id", loanID, "success", resp.Success)
		}

		f.mu.Lock()
		f.state.Status = status
		f.state.LastOutcome = phase
		f.state.IsBusy = false
		f.state.Phase = domain.PhaseIdle
		// IsDone is left untouched: closing the form on success has not been
		// decided yet.
		snap, observers := f.snapshotLocked()
		f.mu.Unlock()

		notify(observers, snap)
	}()

	return done
}

func validatePaymentInput(loanID, amount string) (decimal.Decimal, error) {
	if strings.TrimSpace(loanID) == "" || strings.TrimSpace(amount) == "" {
		return decimal.Zero, &apperr.ValidationError{Msg: StatusBlankInput}
	}
	d, err := decimal.NewFromString(amount)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, &apperr.ValidationError{Msg: StatusInvalidAmount}
	}
	return d, nil
}

func paymentStatus(resp domain.PaymentResponse, err error) (string, domain.FormPhase) {
	var se *apperr.ServerError
	switch {
	case err == nil && resp.Success:
		return StatusSubmitted, domain.PhaseSuccess
	case err == nil:
		if resp.Message == "" {
			return StatusSubmitFailed, domain.PhaseFailed
		}
		return resp.Message, domain.PhaseFailed
	case errors.As(err, &se):
		return fmt.Sprintf(StatusFailedWithCode, se.StatusCode), domain.PhaseFailed
	default:
		return fmt.Sprintf(StatusFailedWithError, err.Error()), domain.PhaseFailed
	}
}

func (f *PaymentForm) snapshotLocked() (domain.FormState, []func(domain.FormState)) {
	observers := make([]func(domain.FormState), len(f.observers))
	copy(observers, f.observers)
	return f.state, observers
}

func notify(observers []func(domain.FormState), s domain.FormState) {
	for _, fn := range observers {
		fn(s)
	}
}

// FormSessions tracks the open payment form sessions by id.
type FormSessions struct {
	payments PaymentInitiator
	logger   *slog.Logger

	mu    sync.RWMutex
	forms map[string]*PaymentForm
}

func NewFormSessions(payments PaymentInitiator, logger *slog.Logger) *FormSessions {
	return &FormSessions{
		payments: payments,
		logger:   logger,
		forms:    make(map[string]*PaymentForm),
	}
}

// Open starts a new form session.
func (s *FormSessions) Open() (string, *PaymentForm) {
	id := uuid.NewString()
	form := NewPaymentForm(s.payments, s.logger.With("form_id", id))

	s.mu.Lock()
	s.forms[id] = form
	s.mu.Unlock()

	return id, form
}

func (s *FormSessions) Get(id string) (*PaymentForm, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.forms[id]
	return f, ok
}

// Close ends a session and discards its state. An in-flight submission
// still completes.
func (s *FormSessions) Close(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.forms[id]
	delete(s.forms, id)
	return ok
}
