package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"loan-widget/domain"
	"loan-widget/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCache() *repository.ProgressCache {
	return repository.NewProgressCache(repository.NewMemoryCache())
}

type signalCounter struct {
	n atomic.Int32
}

func (s *signalCounter) Broadcast() { s.n.Add(1) }

func (s *signalCounter) count() int { return int(s.n.Load()) }

type paymentStub struct {
	mu      sync.Mutex
	calls   []domain.PaymentRequest
	resp    domain.PaymentResponse
	err     error
	release chan struct{}
}

func (p *paymentStub) InitiatePayment(ctx context.Context, loanID string, amount decimal.Decimal) (domain.PaymentResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, domain.PaymentRequest{LoanID: loanID, Amount: amount})
	release := p.release
	p.mu.Unlock()

	if release != nil {
		<-release
	}
	return p.resp, p.err
}

func (p *paymentStub) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type tokenStub struct {
	tokens []string
	resp   domain.TokenResponse
	err    error
}

func (s *tokenStub) RegisterDeviceToken(ctx context.Context, token string) (domain.TokenResponse, error) {
	s.tokens = append(s.tokens, token)
	return s.resp, s.err
}
