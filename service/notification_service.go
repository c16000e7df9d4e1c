package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"loan-widget/apperr"
	"loan-widget/domain"
)

// NotificationService applies server-pushed messages to the widget cache.
// Nothing it does is surfaced to the transport: failures are logged.
type NotificationService struct {
	cache   ProgressStore
	devices TokenRegistrar
	refresh RefreshSignaler
	logger  *slog.Logger

	inflight sync.WaitGroup
}

func NewNotificationService(cache ProgressStore, devices TokenRegistrar, refresh RefreshSignaler, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		cache:   cache,
		devices: devices,
		refresh: refresh,
		logger:  logger,
	}
}

// HandleMessage dispatches one inbound push message on its data "type".
func (s *NotificationService) HandleMessage(ctx context.Context, msg domain.PushMessage) {
	s.logger.Debug("push message received", "from", msg.From)

	if len(msg.Data) > 0 {
		s.logger.Debug("push data payload", "data", msg.Data)

		switch msg.Data["type"] {
		case domain.NotificationLoanUpdate:
			s.handleLoanUpdate(ctx, msg.Data)
		case domain.NotificationPaymentOutcome:
			s.handlePaymentOutcome(ctx, msg.Data)
		default:
			s.logger.Warn("unknown notification type received", "type", msg.Data["type"])
		}
	}

	if msg.Notification != nil {
		s.logger.Debug("push notification body", "title", msg.Notification.Title, "body", msg.Notification.Body)
	}
}

func (s *NotificationService) handleLoanUpdate(ctx context.Context, data map[string]string) {
	p, err := decodeLoanProgress(data)
	if err != nil {
		s.logger.Error("failed to parse loan progress", "error", err, "kind", apperr.Kind(err))
		return
	}

	if err := s.cache.SetLoanProgress(ctx, p); err != nil {
		s.logger.Error("failed to store loan progress", "loan_id", p.LoanID, "error", err)
		return
	}

	s.logger.Info("loan progress updated", "loan_id", p.LoanID, "progress", p.ProgressPercentage())
	s.refresh.Broadcast()
}

func decodeLoanProgress(data map[string]string) (domain.LoanProgress, error) {
	var p domain.LoanProgress

	raw, ok := data["loanProgress"]
	if !ok {
		return p, &apperr.DeserializationError{What: "loan progress", Err: errors.New("loanProgress field missing")}
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return p, &apperr.DeserializationError{What: "loan progress", Err: err}
	}
	if err := p.Validate(); err != nil {
		return p, &apperr.DeserializationError{What: "loan progress", Err: err}
	}
	return p, nil
}

func (s *NotificationService) handlePaymentOutcome(ctx context.Context, data map[string]string) {
	message, ok := data["message"]
	if !ok {
		message = DefaultOutcomeMessage
	}

	if err := s.cache.SetPaymentOutcome(ctx, message); err != nil {
		s.logger.Error("failed to store payment outcome", "error", err)
		return
	}

	s.logger.Info("payment outcome updated", "message", message)
	s.refresh.Broadcast()
}

// HandleNewToken registers a refreshed device token with the server in the
// background and returns immediately. The attempt is made once and is not
// cancelled when ctx is.
func (s *NotificationService) HandleNewToken(ctx context.Context, token string) {
	s.logger.Info("device token refreshed")

	ctx = context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.registerToken(ctx, token)
	}()
}

// Wait blocks until every started token registration has finished.
func (s *NotificationService) Wait() {
	s.inflight.Wait()
}

func (s *NotificationService) registerToken(ctx context.Context, token string) {
	resp, err := s.devices.RegisterDeviceToken(ctx, token)
	if err != nil {
		s.logger.Error("failed to update device token", "error", err, "kind", apperr.Kind(err))
		return
	}
	if !resp.Success {
		err := &apperr.ApplicationError{Msg: resp.Message}
		s.logger.Error("device token rejected", "error", err, "kind", apperr.Kind(err))
		return
	}
	s.logger.Info("device token updated")
}
