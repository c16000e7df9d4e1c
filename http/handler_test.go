package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"loan-widget/domain"
	"loan-widget/repository"
	"loan-widget/service"
)

type recordingPush struct {
	mu       sync.Mutex
	messages []domain.PushMessage
	tokens   []string
}

func (p *recordingPush) HandleMessage(_ context.Context, msg domain.PushMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
}

func (p *recordingPush) HandleNewToken(_ context.Context, token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens = append(p.tokens, token)
}

func (p *recordingPush) snapshot() ([]domain.PushMessage, []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.PushMessage(nil), p.messages...), append([]string(nil), p.tokens...)
}

type countingSignal struct{ n atomic.Int32 }

func (c *countingSignal) Broadcast() { c.n.Add(1) }

type blockingPayments struct {
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingPayments) InitiatePayment(ctx context.Context, loanID string, amount decimal.Decimal) (domain.PaymentResponse, error) {
	b.calls.Add(1)
	<-b.release
	return domain.PaymentResponse{Success: true}, nil
}

type testEnv struct {
	server   *httptest.Server
	push     *recordingPush
	signal   *countingSignal
	cache    *repository.ProgressCache
	payments *blockingPayments
}

func newTestEnv(t *testing.T, opts RouterOptions) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &testEnv{
		push:     &recordingPush{},
		signal:   &countingSignal{},
		cache:    repository.NewProgressCache(repository.NewMemoryCache()),
		payments: &blockingPayments{release: make(chan struct{})},
	}
	host := service.NewMemoryWidgetHost()
	widgets := service.NewWidgetService(env.cache, host, "/forms", logger)
	sessions := service.NewFormSessions(env.payments, logger)

	h := NewHandler(env.push, widgets, host, env.signal, sessions, logger)
	env.server = httptest.NewServer(NewRouter(h, opts))
	t.Cleanup(func() {
		select {
		case <-env.payments.release:
		default:
			close(env.payments.release)
		}
		env.server.Close()
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, RouterOptions{})
	resp := env.do(t, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestPushMessage(t *testing.T) {
	env := newTestEnv(t, RouterOptions{})

	resp := env.do(t, http.MethodPost, "/push/messages", `{"data":{"type":"payment_outcome","message":"Paid"}}`, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	messages, _ := env.push.snapshot()
	if len(messages) != 1 || messages[0].Data["message"] != "Paid" {
		t.Fatalf("unexpected messages %+v", messages)
	}

	resp = env.do(t, http.MethodPost, "/push/messages", `{"data":`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", resp.StatusCode)
	}
	if messages, _ := env.push.snapshot(); len(messages) != 1 {
		t.Fatal("malformed body must not reach the handler")
	}
}

func TestPushMessage_Signature(t *testing.T) {
	env := newTestEnv(t, RouterOptions{WebhookSecret: "s3cret"})
	body := `{"data":{"type":"payment_outcome"}}`

	tests := []struct {
		name string
		sig  string
		want int
	}{
		{name: "missing", sig: "", want: http.StatusUnauthorized},
		{name: "wrong", sig: Sign("other", []byte(body)), want: http.StatusUnauthorized},
		{name: "valid", sig: Sign("s3cret", []byte(body)), want: http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.sig != "" {
				headers[SignatureHeader] = tt.sig
			}
			resp := env.do(t, http.MethodPost, "/push/messages", body, headers)
			if resp.StatusCode != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}

	if messages, _ := env.push.snapshot(); len(messages) != 1 {
		t.Fatalf("expected only the signed message to be handled, got %d", len(messages))
	}
}

func TestPushMessage_RateLimited(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)
	t.Cleanup(limiter.Stop)
	env := newTestEnv(t, RouterOptions{PushLimiter: limiter})

	for i := 0; i < 2; i++ {
		if resp := env.do(t, http.MethodPost, "/push/messages", `{}`, nil); resp.StatusCode != http.StatusAccepted {
			t.Fatalf("request %d: expected 202, got %d", i, resp.StatusCode)
		}
	}
	if resp := env.do(t, http.MethodPost, "/push/messages", `{}`, nil); resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
}

func TestPushToken(t *testing.T) {
	env := newTestEnv(t, RouterOptions{})

	if resp := env.do(t, http.MethodPost, "/push/token", `{"token":"  "}`, nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank token, got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodPost, "/push/token", `{"token":"device-1"}`, nil); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if _, tokens := env.push.snapshot(); len(tokens) != 1 || tokens[0] != "device-1" {
		t.Fatalf("unexpected tokens %v", tokens)
	}
}

func TestWidgets(t *testing.T) {
	env := newTestEnv(t, RouterOptions{})
	ctx := context.Background()

	resp := env.do(t, http.MethodPut, "/widgets/w1", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	placed := decode[WidgetResp](t, resp)
	if placed.View.ProgressText != service.ProgressTextPlaceholder || placed.View.ActionURL != "/forms" {
		t.Fatalf("unexpected initial view %+v", placed.View)
	}

	err := env.cache.SetLoanProgress(ctx, domain.LoanProgress{
		LoanID:      "L1",
		TotalAmount: decimal.NewFromInt(1000),
		AmountPaid:  decimal.NewFromInt(250),
		DueDate:     "2026-12-01",
	})
	if err != nil {
		t.Fatal(err)
	}

	if resp := env.do(t, http.MethodPost, "/widgets/refresh", "", nil); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if env.signal.n.Load() != 1 {
		t.Fatal("expected refresh signal")
	}

	// Placing again renders from the updated cache.
	env.do(t, http.MethodPut, "/widgets/w1", "", nil)
	got := decode[WidgetResp](t, env.do(t, http.MethodGet, "/widgets/w1", "", nil))
	if got.View.ProgressText != "Loan Progress: 25%" {
		t.Fatalf("unexpected progress text %q", got.View.ProgressText)
	}

	list := decode[[]WidgetResp](t, env.do(t, http.MethodGet, "/widgets", "", nil))
	if len(list) != 1 || list[0].ID != "w1" {
		t.Fatalf("unexpected widget list %+v", list)
	}

	if resp := env.do(t, http.MethodDelete, "/widgets/w1", "", nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodGet, "/widgets/w1", "", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestForms_ValidationFailure(t *testing.T) {
	env := newTestEnv(t, RouterOptions{})

	opened := decode[FormResp](t, env.do(t, http.MethodPost, "/forms", "", nil))
	if opened.ID == "" || opened.State.Phase != domain.PhaseIdle {
		t.Fatalf("unexpected opened form %+v", opened)
	}

	env.do(t, http.MethodPatch, "/forms/"+opened.ID, `{"loanId":"L1","amount":"-5"}`, nil)

	resp := env.do(t, http.MethodPost, "/forms/"+opened.ID+"/submit", "", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	got := decode[FormResp](t, resp)
	if got.State.Status != service.StatusInvalidAmount {
		t.Fatalf("unexpected status %q", got.State.Status)
	}
	if env.payments.calls.Load() != 0 {
		t.Fatal("expected no payment call")
	}
}

func TestForms_BusyGuard(t *testing.T) {
	env := newTestEnv(t, RouterOptions{})

	opened := decode[FormResp](t, env.do(t, http.MethodPost, "/forms", "", nil))
	path := "/forms/" + opened.ID

	resp := env.do(t, http.MethodPatch, path, `{"loanId":"L1","amount":"50"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	submitted := decode[FormResp](t, env.do(t, http.MethodPost, path+"/submit", "", nil))
	if !submitted.State.IsBusy || submitted.State.Phase != domain.PhaseSubmitting {
		t.Fatalf("expected busy form, got %+v", submitted.State)
	}

	if resp := env.do(t, http.MethodPost, path+"/submit", "", nil); resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for second submit, got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodPatch, path, `{"amount":"60"}`, nil); resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for edit while submitting, got %d", resp.StatusCode)
	}

	close(env.payments.release)

	deadline := time.Now().Add(2 * time.Second)
	for {
		state := decode[FormResp](t, env.do(t, http.MethodGet, path, "", nil)).State
		if !state.IsBusy {
			if state.Status != service.StatusSubmitted {
				t.Fatalf("unexpected final status %q", state.Status)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("submission did not complete")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if env.payments.calls.Load() != 1 {
		t.Fatalf("expected one payment call, got %d", env.payments.calls.Load())
	}

	if resp := env.do(t, http.MethodDelete, path, "", nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodGet, path, "", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after close, got %d", resp.StatusCode)
	}
}

func TestForms_UnknownSession(t *testing.T) {
	env := newTestEnv(t, RouterOptions{})
	resp := env.do(t, http.MethodPost, "/forms/missing/submit", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSignatureMiddleware_PreservesBody(t *testing.T) {
	var seen []byte
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = io.ReadAll(r.Body)
	})
	body := []byte(`{"a":1}`)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, strings.ToUpper(Sign("k", body)))
	rec := httptest.NewRecorder()
	SignatureMiddleware("k")(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !bytes.Equal(seen, body) {
		t.Fatalf("expected body to reach handler, got %q", seen)
	}
}

type tokenRegistrarFunc func(ctx context.Context, token string) (domain.TokenResponse, error)

func (f tokenRegistrarFunc) RegisterDeviceToken(ctx context.Context, token string) (domain.TokenResponse, error) {
	return f(ctx, token)
}

func TestPushToken_RegistrationNotTiedToRequest(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := repository.NewProgressCache(repository.NewMemoryCache())

	ctxErr := make(chan error, 1)
	devices := tokenRegistrarFunc(func(ctx context.Context, token string) (domain.TokenResponse, error) {
		ctxErr <- ctx.Err()
		return domain.TokenResponse{Success: true}, nil
	})
	notifications := service.NewNotificationService(cache, devices, &countingSignal{}, logger)

	host := service.NewMemoryWidgetHost()
	widgets := service.NewWidgetService(cache, host, "/forms", logger)
	sessions := service.NewFormSessions(&blockingPayments{release: make(chan struct{})}, logger)
	router := NewRouter(NewHandler(notifications, widgets, host, &countingSignal{}, sessions, logger), RouterOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/push/token", strings.NewReader(`{"token":"device-1"}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	notifications.Wait()

	select {
	case err := <-ctxErr:
		if err != nil {
			t.Fatalf("token registration was cancelled with the request: %v", err)
		}
	default:
		t.Fatal("expected a registration attempt")
	}
}
