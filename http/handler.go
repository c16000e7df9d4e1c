package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"loan-widget/push"
	"loan-widget/service"
)

type Handler struct {
	push     push.Handler
	widgets  *service.WidgetService
	host     *service.MemoryWidgetHost
	refresh  service.RefreshSignaler
	sessions *service.FormSessions
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(
	pushHandler push.Handler,
	widgets *service.WidgetService,
	host *service.MemoryWidgetHost,
	refresh service.RefreshSignaler,
	sessions *service.FormSessions,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		push:     pushHandler,
		widgets:  widgets,
		host:     host,
		refresh:  refresh,
		sessions: sessions,
		validate: validator.New(),
		logger:   logger,
	}
}

type RouterOptions struct {
	WebhookSecret  string
	PushLimiter    *RateLimiter
	AllowedOrigins []string
}

func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", SignatureHeader},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/push", func(r chi.Router) {
		if opts.PushLimiter != nil {
			r.Use(RateLimit(opts.PushLimiter))
		}
		r.Use(SignatureMiddleware(opts.WebhookSecret))
		r.Post("/messages", h.PushMessage)
		r.Post("/token", h.PushToken)
	})

	r.Route("/widgets", func(r chi.Router) {
		r.Get("/", h.ListWidgets)
		r.Post("/refresh", h.RefreshWidgets)
		r.Get("/{id}", h.GetWidget)
		r.Put("/{id}", h.PlaceWidget)
		r.Delete("/{id}", h.RemoveWidget)
	})

	r.Route("/forms", func(r chi.Router) {
		r.Post("/", h.OpenForm)
		r.Get("/{id}", h.GetForm)
		r.Patch("/{id}", h.UpdateForm)
		r.Delete("/{id}", h.CloseForm)
		r.Post("/{id}/submit", h.SubmitForm)
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResp{Error: msg})
}
