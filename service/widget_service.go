package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// WidgetView holds the visible text of one widget instance.
type WidgetView struct {
	ProgressText string `json:"progressText"`
	OutcomeText  string `json:"outcomeText"`
	ActionURL    string `json:"actionUrl"`
}

// WidgetHost is the surface that displays widget instances. UpdateWidget
// only touches instances that are still placed; AddWidget registers one.
type WidgetHost interface {
	WidgetIDs() []string
	AddWidget(id string, view WidgetView)
	UpdateWidget(id string, view WidgetView) bool
}

// WidgetService renders widget text from the cache.
type WidgetService struct {
	cache     ProgressStore
	host      WidgetHost
	actionURL string
	logger    *slog.Logger
}

func NewWidgetService(cache ProgressStore, host WidgetHost, actionURL string, logger *slog.Logger) *WidgetService {
	return &WidgetService{
		cache:     cache,
		host:      host,
		actionURL: actionURL,
		logger:    logger,
	}
}

// Render builds the current view. Cache read failures degrade to the
// placeholder texts.
func (s *WidgetService) Render(ctx context.Context) WidgetView {
	view := WidgetView{
		ProgressText: ProgressTextPlaceholder,
		ActionURL:    s.actionURL,
	}

	p, err := s.cache.GetLoanProgress(ctx)
	if err != nil {
		s.logger.Error("failed to read loan progress", "error", err)
	} else if p != nil {
		view.ProgressText = fmt.Sprintf(ProgressTextFormat, p.ProgressPercentage())
	}

	outcome, ok, err := s.cache.GetPaymentOutcome(ctx)
	if err != nil {
		s.logger.Error("failed to read payment outcome", "error", err)
	} else if ok {
		view.OutcomeText = outcome
	}

	return view
}

// RefreshAll pushes a fresh view to every widget instance on the host.
func (s *WidgetService) RefreshAll(ctx context.Context) {
	ids := s.host.WidgetIDs()
	if len(ids) == 0 {
		return
	}

	view := s.Render(ctx)
	updated := 0
	for _, id := range ids {
		if s.host.UpdateWidget(id, view) {
			updated++
		}
	}
	s.logger.Debug("widgets refreshed", "count", updated)
}

// Place renders a newly placed widget instance.
func (s *WidgetService) Place(ctx context.Context, id string) WidgetView {
	view := s.Render(ctx)
	s.host.AddWidget(id, view)
	return view
}

// Run re-renders all widgets on every refresh signal until ctx is done.
func (s *WidgetService) Run(ctx context.Context, signals <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-signals:
			s.RefreshAll(ctx)
		}
	}
}

// MemoryWidgetHost keeps the last rendered view of each placed widget.
type MemoryWidgetHost struct {
	mu    sync.RWMutex
	views map[string]WidgetView
}

func NewMemoryWidgetHost() *MemoryWidgetHost {
	return &MemoryWidgetHost{views: make(map[string]WidgetView)}
}

func (h *MemoryWidgetHost) WidgetIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.views))
	for id := range h.views {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *MemoryWidgetHost) AddWidget(id string, view WidgetView) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.views[id] = view
}

// UpdateWidget replaces the view of a placed widget and reports whether id
// was placed.
func (h *MemoryWidgetHost) UpdateWidget(id string, view WidgetView) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.views[id]; !ok {
		return false
	}
	h.views[id] = view
	return true
}

func (h *MemoryWidgetHost) View(id string) (WidgetView, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.views[id]
	return v, ok
}

func (h *MemoryWidgetHost) Remove(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.views[id]
	delete(h.views, id)
	return ok
}
