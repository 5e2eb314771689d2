// Package daemon provides the long-running practice metrics service.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/theirongolddev/praxis/internal/pipeline"
)

// Reporter computes the reports the daemon serves.
type Reporter interface {
	Compute(ctx context.Context, req pipeline.Request) (*pipeline.Report, error)
	Forecast(ctx context.Context, req pipeline.ForecastRequest) (*pipeline.ForecastReport, error)
}

// Config controls the daemon runtime behavior.
type Config struct {
	Addr          string
	Refresh       string // cron spec, e.g. "@every 15m"
	EventsBuffer  int
	Scope         pipeline.Scope
	Compare       pipeline.Comparison
	HistoryMonths int
	MonthsAhead   int
	Logger        *logrus.Logger
}

// Snapshot is the compact practice state carried in status and event payloads.
type Snapshot struct {
	At             time.Time `json:"at"`
	Period         string    `json:"period"`
	Score          float64   `json:"score"`
	Status         string    `json:"status"`
	NetRevenue     float64   `json:"net_revenue"`
	NetIncome      float64   `json:"net_income"`
	ActualSessions int       `json:"actual_sessions"`
	CriticalAlerts int       `json:"critical_alerts"`
	DataQuality    string    `json:"data_quality"`
}

// Delta captures the change between two snapshots.
type Delta struct {
	Score          float64 `json:"score"`
	NetIncome      float64 `json:"net_income"`
	CriticalAlerts int     `json:"critical_alerts"`
}

func (d Delta) isZero() bool {
	return d.Score == 0 &&
		d.NetIncome == 0 &&
		d.CriticalAlerts == 0
}

// Event is emitted whenever the snapshot changes.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Snapshot  Snapshot  `json:"snapshot"`
	Delta     Delta     `json:"delta"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time `json:"started_at"`
	LastRefreshAt   time.Time `json:"last_refresh_at"`
	Refresh         string    `json:"refresh"`
	RefreshCount    int64     `json:"refresh_count"`
	Scope           string    `json:"scope"`
	Compare         string    `json:"compare"`
	Summary         Snapshot  `json:"summary"`
	LastError       string    `json:"last_error,omitempty"`
	EventCount      int       `json:"event_count"`
	SubscriberCount int       `json:"subscriber_count"`
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg      Config
	reporter Reporter
	log      *logrus.Logger

	mu            sync.RWMutex
	startedAt     time.Time
	lastRefreshAt time.Time
	refreshCount  int64
	lastError     string
	hasSnapshot   bool
	snapshot      Snapshot
	nextEventID   int64
	events        []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a daemon service serving reports from r.
func New(cfg Config, r Reporter) *Service {
	if cfg.Refresh == "" {
		cfg.Refresh = "@every 15m"
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8790"
	}
	if cfg.Scope == "" {
		cfg.Scope = pipeline.ScopeMonth
	}
	if cfg.Compare == "" {
		cfg.Compare = pipeline.ComparePlan
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}

	return &Service{
		cfg:       cfg,
		reporter:  r,
		log:       log,
		startedAt: time.Now(),
		subs:      make(map[int]chan Event),
	}
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/forecast", s.handleForecast)
		r.Get("/events", s.handleEvents)
		r.Get("/stream", s.handleStream)
	})
	return r
}

// Run serves the HTTP API and refreshes on the cron schedule until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	sched := cron.New()
	if _, err := sched.AddFunc(s.cfg.Refresh, func() { s.refresh(ctx) }); err != nil {
		return fmt.Errorf("scheduling refresh %q: %w", s.cfg.Refresh, err)
	}

	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.log.WithFields(logrus.Fields{
		"addr":    s.cfg.Addr,
		"refresh": s.cfg.Refresh,
		"scope":   s.cfg.Scope,
		"compare": s.cfg.Compare,
	}).Info("daemon started")

	// Seed initial snapshot so status is useful immediately.
	s.refresh(ctx)
	sched.Start()
	defer sched.Stop()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("daemon http server: %w", err)
	}
}

func (s *Service) refresh(ctx context.Context) {
	report, err := s.reporter.Compute(ctx, pipeline.Request{Scope: s.cfg.Scope, Compare: s.cfg.Compare})
	now := time.Now()
	if err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.lastRefreshAt = now
		s.refreshCount++
		s.mu.Unlock()
		s.log.WithError(err).Error("refresh failed")
		return
	}

	snap := snapshotFromReport(report, now)

	var (
		ev      Event
		publish bool
	)

	s.mu.Lock()
	prev := s.snapshot
	prevExists := s.hasSnapshot

	s.hasSnapshot = true
	s.snapshot = snap
	s.lastRefreshAt = now
	s.refreshCount++
	s.lastError = ""

	if !prevExists {
		s.nextEventID++
		ev = Event{ID: s.nextEventID, Type: "snapshot", Timestamp: now, Snapshot: snap}
		publish = true
	} else if delta := diffSnapshots(prev, snap); !delta.isZero() {
		s.nextEventID++
		ev = Event{ID: s.nextEventID, Type: "metrics_delta", Timestamp: now, Snapshot: snap, Delta: delta}
		publish = true
	}
	s.mu.Unlock()

	if publish {
		s.log.WithFields(logrus.Fields{"event": ev.Type, "score": snap.Score}).Debug("publishing event")
		s.publishEvent(ev)
	}
}

func snapshotFromReport(r *pipeline.Report, at time.Time) Snapshot {
	return Snapshot{
		At:             at,
		Period:         r.Period.Label(),
		Score:          r.Viability.Score,
		Status:         string(r.Viability.Status),
		NetRevenue:     r.NetRevenue,
		NetIncome:      r.NetIncome,
		ActualSessions: r.ActualSessions,
		CriticalAlerts: r.AlertSummary.Critical,
		DataQuality:    string(r.DataQuality),
	}
}

func diffSnapshots(prev, curr Snapshot) Delta {
	return Delta{
		Score:          curr.Score - prev.Score,
		NetIncome:      curr.NetIncome - prev.NetIncome,
		CriticalAlerts: curr.CriticalAlerts - prev.CriticalAlerts,
	}
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:       s.startedAt,
		LastRefreshAt:   s.lastRefreshAt,
		Refresh:         s.cfg.Refresh,
		RefreshCount:    s.refreshCount,
		Scope:           string(s.cfg.Scope),
		Compare:         string(s.cfg.Compare),
		Summary:         s.snapshot,
		LastError:       s.lastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshotStatus())
}

func (s *Service) handleMetrics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := pipeline.Request{Scope: s.cfg.Scope, Compare: s.cfg.Compare}

	if v := q.Get("scope"); v != "" {
		scope, err := pipeline.ParseScope(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req.Scope = scope
	}
	if v := q.Get("compare"); v != "" {
		cmp, err := pipeline.ParseComparison(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req.Compare = cmp
	}

	report, err := s.reporter.Compute(r.Context(), req)
	if err != nil {
		s.log.WithError(err).Error("computing metrics")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Service) handleForecast(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := pipeline.ForecastRequest{HistoryMonths: s.cfg.HistoryMonths, MonthsAhead: s.cfg.MonthsAhead}

	var err error
	if req.HistoryMonths, err = intParam(q.Get("history"), req.HistoryMonths); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("history: %w", err))
		return
	}
	if req.MonthsAhead, err = intParam(q.Get("months"), req.MonthsAhead); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("months: %w", err))
		return
	}
	if req.FixedCosts, err = floatParam(q.Get("fixed")); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("fixed: %w", err))
		return
	}
	if req.PlannedRevenue, err = floatParam(q.Get("planned")); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("planned: %w", err))
		return
	}

	report, err := s.reporter.Forecast(r.Context(), req)
	if err != nil {
		s.log.WithError(err).Error("computing forecast")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}

// floatParam returns nil for an absent parameter.
func floatParam(v string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, err
	}
	if f < 0 {
		return nil, fmt.Errorf("must not be negative, got %v", f)
	}
	return &f, nil
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, events)
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	writeSSE(w, Event{Type: "snapshot", Timestamp: time.Now(), Snapshot: s.snapshotStatus().Summary})
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
