package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"dialpilot/pkg/backend"
	"dialpilot/pkg/channel"
	"dialpilot/pkg/config"
	"dialpilot/pkg/session"
	sessionstore "dialpilot/pkg/session/store"
	"dialpilot/pkg/tools"
	"dialpilot/pkg/tools/calc"
	"dialpilot/pkg/transcript"
)

const (
	defaultStatusHost = "0.0.0.0"
	defaultStatusPort = 18790

	healthCheckInterval = 30 * time.Second
)

// Service runs the channel adapters, the responder core, and the status
// server, and owns their shared lifecycle.
type Service struct {
	cfg       *config.Config
	log       *slog.Logger
	client    backend.Client
	responder session.Responder
	contexts  sessionstore.Store
	sink      *transcript.AsyncSink
	channels  []channel.Adapter

	mu              sync.RWMutex
	startedAt       time.Time
	backendLastOKAt time.Time
	backendLastErr  string
	channelStates   map[string]channelState
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status          string                  `json:"status"`
	UptimeSeconds   int64                   `json:"uptime_seconds"`
	BackendLastOKAt string                  `json:"backend_last_ok_at,omitempty"`
	BackendLastErr  string                  `json:"backend_last_error,omitempty"`
	Channels        map[string]channelState `json:"channels"`
}

// NewService wires the responder core and prepares the channel adapters.
func NewService(cfg *config.Config, adapters []channel.Adapter, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if len(adapters) == 0 {
		return nil, errors.New("at least one channel adapter is required")
	}
	if log == nil {
		log = slog.Default()
	}

	client, err := backend.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize generation backend: %w", err)
	}

	var sink *transcript.AsyncSink
	if cfg.Transcript.Enabled {
		inner, err := transcript.New(cfg.Transcript, log)
		if err != nil {
			return nil, fmt.Errorf("initialize transcript sink: %w", err)
		}
		sink = transcript.NewAsync(inner, cfg.Transcript.RetryAttempts, log)
	}

	contexts, err := sessionstore.New(cfg.Contexts)
	if err != nil {
		return nil, fmt.Errorf("initialize context store: %w", err)
	}

	responder, err := newResponder(cfg, client, contexts, sink, log)
	if err != nil {
		return nil, err
	}

	channelStates := make(map[string]channelState, len(adapters))
	for _, adapter := range adapters {
		channelStates[adapter.Name()] = channelState{}
	}

	return &Service{
		cfg:           cfg,
		log:           log.With("component", "gateway.service"),
		client:        client,
		responder:     responder,
		contexts:      contexts,
		sink:          sink,
		channels:      adapters,
		channelStates: channelStates,
	}, nil
}

// newResponder selects the conversation or single-turn reply strategy.
func newResponder(cfg *config.Config, client backend.Client, contexts sessionstore.Store, sink *transcript.AsyncSink, log *slog.Logger) (session.Responder, error) {
	var sinkIface transcript.Sink
	if sink != nil {
		sinkIface = sink
	}

	switch cfg.Responder.Mode {
	case "", "conversation":
		registry := tools.NewRegistry(log)
		registry.Register(calc.New())
		return session.NewManager(client, contexts, registry, sinkIface, cfg.Responder, log), nil
	case "oneshot":
		completer, err := backend.NewCompleter(cfg)
		if err != nil {
			return nil, fmt.Errorf("initialize completer: %w", err)
		}
		return session.NewSingleTurn(completer, cfg.Business, sinkIface, log), nil
	default:
		return nil, fmt.Errorf("unsupported responder mode: %s", cfg.Responder.Mode)
	}
}

// Run starts every channel adapter plus the status server and blocks until
// the context is cancelled or a component fails.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	if err := s.checkBackendHealth(ctx); err != nil {
		return err
	}

	serverErrors := make(chan error, 1)
	go s.runStatusServer(ctx, serverErrors)

	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = s.checkBackendHealth(ctx)
			}
		}
	}()

	errCh := make(chan error, len(s.channels))
	for _, adapter := range s.channels {
		adapter := adapter
		s.setChannelState(adapter.Name(), channelState{Running: true})

		go func() {
			err := adapter.Run(ctx, s.handleInbound)
			s.setChannelState(adapter.Name(), channelState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("run %s channel: %w", adapter.Name(), err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		s.shutdown()
		return nil
	case err := <-serverErrors:
		s.shutdown()
		return err
	case err := <-errCh:
		s.shutdown()
		return err
	}
}

func (s *Service) shutdown() {
	if s.sink != nil {
		s.sink.Close()
	}
	if err := s.contexts.Close(); err != nil {
		s.log.Warn("Failed to close context store", "error", err)
	}
}

func (s *Service) runStatusServer(ctx context.Context, errCh chan<- error) {
	host := strings.TrimSpace(s.cfg.Gateway.Host)
	if host == "" {
		host = defaultStatusHost
	}

	port := s.cfg.Gateway.Port
	if port <= 0 {
		port = defaultStatusPort
	}

	addr := host + ":" + strconv.Itoa(port)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/", s.handleHome)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway status server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("start status server: %w", err)
	}
}

func (s *Service) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("dialpilot auto-responder is running."))
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	channels := make(map[string]channelState, len(s.channelStates))
	for name, state := range s.channelStates {
		channels[name] = state
	}

	backendLastOK := ""
	if !s.backendLastOKAt.IsZero() {
		backendLastOK = s.backendLastOKAt.Format(time.RFC3339)
	}

	return statusResponse{
		Status:          status,
		UptimeSeconds:   uptime,
		BackendLastOKAt: backendLastOK,
		BackendLastErr:  s.backendLastErr,
		Channels:        channels,
	}
}

func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.channelStates) == 0 {
		return false
	}

	for _, state := range s.channelStates {
		if !state.Running {
			return false
		}
	}

	return s.backendLastErr == ""
}

func (s *Service) checkBackendHealth(ctx context.Context) error {
	err := s.client.Health(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.backendLastErr = err.Error()
		s.log.Warn("Generation backend health check failed", "error", err)
		return fmt.Errorf("backend health check: %w", err)
	}

	s.backendLastOKAt = time.Now().UTC()
	s.backendLastErr = ""

	return nil
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.channelStates[name] = state
}

func errorString(err error) string {
	if err == nil || errors.Is(err, context.Canceled) {
		return ""
	}

	return err.Error()
}
