// Package server exposes finished analysis runs over HTTP: JSON report
// endpoints, Prometheus metrics, and a WebSocket feed that pushes each new
// report to connected dashboards.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"siege-market-lab/internal/observability"
	"siege-market-lab/internal/reporting"
)

// Runner produces reports on demand. *pipeline.Pipeline satisfies it.
type Runner interface {
	RunMarketScan(ctx context.Context) (*reporting.Report, error)
	RunHoldings(ctx context.Context) (*reporting.Report, error)
}

// Options configures a Server.
type Options struct {
	Runner       Runner
	Addr         string
	ScanInterval time.Duration // 0 disables scheduled scans
	Logger       *log.Logger
}

// Server schedules market scans and serves the latest report per mode.
type Server struct {
	runner       Runner
	addr         string
	scanInterval time.Duration
	logger       *log.Logger

	mu      sync.RWMutex
	latest  map[string]*reporting.Report
	started time.Time

	// Hub channels. Clients register on upgrade and get every report
	// broadcast after that, plus the latest known state on connect.
	register   chan *client
	unregister chan *client
	broadcast  chan *reporting.Report
	clients    map[*client]struct{}
}

// New creates a Server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[server] ", log.LstdFlags)
	}
	addr := opts.Addr
	if addr == "" {
		addr = ":8080"
	}
	return &Server{
		runner:       opts.Runner,
		addr:         addr,
		scanInterval: opts.ScanInterval,
		logger:       logger,
		latest:       make(map[string]*reporting.Report),
		register:     make(chan *client),
		unregister:   make(chan *client),
		broadcast:    make(chan *reporting.Report, 16),
		clients:      make(map[*client]struct{}),
	}
}

// Run starts the hub, the scan scheduler, and the HTTP listener, and blocks
// until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.started = time.Now()
	s.mu.Unlock()

	go s.runHub(ctx)
	go s.trackUptime(ctx)
	if s.scanInterval > 0 {
		go s.runScheduler(ctx)
	}

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler returns the HTTP routes. Split out so tests can use httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/report/market-scan", s.handleReport(reporting.ModeMarketScan))
	mux.HandleFunc("/api/report/holdings", s.handleReport(reporting.ModeHoldings))
	mux.HandleFunc("/api/scan", s.handleTriggerScan)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/metrics", observability.Handler())
	return mux
}

// Publish records a finished report as the latest for its mode and pushes it
// to every connected WebSocket client.
func (s *Server) Publish(report *reporting.Report) {
	s.mu.Lock()
	s.latest[report.Mode] = report
	s.mu.Unlock()

	select {
	case s.broadcast <- report:
	default:
		s.logger.Printf("broadcast queue full, dropping %s report %s", report.Mode, report.RunID)
	}
}

func (s *Server) trackUptime(ctx context.Context) {
	const tick = 15 * time.Second
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			observability.RecordUptimeTick(tick.Seconds())
		}
	}
}

func (s *Server) runScheduler(ctx context.Context) {
	ticker := time.NewTicker(s.scanInterval)
	defer ticker.Stop()

	s.runScan(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runScan(ctx)
		}
	}
}

func (s *Server) runScan(ctx context.Context) {
	report, err := s.runner.RunMarketScan(ctx)
	if err != nil {
		s.logger.Printf("scheduled scan failed: %v", err)
		return
	}
	s.Publish(report)
}

func (s *Server) runHub(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range s.clients {
				delete(s.clients, c)
				close(c.send)
			}
			return

		case c := <-s.register:
			s.clients[c] = struct{}{}
			s.mu.RLock()
			for _, report := range s.latest {
				select {
				case c.send <- report:
				default:
				}
			}
			s.mu.RUnlock()

		case c := <-s.unregister:
			if _, ok := s.clients[c]; ok {
				delete(s.clients, c)
				close(c.send)
			}

		case report := <-s.broadcast:
			for c := range s.clients {
				select {
				case c.send <- report:
				default:
					// Slow consumer; drop it so the hub never blocks.
					delete(s.clients, c)
					close(c.send)
				}
			}
		}
	}
}

func (s *Server) handleReport(mode string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.mu.RLock()
		report := s.latest[mode]
		s.mu.RUnlock()
		if report == nil {
			http.Error(w, "no report yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := reporting.WriteJSON(w, report); err != nil {
			s.logger.Printf("write report: %v", err)
		}
	}
}

// handleTriggerScan runs a market scan immediately. The scan runs inline so
// the response carries its outcome; overlapping triggers serialize on the
// remote rate limit rather than on this handler.
func (s *Server) handleTriggerScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	report, err := s.runner.RunMarketScan(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.Publish(report)
	w.Header().Set("Content-Type", "application/json")
	if err := reporting.WriteJSON(w, report); err != nil {
		s.logger.Printf("write report: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	status := map[string]any{
		"status":  "ok",
		"uptime":  time.Since(s.started).String(),
		"reports": len(s.latest),
	}
	s.mu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Printf("write health: %v", err)
	}
}
