package monitoring

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sarchlab/tlmbus/sim/timing"
)

// Server serves the metrics, the progress bars and the inspection endpoints
// over HTTP.
type Server struct {
	logger *zap.Logger
	router *mux.Router
	engine timing.Engine

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	componentsLock sync.Mutex
	components     map[string]any

	listener net.Listener
	server   *http.Server
}

// NewServer creates a server for the given metrics.
func NewServer(metrics *Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		logger:     logger,
		router:     mux.NewRouter(),
		components: make(map[string]any),
	}

	s.router.Handle("/metrics", promhttp.HandlerFor(
		metrics.Registry(),
		promhttp.HandlerOpts{},
	)).Methods(http.MethodGet)
	s.router.HandleFunc("/api/progress", s.listProgressBars).
		Methods(http.MethodGet)
	s.router.HandleFunc("/api/progress/{id}", s.progressBar).
		Methods(http.MethodGet)
	s.routeInspection()

	return s
}

// Handler returns the router of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// AddProgressBar makes a bar visible on the progress endpoints.
func (s *Server) AddProgressBar(b *ProgressBar) {
	s.progressBarsLock.Lock()
	defer s.progressBarsLock.Unlock()

	s.progressBars = append(s.progressBars, b)
}

// CompleteProgressBar removes a bar from the progress endpoints.
func (s *Server) CompleteProgressBar(pb *ProgressBar) {
	s.progressBarsLock.Lock()
	defer s.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(s.progressBars))
	for _, b := range s.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	s.progressBars = newBars
}

// Start listens on addr and serves in the background. An empty port picks a
// random one. It returns the address actually bound.
func (s *Server) Start(addr string) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}

	s.listener = listener
	s.server = &http.Server{Handler: s.router}

	go func() {
		err := s.server.Serve(listener)
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error("monitoring server stopped", zap.Error(err))
		}
	}()

	s.logger.Info("monitoring",
		zap.String("url", "http://"+listener.Addr().String()+"/metrics"))

	return listener.Addr().String(), nil
}

// Addr returns the address the server listens on, empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// Close stops the server.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	return s.server.Close()
}

func (s *Server) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	s.progressBarsLock.Lock()
	bars := make([]Progress, 0, len(s.progressBars))
	for _, b := range s.progressBars {
		bars = append(bars, b.Progress())
	}
	s.progressBarsLock.Unlock()

	s.writeJSON(w, bars)
}

func (s *Server) progressBar(w http.ResponseWriter, r *http.Request) {
	barID := mux.Vars(r)["id"]

	s.progressBarsLock.Lock()
	defer s.progressBarsLock.Unlock()

	for _, b := range s.progressBars {
		if b.ID == barID {
			s.writeJSON(w, b.Progress())
			return
		}
	}

	http.NotFound(w, r)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		s.logger.Warn("cannot write response", zap.Error(err))
	}
}
