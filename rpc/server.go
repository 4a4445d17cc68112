package rpc

import (
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/meigma/resx/codec"
)

// Server exposes registered services over HTTP. Bodies are CBOR in
// both directions; routes are POST /rpc/{service}/{method}.
type Server struct {
	router *mux.Router
	logger *slog.Logger

	mu       sync.RWMutex
	services map[string]map[string]Handler
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the server's logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates an HTTP RPC server with no services registered.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		services: make(map[string]map[string]Handler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = mux.NewRouter()
	s.router.HandleFunc("/rpc/{service}/{method}", s.handle).Methods(http.MethodPost)
	return s
}

// log returns the logger, falling back to a discard logger if nil.
func (s *Server) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.logger
}

// Register binds a service's method handlers. Re-registering a service
// replaces its method table.
func (s *Server) Register(service string, methods map[string]Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[service] = methods
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	service, method := vars["service"], vars["method"]

	s.mu.RLock()
	handler := s.services[service][method]
	s.mu.RUnlock()
	if handler == nil {
		s.log().Warn("rpc method not found", "service", service, "method", method)
		http.Error(w, "unknown rpc method", http.StatusNotFound)
		return
	}

	args, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	resp := dispatch(r.Context(), handler, args)
	if resp.Error != nil {
		s.log().Debug("rpc handler error",
			"service", service, "method", method,
			"kind", resp.Error.Kind, "reason", resp.Error.Reason)
	}

	body, err := codec.Marshal(resp)
	if err != nil {
		s.log().Error("rpc response encoding failed", "error", err)
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/cbor")
	_, _ = w.Write(body)
}
