package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"duncan/internal/hedge"
	"duncan/internal/journal"
	"duncan/internal/vault"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

const APIKeyHeader = "duncan-api-key"

var ErrUnauthorized = errors.New("not authorized")

type PositionService interface {
	Info(ctx context.Context, symbol string) (hedge.Position, error)
}

type VaultService interface {
	Sync(ctx context.Context, address string, simulate bool) (vault.SyncResult, error)
}

type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	APIKey       string

	Mainnet PositionService
	Testnet PositionService
	Vault   VaultService
	Journal JournalReader
	Metrics http.Handler
	Log     *zap.Logger
}

type Server struct {
	router *chi.Mux
	server *http.Server
	log    *zap.Logger
	cfg    Config
}

func New(cfg Config) *Server {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		router: chi.NewRouter(),
		log:    log.With(zap.String("component", "server")),
		cfg:    cfg,
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", APIKeyHeader},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	if s.cfg.Metrics != nil {
		s.router.Handle("/metrics", s.cfg.Metrics)
	}
	s.router.Get("/position/{symbol}/info", s.handlePositionInfo)
	s.router.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Post("/vault/{address}/update", s.handleVaultUpdate)
		r.Get("/journal", s.handleJournal)
	})
}

// Start blocks until the server stops; a graceful Shutdown is not an error.
func (s *Server) Start() error {
	s.log.Info("starting http server", zap.String("addr", s.cfg.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePositionInfo(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	service := s.cfg.Mainnet
	if r.URL.Query().Get("testnet") != "" {
		service = s.cfg.Testnet
	}
	if service == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("network not configured"))
		return
	}
	pos, err := service.Info(r.Context(), symbol)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (s *Server) handleVaultUpdate(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Vault == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("vault sync not configured"))
		return
	}
	address := chi.URLParam(r, "address")
	simulate := r.URL.Query().Get("simulate") != ""
	result, err := s.cfg.Vault.Sync(r.Context(), address, simulate)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Journal == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("journal not enabled"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.cfg.Journal.Recent(r.Context(), limit)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(APIKeyHeader)
		want := s.cfg.APIKey
		if want == "" || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			writeError(w, http.StatusUnauthorized, ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Warn("request failed", zap.Error(err))
	}
	writeError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, vault.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, hedge.ErrPositionNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
