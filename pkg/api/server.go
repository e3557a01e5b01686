package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"money-saver/pkg/bankaccount"
	"money-saver/pkg/directory"
	"money-saver/pkg/goal"
	"money-saver/pkg/ledger"
	"money-saver/pkg/logging"
	"money-saver/pkg/metrics"
	"money-saver/pkg/payments"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Services are the operations exposed over HTTP.
type Services struct {
	Deposits    *payments.DepositFlow
	Withdrawals *payments.WithdrawalFlow
	Accounts    *bankaccount.Registry
	Directory   *directory.Directory
	Goals       *goal.Service
	Ledger      ledger.Store

	// Metrics serves /metrics when set, e.g. promhttp.Handler().
	Metrics http.Handler
}

// Server is the HTTP API of the service.
type Server struct {
	services Services
	router   *mux.Router
	server   *http.Server
	config   ServerConfig
	metrics  metrics.Collector
	logger   *logging.Logger
	now      func() time.Time
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	// Address to listen on (e.g., ":8080")
	Address string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// PageSize is the number of rows per history page, at most maxPageSize.
	PageSize int
}

// DefaultServerConfig returns a default configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:      ":8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		PageSize:     10,
	}
}

// NewServer wires the routes. collector and logger may be nil.
func NewServer(services Services, config ServerConfig, collector metrics.Collector, logger *logging.Logger) *Server {
	if config.PageSize <= 0 {
		config.PageSize = 10
	}
	config.PageSize = min(config.PageSize, maxPageSize)
	s := &Server{
		services: services,
		config:   config,
		metrics:  metrics.OrNoOp(collector),
		logger:   logging.OrNoOp(logger).Named("api"),
		now:      time.Now,
	}

	r := mux.NewRouter()
	r.Use(s.observe)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if services.Metrics != nil {
		r.Handle("/metrics", services.Metrics).Methods(http.MethodGet)
	}

	routes := r.PathPrefix("/api").Subrouter()
	routes.Use(requireUser)

	routes.HandleFunc("/banks", s.handleListBanks).Methods(http.MethodGet)
	routes.HandleFunc("/verify-account", s.handleVerifyAccount).Methods(http.MethodPost)
	routes.HandleFunc("/bank-accounts", s.handleListBankAccounts).Methods(http.MethodGet)
	routes.HandleFunc("/bank-accounts", s.handleAddBankAccount).Methods(http.MethodPost)
	routes.HandleFunc("/deposits", s.handleCreateDeposit).Methods(http.MethodPost)
	routes.HandleFunc("/verify-payment/{reference}", s.handleVerifyPayment).Methods(http.MethodPost)
	routes.HandleFunc("/withdrawals", s.handleCreateWithdrawal).Methods(http.MethodPost)
	routes.HandleFunc("/transfer-status/{reference}", s.handleTransferStatus).Methods(http.MethodGet)
	routes.HandleFunc("/balance", s.handleBalance).Methods(http.MethodGet)
	routes.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	routes.HandleFunc("/transactions/summary", s.handleSummary).Methods(http.MethodGet)
	if services.Goals != nil {
		routes.HandleFunc("/goals", s.handleListGoals).Methods(http.MethodGet)
		routes.HandleFunc("/goals", s.handleCreateGoal).Methods(http.MethodPost)
		routes.HandleFunc("/goals/{id}/progress", s.handleGoalProgress).Methods(http.MethodGet)
	}

	s.router = r
	s.server = &http.Server{
		Addr:         config.Address,
		Handler:      r,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves in a goroutine. Listen errors other than a clean shutdown
// are logged.
func (s *Server) Start() {
	go func() {
		s.logger.Info("server listening", zap.String("address", s.config.Address))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": s.now().Unix(),
	})
}
