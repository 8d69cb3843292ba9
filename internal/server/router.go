package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/ledger"
	"go.uber.org/zap"
)

const requestTimeout = 30 * time.Second

// Server adapts the ledger components to HTTP. It only parses requests and
// maps errors; every rule lives in the ledger package.
type Server struct {
	directory *ledger.Directory
	ledger    *ledger.Ledger
	balances  *ledger.BalanceCalculator
	logger    *zap.Logger
}

// New creates a Server.
func New(directory *ledger.Directory, l *ledger.Ledger, balances *ledger.BalanceCalculator, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{directory: directory, ledger: l, balances: balances, logger: logger}
}

// Router builds the HTTP handler chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", s.health)

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", s.createAccount)
		r.Get("/", s.findAccounts)
		r.Route("/{accountID}", func(r chi.Router) {
			r.Get("/", s.getAccount)
			r.Post("/sub-accounts", s.createSubAccount)
			r.Get("/balance", s.accountBalance)
			r.Get("/balance/{otherID}", s.twoPartyBalance)
			r.Get("/transactions", s.accountTransactions)
		})
	})

	r.Get("/sub-accounts/{subAccountID}/balance", s.subAccountBalance)

	r.Route("/transactions", func(r chi.Router) {
		r.Post("/", s.createTransaction)
		r.Get("/{transactionID}", s.getTransaction)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("remote_addr", r.RemoteAddr))
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
