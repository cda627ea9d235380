package api

import (
	"log/slog"
	"net/http"
	"time"

	_ "loan-manager/docs"
	"loan-manager/internal/api/handler"
	mw "loan-manager/internal/api/middleware"
	"loan-manager/internal/config"
	"loan-manager/internal/domain/customer"
	"loan-manager/internal/domain/loan"
	"loan-manager/internal/domain/report"
	"loan-manager/internal/domain/user"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/traceid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// Services bundles what the HTTP layer calls into.
type Services struct {
	Loans     loan.LoanService
	Customers customer.CustomerService
	Users     user.Service
	Reports   report.Service
	Clock     loan.Clock
}

func SetupRouter(svc Services, rateLimiter *mw.RateLimiterMiddleware, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	router := chi.NewRouter()

	setupMiddleware(router, rateLimiter, logger)
	setupMetricsEndpoint(router, cfg, logger)

	auth := mw.AuthMiddleware(cfg.Server.Auth, logger)
	setupAuthRoutes(router, svc.Users, cfg.Server.Auth, auth, logger)
	setupCustomerRoutes(router, svc.Customers, auth, logger)
	setupLoanRoutes(router, svc.Loans, svc.Clock, auth, logger)
	setupReportRoutes(router, svc, auth, logger)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	setupSwaggerEndpoint(router, logger)

	return router
}

func setupMiddleware(router *chi.Mux, rateLimiter *mw.RateLimiterMiddleware, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(traceid.Middleware)
	router.Use(mw.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(middleware.Timeout(60 * time.Second))
	if rateLimiter != nil {
		router.Use(rateLimiter.Middleware)
	}
	router.Use(mw.MetricsMiddleware())
}

func setupMetricsEndpoint(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	logger.Info("Setting up Prometheus metrics endpoint", "path", metricsPath)
	router.Handle(metricsPath, promhttp.Handler())
}

func setupSwaggerEndpoint(router *chi.Mux, logger *slog.Logger) {
	logger.Info("Setting up Swagger UI endpoint", "path", "/swagger/")
	router.Get("/swagger/*", httpSwagger.WrapHandler)
	router.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
}

func setupAuthRoutes(router chi.Router, users user.Service, cfg config.AuthConfig, auth func(http.Handler) http.Handler, logger *slog.Logger) {
	h := handler.NewAuthHandler(users, cfg, logger)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.Signup)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.With(auth).Get("/me", h.Me)
	})
}

func setupCustomerRoutes(router chi.Router, svc customer.CustomerService, auth func(http.Handler) http.Handler, logger *slog.Logger) {
	h := handler.NewCustomerHandler(svc, logger)

	router.Route("/customers", func(r chi.Router) {
		r.Use(auth)
		r.Post("/", h.CreateCustomer)
		r.Get("/", h.ListCustomers)
		r.Route("/{customerID}", func(r chi.Router) {
			r.Get("/", h.GetCustomer)
			r.Put("/", h.UpdateCustomer)
			r.Delete("/", h.DeleteCustomer)
		})
	})
}

func setupLoanRoutes(router chi.Router, svc loan.LoanService, clock loan.Clock, auth func(http.Handler) http.Handler, logger *slog.Logger) {
	h := handler.NewLoanHandler(svc, clock, logger)

	router.Route("/loans", func(r chi.Router) {
		r.Use(auth)
		r.Get("/", h.ListLoans)
		r.Post("/", h.CreateLoan)
		r.Get("/upcoming-payments", h.UpcomingPayments)
		r.Route("/{loanID}", func(r chi.Router) {
			r.Get("/", h.GetLoan)
			r.Put("/", h.UpdateLoan)
			r.Patch("/", h.UpdateLoan)
			r.Delete("/", h.SoftDeleteLoan)
			r.Patch("/mark-interest-paid", h.MarkInterestPaid)
			r.Patch("/mark-principal-paid", h.MarkPrincipalPaid)
			r.Patch("/close", h.CloseLoan)
			r.Patch("/restore", h.RestoreLoan)
			r.Delete("/permanently-delete", h.PermanentlyDeleteLoan)
		})
	})
}

func setupReportRoutes(router chi.Router, svc Services, auth func(http.Handler) http.Handler, logger *slog.Logger) {
	h := handler.NewReportHandler(svc.Reports, svc.Loans, svc.Clock, logger)

	router.Route("/reports", func(r chi.Router) {
		r.Use(auth)
		r.Get("/all-loans-data", h.AllLoansData)
		r.Get("/all-customers-data", h.AllCustomersData)
		r.Get("/single-loan-data/{loanID}", h.SingleLoanData)
		r.Get("/loans/export.xlsx", h.ExportLoans)
	})
}
