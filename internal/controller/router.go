package controller

import (
	"time"

	"github.com/cassiomorais/settlement/internal/application/settlement"
	"github.com/cassiomorais/settlement/internal/domain/payment"
	"github.com/cassiomorais/settlement/internal/domain/payout"
	"github.com/cassiomorais/settlement/internal/infrastructure/config"
	"github.com/cassiomorais/settlement/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/settlement/internal/middleware"
	"github.com/cassiomorais/settlement/internal/repository/postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type RouterDeps struct {
	Pool            *pgxpool.Pool
	RedisClient     *redis.Client
	PaymentRepo     payment.Repository
	PayoutRepo      payout.Repository
	ApproveUC       *settlement.ApprovePaymentUseCase
	CompleteUC      *settlement.CompletePaymentUseCase
	CancelUC        *settlement.CancelPaymentUseCase
	PayoutUC        *settlement.PayoutUseCase
	RetryPayoutUC   *settlement.RetryPayoutUseCase
	ResolveUC       *settlement.ResolveDisputeUseCase
	IdempotencyRepo *postgres.IdempotencyRepository
	Metrics         *observability.Metrics
	CORSConfig      config.CORSConfig
	JWTSecret       string
	WebhookSecret   string
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	paymentH := NewPaymentController(deps.ApproveUC, deps.CompleteUC, deps.CancelUC, deps.PaymentRepo, deps.Metrics)
	payoutH := NewPayoutController(deps.PayoutUC, deps.RetryPayoutUC, deps.PayoutRepo, deps.Metrics)
	disputeH := NewDisputeController(deps.ResolveUC, deps.Metrics)
	webhookH := NewWebhookController(deps.WebhookSecret, deps.CompleteUC, deps.CancelUC)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	// Webhook deliveries authenticate with a signature, not a user token.
	r.With(customMW.RateLimit(300)).Post("/webhooks/pi", webhookH.HandleDelivery)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(customMW.RateLimit(120))

		// Idempotency middleware for mutating endpoints.
		idempotencyMW := customMW.Idempotency(deps.IdempotencyRepo)
		authMW := customMW.RequireAuth(deps.JWTSecret)

		r.Get("/payments/{paymentId}", paymentH.GetPayment)
		r.Get("/payouts/order/{orderId}", payoutH.GetPayoutsByOrder)

		r.Group(func(r chi.Router) {
			r.Use(authMW)

			r.Get("/payments", paymentH.ListPayments)
			r.Post("/payments/approve", paymentH.ApprovePayment)
			r.Post("/payments/complete", paymentH.CompletePayment)
			r.Post("/payments/cancelled", paymentH.CancelledPayment)

			r.With(idempotencyMW).Post("/payouts", payoutH.CreatePayout)
			r.With(idempotencyMW).Post("/payouts/retry", payoutH.RetryPayout)

			r.With(idempotencyMW).Post("/disputes/{id}/resolve", disputeH.ResolveDispute)
			r.With(idempotencyMW).Post("/disputes/{id}/reject", disputeH.RejectDispute)
		})
	})

	return r
}
