package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassiomorais/settlement/internal/application/settlement"
	"github.com/cassiomorais/settlement/internal/bootstrap"
	"github.com/cassiomorais/settlement/internal/controller"
	"github.com/cassiomorais/settlement/internal/infrastructure/gateways"
	"github.com/cassiomorais/settlement/internal/infrastructure/pinet"
	infraRedis "github.com/cassiomorais/settlement/internal/infrastructure/redis"
	"github.com/cassiomorais/settlement/internal/infrastructure/wallet"
	"github.com/cassiomorais/settlement/internal/repository/postgres"
	"github.com/shopspring/decimal"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "settlement-api", "settlement")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	cfg := app.Config

	// --- Repositories ---
	paymentRepo := postgres.NewPaymentRepository(app.Pool)
	payoutRepo := postgres.NewPayoutRepository(app.Pool).WithMetrics(app.Metrics)
	retryRepo := postgres.NewRetryRepository(app.Pool)
	disputeRepo := postgres.NewDisputeRepository(app.Pool)
	idempotencyRepo := postgres.NewIdempotencyRepository(app.Pool)

	// --- Infrastructure clients ---
	piClient := pinet.NewClient(cfg.Pi.BaseOrNetworkURL(), cfg.Pi.APIKey,
		pinet.WithLogger(app.Logger), pinet.WithMetrics(app.Metrics))
	piWallet := wallet.NewPiWallet(piClient, cfg.Pi.CustodialAddress)
	marketplace := gateways.NewMarketplaceClient(cfg.Marketplace, app.Logger)
	events := infraRedis.NewStreamProducer(app.Redis)

	// --- Use cases ---
	approveUC := settlement.NewApprovePaymentUseCase(paymentRepo, piClient, marketplace, marketplace, marketplace)
	completeUC := settlement.NewCompletePaymentUseCase(paymentRepo, piClient, marketplace, events)
	cancelUC := settlement.NewCancelPaymentUseCase(paymentRepo)
	payoutUC := settlement.NewPayoutUseCase(payoutRepo, retryRepo, marketplace, piWallet, events, cfg.Settlement.WalletRetryDelay)
	retryPayoutUC := settlement.NewRetryPayoutUseCase(marketplace, payoutUC)
	resolveUC := settlement.NewResolveDisputeUseCase(
		disputeRepo, marketplace, marketplace, payoutUC, marketplace, events,
		decimal.NewFromFloat(cfg.Settlement.CommissionRate),
	)

	// --- Build router ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:            app.Pool,
		RedisClient:     app.Redis,
		PaymentRepo:     paymentRepo,
		PayoutRepo:      payoutRepo,
		ApproveUC:       approveUC,
		CompleteUC:      completeUC,
		CancelUC:        cancelUC,
		PayoutUC:        payoutUC,
		RetryPayoutUC:   retryPayoutUC,
		ResolveUC:       resolveUC,
		IdempotencyRepo: idempotencyRepo,
		Metrics:         app.Metrics,
		CORSConfig:      cfg.Server.CORS,
		JWTSecret:       cfg.Auth.JWTSecret,
		WebhookSecret:   cfg.Pi.WebhookSecret,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
