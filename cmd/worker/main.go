package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cassiomorais/settlement/internal/application/settlement"
	"github.com/cassiomorais/settlement/internal/bootstrap"
	"github.com/cassiomorais/settlement/internal/domain/payout"
	"github.com/cassiomorais/settlement/internal/infrastructure/gateways"
	"github.com/cassiomorais/settlement/internal/infrastructure/pinet"
	infraRedis "github.com/cassiomorais/settlement/internal/infrastructure/redis"
	"github.com/cassiomorais/settlement/internal/infrastructure/wallet"
	"github.com/cassiomorais/settlement/internal/repository/postgres"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "settlement-worker", "settlement_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	cfg := app.Config

	// --- Repositories ---
	payoutRepo := postgres.NewPayoutRepository(app.Pool).WithMetrics(app.Metrics)
	retryRepo := postgres.NewRetryRepository(app.Pool)
	idempotencyRepo := postgres.NewIdempotencyRepository(app.Pool)

	// --- Infrastructure clients ---
	piClient := pinet.NewClient(cfg.Pi.BaseOrNetworkURL(), cfg.Pi.APIKey,
		pinet.WithLogger(app.Logger), pinet.WithMetrics(app.Metrics))
	piWallet := wallet.NewPiWallet(piClient, cfg.Pi.CustodialAddress)
	marketplace := gateways.NewMarketplaceClient(cfg.Marketplace, app.Logger)
	events := infraRedis.NewStreamProducer(app.Redis)

	payoutUC := settlement.NewPayoutUseCase(payoutRepo, retryRepo, marketplace, piWallet, events, cfg.Settlement.WalletRetryDelay)

	app.Logger.Info().
		Dur("poll_interval", cfg.Worker.RetryPollInterval).
		Msg("Worker started, polling for due payout retries...")

	// Signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Payout retry processor (polls the retry table).
	g.Go(func() error {
		return runRetryProcessor(gCtx, app, retryRepo, payoutUC)
	})

	// 2. Settlement event monitor (surfaces reconciliation events to ops).
	g.Go(func() error {
		return runEventMonitor(gCtx, app)
	})

	// 3. Idempotency key janitor.
	g.Go(func() error {
		return runIdempotencyJanitor(gCtx, app.Logger, idempotencyRepo)
	})

	// 4. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

// runRetryProcessor re-runs parked payouts whose retry time has passed. Each
// re-run is guarded by a redis lock on the payout's idempotency key so
// multiple worker instances never race on the same order; the ledger claim
// remains the final arbiter either way.
func runRetryProcessor(
	ctx context.Context,
	app *bootstrap.App,
	retryRepo *postgres.RetryRepository,
	payoutUC *settlement.PayoutUseCase,
) error {
	cfg := app.Config
	ticker := time.NewTicker(cfg.Worker.RetryPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		tasks, err := retryRepo.Due(ctx, int(cfg.Worker.BatchSize))
		if err != nil {
			app.Logger.Error().Err(err).Msg("Failed to claim due payout retries")
			continue
		}

		for _, task := range tasks {
			processRetryTask(ctx, app, payoutUC, task)
		}
	}
}

func processRetryTask(
	ctx context.Context,
	app *bootstrap.App,
	payoutUC *settlement.PayoutUseCase,
	task *payout.RetryTask,
) {
	logger := app.Logger.With().
		Str("payout_id", task.PayoutID.String()).
		Str("order_id", task.OrderID).
		Int("attempts", task.Attempts).
		Logger()

	lockKey := payout.IdempotencyKey(task.OrderID, task.Direction)
	lock := infraRedis.NewDistributedLock(app.Redis, lockKey, app.Config.Settlement.PayoutLockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil || !acquired {
		logger.Warn().Msg("Could not acquire payout lock, skipping")
		return
	}
	defer lock.Release(ctx)

	start := time.Now()
	result, err := payoutUC.Execute(ctx, settlement.PayoutRequest{
		RecipientID: task.RecipientID,
		OrderID:     task.OrderID,
		Amount:      task.Amount,
		Direction:   task.Direction,
		Memo:        fmt.Sprintf("Payout for order %s", task.OrderID),
	})
	duration := time.Since(start).Seconds()

	switch {
	case err != nil:
		logger.Error().Err(err).Msg("Payout retry failed")
		app.Metrics.WorkerTasksProcessed.WithLabelValues("error").Inc()
		app.Metrics.WorkerProcessingDuration.WithLabelValues("error").Observe(duration)
	case result.Success:
		logger.Info().Str("transaction_id", result.TransactionID).Msg("Payout retry settled")
		app.Metrics.WorkerTasksProcessed.WithLabelValues("success").Inc()
		app.Metrics.WorkerProcessingDuration.WithLabelValues("success").Observe(duration)
	case result.WillRetry:
		logger.Info().Msg("Recipient still has no linked wallet, payout rescheduled")
		app.Metrics.WorkerTasksProcessed.WithLabelValues("rescheduled").Inc()
		app.Metrics.PayoutRetries.WithLabelValues("no_linked_wallet").Inc()
	default:
		logger.Warn().Str("reason", result.Reason).Msg("Payout retry did not settle")
		app.Metrics.WorkerTasksProcessed.WithLabelValues("failed").Inc()
		app.Metrics.WorkerProcessingDuration.WithLabelValues("failed").Observe(duration)
	}
}

// runEventMonitor tails the settlement event stream through a consumer group.
// Reconciliation events are logged at error level so ops tooling picks them
// up; everything else just feeds the event counter.
func runEventMonitor(ctx context.Context, app *bootstrap.App) error {
	cfg := app.Config
	consumer := infraRedis.NewStreamConsumer(
		app.Redis,
		infraRedis.SettlementStream,
		cfg.Worker.ConsumerGroup,
		cfg.InstanceID,
		cfg.Worker.BatchSize,
		cfg.Worker.BlockDuration,
	)
	if err := consumer.CreateGroup(ctx); err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		streams, err := consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			app.Logger.Error().Err(err).Msg("Failed to read settlement events")
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				eventType, _ := msg.Values["event_type"].(string)
				payload, _ := msg.Values["payload"].(string)

				if eventType == "settlement.reconciliation_required" {
					app.Logger.Error().
						Str("message_id", msg.ID).
						Str("payload", payload).
						Msg("Settlement requires manual reconciliation")
				}
				app.Metrics.WebhookEvents.WithLabelValues(eventType, "observed").Inc()

				if err := consumer.Ack(ctx, msg.ID); err != nil {
					app.Logger.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to ack event")
				}
			}
		}
	}
}

// runIdempotencyJanitor periodically purges expired idempotency entries.
func runIdempotencyJanitor(
	ctx context.Context,
	logger zerolog.Logger,
	idempotencyRepo *postgres.IdempotencyRepository,
) error {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		removed, err := idempotencyRepo.Cleanup(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Idempotency cleanup failed")
			continue
		}
		if removed > 0 {
			logger.Info().Int64("removed", removed).Msg("Purged expired idempotency keys")
		}
	}
}
