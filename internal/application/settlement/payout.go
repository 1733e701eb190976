package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/cassiomorais/settlement/internal/domain/payout"
	"github.com/cassiomorais/settlement/internal/infrastructure/wallet"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// DefaultWalletRetryDelay is how long to wait before retrying a payout whose
// recipient has not linked a wallet yet.
const DefaultWalletRetryDelay = 5 * time.Minute

// PayoutRequest holds the input for one disbursement. Refund and store payout
// are the same flow parameterized by recipient and direction.
type PayoutRequest struct {
	RecipientID string
	OrderID     string
	Amount      decimal.Decimal
	Direction   payout.Direction
	Memo        string
}

// PayoutResult is the structured outcome returned to callers; settlement
// failures do not throw past this boundary.
type PayoutResult struct {
	Success       bool
	TransactionID string
	Reason        string
	WillRetry     bool
}

// PayoutUseCase moves funds from the custodial wallet to a recipient. The
// payout ledger's atomic claim is the concurrency-correctness mechanism:
// at most one attempt proceeds per (recipient, order, direction).
type PayoutUseCase struct {
	payoutRepo payout.Repository
	scheduler  payout.RetryScheduler
	profiles   ProfileGateway
	wallet     wallet.Client
	events     EventPublisher
	retryDelay time.Duration
}

// NewPayoutUseCase creates a new PayoutUseCase.
func NewPayoutUseCase(
	payoutRepo payout.Repository,
	scheduler payout.RetryScheduler,
	profiles ProfileGateway,
	walletClient wallet.Client,
	events EventPublisher,
	retryDelay time.Duration,
) *PayoutUseCase {
	if retryDelay <= 0 {
		retryDelay = DefaultWalletRetryDelay
	}
	return &PayoutUseCase{
		payoutRepo: payoutRepo,
		scheduler:  scheduler,
		profiles:   profiles,
		wallet:     walletClient,
		events:     events,
		retryDelay: retryDelay,
	}
}

// Execute runs one disbursement attempt end to end.
func (uc *PayoutUseCase) Execute(ctx context.Context, req PayoutRequest) (*PayoutResult, error) {
	amount := payout.RoundAmount(req.Amount)
	if !amount.IsPositive() {
		return &PayoutResult{Success: false, Reason: "amount must be greater than 0"}, nil
	}

	// 1. Claim the disbursement slot. The claim is atomic with respect to
	// concurrent invocations for the same (recipient, order, direction).
	claim, err := uc.payoutRepo.ClaimAttempt(ctx, req.RecipientID, req.OrderID, req.Direction, amount)
	if err != nil {
		return nil, fmt.Errorf("claim payout attempt: %w", err)
	}
	switch claim.Outcome {
	case payout.ClaimAlreadyCompleted:
		// Already settled; report success with the original transaction and
		// make zero network calls.
		return &PayoutResult{Success: true, TransactionID: claim.TransactionID}, nil
	case payout.ClaimInProgress:
		return &PayoutResult{Success: false, Reason: "payout already in progress, try again later"}, nil
	}

	// 2. Resolve the payout destination from the recipient's current profile,
	// never a cached copy.
	profile, err := uc.profiles.GetProfile(ctx, req.RecipientID)
	if err != nil {
		uc.finalizeFailed(ctx, claim.PayoutID, fmt.Sprintf("resolve recipient profile: %v", err))
		return &PayoutResult{Success: false, Reason: "could not resolve recipient"}, nil
	}

	// 3. A missing wallet is a linkage gap, not a hard failure: park the
	// attempt and schedule one retry.
	if profile.WalletAddress == "" {
		return uc.parkForRetry(ctx, claim.PayoutID, req, amount)
	}

	// 4-5. Submit through the wallet client. The provider deduplicates on the
	// per-order idempotency key as a second line of defense.
	result, err := uc.submitTransfer(ctx, profile.WalletAddress, amount, req)
	if err != nil {
		uc.finalizeFailed(ctx, claim.PayoutID, err.Error())
		return &PayoutResult{Success: false, Reason: err.Error()}, nil
	}

	// 6. Record the settled attempt.
	if err := uc.payoutRepo.Finalize(ctx, claim.PayoutID, payout.StatusCompleted, &result.TransactionID, nil); err != nil {
		// The transfer went through; the ledger must eventually agree.
		log.Error().
			Err(err).
			Str("payout_id", claim.PayoutID.String()).
			Str("transaction_id", result.TransactionID).
			Msg("transfer submitted but payout finalize failed, manual reconciliation required")
		return nil, fmt.Errorf("finalize payout: %w", err)
	}

	uc.publish(ctx, "payout.completed", map[string]any{
		"payout_id":      claim.PayoutID.String(),
		"order_id":       req.OrderID,
		"recipient_id":   req.RecipientID,
		"direction":      string(req.Direction),
		"amount":         amount.String(),
		"transaction_id": result.TransactionID,
	})
	return &PayoutResult{Success: true, TransactionID: result.TransactionID}, nil
}

func (uc *PayoutUseCase) submitTransfer(ctx context.Context, address string, amount decimal.Decimal, req PayoutRequest) (*wallet.SubmitResult, error) {
	account, err := uc.wallet.LoadAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("load custodial account: %w", err)
	}

	transfer, err := uc.wallet.BuildAndSignTransfer(ctx, account, wallet.TransferRequest{
		Recipient:      address,
		Amount:         amount,
		Memo:           req.Memo,
		IdempotencyKey: payout.IdempotencyKey(req.OrderID, req.Direction),
		Metadata: map[string]any{
			"order_id":  req.OrderID,
			"direction": string(req.Direction),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build transfer: %w", err)
	}

	result, err := uc.wallet.Submit(ctx, transfer)
	if err != nil {
		return nil, fmt.Errorf("submit transfer: %w", err)
	}
	return result, nil
}

// parkForRetry finalizes the attempt as pending and schedules exactly one
// retry of the entire flow after the configured delay.
func (uc *PayoutUseCase) parkForRetry(ctx context.Context, payoutID uuid.UUID, req PayoutRequest, amount decimal.Decimal) (*PayoutResult, error) {
	reason := "recipient has no linked wallet"
	if err := uc.payoutRepo.Finalize(ctx, payoutID, payout.StatusPending, nil, &reason); err != nil {
		return nil, fmt.Errorf("park payout: %w", err)
	}

	task := &payout.RetryTask{
		ID:          uuid.New(),
		PayoutID:    payoutID,
		RecipientID: req.RecipientID,
		OrderID:     req.OrderID,
		Direction:   req.Direction,
		Amount:      amount,
		RunAt:       time.Now().Add(uc.retryDelay),
		CreatedAt:   time.Now(),
	}
	if err := uc.scheduler.Schedule(ctx, task); err != nil {
		return nil, fmt.Errorf("schedule payout retry: %w", err)
	}

	log.Info().
		Str("payout_id", payoutID.String()).
		Str("order_id", req.OrderID).
		Time("run_at", task.RunAt).
		Msg("payout parked pending wallet linkage")
	return &PayoutResult{Success: false, Reason: reason, WillRetry: true}, nil
}

func (uc *PayoutUseCase) finalizeFailed(ctx context.Context, payoutID uuid.UUID, reason string) {
	if err := uc.payoutRepo.Finalize(ctx, payoutID, payout.StatusFailed, nil, &reason); err != nil {
		log.Error().Err(err).Str("payout_id", payoutID.String()).Msg("failed to finalize failed payout")
	}
}

func (uc *PayoutUseCase) publish(ctx context.Context, eventType string, payload map[string]any) {
	if uc.events == nil {
		return
	}
	if err := uc.events.PublishSettlementEvent(ctx, eventType, payload); err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish settlement event")
	}
}
