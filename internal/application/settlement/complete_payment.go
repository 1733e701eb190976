package settlement

import (
	"context"
	"fmt"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/cassiomorais/settlement/internal/domain/payment"
	"github.com/rs/zerolog/log"
)

// CompletePaymentUseCase finalizes a previously approved payment and triggers
// order fulfillment exactly once.
type CompletePaymentUseCase struct {
	paymentRepo payment.Repository
	platform    PlatformClient
	orders      OrderGateway
	events      EventPublisher
}

// NewCompletePaymentUseCase creates a new CompletePaymentUseCase.
func NewCompletePaymentUseCase(
	paymentRepo payment.Repository,
	platform PlatformClient,
	orders OrderGateway,
	events EventPublisher,
) *CompletePaymentUseCase {
	return &CompletePaymentUseCase{
		paymentRepo: paymentRepo,
		platform:    platform,
		orders:      orders,
		events:      events,
	}
}

// Execute confirms the payment with the provider and transitions the local
// ledger. Once the provider confirms completion the local ledger never denies
// that money moved, even if downstream bookkeeping fails.
func (uc *CompletePaymentUseCase) Execute(ctx context.Context, paymentID, txID string) (*payment.Record, error) {
	record, err := uc.paymentRepo.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	// Idempotency short-circuit: concurrent completion calls converge on the
	// first persisted completed status without a second provider call.
	if record.Status == payment.StatusCompleted {
		return record, nil
	}

	if _, err := uc.platform.CompletePayment(ctx, paymentID, txID); err != nil {
		// No automatic retry here; the provider webhook redelivers.
		uc.failPayment(ctx, record, err.Error())
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrProviderRejected, err)
	}

	// Fetch the full resource for confirmation and the resolved transaction id.
	details, err := uc.platform.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	resolvedTxID := txID
	if details.Transaction != nil && details.Transaction.TxID != "" {
		resolvedTxID = details.Transaction.TxID
	}

	won, err := uc.paymentRepo.MarkCompleted(ctx, paymentID, resolvedTxID)
	if err != nil {
		return nil, err
	}
	if !won {
		// Another caller persisted the completion first.
		return uc.paymentRepo.GetByPaymentID(ctx, paymentID)
	}

	record.Status = payment.StatusCompleted
	record.TransactionID = &resolvedTxID

	// Fulfillment failure is recorded for manual reconciliation, never
	// reverted: the money has moved.
	if err := uc.orders.ProcessCompletedPayment(ctx, paymentID, details); err != nil {
		log.Error().
			Err(err).
			Str("payment_id", paymentID).
			Msg("order fulfillment failed after completed payment, manual reconciliation required")
		record.Metadata[payment.MetaReconcileKey] = err.Error()
		if updErr := uc.paymentRepo.Update(ctx, record); updErr != nil {
			log.Error().Err(updErr).Str("payment_id", paymentID).Msg("failed to record reconciliation note")
		}
		uc.publish(ctx, "settlement.reconciliation_required", map[string]any{
			"payment_id": paymentID,
			"error":      err.Error(),
		})
		return record, nil
	}

	uc.publish(ctx, "payment.completed", map[string]any{
		"payment_id":     paymentID,
		"transaction_id": resolvedTxID,
		"user_id":        record.UserID,
		"amount":         record.Amount.String(),
	})
	return record, nil
}

func (uc *CompletePaymentUseCase) failPayment(ctx context.Context, record *payment.Record, reason string) {
	if !record.CanTransitionTo(payment.StatusFailed) {
		return
	}
	if err := record.MarkFailed(reason); err != nil {
		return
	}
	if err := uc.paymentRepo.Update(ctx, record); err != nil {
		log.Error().Err(err).Str("payment_id", record.PaymentID).Msg("failed to persist failed payment status")
	}
}

func (uc *CompletePaymentUseCase) publish(ctx context.Context, eventType string, payload map[string]any) {
	if uc.events == nil {
		return
	}
	if err := uc.events.PublishSettlementEvent(ctx, eventType, payload); err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish settlement event")
	}
}
