package settlement

import (
	"context"

	"github.com/cassiomorais/settlement/internal/domain/payment"
)

// CancelPaymentUseCase records a provider-reported cancellation in the ledger.
type CancelPaymentUseCase struct {
	paymentRepo payment.Repository
}

// NewCancelPaymentUseCase creates a new CancelPaymentUseCase.
func NewCancelPaymentUseCase(paymentRepo payment.Repository) *CancelPaymentUseCase {
	return &CancelPaymentUseCase{paymentRepo: paymentRepo}
}

// Execute marks the payment cancelled. A completed payment cannot regress;
// the state machine rejects the transition.
func (uc *CancelPaymentUseCase) Execute(ctx context.Context, paymentID string) (*payment.Record, error) {
	record, err := uc.paymentRepo.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if record.Status == payment.StatusCancelled {
		return record, nil
	}
	if err := record.MarkCancelled(); err != nil {
		return nil, err
	}
	if err := uc.paymentRepo.Update(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}
