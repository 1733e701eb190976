package settlement

import (
	"context"
	"fmt"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/cassiomorais/settlement/internal/domain/payout"
	"github.com/shopspring/decimal"
)

// RetryPayoutRequest holds the input for a manually requested payout retry.
type RetryPayoutRequest struct {
	RequesterID string
	StoreID     string
	OrderID     string
	Amount      decimal.Decimal
}

// RetryPayoutUseCase re-runs the store payout flow on request of the store
// owner. The payout ledger makes the re-run safe: a completed payout reports
// success without disbursing again.
type RetryPayoutUseCase struct {
	stores StoreGateway
	payout *PayoutUseCase
}

// NewRetryPayoutUseCase creates a new RetryPayoutUseCase.
func NewRetryPayoutUseCase(stores StoreGateway, payoutUC *PayoutUseCase) *RetryPayoutUseCase {
	return &RetryPayoutUseCase{stores: stores, payout: payoutUC}
}

// Execute authorizes the requester as the store owner and re-invokes the
// payout flow toward the store.
func (uc *RetryPayoutUseCase) Execute(ctx context.Context, req RetryPayoutRequest) (*PayoutResult, error) {
	if req.RequesterID == "" {
		return nil, domainErrors.ErrUnauthorized
	}

	store, err := uc.stores.GetStoreForPayout(ctx, req.StoreID)
	if err != nil {
		return nil, fmt.Errorf("load store: %w", err)
	}
	if store.OwnerID != req.RequesterID {
		return nil, domainErrors.NewDomainError(
			"not_store_owner",
			"only the store owner can retry a payout",
			domainErrors.ErrForbidden,
		)
	}

	return uc.payout.Execute(ctx, PayoutRequest{
		RecipientID: store.OwnerID,
		OrderID:     req.OrderID,
		Amount:      req.Amount,
		Direction:   payout.ToStore,
		Memo:        fmt.Sprintf("Store payout for order %s", req.OrderID),
	})
}
