package settlement

import (
	"context"
	"fmt"

	"github.com/cassiomorais/settlement/internal/domain/dispute"
	"github.com/cassiomorais/settlement/internal/domain/payout"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// DefaultCommissionRate is the marketplace cut withheld from store payouts.
var DefaultCommissionRate = decimal.NewFromFloat(0.05)

// ResolveDisputeUseCase closes a dispute in one of two terminal directions:
// resolved refunds the customer in full, rejected releases the payout to the
// store minus commission. Order-state transitions happen here so the payout
// flow stays a pure money mover.
type ResolveDisputeUseCase struct {
	disputeRepo dispute.Repository
	orders      OrderGateway
	stores      StoreGateway
	payout      *PayoutUseCase
	archiver    ConversationArchiver
	events      EventPublisher
	commission  decimal.Decimal
}

// NewResolveDisputeUseCase creates a new ResolveDisputeUseCase.
func NewResolveDisputeUseCase(
	disputeRepo dispute.Repository,
	orders OrderGateway,
	stores StoreGateway,
	payoutUC *PayoutUseCase,
	archiver ConversationArchiver,
	events EventPublisher,
	commission decimal.Decimal,
) *ResolveDisputeUseCase {
	if !commission.IsPositive() {
		commission = DefaultCommissionRate
	}
	return &ResolveDisputeUseCase{
		disputeRepo: disputeRepo,
		orders:      orders,
		stores:      stores,
		payout:      payoutUC,
		archiver:    archiver,
		events:      events,
		commission:  commission,
	}
}

// Resolve upholds the dispute: the order is cancelled and the customer is
// refunded the full order total.
func (uc *ResolveDisputeUseCase) Resolve(ctx context.Context, disputeID uuid.UUID, resolution string) (*dispute.Dispute, *PayoutResult, error) {
	return uc.close(ctx, disputeID, dispute.StatusResolved, resolution)
}

// Reject dismisses the dispute: the order is released and the store receives
// the payout net of commission.
func (uc *ResolveDisputeUseCase) Reject(ctx context.Context, disputeID uuid.UUID, resolution string) (*dispute.Dispute, *PayoutResult, error) {
	return uc.close(ctx, disputeID, dispute.StatusRejected, resolution)
}

func (uc *ResolveDisputeUseCase) close(ctx context.Context, disputeID uuid.UUID, status dispute.Status, resolution string) (*dispute.Dispute, *PayoutResult, error) {
	d, err := uc.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return nil, nil, err
	}

	order, err := uc.orders.GetOrder(ctx, d.OrderID)
	if err != nil {
		return nil, nil, fmt.Errorf("load disputed order: %w", err)
	}

	// Close first. A dispute never reopens, so the decision is recorded even
	// if the money movement below needs a later retry.
	if err := d.Close(status, resolution); err != nil {
		return nil, nil, err
	}
	if err := uc.disputeRepo.Update(ctx, d); err != nil {
		return nil, nil, err
	}

	var result *PayoutResult
	switch status {
	case dispute.StatusResolved:
		if err := uc.orders.MarkCancelledRefunded(ctx, d.OrderID); err != nil {
			return nil, nil, fmt.Errorf("mark order cancelled: %w", err)
		}
		result, err = uc.payout.Execute(ctx, PayoutRequest{
			RecipientID: d.CustomerID,
			OrderID:     d.OrderID,
			Amount:      order.TotalAmount,
			Direction:   payout.ToCustomer,
			Memo:        fmt.Sprintf("Refund for disputed order %s", d.OrderID),
		})
	case dispute.StatusRejected:
		if err := uc.orders.MarkDeliveredReleased(ctx, d.OrderID); err != nil {
			return nil, nil, fmt.Errorf("mark order released: %w", err)
		}
		owner, storeErr := uc.storeOwner(ctx, d, order)
		if storeErr != nil {
			return nil, nil, storeErr
		}
		net := order.TotalAmount.Mul(decimal.NewFromInt(1).Sub(uc.commission))
		result, err = uc.payout.Execute(ctx, PayoutRequest{
			RecipientID: owner,
			OrderID:     d.OrderID,
			Amount:      net,
			Direction:   payout.ToStore,
			Memo:        fmt.Sprintf("Released payout for order %s", d.OrderID),
		})
	}
	if err != nil {
		return nil, nil, err
	}

	uc.archive(ctx, d.ID)
	uc.publishClosed(ctx, d, result)
	return d, result, nil
}

// storeOwner resolves the payout recipient for a rejected dispute: the owner
// of the disputed order's store.
func (uc *ResolveDisputeUseCase) storeOwner(ctx context.Context, d *dispute.Dispute, order *Order) (string, error) {
	storeID := order.StoreID
	if storeID == "" {
		storeID = d.StoreID
	}
	store, err := uc.stores.GetStoreForPayout(ctx, storeID)
	if err != nil {
		return "", fmt.Errorf("load store: %w", err)
	}
	return store.OwnerID, nil
}

func (uc *ResolveDisputeUseCase) archive(ctx context.Context, disputeID uuid.UUID) {
	if uc.archiver == nil {
		return
	}
	if err := uc.archiver.ArchiveDisputeConversation(ctx, disputeID); err != nil {
		log.Warn().Err(err).Str("dispute_id", disputeID.String()).Msg("failed to archive dispute conversation")
	}
}

func (uc *ResolveDisputeUseCase) publishClosed(ctx context.Context, d *dispute.Dispute, result *PayoutResult) {
	if uc.events == nil {
		return
	}
	payload := map[string]any{
		"dispute_id": d.ID.String(),
		"order_id":   d.OrderID,
		"status":     string(d.Status),
	}
	if result != nil {
		payload["payout_success"] = result.Success
		payload["transaction_id"] = result.TransactionID
	}
	if err := uc.events.PublishSettlementEvent(ctx, "dispute.closed", payload); err != nil {
		log.Warn().Err(err).Str("dispute_id", d.ID.String()).Msg("failed to publish settlement event")
	}
}
