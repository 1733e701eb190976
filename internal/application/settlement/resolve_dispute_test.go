package settlement_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cassiomorais/settlement/internal/application/settlement"
	"github.com/cassiomorais/settlement/internal/domain/dispute"
	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/cassiomorais/settlement/internal/domain/payout"
	"github.com/cassiomorais/settlement/internal/testutil"
	"github.com/shopspring/decimal"
)

type disputeFixture struct {
	disputes *testutil.MockDisputeRepository
	orders   *testutil.MockOrderGateway
	stores   *testutil.MockStoreGateway
	payouts  *payoutFixture
	archiver *testutil.MockArchiver
	events   *testutil.MockEventPublisher
	uc       *settlement.ResolveDisputeUseCase

	dispute *dispute.Dispute
}

func newDisputeFixture() *disputeFixture {
	f := &disputeFixture{
		disputes: testutil.NewMockDisputeRepository(),
		orders:   &testutil.MockOrderGateway{Orders: map[string]*settlement.Order{}},
		stores:   &testutil.MockStoreGateway{Stores: map[string]*settlement.Store{}},
		payouts:  newPayoutFixture(0),
		archiver: &testutil.MockArchiver{},
		events:   &testutil.MockEventPublisher{},
	}

	f.dispute = testutil.OpenDispute("order-1", "store-1", "cust-1")
	f.disputes.Seed(f.dispute)
	f.orders.Orders["order-1"] = testutil.TestOrder("order-1", "store-1", "cust-1", 100)
	f.stores.Stores["store-1"] = testutil.TestStore("store-1", "owner-1")

	f.payouts.profiles.Profiles["cust-1"] = testutil.TestProfile("cust-1", "pi-cust", "wallet-cust")
	f.payouts.profiles.Profiles["owner-1"] = testutil.TestProfile("owner-1", "pi-owner", "wallet-owner")

	f.uc = settlement.NewResolveDisputeUseCase(
		f.disputes, f.orders, f.stores, f.payouts.uc, f.archiver, f.events,
		decimal.NewFromFloat(0.05),
	)
	return f
}

func TestResolveDisputeRefundsCustomer(t *testing.T) {
	f := newDisputeFixture()

	d, result, err := f.uc.Resolve(context.Background(), f.dispute.ID, "seller at fault")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Status != dispute.StatusResolved {
		t.Errorf("expected resolved, got %s", d.Status)
	}
	if !result.Success {
		t.Fatalf("expected refund payout, got %q", result.Reason)
	}

	transfer := f.payouts.wallet.LastTransfer
	if transfer.Request.Recipient != "wallet-cust" {
		t.Errorf("refund must go to the customer wallet, got %s", transfer.Request.Recipient)
	}
	if got := transfer.Request.Amount.String(); got != "100" {
		t.Errorf("refund must be the full order total, got %s", got)
	}

	if f.orders.CancelledCalls != 1 {
		t.Errorf("expected order cancelled, got %d calls", f.orders.CancelledCalls)
	}
	if f.orders.ReleasedCalls != 0 {
		t.Error("order must not be released on a resolved dispute")
	}
	if f.archiver.ArchiveCalls != 1 {
		t.Error("expected dispute conversation archived")
	}
}

func TestRejectDisputeReleasesNetPayout(t *testing.T) {
	f := newDisputeFixture()

	d, result, err := f.uc.Reject(context.Background(), f.dispute.ID, "evidence insufficient")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if d.Status != dispute.StatusRejected {
		t.Errorf("expected rejected, got %s", d.Status)
	}
	if !result.Success {
		t.Fatalf("expected release payout, got %q", result.Reason)
	}

	transfer := f.payouts.wallet.LastTransfer
	if transfer.Request.Recipient != "wallet-owner" {
		t.Errorf("release must go to the store owner wallet, got %s", transfer.Request.Recipient)
	}
	if got := transfer.Request.Amount.String(); got != "95" {
		t.Errorf("release must be net of 5%% commission, got %s", got)
	}
	if key := transfer.Request.IdempotencyKey; key != payout.IdempotencyKey("order-1", payout.ToStore) {
		t.Errorf("unexpected idempotency key %q", key)
	}

	if f.orders.ReleasedCalls != 1 {
		t.Errorf("expected order released, got %d calls", f.orders.ReleasedCalls)
	}
	if f.orders.CancelledCalls != 0 {
		t.Error("order must not be cancelled on a rejected dispute")
	}
}

func TestResolveDisputeAlreadyClosed(t *testing.T) {
	f := newDisputeFixture()
	if _, _, err := f.uc.Reject(context.Background(), f.dispute.ID, "first decision"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	_, _, err := f.uc.Resolve(context.Background(), f.dispute.ID, "second decision")
	if !errors.Is(err, domainErrors.ErrDisputeClosed) {
		t.Errorf("expected ErrDisputeClosed, got %v", err)
	}
}

func TestResolveDisputeNotFound(t *testing.T) {
	f := newDisputeFixture()
	unknown := testutil.OpenDispute("order-2", "store-1", "cust-1")

	_, _, err := f.uc.Resolve(context.Background(), unknown.ID, "x")
	if !errors.Is(err, domainErrors.ErrDisputeNotFound) {
		t.Errorf("expected ErrDisputeNotFound, got %v", err)
	}
}

func TestResolveDisputePublishesClosedEvent(t *testing.T) {
	f := newDisputeFixture()

	if _, _, err := f.uc.Resolve(context.Background(), f.dispute.ID, "refund"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	types := f.events.Types()
	if len(types) != 1 || types[0] != "dispute.closed" {
		t.Errorf("expected dispute.closed event, got %v", types)
	}
}

func TestResolveDisputeRefundParksWithoutWallet(t *testing.T) {
	f := newDisputeFixture()
	f.payouts.profiles.Profiles["cust-1"].WalletAddress = ""

	d, result, err := f.uc.Resolve(context.Background(), f.dispute.ID, "seller at fault")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Status != dispute.StatusResolved {
		t.Error("the decision stands even when the refund is parked")
	}
	if result.Success || !result.WillRetry {
		t.Errorf("expected a parked refund, got %+v", result)
	}
	if len(f.payouts.queue.Tasks) != 1 {
		t.Errorf("expected a scheduled refund retry, got %d", len(f.payouts.queue.Tasks))
	}
}
