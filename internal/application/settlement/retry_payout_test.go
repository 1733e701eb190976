package settlement_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cassiomorais/settlement/internal/application/settlement"
	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/cassiomorais/settlement/internal/testutil"
	"github.com/shopspring/decimal"
)

func newRetryPayoutFixture() (*settlement.RetryPayoutUseCase, *payoutFixture, *testutil.MockStoreGateway) {
	payouts := newPayoutFixture(0)
	payouts.profiles.Profiles["owner-1"] = testutil.TestProfile("owner-1", "pi-owner", "wallet-owner")

	stores := &testutil.MockStoreGateway{Stores: map[string]*settlement.Store{
		"store-1": testutil.TestStore("store-1", "owner-1"),
	}}
	return settlement.NewRetryPayoutUseCase(stores, payouts.uc), payouts, stores
}

func TestRetryPayout(t *testing.T) {
	uc, payouts, _ := newRetryPayoutFixture()

	result, err := uc.Execute(context.Background(), settlement.RetryPayoutRequest{
		RequesterID: "owner-1",
		StoreID:     "store-1",
		OrderID:     "order-1",
		Amount:      decimal.NewFromInt(95),
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Reason)
	}
	if payouts.wallet.LastTransfer.Request.Recipient != "wallet-owner" {
		t.Error("payout must go to the store owner wallet")
	}
}

func TestRetryPayoutRequiresRequester(t *testing.T) {
	uc, _, _ := newRetryPayoutFixture()

	_, err := uc.Execute(context.Background(), settlement.RetryPayoutRequest{
		StoreID: "store-1",
		OrderID: "order-1",
		Amount:  decimal.NewFromInt(95),
	})
	if !errors.Is(err, domainErrors.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRetryPayoutForbiddenForNonOwner(t *testing.T) {
	uc, payouts, _ := newRetryPayoutFixture()

	_, err := uc.Execute(context.Background(), settlement.RetryPayoutRequest{
		RequesterID: "intruder",
		StoreID:     "store-1",
		OrderID:     "order-1",
		Amount:      decimal.NewFromInt(95),
	})
	if !errors.Is(err, domainErrors.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if payouts.repo.ClaimCalls != 0 {
		t.Error("no claim expected for a forbidden request")
	}
}

func TestRetryPayoutSettledOrderReportsSuccess(t *testing.T) {
	uc, payouts, _ := newRetryPayoutFixture()

	first, err := uc.Execute(context.Background(), settlement.RetryPayoutRequest{
		RequesterID: "owner-1",
		StoreID:     "store-1",
		OrderID:     "order-1",
		Amount:      decimal.NewFromInt(95),
	})
	if err != nil || !first.Success {
		t.Fatalf("first payout failed: %v %+v", err, first)
	}
	submits := payouts.wallet.SubmitCalls

	second, err := uc.Execute(context.Background(), settlement.RetryPayoutRequest{
		RequesterID: "owner-1",
		StoreID:     "store-1",
		OrderID:     "order-1",
		Amount:      decimal.NewFromInt(95),
	})
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if !second.Success {
		t.Fatal("a settled order must report success")
	}
	if second.TransactionID != first.TransactionID {
		t.Error("expected the original transaction id")
	}
	if payouts.wallet.SubmitCalls != submits {
		t.Error("a settled order must not disburse again")
	}
}
