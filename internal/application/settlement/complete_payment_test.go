package settlement_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cassiomorais/settlement/internal/application/settlement"
	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/cassiomorais/settlement/internal/domain/payment"
	"github.com/cassiomorais/settlement/internal/infrastructure/pinet"
	"github.com/cassiomorais/settlement/internal/testutil"
)

type completeFixture struct {
	repo     *testutil.MockPaymentRepository
	platform *testutil.MockPlatformClient
	orders   *testutil.MockOrderGateway
	events   *testutil.MockEventPublisher
	uc       *settlement.CompletePaymentUseCase
}

func newCompleteFixture() *completeFixture {
	f := &completeFixture{
		repo:     testutil.NewMockPaymentRepository(),
		platform: &testutil.MockPlatformClient{},
		orders:   &testutil.MockOrderGateway{},
		events:   &testutil.MockEventPublisher{},
	}
	f.uc = settlement.NewCompletePaymentUseCase(f.repo, f.platform, f.orders, f.events)
	return f
}

func TestCompletePayment(t *testing.T) {
	f := newCompleteFixture()
	f.repo.Seed(testutil.ApprovedPayment("pay-1", "user-1", 10))

	record, err := f.uc.Execute(context.Background(), "pay-1", "tx-1")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if record.Status != payment.StatusCompleted {
		t.Errorf("expected completed, got %s", record.Status)
	}
	if f.orders.ProcessCalls != 1 {
		t.Errorf("expected 1 fulfillment call, got %d", f.orders.ProcessCalls)
	}
	if types := f.events.Types(); len(types) != 1 || types[0] != "payment.completed" {
		t.Errorf("expected payment.completed event, got %v", types)
	}
}

func TestCompletePaymentIdempotent(t *testing.T) {
	f := newCompleteFixture()
	existing := testutil.ApprovedPayment("pay-1", "user-1", 10)
	if err := existing.MarkCompleted("tx-1"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	f.repo.Seed(existing)

	record, err := f.uc.Execute(context.Background(), "pay-1", "tx-1")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if record.Status != payment.StatusCompleted {
		t.Errorf("expected completed, got %s", record.Status)
	}
	if f.platform.CompleteCalls != 0 {
		t.Errorf("expected zero provider calls on idempotent completion, got %d", f.platform.CompleteCalls)
	}
	if f.orders.ProcessCalls != 0 {
		t.Errorf("fulfillment must not re-run, got %d calls", f.orders.ProcessCalls)
	}
}

func TestCompletePaymentNotFound(t *testing.T) {
	f := newCompleteFixture()

	_, err := f.uc.Execute(context.Background(), "missing", "tx-1")
	if !errors.Is(err, domainErrors.ErrPaymentNotFound) {
		t.Errorf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestCompletePaymentProviderRejection(t *testing.T) {
	f := newCompleteFixture()
	f.repo.Seed(testutil.ApprovedPayment("pay-1", "user-1", 10))
	f.platform.CompletePaymentFunc = func(ctx context.Context, paymentID, txID string) (*pinet.Payment, error) {
		return nil, errors.New("provider says no")
	}

	_, err := f.uc.Execute(context.Background(), "pay-1", "tx-1")
	if !errors.Is(err, domainErrors.ErrProviderRejected) {
		t.Errorf("expected ErrProviderRejected, got %v", err)
	}

	record, _ := f.repo.GetByPaymentID(context.Background(), "pay-1")
	if record.Status != payment.StatusFailed {
		t.Errorf("expected failed, got %s", record.Status)
	}
	if f.orders.ProcessCalls != 0 {
		t.Error("fulfillment must not run on provider rejection")
	}
}

func TestCompletePaymentUsesResolvedTxID(t *testing.T) {
	f := newCompleteFixture()
	f.repo.Seed(testutil.ApprovedPayment("pay-1", "user-1", 10))
	f.platform.GetPaymentFunc = func(ctx context.Context, paymentID string) (*pinet.Payment, error) {
		return &pinet.Payment{
			Identifier:  paymentID,
			Transaction: &pinet.PaymentTransaction{TxID: "tx-onchain", Verified: true},
		}, nil
	}

	record, err := f.uc.Execute(context.Background(), "pay-1", "tx-submitted")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if record.TransactionID == nil || *record.TransactionID != "tx-onchain" {
		t.Error("expected the provider-resolved transaction id")
	}
}

func TestCompletePaymentLostRace(t *testing.T) {
	f := newCompleteFixture()
	f.repo.Seed(testutil.ApprovedPayment("pay-1", "user-1", 10))
	f.repo.MarkCompletedFunc = func(ctx context.Context, paymentID, txID string) (bool, error) {
		// Another caller persisted the completion between our read and write.
		return false, nil
	}

	_, err := f.uc.Execute(context.Background(), "pay-1", "tx-1")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if f.orders.ProcessCalls != 0 {
		t.Error("the losing caller must not trigger fulfillment")
	}
}

func TestCompletePaymentFulfillmentFailure(t *testing.T) {
	f := newCompleteFixture()
	f.repo.Seed(testutil.ApprovedPayment("pay-1", "user-1", 10))
	f.orders.ProcessCompletedPaymentFunc = func(ctx context.Context, paymentID string, details *pinet.Payment) error {
		return errors.New("order service down")
	}

	record, err := f.uc.Execute(context.Background(), "pay-1", "tx-1")
	if err != nil {
		t.Fatalf("completion must not fail when fulfillment fails: %v", err)
	}
	if record.Status != payment.StatusCompleted {
		t.Errorf("completed status must never revert, got %s", record.Status)
	}
	if note, ok := record.Metadata[payment.MetaReconcileKey].(string); !ok || note == "" {
		t.Error("expected a reconciliation note in metadata")
	}

	types := f.events.Types()
	if len(types) != 1 || types[0] != "settlement.reconciliation_required" {
		t.Errorf("expected reconciliation event, got %v", types)
	}
}

func TestCompletePaymentDoesNotResurrectCancelled(t *testing.T) {
	f := newCompleteFixture()
	existing := testutil.ApprovedPayment("pay-1", "user-1", 10)
	if err := existing.MarkCancelled(); err != nil {
		t.Fatalf("MarkCancelled: %v", err)
	}
	f.repo.Seed(existing)

	// A late completion call loses the conditional write; the ledger stays
	// cancelled and fulfillment never runs.
	record, err := f.uc.Execute(context.Background(), "pay-1", "tx-1")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if record.Status != payment.StatusCancelled {
		t.Errorf("cancelled is terminal, got %s", record.Status)
	}
	if f.orders.ProcessCalls != 0 {
		t.Error("fulfillment must not run for a cancelled payment")
	}
}

func TestMarkCompletedOnlyFlipsApprovedOrFailed(t *testing.T) {
	repo := testutil.NewMockPaymentRepository()
	cancelled := testutil.ApprovedPayment("pay-1", "user-1", 10)
	if err := cancelled.MarkCancelled(); err != nil {
		t.Fatalf("MarkCancelled: %v", err)
	}
	repo.Seed(cancelled)

	won, err := repo.MarkCompleted(context.Background(), "pay-1", "tx-1")
	if err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if won {
		t.Error("a cancelled payment must not be marked completed")
	}

	failed := testutil.ApprovedPayment("pay-2", "user-1", 10)
	if err := failed.MarkFailed("timeout"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	repo.Seed(failed)

	won, err = repo.MarkCompleted(context.Background(), "pay-2", "tx-2")
	if err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if !won {
		t.Error("a failed payment may still complete on a late confirmation")
	}
}

func TestCancelPayment(t *testing.T) {
	repo := testutil.NewMockPaymentRepository()
	repo.Seed(testutil.ApprovedPayment("pay-1", "user-1", 10))
	uc := settlement.NewCancelPaymentUseCase(repo)

	record, err := uc.Execute(context.Background(), "pay-1")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if record.Status != payment.StatusCancelled {
		t.Errorf("expected cancelled, got %s", record.Status)
	}

	// Second cancellation is a no-op.
	updates := repo.UpdateCalls
	if _, err := uc.Execute(context.Background(), "pay-1"); err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}
	if repo.UpdateCalls != updates {
		t.Error("repeat cancel must not write")
	}
}

func TestCancelCompletedPayment(t *testing.T) {
	repo := testutil.NewMockPaymentRepository()
	existing := testutil.ApprovedPayment("pay-1", "user-1", 10)
	if err := existing.MarkCompleted("tx-1"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	repo.Seed(existing)
	uc := settlement.NewCancelPaymentUseCase(repo)

	_, err := uc.Execute(context.Background(), "pay-1")
	if !errors.Is(err, domainErrors.ErrInvalidStateTransition) {
		t.Errorf("expected ErrInvalidStateTransition, got %v", err)
	}
}
