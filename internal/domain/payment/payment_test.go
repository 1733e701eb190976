package payment

import (
	"errors"
	"testing"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/shopspring/decimal"
)

func newTestRecord(t *testing.T) *Record {
	t.Helper()
	record, err := NewRecord("pay-1", "user-1", decimal.NewFromFloat(10.5), "test", nil)
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	return record
}

func TestNewRecord(t *testing.T) {
	record := newTestRecord(t)

	if record.Status != StatusApproved {
		t.Errorf("expected status %s, got %s", StatusApproved, record.Status)
	}
	if record.Metadata == nil {
		t.Error("expected non-nil metadata map")
	}
	if record.CompletedAt != nil {
		t.Error("expected nil CompletedAt on a new record")
	}
}

func TestNewRecordValidation(t *testing.T) {
	tests := []struct {
		name      string
		paymentID string
		userID    string
		amount    decimal.Decimal
	}{
		{"empty payment id", "", "user-1", decimal.NewFromInt(1)},
		{"empty user id", "pay-1", "", decimal.NewFromInt(1)},
		{"zero amount", "pay-1", "user-1", decimal.Zero},
		{"negative amount", "pay-1", "user-1", decimal.NewFromInt(-5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRecord(tt.paymentID, tt.userID, tt.amount, "", nil); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"approved to completed", StatusApproved, StatusCompleted, true},
		{"approved to cancelled", StatusApproved, StatusCancelled, true},
		{"approved to failed", StatusApproved, StatusFailed, true},
		{"completed is terminal", StatusCompleted, StatusCancelled, false},
		{"completed never fails", StatusCompleted, StatusFailed, false},
		{"cancelled is terminal", StatusCancelled, StatusCompleted, false},
		{"failed may still complete", StatusFailed, StatusCompleted, true},
		{"failed to cancelled", StatusFailed, StatusCancelled, true},
		{"failed to approved", StatusFailed, StatusApproved, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := newTestRecord(t)
			record.Status = tt.from
			if got := record.CanTransitionTo(tt.to); got != tt.allowed {
				t.Errorf("CanTransitionTo(%s) from %s = %v, want %v", tt.to, tt.from, got, tt.allowed)
			}
		})
	}
}

func TestTransitionToRejectsInvalid(t *testing.T) {
	record := newTestRecord(t)
	if err := record.MarkCompleted("tx-1"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	err := record.MarkCancelled()
	if err == nil {
		t.Fatal("expected error cancelling a completed payment")
	}
	if !errors.Is(err, domainErrors.ErrInvalidStateTransition) {
		t.Errorf("expected ErrInvalidStateTransition, got %v", err)
	}
	if record.Status != StatusCompleted {
		t.Errorf("status must not regress, got %s", record.Status)
	}
}

func TestMarkCompleted(t *testing.T) {
	record := newTestRecord(t)
	if err := record.MarkCompleted("tx-abc"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	if record.Status != StatusCompleted {
		t.Errorf("expected status completed, got %s", record.Status)
	}
	if record.TransactionID == nil || *record.TransactionID != "tx-abc" {
		t.Error("expected transaction id to be recorded")
	}
	if record.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
	if !record.IsTerminal() {
		t.Error("completed record must be terminal")
	}
}

func TestMarkFailedKeepsReason(t *testing.T) {
	record := newTestRecord(t)
	if err := record.MarkFailed("provider rejected"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	if record.FailureReason == nil || *record.FailureReason != "provider rejected" {
		t.Error("expected failure reason to be recorded")
	}
	if record.IsTerminal() {
		t.Error("failed is not terminal, a webhook may still complete it")
	}
}

func TestMetadataAccessors(t *testing.T) {
	record, err := NewRecord("pay-1", "user-1", decimal.NewFromInt(10), "", map[string]any{
		MetaOrderID: "order-9",
		MetaStoreID: "store-3",
	})
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}

	if got := record.OrderID(); got != "order-9" {
		t.Errorf("OrderID() = %q, want order-9", got)
	}
	if got := record.StoreID(); got != "store-3" {
		t.Errorf("StoreID() = %q, want store-3", got)
	}

	empty := newTestRecord(t)
	if got := empty.OrderID(); got != "" {
		t.Errorf("OrderID() on empty metadata = %q, want empty", got)
	}
}
