package dispute

import (
	"errors"
	"testing"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
)

func TestNewDispute(t *testing.T) {
	d, err := NewDispute("order-1", "store-1", "cust-1", "wrong item")
	if err != nil {
		t.Fatalf("NewDispute: %v", err)
	}
	if d.Status != StatusOpen {
		t.Errorf("expected open, got %s", d.Status)
	}
	if d.ResolvedAt != nil {
		t.Error("expected nil ResolvedAt")
	}
}

func TestNewDisputeValidation(t *testing.T) {
	if _, err := NewDispute("", "store-1", "cust-1", "r"); err == nil {
		t.Error("expected error for empty order id")
	}
	if _, err := NewDispute("order-1", "store-1", "", "r"); err == nil {
		t.Error("expected error for empty customer id")
	}
}

func TestClose(t *testing.T) {
	d, _ := NewDispute("order-1", "store-1", "cust-1", "wrong item")
	if err := d.Close(StatusResolved, "refunded in full"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if d.Status != StatusResolved {
		t.Errorf("expected resolved, got %s", d.Status)
	}
	if d.Resolution == nil || *d.Resolution != "refunded in full" {
		t.Error("expected resolution to be recorded")
	}
	if d.ResolvedAt == nil {
		t.Error("expected ResolvedAt to be set")
	}
}

func TestCloseIsTerminal(t *testing.T) {
	d, _ := NewDispute("order-1", "store-1", "cust-1", "wrong item")
	if err := d.Close(StatusRejected, "evidence insufficient"); err != nil {
		t.Fatalf("Close: %v", err)
	}

	err := d.Close(StatusResolved, "changed my mind")
	if err == nil {
		t.Fatal("expected error closing a closed dispute")
	}
	if !errors.Is(err, domainErrors.ErrDisputeClosed) {
		t.Errorf("expected ErrDisputeClosed, got %v", err)
	}
	if d.Status != StatusRejected {
		t.Errorf("closed status must not change, got %s", d.Status)
	}
}

func TestCloseRejectsNonTerminalTarget(t *testing.T) {
	d, _ := NewDispute("order-1", "store-1", "cust-1", "wrong item")
	if err := d.Close(StatusOpen, ""); err == nil {
		t.Error("expected error closing to open")
	}
}
