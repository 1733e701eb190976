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
	"github.com/shopspring/decimal"
)

type approveFixture struct {
	repo      *testutil.MockPaymentRepository
	platform  *testutil.MockPlatformClient
	profiles  *testutil.MockProfileGateway
	inventory *testutil.MockInventoryGateway
	stores    *testutil.MockStoreGateway
	uc        *settlement.ApprovePaymentUseCase
}

func newApproveFixture() *approveFixture {
	f := &approveFixture{
		repo:      testutil.NewMockPaymentRepository(),
		platform:  &testutil.MockPlatformClient{},
		profiles:  &testutil.MockProfileGateway{Profiles: map[string]*settlement.Profile{}},
		inventory: &testutil.MockInventoryGateway{},
		stores:    &testutil.MockStoreGateway{Stores: map[string]*settlement.Store{}},
	}
	f.profiles.Profiles["user-1"] = testutil.TestProfile("user-1", "pi-uid-1", "wallet-1")
	f.uc = settlement.NewApprovePaymentUseCase(f.repo, f.platform, f.profiles, f.inventory, f.stores)
	return f
}

func validApproveRequest() settlement.ApprovePaymentRequest {
	return settlement.ApprovePaymentRequest{
		UserID:      "user-1",
		PaymentID:   "pay-1",
		AccessToken: "token",
		Amount:      decimal.NewFromFloat(12.5),
		Memo:        "order",
	}
}

func TestApprovePayment(t *testing.T) {
	f := newApproveFixture()

	record, err := f.uc.Execute(context.Background(), validApproveRequest())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if record.Status != payment.StatusApproved {
		t.Errorf("expected approved, got %s", record.Status)
	}
	if f.platform.ApproveCalls != 1 {
		t.Errorf("expected 1 provider approve call, got %d", f.platform.ApproveCalls)
	}
	if f.repo.CreateCalls != 1 {
		t.Errorf("expected 1 create call, got %d", f.repo.CreateCalls)
	}
}

func TestApprovePaymentRequiresUser(t *testing.T) {
	f := newApproveFixture()
	req := validApproveRequest()
	req.UserID = ""

	_, err := f.uc.Execute(context.Background(), req)
	if !errors.Is(err, domainErrors.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if f.platform.VerifyCalls != 0 {
		t.Error("no provider call expected for anonymous caller")
	}
}

func TestApprovePaymentRejectsNonPositiveAmount(t *testing.T) {
	f := newApproveFixture()

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-3)} {
		req := validApproveRequest()
		req.Amount = amount
		if _, err := f.uc.Execute(context.Background(), req); err == nil {
			t.Errorf("expected error for amount %s", amount)
		}
	}
	if f.platform.VerifyCalls != 0 {
		t.Error("no provider call expected for invalid amount")
	}
}

func TestApprovePaymentIdentityMismatch(t *testing.T) {
	f := newApproveFixture()
	f.platform.VerifyAccessTokenFunc = func(ctx context.Context, token string) (*pinet.UserMe, error) {
		return &pinet.UserMe{UID: "someone-else"}, nil
	}

	_, err := f.uc.Execute(context.Background(), validApproveRequest())
	if !errors.Is(err, domainErrors.ErrIdentityMismatch) {
		t.Errorf("expected ErrIdentityMismatch, got %v", err)
	}
	if f.repo.CreateCalls != 0 {
		t.Error("no record must be created on identity mismatch")
	}
}

func TestApprovePaymentUnverifiedToken(t *testing.T) {
	f := newApproveFixture()
	f.platform.VerifyAccessTokenFunc = func(ctx context.Context, token string) (*pinet.UserMe, error) {
		return nil, domainErrors.ErrIdentityUnverified
	}

	_, err := f.uc.Execute(context.Background(), validApproveRequest())
	if !errors.Is(err, domainErrors.ErrIdentityUnverified) {
		t.Errorf("expected ErrIdentityUnverified, got %v", err)
	}
}

func TestApprovePaymentInsufficientStock(t *testing.T) {
	f := newApproveFixture()
	f.inventory.CheckAvailabilityFunc = func(ctx context.Context, items []settlement.CartItem) error {
		return domainErrors.ErrInsufficientStock
	}

	req := validApproveRequest()
	req.Metadata = map[string]any{
		payment.MetaItems: []any{
			map[string]any{"product_id": "prod-1", "quantity": float64(2)},
		},
	}

	_, err := f.uc.Execute(context.Background(), req)
	if !errors.Is(err, domainErrors.ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock, got %v", err)
	}
	if f.repo.CreateCalls != 0 {
		t.Error("no record must be created when stock is short")
	}
}

func TestApprovePaymentDeliveryZone(t *testing.T) {
	tests := []struct {
		name        string
		store       *settlement.Store
		country     string
		city        string
		wantAllowed bool
	}{
		{
			name:        "same country no region list",
			store:       &settlement.Store{ID: "store-1", OwnerID: "owner-1", Country: "BR"},
			country:     "BR",
			city:        "Recife",
			wantAllowed: true,
		},
		{
			name:        "different country",
			store:       &settlement.Store{ID: "store-1", OwnerID: "owner-1", Country: "BR"},
			country:     "AR",
			city:        "Buenos Aires",
			wantAllowed: false,
		},
		{
			name: "allow list includes city",
			store: &settlement.Store{
				ID: "store-1", OwnerID: "owner-1", Country: "BR",
				DeliveryRegions: []string{"Recife", "Olinda"}, IsAllowList: true,
			},
			country:     "BR",
			city:        "Recife",
			wantAllowed: true,
		},
		{
			name: "allow list excludes city",
			store: &settlement.Store{
				ID: "store-1", OwnerID: "owner-1", Country: "BR",
				DeliveryRegions: []string{"Recife"}, IsAllowList: true,
			},
			country:     "BR",
			city:        "Manaus",
			wantAllowed: false,
		},
		{
			name: "deny list includes city",
			store: &settlement.Store{
				ID: "store-1", OwnerID: "owner-1", Country: "BR",
				DeliveryRegions: []string{"Manaus"}, IsAllowList: false,
			},
			country:     "BR",
			city:        "Manaus",
			wantAllowed: false,
		},
		{
			name: "deny list excludes city",
			store: &settlement.Store{
				ID: "store-1", OwnerID: "owner-1", Country: "BR",
				DeliveryRegions: []string{"Manaus"}, IsAllowList: false,
			},
			country:     "BR",
			city:        "Recife",
			wantAllowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newApproveFixture()
			f.stores.Stores["store-1"] = tt.store

			req := validApproveRequest()
			req.Metadata = map[string]any{
				payment.MetaStoreID: "store-1",
				payment.MetaCountry: tt.country,
				payment.MetaCity:    tt.city,
			}

			_, err := f.uc.Execute(context.Background(), req)
			if tt.wantAllowed && err != nil {
				t.Errorf("expected approval, got %v", err)
			}
			if !tt.wantAllowed && !errors.Is(err, domainErrors.ErrOutsideDeliveryZone) {
				t.Errorf("expected ErrOutsideDeliveryZone, got %v", err)
			}
		})
	}
}

func TestApprovePaymentDuplicate(t *testing.T) {
	f := newApproveFixture()
	f.repo.Seed(testutil.ApprovedPayment("pay-1", "user-1", 12.5))

	record, err := f.uc.Execute(context.Background(), validApproveRequest())
	if err != nil {
		t.Fatalf("re-approving an approved payment must succeed: %v", err)
	}
	if record.PaymentID != "pay-1" {
		t.Errorf("expected existing record, got %s", record.PaymentID)
	}
	if f.platform.ApproveCalls != 1 {
		t.Errorf("expected provider re-approve, got %d calls", f.platform.ApproveCalls)
	}
}

func TestApprovePaymentDuplicateCompleted(t *testing.T) {
	f := newApproveFixture()
	existing := testutil.ApprovedPayment("pay-1", "user-1", 12.5)
	if err := existing.MarkCompleted("tx-1"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	f.repo.Seed(existing)

	_, err := f.uc.Execute(context.Background(), validApproveRequest())
	if !errors.Is(err, domainErrors.ErrInvalidStateTransition) {
		t.Errorf("expected ErrInvalidStateTransition, got %v", err)
	}
	if f.platform.ApproveCalls != 0 {
		t.Error("no provider approve expected for a completed payment")
	}
}
