// Package testutil provides hand-rolled mocks and fixtures for unit tests.
// Mocks expose overridable func fields plus call counters so tests can assert
// both outcomes and interaction counts.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cassiomorais/settlement/internal/application/settlement"
	"github.com/cassiomorais/settlement/internal/domain/dispute"
	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/cassiomorais/settlement/internal/domain/payment"
	"github.com/cassiomorais/settlement/internal/domain/payout"
	"github.com/cassiomorais/settlement/internal/infrastructure/pinet"
	"github.com/cassiomorais/settlement/internal/infrastructure/wallet"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockPaymentRepository is an in-memory payment.Repository.
type MockPaymentRepository struct {
	mu      sync.Mutex
	records map[string]*payment.Record

	CreateFunc         func(ctx context.Context, record *payment.Record) error
	GetByPaymentIDFunc func(ctx context.Context, paymentID string) (*payment.Record, error)
	UpdateFunc         func(ctx context.Context, record *payment.Record) error
	MarkCompletedFunc  func(ctx context.Context, paymentID, txID string) (bool, error)

	CreateCalls        int
	UpdateCalls        int
	MarkCompletedCalls int
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{records: make(map[string]*payment.Record)}
}

// Seed inserts a record without counting as a Create call.
func (m *MockPaymentRepository) Seed(record *payment.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.PaymentID] = record
}

func (m *MockPaymentRepository) Create(ctx context.Context, record *payment.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, record)
	}
	if _, exists := m.records[record.PaymentID]; exists {
		return domainErrors.ErrPaymentExists
	}
	m.records[record.PaymentID] = record
	return nil
}

func (m *MockPaymentRepository) GetByPaymentID(ctx context.Context, paymentID string) (*payment.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetByPaymentIDFunc != nil {
		return m.GetByPaymentIDFunc(ctx, paymentID)
	}
	record, ok := m.records[paymentID]
	if !ok {
		return nil, domainErrors.ErrPaymentNotFound
	}
	return record, nil
}

func (m *MockPaymentRepository) Update(ctx context.Context, record *payment.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, record)
	}
	if _, ok := m.records[record.PaymentID]; !ok {
		return domainErrors.ErrPaymentNotFound
	}
	m.records[record.PaymentID] = record
	return nil
}

func (m *MockPaymentRepository) MarkCompleted(ctx context.Context, paymentID, txID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarkCompletedCalls++
	if m.MarkCompletedFunc != nil {
		return m.MarkCompletedFunc(ctx, paymentID, txID)
	}
	record, ok := m.records[paymentID]
	if !ok {
		return false, domainErrors.ErrPaymentNotFound
	}
	// Same guard as the SQL repository: only approved or failed records flip.
	if record.Status != payment.StatusApproved && record.Status != payment.StatusFailed {
		return false, nil
	}
	record.Status = payment.StatusCompleted
	record.TransactionID = &txID
	now := time.Now()
	record.CompletedAt = &now
	return true, nil
}

func (m *MockPaymentRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*payment.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*payment.Record
	for _, r := range m.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

// MockPayoutRepository is an in-memory payout ledger honoring the claim
// contract: one completed and one in-flight record per slot.
type MockPayoutRepository struct {
	mu      sync.Mutex
	records map[uuid.UUID]*payout.Record

	ClaimAttemptFunc func(ctx context.Context, recipientID, orderID string, direction payout.Direction, amount decimal.Decimal) (*payout.ClaimResult, error)
	FinalizeFunc     func(ctx context.Context, payoutID uuid.UUID, status payout.Status, txID, failureReason *string) error

	ClaimCalls    int
	FinalizeCalls int
}

func NewMockPayoutRepository() *MockPayoutRepository {
	return &MockPayoutRepository{records: make(map[uuid.UUID]*payout.Record)}
}

// Seed inserts a payout record directly.
func (m *MockPayoutRepository) Seed(record *payout.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.ID] = record
}

// Record returns a seeded or claimed record by id.
func (m *MockPayoutRepository) Record(id uuid.UUID) *payout.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id]
}

func (m *MockPayoutRepository) ClaimAttempt(ctx context.Context, recipientID, orderID string, direction payout.Direction, amount decimal.Decimal) (*payout.ClaimResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClaimCalls++
	if m.ClaimAttemptFunc != nil {
		return m.ClaimAttemptFunc(ctx, recipientID, orderID, direction, amount)
	}

	for _, r := range m.records {
		if r.RecipientID != recipientID || r.OrderID != orderID || r.Direction != direction {
			continue
		}
		switch r.Status {
		case payout.StatusCompleted:
			txID := ""
			if r.TransactionID != nil {
				txID = *r.TransactionID
			}
			return &payout.ClaimResult{Outcome: payout.ClaimAlreadyCompleted, TransactionID: txID}, nil
		case payout.StatusInProgress:
			return &payout.ClaimResult{Outcome: payout.ClaimInProgress}, nil
		case payout.StatusPending:
			r.Status = payout.StatusInProgress
			r.Amount = amount
			return &payout.ClaimResult{Outcome: payout.ClaimNew, PayoutID: r.ID}, nil
		}
	}

	record, err := payout.NewRecord(recipientID, orderID, direction, amount)
	if err != nil {
		return nil, err
	}
	m.records[record.ID] = record
	return &payout.ClaimResult{Outcome: payout.ClaimNew, PayoutID: record.ID}, nil
}

func (m *MockPayoutRepository) Finalize(ctx context.Context, payoutID uuid.UUID, status payout.Status, txID, failureReason *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FinalizeCalls++
	if m.FinalizeFunc != nil {
		return m.FinalizeFunc(ctx, payoutID, status, txID, failureReason)
	}
	record, ok := m.records[payoutID]
	if !ok {
		return domainErrors.ErrPayoutNotFound
	}
	record.Status = status
	record.TransactionID = txID
	record.FailureReason = failureReason
	record.UpdatedAt = time.Now()
	return nil
}

func (m *MockPayoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*payout.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return nil, domainErrors.ErrPayoutNotFound
	}
	return record, nil
}

func (m *MockPayoutRepository) GetByOrder(ctx context.Context, orderID string) ([]*payout.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*payout.Record
	for _, r := range m.records {
		if r.OrderID == orderID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockPayoutRepository) ReleaseStale(ctx context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var released int64
	reason := "released stale in-progress payout"
	for _, r := range m.records {
		if r.Status == payout.StatusInProgress && r.UpdatedAt.Before(olderThan) {
			r.Status = payout.StatusFailed
			r.FailureReason = &reason
			released++
		}
	}
	return released, nil
}

// MockRetryQueue records scheduled retry tasks.
type MockRetryQueue struct {
	mu    sync.Mutex
	Tasks []*payout.RetryTask

	ScheduleFunc func(ctx context.Context, task *payout.RetryTask) error
	DueFunc      func(ctx context.Context, limit int) ([]*payout.RetryTask, error)
}

func NewMockRetryQueue() *MockRetryQueue {
	return &MockRetryQueue{}
}

func (m *MockRetryQueue) Schedule(ctx context.Context, task *payout.RetryTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ScheduleFunc != nil {
		return m.ScheduleFunc(ctx, task)
	}
	m.Tasks = append(m.Tasks, task)
	return nil
}

func (m *MockRetryQueue) Due(ctx context.Context, limit int) ([]*payout.RetryTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DueFunc != nil {
		return m.DueFunc(ctx, limit)
	}
	now := time.Now()
	var due []*payout.RetryTask
	var remaining []*payout.RetryTask
	for _, t := range m.Tasks {
		if len(due) < limit && !t.RunAt.After(now) {
			due = append(due, t)
		} else {
			remaining = append(remaining, t)
		}
	}
	m.Tasks = remaining
	return due, nil
}

// MockDisputeRepository is an in-memory dispute.Repository.
type MockDisputeRepository struct {
	mu       sync.Mutex
	disputes map[uuid.UUID]*dispute.Dispute

	GetByIDFunc func(ctx context.Context, id uuid.UUID) (*dispute.Dispute, error)
	UpdateFunc  func(ctx context.Context, d *dispute.Dispute) error

	UpdateCalls int
}

func NewMockDisputeRepository() *MockDisputeRepository {
	return &MockDisputeRepository{disputes: make(map[uuid.UUID]*dispute.Dispute)}
}

func (m *MockDisputeRepository) Seed(d *dispute.Dispute) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disputes[d.ID] = d
}

func (m *MockDisputeRepository) Create(ctx context.Context, d *dispute.Dispute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disputes[d.ID] = d
	return nil
}

func (m *MockDisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*dispute.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	d, ok := m.disputes[id]
	if !ok {
		return nil, domainErrors.ErrDisputeNotFound
	}
	return d, nil
}

func (m *MockDisputeRepository) Update(ctx context.Context, d *dispute.Dispute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, d)
	}
	m.disputes[d.ID] = d
	return nil
}

func (m *MockDisputeRepository) ListOpen(ctx context.Context, limit, offset int) ([]*dispute.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*dispute.Dispute
	for _, d := range m.disputes {
		if d.Status == dispute.StatusOpen {
			out = append(out, d)
		}
	}
	return out, nil
}

// MockPlatformClient mocks the payment platform API.
type MockPlatformClient struct {
	VerifyAccessTokenFunc func(ctx context.Context, accessToken string) (*pinet.UserMe, error)
	ApprovePaymentFunc    func(ctx context.Context, paymentID string) (*pinet.Payment, error)
	CompletePaymentFunc   func(ctx context.Context, paymentID, txID string) (*pinet.Payment, error)
	GetPaymentFunc        func(ctx context.Context, paymentID string) (*pinet.Payment, error)

	VerifyCalls   int
	ApproveCalls  int
	CompleteCalls int
	GetCalls      int
}

func (m *MockPlatformClient) VerifyAccessToken(ctx context.Context, accessToken string) (*pinet.UserMe, error) {
	m.VerifyCalls++
	if m.VerifyAccessTokenFunc != nil {
		return m.VerifyAccessTokenFunc(ctx, accessToken)
	}
	return &pinet.UserMe{UID: "pi-uid-1", Username: "tester"}, nil
}

func (m *MockPlatformClient) ApprovePayment(ctx context.Context, paymentID string) (*pinet.Payment, error) {
	m.ApproveCalls++
	if m.ApprovePaymentFunc != nil {
		return m.ApprovePaymentFunc(ctx, paymentID)
	}
	return &pinet.Payment{Identifier: paymentID}, nil
}

func (m *MockPlatformClient) CompletePayment(ctx context.Context, paymentID, txID string) (*pinet.Payment, error) {
	m.CompleteCalls++
	if m.CompletePaymentFunc != nil {
		return m.CompletePaymentFunc(ctx, paymentID, txID)
	}
	return &pinet.Payment{
		Identifier:  paymentID,
		Transaction: &pinet.PaymentTransaction{TxID: txID, Verified: true},
	}, nil
}

func (m *MockPlatformClient) GetPayment(ctx context.Context, paymentID string) (*pinet.Payment, error) {
	m.GetCalls++
	if m.GetPaymentFunc != nil {
		return m.GetPaymentFunc(ctx, paymentID)
	}
	return &pinet.Payment{Identifier: paymentID}, nil
}

// MockProfileGateway resolves profiles from a fixed map.
type MockProfileGateway struct {
	mu       sync.Mutex
	Profiles map[string]*settlement.Profile

	GetProfileFunc func(ctx context.Context, userID string) (*settlement.Profile, error)
	GetCalls       int
}

func (m *MockProfileGateway) GetProfile(ctx context.Context, userID string) (*settlement.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx, userID)
	}
	p, ok := m.Profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile not found: %s", userID)
	}
	return p, nil
}

// MockInventoryGateway mocks stock checks.
type MockInventoryGateway struct {
	CheckAvailabilityFunc func(ctx context.Context, items []settlement.CartItem) error
	CheckCalls            int
	LastItems             []settlement.CartItem
}

func (m *MockInventoryGateway) CheckAvailability(ctx context.Context, items []settlement.CartItem) error {
	m.CheckCalls++
	m.LastItems = items
	if m.CheckAvailabilityFunc != nil {
		return m.CheckAvailabilityFunc(ctx, items)
	}
	return nil
}

// MockStoreGateway resolves stores from a fixed map.
type MockStoreGateway struct {
	Stores map[string]*settlement.Store

	GetStoreForPayoutFunc func(ctx context.Context, storeID string) (*settlement.Store, error)
	GetCalls              int
}

func (m *MockStoreGateway) GetStoreForPayout(ctx context.Context, storeID string) (*settlement.Store, error) {
	m.GetCalls++
	if m.GetStoreForPayoutFunc != nil {
		return m.GetStoreForPayoutFunc(ctx, storeID)
	}
	s, ok := m.Stores[storeID]
	if !ok {
		return nil, fmt.Errorf("store not found: %s", storeID)
	}
	return s, nil
}

// MockOrderGateway mocks the order management collaborator.
type MockOrderGateway struct {
	Orders map[string]*settlement.Order

	GetOrderFunc                func(ctx context.Context, orderID string) (*settlement.Order, error)
	ProcessCompletedPaymentFunc func(ctx context.Context, paymentID string, details *pinet.Payment) error
	MarkCancelledRefundedFunc   func(ctx context.Context, orderID string) error
	MarkDeliveredReleasedFunc   func(ctx context.Context, orderID string) error

	ProcessCalls   int
	CancelledCalls int
	ReleasedCalls  int
}

func (m *MockOrderGateway) GetOrder(ctx context.Context, orderID string) (*settlement.Order, error) {
	if m.GetOrderFunc != nil {
		return m.GetOrderFunc(ctx, orderID)
	}
	o, ok := m.Orders[orderID]
	if !ok {
		return nil, domainErrors.ErrOrderNotFound
	}
	return o, nil
}

func (m *MockOrderGateway) ProcessCompletedPayment(ctx context.Context, paymentID string, details *pinet.Payment) error {
	m.ProcessCalls++
	if m.ProcessCompletedPaymentFunc != nil {
		return m.ProcessCompletedPaymentFunc(ctx, paymentID, details)
	}
	return nil
}

func (m *MockOrderGateway) MarkCancelledRefunded(ctx context.Context, orderID string) error {
	m.CancelledCalls++
	if m.MarkCancelledRefundedFunc != nil {
		return m.MarkCancelledRefundedFunc(ctx, orderID)
	}
	return nil
}

func (m *MockOrderGateway) MarkDeliveredReleased(ctx context.Context, orderID string) error {
	m.ReleasedCalls++
	if m.MarkDeliveredReleasedFunc != nil {
		return m.MarkDeliveredReleasedFunc(ctx, orderID)
	}
	return nil
}

// MockArchiver mocks conversation archival.
type MockArchiver struct {
	ArchiveFunc  func(ctx context.Context, disputeID uuid.UUID) error
	ArchiveCalls int
}

func (m *MockArchiver) ArchiveDisputeConversation(ctx context.Context, disputeID uuid.UUID) error {
	m.ArchiveCalls++
	if m.ArchiveFunc != nil {
		return m.ArchiveFunc(ctx, disputeID)
	}
	return nil
}

// MockEventPublisher captures published events.
type MockEventPublisher struct {
	mu     sync.Mutex
	Events []PublishedEvent

	PublishFunc func(ctx context.Context, eventType string, payload map[string]any) error
}

// PublishedEvent is one captured event.
type PublishedEvent struct {
	Type    string
	Payload map[string]any
}

func (m *MockEventPublisher) PublishSettlementEvent(ctx context.Context, eventType string, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, eventType, payload)
	}
	m.Events = append(m.Events, PublishedEvent{Type: eventType, Payload: payload})
	return nil
}

// Types returns the event types published, in order.
func (m *MockEventPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.Events))
	for _, e := range m.Events {
		types = append(types, e.Type)
	}
	return types
}

// MockWalletClient mocks the custodial wallet with call counting.
type MockWalletClient struct {
	mu sync.Mutex

	LoadAccountFunc          func(ctx context.Context) (*wallet.Account, error)
	BuildAndSignTransferFunc func(ctx context.Context, account *wallet.Account, req wallet.TransferRequest) (*wallet.SignedTransfer, error)
	SubmitFunc               func(ctx context.Context, transfer *wallet.SignedTransfer) (*wallet.SubmitResult, error)

	LoadCalls    int
	BuildCalls   int
	SubmitCalls  int
	LastTransfer *wallet.SignedTransfer
}

func (m *MockWalletClient) LoadAccount(ctx context.Context) (*wallet.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LoadCalls++
	if m.LoadAccountFunc != nil {
		return m.LoadAccountFunc(ctx)
	}
	return &wallet.Account{Address: "custodial-address", Sequence: 1, Balance: decimal.NewFromInt(1000)}, nil
}

func (m *MockWalletClient) BuildAndSignTransfer(ctx context.Context, account *wallet.Account, req wallet.TransferRequest) (*wallet.SignedTransfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BuildCalls++
	if m.BuildAndSignTransferFunc != nil {
		return m.BuildAndSignTransferFunc(ctx, account, req)
	}
	return &wallet.SignedTransfer{Request: req, Sequence: account.Sequence + 1}, nil
}

func (m *MockWalletClient) Submit(ctx context.Context, transfer *wallet.SignedTransfer) (*wallet.SubmitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SubmitCalls++
	m.LastTransfer = transfer
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, transfer)
	}
	return &wallet.SubmitResult{TransactionID: "tx-" + uuid.NewString()}, nil
}
