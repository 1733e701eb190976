package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockWallet is a wallet client for tests and local development.
type MockWallet struct {
	latency   time.Duration
	failWith  error
	mu        sync.Mutex
	sequence  int64
	submitted []TransferRequest
}

// MockWalletOption configures the mock.
type MockWalletOption func(*MockWallet)

// WithLatency adds artificial latency to every submission.
func WithLatency(d time.Duration) MockWalletOption {
	return func(w *MockWallet) { w.latency = d }
}

// WithSubmitError makes every submission fail with the given error.
func WithSubmitError(err error) MockWalletOption {
	return func(w *MockWallet) { w.failWith = err }
}

// NewMockWallet creates a mock wallet client.
func NewMockWallet(opts ...MockWalletOption) *MockWallet {
	w := &MockWallet{}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *MockWallet) LoadAccount(_ context.Context) (*Account, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return &Account{Address: "MOCKCUSTODIALADDRESS", Sequence: w.sequence, Balance: decimal.NewFromInt(1_000_000)}, nil
}

func (w *MockWallet) BuildAndSignTransfer(_ context.Context, account *Account, req TransferRequest) (*SignedTransfer, error) {
	if req.Recipient == "" {
		return nil, fmt.Errorf("transfer recipient is empty")
	}
	return &SignedTransfer{Request: req, Sequence: account.Sequence}, nil
}

func (w *MockWallet) Submit(ctx context.Context, transfer *SignedTransfer) (*SubmitResult, error) {
	if w.latency > 0 {
		select {
		case <-time.After(w.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if w.failWith != nil {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrProviderRejected, w.failWith)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// Provider-side idempotency: a repeated key returns without a new transfer.
	for _, prior := range w.submitted {
		if prior.IdempotencyKey == transfer.Request.IdempotencyKey {
			return &SubmitResult{TransactionID: "mock_txn_dup_" + transfer.Request.IdempotencyKey}, nil
		}
	}

	w.sequence++
	w.submitted = append(w.submitted, transfer.Request)
	return &SubmitResult{TransactionID: "mock_txn_" + uuid.New().String()[:8]}, nil
}

// Submissions returns the transfers actually submitted (test helper).
func (w *MockWallet) Submissions() []TransferRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]TransferRequest, len(w.submitted))
	copy(out, w.submitted)
	return out
}
