package wallet

import (
	"context"

	"github.com/shopspring/decimal"
)

// Account is the custodial account state relevant to submission ordering.
type Account struct {
	Address  string
	Sequence int64
	Balance  decimal.Decimal
}

// TransferRequest describes one app-to-user transfer.
type TransferRequest struct {
	Recipient string // provider uid or wallet address
	Amount    decimal.Decimal
	Memo      string
	// IdempotencyKey is the per-order key the provider uses to deduplicate
	// duplicate submissions.
	IdempotencyKey string
	Metadata       map[string]any
}

// SignedTransfer is a transfer prepared for submission.
type SignedTransfer struct {
	Request  TransferRequest
	Sequence int64
}

// SubmitResult holds the provider reference for a submitted transfer.
type SubmitResult struct {
	TransactionID string
}

// Client abstracts transaction building and submission against the custodial
// wallet. The custodial account's sequence number is a single shared resource:
// implementations must serialize Submit calls so concurrent payouts never race
// on it. Swapping the underlying chain must not touch settlement logic.
type Client interface {
	// LoadAccount reads the custodial account state.
	LoadAccount(ctx context.Context) (*Account, error)

	// BuildAndSignTransfer prepares a transfer against the loaded account.
	BuildAndSignTransfer(ctx context.Context, account *Account, req TransferRequest) (*SignedTransfer, error)

	// Submit sends the signed transfer and returns its transaction reference.
	Submit(ctx context.Context, transfer *SignedTransfer) (*SubmitResult, error)
}
