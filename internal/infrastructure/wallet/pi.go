package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/cassiomorais/settlement/internal/domain/payout"
	"github.com/cassiomorais/settlement/internal/infrastructure/pinet"
	"github.com/shopspring/decimal"
)

// PiWallet drives app-to-user transfers through the platform payment API.
// Submission is serialized with a mutex: the platform signs from a single
// custodial account and concurrent submissions would race on its sequence
// number and be rejected by the network.
type PiWallet struct {
	client  *pinet.Client
	address string

	mu       sync.Mutex
	sequence int64
}

// NewPiWallet creates a wallet client over the given platform client.
func NewPiWallet(client *pinet.Client, custodialAddress string) *PiWallet {
	return &PiWallet{client: client, address: custodialAddress}
}

// LoadAccount returns the custodial account state. The platform owns the real
// sequence number; the local counter only orders this process's submissions.
func (w *PiWallet) LoadAccount(ctx context.Context) (*Account, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return &Account{
		Address:  w.address,
		Sequence: w.sequence,
		Balance:  decimal.Zero,
	}, nil
}

// BuildAndSignTransfer validates and stages a transfer.
func (w *PiWallet) BuildAndSignTransfer(_ context.Context, account *Account, req TransferRequest) (*SignedTransfer, error) {
	if req.Recipient == "" {
		return nil, fmt.Errorf("transfer recipient is empty")
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("transfer amount must be positive, got %s", req.Amount)
	}
	if req.Amount.Exponent() < -payout.Precision {
		return nil, fmt.Errorf("transfer amount %s exceeds %d decimal places", req.Amount, payout.Precision)
	}
	return &SignedTransfer{Request: req, Sequence: account.Sequence}, nil
}

// Submit sends the transfer. Exactly one submission is in flight per wallet.
func (w *PiWallet) Submit(ctx context.Context, transfer *SignedTransfer) (*SubmitResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	identifier, err := w.client.CreatePayment(ctx, pinet.CreatePaymentRequest{
		Amount:         transfer.Request.Amount,
		Memo:           transfer.Request.Memo,
		Recipient:      transfer.Request.Recipient,
		IdempotencyKey: transfer.Request.IdempotencyKey,
		Metadata:       transfer.Request.Metadata,
	})
	if err != nil {
		return nil, err
	}

	w.sequence++
	return &SubmitResult{TransactionID: identifier}, nil
}
