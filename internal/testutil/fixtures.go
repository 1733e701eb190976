package testutil

import (
	"github.com/cassiomorais/settlement/internal/application/settlement"
	"github.com/cassiomorais/settlement/internal/domain/dispute"
	"github.com/cassiomorais/settlement/internal/domain/payment"
	"github.com/shopspring/decimal"
)

// ApprovedPayment builds an approved payment record fixture.
func ApprovedPayment(paymentID, userID string, amount float64) *payment.Record {
	record, err := payment.NewRecord(paymentID, userID, decimal.NewFromFloat(amount), "test payment", map[string]any{
		payment.MetaOrderID: "order-1",
		payment.MetaStoreID: "store-1",
	})
	if err != nil {
		panic(err)
	}
	return record
}

// OpenDispute builds an open dispute fixture.
func OpenDispute(orderID, storeID, customerID string) *dispute.Dispute {
	d, err := dispute.NewDispute(orderID, storeID, customerID, "item never arrived")
	if err != nil {
		panic(err)
	}
	return d
}

// TestProfile builds a profile with a linked wallet.
func TestProfile(userID, piUID, walletAddress string) *settlement.Profile {
	return &settlement.Profile{
		UserID:        userID,
		PiUID:         piUID,
		WalletAddress: walletAddress,
		Country:       "BR",
		City:          "Sao Paulo",
	}
}

// TestStore builds a store owned by ownerID delivering everywhere in BR.
func TestStore(storeID, ownerID string) *settlement.Store {
	return &settlement.Store{
		ID:      storeID,
		OwnerID: ownerID,
		Country: "BR",
	}
}

// TestOrder builds a paid order fixture.
func TestOrder(orderID, storeID, userID string, total float64) *settlement.Order {
	return &settlement.Order{
		ID:            orderID,
		StoreID:       storeID,
		UserID:        userID,
		TotalAmount:   decimal.NewFromFloat(total),
		Status:        "paid",
		PaymentStatus: "completed",
	}
}
