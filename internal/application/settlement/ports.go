package settlement

import (
	"context"

	"github.com/cassiomorais/settlement/internal/infrastructure/pinet"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionManager defines the interface for transaction management.
// This is an application-layer port, not a domain concern.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// PlatformClient is the slice of the payment platform API the settlement
// flows consume. Satisfied by *pinet.Client.
type PlatformClient interface {
	VerifyAccessToken(ctx context.Context, accessToken string) (*pinet.UserMe, error)
	ApprovePayment(ctx context.Context, paymentID string) (*pinet.Payment, error)
	CompletePayment(ctx context.Context, paymentID, txID string) (*pinet.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*pinet.Payment, error)
}

// Profile is the user profile slice consumed by settlement: the stored
// platform identity and the currently linked payout wallet.
type Profile struct {
	UserID        string
	PiUID         string
	WalletAddress string
	Country       string
	City          string
}

// ProfileGateway resolves user profiles. Profile data is owned by the user
// management collaborator.
type ProfileGateway interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}

// CartItem is one item/option combination referenced by payment metadata.
type CartItem struct {
	ProductID string
	OptionID  string
	Name      string
	Quantity  int
}

// InventoryGateway checks stock before any money moves. Implementations
// return a BusinessError naming the offending product when stock is short.
type InventoryGateway interface {
	CheckAvailability(ctx context.Context, items []CartItem) error
}

// Store is the store slice consumed for delivery-zone policy and payouts.
type Store struct {
	ID              string
	OwnerID         string
	Country         string
	DeliveryRegions []string
	// IsAllowList interprets DeliveryRegions as an allow-list when true,
	// a deny-list when false.
	IsAllowList           bool
	PayoutAddressFallback string
}

// StoreGateway resolves stores. Store data is owned by the store management
// collaborator.
type StoreGateway interface {
	GetStoreForPayout(ctx context.Context, storeID string) (*Store, error)
}

// Order is the order slice consulted by settlement.
type Order struct {
	ID            string
	StoreID       string
	UserID        string
	TotalAmount   decimal.Decimal
	Status        string
	PaymentStatus string
}

// OrderGateway is the order management collaborator. Settlement only moves
// the order's status and payment status; everything else belongs to the
// collaborator.
type OrderGateway interface {
	GetOrder(ctx context.Context, orderID string) (*Order, error)

	// ProcessCompletedPayment confirms the order once its payment completes.
	ProcessCompletedPayment(ctx context.Context, paymentID string, details *pinet.Payment) error

	// MarkCancelledRefunded moves the order to cancelled/refunded.
	MarkCancelledRefunded(ctx context.Context, orderID string) error

	// MarkDeliveredReleased moves the order to delivered/released.
	MarkDeliveredReleased(ctx context.Context, orderID string) error
}

// ConversationArchiver archives a dispute's conversation on resolution.
type ConversationArchiver interface {
	ArchiveDisputeConversation(ctx context.Context, disputeID uuid.UUID) error
}

// EventPublisher publishes settlement events for downstream fan-out
// (notifications, analytics). Best effort; settlement state never depends
// on a publish succeeding.
type EventPublisher interface {
	PublishSettlementEvent(ctx context.Context, eventType string, payload map[string]any) error
}
