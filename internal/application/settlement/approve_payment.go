package settlement

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/cassiomorais/settlement/internal/domain/payment"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ApprovePaymentRequest holds the input for approving a claimed payment.
type ApprovePaymentRequest struct {
	UserID      string
	PaymentID   string
	AccessToken string
	Amount      decimal.Decimal
	Memo        string
	Metadata    map[string]any
}

// ApprovePaymentUseCase validates a claimed user payment before the platform
// lets money move. Every step is a hard gate that fails closed.
type ApprovePaymentUseCase struct {
	paymentRepo payment.Repository
	platform    PlatformClient
	profiles    ProfileGateway
	inventory   InventoryGateway
	stores      StoreGateway
}

// NewApprovePaymentUseCase creates a new ApprovePaymentUseCase.
func NewApprovePaymentUseCase(
	paymentRepo payment.Repository,
	platform PlatformClient,
	profiles ProfileGateway,
	inventory InventoryGateway,
	stores StoreGateway,
) *ApprovePaymentUseCase {
	return &ApprovePaymentUseCase{
		paymentRepo: paymentRepo,
		platform:    platform,
		profiles:    profiles,
		inventory:   inventory,
		stores:      stores,
	}
}

// Execute runs the approval gates in order and, on success, records the
// payment locally and approves it with the provider.
func (uc *ApprovePaymentUseCase) Execute(ctx context.Context, req ApprovePaymentRequest) (*payment.Record, error) {
	// 1. Caller must be an authenticated user.
	if req.UserID == "" {
		return nil, domainErrors.ErrUnauthorized
	}

	// 2. Reject non-positive amounts before touching the network.
	if !req.Amount.IsPositive() {
		return nil, domainErrors.NewValidationError("amount", "must be greater than 0")
	}

	// 3. Verify the bearer credential against the platform identity endpoint.
	me, err := uc.platform.VerifyAccessToken(ctx, req.AccessToken)
	if err != nil {
		return nil, err
	}

	// 4. The verified identity must match the profile on record. A mismatch
	// points at token replay or theft.
	profile, err := uc.profiles.GetProfile(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile.PiUID == "" || profile.PiUID != me.UID {
		log.Warn().
			Str("user_id", req.UserID).
			Str("verified_uid", me.UID).
			Msg("payment approval identity mismatch")
		return nil, domainErrors.NewDomainError(
			"identity_mismatch",
			"payment credential does not belong to this account",
			domainErrors.ErrIdentityMismatch,
		)
	}

	// 5. Every referenced item/option must be in stock before money moves.
	if items := cartItemsFromMetadata(req.Metadata); len(items) > 0 {
		if err := uc.inventory.CheckAvailability(ctx, items); err != nil {
			return nil, err
		}
	}

	// 6. Delivery-zone policy for the referenced store.
	if storeID, _ := req.Metadata[payment.MetaStoreID].(string); storeID != "" {
		store, err := uc.stores.GetStoreForPayout(ctx, storeID)
		if err != nil {
			return nil, fmt.Errorf("load store: %w", err)
		}
		country, _ := req.Metadata[payment.MetaCountry].(string)
		city, _ := req.Metadata[payment.MetaCity].(string)
		if err := checkDeliveryZone(store, country, city); err != nil {
			return nil, err
		}
	}

	// 7. Durable intent: the local record exists even if the approve call
	// that follows never lands.
	record, err := payment.NewRecord(req.PaymentID, req.UserID, req.Amount, req.Memo, req.Metadata)
	if err != nil {
		return nil, err
	}
	if err := uc.paymentRepo.Create(ctx, record); err != nil {
		if !errors.Is(err, domainErrors.ErrPaymentExists) {
			return nil, err
		}
		// A prior approval attempt already recorded this payment. Re-approving
		// with the provider is benign.
		existing, getErr := uc.paymentRepo.GetByPaymentID(ctx, req.PaymentID)
		if getErr != nil {
			return nil, getErr
		}
		if existing.Status != payment.StatusApproved {
			return nil, domainErrors.NewDomainError(
				"invalid_approval",
				fmt.Sprintf("payment is already %s", existing.Status),
				domainErrors.ErrInvalidStateTransition,
			)
		}
		record = existing
	}

	// 8. Tell the provider. "Already approved" is handled inside the client.
	if _, err := uc.platform.ApprovePayment(ctx, req.PaymentID); err != nil {
		return nil, err
	}

	return record, nil
}

// checkDeliveryZone enforces the store's delivery policy: the destination
// country must equal the store's country, and the region list is applied as
// an allow-list or deny-list.
func checkDeliveryZone(store *Store, country, city string) error {
	if country != store.Country {
		return domainErrors.NewDomainError(
			"outside_delivery_zone",
			fmt.Sprintf("store does not deliver to %s", country),
			domainErrors.ErrOutsideDeliveryZone,
		)
	}
	if len(store.DeliveryRegions) == 0 {
		return nil
	}

	listed := false
	for _, region := range store.DeliveryRegions {
		if region == city {
			listed = true
			break
		}
	}
	if store.IsAllowList != listed {
		return domainErrors.NewDomainError(
			"outside_delivery_zone",
			fmt.Sprintf("store does not deliver to %s", city),
			domainErrors.ErrOutsideDeliveryZone,
		)
	}
	return nil
}

// cartItemsFromMetadata reads the items slice out of the opaque metadata
// blob. The blob is schema-on-read: only the fields actually consumed are
// interpreted, everything else passes through untouched.
func cartItemsFromMetadata(metadata map[string]any) []CartItem {
	raw, ok := metadata[payment.MetaItems].([]any)
	if !ok {
		return nil
	}

	items := make([]CartItem, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		item := CartItem{Quantity: 1}
		item.ProductID, _ = m["product_id"].(string)
		item.OptionID, _ = m["option_id"].(string)
		item.Name, _ = m["name"].(string)
		if q, ok := m["quantity"].(float64); ok && q > 0 {
			item.Quantity = int(q)
		}
		if item.ProductID != "" {
			items = append(items, item)
		}
	}
	return items
}
