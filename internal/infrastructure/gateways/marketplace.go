package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cassiomorais/settlement/internal/application/settlement"
	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/cassiomorais/settlement/internal/infrastructure/config"
	"github.com/cassiomorais/settlement/internal/infrastructure/pinet"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// MarketplaceClient talks to the marketplace collaborator service that owns
// orders, stores, profiles, inventory and chat. It implements the settlement
// gateway ports over the collaborator's internal REST API.
type MarketplaceClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     zerolog.Logger
}

// NewMarketplaceClient creates a gateway client from config.
func NewMarketplaceClient(cfg config.MarketplaceConfig, logger zerolog.Logger) *MarketplaceClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MarketplaceClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		logger:     logger,
	}
}

// GetProfile implements settlement.ProfileGateway.
func (c *MarketplaceClient) GetProfile(ctx context.Context, userID string) (*settlement.Profile, error) {
	var dto struct {
		UserID        string `json:"user_id"`
		PiUID         string `json:"pi_uid"`
		WalletAddress string `json:"wallet_address"`
		Country       string `json:"country"`
		City          string `json:"city"`
	}
	if err := c.get(ctx, "/internal/v1/profiles/"+userID, &dto); err != nil {
		return nil, err
	}
	return &settlement.Profile{
		UserID:        dto.UserID,
		PiUID:         dto.PiUID,
		WalletAddress: dto.WalletAddress,
		Country:       dto.Country,
		City:          dto.City,
	}, nil
}

// CheckAvailability implements settlement.InventoryGateway.
func (c *MarketplaceClient) CheckAvailability(ctx context.Context, items []settlement.CartItem) error {
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, map[string]any{
			"product_id": item.ProductID,
			"option_id":  item.OptionID,
			"quantity":   item.Quantity,
		})
	}

	var result struct {
		Available  bool   `json:"available"`
		OutOfStock string `json:"out_of_stock,omitempty"`
	}
	if err := c.post(ctx, "/internal/v1/inventory/check", map[string]any{"items": payload}, &result); err != nil {
		return err
	}
	if !result.Available {
		return domainErrors.NewDomainError(
			"insufficient_stock",
			fmt.Sprintf("insufficient stock for %s", result.OutOfStock),
			domainErrors.ErrInsufficientStock,
		)
	}
	return nil
}

// GetStoreForPayout implements settlement.StoreGateway.
func (c *MarketplaceClient) GetStoreForPayout(ctx context.Context, storeID string) (*settlement.Store, error) {
	var dto struct {
		ID              string   `json:"id"`
		OwnerID         string   `json:"owner_id"`
		Country         string   `json:"country"`
		DeliveryRegions []string `json:"delivery_regions"`
		IsAllowList     bool     `json:"is_allow_list"`
		PayoutAddress   string   `json:"payout_address,omitempty"`
	}
	if err := c.get(ctx, "/internal/v1/stores/"+storeID, &dto); err != nil {
		return nil, err
	}
	return &settlement.Store{
		ID:                    dto.ID,
		OwnerID:               dto.OwnerID,
		Country:               dto.Country,
		DeliveryRegions:       dto.DeliveryRegions,
		IsAllowList:           dto.IsAllowList,
		PayoutAddressFallback: dto.PayoutAddress,
	}, nil
}

// GetOrder implements settlement.OrderGateway.
func (c *MarketplaceClient) GetOrder(ctx context.Context, orderID string) (*settlement.Order, error) {
	var dto struct {
		ID            string `json:"id"`
		StoreID       string `json:"store_id"`
		UserID        string `json:"user_id"`
		TotalAmount   string `json:"total_amount"`
		Status        string `json:"status"`
		PaymentStatus string `json:"payment_status"`
	}
	if err := c.get(ctx, "/internal/v1/orders/"+orderID, &dto); err != nil {
		return nil, err
	}

	total, err := decimal.NewFromString(dto.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("parse order total: %w", err)
	}
	return &settlement.Order{
		ID:            dto.ID,
		StoreID:       dto.StoreID,
		UserID:        dto.UserID,
		TotalAmount:   total,
		Status:        dto.Status,
		PaymentStatus: dto.PaymentStatus,
	}, nil
}

// ProcessCompletedPayment implements settlement.OrderGateway.
func (c *MarketplaceClient) ProcessCompletedPayment(ctx context.Context, paymentID string, details *pinet.Payment) error {
	payload := map[string]any{
		"payment_id": paymentID,
		"amount":     details.Amount,
		"metadata":   details.Metadata,
	}
	if details.Transaction != nil {
		payload["txid"] = details.Transaction.TxID
	}
	return c.post(ctx, "/internal/v1/orders/payment-completed", payload, nil)
}

// MarkCancelledRefunded implements settlement.OrderGateway.
func (c *MarketplaceClient) MarkCancelledRefunded(ctx context.Context, orderID string) error {
	return c.post(ctx, "/internal/v1/orders/"+orderID+"/cancel-refund", nil, nil)
}

// MarkDeliveredReleased implements settlement.OrderGateway.
func (c *MarketplaceClient) MarkDeliveredReleased(ctx context.Context, orderID string) error {
	return c.post(ctx, "/internal/v1/orders/"+orderID+"/deliver-release", nil, nil)
}

// ArchiveDisputeConversation implements settlement.ConversationArchiver.
func (c *MarketplaceClient) ArchiveDisputeConversation(ctx context.Context, disputeID uuid.UUID) error {
	return c.post(ctx, "/internal/v1/conversations/disputes/"+disputeID.String()+"/archive", nil, nil)
}

func (c *MarketplaceClient) get(ctx context.Context, path string, out any) error {
	return c.request(ctx, http.MethodGet, path, nil, out)
}

func (c *MarketplaceClient) post(ctx context.Context, path string, payload, out any) error {
	return c.request(ctx, http.MethodPost, path, payload, out)
}

func (c *MarketplaceClient) request(ctx context.Context, method, path string, payload, out any) error {
	var reqBody io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("marketplace request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return c.notFoundError(path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Msg("marketplace request failed")
		return fmt.Errorf("marketplace returned %d for %s %s", resp.StatusCode, method, path)
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode marketplace response: %w", err)
		}
	}
	return nil
}

func (c *MarketplaceClient) notFoundError(path string) error {
	if strings.Contains(path, "/orders/") {
		return domainErrors.ErrOrderNotFound
	}
	return fmt.Errorf("marketplace resource not found: %s", path)
}
