package pinet

import (
	"context"
	"errors"
	"net/http"
	"testing"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/h2non/gock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "http://pi.test"

func newTestClient(t *testing.T) *Client {
	t.Helper()
	hc := &http.Client{}
	gock.InterceptClient(hc)
	t.Cleanup(gock.Off)
	return NewClient(testBaseURL, "test-api-key", WithHTTPClient(hc))
}

func TestVerifyAccessToken(t *testing.T) {
	client := newTestClient(t)

	gock.New(testBaseURL).
		Get("/v2/me").
		MatchHeader("Authorization", "Bearer user-token").
		Reply(200).
		JSON(map[string]string{"uid": "pi-uid-1", "username": "tester"})

	me, err := client.VerifyAccessToken(context.Background(), "user-token")
	require.NoError(t, err)
	assert.Equal(t, "pi-uid-1", me.UID)
	assert.Equal(t, "tester", me.Username)
	assert.True(t, gock.IsDone())
}

func TestVerifyAccessTokenUnauthorized(t *testing.T) {
	client := newTestClient(t)

	gock.New(testBaseURL).
		Get("/v2/me").
		Reply(401).
		JSON(map[string]string{"error": "invalid token"})

	_, err := client.VerifyAccessToken(context.Background(), "bad-token")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrUnauthorized)
}

func TestVerifyAccessTokenRetriesTransientFailure(t *testing.T) {
	client := newTestClient(t)

	gock.New(testBaseURL).
		Get("/v2/me").
		Reply(503).
		JSON(map[string]string{"error": "unavailable"})
	gock.New(testBaseURL).
		Get("/v2/me").
		Reply(200).
		JSON(map[string]string{"uid": "pi-uid-1"})

	me, err := client.VerifyAccessToken(context.Background(), "user-token")
	require.NoError(t, err)
	assert.Equal(t, "pi-uid-1", me.UID)
	assert.True(t, gock.IsDone())
}

func TestApprovePayment(t *testing.T) {
	client := newTestClient(t)

	gock.New(testBaseURL).
		Post("/v2/payments/pay-1/approve").
		MatchHeader("Authorization", "Key test-api-key").
		Reply(200).
		JSON(map[string]any{
			"identifier": "pay-1",
			"amount":     "12.5",
			"status":     map[string]bool{"developer_approved": true},
		})

	p, err := client.ApprovePayment(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, "pay-1", p.Identifier)
	assert.True(t, p.Status.DeveloperApproved)
}

func TestApprovePaymentAlreadyApproved(t *testing.T) {
	client := newTestClient(t)

	gock.New(testBaseURL).
		Post("/v2/payments/pay-1/approve").
		Reply(400).
		JSON(map[string]string{"error_message": "Payment already approved"})
	gock.New(testBaseURL).
		Get("/v2/payments/pay-1").
		Reply(200).
		JSON(map[string]any{"identifier": "pay-1"})

	p, err := client.ApprovePayment(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, "pay-1", p.Identifier)
	assert.True(t, gock.IsDone())
}

func TestCompletePayment(t *testing.T) {
	client := newTestClient(t)

	gock.New(testBaseURL).
		Post("/v2/payments/pay-1/complete").
		JSON(map[string]string{"txid": "tx-1"}).
		Reply(200).
		JSON(map[string]any{
			"identifier":  "pay-1",
			"transaction": map[string]any{"txid": "tx-1", "verified": true},
		})

	p, err := client.CompletePayment(context.Background(), "pay-1", "tx-1")
	require.NoError(t, err)
	require.NotNil(t, p.Transaction)
	assert.Equal(t, "tx-1", p.Transaction.TxID)
	assert.True(t, p.Transaction.Verified)
}

func TestCompletePaymentRejected(t *testing.T) {
	client := newTestClient(t)

	gock.New(testBaseURL).
		Post("/v2/payments/pay-1/complete").
		Reply(400).
		JSON(map[string]string{"error_message": "transaction not found"})

	_, err := client.CompletePayment(context.Background(), "pay-1", "tx-bogus")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.False(t, apiErr.Transient())
}

func TestCreatePayment(t *testing.T) {
	client := newTestClient(t)

	gock.New(testBaseURL).
		Post("/v2/payments").
		Reply(200).
		JSON(map[string]any{"identifier": "a2u-payment-1"})

	id, err := client.CreatePayment(context.Background(), CreatePaymentRequest{
		Amount:         decimal.NewFromFloat(9.5),
		Memo:           "Store payout for order order-1",
		Recipient:      "recipient-uid",
		IdempotencyKey: "payout:order-1:to_store",
	})
	require.NoError(t, err)
	assert.Equal(t, "a2u-payment-1", id)
}

func TestCreatePaymentMissingIdentifier(t *testing.T) {
	client := newTestClient(t)

	gock.New(testBaseURL).
		Post("/v2/payments").
		Reply(200).
		JSON(map[string]any{})

	_, err := client.CreatePayment(context.Background(), CreatePaymentRequest{
		Amount:    decimal.NewFromInt(1),
		Recipient: "recipient-uid",
	})
	require.Error(t, err)
}

func TestAPIErrorClassification(t *testing.T) {
	assert.True(t, (&APIError{StatusCode: 500}).Transient())
	assert.True(t, (&APIError{StatusCode: 429}).Transient())
	assert.False(t, (&APIError{StatusCode: 400}).Transient())
	assert.False(t, (&APIError{StatusCode: 404}).Transient())

	assert.True(t, (&APIError{Message: "Payment Already Approved"}).AlreadyApproved())
	assert.False(t, (&APIError{Message: "insufficient funds"}).AlreadyApproved())
}
