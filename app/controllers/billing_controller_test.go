package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/memorylayer/app/models"
	"github.com/ManuelReschke/memorylayer/internal/pkg/billing"
	"github.com/ManuelReschke/memorylayer/internal/pkg/usercontext"
)

const webhookTestSecret = "whsec_controller"

func newBillingApp(receiver WebhookReceiver, reader BillingReader) *fiber.App {
	app := fiber.New()
	bc := NewBillingController(receiver, reader)
	app.Post("/webhooks/payment", bc.HandleWebhook)
	app.Get("/billing", asUser(42, usercontext.AuthSession), bc.HandleBilling)
	app.Get("/admin/billing/flagged", bc.HandleFlaggedEvents)
	return app
}

func webhookRequest(body, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(webhookSignatureHeader, signature)
	}
	return req
}

func TestBillingController_WebhookDeliveredTwice(t *testing.T) {
	repo := billing.NewMemoryRepository()
	app := newBillingApp(billing.NewProcessor(repo, "", webhookTestSecret), billing.NewService(repo))

	body := `{"event_id":"evt_1","event_type":"activated","subscription_id":"sub_1","owner_id":42}`
	sig := billing.SignWebhookPayload([]byte(body), webhookTestSecret)

	resp, err := app.Test(webhookRequest(body, sig))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var first map[string]interface{}
	decodeJSON(t, resp, &first)
	assert.Equal(t, true, first["received"])
	assert.Equal(t, false, first["duplicate"])

	resp, err = app.Test(webhookRequest(body, sig))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var second map[string]interface{}
	decodeJSON(t, resp, &second)
	assert.Equal(t, true, second["duplicate"])

	assert.Len(t, repo.Events(), 1)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/billing", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var page map[string]interface{}
	decodeJSON(t, resp, &page)
	assert.Equal(t, "pro", page["plan"])
	subs, _ := page["subscriptions"].([]interface{})
	require.Len(t, subs, 1)
	assert.Equal(t, models.BillingStatusActive, subs[0].(map[string]interface{})["status"])
}

func TestBillingController_WebhookRejectsBadSignature(t *testing.T) {
	repo := billing.NewMemoryRepository()
	app := newBillingApp(billing.NewProcessor(repo, "", webhookTestSecret), billing.NewService(repo))

	body := `{"event_id":"evt_2","event_type":"activated","subscription_id":"sub_2","owner_id":1}`

	for _, sig := range []string{"", "sha256=deadbeef", billing.SignWebhookPayload([]byte(body), "other")} {
		resp, err := app.Test(webhookRequest(body, sig))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	}
	assert.Empty(t, repo.Events())
}

func TestBillingController_MalformedPayloadIsAcknowledgedAndFlagged(t *testing.T) {
	repo := billing.NewMemoryRepository()
	app := newBillingApp(billing.NewProcessor(repo, "", webhookTestSecret), billing.NewService(repo))

	body := `{"event_id":"evt_3"`
	resp, err := app.Test(webhookRequest(body, billing.SignWebhookPayload([]byte(body), webhookTestSecret)))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var out map[string]interface{}
	decodeJSON(t, resp, &out)
	assert.Equal(t, true, out["flagged"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/admin/billing/flagged?limit=10", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var flagged []map[string]interface{}
	decodeJSON(t, resp, &flagged)
	require.Len(t, flagged, 1)
	assert.NotEmpty(t, flagged[0]["processing_error"])
}

type failingReceiver struct{}

func (failingReceiver) Receive(context.Context, billing.Delivery) (billing.Result, error) {
	return billing.Result{}, errors.Join(billing.ErrStoreFailure, errors.New("deadlock"))
}

func TestBillingController_StoreFailureAsksForRetry(t *testing.T) {
	app := newBillingApp(failingReceiver{}, billing.NewService(billing.NewMemoryRepository()))

	resp, err := app.Test(webhookRequest(`{}`, "sha256=00"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
