package controllers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/memorylayer/app/models"
	"github.com/ManuelReschke/memorylayer/internal/pkg/billing"
	"github.com/ManuelReschke/memorylayer/internal/pkg/entitlements"
	"github.com/ManuelReschke/memorylayer/internal/pkg/usercontext"
)

const (
	webhookSignatureHeader = "X-Webhook-Signature"
	webhookTimeout         = 15 * time.Second
)

// WebhookReceiver processes signed provider deliveries.
type WebhookReceiver interface {
	Receive(ctx context.Context, d billing.Delivery) (billing.Result, error)
}

// BillingReader exposes subscription state to the dashboard and admins.
type BillingReader interface {
	EffectivePlan(ctx context.Context, ownerID uint) (entitlements.Plan, error)
	Subscriptions(ctx context.Context, ownerID uint) ([]models.BillingSubscription, error)
	FlaggedEvents(ctx context.Context, limit int) ([]models.BillingWebhookEvent, error)
}

type BillingController struct {
	receiver WebhookReceiver
	reader   BillingReader
}

func NewBillingController(receiver WebhookReceiver, reader BillingReader) *BillingController {
	return &BillingController{receiver: receiver, reader: reader}
}

// HandleWebhook accepts a payment provider delivery. Anything that passed the
// signature check is acknowledged unless it could not be stored, so the
// provider only retries deliveries that were not recorded.
func (bc *BillingController) HandleWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := firstHeaderValue(c, webhookSignatureHeader, "X-Signature")

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	res, err := bc.receiver.Receive(ctx, billing.Delivery{Body: rawBody, Signature: signature})
	switch {
	case errors.Is(err, billing.ErrInvalidSignature):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "invalid_signature"})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"received":  true,
		"duplicate": res.Duplicate,
		"flagged":   res.Flagged,
	})
}

// HandleBilling shows the caller's effective plan and subscriptions.
func (bc *BillingController) HandleBilling(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	ctx := c.UserContext()

	plan, err := bc.reader.EffectivePlan(ctx, userCtx.UserID)
	if err != nil {
		log.Printf("billing: plan lookup for user %d failed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load billing"})
	}
	subs, err := bc.reader.Subscriptions(ctx, userCtx.UserID)
	if err != nil {
		log.Printf("billing: subscription lookup for user %d failed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load billing"})
	}

	items := make([]fiber.Map, 0, len(subs))
	for _, s := range subs {
		items = append(items, fiber.Map{
			"provider":        s.Provider,
			"subscription_id": s.ProviderSubscriptionID,
			"status":          s.Status,
			"updated_at":      formatTimePtr(s.LastEventAt),
		})
	}
	return c.JSON(fiber.Map{"plan": plan, "subscriptions": items})
}

// HandleFlaggedEvents lists webhook events that need operator attention.
func (bc *BillingController) HandleFlaggedEvents(c *fiber.Ctx) error {
	events, err := bc.reader.FlaggedEvents(c.UserContext(), c.QueryInt("limit", 0))
	if err != nil {
		log.Printf("billing: flagged event lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load events"})
	}

	items := make([]fiber.Map, 0, len(events))
	for _, e := range events {
		items = append(items, fiber.Map{
			"provider":         e.Provider,
			"event_id":         e.ProviderEventID,
			"event_type":       e.EventType,
			"subscription_id":  e.SubscriptionID,
			"owner_id":         e.OwnerID,
			"received_at":      formatTime(e.ReceivedAt),
			"processing_error": e.ProcessingError,
		})
	}
	return c.JSON(items)
}

func firstHeaderValue(c *fiber.Ctx, keys ...string) string {
	for _, k := range keys {
		v := strings.TrimSpace(c.Get(k))
		if v != "" {
			return v
		}
	}
	return ""
}
