package billing

import (
	"strings"

	"github.com/ManuelReschke/memorylayer/app/models"
	"github.com/ManuelReschke/memorylayer/internal/pkg/entitlements"
)

const subscriptionEventPrefix = "subscription."

// statusForEventType maps a provider event type to the subscription status it
// produces. ok is false for event types that do not change state.
func statusForEventType(eventType string) (status string, ok bool) {
	t := strings.ToLower(strings.TrimSpace(eventType))
	t = strings.TrimPrefix(t, subscriptionEventPrefix)
	switch t {
	case "activated":
		return models.BillingStatusActive, true
	case "cancelled", "canceled":
		return models.BillingStatusRevoked, true
	case "payment-failed", "payment_failed":
		return models.BillingStatusPastDue, true
	default:
		return "", false
	}
}

func isEntitlingStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.BillingStatusActive, models.BillingStatusPastDue:
		return true
	default:
		return false
	}
}

func planForStatus(status string) entitlements.Plan {
	if isEntitlingStatus(status) {
		return entitlements.PlanPro
	}
	return entitlements.PlanFree
}
