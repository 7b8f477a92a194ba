package billing

import (
	"time"

	"github.com/ManuelReschke/memorylayer/app/models"
)

// Delivery is one inbound webhook request as received on the wire.
type Delivery struct {
	Body      []byte
	Signature string
}

// Result describes how a delivery was handled. Every Result returned with a
// nil error must be acknowledged to the provider.
type Result struct {
	Acknowledged bool
	Duplicate    bool
	Flagged      bool
	EventID      string
	Status       string
}

// Envelope is the provider-neutral event shape carried in the webhook body.
type Envelope struct {
	EventID        string     `json:"event_id" validate:"required,max=191"`
	EventType      string     `json:"event_type" validate:"required,max=100"`
	SubscriptionID string     `json:"subscription_id" validate:"required,max=191"`
	OwnerID        uint       `json:"owner_id"`
	OccurredAt     *time.Time `json:"occurred_at"`
}

// Transition is the outcome of applying one event to the current state.
// A nil Next leaves the stored subscription untouched.
type Transition struct {
	Next    *models.BillingSubscription
	OwnerID uint
	Flag    string
	Note    string
}

// ApplyFunc computes a transition from the current subscription row, which
// is nil when the subscription is not known yet. It must be pure.
type ApplyFunc func(current *models.BillingSubscription) Transition

// ApplyResult is returned by Repository.ApplyEvent.
type ApplyResult struct {
	Duplicate  bool
	Transition Transition
}
