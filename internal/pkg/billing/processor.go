package billing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ManuelReschke/memorylayer/app/models"
	"github.com/ManuelReschke/memorylayer/internal/pkg/env"
)

var (
	// ErrInvalidSignature means the delivery was not signed with a configured
	// secret. The body has not been parsed.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrStoreFailure means the event could not be recorded. The provider
	// should retry the delivery.
	ErrStoreFailure = errors.New("webhook store failure")
)

const (
	flagMalformed       = "malformed payload"
	flagOwnerUnresolved = "owner unresolved"
	noteStale           = "stale event"
	noteUnknownType     = "unknown event type"
)

// Processor authenticates webhook deliveries and applies them to
// subscription state exactly once per event id.
type Processor struct {
	repo     Repository
	provider string
	secrets  []string
	now      func() time.Time
}

// NewProcessor creates a processor. Without secrets every delivery is
// rejected.
func NewProcessor(repo Repository, provider string, secrets ...string) *Processor {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		provider = models.BillingProviderDefault
	}
	var cleaned []string
	for _, s := range secrets {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	if len(cleaned) == 0 {
		log.Printf("billing: no webhook secret configured, all deliveries will be rejected")
	}
	return &Processor{
		repo:     repo,
		provider: provider,
		secrets:  cleaned,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewProcessorFromEnv reads WEBHOOK_PROVIDER and WEBHOOK_SECRETS.
func NewProcessorFromEnv(repo Repository) *Processor {
	return NewProcessor(
		repo,
		env.GetEnv("WEBHOOK_PROVIDER", models.BillingProviderDefault),
		env.GetEnvList("WEBHOOK_SECRETS", nil)...,
	)
}

// Receive handles one delivery. A nil error means the delivery must be
// acknowledged, including duplicates and malformed payloads.
func (p *Processor) Receive(ctx context.Context, d Delivery) (Result, error) {
	if !VerifyWebhookSignature(d.Body, d.Signature, p.secrets...) {
		return Result{}, ErrInvalidSignature
	}

	receivedAt := p.now()
	envelope, parseErr := parseEnvelope(d.Body, receivedAt)
	if parseErr != nil {
		return p.recordMalformed(ctx, d.Body, envelope, parseErr, receivedAt)
	}

	event := &models.BillingWebhookEvent{
		Provider:        p.provider,
		ProviderEventID: envelope.EventID,
		EventType:       envelope.EventType,
		SubscriptionID:  envelope.SubscriptionID,
		OwnerID:         envelope.OwnerID,
		PayloadJSON:     payloadText(d.Body),
		ReceivedAt:      receivedAt,
	}

	applied, err := p.repo.ApplyEvent(ctx, event, func(current *models.BillingSubscription) Transition {
		return transition(current, p.provider, envelope, receivedAt)
	})
	if err != nil {
		log.Printf("billing: event %s (%s) not recorded: %v", envelope.EventID, envelope.EventType, err)
		return Result{}, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	res := Result{Acknowledged: true, EventID: envelope.EventID}
	if applied.Duplicate {
		res.Duplicate = true
		return res, nil
	}

	tr := applied.Transition
	if tr.Next != nil {
		res.Status = tr.Next.Status
	}
	if tr.Flag != "" {
		res.Flagged = true
		log.Printf("billing: event %s flagged for review: %s", envelope.EventID, tr.Flag)
	} else if tr.Note != "" {
		log.Printf("billing: event %s recorded without state change: %s", envelope.EventID, tr.Note)
	}
	return res, nil
}

// recordMalformed keeps a flagged copy of a payload that passed the signature
// check but cannot be processed, and acknowledges it.
func (p *Processor) recordMalformed(ctx context.Context, body []byte, envelope *Envelope, parseErr error, receivedAt time.Time) (Result, error) {
	eventID := fallbackEventID(body)
	event := &models.BillingWebhookEvent{
		Provider:        p.provider,
		ProviderEventID: eventID,
		PayloadJSON:     payloadText(body),
		ReceivedAt:      receivedAt,
		ProcessedAt:     &receivedAt,
		ProcessingError: flagMalformed + ": " + parseErr.Error(),
	}
	if envelope != nil {
		if envelope.EventID != "" && utf8.RuneCountInString(envelope.EventID) <= 191 {
			event.ProviderEventID = envelope.EventID
		}
		event.EventType = truncate(envelope.EventType, 100)
		event.SubscriptionID = truncate(envelope.SubscriptionID, 191)
		event.OwnerID = envelope.OwnerID
	}

	created, err := p.repo.RecordEvent(ctx, event)
	if err != nil {
		log.Printf("billing: malformed event %s not recorded: %v", event.ProviderEventID, err)
		return Result{}, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	if created {
		log.Printf("billing: event %s flagged for review: %v", event.ProviderEventID, parseErr)
	}
	return Result{
		Acknowledged: true,
		Duplicate:    !created,
		Flagged:      true,
		EventID:      event.ProviderEventID,
	}, nil
}

// transition is the pure state machine for one event.
func transition(current *models.BillingSubscription, provider string, e *Envelope, receivedAt time.Time) Transition {
	owner := e.OwnerID
	if owner == 0 && current != nil {
		owner = current.OwnerID
	}

	status, known := statusForEventType(e.EventType)
	if !known {
		return Transition{OwnerID: owner, Note: noteUnknownType}
	}

	occurredAt := receivedAt.UTC().Truncate(time.Microsecond)
	if e.OccurredAt != nil && !e.OccurredAt.IsZero() {
		occurredAt = e.OccurredAt.UTC().Truncate(time.Microsecond)
	}

	if current == nil {
		if owner == 0 {
			return Transition{Flag: flagOwnerUnresolved}
		}
		return Transition{
			OwnerID: owner,
			Next: &models.BillingSubscription{
				OwnerID:                owner,
				Provider:               provider,
				ProviderSubscriptionID: e.SubscriptionID,
				Status:                 status,
				LastEventID:            e.EventID,
				LastEventAt:            &occurredAt,
			},
		}
	}

	if current.LastEventAt != nil && occurredAt.Before(*current.LastEventAt) {
		return Transition{OwnerID: owner, Note: noteStale}
	}

	next := *current
	next.Status = status
	next.LastEventID = e.EventID
	next.LastEventAt = &occurredAt
	return Transition{OwnerID: owner, Next: &next}
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
