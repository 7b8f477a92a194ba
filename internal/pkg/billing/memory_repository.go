package billing

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/memorylayer/app/models"
)

// MemoryRepository is an in-process Repository used by tests and local
// development. The mutex stands in for the database transaction.
type MemoryRepository struct {
	mu     sync.Mutex
	nextID uint
	events map[string]*models.BillingWebhookEvent
	subs   map[string]*models.BillingSubscription
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		events: make(map[string]*models.BillingWebhookEvent),
		subs:   make(map[string]*models.BillingSubscription),
	}
}

func eventKey(provider, eventID string) string { return provider + "\x00" + eventID }

func (m *MemoryRepository) ApplyEvent(_ context.Context, event *models.BillingWebhookEvent, apply ApplyFunc) (*ApplyResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.insertLocked(event) {
		return &ApplyResult{Duplicate: true}, nil
	}

	var current *models.BillingSubscription
	if sub, ok := m.subs[eventKey(event.Provider, event.SubscriptionID)]; ok {
		c := *sub
		current = &c
	}

	tr := apply(current)
	if tr.Next != nil {
		next := *tr.Next
		if next.ID == 0 {
			m.nextID++
			next.ID = m.nextID
			next.CreatedAt = time.Now().UTC()
		}
		next.UpdatedAt = time.Now().UTC()
		m.subs[eventKey(next.Provider, next.ProviderSubscriptionID)] = &next
	}

	now := time.Now().UTC()
	stored := m.events[eventKey(event.Provider, event.ProviderEventID)]
	stored.ProcessedAt = &now
	stored.ProcessingError = tr.Flag
	stored.OwnerID = tr.OwnerID
	*event = *stored

	return &ApplyResult{Transition: tr}, nil
}

func (m *MemoryRepository) RecordEvent(_ context.Context, event *models.BillingWebhookEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(event), nil
}

func (m *MemoryRepository) insertLocked(event *models.BillingWebhookEvent) bool {
	key := eventKey(event.Provider, event.ProviderEventID)
	if _, exists := m.events[key]; exists {
		return false
	}
	m.nextID++
	event.ID = m.nextID
	stored := *event
	m.events[key] = &stored
	return true
}

func (m *MemoryRepository) GetSubscription(_ context.Context, provider, providerSubscriptionID string) (*models.BillingSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[eventKey(provider, providerSubscriptionID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := *sub
	return &c, nil
}

func (m *MemoryRepository) ListSubscriptionsByOwner(_ context.Context, ownerID uint) ([]models.BillingSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.BillingSubscription
	for _, sub := range m.subs {
		if sub.OwnerID == ownerID {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository) ListFlaggedEvents(_ context.Context, limit int) ([]models.BillingWebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.BillingWebhookEvent
	for _, e := range m.events {
		if e.Flagged() {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Events returns a copy of every recorded event.
func (m *MemoryRepository) Events() []models.BillingWebhookEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.BillingWebhookEvent, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
