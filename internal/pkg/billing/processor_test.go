package billing

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/memorylayer/app/models"
)

const testSecret = "whsec_test"

func signedDelivery(t *testing.T, payload map[string]interface{}) Delivery {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return Delivery{Body: body, Signature: SignWebhookPayload(body, testSecret)}
}

type failingRepository struct {
	*MemoryRepository
	err error
}

func (f *failingRepository) ApplyEvent(context.Context, *models.BillingWebhookEvent, ApplyFunc) (*ApplyResult, error) {
	return nil, f.err
}

func (f *failingRepository) RecordEvent(context.Context, *models.BillingWebhookEvent) (bool, error) {
	return false, f.err
}

func TestReceive_DuplicateDeliveryScenario(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	p := NewProcessor(repo, "", testSecret)

	d := signedDelivery(t, map[string]interface{}{
		"event_id":        "evt_1",
		"event_type":      "activated",
		"subscription_id": "sub_1",
		"owner_id":        42,
	})

	first, err := p.Receive(ctx, d)
	require.NoError(t, err)
	assert.True(t, first.Acknowledged)
	assert.False(t, first.Duplicate)
	assert.Equal(t, models.BillingStatusActive, first.Status)

	sub, err := repo.GetSubscription(ctx, models.BillingProviderDefault, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.BillingStatusActive, sub.Status)
	assert.Equal(t, uint(42), sub.OwnerID)
	afterFirst := *sub

	second, err := p.Receive(ctx, d)
	require.NoError(t, err)
	assert.True(t, second.Acknowledged)
	assert.True(t, second.Duplicate)

	sub, err = repo.GetSubscription(ctx, models.BillingProviderDefault, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, afterFirst, *sub)
	assert.Len(t, repo.Events(), 1)
}

func TestReceive_InvalidSignatureIsRejectedRegardlessOfPayload(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	p := NewProcessor(repo, "", testSecret)

	bodies := [][]byte{
		[]byte(`{"event_id":"evt_1","event_type":"activated","subscription_id":"sub_1","owner_id":1}`),
		[]byte(`not json`),
		nil,
	}
	for _, body := range bodies {
		res, err := p.Receive(ctx, Delivery{Body: body, Signature: SignWebhookPayload(body, "wrong")})
		assert.ErrorIs(t, err, ErrInvalidSignature)
		assert.False(t, res.Acknowledged)

		_, err = p.Receive(ctx, Delivery{Body: body})
		assert.ErrorIs(t, err, ErrInvalidSignature)
	}
	assert.Empty(t, repo.Events())
}

func TestReceive_NoSecretsRejectsEverything(t *testing.T) {
	repo := NewMemoryRepository()
	p := NewProcessor(repo, "", " ")

	body := []byte(`{}`)
	_, err := p.Receive(context.Background(), Delivery{Body: body, Signature: SignWebhookPayload(body, "")})
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestReceive_MalformedPayloadIsAcknowledgedAndFlagged(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	p := NewProcessor(repo, "", testSecret)

	body := []byte(`{"event_id": 12`)
	d := Delivery{Body: body, Signature: SignWebhookPayload(body, testSecret)}

	res, err := p.Receive(ctx, d)
	require.NoError(t, err)
	assert.True(t, res.Acknowledged)
	assert.True(t, res.Flagged)
	assert.Equal(t, fallbackEventID(body), res.EventID)

	res, err = p.Receive(ctx, d)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)

	flagged, err := repo.ListFlaggedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Contains(t, flagged[0].ProcessingError, flagMalformed)
}

func TestReceive_MissingFieldsKeyedByEventID(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	p := NewProcessor(repo, "", testSecret)

	res, err := p.Receive(ctx, signedDelivery(t, map[string]interface{}{
		"event_id":   "evt_9",
		"event_type": "activated",
	}))
	require.NoError(t, err)
	assert.True(t, res.Flagged)
	assert.Equal(t, "evt_9", res.EventID)

	_, err = repo.GetSubscription(ctx, models.BillingProviderDefault, "")
	assert.Error(t, err)
}

func TestReceive_TransitionsAndUnknownTypes(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	p := NewProcessor(repo, "", testSecret)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return base.Add(time.Hour) }

	steps := []struct {
		eventID   string
		eventType string
		want      string
	}{
		{"evt_1", "subscription.activated", models.BillingStatusActive},
		{"evt_2", "payment-failed", models.BillingStatusPastDue},
		{"evt_3", "invoice.paid", models.BillingStatusPastDue},
		{"evt_4", "activated", models.BillingStatusActive},
		{"evt_5", "canceled", models.BillingStatusRevoked},
	}

	for i, step := range steps {
		_, err := p.Receive(ctx, signedDelivery(t, map[string]interface{}{
			"event_id":        step.eventID,
			"event_type":      step.eventType,
			"subscription_id": "sub_1",
			"owner_id":        7,
			"occurred_at":     base.Add(time.Duration(i) * time.Minute),
		}))
		require.NoError(t, err)

		sub, err := repo.GetSubscription(ctx, models.BillingProviderDefault, "sub_1")
		require.NoError(t, err)
		assert.Equal(t, step.want, sub.Status, "after %s", step.eventID)
	}

	assert.Len(t, repo.Events(), len(steps))
}

func TestReceive_UnknownTypeOnNewSubscriptionCreatesNothing(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	p := NewProcessor(repo, "", testSecret)

	res, err := p.Receive(ctx, signedDelivery(t, map[string]interface{}{
		"event_id":        "evt_1",
		"event_type":      "customer.updated",
		"subscription_id": "sub_1",
		"owner_id":        7,
	}))
	require.NoError(t, err)
	assert.True(t, res.Acknowledged)
	assert.False(t, res.Flagged)

	_, err = repo.GetSubscription(ctx, models.BillingProviderDefault, "sub_1")
	assert.Error(t, err)
	require.Len(t, repo.Events(), 1)
	assert.NotNil(t, repo.Events()[0].ProcessedAt)
}

func TestReceive_StaleEventDoesNotRollBack(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	p := NewProcessor(repo, "", testSecret)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	_, err := p.Receive(ctx, signedDelivery(t, map[string]interface{}{
		"event_id": "evt_2", "event_type": "cancelled", "subscription_id": "sub_1",
		"owner_id": 3, "occurred_at": now,
	}))
	require.NoError(t, err)

	res, err := p.Receive(ctx, signedDelivery(t, map[string]interface{}{
		"event_id": "evt_1", "event_type": "activated", "subscription_id": "sub_1",
		"owner_id": 3, "occurred_at": now.Add(-time.Hour),
	}))
	require.NoError(t, err)
	assert.True(t, res.Acknowledged)
	assert.False(t, res.Flagged)

	sub, err := repo.GetSubscription(ctx, models.BillingProviderDefault, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.BillingStatusRevoked, sub.Status)
	assert.Equal(t, "evt_2", sub.LastEventID)
}

func TestReceive_OwnerResolution(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	p := NewProcessor(repo, "", testSecret)

	res, err := p.Receive(ctx, signedDelivery(t, map[string]interface{}{
		"event_id": "evt_1", "event_type": "activated", "subscription_id": "sub_orphan",
	}))
	require.NoError(t, err)
	assert.True(t, res.Acknowledged)
	assert.True(t, res.Flagged)
	_, err = repo.GetSubscription(ctx, models.BillingProviderDefault, "sub_orphan")
	assert.Error(t, err)

	_, err = p.Receive(ctx, signedDelivery(t, map[string]interface{}{
		"event_id": "evt_2", "event_type": "activated", "subscription_id": "sub_2", "owner_id": 5,
	}))
	require.NoError(t, err)

	res, err = p.Receive(ctx, signedDelivery(t, map[string]interface{}{
		"event_id": "evt_3", "event_type": "payment_failed", "subscription_id": "sub_2",
	}))
	require.NoError(t, err)
	assert.False(t, res.Flagged)

	sub, err := repo.GetSubscription(ctx, models.BillingProviderDefault, "sub_2")
	require.NoError(t, err)
	assert.Equal(t, uint(5), sub.OwnerID)
	assert.Equal(t, models.BillingStatusPastDue, sub.Status)
}

func TestReceive_StoreFailureIsSurfaced(t *testing.T) {
	repo := &failingRepository{MemoryRepository: NewMemoryRepository(), err: errors.New("deadlock")}
	p := NewProcessor(repo, "", testSecret)

	_, err := p.Receive(context.Background(), signedDelivery(t, map[string]interface{}{
		"event_id": "evt_1", "event_type": "activated", "subscription_id": "sub_1", "owner_id": 1,
	}))
	assert.ErrorIs(t, err, ErrStoreFailure)

	body := []byte(`[]`)
	_, err = p.Receive(context.Background(), Delivery{Body: body, Signature: SignWebhookPayload(body, testSecret)})
	assert.ErrorIs(t, err, ErrStoreFailure)
}

func TestReceive_ConcurrentDuplicateDeliveryAppliesOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	p := NewProcessor(repo, "", testSecret)

	d := signedDelivery(t, map[string]interface{}{
		"event_id": "evt_1", "event_type": "activated", "subscription_id": "sub_1", "owner_id": 9,
	})

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := p.Receive(ctx, d)
			assert.NoError(t, err)
			assert.True(t, res.Acknowledged)
			if !res.Duplicate {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	assert.Len(t, repo.Events(), 1)
}

func TestReceive_SubSecondOrderingIsKept(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	p := NewProcessor(repo, "", testSecret)
	p.now = func() time.Time { return time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC) }

	_, err := p.Receive(ctx, signedDelivery(t, map[string]interface{}{
		"event_id": "evt_a", "event_type": "activated", "subscription_id": "sub_1", "owner_id": 1,
		"occurred_at": "2026-03-01T10:00:00.600000123Z",
	}))
	require.NoError(t, err)

	res, err := p.Receive(ctx, signedDelivery(t, map[string]interface{}{
		"event_id": "evt_b", "event_type": "cancelled", "subscription_id": "sub_1",
		"occurred_at": "2026-03-01T10:00:00.9Z",
	}))
	require.NoError(t, err)
	assert.Equal(t, models.BillingStatusRevoked, res.Status)

	sub, err := repo.GetSubscription(ctx, models.BillingProviderDefault, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.BillingStatusRevoked, sub.Status)
	require.NotNil(t, sub.LastEventAt)
	assert.True(t, time.Date(2026, 3, 1, 10, 0, 0, 900000000, time.UTC).Equal(*sub.LastEventAt))
}

func TestReceive_OccurredAtOutOfRangeIsFlagged(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	p := NewProcessor(repo, "", testSecret)
	p.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	for i, at := range []string{"1900-01-01T00:00:00Z", "2100-01-01T00:00:00Z"} {
		eventID := []string{"evt_past", "evt_future"}[i]
		res, err := p.Receive(ctx, signedDelivery(t, map[string]interface{}{
			"event_id": eventID, "event_type": "activated", "subscription_id": "sub_1", "owner_id": 1,
			"occurred_at": at,
		}))
		require.NoError(t, err, at)
		assert.True(t, res.Acknowledged, at)
		assert.True(t, res.Flagged, at)
		assert.Equal(t, eventID, res.EventID)
	}

	_, err := repo.GetSubscription(ctx, models.BillingProviderDefault, "sub_1")
	assert.Error(t, err)
	assert.Len(t, repo.Events(), 2)
}

func TestReceive_MalformedPayloadIsStoredAsValidUTF8(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	p := NewProcessor(repo, "", testSecret)

	// event_type is too long for validation, and the body carries raw non-UTF-8 bytes.
	long := strings.Repeat("ü", 150)
	body := []byte(`{"event_id":"evt_u","event_type":"` + long + `","subscription_id":"sub_1","junk":"` + "\xff\xfe" + `"}`)
	res, err := p.Receive(ctx, Delivery{Body: body, Signature: SignWebhookPayload(body, testSecret)})
	require.NoError(t, err)
	assert.True(t, res.Flagged)
	assert.Equal(t, "evt_u", res.EventID)

	events := repo.Events()
	require.Len(t, events, 1)
	assert.True(t, utf8.ValidString(events[0].PayloadJSON))
	assert.True(t, utf8.ValidString(events[0].EventType))
	assert.Equal(t, 100, utf8.RuneCountInString(events[0].EventType))
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "ab", truncate("ab", 5))
	assert.Equal(t, "äö", truncate("äöü", 2))
	assert.True(t, utf8.ValidString(truncate(strings.Repeat("€", 200), 191)))
	assert.Equal(t, 191, utf8.RuneCountInString(truncate(strings.Repeat("€", 200), 191)))
}
