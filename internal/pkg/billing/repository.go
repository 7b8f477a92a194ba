package billing

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/memorylayer/app/models"
)

// Repository provides the storage operations used by the webhook processor
// and the billing service.
type Repository interface {
	// ApplyEvent records event and applies the transition in one atomic unit.
	// An event whose (provider, provider event id) already exists is reported
	// as a duplicate and apply is not called.
	ApplyEvent(ctx context.Context, event *models.BillingWebhookEvent, apply ApplyFunc) (*ApplyResult, error)
	// RecordEvent inserts event unless it already exists.
	RecordEvent(ctx context.Context, event *models.BillingWebhookEvent) (bool, error)
	GetSubscription(ctx context.Context, provider, providerSubscriptionID string) (*models.BillingSubscription, error)
	ListSubscriptionsByOwner(ctx context.Context, ownerID uint) ([]models.BillingSubscription, error)
	ListFlaggedEvents(ctx context.Context, limit int) ([]models.BillingWebhookEvent, error)
}

type gormRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *gormRepository) ApplyEvent(ctx context.Context, event *models.BillingWebhookEvent, apply ApplyFunc) (*ApplyResult, error) {
	result := &ApplyResult{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := createEventIfNotExists(tx, event)
		if err != nil {
			return err
		}
		if !created {
			result.Duplicate = true
			return nil
		}

		var current *models.BillingSubscription
		var row models.BillingSubscription
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("provider = ? AND provider_subscription_id = ?", event.Provider, event.SubscriptionID).
			First(&row).Error
		switch {
		case err == nil:
			current = &row
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		tr := apply(current)
		if tr.Next != nil {
			if err := tx.Save(tr.Next).Error; err != nil {
				return err
			}
		}

		now := r.now()
		updates := map[string]interface{}{
			"processed_at":     &now,
			"processing_error": tr.Flag,
			"owner_id":         tr.OwnerID,
		}
		if err := tx.Model(&models.BillingWebhookEvent{}).Where("id = ?", event.ID).Updates(updates).Error; err != nil {
			return err
		}
		event.ProcessedAt = &now
		event.ProcessingError = tr.Flag
		event.OwnerID = tr.OwnerID
		result.Transition = tr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *gormRepository) RecordEvent(ctx context.Context, event *models.BillingWebhookEvent) (bool, error) {
	return createEventIfNotExists(r.db.WithContext(ctx), event)
}

func (r *gormRepository) GetSubscription(ctx context.Context, provider, providerSubscriptionID string) (*models.BillingSubscription, error) {
	var sub models.BillingSubscription
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_subscription_id = ?", provider, providerSubscriptionID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) ListSubscriptionsByOwner(ctx context.Context, ownerID uint) ([]models.BillingSubscription, error) {
	var subs []models.BillingSubscription
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("id asc").Find(&subs).Error
	return subs, err
}

func (r *gormRepository) ListFlaggedEvents(ctx context.Context, limit int) ([]models.BillingWebhookEvent, error) {
	var events []models.BillingWebhookEvent
	err := r.db.WithContext(ctx).
		Where("processing_error <> ''").
		Order("received_at desc").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// createEventIfNotExists relies on the unique (provider, provider_event_id)
// index; concurrent deliveries of one event see exactly one insert.
func createEventIfNotExists(db *gorm.DB, event *models.BillingWebhookEvent) (bool, error) {
	tx := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}
