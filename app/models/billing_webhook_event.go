package models

import "time"

// BillingWebhookEvent stores provider webhook payloads with deduplication
// metadata for idempotent processing. Rows are never deleted; a non-empty
// ProcessingError flags the event for operator review.
type BillingWebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_billing_webhook_events_provider_event,unique,priority:1" json:"provider"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;index:ux_billing_webhook_events_provider_event,unique,priority:2" json:"provider_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;default:'';index" json:"event_type"`
	SubscriptionID  string     `gorm:"type:varchar(191);not null;default:''" json:"subscription_id"`
	OwnerID         uint       `gorm:"not null;default:0" json:"owner_id"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	ReceivedAt      time.Time  `gorm:"not null;index" json:"received_at"`
	ProcessedAt     *time.Time `gorm:"precision:3;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
}

// Flagged reports whether the event needs operator review.
func (e *BillingWebhookEvent) Flagged() bool {
	return e != nil && e.ProcessingError != ""
}
