package models

import "time"

const (
	BillingProviderDefault = "payment"
)

const (
	BillingStatusActive  = "active"
	BillingStatusRevoked = "revoked"
	BillingStatusPastDue = "past_due"
)

// BillingSubscription mirrors the provider's subscription state for one owner.
// Rows are only changed by applying webhook events.
type BillingSubscription struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	OwnerID                uint       `gorm:"not null;index" json:"owner_id"`
	Provider               string     `gorm:"type:varchar(20);not null;index:ux_billing_subscriptions_provider_subid,unique,priority:1" json:"provider"`
	ProviderSubscriptionID string     `gorm:"type:varchar(191);not null;index:ux_billing_subscriptions_provider_subid,unique,priority:2" json:"provider_subscription_id"`
	Status                 string     `gorm:"type:varchar(32);not null;index" json:"status"`
	LastEventID            string     `gorm:"type:varchar(191);not null;default:''" json:"last_event_id"`
	LastEventAt            *time.Time `gorm:"precision:6;default:null" json:"last_event_at,omitempty"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
