package models

import "time"

// ProviderAccount links an external identity provider login to a local user.
// Provider tokens are not kept; the link only resolves the session owner.
type ProviderAccount struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	Provider       string    `gorm:"index:ux_provider_accounts_provider_uid,unique;type:varchar(50)" json:"provider"`
	ProviderUserID string    `gorm:"index:ux_provider_accounts_provider_uid,unique;type:varchar(191)" json:"provider_user_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}
