package models

import "time"

// Credential is one bearer secret issued to an out-of-band tool (editor or
// browser extension). Only the SHA-256 digest of the secret is stored.
type Credential struct {
	ID         string     `gorm:"primaryKey;type:char(36)" json:"id"`
	OwnerID    uint       `gorm:"not null;index" json:"owner_id"`
	Label      string     `gorm:"type:varchar(100);not null" json:"label"`
	SecretHash string     `gorm:"type:char(64);not null;uniqueIndex:ux_credentials_secret_hash" json:"-"`
	CreatedAt  time.Time  `gorm:"not null" json:"created_at"`
	LastUsedAt *time.Time `gorm:"type:timestamp;default:null" json:"last_used_at"`
}
