package credential

import (
	"context"
	"time"

	"github.com/ManuelReschke/memorylayer/app/models"
)

// Store is the narrow persistence contract the issuer and verifier rely on.
// Implementations report a miss with gorm.ErrRecordNotFound.
type Store interface {
	InsertCredential(ctx context.Context, ownerID uint, label, secretHash string, createdAt time.Time) (string, error)
	FindCredentialByHash(ctx context.Context, secretHash string) (*models.Credential, error)
	TouchLastUsed(ctx context.Context, secretHash string, at time.Time) error
	DeleteCredential(ctx context.Context, id string, ownerID uint) error
	ListCredentials(ctx context.Context, ownerID uint) ([]models.Credential, error)
}

// Toucher refreshes the last-used timestamp of a credential. Failures are
// telemetry loss only.
type Toucher interface {
	TouchLastUsed(ctx context.Context, secretHash string, at time.Time) error
}
