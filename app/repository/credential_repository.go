package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ManuelReschke/memorylayer/app/models"
)

type credentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository creates a new credential repository instance
func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

// InsertCredential stores a new credential row and returns its id. The call
// only returns after the row is committed.
func (r *credentialRepository) InsertCredential(ctx context.Context, ownerID uint, label, secretHash string, createdAt time.Time) (string, error) {
	c := &models.Credential{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		Label:      label,
		SecretHash: secretHash,
		CreatedAt:  createdAt,
	}
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return "", err
	}
	return c.ID, nil
}

// FindCredentialByHash looks up a credential by exact digest match
func (r *credentialRepository) FindCredentialByHash(ctx context.Context, secretHash string) (*models.Credential, error) {
	var c models.Credential
	if err := r.db.WithContext(ctx).Where("secret_hash = ?", secretHash).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// TouchLastUsed sets last_used_at; concurrent writers race and the last one wins
func (r *credentialRepository) TouchLastUsed(ctx context.Context, secretHash string, at time.Time) error {
	tx := r.db.WithContext(ctx).Model(&models.Credential{}).
		Where("secret_hash = ?", secretHash).
		Update("last_used_at", at)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteCredential removes a credential only when ownerID owns it
func (r *credentialRepository) DeleteCredential(ctx context.Context, id string, ownerID uint) error {
	tx := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).Delete(&models.Credential{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListCredentials returns the owner's credentials, newest first, without hashes
func (r *credentialRepository) ListCredentials(ctx context.Context, ownerID uint) ([]models.Credential, error) {
	creds := make([]models.Credential, 0)
	err := r.db.WithContext(ctx).
		Select("id", "owner_id", "label", "created_at", "last_used_at").
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&creds).Error
	return creds, err
}

// CountByOwner returns how many credentials an owner holds
func (r *credentialRepository) CountByOwner(ownerID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Credential{}).Where("owner_id = ?", ownerID).Count(&count).Error
	return count, err
}
