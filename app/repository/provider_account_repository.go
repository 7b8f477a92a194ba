package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/memorylayer/app/models"
)

type providerAccountRepository struct {
	db *gorm.DB
}

// NewProviderAccountRepository creates a new provider account repository instance
func NewProviderAccountRepository(db *gorm.DB) ProviderAccountRepository {
	return &providerAccountRepository{db: db}
}

// GetUserByProviderID resolves an OAuth identity to its local user
func (r *providerAccountRepository) GetUserByProviderID(provider, providerUserID string) (*models.User, error) {
	var account models.ProviderAccount
	if err := r.db.Where("provider = ? AND provider_user_id = ?", provider, providerUserID).First(&account).Error; err != nil {
		return nil, err
	}
	var user models.User
	if err := r.db.First(&user, account.UserID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Link attaches an OAuth identity to a user; existing links are kept
func (r *providerAccountRepository) Link(userID uint, provider, providerUserID string) error {
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.ProviderAccount{
		UserID:         userID,
		Provider:       provider,
		ProviderUserID: providerUserID,
	}).Error
}
