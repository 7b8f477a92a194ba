package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/memorylayer/app/models"
	"github.com/ManuelReschke/memorylayer/internal/pkg/credential"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	TouchLastLogin(id uint, at time.Time) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// ProviderAccountRepository links OAuth identities to local users
type ProviderAccountRepository interface {
	GetUserByProviderID(provider, providerUserID string) (*models.User, error)
	Link(userID uint, provider, providerUserID string) error
}

// CredentialRepository is the GORM backed credential store
type CredentialRepository interface {
	credential.Store
	CountByOwner(ownerID uint) (int64, error)
}

// Repositories holds all repository instances
type Repositories struct {
	User            UserRepository
	ProviderAccount ProviderAccountRepository
	Credential      CredentialRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:            NewUserRepository(db),
		ProviderAccount: NewProviderAccountRepository(db),
		Credential:      NewCredentialRepository(db),
	}
}
