package credential

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/ManuelReschke/memorylayer/app/models"
)

const (
	maxLabelLength      = 100
	defaultTouchTimeout = 5 * time.Second
)

// Issued is returned exactly once per issuance; RawSecret is not recoverable
// afterwards.
type Issued struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	RawSecret string    `json:"raw_secret"`
	CreatedAt time.Time `json:"created_at"`
}

// Service issues, verifies, lists and revokes bearer credentials.
type Service struct {
	store        Store
	toucher      Toucher
	touchTimeout time.Duration
	now          func() time.Time
}

// NewService creates a credential service. A nil toucher falls back to the
// store's own TouchLastUsed.
func NewService(store Store, toucher Toucher) *Service {
	if toucher == nil {
		toucher = store
	}
	return &Service{
		store:        store,
		toucher:      toucher,
		touchTimeout: defaultTouchTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Issue creates a credential for ownerID and returns the raw secret. The
// secret is only returned after the store acknowledged the write.
func (s *Service) Issue(ctx context.Context, ownerID uint, label string) (*Issued, error) {
	if ownerID == 0 {
		return nil, ErrInvalidOwner
	}
	createdAt := s.now()
	label, err := normalizeLabel(label, createdAt)
	if err != nil {
		return nil, err
	}

	raw, err := GenerateSecret()
	if err != nil {
		return nil, err
	}

	id, err := s.store.InsertCredential(ctx, ownerID, label, HashSecret(raw), createdAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}

	return &Issued{
		ID:        id,
		Label:     label,
		RawSecret: raw,
		CreatedAt: createdAt,
	}, nil
}

// Verify maps a presented secret to its owner. Any failure other than a
// store outage is ErrRejected.
func (s *Service) Verify(ctx context.Context, raw string) (uint, error) {
	if !LooksLikeSecret(raw) {
		return 0, ErrRejected
	}

	hash := HashSecret(raw)
	cred, err := s.store.FindCredentialByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrRejected
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreRead, err)
	}
	if cred == nil {
		return 0, ErrRejected
	}

	s.touchInBackground(hash, s.now())

	return cred.OwnerID, nil
}

// touchInBackground launches the last-used refresh and does not wait for it.
// The request context is not reused so a finished request cannot cancel it.
func (s *Service) touchInBackground(hash string, at time.Time) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.touchTimeout)
		defer cancel()
		if err := s.toucher.TouchLastUsed(ctx, hash, at); err != nil {
			log.Printf("credential: last-used refresh dropped: %v", err)
		}
	}()
}

// List returns the owner's credentials, newest first.
func (s *Service) List(ctx context.Context, ownerID uint) ([]models.Credential, error) {
	if ownerID == 0 {
		return nil, ErrInvalidOwner
	}
	return s.store.ListCredentials(ctx, ownerID)
}

// Revoke deletes a credential owned by ownerID. Credentials of other owners
// are reported as ErrNotFound.
func (s *Service) Revoke(ctx context.Context, ownerID uint, id string) error {
	id = strings.TrimSpace(id)
	if ownerID == 0 {
		return ErrInvalidOwner
	}
	if id == "" {
		return ErrNotFound
	}
	if err := s.store.DeleteCredential(ctx, id, ownerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func normalizeLabel(label string, issuedAt time.Time) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "API key " + issuedAt.Format("2006-01-02"), nil
	}
	if utf8.RuneCountInString(label) > maxLabelLength {
		return "", ErrInvalidLabel
	}
	return label, nil
}
