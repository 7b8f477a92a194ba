package credential

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ManuelReschke/memorylayer/app/models"
)

var errDuplicateHash = errors.New("duplicate secret hash")

// MemoryStore is an in-process Store used by tests and local development.
// The mutex stands in for the row-level atomicity of the real database.
type MemoryStore struct {
	mu    sync.Mutex
	byID  map[string]*models.Credential
	byHsh map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  make(map[string]*models.Credential),
		byHsh: make(map[string]string),
	}
}

func (m *MemoryStore) InsertCredential(_ context.Context, ownerID uint, label, secretHash string, createdAt time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byHsh[secretHash]; exists {
		return "", errDuplicateHash
	}
	id := uuid.New().String()
	m.byID[id] = &models.Credential{
		ID:         id,
		OwnerID:    ownerID,
		Label:      label,
		SecretHash: secretHash,
		CreatedAt:  createdAt,
	}
	m.byHsh[secretHash] = id
	return id, nil
}

func (m *MemoryStore) FindCredentialByHash(_ context.Context, secretHash string) (*models.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byHsh[secretHash]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := *m.byID[id]
	return &c, nil
}

func (m *MemoryStore) TouchLastUsed(_ context.Context, secretHash string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byHsh[secretHash]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	ts := at
	m.byID[id].LastUsedAt = &ts
	return nil
}

func (m *MemoryStore) DeleteCredential(_ context.Context, id string, ownerID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.byID[id]
	if !ok || c.OwnerID != ownerID {
		return gorm.ErrRecordNotFound
	}
	delete(m.byHsh, c.SecretHash)
	delete(m.byID, id)
	return nil
}

func (m *MemoryStore) ListCredentials(_ context.Context, ownerID uint) ([]models.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Credential, 0)
	for _, c := range m.byID {
		if c.OwnerID == ownerID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Rows returns a copy of every stored row, including hashes.
func (m *MemoryStore) Rows() []models.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Credential, 0, len(m.byID))
	for _, c := range m.byID {
		out = append(out, *c)
	}
	return out
}
