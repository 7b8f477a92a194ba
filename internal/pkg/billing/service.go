package billing

import (
	"context"
	"errors"

	"github.com/ManuelReschke/memorylayer/app/models"
	"github.com/ManuelReschke/memorylayer/internal/pkg/entitlements"
)

const defaultFlaggedLimit = 50

// Service answers read-side billing questions.
type Service struct {
	repo Repository
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// EffectivePlan returns the best plan granted by any of the owner's
// subscriptions.
func (s *Service) EffectivePlan(ctx context.Context, ownerID uint) (entitlements.Plan, error) {
	if ownerID == 0 {
		return entitlements.PlanFree, errors.New("owner_id is required")
	}

	subs, err := s.repo.ListSubscriptionsByOwner(ctx, ownerID)
	if err != nil {
		return entitlements.PlanFree, err
	}

	best := entitlements.PlanFree
	for _, sub := range subs {
		if candidate := planForStatus(sub.Status); candidate.Rank() > best.Rank() {
			best = candidate
		}
	}
	return best, nil
}

// Subscriptions lists the owner's subscriptions.
func (s *Service) Subscriptions(ctx context.Context, ownerID uint) ([]models.BillingSubscription, error) {
	return s.repo.ListSubscriptionsByOwner(ctx, ownerID)
}

// FlaggedEvents lists events that need operator review, newest first.
func (s *Service) FlaggedEvents(ctx context.Context, limit int) ([]models.BillingWebhookEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultFlaggedLimit
	}
	return s.repo.ListFlaggedEvents(ctx, limit)
}
