package router

import (
	"time"

	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ManuelReschke/memorylayer/app/repository"
	"github.com/ManuelReschke/memorylayer/internal/pkg/billing"
	"github.com/ManuelReschke/memorylayer/internal/pkg/credential"
	"github.com/ManuelReschke/memorylayer/internal/pkg/env"
	"github.com/ManuelReschke/memorylayer/internal/pkg/routeauth"
	"github.com/ManuelReschke/memorylayer/internal/pkg/session"
)

// Dependencies are the services the routes are wired to.
type Dependencies struct {
	Repos       *repository.Repositories
	Sessions    *session.StoreProvider
	Credentials *credential.Service
	Webhooks    *billing.Processor
	Billing     *billing.Service
	Authorizer  *routeauth.Authorizer
	// SetupOAuth registers the goth providers; nil skips OAuth routes.
	SetupOAuth func()
}

// NewDependencies wires the services on top of an open database, an optional
// Redis client and the session store.
func NewDependencies(db *gorm.DB, cacheClient *redis.Client, store *fibersession.Store) (*Dependencies, error) {
	authz, err := routeauth.NewFromEnv()
	if err != nil {
		return nil, err
	}

	repos := repository.NewRepositories(db)

	var toucher credential.Toucher = repos.Credential
	if cacheClient != nil {
		toucher = credential.NewThrottledToucher(
			repos.Credential,
			cacheClient,
			env.GetEnvDuration("CREDENTIAL_TOUCH_INTERVAL", time.Minute),
		)
	}

	billingRepo := billing.NewRepository(db)

	return &Dependencies{
		Repos:       repos,
		Sessions:    session.NewStoreProvider(store),
		Credentials: credential.NewService(repos.Credential, toucher),
		Webhooks:    billing.NewProcessorFromEnv(billingRepo),
		Billing:     billing.NewService(billingRepo),
		Authorizer:  authz,
	}, nil
}
