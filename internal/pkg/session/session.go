package session

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/memorylayer/internal/pkg/cache"
	"github.com/ManuelReschke/memorylayer/internal/pkg/env"
	"github.com/ManuelReschke/memorylayer/internal/pkg/usercontext"
)

// ErrStoreNotInitialized is returned when no session store has been set up.
var ErrStoreNotInitialized = errors.New("session store not initialized")

// NewSessionStore creates the Redis backed store for browser sessions.
func NewSessionStore() *session.Store {
	// Get Redis client configuration from existing cache setup
	cacheClient := cache.GetClient()
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if cacheClient != nil {
		addr := cacheClient.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		// Prefer password from the underlying client if present
		if p := cacheClient.Options().Password; p != "" {
			password = p
		}
	}

	// Create Redis storage for sessions using database 1 (cache uses DB 0)
	storage := redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1, // Separate database for sessions
		Reset:    false,
	})

	return session.New(session.Config{
		Storage:        storage,
		CookieHTTPOnly: true,
		CookieSecure:   !env.IsDev(),
		CookieSameSite: "Lax",
		Expiration:     env.GetEnvDuration("SESSION_TTL", 12*time.Hour),
		KeyLookup:      "cookie:session_id",
	})
}

// Principal is the identity carried by a browser session.
type Principal struct {
	OwnerID  uint
	Username string
	IsAdmin  bool
}

// Provider resolves the session principal for a request. A nil principal
// with a nil error means there is no session.
type Provider interface {
	GetSessionForRequest(c *fiber.Ctx) (*Principal, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(c *fiber.Ctx) (*Principal, error)

func (f ProviderFunc) GetSessionForRequest(c *fiber.Ctx) (*Principal, error) {
	return f(c)
}

// StoreProvider reads and writes principals in a Fiber session store.
type StoreProvider struct {
	store *session.Store
}

func NewStoreProvider(store *session.Store) *StoreProvider {
	return &StoreProvider{store: store}
}

func (p *StoreProvider) GetSessionForRequest(c *fiber.Ctx) (*Principal, error) {
	if p.store == nil {
		return nil, ErrStoreNotInitialized
	}
	sess, err := p.store.Get(c)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	userID, ok := sess.Get(usercontext.KeyUserID).(uint)
	if !ok || userID == 0 {
		return nil, nil
	}
	username, _ := sess.Get(usercontext.KeyUsername).(string)
	isAdmin, _ := sess.Get(usercontext.KeyIsAdmin).(bool)
	return &Principal{OwnerID: userID, Username: username, IsAdmin: isAdmin}, nil
}

// Establish starts an authenticated session for principal. The session id is
// regenerated so a pre-login id cannot be reused.
func (p *StoreProvider) Establish(c *fiber.Ctx, principal Principal) error {
	if p.store == nil {
		return ErrStoreNotInitialized
	}
	sess, err := p.store.Get(c)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if err := sess.Regenerate(); err != nil {
		return fmt.Errorf("failed to regenerate session: %w", err)
	}
	sess.Set(usercontext.KeyUserID, principal.OwnerID)
	sess.Set(usercontext.KeyUsername, principal.Username)
	sess.Set(usercontext.KeyIsAdmin, principal.IsAdmin)
	return sess.Save()
}

// Destroy ends the session of the request, if any.
func (p *StoreProvider) Destroy(c *fiber.Ctx) error {
	if p.store == nil {
		return ErrStoreNotInitialized
	}
	sess, err := p.store.Get(c)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	return sess.Destroy()
}
