package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/memorylayer/internal/pkg/session"
	"github.com/ManuelReschke/memorylayer/internal/pkg/usercontext"
)

// asUser stands in for the session middleware.
func asUser(id uint, method string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		usercontext.SetUserContext(c, usercontext.UserContext{
			UserID:     id,
			Username:   "tester",
			IsLoggedIn: true,
			AuthMethod: method,
		})
		return c.Next()
	}
}

type fakeSessions struct {
	established []session.Principal
	destroyed   int
	err         error
}

func (f *fakeSessions) Establish(_ *fiber.Ctx, p session.Principal) error {
	if f.err != nil {
		return f.err
	}
	f.established = append(f.established, p)
	return nil
}

func (f *fakeSessions) Destroy(*fiber.Ctx) error {
	if f.err != nil {
		return f.err
	}
	f.destroyed++
	return nil
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, v), string(body))
}
