package session

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionApp(p *StoreProvider) *fiber.App {
	app := fiber.New()
	app.Post("/login", func(c *fiber.Ctx) error {
		if err := p.Establish(c, Principal{OwnerID: 7, Username: "alice", IsAdmin: true}); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Post("/logout", func(c *fiber.Ctx) error {
		if err := p.Destroy(c); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/who", func(c *fiber.Ctx) error {
		principal, err := p.GetSessionForRequest(c)
		if err != nil {
			return err
		}
		if principal == nil {
			return c.SendString("anonymous")
		}
		return c.JSON(principal)
	})
	return app
}

func sessionCookie(t *testing.T, resp *http.Response) string {
	t.Helper()
	for _, ck := range resp.Cookies() {
		if ck.Name == "session_id" {
			return ck.Name + "=" + ck.Value
		}
	}
	t.Fatalf("no session cookie in response")
	return ""
}

func TestStoreProvider_Lifecycle(t *testing.T) {
	p := NewStoreProvider(fibersession.New(fibersession.Config{KeyLookup: "cookie:session_id"}))
	app := newSessionApp(p)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/who", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "anonymous", string(body))

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	cookie := sessionCookie(t, resp)

	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("Cookie", cookie)
	resp, err = app.Test(req)
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), `"OwnerID":7`), string(body))
	assert.Contains(t, string(body), `"IsAdmin":true`)

	req = httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.Header.Set("Cookie", cookie)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("Cookie", cookie)
	resp, err = app.Test(req)
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	assert.Equal(t, "anonymous", string(body))
}

func TestStoreProvider_EstablishRegeneratesID(t *testing.T) {
	p := NewStoreProvider(fibersession.New(fibersession.Config{KeyLookup: "cookie:session_id"}))
	app := newSessionApp(p)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
	require.NoError(t, err)
	first := sessionCookie(t, resp)

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set("Cookie", first)
	resp, err = app.Test(req)
	require.NoError(t, err)
	second := sessionCookie(t, resp)

	assert.NotEqual(t, first, second)
}

func TestStoreProvider_NilStore(t *testing.T) {
	p := NewStoreProvider(nil)
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		_, err := p.GetSessionForRequest(c)
		assert.ErrorIs(t, err, ErrStoreNotInitialized)
		return c.SendStatus(fiber.StatusOK)
	})
	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
}
