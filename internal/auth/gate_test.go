package auth

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/session-gate/internal/domain"
	"github.com/spec-kit/session-gate/internal/observability"
)

const testSecret = "gate-test-secret"

func signedCredential(t *testing.T, tm *TokenManager, role domain.Role, ttl time.Duration, perms ...domain.Permission) string {
	t.Helper()
	now := time.Now()
	cred, err := domain.NewCredential("user-42", role, domain.NewPermissionSet(perms...), now.Add(-time.Minute), now.Add(ttl), "rt")
	require.NoError(t, err)
	token, err := tm.Sign(cred)
	require.NoError(t, err)
	return token
}

type gateFixture struct {
	app     *fiber.App
	tokens  *TokenManager
	metrics *observability.Metrics
	called  *int
}

func newGateFixture(t *testing.T, decorate func(g *Gate) Decorator) gateFixture {
	t.Helper()
	tokens := NewTokenManager(testSecret)
	metrics := observability.NewMetrics()
	gate := NewGate(NewTokenExtractor(tokens, "session_token", "refresh_token"), nil, metrics)

	called := 0
	app := fiber.New()
	app.Get("/protected", decorate(gate)(func(c *fiber.Ctx) error {
		called++
		return c.Status(http.StatusAccepted).JSON(fiber.Map{"ok": true})
	}))
	return gateFixture{app: app, tokens: tokens, metrics: metrics, called: &called}
}

func (f gateFixture) do(t *testing.T, token string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &body))
	return resp.StatusCode, body
}

func TestRequireRole_NoCredentialIs401(t *testing.T) {
	f := newGateFixture(t, func(g *Gate) Decorator { return g.RequireRole(domain.RoleAdmin) })

	status, body := f.do(t, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, map[string]any{"error": "Authentication required"}, body)
	assert.Zero(t, *f.called)
}

func TestRequireRole_GarbledCredentialIs401(t *testing.T) {
	f := newGateFixture(t, func(g *Gate) Decorator { return g.RequireRole(domain.RoleAdmin) })

	status, _ := f.do(t, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, status)

	other := NewTokenManager("some-other-secret")
	status, _ = f.do(t, signedCredential(t, other, domain.RoleAdmin, time.Hour))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Zero(t, *f.called)
}

func TestRequireRole_WrongRoleIs403(t *testing.T) {
	f := newGateFixture(t, func(g *Gate) Decorator { return g.RequireRole(domain.RoleAdmin) })

	status, body := f.do(t, signedCredential(t, f.tokens, domain.RoleUser, 10*time.Second))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, map[string]any{"error": "Insufficient permissions"}, body)
	assert.Zero(t, *f.called)
}

func TestRequireRole_MatchingRoleDelegates(t *testing.T) {
	f := newGateFixture(t, func(g *Gate) Decorator { return g.RequireRole(domain.RoleAdmin) })

	status, body := f.do(t, signedCredential(t, f.tokens, domain.RoleAdmin, time.Hour))
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, 1, *f.called)
}

func TestRequireRole_ErrorTaggedCredentialIsTreatedAsMissing(t *testing.T) {
	f := newGateFixture(t, func(g *Gate) Decorator { return g.RequireRole(domain.RoleAdmin) })

	now := time.Now()
	cred, err := domain.NewCredential("user-42", domain.RoleAdmin, nil, now.Add(-time.Minute), now.Add(24*time.Hour), "rt")
	require.NoError(t, err)
	tagged := cred.WithError(domain.RefreshErrorTag, now.Add(24*time.Hour))
	token, err := f.tokens.Sign(tagged)
	require.NoError(t, err)

	status, body := f.do(t, token)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Authentication required", body["error"])
	assert.Zero(t, *f.called)
}

func TestRequireRole_ExpiredCredentialIs401(t *testing.T) {
	f := newGateFixture(t, func(g *Gate) Decorator { return g.RequireRole(domain.RoleAdmin) })

	now := time.Now()
	cred, err := domain.NewCredential("user-42", domain.RoleAdmin, nil, now.Add(-2*time.Hour), now.Add(-time.Hour), "rt")
	require.NoError(t, err)
	token, err := f.tokens.Sign(cred)
	require.NoError(t, err)

	status, _ := f.do(t, token)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRequireAnyRole(t *testing.T) {
	f := newGateFixture(t, func(g *Gate) Decorator {
		return g.RequireAnyRole(domain.RoleAdmin, domain.RoleSupport)
	})

	for role, want := range map[domain.Role]int{
		domain.RoleAdmin:   http.StatusAccepted,
		domain.RoleSupport: http.StatusAccepted,
		domain.RoleVendor:  http.StatusForbidden,
		domain.RoleUser:    http.StatusForbidden,
	} {
		status, _ := f.do(t, signedCredential(t, f.tokens, role, time.Hour))
		assert.Equal(t, want, status, role)
	}
}

func TestRequireAnyRole_EmptySetAdmitsNobody(t *testing.T) {
	f := newGateFixture(t, func(g *Gate) Decorator { return g.RequireAnyRole() })

	status, _ := f.do(t, signedCredential(t, f.tokens, domain.RoleAdmin, time.Hour))
	assert.Equal(t, http.StatusForbidden, status)
}

func TestRequirePermissions_AllRequired(t *testing.T) {
	f := newGateFixture(t, func(g *Gate) Decorator {
		return g.RequirePermissions(domain.PermissionManageUsers, domain.PermissionViewReports)
	})

	status, _ := f.do(t, signedCredential(t, f.tokens, domain.RoleUser, time.Hour,
		domain.PermissionManageUsers, domain.PermissionViewReports, domain.PermissionManageOrders))
	assert.Equal(t, http.StatusAccepted, status)

	status, body := f.do(t, signedCredential(t, f.tokens, domain.RoleUser, time.Hour, domain.PermissionManageUsers))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Insufficient permissions", body["error"])

	status, _ = f.do(t, signedCredential(t, f.tokens, domain.RoleUser, time.Hour, domain.PermissionViewReports))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, 1, *f.called)
}

func TestRequirePermissions_RoleDoesNotImplyPermission(t *testing.T) {
	f := newGateFixture(t, func(g *Gate) Decorator {
		return g.RequirePermissions(domain.PermissionManageUsers)
	})

	status, _ := f.do(t, signedCredential(t, f.tokens, domain.RoleAdmin, time.Hour))
	assert.Equal(t, http.StatusForbidden, status)
}

func TestGate_RecordsDecisions(t *testing.T) {
	f := newGateFixture(t, func(g *Gate) Decorator { return g.RequireRole(domain.RoleVendor) })

	f.do(t, "")
	f.do(t, signedCredential(t, f.tokens, domain.RoleUser, time.Hour))
	f.do(t, signedCredential(t, f.tokens, domain.RoleVendor, time.Hour))

	assert.Equal(t, 1.0, counterValue(f.metrics, "unauthenticated"))
	assert.Equal(t, 1.0, counterValue(f.metrics, "forbidden"))
	assert.Equal(t, 1.0, counterValue(f.metrics, "allow"))
}

func TestGate_ReadsSessionCookie(t *testing.T) {
	f := newGateFixture(t, func(g *Gate) Decorator { return g.RequireRole(domain.RoleSupport) })

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "session_token", Value: signedCredential(t, f.tokens, domain.RoleSupport, time.Hour)})
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}
