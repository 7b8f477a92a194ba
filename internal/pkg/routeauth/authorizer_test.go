package routeauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultAuthorizer(t *testing.T) *Authorizer {
	t.Helper()
	table, err := NewTable(DefaultRules()...)
	require.NoError(t, err)
	a, err := New(table, "/login", "/dashboard")
	require.NoError(t, err)
	return a
}

func TestDecide_DashboardScenario(t *testing.T) {
	a := newDefaultAuthorizer(t)

	d := a.Decide("/dashboard", false)
	assert.Equal(t, Redirect, d.Outcome)
	assert.Equal(t, "/login?redirect=/dashboard", d.Target)

	d = a.Decide("/dashboard", true)
	assert.Equal(t, Allow, d.Outcome)
	assert.True(t, d.NoStore)
	assert.Empty(t, d.Target)
}

func TestDecide_Rules(t *testing.T) {
	a := newDefaultAuthorizer(t)

	tests := []struct {
		name       string
		target     string
		hasSession bool
		want       Decision
	}{
		{"auth-only with session", "/login", true, Decision{Outcome: Redirect, Target: "/dashboard"}},
		{"auth-only without session", "/login", false, Decision{Outcome: Allow}},
		{"signup with session", "/signup/confirm", true, Decision{Outcome: Redirect, Target: "/dashboard"}},
		{"nested protected", "/settings/keys", false, Decision{Outcome: Redirect, Target: "/login?redirect=/settings/keys", NoStore: true}},
		{"protected with query", "/billing?tab=invoices&x=1", false, Decision{Outcome: Redirect, Target: "/login?redirect=/billing%3Ftab%3Dinvoices%26x%3D1", NoStore: true}},
		{"protected with session", "/billing", true, Decision{Outcome: Allow, NoStore: true}},
		{"public", "/", false, Decision{Outcome: Allow}},
		{"public with session", "/docs/api/v1", true, Decision{Outcome: Allow}},
		{"prefix is segment aware", "/dashboardx", false, Decision{Outcome: Allow}},
		{"trailing slash", "/dashboard/", false, Decision{Outcome: Redirect, Target: "/login?redirect=/dashboard/", NoStore: true}},
		{"case folded", "/DashBoard", false, Decision{Outcome: Redirect, Target: "/login?redirect=/DashBoard", NoStore: true}},
		{"dot segments", "/public/../dashboard", false, Decision{Outcome: Redirect, Target: "/login?redirect=/public/../dashboard", NoStore: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Decide(tt.target, tt.hasSession))
		})
	}
}

func TestDecide_TotalAndDeterministic(t *testing.T) {
	a := newDefaultAuthorizer(t)

	paths := []string{"", "/", "dashboard", "/dashboard", "/dashboard/a/b", "/login", "/LOGIN/", "/x?y=z", "/%zz", "//dashboard", "/settings#frag"}
	for _, p := range paths {
		for _, session := range []bool{true, false} {
			first := a.Decide(p, session)
			assert.Contains(t, []Outcome{Allow, Redirect}, first.Outcome, "path %q", p)
			if first.Outcome == Redirect {
				assert.NotEmpty(t, first.Target)
			}
			for i := 0; i < 3; i++ {
				assert.Equal(t, first, a.Decide(p, session))
			}
		}
	}
}

func TestTable_LongestPrefixWins(t *testing.T) {
	table, err := NewTable(
		Rule{Prefix: "/dashboard", Class: ClassProtected},
		Rule{Prefix: "/dashboard/public/", Class: ClassPublic},
		Rule{Prefix: "/", Class: ClassPublic},
	)
	require.NoError(t, err)

	assert.Equal(t, ClassProtected, table.Classify("/dashboard/keys"))
	assert.Equal(t, ClassPublic, table.Classify("/dashboard/public"))
	assert.Equal(t, ClassPublic, table.Classify("/dashboard/public/help"))
	assert.Equal(t, ClassPublic, table.Classify("/anything"))
	assert.Equal(t, "/dashboard/public", table.Rules()[0].Prefix)
}

func TestNewTable_Validation(t *testing.T) {
	_, err := NewTable(Rule{Prefix: "dashboard", Class: ClassProtected})
	assert.Error(t, err)

	_, err = NewTable(Rule{Prefix: "/a", Class: ClassProtected}, Rule{Prefix: "/a/", Class: ClassPublic})
	assert.Error(t, err)

	_, err = NewTable(Rule{Prefix: "/a", Class: Class(9)})
	assert.Error(t, err)
}

func TestNew_RejectsLoops(t *testing.T) {
	table, err := NewTable(Rule{Prefix: "/", Class: ClassProtected})
	require.NoError(t, err)
	_, err = New(table, "/login", "/dashboard")
	assert.Error(t, err)

	table, err = NewTable(Rule{Prefix: "/dashboard", Class: ClassAuthOnly})
	require.NoError(t, err)
	_, err = New(table, "/login", "/dashboard")
	assert.Error(t, err)
}

func TestRulesFromEnv(t *testing.T) {
	t.Setenv("ROUTES_PROTECTED", "/app, /team")
	t.Setenv("ROUTES_AUTH_ONLY", "")
	t.Setenv("ROUTES_PUBLIC", "/app/status")

	table, err := NewTable(RulesFromEnv()...)
	require.NoError(t, err)

	assert.Equal(t, ClassProtected, table.Classify("/team/x"))
	assert.Equal(t, ClassPublic, table.Classify("/app/status"))
	assert.Equal(t, ClassAuthOnly, table.Classify("/login"))
	assert.Equal(t, ClassPublic, table.Classify("/dashboard"))
}
