package routeauth

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ManuelReschke/memorylayer/internal/pkg/constants"
)

// Outcome of a routing decision.
type Outcome int

const (
	Allow Outcome = iota
	Redirect
	// Deny is reserved for permission checks; no rule produces it today.
	Deny
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	case Deny:
		return "deny"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Decision is the result of Decide. Target is set for Redirect only. NoStore
// marks responses that must not be cached anywhere.
type Decision struct {
	Outcome Outcome
	Target  string
	NoStore bool
}

// Authorizer combines session presence with the classification table.
type Authorizer struct {
	table         *Table
	loginPath     string
	dashboardPath string
}

// New creates an authorizer. The login page may not be protected and the
// dashboard may not be auth-only, otherwise requests would bounce forever.
func New(table *Table, loginPath, dashboardPath string) (*Authorizer, error) {
	if table == nil {
		return nil, fmt.Errorf("routeauth: nil table")
	}
	if table.Classify(loginPath) == ClassProtected {
		return nil, fmt.Errorf("routeauth: login path %q is protected", loginPath)
	}
	if table.Classify(dashboardPath) == ClassAuthOnly {
		return nil, fmt.Errorf("routeauth: dashboard path %q is auth-only", dashboardPath)
	}
	return &Authorizer{
		table:         table,
		loginPath:     loginPath,
		dashboardPath: dashboardPath,
	}, nil
}

// NewFromEnv builds the authorizer from the ROUTES_* environment.
func NewFromEnv() (*Authorizer, error) {
	table, err := NewTable(RulesFromEnv()...)
	if err != nil {
		return nil, err
	}
	return New(table, constants.LoginRoute, constants.DashboardRoute)
}

// Decide maps a request target (path plus optional query) and session
// presence to exactly one decision. The first matching rule wins:
//
//	auth-only + session     -> Redirect(dashboard)
//	protected + no session  -> Redirect(login?redirect=<target>)
//	protected + session     -> Allow, NoStore
//	anything else           -> Allow
func (a *Authorizer) Decide(target string, hasSession bool) Decision {
	switch class := a.table.Classify(target); {
	case class == ClassAuthOnly && hasSession:
		return Decision{Outcome: Redirect, Target: a.dashboardPath}
	case class == ClassProtected && !hasSession:
		return Decision{Outcome: Redirect, Target: a.LoginRedirect(target), NoStore: true}
	case class == ClassProtected:
		return Decision{Outcome: Allow, NoStore: true}
	default:
		return Decision{Outcome: Allow}
	}
}

// LoginRedirect returns the login URL that brings the user back to target.
func (a *Authorizer) LoginRedirect(target string) string {
	if target == "" {
		return a.loginPath
	}
	escaped := strings.ReplaceAll(url.QueryEscape(target), "%2F", "/")
	return a.loginPath + "?" + constants.RedirectParam + "=" + escaped
}
