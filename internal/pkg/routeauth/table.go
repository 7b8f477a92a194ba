package routeauth

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/ManuelReschke/memorylayer/internal/pkg/constants"
	"github.com/ManuelReschke/memorylayer/internal/pkg/env"
)

// Class is the access classification of a path prefix.
type Class int

const (
	ClassPublic Class = iota
	ClassProtected
	ClassAuthOnly
)

func (c Class) String() string {
	switch c {
	case ClassPublic:
		return "public"
	case ClassProtected:
		return "protected"
	case ClassAuthOnly:
		return "auth-only"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Rule maps a path prefix to a classification.
type Rule struct {
	Prefix string
	Class  Class
}

// Table is an immutable route classification table. Lookups pick the longest
// matching prefix; paths without a match are public.
type Table struct {
	rules []Rule
}

// NewTable validates rules and builds a table. Prefixes must start with "/"
// and may appear only once.
func NewTable(rules ...Rule) (*Table, error) {
	seen := make(map[string]Class, len(rules))
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		prefix := normalizePrefix(r.Prefix)
		if !strings.HasPrefix(prefix, "/") {
			return nil, fmt.Errorf("routeauth: prefix %q must start with /", r.Prefix)
		}
		if r.Class < ClassPublic || r.Class > ClassAuthOnly {
			return nil, fmt.Errorf("routeauth: prefix %q has invalid class %d", r.Prefix, int(r.Class))
		}
		if prev, ok := seen[prefix]; ok {
			return nil, fmt.Errorf("routeauth: prefix %q listed as %s and %s", prefix, prev, r.Class)
		}
		seen[prefix] = r.Class
		out = append(out, Rule{Prefix: prefix, Class: r.Class})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Prefix) > len(out[j].Prefix)
	})
	return &Table{rules: out}, nil
}

// DefaultRules is the built-in classification used when nothing is configured.
func DefaultRules() []Rule {
	return []Rule{
		{Prefix: constants.DashboardRoute, Class: ClassProtected},
		{Prefix: constants.SettingsRoute, Class: ClassProtected},
		{Prefix: constants.BillingRoute, Class: ClassProtected},
		{Prefix: constants.LoginRoute, Class: ClassAuthOnly},
		{Prefix: constants.SignupRoute, Class: ClassAuthOnly},
	}
}

// RulesFromEnv reads ROUTES_PROTECTED, ROUTES_AUTH_ONLY and ROUTES_PUBLIC as
// comma separated prefix lists, falling back to DefaultRules per class.
func RulesFromEnv() []Rule {
	defaults := map[Class][]string{}
	for _, r := range DefaultRules() {
		defaults[r.Class] = append(defaults[r.Class], r.Prefix)
	}

	var rules []Rule
	add := func(key string, class Class) {
		for _, prefix := range env.GetEnvList(key, defaults[class]) {
			rules = append(rules, Rule{Prefix: prefix, Class: class})
		}
	}
	add("ROUTES_PROTECTED", ClassProtected)
	add("ROUTES_AUTH_ONLY", ClassAuthOnly)
	add("ROUTES_PUBLIC", ClassPublic)
	return rules
}

// Classify returns the class of the longest prefix matching p.
func (t *Table) Classify(p string) Class {
	p = canonicalPath(p)
	for _, r := range t.rules {
		if matchPrefix(p, r.Prefix) {
			return r.Class
		}
	}
	return ClassPublic
}

// Rules returns a copy of the table, longest prefix first.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// matchPrefix is segment aware: /dashboard matches /dashboard and
// /dashboard/keys but not /dashboardx.
func matchPrefix(p, prefix string) bool {
	if prefix == "/" {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

func normalizePrefix(prefix string) string {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if len(prefix) > 1 {
		prefix = strings.TrimRight(prefix, "/")
		if prefix == "" {
			prefix = "/"
		}
	}
	return prefix
}

// canonicalPath folds case and dot segments the same way the router does so
// /Dashboard or /x/../dashboard cannot slip past a protected prefix.
func canonicalPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" || p[0] != '/' {
		p = "/" + p
	}
	return strings.ToLower(path.Clean(p))
}
