package constants

// Static route constants
const (
	PublicRoute    = "/"
	LoginRoute     = "/login"
	LogoutRoute    = "/logout"
	SignupRoute    = "/signup"
	DashboardRoute = "/dashboard"
	SettingsRoute  = "/settings"
	BillingRoute   = "/billing"

	CredentialsRoute = "/credentials"
	WebhookRoute     = "/webhooks/payment"
	APIRoute         = "/api/v1"

	// Query parameter carrying the post-login return path
	RedirectParam = "redirect"
)
