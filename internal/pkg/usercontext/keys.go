package usercontext

// Shared Locals/session keys used across controllers and middlewares
const (
	KeyUserContext = "USER_CONTEXT"
	KeyUserID      = "user_id"
	KeyUsername    = "username"
	KeyIsAdmin     = "isAdmin"
)

// Authentication methods recorded on the user context
const (
	AuthSession    = "session"
	AuthCredential = "credential"
)
