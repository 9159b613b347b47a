package usercontext

// Locals keys shared by middlewares and handlers
const (
	KeyUserContext   = "USER_CONTEXT"
	KeyFromProtected = "from_protected"
	KeyRequestID     = "requestid"
)
