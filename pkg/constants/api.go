package constants

// HTTP and API constants
const (
	ContentTypeJSON = "application/json"

	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
	HeaderXRequestID    = "X-Request-ID"

	BearerPrefix = "Bearer "

	// ContextKeyUser holds the *models.UserSession set by the auth middleware.
	ContextKeyUser = "user"

	ResponseError = "error"
)

// Query parameter names accepted by list endpoints.
const (
	ParamLimit    = "limit"
	ParamOffset   = "offset"
	ParamOrderBy  = "orderBy"
	ParamOrderDir = "orderDir"
	ParamSearch   = "search"
	ParamFilter   = "filter"
	ParamStatus   = "status"

	DefaultLimit    = 50
	DefaultMaxLimit = 500
)

// Sort directions
const (
	SortASC  = "ASC"
	SortDESC = "DESC"
)

// Roles stored on user_profiles.role
const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleSalesRep = "sales_rep"
)

// IsValidRole reports whether role is one of the known profile roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleSalesRep:
		return true
	}
	return false
}
