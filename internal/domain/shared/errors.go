package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound      = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput  = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrUnauthorized  = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrForbidden     = NewDomainError("FORBIDDEN", "Access to this resource is forbidden")
	ErrInvalidState  = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)

// Tenant isolation errors. Each kind is distinct so callers can branch on it,
// but none of them is ever shown to an end user verbatim.
var (
	ErrNoTenantAssociation        = NewDomainError("NO_TENANT_ASSOCIATION", "Caller has no tenant association")
	ErrUnknownOrInactiveTenant    = NewDomainError("UNKNOWN_OR_INACTIVE_TENANT", "Tenant is unknown or not active")
	ErrTenantRoutingMismatch      = NewDomainError("TENANT_ROUTING_MISMATCH", "Routing hint does not match the caller's tenant")
	ErrTenantReverificationFailed = NewDomainError("TENANT_REVERIFICATION_FAILED", "Caller's tenant changed since the request started")
	ErrNoActiveContext            = NewDomainError("NO_ACTIVE_CONTEXT", "Data access attempted without a request context")
	ErrTenantPredicateMismatch    = NewDomainError("TENANT_PREDICATE_MISMATCH", "Explicit tenant predicate conflicts with the request context")
	ErrTenantConfiguration        = NewDomainError("TENANT_CONFIGURATION", "Entity tenant conflicts with the request context")
	ErrTenantDirectoryUnavailable = NewDomainError("TENANT_SYSTEM_ERROR", "Tenant directory is unavailable")
)

var isolationErrors = []error{
	ErrNoTenantAssociation,
	ErrUnknownOrInactiveTenant,
	ErrTenantRoutingMismatch,
	ErrTenantReverificationFailed,
	ErrNoActiveContext,
	ErrTenantPredicateMismatch,
	ErrTenantConfiguration,
	ErrTenantDirectoryUnavailable,
}

// IsIsolationError reports whether err belongs to the tenant isolation taxonomy.
func IsIsolationError(err error) bool {
	for _, target := range isolationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsolationCode returns the code of the isolation error wrapped in err, or ""
// when err is not an isolation error.
func IsolationCode(err error) string {
	for _, target := range isolationErrors {
		if errors.Is(err, target) {
			return target.(*DomainError).Code
		}
	}
	return ""
}
