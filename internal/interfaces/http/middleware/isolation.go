package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mise/backend/internal/application/tenancy"
	domaintenancy "github.com/mise/backend/internal/domain/tenancy"
	"github.com/mise/backend/internal/interfaces/http/dto"
)

// Routing hint sources
const (
	SubdomainHeader     = "X-Tenant-Subdomain"
	SubdomainQueryParam = "tenant"
	RequestIDHeader     = "X-Request-ID"
)

// VerificationKey holds the strict verification of the current request
const VerificationKey = "tenant_verification"

// Admitter binds an authenticated caller to a tenant
type Admitter interface {
	Admit(ctx context.Context, caller tenancy.Caller, hint string) (context.Context, domaintenancy.RequestContext, error)
}

// StrictVerifier re-checks the caller before a sensitive operation
type StrictVerifier interface {
	Verify(ctx context.Context) (tenancy.Verification, error)
}

// IsolationConfig holds configuration for the isolation gate middleware
type IsolationConfig struct {
	Gate Admitter
	// BaseDomain enables subdomain hints from the Host header, e.g. "mise.app"
	BaseDomain string
	HintHeader string
	HintQuery  string
	SkipPaths  []string
}

// DefaultIsolationConfig returns default isolation gate configuration
func DefaultIsolationConfig(gate Admitter) IsolationConfig {
	return IsolationConfig{
		Gate:       gate,
		HintHeader: SubdomainHeader,
		HintQuery:  SubdomainQueryParam,
		SkipPaths:  []string{"/health", "/ready"},
	}
}

// IsolationGate admits the caller authenticated by the JWT middleware into
// its tenant and binds the request context for everything downstream. It
// must run after JWTAuthMiddleware.
//
// Every rejection is the same generic 403; the gate has already logged and
// audited the distinct reason.
func IsolationGate(cfg IsolationConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if skipPath(c.Request.URL.Path, cfg.SkipPaths) {
			c.Next()
			return
		}

		caller := tenancy.Caller{
			UserID:   c.GetString(JWTUserIDKey),
			TenantID: c.GetString(JWTTenantIDKey),
		}
		ctx, rc, err := cfg.Gate.Admit(c.Request.Context(), caller, routingHint(c, cfg))
		if err != nil {
			AbortAccessDenied(c)
			return
		}

		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, rc.RequestID())
		c.Next()
	}
}

// StrictTenant re-verifies the caller's tenant association before a
// sensitive handler and stores the resulting proof for it.
func StrictTenant(verifier StrictVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		proof, err := verifier.Verify(c.Request.Context())
		if err != nil {
			AbortAccessDenied(c)
			return
		}
		c.Set(VerificationKey, proof)
		c.Next()
	}
}

// GetVerification returns the proof stored by StrictTenant
func GetVerification(c *gin.Context) (tenancy.Verification, bool) {
	v, ok := c.Get(VerificationKey)
	if !ok {
		return tenancy.Verification{}, false
	}
	proof, ok := v.(tenancy.Verification)
	return proof, ok
}

// AbortAccessDenied writes the generic isolation failure response
func AbortAccessDenied(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, dto.NewAccessDeniedResponse())
}

// routingHint picks the subdomain hint: header, then query, then Host.
func routingHint(c *gin.Context, cfg IsolationConfig) string {
	if cfg.HintHeader != "" {
		if h := strings.TrimSpace(c.GetHeader(cfg.HintHeader)); h != "" {
			return h
		}
	}
	if cfg.HintQuery != "" {
		if q := strings.TrimSpace(c.Query(cfg.HintQuery)); q != "" {
			return q
		}
	}
	if cfg.BaseDomain != "" {
		return subdomainFromHost(c.Request.Host, cfg.BaseDomain)
	}
	return ""
}

// subdomainFromHost returns "acme" for "acme.mise.app" under base domain
// "mise.app". The bare domain and "www" carry no hint.
func subdomainFromHost(host, baseDomain string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	baseDomain = strings.ToLower(strings.TrimPrefix(baseDomain, "."))

	sub, ok := strings.CutSuffix(host, "."+baseDomain)
	if !ok || sub == "" || sub == "www" {
		return ""
	}
	// the label nearest the base domain names the tenant
	if i := strings.LastIndex(sub, "."); i >= 0 {
		sub = sub[i+1:]
	}
	return sub
}
