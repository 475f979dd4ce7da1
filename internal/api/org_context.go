package api

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/ignite/outreach-pipeline/internal/pkg/httputil"
)

// OrgHeader carries the tenant on every authenticated request.
const OrgHeader = "X-Organization-ID"

// OrgContextKey is the key for storing the organization ID in a request context
type OrgContextKey struct{}

var orgIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// OrgContextProvider resolves the tenant for a request.
type OrgContextProvider struct {
	defaultOrgID   string
	devModeEnabled bool
}

// NewOrgContextProvider creates a provider. defaultOrgID is only used when
// devMode is on and the request names no organization.
func NewOrgContextProvider(defaultOrgID string, devMode bool) *OrgContextProvider {
	return &OrgContextProvider{
		defaultOrgID:   strings.TrimSpace(defaultOrgID),
		devModeEnabled: devMode,
	}
}

// ExtractOrgID extracts the organization ID from the request.
// Priority: 1. Context (from middleware), 2. X-Organization-ID header, 3. Dev mode default
func (p *OrgContextProvider) ExtractOrgID(r *http.Request) (string, bool) {
	if orgID := GetOrgIDFromContext(r.Context()); orgID != "" {
		return orgID, true
	}

	if orgID := strings.TrimSpace(r.Header.Get(OrgHeader)); orgID != "" {
		return orgID, orgIDPattern.MatchString(orgID)
	}

	if p.devModeEnabled && p.defaultOrgID != "" {
		return p.defaultOrgID, true
	}
	return "", false
}

// RequireOrgMiddleware requires organization context, returns 401 if not present
func (p *OrgContextProvider) RequireOrgMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := p.ExtractOrgID(r)
		if !ok {
			httputil.Unauthorized(w, "organization context required")
			return
		}
		ctx := context.WithValue(r.Context(), OrgContextKey{}, orgID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetOrgIDFromContext retrieves the organization ID set by RequireOrgMiddleware.
func GetOrgIDFromContext(ctx context.Context) string {
	orgID, _ := ctx.Value(OrgContextKey{}).(string)
	return orgID
}
