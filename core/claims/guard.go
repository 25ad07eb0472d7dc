package claims

import (
	"time"

	"github.com/irsalhamdi/lms-client/api"
)

// Source yields the stored raw token, empty when logged out.
type Source interface {
	Resolve() string
}

// Guard is the route guard of the dashboard subtrees. An empty required
// role only demands authentication.
type Guard struct {
	Tokens Source
	Now    func() time.Time
}

// Check returns the caller's claims and an empty route when access is
// granted, otherwise the route to redirect to.
func (g Guard) Check(required Role) (Claims, string) {
	raw := g.Tokens.Resolve()
	if raw == "" {
		return Claims{}, api.RouteLogin
	}

	c, err := FromToken(raw)
	if err != nil {
		return Claims{}, api.RouteLogin
	}

	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	if !c.Expiry.IsZero() && now().After(c.Expiry) {
		return Claims{}, api.RouteLogin
	}

	if required != "" && c.Role != required && c.Role != RoleAdmin {
		return c, api.RouteUnauthorized
	}

	return c, ""
}
