package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/lms-client/api/web"
	"github.com/irsalhamdi/lms-client/api/weberr"
	"github.com/irsalhamdi/lms-client/core/claims"
)

// Session keys written at login.
const (
	SessionUserID = "userID"
	SessionEmail  = "email"
	SessionRole   = "role"
)

// LoadAndSave runs the handler inside the session manager so the session
// cookie is read and written around it.
func LoadAndSave(sm *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			var err error
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				err = handler(r.Context(), w, r)
			})

			sm.LoadAndSave(next).ServeHTTP(w, r.WithContext(ctx))
			return err
		}
		return h
	}
	return m
}

// Authenticate accepts a bearer token signed with secret or, without an
// Authorization header, the session cookie. The caller's claims are put in
// the context.
func Authenticate(sm *scs.SessionManager, secret []byte) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			var c claims.Claims

			switch auth := r.Header.Get("Authorization"); {
			case auth != "":
				parts := strings.SplitN(auth, " ", 2)
				if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
					return weberr.NotAuthorized(errors.New("expected authorization header format: Bearer <token>"))
				}

				parsed, err := claims.Parse(secret, parts[1])
				if err != nil {
					return weberr.NotAuthorized(err)
				}
				c = parsed

			case sm != nil && sm.Exists(ctx, SessionUserID):
				c = claims.Claims{
					UserID: sm.GetString(ctx, SessionUserID),
					Email:  sm.GetString(ctx, SessionEmail),
					Role:   claims.Role(sm.GetString(ctx, SessionRole)),
				}

			default:
				return weberr.NotAuthorized(errors.New("no credentials"))
			}

			return handler(claims.Set(ctx, c), w, r)
		}
		return h
	}
	return m
}

// Require lets through callers holding one of roles. Admins are always let
// through.
func Require(roles ...claims.Role) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			c, err := claims.Get(ctx)
			if err != nil {
				return weberr.NotAuthorized(err)
			}

			if c.Role == claims.RoleAdmin {
				return handler(ctx, w, r)
			}
			for _, role := range roles {
				if c.Role == role {
					return handler(ctx, w, r)
				}
			}

			return weberr.Forbidden(errors.New("role " + string(c.Role) + " is not allowed"))
		}
		return h
	}
	return m
}
