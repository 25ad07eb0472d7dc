package mockapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/lms-client/api/middleware"
	"github.com/irsalhamdi/lms-client/api/web"
	"github.com/irsalhamdi/lms-client/api/weberr"
	"github.com/irsalhamdi/lms-client/core/claims"
	"github.com/irsalhamdi/lms-client/validate"
)

type credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func handleLogin(st *Store, sm *scs.SessionManager, secret []byte, ttl time.Duration) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var cred credentials
		if err := web.Decode(w, r, &cred); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if err := validate.Check(cred); err != nil {
			return weberr.BadRequest(err)
		}

		u, err := st.Authenticate(cred.Email, cred.Password)
		if err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnauthorized,
				weberr.WithFields(map[string]interface{}{"email": cred.Email}),
			)
		}

		tok, err := claims.Sign(secret, claims.Claims{UserID: u.ID, Email: u.Email, Role: u.Role}, ttl)
		if err != nil {
			return err
		}

		if err := sm.RenewToken(ctx); err != nil {
			return fmt.Errorf("renewing session token: %w", err)
		}
		sm.Put(ctx, middleware.SessionUserID, u.ID)
		sm.Put(ctx, middleware.SessionEmail, u.Email)
		sm.Put(ctx, middleware.SessionRole, string(u.Role))

		resp := struct {
			Token string `json:"token"`
			User  User   `json:"user"`
		}{tok, u}

		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}

func handleLogout(sm *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := sm.Destroy(ctx); err != nil {
			return fmt.Errorf("destroying session: %w", err)
		}
		return web.RespondMessage(ctx, w, "logged out", http.StatusOK)
	}
}

func handleMe(st *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		u, err := st.User(clm.UserID)
		if err != nil {
			return weberr.NotAuthorized(fmt.Errorf("user[%s]: %w", clm.UserID, err))
		}

		return web.Respond(ctx, w, struct {
			User User `json:"user"`
		}{u}, http.StatusOK)
	}
}
