package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/irsalhamdi/lms-client/api/web"
	"github.com/irsalhamdi/lms-client/api/weberr"
	"github.com/irsalhamdi/lms-client/core/claims"
	"github.com/irsalhamdi/lms-client/rate"
)

// RateLimit rejects clients going over lim. Authenticated requests are
// keyed by user, the others by remote address.
func RateLimit(lim *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if lim == nil {
				return handler(ctx, w, r)
			}

			key := clientKey(ctx, r)
			if !lim.Check(key) {
				err := errors.New("too many requests, slow down")
				return weberr.NewError(err, err.Error(), http.StatusTooManyRequests,
					weberr.WithFields(map[string]interface{}{"client": key}),
				)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

func clientKey(ctx context.Context, r *http.Request) string {
	if c, err := claims.Get(ctx); err == nil {
		return "user:" + c.UserID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "addr:" + r.RemoteAddr
	}
	return "addr:" + host
}
