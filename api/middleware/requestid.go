package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/irsalhamdi/lms-client/api"
	"github.com/irsalhamdi/lms-client/api/web"
)

const DefaultRequestIDLengthLimit = 128

type reqIDKeyCtx int

const reqIDKey reqIDKeyCtx = 1

// RequestID keeps the id sent by the client so both logs share it, and
// makes one up otherwise. The id is echoed in the response.
func RequestID() web.Middleware {
	lengthLimit := DefaultRequestIDLengthLimit
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			id := r.Header.Get(api.RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			} else if lengthLimit >= 0 && len(id) > lengthLimit {
				id = id[:lengthLimit]
			}
			ctx = context.WithValue(ctx, reqIDKey, id)
			w.Header().Set(api.RequestIDHeader, id)

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

func ContextRequestID(ctx context.Context) (reqID string) {
	id := ctx.Value(reqIDKey)
	if id != nil {
		reqID = id.(string)
	}
	return
}
