package middleware

import (
	"context"
	"net/http"

	"github.com/irsalhamdi/lms-client/api/web"
	"github.com/irsalhamdi/lms-client/api/weberr"
	"github.com/sirupsen/logrus"
)

// Errors logs a failed handler with the fields its error carries and
// writes the error envelope. Errors without a response become a 500
// whose message hides the cause.
func Errors(log logrus.FieldLogger) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			err := handler(ctx, w, r)
			if err == nil {
				return nil
			}

			fields := map[string]interface{}{
				"req_id":  ContextRequestID(ctx),
				"message": err,
			}
			if f, ok := weberr.Fields(err); ok {
				for k, v := range f {
					fields[k] = v
				}
			}

			body, code := weberr.ResponseFor(err)
			fields["statuscode"] = code

			entry := log.WithFields(logrus.Fields(fields))
			if code >= http.StatusInternalServerError {
				entry.Error("ERROR")
			} else {
				entry.Warn("request rejected")
			}

			return web.RespondBody(ctx, w, body, code)
		}
		return h
	}
	return m
}
