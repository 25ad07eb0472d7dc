// Package mockapi is an in-memory LMS backend speaking the same REST
// surface as the real one. The CLI can be pointed at it for local work and
// the client packages are tested end to end against it.
package mockapi

import (
	"context"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/irsalhamdi/lms-client/api/middleware"
	"github.com/irsalhamdi/lms-client/api/web"
	"github.com/irsalhamdi/lms-client/core/claims"
	"github.com/irsalhamdi/lms-client/rate"
	"github.com/sirupsen/logrus"
)

type APIConfig struct {
	CorsOrigin string
	Log        logrus.FieldLogger
	Store      *Store
	Session    *scs.SessionManager
	Secret     []byte
	TokenTTL   time.Duration
	Limiter    *rate.Limiter

	// MediaURL prefixes the URLs handed out for uploaded files.
	MediaURL string

	// MaxUpload bounds the size of one uploaded video, in bytes.
	MaxUpload int64
}

type api struct {
	*mux.Router
	mw    []web.Middleware
	limit web.Middleware
	log   logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	if cfg.Session == nil {
		cfg.Session = scs.New()
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.MaxUpload == 0 {
		cfg.MaxUpload = 100 << 20
	}
	if cfg.MediaURL == "" {
		cfg.MediaURL = "http://localhost:5000/media"
	}

	a := &api{
		Router: mux.NewRouter(),
		limit:  middleware.RateLimit(cfg.Limiter),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, middleware.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	st := cfg.Store
	authen := middleware.Authenticate(cfg.Session, cfg.Secret)
	instructor := middleware.Require(claims.RoleInstructor)
	student := middleware.Require(claims.RoleStudent)

	a.Handle(http.MethodPost, "/auth/login", handleLogin(st, cfg.Session, cfg.Secret, cfg.TokenTTL))
	a.Handle(http.MethodPost, "/auth/logout", handleLogout(cfg.Session))
	a.Handle(http.MethodGet, "/auth/me", handleMe(st), authen)

	a.Handle(http.MethodGet, "/courses/instructor/my-courses", handleListMine(st), authen, instructor)
	a.Handle(http.MethodGet, "/courses", handleListCourses(st))
	a.Handle(http.MethodPost, "/courses", handleCreateCourse(st), authen, instructor)
	a.Handle(http.MethodGet, "/courses/{id}", handleShowCourse(st))
	a.Handle(http.MethodPut, "/courses/{id}", handleUpdateCourse(st), authen, instructor)
	a.Handle(http.MethodDelete, "/courses/{id}", handleDeleteCourse(st), authen, instructor)
	a.Handle(http.MethodPost, "/courses/{id}/enroll", handleEnrollFree(st), authen, student)

	a.Handle(http.MethodPost, "/uploads/course/{course_id}/video", handleUploadVideo(st, cfg.MediaURL, cfg.MaxUpload), authen, instructor)
	a.Handle(http.MethodPost, "/uploads/course/{course_id}/thumbnail", handleUploadThumbnail(st, cfg.MediaURL), authen, instructor)

	a.Handle(http.MethodPost, "/payments/create-intent", handleCreateIntent(st), authen, student)
	a.Handle(http.MethodPost, "/payments/confirm", handleConfirm(st), authen, student)

	a.Handle(http.MethodGet, "/progress/course/{course_id}", handleShowProgress(st), authen)
	a.Handle(http.MethodPut, "/progress/courses/{course_id}/videos/{lesson_id}", handleUpdateProgress(st), authen)

	a.Handle(http.MethodGet, "/student/enrolled-courses", handleListEnrolled(st), authen)
	a.Handle(http.MethodGet, "/student/dashboard", handleDashboard(st), authen)
	a.Handle(http.MethodGet, "/student/stats", handleStats(st), authen)

	return a.Router
}

// Handle registers handler behind the global middleware, then the route
// middleware, then the rate limit so authenticated callers are limited
// per user.
func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = a.limit(handler)

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
