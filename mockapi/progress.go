package mockapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/irsalhamdi/lms-client/api/web"
	"github.com/irsalhamdi/lms-client/api/weberr"
	"github.com/irsalhamdi/lms-client/core/claims"
	"github.com/irsalhamdi/lms-client/core/dashboard"
	"github.com/irsalhamdi/lms-client/core/enrollment"
	"github.com/irsalhamdi/lms-client/core/progress"
)

type progressUp struct {
	WatchTime     float64 `json:"watchTime"`
	Completed     bool    `json:"completed"`
	TotalDuration float64 `json:"totalDuration"`
}

// learner returns the caller when they may track progress in courseID:
// enrolled students, the course instructor and admins.
func learner(ctx context.Context, st *Store, courseID string) (claims.Claims, error) {
	clm, err := claims.Get(ctx)
	if err != nil {
		return claims.Claims{}, weberr.NotAuthorized(errors.New("user not authenticated"))
	}

	c, err := st.Course(courseID)
	if err != nil {
		return claims.Claims{}, weberr.NotFound(fmt.Errorf("course[%s]: %w", courseID, err))
	}

	if st.Enrolled(clm.UserID, courseID) || c.Instructor.ID == clm.UserID || clm.Role == claims.RoleAdmin {
		return clm, nil
	}
	return claims.Claims{}, weberr.Forbidden(fmt.Errorf("user[%s] is not enrolled in course[%s]", clm.UserID, courseID))
}

func handleShowProgress(st *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")

		clm, err := learner(ctx, st, courseID)
		if err != nil {
			return err
		}

		snap, err := st.Progress(clm.UserID, courseID)
		if err != nil {
			return weberr.NotFound(fmt.Errorf("course[%s]: %w", courseID, err))
		}

		return web.Respond(ctx, w, struct {
			Progress progress.Snapshot `json:"progress"`
		}{snap}, http.StatusOK)
	}
}

func handleUpdateProgress(st *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		lessonID := web.Param(r, "lesson_id")

		clm, err := learner(ctx, st, courseID)
		if err != nil {
			return err
		}

		var up progressUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if up.WatchTime < 0 || up.TotalDuration < 0 {
			return weberr.BadRequest(errors.New("watch time and duration cannot be negative"))
		}

		snap, err := st.SaveWatch(clm.UserID, courseID, lessonID, watchRec{
			WatchTime:     up.WatchTime,
			TotalDuration: up.TotalDuration,
			Completed:     up.Completed,
		})
		if err != nil {
			return weberr.NotFound(fmt.Errorf("saving progress: %w", err))
		}

		return web.Respond(ctx, w, struct {
			Progress progress.Snapshot `json:"progress"`
		}{snap}, http.StatusOK)
	}
}

func handleListEnrolled(st *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		return web.Respond(ctx, w, struct {
			Enrollments []enrollment.Enrollment `json:"enrollments"`
		}{st.Enrollments(clm.UserID)}, http.StatusOK)
	}
}

func handleDashboard(st *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		d := dashboard.Compute(st.Enrollments(clm.UserID))
		d.Computed = false

		return web.Respond(ctx, w, d, http.StatusOK)
	}
}

func handleStats(st *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		return web.Respond(ctx, w, dashboard.Compute(st.Enrollments(clm.UserID)).Stats, http.StatusOK)
	}
}
