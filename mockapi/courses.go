package mockapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/irsalhamdi/lms-client/api/web"
	"github.com/irsalhamdi/lms-client/api/weberr"
	"github.com/irsalhamdi/lms-client/core/claims"
	"github.com/irsalhamdi/lms-client/core/course"
	"github.com/irsalhamdi/lms-client/validate"
)

func handleListCourses(st *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		cs := st.Courses(func(c course.Course) bool { return c.IsPublished })

		return web.Respond(ctx, w, struct {
			Courses []course.Course `json:"courses"`
		}{cs}, http.StatusOK)
	}
}

func handleListMine(st *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		cs := st.Courses(func(c course.Course) bool { return c.Instructor.ID == clm.UserID })

		return web.Respond(ctx, w, struct {
			Courses []course.Course `json:"courses"`
		}{cs}, http.StatusOK)
	}
}

func handleShowCourse(st *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(err)
		}

		c, err := st.Course(id)
		if err != nil {
			return weberr.NotFound(fmt.Errorf("course[%s]: %w", id, err))
		}

		return web.Respond(ctx, w, struct {
			Course course.Course `json:"course"`
		}{c}, http.StatusOK)
	}
}

func handleCreateCourse(st *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var cn course.CourseNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if err := validate.Check(cn); err != nil {
			return weberr.BadRequest(err)
		}

		u, err := st.User(clm.UserID)
		if err != nil {
			return weberr.NotAuthorized(fmt.Errorf("user[%s]: %w", clm.UserID, err))
		}

		c := fromNew(course.Course{ID: validate.GenerateID()}, cn)
		c.Instructor = course.Instructor{ID: u.ID, Name: u.Name, Email: u.Email}
		c = st.PutCourse(c)

		return web.Respond(ctx, w, struct {
			Course course.Course `json:"course"`
		}{c}, http.StatusCreated)
	}
}

func handleUpdateCourse(st *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")

		c, err := ownedCourse(ctx, st, id)
		if err != nil {
			return err
		}

		var cn course.CourseNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if err := validate.Check(cn); err != nil {
			return weberr.BadRequest(err)
		}

		c = st.PutCourse(fromNew(c, cn))

		return web.Respond(ctx, w, struct {
			Course course.Course `json:"course"`
		}{c}, http.StatusOK)
	}
}

func handleDeleteCourse(st *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")

		if _, err := ownedCourse(ctx, st, id); err != nil {
			return err
		}
		if err := st.DeleteCourse(id); err != nil {
			return weberr.NotFound(fmt.Errorf("course[%s]: %w", id, err))
		}

		return web.RespondMessage(ctx, w, "course deleted", http.StatusOK)
	}
}

func handleEnrollFree(st *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		id := web.Param(r, "id")
		c, err := st.Course(id)
		if err != nil {
			return weberr.NotFound(fmt.Errorf("course[%s]: %w", id, err))
		}
		if !c.Free() {
			return weberr.PaymentRequired(errors.New("this course must be purchased before enrolling"))
		}

		e, err := st.Enroll(clm.UserID, id)
		switch {
		case errors.Is(err, ErrAlreadyEnrolled):
			return weberr.NewError(err, err.Error(), http.StatusConflict)
		case err != nil:
			return fmt.Errorf("enrolling user[%s] in course[%s]: %w", clm.UserID, id, err)
		}

		return web.Respond(ctx, w, struct {
			Enrollment enrollmentRef `json:"enrollment"`
		}{refOf(e.ID, id, e.EnrolledAt)}, http.StatusCreated)
	}
}

// ownedCourse fetches a course the caller may modify: its instructor or
// an admin.
func ownedCourse(ctx context.Context, st *Store, id string) (course.Course, error) {
	clm, err := claims.Get(ctx)
	if err != nil {
		return course.Course{}, weberr.NotAuthorized(errors.New("user not authenticated"))
	}
	if err := validate.CheckID(id); err != nil {
		return course.Course{}, weberr.BadRequest(err)
	}

	c, err := st.Course(id)
	if err != nil {
		return course.Course{}, weberr.NotFound(fmt.Errorf("course[%s]: %w", id, err))
	}

	if c.Instructor.ID != clm.UserID && !claims.IsAdmin(ctx) {
		return course.Course{}, weberr.Forbidden(fmt.Errorf("user[%s] does not own course[%s]", clm.UserID, id))
	}
	return c, nil
}

func fromNew(c course.Course, cn course.CourseNew) course.Course {
	c.Title = cn.Title
	c.Description = cn.Description
	c.Category = cn.Category
	c.Level = cn.Level
	c.Price = cn.Price
	c.DiscountPrice = cn.DiscountPrice
	c.IsPublished = cn.IsPublished
	if cn.Thumbnail != "" {
		c.Thumbnail = cn.Thumbnail
	}
	if cn.Sections != nil {
		c.Sections = cn.Sections
		course.Renumber(c.Sections)
		for i := range c.Sections {
			course.Renumber(c.Sections[i].Lessons)
		}
	}
	return c
}
