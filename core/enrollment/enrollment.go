// Package enrollment lists the courses a student is enrolled in and
// enrolls them in free ones.
package enrollment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/irsalhamdi/lms-client/api"
	"github.com/irsalhamdi/lms-client/core/course"
)

// ErrPaidCourse is returned by EnrollFree for a course that must go
// through checkout.
var ErrPaidCourse = errors.New("this course must be purchased before enrolling")

type Enrollment struct {
	ID             string        `json:"id,omitempty"`
	Course         course.Course `json:"course"`
	Progress       float64       `json:"progress"`
	EnrolledAt     time.Time     `json:"enrolledAt"`
	LastAccessedAt time.Time     `json:"lastAccessedAt"`
}

func (e Enrollment) Completed() bool { return e.Progress >= 100 }

type Service struct {
	client *api.Client
}

func NewService(client *api.Client) *Service {
	return &Service{client: client}
}

// ListEnrolled returns the enrollments of the logged in student.
func (s *Service) ListEnrolled(ctx context.Context) ([]Enrollment, error) {
	var data json.RawMessage
	if err := s.client.Get(ctx, "/student/enrolled-courses", &data); err != nil {
		return nil, fmt.Errorf("listing enrolled courses: %w", err)
	}
	if len(data) == 0 {
		return []Enrollment{}, nil
	}

	var list json.RawMessage
	if err := api.Pick(data, "enrollments", &list); err != nil {
		return nil, fmt.Errorf("decoding enrollments: %w", err)
	}

	var items []json.RawMessage
	if err := api.Pick(list, "courses", &items); err != nil {
		return nil, fmt.Errorf("decoding enrollments: %w", err)
	}

	out := make([]Enrollment, 0, len(items))
	for i, raw := range items {
		e, err := normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("enrollment %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// IsEnrolled reports whether the student is enrolled in courseID.
func (s *Service) IsEnrolled(ctx context.Context, courseID string) (bool, error) {
	es, err := s.ListEnrolled(ctx)
	if err != nil {
		return false, err
	}
	for _, e := range es {
		if e.Course.ID == courseID {
			return true, nil
		}
	}
	return false, nil
}

// EnrollFree enrolls the student in c without payment.
func (s *Service) EnrollFree(ctx context.Context, c course.Course) (Enrollment, error) {
	if !c.Free() {
		return Enrollment{}, ErrPaidCourse
	}

	var data json.RawMessage
	if err := s.client.Post(ctx, "/courses/"+url.PathEscape(c.ID)+"/enroll", nil, &data); err != nil {
		return Enrollment{}, fmt.Errorf("enrolling in course[%s]: %w", c.ID, err)
	}

	e := Enrollment{Course: c, EnrolledAt: time.Now().UTC()}
	if len(data) == 0 {
		return e, nil
	}

	var w wireEnrollment
	if err := api.Pick(data, "enrollment", &w); err != nil {
		return Enrollment{}, fmt.Errorf("decoding enrollment: %w", err)
	}
	e.ID = first(w.ID, w.MongoID)
	if !w.EnrolledAt.IsZero() {
		e.EnrolledAt = w.EnrolledAt
	}
	return e, nil
}

type wireEnrollment struct {
	ID             string          `json:"id"`
	MongoID        string          `json:"_id"`
	Course         json.RawMessage `json:"course"`
	Progress       *float64        `json:"progress"`
	Completion     *float64        `json:"completionPercentage"`
	EnrolledAt     time.Time       `json:"enrolledAt"`
	LastAccessedAt time.Time       `json:"lastAccessedAt"`
}

// normalize accepts an enrollment wrapping its course, or a bare course.
func normalize(raw json.RawMessage) (Enrollment, error) {
	var w wireEnrollment
	if err := json.Unmarshal(raw, &w); err != nil {
		return Enrollment{}, err
	}

	var obj map[string]json.RawMessage
	if len(w.Course) == 0 || json.Unmarshal(w.Course, &obj) != nil {
		c, err := course.Normalize(raw)
		if err != nil {
			return Enrollment{}, err
		}
		return Enrollment{Course: c, Progress: progressOf(w), EnrolledAt: w.EnrolledAt, LastAccessedAt: w.LastAccessedAt}, nil
	}

	c, err := course.Normalize(w.Course)
	if err != nil {
		return Enrollment{}, err
	}
	return Enrollment{
		ID:             first(w.ID, w.MongoID),
		Course:         c,
		Progress:       progressOf(w),
		EnrolledAt:     w.EnrolledAt,
		LastAccessedAt: w.LastAccessedAt,
	}, nil
}

func progressOf(w wireEnrollment) float64 {
	switch {
	case w.Progress != nil:
		return *w.Progress
	case w.Completion != nil:
		return *w.Completion
	}
	return 0
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
