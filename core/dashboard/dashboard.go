// Package dashboard reads the student dashboard aggregates. When the
// backend cannot produce them they are computed from the enrolled courses.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/irsalhamdi/lms-client/api"
	"github.com/irsalhamdi/lms-client/core/enrollment"
	"github.com/sirupsen/logrus"
)

// recentLimit bounds the recent courses of a computed dashboard.
const recentLimit = 5

type Stats struct {
	EnrolledCourses   int     `json:"enrolledCourses"`
	CompletedCourses  int     `json:"completedCourses"`
	InProgressCourses int     `json:"inProgressCourses"`
	AverageProgress   float64 `json:"averageProgress"`
	TotalLessons      int     `json:"totalLessons"`
	TotalHours        float64 `json:"totalHours"`
}

type Dashboard struct {
	Stats         Stats                   `json:"stats"`
	RecentCourses []enrollment.Enrollment `json:"recentCourses"`

	// Computed is set when the backend was unavailable and the values
	// were derived locally.
	Computed bool `json:"computed"`
}

type Service struct {
	client      *api.Client
	enrollments *enrollment.Service
	log         logrus.FieldLogger
}

func NewService(client *api.Client, log logrus.FieldLogger) *Service {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Service{
		client:      client,
		enrollments: enrollment.NewService(client),
		log:         log,
	}
}

func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	err := s.client.Get(ctx, "/student/dashboard", &d)
	if err == nil {
		return d, nil
	}
	if errors.Is(err, api.ErrSessionExpired) {
		return Dashboard{}, err
	}

	s.log.WithError(err).Warn("dashboard unavailable, computing locally")

	es, lerr := s.enrollments.ListEnrolled(ctx)
	if lerr != nil {
		return Dashboard{}, fmt.Errorf("computing dashboard: %w", errors.Join(err, lerr))
	}
	return Compute(es), nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.client.Get(ctx, "/student/stats", &st)
	if err == nil {
		return st, nil
	}
	if errors.Is(err, api.ErrSessionExpired) {
		return Stats{}, err
	}

	s.log.WithError(err).Warn("stats unavailable, computing locally")

	es, lerr := s.enrollments.ListEnrolled(ctx)
	if lerr != nil {
		return Stats{}, fmt.Errorf("computing stats: %w", errors.Join(err, lerr))
	}
	return Compute(es).Stats, nil
}

// Compute derives the dashboard from enrollments.
func Compute(es []enrollment.Enrollment) Dashboard {
	var (
		st      Stats
		sum     float64
		seconds float64
	)

	for _, e := range es {
		st.EnrolledCourses++
		switch {
		case e.Completed():
			st.CompletedCourses++
		case e.Progress > 0:
			st.InProgressCourses++
		}
		sum += e.Progress
		st.TotalLessons += len(e.Course.Lessons())
		seconds += e.Course.TotalDuration()
	}

	if st.EnrolledCourses > 0 {
		st.AverageProgress = math.Round(sum / float64(st.EnrolledCourses))
	}
	st.TotalHours = math.Round(seconds/3600*10) / 10

	recent := append([]enrollment.Enrollment(nil), es...)
	sort.SliceStable(recent, func(i, j int) bool {
		return lastSeen(recent[i]).After(lastSeen(recent[j]))
	})
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	if recent == nil {
		recent = []enrollment.Enrollment{}
	}

	return Dashboard{Stats: st, RecentCourses: recent, Computed: true}
}

func lastSeen(e enrollment.Enrollment) time.Time {
	if e.LastAccessedAt.After(e.EnrolledAt) {
		return e.LastAccessedAt
	}
	return e.EnrolledAt
}
