package enrollment

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/mux"
	"github.com/irsalhamdi/lms-client/api"
	"github.com/irsalhamdi/lms-client/core/course"
)

func newService(t *testing.T, list string, enrolls *int32) *Service {
	t.Helper()

	router := mux.NewRouter()
	router.HandleFunc("/student/enrolled-courses", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, list)
	}).Methods(http.MethodGet)
	router.HandleFunc("/courses/{course_id}/enroll", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(enrolls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"success":true,"enrollment":{"_id":"e9","enrolledAt":"2024-05-06T07:08:09Z"}}`)
	}).Methods(http.MethodPost)

	hs := httptest.NewServer(router)
	t.Cleanup(hs.Close)

	c, err := api.New(api.Config{BaseURL: hs.URL})
	if err != nil {
		t.Fatal(err)
	}
	return NewService(c)
}

func TestListEnrolledShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"enrollments wrapping courses", `{"success":true,"data":{"enrollments":[{"_id":"e1","progress":30,"course":{"_id":"c1","title":"Go"}}]}}`},
		{"bare courses under data.courses", `{"success":true,"data":{"courses":[{"_id":"c1","title":"Go","progress":30}]}}`},
		{"bare courses at top level", `{"success":true,"courses":[{"id":"c1","name":"Go","completionPercentage":30}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n int32
			s := newService(t, tt.body, &n)

			es, err := s.ListEnrolled(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if len(es) != 1 {
				t.Fatalf("expected one enrollment, got %d", len(es))
			}

			got := []interface{}{es[0].Course.ID, es[0].Course.Title, es[0].Progress}
			if diff := cmp.Diff([]interface{}{"c1", "Go", 30.0}, got); diff != "" {
				t.Fatalf("enrollment mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsEnrolled(t *testing.T) {
	var n int32
	s := newService(t, `{"success":true,"data":[{"_id":"c1","title":"Go"}]}`, &n)

	ok, err := s.IsEnrolled(context.Background(), "c1")
	if err != nil || !ok {
		t.Fatalf("expected enrolled in c1, got %v %v", ok, err)
	}
	ok, err = s.IsEnrolled(context.Background(), "c2")
	if err != nil || ok {
		t.Fatalf("expected not enrolled in c2, got %v %v", ok, err)
	}
}

func TestEnrollFree(t *testing.T) {
	var n int32
	s := newService(t, `{"success":true,"data":[]}`, &n)

	if _, err := s.EnrollFree(context.Background(), course.Course{ID: "paid", Price: 20}); !errors.Is(err, ErrPaidCourse) {
		t.Fatalf("expected ErrPaidCourse, got %v", err)
	}
	if atomic.LoadInt32(&n) != 0 {
		t.Fatal("paid course must not reach the backend")
	}

	e, err := s.EnrollFree(context.Background(), course.Course{ID: "free", Title: "Intro"})
	if err != nil {
		t.Fatal(err)
	}
	if e.ID != "e9" || e.Course.ID != "free" || e.EnrolledAt.Year() != 2024 {
		t.Fatalf("unexpected enrollment %+v", e)
	}
}
