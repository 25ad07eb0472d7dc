package dashboard

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/mux"
	"github.com/irsalhamdi/lms-client/api"
)

const enrolled = `{"success":true,"data":{"enrollments":[
	{"_id":"e1","progress":100,"enrolledAt":"2024-01-01T00:00:00Z","course":{"_id":"c1","title":"Go","price":10,"lessons":[{"_id":"l1","title":"a","duration":1800},{"_id":"l2","title":"b","duration":1800}]}},
	{"_id":"e2","progress":40,"enrolledAt":"2024-02-01T00:00:00Z","course":{"_id":"c2","title":"Rust","price":0,"videos":[{"_id":"l3","title":"c","duration":3600}]}},
	{"_id":"e3","progress":0,"enrolledAt":"2024-03-01T00:00:00Z","course":{"_id":"c3","title":"Zig","price":5}}
]}}`

func newService(t *testing.T, dashboardStatus int) *Service {
	t.Helper()

	router := mux.NewRouter()
	router.HandleFunc("/student/dashboard", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(dashboardStatus)
		if dashboardStatus == http.StatusOK {
			io.WriteString(w, `{"success":true,"data":{"stats":{"enrolledCourses":7},"recentCourses":[]}}`)
			return
		}
		io.WriteString(w, `{"success":false,"message":"not implemented"}`)
	})
	router.HandleFunc("/student/stats", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(dashboardStatus)
	})
	router.HandleFunc("/student/enrolled-courses", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, enrolled)
	})

	hs := httptest.NewServer(router)
	t.Cleanup(hs.Close)

	c, err := api.New(api.Config{BaseURL: hs.URL})
	if err != nil {
		t.Fatal(err)
	}
	return NewService(c, nil)
}

func TestDashboardFromBackend(t *testing.T) {
	s := newService(t, http.StatusOK)

	d, err := s.Dashboard(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if d.Computed || d.Stats.EnrolledCourses != 7 {
		t.Fatalf("expected the backend dashboard, got %+v", d)
	}
}

func TestDashboardFallback(t *testing.T) {
	s := newService(t, http.StatusNotFound)

	d, err := s.Dashboard(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	want := Stats{
		EnrolledCourses:   3,
		CompletedCourses:  1,
		InProgressCourses: 1,
		AverageProgress:   47,
		TotalLessons:      3,
		TotalHours:        2,
	}
	if diff := cmp.Diff(want, d.Stats); diff != "" {
		t.Fatalf("computed stats mismatch (-want +got):\n%s", diff)
	}
	if !d.Computed {
		t.Fatal("expected a computed dashboard")
	}

	var ids []string
	for _, e := range d.RecentCourses {
		ids = append(ids, e.Course.ID)
	}
	if diff := cmp.Diff([]string{"c3", "c2", "c1"}, ids); diff != "" {
		t.Fatalf("recent courses mismatch (-want +got):\n%s", diff)
	}
}

func TestStatsFallback(t *testing.T) {
	s := newService(t, http.StatusInternalServerError)

	st, err := s.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.EnrolledCourses != 3 {
		t.Fatalf("expected computed stats, got %+v", st)
	}
}

func TestDashboardSessionExpired(t *testing.T) {
	s := newService(t, http.StatusUnauthorized)

	if _, err := s.Dashboard(context.Background()); !errors.Is(err, api.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired without fallback, got %v", err)
	}
}
