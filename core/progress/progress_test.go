package progress

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/mux"
	"github.com/irsalhamdi/lms-client/api"
	"github.com/sirupsen/logrus"
)

type progressServer struct {
	fail int32
	puts int32

	mu   sync.Mutex
	last map[string]interface{}
}

func (p *progressServer) handler(t *testing.T) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/progress/courses/{course_id}/videos/{lesson_id}", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&p.puts, 1)
		w.Header().Set("Content-Type", "application/json")

		if atomic.LoadInt32(&p.fail) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, `{"success":false,"message":"progress store unavailable"}`)
			return
		}

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding progress: %v", err)
		}
		body["lesson"] = mux.Vars(r)["lesson_id"]

		p.mu.Lock()
		p.last = body
		p.mu.Unlock()

		io.WriteString(w, `{"success":true,"data":{}}`)
	}).Methods(http.MethodPut)

	router.HandleFunc("/progress/course/{course_id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"success":true,"progress":{"completionPercentage":50,"completedLessons":["l1",{"videoId":"l3"}],"totalTimeSpent":"120"}}`)
	}).Methods(http.MethodGet)

	return router
}

func newSyncer(t *testing.T, p *progressServer) *Syncer {
	t.Helper()

	hs := httptest.NewServer(p.handler(t))
	t.Cleanup(hs.Close)

	log := logrus.New()
	log.SetOutput(io.Discard)

	c, err := api.New(api.Config{BaseURL: hs.URL, Log: log})
	if err != nil {
		t.Fatal(err)
	}
	return New(Config{Client: c, Log: log})
}

func TestCompleteKeepsOptimisticState(t *testing.T) {
	p := &progressServer{fail: 1}
	s := newSyncer(t, p)

	snap := s.Complete(context.Background(), "c1", Watch{LessonID: "l1", WatchTime: 60, Duration: 62, TotalLessons: 4})

	want := Snapshot{CompletionPercentage: 25, CompletedLessons: []string{"l1"}, TotalTimeSpent: 60}
	if diff := cmp.Diff(want, snap); diff != "" {
		t.Fatalf("returned snapshot mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, s.Provider().Snapshot("c1")); diff != "" {
		t.Fatalf("local progress was rolled back (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"c1/l1"}, s.Unsynced()); diff != "" {
		t.Fatalf("unsynced mismatch (-want +got):\n%s", diff)
	}

	atomic.StoreInt32(&p.fail, 0)
	if err := s.Resync(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(s.Unsynced()) != 0 {
		t.Fatalf("expected nothing left to sync, got %v", s.Unsynced())
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	wantBody := map[string]interface{}{"watchTime": 60.0, "completed": true, "totalDuration": 62.0, "lesson": "l1"}
	if diff := cmp.Diff(wantBody, p.last); diff != "" {
		t.Fatalf("progress body mismatch (-want +got):\n%s", diff)
	}
}

func TestCompleteTwice(t *testing.T) {
	s := newSyncer(t, &progressServer{})

	s.Complete(context.Background(), "c1", Watch{LessonID: "l1", WatchTime: 10, TotalLessons: 2})
	snap := s.Complete(context.Background(), "c1", Watch{LessonID: "l1", WatchTime: 5, TotalLessons: 2})

	if len(snap.CompletedLessons) != 1 || snap.CompletionPercentage != 50 || snap.TotalTimeSpent != 15 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestLeave(t *testing.T) {
	p := &progressServer{}
	s := newSyncer(t, p)
	ctx := context.Background()

	if s.Leave(ctx, "c1", Watch{LessonID: "l1", WatchTime: 50, Duration: 100, TotalLessons: 2}) {
		t.Fatal("half watched lesson must not complete")
	}
	if !s.Leave(ctx, "c1", Watch{LessonID: "l1", WatchTime: 95, Duration: 100, TotalLessons: 2}) {
		t.Fatal("lesson past the threshold must complete")
	}
	if s.Leave(ctx, "c1", Watch{LessonID: "l1", WatchTime: 100, Duration: 100, TotalLessons: 2}) {
		t.Fatal("completed lesson must not complete again")
	}
	if n := atomic.LoadInt32(&p.puts); n != 1 {
		t.Fatalf("expected one backend write, got %d", n)
	}
}

func TestLoadReplaces(t *testing.T) {
	s := newSyncer(t, &progressServer{})
	s.Provider().MarkComplete("c1", "local-only", 4, 10)

	snap, err := s.Load(context.Background(), "c1")
	if err != nil {
		t.Fatal(err)
	}

	want := Snapshot{CompletionPercentage: 50, CompletedLessons: []string{"l1", "l3"}, TotalTimeSpent: 120}
	if diff := cmp.Diff(want, snap); diff != "" {
		t.Fatalf("loaded snapshot mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, s.Provider().Snapshot("c1")); diff != "" {
		t.Fatalf("backend state must replace local state (-want +got):\n%s", diff)
	}
}
