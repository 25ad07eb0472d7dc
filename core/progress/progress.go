// Package progress records lesson completion twice: in the local Provider
// so the player updates at once, and on the backend so it persists.
//
// A backend write that fails is not rolled back locally. The lesson is
// kept as unsynced and Resync sends it again; Load replaces local state
// with the backend's, which stays the source of truth.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/irsalhamdi/lms-client/api"
	"github.com/sirupsen/logrus"
)

// DefaultThreshold is the watched fraction past which leaving a lesson
// completes it.
const DefaultThreshold = 0.9

// Watch is one viewing of a lesson.
type Watch struct {
	LessonID     string
	WatchTime    float64
	Duration     float64
	TotalLessons int
}

type Config struct {
	Client    *api.Client
	Provider  Provider
	Log       logrus.FieldLogger
	Threshold float64
}

type Syncer struct {
	client    *api.Client
	provider  Provider
	log       logrus.FieldLogger
	threshold float64

	mu       sync.Mutex
	unsynced map[string]pending
}

type pending struct {
	courseID string
	watch    Watch
}

func New(cfg Config) *Syncer {
	if cfg.Provider == nil {
		cfg.Provider = NewStore()
	}
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Log = l
	}

	return &Syncer{
		client:    cfg.Client,
		provider:  cfg.Provider,
		log:       cfg.Log,
		threshold: cfg.Threshold,
		unsynced:  make(map[string]pending),
	}
}

func (s *Syncer) Provider() Provider { return s.provider }

type progressUp struct {
	WatchTime     float64 `json:"watchTime"`
	Completed     bool    `json:"completed"`
	TotalDuration float64 `json:"totalDuration"`
}

// Complete marks the lesson done locally, then on the backend. A backend
// failure is logged and does not undo the local write.
func (s *Syncer) Complete(ctx context.Context, courseID string, w Watch) Snapshot {
	snap := s.provider.MarkComplete(courseID, w.LessonID, w.TotalLessons, w.WatchTime)

	if err := s.put(ctx, courseID, w); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"course": courseID,
			"lesson": w.LessonID,
		}).Warn("progress not saved, kept locally")

		s.mu.Lock()
		s.unsynced[key(courseID, w.LessonID)] = pending{courseID: courseID, watch: w}
		s.mu.Unlock()
		return snap
	}

	s.mu.Lock()
	delete(s.unsynced, key(courseID, w.LessonID))
	s.mu.Unlock()
	return snap
}

// Leave is called when the learner stops watching. The lesson is
// completed when enough of it was watched; Leave reports whether it was.
func (s *Syncer) Leave(ctx context.Context, courseID string, w Watch) bool {
	if w.Duration <= 0 || w.WatchTime/w.Duration < s.threshold {
		return false
	}
	if s.provider.Snapshot(courseID).Completed(w.LessonID) {
		return false
	}
	s.Complete(ctx, courseID, w)
	return true
}

// Unsynced lists the lessons whose backend write failed, as course/lesson.
func (s *Syncer) Unsynced() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.unsynced))
	for k := range s.unsynced {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Resync sends every unsynced lesson again. Lessons that fail stay
// unsynced; the returned error joins their failures.
func (s *Syncer) Resync(ctx context.Context) error {
	s.mu.Lock()
	todo := make([]pending, 0, len(s.unsynced))
	for _, p := range s.unsynced {
		todo = append(todo, p)
	}
	s.mu.Unlock()

	var errs []error
	for _, p := range todo {
		if err := s.put(ctx, p.courseID, p.watch); err != nil {
			errs = append(errs, fmt.Errorf("lesson %s: %w", p.watch.LessonID, err))
			continue
		}
		s.mu.Lock()
		delete(s.unsynced, key(p.courseID, p.watch.LessonID))
		s.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (s *Syncer) put(ctx context.Context, courseID string, w Watch) error {
	endpoint := "/progress/courses/" + url.PathEscape(courseID) + "/videos/" + url.PathEscape(w.LessonID)
	body := progressUp{
		WatchTime:     w.WatchTime,
		Completed:     true,
		TotalDuration: w.Duration,
	}
	return s.client.Put(ctx, endpoint, body, nil)
}

// Load fetches the course progress from the backend and replaces the
// local snapshot with it.
func (s *Syncer) Load(ctx context.Context, courseID string) (Snapshot, error) {
	var data json.RawMessage
	if err := s.client.Get(ctx, "/progress/course/"+url.PathEscape(courseID), &data); err != nil {
		return Snapshot{}, fmt.Errorf("loading progress of course %s: %w", courseID, err)
	}

	var wp wireProgress
	if len(data) > 0 {
		if err := api.Pick(data, "progress", &wp); err != nil {
			return Snapshot{}, fmt.Errorf("decoding progress: %w", err)
		}
	}

	snap := wp.snapshot()
	s.provider.Replace(courseID, snap)
	return snap, nil
}

func key(courseID, lessonID string) string { return courseID + "/" + lessonID }

type wireProgress struct {
	CompletionPercentage json.Number       `json:"completionPercentage"`
	Percentage           json.Number       `json:"percentage"`
	CompletedLessons     []json.RawMessage `json:"completedLessons"`
	CompletedVideos      []json.RawMessage `json:"completedVideos"`
	TotalTimeSpent       json.Number       `json:"totalTimeSpent"`
}

func (w wireProgress) snapshot() Snapshot {
	snap := Snapshot{
		CompletionPercentage: number(w.CompletionPercentage, w.Percentage),
		TotalTimeSpent:       number(w.TotalTimeSpent),
		CompletedLessons:     []string{},
	}

	for _, raw := range append(w.CompletedLessons, w.CompletedVideos...) {
		if id := lessonID(raw); id != "" && !snap.Completed(id) {
			snap.CompletedLessons = append(snap.CompletedLessons, id)
		}
	}
	return snap
}

// lessonID reads a completed lesson given either as its id or as an
// object naming it.
func lessonID(raw json.RawMessage) string {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}

	var obj struct {
		LessonID string `json:"lessonId"`
		VideoID  string `json:"videoId"`
		ID       string `json:"id"`
		MongoID  string `json:"_id"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	for _, v := range []string{obj.LessonID, obj.VideoID, obj.ID, obj.MongoID} {
		if v != "" {
			return v
		}
	}
	return ""
}

func number(vals ...json.Number) float64 {
	for _, v := range vals {
		s := strings.Trim(string(v), `"`)
		if s == "" {
			continue
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return 0
}
