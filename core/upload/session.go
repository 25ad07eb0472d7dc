// Package upload stages lecture videos and sends them to a course.
//
// A Session is the client-side list of dropped files. Each file goes
// through pending (duration being probed), pendingUpload, uploading and
// ends uploaded or failed; failed files can be retried.
package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/irsalhamdi/lms-client/api"
	"github.com/irsalhamdi/lms-client/core/course"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var (
	ErrTitleRequired  = errors.New("a title is required before uploading")
	ErrCourseRequired = errors.New("save the course before uploading videos")
	ErrNotFound       = errors.New("video is not staged")
	ErrBusy           = errors.New("video is uploading")
	ErrNotReady       = errors.New("video metadata is still loading")
	ErrNotFailed      = errors.New("only failed uploads can be retried")
)

type Config struct {
	CourseID string
	Client   *api.Client
	Prober   Prober
	Log      logrus.FieldLogger

	// MaxSize defaults to DefaultMaxSize.
	MaxSize int64

	// Concurrency bounds UploadAll. 1, the default, sends videos strictly
	// one after the other.
	Concurrency int

	// Interval is the minimum time between two upload starts of
	// UploadAll. Zero disables pacing.
	Interval time.Duration
}

type Session struct {
	client      *api.Client
	prober      Prober
	log         logrus.FieldLogger
	maxSize     int64
	concurrency int
	limiter     *rate.Limiter

	mu       sync.Mutex
	courseID string
	videos   []Video
}

func New(cfg Config) *Session {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Prober == nil {
		cfg.Prober = FFProbe{}
	}

	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}

	return &Session{
		client:      cfg.Client,
		prober:      cfg.Prober,
		log:         cfg.Log,
		maxSize:     cfg.MaxSize,
		concurrency: cfg.Concurrency,
		limiter:     rate.NewLimiter(limit, 1),
		courseID:    cfg.CourseID,
	}
}

// SetCourse binds the session to a course saved after files were staged.
func (s *Session) SetCourse(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courseID = id
}

// Videos returns a copy of the staged videos in upload order.
func (s *Session) Videos() []Video {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Video(nil), s.videos...)
}

func (s *Session) Video(id string) (Video, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return Video{}, false
	}
	return s.videos[i], true
}

// Admit stages the files at paths. Files that are not an allowed video or
// exceed the size ceiling are skipped; the returned error joins every
// rejection. A failed duration probe does not reject a file, it is staged
// with a zero duration.
func (s *Session) Admit(ctx context.Context, paths ...string) ([]Video, error) {
	var (
		admitted []Video
		rejected []error
	)

	for _, p := range paths {
		v, err := s.inspect(p)
		if err != nil {
			s.log.WithError(err).WithField("path", p).Warn("file rejected")
			rejected = append(rejected, err)
			continue
		}
		admitted = append(admitted, v)
	}

	s.mu.Lock()
	base := len(s.videos)
	for i := range admitted {
		admitted[i].Order = base + i + 1
	}
	s.videos = append(s.videos, admitted...)
	s.mu.Unlock()

	for i := range admitted {
		v := &admitted[i]

		d, err := s.prober.Duration(ctx, v.Path)
		if err != nil {
			s.log.WithError(err).WithField("path", v.Path).Warn("duration unavailable, staging without it")
			d = 0
		}

		s.mutate(v.ID, func(sv *Video) {
			sv.Duration = d
			sv.Status = StatusPendingUpload
		})
	}

	for i := range admitted {
		if cur, ok := s.Video(admitted[i].ID); ok {
			admitted[i] = cur
		}
	}

	return admitted, errors.Join(rejected...)
}

func (s *Session) inspect(path string) (Video, error) {
	f, err := os.Open(path)
	if err != nil {
		return Video{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return Video{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if fi.IsDir() {
		f.Close()
		return Video{}, fmt.Errorf("%s: is a directory", filepath.Base(path))
	}
	if fi.Size() > s.maxSize {
		f.Close()
		return Video{}, fmt.Errorf("%s: %d bytes exceeds the %d bytes limit", filepath.Base(path), fi.Size(), s.maxSize)
	}

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return Video{}, fmt.Errorf("%s: detecting media type: %w", filepath.Base(path), err)
	}
	if !allowed(mt) {
		f.Close()
		return Video{}, fmt.Errorf("%s: %s is not an accepted video type", filepath.Base(path), mt.String())
	}

	name := filepath.Base(path)
	return Video{
		ID:        uuid.NewString(),
		Path:      path,
		MediaType: mt.String(),
		Size:      fi.Size(),
		Title:     strings.TrimSuffix(name, filepath.Ext(name)),
		Status:    StatusPending,
		file:      handle{f: f, size: fi.Size()},
	}, nil
}

func allowed(mt *mimetype.MIME) bool {
	for _, t := range AllowedTypes {
		if mt.Is(t) {
			return true
		}
	}
	return false
}

// Preview returns a reader over the staged file.
func (s *Session) Preview(id string) (*io.SectionReader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	return s.videos[i].file.reader(), nil
}

// Edit changes the title and description of a video not yet sent.
func (s *Session) Edit(id, title, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return ErrNotFound
	}
	v := &s.videos[i]
	if v.Status == StatusUploading {
		return ErrBusy
	}
	v.Title = title
	v.Description = description
	return nil
}

// Remove unstages a video, releases its file and renumbers the rest.
func (s *Session) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return ErrNotFound
	}
	if s.videos[i].Status == StatusUploading {
		return ErrBusy
	}

	if err := s.videos[i].file.close(); err != nil {
		s.log.WithError(err).WithField("video", id).Warn("closing staged file")
	}
	s.videos = course.Remove(s.videos, i)
	return nil
}

func (s *Session) MoveUp(id string) bool   { return s.move(id, -1) }
func (s *Session) MoveDown(id string) bool { return s.move(id, 1) }

func (s *Session) move(id string, delta int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return course.Move(s.videos, s.index(id), delta)
}

// Upload sends one staged video. Videos without a title, or a session
// without a course, are refused before any request is made.
func (s *Session) Upload(ctx context.Context, id string) error {
	return s.start(ctx, id, StatusPendingUpload)
}

// Retry sends a failed video again.
func (s *Session) Retry(ctx context.Context, id string) error {
	return s.start(ctx, id, StatusFailed)
}

func (s *Session) start(ctx context.Context, id string, from Status) error {
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}

	v := &s.videos[i]
	if err := checkStart(v.Status, from); err != nil {
		s.mu.Unlock()
		return err
	}
	if strings.TrimSpace(v.Title) == "" {
		s.mu.Unlock()
		return ErrTitleRequired
	}
	if s.courseID == "" {
		s.mu.Unlock()
		return ErrCourseRequired
	}

	v.Status = StatusUploading
	v.Err = ""
	snap := *v
	courseID := s.courseID
	s.mu.Unlock()

	log := s.log.WithFields(logrus.Fields{"video": id, "course": courseID, "order": snap.Order})
	log.Info("upload started")

	res, err := s.send(ctx, courseID, snap)
	if err != nil {
		log.WithError(err).Warn("upload failed")
		s.mutate(id, func(v *Video) {
			v.Status = StatusFailed
			v.Err = err.Error()
		})
		return fmt.Errorf("uploading %s: %w", snap.Title, err)
	}

	log.WithField("url", res.url).Info("upload completed")
	s.mutate(id, func(v *Video) {
		v.Status = StatusUploaded
		v.MediaURL = res.url
		v.MediaID = res.id
	})
	return nil
}

func checkStart(cur, from Status) error {
	switch {
	case cur == from:
		return nil
	case cur == StatusUploading:
		return ErrBusy
	case cur == StatusPending:
		return ErrNotReady
	case from == StatusFailed:
		return ErrNotFailed
	}
	return fmt.Errorf("video is %s", cur)
}

type result struct {
	id  string
	url string
}

func (s *Session) send(ctx context.Context, courseID string, v Video) (result, error) {
	form := api.NewForm().
		Set("title", strings.TrimSpace(v.Title)).
		Set("description", v.Description).
		Set("duration", strconv.FormatFloat(v.Duration, 'f', -1, 64)).
		Set("order", strconv.Itoa(v.Order)).
		File("video", filepath.Base(v.Path), v.MediaType, v.file.reader())

	var data json.RawMessage
	endpoint := "/uploads/course/" + url.PathEscape(courseID) + "/video"
	if err := s.client.Post(ctx, endpoint, form, &data); err != nil {
		return result{}, err
	}

	var rv struct {
		ID        string `json:"id"`
		MongoID   string `json:"_id"`
		PublicID  string `json:"publicId"`
		URL       string `json:"url"`
		VideoURL  string `json:"videoUrl"`
		SecureURL string `json:"secure_url"`
	}
	if len(data) > 0 {
		if err := api.Pick(data, "video", &rv); err != nil {
			return result{}, fmt.Errorf("decoding upload response: %w", err)
		}
	}

	return result{
		id:  first(rv.ID, rv.MongoID, rv.PublicID),
		url: first(rv.URL, rv.VideoURL, rv.SecureURL),
	}, nil
}

// Summary lists video ids by outcome of an UploadAll run.
type Summary struct {
	Uploaded []string
	Failed   []string
	Skipped  []string
}

// UploadAll sends every staged video that is ready, in order, through a
// pool bounded by the session concurrency. Videos missing a title are
// skipped. One failure does not stop the others.
func (s *Session) UploadAll(ctx context.Context) (Summary, error) {
	var (
		sum   Summary
		ready []string
	)

	s.mu.Lock()
	if s.courseID == "" {
		s.mu.Unlock()
		return sum, ErrCourseRequired
	}
	for _, v := range s.videos {
		switch {
		case v.Ready():
			ready = append(ready, v.ID)
		case v.Status == StatusPendingUpload:
			sum.Skipped = append(sum.Skipped, v.ID)
		}
	}
	s.mu.Unlock()

	var (
		g       errgroup.Group
		mu      sync.Mutex
		stopErr error
	)
	g.SetLimit(s.concurrency)

	for _, id := range ready {
		if err := s.limiter.Wait(ctx); err != nil {
			stopErr = err
			break
		}

		id := id
		g.Go(func() error {
			err := s.Upload(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				sum.Failed = append(sum.Failed, id)
				return nil
			}
			sum.Uploaded = append(sum.Uploaded, id)
			return nil
		})
	}
	_ = g.Wait()

	if stopErr != nil {
		return sum, fmt.Errorf("bulk upload interrupted: %w", stopErr)
	}
	return sum, nil
}

// Close releases every staged file. The session is empty afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, v := range s.videos {
		if err := v.file.close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.videos = nil
	return errors.Join(errs...)
}

func (s *Session) index(id string) int {
	for i := range s.videos {
		if s.videos[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) mutate(id string, fn func(*Video)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(id); i >= 0 {
		fn(&s.videos[i])
	}
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
