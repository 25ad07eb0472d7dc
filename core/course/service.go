package course

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/irsalhamdi/lms-client/api"
	"github.com/irsalhamdi/lms-client/validate"
)

// ErrNotConfirmed is returned when a delete was not confirmed by the user.
var ErrNotConfirmed = errors.New("course deletion was not confirmed")

// Confirm asks the user whether c may be deleted.
type Confirm func(c Course) bool

type Service struct {
	client *api.Client
}

func NewService(client *api.Client) *Service {
	return &Service{client: client}
}

func (s *Service) List(ctx context.Context) ([]Course, error) {
	return s.list(ctx, "/courses")
}

// ListMine returns the courses of the logged in instructor.
func (s *Service) ListMine(ctx context.Context) ([]Course, error) {
	return s.list(ctx, "/courses/instructor/my-courses")
}

func (s *Service) list(ctx context.Context, endpoint string) ([]Course, error) {
	var data json.RawMessage
	if err := s.client.Get(ctx, endpoint, &data); err != nil {
		return nil, fmt.Errorf("listing courses: %w", err)
	}
	if len(data) == 0 {
		return []Course{}, nil
	}

	var items []json.RawMessage
	if err := api.Pick(data, "courses", &items); err != nil {
		return nil, fmt.Errorf("decoding course list: %w", err)
	}
	return NormalizeList(items)
}

func (s *Service) Get(ctx context.Context, id string) (Course, error) {
	var data json.RawMessage
	if err := s.client.Get(ctx, "/courses/"+url.PathEscape(id), &data); err != nil {
		return Course{}, fmt.Errorf("fetching course[%s]: %w", id, err)
	}
	return pickCourse(data)
}

func (s *Service) Create(ctx context.Context, cn CourseNew) (Course, error) {
	if err := prepare(&cn); err != nil {
		return Course{}, err
	}

	var data json.RawMessage
	if err := s.client.Post(ctx, "/courses", cn, &data); err != nil {
		return Course{}, fmt.Errorf("creating course: %w", err)
	}
	return pickCourse(data)
}

func (s *Service) Update(ctx context.Context, id string, cn CourseNew) (Course, error) {
	if err := prepare(&cn); err != nil {
		return Course{}, err
	}

	var data json.RawMessage
	if err := s.client.Put(ctx, "/courses/"+url.PathEscape(id), cn, &data); err != nil {
		return Course{}, fmt.Errorf("updating course[%s]: %w", id, err)
	}
	return pickCourse(data)
}

// Delete removes c once confirm agrees.
func (s *Service) Delete(ctx context.Context, c Course, confirm Confirm) error {
	if confirm == nil || !confirm(c) {
		return ErrNotConfirmed
	}

	if err := s.client.Delete(ctx, "/courses/"+url.PathEscape(c.ID), nil); err != nil {
		return fmt.Errorf("deleting course[%s]: %w", c.ID, err)
	}
	return nil
}

// UploadThumbnail sends an image file as the course thumbnail and returns
// its URL.
func (s *Service) UploadThumbnail(ctx context.Context, courseID, path string) (string, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detecting thumbnail type: %w", err)
	}
	if !isImage(mt) {
		return "", fmt.Errorf("thumbnail %s is %s, not an image", filepath.Base(path), mt.String())
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening thumbnail: %w", err)
	}
	defer f.Close()

	form := api.NewForm().File("thumbnail", filepath.Base(path), mt.String(), f)

	var data struct {
		Thumbnail string `json:"thumbnail"`
		URL       string `json:"url"`
	}
	endpoint := "/uploads/course/" + url.PathEscape(courseID) + "/thumbnail"
	if err := s.client.Post(ctx, endpoint, form, &data); err != nil {
		return "", fmt.Errorf("uploading thumbnail for course[%s]: %w", courseID, err)
	}

	return firstString(data.Thumbnail, data.URL), nil
}

func isImage(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return true
		}
	}
	return false
}

// prepare renumbers sections and lessons before validating the form, the
// backend expects dense positions.
func prepare(cn *CourseNew) error {
	Renumber(cn.Sections)
	for i := range cn.Sections {
		Renumber(cn.Sections[i].Lessons)
	}
	if err := validate.Check(cn); err != nil {
		return fmt.Errorf("invalid course: %w", err)
	}
	return nil
}

func pickCourse(data json.RawMessage) (Course, error) {
	var raw json.RawMessage
	if err := api.Pick(data, "course", &raw); err != nil {
		return Course{}, fmt.Errorf("decoding course: %w", err)
	}
	return Normalize(raw)
}
