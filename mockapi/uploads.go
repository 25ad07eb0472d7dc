package mockapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/irsalhamdi/lms-client/api/web"
	"github.com/irsalhamdi/lms-client/api/weberr"
	"github.com/irsalhamdi/lms-client/core/course"
)

const (
	maxFieldSize = 64 << 10
	sniffSize    = 3072
)

type uploadedFile struct {
	name      string
	mediaType string
	extension string
	size      int64
}

type videoOut struct {
	ID        string  `json:"id"`
	URL       string  `json:"url"`
	Title     string  `json:"title"`
	Duration  float64 `json:"duration"`
	Order     int     `json:"order"`
	Size      int64   `json:"size"`
	MediaType string  `json:"mediaType"`
}

func handleUploadVideo(st *Store, mediaURL string, maxSize int64) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		if _, err := ownedCourse(ctx, st, courseID); err != nil {
			return err
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxSize+maxFieldSize)
		fields, file, err := readMultipart(r, "video")
		if err != nil {
			return err
		}
		if file == nil {
			return weberr.BadRequest(errors.New("video file is required"))
		}
		if !strings.HasPrefix(file.mediaType, "video/") {
			return weberr.NewError(
				fmt.Errorf("%s is %s", file.name, file.mediaType),
				"only video files are accepted",
				http.StatusUnsupportedMediaType,
			)
		}
		if file.size > maxSize {
			return weberr.NewError(
				fmt.Errorf("%s is %d bytes", file.name, file.size),
				"video exceeds the size limit",
				http.StatusRequestEntityTooLarge,
			)
		}

		title := strings.TrimSpace(fields["title"])
		if title == "" {
			return weberr.BadRequest(errors.New("title is required"))
		}

		duration, _ := strconv.ParseFloat(fields["duration"], 64)
		order, _ := strconv.Atoi(fields["order"])

		id := uuid.NewString()
		l, err := st.AddLesson(courseID, course.Lesson{
			ID:          id,
			Title:       title,
			Description: fields["description"],
			VideoURL:    mediaURL + "/videos/" + id + file.extension,
			Duration:    duration,
			Order:       order,
		})
		if err != nil {
			return weberr.NotFound(fmt.Errorf("course[%s]: %w", courseID, err))
		}

		out := videoOut{
			ID:        l.ID,
			URL:       l.VideoURL,
			Title:     l.Title,
			Duration:  l.Duration,
			Order:     l.Order,
			Size:      file.size,
			MediaType: file.mediaType,
		}

		return web.Respond(ctx, w, struct {
			Video videoOut `json:"video"`
		}{out}, http.StatusCreated)
	}
}

func handleUploadThumbnail(st *Store, mediaURL string) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		c, err := ownedCourse(ctx, st, courseID)
		if err != nil {
			return err
		}

		r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
		_, file, err := readMultipart(r, "thumbnail")
		if err != nil {
			return err
		}
		if file == nil {
			return weberr.BadRequest(errors.New("thumbnail file is required"))
		}
		if !strings.HasPrefix(file.mediaType, "image/") {
			return weberr.NewError(
				fmt.Errorf("%s is %s", file.name, file.mediaType),
				"only image files are accepted",
				http.StatusUnsupportedMediaType,
			)
		}

		c.Thumbnail = mediaURL + "/thumbnails/" + courseID + file.extension
		st.PutCourse(c)

		return web.Respond(ctx, w, struct {
			Thumbnail string `json:"thumbnail"`
		}{c.Thumbnail}, http.StatusCreated)
	}
}

// readMultipart streams the form, keeping the text fields and measuring
// the file part named fileField. File contents are discarded once sniffed.
func readMultipart(r *http.Request, fileField string) (map[string]string, *uploadedFile, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, nil, weberr.BadRequest(fmt.Errorf("expected a multipart form: %w", err))
	}

	fields := make(map[string]string)
	var file *uploadedFile

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, weberr.BadRequest(fmt.Errorf("reading multipart form: %w", err))
		}

		if part.FormName() != fileField || part.FileName() == "" {
			b, err := io.ReadAll(io.LimitReader(part, maxFieldSize))
			part.Close()
			if err != nil {
				return nil, nil, weberr.BadRequest(fmt.Errorf("reading field %s: %w", part.FormName(), err))
			}
			fields[part.FormName()] = string(b)
			continue
		}

		head := make([]byte, sniffSize)
		n, err := io.ReadFull(part, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			part.Close()
			return nil, nil, fmt.Errorf("reading %s: %w", fileField, err)
		}
		head = head[:n]

		rest, err := io.Copy(io.Discard, part)
		part.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", fileField, err)
		}

		mt := mimetype.Detect(head)
		file = &uploadedFile{
			name:      part.FileName(),
			mediaType: mt.String(),
			extension: mt.Extension(),
			size:      int64(n) + rest,
		}
	}

	return fields, file, nil
}
