package upload

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type Status string

const (
	StatusPending       Status = "pending"
	StatusPendingUpload Status = "pendingUpload"
	StatusUploading     Status = "uploading"
	StatusUploaded      Status = "uploaded"
	StatusFailed        Status = "failed"
)

// DefaultMaxSize is the largest file admitted, in bytes.
const DefaultMaxSize int64 = 100 << 20

// AllowedTypes are the media types admitted for lecture videos.
var AllowedTypes = []string{
	"video/mp4",
	"video/webm",
	"video/ogg",
	"video/quicktime",
	"video/x-msvideo",
	"video/x-matroska",
	"video/mpeg",
}

// Video is a file staged for upload. Its handle stays open from admission
// until the video is removed or the session closed.
type Video struct {
	ID          string  `json:"id"`
	Path        string  `json:"path"`
	MediaType   string  `json:"mediaType"`
	Size        int64   `json:"size"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Duration    float64 `json:"duration"`
	Order       int     `json:"order"`
	Status      Status  `json:"status"`
	MediaURL    string  `json:"mediaUrl,omitempty"`
	MediaID     string  `json:"mediaId,omitempty"`
	Err         string  `json:"error,omitempty"`

	file handle
}

func (v *Video) SetOrder(n int) { v.Order = n }

// Ready reports whether the video may be sent as is.
func (v Video) Ready() bool {
	return v.Status == StatusPendingUpload && strings.TrimSpace(v.Title) != ""
}

// Prober extracts the duration, in seconds, of a media file.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

type ProberFunc func(ctx context.Context, path string) (float64, error)

func (f ProberFunc) Duration(ctx context.Context, path string) (float64, error) { return f(ctx, path) }

// FFProbe shells out to ffprobe.
type FFProbe struct {
	Binary string
}

func (p FFProbe) Duration(ctx context.Context, path string) (float64, error) {
	bin := p.Binary
	if bin == "" {
		bin = "ffprobe"
	}

	out, err := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("running %s: %w", bin, err)
	}

	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return d, nil
}
