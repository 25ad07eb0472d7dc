package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// Form is a multipart body. The content type, boundary included, is
// produced by the multipart writer; callers never set it.
type Form struct {
	fields   [][2]string
	field    string
	filename string
	fileType string
	file     io.Reader

	// done is closed once the encoding goroutine has returned.
	done chan struct{}
}

func NewForm() *Form { return &Form{} }

func (f *Form) Set(name, value string) *Form {
	f.fields = append(f.fields, [2]string{name, value})
	return f
}

// File attaches the single file part of the form.
func (f *Form) File(field, filename, contentType string, r io.Reader) *Form {
	f.field = field
	f.filename = filename
	f.fileType = contentType
	f.file = r
	return f
}

// reader streams the encoded form so large videos are never buffered in
// memory.
func (f *Form) reader() (*io.PipeReader, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	f.done = make(chan struct{})

	go func() {
		defer close(f.done)
		pw.CloseWithError(f.write(mw))
	}()

	return pr, mw.FormDataContentType()
}

func (f *Form) write(mw *multipart.Writer) error {
	for _, kv := range f.fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return fmt.Errorf("writing field %s: %w", kv[0], err)
		}
	}

	if f.file != nil {
		ct := f.fileType
		if ct == "" {
			ct = "application/octet-stream"
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(f.field), escapeQuotes(f.filename)))
		h.Set("Content-Type", ct)

		part, err := mw.CreatePart(h)
		if err != nil {
			return fmt.Errorf("creating file part: %w", err)
		}
		if _, err := io.Copy(part, f.file); err != nil {
			return fmt.Errorf("copying file part: %w", err)
		}
	}

	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }
