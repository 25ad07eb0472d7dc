package upload

import (
	"io"
	"os"
)

// handle is the open file behind a staged video. Readers are section
// readers, so a preview and an upload never share a file offset.
type handle struct {
	f    *os.File
	size int64
}

func (h handle) reader() *io.SectionReader {
	return io.NewSectionReader(h.f, 0, h.size)
}

func (h handle) close() error {
	if h.f == nil {
		return nil
	}
	return h.f.Close()
}
