package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/tphakala/fieldlog/internal/errors"
)

// Sink delivers the finished document on the device.
type Sink interface {
	Deliver(ctx context.Context, fileName string, data []byte) error
}

// DirSink writes the document into Dir under its generated name.
type DirSink struct {
	Dir string
}

// Deliver implements Sink.
func (s DirSink) Deliver(_ context.Context, fileName string, data []byte) error {
	return writeFile(filepath.Join(s.Dir, fileName), data)
}

// FileSink writes the document to a fixed path, ignoring the generated name.
type FileSink struct {
	Path string
}

// Deliver implements Sink.
func (s FileSink) Deliver(_ context.Context, _ string, data []byte) error {
	return writeFile(s.Path, data)
}

// BufferSink keeps the document in memory for a download response.
type BufferSink struct {
	FileName string
	bytes.Buffer
}

// Deliver implements Sink.
func (s *BufferSink) Deliver(_ context.Context, fileName string, data []byte) error {
	s.FileName = fileName
	s.Reset()
	_, err := s.Write(data)
	return err
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(err).
				Component("export").
				Category(errors.CategoryFileIO).
				Context("path", dir).
				Build()
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New(err).
			Component("export").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return nil
}
