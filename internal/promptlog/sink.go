package promptlog

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"planextract/internal/port"
)

// DirSink writes prompt dumps as files under a local directory.
type DirSink struct {
	dir string
}

// NewDirSink creates a DirSink rooted at dir. The directory is created on
// first save.
func NewDirSink(dir string) *DirSink {
	return &DirSink{dir: dir}
}

// Save writes payload to dir/name.
func (s *DirSink) Save(_ context.Context, name string, payload []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating prompt log dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), payload, 0o644); err != nil {
		return fmt.Errorf("writing prompt log: %w", err)
	}
	return nil
}

// ObjectSink uploads prompt dumps to object storage under a key prefix.
type ObjectSink struct {
	storage port.ObjectStorage
	prefix  string
}

// NewObjectSink creates an ObjectSink.
func NewObjectSink(storage port.ObjectStorage, prefix string) *ObjectSink {
	return &ObjectSink{storage: storage, prefix: prefix}
}

// Save uploads payload as prefix/name.
func (s *ObjectSink) Save(ctx context.Context, name string, payload []byte) error {
	_, err := s.storage.Upload(ctx, port.UploadInput{
		Key:         path.Join(s.prefix, name),
		Body:        bytes.NewReader(payload),
		ContentType: "application/json",
	})
	return err
}
