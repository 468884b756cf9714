package local

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestStorage_RoundTrip(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewStorage() error = %v", err)
	}
	ctx := context.Background()

	if err := s.Upload(ctx, "jobs/abc/chunk-000.wav", strings.NewReader("audio-bytes")); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	ok, err := s.Exists(ctx, "jobs/abc/chunk-000.wav")
	if err != nil || !ok {
		t.Fatalf("Exists() = %v, %v; want true, nil", ok, err)
	}

	rc, err := s.Download(ctx, "jobs/abc/chunk-000.wav")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "audio-bytes" {
		t.Errorf("Download() = %q, want %q", data, "audio-bytes")
	}

	files, err := s.List(ctx, "jobs/abc/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(files) != 1 {
		t.Errorf("List() returned %d files, want 1", len(files))
	}

	if err := s.Delete(ctx, "jobs/abc/chunk-000.wav"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	ok, _ = s.Exists(ctx, "jobs/abc/chunk-000.wav")
	if ok {
		t.Error("file still exists after Delete")
	}
}

func TestStorage_DeleteMissing(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewStorage() error = %v", err)
	}
	if err := s.Delete(context.Background(), "nope.wav"); err != nil {
		t.Errorf("Delete() on missing file should be nil, got %v", err)
	}
}
