package send

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestStagePreservesExtension(t *testing.T) {
	dir := t.TempDir()
	s := NewStager(filepath.Join(dir, "staging"), time.Hour, zap.NewNop())

	src := filepath.Join(dir, "photo.jpeg")
	if err := os.WriteFile(src, []byte("img"), 0600); err != nil {
		t.Fatal(err)
	}

	staged, err := s.Stage(src)
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if filepath.Ext(staged) != ".jpeg" {
		t.Errorf("staged ext = %q, want .jpeg", filepath.Ext(staged))
	}
	if strings.Contains(filepath.Base(staged), "photo") {
		t.Errorf("staged name %q leaks the source name", staged)
	}

	data, err := os.ReadFile(staged)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "img" {
		t.Errorf("staged content = %q", data)
	}

	info, err := os.Stat(staged)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("staged perm = %o, want 0600", perm)
	}
}

func TestStageDropsOverlongExtension(t *testing.T) {
	dir := t.TempDir()
	s := NewStager(filepath.Join(dir, "staging"), time.Hour, zap.NewNop())

	src := filepath.Join(dir, "file.thisextensionistoolong")
	if err := os.WriteFile(src, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	staged, err := s.Stage(src)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Ext(staged) != "" {
		t.Errorf("staged ext = %q, want none", filepath.Ext(staged))
	}
}

func TestStageSweepsExpired(t *testing.T) {
	dir := t.TempDir()
	stagingDir := filepath.Join(dir, "staging")
	if err := os.MkdirAll(stagingDir, 0700); err != nil {
		t.Fatal(err)
	}

	old := filepath.Join(stagingDir, "stale.png")
	if err := os.WriteFile(old, []byte("old"), 0600); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	fresh := filepath.Join(stagingDir, "fresh.png")
	if err := os.WriteFile(fresh, []byte("new"), 0600); err != nil {
		t.Fatal(err)
	}

	s := NewStager(stagingDir, 24*time.Hour, zap.NewNop())
	src := filepath.Join(dir, "in.png")
	if err := os.WriteFile(src, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Stage(src); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("expired staged file not swept")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh staged file swept")
	}
}

func TestStageMissingSource(t *testing.T) {
	s := NewStager(filepath.Join(t.TempDir(), "staging"), time.Hour, zap.NewNop())
	if _, err := s.Stage("/nonexistent/file.png"); err == nil {
		t.Error("Stage() = nil for missing source")
	}
}
