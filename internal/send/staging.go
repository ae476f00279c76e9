package send

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxStagedExt bounds the extension preserved on a staged filename.
const maxStagedExt = 12

// Stager copies outbound files into a staging directory the Messages
// automation surface is allowed to read from. Filenames are randomized so
// a caller-controlled name never reaches the filesystem; only the original
// extension survives.
type Stager struct {
	dir    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewStager creates a stager for the given directory and TTL.
func NewStager(dir string, ttl time.Duration, logger *zap.Logger) *Stager {
	return &Stager{dir: dir, ttl: ttl, logger: logger}
}

// Stage copies src into the staging directory under a random name and
// returns the staged path. Every call also sweeps expired staged files.
func (s *Stager) Stage(src string) (string, error) {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	s.sweep()

	ext := filepath.Ext(src)
	if len(ext) > maxStagedExt {
		ext = ""
	}
	dst := filepath.Join(s.dir, uuid.NewString()+ext)

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("copy to staging: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("close staged file: %w", err)
	}
	return dst, nil
}

// sweep best-effort deletes staged files older than the TTL. Failures are
// logged and ignored; an undeleted staged file only costs disk.
func (s *Stager) sweep() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-s.ttl)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
				s.logger.Warn("staging sweep", zap.String("file", entry.Name()), zap.Error(err))
			}
		}
	}
}
