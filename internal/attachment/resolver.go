package attachment

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Record is one resolved inbound attachment as surfaced on the wire.
type Record struct {
	ID      int64  `json:"id,omitempty"`
	Path    string `json:"path"`
	Mime    string `json:"mime_type,omitempty"`
	Missing bool   `json:"missing"`
}

// NormalizePath turns a raw store-reported attachment path into an
// absolute one: file:// and ~/ forms are expanded, relative paths resolve
// against the store's attachment root. Inbound paths come from the trusted
// store, so no containment check happens here.
func NormalizePath(raw, attachmentRoot string) string {
	if raw == "" {
		return ""
	}
	p := strings.TrimPrefix(raw, "file://")
	if strings.HasPrefix(p, "~/") {
		home, _ := os.UserHomeDir()
		p = filepath.Join(home, p[2:])
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(attachmentRoot, p)
}

// Resolver turns raw store attachment rows into existence-checked,
// MIME-typed, display-ready records, transcoding HEIC images to JPEG when
// a transcoder is available.
type Resolver struct {
	attachmentRoot string
	cacheDir       string
	transcoders    []Transcoder
	attemptTimeout time.Duration
	quality        int
	logger         *zap.Logger
}

// NewResolver creates a resolver using the default transcoder chain.
func NewResolver(attachmentRoot, cacheDir string, logger *zap.Logger) *Resolver {
	return &Resolver{
		attachmentRoot: attachmentRoot,
		cacheDir:       cacheDir,
		transcoders:    defaultTranscoders(),
		attemptTimeout: 30 * time.Second,
		quality:        80,
		logger:         logger,
	}
}

// NewResolverWithTranscoders creates a resolver with an explicit chain.
func NewResolverWithTranscoders(attachmentRoot, cacheDir string, chain []Transcoder, logger *zap.Logger) *Resolver {
	r := NewResolver(attachmentRoot, cacheDir, logger)
	r.transcoders = chain
	return r
}

// Resolve produces a Record for one store attachment row. A missing file
// or failed transcode never fails resolution; both are surfaced as
// metadata (Missing flag, original HEIC path kept).
func (r *Resolver) Resolve(ctx context.Context, attachmentID int64, rawPath, declaredMime string) Record {
	path := NormalizePath(rawPath, r.attachmentRoot)
	mime := DetermineMime(declaredMime, path)

	if IsHEIC(mime) {
		path, mime = r.transcodeHEIC(ctx, path, mime, attachmentID)
	}

	missing := false
	if _, err := os.Stat(path); err != nil {
		missing = true
	}

	return Record{
		ID:      attachmentID,
		Path:    path,
		Mime:    mime,
		Missing: missing,
	}
}
