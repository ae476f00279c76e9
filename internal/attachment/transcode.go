package attachment

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/matheus3301/imsg/internal/fallback"
	"go.uber.org/zap"
)

// Transcoder converts one image file to JPEG. It must produce a non-empty
// output file or report an error.
type Transcoder interface {
	Name() string
	Transcode(ctx context.Context, inPath, outPath string, quality int) error
}

// commandTranscoder shells out to an external image tool.
type commandTranscoder struct {
	name string
	bin  string
	args func(in, out string, quality int) []string
}

func (t *commandTranscoder) Name() string { return t.name }

func (t *commandTranscoder) Transcode(ctx context.Context, inPath, outPath string, quality int) error {
	cmd := exec.CommandContext(ctx, t.bin, t.args(inPath, outPath, quality)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w (%s)", t.bin, err, string(out))
	}
	info, err := os.Stat(outPath)
	if err != nil {
		return fmt.Errorf("%s produced no output: %w", t.bin, err)
	}
	if info.Size() == 0 {
		_ = os.Remove(outPath)
		return fmt.Errorf("%s produced empty output", t.bin)
	}
	return nil
}

// defaultTranscoders is the HEIC conversion chain, tried in order.
func defaultTranscoders() []Transcoder {
	return []Transcoder{
		&commandTranscoder{
			name: "sips",
			bin:  "sips",
			args: func(in, out string, q int) []string {
				return []string{
					"--setProperty", "format", "jpeg",
					"--setProperty", "formatOptions", strconv.Itoa(q),
					in, "--out", out,
				}
			},
		},
		&commandTranscoder{
			name: "imagemagick",
			bin:  "magick",
			args: func(in, out string, q int) []string {
				return []string{in, "-quality", strconv.Itoa(q), out}
			},
		},
		&commandTranscoder{
			name: "heif-convert",
			bin:  "heif-convert",
			args: func(in, out string, q int) []string {
				return []string{"-q", strconv.Itoa(q), in, out}
			},
		},
	}
}

// transcodeHEIC converts a HEIC attachment to JPEG under the cache dir.
// The output path is derived from the attachment id, so repeated polls of
// the same attachment reuse the first successful conversion. If every
// transcoder fails, the original path and MIME are returned unchanged.
func (r *Resolver) transcodeHEIC(ctx context.Context, path, mime string, attachmentID int64) (string, string) {
	if attachmentID <= 0 || len(r.transcoders) == 0 {
		return path, mime
	}
	outPath := filepath.Join(r.cacheDir, fmt.Sprintf("%d.jpg", attachmentID))

	if info, err := os.Stat(outPath); err == nil && info.Size() > 0 {
		return outPath, "image/jpeg"
	}

	if err := os.MkdirAll(r.cacheDir, 0700); err != nil {
		r.logger.Warn("transcode cache dir", zap.Error(err))
		return path, mime
	}

	steps := make([]fallback.Step, 0, len(r.transcoders))
	for _, tc := range r.transcoders {
		tc := tc
		steps = append(steps, fallback.Step{
			Name: tc.Name(),
			Run: func(ctx context.Context) error {
				ctx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
				defer cancel()
				return tc.Transcode(ctx, path, outPath, r.quality)
			},
		})
	}

	winner, err := fallback.First(ctx, steps)
	if err != nil {
		r.logger.Warn("all transcoders failed",
			zap.Int64("attachment_id", attachmentID),
			zap.Error(err))
		return path, mime
	}
	r.logger.Info("attachment transcoded",
		zap.Int64("attachment_id", attachmentID),
		zap.String("transcoder", winner))
	return outPath, "image/jpeg"
}
