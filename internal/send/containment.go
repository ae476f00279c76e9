package send

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Containment failures. These are policy rejections, never retried; the
// only bypass is the explicit AllowArbitrary opt-out.
var (
	ErrNotContained = errors.New("file is outside the outbound directory")
	ErrSymlink      = errors.New("symlinked files are not allowed")
	ErrNotRegular   = errors.New("not a regular file")
	ErrTooLarge     = errors.New("file exceeds the attachment size limit")
)

// Policy controls which local files may leave the machine as outbound
// attachments. Whoever can trigger a send could otherwise exfiltrate any
// readable file through the messaging channel.
type Policy struct {
	// OutboundRoot is the only directory outbound sources may live in.
	OutboundRoot string
	// AllowArbitrary disables the containment and symlink checks.
	AllowArbitrary bool
	// MaxBytes caps the source file size. 0 means unlimited.
	MaxBytes int64
}

// CheckSource validates an outbound source file before staging. The check
// applies to the pre-staging source; the staged copy is already ours.
func (p Policy) CheckSource(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("outbound file: %w", err)
	}

	if !p.AllowArbitrary {
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: %s", ErrSymlink, path)
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("%w: %s", ErrNotRegular, path)
		}
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("resolve outbound file: %w", err)
		}
		root, err := filepath.EvalSymlinks(p.OutboundRoot)
		if err != nil {
			return fmt.Errorf("resolve outbound root: %w", err)
		}
		if !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
			return fmt.Errorf("%w: %s", ErrNotContained, path)
		}
	} else {
		// Even trusted deployments can only send real files.
		resolved, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("outbound file: %w", err)
		}
		if !resolved.Mode().IsRegular() {
			return fmt.Errorf("%w: %s", ErrNotRegular, path)
		}
		info = resolved
	}

	if p.MaxBytes > 0 && info.Size() > p.MaxBytes {
		return fmt.Errorf("%w: %d bytes > %d", ErrTooLarge, info.Size(), p.MaxBytes)
	}
	return nil
}

// IsPolicyViolation reports whether an error is a containment rejection
// rather than an I/O fault.
func IsPolicyViolation(err error) bool {
	return errors.Is(err, ErrNotContained) ||
		errors.Is(err, ErrSymlink) ||
		errors.Is(err, ErrNotRegular) ||
		errors.Is(err, ErrTooLarge)
}
