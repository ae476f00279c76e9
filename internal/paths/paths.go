package paths

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.imsg.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".imsg")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// LockPath returns the daemon lock file path.
func LockPath() string {
	return filepath.Join(BaseDir(), "LOCK")
}

// CheckpointPath returns the poll checkpoint file path.
func CheckpointPath() string {
	return filepath.Join(BaseDir(), "checkpoint.json")
}

// TranscodeCacheDir returns the directory holding transcoded inbound
// attachments, keyed by attachment id.
func TranscodeCacheDir() string {
	return filepath.Join(BaseDir(), "cache", "transcoded")
}

// OutboundDir returns the default directory outbound attachment sources
// must live in.
func OutboundDir() string {
	return filepath.Join(BaseDir(), "outbound")
}

// StagingDir returns the default staging directory for outbound files.
// Messages can only attach files from user-media-like locations, so the
// default lives under ~/Pictures rather than the base dir.
func StagingDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Pictures", ".imsg-staging")
}

// StorePath returns the default Messages database path.
func StorePath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "Messages", "chat.db")
}

// AttachmentRoot returns the directory the store keeps inbound
// attachments under.
func AttachmentRoot() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "Messages", "Attachments")
}

// LogDir returns the daemon log directory.
func LogDir() string {
	return filepath.Join(BaseDir(), "logs")
}

// LogPath returns the daemon log file path.
func LogPath() string {
	return filepath.Join(LogDir(), "imsgd.log")
}

// EnsureDirs creates the base directory tree with proper permissions.
func EnsureDirs() error {
	dirs := []string{
		BaseDir(),
		LogDir(),
		TranscodeCacheDir(),
		OutboundDir(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
