package poll

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/matheus3301/imsg/internal/chatdb"
)

// Checkpoint is the persisted high-water mark of the inbound store scan,
// in store-native units. It only ever moves forward.
type Checkpoint struct {
	LastSeen chatdb.AppleTime
}

// CheckpointStore is the persistence port for the checkpoint. The engine
// owns when to load and save; the store owns where.
type CheckpointStore interface {
	// Load returns the checkpoint and whether one was present.
	Load() (Checkpoint, bool, error)
	// Save persists the checkpoint.
	Save(Checkpoint) error
}

const (
	// staleAfter bounds how old a loaded checkpoint may be before it is
	// discarded. Replaying a week of backlog after a long shutdown helps
	// nobody.
	staleAfter = 24 * time.Hour
	// defaultLookback is the scan window used when no usable checkpoint
	// exists.
	defaultLookback = 30 * time.Minute
)

// Bootstrap produces the starting checkpoint: the persisted one if it is
// fresh enough, otherwise a short lookback from now. Load failures fall
// back to the lookback rather than erroring; the poller can always start.
func Bootstrap(store CheckpointStore, now time.Time) Checkpoint {
	fallback := Checkpoint{LastSeen: chatdb.FromWallClock(now.Add(-defaultLookback))}
	if store == nil {
		return fallback
	}
	cp, ok, err := store.Load()
	if err != nil || !ok {
		return fallback
	}
	if cp.LastSeen.WallClock().Before(now.Add(-staleAfter)) {
		return fallback
	}
	return cp
}

// checkpointFile is the on-disk shape. The timestamp is string-encoded to
// keep the full fixed-point integer intact across JSON readers.
type checkpointFile struct {
	LastSeenTimestamp string    `json:"last_seen_timestamp"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// FileStore persists the checkpoint as a small JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed checkpoint store.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the checkpoint file. A missing file is not an error.
func (s *FileStore) Load() (Checkpoint, bool, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("read checkpoint: %w", err)
	}
	var f checkpointFile
	if err := json.Unmarshal(data, &f); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	v, err := strconv.ParseInt(f.LastSeenTimestamp, 10, 64)
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint timestamp: %w", err)
	}
	return Checkpoint{LastSeen: chatdb.AppleTime(v)}, true, nil
}

// Save rewrites the checkpoint file atomically.
func (s *FileStore) Save(cp Checkpoint) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	data, err := json.Marshal(checkpointFile{
		LastSeenTimestamp: strconv.FormatInt(int64(cp.LastSeen), 10),
		UpdatedAt:         time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}
