package poll

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/imsg/internal/chatdb"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	s := NewFileStore(path)

	_, ok, err := s.Load()
	if err != nil {
		t.Fatalf("Load() on missing file error = %v", err)
	}
	if ok {
		t.Fatal("Load() on missing file reported a checkpoint")
	}

	want := Checkpoint{LastSeen: chatdb.AppleTime(700_000_000_123_456_789)}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, ok, err := s.Load()
	if err != nil || !ok {
		t.Fatalf("Load() = ok=%v, err=%v", ok, err)
	}
	if got.LastSeen != want.LastSeen {
		t.Errorf("LastSeen = %d, want %d", got.LastSeen, want.LastSeen)
	}

	// The fixed-point value must be string-encoded on disk.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"700000000123456789"`) {
		t.Errorf("checkpoint file = %s, want string-encoded timestamp", data)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := NewFileStore(path).Load(); err == nil {
		t.Error("Load() = nil error for corrupt file")
	}
}

type memStore struct {
	cp    Checkpoint
	ok    bool
	err   error
	saves []Checkpoint
}

func (m *memStore) Load() (Checkpoint, bool, error) { return m.cp, m.ok, m.err }
func (m *memStore) Save(cp Checkpoint) error {
	m.cp, m.ok = cp, true
	m.saves = append(m.saves, cp)
	return nil
}

func TestBootstrapFreshCheckpoint(t *testing.T) {
	now := time.Now()
	cp := Checkpoint{LastSeen: chatdb.FromWallClock(now.Add(-time.Hour))}
	got := Bootstrap(&memStore{cp: cp, ok: true}, now)
	if got.LastSeen != cp.LastSeen {
		t.Errorf("Bootstrap discarded a fresh checkpoint")
	}
}

func TestBootstrapStaleCheckpointDiscarded(t *testing.T) {
	now := time.Now()
	stale := Checkpoint{LastSeen: chatdb.FromWallClock(now.Add(-48 * time.Hour))}
	got := Bootstrap(&memStore{cp: stale, ok: true}, now)

	want := chatdb.FromWallClock(now.Add(-defaultLookback))
	if got.LastSeen != want {
		t.Errorf("LastSeen = %d, want default lookback %d", got.LastSeen, want)
	}
}

func TestBootstrapMissingAndFailedLoad(t *testing.T) {
	now := time.Now()
	want := chatdb.FromWallClock(now.Add(-defaultLookback))

	if got := Bootstrap(&memStore{}, now); got.LastSeen != want {
		t.Errorf("missing checkpoint: LastSeen = %d, want %d", got.LastSeen, want)
	}
	if got := Bootstrap(&memStore{err: os.ErrPermission}, now); got.LastSeen != want {
		t.Errorf("failed load: LastSeen = %d, want %d", got.LastSeen, want)
	}
}
