package poll

const (
	// seenCapacity is the eviction trigger.
	seenCapacity = 2000
	// seenRetain is how many most-recent ids survive an eviction.
	seenRetain = 1500
)

// SeenSet is a bounded set of recently emitted message identities. It
// exists purely for dedup; checkpoint advancement never depends on it.
// Eviction drops the oldest entries by insertion order, an approximation
// of LRU that is cheap and good enough for a dedup window.
type SeenSet struct {
	ids   map[int64]struct{}
	order []int64
}

// NewSeenSet creates an empty seen set.
func NewSeenSet() *SeenSet {
	return &SeenSet{ids: make(map[int64]struct{})}
}

// Has reports whether the identity was already emitted.
func (s *SeenSet) Has(id int64) bool {
	_, ok := s.ids[id]
	return ok
}

// Add records an identity, evicting the oldest entries when over capacity.
func (s *SeenSet) Add(id int64) {
	if s.Has(id) {
		return
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)

	if len(s.order) > seenCapacity {
		drop := len(s.order) - seenRetain
		for _, old := range s.order[:drop] {
			delete(s.ids, old)
		}
		s.order = append([]int64(nil), s.order[drop:]...)
	}
}

// Len returns the current number of tracked identities.
func (s *SeenSet) Len() int {
	return len(s.order)
}
