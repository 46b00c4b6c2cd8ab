package match

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrMatchNotFound  = errors.New("match not found")
	ErrInvalidMatchID = errors.New("invalid match ID")
)

// Store holds the latest snapshot per match.
// Writes are last-writer-wins; one lock guards the whole map so readers
// never observe a partially written entry.
type Store struct {
	matches map[string]*Snapshot
	mu      sync.RWMutex
	now     func() time.Time
}

// NewStore creates an empty match store
func NewStore() *Store {
	return &Store{
		matches: make(map[string]*Snapshot),
		now:     time.Now,
	}
}

// Upsert replaces the snapshot stored for matchID.
// updatedBy is the ID of the connection that pushed it.
func (s *Store) Upsert(matchID string, snap Snapshot, updatedBy string) (*Snapshot, error) {
	id := CanonicalID(matchID)
	if id == "" {
		return nil, ErrInvalidMatchID
	}

	stored := snap
	stored.MatchID = id
	stored.UpdatedBy = updatedBy
	stored.UpdatedAt = s.now()
	stored.indexInfo()

	s.mu.Lock()
	s.matches[id] = &stored
	s.mu.Unlock()

	return &stored, nil
}

// Get retrieves the snapshot for matchID
func (s *Store) Get(matchID string) (*Snapshot, error) {
	s.mu.RLock()
	snap, exists := s.matches[CanonicalID(matchID)]
	s.mu.RUnlock()

	if !exists {
		return nil, ErrMatchNotFound
	}
	return snap, nil
}

// Delete removes the snapshot for matchID. It reports whether one existed.
func (s *Store) Delete(matchID string) bool {
	id := CanonicalID(matchID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.matches[id]; !exists {
		return false
	}
	delete(s.matches, id)
	return true
}

// DeleteAllExcept clears every snapshot except keepID (if non-empty) and
// returns how many were removed
func (s *Store) DeleteAllExcept(keepID string) int {
	keep := CanonicalID(keepID)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id := range s.matches {
		if keep != "" && id == keep {
			continue
		}
		delete(s.matches, id)
		removed++
	}
	return removed
}

// List returns the snapshots accepted by keep, ordered by match ID.
// A nil keep returns everything.
func (s *Store) List(keep func(*Snapshot) bool) []*Snapshot {
	s.mu.RLock()
	result := make([]*Snapshot, 0, len(s.matches))
	for _, snap := range s.matches {
		if keep == nil || keep(snap) {
			result = append(result, snap)
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].MatchID < result[j].MatchID
	})
	return result
}

// FindByPin returns the first snapshot whose t PIN equals pin, regardless
// of whether it currently accepts connections
func (s *Store) FindByPin(t PinType, pin string) (*Snapshot, bool) {
	matches := s.List(func(snap *Snapshot) bool {
		return snap.MatchesPin(t, pin)
	})
	if len(matches) == 0 {
		return nil, false
	}
	// Prefer a match that is open for connections over a closed one
	for _, snap := range matches {
		if snap.AcceptsPin(t, pin) {
			return snap, true
		}
	}
	return matches[0], true
}

// FindByGameNumber returns the snapshot whose metadata carries gameNumber
func (s *Store) FindByGameNumber(gameNumber string) (*Snapshot, bool) {
	want := CanonicalID(gameNumber)
	if want == "" {
		return nil, false
	}
	matches := s.List(func(snap *Snapshot) bool {
		return snap.info.GameNumber == want
	})
	if len(matches) == 0 {
		return nil, false
	}
	return matches[0], true
}

// Count returns the number of stored snapshots
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matches)
}
