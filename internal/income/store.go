package income

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/seenimoa/finview/pkg/models"
)

// Snapshot is a point-in-time copy of the store.
type Snapshot struct {
	Symbol    string                   `json:"symbol"`
	DatasetID string                   `json:"dataset_id"`
	FetchedAt time.Time                `json:"fetched_at"`
	Records   []models.IncomeStatement `json:"-"`
}

// Empty reports whether nothing has been stored yet.
func (s Snapshot) Empty() bool { return s.DatasetID == "" }

// Store holds at most one company's income statements. Every replace swaps
// the whole set; there is no merge.
type Store struct {
	mu      sync.RWMutex
	gen     uint64 // last ticket handed out by Begin
	applied uint64 // ticket of the data currently held
	snap    Snapshot
	now     func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// Replace unconditionally swaps in records for symbol and returns the new
// snapshot.
func (s *Store) Replace(symbol string, records []models.IncomeStatement) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.swapLocked(s.gen, symbol, records)
}

// Begin hands out a ticket for a fetch about to start. Pass it to
// ReplaceIfCurrent once the fetch returns.
func (s *Store) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.gen
}

// ReplaceIfCurrent stores records unless a fetch that began later has
// already been applied. It reports whether the swap happened; when it did
// not, the returned snapshot is the data that won.
func (s *Store) ReplaceIfCurrent(ticket uint64, symbol string, records []models.IncomeStatement) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket < s.applied {
		return s.copyLocked(), false
	}
	return s.swapLocked(ticket, symbol, records), true
}

// Current returns a copy of the stored data. Callers may modify it freely.
func (s *Store) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

func (s *Store) swapLocked(ticket uint64, symbol string, records []models.IncomeStatement) Snapshot {
	s.applied = ticket
	s.snap = Snapshot{
		Symbol:    symbol,
		DatasetID: uuid.NewString(),
		FetchedAt: s.now().UTC(),
		Records:   cloneRecords(records),
	}
	return s.copyLocked()
}

func (s *Store) copyLocked() Snapshot {
	out := s.snap
	out.Records = cloneRecords(s.snap.Records)
	return out
}

func cloneRecords(in []models.IncomeStatement) []models.IncomeStatement {
	out := make([]models.IncomeStatement, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
