package game

import (
	"sort"
	"sync"
)

// MemStore is an in-memory MatchStore. It backs the server when no
// database is configured and every test that needs persistence.
type MemStore struct {
	mu   sync.Mutex
	recs map[string]MatchRecord // keyed by code
}

func NewMemStore() *MemStore {
	return &MemStore{recs: make(map[string]MatchRecord)}
}

func (s *MemStore) Create(rec MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.Code] = rec
	return nil
}

func (s *MemStore) GetByCode(code string) (MatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[code]
	if !ok {
		return MatchRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemStore) GetByID(id string) (MatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.recs {
		if rec.ID == id {
			return rec, nil
		}
	}
	return MatchRecord{}, ErrNotFound
}

func (s *MemStore) Save(rec MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[rec.Code]; !ok {
		return ErrNotFound
	}
	s.recs[rec.Code] = rec
	return nil
}

func (s *MemStore) List(state State, code string, pageSize, pageNumber int) ([]MatchRecord, int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []MatchRecord
	for _, rec := range s.recs {
		if state != "" && rec.State != state {
			continue
		}
		if code != "" && rec.Code != code {
			continue
		}
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })

	total := len(all)
	if total == 0 {
		return nil, 0, 0, nil
	}
	totalPages := (total + pageSize - 1) / pageSize
	if pageNumber > totalPages {
		return nil, total, totalPages, ErrPageNotFound
	}
	start := (pageNumber - 1) * pageSize
	end := min(start+pageSize, total)
	return all[start:end], total, totalPages, nil
}

func (s *MemStore) Delete(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, code)
	return nil
}
