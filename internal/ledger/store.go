package ledger

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"txexport/internal/components/assert"
	"txexport/internal/components/chrono"
	"txexport/internal/components/telemetry"

	"github.com/google/uuid"
)

const (
	report_store_load  = "store.load"
	report_store_save  = "store.save"
	report_store_merge = "store.merge"
)

// MergeResult counts what a Merge did with each record it was given.
type MergeResult struct {
	Inserted int
	Skipped  int
}

// Store is the deduplicating accumulator over a persisted Session.
//
// Every operation first reloads the session from storage and every mutation
// writes it back whole, so separate processes sharing a slot (a capture in
// progress and a `stop` command, for example) see each other's changes.
type Store struct {
	storage Storage
	time    chrono.API
	tel     telemetry.API

	mu      sync.Mutex
	session Session
	index   map[NaturalKey]string
}

func NewStore(storage Storage, time chrono.API, tel telemetry.API) *Store {
	assert.NotNil(storage)
	assert.NotNil(time)
	assert.NotNil(tel)

	return &Store{
		storage: storage,
		time:    time,
		tel:     telemetry.NewScopedAPI("ledger", tel),
		session: NewSession(),
		index:   map[NaturalKey]string{},
	}
}

func (s *Store) load(ctx context.Context) error {
	session, err := s.storage.Load(ctx)
	if err != nil {
		s.tel.ReportBroken(report_store_load, err)
		return fmt.Errorf("load session: %w", err)
	}
	index := make(map[NaturalKey]string, len(session.Records))
	for id, r := range session.Records {
		_, exists := index[r.Key()]
		if exists {
			s.tel.ReportWarning(report_store_load, "duplicate natural key in persisted session", id)
			continue
		}
		index[r.Key()] = id
	}
	s.session = session
	s.index = index
	return nil
}

func (s *Store) save(ctx context.Context) error {
	err := s.storage.Save(ctx, s.session)
	if err != nil {
		s.tel.ReportBroken(report_store_save, err)
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// mutate runs fn against a freshly loaded session and persists the result.
func (s *Store) mutate(ctx context.Context, fn func(session *Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.load(ctx)
	if err != nil {
		return err
	}
	fn(&s.session)
	return s.save(ctx)
}

// Load refreshes the in-memory view of the session.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.load(ctx)
	if err != nil {
		return err
	}
	s.tel.ReportCount(report_store_load, int64(len(s.session.Records)))
	return nil
}

// Merge inserts every record whose natural key is not already stored (or
// earlier in the same batch) and skips the rest. Stored records are never
// overwritten. The session is only persisted when something was inserted.
func (s *Store) Merge(ctx context.Context, records []Record) (MergeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.load(ctx)
	if err != nil {
		return MergeResult{}, err
	}

	result := MergeResult{}
	for _, r := range records {
		key := r.Key()
		_, exists := s.index[key]
		if exists {
			result.Skipped++
			continue
		}

		if r.ID == "" || s.hasID(r.ID) {
			r.ID, err = NewRecordID(r.Date, r.ExternalReference, s.time.Now())
			if err != nil {
				return MergeResult{}, err
			}
		}
		r.Items = slices.Clone(r.Items)
		if r.Items == nil {
			r.Items = []string{}
		}
		s.session.Records[r.ID] = r
		s.index[key] = r.ID
		result.Inserted++
	}

	if result.Inserted == 0 {
		return result, nil
	}

	s.session.Total = len(s.session.Records)
	s.session.Captures++
	s.session.LastUpdate = s.time.Now()

	err = s.save(ctx)
	if err != nil {
		return MergeResult{}, err
	}
	s.tel.ReportCount(report_store_merge, int64(s.session.Total))
	return result, nil
}

func (s *Store) hasID(id string) bool {
	_, ok := s.session.Records[id]
	return ok
}

// Contains reports whether a record with the given natural key is stored,
// as of the last load.
func (s *Store) Contains(key NaturalKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[key]
	return ok
}

// Records returns a copy of every stored record keyed by id.
func (s *Store) Records() map[string]Record {
	return s.Session().Records
}

// Session returns a copy of the session as of the last load.
func (s *Store) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.clone()
}

// StartMultiPageRun records a new traversal of totalPages pages starting at
// page 1 and returns it.
func (s *Store) StartMultiPageRun(ctx context.Context, totalPages int) (MultiPageRun, error) {
	run := MultiPageRun{
		ID:          uuid.New(),
		CurrentPage: 1,
		TotalPages:  totalPages,
		StartedAt:   s.time.Now(),
	}
	err := s.mutate(ctx, func(session *Session) {
		session.MultiPageRun = &run
		session.StopRequested = false
	})
	return run, err
}

// AdvanceMultiPageRun persists the page the active run is now on.
func (s *Store) AdvanceMultiPageRun(ctx context.Context, currentPage int) error {
	return s.mutate(ctx, func(session *Session) {
		if session.MultiPageRun == nil {
			return
		}
		session.MultiPageRun.CurrentPage = currentPage
	})
}

// FinishMultiPageRun clears the active run and keeps summary as the last run.
func (s *Store) FinishMultiPageRun(ctx context.Context, summary RunSummary) error {
	return s.mutate(ctx, func(session *Session) {
		if summary.FinishedAt.IsZero() {
			summary.FinishedAt = s.time.Now()
		}
		session.LastRun = &summary
		session.MultiPageRun = nil
		session.StopRequested = false
	})
}

func (s *Store) ClearMultiPageRun(ctx context.Context) error {
	return s.mutate(ctx, func(session *Session) {
		session.MultiPageRun = nil
		session.StopRequested = false
	})
}

// SetPagesToCapture stores the clamped page count and returns it.
func (s *Store) SetPagesToCapture(ctx context.Context, n int) (int, error) {
	clamped := ClampPages(n)
	err := s.mutate(ctx, func(session *Session) {
		session.PagesToCapture = clamped
	})
	return clamped, err
}

func (s *Store) RequestStop(ctx context.Context) error {
	return s.mutate(ctx, func(session *Session) {
		session.StopRequested = true
	})
}

// StopRequested reloads the session and reports the cooperative stop flag.
func (s *Store) StopRequested(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.load(ctx)
	if err != nil {
		return false, err
	}
	return s.session.StopRequested, nil
}

// Clear destroys the persisted session.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.storage.Clear(ctx)
	if err != nil {
		s.tel.ReportBroken(report_store_save, err)
		return fmt.Errorf("clear session: %w", err)
	}
	s.session = NewSession()
	s.index = map[NaturalKey]string{}
	return nil
}
