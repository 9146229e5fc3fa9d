package ledger

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

const (
	MinPagesToCapture = 1
	MaxPagesToCapture = 50
)

// MultiPageRun is present on a Session only while a multi-page traversal is
// active.
type MultiPageRun struct {
	ID          uuid.UUID `json:"id"`
	CurrentPage int       `json:"currentPage"`
	TotalPages  int       `json:"totalPages"`
	StartedAt   time.Time `json:"startedAt"`
}

// RunSummary is what a finished multi-page traversal leaves behind.
type RunSummary struct {
	ID            uuid.UUID `json:"id"`
	Outcome       string    `json:"outcome"`
	Reason        string    `json:"reason,omitempty"`
	PagesCaptured int       `json:"pagesCaptured"`
	TotalPages    int       `json:"totalPages"`
	Captured      int       `json:"captured"`
	Failed        int       `json:"failed"`
	Skipped       int       `json:"skipped"`
	FinishedAt    time.Time `json:"finishedAt"`
}

// Session is everything that persists between invocations.
type Session struct {
	Records        map[string]Record `json:"transactions"`
	Total          int               `json:"total"`
	Captures       int               `json:"captures"`
	LastUpdate     time.Time         `json:"lastUpdate"`
	PagesToCapture int               `json:"pagesToCapture"`
	MultiPageRun   *MultiPageRun     `json:"currentMultiPageInfo,omitempty"`
	LastRun        *RunSummary       `json:"lastRun,omitempty"`
	StopRequested  bool              `json:"stopRequested"`
}

func NewSession() Session {
	return Session{
		Records:        map[string]Record{},
		PagesToCapture: MinPagesToCapture,
	}
}

// ClampPages restricts a requested page count to the supported range.
func ClampPages(n int) int {
	if n < MinPagesToCapture {
		return MinPagesToCapture
	}
	if n > MaxPagesToCapture {
		return MaxPagesToCapture
	}
	return n
}

// ItemCount is the number of enrichment items across every record.
func (s Session) ItemCount() int {
	count := 0
	for _, r := range s.Records {
		count += len(r.Items)
	}
	return count
}

func (s Session) clone() Session {
	out := s
	out.Records = make(map[string]Record, len(s.Records))
	for id, r := range s.Records {
		r.Items = slices.Clone(r.Items)
		out.Records[id] = r
	}
	if s.MultiPageRun != nil {
		run := *s.MultiPageRun
		out.MultiPageRun = &run
	}
	if s.LastRun != nil {
		summary := *s.LastRun
		out.LastRun = &summary
	}
	return out
}

// normalize fills in fields an older or partial slot may be missing.
func (s *Session) normalize() {
	if s.Records == nil {
		s.Records = map[string]Record{}
	}
	s.PagesToCapture = ClampPages(s.PagesToCapture)
}
