package capture

import (
	"fmt"
	"sync"
)

// PageInfo places a page within a multi-page run.
type PageInfo struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
}

// Progress is the live snapshot published after every processed item.
type Progress struct {
	Captured    int `json:"captured"`
	Failed      int `json:"failed"`
	Skipped     int `json:"skipped"`
	Total       int `json:"total"`
	CurrentPage int `json:"currentPage,omitempty"`
	TotalPages  int `json:"totalPages,omitempty"`
}

// Processed is the number of items that have been handled so far.
func (p Progress) Processed() int {
	return p.Captured + p.Failed + p.Skipped
}

func (p Progress) String() string {
	counts := fmt.Sprintf(
		"%d/%d transactions captured, %d failed, %d skipped",
		p.Captured, p.Total, p.Failed, p.Skipped,
	)
	if p.TotalPages > 0 {
		return fmt.Sprintf("Page %d/%d: %s", p.CurrentPage, p.TotalPages, counts)
	}
	return counts
}

// ProgressSink consumes progress snapshots, e.g. a status line.
type ProgressSink interface {
	Update(progress Progress)
}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(progress Progress)

func (f SinkFunc) Update(progress Progress) {
	f(progress)
}

// RecordingSink keeps every snapshot it receives.
type RecordingSink struct {
	mu        sync.Mutex
	snapshots []Progress
}

func (s *RecordingSink) Update(progress Progress) {
	s.mu.Lock()
	s.snapshots = append(s.snapshots, progress)
	s.mu.Unlock()
}

func (s *RecordingSink) Snapshots() []Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Progress(nil), s.snapshots...)
}

// Last returns the most recent snapshot, or a zero Progress.
func (s *RecordingSink) Last() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snapshots) == 0 {
		return Progress{}
	}
	return s.snapshots[len(s.snapshots)-1]
}
