package telemetry

import (
	"strings"
	"sync"
)

type Kind int

const (
	KindBroken Kind = iota
	KindWarning
	KindDebug
	KindCount
)

type Report struct {
	Kind   Kind
	ID     string
	Params []any
	Count  int64
}

// Recorder is an in-memory API, reports are kept in order so tests can
// assert on them.
type Recorder struct {
	mu      sync.Mutex
	reports []Report
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) add(report Report) {
	r.mu.Lock()
	r.reports = append(r.reports, report)
	r.mu.Unlock()
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.add(Report{Kind: KindBroken, ID: id, Params: params})
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.add(Report{Kind: KindWarning, ID: id, Params: params})
}

func (r *Recorder) ReportDebug(msg string, params ...any) {
	r.add(Report{Kind: KindDebug, ID: msg, Params: params})
}

func (r *Recorder) ReportCount(id string, count int64) {
	r.add(Report{Kind: KindCount, ID: id, Count: count})
}

func (r *Recorder) Reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}

// Has returns true when a report of the given kind has an id ending with suffix.
func (r *Recorder) Has(kind Kind, suffix string) bool {
	for _, report := range r.Reports() {
		if report.Kind == kind && strings.HasSuffix(report.ID, suffix) {
			return true
		}
	}
	return false
}
