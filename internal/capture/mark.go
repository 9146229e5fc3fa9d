package capture

import (
	"context"
	"sync"
)

// Outcome is what happened to a single line item.
type Outcome int

const (
	Captured Outcome = iota
	Skipped
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Captured:
		return "captured"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Marker flags a line item on the live page with its outcome. index is the
// position of the item among every line item of the document.
type Marker interface {
	Mark(ctx context.Context, index int, outcome Outcome) error
}

// NopMarker is used when there is no live page to flag, such as a saved
// snapshot.
type NopMarker struct{}

func (NopMarker) Mark(context.Context, int, Outcome) error {
	return nil
}

// RecordingMarker remembers the last outcome of every index.
type RecordingMarker struct {
	mu    sync.Mutex
	marks map[int]Outcome
}

func NewRecordingMarker() *RecordingMarker {
	return &RecordingMarker{marks: map[int]Outcome{}}
}

func (m *RecordingMarker) Mark(_ context.Context, index int, outcome Outcome) error {
	m.mu.Lock()
	m.marks[index] = outcome
	m.mu.Unlock()
	return nil
}

func (m *RecordingMarker) Marks() map[int]Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]Outcome, len(m.marks))
	for k, v := range m.marks {
		out[k] = v
	}
	return out
}
