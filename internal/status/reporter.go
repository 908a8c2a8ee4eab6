package status

import (
	"log/slog"
	"sync"
	"time"

	"github.com/zombor/walkingpad-tracker/internal/history"
	"github.com/zombor/walkingpad-tracker/internal/reading"
)

// Kind classifies a status message
type Kind string

const (
	KindInfo       Kind = "info"
	KindSuccess    Kind = "success"
	KindError      Kind = "error"
	KindProcessing Kind = "processing"
)

// Status is the last user-facing message
type Status struct {
	Message string    `json:"message"`
	Kind    Kind      `json:"kind"`
	At      time.Time `json:"at"`
}

// Snapshot is everything the UI renders. Seq grows with every change, so a
// listener that receives snapshots from several goroutines can drop stale ones.
type Snapshot struct {
	Seq    uint64                   `json:"seq"`
	Status Status                   `json:"status"`
	Stats  history.Stats            `json:"stats"`
	Last   *reading.CapturedReading `json:"last,omitempty"`
}

// Reporter holds derived user-facing state and fans changes out to listeners
type Reporter struct {
	mu        sync.Mutex
	current   Snapshot
	listeners map[int]func(Snapshot)
	nextID    int
	now       func() time.Time
}

// NewReporter creates a Reporter seeded with the given counters
func NewReporter(stats history.Stats) *Reporter {
	return &Reporter{
		current:   Snapshot{Stats: stats},
		listeners: make(map[int]func(Snapshot)),
		now:       time.Now,
	}
}

// Update replaces the status message
func (r *Reporter) Update(message string, kind Kind) {
	slog.Debug("Status", "kind", kind, "message", message)
	r.apply(func(s *Snapshot) {
		s.Status = Status{Message: message, Kind: kind, At: r.now()}
	})
}

// SetStats replaces the displayed counters
func (r *Reporter) SetStats(stats history.Stats) {
	r.apply(func(s *Snapshot) {
		s.Stats = stats
	})
}

// SetLast replaces the most recent reading; nil clears it
func (r *Reporter) SetLast(last *reading.CapturedReading) {
	r.apply(func(s *Snapshot) {
		if last == nil {
			s.Last = nil
			return
		}
		cp := *last
		s.Last = &cp
	})
}

// Snapshot returns the current state
func (r *Reporter) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Subscribe registers fn for every change and returns a function that
// removes it. fn is called outside the reporter lock, on the goroutine that
// made the change, so concurrent changes may arrive out of order; compare Seq.
func (r *Reporter) Subscribe(fn func(Snapshot)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.listeners[id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.listeners, id)
	}
}

func (r *Reporter) apply(change func(*Snapshot)) {
	r.mu.Lock()
	change(&r.current)
	r.current.Seq++
	snap := r.current
	listeners := make([]func(Snapshot), 0, len(r.listeners))
	for _, fn := range r.listeners {
		listeners = append(listeners, fn)
	}
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
