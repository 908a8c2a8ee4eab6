package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zombor/walkingpad-tracker/internal/reading"
)

const (
	// HistoryKey holds the JSON array of readings, newest first
	HistoryKey = "walkingPadHistory"
	// StatsKey holds the capture counters
	StatsKey = "walkingPadStats"

	// MaxEntries bounds the history log
	MaxEntries = 100
)

// Stats holds the running capture counters
type Stats struct {
	TotalCaptures      int `json:"totalCaptures"`
	SuccessfulCaptures int `json:"successfulCaptures"`
}

// Rate returns the success percentage rounded to the nearest integer
func (s Stats) Rate() int {
	if s.TotalCaptures <= 0 {
		return 0
	}
	return (s.SuccessfulCaptures*200 + s.TotalCaptures) / (s.TotalCaptures * 2)
}

// Store is the bounded, persisted capture history of a client session.
// In-memory state stays authoritative when the backing KV fails.
type Store struct {
	kv KV

	mu      sync.Mutex
	entries []reading.CapturedReading
	stats   Stats
}

// NewStore creates a Store backed by kv. Call Load before use.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// Load reads persisted state. Missing or corrupt data resets the store to
// empty; the returned error is informational only.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	s.stats = Stats{}

	entries, stats, err := s.read()
	if err != nil {
		slog.Warn("Discarding persisted history", "error", err)
		return err
	}

	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	s.entries = entries
	s.stats = stats
	return nil
}

func (s *Store) read() ([]reading.CapturedReading, Stats, error) {
	var (
		entries []reading.CapturedReading
		stats   Stats
	)

	data, err := s.kv.Get(HistoryKey)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("%w: reading %s: %v", ErrPersistence, HistoryKey, err)
	}
	if data != nil {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, Stats{}, fmt.Errorf("unmarshaling %s: %w", HistoryKey, err)
		}
	}

	data, err = s.kv.Get(StatsKey)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("%w: reading %s: %v", ErrPersistence, StatsKey, err)
	}
	if data != nil {
		if err := json.Unmarshal(data, &stats); err != nil {
			return nil, Stats{}, fmt.Errorf("unmarshaling %s: %w", StatsKey, err)
		}
	}
	if stats.TotalCaptures < 0 || stats.SuccessfulCaptures < 0 || stats.SuccessfulCaptures > stats.TotalCaptures {
		return nil, Stats{}, fmt.Errorf("inconsistent counters: %+v", stats)
	}

	return entries, stats, nil
}

// Append adds a reading at the head of the log, dropping the oldest entry
// past MaxEntries, and persists
func (s *Store) Append(r reading.CapturedReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prepend(r)
	return s.persist()
}

// Record closes out one capture cycle: the attempt is always counted, and a
// non-nil reading is counted as a success and appended
func (s *Store) Record(r *reading.CapturedReading) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.TotalCaptures++
	if r != nil {
		s.stats.SuccessfulCaptures++
		s.prepend(*r)
	}
	return s.stats, s.persist()
}

// Clear resets entries and counters and removes the persisted keys
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	s.stats = Stats{}

	if err := s.kv.Delete(HistoryKey); err != nil {
		return fmt.Errorf("%w: deleting %s: %v", ErrPersistence, HistoryKey, err)
	}
	if err := s.kv.Delete(StatsKey); err != nil {
		return fmt.Errorf("%w: deleting %s: %v", ErrPersistence, StatsKey, err)
	}
	return nil
}

// Entries returns a copy of the log, newest first
func (s *Store) Entries() []reading.CapturedReading {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]reading.CapturedReading, len(s.entries))
	copy(out, s.entries)
	return out
}

// Stats returns the current counters
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Latest returns the newest reading, if any
func (s *Store) Latest() (reading.CapturedReading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) == 0 {
		return reading.CapturedReading{}, false
	}
	return s.entries[0], true
}

func (s *Store) prepend(r reading.CapturedReading) {
	entries := make([]reading.CapturedReading, 0, len(s.entries)+1)
	entries = append(entries, r)
	entries = append(entries, s.entries...)
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	s.entries = entries
}

// persist must be called with mu held
func (s *Store) persist() error {
	entries := s.entries
	if entries == nil {
		entries = []reading.CapturedReading{}
	}

	historyData, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshaling history: %w", err)
	}
	statsData, err := json.Marshal(s.stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}

	if err := s.kv.Put(HistoryKey, historyData); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrPersistence, HistoryKey, err)
	}
	if err := s.kv.Put(StatsKey, statsData); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrPersistence, StatsKey, err)
	}
	return nil
}
