// Package store persists normalized records in category partitions with id deduplication.
package store

import (
	"encoding/json"

	"github.com/jonathan/rojgar-pipeline/internal/types"
)

// ArchivedKey is the top-level document key holding archived partitions.
const ArchivedKey = "archived_content"

// State is the full in-memory store document. Partitions are ordered newest first.
type State struct {
	Active   map[types.Category][]types.Record
	Archived map[types.Category][]types.Record

	// Partition entries that do not decode as records. They take no part in
	// dedup or archival and are written back unchanged after the records.
	UnreadableActive   map[types.Category][]json.RawMessage
	UnreadableArchived map[types.Category][]json.RawMessage
}

// NewState returns an empty state with all eight partitions present.
func NewState() *State {
	s := &State{
		Active:             make(map[types.Category][]types.Record),
		Archived:           make(map[types.Category][]types.Record),
		UnreadableActive:   make(map[types.Category][]json.RawMessage),
		UnreadableArchived: make(map[types.Category][]json.RawMessage),
	}
	for _, c := range types.Categories() {
		s.Active[c] = []types.Record{}
	}
	return s
}

// Clone returns a copy whose partition slices can be replaced or appended to
// without affecting s. Records themselves are shared.
func (s *State) Clone() *State {
	out := &State{
		Active:             make(map[types.Category][]types.Record, len(s.Active)),
		Archived:           make(map[types.Category][]types.Record, len(s.Archived)),
		UnreadableActive:   make(map[types.Category][]json.RawMessage, len(s.UnreadableActive)),
		UnreadableArchived: make(map[types.Category][]json.RawMessage, len(s.UnreadableArchived)),
	}
	for c, recs := range s.Active {
		out.Active[c] = append([]types.Record(nil), recs...)
	}
	for c, recs := range s.Archived {
		out.Archived[c] = append([]types.Record(nil), recs...)
	}
	for c, raw := range s.UnreadableActive {
		out.UnreadableActive[c] = append([]json.RawMessage(nil), raw...)
	}
	for c, raw := range s.UnreadableArchived {
		out.UnreadableArchived[c] = append([]json.RawMessage(nil), raw...)
	}
	return out
}

// UnreadableCount returns the number of entries kept raw across all partitions.
func (s *State) UnreadableCount() int {
	n := 0
	for _, raw := range s.UnreadableActive {
		n += len(raw)
	}
	for _, raw := range s.UnreadableArchived {
		n += len(raw)
	}
	return n
}

// Has reports whether an active record with id exists in category.
func (s *State) Has(category types.Category, id string) bool {
	for _, r := range s.Active[category] {
		if r.ID == id {
			return true
		}
	}
	return false
}

// Counts returns the number of active records per partition.
func (s *State) Counts() map[types.Category]int {
	counts := make(map[types.Category]int, len(s.Active))
	for _, c := range types.Categories() {
		counts[c] = len(s.Active[c])
	}
	return counts
}

// ArchivedCounts returns the number of archived records per partition.
func (s *State) ArchivedCounts() map[types.Category]int {
	counts := make(map[types.Category]int, len(s.Archived))
	for c, recs := range s.Archived {
		counts[c] = len(recs)
	}
	return counts
}

// Outcome is the result of an Insert.
type Outcome string

// Insert outcomes.
const (
	OutcomeInserted        Outcome = "inserted"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeUnknownCategory Outcome = "unknown_category"
)

// Insert prepends rec to category unless a record with the same id is already
// there. It never mutates s: on rejection s itself is returned, otherwise a new state.
func Insert(s *State, category types.Category, rec types.Record) (*State, Outcome) {
	if !types.IsCategory(category) {
		return s, OutcomeUnknownCategory
	}
	if s.Has(category, rec.ID) {
		return s, OutcomeDuplicate
	}

	next := s.Clone()
	existing := s.Active[category]
	partition := make([]types.Record, 0, len(existing)+1)
	partition = append(partition, rec)
	partition = append(partition, existing...)
	next.Active[category] = partition
	return next, OutcomeInserted
}
