package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/rojgar-pipeline/internal/types"
)

// Store reads and atomically replaces the JSON store document at a fixed path.
type Store struct {
	path   string
	logger *zap.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// New returns a Store for path. A nil logger disables logging.
func New(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger.Named("store"), now: time.Now}
}

// Path returns the store document path.
func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted state. A missing or empty file yields a fresh state.
// A file that is not a valid store document is moved aside to <path>.corrupt-<unix>
// and a fresh state is returned. Other read errors are returned as is.
func (s *Store) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Snapshot reads the persisted state without side effects. A missing or empty
// file yields a fresh state; a document that does not decode is an error and the
// file is left in place.
func (s *Store) Snapshot() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("failed to read store %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return NewState(), nil
	}
	state, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", s.path, err)
	}
	return state, nil
}

// Save replaces the store document with state in one atomic rename.
func (s *Store) Save(state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(state)
}

// Update loads the state, applies fn and saves the result when fn reports a change.
// Load, transform and save happen under one lock.
func (s *Store) Update(fn func(*State) (*State, bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}
	next, changed, err := fn(state)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return s.save(next)
}

func (s *Store) load() (*State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Info("store not found, starting fresh", zap.String("path", s.path))
			return NewState(), nil
		}
		return nil, fmt.Errorf("failed to read store %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return NewState(), nil
	}

	state, err := Decode(data)
	if err != nil {
		backup := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().Unix())
		if renameErr := os.Rename(s.path, backup); renameErr != nil {
			s.logger.Warn("failed to preserve corrupt store", zap.String("path", s.path), zap.Error(renameErr))
		}
		s.logger.Warn("store is corrupt, starting fresh",
			zap.String("path", s.path),
			zap.String("backup", backup),
			zap.Error(err))
		return NewState(), nil
	}
	if n := state.UnreadableCount(); n > 0 {
		s.logger.Warn("store has entries that are not records, keeping them as is",
			zap.String("path", s.path),
			zap.Int("count", n))
	}
	return state, nil
}

func (s *Store) save(state *State) error {
	data, err := Encode(state)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".store-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close store: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to set store permissions: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace store: %w", err)
	}
	syncDir(dir)
	return nil
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// Encode renders state as the persisted document: every partition as a top-level
// array (never null) plus the archived_content object. Unreadable entries follow
// the records of their partition.
func Encode(state *State) ([]byte, error) {
	doc := make(map[string]any, len(state.Active)+1)
	for _, c := range types.Categories() {
		doc[string(c)] = partition(state.Active[c], state.UnreadableActive[c])
	}
	archived := make(map[string]any, len(state.Archived))
	for c, recs := range state.Archived {
		archived[string(c)] = partition(recs, state.UnreadableArchived[c])
	}
	for c, raw := range state.UnreadableArchived {
		if _, ok := archived[string(c)]; !ok {
			archived[string(c)] = partition(nil, raw)
		}
	}
	doc[ArchivedKey] = archived

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode store: %w", err)
	}
	return buf.Bytes(), nil
}

func partition(recs []types.Record, unreadable []json.RawMessage) any {
	if len(unreadable) == 0 {
		if recs == nil {
			return []types.Record{}
		}
		return recs
	}
	entries := make([]any, 0, len(recs)+len(unreadable))
	for _, r := range recs {
		entries = append(entries, r)
	}
	for _, raw := range unreadable {
		entries = append(entries, raw)
	}
	return entries
}

// Decode parses a persisted document. Missing partitions come back empty and
// unknown top-level keys are ignored. A partition that is not an array fails the
// whole document; a single entry that does not decode as a record is kept raw in
// the state's Unreadable maps.
func Decode(data []byte) (*State, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid store document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("invalid store document: top level is null")
	}

	state := NewState()
	for _, c := range types.Categories() {
		raw, ok := doc[string(c)]
		if !ok {
			continue
		}
		recs, unreadable, err := decodePartition(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid partition %s: %w", c, err)
		}
		if recs != nil {
			state.Active[c] = recs
		}
		if len(unreadable) > 0 {
			state.UnreadableActive[c] = unreadable
		}
	}

	if raw, ok := doc[ArchivedKey]; ok {
		var archived map[string]json.RawMessage
		if err := json.Unmarshal(raw, &archived); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", ArchivedKey, err)
		}
		for name, partRaw := range archived {
			recs, unreadable, err := decodePartition(partRaw)
			if err != nil {
				return nil, fmt.Errorf("invalid %s.%s: %w", ArchivedKey, name, err)
			}
			if recs == nil {
				recs = []types.Record{}
			}
			state.Archived[types.Category(name)] = recs
			if len(unreadable) > 0 {
				state.UnreadableArchived[types.Category(name)] = unreadable
			}
		}
	}
	return state, nil
}

func decodePartition(raw json.RawMessage) ([]types.Record, []json.RawMessage, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, nil, err
	}
	if entries == nil {
		return nil, nil, nil
	}

	recs := make([]types.Record, 0, len(entries))
	var unreadable []json.RawMessage
	for _, entry := range entries {
		var rec types.Record
		if bytes.Equal(bytes.TrimSpace(entry), []byte("null")) || json.Unmarshal(entry, &rec) != nil {
			unreadable = append(unreadable, entry)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, unreadable, nil
}
