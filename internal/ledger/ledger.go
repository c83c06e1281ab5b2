// Package ledger persists the set of article URLs the pipeline has already processed.
//
// The ledger file is newline-delimited text, one URL per line, appended to and never rewritten.
package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Set is an in-memory snapshot of seen URLs.
type Set map[string]struct{}

// Has reports whether url has been seen.
func (s Set) Has(url string) bool {
	_, ok := s[url]
	return ok
}

// Add marks url as seen in the snapshot only.
func (s Set) Add(url string) {
	s[url] = struct{}{}
}

// Len returns the number of distinct URLs in the snapshot.
func (s Set) Len() int {
	return len(s)
}

// Ledger is the append-only seen-URL log.
type Ledger struct {
	path string
	mu   sync.Mutex
}

// New returns a ledger backed by the file at path. The file is created on first Record.
func New(path string) *Ledger {
	return &Ledger{path: path}
}

// Path returns the ledger file path.
func (l *Ledger) Path() string {
	return l.path
}

// Load reads the ledger into a Set. A missing file yields an empty set and blank lines are skipped.
func (l *Ledger) Load() (Set, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	set := make(Set)
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return set, nil
		}
		return nil, fmt.Errorf("failed to open ledger %s: %w", l.path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		set.Add(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger %s: %w", l.path, err)
	}
	return set, nil
}

// Record durably appends url to the ledger. The line is synced before Record returns.
func (l *Ledger) Record(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return fmt.Errorf("ledger: refusing to record empty url")
	}
	if strings.ContainsAny(url, "\r\n") {
		return fmt.Errorf("ledger: url contains a line break: %q", url)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger %s: %w", l.path, err)
	}
	if _, err := f.WriteString(url + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to append to ledger: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync ledger: %w", err)
	}
	return f.Close()
}

// RecordAll appends every url, stopping at the first error.
func (l *Ledger) RecordAll(urls []string) error {
	for _, u := range urls {
		if err := l.Record(u); err != nil {
			return err
		}
	}
	return nil
}
