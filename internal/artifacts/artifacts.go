// Package artifacts persists intermediate pipeline outputs: the consolidated
// text sent to the model and the raw model responses.
package artifacts

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/rojgar-pipeline/internal/types"
)

// Object path prefixes.
const (
	ConsolidatedDir = "consolidated"
	ResponsesDir    = "responses"
)

// BlobStore persists an object and returns a URI that locates it.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Writer names and stores per-cluster artifacts.
type Writer struct {
	store BlobStore
	now   func() time.Time
}

// NewWriter wraps store. A nil clock defaults to time.Now.
func NewWriter(store BlobStore, now func() time.Time) *Writer {
	if now == nil {
		now = time.Now
	}
	return &Writer{store: store, now: now}
}

// SaveConsolidated stores the consolidated blob under consolidated/<slug>.txt.
func (w *Writer) SaveConsolidated(ctx context.Context, name, blob string) (string, error) {
	path := ConsolidatedPath(name)
	uri, err := w.store.PutObject(ctx, path, "text/plain; charset=utf-8", strings.NewReader(blob))
	if err != nil {
		return "", fmt.Errorf("save consolidated %s: %w", path, err)
	}
	return uri, nil
}

// SaveResponse stores a raw model response under responses/<slug>-<millis>.json.
func (w *Writer) SaveResponse(ctx context.Context, name, raw string) (string, error) {
	path := ResponsePath(name, w.now())
	uri, err := w.store.PutObject(ctx, path, "application/json", strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("save response %s: %w", path, err)
	}
	return uri, nil
}

// ConsolidatedPath returns the object path for a cluster's consolidated text.
func ConsolidatedPath(name string) string {
	return ConsolidatedDir + "/" + objectName(name) + ".txt"
}

// ResponsePath returns the object path for a raw response captured at t.
func ResponsePath(name string, t time.Time) string {
	return fmt.Sprintf("%s/%s-%d.json", ResponsesDir, objectName(name), t.UnixMilli())
}

func objectName(name string) string {
	if slug := types.Slugify(name); slug != "" {
		return slug
	}
	return "untitled"
}
