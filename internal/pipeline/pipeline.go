// Package pipeline orchestrates one ingestion-to-archive cycle: archive expired
// records, discover new links, fetch and cluster articles, synthesize one record
// per cluster and persist it.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/rojgar-pipeline/internal/archive"
	"github.com/jonathan/rojgar-pipeline/internal/clustering"
	"github.com/jonathan/rojgar-pipeline/internal/db"
	"github.com/jonathan/rojgar-pipeline/internal/ledger"
	"github.com/jonathan/rojgar-pipeline/internal/metrics"
	"github.com/jonathan/rojgar-pipeline/internal/publisher"
	"github.com/jonathan/rojgar-pipeline/internal/store"
	"github.com/jonathan/rojgar-pipeline/internal/synthesis"
	"github.com/jonathan/rojgar-pipeline/internal/types"
)

// MinContentLength is the fewest characters an article needs to be clustered.
const MinContentLength = 200

// Discoverer finds new candidate links on a source page. Returned URLs are added to seen.
type Discoverer interface {
	Discover(ctx context.Context, source string, seen ledger.Set) ([]types.Link, error)
}

// ContentFetcher returns the readable text of an article page.
type ContentFetcher interface {
	FetchArticle(ctx context.Context, url string) (string, error)
}

// Synthesizer turns a consolidated cluster text into a routed record.
type Synthesizer interface {
	Synthesize(ctx context.Context, blob string) (synthesis.Result, error)
}

// ArtifactWriter persists the consolidated text and raw model response of a cluster.
type ArtifactWriter interface {
	SaveConsolidated(ctx context.Context, name, blob string) (string, error)
	SaveResponse(ctx context.Context, name, raw string) (string, error)
}

// RunLog records cycle history.
type RunLog interface {
	StartRun(ctx context.Context, runID uuid.UUID, startedAt time.Time) error
	RecordOutcome(ctx context.Context, runID uuid.UUID, o db.ClusterOutcome) error
	CompleteRun(ctx context.Context, runID uuid.UUID, counts db.RunCounts, runErr error) error
}

// ProgressEvent represents a progress update during a cycle
type ProgressEvent struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
	Content any    `json:"content,omitempty"`
}

// ProgressCallback is called when cycle progress occurs
type ProgressCallback func(event ProgressEvent)

// Progress steps
const (
	StepArchive    = "archive"
	StepDiscover   = "discover"
	StepFetch      = "fetch"
	StepCluster    = "cluster"
	StepSynthesize = "synthesize"
	StepComplete   = "complete"
)

// Config holds the static cycle configuration.
type Config struct {
	Sources []string
	// Location decides which calendar day "today" is.
	Location   *time.Location
	Clock      func() time.Time
	OnProgress ProgressCallback
}

// Deps are the collaborators of an Orchestrator. Artifacts, Publisher and RunLog are optional.
type Deps struct {
	Store       *store.Store
	Ledger      *ledger.Ledger
	Archiver    *archive.Engine
	Clusterer   *clustering.Clusterer
	Discoverer  Discoverer
	Fetcher     ContentFetcher
	Synthesizer Synthesizer
	Artifacts   ArtifactWriter
	Publisher   publisher.Publisher
	RunLog      RunLog
	Logger      *zap.Logger
}

// Report summarizes one cycle.
type Report struct {
	RunID          string              `json:"run_id"`
	StartedAt      time.Time           `json:"started_at"`
	FinishedAt     time.Time           `json:"finished_at"`
	Archived       int                 `json:"archived"`
	Discovered     int                 `json:"discovered"`
	FetchFailed    int                 `json:"fetch_failed"`
	ShortDiscarded int                 `json:"short_discarded"`
	Clusters       int                 `json:"clusters"`
	Inserted       int                 `json:"inserted"`
	Duplicates     int                 `json:"duplicates"`
	Failed         int                 `json:"failed"`
	Outcomes       []db.ClusterOutcome `json:"outcomes"`
}

// Counts returns the report tallies in run-log form.
func (r *Report) Counts() db.RunCounts {
	return db.RunCounts{
		Archived:       r.Archived,
		Discovered:     r.Discovered,
		ShortDiscarded: r.ShortDiscarded,
		Clusters:       r.Clusters,
		Inserted:       r.Inserted,
		Duplicates:     r.Duplicates,
		Failed:         r.Failed,
	}
}

// Orchestrator runs pipeline cycles.
type Orchestrator struct {
	cfg  Config
	deps Deps
	log  *zap.Logger

	mu   sync.RWMutex
	last *Report
}

// New validates deps and returns an Orchestrator.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("pipeline: store is required")
	case deps.Ledger == nil:
		return nil, errors.New("pipeline: ledger is required")
	case deps.Archiver == nil:
		return nil, errors.New("pipeline: archiver is required")
	case deps.Clusterer == nil:
		return nil, errors.New("pipeline: clusterer is required")
	case deps.Discoverer == nil:
		return nil, errors.New("pipeline: discoverer is required")
	case deps.Fetcher == nil:
		return nil, errors.New("pipeline: fetcher is required")
	case deps.Synthesizer == nil:
		return nil, errors.New("pipeline: synthesizer is required")
	}
	if deps.Publisher == nil {
		deps.Publisher = publisher.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	metrics.Init()

	return &Orchestrator{cfg: cfg, deps: deps, log: deps.Logger.Named("pipeline")}, nil
}

// LastReport returns the report of the most recent finished cycle, or nil.
func (o *Orchestrator) LastReport() *Report {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.last
}

// Loop runs a cycle, waits interval and repeats until ctx is cancelled.
func (o *Orchestrator) Loop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("pipeline: interval must be positive")
	}
	for {
		if _, err := o.RunCycle(ctx); err != nil && ctx.Err() == nil {
			o.log.Error("cycle failed", zap.Error(err))
		}

		o.log.Info("sleeping until next cycle", zap.Duration("interval", interval))
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (o *Orchestrator) emit(runID, step, message string, content any) {
	if o.cfg.OnProgress != nil {
		o.cfg.OnProgress(ProgressEvent{Step: step, Message: message, RunID: runID, Content: content})
	}
}
