package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/rojgar-pipeline/internal/dates"
	"github.com/jonathan/rojgar-pipeline/internal/db"
	"github.com/jonathan/rojgar-pipeline/internal/ledger"
	"github.com/jonathan/rojgar-pipeline/internal/metrics"
	"github.com/jonathan/rojgar-pipeline/internal/publisher"
	"github.com/jonathan/rojgar-pipeline/internal/store"
	"github.com/jonathan/rojgar-pipeline/internal/synthesis"
	"github.com/jonathan/rojgar-pipeline/internal/types"
)

// RunCycle executes one full cycle. Per-article and per-cluster failures are
// counted in the report and never abort the cycle. An error is returned only
// when the ledger cannot be read or ctx is cancelled; the partial report is
// returned with it.
func (o *Orchestrator) RunCycle(ctx context.Context) (*Report, error) {
	runID := uuid.New()
	report := &Report{RunID: runID.String(), StartedAt: o.cfg.Clock()}
	log := o.log.With(zap.String("run_id", report.RunID))
	log.Info("cycle started", zap.Int("sources", len(o.cfg.Sources)))

	if o.deps.RunLog != nil {
		if err := o.deps.RunLog.StartRun(ctx, runID, report.StartedAt); err != nil {
			log.Warn("failed to record run start", zap.Error(err))
		}
	}

	err := o.runCycle(ctx, runID, report, log)
	o.finish(ctx, runID, report, err, log)
	return report, err
}

func (o *Orchestrator) runCycle(ctx context.Context, runID uuid.UUID, report *Report, log *zap.Logger) error {
	rid := runID.String()

	archived, err := o.deps.Archiver.RunStore(ctx, o.deps.Store)
	if err != nil {
		log.Error("archival failed", zap.Error(err))
	} else {
		report.Archived = archived.Total
		perCategory := make(map[string]int, len(archived.PerCategory))
		for c, n := range archived.PerCategory {
			perCategory[string(c)] = n
		}
		metrics.ObserveArchived(perCategory)
		o.emit(rid, StepArchive, fmt.Sprintf("Archived %d records", archived.Total), archived)
	}

	seen, err := o.deps.Ledger.Load()
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	links := o.discover(ctx, seen, log)
	report.Discovered = len(links)
	o.emit(rid, StepDiscover, fmt.Sprintf("Discovered %d new links", len(links)), links)
	if err := ctx.Err(); err != nil {
		return err
	}

	articles, err := o.fetchAll(ctx, links, report, log)
	if err != nil {
		return err
	}
	o.emit(rid, StepFetch, fmt.Sprintf("Fetched %d articles", len(articles)), nil)
	if len(articles) == 0 {
		log.Info("no new articles this cycle")
		return nil
	}

	clusters := o.deps.Clusterer.Cluster(articles)
	report.Clusters = len(clusters)
	o.emit(rid, StepCluster, fmt.Sprintf("Grouped %d articles into %d clusters", len(articles), len(clusters)), clusters)

	today := o.today()
	for _, cluster := range clusters {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome := o.processCluster(ctx, runID, cluster, today, log)
		report.Outcomes = append(report.Outcomes, outcome)
		switch outcome.Outcome {
		case db.OutcomeInserted:
			report.Inserted++
		case db.OutcomeDuplicate:
			report.Duplicates++
		default:
			report.Failed++
		}
		metrics.ObserveCluster(outcome.Outcome)
		o.emit(rid, StepSynthesize, fmt.Sprintf("%s: %s", outcome.Outcome, outcome.RecordID), outcome)
	}
	return nil
}

// discover collects new links from every source. A failing source is skipped.
func (o *Orchestrator) discover(ctx context.Context, seen ledger.Set, log *zap.Logger) []types.Link {
	var links []types.Link
	for _, source := range o.cfg.Sources {
		if ctx.Err() != nil {
			break
		}
		found, err := o.deps.Discoverer.Discover(ctx, source, seen)
		if err != nil {
			log.Warn("source discovery failed", zap.String("source", source), zap.Error(err))
			continue
		}
		metrics.ObserveDiscovered(source, len(found))
		links = append(links, found...)
	}
	return links
}

// fetchAll fetches every link. Failed and too-short pages are recorded in the
// ledger so they are not retried.
func (o *Orchestrator) fetchAll(ctx context.Context, links []types.Link, report *Report, log *zap.Logger) ([]types.Article, error) {
	articles := make([]types.Article, 0, len(links))
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := o.deps.Fetcher.FetchArticle(ctx, link.URL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("article fetch failed", zap.String("url", link.URL), zap.Error(err))
			metrics.ObserveArticle(link.URL, metrics.ArticleError)
			report.FetchFailed++
			o.markSeen(log, link.URL)
			continue
		}
		if utf8.RuneCountInString(content) < MinContentLength {
			log.Info("discarding short article", zap.String("url", link.URL), zap.Int("chars", utf8.RuneCountInString(content)))
			metrics.ObserveArticle(link.URL, metrics.ArticleShort)
			report.ShortDiscarded++
			o.markSeen(log, link.URL)
			continue
		}
		metrics.ObserveArticle(link.URL, metrics.ArticleOK)
		articles = append(articles, types.Article{Title: link.Title, URL: link.URL, Content: content})
	}
	return articles, nil
}

// processCluster synthesizes and stores one record. Every URL of the cluster is
// recorded in the ledger whatever the outcome, unless ctx was cancelled.
func (o *Orchestrator) processCluster(ctx context.Context, runID uuid.UUID, cluster types.Cluster, today time.Time, log *zap.Logger) db.ClusterOutcome {
	urls := cluster.URLs()
	lead := cluster.Lead()
	name := lead.Title
	if name == "" {
		name = lead.URL
	}
	log = log.With(zap.String("cluster", name), zap.Int("articles", len(urls)))

	outcome := o.synthesizeAndStore(ctx, runID, cluster, name, today, log)
	outcome.URLs = urls

	if ctx.Err() == nil || outcome.Outcome != db.OutcomeFailed {
		o.markSeen(log, urls...)
	}
	if o.deps.RunLog != nil {
		if err := o.deps.RunLog.RecordOutcome(ctx, runID, outcome); err != nil {
			log.Warn("failed to record cluster outcome", zap.Error(err))
		}
	}
	return outcome
}

func (o *Orchestrator) synthesizeAndStore(ctx context.Context, runID uuid.UUID, cluster types.Cluster, name string, today time.Time, log *zap.Logger) db.ClusterOutcome {
	blob := synthesis.Consolidate(cluster.Articles, today)
	if o.deps.Artifacts != nil {
		if _, err := o.deps.Artifacts.SaveConsolidated(ctx, name, blob); err != nil {
			log.Warn("failed to save consolidated text", zap.Error(err))
		}
	}

	result, err := o.deps.Synthesizer.Synthesize(ctx, blob)
	if result.Raw != "" && o.deps.Artifacts != nil {
		if _, saveErr := o.deps.Artifacts.SaveResponse(ctx, name, result.Raw); saveErr != nil {
			log.Warn("failed to save model response", zap.Error(saveErr))
		}
	}
	if err != nil {
		log.Error("synthesis failed", zap.Error(err))
		return db.ClusterOutcome{Outcome: db.OutcomeFailed, Reason: failureReason(err)}
	}

	rec := result.Record
	log = log.With(zap.String("category", string(result.Category)), zap.String("id", rec.ID))

	var inserted store.Outcome
	err = o.deps.Store.Update(func(state *store.State) (*store.State, bool, error) {
		next, outcome := store.Insert(state, result.Category, rec)
		inserted = outcome
		return next, outcome == store.OutcomeInserted, nil
	})
	if err != nil {
		log.Error("store update failed", zap.Error(err))
		return db.ClusterOutcome{Outcome: db.OutcomeFailed, Category: string(result.Category), RecordID: rec.ID, Reason: err.Error()}
	}

	switch inserted {
	case store.OutcomeInserted:
		log.Info("record inserted", zap.String("title", rec.Title))
		o.publish(ctx, runID, result.Category, rec, cluster.URLs(), log)
		return db.ClusterOutcome{Outcome: db.OutcomeInserted, Category: string(result.Category), RecordID: rec.ID}
	case store.OutcomeDuplicate:
		log.Info("duplicate record skipped")
		return db.ClusterOutcome{Outcome: db.OutcomeDuplicate, Category: string(result.Category), RecordID: rec.ID}
	default:
		log.Error("record not routable", zap.String("outcome", string(inserted)))
		return db.ClusterOutcome{Outcome: db.OutcomeFailed, Category: string(result.Category), RecordID: rec.ID, Reason: string(inserted)}
	}
}

func (o *Orchestrator) publish(ctx context.Context, runID uuid.UUID, category types.Category, rec types.Record, urls []string, log *zap.Logger) {
	event := publisher.RecordInserted{
		RunID:      runID.String(),
		Category:   string(category),
		ID:         rec.ID,
		Title:      rec.Title,
		Sources:    urls,
		InsertedAt: o.cfg.Clock().UTC(),
	}
	if _, err := o.deps.Publisher.Publish(ctx, publisher.EventRecordInserted, event); err != nil {
		log.Warn("failed to publish record event", zap.Error(err))
	}
}

func (o *Orchestrator) markSeen(log *zap.Logger, urls ...string) {
	if err := o.deps.Ledger.RecordAll(urls); err != nil {
		log.Error("failed to record seen urls", zap.Strings("urls", urls), zap.Error(err))
	}
}

func (o *Orchestrator) finish(ctx context.Context, runID uuid.UUID, report *Report, runErr error, log *zap.Logger) {
	report.FinishedAt = o.cfg.Clock()
	duration := report.FinishedAt.Sub(report.StartedAt)

	status := "ok"
	if runErr != nil {
		status = "error"
	}
	metrics.ObserveCycle(status, duration)

	if state, err := o.deps.Store.Load(); err == nil {
		counts := make(map[string]int)
		for c, n := range state.Counts() {
			counts[string(c)] = n
		}
		total := 0
		for _, n := range state.ArchivedCounts() {
			total += n
		}
		counts[store.ArchivedKey] = total
		metrics.SetStoreRecords(counts)
	}

	if o.deps.RunLog != nil {
		// The run row is closed even when ctx was cancelled mid-cycle.
		if err := o.deps.RunLog.CompleteRun(context.WithoutCancel(ctx), runID, report.Counts(), runErr); err != nil {
			log.Warn("failed to record run completion", zap.Error(err))
		}
	}

	o.mu.Lock()
	o.last = report
	o.mu.Unlock()

	o.emit(report.RunID, StepComplete, "Cycle complete", report)
	log.Info("cycle finished",
		zap.Duration("duration", duration),
		zap.Int("archived", report.Archived),
		zap.Int("discovered", report.Discovered),
		zap.Int("short_discarded", report.ShortDiscarded),
		zap.Int("clusters", report.Clusters),
		zap.Int("inserted", report.Inserted),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("failed", report.Failed),
		zap.Error(runErr),
	)
}

func (o *Orchestrator) today() time.Time {
	return dates.Civil(o.cfg.Clock().In(o.cfg.Location))
}

func failureReason(err error) string {
	var synthErr *synthesis.Error
	if errors.As(err, &synthErr) && synthErr.Kind != nil {
		return synthErr.Kind.Error()
	}
	return err.Error()
}
