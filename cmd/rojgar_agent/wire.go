package main

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/jonathan/rojgar-pipeline/internal/archive"
	"github.com/jonathan/rojgar-pipeline/internal/artifacts"
	"github.com/jonathan/rojgar-pipeline/internal/clustering"
	"github.com/jonathan/rojgar-pipeline/internal/config"
	"github.com/jonathan/rojgar-pipeline/internal/db"
	"github.com/jonathan/rojgar-pipeline/internal/discovery"
	"github.com/jonathan/rojgar-pipeline/internal/fetch"
	"github.com/jonathan/rojgar-pipeline/internal/ledger"
	"github.com/jonathan/rojgar-pipeline/internal/llm"
	"github.com/jonathan/rojgar-pipeline/internal/pipeline"
	"github.com/jonathan/rojgar-pipeline/internal/publisher"
	"github.com/jonathan/rojgar-pipeline/internal/store"
	"github.com/jonathan/rojgar-pipeline/internal/synthesis"
)

// app holds the wired pipeline and everything that must be released on exit.
type app struct {
	orchestrator *pipeline.Orchestrator
	store        *store.Store
	runs         *db.DB
	closers      []func()
}

// Close releases clients in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, onProgress pipeline.ProgressCallback, logger *zap.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	clock := func() time.Time { return time.Now().In(loc) }

	clusterer, err := clustering.New(clustering.Config{Threshold: cfg.Pipeline.Threshold})
	if err != nil {
		return nil, err
	}

	llmConfig := llm.DefaultConfig().WithModel(llm.TierLite, cfg.LLM.Model)
	llmConfig.Timeout = cfg.LLM.Timeout
	client, err := llm.NewGeminiClient(ctx, llmConfig, cfg.LLM.APIKey)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = client.Close() })

	writer, closeArtifacts, err := newArtifactWriter(ctx, cfg.Artifacts)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeArtifacts)

	pub, closePublisher, err := newPublisher(ctx, cfg.PubSub)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closePublisher)

	var runLog pipeline.RunLog
	if cfg.DB.URL != "" {
		database, err := db.Connect(ctx, cfg.DB.URL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, database.Close)
		if err := database.Migrate(ctx); err != nil {
			return nil, err
		}
		a.runs = database
		runLog = database
	}

	a.store = store.New(cfg.Store.Path, logger)
	deps := pipeline.Deps{
		Store:     a.store,
		Ledger:    ledger.New(cfg.Store.LedgerPath),
		Archiver:  archive.New(archive.DefaultRules(), clock, loc),
		Clusterer: clusterer,
		Discoverer: discovery.New(discovery.Config{
			UserAgent:     cfg.Fetch.UserAgent,
			RespectRobots: cfg.Fetch.RespectRobots,
			Timeout:       cfg.Fetch.Timeout,
			Now:           clock,
		}, logger),
		Fetcher: fetch.NewArticleFetcher(fetch.ArticleFetcherConfig{
			Options: &fetch.Options{
				Timeout:      cfg.Fetch.Timeout,
				UserAgent:    cfg.Fetch.UserAgent,
				MaxBodyBytes: fetch.DefaultMaxBodyBytes,
			},
			Browser:        cfg.Fetch.Browser,
			BrowserTimeout: cfg.Fetch.BrowserTimeout,
		}, logger),
		Synthesizer: synthesis.New(client, synthesis.Config{
			Tier:     llm.TierLite,
			Location: loc,
			Clock:    clock,
		}, logger),
		Publisher: pub,
		RunLog:    runLog,
		Logger:    logger,
	}
	if writer != nil {
		deps.Artifacts = writer
	}

	a.orchestrator, err = pipeline.New(pipeline.Config{
		Sources:    cfg.Pipeline.Sources,
		Location:   loc,
		Clock:      clock,
		OnProgress: onProgress,
	}, deps)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// newArtifactWriter picks a GCS bucket over a local directory. It returns a nil
// writer when neither is configured.
func newArtifactWriter(ctx context.Context, cfg config.ArtifactsConfig) (*artifacts.Writer, func(), error) {
	switch {
	case cfg.GCSBucket != "":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		blobs, err := artifacts.NewGCS(client, artifacts.GCSConfig{Bucket: cfg.GCSBucket, Prefix: cfg.Prefix})
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return artifacts.NewWriter(blobs, time.Now), func() { _ = client.Close() }, nil
	case cfg.Dir != "":
		blobs, err := artifacts.NewLocal(artifacts.LocalConfig{BaseDir: cfg.Dir})
		if err != nil {
			return nil, nil, err
		}
		return artifacts.NewWriter(blobs, time.Now), func() {}, nil
	default:
		return nil, func() {}, nil
	}
}

// newPublisher returns a Pub/Sub publisher when configured and a no-op otherwise.
func newPublisher(ctx context.Context, cfg config.PubSubConfig) (publisher.Publisher, func(), error) {
	if !cfg.Enabled() {
		return publisher.Nop{}, func() {}, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	pub, err := publisher.NewPubSub(client, cfg.Topic)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return pub, func() {
		pub.Stop()
		_ = client.Close()
	}, nil
}
