package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"HotlistTracker/internal/domain"
	"HotlistTracker/internal/pagination"
	"HotlistTracker/internal/ports"
)

// Reconciler applies one candidate list to a partition. Identify must hash a
// title exactly as Reconcile does.
type Reconciler interface {
	Reconcile(ctx context.Context, platform, category string, candidates []domain.Candidate) (domain.CycleResult, error)
	Identify(platform, category, title string) (domain.Identity, error)
}

// Observer receives cycle and pass outcomes, typically a metrics recorder.
type Observer interface {
	ObserveCycle(res domain.CycleResult)
	ObserveFetchError(platform, category string)
	ObservePass(s domain.PassSummary)
}

// Target is one enabled platform with the categories to collect.
type Target struct {
	Platform   string
	Categories []string
	Policy     pagination.Policy
}

// CollectorDeps wires driven adapters into the collection pass.
type CollectorDeps struct {
	Source     ports.SnapshotSource
	Reconciler Reconciler
	Logs       ports.CollectionLogRepository
	Observer   Observer
	Notifier   ports.Notifier
	Logger     *zap.Logger

	Targets  []Target
	Disabled int

	MaxParallel  int
	CycleTimeout time.Duration
}

// Collector runs collection passes: paginate, normalize ranks, reconcile and log each partition.
type Collector struct {
	source     ports.SnapshotSource
	reconciler Reconciler
	logs       ports.CollectionLogRepository
	observer   Observer
	notifier   ports.Notifier
	logger     *zap.Logger

	targets      []Target
	disabled     int
	maxParallel  int
	cycleTimeout time.Duration
	now          func() time.Time
	newRunID     func() string
}

// NewCollector constructs the orchestration component.
func NewCollector(deps CollectorDeps) *Collector {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxParallel := deps.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 1
	}
	return &Collector{
		source:       deps.Source,
		reconciler:   deps.Reconciler,
		logs:         deps.Logs,
		observer:     deps.Observer,
		notifier:     deps.Notifier,
		logger:       logger.With(zap.String("component", "collector")),
		targets:      deps.Targets,
		disabled:     deps.Disabled,
		maxParallel:  maxParallel,
		cycleTimeout: deps.CycleTimeout,
		now:          time.Now,
		newRunID:     func() string { return uuid.NewString() },
	}
}

// RunOnce performs one pass over every target. Platforms run concurrently up to
// MaxParallel; categories of a platform run in order. A failing partition never
// stops the others. The returned error is only set when ctx ends the pass early.
func (c *Collector) RunOnce(ctx context.Context) (domain.PassSummary, error) {
	if c.source == nil || c.reconciler == nil {
		return domain.PassSummary{}, errors.New("collector is not configured")
	}

	summary := domain.PassSummary{
		RunID:     c.newRunID(),
		Platforms: len(c.targets),
		Disabled:  c.disabled,
		StartedAt: c.now().UTC(),
	}
	log := c.logger.With(zap.String("run_id", summary.RunID))
	log.Info("collection pass started", zap.Int("platforms", len(c.targets)))

	results := make([][]domain.CycleResult, len(c.targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxParallel)
	for i, target := range c.targets {
		g.Go(func() error {
			for _, category := range target.Categories {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				results[i] = append(results[i], c.runCycle(gctx, summary.RunID, target, category))
			}
			return nil
		})
	}
	passErr := g.Wait()

	for _, platformResults := range results {
		for _, res := range platformResults {
			summary.Add(res)
		}
	}
	summary.FinishedAt = c.now().UTC()

	if c.observer != nil {
		c.observer.ObservePass(summary)
	}
	log.Info("collection pass finished",
		zap.Int("categories", summary.Categories),
		zap.Int("inserted", summary.Inserted),
		zap.Int("updated", summary.Updated),
		zap.Int("errors", summary.Errors),
		zap.Int("retired", summary.Retired),
		zap.Strings("failed", summary.Failed),
		zap.Duration("took", summary.FinishedAt.Sub(summary.StartedAt)),
	)

	if c.notifier != nil && summary.Categories > 0 {
		if err := c.notifier.PublishDigest(ctx, Digest(summary)); err != nil {
			log.Warn("publish digest failed", zap.Error(err))
		}
	}

	if passErr != nil {
		return summary, fmt.Errorf("collection pass: %w", passErr)
	}
	return summary, nil
}

// runCycle collects every page of one category and reconciles the merged list.
func (c *Collector) runCycle(ctx context.Context, runID string, target Target, category string) domain.CycleResult {
	log := c.logger.With(
		zap.String("run_id", runID),
		zap.String("platform", target.Platform),
		zap.String("category", category),
	)
	started := c.now().UTC()

	candidates, err := c.collect(ctx, target, category)
	if err != nil {
		res := domain.CycleResult{
			Platform:   target.Platform,
			Category:   category,
			Status:     domain.StatusFailed,
			StartedAt:  started,
			FinishedAt: c.now().UTC(),
		}
		log.Error("snapshot fetch failed, cycle aborted", zap.Error(err))
		if c.observer != nil {
			c.observer.ObserveFetchError(target.Platform, category)
			c.observer.ObserveCycle(res)
		}
		c.saveLog(ctx, log, runID, res, err)
		return res
	}

	res, err := c.reconciler.Reconcile(ctx, target.Platform, category, candidates)
	if err != nil {
		log.Warn("reconcile interrupted", zap.Error(err))
	}
	res.StartedAt = started
	if c.observer != nil {
		c.observer.ObserveCycle(res)
	}
	c.saveLog(ctx, log, runID, res, err)
	return res
}

// collect walks pages until the policy or the source says stop. Ranks are made
// list-global and a topic repeated on a later page keeps its first position.
func (c *Collector) collect(ctx context.Context, target Target, category string) ([]domain.Candidate, error) {
	if c.cycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cycleTimeout)
		defer cancel()
	}

	var out []domain.Candidate
	seen := make(map[domain.Identity]struct{})
	for ordinal := 1; ; ordinal++ {
		page, more, err := c.source.FetchCandidates(ctx, ports.SnapshotRequest{
			Platform: target.Platform,
			Category: category,
			Page:     target.Policy.APIPage(ordinal),
		})
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", ordinal, err)
		}

		window := pagination.Window{Page: ordinal, PageSize: target.Policy.PageSize, Accumulated: len(out)}
		for _, cand := range pagination.Normalize(page, window) {
			if id, err := c.reconciler.Identify(target.Platform, category, cand.Title); err == nil {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
			}
			// Invalid titles pass through so the engine rejects and counts them.
			out = append(out, cand)
		}

		if !more || target.Policy.ShouldStop(ordinal, len(page)) {
			return out, nil
		}
	}
}

func (c *Collector) saveLog(ctx context.Context, log *zap.Logger, runID string, res domain.CycleResult, cause error) {
	if c.logs == nil {
		return
	}
	entry := domain.NewCollectionLog(runID, res, cause)
	entry.ID = uuid.NewString()
	// The audit row is written even when the pass context was canceled.
	if err := c.logs.SaveCollectionLog(context.WithoutCancel(ctx), entry); err != nil {
		log.Error("save collection log failed", zap.Error(err))
	}
}
