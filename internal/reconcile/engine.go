// Package reconcile applies one cycle's candidate list for a (platform, category)
// partition to the topic store: it inserts new topics, updates re-sighted ones
// with their rank delta and retires topics that fell off the list.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"HotlistTracker/internal/domain"
	"HotlistTracker/internal/identity"
	"HotlistTracker/internal/ports"
	"HotlistTracker/internal/textclean"
)

// Engine reconciles candidate lists against a ports.TopicStore.
// Cycles of the same partition are serialized; distinct partitions run concurrently.
type Engine struct {
	store    ports.TopicStore
	resolver *identity.Resolver
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time

	partitions *keyedMutex
	topics     *keyedMutex
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for cycle timestamps and undated candidates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New builds an engine over store. Zero config fields fall back to DefaultConfig.
func New(store ports.TopicStore, cfg Config, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	e := &Engine{
		store:      store,
		resolver:   identity.NewResolver(store, cfg.DedupWindow, cfg.TitleSimilarityThreshold),
		cfg:        cfg,
		logger:     logger.With(zap.String("component", "reconcile")),
		now:        time.Now,
		partitions: newKeyedMutex(),
		topics:     newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Reconcile applies candidates in order and then retires every active topic of
// the partition that was not observed. An empty list is skipped without a sweep.
// When ctx is canceled between candidates the sweep is skipped and ctx.Err()
// is returned along with the partial result.
func (e *Engine) Reconcile(ctx context.Context, platform, category string, candidates []domain.Candidate) (domain.CycleResult, error) {
	result := domain.CycleResult{
		Platform:  platform,
		Category:  category,
		Total:     len(candidates),
		StartedAt: e.now().UTC(),
	}
	log := e.logger.With(zap.String("platform", platform), zap.String("category", category))

	if len(candidates) == 0 {
		result.Status = domain.StatusSkipped
		result.FinishedAt = e.now().UTC()
		log.Info("empty candidate list, sweep skipped")
		return result, nil
	}

	unlock := e.partitions.Lock(platform + "/" + category)
	defer unlock()

	keep := make([]domain.Identity, 0, len(candidates))
	seen := make(map[domain.Identity]struct{}, len(candidates))
	remember := func(id domain.Identity) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		keep = append(keep, id)
	}

	for _, raw := range candidates {
		if err := ctx.Err(); err != nil {
			result.Status = domain.StatusCanceled
			result.FinishedAt = e.now().UTC()
			log.Warn("cycle canceled", zap.Int("processed", result.Written()+result.Errors), zap.Error(err))
			return result, err
		}

		c, id, err := e.prepare(platform, category, raw, result.StartedAt)
		if id != "" {
			// a listed topic stays active even when its rank or heat is rejected
			remember(id)
		}
		if err != nil {
			e.recordFailure(&result, log, c, err)
			continue
		}

		written, updated, err := e.apply(ctx, c, id)
		if err != nil {
			e.recordFailure(&result, log, c, err)
			continue
		}
		remember(written)

		if updated {
			result.Updated++
			result.Duplicate++
		} else {
			result.Inserted++
		}
	}

	retired, err := e.store.RetireAllExcept(ctx, platform, category, keep)
	if err != nil {
		result.SweepErr = err
		log.Error("retirement sweep failed", zap.Error(err))
	}
	result.Retired = retired

	result.SettleStatus()
	result.FinishedAt = e.now().UTC()

	log.Info("cycle reconciled",
		zap.String("status", string(result.Status)),
		zap.Int("total", result.Total),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("errors", result.Errors),
		zap.Int("retired", len(result.Retired)),
		zap.Duration("took", result.Duration()),
	)
	return result, nil
}

// prepare validates a copy of raw and computes its identity. The identity is
// returned whenever the title is usable, even if a later check fails.
func (e *Engine) prepare(platform, category string, raw domain.Candidate, fallback time.Time) (domain.Candidate, domain.Identity, error) {
	c := raw

	switch {
	case c.Platform == "":
		c.Platform = platform
	case c.Platform != platform:
		return c, "", fmt.Errorf("%w: platform %q", domain.ErrPartitionMismatch, c.Platform)
	}
	switch {
	case c.Category == "":
		c.Category = category
	case c.Category != category:
		return c, "", fmt.Errorf("%w: category %q", domain.ErrPartitionMismatch, c.Category)
	}

	c.Title = e.CleanTitle(c.Title)
	id, err := identity.Compute(c.Platform, c.Category, c.Title)
	if err != nil {
		return c, "", err
	}

	if c.Rank < 1 {
		return c, id, fmt.Errorf("%w: %d", domain.ErrInvalidRank, c.Rank)
	}
	if c.HeatValue != nil {
		if *c.HeatValue < 0 {
			return c, id, fmt.Errorf("%w: %d", domain.ErrInvalidHeat, *c.HeatValue)
		}
		c.HeatValue = domain.Heat(*c.HeatValue)
	}
	c.Tags = textclean.ProcessTags(c.Tags, textclean.DefaultMaxTagLength, e.cfg.MaxTagsCount)
	if len(c.Tags) == 0 {
		c.Tags = nil
	}
	c.URL = strings.TrimSpace(c.URL)
	if c.ObservedAt.IsZero() {
		c.ObservedAt = fallback
	}
	c.ObservedAt = c.ObservedAt.UTC()

	return c, id, nil
}

// CleanTitle trims and truncates a title the way it is hashed into an identity.
func (e *Engine) CleanTitle(title string) string {
	return textclean.Truncate(strings.TrimSpace(title), e.cfg.MaxTitleLength)
}

// Identify computes the identity a candidate with this title would get in the partition.
func (e *Engine) Identify(platform, category, title string) (domain.Identity, error) {
	return identity.Compute(platform, category, e.CleanTitle(title))
}

// apply resolves c and writes the resulting topic. It returns the identity of
// the written record and whether an existing topic was updated.
func (e *Engine) apply(ctx context.Context, c domain.Candidate, id domain.Identity) (domain.Identity, bool, error) {
	match, err := e.resolver.Resolve(ctx, c, id, c.ObservedAt)
	if err != nil {
		return "", false, fmt.Errorf("resolve: %w", err)
	}

	target := id
	if match.Found() {
		target = match.Existing.Identity
	}

	unlock := e.topics.Lock(string(target))
	defer unlock()

	// re-read under the identity lock; another partition may have written it
	existing, err := e.store.FindByIdentity(ctx, target)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if target != id {
			return "", false, fmt.Errorf("matched topic %s disappeared", target.Short())
		}
		topic := newTopic(c, id)
		if err := e.store.Upsert(ctx, topic); err != nil {
			return "", false, fmt.Errorf("insert: %w", err)
		}
		e.logger.Debug("topic inserted",
			zap.String("identity", id.Short()),
			zap.String("title", c.Title),
			zap.Int("rank", c.Rank),
		)
		return id, false, nil
	case err != nil:
		return "", false, fmt.Errorf("reload topic: %w", err)
	}

	topic := resight(existing, c)
	if err := e.store.Upsert(ctx, topic); err != nil {
		return "", false, fmt.Errorf("update: %w", err)
	}
	if match.Kind == identity.FuzzyMatch || match.Stale {
		e.logger.Debug("topic matched",
			zap.String("match", match.Kind.String()),
			zap.Bool("stale", match.Stale),
			zap.Float64("similarity", match.Similarity),
			zap.String("identity", target.Short()),
			zap.String("title", c.Title),
		)
	}
	return target, true, nil
}

func (e *Engine) recordFailure(result *domain.CycleResult, log *zap.Logger, c domain.Candidate, err error) {
	result.Errors++
	result.Failures = append(result.Failures, domain.CandidateError{
		Platform: c.Platform,
		Title:    c.Title,
		Rank:     c.Rank,
		Err:      err,
	})
	log.Warn("candidate not reconciled",
		zap.String("title", c.Title),
		zap.Int("rank", c.Rank),
		zap.Error(err),
	)
}

func newTopic(c domain.Candidate, id domain.Identity) domain.TrackedTopic {
	return domain.TrackedTopic{
		Identity:    id,
		Platform:    c.Platform,
		Category:    c.Category,
		Title:       c.Title,
		CurrentRank: c.Rank,
		HeatValue:   c.HeatValue,
		URL:         c.URL,
		Tags:        c.Tags,
		FirstSeenAt: c.ObservedAt,
		LastSeenAt:  c.ObservedAt,
		IsActive:    true,
	}
}

// resight carries the previous rank forward; a positive delta means the topic climbed.
func resight(existing domain.TrackedTopic, c domain.Candidate) domain.TrackedTopic {
	previous := existing.CurrentRank
	topic := existing
	topic.PreviousRank = &previous
	topic.RankDelta = previous - c.Rank
	topic.CurrentRank = c.Rank
	topic.HeatValue = c.HeatValue
	topic.URL = c.URL
	topic.Tags = c.Tags
	topic.LastSeenAt = c.ObservedAt
	topic.IsActive = true
	return topic
}
