package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"HotlistTracker/internal/domain"
	"HotlistTracker/internal/identity"
	"HotlistTracker/internal/infrastructure/storage"
	"HotlistTracker/internal/textclean"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newEngine(t *testing.T, store *storage.MemoryStore, clk *clock) *Engine {
	t.Helper()
	return New(store, DefaultConfig(), zaptest.NewLogger(t), WithClock(clk.Now))
}

func cand(title string, rank int) domain.Candidate {
	return domain.Candidate{Title: title, Rank: rank}
}

func mustID(t *testing.T, platform, category, title string) domain.Identity {
	t.Helper()
	id, err := identity.Compute(platform, category, title)
	require.NoError(t, err)
	return id
}

func find(t *testing.T, store *storage.MemoryStore, id domain.Identity) domain.TrackedTopic {
	t.Helper()
	topic, err := store.FindByIdentity(context.Background(), id)
	require.NoError(t, err)
	return topic
}

func TestReconcileWeiboSearchScenario(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	clk := newClock()
	engine := newEngine(t, store, clk)

	first, err := engine.Reconcile(ctx, "weibo", "search", []domain.Candidate{cand("A", 1), cand("B", 2)})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)
	assert.Empty(t, first.Retired)
	assert.Equal(t, domain.StatusSuccess, first.Status)

	clk.Advance(2 * time.Minute)
	second, err := engine.Reconcile(ctx, "weibo", "search", []domain.Candidate{cand("A", 2), cand("C", 1)})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Inserted)
	assert.Equal(t, 1, second.Updated)
	assert.Equal(t, 1, second.Duplicate)
	assert.Equal(t, []domain.Identity{mustID(t, "weibo", "search", "B")}, second.Retired)

	a := find(t, store, mustID(t, "weibo", "search", "A"))
	assert.Equal(t, -1, a.RankDelta)
	require.NotNil(t, a.PreviousRank)
	assert.Equal(t, 1, *a.PreviousRank)
	assert.Equal(t, 2, a.CurrentRank)
	assert.Equal(t, clk.Now(), a.LastSeenAt)
	assert.Equal(t, clk.Now().Add(-2*time.Minute), a.FirstSeenAt)

	b := find(t, store, mustID(t, "weibo", "search", "B"))
	assert.False(t, b.IsActive)
	assert.Zero(t, b.RankDelta)
}

func TestReconcileRankDeltaSign(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	engine := newEngine(t, store, newClock())
	id := mustID(t, "zhihu", "hot", "topic")

	_, err := engine.Reconcile(ctx, "zhihu", "hot", []domain.Candidate{cand("topic", 5)})
	require.NoError(t, err)
	assert.Zero(t, find(t, store, id).RankDelta)
	assert.Nil(t, find(t, store, id).PreviousRank)

	_, err = engine.Reconcile(ctx, "zhihu", "hot", []domain.Candidate{cand("topic", 2)})
	require.NoError(t, err)
	assert.Equal(t, 3, find(t, store, id).RankDelta)

	_, err = engine.Reconcile(ctx, "zhihu", "hot", []domain.Candidate{cand("topic", 5)})
	require.NoError(t, err)
	assert.Equal(t, -3, find(t, store, id).RankDelta)
}

func seed(t *testing.T, store *storage.MemoryStore, platform, category, title string, rank int, seen time.Time) domain.Identity {
	t.Helper()
	id := mustID(t, platform, category, title)
	require.NoError(t, store.Upsert(context.Background(), domain.TrackedTopic{
		Identity:    id,
		Platform:    platform,
		Category:    category,
		Title:       title,
		CurrentRank: rank,
		FirstSeenAt: seen,
		LastSeenAt:  seen,
		IsActive:    true,
	}))
	return id
}

func TestReconcileExactMatchPrecedence(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	clk := newClock()
	engine := newEngine(t, store, clk)

	// the ent twin is the freshest member of the fuzzy pool and would win a fuzzy lookup
	searchID := seed(t, store, "weibo", "search", "alpha beta gamma", 1, clk.Now().Add(-10*time.Minute))
	entID := seed(t, store, "weibo", "ent", "alpha beta gamma", 4, clk.Now().Add(-time.Minute))

	res, err := engine.Reconcile(ctx, "weibo", "search", []domain.Candidate{cand("alpha beta gamma", 3)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	assert.Equal(t, 3, find(t, store, searchID).CurrentRank)
	assert.Equal(t, 4, find(t, store, entID).CurrentRank, "fuzzy twin in another category untouched")
}

func TestReconcileStaleExactMatchIsHonored(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	clk := newClock()
	engine := newEngine(t, store, clk)

	_, err := engine.Reconcile(ctx, "baidu", "realtime", []domain.Candidate{cand("old news", 7)})
	require.NoError(t, err)

	clk.Advance(6 * time.Hour)
	res, err := engine.Reconcile(ctx, "baidu", "realtime", []domain.Candidate{cand("old news", 2)})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 5, find(t, store, mustID(t, "baidu", "realtime", "old news")).RankDelta)
}

func TestReconcilePartitionIsolation(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	clk := newClock()
	engine := newEngine(t, store, clk)

	_, err := engine.Reconcile(ctx, "weibo", "search", []domain.Candidate{cand("shared title", 1)})
	require.NoError(t, err)
	entID := seed(t, store, "weibo", "ent", "shared title", 1, clk.Now())
	douyinID := seed(t, store, "douyin", "search", "shared title", 1, clk.Now())

	res, err := engine.Reconcile(ctx, "weibo", "search", []domain.Candidate{cand("unrelated words here", 1)})
	require.NoError(t, err)
	assert.Equal(t, []domain.Identity{mustID(t, "weibo", "search", "shared title")}, res.Retired)

	assert.True(t, find(t, store, entID).IsActive)
	assert.True(t, find(t, store, douyinID).IsActive)
}

func TestReconcileIdempotentRerun(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	clk := newClock()
	engine := newEngine(t, store, clk)

	list := []domain.Candidate{cand("one", 1), cand("two", 2), cand("three", 3)}
	_, err := engine.Reconcile(ctx, "bilibili", "popular", list)
	require.NoError(t, err)

	clk.Advance(time.Second)
	res, err := engine.Reconcile(ctx, "bilibili", "popular", list)
	require.NoError(t, err)
	assert.Zero(t, res.Inserted)
	assert.Equal(t, 3, res.Updated)
	assert.Empty(t, res.Retired)

	for _, c := range list {
		assert.Zero(t, find(t, store, mustID(t, "bilibili", "popular", c.Title)).RankDelta, c.Title)
	}
}

func TestReconcileRetirementThenRecovery(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	clk := newClock()
	engine := newEngine(t, store, clk)
	id := mustID(t, "toutiao", "hot", "comeback")

	_, err := engine.Reconcile(ctx, "toutiao", "hot", []domain.Candidate{cand("steady", 1), cand("comeback", 4)})
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	_, err = engine.Reconcile(ctx, "toutiao", "hot", []domain.Candidate{cand("steady", 1)})
	require.NoError(t, err)
	gone := find(t, store, id)
	assert.False(t, gone.IsActive)
	assert.Zero(t, gone.RankDelta)

	clk.Advance(2 * time.Minute)
	res, err := engine.Reconcile(ctx, "toutiao", "hot", []domain.Candidate{cand("steady", 1), cand("comeback", 2)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Updated)

	back := find(t, store, id)
	assert.True(t, back.IsActive)
	assert.Equal(t, 2, back.RankDelta, "delta against last recorded rank")
	require.NotNil(t, back.PreviousRank)
	assert.Equal(t, 4, *back.PreviousRank)
}

func titleOf(shared int, extra ...string) string {
	words := make([]string, 0, shared+len(extra))
	for i := 0; i < shared; i++ {
		words = append(words, fmt.Sprintf("w%d", i))
	}
	return strings.Join(append(words, extra...), " ")
}

func TestReconcileFuzzyThresholdBoundary(t *testing.T) {
	ctx := context.Background()

	t.Run("at threshold matches", func(t *testing.T) {
		store := storage.NewMemoryStore()
		clk := newClock()
		engine := newEngine(t, store, clk)

		original := titleOf(17, "x0")
		_, err := engine.Reconcile(ctx, "weibo", "search", []domain.Candidate{cand(original, 3)})
		require.NoError(t, err)

		clk.Advance(time.Minute)
		res, err := engine.Reconcile(ctx, "weibo", "search", []domain.Candidate{cand(titleOf(17, "y0", "y1"), 1)})
		require.NoError(t, err)
		assert.Zero(t, res.Inserted)
		assert.Equal(t, 1, res.Updated)
		assert.Empty(t, res.Retired, "matched topic is kept by the sweep")

		topic := find(t, store, mustID(t, "weibo", "search", original))
		assert.True(t, topic.IsActive)
		assert.Equal(t, 2, topic.RankDelta)
		assert.Equal(t, original, topic.Title)
	})

	t.Run("one token below does not", func(t *testing.T) {
		store := storage.NewMemoryStore()
		clk := newClock()
		engine := newEngine(t, store, clk)

		_, err := engine.Reconcile(ctx, "weibo", "search", []domain.Candidate{cand(titleOf(16, "x0", "x1"), 3)})
		require.NoError(t, err)

		clk.Advance(time.Minute)
		res, err := engine.Reconcile(ctx, "weibo", "search", []domain.Candidate{cand(titleOf(16, "y0", "y1"), 1)})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Inserted)
		assert.Len(t, res.Retired, 1)
	})

	t.Run("outside window does not", func(t *testing.T) {
		store := storage.NewMemoryStore()
		clk := newClock()
		engine := newEngine(t, store, clk)

		_, err := engine.Reconcile(ctx, "weibo", "search", []domain.Candidate{cand(titleOf(17, "x0"), 3)})
		require.NoError(t, err)

		clk.Advance(31 * time.Minute)
		res, err := engine.Reconcile(ctx, "weibo", "search", []domain.Candidate{cand(titleOf(17, "y0", "y1"), 1)})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Inserted)
	})
}

func TestReconcileEmptyListSkipsSweep(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	engine := newEngine(t, store, newClock())

	_, err := engine.Reconcile(ctx, "weibo", "search", []domain.Candidate{cand("A", 1)})
	require.NoError(t, err)

	res, err := engine.Reconcile(ctx, "weibo", "search", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSkipped, res.Status)
	assert.True(t, find(t, store, mustID(t, "weibo", "search", "A")).IsActive)
}

func TestReconcileInvalidCandidates(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	core, logs := observer.New(zapcore.WarnLevel)
	engine := New(store, DefaultConfig(), zap.New(core), WithClock(newClock().Now))

	res, err := engine.Reconcile(ctx, "weibo", "search", []domain.Candidate{
		cand("   ", 1),
		cand("no rank", 0),
		{Title: "cold", Rank: 2, HeatValue: domain.Heat(-1)},
		{Title: "elsewhere", Rank: 3, Category: "ent"},
		cand("fine", 4),
	})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 4, res.Errors)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, domain.StatusPartial, res.Status)

	require.Len(t, res.Failures, 4)
	assert.ErrorIs(t, res.Failures[0], domain.ErrInvalidTitle)
	assert.ErrorIs(t, res.Failures[1], domain.ErrInvalidRank)
	assert.ErrorIs(t, res.Failures[2], domain.ErrInvalidHeat)
	assert.ErrorIs(t, res.Failures[3], domain.ErrPartitionMismatch)

	assert.Equal(t, 4, logs.FilterMessage("candidate not reconciled").Len())
	first := logs.FilterMessage("candidate not reconciled").All()[1]
	assert.Equal(t, "no rank", first.ContextMap()["title"])
	assert.Equal(t, "weibo", first.ContextMap()["platform"])
}

func TestReconcileRejectedListedTopicStaysActive(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	engine := newEngine(t, store, newClock())

	_, err := engine.Reconcile(ctx, "weibo", "search", []domain.Candidate{cand("A", 1), cand("B", 2)})
	require.NoError(t, err)

	res, err := engine.Reconcile(ctx, "weibo", "search", []domain.Candidate{
		cand("A", 1),
		{Title: "B", Rank: 2, HeatValue: domain.Heat(-5)},
		cand("C", 0),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Errors)
	assert.Empty(t, res.Retired)
	b := find(t, store, mustID(t, "weibo", "search", "B"))
	assert.True(t, b.IsActive)
	assert.Equal(t, 2, b.CurrentRank, "rejected sighting is not written")
	assert.Nil(t, b.HeatValue)
}

func TestReconcileFailureCarriesPartition(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t, storage.NewMemoryStore(), newClock())

	res, err := engine.Reconcile(ctx, "weibo", "search", []domain.Candidate{cand("real topic", 0)})
	require.NoError(t, err)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, "weibo", res.Failures[0].Platform)
	assert.Contains(t, res.Failures[0].Error(), "(weibo, rank 0)")
}

func TestReconcileSaturatedHeatAccepted(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	engine := newEngine(t, store, newClock())

	res, err := engine.Reconcile(ctx, "weibo", "search", []domain.Candidate{{
		Title:     "real topic",
		Rank:      1,
		HeatValue: textclean.ParseHeat("99999999999亿"),
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, domain.StatusSuccess, res.Status)

	topic := find(t, store, mustID(t, "weibo", "search", "real topic"))
	require.NotNil(t, topic.HeatValue)
	assert.Equal(t, int64(math.MaxInt64), *topic.HeatValue)
}

func TestIdentifyMatchesStoredIdentity(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	cfg := DefaultConfig()
	cfg.MaxTitleLength = 8
	engine := New(store, cfg, zaptest.NewLogger(t), WithClock(newClock().Now))

	_, err := engine.Reconcile(ctx, "weibo", "search", []domain.Candidate{cand(" a very long headline ", 1)})
	require.NoError(t, err)

	id, err := engine.Identify("weibo", "search", "a very long headline, different tail")
	require.NoError(t, err)
	assert.True(t, find(t, store, id).IsActive)

	_, err = engine.Identify("weibo", "search", "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidTitle)
}

func TestReconcilePreparesCandidates(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	cfg := DefaultConfig()
	cfg.MaxTitleLength = 8
	cfg.MaxTagsCount = 2
	engine := New(store, cfg, zaptest.NewLogger(t), WithClock(newClock().Now))

	input := []domain.Candidate{{
		Title:     "  a very long headline  ",
		Rank:      1,
		HeatValue: domain.Heat(10),
		Tags:      []string{"hot", "hot", "new", "boom"},
	}}
	_, err := engine.Reconcile(ctx, "weibo", "search", input)
	require.NoError(t, err)

	topic := find(t, store, mustID(t, "weibo", "search", "a ver..."))
	assert.Equal(t, []string{"hot", "new"}, topic.Tags)
	assert.Equal(t, "  a very long headline  ", input[0].Title, "input is not mutated")
	assert.Len(t, input[0].Tags, 4)
}

type faultyStore struct {
	*storage.MemoryStore
	failTitle string
	sweepErr  error
	swept     bool
}

func (f *faultyStore) Upsert(ctx context.Context, topic domain.TrackedTopic) error {
	if topic.Title == f.failTitle || f.failTitle == "*" {
		return errors.New("disk full")
	}
	return f.MemoryStore.Upsert(ctx, topic)
}

func (f *faultyStore) RetireAllExcept(ctx context.Context, platform, category string, keep []domain.Identity) ([]domain.Identity, error) {
	f.swept = true
	if f.sweepErr != nil {
		return nil, f.sweepErr
	}
	return f.MemoryStore.RetireAllExcept(ctx, platform, category, keep)
}

func TestReconcileStoreFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("single write failure continues", func(t *testing.T) {
		store := &faultyStore{MemoryStore: storage.NewMemoryStore(), failTitle: "bad"}
		engine := New(store, DefaultConfig(), zaptest.NewLogger(t))

		res, err := engine.Reconcile(ctx, "weibo", "search", []domain.Candidate{cand("good", 1), cand("bad", 2), cand("also good", 3)})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Inserted)
		assert.Equal(t, 1, res.Errors)
		assert.Equal(t, domain.StatusPartial, res.Status)
	})

	t.Run("every write fails", func(t *testing.T) {
		store := &faultyStore{MemoryStore: storage.NewMemoryStore(), failTitle: "*"}
		engine := New(store, DefaultConfig(), zaptest.NewLogger(t))

		res, err := engine.Reconcile(ctx, "weibo", "search", []domain.Candidate{cand("a", 1), cand("b", 2)})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFailed, res.Status)
	})

	t.Run("sweep failure is partial", func(t *testing.T) {
		store := &faultyStore{MemoryStore: storage.NewMemoryStore(), sweepErr: errors.New("lock timeout")}
		engine := New(store, DefaultConfig(), zaptest.NewLogger(t))

		res, err := engine.Reconcile(ctx, "weibo", "search", []domain.Candidate{cand("a", 1)})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Inserted)
		assert.Equal(t, domain.StatusPartial, res.Status)
		assert.EqualError(t, res.SweepErr, "lock timeout")
	})
}

func TestReconcileCanceled(t *testing.T) {
	store := &faultyStore{MemoryStore: storage.NewMemoryStore()}
	engine := New(store, DefaultConfig(), zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := engine.Reconcile(ctx, "weibo", "search", []domain.Candidate{cand("a", 1)})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.StatusCanceled, res.Status)
	assert.False(t, store.swept)
}

func TestReconcileConcurrentPartitions(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	engine := New(store, DefaultConfig(), zaptest.NewLogger(t))

	categories := []string{"search", "ent", "news", "sports"}
	var wg sync.WaitGroup
	for _, category := range categories {
		for round := 0; round < 3; round++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := engine.Reconcile(ctx, "weibo", category, []domain.Candidate{
					cand(category+" first", 1),
					cand(category+" second", 2),
				})
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	for _, category := range categories {
		active, err := store.ActiveTopics(ctx, "weibo", category, 0)
		require.NoError(t, err)
		assert.Len(t, active, 2, category)
	}
	assert.Zero(t, engine.partitions.size())
	assert.Zero(t, engine.topics.size())
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.TitleSimilarityThreshold = 1.5
	require.Error(t, bad.Validate())

	engine := New(storage.NewMemoryStore(), Config{}, nil)
	assert.Equal(t, DefaultConfig(), engine.Config())
}
