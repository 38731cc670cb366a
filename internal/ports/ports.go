package ports

import (
	"context"
	"time"

	"HotlistTracker/internal/domain"
)

// TopicStore is the durable state the reconciliation engine depends on.
// Upsert replaces the whole record atomically; FindByIdentity returns
// domain.ErrNotFound when no topic has the identity.
type TopicStore interface {
	FindByIdentity(ctx context.Context, id domain.Identity) (domain.TrackedTopic, error)
	// FindActiveSimilarCandidates lists active topics of platform seen at or after since,
	// ordered by last sighting (newest first) then identity.
	FindActiveSimilarCandidates(ctx context.Context, platform string, since time.Time) ([]domain.TopicRef, error)
	Upsert(ctx context.Context, topic domain.TrackedTopic) error
	// RetireAllExcept deactivates active topics of the partition whose identity is not in keep
	// and returns the retired identities.
	RetireAllExcept(ctx context.Context, platform, category string, keep []domain.Identity) ([]domain.Identity, error)
}

// CollectionLogRepository persists one audit row per reconciliation cycle.
type CollectionLogRepository interface {
	SaveCollectionLog(ctx context.Context, log domain.CollectionLog) error
	// RecentCollectionLogs returns newest first; an empty platform means all platforms.
	RecentCollectionLogs(ctx context.Context, platform string, limit int) ([]domain.CollectionLog, error)
}

// TopicQueries serves read-only reporting over tracked topics.
type TopicQueries interface {
	ActiveTopics(ctx context.Context, platform, category string, limit int) ([]domain.TrackedTopic, error)
	// RankChanges lists topics of platform seen since, largest absolute rank delta first.
	RankChanges(ctx context.Context, platform string, since time.Time, limit int) ([]domain.TrackedTopic, error)
	SearchTopics(ctx context.Context, keyword string, limit int) ([]domain.TrackedTopic, error)
}

// SnapshotSource fetches one page of a platform's hot list already mapped to candidates.
// Ranks are page-local; more reports whether the platform signalled further pages.
type SnapshotSource interface {
	FetchCandidates(ctx context.Context, req SnapshotRequest) (candidates []domain.Candidate, more bool, err error)
}

// SnapshotRequest addresses a single page of a platform category.
type SnapshotRequest struct {
	Platform string
	Category string
	Page     int
}

// Notifier streams pass digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when collection passes execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
