package storage

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"HotlistTracker/internal/domain"
	"HotlistTracker/internal/ports"
)

// MemoryStore is an in-process store for tests and dry runs.
type MemoryStore struct {
	mu     sync.RWMutex
	topics map[domain.Identity]domain.TrackedTopic
	logs   []domain.CollectionLog
}

var (
	_ ports.TopicStore              = (*MemoryStore)(nil)
	_ ports.CollectionLogRepository = (*MemoryStore)(nil)
	_ ports.TopicQueries            = (*MemoryStore)(nil)
)

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{topics: map[domain.Identity]domain.TrackedTopic{}}
}

func (m *MemoryStore) FindByIdentity(_ context.Context, id domain.Identity) (domain.TrackedTopic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	topic, ok := m.topics[id]
	if !ok {
		return domain.TrackedTopic{}, domain.ErrNotFound
	}
	return cloneTopic(topic), nil
}

func (m *MemoryStore) FindActiveSimilarCandidates(_ context.Context, platform string, since time.Time) ([]domain.TopicRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var refs []domain.TopicRef
	for _, topic := range m.topics {
		if topic.Platform != platform || !topic.IsActive || topic.LastSeenAt.Before(since) {
			continue
		}
		refs = append(refs, domain.TopicRef{Identity: topic.Identity, Title: topic.Title, LastSeenAt: topic.LastSeenAt})
	}

	sort.Slice(refs, func(i, j int) bool {
		if !refs[i].LastSeenAt.Equal(refs[j].LastSeenAt) {
			return refs[i].LastSeenAt.After(refs[j].LastSeenAt)
		}
		return refs[i].Identity < refs[j].Identity
	})
	return refs, nil
}

func (m *MemoryStore) Upsert(_ context.Context, topic domain.TrackedTopic) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.topics[topic.Identity] = cloneTopic(topic)
	return nil
}

func (m *MemoryStore) RetireAllExcept(_ context.Context, platform, category string, keep []domain.Identity) ([]domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var retired []domain.Identity
	for id, topic := range m.topics {
		if topic.Platform != platform || topic.Category != category || !topic.IsActive {
			continue
		}
		if slices.Contains(keep, id) {
			continue
		}
		topic.IsActive = false
		topic.RankDelta = 0
		m.topics[id] = topic
		retired = append(retired, id)
	}

	slices.Sort(retired)
	return retired, nil
}

func (m *MemoryStore) SaveCollectionLog(_ context.Context, log domain.CollectionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logs = append(m.logs, log)
	return nil
}

func (m *MemoryStore) RecentCollectionLogs(_ context.Context, platform string, limit int) ([]domain.CollectionLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var logs []domain.CollectionLog
	for _, log := range m.logs {
		if platform == "" || log.Platform == platform {
			logs = append(logs, log)
		}
	}

	sort.SliceStable(logs, func(i, j int) bool {
		if !logs[i].StartedAt.Equal(logs[j].StartedAt) {
			return logs[i].StartedAt.After(logs[j].StartedAt)
		}
		return logs[i].ID < logs[j].ID
	})
	return truncate(logs, limit), nil
}

func (m *MemoryStore) ActiveTopics(_ context.Context, platform, category string, limit int) ([]domain.TrackedTopic, error) {
	topics := m.filter(func(t domain.TrackedTopic) bool {
		return t.Platform == platform && t.IsActive && (category == "" || t.Category == category)
	})

	sort.Slice(topics, func(i, j int) bool {
		if topics[i].Category != topics[j].Category {
			return topics[i].Category < topics[j].Category
		}
		return topics[i].CurrentRank < topics[j].CurrentRank
	})
	return truncate(topics, limit), nil
}

func (m *MemoryStore) RankChanges(_ context.Context, platform string, since time.Time, limit int) ([]domain.TrackedTopic, error) {
	topics := m.filter(func(t domain.TrackedTopic) bool {
		return t.Platform == platform && t.RankDelta != 0 && !t.LastSeenAt.Before(since)
	})

	sort.Slice(topics, func(i, j int) bool {
		ai, aj := abs(topics[i].RankDelta), abs(topics[j].RankDelta)
		if ai != aj {
			return ai > aj
		}
		if !topics[i].LastSeenAt.Equal(topics[j].LastSeenAt) {
			return topics[i].LastSeenAt.After(topics[j].LastSeenAt)
		}
		return topics[i].Identity < topics[j].Identity
	})
	return truncate(topics, limit), nil
}

func (m *MemoryStore) SearchTopics(_ context.Context, keyword string, limit int) ([]domain.TrackedTopic, error) {
	topics := m.filter(func(t domain.TrackedTopic) bool {
		return strings.Contains(t.Title, keyword)
	})

	sort.Slice(topics, func(i, j int) bool {
		if !topics[i].LastSeenAt.Equal(topics[j].LastSeenAt) {
			return topics[i].LastSeenAt.After(topics[j].LastSeenAt)
		}
		return topics[i].Identity < topics[j].Identity
	})
	return truncate(topics, limit), nil
}

func (m *MemoryStore) filter(keep func(domain.TrackedTopic) bool) []domain.TrackedTopic {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.TrackedTopic
	for _, topic := range m.topics {
		if keep(topic) {
			out = append(out, cloneTopic(topic))
		}
	}
	return out
}

func cloneTopic(t domain.TrackedTopic) domain.TrackedTopic {
	if t.PreviousRank != nil {
		p := *t.PreviousRank
		t.PreviousRank = &p
	}
	if t.HeatValue != nil {
		t.HeatValue = domain.Heat(*t.HeatValue)
	}
	if len(t.Tags) == 0 {
		t.Tags = nil
	} else {
		t.Tags = slices.Clone(t.Tags)
	}
	return t
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
