package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"HotlistTracker/internal/domain"
	"HotlistTracker/internal/ports"
)

//go:embed schema.sql
var schemaSQL string

// Dialect selects the SQL driver and placeholder style.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

const (
	topicsTable = "topics"
	logsTable   = "collection_logs"
)

var topicColumns = []string{
	"identity", "platform", "category", "title",
	"current_rank", "previous_rank", "rank_delta", "heat_value",
	"url", "tags", "first_seen_at", "last_seen_at", "is_active",
}

var logColumns = []string{
	"id", "run_id", "platform", "category", "status",
	"total", "success", "errors", "duplicates", "retired",
	"error_message", "started_at", "finished_at",
}

// SQLStore keeps tracked topics and collection logs in SQLite or Postgres.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	builder sq.StatementBuilderType
}

var (
	_ ports.TopicStore              = (*SQLStore)(nil)
	_ ports.CollectionLogRepository = (*SQLStore)(nil)
	_ ports.TopicQueries            = (*SQLStore)(nil)
)

// ParseDialect validates a configured driver name.
func ParseDialect(name string) (Dialect, error) {
	switch Dialect(name) {
	case DialectSQLite, "sqlite3", "":
		return DialectSQLite, nil
	case DialectPostgres, "postgresql":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", name)
	}
}

// Open connects to dsn and verifies the connection. The schema is not applied; call Migrate.
func Open(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	db, err := openDB(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		// single writer avoids SQLITE_BUSY under concurrent cycles
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := applyPragmas(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return New(db, dialect), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, dialect Dialect) *SQLStore {
	var format sq.PlaceholderFormat = sq.Question
	if dialect == DialectPostgres {
		format = sq.Dollar
	}
	return &SQLStore{
		db:      db,
		dialect: dialect,
		builder: sq.StatementBuilder.PlaceholderFormat(format),
	}
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	return nil
}

// Migrate creates tables and indexes if they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// FindByIdentity loads a topic or returns domain.ErrNotFound.
func (s *SQLStore) FindByIdentity(ctx context.Context, id domain.Identity) (domain.TrackedTopic, error) {
	query, args, err := s.builder.Select(topicColumns...).
		From(topicsTable).
		Where(sq.Eq{"identity": string(id)}).
		ToSql()
	if err != nil {
		return domain.TrackedTopic{}, fmt.Errorf("build find query: %w", err)
	}

	topic, err := scanTopic(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TrackedTopic{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.TrackedTopic{}, fmt.Errorf("find topic %s: %w", id.Short(), err)
	}
	return topic, nil
}

// FindActiveSimilarCandidates lists active topics of platform seen at or after since.
func (s *SQLStore) FindActiveSimilarCandidates(ctx context.Context, platform string, since time.Time) ([]domain.TopicRef, error) {
	query, args, err := s.builder.Select("identity", "title", "last_seen_at").
		From(topicsTable).
		Where(sq.Eq{"platform": platform, "is_active": true}).
		Where(sq.GtOrEq{"last_seen_at": since.UnixMicro()}).
		OrderBy("last_seen_at DESC", "identity ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build similar query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query similar: %w", err)
	}
	defer rows.Close()

	var refs []domain.TopicRef
	for rows.Next() {
		var (
			ref      domain.TopicRef
			id       string
			lastSeen int64
		)
		if err := rows.Scan(&id, &ref.Title, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan similar: %w", err)
		}
		ref.Identity = domain.Identity(id)
		ref.LastSeenAt = fromMicros(lastSeen)
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return refs, nil
}

// Upsert replaces the full topic record in a single statement.
func (s *SQLStore) Upsert(ctx context.Context, topic domain.TrackedTopic) error {
	tags, err := json.Marshal(nonNilTags(topic.Tags))
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	query, args, err := s.builder.Insert(topicsTable).
		Columns(topicColumns...).
		Values(
			string(topic.Identity), topic.Platform, topic.Category, topic.Title,
			topic.CurrentRank, nullInt(topic.PreviousRank), topic.RankDelta, nullInt64(topic.HeatValue),
			topic.URL, string(tags), topic.FirstSeenAt.UnixMicro(), topic.LastSeenAt.UnixMicro(), topic.IsActive,
		).
		Suffix(`ON CONFLICT (identity) DO UPDATE SET
			platform = excluded.platform,
			category = excluded.category,
			title = excluded.title,
			current_rank = excluded.current_rank,
			previous_rank = excluded.previous_rank,
			rank_delta = excluded.rank_delta,
			heat_value = excluded.heat_value,
			url = excluded.url,
			tags = excluded.tags,
			first_seen_at = excluded.first_seen_at,
			last_seen_at = excluded.last_seen_at,
			is_active = excluded.is_active`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert topic %s: %w", topic.Identity.Short(), err)
	}
	return nil
}

// RetireAllExcept deactivates active topics of one partition that are not in keep.
func (s *SQLStore) RetireAllExcept(ctx context.Context, platform, category string, keep []domain.Identity) ([]domain.Identity, error) {
	ids := make([]string, len(keep))
	for i, id := range keep {
		ids[i] = string(id)
	}

	query, args, err := s.builder.Update(topicsTable).
		Set("is_active", false).
		Set("rank_delta", 0).
		Where(sq.Eq{"platform": platform, "category": category, "is_active": true}).
		Where(sq.NotEq{"identity": ids}).
		Suffix("RETURNING identity").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build retire: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("retire %s/%s: %w", platform, category, err)
	}
	defer rows.Close()

	var retired []domain.Identity
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan retired: %w", err)
		}
		retired = append(retired, domain.Identity(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return retired, nil
}

// SaveCollectionLog appends a cycle audit row.
func (s *SQLStore) SaveCollectionLog(ctx context.Context, log domain.CollectionLog) error {
	query, args, err := s.builder.Insert(logsTable).
		Columns(logColumns...).
		Values(
			log.ID, log.RunID, log.Platform, log.Category, string(log.Status),
			log.Total, log.Success, log.Errors, log.Duplicates, log.Retired,
			log.ErrorMessage, log.StartedAt.UnixMicro(), log.FinishedAt.UnixMicro(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build log insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save collection log: %w", err)
	}
	return nil
}

// RecentCollectionLogs returns the newest logs first.
func (s *SQLStore) RecentCollectionLogs(ctx context.Context, platform string, limit int) ([]domain.CollectionLog, error) {
	builder := s.builder.Select(logColumns...).
		From(logsTable).
		OrderBy("started_at DESC", "id ASC")
	if platform != "" {
		builder = builder.Where(sq.Eq{"platform": platform})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build logs query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.CollectionLog
	for rows.Next() {
		var (
			log             domain.CollectionLog
			status          string
			started, finish int64
		)
		if err := rows.Scan(
			&log.ID, &log.RunID, &log.Platform, &log.Category, &status,
			&log.Total, &log.Success, &log.Errors, &log.Duplicates, &log.Retired,
			&log.ErrorMessage, &started, &finish,
		); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		log.Status = domain.CycleStatus(status)
		log.StartedAt = fromMicros(started)
		log.FinishedAt = fromMicros(finish)
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return logs, nil
}

// ActiveTopics lists active topics by rank; an empty category means every category of platform.
func (s *SQLStore) ActiveTopics(ctx context.Context, platform, category string, limit int) ([]domain.TrackedTopic, error) {
	where := sq.Eq{"platform": platform, "is_active": true}
	if category != "" {
		where["category"] = category
	}
	return s.queryTopics(ctx, s.builder.Select(topicColumns...).
		From(topicsTable).
		Where(where).
		OrderBy("category ASC", "current_rank ASC"), limit)
}

// RankChanges lists topics seen since that moved, largest absolute delta first.
func (s *SQLStore) RankChanges(ctx context.Context, platform string, since time.Time, limit int) ([]domain.TrackedTopic, error) {
	return s.queryTopics(ctx, s.builder.Select(topicColumns...).
		From(topicsTable).
		Where(sq.Eq{"platform": platform}).
		Where(sq.NotEq{"rank_delta": 0}).
		Where(sq.GtOrEq{"last_seen_at": since.UnixMicro()}).
		OrderBy("ABS(rank_delta) DESC", "last_seen_at DESC", "identity ASC"), limit)
}

// SearchTopics finds topics whose title contains keyword, most recently seen first.
func (s *SQLStore) SearchTopics(ctx context.Context, keyword string, limit int) ([]domain.TrackedTopic, error) {
	return s.queryTopics(ctx, s.builder.Select(topicColumns...).
		From(topicsTable).
		Where(sq.Like{"title": "%" + keyword + "%"}).
		OrderBy("last_seen_at DESC", "identity ASC"), limit)
}

func (s *SQLStore) queryTopics(ctx context.Context, builder sq.SelectBuilder, limit int) ([]domain.TrackedTopic, error) {
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build topics query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()

	var topics []domain.TrackedTopic
	for rows.Next() {
		topic, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return topics, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTopic(row rowScanner) (domain.TrackedTopic, error) {
	var (
		topic               domain.TrackedTopic
		id, tags            string
		previous, heat      sql.NullInt64
		firstSeen, lastSeen int64
	)
	err := row.Scan(
		&id, &topic.Platform, &topic.Category, &topic.Title,
		&topic.CurrentRank, &previous, &topic.RankDelta, &heat,
		&topic.URL, &tags, &firstSeen, &lastSeen, &topic.IsActive,
	)
	if err != nil {
		return domain.TrackedTopic{}, err
	}

	topic.Identity = domain.Identity(id)
	if previous.Valid {
		p := int(previous.Int64)
		topic.PreviousRank = &p
	}
	if heat.Valid {
		topic.HeatValue = domain.Heat(heat.Int64)
	}
	if err := json.Unmarshal([]byte(tags), &topic.Tags); err != nil {
		return domain.TrackedTopic{}, fmt.Errorf("decode tags: %w", err)
	}
	if len(topic.Tags) == 0 {
		topic.Tags = nil
	}
	topic.FirstSeenAt = fromMicros(firstSeen)
	topic.LastSeenAt = fromMicros(lastSeen)
	return topic, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}
