package stats

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore runs the aggregate queries against the Taiga Postgres schema. It never writes.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a Store backed by db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *PostgresStore) avg(ctx context.Context, query string) (*float64, error) {
	var v sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, query).Scan(&v); err != nil {
		return nil, err
	}
	if !v.Valid {
		return nil, nil
	}
	return &v.Float64, nil
}

func (s *PostgresStore) CountProjects(ctx context.Context) (int64, error) {
	return s.count(ctx, countProjects)
}

func (s *PostgresStore) CountProjectsByPrivacy(ctx context.Context, private bool) (int64, error) {
	return s.count(ctx, countProjectsByPrivacy, private)
}

func (s *PostgresStore) CountProjectsByBoards(ctx context.Context, backlog, kanban bool) (int64, error) {
	return s.count(ctx, countProjectsByBoards, backlog, kanban)
}

func (s *PostgresStore) CountProjectsWithSwimlanes(ctx context.Context, kanban bool) (int64, error) {
	return s.count(ctx, countProjectsWithSwimlanes, kanban)
}

func (s *PostgresStore) CountProjectsWithModule(ctx context.Context, m Module) (int64, error) {
	column, ok := moduleColumns[m]
	if !ok {
		return 0, fmt.Errorf("stats: unknown module %q", m)
	}
	return s.count(ctx, fmt.Sprintf(countProjectsWithModuleFmt, column))
}

func (s *PostgresStore) CountProjectsWithCustomFields(ctx context.Context) (int64, error) {
	return s.count(ctx, countProjectsWithCustomFields)
}

func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	return s.count(ctx, countUsers)
}

func (s *PostgresStore) CountActiveUsers(ctx context.Context) (int64, error) {
	return s.count(ctx, countActiveUsers)
}

func (s *PostgresStore) AvgEpicsPerProject(ctx context.Context) (*float64, error) {
	return s.avg(ctx, avgEpicsPerProject)
}

func (s *PostgresStore) AvgUserStoriesPerProject(ctx context.Context) (*float64, error) {
	return s.avg(ctx, avgUserStoriesPerProject)
}

func (s *PostgresStore) AvgIssuesPerProject(ctx context.Context) (*float64, error) {
	return s.avg(ctx, avgIssuesPerProject)
}

func (s *PostgresStore) AvgSwimlanesPerProject(ctx context.Context) (*float64, error) {
	return s.avg(ctx, avgSwimlanesPerProject)
}

func (s *PostgresStore) AvgTagsPerProject(ctx context.Context) (*float64, error) {
	return s.avg(ctx, avgTagsPerProject)
}

func (s *PostgresStore) AvgCustomFieldsPerProject(ctx context.Context) (*float64, error) {
	return s.avg(ctx, avgCustomFieldsPerProject)
}

func (s *PostgresStore) AvgMembersPerProject(ctx context.Context) (*float64, error) {
	return s.avg(ctx, avgMembersPerProject)
}

func (s *PostgresStore) AvgRolesPerProject(ctx context.Context) (*float64, error) {
	return s.avg(ctx, avgRolesPerProject)
}

func (s *PostgresStore) AvgSprintsPerProject(ctx context.Context) (*float64, error) {
	return s.avg(ctx, avgSprintsPerProject)
}

func (s *PostgresStore) AvgUserStoriesPerSprint(ctx context.Context) (*float64, error) {
	return s.avg(ctx, avgUserStoriesPerSprint)
}

func (s *PostgresStore) CountUserStories(ctx context.Context) (int64, error) {
	return s.count(ctx, countUserStories)
}

func (s *PostgresStore) CountAssignedUserStories(ctx context.Context) (int64, error) {
	return s.count(ctx, countAssignedUserStories)
}

func (s *PostgresStore) CountWatchedUserStories(ctx context.Context) (int64, error) {
	return s.count(ctx, countWatchedUserStories)
}

func (s *PostgresStore) CountCommentedUserStories(ctx context.Context) (int64, error) {
	return s.count(ctx, countCommentedUserStories)
}

func (s *PostgresStore) CountHistoryEntriesBetween(ctx context.Context, from, to time.Time) (int64, error) {
	return s.count(ctx, countHistoryEntriesBetween, from, to)
}

func (s *PostgresStore) CountUserStoriesCreatedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	return s.count(ctx, countUserStoriesCreatedBetween, from, to)
}

func (s *PostgresStore) CountUserStoriesFinishedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	return s.count(ctx, countUserStoriesFinishedBetween, from, to)
}
