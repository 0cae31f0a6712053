// Package stats computes the aggregate usage metrics of a Taiga installation.
//
// Store exposes one read-only query per aggregate; Builder turns them into the
// flat property record sent with the daily telemetry event. Queries are not
// wrapped in a shared transaction, so a report is a best-effort snapshot.
package stats

import (
	"context"
	"time"
)

// Module is a per-project feature toggle.
type Module string

const (
	ModuleIssues Module = "issues"
	ModuleEpics  Module = "epics"
	ModuleWiki   Module = "wiki"
)

// Store reads aggregates from the host schema. Counts are plain integers;
// averages are nil when the averaged set is empty.
type Store interface {
	CountProjects(ctx context.Context) (int64, error)
	CountProjectsByPrivacy(ctx context.Context, private bool) (int64, error)
	// CountProjectsByBoards counts projects whose backlog (scrum) and kanban toggles match exactly.
	CountProjectsByBoards(ctx context.Context, backlog, kanban bool) (int64, error)
	// CountProjectsWithSwimlanes counts projects with at least one swimlane and the given kanban toggle.
	CountProjectsWithSwimlanes(ctx context.Context, kanban bool) (int64, error)
	CountProjectsWithModule(ctx context.Context, m Module) (int64, error)
	// CountProjectsWithCustomFields counts projects with at least one custom attribute of any kind.
	CountProjectsWithCustomFields(ctx context.Context) (int64, error)

	CountUsers(ctx context.Context) (int64, error)
	CountActiveUsers(ctx context.Context) (int64, error)

	AvgEpicsPerProject(ctx context.Context) (*float64, error)
	AvgUserStoriesPerProject(ctx context.Context) (*float64, error)
	AvgIssuesPerProject(ctx context.Context) (*float64, error)
	AvgSwimlanesPerProject(ctx context.Context) (*float64, error)
	AvgTagsPerProject(ctx context.Context) (*float64, error)
	AvgCustomFieldsPerProject(ctx context.Context) (*float64, error)
	AvgMembersPerProject(ctx context.Context) (*float64, error)
	AvgRolesPerProject(ctx context.Context) (*float64, error)
	AvgSprintsPerProject(ctx context.Context) (*float64, error)
	AvgUserStoriesPerSprint(ctx context.Context) (*float64, error)

	CountUserStories(ctx context.Context) (int64, error)
	CountAssignedUserStories(ctx context.Context) (int64, error)
	CountWatchedUserStories(ctx context.Context) (int64, error)
	CountCommentedUserStories(ctx context.Context) (int64, error)

	// The Between queries use the half-open interval [from, to).
	CountHistoryEntriesBetween(ctx context.Context, from, to time.Time) (int64, error)
	CountUserStoriesCreatedBetween(ctx context.Context, from, to time.Time) (int64, error)
	CountUserStoriesFinishedBetween(ctx context.Context, from, to time.Time) (int64, error)
}
