package stats

import (
	"context"
	"fmt"
	"time"

	"taiga-telemetry/internal/telemetry/domain"
)

// Metric keys as they appear in the tracked properties.
const (
	KeyProjects                    = "tt_projects"
	KeyProjectsPrivate             = "tt_projects_private"
	KeyProjectsPublic              = "tt_projects_public"
	KeyProjectsOnlyScrum           = "tt_projects_only_scrum"
	KeyProjectsKanbanScrum         = "tt_projects_kanban_scrum"
	KeyProjectsNoKanbanNoScrum     = "tt_projects_no_kanban_no_scrum"
	KeyProjectsOnlyKanban          = "tt_projects_only_kanban"
	KeyProjectsSwimlanesActive     = "tt_projects_swimlanes_active_kanban"
	KeyProjectsSwimlanesInactive   = "tt_projects_swimlanes_inactive_kanban"
	KeyProjectsIssues              = "tt_projects_issues"
	KeyProjectsEpics               = "tt_projects_epics"
	KeyProjectsWiki                = "tt_projects_wiki"
	KeyProjectsCustomFields        = "tt_projects_custom_fields"
	KeyUsers                       = "tt_users"
	KeyUsersActive                 = "tt_users_active"
	KeyAvgEpicsProject             = "tt_avg_epics_project"
	KeyAvgUserStoriesProject       = "tt_avg_uss_project"
	KeyAvgIssuesProject            = "tt_avg_issues_project"
	KeyAvgSwimlanesProject         = "tt_avg_swimlanes_project"
	KeyAvgTagsProject              = "tt_avg_tags_project"
	KeyAvgCustomFieldsProject      = "tt_avg_custom_fields_project"
	KeyAvgMembersProject           = "tt_avg_members_project"
	KeyAvgRolesProject             = "tt_avg_roles_project"
	KeyPercentUserStoriesAssigned  = "tt_percent_uss_assigned"
	KeyPercentUserStoriesWatching  = "tt_percent_uss_watching"
	KeyPercentUserStoriesCommented = "tt_percent_uss_comments_gte_1"
	KeyAvgSprintsProject           = "tt_avg_sprints_project"
	KeyAvgUserStoriesSprint        = "tt_avg_uss_sprint"
	KeyEdits                       = "tt_edits"
	KeyNewUserStories              = "tt_new_user_stories"
	KeyFinishedUserStories         = "tt_finished_user_stories"
)

// Percent returns matching*100/total, or nil when total is zero.
func Percent(matching, total int64) *float64 {
	if total == 0 {
		return nil
	}
	v := float64(matching) * 100 / float64(total)
	return &v
}

// Builder assembles the platform report from a Store.
type Builder struct {
	store Store
	loc   *time.Location
	now   func() time.Time
}

// NewBuilder returns a Builder reading from store. loc defines the calendar day of the
// "today" metrics; nil means UTC.
func NewBuilder(store Store, loc *time.Location) *Builder {
	if loc == nil {
		loc = time.UTC
	}
	return &Builder{store: store, loc: loc, now: time.Now}
}

// WithClock replaces the clock used for the "today" metrics.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

type metric struct {
	key string
	get func(ctx context.Context) (any, error)
}

// Build runs every aggregate and returns them as one flat record.
// Counts are int64; averages and percentages are float64, or nil when undefined.
// The first failing query aborts the build.
func (b *Builder) Build(ctx context.Context) (domain.Properties, error) {
	totalUserStories, err := b.store.CountUserStories(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: count user stories: %w", err)
	}
	from, to := DayBounds(b.now(), b.loc)

	metrics := b.metrics(totalUserStories, from, to)
	props := make(domain.Properties, len(metrics))
	for _, m := range metrics {
		v, err := m.get(ctx)
		if err != nil {
			return nil, fmt.Errorf("stats: %s: %w", m.key, err)
		}
		props[m.key] = v
	}
	return props, nil
}

// DayBounds returns [midnight, next midnight) of t's calendar day in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

func (b *Builder) metrics(totalUserStories int64, from, to time.Time) []metric {
	s := b.store
	return []metric{
		{KeyProjects, countOf(s.CountProjects)},
		{KeyProjectsPrivate, countOf(func(ctx context.Context) (int64, error) { return s.CountProjectsByPrivacy(ctx, true) })},
		{KeyProjectsPublic, countOf(func(ctx context.Context) (int64, error) { return s.CountProjectsByPrivacy(ctx, false) })},
		{KeyProjectsOnlyScrum, boards(s, true, false)},
		{KeyProjectsKanbanScrum, boards(s, true, true)},
		{KeyProjectsNoKanbanNoScrum, boards(s, false, false)},
		{KeyProjectsOnlyKanban, boards(s, false, true)},
		{KeyProjectsSwimlanesActive, countOf(func(ctx context.Context) (int64, error) { return s.CountProjectsWithSwimlanes(ctx, true) })},
		{KeyProjectsSwimlanesInactive, countOf(func(ctx context.Context) (int64, error) { return s.CountProjectsWithSwimlanes(ctx, false) })},
		{KeyProjectsIssues, module(s, ModuleIssues)},
		{KeyProjectsEpics, module(s, ModuleEpics)},
		{KeyProjectsWiki, module(s, ModuleWiki)},
		{KeyProjectsCustomFields, countOf(s.CountProjectsWithCustomFields)},
		{KeyUsers, countOf(s.CountUsers)},
		{KeyUsersActive, countOf(s.CountActiveUsers)},
		{KeyAvgEpicsProject, avgOf(s.AvgEpicsPerProject)},
		{KeyAvgUserStoriesProject, avgOf(s.AvgUserStoriesPerProject)},
		{KeyAvgIssuesProject, avgOf(s.AvgIssuesPerProject)},
		{KeyAvgSwimlanesProject, avgOf(s.AvgSwimlanesPerProject)},
		{KeyAvgTagsProject, avgOf(s.AvgTagsPerProject)},
		{KeyAvgCustomFieldsProject, avgOf(s.AvgCustomFieldsPerProject)},
		{KeyAvgMembersProject, avgOf(s.AvgMembersPerProject)},
		{KeyAvgRolesProject, avgOf(s.AvgRolesPerProject)},
		{KeyPercentUserStoriesAssigned, percentOf(s.CountAssignedUserStories, totalUserStories)},
		{KeyPercentUserStoriesWatching, percentOf(s.CountWatchedUserStories, totalUserStories)},
		{KeyPercentUserStoriesCommented, percentOf(s.CountCommentedUserStories, totalUserStories)},
		{KeyAvgSprintsProject, avgOf(s.AvgSprintsPerProject)},
		{KeyAvgUserStoriesSprint, avgOf(s.AvgUserStoriesPerSprint)},
		{KeyEdits, between(s.CountHistoryEntriesBetween, from, to)},
		{KeyNewUserStories, between(s.CountUserStoriesCreatedBetween, from, to)},
		{KeyFinishedUserStories, between(s.CountUserStoriesFinishedBetween, from, to)},
	}
}

func countOf(f func(context.Context) (int64, error)) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		n, err := f(ctx)
		if err != nil {
			return nil, err
		}
		return n, nil
	}
}

func avgOf(f func(context.Context) (*float64, error)) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		v, err := f(ctx)
		if err != nil {
			return nil, err
		}
		return optional(v), nil
	}
}

func percentOf(matching func(context.Context) (int64, error), total int64) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		n, err := matching(ctx)
		if err != nil {
			return nil, err
		}
		return optional(Percent(n, total)), nil
	}
}

func boards(s Store, backlog, kanban bool) func(context.Context) (any, error) {
	return countOf(func(ctx context.Context) (int64, error) { return s.CountProjectsByBoards(ctx, backlog, kanban) })
}

func module(s Store, m Module) func(context.Context) (any, error) {
	return countOf(func(ctx context.Context) (int64, error) { return s.CountProjectsWithModule(ctx, m) })
}

func between(f func(context.Context, time.Time, time.Time) (int64, error), from, to time.Time) func(context.Context) (any, error) {
	return countOf(func(ctx context.Context) (int64, error) { return f(ctx, from, to) })
}

// optional unwraps v so that an undefined value is an untyped nil in the record.
func optional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
