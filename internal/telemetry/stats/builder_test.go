package stats

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

type memProject struct {
	Private      bool
	Backlog      bool
	Kanban       bool
	Issues       bool
	Epics        bool
	Wiki         bool
	Tags         int
	Swimlanes    int
	EpicCount    int
	IssueCount   int
	Members      int
	Roles        int
	CustomFields int
}

type memStory struct {
	ProjectID   int
	MilestoneID int // 0 means no sprint
	Assigned    bool
	Watched     bool
	Commented   bool
	Created     time.Time
	Finished    time.Time
}

// memStore evaluates the aggregates over in-memory rows. Milestone ids are index+1
// and hold the index of their project.
type memStore struct {
	projects   []memProject
	stories    []memStory
	milestones []int
	users      []bool
	history    []time.Time
	failWith   error
}

func (m *memStore) countProjects(pred func(p memProject) bool) (int64, error) {
	if m.failWith != nil {
		return 0, m.failWith
	}
	var n int64
	for _, p := range m.projects {
		if pred(p) {
			n++
		}
	}
	return n, nil
}

func mean(vals []int) *float64 {
	if len(vals) == 0 {
		return nil
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	avg := float64(sum) / float64(len(vals))
	return &avg
}

func (m *memStore) avgProjects(pred func(p memProject) bool, val func(i int, p memProject) int) (*float64, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	var vals []int
	for i, p := range m.projects {
		if pred(p) {
			vals = append(vals, val(i, p))
		}
	}
	return mean(vals), nil
}

func (m *memStore) storiesIn(projectIdx int) int {
	n := 0
	for _, s := range m.stories {
		if s.ProjectID == projectIdx {
			n++
		}
	}
	return n
}

func (m *memStore) sprintsIn(projectIdx int) int {
	n := 0
	for _, p := range m.milestones {
		if p == projectIdx {
			n++
		}
	}
	return n
}

func (m *memStore) countStories(pred func(s memStory) bool) (int64, error) {
	if m.failWith != nil {
		return 0, m.failWith
	}
	var n int64
	for _, s := range m.stories {
		if pred(s) {
			n++
		}
	}
	return n, nil
}

func inRange(t, from, to time.Time) bool {
	return !t.IsZero() && !t.Before(from) && t.Before(to)
}

func all(memProject) bool { return true }

func (m *memStore) CountProjects(ctx context.Context) (int64, error) { return m.countProjects(all) }

func (m *memStore) CountProjectsByPrivacy(ctx context.Context, private bool) (int64, error) {
	return m.countProjects(func(p memProject) bool { return p.Private == private })
}

func (m *memStore) CountProjectsByBoards(ctx context.Context, backlog, kanban bool) (int64, error) {
	return m.countProjects(func(p memProject) bool { return p.Backlog == backlog && p.Kanban == kanban })
}

func (m *memStore) CountProjectsWithSwimlanes(ctx context.Context, kanban bool) (int64, error) {
	return m.countProjects(func(p memProject) bool { return p.Swimlanes >= 1 && p.Kanban == kanban })
}

func (m *memStore) CountProjectsWithModule(ctx context.Context, mod Module) (int64, error) {
	return m.countProjects(func(p memProject) bool {
		switch mod {
		case ModuleIssues:
			return p.Issues
		case ModuleEpics:
			return p.Epics
		case ModuleWiki:
			return p.Wiki
		}
		return false
	})
}

func (m *memStore) CountProjectsWithCustomFields(ctx context.Context) (int64, error) {
	return m.countProjects(func(p memProject) bool { return p.CustomFields > 0 })
}

func (m *memStore) CountUsers(ctx context.Context) (int64, error) {
	if m.failWith != nil {
		return 0, m.failWith
	}
	return int64(len(m.users)), nil
}

func (m *memStore) CountActiveUsers(ctx context.Context) (int64, error) {
	if m.failWith != nil {
		return 0, m.failWith
	}
	var n int64
	for _, active := range m.users {
		if active {
			n++
		}
	}
	return n, nil
}

func (m *memStore) AvgEpicsPerProject(ctx context.Context) (*float64, error) {
	return m.avgProjects(func(p memProject) bool { return p.Epics }, func(_ int, p memProject) int { return p.EpicCount })
}

func (m *memStore) AvgUserStoriesPerProject(ctx context.Context) (*float64, error) {
	return m.avgProjects(func(p memProject) bool { return p.Kanban || p.Backlog }, func(i int, _ memProject) int { return m.storiesIn(i) })
}

func (m *memStore) AvgIssuesPerProject(ctx context.Context) (*float64, error) {
	return m.avgProjects(func(p memProject) bool { return p.Issues }, func(_ int, p memProject) int { return p.IssueCount })
}

func (m *memStore) AvgSwimlanesPerProject(ctx context.Context) (*float64, error) {
	return m.avgProjects(func(p memProject) bool { return p.Kanban && p.Swimlanes >= 1 }, func(_ int, p memProject) int { return p.Swimlanes })
}

func (m *memStore) AvgTagsPerProject(ctx context.Context) (*float64, error) {
	return m.avgProjects(all, func(_ int, p memProject) int { return p.Tags })
}

func (m *memStore) AvgCustomFieldsPerProject(ctx context.Context) (*float64, error) {
	return m.avgProjects(func(p memProject) bool { return p.CustomFields > 0 }, func(_ int, p memProject) int { return p.CustomFields })
}

func (m *memStore) AvgMembersPerProject(ctx context.Context) (*float64, error) {
	return m.avgProjects(all, func(_ int, p memProject) int { return p.Members })
}

func (m *memStore) AvgRolesPerProject(ctx context.Context) (*float64, error) {
	return m.avgProjects(all, func(_ int, p memProject) int { return p.Roles })
}

func (m *memStore) AvgSprintsPerProject(ctx context.Context) (*float64, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	var vals []int
	for i, p := range m.projects {
		if n := m.sprintsIn(i); p.Backlog && n > 0 {
			vals = append(vals, n)
		}
	}
	return mean(vals), nil
}

func (m *memStore) AvgUserStoriesPerSprint(ctx context.Context) (*float64, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	var vals []int
	for id := range m.milestones {
		n := 0
		for _, s := range m.stories {
			if s.MilestoneID == id+1 {
				n++
			}
		}
		vals = append(vals, n)
	}
	return mean(vals), nil
}

func (m *memStore) CountUserStories(ctx context.Context) (int64, error) {
	return m.countStories(func(memStory) bool { return true })
}

func (m *memStore) CountAssignedUserStories(ctx context.Context) (int64, error) {
	return m.countStories(func(s memStory) bool { return s.Assigned })
}

func (m *memStore) CountWatchedUserStories(ctx context.Context) (int64, error) {
	return m.countStories(func(s memStory) bool { return s.Watched })
}

func (m *memStore) CountCommentedUserStories(ctx context.Context) (int64, error) {
	return m.countStories(func(s memStory) bool { return s.Commented })
}

func (m *memStore) CountHistoryEntriesBetween(ctx context.Context, from, to time.Time) (int64, error) {
	if m.failWith != nil {
		return 0, m.failWith
	}
	var n int64
	for _, h := range m.history {
		if inRange(h, from, to) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountUserStoriesCreatedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	return m.countStories(func(s memStory) bool { return inRange(s.Created, from, to) })
}

func (m *memStore) CountUserStoriesFinishedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	return m.countStories(func(s memStory) bool { return inRange(s.Finished, from, to) })
}

var allKeys = []string{
	KeyProjects, KeyProjectsPrivate, KeyProjectsPublic, KeyProjectsOnlyScrum, KeyProjectsKanbanScrum,
	KeyProjectsNoKanbanNoScrum, KeyProjectsOnlyKanban, KeyProjectsSwimlanesActive, KeyProjectsSwimlanesInactive,
	KeyProjectsIssues, KeyProjectsEpics, KeyProjectsWiki, KeyProjectsCustomFields, KeyUsers, KeyUsersActive,
	KeyAvgEpicsProject, KeyAvgUserStoriesProject, KeyAvgIssuesProject, KeyAvgSwimlanesProject, KeyAvgTagsProject,
	KeyAvgCustomFieldsProject, KeyAvgMembersProject, KeyAvgRolesProject, KeyPercentUserStoriesAssigned,
	KeyPercentUserStoriesWatching, KeyPercentUserStoriesCommented, KeyAvgSprintsProject, KeyAvgUserStoriesSprint,
	KeyEdits, KeyNewUserStories, KeyFinishedUserStories,
}

var countKeys = []string{
	KeyProjects, KeyProjectsPrivate, KeyProjectsPublic, KeyProjectsOnlyScrum, KeyProjectsKanbanScrum,
	KeyProjectsNoKanbanNoScrum, KeyProjectsOnlyKanban, KeyProjectsSwimlanesActive, KeyProjectsSwimlanesInactive,
	KeyProjectsIssues, KeyProjectsEpics, KeyProjectsWiki, KeyProjectsCustomFields, KeyUsers, KeyUsersActive,
	KeyEdits, KeyNewUserStories, KeyFinishedUserStories,
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestPercent(t *testing.T) {
	testCases := []struct {
		name     string
		matching int64
		total    int64
		want     *float64
	}{
		{"forty", 4, 10, ptr(40)},
		{"none matching", 0, 5, ptr(0)},
		{"all", 7, 7, ptr(100)},
		{"third", 1, 3, ptr(100.0 / 3)},
		{"zero total", 0, 0, nil},
		{"zero total with matches", 5, 0, nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Percent(tc.matching, tc.total)
			if tc.want == nil {
				if got != nil {
					t.Fatalf("Percent(%d, %d) = %v, want nil", tc.matching, tc.total, *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("Percent(%d, %d) = nil, want %v", tc.matching, tc.total, *tc.want)
			}
			if math.Abs(*got-*tc.want) > 1e-9 {
				t.Errorf("Percent(%d, %d) = %v, want %v", tc.matching, tc.total, *got, *tc.want)
			}
		})
	}
}

func ptr(v float64) *float64 { return &v }

func TestBuild_PrivateAndPublicProjects(t *testing.T) {
	store := &memStore{projects: []memProject{{Private: true}, {}, {}}}
	props, err := NewBuilder(store, time.UTC).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if props[KeyProjects] != int64(3) {
		t.Errorf("%s = %v, want 3", KeyProjects, props[KeyProjects])
	}
	if props[KeyProjectsPrivate] != int64(1) {
		t.Errorf("%s = %v, want 1", KeyProjectsPrivate, props[KeyProjectsPrivate])
	}
	if props[KeyProjectsPublic] != int64(2) {
		t.Errorf("%s = %v, want 2", KeyProjectsPublic, props[KeyProjectsPublic])
	}
}

func TestBuild_PercentAssigned(t *testing.T) {
	store := &memStore{projects: []memProject{{Backlog: true}}}
	for i := 0; i < 10; i++ {
		store.stories = append(store.stories, memStory{Assigned: i < 4})
	}
	props, err := NewBuilder(store, time.UTC).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if props[KeyPercentUserStoriesAssigned] != 40.0 {
		t.Errorf("%s = %v, want 40.0", KeyPercentUserStoriesAssigned, props[KeyPercentUserStoriesAssigned])
	}
}

func TestBuild_EmptyStore(t *testing.T) {
	props, err := NewBuilder(&memStore{}, time.UTC).Build(context.Background())
	if err != nil {
		t.Fatalf("Build on empty store: %v", err)
	}
	if len(props) != len(allKeys) {
		t.Errorf("len(props) = %d, want %d", len(props), len(allKeys))
	}
	isCount := make(map[string]bool, len(countKeys))
	for _, k := range countKeys {
		isCount[k] = true
	}
	for _, k := range allKeys {
		v, ok := props[k]
		if !ok {
			t.Errorf("key %s missing", k)
			continue
		}
		if isCount[k] {
			if v != int64(0) {
				t.Errorf("%s = %v, want 0", k, v)
			}
		} else if v != nil {
			t.Errorf("%s = %v, want nil", k, v)
		}
	}
}

func TestBuild_BoardCombinations(t *testing.T) {
	store := &memStore{projects: []memProject{
		{Backlog: true},
		{Backlog: true, Kanban: true},
		{Backlog: true, Kanban: true},
		{Kanban: true, Swimlanes: 2},
		{Swimlanes: 1},
		{},
	}}
	props, err := NewBuilder(store, time.UTC).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := map[string]int64{
		KeyProjectsOnlyScrum:         1,
		KeyProjectsKanbanScrum:       2,
		KeyProjectsOnlyKanban:        1,
		KeyProjectsNoKanbanNoScrum:   2,
		KeyProjectsSwimlanesActive:   1,
		KeyProjectsSwimlanesInactive: 1,
	}
	for k, w := range want {
		if props[k] != w {
			t.Errorf("%s = %v, want %d", k, props[k], w)
		}
	}
	if props[KeyAvgSwimlanesProject] != 2.0 {
		t.Errorf("%s = %v, want 2.0", KeyAvgSwimlanesProject, props[KeyAvgSwimlanesProject])
	}
}

func TestBuild_Averages(t *testing.T) {
	store := &memStore{
		projects: []memProject{
			{Epics: true, EpicCount: 4, Issues: true, IssueCount: 1, Members: 3, Roles: 2, Tags: 2, CustomFields: 6, Backlog: true},
			{Epics: true, EpicCount: 2, Members: 1, Roles: 4, Tags: 0},
			{EpicCount: 100, Members: 2, Roles: 3, Tags: 1, CustomFields: 2},
		},
		milestones: []int{0, 0},
		stories: []memStory{
			{ProjectID: 0, MilestoneID: 1},
			{ProjectID: 0, MilestoneID: 1},
			{ProjectID: 0, MilestoneID: 1},
			{ProjectID: 0},
		},
	}
	props, err := NewBuilder(store, time.UTC).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := map[string]float64{
		KeyAvgEpicsProject:        3,
		KeyAvgIssuesProject:       1,
		KeyAvgMembersProject:      2,
		KeyAvgRolesProject:        3,
		KeyAvgTagsProject:         1,
		KeyAvgCustomFieldsProject: 4,
		KeyAvgUserStoriesProject:  4,
		KeyAvgSprintsProject:      2,
		KeyAvgUserStoriesSprint:   1.5,
	}
	for k, w := range want {
		got, ok := props[k].(float64)
		if !ok {
			t.Errorf("%s = %v (%T), want float64 %v", k, props[k], props[k], w)
			continue
		}
		if math.Abs(got-w) > 1e-9 {
			t.Errorf("%s = %v, want %v", k, got, w)
		}
	}
	if props[KeyProjectsCustomFields] != int64(2) {
		t.Errorf("%s = %v, want 2", KeyProjectsCustomFields, props[KeyProjectsCustomFields])
	}
}

func TestBuild_TodayMetricsUseLocalDay(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, loc)
	startOfDay := time.Date(2026, 3, 10, 0, 0, 0, 0, loc)
	store := &memStore{
		stories: []memStory{
			{Created: startOfDay},
			{Created: startOfDay.Add(-time.Second)},
			{Created: now, Finished: now},
			// Same day of month, previous month.
			{Created: now.AddDate(0, -1, 0)},
			{Created: now.AddDate(0, 0, -3), Finished: startOfDay},
		},
		history: []time.Time{now, now.Add(-13 * time.Hour), startOfDay.AddDate(0, 0, 1)},
	}
	props, err := NewBuilder(store, loc).WithClock(fixedClock(now)).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if props[KeyNewUserStories] != int64(2) {
		t.Errorf("%s = %v, want 2", KeyNewUserStories, props[KeyNewUserStories])
	}
	if props[KeyFinishedUserStories] != int64(2) {
		t.Errorf("%s = %v, want 2", KeyFinishedUserStories, props[KeyFinishedUserStories])
	}
	if props[KeyEdits] != int64(1) {
		t.Errorf("%s = %v, want 1", KeyEdits, props[KeyEdits])
	}
}

func TestBuild_Deterministic(t *testing.T) {
	store := &memStore{
		projects: []memProject{{Private: true, Kanban: true, Swimlanes: 1, Tags: 3}, {Backlog: true, Wiki: true}},
		stories:  []memStory{{Assigned: true, Watched: true}, {Commented: true}},
		users:    []bool{true, false, true},
	}
	b := NewBuilder(store, time.UTC).WithClock(fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	first, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	second, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("builds differ:\n%v\n%v", first, second)
	}
	if first[KeyUsers] != int64(3) || first[KeyUsersActive] != int64(2) {
		t.Errorf("users = %v/%v, want 3/2", first[KeyUsers], first[KeyUsersActive])
	}
	if first[KeyPercentUserStoriesWatching] != 50.0 || first[KeyPercentUserStoriesCommented] != 50.0 {
		t.Errorf("watching/commented = %v/%v, want 50/50",
			first[KeyPercentUserStoriesWatching], first[KeyPercentUserStoriesCommented])
	}
}

func TestBuild_StoreErrorPropagates(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := NewBuilder(&memStore{failWith: boom}, time.UTC).Build(context.Background())
	if err == nil {
		t.Fatal("Build should fail when the store fails")
	}
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want it to wrap %v", err, boom)
	}
}

func TestDayBounds(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	// 23:30 UTC on the 1st is 01:30 on the 2nd in UTC+2.
	from, to := DayBounds(time.Date(2026, 5, 1, 23, 30, 0, 0, time.UTC), loc)
	wantFrom := time.Date(2026, 5, 2, 0, 0, 0, 0, loc)
	if !from.Equal(wantFrom) {
		t.Errorf("from = %v, want %v", from, wantFrom)
	}
	if !to.Equal(wantFrom.AddDate(0, 0, 1)) {
		t.Errorf("to = %v, want %v", to, wantFrom.AddDate(0, 0, 1))
	}
}
