package stats

const countProjects = `SELECT count(*) FROM projects_project`

const countProjectsByPrivacy = `SELECT count(*) FROM projects_project WHERE is_private = $1`

const countProjectsByBoards = `
SELECT count(*) FROM projects_project
WHERE is_backlog_activated = $1 AND is_kanban_activated = $2`

const countProjectsWithSwimlanes = `
SELECT count(*) FROM projects_project p
WHERE p.is_kanban_activated = $1
  AND EXISTS (SELECT 1 FROM projects_swimlane s WHERE s.project_id = p.id)`

// Keyed by Module so that only known column names reach the query text.
var moduleColumns = map[Module]string{
	ModuleIssues: "is_issues_activated",
	ModuleEpics:  "is_epics_activated",
	ModuleWiki:   "is_wiki_activated",
}

const countProjectsWithModuleFmt = `SELECT count(*) FROM projects_project WHERE %s`

const customFieldsPerProject = `
SELECT
    (SELECT count(*) FROM custom_attributes_epiccustomattribute c WHERE c.project_id = p.id)
  + (SELECT count(*) FROM custom_attributes_issuecustomattribute c WHERE c.project_id = p.id)
  + (SELECT count(*) FROM custom_attributes_taskcustomattribute c WHERE c.project_id = p.id)
  + (SELECT count(*) FROM custom_attributes_userstorycustomattribute c WHERE c.project_id = p.id)
  AS total
FROM projects_project p`

const countProjectsWithCustomFields = `SELECT count(*) FROM (` + customFieldsPerProject + `) t WHERE t.total > 0`

const countUsers = `SELECT count(*) FROM users_user`

const countActiveUsers = `SELECT count(*) FROM users_user WHERE is_active`

const avgEpicsPerProject = `
SELECT avg(t.total)::float8 FROM (
    SELECT count(e.id) AS total
    FROM projects_project p
    LEFT JOIN epics_epic e ON e.project_id = p.id
    WHERE p.is_epics_activated
    GROUP BY p.id
) t`

const avgUserStoriesPerProject = `
SELECT avg(t.total)::float8 FROM (
    SELECT count(us.id) AS total
    FROM projects_project p
    LEFT JOIN userstories_userstory us ON us.project_id = p.id
    WHERE p.is_kanban_activated OR p.is_backlog_activated
    GROUP BY p.id
) t`

const avgIssuesPerProject = `
SELECT avg(t.total)::float8 FROM (
    SELECT count(i.id) AS total
    FROM projects_project p
    LEFT JOIN issues_issue i ON i.project_id = p.id
    WHERE p.is_issues_activated
    GROUP BY p.id
) t`

const avgSwimlanesPerProject = `
SELECT avg(t.total)::float8 FROM (
    SELECT count(s.id) AS total
    FROM projects_project p
    JOIN projects_swimlane s ON s.project_id = p.id
    WHERE p.is_kanban_activated
    GROUP BY p.id
) t`

// tags_colors is a two-dimensional array of (tag, color) pairs; the first dimension is the tag count.
const avgTagsPerProject = `
SELECT avg(COALESCE(array_length(tags_colors, 1), 0))::float8 FROM projects_project`

const avgCustomFieldsPerProject = `SELECT avg(t.total)::float8 FROM (` + customFieldsPerProject + `) t WHERE t.total > 0`

const avgMembersPerProject = `
SELECT avg(t.total)::float8 FROM (
    SELECT count(m.id) AS total
    FROM projects_project p
    LEFT JOIN projects_membership m ON m.project_id = p.id
    GROUP BY p.id
) t`

const avgRolesPerProject = `
SELECT avg(t.total)::float8 FROM (
    SELECT count(r.id) AS total
    FROM projects_project p
    LEFT JOIN users_role r ON r.project_id = p.id
    GROUP BY p.id
) t`

const avgSprintsPerProject = `
SELECT avg(t.total)::float8 FROM (
    SELECT count(ms.id) AS total
    FROM projects_project p
    JOIN milestones_milestone ms ON ms.project_id = p.id
    WHERE p.is_backlog_activated
    GROUP BY p.id
) t`

const avgUserStoriesPerSprint = `
SELECT avg(t.total)::float8 FROM (
    SELECT count(us.id) AS total
    FROM milestones_milestone ms
    LEFT JOIN userstories_userstory us ON us.milestone_id = ms.id
    GROUP BY ms.id
) t`

const countUserStories = `SELECT count(*) FROM userstories_userstory`

const countAssignedUserStories = `
SELECT count(*) FROM userstories_userstory us
WHERE us.assigned_to_id IS NOT NULL
   OR EXISTS (SELECT 1 FROM userstories_userstory_assigned_users au WHERE au.userstory_id = us.id)`

const countWatchedUserStories = `
SELECT count(DISTINCT w.object_id)
FROM notifications_watched w
JOIN django_content_type ct ON ct.id = w.content_type_id
WHERE ct.app_label = 'userstories' AND ct.model = 'userstory'`

const countCommentedUserStories = `
SELECT count(DISTINCT h.key)
FROM history_historyentry h
WHERE h.key LIKE 'userstories.userstory:%'
  AND h.comment IS NOT NULL
  AND h.comment <> ''`

const countHistoryEntriesBetween = `
SELECT count(*) FROM history_historyentry WHERE created_at >= $1 AND created_at < $2`

const countUserStoriesCreatedBetween = `
SELECT count(*) FROM userstories_userstory WHERE created_date >= $1 AND created_date < $2`

const countUserStoriesFinishedBetween = `
SELECT count(*) FROM userstories_userstory WHERE finish_date >= $1 AND finish_date < $2`
