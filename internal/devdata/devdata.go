// Package devdata holds a reduced Taiga host schema and a small demo dataset for
// local development and integration tests.
package devdata

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var Schema string

//go:embed sample.sql
var Sample string

// Tables lists the host tables created by Schema, children before parents.
var Tables = []string{
	"history_historyentry",
	"notifications_watched",
	"django_content_type",
	"userstories_userstory_assigned_users",
	"userstories_userstory",
	"milestones_milestone",
	"issues_issue",
	"epics_epic",
	"custom_attributes_userstorycustomattribute",
	"custom_attributes_taskcustomattribute",
	"custom_attributes_issuecustomattribute",
	"custom_attributes_epiccustomattribute",
	"users_role",
	"projects_membership",
	"projects_swimlane",
	"projects_project",
	"users_user",
}

// Apply creates the host tables when missing and inserts the demo rows unless projects already exist.
// It reports whether sample rows were inserted.
func Apply(ctx context.Context, db *sql.DB) (bool, error) {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return false, fmt.Errorf("devdata: schema: %w", err)
	}
	var exists bool
	if err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM projects_project)`).Scan(&exists); err != nil {
		return false, fmt.Errorf("devdata: check: %w", err)
	}
	if exists {
		return false, nil
	}
	if _, err := db.ExecContext(ctx, Sample); err != nil {
		return false, fmt.Errorf("devdata: sample: %w", err)
	}
	return true, nil
}

// Reset empties every host table so that Apply inserts the sample again.
func Reset(ctx context.Context, db *sql.DB) error {
	for _, table := range Tables {
		if _, err := db.ExecContext(ctx, "TRUNCATE "+table+" RESTART IDENTITY CASCADE"); err != nil {
			return fmt.Errorf("devdata: truncate %s: %w", table, err)
		}
	}
	return nil
}
