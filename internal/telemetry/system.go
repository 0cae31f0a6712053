package telemetry

import (
	"time"

	"taiga-telemetry/internal/config"
	"taiga-telemetry/internal/telemetry/domain"
)

// System data keys as they appear in the tracked properties.
const (
	KeySysVersion      = "sys_version"
	KeySysRunningSince = "sys_running_since"
	KeySysEmailEnabled = "sys_email_enabled"
	KeySysGitHubAuth   = "sys_github_auth"
	KeySysGitLabAuth   = "sys_gitlab_auth"
)

// SystemInfo describes how the installation is set up, independent of its data.
type SystemInfo struct {
	Version      string
	EmailEnabled bool
	GitHubAuth   bool
	GitLabAuth   bool
}

// SystemInfoFromConfig derives SystemInfo from the resolved configuration.
func SystemInfoFromConfig(cfg *config.Config, version string) SystemInfo {
	return SystemInfo{
		Version:      version,
		EmailEnabled: cfg.EnableEmail,
		GitHubAuth:   cfg.GitHubOAuth() != nil,
		GitLabAuth:   cfg.GitLabOAuth() != nil,
	}
}

// Properties returns the system data keys. runningSince is the creation time of the
// instance row; the zero time omits sys_running_since.
func (s SystemInfo) Properties(runningSince time.Time) domain.Properties {
	props := domain.Properties{
		KeySysVersion:      s.Version,
		KeySysEmailEnabled: s.EmailEnabled,
		KeySysGitHubAuth:   s.GitHubAuth,
		KeySysGitLabAuth:   s.GitLabAuth,
	}
	if !runningSince.IsZero() {
		props[KeySysRunningSince] = runningSince.UTC().Format(time.RFC3339)
	}
	return props
}
