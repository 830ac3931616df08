package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	appEnvVar = "APP_ENV"

	// EnvironmentDevelopment is the default environment when APP_ENV is
	// unset.
	EnvironmentDevelopment = "development"
	// EnvironmentProduction identifies production deployments.
	EnvironmentProduction = "production"
	// EnvironmentStaging identifies staging deployments.
	EnvironmentStaging = "staging"
)

var environmentAliases = map[string]string{
	"dev":   EnvironmentDevelopment,
	"prod":  EnvironmentProduction,
	"stag":  EnvironmentStaging,
	"stage": EnvironmentStaging,
}

// AppEnvironment reports the normalised application environment from
// APP_ENV, defaulting to development.
func AppEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv(appEnvVar)))
	if env == "" {
		return EnvironmentDevelopment
	}
	if canonical, ok := environmentAliases[env]; ok {
		return canonical
	}
	return env
}

// resolveEnvSpecificPath prefers an environment-specific sibling of the
// given config file when one exists: config.yml becomes
// config.production.yml under APP_ENV=production.
func resolveEnvSpecificPath(path string) string {
	env := AppEnvironment()
	if env == EnvironmentDevelopment {
		return path
	}

	ext := filepath.Ext(path)
	candidate := strings.TrimSuffix(path, ext) + "." + env + ext
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return path
}
