// Package config provides configuration management for the weekboard jobs.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Job identifies which job a configuration is validated for. Each job requires a different subset of keys
type Job string

const (
	JobCreateIssues    Job = "create-issues"
	JobDiscoverProject Job = "discover-project"
	JobLinkIssues      Job = "link-issues"
	JobRetitleIssues   Job = "retitle-issues"
)

const (
	DefaultAPIURL             = "https://api.github.com/"
	DefaultGraphQLURL         = "https://api.github.com/graphql"
	DefaultRequestTimeout     = 10 * time.Second
	DefaultRateLimitThreshold = 50
	DefaultPageDelay          = 500 * time.Millisecond
	DefaultCreateDelay        = 1 * time.Second
	DefaultLinkDelay          = 1500 * time.Millisecond
	DefaultUpdateDelay        = 500 * time.Millisecond

	// ProjectIDPrefix prefixes every Projects (v2) node ID
	ProjectIDPrefix = "PVT_"
)

// Config holds the configuration for a single run. It is built once at startup and passed by value
type Config struct {
	Token     string
	Owner     string
	Repo      string
	ProjectID string

	APIURL             string
	GraphQLURL         string
	RequestTimeout     time.Duration
	RateLimitThreshold int

	PageDelay   time.Duration
	CreateDelay time.Duration
	LinkDelay   time.Duration
	UpdateDelay time.Duration

	Debug bool

	TelemetryEnabled bool
	OTLPEndpoint     string
}

// ConfigError reports configuration that is missing or malformed. It is never retryable
type ConfigError struct {
	Missing []string // Environment variables that are required but unset
	Reason  string   // Set for malformed values
}

func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// Load reads the configuration using getenv, usually os.Getenv. Required keys are not checked here; see Validate
func Load(getenv func(string) string) (Config, error) {
	cfg := Config{
		Token:     getenv("GITHUB_TOKEN"),
		Owner:     getenv("OWNER"),
		Repo:      getenv("REPO"),
		ProjectID: getenv("PROJECT_ID"),

		APIURL:             DefaultAPIURL,
		GraphQLURL:         DefaultGraphQLURL,
		RequestTimeout:     DefaultRequestTimeout,
		RateLimitThreshold: DefaultRateLimitThreshold,

		PageDelay:   DefaultPageDelay,
		CreateDelay: DefaultCreateDelay,
		LinkDelay:   DefaultLinkDelay,
		UpdateDelay: DefaultUpdateDelay,

		OTLPEndpoint: getenv("OTLP_ENDPOINT"),
	}

	parsers := []func() error{
		func() error {
			return parseOptional(getenv, "GITHUB_API_URL", &cfg.APIURL, parseString)
		},
		func() error {
			return parseOptional(getenv, "GITHUB_GRAPHQL_URL", &cfg.GraphQLURL, parseString)
		},
		func() error {
			return parseOptional(getenv, "REQUEST_TIMEOUT", &cfg.RequestTimeout, parsePositiveDuration)
		},
		func() error {
			return parseOptional(getenv, "RATE_LIMIT_WARN_THRESHOLD", &cfg.RateLimitThreshold, parseNonNegativeInt)
		},
		func() error {
			return parseOptional(getenv, "PAGE_DELAY", &cfg.PageDelay, parseDelay)
		},
		func() error {
			return parseOptional(getenv, "CREATE_DELAY", &cfg.CreateDelay, parseDelay)
		},
		func() error {
			return parseOptional(getenv, "LINK_DELAY", &cfg.LinkDelay, parseDelay)
		},
		func() error {
			return parseOptional(getenv, "UPDATE_DELAY", &cfg.UpdateDelay, parseDelay)
		},
		func() error {
			return parseOptional(getenv, "DEBUG", &cfg.Debug, strconv.ParseBool)
		},
		func() error {
			return parseOptional(getenv, "TELEMETRY_ENABLED", &cfg.TelemetryEnabled, strconv.ParseBool)
		},
	}
	for _, parse := range parsers {
		if err := parse(); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

// Validate checks that every key required by job is present and well formed. It must be called before any
// network request is made
func (c Config) Validate(job Job) error {
	var missing []string
	check := func(value, key string) {
		if value == "" {
			missing = append(missing, key)
		}
	}

	check(c.Token, "GITHUB_TOKEN")
	check(c.Owner, "OWNER")
	switch job {
	case JobCreateIssues, JobRetitleIssues:
		check(c.Repo, "REPO")
	case JobLinkIssues:
		check(c.Repo, "REPO")
		check(c.ProjectID, "PROJECT_ID")
	case JobDiscoverProject:
	default:
		return &ConfigError{Reason: fmt.Sprintf("unknown job %q", job)}
	}

	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}

	if job == JobLinkIssues && !strings.HasPrefix(c.ProjectID, ProjectIDPrefix) {
		return &ConfigError{Reason: fmt.Sprintf("PROJECT_ID must start with '%s'", ProjectIDPrefix)}
	}

	// Values may have been overridden after Load, so the ranges Load enforces are checked again
	if c.RequestTimeout <= 0 {
		return &ConfigError{Reason: fmt.Sprintf("request timeout must be positive, got %s", c.RequestTimeout)}
	}
	if c.RateLimitThreshold < 0 {
		return &ConfigError{Reason: fmt.Sprintf("rate limit threshold must not be negative, got %d", c.RateLimitThreshold)}
	}
	delays := []struct {
		name  string
		value time.Duration
	}{
		{"page delay", c.PageDelay},
		{"create delay", c.CreateDelay},
		{"link delay", c.LinkDelay},
		{"update delay", c.UpdateDelay},
	}
	for _, d := range delays {
		if d.value < 0 {
			return &ConfigError{Reason: fmt.Sprintf("%s must not be negative, got %s", d.name, d.value)}
		}
	}

	return nil
}

func parseOptional[T any](getenv func(string) string, key string, dest *T, parseFn func(string) (T, error)) error {
	str := getenv(key)
	if str == "" {
		return nil // Leave default value
	}
	v, err := parseFn(str)
	if err != nil {
		return &ConfigError{Reason: fmt.Sprintf("failed to parse environment variable '%s' value '%s' as '%T': %v", key, str, *dest, err)}
	}
	*dest = v
	return nil
}

func parseString(s string) (string, error) {
	return s, nil
}

func parsePositiveDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return d, nil
}

func parseDelay(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return d, nil
}

func parseNonNegativeInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return n, nil
}
