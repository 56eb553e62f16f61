package fetcher

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const defaultAuthHeader = "X-OTX-API-KEY"

// Feed describes one upstream threat-intelligence source. The API key is
// referenced by environment variable name so feeds.yaml stays committable.
type Feed struct {
	Name       string `yaml:"name"`
	URL        string `yaml:"url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	AuthHeader string `yaml:"auth_header"`
	PageSize   int    `yaml:"page_size"`
}

type feedsFile struct {
	Feeds []Feed `yaml:"feeds"`
}

// LoadFeeds reads feed definitions from a YAML file.
func LoadFeeds(path string) ([]Feed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds file: %w", err)
	}
	return ParseFeeds(data)
}

// ParseFeeds decodes and validates feed definitions.
func ParseFeeds(data []byte) ([]Feed, error) {
	var parsed feedsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse feeds file: %w", err)
	}
	if len(parsed.Feeds) == 0 {
		return nil, errors.New("feeds file defines no feeds")
	}

	seen := make(map[string]bool, len(parsed.Feeds))
	for i := range parsed.Feeds {
		feed := &parsed.Feeds[i]
		if feed.Name == "" {
			return nil, fmt.Errorf("feed %d: name is required", i)
		}
		if feed.URL == "" {
			return nil, fmt.Errorf("feed %q: url is required", feed.Name)
		}
		if seen[feed.Name] {
			return nil, fmt.Errorf("feed %q: duplicate name", feed.Name)
		}
		seen[feed.Name] = true

		if feed.AuthHeader == "" {
			feed.AuthHeader = defaultAuthHeader
		}
		if feed.PageSize <= 0 {
			feed.PageSize = defaultPageSize
		}
	}

	return parsed.Feeds, nil
}

// APIKey resolves the feed credential from the environment. An empty result
// is allowed; some feeds are unauthenticated.
func (f Feed) APIKey() string {
	if f.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(f.APIKeyEnv)
}
