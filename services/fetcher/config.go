package fetcher

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the fetcher daemon.
type Config struct {
	DBDSN          string        `env:"DB_DSN,required"`
	FeedsFile      string        `env:"FEEDS_FILE"`
	FeedName       string        `env:"FEED_NAME,default=otx"`
	FeedURL        string        `env:"FEED_URL"`
	FeedAPIKeyEnv  string        `env:"FEED_API_KEY_ENV,default=OTX_API_KEY"`
	PollInterval   time.Duration `env:"POLL_INTERVAL,default=60s"`
	PageSize       int           `env:"PAGE_SIZE,default=50"`
	MaxPages       int           `env:"MAX_PAGES,default=10"`
	RequestTimeout time.Duration `env:"FEED_REQUEST_TIMEOUT,default=10s"`
	NATSURL        string        `env:"NATS_URL"`
	ArchiveBucket  string        `env:"ARCHIVE_BUCKET"`
	MetricsAddr    string        `env:"METRICS_ADDR,default=:9464"`
}

// LoadConfig returns a Config populated from environment variables.
func LoadConfig(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ResolveFeeds returns the configured feed set: the feeds file when given,
// otherwise the single-feed environment fallback.
func (c Config) ResolveFeeds() ([]Feed, error) {
	if c.FeedsFile != "" {
		return LoadFeeds(c.FeedsFile)
	}

	if c.FeedURL == "" {
		return nil, errors.New("either FEEDS_FILE or FEED_URL must be set")
	}

	return []Feed{{
		Name:       c.FeedName,
		URL:        c.FeedURL,
		APIKeyEnv:  c.FeedAPIKeyEnv,
		AuthHeader: defaultAuthHeader,
		PageSize:   c.PageSize,
	}}, nil
}
