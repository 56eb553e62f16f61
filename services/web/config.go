package web

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

// EnvConfig holds runtime configuration for the web service.
type EnvConfig struct {
	Addr           string   `env:"ADDR,default=:8080"`
	DBDSN          string   `env:"DB_DSN,required"`
	NATSURL        string   `env:"NATS_URL"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
	PageSize       int      `env:"PAGE_SIZE,default=20"`
	MaxPageSize    int      `env:"MAX_PAGE_SIZE,default=500"`
}

// LoadConfig returns an EnvConfig populated from environment variables.
func LoadConfig(ctx context.Context) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}
