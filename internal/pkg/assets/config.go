package assets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ManuelReschke/TalentFox/internal/pkg/env"
)

// Config holds the object storage settings for tenant assets
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	PublicBaseURL   string // Optional CDN or bucket website URL
}

// LoadConfig loads S3 configuration from environment variables. It returns
// nil without error when no bucket is configured.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "eu-central-1"),
		BucketName:      env.GetEnv("S3_BUCKET", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT", ""),
		PublicBaseURL:   env.GetEnv("S3_PUBLIC_BASE_URL", ""),
	}
	if cfg.BucketName == "" {
		return nil, nil
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("S3_ACCESS_KEY_ID is required when S3_BUCKET is set")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("S3_SECRET_ACCESS_KEY is required when S3_BUCKET is set")
	}
	return cfg, nil
}

// LogoKey is the object key of a tenant logo.
func LogoKey(slug string) string {
	return fmt.Sprintf("tenants/%s/logo.png", slug)
}

// PublicURL returns the URL an object is served from.
func (c *Config) PublicURL(key string) string {
	switch {
	case c.PublicBaseURL != "":
		return strings.TrimRight(c.PublicBaseURL, "/") + "/" + key
	case c.EndpointURL != "":
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.EndpointURL, "/"), c.BucketName, key)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.BucketName, c.Region, key)
	}
}
