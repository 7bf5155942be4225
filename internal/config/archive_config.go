package config

import "os"

// ArchiveConfig points at an S3-compatible bucket (Cloudflare R2 in
// production) that receives a JSON copy of every saved record.
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// Ready reports whether uploads can be attempted.
func (a ArchiveConfig) Ready() bool {
	return a.Enabled && a.Bucket != "" && a.AccessKey != "" && a.SecretKey != ""
}

func (a *ArchiveConfig) applyEnv() {
	if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
		a.Endpoint = endpoint
	}
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		a.Bucket = bucket
	}
	if key := os.Getenv("S3_ACCESS_KEY"); key != "" {
		a.AccessKey = key
	}
	if secret := os.Getenv("S3_SECRET_KEY"); secret != "" {
		a.SecretKey = secret
	}
	if os.Getenv("S3_ENABLED") == "true" {
		a.Enabled = true
	}
}
