package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Environment variables that override the InfluxDB settings, so the token can
// stay out of the YAML file.
const (
	EnvInfluxURL    = "NETMONITOR_INFLUX_URL"
	EnvInfluxToken  = "NETMONITOR_INFLUX_TOKEN"
	EnvInfluxOrg    = "NETMONITOR_INFLUX_ORG"
	EnvInfluxBucket = "NETMONITOR_INFLUX_BUCKET"
)

// LoadDotEnv loads path into the process environment when it exists.
// Variables already set are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err == nil {
		return godotenv.Load(path)
	}
	return nil
}

// ApplyEnv copies non-empty override variables onto the config.
func (c *Config) ApplyEnv() {
	setFromEnv(&c.Influx.URL, EnvInfluxURL)
	setFromEnv(&c.Influx.Token, EnvInfluxToken)
	setFromEnv(&c.Influx.Org, EnvInfluxOrg)
	setFromEnv(&c.Influx.Bucket, EnvInfluxBucket)
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
