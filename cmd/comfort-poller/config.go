package main

import "time"

// Poll interval bounds; values outside are clamped.
const (
	minPollInterval = 5 * time.Second
	maxPollInterval = 300 * time.Second
)

// Config holds poller configuration loaded from environment variables
type Config struct {
	Username     string        `envconfig:"COMFORT_USERNAME" required:"true"`
	Password     string        `envconfig:"COMFORT_PASSWORD" required:"true"`
	Language     string        `envconfig:"COMFORT_LANGUAGE" default:"en"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"15s"`
	HTTPTimeout  time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	RedisURL     string        `envconfig:"REDIS_URL"`
	Debug        bool          `envconfig:"DEBUG" default:"false"`
}

func (c Config) pollInterval() time.Duration {
	switch {
	case c.PollInterval < minPollInterval:
		return minPollInterval
	case c.PollInterval > maxPollInterval:
		return maxPollInterval
	default:
		return c.PollInterval
	}
}
