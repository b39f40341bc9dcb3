package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnvOrDefault returns the variable, or defaultValue when unset or empty.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvBool accepts true/false, 1/0 and yes/no in any case.
func GetEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultValue
}

func GetEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

// GetEnvDuration reads an ISO 8601 or Go duration.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := parseDurationISO8601(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

// Environment is the deployment stage named by APP_ENV.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
	Test        Environment = "test"
)

var environmentAliases = map[string]Environment{
	"production": Production,
	"prod":       Production,
	"staging":    Staging,
	"stage":      Staging,
	"test":       Test,
	"testing":    Test,
}

// GetEnvironment defaults to Development for unset or unknown values.
func GetEnvironment() Environment {
	if env, ok := environmentAliases[strings.ToLower(os.Getenv("APP_ENV"))]; ok {
		return env
	}
	return Development
}

func IsDevelopment() bool { return GetEnvironment() == Development }

func IsProduction() bool { return GetEnvironment() == Production }
