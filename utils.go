package main

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetFromEnv retrieves a string from an environment variable or returns the default.
func GetFromEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetIntFromEnv retrieves an integer from environment variable or returns default.
func GetIntFromEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetDurationFromEnv retrieves a duration from environment variable or returns default.
// Accepts duration strings like "100ms", "2s", "1m", etc.
func GetDurationFromEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetListFromEnv retrieves a comma-separated list from an environment variable.
// Entries are trimmed and empty entries dropped. Returns nil when unset.
func GetListFromEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var list []string
	for _, entry := range strings.Split(value, ",") {
		if entry = strings.TrimSpace(entry); entry != "" {
			list = append(list, entry)
		}
	}
	return list
}

// QualifyIdentity derives the routable identity of a message author. Authors
// that already carry a namespace (e.g. "whatsapp:+123", "user_id:abc") pass
// through unchanged; bare platform identities are qualified as user ids.
func QualifyIdentity(author string) string {
	if strings.Contains(author, ":") {
		return author
	}
	return "user_id:" + author
}
