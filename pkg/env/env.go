package env

import (
	"os"
	"strings"
)

// Get returns the value of the given environment variable or a fallback.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// Instance names the running process for log correlation (DYNO on Heroku-style hosts).
func Instance() string {
	return Get("DYNO", Get("HOSTNAME", "local"))
}
