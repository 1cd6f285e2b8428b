package util

import (
	"os"
	"strings"
)

// EnvOrDefault returns the first non-blank value among the given environment
// variables, or fallback when none is set.
func EnvOrDefault(fallback string, keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return fallback
}
