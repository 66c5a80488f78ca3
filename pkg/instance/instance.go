package instance

import (
	"os"
	"strings"
)

// GetID returns the worker instance identifier, falling back to the hostname.
func GetID() string {
	if id := strings.TrimSpace(os.Getenv("FLIGHTNOTIFY_WORKER_ID")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
