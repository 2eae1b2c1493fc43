// Package instance names the running worker process in logs.
package instance

import "os"

const workerIDEnv = "FARMLINK_WORKER_ID"

// GetID returns FARMLINK_WORKER_ID, falling back to the hostname and then to
// "worker-0".
func GetID() string {
	if id := os.Getenv(workerIDEnv); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
