package instance

import (
	"os"

	"github.com/angelmondragon/buildmart-backend/pkg/env"
)

// GetID identifies this process in logs. It prefers an explicit id, then the
// platform dyno name, then the host name.
func GetID() string {
	if id := env.First("BUILDMART_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
