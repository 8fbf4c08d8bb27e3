package instance

import (
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	once     sync.Once
	resolved string
)

// GetID returns a stable identifier for this process. Storage change notifications use
// it as their origin so a replica never re-reads its own writes as foreign.
func GetID() string {
	once.Do(func() {
		resolved = hostLabel() + "-" + uuid.NewString()[:8]
	})
	return resolved
}

func hostLabel() string {
	for _, key := range []string{"CHICKENSHOP_INSTANCE_ID", "DYNO", "HOSTNAME"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "chickenshop"
}
