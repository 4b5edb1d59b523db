package daemon

import (
	"os"
	"strings"

	"github.com/google/uuid"
)

// DefaultWorker returns "<hostname>-<8 hex chars>". The suffix keeps two
// daemons on one host apart in the lease table.
func DefaultWorker() string {
	host, err := os.Hostname()
	if err != nil || strings.TrimSpace(host) == "" {
		host = "cronlease"
	}
	return host + "-" + uuid.NewString()[:8]
}

func resolveWorker(configured string) string {
	if w := strings.TrimSpace(configured); w != "" {
		return w
	}
	return DefaultWorker()
}
