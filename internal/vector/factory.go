package vector

import (
	"fmt"

	"github.com/hyperjump/litindex/internal/config"
)

// New opens the store for the configured backend. Supported backends:
// "bolt" (default, durable), "memory" (ephemeral), "chromem".
func New(backend, path string, dimensions int) (Store, error) {
	switch backend {
	case config.VectorBackendBolt, "":
		return OpenBoltStore(path, dimensions)
	case config.VectorBackendMemory:
		return NewMemoryStore(dimensions)
	case config.VectorBackendChromem:
		return OpenChromemStore(path, dimensions)
	default:
		return nil, fmt.Errorf("unknown vector backend: %s (supported: bolt, memory, chromem)", backend)
	}
}
