package ports

import (
	"context"

	"github.com/aretw0/contract/pkg/manifest"
)

// Source defines where declared contracts come from.
// This allows the declarations (file, Loam, memory) to be decoupled from the service.
type Source interface {
	// Load reads every declaration. Structural problems are reported as
	// manifest.ErrInvalid.
	Load(ctx context.Context) (*manifest.Manifest, error)
}

// Watchable defines an interface for sources that can notify about backend changes.
// This is typically used to reload contracts while serving.
type Watchable interface {
	// Watch returns a channel that receives the id of each changed document.
	// The channel is closed when ctx is done.
	Watch(ctx context.Context) (<-chan string, error)
}
