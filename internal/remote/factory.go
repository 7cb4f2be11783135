package remote

import (
	"context"
	"fmt"

	"baucam/internal/config"
	"baucam/internal/timelapse"
)

// NewRemoteFromConfig creates the Remote named by the remote config type.
func NewRemoteFromConfig(ctx context.Context, cfg config.RemoteConfig) (timelapse.Remote, error) {
	if cfg.Marker == "" {
		return nil, fmt.Errorf("remote requires marker to be set")
	}
	switch cfg.Type {
	case "memory":
		return NewMemoryRemote(), nil
	case "s3":
		return NewS3Remote(ctx, cfg)
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem remote requires root to be set")
		}
		return NewFileSystemRemote(cfg.Root, cfg.Marker), nil
	default:
		return nil, fmt.Errorf("unknown remote type: %s", cfg.Type)
	}
}
