package gateway

import (
	"log/slog"

	"github.com/haasonsaas/nexus-core/internal/config"
)

// ManagedServer is the CLI-facing wrapper around Server, matching the
// shape a "serve" command expects: build from a loaded config, Start,
// then Stop on shutdown signal.
type ManagedServer struct {
	*Server
	configPath string
}

// ManagedServerConfig configures a ManagedServer.
type ManagedServerConfig struct {
	Config     *config.Config
	Logger     *slog.Logger
	ConfigPath string
}

// NewManagedServer builds the gateway's Server from cfg.
func NewManagedServer(cfg ManagedServerConfig) (*ManagedServer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	server, err := NewServer(cfg.Config, logger)
	if err != nil {
		return nil, err
	}

	return &ManagedServer{Server: server, configPath: cfg.ConfigPath}, nil
}
