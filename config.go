package toolhub

import (
	"context"
	"time"

	"github.com/wagiedev/mcp-toolhub-go/internal/config"
)

// Environment variables read by LoadConfigFromEnv.
const (
	EnvConfigPath = config.EnvConfigPath
	EnvServers    = config.EnvServers
)

// LoadConfig reads a YAML or JSON server list from path.
// ${VAR} references are expanded from the environment.
func LoadConfig(path string) ([]ServerConfig, error) {
	return config.LoadFile(path)
}

// ParseConfig decodes a YAML or JSON server list.
func ParseConfig(data []byte) ([]ServerConfig, error) {
	return config.Parse(data)
}

// LoadConfigFromEnv reads the file named by TOOLHUB_CONFIG, or the inline
// list in TOOLHUB_SERVERS. It returns nil when neither is set.
func LoadConfigFromEnv() ([]ServerConfig, error) {
	return config.LoadEnv()
}

// WatchConfig keeps reg in sync with the server list at path.
//
// Each time the file changes and parses, reg.Sync is called with the new
// list. Invalid edits are logged and ignored. The file is not loaded when
// watching starts; call LoadConfig and Sync first for the initial list.
//
// The returned stop function ends the watch and waits for it to exit.
func WatchConfig(ctx context.Context, path string, reg Registry, opts ...Option) (stop func(), err error) {
	return watchConfig(ctx, path, reg, 0, opts...)
}

func watchConfig(
	ctx context.Context,
	path string,
	reg Registry,
	debounce time.Duration,
	opts ...Option,
) (func(), error) {
	log := applyOptions(opts).Log()

	watcher := config.NewWatcher(log, path, debounce, func(configs []ServerConfig) {
		result := reg.Sync(ctx, configs)

		for id, err := range result.Errors {
			log.Warn("Server failed after config change", "server_id", id, "error", err)
		}
	})

	if err := watcher.Start(ctx); err != nil {
		return nil, err
	}

	return watcher.Stop, nil
}
