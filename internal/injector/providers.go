package injector

import (
	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/zeusync/graphcodec/internal/observability/log"
	"github.com/zeusync/graphcodec/pkg/encoding"
)

// ConfigPath is the location of a YAML or JSON serializer configuration.
type ConfigPath string

var ProviderSet = wire.NewSet(
	ProvideConfig,
	ProvideLogger,
	ProvideRegistry,
	ProvideSerializer,
)

func ProvideConfig(path ConfigPath) (encoding.Config, error) {
	if path == "" {
		return encoding.DefaultConfig(), nil
	}
	return encoding.LoadConfigFile(string(path))
}

// ProvideLogger returns a stderr JSON logger at the configured level, or a
// no-op logger when no level is configured.
func ProvideLogger(cfg encoding.Config) (*zap.Logger, error) {
	if cfg.LogLevel == "" {
		return zap.NewNop(), nil
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return log.New(level).Zap(), nil
}

func ProvideRegistry() *encoding.Registry {
	return encoding.NewRegistry()
}

func ProvideSerializer(cfg encoding.Config, logger *zap.Logger, registry *encoding.Registry) (*encoding.Serializer, error) {
	return encoding.NewFromConfig(cfg, encoding.WithLogger(logger), encoding.WithRegistry(registry))
}
