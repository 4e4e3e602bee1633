package voiceverify

import (
	"context"

	"github.com/pitabwire/voiceverify/config"
)

// WithConfig sets the configuration object and applies the service, telemetry and logging settings it carries.
func WithConfig(cfg any) Option {
	return func(ctx context.Context, s *Service) {
		s.configuration = cfg

		serviceCfg, ok := cfg.(config.ConfigurationService)
		if ok {
			if serviceCfg.Name() != "" {
				WithName(serviceCfg.Name())(ctx, s)
			}

			if serviceCfg.Environment() != "" {
				WithEnvironment(serviceCfg.Environment())(ctx, s)
			}

			if serviceCfg.Version() != "" {
				WithVersion(serviceCfg.Version())(ctx, s)
			}
		}

		WithTelemetry()(ctx, s)

		WithLogger()(ctx, s)
	}
}

func (s *Service) Config() any {
	return s.configuration
}
