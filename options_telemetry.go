package voiceverify

import (
	"context"

	"github.com/pitabwire/voiceverify/config"
	"github.com/pitabwire/voiceverify/telemetry"
	"github.com/pitabwire/voiceverify/voice"
)

// WithTelemetry installs the OpenTelemetry providers, honouring OPENTELEMETRY_DISABLE.
func WithTelemetry(opts ...telemetry.Option) Option {
	return func(ctx context.Context, s *Service) {
		cfg, _ := s.Config().(config.ConfigurationTelemetry)

		extOpts := []telemetry.Option{
			telemetry.WithServiceName(s.Name()),
			telemetry.WithServiceVersion(s.Version()),
			telemetry.WithServiceEnvironment(s.Environment()),
			telemetry.WithMetricViews(telemetry.Views(voice.InstrumentationName)...),
		}
		extOpts = append(extOpts, opts...)

		s.telemetryManager = telemetry.NewManager(ctx, cfg, extOpts...)
		if err := s.telemetryManager.Init(ctx); err != nil {
			s.Log(ctx).WithError(err).Error("failed to initialize telemetry")
			s.telemetryManager = nil
		}
	}
}
