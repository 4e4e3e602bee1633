package voiceverify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pitabwire/voiceverify/config"
	"github.com/pitabwire/voiceverify/localization"
	"github.com/pitabwire/voiceverify/ratelimiter"
	"github.com/pitabwire/voiceverify/twiml"
	"github.com/pitabwire/voiceverify/voice"
)

// NewAnnouncer picks the announcement provider named by the configured mode.
func NewAnnouncer(cfg *config.ConfigurationVoice) (twiml.Announcer, error) {
	switch cfg.AnnouncementMode {
	case config.AnnouncementModeSpeech:
		locales := append([]string{cfg.LocaleDefault()}, cfg.LocalesSupported()...)
		manager, err := localization.NewManager(cfg.TranslationsFolder, locales...)
		if err != nil {
			return nil, err
		}
		return twiml.NewSpeechAnnouncer(manager, cfg.AnnouncementRepeat, cfg.SpeechVoice), nil
	case config.AnnouncementModePrompts, "":
		return twiml.NewPromptAnnouncer(cfg.PromptBaseURL, cfg.AnnouncementRepeat), nil
	default:
		return nil, fmt.Errorf("unknown announcement mode %q", cfg.AnnouncementMode)
	}
}

// NewDescriber validates cfg and assembles the locale resolver and announcer behind a Describer.
func NewDescriber(cfg *config.ConfigurationVoice) (*voice.Describer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	resolver, err := localization.NewResolver(cfg.LocalesSupported(), cfg.LocaleDefault())
	if err != nil {
		return nil, err
	}

	announcer, err := NewAnnouncer(cfg)
	if err != nil {
		return nil, err
	}

	return voice.NewDescriber(resolver, announcer), nil
}

// WithVoiceDescriber serves describer on the description route. When limiter is
// not nil callers are throttled per IP and the limiter is closed on Stop.
func WithVoiceDescriber(describer *voice.Describer, limiter *ratelimiter.KeyedLimiter) Option {
	return func(_ context.Context, s *Service) {
		mux := http.NewServeMux()
		voice.NewHandler(describer).Register(mux)

		var h http.Handler = mux
		if limiter != nil {
			h = ratelimiter.RateLimitMiddleware(limiter)(mux)
			s.AddCleanupMethod(func(ctx context.Context) {
				if err := limiter.Close(); err != nil {
					s.Log(ctx).WithError(err).Warn("rate limiter close failed")
				}
			})
		}

		s.handler = h
	}
}
