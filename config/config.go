package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type contextKey string

func (c contextKey) String() string {
	return "voiceverify/config/" + string(c)
}

const (
	ctxKeyConfiguration = contextKey("configurationKey")

	AnnouncementModePrompts = "prompts"
	AnnouncementModeSpeech  = "speech"
)

// ErrMissingPromptBaseURL is returned when recorded prompts are selected without a location to serve them from.
var ErrMissingPromptBaseURL = errors.New("VOICE_PROMPT_BASE_URL is required when VOICE_ANNOUNCEMENT_MODE is prompts")

var validate = validator.New(validator.WithRequiredStructEnabled())

// ToContext adds service configuration to the current supplied context.
func ToContext(ctx context.Context, config any) context.Context {
	return context.WithValue(ctx, ctxKeyConfiguration, config)
}

// FromContext extracts service configuration from the supplied context if any exist.
func FromContext[T any](ctx context.Context) T {
	if cfg, ok := ctx.Value(ctxKeyConfiguration).(T); ok {
		return cfg
	}
	var zero T
	return zero
}

// FromEnv convenience method to process configs.
func FromEnv[T any]() (T, error) {
	return env.ParseAs[T]()
}

// FillEnv convenience method to fill a config object with environment data.
func FillEnv(v any) error {
	return env.Parse(v)
}

// FromFile reads the environment like FromEnv and then overlays the YAML document at path.
// Keys present in the file take precedence.
func FromFile[T any](path string) (T, error) {
	cfg, err := FromEnv[T]()
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read configuration file: %w", err)
	}

	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("could not parse configuration file %s: %w", path, err)
	}
	return cfg, nil
}

type ConfigurationDefault struct {
	LogLevel      string `envDefault:"info"                      env:"LOG_LEVEL"       yaml:"log_level"       validate:"oneof=trace debug info warn warning error fatal panic"`
	LogTimeFormat string `envDefault:"2006-01-02T15:04:05Z07:00" env:"LOG_TIME_FORMAT" yaml:"log_time_format"`
	LogColored    bool   `envDefault:"true"                      env:"LOG_COLORED"     yaml:"log_colored"`

	LogShowStackTrace bool `envDefault:"false" env:"LOG_SHOW_STACK_TRACE" yaml:"log_show_stack_trace"`

	OpenTelemetryDisable    bool    `envDefault:"false" env:"OPENTELEMETRY_DISABLE"        yaml:"opentelemetry_disable"`
	OpenTelemetryTraceRatio float64 `envDefault:"0.1"   env:"OPENTELEMETRY_TRACE_ID_RATIO" yaml:"opentelemetry_trace_id_ratio" validate:"gte=0,lte=1"`

	ServiceName        string `envDefault:"voiceverify" env:"SERVICE_NAME"        yaml:"service_name"`
	ServiceEnvironment string `envDefault:""            env:"SERVICE_ENVIRONMENT" yaml:"service_environment"`
	ServiceVersion     string `envDefault:""            env:"SERVICE_VERSION"     yaml:"service_version"`

	HTTPServerPort string `envDefault:":8080" env:"HTTP_PORT" yaml:"http_port"`
}

type ConfigurationService interface {
	Name() string
	Environment() string
	Version() string
}

var _ ConfigurationService = new(ConfigurationDefault)

func (c *ConfigurationDefault) Name() string {
	return c.ServiceName
}
func (c *ConfigurationDefault) Environment() string {
	return c.ServiceEnvironment
}
func (c *ConfigurationDefault) Version() string {
	return c.ServiceVersion
}

type ConfigurationLogLevel interface {
	LoggingLevel() string
	LoggingTimeFormat() string
	LoggingShowStackTrace() bool
	LoggingColored() bool
	LoggingLevelIsDebug() bool
}

var _ ConfigurationLogLevel = new(ConfigurationDefault)

func (c *ConfigurationDefault) LoggingLevel() string {
	return c.LogLevel
}

func (c *ConfigurationDefault) LoggingTimeFormat() string {
	return c.LogTimeFormat
}

func (c *ConfigurationDefault) LoggingColored() bool {
	return c.LogColored
}

func (c *ConfigurationDefault) LoggingShowStackTrace() bool {
	return c.LogShowStackTrace
}

func (c *ConfigurationDefault) LoggingLevelIsDebug() bool {
	return c.LoggingLevel() == "debug" || c.LoggingLevel() == "trace"
}

type ConfigurationPorts interface {
	HTTPPort() string
}

var _ ConfigurationPorts = new(ConfigurationDefault)

func (c *ConfigurationDefault) HTTPPort() string {
	if i, err := strconv.Atoi(c.HTTPServerPort); err == nil && i > 0 {
		return fmt.Sprintf(":%s", strings.TrimSpace(c.HTTPServerPort))
	}

	if strings.HasPrefix(c.HTTPServerPort, ":") || strings.Contains(c.HTTPServerPort, ":") {
		return c.HTTPServerPort
	}

	return ":8080"
}

type ConfigurationTelemetry interface {
	DisableOpenTelemetry() bool
	SamplingRatio() float64
}

var _ ConfigurationTelemetry = new(ConfigurationDefault)

func (c *ConfigurationDefault) DisableOpenTelemetry() bool {
	return c.OpenTelemetryDisable
}

func (c *ConfigurationDefault) SamplingRatio() float64 {
	return c.OpenTelemetryTraceRatio
}

// ConfigurationVoice holds everything the voice description endpoint needs on top of the service defaults.
type ConfigurationVoice struct {
	ConfigurationDefault `yaml:",inline"`

	SupportedLocales   []string `envDefault:"pt-BR,ru" env:"VOICE_SUPPORTED_LOCALES"   yaml:"supported_locales"   validate:"dive,required" envSeparator:","`
	DefaultLocale      string   `envDefault:"en-US"    env:"VOICE_DEFAULT_LOCALE"      yaml:"default_locale"      validate:"required"`
	PromptBaseURL      string   `envDefault:""         env:"VOICE_PROMPT_BASE_URL"     yaml:"prompt_base_url"     validate:"omitempty,url"`
	AnnouncementMode   string   `envDefault:"prompts"  env:"VOICE_ANNOUNCEMENT_MODE"   yaml:"announcement_mode"   validate:"oneof=prompts speech"`
	AnnouncementRepeat int      `envDefault:"3"        env:"VOICE_ANNOUNCEMENT_REPEAT" yaml:"announcement_repeat" validate:"min=1,max=10"`
	TranslationsFolder string   `envDefault:""         env:"VOICE_TRANSLATIONS_FOLDER" yaml:"translations_folder"`
	SpeechVoice        string   `envDefault:""         env:"VOICE_SPEECH_VOICE"        yaml:"speech_voice"`

	RateLimitRequestsPerSecond int `envDefault:"10" env:"RATE_LIMIT_REQUESTS_PER_SECOND" yaml:"rate_limit_requests_per_second" validate:"gte=0"`
	RateLimitBurst             int `envDefault:"20" env:"RATE_LIMIT_BURST"               yaml:"rate_limit_burst"               validate:"gte=0"`

	RateLimitTrustForwardedHeaders bool `envDefault:"false" env:"RATE_LIMIT_TRUST_FORWARDED_HEADERS" yaml:"rate_limit_trust_forwarded_headers"`
}

type ConfigurationLocales interface {
	LocalesSupported() []string
	LocaleDefault() string
}

var _ ConfigurationLocales = new(ConfigurationVoice)

func (c *ConfigurationVoice) LocalesSupported() []string {
	locales := make([]string, 0, len(c.SupportedLocales))
	for _, l := range c.SupportedLocales {
		if l = strings.TrimSpace(l); l != "" {
			locales = append(locales, l)
		}
	}
	return locales
}

func (c *ConfigurationVoice) LocaleDefault() string {
	return strings.TrimSpace(c.DefaultLocale)
}

type ConfigurationRateLimit interface {
	RateLimitEnabled() bool
	RequestsPerSecond() int
	Burst() int
	TrustForwardedHeaders() bool
}

var _ ConfigurationRateLimit = new(ConfigurationVoice)

// RateLimitEnabled reports whether callers should be throttled at all. A zero rate switches limiting off.
func (c *ConfigurationVoice) RateLimitEnabled() bool {
	return c.RateLimitRequestsPerSecond > 0
}

func (c *ConfigurationVoice) RequestsPerSecond() int {
	return c.RateLimitRequestsPerSecond
}

func (c *ConfigurationVoice) Burst() int {
	if c.RateLimitBurst < c.RateLimitRequestsPerSecond {
		return c.RateLimitRequestsPerSecond
	}
	return c.RateLimitBurst
}

// TrustForwardedHeaders reports whether callers are identified by forwarding headers rather than the connection.
func (c *ConfigurationVoice) TrustForwardedHeaders() bool {
	return c.RateLimitTrustForwardedHeaders
}

// Validate checks field constraints and the rules that span more than one field.
func (c *ConfigurationVoice) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid voice configuration: %w", err)
	}

	if c.AnnouncementMode == AnnouncementModePrompts && c.PromptBaseURL == "" {
		return ErrMissingPromptBaseURL
	}

	return nil
}
