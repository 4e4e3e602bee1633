// Package voice serves the TwiML the telephony provider fetches when it
// places a verification call.
package voice

import (
	"context"
	"errors"
	"fmt"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/pitabwire/voiceverify/localization"
	"github.com/pitabwire/voiceverify/telemetry"
	"github.com/pitabwire/voiceverify/twiml"
	"github.com/pitabwire/voiceverify/verification"
)

// InstrumentationName names the tracer and meters of this package.
const InstrumentationName = "github.com/pitabwire/voiceverify/voice"

// Outcome labels shared by logs, metrics and error bodies.
const (
	OutcomeOK                 = "ok"
	OutcomeInvalidCode        = "invalid_code"
	OutcomeInvalidLocale      = "invalid_locale"
	OutcomeAnnouncementFailed = "announcement_failed"
)

// ErrAnnouncementFailed wraps any error raised while building the announcement itself.
var ErrAnnouncementFailed = errors.New("announcement could not be produced")

// Describer validates a code, negotiates the locale and builds the announcement.
type Describer struct {
	resolver  *localization.Resolver
	announcer twiml.Announcer

	tracer   telemetry.Tracer
	outcomes metric.Int64Counter
}

// NewDescriber binds the locale resolver and the announcement provider.
func NewDescriber(resolver *localization.Resolver, announcer twiml.Announcer) *Describer {
	return &Describer{
		resolver:  resolver,
		announcer: announcer,
		tracer:    telemetry.NewTracer(InstrumentationName),
		outcomes: telemetry.DimensionlessMeasure(
			InstrumentationName, "/descriptions", "Voice descriptions requested, by outcome and locale."),
	}
}

// Description is a rendered announcement and the locale it was rendered in.
type Description struct {
	Locale   string
	Response *twiml.Response
}

// Describe runs the checks in order: code shape, then locale, then the announcement.
// The first failure ends the request.
func (d *Describer) Describe(ctx context.Context, rawCode string, preferences []string) (desc *Description, err error) {
	ctx, span := d.tracer.Start(ctx, "Describe")
	defer func() { d.tracer.End(ctx, span, err) }()

	code, err := verification.ValidateCode(rawCode)
	if err != nil {
		d.record(ctx, OutcomeInvalidCode, "")
		return nil, err
	}

	locale, err := d.resolver.Resolve(preferences)
	if err != nil {
		d.record(ctx, OutcomeInvalidLocale, "")
		return nil, err
	}

	resp, err := d.announcer.Announce(ctx, code, locale)
	if err != nil {
		d.record(ctx, OutcomeAnnouncementFailed, locale)
		return nil, fmt.Errorf("%w: %w", ErrAnnouncementFailed, err)
	}

	d.record(ctx, OutcomeOK, locale)
	util.Log(ctx).WithField("locale", locale).Debug("voice description built")
	return &Description{Locale: locale, Response: resp}, nil
}

func (d *Describer) record(ctx context.Context, outcome, locale string) {
	attrs := []attribute.KeyValue{attribute.String("outcome", outcome)}
	if locale != "" {
		attrs = append(attrs, attribute.String("locale", locale))
	}
	d.outcomes.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// Outcome classifies an error returned by Describe.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, verification.ErrInvalidCode):
		return OutcomeInvalidCode
	case errors.Is(err, localization.ErrInvalidLocale):
		return OutcomeInvalidLocale
	default:
		return OutcomeAnnouncementFailed
	}
}
