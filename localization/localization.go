package localization

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pitabwire/util"
	"golang.org/x/text/language"
)

// PreferenceParam is the query parameter carrying locale preferences.
// It may be repeated and each value may hold several comma or space separated tags.
const PreferenceParam = "l"

//go:embed messages.*.toml
var embeddedMessages embed.FS

type contextKey string

func (c contextKey) String() string {
	return "voiceverify/localization/" + string(c)
}

const ctxKeyPreferences = contextKey("preferencesKey")

// ToContext adds the raw locale preferences to the supplied context.
func ToContext(ctx context.Context, preferences []string) context.Context {
	return context.WithValue(ctx, ctxKeyPreferences, preferences)
}

// FromContext extracts the raw locale preferences from the supplied context if any exist.
func FromContext(ctx context.Context) []string {
	preferences, ok := ctx.Value(ctxKeyPreferences).([]string)
	if !ok {
		return nil
	}

	return preferences
}

// ExtractPreferencesFromHTTPRequest flattens every value of the preference
// query parameter into a plain sequence, in the order they were sent.
func ExtractPreferencesFromHTTPRequest(req *http.Request) []string {
	if req == nil || req.URL == nil {
		return nil
	}

	return req.URL.Query()[PreferenceParam]
}

// Manager supplies localized announcement text for an already resolved locale.
type Manager interface {
	Bundle() *i18n.Bundle
	Locales() []string
	Localize(locale string, messageID string, variables map[string]any) (string, error)
	Translate(ctx context.Context, locale string, messageID string) string
	TranslateWithMap(ctx context.Context, locale string, messageID string, variables map[string]any) string
}

type managerImpl struct {
	bundle *i18n.Bundle
}

// NewManager loads messages.<locale>.toml for every locale. When translationsFolder
// is empty the message files compiled into the binary are used.
func NewManager(translationsFolder string, locales ...string) (Manager, error) {
	var fsys fs.FS = embeddedMessages
	if translationsFolder != "" {
		fsys = os.DirFS(translationsFolder)
	}

	bundle := i18n.NewBundle(language.AmericanEnglish)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	for _, locale := range locales {
		file := fmt.Sprintf("messages.%s.toml", locale)
		if _, err := bundle.LoadMessageFileFS(fsys, file); err != nil {
			return nil, fmt.Errorf("could not load translations for %q: %w", locale, err)
		}
	}

	return &managerImpl{bundle: bundle}, nil
}

// Bundle Access the translation bundle instantiated in the system.
func (m *managerImpl) Bundle() *i18n.Bundle {
	return m.bundle
}

// Locales lists the locales the bundle holds messages for.
func (m *managerImpl) Locales() []string {
	tags := m.bundle.LanguageTags()
	locales := make([]string, 0, len(tags))
	for _, tag := range tags {
		locales = append(locales, tag.String())
	}
	return locales
}

// Localize renders messageID for locale, using the bundle default language when locale lacks the message.
func (m *managerImpl) Localize(locale string, messageID string, variables map[string]any) (string, error) {
	localizer := i18n.NewLocalizer(m.bundle, locale)

	text, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: variables,
	})
	if err != nil {
		return "", err
	}

	return text, nil
}

// Translate performs a quick translation based on the supplied message id.
// Unlike Localize it never fails: a missing message is logged and the id is
// returned, which suits labels but not announcement text.
func (m *managerImpl) Translate(ctx context.Context, locale string, messageID string) string {
	return m.TranslateWithMap(ctx, locale, messageID, map[string]any{})
}

// TranslateWithMap performs a translation with variables, falling back to the message id.
func (m *managerImpl) TranslateWithMap(
	ctx context.Context,
	locale string,
	messageID string,
	variables map[string]any,
) string {
	text, err := m.Localize(locale, messageID, variables)
	if err != nil {
		util.Log(ctx).
			WithError(err).
			WithField("messageID", messageID).
			WithField("locale", locale).
			Error("TranslateWithMap -- could not perform translation")
		return messageID
	}

	return text
}
