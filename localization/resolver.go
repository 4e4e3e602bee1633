package localization

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	minSubtagLength = 2
	maxSubtagLength = 8
)

var (
	// ErrInvalidLocale is returned when a locale preference is not shaped like a language tag.
	// A well formed but unsupported locale is not an error.
	ErrInvalidLocale = errors.New("invalid locale")

	// ErrInvalidLocaleConfig is returned when a resolver is built from a malformed supported or default locale.
	ErrInvalidLocaleConfig = errors.New("invalid locale configuration")
)

//nolint:gochecknoglobals // compiled once, read only
var preferenceSeparators = regexp.MustCompile(`[,\s]+`)

// Tag is a language tag made of a language and an optional region.
type Tag struct {
	Language string
	Region   string
}

// String renders the tag as "language" or "language-REGION".
func (t Tag) String() string {
	if t.Region == "" {
		return t.Language
	}
	return t.Language + "-" + t.Region
}

// ParseTag validates and normalises a single locale token.
// The language is lower cased and the region upper cased.
func ParseTag(token string) (Tag, error) {
	if token == "" {
		return Tag{}, fmt.Errorf("%w: empty locale", ErrInvalidLocale)
	}

	lang, region, hasRegion := strings.Cut(token, "-")
	if !isLetters(lang) {
		return Tag{}, fmt.Errorf("%w: %q", ErrInvalidLocale, token)
	}

	if hasRegion && !isLetters(region) {
		return Tag{}, fmt.Errorf("%w: %q", ErrInvalidLocale, token)
	}

	return Tag{
		Language: strings.ToLower(lang),
		Region:   strings.ToUpper(region),
	}, nil
}

func isLetters(s string) bool {
	if len(s) < minSubtagLength || len(s) > maxSubtagLength {
		return false
	}

	for i := range len(s) {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}

// SplitPreference breaks one raw preference entry into its locale tokens.
// Entries may hold several tags joined by commas or whitespace; any empty
// fragment left by the split is kept so that it fails validation.
func SplitPreference(entry string) []string {
	return preferenceSeparators.Split(strings.TrimSpace(entry), -1)
}

// Resolver picks the best supported locale for a list of preferences.
// It is immutable once built and safe for concurrent use.
type Resolver struct {
	supported     []string
	exact         map[string]string
	base          map[string]string
	defaultLocale string
}

// NewResolver builds a resolver over the supported locales, in priority order,
// and the locale returned when nothing matches.
func NewResolver(supported []string, defaultLocale string) (*Resolver, error) {
	defaultTag, err := ParseTag(strings.TrimSpace(defaultLocale))
	if err != nil {
		return nil, fmt.Errorf("%w: default locale %q", ErrInvalidLocaleConfig, defaultLocale)
	}

	r := &Resolver{
		exact:         make(map[string]string, len(supported)),
		base:          make(map[string]string, len(supported)),
		defaultLocale: defaultTag.String(),
	}

	for _, raw := range supported {
		tag, tagErr := ParseTag(strings.TrimSpace(raw))
		if tagErr != nil {
			return nil, fmt.Errorf("%w: supported locale %q", ErrInvalidLocaleConfig, raw)
		}

		name := tag.String()
		if _, seen := r.exact[name]; seen {
			continue
		}

		r.supported = append(r.supported, name)
		r.exact[name] = name

		// a bare language entry owns its base, otherwise the first declared entry does
		current, claimed := r.base[tag.Language]
		if !claimed || (tag.Region == "" && current != tag.Language) {
			r.base[tag.Language] = name
		}
	}

	return r, nil
}

// Supported returns the supported locales in priority order.
func (r *Resolver) Supported() []string {
	out := make([]string, len(r.supported))
	copy(out, r.supported)
	return out
}

// Default returns the locale used when no preference matches.
func (r *Resolver) Default() string {
	return r.defaultLocale
}

// Resolve returns the supported locale that best matches the preferences.
//
// An exact match returns immediately, wherever it appears. Otherwise the first
// token sharing a base language with a supported locale wins. Without either,
// or without preferences at all, the default locale is returned. Only a
// malformed token makes resolution fail, with ErrInvalidLocale.
func (r *Resolver) Resolve(preferences []string) (string, error) {
	if len(preferences) == 0 {
		return r.defaultLocale, nil
	}

	fallback := ""
	for _, entry := range preferences {
		for _, token := range SplitPreference(entry) {
			tag, err := ParseTag(token)
			if err != nil {
				return "", err
			}

			if match, ok := r.exact[tag.String()]; ok {
				return match, nil
			}

			if fallback == "" {
				fallback = r.base[tag.Language]
			}
		}
	}

	if fallback != "" {
		return fallback, nil
	}

	return r.defaultLocale, nil
}

// Resolve is a one shot form of Resolver.Resolve.
func Resolve(preferences []string, supported []string, defaultLocale string) (string, error) {
	r, err := NewResolver(supported, defaultLocale)
	if err != nil {
		return "", err
	}
	return r.Resolve(preferences)
}
