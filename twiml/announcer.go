package twiml

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pitabwire/voiceverify/localization"
	"github.com/pitabwire/voiceverify/verification"
)

const (
	// DefaultRepeat is how many times the code is read out in one call.
	DefaultRepeat = 3

	introPrompt = "verification.mp3"

	messageIntro  = "VerificationIntro"
	messageRepeat = "VerificationRepeat"
)

// ErrEmptyCode is returned when an announcer receives a zero Code.
var ErrEmptyCode = errors.New("announcement requires a validated code")

// Announcer produces the spoken announcement for a validated code in an already resolved locale.
type Announcer interface {
	Announce(ctx context.Context, code verification.Code, locale string) (*Response, error)
}

// PromptAnnouncer plays recorded audio prompts stored per locale under a base URL.
type PromptAnnouncer struct {
	baseURL string
	repeat  int
}

// NewPromptAnnouncer creates an announcer serving prompts from baseURL.
func NewPromptAnnouncer(baseURL string, repeat int) *PromptAnnouncer {
	if repeat < 1 {
		repeat = DefaultRepeat
	}

	return &PromptAnnouncer{
		baseURL: strings.TrimRight(baseURL, "/"),
		repeat:  repeat,
	}
}

// Announce plays the intro prompt followed by each digit. Every digit uses its
// _middle recording except the last, which uses the _falling one.
func (p *PromptAnnouncer) Announce(ctx context.Context, code verification.Code, locale string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if code.IsZero() {
		return nil, ErrEmptyCode
	}

	digits := code.Digits()
	resp := &Response{}
	for i := range p.repeat {
		if i > 0 {
			resp.Append(Pause{Length: 1})
		}

		resp.Append(Play{URL: p.promptURL(locale, introPrompt)})
		for j, d := range digits {
			suffix := "middle"
			if j == len(digits)-1 {
				suffix = "falling"
			}
			resp.Append(Play{URL: p.promptURL(locale, fmt.Sprintf("%d_%s.mp3", d, suffix))})
		}
	}

	return resp, nil
}

func (p *PromptAnnouncer) promptURL(locale, file string) string {
	return p.baseURL + "/" + locale + "/" + file
}

// SpeechAnnouncer has the provider read localized text instead of playing recordings.
type SpeechAnnouncer struct {
	manager localization.Manager
	repeat  int
	voice   string
}

// NewSpeechAnnouncer creates an announcer that takes its phrases from manager.
// voice names the provider speech voice; empty leaves the provider default.
func NewSpeechAnnouncer(manager localization.Manager, repeat int, voice string) *SpeechAnnouncer {
	if repeat < 1 {
		repeat = DefaultRepeat
	}

	return &SpeechAnnouncer{manager: manager, repeat: repeat, voice: strings.TrimSpace(voice)}
}

// Announce reads the intro phrase and then the digits one at a time.
func (s *SpeechAnnouncer) Announce(ctx context.Context, code verification.Code, locale string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if code.IsZero() {
		return nil, ErrEmptyCode
	}

	spoken := spokenDigits(code)
	resp := &Response{}
	for i := range s.repeat {
		messageID := messageIntro
		if i > 0 {
			resp.Append(Pause{Length: 1})
			messageID = messageRepeat
		}

		intro, err := s.manager.Localize(locale, messageID, nil)
		if err != nil {
			return nil, fmt.Errorf("could not localize %s for %s: %w", messageID, locale, err)
		}

		resp.Append(
			Say{Language: locale, Voice: s.voice, Text: intro},
			Say{Language: locale, Voice: s.voice, Text: spoken},
		)
	}

	return resp, nil
}

func spokenDigits(code verification.Code) string {
	digits := code.Digits()
	parts := make([]string, 0, len(digits))
	for _, d := range digits {
		parts = append(parts, strconv.Itoa(d))
	}
	return strings.Join(parts, ", ")
}
