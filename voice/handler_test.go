package voice_test

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/voiceverify/localization"
	"github.com/pitabwire/voiceverify/twiml"
	"github.com/pitabwire/voiceverify/verification"
	"github.com/pitabwire/voiceverify/voice"
)

type playDocument struct {
	XMLName xml.Name `xml:"Response"`
	Plays   []string `xml:"Play"`
	Pauses  []struct {
		Length int `xml:"length,attr"`
	} `xml:"Pause"`
}

type failingAnnouncer struct{}

func (failingAnnouncer) Announce(context.Context, verification.Code, string) (*twiml.Response, error) {
	return nil, errors.New("prompt store offline")
}

type HandlerTestSuite struct {
	suite.Suite
	mux *http.ServeMux
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, &HandlerTestSuite{})
}

func (s *HandlerTestSuite) SetupTest() {
	s.mux = s.newMux(twiml.NewPromptAnnouncer("https://foo.com/bar", 3))
}

func (s *HandlerTestSuite) newMux(announcer twiml.Announcer) *http.ServeMux {
	resolver, err := localization.NewResolver([]string{"pt-BR", "ru"}, "en-US")
	s.Require().NoError(err)

	mux := http.NewServeMux()
	voice.NewHandler(voice.NewDescriber(resolver, announcer)).Register(mux)
	return mux
}

func (s *HandlerTestSuite) post(code string, locales ...string) *httptest.ResponseRecorder {
	target := "/v1/voice/description/" + code
	if len(locales) > 0 {
		q := url.Values{}
		for _, l := range locales {
			q.Add(localization.PreferenceParam, l)
		}
		target += "?" + q.Encode()
	}

	req := httptest.NewRequest(http.MethodPost, target, nil)
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)
	return rr
}

func (s *HandlerTestSuite) expectedPlays(locale string) []string {
	prefix := "https://foo.com/bar/" + locale + "/"
	var plays []string
	for range 3 {
		plays = append(plays,
			prefix+"verification.mp3",
			prefix+"1_middle.mp3",
			prefix+"2_middle.mp3",
			prefix+"3_middle.mp3",
			prefix+"4_middle.mp3",
			prefix+"5_middle.mp3",
			prefix+"6_falling.mp3",
		)
	}
	return plays
}

func (s *HandlerTestSuite) TestDescription() {
	testCases := []struct {
		name    string
		locales []string
		locale  string
	}{
		{name: "supported locale", locales: []string{"pt-BR"}, locale: "pt-BR"},
		{name: "split locale falls back to base", locales: []string{"ru-RU"}, locale: "ru"},
		{name: "unsupported locale uses default", locales: []string{"es-MX"}, locale: "en-US"},
		{name: "multiple locales", locales: []string{"es-MX", "ru-RU"}, locale: "ru"},
		{name: "missing locale uses default", locale: "en-US"},
		{name: "combined entry", locales: []string{"es-MX, pt-BR"}, locale: "pt-BR"},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			rr := s.post("123456", tc.locales...)

			s.Equal(http.StatusOK, rr.Code)
			s.Equal(twiml.ContentType, rr.Header().Get("Content-Type"))
			s.NotEmpty(rr.Header().Get(voice.CallIDHeader))
			s.True(strings.HasPrefix(rr.Body.String(), xml.Header))

			var doc playDocument
			s.Require().NoError(xml.Unmarshal(rr.Body.Bytes(), &doc))
			s.Equal(s.expectedPlays(tc.locale), doc.Plays)
			s.Len(doc.Pauses, 2)
		})
	}
}

func (s *HandlerTestSuite) TestRejections() {
	testCases := []struct {
		name    string
		code    string
		locales []string
		status  int
		outcome string
	}{
		{name: "code too long", code: "1234567", status: http.StatusBadRequest, outcome: voice.OutcomeInvalidCode},
		{name: "code too short", code: "12345", status: http.StatusBadRequest, outcome: voice.OutcomeInvalidCode},
		{name: "filler in code", code: "1234...56", status: http.StatusBadRequest, outcome: voice.OutcomeInvalidCode},
		{name: "letters in code", code: "12a456", status: http.StatusBadRequest, outcome: voice.OutcomeInvalidCode},
		{name: "malformed locale", code: "123456", locales: []string{"it IT ,"}, status: http.StatusBadRequest, outcome: voice.OutcomeInvalidLocale},
		{name: "empty locale", code: "123456", locales: []string{""}, status: http.StatusBadRequest, outcome: voice.OutcomeInvalidLocale},
		{name: "code checked before locale", code: "1234567", locales: []string{"it IT ,"}, status: http.StatusBadRequest, outcome: voice.OutcomeInvalidCode},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			rr := s.post(tc.code, tc.locales...)

			s.Equal(tc.status, rr.Code)
			s.Equal("application/json", rr.Header().Get("Content-Type"))

			var body map[string]string
			s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &body))
			s.Equal(tc.outcome, body["code"])
			s.NotEmpty(body["error"])
		})
	}
}

func (s *HandlerTestSuite) TestAnnouncementFailure() {
	s.mux = s.newMux(failingAnnouncer{})

	rr := s.post("123456", "ru")
	s.Equal(http.StatusInternalServerError, rr.Code)

	var body map[string]string
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &body))
	s.Equal(voice.OutcomeAnnouncementFailed, body["code"])
}

func (s *HandlerTestSuite) TestMethodNotAllowed() {
	req := httptest.NewRequest(http.MethodGet, "/v1/voice/description/123456", nil)
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)

	s.Equal(http.StatusMethodNotAllowed, rr.Code)
}

func (s *HandlerTestSuite) TestCallIDsAreUnique() {
	first := s.post("123456").Header().Get(voice.CallIDHeader)
	second := s.post("123456").Header().Get(voice.CallIDHeader)
	s.NotEqual(first, second)
}
