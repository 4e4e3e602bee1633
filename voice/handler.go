package voice

import (
	"encoding/json"
	"net/http"

	"github.com/pitabwire/util"
	"github.com/rs/xid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pitabwire/voiceverify/localization"
	lhttp "github.com/pitabwire/voiceverify/localization/interceptors/http"
	"github.com/pitabwire/voiceverify/twiml"
)

// DescriptionRoute is the endpoint the telephony provider calls back on.
const DescriptionRoute = "POST /v1/voice/description/{code}"

// CallIDHeader echoes the identifier logged for the request.
const CallIDHeader = "X-Call-Id"

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errorMessages = map[string]string{
	OutcomeInvalidCode:        "verification code must be exactly six digits",
	OutcomeInvalidLocale:      "malformed locale preference",
	OutcomeAnnouncementFailed: "could not build voice announcement",
}

// Handler exposes a Describer over HTTP.
type Handler struct {
	describer *Describer
}

// NewHandler creates the HTTP boundary for describer.
func NewHandler(describer *Describer) *Handler {
	return &Handler{describer: describer}
}

// Register mounts the description route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle(DescriptionRoute, otelhttp.NewHandler(
		lhttp.LanguageHTTPMiddleware(http.HandlerFunc(h.ServeDescription)),
		"voice.description",
	))
}

// ServeDescription answers with the TwiML document, or a JSON error body when the request is refused.
func (h *Handler) ServeDescription(w http.ResponseWriter, r *http.Request) {
	callID := xid.New().String()
	log := util.Log(r.Context()).WithField("call_id", callID)
	ctx := util.ContextWithLogger(r.Context(), log)

	w.Header().Set(CallIDHeader, callID)

	preferences := localization.FromContext(ctx)
	if preferences == nil {
		preferences = localization.ExtractPreferencesFromHTTPRequest(r)
	}

	desc, err := h.describer.Describe(ctx, r.PathValue("code"), preferences)
	if err != nil {
		outcome := Outcome(err)
		status := http.StatusBadRequest
		if outcome == OutcomeAnnouncementFailed {
			status = http.StatusInternalServerError
			log.WithError(err).Error("voice description failed")
		} else {
			log.WithError(err).WithField("outcome", outcome).Info("voice description rejected")
		}
		writeError(w, status, outcome)
		return
	}

	data, err := desc.Response.Marshal()
	if err != nil {
		log.WithError(err).Error("voice description could not be rendered")
		writeError(w, http.StatusInternalServerError, OutcomeAnnouncementFailed)
		return
	}

	w.Header().Set("Content-Type", twiml.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err = w.Write(data); err != nil {
		log.WithError(err).Warn("voice description write failed")
	}
}

func writeError(w http.ResponseWriter, status int, outcome string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorMessages[outcome], Code: outcome})
}
