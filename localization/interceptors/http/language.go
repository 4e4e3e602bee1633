package http

import (
	"net/http"

	"github.com/pitabwire/voiceverify/localization"
)

// LanguageHTTPMiddleware is an HTTP middleware that extracts the raw locale preferences and sets them in the context.
func LanguageHTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := localization.ExtractPreferencesFromHTTPRequest(r)

		ctx := localization.ToContext(r.Context(), l)
		r = r.WithContext(ctx)

		next.ServeHTTP(w, r)
	})
}
