package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/freshcut/chickenshop/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// a caller supplied id is echoed only if it looks like an id
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{8,128}$`)

// RequestID tags the request context and response with an id, reusing the
// caller's X-Request-Id when it is well formed.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	if logg == nil {
		logg = logger.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if !requestIDPattern.MatchString(id) {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(logg.WithRequestID(r.Context(), id)))
		})
	}
}
