package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/log"

	"github.com/qualtrack/qualtrack/internal/common/httpx"
)

// PanicHandler recovers from panics in downstream handlers, logs the stack,
// and returns a generic error response if nothing was written yet.
func PanicHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := httpx.NewResponseWriter(w)
		defer func() {
			if err := recover(); err != nil {
				log.Ctx(r.Context()).Error().
					Str("panic", fmt.Sprintf("%v", err)).
					Str("stack_trace", string(debug.Stack())).
					Msg("panic occurred")

				if !rw.Written() {
					httpx.SendErrorMsg(r.Context(), rw, http.StatusInternalServerError, "unable to process request")
				}
			}
		}()
		next.ServeHTTP(rw, r)
	})
}
