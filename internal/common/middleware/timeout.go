package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qualtrack/qualtrack/internal/common/httpx"
)

// SetTimeout enforces a per-request deadline. When the deadline passes
// before the handler finishes, a timeout error is returned if no response
// has started yet.
func SetTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			rw := httpx.NewResponseWriter(w)
			r = r.WithContext(ctx)

			done := make(chan struct{})
			go func() {
				defer func() {
					if p := recover(); p != nil {
						log.Ctx(ctx).Error().Msgf("panic in handler: %v", p)
					}
					close(done)
				}()
				next.ServeHTTP(rw, r)
			}()

			select {
			case <-done:
			case <-ctx.Done():
				if !rw.Written() {
					httpx.SendErrorMsg(ctx, rw, http.StatusRequestTimeout, "request timed out")
				}
				log.Ctx(ctx).Error().Msg("request timed out")
			}
		})
	}
}
