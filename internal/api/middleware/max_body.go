package middleware

import (
	"fmt"
	"net/http"

	"github.com/cloo-solutions/newsweave/internal/api"
	"github.com/cloo-solutions/newsweave/internal/domain"
)

// MaxBodyBytes caps document and run payloads. Requests that announce a larger
// Content-Length are refused up front; streamed bodies are cut off at limit and
// fail when the handler decodes them. A limit of zero disables the cap.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit {
				api.JSON(w, http.StatusRequestEntityTooLarge, api.ErrorResponse{
					Error: fmt.Sprintf("request body of %d bytes exceeds the %d byte limit", r.ContentLength, limit),
					Code:  domain.ErrCodeValidation,
				})
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
