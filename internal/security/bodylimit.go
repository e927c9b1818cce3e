package security

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/noah-isme/academy-payments/internal/common"
)

// BodyLimit enforces a maximum request payload size. The body is buffered so
// downstream handlers see exactly the bytes the client sent.
type BodyLimit struct {
	Max int64
}

// Middleware rejects requests exceeding the configured limit with HTTP 413.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Max <= 0 || r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > b.Max {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "Request body too large.")
			return
		}

		buf, err := io.ReadAll(http.MaxBytesReader(w, r.Body, b.Max))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				common.JSONError(w, http.StatusRequestEntityTooLarge, "Request body too large.")
				return
			}
			common.JSONError(w, http.StatusBadRequest, "Unable to read request body.")
			return
		}
		_ = r.Body.Close()

		r.Body = io.NopCloser(bytes.NewReader(buf))
		r.ContentLength = int64(len(buf))
		next.ServeHTTP(w, r)
	})
}
