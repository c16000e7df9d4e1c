package http

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
)

const SignatureHeader = "X-Push-Signature"

// maxPushBody bounds webhook payloads read for signing.
const maxPushBody = 1 << 20

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureMiddleware checks X-Push-Signature against the request body.
// An empty secret disables the check.
func SignatureMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sig := strings.TrimSpace(r.Header.Get(SignatureHeader))
			if sig == "" {
				writeError(w, http.StatusUnauthorized, "missing signature header")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxPushBody))
			if err != nil {
				writeError(w, http.StatusBadRequest, "read body error")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			expected := Sign(secret, body)
			if !hmac.Equal([]byte(expected), []byte(strings.ToLower(sig))) {
				writeError(w, http.StatusUnauthorized, "invalid signature")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
