package handler

import (
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/tahat-market/shop-api/internal/domain/auth"
)

// apiKeyHeader carries the admin API key on mutating requests.
const apiKeyHeader = "X-Api-Key"

// RequireAPIKey returns a middleware that authenticates requests via
// HMAC-SHA256 hashed API keys: the provided key is hashed under the pepper,
// looked up, and compared in constant time.
func RequireAPIKey(apikeys auth.Repository, pepper []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(apiKeyHeader)
			if key == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			hash := auth.HashKey(key, pepper)
			info, err := apikeys.FindByHash(r.Context(), hash)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			// The lookup already matched, but the stored hash could differ
			// from what we computed if the repository returns a stale row.
			stored, err := hex.DecodeString(info.KeyHash)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			computed, err := hex.DecodeString(hash)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if subtle.ConstantTimeCompare(computed, stored) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
