package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
)

// requireStaffKey authenticates the X-Staff-Key header by computing the
// HMAC-SHA256 of the presented key, looking the hash up in the repository,
// and performing a constant-time comparison to prevent timing attacks. The
// wrapped handler runs only when the key is valid and carries the scope.
func (h *Handler) requireStaffKey(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(headerStaffKey)
			if key == "" {
				respondError(w, http.StatusUnauthorized, "staff key required")
				return
			}

			mac := hmac.New(sha256.New, h.pepper)
			mac.Write([]byte(key))
			hash := mac.Sum(nil)

			info, err := h.staffkeys.FindByHash(r.Context(), hex.EncodeToString(hash))
			if err != nil {
				respondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			// The stored hash could differ from what we computed if the
			// repository returns a stale or wrong row, so compare anyway.
			stored, err := hex.DecodeString(info.KeyHash)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if subtle.ConstantTimeCompare(hash, stored) != 1 {
				respondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if !info.HasScope(scope) {
				respondError(w, http.StatusForbidden, "missing scope "+scope)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
