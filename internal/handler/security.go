package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/xenking/storefront-backend/internal/domain/auth"
)

// Security authenticates API requests via HMAC-SHA256 hashed API keys and
// resolves the caller's identity into the request context.
type Security struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurity creates a Security with the given API key repository and HMAC
// pepper.
func NewSecurity(apikeys auth.Repository, pepper []byte) *Security {
	return &Security{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Require wraps a handler with API-key authentication.
func (s *Security) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := s.authenticate(r)
		if !ok {
			writeErrorCode(w, http.StatusUnauthorized, "unauthorized", "invalid or missing API key")
			return
		}
		next(w, r.WithContext(auth.WithIdentity(r.Context(), ident)))
	}
}

// RequireAdmin wraps a handler with authentication plus an admin check.
func (s *Security) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.Require(func(w http.ResponseWriter, r *http.Request) {
		ident, _ := auth.IdentityFromContext(r.Context())
		if !ident.Admin {
			writeErrorCode(w, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		next(w, r)
	})
}

// authenticate computes the HMAC-SHA256 of the presented key, looks it up,
// and performs a constant-time comparison to prevent timing side-channels.
func (s *Security) authenticate(r *http.Request) (auth.Identity, bool) {
	key := r.Header.Get("X-API-Key")
	if key == "" {
		return auth.Identity{}, false
	}

	mac := hmac.New(sha256.New, s.pepper)
	mac.Write([]byte(key))
	hash := mac.Sum(nil)

	info, err := s.apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
	if err != nil {
		return auth.Identity{}, false
	}

	storedBytes, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return auth.Identity{}, false
	}
	if subtle.ConstantTimeCompare(hash, storedBytes) != 1 {
		return auth.Identity{}, false
	}

	return auth.Identity{UserID: info.UserID, Admin: info.Admin}, true
}
