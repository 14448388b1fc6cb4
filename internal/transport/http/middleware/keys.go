package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/blake2b"

	"github.com/JaggerBean/FitCollector/internal/httputil"
	"github.com/JaggerBean/FitCollector/internal/model"
)

const (
	PlayerKey contextKey = "player"
	ServerKey contextKey = "server_name"

	HeaderDeviceID  = "X-Device-ID"
	HeaderPlayerKey = "X-Player-Key"
	HeaderAPIKey    = "X-API-Key"
	HeaderAdminKey  = "X-Admin-Key"
)

// KeyResolver looks up stored key hashes.
type KeyResolver interface {
	ResolvePlayerKey(ctx context.Context, keyHash, deviceID string) (*model.PlayerIdentity, error)
	ResolveServerKey(ctx context.Context, keyHash string) (string, error)
}

// HashKey is the stored form of an opaque API key: hex BLAKE2b-256 of the plaintext.
func HashKey(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// ResolvePlayer checks a player key against the device it was issued to.
func ResolvePlayer(ctx context.Context, resolver KeyResolver, deviceID, key string) (*model.PlayerIdentity, error) {
	deviceID = strings.TrimSpace(deviceID)
	key = strings.TrimSpace(key)
	if deviceID == "" || key == "" {
		return nil, model.ErrPlayerNotFound
	}
	return resolver.ResolvePlayerKey(ctx, HashKey(key), deviceID)
}

// PlayerAuth requires X-Device-ID and X-Player-Key and stores the player identity in the context.
func PlayerAuth(resolver KeyResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := ResolvePlayer(r.Context(), resolver, r.Header.Get(HeaderDeviceID), r.Header.Get(HeaderPlayerKey))
			if errors.Is(err, model.ErrPlayerNotFound) {
				httputil.WriteUnauthorized(w, "Invalid player key")
				return
			}
			if err != nil {
				httputil.WriteServiceError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), PlayerKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ServerAuth requires X-API-Key and stores the server name in the context.
func ServerAuth(resolver KeyResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(HeaderAPIKey))
			if key == "" {
				httputil.WriteUnauthorized(w, "Missing API key")
				return
			}
			server, err := resolver.ResolveServerKey(r.Context(), HashKey(key))
			if errors.Is(err, model.ErrServerNotFound) {
				httputil.WriteUnauthorized(w, "Invalid API key")
				return
			}
			if err != nil {
				httputil.WriteServiceError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), ServerKey, server)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminAuth compares X-Admin-Key with the configured master key. An empty master key disables the routes.
func AdminAuth(masterKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if masterKey == "" {
				httputil.WriteForbidden(w, "Admin endpoints are disabled")
				return
			}
			got := r.Header.Get(HeaderAdminKey)
			if subtle.ConstantTimeCompare([]byte(got), []byte(masterKey)) != 1 {
				log.Warn().Str("component", "auth").Str("path", r.URL.Path).Msg("rejected admin key")
				httputil.WriteUnauthorized(w, "Invalid admin key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func GetPlayerFromContext(ctx context.Context) (*model.PlayerIdentity, bool) {
	id, ok := ctx.Value(PlayerKey).(*model.PlayerIdentity)
	return id, ok
}

func GetServerFromContext(ctx context.Context) (string, bool) {
	server, ok := ctx.Value(ServerKey).(string)
	return server, ok && server != ""
}
