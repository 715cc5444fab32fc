package ws

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/codephoenix86/ByteChat/internal/lib/jwt"
	"github.com/codephoenix86/ByteChat/internal/lib/logger/sl"
)

var ErrMissingToken = errors.New("authentication token is missing")

type TokenVerifier interface {
	Verify(token string, kind jwt.Kind) (jwt.Identity, error)
}

// Authenticator runs once per handshake, before the upgrade. On success the
// verified identity is bound to the connection for its whole lifetime;
// events are not re-authenticated, so a token revoked mid-connection stays
// effective until disconnect.
type Authenticator struct {
	codec TokenVerifier
	log   *slog.Logger
}

func NewAuthenticator(log *slog.Logger, codec TokenVerifier) *Authenticator {
	return &Authenticator{codec: codec, log: log}
}

// Authenticate extracts the bearer token from the upgrade request and
// verifies it as an access token. Any failure must refuse the connection.
func (a *Authenticator) Authenticate(r *http.Request) (jwt.Identity, error) {
	const op = "ws.Authenticate"

	log := a.log.With(
		slog.String("op", op),
		slog.String("remote_addr", r.RemoteAddr),
	)

	token := bearerToken(r)
	if token == "" {
		log.Warn("connection attempt without token")
		return jwt.Identity{}, ErrMissingToken
	}

	id, err := a.codec.Verify(token, jwt.KindAccess)
	if err != nil {
		log.Warn("handshake authentication failed", sl.Err(err))
		return jwt.Identity{}, err
	}

	log.Debug("handshake authenticated", slog.String("user_uuid", id.UserUUID.String()))

	return id, nil
}

// bearerToken prefers the Authorization header; browser websocket clients
// cannot set headers, so a token query parameter is accepted too.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
