package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind selects the token class. Access and refresh tokens are signed with
// distinct secrets and carry distinct lifetimes, so a leaked access token
// can never be replayed as a refresh token.
type Kind int

const (
	KindAccess Kind = iota
	KindRefresh
)

// Identity is the claim set carried inside both token classes. It is never
// persisted on its own; Verify reconstructs it from the token on every call.
type Identity struct {
	UserUUID uuid.UUID
	Role     string
	IssuedAt time.Time
}

var (
	ErrMalformed   = errors.New("token malformed or badly signed")
	ErrExpired     = errors.New("token expired")
	ErrNotYetValid = errors.New("token not valid yet")
)

type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// Issue signs id with the secret and lifetime of the given kind. A zero
// IssuedAt means "now".
func (c *Codec) Issue(id Identity, kind Kind) (string, error) {
	iat := id.IssuedAt
	if iat.IsZero() {
		iat = time.Now()
	}

	// jti keeps two tokens issued for the same claim within the same
	// second from colliding in the credential store.
	token := jwt.New(jwt.SigningMethodHS256)
	token.Claims = jwt.MapClaims{
		"jti":  uuid.NewString(),
		"uid":  id.UserUUID.String(),
		"role": id.Role,
		"iat":  iat.Unix(),
		"exp":  iat.Add(c.ttl(kind)).Unix(),
	}

	return token.SignedString(c.secret(kind))
}

// Verify checks the signature and time bounds for the given kind and
// reconstructs the identity claim. Failures are distinguished for logging;
// callers collapse all of them to a single unauthenticated error.
func (c *Codec) Verify(tokenString string, kind Kind) (Identity, error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return c.secret(kind), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Identity{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return Identity{}, ErrNotYetValid
		default:
			return Identity{}, ErrMalformed
		}
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrMalformed
	}

	uid, ok := claims["uid"].(string)
	if !ok {
		return Identity{}, ErrMalformed
	}
	userUUID, err := uuid.Parse(uid)
	if err != nil {
		return Identity{}, ErrMalformed
	}

	role, _ := claims["role"].(string)

	var iat time.Time
	if v, ok := claims["iat"].(float64); ok {
		iat = time.Unix(int64(v), 0)
	}

	return Identity{
		UserUUID: userUUID,
		Role:     role,
		IssuedAt: iat,
	}, nil
}

func (c *Codec) secret(kind Kind) []byte {
	if kind == KindRefresh {
		return c.refreshSecret
	}
	return c.accessSecret
}

func (c *Codec) ttl(kind Kind) time.Duration {
	if kind == KindRefresh {
		return c.refreshTTL
	}
	return c.accessTTL
}

// RefreshTTL reports the configured refresh lifetime so the credential
// store can expire its records in step with the signature.
func (c *Codec) RefreshTTL() time.Duration {
	return c.refreshTTL
}
