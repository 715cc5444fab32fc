package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/codephoenix86/ByteChat/internal/domain/models"
	"github.com/codephoenix86/ByteChat/internal/lib/jwt"
	"github.com/codephoenix86/ByteChat/internal/lib/logger/sl"
	"github.com/codephoenix86/ByteChat/internal/storage"
)

// Auth orchestrates login, logout and refresh rotation over the token codec
// and the credential store.
type Auth struct {
	log          *slog.Logger
	userSaver    UserSaver
	userProvider UserProvider
	codec        TokenCodec
	refreshStore RefreshStore
	refreshTTL   time.Duration
}

type UserSaver interface {
	SaveUser(ctx context.Context, username, email string, passHash []byte) (uuid.UUID, error)
}

type UserProvider interface {
	UserByEmailOrName(ctx context.Context, identifier string) (models.User, error)
	UserByUUID(ctx context.Context, userUUID uuid.UUID) (models.User, error)
}

type TokenCodec interface {
	Issue(id jwt.Identity, kind jwt.Kind) (string, error)
	Verify(token string, kind jwt.Kind) (jwt.Identity, error)
}

type RefreshStore interface {
	Save(ctx context.Context, userUUID uuid.UUID, tokenHash string, ttl time.Duration) error
	Consume(ctx context.Context, userUUID uuid.UUID, tokenHash string) (bool, error)
	Delete(ctx context.Context, userUUID uuid.UUID, tokenHash string) error
	DeleteAll(ctx context.Context, userUUID uuid.UUID) error
}

func New(
	log *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	codec TokenCodec,
	refreshStore RefreshStore,
	refreshTTL time.Duration,
) *Auth {
	return &Auth{
		log:          log,
		userSaver:    userSaver,
		userProvider: userProvider,
		codec:        codec,
		refreshStore: refreshStore,
		refreshTTL:   refreshTTL,
	}
}

func (a *Auth) Register(ctx context.Context, username, email, password string) (uuid.UUID, error) {
	const op = "auth.Register"

	log := a.log.With(
		slog.String("op", op),
		slog.String("username", username),
	)

	log.Info("registering user")

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	userUUID, err := a.userSaver.SaveUser(ctx, username, email, passHash)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("user already exists")
			return uuid.Nil, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		log.Error("failed to save user", sl.Err(err))
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return userUUID, nil
}

func (a *Auth) Login(ctx context.Context, identifier, password string) (models.TokenPair, error) {
	const op = "auth.Login"

	log := a.log.With(
		slog.String("op", op),
		slog.String("identifier", identifier),
	)

	log.Info("attempting to login user")

	user, err := a.userProvider.UserByEmailOrName(ctx, identifier)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found", sl.Err(err))
			return models.TokenPair{}, fmt.Errorf("%s: %w", op, storage.ErrInvalidCredentials)
		}
		log.Error("failed to get user", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		log.Info("invalid credentials")
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, storage.ErrInvalidCredentials)
	}

	if !user.IsActive {
		log.Warn("inactive user attempted login")
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, storage.ErrInvalidCredentials)
	}

	pair, err := a.issuePair(ctx, user)
	if err != nil {
		log.Error("failed to issue token pair", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in successfully")

	return pair, nil
}

// Refresh rotates a refresh token. The token must both carry a valid
// signature and still be live in the store: a cryptographically valid but
// already-rotated token is a replay and must be refused. Consume is the
// atomic liveness check and delete in one step, so of two racing calls
// exactly one wins.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	const op = "auth.Refresh"

	log := a.log.With(slog.String("op", op))

	if refreshToken == "" {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, storage.ErrInvalidToken)
	}

	id, err := a.codec.Verify(refreshToken, jwt.KindRefresh)
	if err != nil {
		log.Warn("refresh token failed verification", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, storage.ErrInvalidToken)
	}

	consumed, err := a.refreshStore.Consume(ctx, id.UserUUID, sha256Hex(refreshToken))
	if err != nil {
		log.Error("failed to consume refresh record", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}
	if !consumed {
		log.Warn("refresh token already rotated or revoked",
			slog.String("user_uuid", id.UserUUID.String()))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, storage.ErrInvalidToken)
	}

	user, err := a.userProvider.UserByUUID(ctx, id.UserUUID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.TokenPair{}, fmt.Errorf("%s: %w", op, storage.ErrInvalidToken)
		}
		log.Error("failed to get user", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}
	if !user.IsActive {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, storage.ErrInvalidToken)
	}

	pair, err := a.issuePair(ctx, user)
	if err != nil {
		log.Error("failed to issue token pair", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("tokens rotated", slog.String("user_uuid", user.UUID.String()))

	return pair, nil
}

// Logout revokes one refresh token. Revoking a token that is already gone
// is not an error.
func (a *Auth) Logout(ctx context.Context, userUUID uuid.UUID, refreshToken string) error {
	const op = "auth.Logout"

	log := a.log.With(
		slog.String("op", op),
		slog.String("user_uuid", userUUID.String()),
	)

	if refreshToken == "" {
		return nil
	}

	if err := a.refreshStore.Delete(ctx, userUUID, sha256Hex(refreshToken)); err != nil {
		log.Error("failed to delete refresh record", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged out")

	return nil
}

// LogoutAll revokes every refresh token the user owns.
func (a *Auth) LogoutAll(ctx context.Context, userUUID uuid.UUID) error {
	const op = "auth.LogoutAll"

	if err := a.refreshStore.DeleteAll(ctx, userUUID); err != nil {
		a.log.Error("failed to bulk revoke refresh records",
			slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (a *Auth) issuePair(ctx context.Context, user models.User) (models.TokenPair, error) {
	id := jwt.Identity{
		UserUUID: user.UUID,
		Role:     user.Role,
		IssuedAt: time.Now(),
	}

	access, err := a.codec.Issue(id, jwt.KindAccess)
	if err != nil {
		return models.TokenPair{}, err
	}

	refresh, err := a.codec.Issue(id, jwt.KindRefresh)
	if err != nil {
		return models.TokenPair{}, err
	}

	if err := a.refreshStore.Save(ctx, user.UUID, sha256Hex(refresh), a.refreshTTL); err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
