package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/codephoenix86/ByteChat/internal/domain/models"
	"github.com/codephoenix86/ByteChat/internal/lib/logger/sl"
)

// Updater is the external message-status interface; it owns durability.
type Updater interface {
	SetMessageStatus(ctx context.Context, messageID uuid.UUID, status models.MessageStatus) error
}

var ErrUnknownStatus = errors.New("unknown message status")

// Service forwards delivery/read reports from authenticated connections to
// the message-status store. Status events are best-effort telemetry: a
// store failure is logged and swallowed, it must never take the connection
// down.
type Service struct {
	log     *slog.Logger
	updater Updater
}

func New(log *slog.Logger, updater Updater) *Service {
	return &Service{log: log, updater: updater}
}

// Report persists one status event. No ordering is enforced between
// delivered and read; a read arriving first is written as given.
func (s *Service) Report(ctx context.Context, sess models.ConnSession, messageID uuid.UUID, st models.MessageStatus) error {
	const op = "status.Report"

	log := s.log.With(
		slog.String("op", op),
		slog.String("conn_id", sess.ConnID.String()),
		slog.String("user_uuid", sess.UserUUID.String()),
		slog.String("message_id", messageID.String()),
	)

	if !st.Valid() {
		return fmt.Errorf("%s: %w: %q", op, ErrUnknownStatus, st)
	}

	if err := s.updater.SetMessageStatus(ctx, messageID, st); err != nil {
		log.Error("failed to update message status", slog.String("status", string(st)), sl.Err(err))
		return nil
	}

	log.Debug("message status updated", slog.String("status", string(st)))

	return nil
}
