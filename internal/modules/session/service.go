package session

import (
	"context"
	"time"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/core"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/session/domain"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/settings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultMaxSessionDurationHours = 24

// Service wraps the repository with the behavior every load path shares,
// most importantly lazy expiry: a session past its maximum duration is
// Closed the moment anything reads it.
type Service struct {
	sessions SessionRepository
	settings *settings.Store
}

func NewService(sessions SessionRepository, settingsStore *settings.Store) *Service {
	return &Service{sessions: sessions, settings: settingsStore}
}

func (s *Service) MaxSessionDuration() time.Duration {
	hours := s.settings.Int(settings.MaxSessionDurationHours, defaultMaxSessionDurationHours)
	return time.Duration(hours) * time.Hour
}

// Load fetches a session by ID with expiry applied.
func (s *Service) Load(ctx context.Context, id uuid.UUID) (domain.Session, bool, error) {
	session, found, err := s.sessions.FindSession(ctx, id)
	if err != nil || !found {
		return domain.Session{}, found, err
	}

	return s.expire(ctx, session), true, nil
}

// LoadByReadableID fetches a session by its shareable ID with expiry applied.
func (s *Service) LoadByReadableID(ctx context.Context, readableID string) (domain.Session, bool, error) {
	session, found, err := s.sessions.FindSessionByReadableID(ctx, readableID)
	if err != nil || !found {
		return domain.Session{}, found, err
	}

	return s.expire(ctx, session), true, nil
}

// LoadOpenSessionOfHost fetches the host's current non-Closed session, if
// any. An expired one does not count.
func (s *Service) LoadOpenSessionOfHost(ctx context.Context, hostID uuid.UUID) (domain.Session, bool, error) {
	session, found, err := s.sessions.FindOpenSessionOfHost(ctx, hostID)
	if err != nil || !found {
		return domain.Session{}, found, err
	}

	session = s.expire(ctx, session)
	if session.Status == domain.SessionClosed {
		return domain.Session{}, false, nil
	}

	return session, true, nil
}

// List returns sessions with expiry applied to each record.
func (s *Service) List(ctx context.Context, includeUnlisted bool) ([]domain.Session, error) {
	sessions, err := s.sessions.ListSessions(ctx, includeUnlisted)
	if err != nil {
		return nil, err
	}

	for i := range sessions {
		sessions[i] = s.expire(ctx, sessions[i])
	}

	return sessions, nil
}

// DodoInUse reports whether another live session already claims the code.
// The uniqueness check can be disabled at runtime, in which case codes are
// never considered taken.
func (s *Service) DodoInUse(ctx context.Context, dodo string, exclude uuid.UUID) (bool, error) {
	if !s.settings.Bool(settings.DodoUniquenessCheckEnabled, true) {
		return false, nil
	}

	session, found, err := s.sessions.FindSessionByDodo(ctx, domain.NormalizeDodo(dodo))
	if err != nil || !found {
		return false, err
	}

	if session.ID == exclude {
		return false, nil
	}

	session = s.expire(ctx, session)
	return session.Status != domain.SessionClosed, nil
}

// expire applies the lazy expiry rule. Closing is persisted opportunistically:
// a failed write is logged and the read still returns the Closed record, the
// next read will retry the write.
func (s *Service) expire(ctx context.Context, session domain.Session) domain.Session {
	if session.Status == domain.SessionClosed {
		return session
	}

	if !session.Expired(time.Now().UTC(), s.MaxSessionDuration()) {
		return session
	}

	session.Status = domain.SessionClosed

	if err := s.sessions.SetSessionStatus(ctx, session.ID, domain.SessionClosed); err != nil {
		core.LogError(
			ctx,
			"failed to persist session expiry",
			zap.String("session_id", session.ID.String()),
			zap.Error(err),
		)
	}

	return session
}
