package session

import (
	"context"
	"time"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/session/domain"

	"github.com/google/uuid"
)

// SessionPatch is a partial update applied atomically: nil fields stay
// untouched. Updated is always written so watchers can order deltas.
type SessionPatch struct {
	Dodo               *string
	Title              *string
	Description        *string
	TurnipPrice        *int
	Unlisted           *bool
	PublicRequesters   *bool
	VerifiedOnly       *bool
	AutoAcceptVerified *bool
	Status             *domain.SessionStatus
	Updated            time.Time
}

func (p SessionPatch) Empty() bool {
	return p.Dodo == nil &&
		p.Title == nil &&
		p.Description == nil &&
		p.TurnipPrice == nil &&
		p.Unlisted == nil &&
		p.PublicRequesters == nil &&
		p.VerifiedOnly == nil &&
		p.AutoAcceptVerified == nil &&
		p.Status == nil
}

// SessionRepository is the persistence contract for sessions and their
// requester rows. Lookups report absence through the bool, never through an
// error. Requester writes are conditional where races matter: the reported
// bool says whether the write took effect.
type SessionRepository interface {
	InsertSession(ctx context.Context, session domain.Session) error

	FindSession(ctx context.Context, id uuid.UUID) (domain.Session, bool, error)
	FindSessionByReadableID(ctx context.Context, readableID string) (domain.Session, bool, error)
	// FindSessionByDodo matches case-insensitively against non-Closed sessions.
	FindSessionByDodo(ctx context.Context, dodo string) (domain.Session, bool, error)
	FindOpenSessionOfHost(ctx context.Context, hostID uuid.UUID) (domain.Session, bool, error)
	ListSessions(ctx context.Context, includeUnlisted bool) ([]domain.Session, error)

	UpdateSession(ctx context.Context, id uuid.UUID, patch SessionPatch) error
	// UpdateSessionAndResetGotDodo applies the patch and clears got_dodo for
	// every requester of the session in one transaction, returning the user
	// IDs that were actually reset. Used when the code changes: the patch and
	// the invalidation must land together.
	UpdateSessionAndResetGotDodo(ctx context.Context, id uuid.UUID, patch SessionPatch) ([]uuid.UUID, error)
	SetSessionStatus(ctx context.Context, id uuid.UUID, status domain.SessionStatus) error

	// AppendRequester inserts the row only if no row exists for the
	// (session, user) pair.
	AppendRequester(ctx context.Context, requester domain.Requester) (bool, error)
	FindRequester(ctx context.Context, sessionID, userID uuid.UUID) (domain.Requester, bool, error)
	ListRequesters(ctx context.Context, sessionID uuid.UUID) ([]domain.Requester, error)
	// TransitionRequester flips status only if the row currently holds from.
	TransitionRequester(ctx context.Context, sessionID, userID uuid.UUID, from, to domain.RequesterStatus) (bool, error)
	// ReviveRequester turns a Withdrawn row back into a live request,
	// refreshing its timestamp. Conditional like TransitionRequester.
	ReviveRequester(ctx context.Context, sessionID, userID uuid.UUID, to domain.RequesterStatus, requestedAt time.Time) (bool, error)
	// SetRequesterGotDodo flips the flag only when it actually changes.
	SetRequesterGotDodo(ctx context.Context, sessionID, userID uuid.UUID, gotDodo bool) (bool, error)
	// ResetGotDodo clears the flag for every requester of the session and
	// returns the user IDs that were actually reset.
	ResetGotDodo(ctx context.Context, sessionID uuid.UUID) ([]uuid.UUID, error)
}
