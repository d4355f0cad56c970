package session

import (
	"context"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/session/domain"

	"github.com/google/uuid"
)

// Notifier fans session and requester changes out to connected observers.
// All methods are best-effort: a failure to reach one observer never fails
// the command that triggered the notification. Observers recover true state
// by re-querying.
type Notifier interface {
	// SessionChanged announces a settings or status change. dodoChanged is
	// split out because the code payload differs per observer role.
	SessionChanged(ctx context.Context, session domain.Session, patch SessionPatch, dodoChanged bool)

	// NewRequester announces a freshly created or re-requested row.
	NewRequester(ctx context.Context, session domain.Session, requester domain.Requester)

	// RequesterStatusChanged announces a status transition on an existing row.
	RequesterStatusChanged(ctx context.Context, session domain.Session, requester domain.Requester)

	// GotDodoChanged announces the got_dodo flip for the given requester.
	GotDodoChanged(ctx context.Context, session domain.Session, userID uuid.UUID, gotDodo bool)
}

// NopNotifier drops every notification. Used in tests that only assert state.
type NopNotifier struct{}

func (NopNotifier) SessionChanged(context.Context, domain.Session, SessionPatch, bool) {}
func (NopNotifier) NewRequester(context.Context, domain.Session, domain.Requester)     {}
func (NopNotifier) RequesterStatusChanged(context.Context, domain.Session, domain.Requester) {
}
func (NopNotifier) GotDodoChanged(context.Context, domain.Session, uuid.UUID, bool) {}
