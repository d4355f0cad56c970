package realtime

import (
	"context"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/identity"
	identitydomain "github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/session"
	sessiondomain "github.com/eskrenkovic/dodo-exchange/internal/modules/session/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HubNotifier fans mutations out to connected clients. Every observer gets
// the most restrictive projection their role allows, never the raw record.
// Delivery is best-effort: errors are logged and never surface to the
// command that triggered them.
type HubNotifier struct {
	hub      *Hub
	sessions session.SessionRepository
	users    identity.UserRepository
	logger   *zap.Logger
}

func NewHubNotifier(
	hub *Hub,
	sessions session.SessionRepository,
	users identity.UserRepository,
	logger *zap.Logger,
) *HubNotifier {
	return &HubNotifier{hub: hub, sessions: sessions, users: users, logger: logger}
}

var _ session.Notifier = (*HubNotifier)(nil)

func (n *HubNotifier) SessionChanged(
	ctx context.Context,
	current sessiondomain.Session,
	patch session.SessionPatch,
	dodoChanged bool,
) {
	// Turning public_requesters off invalidates subscriptions that were only
	// legal while it was on.
	if patch.PublicRequesters != nil && !*patch.PublicRequesters {
		keep := func(user *identitydomain.User) bool {
			return sessiondomain.CanSeeRequesters(user, current)
		}
		n.hub.prune(requestersRoom(current.ReadableID), keep)
		n.hub.prune(requesterChangesRoom(current.ReadableID), keep)
	}

	requesters, err := n.sessions.ListRequesters(ctx, current.ID)
	if err != nil {
		n.logger.Error("failed to list requesters for fan-out", zap.Error(err))
		requesters = nil
	}

	counts := sessiondomain.CountRequesters(requesters)
	accepted := make(map[uuid.UUID]bool, len(requesters))
	for _, requester := range requesters {
		accepted[requester.UserID] = requester.Status == sessiondomain.RequesterAccepted
	}

	base := SessionDelta{
		Title:              patch.Title,
		Description:        patch.Description,
		TurnipPrice:        patch.TurnipPrice,
		Unlisted:           patch.Unlisted,
		PublicRequesters:   patch.PublicRequesters,
		VerifiedOnly:       patch.VerifiedOnly,
		AutoAcceptVerified: patch.AutoAcceptVerified,
		Status:             patch.Status,
		Updated:            patch.Updated,
	}

	// The host always hears about their own session, subscribed or not.
	for _, client := range n.hub.audience(sessionRoom(current.ReadableID), current.HostID) {
		delta := base

		privileged := client.user != nil &&
			(client.user.ID == current.HostID || client.user.Level >= identitydomain.LevelModerator)

		switch {
		case privileged:
			deltaCounts := counts
			delta.RequesterCounts = &deltaCounts
			if dodoChanged {
				dodo := current.Dodo
				delta.Dodo = &dodo
			}
		default:
			if current.PublicRequesters {
				publicCounts := counts.Public()
				delta.RequesterCounts = &publicCounts
			}
			// Accepted requesters learn the code changed, not what it is.
			if dodoChanged && client.user != nil && accepted[client.user.ID] {
				empty := ""
				delta.Dodo = &empty
			}
		}

		client.enqueue(Envelope{
			Type:    MessageSessionChanged,
			Payload: SessionChangedPayload{SessionID: current.ReadableID, Changes: delta},
		})
	}
}

func (n *HubNotifier) NewRequester(
	ctx context.Context,
	current sessiondomain.Session,
	requester sessiondomain.Requester,
) {
	user, found, err := n.users.FindByID(ctx, requester.UserID)
	if err != nil || !found {
		n.logger.Error("failed to load requester user for fan-out", zap.Error(err))
		return
	}

	requesters, err := n.sessions.ListRequesters(ctx, current.ID)
	if err != nil {
		n.logger.Error("failed to list requesters for fan-out", zap.Error(err))
		requesters = nil
	}
	counts := sessiondomain.CountRequesters(requesters)

	for _, client := range n.hub.audience(requestersRoom(current.ReadableID), current.HostID) {
		userView, err := identity.View(ctx, n.users, client.user, user)
		if err != nil {
			n.logger.Error("failed to project requester user", zap.Error(err))
			continue
		}

		view, visible := sessiondomain.ProjectRequester(client.user, current, requester, userView)
		if !visible {
			continue
		}

		payload := NewRequesterPayload{
			SessionID: current.ReadableID,
			Requester: view,
		}

		privileged := client.user != nil &&
			(client.user.ID == current.HostID || client.user.Level >= identitydomain.LevelModerator)

		switch {
		case privileged:
			payload.RequesterCounts = counts
		case current.PublicRequesters:
			payload.RequesterCounts = counts.Public()
		}

		client.enqueue(Envelope{Type: MessageNewRequester, Payload: payload})
	}
}

func (n *HubNotifier) RequesterStatusChanged(
	ctx context.Context,
	current sessiondomain.Session,
	requester sessiondomain.Requester,
) {
	readableID, ok := n.readableUserID(ctx, requester.UserID)
	if !ok {
		return
	}

	status := requester.Status
	payload := RequesterUpdatePayload{
		SessionID: current.ReadableID,
		UserID:    readableID,
		Status:    &status,
	}

	n.sendRequesterDelta(current, requester.UserID, payload)
}

func (n *HubNotifier) GotDodoChanged(
	ctx context.Context,
	current sessiondomain.Session,
	userID uuid.UUID,
	gotDodo bool,
) {
	readableID, ok := n.readableUserID(ctx, userID)
	if !ok {
		return
	}

	payload := RequesterUpdatePayload{
		SessionID: current.ReadableID,
		UserID:    readableID,
		GotDodo:   &gotDodo,
	}

	n.sendRequesterDelta(current, userID, payload)
}

// sendRequesterDelta targets the requester-changes subscribers plus, always,
// the host and the requester involved: those two have a right to know
// regardless of subscription.
func (n *HubNotifier) sendRequesterDelta(
	current sessiondomain.Session,
	requesterUserID uuid.UUID,
	payload RequesterUpdatePayload,
) {
	audience := n.hub.audience(requesterChangesRoom(current.ReadableID), current.HostID, requesterUserID)
	for _, client := range audience {
		client.enqueue(Envelope{Type: MessageRequesterUpdate, Payload: payload})
	}
}

func (n *HubNotifier) readableUserID(ctx context.Context, userID uuid.UUID) (string, bool) {
	user, found, err := n.users.FindByID(ctx, userID)
	if err != nil || !found {
		n.logger.Error("failed to load user for fan-out", zap.Error(err))
		return "", false
	}

	return user.ReadableID, true
}
