package session

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/session/domain"

	"github.com/google/uuid"
)

type requesterKey struct {
	sessionID uuid.UUID
	userID    uuid.UUID
}

// InMemorySessionRepository backs tests and local runs without a database.
type InMemorySessionRepository struct {
	mu         sync.RWMutex
	sessions   map[uuid.UUID]domain.Session
	requesters map[requesterKey]domain.Requester
}

func NewInMemorySessionRepository() *InMemorySessionRepository {
	return &InMemorySessionRepository{
		sessions:   make(map[uuid.UUID]domain.Session),
		requesters: make(map[requesterKey]domain.Requester),
	}
}

func (r *InMemorySessionRepository) InsertSession(_ context.Context, session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
	return nil
}

func (r *InMemorySessionRepository) FindSession(_ context.Context, id uuid.UUID) (domain.Session, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	return session, ok, nil
}

func (r *InMemorySessionRepository) FindSessionByReadableID(
	_ context.Context,
	readableID string,
) (domain.Session, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, session := range r.sessions {
		if session.ReadableID == readableID {
			return session, true, nil
		}
	}
	return domain.Session{}, false, nil
}

func (r *InMemorySessionRepository) FindSessionByDodo(_ context.Context, dodo string) (domain.Session, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, session := range r.sessions {
		if session.Status != domain.SessionClosed && strings.EqualFold(session.Dodo, dodo) {
			return session, true, nil
		}
	}
	return domain.Session{}, false, nil
}

func (r *InMemorySessionRepository) FindOpenSessionOfHost(
	_ context.Context,
	hostID uuid.UUID,
) (domain.Session, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, session := range r.sessions {
		if session.HostID == hostID && session.Status != domain.SessionClosed {
			return session, true, nil
		}
	}
	return domain.Session{}, false, nil
}

func (r *InMemorySessionRepository) ListSessions(_ context.Context, includeUnlisted bool) ([]domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]domain.Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		if session.Unlisted && !includeUnlisted {
			continue
		}
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Created.After(sessions[j].Created)
	})

	return sessions, nil
}

func (r *InMemorySessionRepository) UpdateSession(_ context.Context, id uuid.UUID, patch SessionPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyPatch(id, patch)
	return nil
}

func (r *InMemorySessionRepository) UpdateSessionAndResetGotDodo(
	_ context.Context,
	id uuid.UUID,
	patch SessionPatch,
) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.applyPatch(id, patch)

	reset := make([]uuid.UUID, 0)
	for key, requester := range r.requesters {
		if key.sessionID == id && requester.GotDodo {
			requester.GotDodo = false
			r.requesters[key] = requester
			reset = append(reset, key.userID)
		}
	}

	return reset, nil
}

// applyPatch assumes the caller holds the write lock.
func (r *InMemorySessionRepository) applyPatch(id uuid.UUID, patch SessionPatch) {
	session, ok := r.sessions[id]
	if !ok {
		return
	}

	if patch.Dodo != nil {
		session.Dodo = *patch.Dodo
	}
	if patch.Title != nil {
		session.Title = *patch.Title
	}
	if patch.Description != nil {
		session.Description = *patch.Description
	}
	if patch.TurnipPrice != nil {
		session.TurnipPrice = *patch.TurnipPrice
	}
	if patch.Unlisted != nil {
		session.Unlisted = *patch.Unlisted
	}
	if patch.PublicRequesters != nil {
		session.PublicRequesters = *patch.PublicRequesters
	}
	if patch.VerifiedOnly != nil {
		session.VerifiedOnly = *patch.VerifiedOnly
	}
	if patch.AutoAcceptVerified != nil {
		session.AutoAcceptVerified = *patch.AutoAcceptVerified
	}
	if patch.Status != nil {
		session.Status = *patch.Status
	}
	session.Updated = patch.Updated

	r.sessions[id] = session
}

func (r *InMemorySessionRepository) SetSessionStatus(
	_ context.Context,
	id uuid.UUID,
	status domain.SessionStatus,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil
	}

	session.Status = status
	session.Updated = time.Now().UTC()
	r.sessions[id] = session
	return nil
}

func (r *InMemorySessionRepository) AppendRequester(_ context.Context, requester domain.Requester) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := requesterKey{sessionID: requester.SessionID, userID: requester.UserID}
	if _, exists := r.requesters[key]; exists {
		return false, nil
	}

	r.requesters[key] = requester
	return true, nil
}

func (r *InMemorySessionRepository) FindRequester(
	_ context.Context,
	sessionID uuid.UUID,
	userID uuid.UUID,
) (domain.Requester, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	requester, ok := r.requesters[requesterKey{sessionID: sessionID, userID: userID}]
	return requester, ok, nil
}

func (r *InMemorySessionRepository) ListRequesters(_ context.Context, sessionID uuid.UUID) ([]domain.Requester, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requesters := make([]domain.Requester, 0)
	for key, requester := range r.requesters {
		if key.sessionID == sessionID {
			requesters = append(requesters, requester)
		}
	}

	sort.Slice(requesters, func(i, j int) bool {
		return requesters[i].RequestedAt.Before(requesters[j].RequestedAt)
	})

	return requesters, nil
}

func (r *InMemorySessionRepository) TransitionRequester(
	_ context.Context,
	sessionID uuid.UUID,
	userID uuid.UUID,
	from domain.RequesterStatus,
	to domain.RequesterStatus,
) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := requesterKey{sessionID: sessionID, userID: userID}
	requester, ok := r.requesters[key]
	if !ok || requester.Status != from {
		return false, nil
	}

	requester.Status = to
	r.requesters[key] = requester
	return true, nil
}

func (r *InMemorySessionRepository) ReviveRequester(
	_ context.Context,
	sessionID uuid.UUID,
	userID uuid.UUID,
	to domain.RequesterStatus,
	requestedAt time.Time,
) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := requesterKey{sessionID: sessionID, userID: userID}
	requester, ok := r.requesters[key]
	if !ok || requester.Status != domain.RequesterWithdrawn {
		return false, nil
	}

	requester.Status = to
	requester.RequestedAt = requestedAt
	r.requesters[key] = requester
	return true, nil
}

func (r *InMemorySessionRepository) SetRequesterGotDodo(
	_ context.Context,
	sessionID uuid.UUID,
	userID uuid.UUID,
	gotDodo bool,
) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := requesterKey{sessionID: sessionID, userID: userID}
	requester, ok := r.requesters[key]
	if !ok || requester.GotDodo == gotDodo {
		return false, nil
	}

	requester.GotDodo = gotDodo
	r.requesters[key] = requester
	return true, nil
}

func (r *InMemorySessionRepository) ResetGotDodo(_ context.Context, sessionID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reset := make([]uuid.UUID, 0)
	for key, requester := range r.requesters {
		if key.sessionID == sessionID && requester.GotDodo {
			requester.GotDodo = false
			r.requesters[key] = requester
			reset = append(reset, key.userID)
		}
	}

	return reset, nil
}
