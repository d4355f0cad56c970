package identity

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"

	"github.com/google/uuid"
)

// InMemoryUserRepository backs tests and local runs without a database.
type InMemoryUserRepository struct {
	mu     sync.RWMutex
	users  map[uuid.UUID]domain.User
	stars  map[uuid.UUID]map[uuid.UUID]struct{}
	blocks map[uuid.UUID]map[uuid.UUID]struct{}
}

func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users:  make(map[uuid.UUID]domain.User),
		stars:  make(map[uuid.UUID]map[uuid.UUID]struct{}),
		blocks: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

func (r *InMemoryUserRepository) Insert(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *InMemoryUserRepository) FindByID(_ context.Context, id uuid.UUID) (domain.User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	return user, ok, nil
}

func (r *InMemoryUserRepository) FindByReadableID(_ context.Context, readableID string) (domain.User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.ReadableID == readableID {
			return user, true, nil
		}
	}
	return domain.User{}, false, nil
}

func (r *InMemoryUserRepository) FindByUsername(_ context.Context, username string) (domain.User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Username, username) {
			return user, true, nil
		}
	}
	return domain.User{}, false, nil
}

func (r *InMemoryUserRepository) SearchUsers(_ context.Context, search string, limit int) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(search)

	users := make([]domain.User, 0)
	for _, user := range r.users {
		if strings.Contains(strings.ToLower(user.Username), needle) ||
			strings.Contains(strings.ToLower(user.ReadableID), needle) {
			users = append(users, user)
		}
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].Registered.After(users[j].Registered)
	})

	if len(users) > limit {
		users = users[:limit]
	}

	return users, nil
}

func (r *InMemoryUserRepository) update(id uuid.UUID, apply func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil
	}
	apply(&user)
	r.users[id] = user
	return nil
}

func (r *InMemoryUserRepository) SetPlayerName(_ context.Context, id uuid.UUID, name string) error {
	return r.update(id, func(u *domain.User) { u.PlayerName = name })
}

func (r *InMemoryUserRepository) SetIslandName(_ context.Context, id uuid.UUID, name string) error {
	return r.update(id, func(u *domain.User) { u.IslandName = name })
}

func (r *InMemoryUserRepository) SetPlayerNameHidden(_ context.Context, id uuid.UUID, hidden bool) error {
	return r.update(id, func(u *domain.User) { u.PlayerNameHidden = hidden })
}

func (r *InMemoryUserRepository) SetIslandNameHidden(_ context.Context, id uuid.UUID, hidden bool) error {
	return r.update(id, func(u *domain.User) { u.IslandNameHidden = hidden })
}

func (r *InMemoryUserRepository) SetLevel(_ context.Context, id uuid.UUID, level domain.Level) error {
	return r.update(id, func(u *domain.User) { u.Level = level })
}

func (r *InMemoryUserRepository) SetBanned(_ context.Context, id uuid.UUID, banned bool) error {
	return r.update(id, func(u *domain.User) { u.Banned = banned })
}

func (r *InMemoryUserRepository) SetPasswordHash(_ context.Context, id uuid.UUID, passwordHash string) error {
	return r.update(id, func(u *domain.User) { u.PasswordHash = passwordHash })
}

func (r *InMemoryUserRepository) SetVerification(
	_ context.Context,
	id uuid.UUID,
	post string,
	verifierID uuid.UUID,
) error {
	return r.update(id, func(u *domain.User) {
		u.VerificationPost = post
		u.VerifierID = &verifierID
	})
}

func (r *InMemoryUserRepository) SetStarred(_ context.Context, userID, targetID uuid.UUID, starred bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	setRelation(r.stars, userID, targetID, starred)
	return nil
}

func (r *InMemoryUserRepository) SetBlocked(_ context.Context, userID, targetID uuid.UUID, blocked bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	setRelation(r.blocks, userID, targetID, blocked)
	return nil
}

func (r *InMemoryUserRepository) HasStarred(_ context.Context, userID, targetID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.stars[userID][targetID]
	return ok, nil
}

func (r *InMemoryUserRepository) HasBlocked(_ context.Context, userID, targetID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.blocks[userID][targetID]
	return ok, nil
}

func setRelation(relations map[uuid.UUID]map[uuid.UUID]struct{}, userID, targetID uuid.UUID, set bool) {
	if !set {
		delete(relations[userID], targetID)
		return
	}
	if relations[userID] == nil {
		relations[userID] = make(map[uuid.UUID]struct{})
	}
	relations[userID][targetID] = struct{}{}
}
