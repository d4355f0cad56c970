package identity

import (
	"context"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"

	"github.com/google/uuid"
)

// UserRepository is the persistence contract the identity module consumes.
// Lookups report absence through the bool, never through an error.
type UserRepository interface {
	Insert(ctx context.Context, user domain.User) error

	FindByID(ctx context.Context, id uuid.UUID) (domain.User, bool, error)
	FindByReadableID(ctx context.Context, readableID string) (domain.User, bool, error)
	FindByUsername(ctx context.Context, username string) (domain.User, bool, error)
	// SearchUsers matches username or readable ID case-insensitively by
	// substring. An empty search returns the newest registrations.
	SearchUsers(ctx context.Context, search string, limit int) ([]domain.User, error)

	SetPlayerName(ctx context.Context, id uuid.UUID, name string) error
	SetIslandName(ctx context.Context, id uuid.UUID, name string) error
	SetPlayerNameHidden(ctx context.Context, id uuid.UUID, hidden bool) error
	SetIslandNameHidden(ctx context.Context, id uuid.UUID, hidden bool) error
	SetLevel(ctx context.Context, id uuid.UUID, level domain.Level) error
	SetBanned(ctx context.Context, id uuid.UUID, banned bool) error
	SetVerification(ctx context.Context, id uuid.UUID, post string, verifierID uuid.UUID) error
	SetPasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error

	SetStarred(ctx context.Context, userID, targetID uuid.UUID, starred bool) error
	SetBlocked(ctx context.Context, userID, targetID uuid.UUID, blocked bool) error
	HasStarred(ctx context.Context, userID, targetID uuid.UUID) (bool, error)
	HasBlocked(ctx context.Context, userID, targetID uuid.UUID) (bool, error)
}

// Relation resolves the viewer-relative facts ProjectUser needs. A nil viewer
// short-circuits to the zero relation.
func Relation(
	ctx context.Context,
	repo UserRepository,
	viewer *domain.User,
	targetID uuid.UUID,
) (domain.Relation, error) {
	if viewer == nil {
		return domain.Relation{}, nil
	}

	starred, err := repo.HasStarred(ctx, viewer.ID, targetID)
	if err != nil {
		return domain.Relation{}, err
	}

	blocked, err := repo.HasBlocked(ctx, viewer.ID, targetID)
	if err != nil {
		return domain.Relation{}, err
	}

	return domain.Relation{Starred: starred, Blocked: blocked}, nil
}

// View is the common "project target for viewer" path: relation lookup plus
// the pure projection.
func View(
	ctx context.Context,
	repo UserRepository,
	viewer *domain.User,
	target domain.User,
) (domain.UserView, error) {
	rel, err := Relation(ctx, repo, viewer, target.ID)
	if err != nil {
		return domain.UserView{}, err
	}

	return domain.ProjectUser(viewer, target, rel), nil
}
