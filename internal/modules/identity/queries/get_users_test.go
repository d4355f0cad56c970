package queries

import (
	"context"
	"strings"
	"testing"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/identity"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"

	"github.com/stretchr/testify/require"
)

func newSearchFixture(t *testing.T) (*GetUsersQueryHandler, *identity.InMemoryUserRepository) {
	t.Helper()

	users := identity.NewInMemoryUserRepository()
	return NewGetUsersQueryHandler(users), users
}

func storedUser(t *testing.T, users *identity.InMemoryUserRepository, username string, level domain.Level) domain.User {
	t.Helper()

	user := domain.NewUser(username, "A A", "B B", "hash", level)
	require.NoError(t, users.Insert(context.Background(), user))

	return user
}

func Test_GetUsers_Matches_Username_Substring(t *testing.T) {
	// Arrange
	handler, users := newSearchFixture(t)
	viewer := storedUser(t, users, "celeste", domain.LevelNormal)
	storedUser(t, users, "marshal_fan", domain.LevelNormal)

	// Act
	views, err := handler.Handle(context.Background(), GetUsersQuery{Search: "marsh", Viewer: viewer})

	// Assert
	require.NoError(t, err)
	require.Len(t, views, 1)

	// Usernames are only visible to the account owner and admins.
	require.Empty(t, views[0].Username)
}

func Test_GetUsers_Shows_Admins_The_Username(t *testing.T) {
	// Arrange
	handler, users := newSearchFixture(t)
	admin := storedUser(t, users, "isabelle", domain.LevelAdmin)
	storedUser(t, users, "marshal_fan", domain.LevelNormal)

	// Act
	views, err := handler.Handle(context.Background(), GetUsersQuery{Search: "marshal", Viewer: admin})

	// Assert
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, "marshal_fan", views[0].Username)
}

func Test_GetUsers_Rejects_Overlong_Search_Text(t *testing.T) {
	// Arrange
	query := GetUsersQuery{Search: strings.Repeat("a", maxUserSearchLength+1)}

	// Act
	err := query.Validate()

	// Assert
	require.Error(t, err)
}
