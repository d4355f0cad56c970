package commands

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/core"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/identity"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newSettingsFixture(t *testing.T) (*UpdateUserSettingsCommandHandler, *identity.InMemoryUserRepository) {
	t.Helper()

	users := identity.NewInMemoryUserRepository()
	return NewUpdateUserSettingsCommandHandler(users, domain.NewSHA256PasswordHasher()), users
}

func newStoredUser(t *testing.T, users *identity.InMemoryUserRepository, level domain.Level) domain.User {
	t.Helper()

	user := domain.NewUser(uuid.New().String()[:8], "A A", "B B", "hash", level)
	require.NoError(t, users.Insert(context.Background(), user))

	return user
}

func requireSettingsError(t *testing.T, err error, statusCode int) {
	t.Helper()

	var commandErr core.CommandError
	require.ErrorAs(t, err, &commandErr)
	require.Equal(t, statusCode, commandErr.StatusCode)
}

func change(key, rawValue string) UserSettingChange {
	return UserSettingChange{Key: key, Value: json.RawMessage(rawValue)}
}

func Test_UpdateUserSettings_Self_Changes_Name_And_Visibility(t *testing.T) {
	// Arrange
	handler, users := newSettingsFixture(t)
	user := newStoredUser(t, users, domain.LevelNormal)

	// Act
	_, err := handler.Handle(context.Background(), UpdateUserSettingsCommand{
		TargetID: user.ReadableID,
		Actor:    user,
		Changes: []UserSettingChange{
			change(SettingPlayerName, `"Marshal"`),
			change(SettingPlayerNameHidden, `false`),
		},
	})

	// Assert
	require.NoError(t, err)

	stored, found, err := users.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Marshal", stored.PlayerName)
	require.False(t, stored.PlayerNameHidden)
}

func Test_UpdateUserSettings_Stranger_Cannot_Change_Names(t *testing.T) {
	// Arrange
	handler, users := newSettingsFixture(t)
	target := newStoredUser(t, users, domain.LevelNormal)
	stranger := newStoredUser(t, users, domain.LevelNormal)

	// Act
	_, err := handler.Handle(context.Background(), UpdateUserSettingsCommand{
		TargetID: target.ReadableID,
		Actor:    stranger,
		Changes:  []UserSettingChange{change(SettingPlayerName, `"Hijacked"`)},
	})

	// Assert
	requireSettingsError(t, err, 403)
}

func Test_UpdateUserSettings_Moderator_Can_Change_Names(t *testing.T) {
	// Arrange
	handler, users := newSettingsFixture(t)
	target := newStoredUser(t, users, domain.LevelNormal)
	moderator := newStoredUser(t, users, domain.LevelModerator)

	// Act
	_, err := handler.Handle(context.Background(), UpdateUserSettingsCommand{
		TargetID: target.ReadableID,
		Actor:    moderator,
		Changes:  []UserSettingChange{change(SettingPlayerName, `"Cleaned Up"`)},
	})

	// Assert
	require.NoError(t, err)
}

func Test_UpdateUserSettings_Password_Is_Self_Only(t *testing.T) {
	// Arrange
	handler, users := newSettingsFixture(t)
	target := newStoredUser(t, users, domain.LevelNormal)
	admin := newStoredUser(t, users, domain.LevelAdmin)

	// Act
	_, err := handler.Handle(context.Background(), UpdateUserSettingsCommand{
		TargetID: target.ReadableID,
		Actor:    admin,
		Changes:  []UserSettingChange{change(SettingPassword, `"new-password"`)},
	})

	// Assert
	requireSettingsError(t, err, 403)
}

func Test_UpdateUserSettings_Password_Change_Rehashes(t *testing.T) {
	// Arrange
	handler, users := newSettingsFixture(t)
	user := newStoredUser(t, users, domain.LevelNormal)

	// Act
	_, err := handler.Handle(context.Background(), UpdateUserSettingsCommand{
		TargetID: user.ReadableID,
		Actor:    user,
		Changes:  []UserSettingChange{change(SettingPassword, `"new-password"`)},
	})

	// Assert
	require.NoError(t, err)

	stored, _, err := users.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotEqual(t, "hash", stored.PasswordHash)
	require.NotEqual(t, "new-password", stored.PasswordHash)
}

func Test_UpdateUserSettings_Starring_Yourself_Is_Invalid(t *testing.T) {
	// Arrange
	handler, users := newSettingsFixture(t)
	user := newStoredUser(t, users, domain.LevelNormal)

	// Act
	_, err := handler.Handle(context.Background(), UpdateUserSettingsCommand{
		TargetID: user.ReadableID,
		Actor:    user,
		Changes:  []UserSettingChange{change(SettingStarred, `true`)},
	})

	// Assert
	requireSettingsError(t, err, 400)
}

func Test_UpdateUserSettings_Starring_Writes_Actor_To_Target_Relation(t *testing.T) {
	// Arrange
	handler, users := newSettingsFixture(t)
	target := newStoredUser(t, users, domain.LevelNormal)
	actor := newStoredUser(t, users, domain.LevelNormal)

	// Act
	_, err := handler.Handle(context.Background(), UpdateUserSettingsCommand{
		TargetID: target.ReadableID,
		Actor:    actor,
		Changes:  []UserSettingChange{change(SettingStarred, `true`)},
	})

	// Assert
	require.NoError(t, err)

	starred, err := users.HasStarred(context.Background(), actor.ID, target.ID)
	require.NoError(t, err)
	require.True(t, starred)

	reverse, err := users.HasStarred(context.Background(), target.ID, actor.ID)
	require.NoError(t, err)
	require.False(t, reverse)
}

func Test_UpdateUserSettings_Level_Changes_Are_Admin_Only(t *testing.T) {
	// Arrange
	handler, users := newSettingsFixture(t)
	target := newStoredUser(t, users, domain.LevelNormal)
	moderator := newStoredUser(t, users, domain.LevelModerator)
	admin := newStoredUser(t, users, domain.LevelAdmin)

	// Act / Assert
	_, err := handler.Handle(context.Background(), UpdateUserSettingsCommand{
		TargetID: target.ReadableID,
		Actor:    moderator,
		Changes:  []UserSettingChange{change(SettingLevel, `2`)},
	})
	requireSettingsError(t, err, 403)

	_, err = handler.Handle(context.Background(), UpdateUserSettingsCommand{
		TargetID: target.ReadableID,
		Actor:    admin,
		Changes:  []UserSettingChange{change(SettingLevel, `2`)},
	})
	require.NoError(t, err)

	stored, _, err := users.FindByID(context.Background(), target.ID)
	require.NoError(t, err)
	require.Equal(t, domain.LevelModerator, stored.Level)
}

func Test_UpdateUserSettings_Admin_Cannot_Change_Own_Level(t *testing.T) {
	// Arrange
	handler, users := newSettingsFixture(t)
	admin := newStoredUser(t, users, domain.LevelAdmin)

	// Act
	_, err := handler.Handle(context.Background(), UpdateUserSettingsCommand{
		TargetID: admin.ReadableID,
		Actor:    admin,
		Changes:  []UserSettingChange{change(SettingLevel, `0`)},
	})

	// Assert
	requireSettingsError(t, err, 400)
}

func Test_UpdateUserSettings_Ban_Requires_Outranking_The_Target(t *testing.T) {
	// Arrange
	handler, users := newSettingsFixture(t)
	target := newStoredUser(t, users, domain.LevelModerator)
	moderator := newStoredUser(t, users, domain.LevelModerator)
	admin := newStoredUser(t, users, domain.LevelAdmin)

	// Act / Assert
	_, err := handler.Handle(context.Background(), UpdateUserSettingsCommand{
		TargetID: target.ReadableID,
		Actor:    moderator,
		Changes:  []UserSettingChange{change(SettingBanned, `true`)},
	})
	requireSettingsError(t, err, 403)

	_, err = handler.Handle(context.Background(), UpdateUserSettingsCommand{
		TargetID: target.ReadableID,
		Actor:    admin,
		Changes:  []UserSettingChange{change(SettingBanned, `true`)},
	})
	require.NoError(t, err)

	stored, _, err := users.FindByID(context.Background(), target.ID)
	require.NoError(t, err)
	require.True(t, stored.Banned)
}

func Test_UpdateUserSettings_Verification_Post_Records_The_Verifier(t *testing.T) {
	// Arrange
	handler, users := newSettingsFixture(t)
	target := newStoredUser(t, users, domain.LevelNormal)
	verifier := newStoredUser(t, users, domain.LevelVerifier)

	// Act
	_, err := handler.Handle(context.Background(), UpdateUserSettingsCommand{
		TargetID: target.ReadableID,
		Actor:    verifier,
		Changes:  []UserSettingChange{change(SettingVerificationPost, `"123456"`)},
	})

	// Assert
	require.NoError(t, err)

	stored, _, err := users.FindByID(context.Background(), target.ID)
	require.NoError(t, err)
	require.Equal(t, "123456", stored.VerificationPost)
	require.NotNil(t, stored.VerifierID)
	require.Equal(t, verifier.ID, *stored.VerifierID)
}

func Test_UpdateUserSettings_Rejects_Whole_Batch_When_One_Change_Fails(t *testing.T) {
	// Arrange
	handler, users := newSettingsFixture(t)
	user := newStoredUser(t, users, domain.LevelNormal)

	// Act
	_, err := handler.Handle(context.Background(), UpdateUserSettingsCommand{
		TargetID: user.ReadableID,
		Actor:    user,
		Changes: []UserSettingChange{
			change(SettingPlayerName, `"Marshal"`),
			change("favorite_fruit", `"peach"`),
		},
	})

	// Assert
	requireSettingsError(t, err, 400)

	stored, _, err := users.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, "A A", stored.PlayerName)
}
