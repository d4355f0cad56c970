package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	identitycommands "github.com/eskrenkovic/dodo-exchange/internal/modules/identity/commands"
	identitydomain "github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"
	identityqueries "github.com/eskrenkovic/dodo-exchange/internal/modules/identity/queries"

	"github.com/eskrenkovic/tql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type testUser struct {
	id       string
	username string
	password string
	token    string
}

// registerLoginUser registers a fresh user through the API and logs them in.
func registerLoginUser(t *testing.T) testUser {
	t.Helper()

	username := strings.ReplaceAll(uuid.New().String(), "-", "")
	password := uuid.New().String()

	registered, err := sendRequest[identitycommands.RegisterCommand, identitycommands.RegisterResponse](
		fixture.client,
		fmt.Sprintf("%s%s", fixture.baseURL, "/api/auth/register"),
		http.MethodPost,
		"",
		identitycommands.RegisterCommand{
			Username:   username,
			Password:   password,
			PlayerName: "Tom Nook",
			IslandName: "Smooth Cape",
		},
		func(r *http.Response) { require.Equal(t, http.StatusCreated, r.StatusCode) },
	)
	require.NoError(t, err)

	logged, err := sendRequest[identitycommands.LoginCommand, identitycommands.LoginResponse](
		fixture.client,
		fmt.Sprintf("%s%s", fixture.baseURL, "/api/auth/login"),
		http.MethodPost,
		"",
		identitycommands.LoginCommand{Username: username, Password: password},
		func(r *http.Response) { require.Equal(t, http.StatusOK, r.StatusCode) },
	)
	require.NoError(t, err)

	return testUser{
		id:       registered.UserID,
		username: username,
		password: password,
		token:    logged.Token,
	}
}

func Test_Register_Creates_User_With_Hidden_Names(t *testing.T) {
	// Arrange
	command := identitycommands.RegisterCommand{
		Username:   strings.ReplaceAll(uuid.New().String(), "-", ""),
		Password:   uuid.New().String(),
		PlayerName: "Tom Nook",
		IslandName: "Smooth Cape",
	}

	// Act
	response, err := sendRequest[identitycommands.RegisterCommand, identitycommands.RegisterResponse](
		fixture.client,
		fmt.Sprintf("%s%s", fixture.baseURL, "/api/auth/register"),
		http.MethodPost,
		"",
		command,
		func(r *http.Response) {
			require.Equal(t, http.StatusCreated, r.StatusCode)
			require.NotEmpty(t, r.Header.Get("Location"))
		},
	)

	// Assert
	require.NoError(t, err)
	require.NotEmpty(t, response.UserID)

	user, err := tql.QueryFirst[identitydomain.User](
		context.Background(),
		fixture.db,
		"SELECT * FROM exchange.user WHERE username = $1;",
		command.Username,
	)
	require.NoError(t, err)

	require.Equal(t, response.UserID, user.ReadableID)
	require.Equal(t, command.PlayerName, user.PlayerName)
	require.Equal(t, command.IslandName, user.IslandName)
	require.True(t, user.PlayerNameHidden)
	require.True(t, user.IslandNameHidden)
	require.NotEmpty(t, user.PasswordHash)
	require.NotEqual(t, command.Password, user.PasswordHash)
	require.Equal(t, identitydomain.LevelNormal, user.Level)
	require.False(t, user.Banned)
}

func Test_Register_Returns_409_When_Username_Taken(t *testing.T) {
	// Arrange
	existing := registerLoginUser(t)

	command := identitycommands.RegisterCommand{
		Username:   existing.username,
		Password:   uuid.New().String(),
		PlayerName: "Timmy",
		IslandName: "Nookton",
	}

	// Act
	_, err := sendRequest[identitycommands.RegisterCommand, any](
		fixture.client,
		fmt.Sprintf("%s%s", fixture.baseURL, "/api/auth/register"),
		http.MethodPost,
		"",
		command,
		func(r *http.Response) { require.Equal(t, http.StatusConflict, r.StatusCode) },
	)

	// Assert
	require.NoError(t, err)
}

func Test_Login_Returns_401_When_Password_Wrong(t *testing.T) {
	// Arrange
	user := registerLoginUser(t)

	// Act
	_, err := sendRequest[identitycommands.LoginCommand, any](
		fixture.client,
		fmt.Sprintf("%s%s", fixture.baseURL, "/api/auth/login"),
		http.MethodPost,
		"",
		identitycommands.LoginCommand{Username: user.username, Password: "not-the-password"},
		func(r *http.Response) { require.Equal(t, http.StatusUnauthorized, r.StatusCode) },
	)

	// Assert
	require.NoError(t, err)
}

func Test_Logout_Invalidates_Login_Token(t *testing.T) {
	// Arrange
	user := registerLoginUser(t)

	_, err := sendRequest[any, any](
		fixture.client,
		fmt.Sprintf("%s%s", fixture.baseURL, "/api/auth/logout"),
		http.MethodPost,
		user.token,
		nil,
		func(r *http.Response) { require.Equal(t, http.StatusOK, r.StatusCode) },
	)
	require.NoError(t, err)

	// Act
	_, err = sendRequest[any, any](
		fixture.client,
		fmt.Sprintf("%s%s", fixture.baseURL, "/api/users/self"),
		http.MethodGet,
		user.token,
		nil,
		func(r *http.Response) { require.Equal(t, http.StatusUnauthorized, r.StatusCode) },
	)

	// Assert
	require.NoError(t, err)
}

func Test_GetUser_Abbreviates_Hidden_Names_For_Other_Users(t *testing.T) {
	// Arrange
	viewed := registerLoginUser(t)
	viewer := registerLoginUser(t)

	// Act
	view, err := sendRequest[any, identitydomain.UserView](
		fixture.client,
		fmt.Sprintf("%s/api/users/%s", fixture.baseURL, viewed.id),
		http.MethodGet,
		viewer.token,
		nil,
		func(r *http.Response) { require.Equal(t, http.StatusOK, r.StatusCode) },
	)

	// Assert
	require.NoError(t, err)
	require.Equal(t, viewed.id, view.ReadableID)
	require.Equal(t, "TN", view.PlayerName)
	require.Equal(t, "SC", view.IslandName)
	require.Empty(t, view.Username)
}

func Test_GetSelf_Returns_Full_Names_And_Username(t *testing.T) {
	// Arrange
	user := registerLoginUser(t)

	// Act
	view, err := sendRequest[any, identitydomain.UserView](
		fixture.client,
		fmt.Sprintf("%s%s", fixture.baseURL, "/api/users/self"),
		http.MethodGet,
		user.token,
		nil,
		func(r *http.Response) { require.Equal(t, http.StatusOK, r.StatusCode) },
	)

	// Assert
	require.NoError(t, err)
	require.Equal(t, user.username, view.Username)
	require.Equal(t, "Tom Nook", view.PlayerName)
	require.Equal(t, "Smooth Cape", view.IslandName)
}

func Test_UpdateUserSettings_Applies_All_Changes(t *testing.T) {
	// Arrange
	user := registerLoginUser(t)

	body := struct {
		Changes []identitycommands.UserSettingChange `json:"changes"`
	}{
		Changes: []identitycommands.UserSettingChange{
			{Key: "player_name", Value: json.RawMessage(`"Marshal"`)},
			{Key: "player_name_hidden", Value: json.RawMessage(`false`)},
		},
	}

	// Act
	_, err := sendRequest[any, any](
		fixture.client,
		fmt.Sprintf("%s/api/users/%s/settings", fixture.baseURL, user.id),
		http.MethodPut,
		user.token,
		body,
		func(r *http.Response) { require.Equal(t, http.StatusOK, r.StatusCode) },
	)

	// Assert
	require.NoError(t, err)

	view, err := sendRequest[any, identitydomain.UserView](
		fixture.client,
		fmt.Sprintf("%s%s", fixture.baseURL, "/api/users/self"),
		http.MethodGet,
		user.token,
		nil,
		func(r *http.Response) { require.Equal(t, http.StatusOK, r.StatusCode) },
	)
	require.NoError(t, err)
	require.Equal(t, "Marshal", view.PlayerName)
	require.False(t, view.Settings.PlayerNameHidden)
}

func Test_UpdateUserSettings_Rejects_Whole_Batch_When_One_Change_Invalid(t *testing.T) {
	// Arrange
	user := registerLoginUser(t)

	body := struct {
		Changes []identitycommands.UserSettingChange `json:"changes"`
	}{
		Changes: []identitycommands.UserSettingChange{
			{Key: "island_name", Value: json.RawMessage(`"Halfway Isle"`)},
			{Key: "not_a_setting", Value: json.RawMessage(`true`)},
		},
	}

	// Act
	_, err := sendRequest[any, any](
		fixture.client,
		fmt.Sprintf("%s/api/users/%s/settings", fixture.baseURL, user.id),
		http.MethodPut,
		user.token,
		body,
		func(r *http.Response) { require.Equal(t, http.StatusBadRequest, r.StatusCode) },
	)

	// Assert
	require.NoError(t, err)

	view, err := sendRequest[any, identitydomain.UserView](
		fixture.client,
		fmt.Sprintf("%s%s", fixture.baseURL, "/api/users/self"),
		http.MethodGet,
		user.token,
		nil,
		func(r *http.Response) { require.Equal(t, http.StatusOK, r.StatusCode) },
	)
	require.NoError(t, err)
	require.Equal(t, "Smooth Cape", view.IslandName)
}

func Test_UsernameTaken_Reports_Existing_Username(t *testing.T) {
	// Arrange
	user := registerLoginUser(t)

	// Act
	taken, err := sendRequest[any, identityqueries.UsernameTakenResponse](
		fixture.client,
		fmt.Sprintf("%s/api/username-taken?username=%s", fixture.baseURL, user.username),
		http.MethodGet,
		"",
		nil,
		func(r *http.Response) { require.Equal(t, http.StatusOK, r.StatusCode) },
	)

	// Assert
	require.NoError(t, err)
	require.True(t, taken.Taken)
}
