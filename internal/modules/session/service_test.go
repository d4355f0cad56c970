package session

import (
	"context"
	"testing"
	"time"

	identitydomain "github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/session/domain"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/settings"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *InMemorySessionRepository) {
	t.Helper()

	repo := NewInMemorySessionRepository()
	return NewService(repo, settings.NewDefaultStore(24, true)), repo
}

func newTestSession(t *testing.T, repo *InMemorySessionRepository, dodo string, age time.Duration) domain.Session {
	t.Helper()

	host := identitydomain.NewUser("host", "A A", "B B", "hash", identitydomain.LevelNormal)
	session := domain.NewSession(host, dodo, "turnips", "", 500)
	session.Created = time.Now().UTC().Add(-age)

	require.NoError(t, repo.InsertSession(context.Background(), session))

	return session
}

func Test_Load_Closes_Expired_Session_And_Persists_The_Close(t *testing.T) {
	// Arrange
	service, repo := newTestService(t)
	session := newTestSession(t, repo, "AB3X9", 25*time.Hour)

	// Act
	loaded, found, err := service.Load(context.Background(), session.ID)

	// Assert
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, domain.SessionClosed, loaded.Status)

	stored, found, err := repo.FindSession(context.Background(), session.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, domain.SessionClosed, stored.Status)
}

func Test_Load_Leaves_Fresh_Session_Open(t *testing.T) {
	// Arrange
	service, repo := newTestService(t)
	session := newTestSession(t, repo, "AB3X9", time.Hour)

	// Act
	loaded, found, err := service.Load(context.Background(), session.ID)

	// Assert
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, domain.SessionOpen, loaded.Status)
}

func Test_LoadOpenSessionOfHost_Ignores_Expired_Session(t *testing.T) {
	// Arrange
	service, repo := newTestService(t)
	session := newTestSession(t, repo, "AB3X9", 25*time.Hour)

	// Act
	_, found, err := service.LoadOpenSessionOfHost(context.Background(), session.HostID)

	// Assert
	require.NoError(t, err)
	require.False(t, found)
}

func Test_MaxSessionDuration_Follows_Runtime_Setting(t *testing.T) {
	// Arrange
	repo := NewInMemorySessionRepository()
	store := settings.NewDefaultStore(24, true)
	service := NewService(repo, store)

	require.Equal(t, 24*time.Hour, service.MaxSessionDuration())

	// Act
	require.NoError(t, store.Set(settings.MaxSessionDurationHours, 2))

	// Assert
	require.Equal(t, 2*time.Hour, service.MaxSessionDuration())
}

func Test_DodoInUse_Matches_Case_Insensitively(t *testing.T) {
	// Arrange
	service, repo := newTestService(t)
	newTestSession(t, repo, "AB3X9", time.Hour)

	// Act
	inUse, err := service.DodoInUse(context.Background(), "ab3x9", uuid.Nil)

	// Assert
	require.NoError(t, err)
	require.True(t, inUse)
}

func Test_DodoInUse_Ignores_Closed_Sessions(t *testing.T) {
	// Arrange
	service, repo := newTestService(t)
	session := newTestSession(t, repo, "AB3X9", time.Hour)
	require.NoError(t, repo.SetSessionStatus(context.Background(), session.ID, domain.SessionClosed))

	// Act
	inUse, err := service.DodoInUse(context.Background(), "AB3X9", uuid.Nil)

	// Assert
	require.NoError(t, err)
	require.False(t, inUse)
}

func Test_DodoInUse_Excludes_The_Given_Session(t *testing.T) {
	// Arrange
	service, repo := newTestService(t)
	session := newTestSession(t, repo, "AB3X9", time.Hour)

	// Act
	inUse, err := service.DodoInUse(context.Background(), "AB3X9", session.ID)

	// Assert
	require.NoError(t, err)
	require.False(t, inUse)
}

func Test_DodoInUse_Honors_Disabled_Uniqueness_Check(t *testing.T) {
	// Arrange
	repo := NewInMemorySessionRepository()
	store := settings.NewDefaultStore(24, false)
	service := NewService(repo, store)

	newTestSession(t, repo, "AB3X9", time.Hour)

	// Act
	inUse, err := service.DodoInUse(context.Background(), "AB3X9", uuid.Nil)

	// Assert
	require.NoError(t, err)
	require.False(t, inUse)
}
