package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/identity"
	identitydomain "github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/session"
	sessiondomain "github.com/eskrenkovic/dodo-exchange/internal/modules/session/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type notifierFixture struct {
	hub      *Hub
	users    *identity.InMemoryUserRepository
	sessions *session.InMemorySessionRepository
	notifier *HubNotifier

	host    identitydomain.User
	session sessiondomain.Session
}

func newNotifierFixture(t *testing.T) *notifierFixture {
	t.Helper()

	f := &notifierFixture{
		hub:      NewHub(zap.NewNop()),
		users:    identity.NewInMemoryUserRepository(),
		sessions: session.NewInMemorySessionRepository(),
	}
	f.notifier = NewHubNotifier(f.hub, f.sessions, f.users, zap.NewNop())

	f.host = f.newUser(t, identitydomain.LevelNormal)
	f.session = sessiondomain.NewSession(f.host, "AB3X9", "turnips", "", 500)
	require.NoError(t, f.sessions.InsertSession(context.Background(), f.session))

	return f
}

func (f *notifierFixture) newUser(t *testing.T, level identitydomain.Level) identitydomain.User {
	t.Helper()

	user := identitydomain.NewUser(uuid.New().String()[:8], "A A", "B B", "hash", level)
	require.NoError(t, f.users.Insert(context.Background(), user))

	return user
}

func (f *notifierFixture) connect(user *identitydomain.User) *Client {
	client := &Client{hub: f.hub, send: make(chan Envelope, sendBufferSize), user: user}
	f.hub.register(client)
	return client
}

func (f *notifierFixture) appendRequester(t *testing.T, userID uuid.UUID, status sessiondomain.RequesterStatus) {
	t.Helper()

	inserted, err := f.sessions.AppendRequester(context.Background(), sessiondomain.Requester{
		SessionID:   f.session.ID,
		UserID:      userID,
		Status:      status,
		RequestedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.True(t, inserted)
}

func receive(t *testing.T, client *Client) Envelope {
	t.Helper()

	select {
	case envelope := <-client.send:
		return envelope
	default:
		t.Fatal("expected a message, got none")
		return Envelope{}
	}
}

func requireSilent(t *testing.T, client *Client) {
	t.Helper()

	select {
	case envelope := <-client.send:
		t.Fatalf("expected no message, got %s", envelope.Type)
	default:
	}
}

func Test_Audience_Deduplicates_Room_Members_And_Included_Users(t *testing.T) {
	// Arrange
	f := newNotifierFixture(t)
	client := f.connect(&f.host)
	f.hub.join(client, sessionRoom(f.session.ReadableID))

	// Act
	audience := f.hub.audience(sessionRoom(f.session.ReadableID), f.host.ID)

	// Assert
	require.Len(t, audience, 1)
}

func Test_Remove_Clears_Every_Room_Membership(t *testing.T) {
	// Arrange
	f := newNotifierFixture(t)
	client := f.connect(&f.host)
	f.hub.join(client, sessionRoom(f.session.ReadableID))
	f.hub.join(client, requestersRoom(f.session.ReadableID))

	// Act
	f.hub.remove(client)

	// Assert
	require.Empty(t, f.hub.audience(sessionRoom(f.session.ReadableID)))
	require.Empty(t, f.hub.audience(requestersRoom(f.session.ReadableID)))
	require.Empty(t, f.hub.audience("", f.host.ID))
}

func Test_Join_Ignores_Clients_That_Already_Disconnected(t *testing.T) {
	// Arrange
	f := newNotifierFixture(t)
	client := f.connect(&f.host)
	f.hub.remove(client)

	// Act
	f.hub.join(client, sessionRoom(f.session.ReadableID))

	// Assert
	require.Empty(t, f.hub.audience(sessionRoom(f.session.ReadableID)))
}

func Test_SessionChanged_Sends_New_Dodo_Only_To_Privileged_Observers(t *testing.T) {
	// Arrange
	f := newNotifierFixture(t)

	stranger := f.newUser(t, identitydomain.LevelNormal)

	hostClient := f.connect(&f.host)
	strangerClient := f.connect(&stranger)
	f.hub.join(hostClient, sessionRoom(f.session.ReadableID))
	f.hub.join(strangerClient, sessionRoom(f.session.ReadableID))

	newDodo := "C4DF5"
	f.session.Dodo = newDodo

	// Act
	f.notifier.SessionChanged(context.Background(), f.session, session.SessionPatch{Dodo: &newDodo}, true)

	// Assert
	hostEnvelope := receive(t, hostClient)
	require.Equal(t, MessageSessionChanged, hostEnvelope.Type)

	hostPayload, ok := hostEnvelope.Payload.(SessionChangedPayload)
	require.True(t, ok)
	require.NotNil(t, hostPayload.Changes.Dodo)
	require.Equal(t, newDodo, *hostPayload.Changes.Dodo)

	strangerEnvelope := receive(t, strangerClient)
	strangerPayload, ok := strangerEnvelope.Payload.(SessionChangedPayload)
	require.True(t, ok)
	require.Nil(t, strangerPayload.Changes.Dodo)
}

func Test_SessionChanged_Signals_Code_Change_To_Accepted_Requesters_With_Empty_Dodo(t *testing.T) {
	// Arrange
	f := newNotifierFixture(t)

	requester := f.newUser(t, identitydomain.LevelNormal)
	f.appendRequester(t, requester.ID, sessiondomain.RequesterAccepted)

	requesterClient := f.connect(&requester)
	f.hub.join(requesterClient, sessionRoom(f.session.ReadableID))

	newDodo := "C4DF5"
	f.session.Dodo = newDodo

	// Act
	f.notifier.SessionChanged(context.Background(), f.session, session.SessionPatch{Dodo: &newDodo}, true)

	// Assert
	envelope := receive(t, requesterClient)
	payload, ok := envelope.Payload.(SessionChangedPayload)
	require.True(t, ok)
	require.NotNil(t, payload.Changes.Dodo)
	require.Empty(t, *payload.Changes.Dodo)
}

func Test_SessionChanged_Counts_Follow_Observer_Privilege(t *testing.T) {
	// Arrange
	f := newNotifierFixture(t)
	f.session.PublicRequesters = true
	require.NoError(t, f.sessions.InsertSession(context.Background(), f.session))

	sent := f.newUser(t, identitydomain.LevelNormal)
	rejected := f.newUser(t, identitydomain.LevelNormal)
	f.appendRequester(t, sent.ID, sessiondomain.RequesterSent)
	f.appendRequester(t, rejected.ID, sessiondomain.RequesterRejected)

	stranger := f.newUser(t, identitydomain.LevelNormal)

	hostClient := f.connect(&f.host)
	strangerClient := f.connect(&stranger)
	f.hub.join(hostClient, sessionRoom(f.session.ReadableID))
	f.hub.join(strangerClient, sessionRoom(f.session.ReadableID))

	title := "still selling"

	// Act
	f.notifier.SessionChanged(context.Background(), f.session, session.SessionPatch{Title: &title}, false)

	// Assert
	hostPayload := receive(t, hostClient).Payload.(SessionChangedPayload)
	require.NotNil(t, hostPayload.Changes.RequesterCounts)
	require.Equal(t, 1, hostPayload.Changes.RequesterCounts.Rejected)

	strangerPayload := receive(t, strangerClient).Payload.(SessionChangedPayload)
	require.NotNil(t, strangerPayload.Changes.RequesterCounts)
	require.Zero(t, strangerPayload.Changes.RequesterCounts.Rejected)
	require.Equal(t, 1, strangerPayload.Changes.RequesterCounts.Sent)
}

func Test_SessionChanged_Reaches_Unsubscribed_Host(t *testing.T) {
	// Arrange
	f := newNotifierFixture(t)
	hostClient := f.connect(&f.host)

	title := "new title"

	// Act
	f.notifier.SessionChanged(context.Background(), f.session, session.SessionPatch{Title: &title}, false)

	// Assert
	envelope := receive(t, hostClient)
	require.Equal(t, MessageSessionChanged, envelope.Type)
}

func Test_NewRequester_Skips_Clients_That_May_Not_See_The_Row(t *testing.T) {
	// Arrange
	f := newNotifierFixture(t)

	requester := f.newUser(t, identitydomain.LevelNormal)
	f.appendRequester(t, requester.ID, sessiondomain.RequesterSent)

	stranger := f.newUser(t, identitydomain.LevelNormal)

	hostClient := f.connect(&f.host)
	strangerClient := f.connect(&stranger)
	f.hub.join(hostClient, requestersRoom(f.session.ReadableID))
	f.hub.join(strangerClient, requestersRoom(f.session.ReadableID))

	row, found, err := f.sessions.FindRequester(context.Background(), f.session.ID, requester.ID)
	require.NoError(t, err)
	require.True(t, found)

	// Act
	f.notifier.NewRequester(context.Background(), f.session, row)

	// Assert
	envelope := receive(t, hostClient)
	require.Equal(t, MessageNewRequester, envelope.Type)

	payload, ok := envelope.Payload.(NewRequesterPayload)
	require.True(t, ok)
	require.Equal(t, sessiondomain.RequesterSent, payload.Requester.Status)

	requireSilent(t, strangerClient)
}

func Test_GotDodoChanged_Reaches_Host_And_Requester_Without_Subscription(t *testing.T) {
	// Arrange
	f := newNotifierFixture(t)

	requester := f.newUser(t, identitydomain.LevelNormal)
	f.appendRequester(t, requester.ID, sessiondomain.RequesterAccepted)

	hostClient := f.connect(&f.host)
	requesterClient := f.connect(&requester)

	// Act
	f.notifier.GotDodoChanged(context.Background(), f.session, requester.ID, true)

	// Assert
	for _, client := range []*Client{hostClient, requesterClient} {
		envelope := receive(t, client)
		require.Equal(t, MessageRequesterUpdate, envelope.Type)

		payload, ok := envelope.Payload.(RequesterUpdatePayload)
		require.True(t, ok)
		require.Equal(t, requester.ReadableID, payload.UserID)
		require.NotNil(t, payload.GotDodo)
		require.True(t, *payload.GotDodo)
	}
}

func Test_Enqueue_After_Disconnect_Drops_The_Message(t *testing.T) {
	// Arrange
	f := newNotifierFixture(t)
	client := f.connect(&f.host)
	f.hub.join(client, sessionRoom(f.session.ReadableID))

	audience := f.hub.audience(sessionRoom(f.session.ReadableID))
	require.Len(t, audience, 1)

	f.hub.remove(client)

	// Act
	audience[0].enqueue(Envelope{Type: MessageSessionChanged})

	// Assert
	requireSilent(t, client)
}

func Test_SessionChanged_Evicts_Requester_Watchers_When_The_Public_Flag_Turns_Off(t *testing.T) {
	// Arrange
	f := newNotifierFixture(t)
	f.session.PublicRequesters = true
	require.NoError(t, f.sessions.InsertSession(context.Background(), f.session))

	requester := f.newUser(t, identitydomain.LevelNormal)
	f.appendRequester(t, requester.ID, sessiondomain.RequesterSent)

	stranger := f.newUser(t, identitydomain.LevelNormal)

	hostClient := f.connect(&f.host)
	strangerClient := f.connect(&stranger)
	f.hub.join(hostClient, requesterChangesRoom(f.session.ReadableID))
	f.hub.join(strangerClient, requesterChangesRoom(f.session.ReadableID))

	off := false
	f.session.PublicRequesters = false

	// Act
	f.notifier.SessionChanged(context.Background(), f.session, session.SessionPatch{PublicRequesters: &off}, false)

	row, found, err := f.sessions.FindRequester(context.Background(), f.session.ID, requester.ID)
	require.NoError(t, err)
	require.True(t, found)
	f.notifier.RequesterStatusChanged(context.Background(), f.session, row)

	// Assert
	hostSaw := false
	for len(hostClient.send) > 0 {
		if envelope := receive(t, hostClient); envelope.Type == MessageRequesterUpdate {
			hostSaw = true
		}
	}
	require.True(t, hostSaw)
	requireSilent(t, strangerClient)
}
