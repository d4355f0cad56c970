package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/auth"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/core"
	identitydomain "github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/session"
	sessioncommands "github.com/eskrenkovic/dodo-exchange/internal/modules/session/commands"
	sessiondomain "github.com/eskrenkovic/dodo-exchange/internal/modules/session/domain"

	"github.com/eskrenkovic/mediator-go"
	"go.uber.org/zap"
)

// Endpoint upgrades HTTP requests to websocket connections and dispatches
// inbound messages. Commands go through the same mediator pipeline as their
// HTTP counterparts.
type Endpoint struct {
	hub     *Hub
	service *session.Service
	logger  *zap.Logger
}

func NewEndpoint(hub *Hub, service *session.Service, logger *zap.Logger) *Endpoint {
	return &Endpoint{hub: hub, service: service, logger: logger}
}

// HandleConnection serves one websocket client for the lifetime of the
// connection. Anonymous connections are allowed; they can only watch public
// session streams.
func (e *Endpoint) HandleConnection(w http.ResponseWriter, r *http.Request) {
	var user *identitydomain.User
	if u, ok := auth.UserFrom(r.Context()); ok {
		user = &u
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:  e.hub,
		conn: conn,
		send: make(chan Envelope, sendBufferSize),
		user: user,
	}

	e.hub.register(client)
	go client.writePump()

	defer func() {
		e.hub.remove(client)
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		e.dispatch(r.Context(), client, data)
	}
}

func (e *Endpoint) dispatch(ctx context.Context, client *Client, data []byte) {
	var message inboundMessage
	if err := json.Unmarshal(data, &message); err != nil {
		client.enqueue(errorEnvelope("invalid message"))
		return
	}

	switch message.Type {
	case MessageWatchSession:
		e.hub.join(client, sessionRoom(message.SessionID))

	case MessageUnwatchSession:
		e.hub.leave(client, sessionRoom(message.SessionID))

	case MessageWatchRequesters:
		e.watchGated(ctx, client, message.SessionID, requestersRoom(message.SessionID))

	case MessageUnwatchRequesters:
		e.hub.leave(client, requestersRoom(message.SessionID))

	case MessageWatchRequesterChanges:
		e.watchGated(ctx, client, message.SessionID, requesterChangesRoom(message.SessionID))

	case MessageUnwatchRequesterChange:
		e.hub.leave(client, requesterChangesRoom(message.SessionID))

	case MessageRequestDodo:
		e.requestDodo(ctx, client, message.SessionID)

	case MessageRequesterUpdate:
		e.requesterUpdate(ctx, client, message)

	default:
		client.enqueue(errorEnvelope("unknown message type"))
	}
}

// watchGated applies the same visibility predicate at subscribe time that
// read-time projection uses: whoever may not list the requesters may not
// subscribe to their stream either.
func (e *Endpoint) watchGated(ctx context.Context, client *Client, sessionID, room string) {
	current, found, err := e.service.LoadByReadableID(ctx, sessionID)
	if err != nil {
		e.logger.Error("failed to load session for subscription", zap.Error(err))
		client.enqueue(errorEnvelope("subscription failed"))
		return
	}

	if !found {
		client.enqueue(errorEnvelope("session not found"))
		return
	}

	if !sessiondomain.CanSeeRequesters(client.user, current) {
		client.enqueue(errorEnvelope("not allowed to watch requesters of this session"))
		return
	}

	e.hub.join(client, room)
}

func (e *Endpoint) requestDodo(ctx context.Context, client *Client, sessionID string) {
	if client.user == nil {
		client.enqueue(errorEnvelope("login required"))
		return
	}

	command := sessioncommands.RetrieveCodeCommand{SessionID: sessionID, User: *client.user}

	response, err := mediator.Send[sessioncommands.RetrieveCodeCommand, sessioncommands.RetrieveCodeResponse](
		ctx,
		command,
	)
	if err != nil {
		client.enqueue(commandErrorEnvelope(err))
		return
	}

	client.enqueue(Envelope{
		Type:    MessageDodo,
		Payload: DodoPayload{SessionID: sessionID, Dodo: response.Dodo},
	})
}

func (e *Endpoint) requesterUpdate(ctx context.Context, client *Client, message inboundMessage) {
	if client.user == nil {
		client.enqueue(errorEnvelope("login required"))
		return
	}

	if message.Status == nil {
		client.enqueue(errorEnvelope("missing status"))
		return
	}

	targetID := message.UserID
	if targetID == "" {
		targetID = client.user.ReadableID
	}

	command := sessioncommands.UpdateRequesterStatusCommand{
		SessionID:    message.SessionID,
		TargetUserID: targetID,
		Actor:        *client.user,
		Status:       *message.Status,
	}

	if _, err := mediator.Send[sessioncommands.UpdateRequesterStatusCommand, core.Unit](ctx, command); err != nil {
		client.enqueue(commandErrorEnvelope(err))
	}
}

func errorEnvelope(message string) Envelope {
	return Envelope{Type: MessageError, Payload: ErrorPayload{Message: message}}
}

func commandErrorEnvelope(err error) Envelope {
	var commandErr core.CommandError
	if errors.As(err, &commandErr) && commandErr.Reason != nil {
		return errorEnvelope(*commandErr.Reason)
	}

	return errorEnvelope("request failed")
}
