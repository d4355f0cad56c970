package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/auth"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/core"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/identity"
	identitydomain "github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/session"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/session/domain"

	"github.com/eskrenkovic/mediator-go"
	"github.com/go-chi/chi"
)

type RequestAccessCommand struct {
	SessionID string
	User      identitydomain.User
}

func (c RequestAccessCommand) Validate() error {
	if c.SessionID == "" {
		return fmt.Errorf("invalid SessionID: '%s'", c.SessionID)
	}

	return nil
}

type RequestAccessResponse struct {
	Status domain.RequesterStatus `json:"status"`
}

func HandleRequestAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := auth.UserFrom(ctx)
	if !ok {
		core.WriteUnauthorized(w, r, nil)
		return
	}

	command := RequestAccessCommand{
		SessionID: chi.URLParam(r, "id"),
		User:      user,
	}

	response, err := mediator.Send[RequestAccessCommand, RequestAccessResponse](ctx, command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type RequestAccessCommandHandler struct {
	sessions session.SessionRepository
	users    identity.UserRepository
	service  *session.Service
	notifier session.Notifier
}

func NewRequestAccessCommandHandler(
	sessions session.SessionRepository,
	users identity.UserRepository,
	service *session.Service,
	notifier session.Notifier,
) *RequestAccessCommandHandler {
	return &RequestAccessCommandHandler{
		sessions: sessions,
		users:    users,
		service:  service,
		notifier: notifier,
	}
}

func (h *RequestAccessCommandHandler) Handle(
	ctx context.Context,
	request RequestAccessCommand,
) (RequestAccessResponse, error) {
	current, found, err := h.service.LoadByReadableID(ctx, request.SessionID)
	if err != nil {
		return RequestAccessResponse{}, core.NewCommandError(500, err, core.WithReason("failed to reach session store"))
	}

	if !found {
		return RequestAccessResponse{}, core.NewNotFoundError("session not found")
	}

	if current.Status == domain.SessionClosed {
		return RequestAccessResponse{}, core.NewStateError("session is closed")
	}

	if current.VerifiedOnly && !request.User.Verified() {
		return RequestAccessResponse{}, core.NewAuthorizationError("session is restricted to verified users")
	}

	blocked, err := h.users.HasBlocked(ctx, current.HostID, request.User.ID)
	if err != nil {
		return RequestAccessResponse{}, core.NewCommandError(500, err, core.WithReason("failed to resolve user relations"))
	}

	if blocked {
		return RequestAccessResponse{}, core.NewAuthorizationError("cannot request access to this session")
	}

	status := domain.RequesterSent
	if current.AutoAcceptVerified && request.User.Verified() {
		status = domain.RequesterAccepted
	}

	requester := domain.Requester{
		SessionID:   current.ID,
		UserID:      request.User.ID,
		Status:      status,
		RequestedAt: time.Now().UTC(),
	}

	// Insert-if-absent first; on conflict re-request from Withdrawn with a
	// conditional update, so two racing requests cannot both win.
	inserted, err := h.sessions.AppendRequester(ctx, requester)
	if err != nil {
		return RequestAccessResponse{}, core.NewCommandError(500, err, core.WithReason("failed to persist request"))
	}

	if !inserted {
		revived, err := h.sessions.ReviveRequester(
			ctx,
			current.ID,
			request.User.ID,
			status,
			requester.RequestedAt,
		)
		if err != nil {
			return RequestAccessResponse{}, core.NewCommandError(500, err, core.WithReason("failed to persist request"))
		}

		if !revived {
			return RequestAccessResponse{}, core.NewConflictError("you already have a pending or decided request")
		}

		// An existing row changed status, it did not newly appear.
		h.notifier.RequesterStatusChanged(ctx, current, requester)

		return RequestAccessResponse{Status: status}, nil
	}

	h.notifier.NewRequester(ctx, current, requester)

	return RequestAccessResponse{Status: status}, nil
}
