package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/audit"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/auth"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/core"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/identity"
	identitydomain "github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/session"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/session/domain"

	"github.com/eskrenkovic/mediator-go"
	"github.com/go-chi/chi"
)

type RetrieveCodeCommand struct {
	SessionID string
	User      identitydomain.User
}

func (c RetrieveCodeCommand) Validate() error {
	if c.SessionID == "" {
		return fmt.Errorf("invalid SessionID: '%s'", c.SessionID)
	}

	return nil
}

type RetrieveCodeResponse struct {
	Dodo string `json:"dodo"`
}

func HandleRetrieveCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := auth.UserFrom(ctx)
	if !ok {
		core.WriteUnauthorized(w, r, nil)
		return
	}

	command := RetrieveCodeCommand{
		SessionID: chi.URLParam(r, "id"),
		User:      user,
	}

	response, err := mediator.Send[RetrieveCodeCommand, RetrieveCodeResponse](ctx, command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type RetrieveCodeCommandHandler struct {
	sessions session.SessionRepository
	users    identity.UserRepository
	service  *session.Service
	notifier session.Notifier
	audit    audit.Sink
}

func NewRetrieveCodeCommandHandler(
	sessions session.SessionRepository,
	users identity.UserRepository,
	service *session.Service,
	notifier session.Notifier,
	auditSink audit.Sink,
) *RetrieveCodeCommandHandler {
	return &RetrieveCodeCommandHandler{
		sessions: sessions,
		users:    users,
		service:  service,
		notifier: notifier,
		audit:    auditSink,
	}
}

func (h *RetrieveCodeCommandHandler) Handle(
	ctx context.Context,
	request RetrieveCodeCommand,
) (RetrieveCodeResponse, error) {
	current, found, err := h.service.LoadByReadableID(ctx, request.SessionID)
	if err != nil {
		return RetrieveCodeResponse{}, core.NewCommandError(500, err, core.WithReason("failed to reach session store"))
	}

	if !found {
		return RetrieveCodeResponse{}, core.NewNotFoundError("session not found")
	}

	// A block by the host shuts the code off for everyone, moderators and
	// admins included. Elevated levels only skip the requester-status check.
	blocked, err := h.users.HasBlocked(ctx, current.HostID, request.User.ID)
	if err != nil {
		return RetrieveCodeResponse{}, core.NewCommandError(500, err, core.WithReason("failed to resolve user relations"))
	}

	if blocked {
		return RetrieveCodeResponse{}, core.NewAuthorizationError("cannot retrieve the code for this session")
	}

	moderator := request.User.Level >= identitydomain.LevelModerator

	if !moderator {
		requester, found, err := h.sessions.FindRequester(ctx, current.ID, request.User.ID)
		if err != nil {
			return RetrieveCodeResponse{}, core.NewCommandError(500, err, core.WithReason("failed to reach session store"))
		}

		if !found || requester.Status != domain.RequesterAccepted {
			return RetrieveCodeResponse{}, core.NewAuthorizationError("only accepted requesters can retrieve the code")
		}

		// First retrieval since the code was last changed flips got_dodo and
		// notifies once; repeats are silent.
		flipped, err := h.sessions.SetRequesterGotDodo(ctx, current.ID, request.User.ID, true)
		if err != nil {
			return RetrieveCodeResponse{}, core.NewCommandError(500, err, core.WithReason("failed to record retrieval"))
		}

		if flipped {
			h.notifier.GotDodoChanged(ctx, current, request.User.ID, true)
		}
	}

	h.audit.RecordCodeRetrieved(ctx, request.User.ID, current.ID, current.Dodo)

	return RetrieveCodeResponse{Dodo: current.Dodo}, nil
}
