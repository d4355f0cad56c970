package commands

import (
	"context"
	"net/http"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/auth"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/core"
	identitydomain "github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/session"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/session/domain"

	"github.com/eskrenkovic/mediator-go"
	"github.com/google/uuid"
)

type CreateSessionCommand struct {
	Host        identitydomain.User `json:"-"`
	Dodo        string              `json:"dodo"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	TurnipPrice int                 `json:"turnip_price"`
}

func (c CreateSessionCommand) Validate() error {
	if err := domain.ValidateDodo(c.Dodo); err != nil {
		return err
	}

	if err := domain.ValidateTitle(c.Title); err != nil {
		return err
	}

	if err := domain.ValidateDescription(c.Description); err != nil {
		return err
	}

	return domain.ValidateTurnipPrice(c.TurnipPrice)
}

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

func HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	host, ok := auth.UserFrom(ctx)
	if !ok {
		core.WriteUnauthorized(w, r, nil)
		return
	}

	command, err := core.RequestBody[CreateSessionCommand](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}
	command.Host = host

	response, err := mediator.Send[CreateSessionCommand, CreateSessionResponse](ctx, command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteCreated(w, r, "/api/sessions/"+response.SessionID, response)
}

type CreateSessionCommandHandler struct {
	sessions session.SessionRepository
	service  *session.Service
}

func NewCreateSessionCommandHandler(
	sessions session.SessionRepository,
	service *session.Service,
) *CreateSessionCommandHandler {
	return &CreateSessionCommandHandler{sessions: sessions, service: service}
}

func (h *CreateSessionCommandHandler) Handle(
	ctx context.Context,
	request CreateSessionCommand,
) (CreateSessionResponse, error) {
	_, hosting, err := h.service.LoadOpenSessionOfHost(ctx, request.Host.ID)
	if err != nil {
		return CreateSessionResponse{}, core.NewCommandError(500, err, core.WithReason("failed to reach session store"))
	}

	if hosting {
		return CreateSessionResponse{}, core.NewConflictError("you are already hosting a session")
	}

	inUse, err := h.service.DodoInUse(ctx, request.Dodo, uuid.Nil)
	if err != nil {
		return CreateSessionResponse{}, core.NewCommandError(500, err, core.WithReason("failed to reach session store"))
	}

	if inUse {
		return CreateSessionResponse{}, core.NewConflictError("dodo code is already in use")
	}

	newSession := domain.NewSession(request.Host, request.Dodo, request.Title, request.Description, request.TurnipPrice)

	if err := h.sessions.InsertSession(ctx, newSession); err != nil {
		return CreateSessionResponse{}, core.NewCommandError(500, err, core.WithReason("failed to create session"))
	}

	return CreateSessionResponse{SessionID: newSession.ReadableID}, nil
}
