package queries

import (
	"context"
	"net/http"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/auth"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/core"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/identity"
	identitydomain "github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/session"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/session/domain"

	"github.com/eskrenkovic/mediator-go"
)

type GetOwnSessionQuery struct {
	Viewer identitydomain.User
}

func HandleGetOwnSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	viewer, ok := auth.UserFrom(ctx)
	if !ok {
		core.WriteUnauthorized(w, r, nil)
		return
	}

	view, err := mediator.Send[GetOwnSessionQuery, domain.SessionView](ctx, GetOwnSessionQuery{Viewer: viewer})
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, view)
}

type GetOwnSessionQueryHandler struct {
	sessions session.SessionRepository
	users    identity.UserRepository
	service  *session.Service
}

func NewGetOwnSessionQueryHandler(
	sessions session.SessionRepository,
	users identity.UserRepository,
	service *session.Service,
) *GetOwnSessionQueryHandler {
	return &GetOwnSessionQueryHandler{sessions: sessions, users: users, service: service}
}

func (h *GetOwnSessionQueryHandler) Handle(
	ctx context.Context,
	request GetOwnSessionQuery,
) (domain.SessionView, error) {
	current, found, err := h.service.LoadOpenSessionOfHost(ctx, request.Viewer.ID)
	if err != nil {
		return domain.SessionView{}, core.NewCommandError(500, err, core.WithReason("failed to reach session store"))
	}

	if !found {
		return domain.SessionView{}, core.NewNotFoundError("you are not hosting a session")
	}

	return ProjectSessionForViewer(ctx, h.sessions, h.users, &request.Viewer, current)
}
