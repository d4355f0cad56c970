package queries

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/auth"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/core"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/identity"
	identitydomain "github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/session"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/session/domain"

	"github.com/eskrenkovic/mediator-go"
	"github.com/go-chi/chi"
)

type GetSessionQuery struct {
	ReadableID string
	Viewer     *identitydomain.User
}

func (q GetSessionQuery) Validate() error {
	if q.ReadableID == "" {
		return fmt.Errorf("invalid ReadableID: '%s'", q.ReadableID)
	}

	return nil
}

func HandleGetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := GetSessionQuery{ReadableID: chi.URLParam(r, "id")}
	if viewer, ok := auth.UserFrom(ctx); ok {
		query.Viewer = &viewer
	}

	view, err := mediator.Send[GetSessionQuery, domain.SessionView](ctx, query)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, view)
}

type GetSessionQueryHandler struct {
	sessions session.SessionRepository
	users    identity.UserRepository
	service  *session.Service
}

func NewGetSessionQueryHandler(
	sessions session.SessionRepository,
	users identity.UserRepository,
	service *session.Service,
) *GetSessionQueryHandler {
	return &GetSessionQueryHandler{sessions: sessions, users: users, service: service}
}

func (h *GetSessionQueryHandler) Handle(
	ctx context.Context,
	request GetSessionQuery,
) (domain.SessionView, error) {
	current, found, err := h.service.LoadByReadableID(ctx, request.ReadableID)
	if err != nil {
		return domain.SessionView{}, core.NewCommandError(500, err, core.WithReason("failed to reach session store"))
	}

	if !found {
		return domain.SessionView{}, core.NewNotFoundError("session not found")
	}

	return ProjectSessionForViewer(ctx, h.sessions, h.users, request.Viewer, current)
}

// ProjectSessionForViewer assembles the inputs the pure projection needs and
// runs it. Shared by every query and the notifier-independent read paths.
func ProjectSessionForViewer(
	ctx context.Context,
	sessions session.SessionRepository,
	users identity.UserRepository,
	viewer *identitydomain.User,
	current domain.Session,
) (domain.SessionView, error) {
	host, found, err := users.FindByID(ctx, current.HostID)
	if err != nil {
		return domain.SessionView{}, core.NewCommandError(500, err, core.WithReason("failed to reach user store"))
	}

	if !found {
		return domain.SessionView{}, core.NewNotFoundError("session host not found")
	}

	hostView, err := identity.View(ctx, users, viewer, host)
	if err != nil {
		return domain.SessionView{}, core.NewCommandError(500, err, core.WithReason("failed to resolve user relations"))
	}

	requesters, err := sessions.ListRequesters(ctx, current.ID)
	if err != nil {
		return domain.SessionView{}, core.NewCommandError(500, err, core.WithReason("failed to reach session store"))
	}

	return domain.ProjectSession(viewer, current, hostView, requesters), nil
}
