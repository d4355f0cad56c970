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

type GetSessionRequestersQuery struct {
	ReadableID string
	Viewer     *identitydomain.User
}

func (q GetSessionRequestersQuery) Validate() error {
	if q.ReadableID == "" {
		return fmt.Errorf("invalid ReadableID: '%s'", q.ReadableID)
	}

	return nil
}

func HandleGetSessionRequesters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := GetSessionRequestersQuery{ReadableID: chi.URLParam(r, "id")}
	if viewer, ok := auth.UserFrom(ctx); ok {
		query.Viewer = &viewer
	}

	views, err := mediator.Send[GetSessionRequestersQuery, []domain.RequesterView](ctx, query)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, views)
}

type GetSessionRequestersQueryHandler struct {
	sessions session.SessionRepository
	users    identity.UserRepository
	service  *session.Service
}

func NewGetSessionRequestersQueryHandler(
	sessions session.SessionRepository,
	users identity.UserRepository,
	service *session.Service,
) *GetSessionRequestersQueryHandler {
	return &GetSessionRequestersQueryHandler{sessions: sessions, users: users, service: service}
}

func (h *GetSessionRequestersQueryHandler) Handle(
	ctx context.Context,
	request GetSessionRequestersQuery,
) ([]domain.RequesterView, error) {
	current, found, err := h.service.LoadByReadableID(ctx, request.ReadableID)
	if err != nil {
		return nil, core.NewCommandError(500, err, core.WithReason("failed to reach session store"))
	}

	if !found {
		return nil, core.NewNotFoundError("session not found")
	}

	requesters, err := h.sessions.ListRequesters(ctx, current.ID)
	if err != nil {
		return nil, core.NewCommandError(500, err, core.WithReason("failed to reach session store"))
	}

	// Rows the viewer may not see are dropped, not blanked.
	views := make([]domain.RequesterView, 0, len(requesters))
	for _, requester := range requesters {
		user, found, err := h.users.FindByID(ctx, requester.UserID)
		if err != nil {
			return nil, core.NewCommandError(500, err, core.WithReason("failed to reach user store"))
		}

		if !found {
			continue
		}

		userView, err := identity.View(ctx, h.users, request.Viewer, user)
		if err != nil {
			return nil, core.NewCommandError(500, err, core.WithReason("failed to resolve user relations"))
		}

		if view, visible := domain.ProjectRequester(request.Viewer, current, requester, userView); visible {
			views = append(views, view)
		}
	}

	return views, nil
}
