package queries

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/auth"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/core"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/identity"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"

	"github.com/eskrenkovic/mediator-go"
	"github.com/go-chi/chi"
)

type GetUserQuery struct {
	ReadableID string
	Viewer     *domain.User
}

func (q GetUserQuery) Validate() error {
	if q.ReadableID == "" {
		return fmt.Errorf("invalid ReadableID: '%s'", q.ReadableID)
	}

	return nil
}

func HandleGetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := GetUserQuery{ReadableID: chi.URLParam(r, "id")}
	if viewer, ok := auth.UserFrom(ctx); ok {
		query.Viewer = &viewer
	}

	view, err := mediator.Send[GetUserQuery, domain.UserView](ctx, query)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, view)
}

// HandleGetSelf serves the caller's own projection without requiring the
// readable ID to be known client side.
func HandleGetSelf(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	viewer, ok := auth.UserFrom(ctx)
	if !ok {
		core.WriteUnauthorized(w, r, nil)
		return
	}

	query := GetUserQuery{ReadableID: viewer.ReadableID, Viewer: &viewer}

	view, err := mediator.Send[GetUserQuery, domain.UserView](ctx, query)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, view)
}

type GetUserQueryHandler struct {
	users identity.UserRepository
}

func NewGetUserQueryHandler(users identity.UserRepository) *GetUserQueryHandler {
	return &GetUserQueryHandler{users: users}
}

func (h *GetUserQueryHandler) Handle(ctx context.Context, request GetUserQuery) (domain.UserView, error) {
	user, found, err := h.users.FindByReadableID(ctx, request.ReadableID)
	if err != nil {
		return domain.UserView{}, core.NewCommandError(500, err, core.WithReason("failed to reach user store"))
	}

	if !found {
		return domain.UserView{}, core.NewNotFoundError("user not found")
	}

	view, err := identity.View(ctx, h.users, request.Viewer, user)
	if err != nil {
		return domain.UserView{}, core.NewCommandError(500, err, core.WithReason("failed to resolve user relations"))
	}

	return view, nil
}
