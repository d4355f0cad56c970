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
)

const (
	maxUserSearchLength = 50
	userSearchLimit     = 50
)

type GetUsersQuery struct {
	Search string
	Viewer domain.User
}

func (q GetUsersQuery) Validate() error {
	if len(q.Search) > maxUserSearchLength {
		return fmt.Errorf("search text too long (max is %d characters)", maxUserSearchLength)
	}

	return nil
}

func HandleGetUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	viewer, ok := auth.UserFrom(ctx)
	if !ok {
		core.WriteUnauthorized(w, r, nil)
		return
	}

	query := GetUsersQuery{
		Search: r.URL.Query().Get("search"),
		Viewer: viewer,
	}

	views, err := mediator.Send[GetUsersQuery, []domain.UserView](ctx, query)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, views)
}

type GetUsersQueryHandler struct {
	users identity.UserRepository
}

func NewGetUsersQueryHandler(users identity.UserRepository) *GetUsersQueryHandler {
	return &GetUsersQueryHandler{users: users}
}

func (h *GetUsersQueryHandler) Handle(ctx context.Context, request GetUsersQuery) ([]domain.UserView, error) {
	users, err := h.users.SearchUsers(ctx, request.Search, userSearchLimit)
	if err != nil {
		return nil, core.NewCommandError(500, err, core.WithReason("failed to reach user store"))
	}

	views := make([]domain.UserView, 0, len(users))
	for _, user := range users {
		view, err := identity.View(ctx, h.users, &request.Viewer, user)
		if err != nil {
			return nil, core.NewCommandError(500, err, core.WithReason("failed to resolve user relations"))
		}

		views = append(views, view)
	}

	return views, nil
}
