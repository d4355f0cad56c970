package queries

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/core"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/identity"

	"github.com/eskrenkovic/mediator-go"
)

type UsernameTakenQuery struct {
	Username string
}

func (q UsernameTakenQuery) Validate() error {
	if q.Username == "" {
		return fmt.Errorf("invalid Username: '%s'", q.Username)
	}

	return nil
}

type UsernameTakenResponse struct {
	Taken bool `json:"taken"`
}

func HandleUsernameTaken(w http.ResponseWriter, r *http.Request) {
	query := UsernameTakenQuery{Username: r.URL.Query().Get("username")}

	response, err := mediator.Send[UsernameTakenQuery, UsernameTakenResponse](r.Context(), query)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type UsernameTakenQueryHandler struct {
	users identity.UserRepository
}

func NewUsernameTakenQueryHandler(users identity.UserRepository) *UsernameTakenQueryHandler {
	return &UsernameTakenQueryHandler{users: users}
}

func (h *UsernameTakenQueryHandler) Handle(
	ctx context.Context,
	request UsernameTakenQuery,
) (UsernameTakenResponse, error) {
	_, taken, err := h.users.FindByUsername(ctx, request.Username)
	if err != nil {
		return UsernameTakenResponse{}, core.NewCommandError(500, err, core.WithReason("failed to reach user store"))
	}

	return UsernameTakenResponse{Taken: taken}, nil
}
