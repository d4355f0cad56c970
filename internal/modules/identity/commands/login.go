package commands

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

type LoginCommand struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c LoginCommand) Validate() error {
	if c.Username == "" {
		return fmt.Errorf("invalid Username: '%s'", c.Username)
	}

	if c.Password == "" {
		return fmt.Errorf("invalid Password: '%s'", c.Password)
	}

	return nil
}

type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

func HandleLogin(w http.ResponseWriter, r *http.Request) {
	command, err := core.RequestBody[LoginCommand](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}

	response, err := mediator.Send[LoginCommand, LoginResponse](r.Context(), command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type LoginCommandHandler struct {
	users  identity.UserRepository
	hasher passwordVerifier
	tokens *auth.TokenService
}

type passwordVerifier interface {
	Verify(passwordHash, givenPassword string) error
}

func NewLoginCommandHandler(
	users identity.UserRepository,
	hasher passwordVerifier,
	tokens *auth.TokenService,
) *LoginCommandHandler {
	return &LoginCommandHandler{users: users, hasher: hasher, tokens: tokens}
}

func (h *LoginCommandHandler) Handle(ctx context.Context, request LoginCommand) (LoginResponse, error) {
	user, found, err := h.users.FindByUsername(ctx, request.Username)
	if err != nil {
		return LoginResponse{}, core.NewCommandError(500, err, core.WithReason("failed to reach user store"))
	}

	// A missing user and a wrong password look the same to the caller.
	if !found {
		return LoginResponse{}, core.NewCommandError(401, nil, core.WithReason("invalid credentials"))
	}

	if err := h.hasher.Verify(user.PasswordHash, request.Password); err != nil {
		return LoginResponse{}, core.NewCommandError(401, nil, core.WithReason("invalid credentials"))
	}

	// Admins keep access to a banned account, otherwise a rogue admin could
	// lock everyone else out for good.
	if user.Banned && user.Level < domain.LevelAdmin {
		return LoginResponse{}, core.NewAuthorizationError("account is banned")
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		return LoginResponse{}, core.NewCommandError(500, err, core.WithReason("failed to issue login token"))
	}

	return LoginResponse{Token: token, UserID: user.ReadableID}, nil
}
