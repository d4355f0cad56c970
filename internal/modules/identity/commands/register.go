package commands

import (
	"context"
	"net/http"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/core"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/identity"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"

	"github.com/eskrenkovic/mediator-go"
)

type RegisterCommand struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	PlayerName string `json:"player_name"`
	IslandName string `json:"island_name"`
}

func (c RegisterCommand) Validate() error {
	if err := domain.ValidateUsername(c.Username); err != nil {
		return err
	}

	if err := domain.ValidatePassword(c.Password); err != nil {
		return err
	}

	if err := domain.ValidatePlayerName(c.PlayerName); err != nil {
		return err
	}

	return domain.ValidateIslandName(c.IslandName)
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
}

func HandleRegister(w http.ResponseWriter, r *http.Request) {
	command, err := core.RequestBody[RegisterCommand](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}

	response, err := mediator.Send[RegisterCommand, RegisterResponse](r.Context(), command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteCreated(w, r, "/api/users/"+response.UserID, response)
}

type RegisterCommandHandler struct {
	users  identity.UserRepository
	hasher *domain.PasswordHasher
}

func NewRegisterCommandHandler(users identity.UserRepository, hasher *domain.PasswordHasher) *RegisterCommandHandler {
	return &RegisterCommandHandler{users: users, hasher: hasher}
}

func (h *RegisterCommandHandler) Handle(ctx context.Context, request RegisterCommand) (RegisterResponse, error) {
	_, taken, err := h.users.FindByUsername(ctx, request.Username)
	if err != nil {
		return RegisterResponse{}, core.NewCommandError(500, err, core.WithReason("failed to reach user store"))
	}

	if taken {
		return RegisterResponse{}, core.NewConflictError("username is already taken")
	}

	passwordHash, err := h.hasher.HashPassword(request.Password)
	if err != nil {
		return RegisterResponse{}, core.NewCommandError(500, err, core.WithReason("failed to hash password"))
	}

	user := domain.NewUser(request.Username, request.PlayerName, request.IslandName, passwordHash, domain.LevelNormal)

	if err := h.users.Insert(ctx, user); err != nil {
		return RegisterResponse{}, core.NewCommandError(500, err, core.WithReason("failed to create new user entry"))
	}

	return RegisterResponse{UserID: user.ReadableID}, nil
}
