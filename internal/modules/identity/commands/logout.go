package commands

import (
	"context"
	"net/http"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/auth"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/core"

	"github.com/eskrenkovic/mediator-go"
)

type LogoutCommand struct {
	Token string
}

func HandleLogout(w http.ResponseWriter, r *http.Request) {
	command := LogoutCommand{Token: auth.BearerToken(r)}

	if _, err := mediator.Send[LogoutCommand, core.Unit](r.Context(), command); err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, nil)
}

type LogoutCommandHandler struct {
	tokens *auth.TokenService
}

func NewLogoutCommandHandler(tokens *auth.TokenService) *LogoutCommandHandler {
	return &LogoutCommandHandler{tokens: tokens}
}

func (h *LogoutCommandHandler) Handle(_ context.Context, request LogoutCommand) (core.Unit, error) {
	h.tokens.Invalidate(request.Token)
	return core.Unit{}, nil
}
