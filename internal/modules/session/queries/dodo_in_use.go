package queries

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/core"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/session"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/session/domain"

	"github.com/eskrenkovic/mediator-go"
	"github.com/google/uuid"
)

type DodoInUseQuery struct {
	Dodo string
}

func (q DodoInUseQuery) Validate() error {
	if err := domain.ValidateDodo(q.Dodo); err != nil {
		return fmt.Errorf("invalid Dodo: %w", err)
	}

	return nil
}

type DodoInUseResponse struct {
	InUse bool `json:"in_use"`
}

func HandleDodoInUse(w http.ResponseWriter, r *http.Request) {
	query := DodoInUseQuery{Dodo: r.URL.Query().Get("dodo")}

	response, err := mediator.Send[DodoInUseQuery, DodoInUseResponse](r.Context(), query)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type DodoInUseQueryHandler struct {
	service *session.Service
}

func NewDodoInUseQueryHandler(service *session.Service) *DodoInUseQueryHandler {
	return &DodoInUseQueryHandler{service: service}
}

func (h *DodoInUseQueryHandler) Handle(ctx context.Context, request DodoInUseQuery) (DodoInUseResponse, error) {
	inUse, err := h.service.DodoInUse(ctx, request.Dodo, uuid.Nil)
	if err != nil {
		return DodoInUseResponse{}, core.NewCommandError(500, err, core.WithReason("failed to reach session store"))
	}

	return DodoInUseResponse{InUse: inUse}, nil
}
