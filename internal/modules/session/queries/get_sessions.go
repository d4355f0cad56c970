package queries

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/auth"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/core"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/identity"
	identitydomain "github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/session"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/session/domain"

	"github.com/eskrenkovic/mediator-go"
)

type GetSessionsQuery struct {
	Viewer         *identitydomain.User
	MinTurnipPrice int
}

func (q GetSessionsQuery) Validate() error {
	if err := domain.ValidateTurnipPrice(q.MinTurnipPrice); err != nil {
		return fmt.Errorf("invalid MinTurnipPrice: %w", err)
	}

	return nil
}

func HandleGetSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := GetSessionsQuery{}
	if viewer, ok := auth.UserFrom(ctx); ok {
		query.Viewer = &viewer
	}

	if raw := r.URL.Query().Get("min_turnip_price"); raw != "" {
		minPrice, err := strconv.Atoi(raw)
		if err != nil {
			core.WriteBadRequest(w, r, fmt.Errorf("invalid min_turnip_price: '%s'", raw))
			return
		}
		query.MinTurnipPrice = minPrice
	}

	views, err := mediator.Send[GetSessionsQuery, []domain.SessionView](ctx, query)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, views)
}

type GetSessionsQueryHandler struct {
	sessions session.SessionRepository
	users    identity.UserRepository
	service  *session.Service
}

func NewGetSessionsQueryHandler(
	sessions session.SessionRepository,
	users identity.UserRepository,
	service *session.Service,
) *GetSessionsQueryHandler {
	return &GetSessionsQueryHandler{sessions: sessions, users: users, service: service}
}

func (h *GetSessionsQueryHandler) Handle(
	ctx context.Context,
	request GetSessionsQuery,
) ([]domain.SessionView, error) {
	viewer := request.Viewer
	moderator := viewer != nil && viewer.Level >= identitydomain.LevelModerator

	sessions, err := h.service.List(ctx, true)
	if err != nil {
		return nil, core.NewCommandError(500, err, core.WithReason("failed to reach session store"))
	}

	// Moderators see every session. Everyone else sees listed ones plus
	// their own unlisted ones.
	if !moderator {
		sessions = core.Filter(sessions, func(s domain.Session) bool {
			return !s.Unlisted || (viewer != nil && s.HostID == viewer.ID)
		})
	}

	if request.MinTurnipPrice > 0 {
		sessions = core.Filter(sessions, func(s domain.Session) bool {
			return s.TurnipPrice >= request.MinTurnipPrice
		})
	}

	views := make([]domain.SessionView, 0, len(sessions))
	for _, current := range sessions {
		// Sessions of hosts who blocked the viewer stay invisible, except
		// to moderators.
		if viewer != nil && !moderator {
			blocked, err := h.users.HasBlocked(ctx, current.HostID, viewer.ID)
			if err != nil {
				return nil, core.NewCommandError(500, err, core.WithReason("failed to resolve user relations"))
			}

			if blocked {
				continue
			}
		}

		view, err := ProjectSessionForViewer(ctx, h.sessions, h.users, viewer, current)
		if err != nil {
			return nil, err
		}

		views = append(views, view)
	}

	return views, nil
}
