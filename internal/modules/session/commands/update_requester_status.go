package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/auth"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/core"
	identitydomain "github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/session"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/session/domain"

	"github.com/eskrenkovic/mediator-go"
	"github.com/go-chi/chi"
	"github.com/google/uuid"
)

type UpdateRequesterStatusCommand struct {
	SessionID    string
	TargetUserID string
	Actor        identitydomain.User
	Status       domain.RequesterStatus
}

func (c UpdateRequesterStatusCommand) Validate() error {
	if c.SessionID == "" {
		return fmt.Errorf("invalid SessionID: '%s'", c.SessionID)
	}

	if c.TargetUserID == "" {
		return fmt.Errorf("invalid TargetUserID: '%s'", c.TargetUserID)
	}

	return domain.ValidateRequesterStatus(c.Status)
}

func HandleUpdateRequesterStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := auth.UserFrom(ctx)
	if !ok {
		core.WriteUnauthorized(w, r, nil)
		return
	}

	body, err := core.RequestBody[struct {
		Status domain.RequesterStatus `json:"status"`
	}](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}

	command := UpdateRequesterStatusCommand{
		SessionID:    chi.URLParam(r, "id"),
		TargetUserID: chi.URLParam(r, "userID"),
		Actor:        actor,
		Status:       body.Status,
	}

	if _, err := mediator.Send[UpdateRequesterStatusCommand, core.Unit](ctx, command); err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, nil)
}

type UpdateRequesterStatusCommandHandler struct {
	sessions session.SessionRepository
	users    userFinder
	service  *session.Service
	notifier session.Notifier
}

type userFinder interface {
	FindByReadableID(ctx context.Context, readableID string) (identitydomain.User, bool, error)
}

func NewUpdateRequesterStatusCommandHandler(
	sessions session.SessionRepository,
	users userFinder,
	service *session.Service,
	notifier session.Notifier,
) *UpdateRequesterStatusCommandHandler {
	return &UpdateRequesterStatusCommandHandler{
		sessions: sessions,
		users:    users,
		service:  service,
		notifier: notifier,
	}
}

func (h *UpdateRequesterStatusCommandHandler) Handle(
	ctx context.Context,
	request UpdateRequesterStatusCommand,
) (core.Unit, error) {
	// None is an absence marker, never a target.
	if request.Status == domain.RequesterNone {
		return core.Unit{}, core.NewStateError("cannot set requester status to None")
	}

	current, found, err := h.service.LoadByReadableID(ctx, request.SessionID)
	if err != nil {
		return core.Unit{}, core.NewCommandError(500, err, core.WithReason("failed to reach session store"))
	}

	if !found {
		return core.Unit{}, core.NewNotFoundError("session not found")
	}

	target, found, err := h.users.FindByReadableID(ctx, request.TargetUserID)
	if err != nil {
		return core.Unit{}, core.NewCommandError(500, err, core.WithReason("failed to reach user store"))
	}

	if !found {
		return core.Unit{}, core.NewNotFoundError("user not found")
	}

	isHost := request.Actor.ID == current.HostID
	isSelf := request.Actor.ID == target.ID

	// Third parties get a silent no-op so error timing cannot reveal whether
	// a requester row exists.
	if !isHost && !isSelf {
		return core.Unit{}, nil
	}

	requester, found, err := h.sessions.FindRequester(ctx, current.ID, target.ID)
	if err != nil {
		return core.Unit{}, core.NewCommandError(500, err, core.WithReason("failed to reach session store"))
	}

	from := domain.RequesterNone
	if found {
		from = requester.Status
	}

	if isHost && !isSelf {
		if !found {
			return core.Unit{}, core.NewNotFoundError("no request to act on")
		}

		if !domain.HostTransitionAllowed(from, request.Status) {
			return core.Unit{}, core.NewStateError(
				fmt.Sprintf("illegal transition %s to %s", from, request.Status),
			)
		}

		return h.transition(ctx, current, target.ID, from, request.Status)
	}

	// Self actor. Re-requesting goes through the same policy as a fresh
	// request, including auto-accept and the session guards.
	if request.Status == domain.RequesterSent {
		if !domain.RequesterTransitionAllowed(from, domain.RequesterSent) {
			return core.Unit{}, core.NewStateError(
				fmt.Sprintf("illegal transition %s to %s", from, domain.RequesterSent),
			)
		}

		accessRequest := RequestAccessCommand{SessionID: request.SessionID, User: request.Actor}
		if _, err := mediator.Send[RequestAccessCommand, RequestAccessResponse](ctx, accessRequest); err != nil {
			return core.Unit{}, err
		}

		return core.Unit{}, nil
	}

	if !domain.RequesterTransitionAllowed(from, request.Status) {
		return core.Unit{}, core.NewStateError(
			fmt.Sprintf("illegal transition %s to %s", from, request.Status),
		)
	}

	return h.transition(ctx, current, target.ID, from, request.Status)
}

func (h *UpdateRequesterStatusCommandHandler) transition(
	ctx context.Context,
	sess domain.Session,
	userID uuid.UUID,
	from domain.RequesterStatus,
	to domain.RequesterStatus,
) (core.Unit, error) {
	transitioned, err := h.sessions.TransitionRequester(ctx, sess.ID, userID, from, to)
	if err != nil {
		return core.Unit{}, core.NewCommandError(500, err, core.WithReason("failed to persist status change"))
	}

	// A lost race means the row moved under us; the caller re-reads to see
	// where it ended up.
	if !transitioned {
		return core.Unit{}, core.NewConflictError("request changed concurrently, reload and retry")
	}

	requester, found, err := h.sessions.FindRequester(ctx, sess.ID, userID)
	if err == nil && found {
		h.notifier.RequesterStatusChanged(ctx, sess, requester)
	}

	return core.Unit{}, nil
}
