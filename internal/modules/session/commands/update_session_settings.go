package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/audit"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/auth"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/core"
	identitydomain "github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/session"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/session/domain"

	"github.com/eskrenkovic/mediator-go"
	"github.com/go-chi/chi"
)

// Setting keys accepted by the session settings endpoint.
const (
	SettingDodo               = "dodo"
	SettingTitle              = "title"
	SettingDescription        = "description"
	SettingTurnipPrice        = "turnip_price"
	SettingUnlisted           = "unlisted"
	SettingPublicRequesters   = "public_requesters"
	SettingVerifiedOnly       = "verified_only"
	SettingAutoAcceptVerified = "auto_accept_verified"
	SettingStatus             = "status"
	SettingDodoLeaked         = "dodo_leaked"
)

type SessionSettingChange struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type UpdateSessionSettingsCommand struct {
	SessionID string
	Actor     identitydomain.User
	Changes   []SessionSettingChange
}

func (c UpdateSessionSettingsCommand) Validate() error {
	if c.SessionID == "" {
		return fmt.Errorf("invalid SessionID: '%s'", c.SessionID)
	}

	if len(c.Changes) == 0 {
		return fmt.Errorf("no changes given")
	}

	return nil
}

func HandleUpdateSessionSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := auth.UserFrom(ctx)
	if !ok {
		core.WriteUnauthorized(w, r, nil)
		return
	}

	body, err := core.RequestBody[struct {
		Changes []SessionSettingChange `json:"changes"`
	}](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}

	command := UpdateSessionSettingsCommand{
		SessionID: chi.URLParam(r, "id"),
		Actor:     actor,
		Changes:   body.Changes,
	}

	if _, err := mediator.Send[UpdateSessionSettingsCommand, core.Unit](ctx, command); err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, nil)
}

type UpdateSessionSettingsCommandHandler struct {
	sessions session.SessionRepository
	service  *session.Service
	notifier session.Notifier
	audit    audit.Sink
}

func NewUpdateSessionSettingsCommandHandler(
	sessions session.SessionRepository,
	service *session.Service,
	notifier session.Notifier,
	auditSink audit.Sink,
) *UpdateSessionSettingsCommandHandler {
	return &UpdateSessionSettingsCommandHandler{
		sessions: sessions,
		service:  service,
		notifier: notifier,
		audit:    auditSink,
	}
}

// Handle applies a settings batch all-or-nothing: every change is validated
// and authorized before anything is written, and a single failure rejects
// the whole batch.
func (h *UpdateSessionSettingsCommandHandler) Handle(
	ctx context.Context,
	request UpdateSessionSettingsCommand,
) (core.Unit, error) {
	current, found, err := h.service.LoadByReadableID(ctx, request.SessionID)
	if err != nil {
		return core.Unit{}, core.NewCommandError(500, err, core.WithReason("failed to reach session store"))
	}

	if !found {
		return core.Unit{}, core.NewNotFoundError("session not found")
	}

	if request.Actor.ID != current.HostID && request.Actor.Level < identitydomain.LevelModerator {
		return core.Unit{}, core.NewAuthorizationError("only the host can change session settings")
	}

	patch := session.SessionPatch{Updated: time.Now().UTC()}
	dodoLeaked := false

	for _, change := range request.Changes {
		if err := h.prepare(current, change, &patch, &dodoLeaked); err != nil {
			return core.Unit{}, err
		}
	}

	if patch.Dodo != nil {
		inUse, err := h.service.DodoInUse(ctx, *patch.Dodo, current.ID)
		if err != nil {
			return core.Unit{}, core.NewCommandError(500, err, core.WithReason("failed to reach session store"))
		}

		if inUse {
			return core.Unit{}, core.NewConflictError("dodo code is already in use")
		}
	}

	closing := patch.Status != nil && *patch.Status == domain.SessionClosed
	if dodoLeaked && patch.Dodo == nil && !closing {
		return core.Unit{}, core.NewValidationError("a leak report requires a code change or closing the session")
	}

	dodoChanged := patch.Dodo != nil && *patch.Dodo != current.Dodo

	switch {
	case dodoChanged:
		// The old code is gone, everyone who fetched it has to re-fetch.
		// Patch and invalidation land in one transaction.
		reset, err := h.sessions.UpdateSessionAndResetGotDodo(ctx, current.ID, patch)
		if err != nil {
			return core.Unit{}, core.NewCommandError(500, err, core.WithReason("failed to persist session settings"))
		}

		updated, _, loadErr := h.service.Load(ctx, current.ID)
		if loadErr == nil {
			for _, userID := range reset {
				h.notifier.GotDodoChanged(ctx, updated, userID, false)
			}
		}

	case !patch.Empty():
		if err := h.sessions.UpdateSession(ctx, current.ID, patch); err != nil {
			return core.Unit{}, core.NewCommandError(500, err, core.WithReason("failed to persist session settings"))
		}
	}

	if dodoLeaked {
		h.audit.RecordCodeLeaked(ctx, current.ID, current.Dodo)
	}

	updated, found, err := h.service.Load(ctx, current.ID)
	if err != nil || !found {
		updated = current
	}

	h.notifier.SessionChanged(ctx, updated, patch, dodoChanged)

	return core.Unit{}, nil
}

// prepare validates and authorizes one change against the current record and
// folds it into the patch. Nothing is persisted here.
func (h *UpdateSessionSettingsCommandHandler) prepare(
	current domain.Session,
	change SessionSettingChange,
	patch *session.SessionPatch,
	dodoLeaked *bool,
) error {
	closed := current.Status == domain.SessionClosed

	// A closed session keeps its content frozen. Only the flags that decide
	// how the dead record is displayed stay editable.
	closedEditable := map[string]bool{
		SettingUnlisted:           true,
		SettingVerifiedOnly:       true,
		SettingAutoAcceptVerified: true,
		SettingDodoLeaked:         true,
	}

	if closed && !closedEditable[change.Key] {
		return core.NewStateError(fmt.Sprintf("cannot change '%s' on a closed session", change.Key))
	}

	switch change.Key {
	case SettingDodo:
		value, err := stringChange(change)
		if err != nil {
			return err
		}
		if err := domain.ValidateDodo(value); err != nil {
			return core.NewValidationError(err.Error())
		}
		normalized := domain.NormalizeDodo(value)
		patch.Dodo = &normalized

	case SettingTitle:
		value, err := stringChange(change)
		if err != nil {
			return err
		}
		if err := domain.ValidateTitle(value); err != nil {
			return core.NewValidationError(err.Error())
		}
		patch.Title = &value

	case SettingDescription:
		value, err := stringChange(change)
		if err != nil {
			return err
		}
		if err := domain.ValidateDescription(value); err != nil {
			return core.NewValidationError(err.Error())
		}
		patch.Description = &value

	case SettingTurnipPrice:
		value, err := intChange(change)
		if err != nil {
			return err
		}
		if err := domain.ValidateTurnipPrice(value); err != nil {
			return core.NewValidationError(err.Error())
		}
		patch.TurnipPrice = &value

	case SettingUnlisted:
		value, err := boolChange(change)
		if err != nil {
			return err
		}
		patch.Unlisted = &value

	case SettingPublicRequesters:
		value, err := boolChange(change)
		if err != nil {
			return err
		}
		patch.PublicRequesters = &value

	case SettingVerifiedOnly:
		value, err := boolChange(change)
		if err != nil {
			return err
		}
		patch.VerifiedOnly = &value

	case SettingAutoAcceptVerified:
		value, err := boolChange(change)
		if err != nil {
			return err
		}
		patch.AutoAcceptVerified = &value

	case SettingStatus:
		value, err := intChange(change)
		if err != nil {
			return err
		}
		status := domain.SessionStatus(value)
		if err := domain.ValidateSessionStatus(status); err != nil {
			return core.NewValidationError(err.Error())
		}
		patch.Status = &status

	case SettingDodoLeaked:
		value, err := boolChange(change)
		if err != nil {
			return err
		}
		*dodoLeaked = value

	default:
		return core.NewValidationError(fmt.Sprintf("unknown setting: '%s'", change.Key))
	}

	return nil
}

func stringChange(change SessionSettingChange) (string, error) {
	var value string
	if err := json.Unmarshal(change.Value, &value); err != nil {
		return "", core.NewValidationError(fmt.Sprintf("setting '%s' expects a string", change.Key))
	}
	return value, nil
}

func boolChange(change SessionSettingChange) (bool, error) {
	var value bool
	if err := json.Unmarshal(change.Value, &value); err != nil {
		return false, core.NewValidationError(fmt.Sprintf("setting '%s' expects a boolean", change.Key))
	}
	return value, nil
}

func intChange(change SessionSettingChange) (int, error) {
	var value int
	if err := json.Unmarshal(change.Value, &value); err != nil {
		return 0, core.NewValidationError(fmt.Sprintf("setting '%s' expects an integer", change.Key))
	}
	return value, nil
}
