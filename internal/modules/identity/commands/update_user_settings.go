package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/eskrenkovic/dodo-exchange/internal/modules/auth"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/core"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/identity"
	"github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"

	"github.com/eskrenkovic/mediator-go"
	"github.com/go-chi/chi"
)

// Setting keys accepted by the user settings endpoint.
const (
	SettingPlayerName       = "player_name"
	SettingIslandName       = "island_name"
	SettingPlayerNameHidden = "player_name_hidden"
	SettingIslandNameHidden = "island_name_hidden"
	SettingPassword         = "password"
	SettingStarred          = "starred"
	SettingBlocked          = "blocked"
	SettingLevel            = "level"
	SettingBanned           = "banned"
	SettingVerificationPost = "verification_post"
)

type UserSettingChange struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type UpdateUserSettingsCommand struct {
	TargetID string
	Actor    domain.User
	Changes  []UserSettingChange
}

func (c UpdateUserSettingsCommand) Validate() error {
	if c.TargetID == "" {
		return fmt.Errorf("invalid TargetID: '%s'", c.TargetID)
	}

	if len(c.Changes) == 0 {
		return fmt.Errorf("no changes given")
	}

	return nil
}

func HandleUpdateUserSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := auth.UserFrom(ctx)
	if !ok {
		core.WriteUnauthorized(w, r, nil)
		return
	}

	body, err := core.RequestBody[struct {
		Changes []UserSettingChange `json:"changes"`
	}](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}

	command := UpdateUserSettingsCommand{
		TargetID: chi.URLParam(r, "id"),
		Actor:    actor,
		Changes:  body.Changes,
	}

	if _, err := mediator.Send[UpdateUserSettingsCommand, core.Unit](ctx, command); err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, nil)
}

type UpdateUserSettingsCommandHandler struct {
	users  identity.UserRepository
	hasher *domain.PasswordHasher
}

func NewUpdateUserSettingsCommandHandler(
	users identity.UserRepository,
	hasher *domain.PasswordHasher,
) *UpdateUserSettingsCommandHandler {
	return &UpdateUserSettingsCommandHandler{users: users, hasher: hasher}
}

// Handle applies a settings batch atomically in the all-or-nothing sense: a
// single invalid or unauthorized change rejects the whole batch before
// anything is written.
func (h *UpdateUserSettingsCommandHandler) Handle(
	ctx context.Context,
	request UpdateUserSettingsCommand,
) (core.Unit, error) {
	target, found, err := h.users.FindByReadableID(ctx, request.TargetID)
	if err != nil {
		return core.Unit{}, core.NewCommandError(500, err, core.WithReason("failed to reach user store"))
	}

	if !found {
		return core.Unit{}, core.NewNotFoundError("user not found")
	}

	applies := make([]func(context.Context) error, 0, len(request.Changes))

	for _, change := range request.Changes {
		apply, err := h.prepare(request.Actor, target, change)
		if err != nil {
			return core.Unit{}, err
		}

		applies = append(applies, apply)
	}

	for _, apply := range applies {
		if err := apply(ctx); err != nil {
			return core.Unit{}, core.NewCommandError(500, err, core.WithReason("failed to persist settings change"))
		}
	}

	return core.Unit{}, nil
}

// prepare validates and authorizes one change and returns its write. Nothing
// is persisted here.
func (h *UpdateUserSettingsCommandHandler) prepare(
	actor domain.User,
	target domain.User,
	change UserSettingChange,
) (func(context.Context) error, error) {
	self := actor.ID == target.ID
	moderator := actor.Level >= domain.LevelModerator

	switch change.Key {
	case SettingPlayerName:
		value, err := stringValue(change)
		if err != nil {
			return nil, err
		}
		if err := domain.ValidatePlayerName(value); err != nil {
			return nil, core.NewValidationError(err.Error())
		}
		if !self && !moderator {
			return nil, core.NewAuthorizationError("cannot change another user's player name")
		}
		return func(ctx context.Context) error {
			return h.users.SetPlayerName(ctx, target.ID, value)
		}, nil

	case SettingIslandName:
		value, err := stringValue(change)
		if err != nil {
			return nil, err
		}
		if err := domain.ValidateIslandName(value); err != nil {
			return nil, core.NewValidationError(err.Error())
		}
		if !self && !moderator {
			return nil, core.NewAuthorizationError("cannot change another user's island name")
		}
		return func(ctx context.Context) error {
			return h.users.SetIslandName(ctx, target.ID, value)
		}, nil

	case SettingPlayerNameHidden:
		value, err := boolValue(change)
		if err != nil {
			return nil, err
		}
		if !self && !moderator {
			return nil, core.NewAuthorizationError("cannot change another user's visibility settings")
		}
		return func(ctx context.Context) error {
			return h.users.SetPlayerNameHidden(ctx, target.ID, value)
		}, nil

	case SettingIslandNameHidden:
		value, err := boolValue(change)
		if err != nil {
			return nil, err
		}
		if !self && !moderator {
			return nil, core.NewAuthorizationError("cannot change another user's visibility settings")
		}
		return func(ctx context.Context) error {
			return h.users.SetIslandNameHidden(ctx, target.ID, value)
		}, nil

	case SettingPassword:
		value, err := stringValue(change)
		if err != nil {
			return nil, err
		}
		if err := domain.ValidatePassword(value); err != nil {
			return nil, core.NewValidationError(err.Error())
		}
		if !self {
			return nil, core.NewAuthorizationError("cannot change another user's password")
		}
		return func(ctx context.Context) error {
			passwordHash, err := h.hasher.HashPassword(value)
			if err != nil {
				return err
			}
			return h.users.SetPasswordHash(ctx, target.ID, passwordHash)
		}, nil

	case SettingStarred:
		value, err := boolValue(change)
		if err != nil {
			return nil, err
		}
		if self {
			return nil, core.NewValidationError("cannot star yourself")
		}
		return func(ctx context.Context) error {
			return h.users.SetStarred(ctx, actor.ID, target.ID, value)
		}, nil

	case SettingBlocked:
		value, err := boolValue(change)
		if err != nil {
			return nil, err
		}
		if self {
			return nil, core.NewValidationError("cannot block yourself")
		}
		return func(ctx context.Context) error {
			return h.users.SetBlocked(ctx, actor.ID, target.ID, value)
		}, nil

	case SettingLevel:
		value, err := intValue(change)
		if err != nil {
			return nil, err
		}
		level := domain.Level(value)
		if err := domain.ValidateLevel(level); err != nil {
			return nil, core.NewValidationError(err.Error())
		}
		if actor.Level < domain.LevelAdmin {
			return nil, core.NewAuthorizationError("only admins can change user levels")
		}
		if self {
			return nil, core.NewValidationError("cannot change own level")
		}
		return func(ctx context.Context) error {
			return h.users.SetLevel(ctx, target.ID, level)
		}, nil

	case SettingBanned:
		value, err := boolValue(change)
		if err != nil {
			return nil, err
		}
		if !moderator {
			return nil, core.NewAuthorizationError("only moderators can ban users")
		}
		if target.Level >= actor.Level {
			return nil, core.NewAuthorizationError("cannot ban a user of equal or higher level")
		}
		return func(ctx context.Context) error {
			return h.users.SetBanned(ctx, target.ID, value)
		}, nil

	case SettingVerificationPost:
		value, err := stringValue(change)
		if err != nil {
			return nil, err
		}
		if err := domain.ValidateVerificationPost(value); err != nil {
			return nil, core.NewValidationError(err.Error())
		}
		if actor.Level < domain.LevelVerifier {
			return nil, core.NewAuthorizationError("only verifiers can record verification posts")
		}
		return func(ctx context.Context) error {
			return h.users.SetVerification(ctx, target.ID, value, actor.ID)
		}, nil

	default:
		return nil, core.NewValidationError(fmt.Sprintf("unknown setting: '%s'", change.Key))
	}
}

func stringValue(change UserSettingChange) (string, error) {
	var value string
	if err := json.Unmarshal(change.Value, &value); err != nil {
		return "", core.NewValidationError(fmt.Sprintf("setting '%s' expects a string", change.Key))
	}
	return value, nil
}

func boolValue(change UserSettingChange) (bool, error) {
	var value bool
	if err := json.Unmarshal(change.Value, &value); err != nil {
		return false, core.NewValidationError(fmt.Sprintf("setting '%s' expects a boolean", change.Key))
	}
	return value, nil
}

func intValue(change UserSettingChange) (int, error) {
	var value int
	if err := json.Unmarshal(change.Value, &value); err != nil {
		return 0, core.NewValidationError(fmt.Sprintf("setting '%s' expects a number", change.Key))
	}
	return value, nil
}
