package realtime

import (
	"time"

	sessiondomain "github.com/eskrenkovic/dodo-exchange/internal/modules/session/domain"
)

// Inbound message types.
const (
	MessageRequestDodo            = "request_dodo"
	MessageRequesterUpdate        = "requester_update"
	MessageWatchSession           = "watch_session"
	MessageUnwatchSession         = "unwatch_session"
	MessageWatchRequesters        = "watch_session_requesters"
	MessageUnwatchRequesters      = "unwatch_session_requesters"
	MessageWatchRequesterChanges  = "watch_session_requesters_changes"
	MessageUnwatchRequesterChange = "unwatch_session_requesters_changes"
)

// Outbound message types.
const (
	MessageSessionChanged = "session_changed"
	MessageNewRequester   = "new_requester"
	MessageDodo           = "dodo"
	MessageError          = "err"
)

type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type inboundMessage struct {
	Type      string                         `json:"type"`
	SessionID string                         `json:"session"`
	UserID    string                         `json:"user"`
	Status    *sessiondomain.RequesterStatus `json:"status"`
}

// SessionDelta carries only the fields that changed. The dodo field is
// role-gated: hosts and moderators get the new code, accepted requesters get
// an empty string meaning "changed, re-fetch", everyone else gets nothing.
type SessionDelta struct {
	Dodo               *string                        `json:"dodo,omitempty"`
	Title              *string                        `json:"title,omitempty"`
	Description        *string                        `json:"description,omitempty"`
	TurnipPrice        *int                           `json:"turnip_price,omitempty"`
	Unlisted           *bool                          `json:"unlisted,omitempty"`
	PublicRequesters   *bool                          `json:"public_requesters,omitempty"`
	VerifiedOnly       *bool                          `json:"verified_only,omitempty"`
	AutoAcceptVerified *bool                          `json:"auto_accept_verified,omitempty"`
	Status             *sessiondomain.SessionStatus   `json:"status,omitempty"`
	RequesterCounts    *sessiondomain.RequesterCounts `json:"requester_counts,omitempty"`
	Updated            time.Time                      `json:"updated"`
}

type SessionChangedPayload struct {
	SessionID string       `json:"session"`
	Changes   SessionDelta `json:"changes"`
}

type NewRequesterPayload struct {
	SessionID       string                        `json:"session"`
	Requester       sessiondomain.RequesterView   `json:"requester"`
	RequesterCounts sessiondomain.RequesterCounts `json:"requester_counts"`
}

type RequesterUpdatePayload struct {
	SessionID string                         `json:"session"`
	UserID    string                         `json:"user"`
	Status    *sessiondomain.RequesterStatus `json:"status,omitempty"`
	GotDodo   *bool                          `json:"got_dodo,omitempty"`
}

type DodoPayload struct {
	SessionID string `json:"session"`
	Dodo      string `json:"dodo"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
