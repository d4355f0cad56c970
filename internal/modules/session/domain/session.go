package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	identitydomain "github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"

	"github.com/google/uuid"
)

type SessionStatus int

const (
	SessionOpen SessionStatus = iota
	SessionFull
	SessionClosed
)

var sessionStatusNames = []string{"Open", "Full", "Closed"}

func (s SessionStatus) String() string {
	if s < SessionOpen || s > SessionClosed {
		return fmt.Sprintf("SessionStatus(%d)", int(s))
	}

	return sessionStatusNames[s]
}

func ValidateSessionStatus(s SessionStatus) error {
	if s < SessionOpen || s > SessionClosed {
		return fmt.Errorf("illegal session status")
	}

	return nil
}

type RequesterStatus int

const (
	RequesterNone RequesterStatus = iota
	RequesterSent
	RequesterAccepted
	RequesterRejected
	RequesterWithdrawn
)

var requesterStatusNames = []string{"None", "Sent", "Accepted", "Rejected", "Withdrawn"}

func (s RequesterStatus) String() string {
	if s < RequesterNone || s > RequesterWithdrawn {
		return fmt.Sprintf("RequesterStatus(%d)", int(s))
	}

	return requesterStatusNames[s]
}

func ValidateRequesterStatus(s RequesterStatus) error {
	if s < RequesterNone || s > RequesterWithdrawn {
		return fmt.Errorf("illegal requester status")
	}

	return nil
}

const (
	MaxTitleLength       = 50
	MaxDescriptionLength = 1000
	MaxTurnipPrice       = 1000
	DodoLength           = 5
)

var (
	// The dodo alphabet excludes the characters the game itself never issues.
	dodoRegex        = regexp.MustCompile(`^[0-9ABCDEFGHJKLMNPQRSTUVWXY]{5}$`)
	titleRegex       = regexp.MustCompile(`^[a-zA-Z0-9 \-_/´` + "`" + `'"!$§%&.:,;#+=~\[\]()]+$`)
	descriptionRegex = titleRegex
)

type Session struct {
	ID                 uuid.UUID     `db:"id"`
	ReadableID         string        `db:"readable_id"`
	HostID             uuid.UUID     `db:"host_id"`
	Dodo               string        `db:"dodo"`
	Title              string        `db:"title"`
	Description        string        `db:"description"`
	TurnipPrice        int           `db:"turnip_price"`
	Unlisted           bool          `db:"unlisted"`
	PublicRequesters   bool          `db:"public_requesters"`
	VerifiedOnly       bool          `db:"verified_only"`
	AutoAcceptVerified bool          `db:"auto_accept_verified"`
	Status             SessionStatus `db:"status"`
	Created            time.Time     `db:"created"`
	Updated            time.Time     `db:"updated"`
}

type Requester struct {
	SessionID   uuid.UUID       `db:"session_id"`
	UserID      uuid.UUID       `db:"user_id"`
	Status      RequesterStatus `db:"status"`
	RequestedAt time.Time       `db:"requested_at"`
	GotDodo     bool            `db:"got_dodo"`
}

func NewSession(
	host identitydomain.User,
	dodo string,
	title string,
	description string,
	turnipPrice int,
) Session {
	id := uuid.New()
	now := time.Now().UTC()

	return Session{
		ID:          id,
		ReadableID:  identitydomain.ReadableID(id, identitydomain.SessionIDPrefix),
		HostID:      host.ID,
		Dodo:        NormalizeDodo(dodo),
		Title:       title,
		Description: description,
		TurnipPrice: turnipPrice,
		Status:      SessionOpen,
		Created:     now,
		Updated:     now,
	}
}

// NormalizeDodo is the canonical stored form of a code. Codes compare
// case-insensitively everywhere.
func NormalizeDodo(dodo string) string {
	return strings.ToUpper(dodo)
}

func ValidateDodo(dodo string) error {
	if !dodoRegex.MatchString(NormalizeDodo(dodo)) {
		return fmt.Errorf("dodo code must be exactly %d characters from the dodo alphabet", DodoLength)
	}

	return nil
}

func ValidateTitle(s string) error {
	if len(s) <= 0 {
		return fmt.Errorf("title cannot be empty")
	}

	if len(s) > MaxTitleLength {
		return fmt.Errorf("max title length is %d characters", MaxTitleLength)
	}

	if !titleRegex.MatchString(s) {
		return fmt.Errorf("title contains illegal characters")
	}

	return nil
}

func ValidateDescription(s string) error {
	// Empty descriptions are fine.
	if len(s) <= 0 {
		return nil
	}

	if len(s) > MaxDescriptionLength {
		return fmt.Errorf("max description length is %d characters", MaxDescriptionLength)
	}

	if !descriptionRegex.MatchString(s) {
		return fmt.Errorf("description contains illegal characters")
	}

	return nil
}

func ValidateTurnipPrice(price int) error {
	if price < 0 || price > MaxTurnipPrice {
		return fmt.Errorf("turnip price must be between 0 and %d", MaxTurnipPrice)
	}

	return nil
}

// Expired reports whether the session has outlived maxDuration. Expiry is a
// one-way street: callers flip Status to Closed and never back.
func (s Session) Expired(now time.Time, maxDuration time.Duration) bool {
	return now.Sub(s.Created) > maxDuration
}

// HostTransitionAllowed is the transition table for the host acting on a
// requester row. The host decides on pending requests and can reset decided
// ones back to Withdrawn, nothing else.
func HostTransitionAllowed(from, to RequesterStatus) bool {
	switch from {
	case RequesterSent:
		return to == RequesterAccepted || to == RequesterRejected
	case RequesterAccepted, RequesterRejected:
		return to == RequesterWithdrawn
	default:
		return false
	}
}

// RequesterTransitionAllowed is the transition table for a user acting on
// their own row. They can request, re-request and withdraw; only the host
// moves a row out of Accepted or Rejected.
func RequesterTransitionAllowed(from, to RequesterStatus) bool {
	switch from {
	case RequesterNone, RequesterWithdrawn:
		return to == RequesterSent
	case RequesterSent:
		return to == RequesterWithdrawn
	default:
		return false
	}
}
