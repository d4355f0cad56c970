package domain

import (
	"time"

	identitydomain "github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"

	"github.com/google/uuid"
)

type RequesterCounts struct {
	None      int `json:"none"`
	Sent      int `json:"sent"`
	Accepted  int `json:"accepted"`
	Rejected  int `json:"rejected"`
	Withdrawn int `json:"withdrawn"`
}

func CountRequesters(requesters []Requester) RequesterCounts {
	var counts RequesterCounts

	for _, r := range requesters {
		switch r.Status {
		case RequesterNone:
			counts.None++
		case RequesterSent:
			counts.Sent++
		case RequesterAccepted:
			counts.Accepted++
		case RequesterRejected:
			counts.Rejected++
		case RequesterWithdrawn:
			counts.Withdrawn++
		}
	}

	return counts
}

// Public zeroes the categories that would leak host moderation decisions to
// bystanders.
func (c RequesterCounts) Public() RequesterCounts {
	c.None = 0
	c.Rejected = 0
	c.Withdrawn = 0
	return c
}

type SessionView struct {
	ID                 uuid.UUID               `json:"id"`
	ReadableID         string                  `json:"readable_id"`
	Host               identitydomain.UserView `json:"host"`
	Dodo               string                  `json:"dodo"`
	Title              string                  `json:"title"`
	Description        string                  `json:"description"`
	TurnipPrice        int                     `json:"turnip_price"`
	Unlisted           bool                    `json:"unlisted"`
	PublicRequesters   bool                    `json:"public_requesters"`
	VerifiedOnly       bool                    `json:"verified_only"`
	AutoAcceptVerified bool                    `json:"auto_accept_verified"`
	Status             SessionStatus           `json:"status"`
	Created            time.Time               `json:"created"`
	Updated            time.Time               `json:"updated"`
	RequesterStatus    RequesterStatus         `json:"requester_status"`
	RequesterCounts    RequesterCounts         `json:"requester_counts"`
}

type RequesterView struct {
	SessionID   uuid.UUID               `json:"session_id"`
	User        identitydomain.UserView `json:"user"`
	Status      RequesterStatus         `json:"status"`
	RequestedAt time.Time               `json:"requested_at"`
	GotDodo     bool                    `json:"got_dodo"`
}

// CanSeeDodo reports whether the viewer gets the code in projections. The
// host and moderators always do; accepted requesters go through the
// retrieval flow instead.
func CanSeeDodo(viewer *identitydomain.User, session Session) bool {
	if viewer == nil {
		return false
	}

	return viewer.ID == session.HostID || viewer.Level >= identitydomain.LevelModerator
}

// CanSeeRequesters gates both the requester list and subscriptions to it.
func CanSeeRequesters(viewer *identitydomain.User, session Session) bool {
	if session.PublicRequesters {
		return true
	}

	if viewer == nil {
		return false
	}

	return viewer.ID == session.HostID || viewer.Level >= identitydomain.LevelAdmin
}

// ProjectSession computes the view of a session for the given viewer. The
// host view and the requester rows are inputs so the projection stays pure.
func ProjectSession(
	viewer *identitydomain.User,
	session Session,
	hostView identitydomain.UserView,
	requesters []Requester,
) SessionView {
	view := SessionView{
		ID:                 session.ID,
		ReadableID:         session.ReadableID,
		Host:               hostView,
		Title:              session.Title,
		Description:        session.Description,
		TurnipPrice:        session.TurnipPrice,
		Unlisted:           session.Unlisted,
		PublicRequesters:   session.PublicRequesters,
		VerifiedOnly:       session.VerifiedOnly,
		AutoAcceptVerified: session.AutoAcceptVerified,
		Status:             session.Status,
		Created:            session.Created,
		Updated:            session.Updated,
		RequesterStatus:    RequesterNone,
	}

	if viewer != nil {
		for _, r := range requesters {
			if r.UserID == viewer.ID {
				view.RequesterStatus = r.Status
				break
			}
		}
	}

	counts := CountRequesters(requesters)

	switch {
	case CanSeeDodo(viewer, session):
		view.Dodo = session.Dodo
		view.RequesterCounts = counts
	case session.PublicRequesters:
		view.RequesterCounts = counts.Public()
	}

	return view
}

// ProjectRequester computes the view of a single requester row, or reports
// that the viewer may not see it at all. Absent rows are filtered out of
// collections, never returned null-filled.
func ProjectRequester(
	viewer *identitydomain.User,
	session Session,
	requester Requester,
	userView identitydomain.UserView,
) (RequesterView, bool) {
	visible := session.PublicRequesters ||
		(viewer != nil &&
			(viewer.ID == requester.UserID ||
				viewer.ID == session.HostID ||
				viewer.Level >= identitydomain.LevelAdmin))

	if !visible {
		return RequesterView{}, false
	}

	return RequesterView{
		SessionID:   requester.SessionID,
		User:        userView,
		Status:      requester.Status,
		RequestedAt: requester.RequestedAt,
		GotDodo:     requester.GotDodo,
	}, true
}
