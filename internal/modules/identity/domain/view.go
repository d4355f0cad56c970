package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Relation carries the viewer-relative star/block facts a projection needs.
// Looking these up is the caller's job so the projection itself stays pure.
type Relation struct {
	Starred bool
	Blocked bool
}

type UserViewSettings struct {
	Level            Level `json:"level"`
	Banned           bool  `json:"banned"`
	Starred          bool  `json:"starred"`
	Blocked          bool  `json:"blocked"`
	PlayerNameHidden bool  `json:"player_name_hidden"`
	IslandNameHidden bool  `json:"island_name_hidden"`
}

// UserView is what one user sees of another, including of themselves. It
// never carries the password hash, and the username only for self and admins.
type UserView struct {
	ID               uuid.UUID        `json:"id"`
	ReadableID       string           `json:"readable_id"`
	Username         string           `json:"username"`
	PlayerName       string           `json:"player_name"`
	IslandName       string           `json:"island_name"`
	Registered       time.Time        `json:"registered"`
	VerificationPost string           `json:"verification_post"`
	VerifierID       *uuid.UUID       `json:"verifier_id,omitempty"`
	Settings         UserViewSettings `json:"settings"`
}

// AbbreviateName reduces a name to the first letter of each word, which is
// what hidden names display as.
func AbbreviateName(name string) string {
	var b strings.Builder

	for _, word := range strings.Fields(name) {
		r := []rune(word)
		b.WriteRune(r[0])
	}

	return b.String()
}

// ProjectUser computes the view of viewed as seen by viewer. A nil viewer is
// an anonymous observer. The rules, most specific first:
//
//   - anonymous: abbreviated-if-hidden names, no username, relation facts false
//   - self or admin: everything, including username
//   - moderator and above: real names, no username
//   - anyone else: real names unless hidden, relation facts relative to viewer
func ProjectUser(viewer *User, viewed User, rel Relation) UserView {
	uv := UserView{
		ID:               viewed.ID,
		ReadableID:       viewed.ReadableID,
		Registered:       viewed.Registered,
		VerificationPost: viewed.VerificationPost,
		VerifierID:       viewed.VerifierID,
		Settings: UserViewSettings{
			Level:            viewed.Level,
			Banned:           viewed.Banned,
			PlayerNameHidden: viewed.PlayerNameHidden,
			IslandNameHidden: viewed.IslandNameHidden,
		},
	}

	if viewed.PlayerNameHidden {
		uv.PlayerName = AbbreviateName(viewed.PlayerName)
	} else {
		uv.PlayerName = viewed.PlayerName
	}

	if viewed.IslandNameHidden {
		uv.IslandName = AbbreviateName(viewed.IslandName)
	} else {
		uv.IslandName = viewed.IslandName
	}

	if viewer == nil {
		return uv
	}

	uv.Settings.Starred = rel.Starred
	uv.Settings.Blocked = rel.Blocked

	switch {
	case viewer.Level >= LevelAdmin || viewer.ID == viewed.ID:
		uv.Username = viewed.Username
		uv.PlayerName = viewed.PlayerName
		uv.IslandName = viewed.IslandName
	case viewer.Level >= LevelModerator:
		uv.PlayerName = viewed.PlayerName
		uv.IslandName = viewed.IslandName
	}

	return uv
}
