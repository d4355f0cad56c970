package domain

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

type Level int

const (
	LevelNormal Level = iota
	LevelVerifier
	LevelModerator
	LevelAdmin
)

var levelNames = []string{"Normal Player", "Verifier", "Moderator", "Admin"}

func (l Level) String() string {
	if l < LevelNormal || l > LevelAdmin {
		return fmt.Sprintf("Level(%d)", int(l))
	}

	return levelNames[l]
}

const (
	MaxUsernameLength         = 50
	MaxPasswordLength         = 100
	MaxPlayerNameLength       = 30
	MaxIslandNameLength       = 30
	MaxVerificationPostLength = 30
)

var (
	usernameRegex         = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	playerNameRegex       = regexp.MustCompile(`^[a-zA-Z0-9 \-_/´` + "`" + `'"!$§%&.:,;#+=~\[\]()]+$`)
	islandNameRegex       = playerNameRegex
	verificationPostRegex = regexp.MustCompile(`^[0-9]*$`)
)

type User struct {
	ID               uuid.UUID  `db:"id"`
	ReadableID       string     `db:"readable_id"`
	Username         string     `db:"username"`
	PlayerName       string     `db:"player_name"`
	PlayerNameHidden bool       `db:"player_name_hidden"`
	IslandName       string     `db:"island_name"`
	IslandNameHidden bool       `db:"island_name_hidden"`
	PasswordHash     string     `db:"password_hash"`
	Registered       time.Time  `db:"registered"`
	Level            Level      `db:"level"`
	Banned           bool       `db:"banned"`
	VerificationPost string     `db:"verification_post"`
	VerifierID       *uuid.UUID `db:"verifier_id"`
}

// Verified reports whether the user may pass verified-only gates: either a
// verification post is on record or the user outranks moderators.
func (u User) Verified() bool {
	return u.VerificationPost != "" || u.Level > LevelModerator
}

func NewUser(username, playerName, islandName, passwordHash string, level Level) User {
	id := uuid.New()

	return User{
		ID:               id,
		ReadableID:       ReadableID(id, UserIDPrefix),
		Username:         username,
		PlayerName:       playerName,
		PlayerNameHidden: true,
		IslandName:       islandName,
		IslandNameHidden: true,
		PasswordHash:     passwordHash,
		Registered:       time.Now().UTC(),
		Level:            level,
	}
}

func ValidateUsername(s string) error {
	if len(s) <= 0 {
		return fmt.Errorf("username cannot be empty")
	}

	if len(s) > MaxUsernameLength {
		return fmt.Errorf("max username length is %d characters", MaxUsernameLength)
	}

	if !usernameRegex.MatchString(s) {
		return fmt.Errorf("username contains illegal characters")
	}

	return nil
}

func ValidatePassword(s string) error {
	if len(s) <= 0 {
		return fmt.Errorf("password cannot be empty")
	}

	if len(s) > MaxPasswordLength {
		return fmt.Errorf("max password length is %d characters", MaxPasswordLength)
	}

	return nil
}

func ValidatePlayerName(s string) error {
	if len(s) <= 0 {
		return fmt.Errorf("player name cannot be empty")
	}

	if len(s) > MaxPlayerNameLength {
		return fmt.Errorf("max player name length is %d characters", MaxPlayerNameLength)
	}

	if !playerNameRegex.MatchString(s) {
		return fmt.Errorf("player name contains illegal characters")
	}

	return nil
}

func ValidateIslandName(s string) error {
	if len(s) <= 0 {
		return fmt.Errorf("island name cannot be empty")
	}

	if len(s) > MaxIslandNameLength {
		return fmt.Errorf("max island name length is %d characters", MaxIslandNameLength)
	}

	if !islandNameRegex.MatchString(s) {
		return fmt.Errorf("island name contains illegal characters")
	}

	return nil
}

func ValidateLevel(l Level) error {
	if l < LevelNormal || l > LevelAdmin {
		return fmt.Errorf("illegal user level")
	}

	return nil
}

func ValidateVerificationPost(s string) error {
	if len(s) <= 0 {
		return nil
	}

	if len(s) > MaxVerificationPostLength {
		return fmt.Errorf("max verification post length is %d characters", MaxVerificationPostLength)
	}

	if !verificationPostRegex.MatchString(s) {
		return fmt.Errorf("verification post contains illegal characters")
	}

	return nil
}
