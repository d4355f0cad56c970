package domain

import (
	"github.com/google/uuid"
)

// Base58 alphabet without the ambiguous characters 0, O, I and l.
const Base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// readableIDBytes is how many trailing bytes of the uuid make up the
// human-readable ID.
const readableIDBytes = 5

const (
	UserIDPrefix    = "p"
	SessionIDPrefix = "s"
)

// ReadableID derives the short, prefixed, base58 form of an ID that is safe
// to show and share. The underlying uuid stays internal.
func ReadableID(id uuid.UUID, prefix string) string {
	return prefix + base58Encode(id[len(id)-readableIDBytes:])
}

func base58Encode(input []byte) string {
	// big-endian base conversion, small fixed-size input
	digits := []int{0}

	for _, b := range input {
		carry := int(b)
		for i := range digits {
			carry += digits[i] << 8
			digits[i] = carry % 58
			carry /= 58
		}

		for carry > 0 {
			digits = append(digits, carry%58)
			carry /= 58
		}
	}

	out := make([]byte, 0, len(digits))

	for _, b := range input {
		if b != 0 {
			break
		}
		out = append(out, Base58Alphabet[0])
	}

	for i := len(digits) - 1; i >= 0; i-- {
		out = append(out, Base58Alphabet[digits[i]])
	}

	return string(out)
}

func IsValidReadableID(id string) bool {
	if len(id) < 2 {
		return false
	}

	for _, c := range id[1:] {
		found := false
		for _, a := range Base58Alphabet {
			if c == a {
				found = true
				break
			}
		}

		if !found {
			return false
		}
	}

	return true
}
