package party

import (
	"errors"

	"github.com/google/uuid"
)

// Party is a group of users that share quest progress. Membership is
// resolved at mutation time by the task layer; nothing caches it.
type Party struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Members []uuid.UUID `json:"members"`
}

// HasMember reports whether the user belongs to this party.
func (p Party) HasMember(userID uuid.UUID) bool {
	for _, m := range p.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Directory resolves users to their party. The progression core depends on
// this interface only; the concrete repos below are server wiring.
type Directory interface {
	// PartyOf returns the party the user belongs to, if any.
	PartyOf(userID uuid.UUID) (Party, bool)
}

var (
	ErrNotFound      = errors.New("party: not found")
	ErrAlreadyMember = errors.New("party: user already in a party")
	ErrNotMember     = errors.New("party: user not a member")
)

// None is a Directory that resolves no parties. Useful for solo play and
// tests that exercise single-user semantics.
type None struct{}

func (None) PartyOf(uuid.UUID) (Party, bool) { return Party{}, false }
