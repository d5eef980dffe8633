package quest

import (
	"sync"

	"github.com/google/uuid"

	"github.com/DianeXD/BetterQuesting/internal/party"
)

// Logic is the gate combining a quest's requirement dependencies.
type Logic string

const (
	LogicAnd Logic = "and"
	LogicOr  Logic = "or"
	// LogicXor is choice semantics: unlocked while exactly one requirement
	// is complete. Two or more complete means the choice was already made;
	// the quest is no longer unlockable but counts as settled for
	// chapter-aggregate purposes.
	LogicXor Logic = "xor"
)

// Visibility governs whether a quest (or quest line) is shown to a user.
type Visibility string

const (
	VisAlways    Visibility = "always"
	VisHidden    Visibility = "hidden" // editors only
	VisUnlocked  Visibility = "unlocked"
	VisCompleted Visibility = "completed"
)

// Reward is opaque to the progression core; only non-emptiness and claim
// state matter here. Issuance is the reward sink's job.
type Reward struct {
	Kind   string `json:"kind" yaml:"kind"`
	Item   string `json:"item,omitempty" yaml:"item,omitempty"`
	Amount int    `json:"amount,omitempty" yaml:"amount,omitempty"`
}

// Resolver looks requirement IDs up in the owning database. A missing ID
// resolves to absent, never an error.
type Resolver interface {
	Get(id int) (*Quest, bool)
	// Cyclic reports whether the quest sits on a requirement cycle.
	// Cyclic quests are permanently locked.
	Cyclic(id int) bool
}

// Quest aggregates tasks, requirement dependencies, and claim/visibility
// rules. Task order is significant: the task index keys persisted progress.
type Quest struct {
	ID           int
	Name         string
	Description  string
	Logic        Logic
	Visibility   Visibility
	Requirements []int
	Tasks        []Task
	Rewards      []Reward

	mu      sync.Mutex
	claimed map[uuid.UUID]struct{}
}

func NewQuest(id int) *Quest {
	return &Quest{
		ID:         id,
		Logic:      LogicAnd,
		Visibility: VisAlways,
		claimed:    map[uuid.UUID]struct{}{},
	}
}

// IsComplete reports whether every task is complete for the user. A quest
// with zero tasks is vacuously complete for everyone.
func (q *Quest) IsComplete(userID uuid.UUID) bool {
	for _, t := range q.Tasks {
		if !t.IsComplete(userID) {
			return false
		}
	}
	return true
}

// IsUnlocked evaluates the requirement gate over the requirement quests'
// completion for this user. Requirement IDs that do not resolve are treated
// as satisfied so a dangling reference never locks content permanently.
func (q *Quest) IsUnlocked(db Resolver, userID uuid.UUID) bool {
	if db != nil && db.Cyclic(q.ID) {
		return false
	}
	if len(q.Requirements) == 0 {
		return true
	}

	done := 0
	for _, reqID := range q.Requirements {
		req, ok := resolve(db, reqID)
		if !ok || req.IsComplete(userID) {
			done++
			if q.Logic == LogicOr {
				return true
			}
			if q.Logic == LogicXor && done == 2 {
				// Choice already made; more matches cannot change the
				// answer.
				return false
			}
		}
	}

	switch q.Logic {
	case LogicOr:
		return false
	case LogicXor:
		return done == 1
	default:
		return done == len(q.Requirements)
	}
}

// CompletedForLine is the aggregate-completion predicate used when folding
// a quest line's overall state. A quest counts as settled if it is
// complete, if it is hidden, or if it is an XOR choice whose alternative
// branch was taken; otherwise a made choice would leave the chapter
// permanently "incomplete".
func (q *Quest) CompletedForLine(db Resolver, userID uuid.UUID) bool {
	if q.IsComplete(userID) {
		return true
	}
	if q.Visibility == VisHidden {
		return true
	}
	if q.Logic == LogicXor {
		done := 0
		for _, reqID := range q.Requirements {
			req, ok := resolve(db, reqID)
			if !ok {
				continue
			}
			if req.IsComplete(userID) {
				done++
				if done == 2 {
					return true
				}
			}
		}
	}
	return false
}

// CanClaimBasically reports whether the quest is complete with unclaimed
// rewards for the user. It ignores the unlock gate, which makes it the
// right predicate for "pending claim" indicators.
func (q *Quest) CanClaimBasically(userID uuid.UUID) bool {
	if len(q.Rewards) == 0 || q.HasClaimed(userID) {
		return false
	}
	return q.IsComplete(userID)
}

// CanClaim additionally requires the unlock gate. A quest force-completed
// by an editor but never unlocked cannot be claimed by a normal player.
func (q *Quest) CanClaim(db Resolver, userID uuid.UUID) bool {
	return q.CanClaimBasically(userID) && q.IsUnlocked(db, userID)
}

func (q *Quest) HasClaimed(userID uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, ok := q.claimed[userID]
	return ok
}

// SetClaimed records whether the user has collected this quest's rewards.
func (q *Quest) SetClaimed(userID uuid.UUID, state bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if state {
		q.claimed[userID] = struct{}{}
	} else {
		delete(q.claimed, userID)
	}
}

// Detect runs task-specific detection for every task (the player pressed
// the detect/submit button). Returns true if the quest is now complete.
func (q *Quest) Detect(dir party.Directory, userID uuid.UUID) bool {
	for _, t := range q.Tasks {
		t.Detect(dir, userID)
	}
	return q.IsComplete(userID)
}

// ResetProgress starts a fresh attempt for one user: every task forgets the
// user and their claim record is dropped. Party state for others is
// untouched.
func (q *Quest) ResetProgress(userID uuid.UUID) {
	for _, t := range q.Tasks {
		t.ResetProgress(userID)
	}
	q.SetClaimed(userID, false)
}

// ResetPartyProgress resets every member of the user's party, or just the
// user if they have none.
func (q *Quest) ResetPartyProgress(dir party.Directory, userID uuid.UUID) {
	members := []uuid.UUID{userID}
	if dir != nil {
		if pt, ok := dir.PartyOf(userID); ok {
			members = pt.Members
		}
	}
	for _, t := range q.Tasks {
		t.ResetPartyProgress(dir, userID)
	}
	for _, m := range members {
		q.SetClaimed(m, false)
	}
}

// ResetAllProgress wipes completion and claim state for all users, used
// when re-authoring or reloading the quest definition.
func (q *Quest) ResetAllProgress() {
	for _, t := range q.Tasks {
		t.ResetAllProgress()
	}
	q.mu.Lock()
	q.claimed = map[uuid.UUID]struct{}{}
	q.mu.Unlock()
}

// ClaimedUsers snapshots the claimed set for persistence.
func (q *Quest) ClaimedUsers() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]string, 0, len(q.claimed))
	for id := range q.claimed {
		out = append(out, id.String())
	}
	return out
}

// ReadClaimed replaces the claimed set from persisted strings, skipping
// entries that fail to parse.
func (q *Quest) ReadClaimed(users []string) []error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.claimed = map[uuid.UUID]struct{}{}
	var errs []error
	for _, s := range users {
		id, err := uuid.Parse(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		q.claimed[id] = struct{}{}
	}
	return errs
}

func resolve(db Resolver, id int) (*Quest, bool) {
	if db == nil {
		return nil, false
	}
	return db.Get(id)
}
