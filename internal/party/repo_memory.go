package party

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory party directory with management operations.
// A user belongs to at most one party at a time; Join enforces this.
type MemoryRepo struct {
	mu      sync.RWMutex
	parties map[string]Party
	byUser  map[uuid.UUID]string
	nextID  int
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		parties: map[string]Party{},
		byUser:  map[uuid.UUID]string{},
	}
}

func (r *MemoryRepo) PartyOf(userID uuid.UUID) (Party, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUser[userID]
	if !ok {
		return Party{}, false
	}
	p, ok := r.parties[id]
	return snapshot(p), ok
}

func (r *MemoryRepo) Get(id string) (Party, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.parties[id]
	return snapshot(p), ok
}

// snapshot copies the member slice so callers iterating a returned party
// never alias the repo's backing array while a mutation rewrites it.
func snapshot(p Party) Party {
	p.Members = append([]uuid.UUID(nil), p.Members...)
	return p
}

// List returns all parties sorted by ID. Stable ordering is nice for
// UI and tests.
func (r *MemoryRepo) List() []Party {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Party, 0, len(r.parties))
	for _, p := range r.parties {
		out = append(out, snapshot(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Create makes a new party with the founder as its only member.
func (r *MemoryRepo) Create(name string, founder uuid.UUID) (Party, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUser[founder]; ok {
		return Party{}, ErrAlreadyMember
	}

	r.nextID++
	p := Party{
		ID:      fmt.Sprintf("party_%d", r.nextID),
		Name:    name,
		Members: []uuid.UUID{founder},
	}
	r.parties[p.ID] = p
	r.byUser[founder] = p.ID
	return p, nil
}

func (r *MemoryRepo) Join(partyID string, userID uuid.UUID) (Party, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.parties[partyID]
	if !ok {
		return Party{}, ErrNotFound
	}
	if cur, ok := r.byUser[userID]; ok {
		if cur == partyID {
			return p, nil
		}
		return Party{}, ErrAlreadyMember
	}

	p = snapshot(p)
	p.Members = append(p.Members, userID)
	r.parties[partyID] = p
	r.byUser[userID] = partyID
	return p, nil
}

// Leave removes the user from their party. The party is dropped entirely
// once its last member leaves.
func (r *MemoryRepo) Leave(userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byUser[userID]
	if !ok {
		return ErrNotMember
	}
	p := r.parties[id]

	members := make([]uuid.UUID, 0, len(p.Members))
	for _, m := range p.Members {
		if m != userID {
			members = append(members, m)
		}
	}
	p.Members = members
	delete(r.byUser, userID)

	if len(p.Members) == 0 {
		delete(r.parties, id)
		return nil
	}
	r.parties[id] = p
	return nil
}

// replaceAll swaps the whole directory state. Used by the file repo on load.
func (r *MemoryRepo) replaceAll(parties []Party) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.parties = map[string]Party{}
	r.byUser = map[uuid.UUID]string{}
	maxID := 0
	for _, p := range parties {
		r.parties[p.ID] = p
		for _, m := range p.Members {
			r.byUser[m] = p.ID
		}
		var n int
		if _, err := fmt.Sscanf(p.ID, "party_%d", &n); err == nil && n > maxID {
			maxID = n
		}
	}
	r.nextID = maxID
}
