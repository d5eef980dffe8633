package quest

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/DianeXD/BetterQuesting/internal/party"
)

const fieldCompleteUsers = "completeUsers"

// progressSet is the completion-state core embedded by every task kind: a
// thread-safe set of users who have completed the task, party fan-out on
// mutation, and the versioned progress (de)serialization contract.
//
// Readers during a concurrent mutation observe either the old or the new
// membership, never a half-applied party fan-out; the mutex covers the
// whole fan-out for that reason.
type progressSet struct {
	mu       sync.Mutex
	complete map[uuid.UUID]struct{}

	// legacy holds a one-shot migration buffer. Old save files embedded
	// completeUsers in the quest definition record; when ReadDefinition
	// sees that shape it parks the record here and the next ReadProgress
	// consumes it in preference to its own argument, then clears it.
	// Progress is read exactly once per load per task instance, so the
	// window cannot re-trigger.
	legacy map[string]any
}

func newProgressSet() progressSet {
	return progressSet{complete: map[uuid.UUID]struct{}{}}
}

func (p *progressSet) IsComplete(userID uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.complete[userID]
	return ok
}

func (p *progressSet) Participation(userID uuid.UUID) float64 {
	if p.IsComplete(userID) {
		return 1
	}
	return 0
}

func (p *progressSet) SetCompletion(dir party.Directory, userID uuid.UUID, state bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	members := []uuid.UUID{userID}
	if dir != nil {
		if pt, ok := dir.PartyOf(userID); ok {
			members = pt.Members
		}
	}
	for _, m := range members {
		if state {
			p.complete[m] = struct{}{}
		} else {
			delete(p.complete, m)
		}
	}
}

func (p *progressSet) ResetProgress(userID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.complete, userID)
}

func (p *progressSet) ResetPartyProgress(dir party.Directory, userID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if dir != nil {
		if pt, ok := dir.PartyOf(userID); ok {
			for _, m := range pt.Members {
				delete(p.complete, m)
			}
			return
		}
	}
	delete(p.complete, userID)
}

func (p *progressSet) ResetAllProgress() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.complete = map[uuid.UUID]struct{}{}
}

// bufferLegacy parks a legacy-shaped record for the next ReadProgress call.
func (p *progressSet) bufferLegacy(rec map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := rec[fieldCompleteUsers]; ok {
		p.legacy = rec
	}
}

// takeRecord picks the record progress should be read from: the buffered
// legacy record if one is pending, otherwise rec. The buffer is cleared
// either way so migration fires at most once per load cycle.
func (p *progressSet) takeRecord(rec map[string]any) map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.legacy != nil {
		rec = p.legacy
		p.legacy = nil
	}
	return rec
}

// writeUsers emits the completion set, optionally restricted to filter.
func (p *progressSet) writeUsers(filter []uuid.UUID) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	keep := func(id uuid.UUID) bool {
		if filter == nil {
			return true
		}
		for _, f := range filter {
			if f == id {
				return true
			}
		}
		return false
	}

	out := make([]string, 0, len(p.complete))
	for id := range p.complete {
		if keep(id) {
			out = append(out, id.String())
		}
	}
	return out
}

// readUsers replaces the completion set from a record's completeUsers
// field. Entries that fail to parse are skipped and reported; the rest of
// the set still loads.
func (p *progressSet) readUsers(rec map[string]any) []error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.complete = map[uuid.UUID]struct{}{}

	raw, ok := rec[fieldCompleteUsers]
	if !ok {
		return nil
	}

	var errs []error
	add := func(s string) {
		id, err := uuid.Parse(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("completeUsers: parse %q: %w", s, err))
			return
		}
		p.complete[id] = struct{}{}
	}

	// JSON decoding yields []any; in-memory round-trips hand the []string
	// that writeUsers produced straight back.
	switch list := raw.(type) {
	case []string:
		for _, s := range list {
			add(s)
		}
	case []any:
		for _, entry := range list {
			s, ok := entry.(string)
			if !ok {
				errs = append(errs, fmt.Errorf("completeUsers: expected string, got %T", entry))
				continue
			}
			add(s)
		}
	default:
		return []error{fmt.Errorf("completeUsers: expected list, got %T", raw)}
	}
	return errs
}
