package quest

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/DianeXD/BetterQuesting/internal/party"
)

const (
	KindCheckbox = "checkbox"
	KindCounter  = "counter"

	fieldData         = "data"
	fieldTarget       = "target"
	fieldUserProgress = "userProgress"
)

// kindFields extracts the kind-specific section of a progress record.
// Current-format records nest it under "data"; older flat records mixed
// kind fields in at the top level, so those fall back to the record itself.
func kindFields(rec map[string]any) map[string]any {
	if d, ok := rec[fieldData].(map[string]any); ok {
		return d
	}
	return rec
}

// CheckboxTask is the simplest kind: no measured progress, it completes
// when detected (the player pressed the check button).
type CheckboxTask struct {
	progressSet
}

func NewCheckboxTask() *CheckboxTask {
	return &CheckboxTask{progressSet: newProgressSet()}
}

func (t *CheckboxTask) Kind() string { return KindCheckbox }

func (t *CheckboxTask) Detect(dir party.Directory, userID uuid.UUID) bool {
	t.SetCompletion(dir, userID, true)
	return true
}

func (t *CheckboxTask) ReadDefinition(rec map[string]any) {
	t.bufferLegacy(rec)
}

func (t *CheckboxTask) WriteProgress(filter []uuid.UUID) map[string]any {
	return map[string]any{
		fieldCompleteUsers: t.writeUsers(filter),
	}
}

func (t *CheckboxTask) ReadProgress(rec map[string]any) []error {
	return t.readUsers(t.takeRecord(rec))
}

// CounterTask measures per-user counts toward a target. Counts are
// per-user even in a party; only the completion itself fans out.
type CounterTask struct {
	progressSet

	target int

	cmu    sync.Mutex
	counts map[uuid.UUID]int
}

func NewCounterTask(target int) *CounterTask {
	if target < 1 {
		target = 1
	}
	return &CounterTask{
		progressSet: newProgressSet(),
		target:      target,
		counts:      map[uuid.UUID]int{},
	}
}

func (t *CounterTask) Kind() string { return KindCounter }

func (t *CounterTask) Target() int { return t.target }

// Count returns the user's current progress toward the target.
func (t *CounterTask) Count(userID uuid.UUID) int {
	t.cmu.Lock()
	defer t.cmu.Unlock()

	return t.counts[userID]
}

// Advance adds n to the user's count and completes the task once the
// target is reached.
func (t *CounterTask) Advance(dir party.Directory, userID uuid.UUID, n int) int {
	t.cmu.Lock()
	c := t.counts[userID] + n
	if c < 0 {
		c = 0
	}
	if c > t.target {
		c = t.target
	}
	t.counts[userID] = c
	t.cmu.Unlock()

	if c >= t.target {
		t.SetCompletion(dir, userID, true)
	}
	return c
}

func (t *CounterTask) Detect(dir party.Directory, userID uuid.UUID) bool {
	if t.Count(userID) >= t.target {
		t.SetCompletion(dir, userID, true)
	}
	return t.IsComplete(userID)
}

// Participation overrides the completion-based default with the measured
// fraction.
func (t *CounterTask) Participation(userID uuid.UUID) float64 {
	if t.IsComplete(userID) {
		return 1
	}
	return math.Min(float64(t.Count(userID))/float64(t.target), 1)
}

func (t *CounterTask) ResetProgress(userID uuid.UUID) {
	t.cmu.Lock()
	delete(t.counts, userID)
	t.cmu.Unlock()

	t.progressSet.ResetProgress(userID)
}

func (t *CounterTask) ResetPartyProgress(dir party.Directory, userID uuid.UUID) {
	members := []uuid.UUID{userID}
	if dir != nil {
		if pt, ok := dir.PartyOf(userID); ok {
			members = pt.Members
		}
	}
	t.cmu.Lock()
	for _, m := range members {
		delete(t.counts, m)
	}
	t.cmu.Unlock()

	t.progressSet.ResetPartyProgress(dir, userID)
}

func (t *CounterTask) ResetAllProgress() {
	t.cmu.Lock()
	t.counts = map[uuid.UUID]int{}
	t.cmu.Unlock()

	t.progressSet.ResetAllProgress()
}

func (t *CounterTask) ReadDefinition(rec map[string]any) {
	if v, ok := asInt(rec[fieldTarget]); ok && v > 0 {
		t.target = v
	}
	t.bufferLegacy(rec)
}

func (t *CounterTask) WriteProgress(filter []uuid.UUID) map[string]any {
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

	t.cmu.Lock()
	prog := make(map[string]any, len(t.counts))
	for id, c := range t.counts {
		if keep(id) {
			prog[id.String()] = c
		}
	}
	t.cmu.Unlock()

	return map[string]any{
		fieldCompleteUsers: t.writeUsers(filter),
		fieldData: map[string]any{
			fieldUserProgress: prog,
		},
	}
}

func (t *CounterTask) ReadProgress(rec map[string]any) []error {
	rec = t.takeRecord(rec)
	errs := t.readUsers(rec)

	t.cmu.Lock()
	defer t.cmu.Unlock()

	t.counts = map[uuid.UUID]int{}
	raw, ok := kindFields(rec)[fieldUserProgress]
	if !ok {
		return errs
	}
	prog, ok := raw.(map[string]any)
	if !ok {
		return append(errs, fmt.Errorf("userProgress: expected object, got %T", raw))
	}
	for s, v := range prog {
		id, err := uuid.Parse(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("userProgress: parse %q: %w", s, err))
			continue
		}
		n, ok := asInt(v)
		if !ok {
			errs = append(errs, fmt.Errorf("userProgress[%s]: expected number, got %T", s, v))
			continue
		}
		t.counts[id] = n
	}
	return errs
}

// asInt accepts the numeric shapes JSON and YAML decoding produce.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
