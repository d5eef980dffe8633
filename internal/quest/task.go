package quest

import (
	"github.com/google/uuid"

	"github.com/DianeXD/BetterQuesting/internal/party"
)

// Task is one measurable completion condition owned by a quest. Task kinds
// differ in how progress is measured but share this contract; new kinds
// register a factory and the engine never changes.
type Task interface {
	// Kind is the registry name the task was created under.
	Kind() string

	// IsComplete reports whether the user has completed this task.
	IsComplete(userID uuid.UUID) bool

	// Participation is the fraction this user contributed, in [0,1].
	// Defaults to 1/0 from completion state; kinds that track partial
	// progress override it.
	Participation(userID uuid.UUID) float64

	// SetCompletion is the single mutation path for completion state.
	// When state is true the user and every member of their current party
	// are added to the completion set; when false they are all removed.
	// The whole fan-out applies under one critical section.
	SetCompletion(dir party.Directory, userID uuid.UUID, state bool)

	// Detect re-checks task-specific progress for the user and completes
	// the task if it is satisfied. Returns true if the task is complete
	// for the user afterwards.
	Detect(dir party.Directory, userID uuid.UUID) bool

	// ResetProgress removes only this user from the completion set.
	ResetProgress(userID uuid.UUID)

	// ResetPartyProgress resets every member of the user's party, or just
	// the user if they have none.
	ResetPartyProgress(dir party.Directory, userID uuid.UUID)

	// ResetAllProgress clears all completion state for all users.
	ResetAllProgress()

	// ReadDefinition applies authored kind parameters. If the record
	// carries legacy embedded progress it is buffered for the next
	// ReadProgress call (see progressSet).
	ReadDefinition(rec map[string]any)

	// WriteProgress emits the completion set plus kind-specific progress.
	// A non-nil filter restricts the emitted users to that slice.
	WriteProgress(filter []uuid.UUID) map[string]any

	// ReadProgress replaces completion state and kind fields from a
	// record. Malformed entries are skipped and reported; the rest of the
	// record still loads.
	ReadProgress(rec map[string]any) []error
}

// taskFactory builds a fresh, empty task of one kind.
type taskFactory func() Task

var taskKinds = map[string]taskFactory{}

// RegisterTaskKind adds a task kind to the registry. Later registrations
// replace earlier ones, which lets tests stub kinds out.
func RegisterTaskKind(kind string, fn taskFactory) {
	taskKinds[kind] = fn
}

// NewTask builds an empty task of the named kind.
func NewTask(kind string) (Task, bool) {
	fn, ok := taskKinds[kind]
	if !ok {
		return nil, false
	}
	return fn(), true
}

func init() {
	RegisterTaskKind(KindCheckbox, func() Task { return NewCheckboxTask() })
	RegisterTaskKind(KindCounter, func() Task { return NewCounterTask(1) })
}
