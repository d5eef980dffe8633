// Package progression orchestrates quest state for users: per-quest status
// flags, the chapter visibility scan, claim-all selection, and reset
// operations with party propagation and persistence triggers.
package progression

import (
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/DianeXD/BetterQuesting/internal/party"
	"github.com/DianeXD/BetterQuesting/internal/quest"
	"github.com/DianeXD/BetterQuesting/internal/telemetry"
)

// PrivilegeChecker is the external authorization collaborator. Editors see
// hidden content and get forced-true chapter flags.
type PrivilegeChecker interface {
	CanUserEdit(userID uuid.UUID) bool
}

// VisibilityOverride lets an external layer hide quests whose own policy is
// ALWAYS (editor-configured extra hiding). Nil means policy only.
type VisibilityOverride func(q *quest.Quest, userID uuid.UUID) bool

// Store receives the persistence trigger after every mutation.
type Store interface {
	Save(db *quest.Database) error
}

// View is the session state a query runs under. It is passed explicitly on
// every call; the engine holds no per-screen globals.
type View struct {
	UserID uuid.UUID
	// ViewMode forces chapters visible without granting edit rights.
	ViewMode bool
}

// Flags is the per-quest status exposed to callers.
type Flags struct {
	Unlocked     bool `json:"unlocked"`
	Complete     bool `json:"complete"`
	Show         bool `json:"show"`
	PendingClaim bool `json:"pendingClaim"`
}

// ChapterStatus is the folded state of one quest line for a user.
type ChapterStatus struct {
	LineID       int    `json:"lineId"`
	Name         string `json:"name"`
	Show         bool   `json:"show"`
	Unlocked     bool   `json:"unlocked"`
	Complete     bool   `json:"complete"`
	AllComplete  bool   `json:"allComplete"`
	PendingClaim bool   `json:"pendingClaim"`
}

// ResetScope selects how far a reset operation propagates.
type ResetScope string

const (
	ResetUser  ResetScope = "user"
	ResetParty ResetScope = "party"
	ResetAll   ResetScope = "all"
)

type Options struct {
	DB      *quest.Database
	Lines   []*quest.Line
	Parties party.Directory
	Priv    PrivilegeChecker
	Visible VisibilityOverride
	Store   Store
	Events  telemetry.Repository
	Logger  *log.Logger
}

type Engine struct {
	mu    sync.RWMutex
	db    *quest.Database
	lines []*quest.Line

	parties party.Directory
	priv    PrivilegeChecker
	visible VisibilityOverride
	store   Store
	events  telemetry.Repository
	logger  *log.Logger
}

func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Parties == nil {
		opts.Parties = party.None{}
	}
	return &Engine{
		db:      opts.DB,
		lines:   opts.Lines,
		parties: opts.Parties,
		priv:    opts.Priv,
		visible: opts.Visible,
		store:   opts.Store,
		events:  opts.Events,
		logger:  opts.Logger,
	}
}

func (e *Engine) DB() *quest.Database {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.db
}

func (e *Engine) Lines() []*quest.Line {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lines
}

// Reload swaps in freshly authored content. Persisted progress should be
// re-applied by the caller before the swap; the engine only exchanges the
// pointers.
func (e *Engine) Reload(db *quest.Database, lines []*quest.Line) {
	e.mu.Lock()
	e.db = db
	e.lines = lines
	e.mu.Unlock()

	e.record(telemetry.EventContentReloaded, telemetry.EventMetadata{
		"quests": db.Len(),
		"lines":  len(lines),
	})
}

func (e *Engine) canEdit(userID uuid.UUID) bool {
	return e.priv != nil && e.priv.CanUserEdit(userID)
}

// isQuestShown evaluates the quest's visibility policy for the user,
// delegating ALWAYS quests to the external override when one is set.
func (e *Engine) isQuestShown(q *quest.Quest, view View) bool {
	if e.canEdit(view.UserID) || view.ViewMode {
		return true
	}
	switch q.Visibility {
	case quest.VisHidden:
		return false
	case quest.VisUnlocked:
		return q.IsUnlocked(e.DB(), view.UserID)
	case quest.VisCompleted:
		return q.IsComplete(view.UserID)
	default:
		if e.visible != nil {
			return e.visible(q, view.UserID)
		}
		return true
	}
}

// QuestFlags computes the status flags for a single quest.
func (e *Engine) QuestFlags(view View, questID int) (Flags, bool) {
	db := e.DB()
	q, ok := db.Get(questID)
	if !ok {
		return Flags{}, false
	}
	return Flags{
		Unlocked:     q.IsUnlocked(db, view.UserID),
		Complete:     q.IsComplete(view.UserID),
		Show:         e.isQuestShown(q, view),
		PendingClaim: q.CanClaimBasically(view.UserID),
	}, true
}

// Chapters computes the visibility scan over every quest line. Hidden lines
// are skipped for non-editors; COMPLETED- and UNLOCKED-policy lines are
// excluded entirely until their rollup qualifies. The fold over member
// quests short-circuits once no further quest can change the flags.
func (e *Engine) Chapters(view View) []ChapterStatus {
	db := e.DB()
	canEdit := e.canEdit(view.UserID)

	var out []ChapterStatus
	for _, line := range e.Lines() {
		vis := line.Visibility
		if vis == "" {
			vis = quest.VisAlways
		}
		if !canEdit && vis == quest.VisHidden {
			continue
		}

		show := canEdit
		unlocked := canEdit
		complete := canEdit
		allComplete := true
		pendingClaim := false

		if view.ViewMode {
			show = true
		}

		for _, q := range line.Quests(db) {
			if allComplete && !q.CompletedForLine(db, view.UserID) {
				allComplete = false
			}
			if !pendingClaim && q.CanClaimBasically(view.UserID) {
				pendingClaim = true
			}
			if !unlocked && q.IsUnlocked(db, view.UserID) {
				unlocked = true
			}
			if !complete && q.IsComplete(view.UserID) {
				complete = true
			}
			if !show && e.isQuestShown(q, view) {
				show = true
			}
			if unlocked && complete && show && pendingClaim && !allComplete {
				break
			}
		}

		if vis == quest.VisCompleted && !complete {
			continue
		}
		if vis == quest.VisUnlocked && !unlocked {
			continue
		}

		out = append(out, ChapterStatus{
			LineID:       line.ID,
			Name:         line.Name,
			Show:         show,
			Unlocked:     unlocked,
			Complete:     complete,
			AllComplete:  allComplete,
			PendingClaim: pendingClaim,
		})
	}
	return out
}

// ClaimAllEligible selects the quest IDs whose rewards the user can claim
// right now. A nil working set means every quest in the database. The
// engine only selects; reward issuance belongs to the external sink.
func (e *Engine) ClaimAllEligible(view View, working []int) []int {
	db := e.DB()

	var quests []*quest.Quest
	if working == nil {
		quests = db.Ordered()
	} else {
		for _, id := range working {
			if q, ok := db.Get(id); ok {
				quests = append(quests, q)
			}
		}
	}

	var out []int
	for _, q := range quests {
		if len(q.Rewards) > 0 && q.CanClaim(db, view.UserID) {
			out = append(out, q.ID)
		}
	}
	return out
}

// MarkClaimed records reward collection for the given quests after the
// sink has issued them, then persists.
func (e *Engine) MarkClaimed(view View, questIDs []int) {
	db := e.DB()
	for _, id := range questIDs {
		q, ok := db.Get(id)
		if !ok {
			e.logger.Printf("warn: claim: unknown quest %d, skipped", id)
			continue
		}
		q.SetClaimed(view.UserID, true)
		e.record(telemetry.EventRewardClaimed, telemetry.EventMetadata{
			"quest_id": strconv.Itoa(id),
			"user_id":  view.UserID.String(),
		})
	}
	e.persist()
}

// SetTaskCompletion flips one task's completion for the user (and their
// party), then persists. Emits a quest-completed event when the quest
// crossed into completion.
func (e *Engine) SetTaskCompletion(view View, questID, taskIndex int, state bool) error {
	db := e.DB()
	q, ok := db.Get(questID)
	if !ok {
		return fmt.Errorf("progression: unknown quest %d", questID)
	}
	if taskIndex < 0 || taskIndex >= len(q.Tasks) {
		return fmt.Errorf("progression: quest %d has no task %d", questID, taskIndex)
	}

	wasComplete := q.IsComplete(view.UserID)
	q.Tasks[taskIndex].SetCompletion(e.parties, view.UserID, state)

	if state {
		e.record(telemetry.EventTaskCompleted, telemetry.EventMetadata{
			"quest_id":   strconv.Itoa(questID),
			"task_index": taskIndex,
			"user_id":    view.UserID.String(),
		})
		if !wasComplete && q.IsComplete(view.UserID) {
			e.record(telemetry.EventQuestCompleted, telemetry.EventMetadata{
				"quest_id": strconv.Itoa(questID),
				"user_id":  view.UserID.String(),
			})
		}
	}

	e.persist()
	return nil
}

// Detect runs task detection for a quest (the player's manual "check now").
func (e *Engine) Detect(view View, questID int) (Flags, error) {
	db := e.DB()
	q, ok := db.Get(questID)
	if !ok {
		return Flags{}, fmt.Errorf("progression: unknown quest %d", questID)
	}

	wasComplete := q.IsComplete(view.UserID)
	nowComplete := q.Detect(e.parties, view.UserID)

	e.record(telemetry.EventTaskDetected, telemetry.EventMetadata{
		"quest_id": strconv.Itoa(questID),
		"user_id":  view.UserID.String(),
	})
	if !wasComplete && nowComplete {
		e.record(telemetry.EventQuestCompleted, telemetry.EventMetadata{
			"quest_id": strconv.Itoa(questID),
			"user_id":  view.UserID.String(),
		})
	}

	e.persist()
	flags, _ := e.QuestFlags(view, questID)
	return flags, nil
}

// AdvanceTask adds measured progress to a counter task.
func (e *Engine) AdvanceTask(view View, questID, taskIndex, n int) (int, error) {
	db := e.DB()
	q, ok := db.Get(questID)
	if !ok {
		return 0, fmt.Errorf("progression: unknown quest %d", questID)
	}
	if taskIndex < 0 || taskIndex >= len(q.Tasks) {
		return 0, fmt.Errorf("progression: quest %d has no task %d", questID, taskIndex)
	}
	counter, ok := q.Tasks[taskIndex].(*quest.CounterTask)
	if !ok {
		return 0, fmt.Errorf("progression: quest %d task %d is not a counter", questID, taskIndex)
	}

	wasComplete := q.IsComplete(view.UserID)
	count := counter.Advance(e.parties, view.UserID, n)

	if counter.IsComplete(view.UserID) {
		e.record(telemetry.EventTaskCompleted, telemetry.EventMetadata{
			"quest_id":   strconv.Itoa(questID),
			"task_index": taskIndex,
			"user_id":    view.UserID.String(),
		})
		if !wasComplete && q.IsComplete(view.UserID) {
			e.record(telemetry.EventQuestCompleted, telemetry.EventMetadata{
				"quest_id": strconv.Itoa(questID),
				"user_id":  view.UserID.String(),
			})
		}
	}

	e.persist()
	return count, nil
}

// Reset clears quest progress at the requested scope, then persists.
func (e *Engine) Reset(view View, questID int, scope ResetScope) error {
	db := e.DB()
	q, ok := db.Get(questID)
	if !ok {
		return fmt.Errorf("progression: unknown quest %d", questID)
	}

	switch scope {
	case ResetParty:
		q.ResetPartyProgress(e.parties, view.UserID)
	case ResetAll:
		q.ResetAllProgress()
	default:
		q.ResetProgress(view.UserID)
	}

	e.record(telemetry.EventProgressReset, telemetry.EventMetadata{
		"quest_id": strconv.Itoa(questID),
		"user_id":  view.UserID.String(),
		"scope":    string(scope),
	})
	e.persist()
	return nil
}

// persist triggers the save collaborator. A failed save is logged, never
// fatal; the in-memory state stays authoritative.
func (e *Engine) persist() {
	if e.store == nil {
		return
	}
	if err := e.store.Save(e.DB()); err != nil {
		e.logger.Printf("warn: save progress: %v", err)
	}
}

func (e *Engine) record(typ telemetry.EventType, meta telemetry.EventMetadata) {
	if e.events == nil {
		return
	}
	if err := e.events.RecordEvent(typ, meta); err != nil {
		e.logger.Printf("warn: record event %s: %v", typ, err)
	}
}
