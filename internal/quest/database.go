package quest

import (
	"fmt"
	"sync"
)

// Database is an ordered, ID-keyed collection of quests. Insertion order is
// preserved so iteration is deterministic for UI listings and the chapter
// visibility scan.
type Database struct {
	mu     sync.RWMutex
	order  []int
	quests map[int]*Quest
	cyclic map[int]bool
}

func NewDatabase() *Database {
	return &Database{
		quests: map[int]*Quest{},
		cyclic: map[int]bool{},
	}
}

// Add appends a quest. IDs are unique within a database.
func (db *Database) Add(q *Quest) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.quests[q.ID]; ok {
		return fmt.Errorf("quest: duplicate id %d", q.ID)
	}
	db.quests[q.ID] = q
	db.order = append(db.order, q.ID)
	return nil
}

// Get looks a quest up by ID. An unknown ID returns absent, never an error.
func (db *Database) Get(id int) (*Quest, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	q, ok := db.quests[id]
	return q, ok
}

// Ordered returns all quests in stable insertion order.
func (db *Database) Ordered() []*Quest {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]*Quest, 0, len(db.order))
	for _, id := range db.order {
		out = append(out, db.quests[id])
	}
	return out
}

func (db *Database) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.order)
}

// Cyclic reports whether the quest was found on a requirement cycle by
// DetectCycles. Cyclic quests are permanently locked.
func (db *Database) Cyclic(id int) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.cyclic[id]
}

// DetectCycles walks the requirement graph and marks every quest on a
// cycle. It returns the marked IDs in insertion order so the caller can log
// them. Dangling requirement IDs are not edges.
//
// The requirement graph has no runtime recursion (unlock checks only look
// one level deep), so a cycle cannot loop forever; it would instead author
// content that can never all complete. Marking such quests locked surfaces
// the authoring mistake instead of hiding it.
func (db *Database) DetectCycles() []int {
	db.mu.Lock()
	defer db.mu.Unlock()

	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := map[int]int{}
	onCycle := map[int]bool{}

	var walk func(id int, stack []int)
	walk = func(id int, stack []int) {
		color[id] = grey
		stack = append(stack, id)
		q := db.quests[id]
		for _, reqID := range q.Requirements {
			if _, ok := db.quests[reqID]; !ok {
				continue
			}
			switch color[reqID] {
			case white:
				walk(reqID, stack)
			case grey:
				// Everyone from reqID's position in the stack onward is
				// on the cycle.
				for i := len(stack) - 1; i >= 0; i-- {
					onCycle[stack[i]] = true
					if stack[i] == reqID {
						break
					}
				}
			}
		}
		color[id] = black
	}

	for _, id := range db.order {
		if color[id] == white {
			walk(id, nil)
		}
	}

	db.cyclic = onCycle
	var out []int
	for _, id := range db.order {
		if onCycle[id] {
			out = append(out, id)
		}
	}
	return out
}
