package quest

// LineEntry places one quest in a quest line. The layout fields are opaque
// to the progression core; the renderer owns their meaning.
type LineEntry struct {
	QuestID int `json:"quest" yaml:"quest"`
	X       int `json:"x" yaml:"x"`
	Y       int `json:"y" yaml:"y"`
	Size    int `json:"size,omitempty" yaml:"size,omitempty"`
}

// Line is one progression chapter: an ordered sequence of quest entries
// referencing the database by ID. Lookups always re-resolve, so a line
// never holds stale quest pointers.
type Line struct {
	ID          int         `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Visibility  Visibility  `json:"visibility,omitempty" yaml:"visibility,omitempty"`
	Entries     []LineEntry `json:"entries" yaml:"entries"`
}

// QuestIDs returns the member quest IDs in entry order.
func (l *Line) QuestIDs() []int {
	out := make([]int, 0, len(l.Entries))
	for _, e := range l.Entries {
		out = append(out, e.QuestID)
	}
	return out
}

// Quests resolves the member quests through the database, skipping entries
// whose IDs no longer resolve.
func (l *Line) Quests(db Resolver) []*Quest {
	out := make([]*Quest, 0, len(l.Entries))
	for _, e := range l.Entries {
		if q, ok := db.Get(e.QuestID); ok {
			out = append(out, q)
		}
	}
	return out
}
