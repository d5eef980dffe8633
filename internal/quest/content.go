package quest

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// questDef is the authored YAML shape of one quest.
type questDef struct {
	ID           int              `yaml:"id"`
	Name         string           `yaml:"name"`
	Description  string           `yaml:"description"`
	Logic        Logic            `yaml:"logic"`
	Visibility   Visibility       `yaml:"visibility"`
	Requirements []int            `yaml:"requirements"`
	Tasks        []map[string]any `yaml:"tasks"`
	Rewards      []Reward         `yaml:"rewards"`
}

type contentFile struct {
	Quests []questDef `yaml:"quests"`
	Lines  []*Line    `yaml:"lines"`
}

// LoadContent reads authored quest content from a YAML file and builds the
// database and quest lines. Authoring mistakes degrade instead of failing
// the load: unknown task kinds are skipped, dangling references are logged,
// requirement cycles mark the affected quests permanently locked.
func LoadContent(path string, logger *log.Logger) (*Database, []*Line, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read content: %w", err)
	}
	return ParseContent(b, logger)
}

// ParseContent builds a database and lines from YAML bytes.
func ParseContent(b []byte, logger *log.Logger) (*Database, []*Line, error) {
	if logger == nil {
		logger = log.Default()
	}

	var cf contentFile
	if err := yaml.Unmarshal(b, &cf); err != nil {
		return nil, nil, fmt.Errorf("parse content: %w", err)
	}

	db := NewDatabase()
	for _, def := range cf.Quests {
		q := NewQuest(def.ID)
		q.Name = def.Name
		q.Description = def.Description
		if def.Logic != "" {
			q.Logic = def.Logic
		}
		if def.Visibility != "" {
			q.Visibility = def.Visibility
		}
		q.Requirements = def.Requirements
		q.Rewards = def.Rewards

		for i, rec := range def.Tasks {
			kind, _ := rec["kind"].(string)
			t, ok := NewTask(kind)
			if !ok {
				logger.Printf("warn: quest %d task %d: unknown kind %q, skipped", def.ID, i, kind)
				continue
			}
			t.ReadDefinition(rec)
			q.Tasks = append(q.Tasks, t)
		}

		if err := db.Add(q); err != nil {
			return nil, nil, err
		}
	}

	validateContent(db, cf.Lines, logger)
	return db, cf.Lines, nil
}

// validateContent logs authoring problems without aborting the load.
func validateContent(db *Database, lines []*Line, logger *log.Logger) {
	for _, q := range db.Ordered() {
		for _, reqID := range q.Requirements {
			if _, ok := db.Get(reqID); !ok {
				logger.Printf("warn: quest %d requires unknown quest %d, treating as satisfied", q.ID, reqID)
			}
		}
	}
	for _, l := range lines {
		for _, e := range l.Entries {
			if _, ok := db.Get(e.QuestID); !ok {
				logger.Printf("warn: line %d references unknown quest %d, entry skipped", l.ID, e.QuestID)
			}
		}
	}
	if cyclic := db.DetectCycles(); len(cyclic) > 0 {
		logger.Printf("warn: requirement cycle detected, quests %v are permanently locked", cyclic)
	}
}
