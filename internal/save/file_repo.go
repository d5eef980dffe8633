// Package save persists per-user quest progress as versioned JSON.
//
// Format version 2 keys task records by task index within their quest:
//
//	{
//	  "version": 2,
//	  "quests": {
//	    "4": {
//	      "claimed": ["<uuid>", ...],
//	      "tasks": {
//	        "0": {"completeUsers": ["<uuid>", ...], "data": {...}}
//	      }
//	    }
//	  }
//	}
//
// Version 1 files stored each quest's task records as an array with the
// kind-specific fields flattened next to completeUsers. Loading repairs
// both shapes silently; malformed entries are skipped with a warning and
// never abort the rest of the load.
package save

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/DianeXD/BetterQuesting/internal/quest"
)

const formatVersion = 2

type fileFormat struct {
	Version int                        `json:"version"`
	Quests  map[string]json.RawMessage `json:"quests"`
}

type questRecord struct {
	Claimed []string        `json:"claimed,omitempty"`
	Tasks   json.RawMessage `json:"tasks,omitempty"`
}

// FileRepo reads and writes the progress file for one save. Save runs
// synchronously on the caller's dedicated save cycle; the mutex only keeps
// concurrent Save calls from interleaving file writes.
type FileRepo struct {
	mu     sync.Mutex
	path   string
	logger *log.Logger
}

func NewFileRepo(dataDir string, logger *log.Logger) (*FileRepo, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	return &FileRepo{
		path:   filepath.Join(dataDir, "progress.json"),
		logger: logger,
	}, nil
}

// Load applies persisted progress to the database. A missing file is a
// fresh save, not an error. Every task's read-progress path runs exactly
// once per load, with an empty record when the file carries none, so
// definition records that buffered legacy embedded progress always get
// their migration window.
func (r *FileRepo) Load(db *quest.Database) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := map[int]questRecord{}
	b, err := os.ReadFile(r.path)
	switch {
	case err == nil:
		var ff fileFormat
		if err := json.Unmarshal(b, &ff); err != nil {
			return fmt.Errorf("parse progress: %w", err)
		}
		for key, raw := range ff.Quests {
			questID, err := strconv.Atoi(key)
			if err != nil {
				r.logger.Printf("warn: progress: bad quest key %q, skipped", key)
				continue
			}
			if _, ok := db.Get(questID); !ok {
				r.logger.Printf("warn: progress: unknown quest %d, skipped", questID)
				continue
			}
			var qr questRecord
			if err := json.Unmarshal(raw, &qr); err != nil {
				r.logger.Printf("warn: progress: quest %d: %v, skipped", questID, err)
				continue
			}
			records[questID] = qr
		}
	case os.IsNotExist(err):
		// Fresh save; the pass below still runs for the migration window.
	default:
		return err
	}

	for _, q := range db.Ordered() {
		r.applyQuest(q, records[q.ID])
	}
	return nil
}

func (r *FileRepo) applyQuest(q *quest.Quest, qr questRecord) {
	for _, err := range q.ReadClaimed(qr.Claimed) {
		r.logger.Printf("warn: progress: quest %d claimed: %v", q.ID, err)
	}

	recs := decodeTaskRecords(qr.Tasks, q.ID, r.logger)
	for idx := range recs {
		if idx < 0 || idx >= len(q.Tasks) {
			r.logger.Printf("warn: progress: quest %d: no task at index %d, skipped", q.ID, idx)
		}
	}
	for idx, t := range q.Tasks {
		rec := recs[idx]
		if rec == nil {
			rec = map[string]any{}
		}
		for _, err := range t.ReadProgress(rec) {
			r.logger.Printf("warn: progress: quest %d task %d: %v", q.ID, idx, err)
		}
	}
}

// decodeTaskRecords accepts both the current index-keyed object shape and
// the legacy array shape.
func decodeTaskRecords(raw json.RawMessage, questID int, logger *log.Logger) map[int]map[string]any {
	if len(raw) == 0 {
		return nil
	}

	out := map[int]map[string]any{}

	var byIndex map[string]map[string]any
	if err := json.Unmarshal(raw, &byIndex); err == nil {
		for key, rec := range byIndex {
			idx, err := strconv.Atoi(key)
			if err != nil {
				logger.Printf("warn: progress: quest %d: bad task key %q, skipped", questID, key)
				continue
			}
			out[idx] = rec
		}
		return out
	}

	var asList []map[string]any
	if err := json.Unmarshal(raw, &asList); err != nil {
		logger.Printf("warn: progress: quest %d: unreadable task records, skipped", questID)
		return nil
	}
	for idx, rec := range asList {
		out[idx] = rec
	}
	return out
}

// Save writes the full progress snapshot for every quest in the database.
func (r *FileRepo) Save(db *quest.Database) error {
	return r.write(db, nil)
}

// SaveFiltered writes a progress slice restricted to the given users, used
// for per-user save exports.
func (r *FileRepo) SaveFiltered(db *quest.Database, filter []uuid.UUID) error {
	return r.write(db, filter)
}

func (r *FileRepo) write(db *quest.Database, filter []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := json.MarshalIndent(Snapshot(db, filter), "", "  ")
	if err != nil {
		return err
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}

// Snapshot builds the serializable progress structure for the database,
// optionally restricted to a user filter.
func Snapshot(db *quest.Database, filter []uuid.UUID) map[string]any {
	quests := map[string]any{}
	for _, q := range db.Ordered() {
		tasks := map[string]any{}
		for idx, t := range q.Tasks {
			tasks[strconv.Itoa(idx)] = t.WriteProgress(filter)
		}
		quests[strconv.Itoa(q.ID)] = map[string]any{
			"claimed": filterUsers(q.ClaimedUsers(), filter),
			"tasks":   tasks,
		}
	}
	return map[string]any{
		"version": formatVersion,
		"quests":  quests,
	}
}

func filterUsers(users []string, filter []uuid.UUID) []string {
	if filter == nil {
		return users
	}
	keep := make(map[string]bool, len(filter))
	for _, f := range filter {
		keep[f.String()] = true
	}
	out := make([]string, 0, len(users))
	for _, u := range users {
		if keep[u] {
			out = append(out, u)
		}
	}
	return out
}
