// Package serverapp wires the progression engine, its collaborators, and
// the HTTP API into one handler.
package serverapp

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DianeXD/BetterQuesting/internal/auth"
	"github.com/DianeXD/BetterQuesting/internal/config"
	"github.com/DianeXD/BetterQuesting/internal/httpmw"
	"github.com/DianeXD/BetterQuesting/internal/party"
	"github.com/DianeXD/BetterQuesting/internal/progression"
	"github.com/DianeXD/BetterQuesting/internal/quest"
	"github.com/DianeXD/BetterQuesting/internal/save"
	"github.com/DianeXD/BetterQuesting/internal/telemetry"
)

// RewardSink issues rewards the engine selected. The default sink only
// logs; a real deployment plugs inventory/world state in here.
type RewardSink interface {
	Issue(userID uuid.UUID, q *quest.Quest) error
}

type logSink struct{ logger *log.Logger }

func (s logSink) Issue(userID uuid.UUID, q *quest.Quest) error {
	s.logger.Printf("issue rewards: quest=%d user=%s rewards=%d", q.ID, userID, len(q.Rewards))
	return nil
}

type Options struct {
	Config  *config.Config
	Logger  *log.Logger
	Rewards RewardSink

	// DB and Lines bypass the content file when preloaded (dev server,
	// tests). Both must be set together.
	DB    *quest.Database
	Lines []*quest.Line
}

type App struct {
	Engine  *progression.Engine
	Handler http.Handler

	cfg     *config.Config
	logger  *log.Logger
	rewards RewardSink
	parties *party.FileRepo
	saves   *save.FileRepo
	authSvc *auth.Service
	events  telemetry.Repository
}

func New(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	rewards := opts.Rewards
	if rewards == nil {
		rewards = logSink{logger: logger}
	}

	cfg := opts.Config

	db, lines := opts.DB, opts.Lines
	if db == nil {
		var err error
		db, lines, err = quest.LoadContent(cfg.Content.Path, logger)
		if err != nil {
			return nil, err
		}
	}

	parties, err := party.NewFileRepo(cfg.Server.DataDir)
	if err != nil {
		return nil, err
	}

	saves, err := save.NewFileRepo(cfg.Server.DataDir, logger)
	if err != nil {
		return nil, err
	}
	if err := saves.Load(db); err != nil {
		return nil, err
	}

	authSvc := auth.NewService(cfg.Users, logger)
	events := telemetry.NewMemoryRepository()

	engine := progression.New(progression.Options{
		DB:      db,
		Lines:   lines,
		Parties: parties,
		Priv:    authSvc,
		Store:   saves,
		Events:  events,
		Logger:  logger,
	})

	app := &App{
		Engine:  engine,
		cfg:     cfg,
		logger:  logger,
		rewards: rewards,
		parties: parties,
		saves:   saves,
		authSvc: authSvc,
		events:  events,
	}
	app.Handler = app.routes()
	return app, nil
}

func (a *App) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "betterquesting",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	api := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, a.authSvc.RequireAPI(h))
	}

	api("GET /api/chapters", a.handleChapters)
	api("GET /api/chapters/{id}", a.handleChapterQuests)
	api("GET /api/quests/{id}", a.handleQuest)
	api("POST /api/quests/{id}/detect", a.handleDetect)
	api("POST /api/quests/{id}/tasks/{idx}/complete", a.handleTaskComplete)
	api("POST /api/quests/{id}/tasks/{idx}/advance", a.handleTaskAdvance)
	api("POST /api/quests/{id}/reset", a.handleReset)
	api("POST /api/claim-all", a.handleClaimAll)
	api("GET /api/party", a.handlePartyGet)
	api("POST /api/party", a.handlePartyCreate)
	api("POST /api/party/join", a.handlePartyJoin)
	api("POST /api/party/leave", a.handlePartyLeave)
	api("GET /api/stats", a.handleStats)

	return httpmw.Chain(mux,
		httpmw.WithRequestID,
		httpmw.WithRecover(a.logger),
		httpmw.WithAccessLog(a.logger),
	)
}

func (a *App) view(r *http.Request) progression.View {
	u, _ := auth.UserFromContext(r.Context())
	return progression.View{
		UserID:   u.ID,
		ViewMode: r.URL.Query().Get("view") == "1",
	}
}

func (a *App) handleChapters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"chapters": a.Engine.Chapters(a.view(r)),
	})
}

type questItem struct {
	ID          int               `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Flags       progression.Flags `json:"flags"`
	Tasks       []taskItem        `json:"tasks"`
	RewardCount int               `json:"rewardCount"`
	Claimed     bool              `json:"claimed"`
	Layout      *quest.LineEntry  `json:"layout,omitempty"`
}

type taskItem struct {
	Index         int     `json:"index"`
	Kind          string  `json:"kind"`
	Complete      bool    `json:"complete"`
	Participation float64 `json:"participation"`
}

func (a *App) questItem(view progression.View, q *quest.Quest, entry *quest.LineEntry) questItem {
	flags, _ := a.Engine.QuestFlags(view, q.ID)
	tasks := make([]taskItem, 0, len(q.Tasks))
	for i, t := range q.Tasks {
		tasks = append(tasks, taskItem{
			Index:         i,
			Kind:          t.Kind(),
			Complete:      t.IsComplete(view.UserID),
			Participation: t.Participation(view.UserID),
		})
	}
	return questItem{
		ID:          q.ID,
		Name:        q.Name,
		Description: q.Description,
		Flags:       flags,
		Tasks:       tasks,
		RewardCount: len(q.Rewards),
		Claimed:     q.HasClaimed(view.UserID),
		Layout:      entry,
	}
}

func (a *App) handleChapterQuests(w http.ResponseWriter, r *http.Request) {
	lineID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad chapter id"})
		return
	}

	var line *quest.Line
	for _, l := range a.Engine.Lines() {
		if l.ID == lineID {
			line = l
			break
		}
	}
	if line == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "chapter not found"})
		return
	}

	view := a.view(r)
	db := a.Engine.DB()
	items := make([]questItem, 0, len(line.Entries))
	for i := range line.Entries {
		entry := line.Entries[i]
		q, ok := db.Get(entry.QuestID)
		if !ok {
			continue
		}
		items = append(items, a.questItem(view, q, &entry))
	}
	writeJSON(w, http.StatusOK, map[string]any{"quests": items})
}

func (a *App) handleQuest(w http.ResponseWriter, r *http.Request) {
	q, ok := a.questFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a.questItem(a.view(r), q, nil))
}

func (a *App) handleDetect(w http.ResponseWriter, r *http.Request) {
	q, ok := a.questFromPath(w, r)
	if !ok {
		return
	}
	flags, err := a.Engine.Detect(a.view(r), q.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"flags": flags})
}

func (a *App) handleTaskComplete(w http.ResponseWriter, r *http.Request) {
	q, ok := a.questFromPath(w, r)
	if !ok {
		return
	}
	idx, err := strconv.Atoi(r.PathValue("idx"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad task index"})
		return
	}

	var body struct {
		State bool `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad request body"})
		return
	}

	if err := a.Engine.SetTaskCompletion(a.view(r), q.ID, idx, body.State); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	flags, _ := a.Engine.QuestFlags(a.view(r), q.ID)
	writeJSON(w, http.StatusOK, map[string]any{"flags": flags})
}

func (a *App) handleTaskAdvance(w http.ResponseWriter, r *http.Request) {
	q, ok := a.questFromPath(w, r)
	if !ok {
		return
	}
	idx, err := strconv.Atoi(r.PathValue("idx"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad task index"})
		return
	}

	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad request body"})
		return
	}
	if body.Count == 0 {
		body.Count = 1
	}

	count, err := a.Engine.AdvanceTask(a.view(r), q.ID, idx, body.Count)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	flags, _ := a.Engine.QuestFlags(a.view(r), q.ID)
	writeJSON(w, http.StatusOK, map[string]any{"count": count, "flags": flags})
}

func (a *App) handleReset(w http.ResponseWriter, r *http.Request) {
	q, ok := a.questFromPath(w, r)
	if !ok {
		return
	}

	var body struct {
		Scope string `json:"scope"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad request body"})
		return
	}

	scope := progression.ResetScope(strings.ToLower(body.Scope))
	if scope == progression.ResetAll {
		u, _ := auth.UserFromContext(r.Context())
		if !u.Editor {
			writeJSON(w, http.StatusForbidden, map[string]any{"error": "reset all requires edit privilege"})
			return
		}
	}

	if err := a.Engine.Reset(a.view(r), q.ID, scope); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *App) handleClaimAll(w http.ResponseWriter, r *http.Request) {
	var body struct {
		QuestIDs []int `json:"questIds"`
	}
	// An empty body means "everything eligible".
	_ = json.NewDecoder(r.Body).Decode(&body)

	view := a.view(r)
	eligible := a.Engine.ClaimAllEligible(view, body.QuestIDs)

	db := a.Engine.DB()
	issued := make([]int, 0, len(eligible))
	for _, id := range eligible {
		q, ok := db.Get(id)
		if !ok {
			continue
		}
		if err := a.rewards.Issue(view.UserID, q); err != nil {
			a.logger.Printf("warn: issue rewards for quest %d: %v", id, err)
			continue
		}
		issued = append(issued, id)
	}
	a.Engine.MarkClaimed(view, issued)

	writeJSON(w, http.StatusOK, map[string]any{"claimed": issued})
}

func (a *App) handlePartyGet(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	p, ok := a.parties.PartyOf(u.ID)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"party": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"party": p})
}

func (a *App) handlePartyCreate(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad request body"})
		return
	}

	p, err := a.parties.Create(body.Name, u.ID)
	if err != nil {
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
		return
	}
	a.recordParty(telemetry.EventPartyCreated, p.ID, u.ID)
	writeJSON(w, http.StatusOK, map[string]any{"party": p})
}

func (a *App) handlePartyJoin(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())

	var body struct {
		PartyID string `json:"partyId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad request body"})
		return
	}

	p, err := a.parties.Join(body.PartyID, u.ID)
	if err != nil {
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
		return
	}
	a.recordParty(telemetry.EventPartyJoined, p.ID, u.ID)
	writeJSON(w, http.StatusOK, map[string]any{"party": p})
}

func (a *App) handlePartyLeave(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())

	if err := a.parties.Leave(u.ID); err != nil {
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
		return
	}
	a.recordParty(telemetry.EventPartyLeft, "", u.ID)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *App) handleStats(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	if !u.Editor {
		writeJSON(w, http.StatusForbidden, map[string]any{"error": "stats require edit privilege"})
		return
	}

	since := time.Now().AddDate(0, 0, -7)
	events, err := a.events.GetEvents(since, nil)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	stats, err := telemetry.CalculateStats(events, since)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *App) questFromPath(w http.ResponseWriter, r *http.Request) (*quest.Quest, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad quest id"})
		return nil, false
	}
	q, ok := a.Engine.DB().Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "quest not found"})
		return nil, false
	}
	return q, true
}

func (a *App) recordParty(typ telemetry.EventType, partyID string, userID uuid.UUID) {
	if err := a.events.RecordEvent(typ, telemetry.EventMetadata{
		"party_id": partyID,
		"user_id":  userID.String(),
	}); err != nil {
		a.logger.Printf("warn: record event %s: %v", typ, err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
