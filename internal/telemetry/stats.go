package telemetry

import (
	"encoding/json"
	"time"
)

type Stats struct {
	Period           string            `json:"period"`
	EventCounts      map[EventType]int `json:"event_counts"`
	TaskCompletions  int               `json:"task_completions"`
	QuestCompletions int               `json:"quest_completions"`
	RewardClaims     int               `json:"reward_claims"`
	Resets           int               `json:"resets"`
	ClaimsByQuest    map[string]int    `json:"claims_by_quest"`
	ResetScopes      map[string]int    `json:"reset_scopes"`
}

// CalculateStats computes progression stats from events.
func CalculateStats(events []Event, since time.Time) (Stats, error) {
	stats := Stats{
		Period:        since.Format("2006-01-02"),
		EventCounts:   make(map[EventType]int),
		ClaimsByQuest: make(map[string]int),
		ResetScopes:   make(map[string]int),
	}

	for _, event := range events {
		stats.EventCounts[event.Type]++

		var metadata EventMetadata
		if err := json.Unmarshal([]byte(event.Metadata), &metadata); err != nil {
			continue
		}

		switch event.Type {
		case EventTaskCompleted:
			stats.TaskCompletions++
		case EventQuestCompleted:
			stats.QuestCompletions++
		case EventRewardClaimed:
			stats.RewardClaims++
			if id, ok := metadata["quest_id"].(string); ok {
				stats.ClaimsByQuest[id]++
			}
		case EventProgressReset:
			stats.Resets++
			if scope, ok := metadata["scope"].(string); ok {
				stats.ResetScopes[scope]++
			}
		}
	}

	return stats, nil
}
