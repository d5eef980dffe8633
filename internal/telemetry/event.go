package telemetry

import "time"

type EventType string

const (
	EventTaskCompleted   EventType = "task_completed"
	EventTaskDetected    EventType = "task_detected"
	EventQuestCompleted  EventType = "quest_completed"
	EventRewardClaimed   EventType = "reward_claimed"
	EventProgressReset   EventType = "progress_reset"
	EventPartyCreated    EventType = "party_created"
	EventPartyJoined     EventType = "party_joined"
	EventPartyLeft       EventType = "party_left"
	EventContentReloaded EventType = "content_reloaded"
)

type Event struct {
	ID        int       `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  string    `json:"metadata"`
}

type EventMetadata map[string]interface{}
