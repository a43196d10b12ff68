// Package events provides a pub/sub channel for load test lifecycle events.
package events

import "time"

// EventType represents the type of event
type EventType string

const (
	// EventUserSpawned is emitted when a simulated user starts
	EventUserSpawned EventType = "user_spawned"
	// EventUserStopped is emitted when a simulated user exits
	EventUserStopped EventType = "user_stopped"
	// EventSpawnComplete is emitted once every configured user is running
	EventSpawnComplete EventType = "spawn_complete"
	// EventRequestFailed is emitted for each failed request
	EventRequestFailed EventType = "request_failed"
	// EventScenarioStarted is emitted when a run begins
	EventScenarioStarted EventType = "scenario_started"
	// EventScenarioComplete is emitted when a run ends
	EventScenarioComplete EventType = "scenario_complete"
	// EventChaosAttack is emitted when a fault is injected into the mock bank
	EventChaosAttack EventType = "chaos_attack"
	// EventChaosRecovered is emitted when an injected fault is cleared
	EventChaosRecovered EventType = "chaos_recovered"
)

// Event represents a load test event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id,omitempty"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	Kind     string `json:"kind,omitempty"`
	Scenario string `json:"scenario,omitempty"`
	Users    int    `json:"users,omitempty"`
	Method   string `json:"method,omitempty"`
	Name     string `json:"name,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
	Target   string `json:"target,omitempty"`
	Attack   string `json:"attack,omitempty"`
	Delay    string `json:"delay,omitempty"`
}

// NewUserSpawnedEvent creates a user spawned event
func NewUserSpawnedEvent(sessionID, kind string) Event {
	return Event{
		Type:      EventUserSpawned,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Data:      EventData{Kind: kind},
	}
}

// NewUserStoppedEvent creates a user stopped event
func NewUserStoppedEvent(sessionID, kind string, err error) Event {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	return Event{
		Type:      EventUserStopped,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Data:      EventData{Kind: kind, Error: errMsg},
	}
}

// NewSpawnCompleteEvent creates a spawn complete event
func NewSpawnCompleteEvent(users int) Event {
	return Event{
		Type:      EventSpawnComplete,
		Timestamp: time.Now(),
		Data:      EventData{Users: users},
	}
}

// NewRequestFailedEvent creates a request failure event
func NewRequestFailedEvent(method, name, message string) Event {
	return Event{
		Type:      EventRequestFailed,
		Timestamp: time.Now(),
		Data:      EventData{Method: method, Name: name, Message: message},
	}
}

// NewScenarioStartedEvent creates a scenario started event
func NewScenarioStartedEvent(scenario string, users int) Event {
	return Event{
		Type:      EventScenarioStarted,
		Timestamp: time.Now(),
		Data:      EventData{Scenario: scenario, Users: users},
	}
}

// NewScenarioCompleteEvent creates a scenario complete event
func NewScenarioCompleteEvent(scenario string, err error) Event {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	return Event{
		Type:      EventScenarioComplete,
		Timestamp: time.Now(),
		Data:      EventData{Scenario: scenario, Error: errMsg},
	}
}

// NewChaosAttackEvent creates a chaos attack event
func NewChaosAttackEvent(target, attack string, delay time.Duration) Event {
	data := EventData{Target: target, Attack: attack}
	if delay > 0 {
		data.Delay = delay.String()
	}
	return Event{
		Type:      EventChaosAttack,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewChaosRecoveredEvent creates a chaos recovered event
func NewChaosRecoveredEvent(target, attack string) Event {
	return Event{
		Type:      EventChaosRecovered,
		Timestamp: time.Now(),
		Data:      EventData{Target: target, Attack: attack},
	}
}
