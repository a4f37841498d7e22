package domain

import (
	"encoding/json"
)

// TaskStatus is the backend-reported state of an asynchronous agent task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskSkipped   TaskStatus = "skipped"
	TaskFailed    TaskStatus = "failed"
)

// Terminal reports whether the status ends the poll loop. Anything that
// is not completed, skipped or failed must be re-polled.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskSkipped, TaskFailed:
		return true
	default:
		return false
	}
}

// ActionType categorizes the payload an agent task produced.
type ActionType string

const (
	ActionWebSearchResults       ActionType = "web_search_results"
	ActionMentoringSuggestion    ActionType = "mentoring_suggestion"
	ActionLearningPathSuggestion ActionType = "learning_path_suggestion"
	ActionBookingConfirmed       ActionType = "booking_confirmed"
)

// AgentAction is the typed payload of a completed agent task. Data stays
// raw JSON because its shape varies per action type; consumers pluck the
// fields they understand.
type AgentAction struct {
	Type    ActionType      `json:"type"`
	Reason  string          `json:"reason"`
	Data    json.RawMessage `json:"data"`
	Summary string          `json:"summary,omitempty"`
}

// AgentTask tracks one unit of background enrichment work. Tasks are
// never persisted; a terminal task is discarded once its result has been
// handed off.
type AgentTask struct {
	TaskID      string       `json:"taskId"`
	Status      TaskStatus   `json:"status"`
	AgentAction *AgentAction `json:"agentAction,omitempty"`
	Error       string       `json:"error,omitempty"`
}
