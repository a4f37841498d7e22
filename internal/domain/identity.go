package domain

// IdentityStage is the counselor's current assessment phase.
type IdentityStage string

const (
	StageExploration IdentityStage = "EXPLORATION"
	StageDeepening   IdentityStage = "DEEPENING"
	StageIntegration IdentityStage = "INTEGRATION"
	StageDirection   IdentityStage = "DIRECTION"
)

// Trait is one observed identity trait with supporting evidence.
type Trait struct {
	Category string `json:"category"`
	Trait    string `json:"trait"`
	Evidence string `json:"evidence"`
}

// RecentInsight carries the most recent insight surfaced by the backend.
type RecentInsight struct {
	HasInsight bool   `json:"hasInsight"`
	Insight    string `json:"insight"`
	Type       string `json:"type"`
}

// IdentityStatus is the backend's evolving structured assessment of the
// user's career identity. It is a value type: every update from the
// backend replaces the snapshot wholesale, never a field-level merge.
type IdentityStatus struct {
	SessionID        string        `json:"sessionId"`
	CurrentStage     IdentityStage `json:"currentStage"`
	StageDescription string        `json:"stageDescription"`
	OverallProgress  int           `json:"overallProgress"`
	Clarity          int           `json:"clarity"`
	ClarityReason    string        `json:"clarityReason"`
	IdentityCore     string        `json:"identityCore"`
	Confidence       int           `json:"confidence"`
	Traits           []Trait       `json:"traits"`
	Insights         []string      `json:"insights"`
	NextFocus        string        `json:"nextFocus"`
	RecentInsight    RecentInsight `json:"recentInsight"`
}
