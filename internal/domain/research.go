package domain

import (
	"time"
)

// PanelType is the presentation category of a research panel.
type PanelType string

const (
	PanelWebSearch    PanelType = "web_search"
	PanelMentoring    PanelType = "mentoring"
	PanelLearningPath PanelType = "learning_path"
)

// Source is one cited result behind a web-search panel.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// MentoringSession is an offered mentoring slot from the directory.
type MentoringSession struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Topic      string `json:"topic"`
	MentorName string `json:"mentorName"`
}

// MentoringData holds the mentoring candidates attached to a panel.
// Message is set when a similar-mentor lookup found nothing.
type MentoringData struct {
	Sessions []MentoringSession `json:"sessions"`
	Message  string             `json:"message,omitempty"`
}

// LearningPathData carries the existence/creatability flags of a
// suggested learning path.
type LearningPathData struct {
	PathID    string `json:"pathId,omitempty"`
	Title     string `json:"title,omitempty"`
	Exists    bool   `json:"exists"`
	CanCreate bool   `json:"canCreate"`
}

// ResearchPanel is the client-derived view model built from a completed
// agent task. Panels are held in memory only and lost on restart.
type ResearchPanel struct {
	ID               string            `json:"id"`
	Type             PanelType         `json:"type"`
	Title            string            `json:"title"`
	Summary          string            `json:"summary"`
	Sources          []Source          `json:"sources,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
	MentoringData    *MentoringData    `json:"mentoringData,omitempty"`
	LearningPathData *LearningPathData `json:"learningPathData,omitempty"`
}
