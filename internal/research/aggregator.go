// Package research derives typed research panels from completed agent
// task payloads and maintains the panel list shown on the chat page.
package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/dreampath/chatcore/internal/domain"
)

const (
	// maxSummaryLen bounds a synthesized summary.
	maxSummaryLen = 300
	// maxSimilarMentors caps the similar-mentor shortlist.
	maxSimilarMentors = 2

	noSimilarMentorsMessage = "no similar mentors found"
)

// MentorDirectory lists the bookable mentoring sessions.
type MentorDirectory interface {
	AvailableMentoringSessions(ctx context.Context) ([]domain.MentoringSession, error)
}

// Aggregator converts agent action payloads into research panels.
// Panels are prepended to an in-memory list that is never persisted;
// the display contract is show-latest, but the full list stays
// available.
type Aggregator struct {
	directory MentorDirectory
	logger    *slog.Logger

	mu     sync.RWMutex
	panels []domain.ResearchPanel
}

// NewAggregator creates an aggregator using directory for mentor lookups.
func NewAggregator(directory MentorDirectory, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		directory: directory,
		logger:    logger,
	}
}

// Ingest builds a panel from action and prepends it to the list.
func (a *Aggregator) Ingest(action domain.AgentAction) {
	panel := buildPanel(action)

	a.mu.Lock()
	a.panels = append([]domain.ResearchPanel{panel}, a.panels...)
	a.mu.Unlock()

	a.logger.Info("research panel added", "panel_id", panel.ID, "type", panel.Type)
}

// Latest returns the most recently added panel.
func (a *Aggregator) Latest() (domain.ResearchPanel, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.panels) == 0 {
		return domain.ResearchPanel{}, false
	}
	return a.panels[0], true
}

// Panels returns a copy of the full panel list, newest first.
func (a *Aggregator) Panels() []domain.ResearchPanel {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]domain.ResearchPanel, len(a.panels))
	copy(out, a.panels)
	return out
}

// Clear drops all panels. Called on new-chat.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	a.panels = nil
	a.mu.Unlock()
}

// FindSimilarMentors refreshes panelID's mentoring data with at most
// two sessions similar to ref, excluding ref itself. Similarity is a
// case-insensitive first-word match on title or topic.
func (a *Aggregator) FindSimilarMentors(ctx context.Context, panelID string, ref domain.MentoringSession) error {
	sessions, err := a.directory.AvailableMentoringSessions(ctx)
	if err != nil {
		return fmt.Errorf("find similar mentors: %w", err)
	}

	var similar []domain.MentoringSession
	for _, s := range sessions {
		if s.ID == ref.ID {
			continue
		}
		if similarMentorSession(ref, s) {
			similar = append(similar, s)
			if len(similar) == maxSimilarMentors {
				break
			}
		}
	}

	data := &domain.MentoringData{Sessions: similar}
	if len(similar) == 0 {
		data.Message = noSimilarMentorsMessage
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.panels {
		if a.panels[i].ID == panelID {
			a.panels[i].MentoringData = data
			return nil
		}
	}
	return fmt.Errorf("panel %s not found", panelID)
}

func similarMentorSession(ref, candidate domain.MentoringSession) bool {
	refWords := map[string]bool{}
	if w := firstWord(ref.Title); w != "" {
		refWords[w] = true
	}
	if w := firstWord(ref.Topic); w != "" {
		refWords[w] = true
	}
	if len(refWords) == 0 {
		return false
	}
	return refWords[firstWord(candidate.Title)] || refWords[firstWord(candidate.Topic)]
}

func firstWord(s string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// PanelTypeFor maps an action type to its panel type. Unknown action
// types fall back to web_search.
func PanelTypeFor(actionType domain.ActionType) domain.PanelType {
	switch actionType {
	case domain.ActionMentoringSuggestion:
		return domain.PanelMentoring
	case domain.ActionLearningPathSuggestion:
		return domain.PanelLearningPath
	default:
		return domain.PanelWebSearch
	}
}

func buildPanel(action domain.AgentAction) domain.ResearchPanel {
	panelType := PanelTypeFor(action.Type)
	sources := parseSources(action.Data)

	summary := strings.TrimSpace(action.Summary)
	if summary == "" {
		summary = SynthesizeSummary(sources)
	}

	title := strings.TrimSpace(action.Reason)
	if title == "" {
		title = defaultTitle(panelType)
	}

	panel := domain.ResearchPanel{
		ID:        uuid.NewString(),
		Type:      panelType,
		Title:     title,
		Summary:   summary,
		Timestamp: time.Now(),
	}

	switch panelType {
	case domain.PanelWebSearch:
		panel.Sources = sources
	case domain.PanelMentoring:
		panel.MentoringData = parseMentoringData(action.Data)
	case domain.PanelLearningPath:
		panel.LearningPathData = parseLearningPathData(action.Data)
	}

	return panel
}

func defaultTitle(t domain.PanelType) string {
	switch t {
	case domain.PanelMentoring:
		return "Mentoring suggestion"
	case domain.PanelLearningPath:
		return "Learning path suggestion"
	default:
		return "Web research"
	}
}

// SynthesizeSummary joins the snippets of the first three results,
// stripping a trailing ellipsis from each, and truncates to 300
// characters. Results past the third are never consulted, even when an
// earlier snippet is empty.
func SynthesizeSummary(sources []domain.Source) string {
	if len(sources) > 3 {
		sources = sources[:3]
	}

	parts := make([]string, 0, len(sources))
	for _, s := range sources {
		snippet := strings.TrimSpace(s.Snippet)
		snippet = strings.TrimSuffix(snippet, "…")
		snippet = strings.TrimSuffix(snippet, "...")
		if snippet == "" {
			continue
		}
		parts = append(parts, snippet)
	}

	summary := strings.Join(parts, " ")
	if runes := []rune(summary); len(runes) > maxSummaryLen {
		summary = string(runes[:maxSummaryLen])
	}
	return summary
}

func parseSources(data []byte) []domain.Source {
	if len(data) == 0 {
		return nil
	}
	var sources []domain.Source
	gjson.GetBytes(data, "results").ForEach(func(_, item gjson.Result) bool {
		sources = append(sources, domain.Source{
			Title:   item.Get("title").String(),
			URL:     item.Get("url").String(),
			Snippet: item.Get("snippet").String(),
		})
		return true
	})
	return sources
}

func parseMentoringData(data []byte) *domain.MentoringData {
	if len(data) == 0 {
		return nil
	}
	sessionsField := gjson.GetBytes(data, "sessions")
	if !sessionsField.Exists() {
		return nil
	}

	md := &domain.MentoringData{}
	sessionsField.ForEach(func(_, item gjson.Result) bool {
		md.Sessions = append(md.Sessions, domain.MentoringSession{
			ID:         item.Get("id").String(),
			Title:      item.Get("title").String(),
			Topic:      item.Get("topic").String(),
			MentorName: item.Get("mentorName").String(),
		})
		return true
	})
	return md
}

func parseLearningPathData(data []byte) *domain.LearningPathData {
	if len(data) == 0 {
		return nil
	}
	path := gjson.GetBytes(data, "learningPath")
	if !path.Exists() {
		return nil
	}
	return &domain.LearningPathData{
		PathID:    path.Get("pathId").String(),
		Title:     path.Get("title").String(),
		Exists:    path.Get("exists").Bool(),
		CanCreate: path.Get("canCreate").Bool(),
	}
}
