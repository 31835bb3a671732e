package domain

import (
	"fmt"
	"strings"
	"time"
)

// ActionPlan is the structured record recovered from a backend reply.
// Content holds markdown prose and may embed citation markers.
type ActionPlan struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Content string `json:"content"`
}

// Validate reports ErrIncompletePlan unless every field is populated.
func (p ActionPlan) Validate() error {
	var missing []string
	if p.Title == "" {
		missing = append(missing, "title")
	}
	if p.Summary == "" {
		missing = append(missing, "summary")
	}
	if p.Content == "" {
		missing = append(missing, "content")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompletePlan, strings.Join(missing, ", "))
	}
	return nil
}

// Markdown returns the plan as a single markdown document:
// the title as a level-two heading, then the summary, then the content.
func (p ActionPlan) Markdown() string {
	var b strings.Builder
	b.WriteString("## ")
	b.WriteString(p.Title)
	if p.Summary != "" {
		b.WriteString("\n\n")
		b.WriteString(p.Summary)
	}
	if p.Content != "" {
		b.WriteString("\n\n")
		b.WriteString(p.Content)
	}
	return b.String()
}

// StoredPlan is an ActionPlan persisted for later retrieval (e.g. emailing).
type StoredPlan struct {
	ID        string     `json:"id"`
	Plan      ActionPlan `json:"plan"`
	CreatedAt time.Time  `json:"created_at"`
}
