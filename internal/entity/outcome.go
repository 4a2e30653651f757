package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/sgte/pdf-splitter/constants"
)

// Artifact is one PDF written for a group.
type Artifact struct {
	Path         string                 `json:"path"`
	DocumentType constants.DocumentType `json:"document_type"`
	Pages        []int                  `json:"pages"`
}

// GroupOutcome is the reported result for one page group.
type GroupOutcome struct {
	FirstPage    int                    `json:"first_page"`
	LastPage     int                    `json:"last_page"`
	Identity     string                 `json:"identity,omitempty"`
	NameGuess    string                 `json:"name_guess,omitempty"`
	DocumentType constants.DocumentType `json:"document_type"`
	Status       constants.GroupStatus  `json:"status"`
	Student      *RosterEntry           `json:"student,omitempty"`
	Artifacts    []Artifact             `json:"artifacts,omitempty"`
	Intents      []DocumentIntent       `json:"-"`
	Candidates   []RosterEntry          `json:"candidates,omitempty"`
	Message      string                 `json:"message,omitempty"`
}

// PageReport is a per-page triage row.
type PageReport struct {
	Index        int                    `json:"index"`
	Method       string                 `json:"method"`
	Confidence   constants.Confidence   `json:"confidence"`
	OCRScore     float64                `json:"ocr_score"`
	IDNumber     string                 `json:"id_number,omitempty"`
	IDValid      bool                   `json:"id_valid"`
	NameGuess    string                 `json:"name_guess,omitempty"`
	DocumentType constants.DocumentType `json:"document_type"`
	Group        int                    `json:"group"`
	Assigned     bool                   `json:"assigned"`
	Reason       string                 `json:"reason,omitempty"`
	Preview      string                 `json:"preview,omitempty"`
}

// BatchOutcome is the complete result of one pipeline run.
type BatchOutcome struct {
	RunID      uuid.UUID      `json:"run_id"`
	SourcePath string         `json:"source_path"`
	TotalPages int            `json:"total_pages"`
	Groups     []GroupOutcome `json:"groups"`
	Pages      []PageReport   `json:"pages"`
	Matched    int            `json:"matched"`
	Unmatched  int            `json:"unmatched"`
	Written    int            `json:"written"`
	Failed     int            `json:"failed"`
	StartedAt  time.Time      `json:"started_at"`
	Duration   time.Duration  `json:"duration"`
}

// Intents flattens every committed artifact record, in group order.
func (o BatchOutcome) Intents() []DocumentIntent {
	var out []DocumentIntent
	for _, g := range o.Groups {
		out = append(out, g.Intents...)
	}
	return out
}

// Unassigned returns the triage rows of pages that did not end up in a written artifact.
func (o BatchOutcome) Unassigned() []PageReport {
	var out []PageReport
	for _, p := range o.Pages {
		if !p.Assigned {
			out = append(out, p)
		}
	}
	return out
}
