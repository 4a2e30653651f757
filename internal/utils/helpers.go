package utils

import (
	"encoding/hex"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/sgte/pdf-splitter/internal/entity"
)

func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func timeOrEmpty(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func intsToList(in []int) []any {
	out := make([]any, 0, len(in))
	for _, v := range in {
		out = append(out, v)
	}
	return out
}

// BatchToMap is the wire shape of a lote row.
func BatchToMap(b *entity.Batch) map[string]any {
	if b == nil {
		return nil
	}
	return map[string]any{
		"id":           b.ID.String(),
		"source_path":  b.SourcePath,
		"filename":     b.Filename,
		"content_hash": hex.EncodeToString(b.ContentHash),
		"file_size":    b.FileSize,
		"pages":        b.Pages,
		"status":       string(b.Status),
		"matched":      b.Matched,
		"unmatched":    b.Unmatched,
		"written":      b.Written,
		"failed":       b.Failed,
		"error":        strOrEmpty(b.Error),
		"uploaded_at":  timeOrEmpty(&b.UploadedAt),
		"finished_at":  timeOrEmpty(b.FinishedAt),
	}
}

func studentToMap(s *entity.RosterEntry) map[string]any {
	return map[string]any{
		"run":       s.RUN,
		"nombres":   s.Nombres,
		"apellidos": s.Apellidos,
		"carrera":   s.Carrera,
		"modalidad": s.Modalidad,
	}
}

// GroupToMap is the wire shape of a group outcome. Page indexes stay 0-based.
func GroupToMap(g entity.GroupOutcome) map[string]any {
	m := map[string]any{
		"first_page":    g.FirstPage,
		"last_page":     g.LastPage,
		"identity":      g.Identity,
		"name_guess":    g.NameGuess,
		"document_type": string(g.DocumentType),
		"status":        string(g.Status),
		"message":       g.Message,
	}
	if g.Student != nil {
		m["student"] = studentToMap(g.Student)
	}
	artifacts := make([]any, 0, len(g.Artifacts))
	for _, a := range g.Artifacts {
		artifacts = append(artifacts, map[string]any{
			"path":          a.Path,
			"document_type": string(a.DocumentType),
			"pages":         intsToList(a.Pages),
		})
	}
	m["artifacts"] = artifacts
	if len(g.Candidates) > 0 {
		cands := make([]any, 0, len(g.Candidates))
		for i := range g.Candidates {
			cands = append(cands, studentToMap(&g.Candidates[i]))
		}
		m["candidates"] = cands
	}
	return m
}

// PageToMap is the wire shape of a triage row.
func PageToMap(p entity.PageReport) map[string]any {
	return map[string]any{
		"index":         p.Index,
		"method":        p.Method,
		"confidence":    string(p.Confidence),
		"ocr_score":     p.OCRScore,
		"id_number":     p.IDNumber,
		"id_valid":      p.IDValid,
		"name_guess":    p.NameGuess,
		"document_type": string(p.DocumentType),
		"group":         p.Group,
		"assigned":      p.Assigned,
		"reason":        p.Reason,
		"preview":       p.Preview,
	}
}

// OutcomeToMap is the wire shape of a batch outcome. Only unassigned pages
// are listed.
func OutcomeToMap(o entity.BatchOutcome) map[string]any {
	groups := make([]any, 0, len(o.Groups))
	for _, g := range o.Groups {
		groups = append(groups, GroupToMap(g))
	}
	unassigned := o.Unassigned()
	pages := make([]any, 0, len(unassigned))
	for _, p := range unassigned {
		pages = append(pages, PageToMap(p))
	}
	return map[string]any{
		"run_id":      o.RunID.String(),
		"source_path": o.SourcePath,
		"total_pages": o.TotalPages,
		"matched":     o.Matched,
		"unmatched":   o.Unmatched,
		"written":     o.Written,
		"failed":      o.Failed,
		"started_at":  timeOrEmpty(&o.StartedAt),
		"duration_ms": o.Duration.Milliseconds(),
		"groups":      groups,
		"unassigned":  pages,
	}
}

// ToStruct converts a wire map into a protobuf Struct.
func ToStruct(m map[string]any) (*structpb.Struct, error) {
	return structpb.NewStruct(m)
}
