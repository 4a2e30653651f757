package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/sgte/pdf-splitter/constants"
)

// DocumentIntent is what the writer hands back for each artifact it committed.
// Persisting it is the caller's job.
type DocumentIntent struct {
	StudentRUN   string                 `json:"student_run"`
	DocumentType constants.DocumentType `json:"document_type"`
	Path         string                 `json:"path"`
	FirstPage    int                    `json:"first_page"`
	LastPage     int                    `json:"last_page"`
}

// Document represents a row in documentos.
type Document struct {
	ID           uuid.UUID              `json:"id"`
	BatchID      *uuid.UUID             `json:"batch_id,omitempty"`
	StudentRUN   string                 `json:"student_run"`
	DocumentType constants.DocumentType `json:"document_type"`
	Path         string                 `json:"path"`
	Validated    bool                   `json:"validated"`
	UploadedAt   time.Time              `json:"uploaded_at"`
}
