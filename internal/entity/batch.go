package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/sgte/pdf-splitter/constants"
)

// Batch represents a source PDF (lote) for data transfer between layers.
type Batch struct {
	ID          uuid.UUID             `json:"id"`
	SourcePath  string                `json:"source_path"`
	ContentHash []byte                `json:"content_hash"`
	Filename    string                `json:"filename"`
	FileSize    int64                 `json:"file_size"`
	Pages       int                   `json:"pages"`
	Status      constants.BatchStatus `json:"status"`
	Matched     int                   `json:"matched"`
	Unmatched   int                   `json:"unmatched"`
	Written     int                   `json:"written"`
	Failed      int                   `json:"failed"`
	Error       *string               `json:"error,omitempty"`
	UploadedAt  time.Time             `json:"uploaded_at"`
	FinishedAt  *time.Time            `json:"finished_at,omitempty"`
}
