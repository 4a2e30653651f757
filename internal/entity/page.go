package entity

import "github.com/sgte/pdf-splitter/constants"

// Recognition methods recorded on a SourcePage.
const (
	MethodPDFText = "pdf-text"
	MethodPageOCR = "page-ocr"
	MethodNone    = "none"
)

// SourcePage is one page of the input document after recognition.
type SourcePage struct {
	Index         int      `json:"index"`
	Raster        string   `json:"-"`
	Text          string   `json:"text"`
	OCRConfidence float64  `json:"ocr_confidence"`
	Method        string   `json:"method"`
	Warnings      []string `json:"warnings,omitempty"`
}

// Blank reports whether the page carries no recognized text at all.
func (p SourcePage) Blank() bool {
	for _, r := range p.Text {
		if r != ' ' && r != '\n' && r != '\t' && r != '\r' && r != '\f' {
			return false
		}
	}
	return true
}

// IdentityCandidate is the identity signal recovered from one page.
type IdentityCandidate struct {
	IDNumber      string               `json:"id_number,omitempty"`
	IDValid       bool                 `json:"id_valid"`
	FullNameGuess string               `json:"full_name_guess,omitempty"`
	Confidence    constants.Confidence `json:"confidence"`
}

// PageResult is the unit consumed by grouping.
type PageResult struct {
	Page         SourcePage             `json:"page"`
	Identity     IdentityCandidate      `json:"identity"`
	DocumentType constants.DocumentType `json:"document_type"`
}
