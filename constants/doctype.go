package constants

import (
	"strings"
)

// DocumentType is the enabling-document category stored on documentos.tipo.
type DocumentType string

const (
	Bienestar  DocumentType = "bienestar"
	Financiero DocumentType = "financiero"
	Biblioteca DocumentType = "biblioteca"
	SDT        DocumentType = "sdt"
	Memorandum DocumentType = "memorandum"
	Acta       DocumentType = "acta"
	Unknown    DocumentType = "unknown"
)

var allDocumentTypes = []DocumentType{
	Bienestar,
	Financiero,
	Biblioteca,
	SDT,
	Memorandum,
	Acta,
	Unknown,
}

func DocumentTypes() []DocumentType {
	out := make([]DocumentType, len(allDocumentTypes))
	copy(out, allDocumentTypes)
	return out
}

func AsStringSlice() []string {
	result := make([]string, len(allDocumentTypes))
	for i, t := range allDocumentTypes {
		result[i] = string(t)
	}
	return result
}

// Canonicalize maps a user or rules-file label onto a DocumentType.
func Canonicalize(input string) (DocumentType, bool) {
	if input == "" {
		return Unknown, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	synonyms := map[string]DocumentType{
		"finanzas":          Financiero,
		"finanzas_titulo":   Financiero,
		"finanzas_licencia": Financiero,
		"tesoreria":         Financiero,
		"solicitud_titulo":  SDT,
		"memo":              Memorandum,
		"otro":              Unknown,
	}

	if t, ok := synonyms[normalized]; ok {
		return t, true
	}

	for _, t := range allDocumentTypes {
		if normalized == string(t) {
			return t, true
		}
	}

	return Unknown, false
}
