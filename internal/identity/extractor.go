// Package identity recovers a student's national ID and name from page text.
package identity

import (
	"regexp"
	"strings"

	"github.com/sgte/pdf-splitter/constants"
	"github.com/sgte/pdf-splitter/internal/entity"
	"github.com/sgte/pdf-splitter/internal/nationalid"
	"github.com/sgte/pdf-splitter/internal/utils"
)

var (
	// 12.345.678-5, 12 345 678 5, 12345678-5, 1.234.567-K, 123456785
	reRUN = regexp.MustCompile(`\b(\d{1,2}(?:[. ]?\d{3}){2})[ \t]*[-‐‑–]?[ \t]*([0-9kK])\b`)

	// digit-like tokens where O/I/l stand in for 0/1
	reDigitish = regexp.MustCompile(`[0-9OoIl][0-9OoIl.\-‐‑–]*[0-9OoIlkK]`)

	nameWord       = `[A-ZÁÉÍÓÚÜÑ][a-záéíóúüñ]+`
	reLabelledName = []*regexp.Regexp{
		regexp.MustCompile(`(?:Alumno|Alumna|Estudiante|Nombre)[:\s]+(` + nameWord + `(?:[ \t]+` + nameWord + `){1,3})`),
		regexp.MustCompile(`(?:Sr\.|Sra\.|Srta\.|Don|Doña)[:\s]+(` + nameWord + `(?:[ \t]+` + nameWord + `){1,3})`),
	}
	reNameWord = regexp.MustCompile(`^` + nameWord + `$`)
)

// headerWords never appear in a person's name line.
var headerWords = map[string]struct{}{
	"certificado": {}, "certifica": {}, "constancia": {}, "universidad": {}, "instituto": {},
	"facultad": {}, "escuela": {}, "departamento": {}, "direccion": {}, "carrera": {},
	"biblioteca": {}, "financiero": {}, "finanzas": {}, "tesoreria": {}, "bienestar": {},
	"estudiantil": {}, "solicitud": {}, "titulo": {}, "memorandum": {}, "acta": {},
	"secretaria": {}, "academica": {}, "vicerrectoria": {}, "registro": {}, "curricular": {},
	"santiago": {}, "chile": {}, "fecha": {}, "pagina": {}, "firma": {}, "timbre": {},
	"estimado": {}, "estimada": {}, "senor": {}, "senora": {}, "presente": {}, "atentamente": {},
}

var connectors = map[string]struct{}{
	"de": {}, "del": {}, "la": {}, "las": {}, "los": {}, "y": {},
}

// nameScanLines bounds the unlabelled name search to the page header.
const nameScanLines = 8

// Extract returns the identity signal of one page. It never fails; a page
// with no usable text yields a candidate with ConfidenceNone.
func Extract(text string) entity.IdentityCandidate {
	var c entity.IdentityCandidate
	if strings.TrimSpace(text) == "" {
		c.Confidence = constants.ConfidenceNone
		return c
	}

	c.IDNumber, c.IDValid = findRUN(repairDigits(text))
	c.FullNameGuess = findName(text)

	switch {
	case c.IDValid:
		c.Confidence = constants.ConfidenceHigh
	case c.IDNumber != "" || c.FullNameGuess != "":
		c.Confidence = constants.ConfidenceMedium
	default:
		c.Confidence = constants.ConfidenceNone
	}
	return c
}

// findRUN scans every ID-shaped substring. The first checksum-valid one wins;
// otherwise the first well-formed one is returned as invalid.
func findRUN(text string) (string, bool) {
	first := ""
	for _, m := range reRUN.FindAllStringSubmatch(text, -1) {
		raw := m[1] + "-" + m[2]
		norm, err := nationalid.Validate(raw)
		if err == nil {
			return norm, true
		}
		if first == "" && norm != "" {
			first = norm
		}
	}
	return first, false
}

// repairDigits fixes common OCR confusions inside tokens that are mostly digits.
func repairDigits(text string) string {
	return reDigitish.ReplaceAllStringFunc(text, func(tok string) string {
		digits := 0
		for _, r := range tok {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		if digits < 5 {
			return tok
		}
		return strings.Map(func(r rune) rune {
			switch r {
			case 'O', 'o':
				return '0'
			case 'I', 'l':
				return '1'
			}
			return r
		}, tok)
	})
}

// findName prefers a labelled name and falls back to the first name-shaped
// header line.
func findName(text string) string {
	for _, re := range reLabelledName {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}

	seen := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		seen++
		if seen > nameScanLines {
			break
		}
		if looksLikeName(line) {
			return line
		}
	}
	return ""
}

func looksLikeName(line string) bool {
	words := strings.Fields(line)
	if len(words) < 2 || len(words) > 5 {
		return false
	}
	proper := 0
	for i, w := range words {
		folded := utils.Fold(w)
		if _, ok := headerWords[folded]; ok {
			return false
		}
		if _, ok := connectors[folded]; ok && i > 0 && i < len(words)-1 && w == folded {
			continue
		}
		if !reNameWord.MatchString(w) {
			return false
		}
		proper++
	}
	return proper >= 2
}
