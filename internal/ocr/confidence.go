package ocr

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	reDate  = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-](19|20)\d{2}\b|\bde (19|20)\d{2}\b`)
	reIDish = regexp.MustCompile(`\b\d{1,2}\.?\d{3}\.?\d{3}\s*-\s*[\dkK]\b`)
)

func hasDatePattern(s string) bool { return reDate.MatchString(s) }
func hasIDPattern(s string) bool   { return reIDish.MatchString(s) }

// letterRatio is the share of letters among non-space runes.
func letterRatio(s string) float64 {
	var letters, total int
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(letters) / float64(total)
}

// naive heuristic confidence based on decoded text characteristics
func heuristicConfidence(txt string) float64 {
	if strings.TrimSpace(txt) == "" {
		return 0
	}
	txtL := strings.ToLower(txt)
	score := 0.2 // base
	if hasIDPattern(txtL) {
		score += 0.2
	}
	if hasDatePattern(txtL) {
		score += 0.15
	}
	if letterRatio(txt) > 0.6 {
		score += 0.15
	} // mostly words, not speckle
	if len(txt) > 120 {
		score += 0.1
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// blend weights the engine score higher if present.
func blend(ocrConf, heurConf float64) float64 {
	var conf float64
	if ocrConf > 0 {
		conf = 0.7*ocrConf + 0.3*heurConf
	} else {
		conf = heurConf
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}

// parseTSV rebuilds line-broken text from tesseract TSV output and returns the
// mean word confidence in 0..1.
func parseTSV(out []byte) (string, float64) {
	lines := strings.Split(string(out), "\n")
	var (
		b        strings.Builder
		sum, n   float64
		lastLine string
	)
	for i, ln := range lines {
		if i == 0 || len(ln) == 0 {
			continue
		} // skip header
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		// level 5 rows are words
		if cols[0] != "5" {
			continue
		}
		word := strings.TrimSpace(cols[11])
		if word == "" {
			continue
		}
		lineKey := cols[1] + "." + cols[2] + "." + cols[3] + "." + cols[4]
		switch {
		case b.Len() == 0:
		case lineKey != lastLine:
			b.WriteByte('\n')
		default:
			b.WriteByte(' ')
		}
		lastLine = lineKey
		b.WriteString(word)

		confStr := cols[10]
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil && v >= 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return b.String(), 0
	}
	return b.String(), sum / n / 100.0
}
