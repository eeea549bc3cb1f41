// Package ocr provides the label OCR adapter behind ports.LabelExtractor,
// backed by Google Cloud Vision document text detection, plus the pure text
// parser that turns recognized label lines into candidate nutrient tokens.
package ocr

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/foodgenie/foodgenie/internal/domain"
)

// nutrientLinePattern matches nutrition label lines of the form
// "Total Fat 12g", "Sodium: 600 mg", "Calories 250", or "Sat. Fat 5 g 25%".
// The unit is optional; percent captures daily-value columns.
var nutrientLinePattern = regexp.MustCompile(
	`(?i)^([a-z][a-z .\-]*?)[:\s]\s*(\d+(?:\.\d+)?)\s*(g|mg|mcg|kcal|kj|%)?(?:\b|$)`,
)

// ParseLabelText converts recognized label text into candidate nutrient
// tokens, one per matching line, in reading order. Lines that do not look
// like a nutrient row (headers, serving size text, ingredient lists) are
// skipped. The extractor's block confidence is attached to every token.
//
// The parser is deliberately permissive: downstream normalization decides
// whether a token names a real nutrient, so "Serving Size 2" passing through
// here is harmless.
func ParseLabelText(text string, confidence float64) domain.OCRExtraction {
	var extraction domain.OCRExtraction

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		m := nutrientLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		value, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}

		extraction = append(extraction, domain.OCREntry{
			NutrientName: strings.TrimSpace(m[1]),
			RawValue:     value,
			RawUnit:      strings.ToLower(m[3]),
			Confidence:   confidence,
		})
	}

	return extraction
}
