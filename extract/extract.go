// Package extract classifies free-form Arabic real-estate chat text into
// structured property data using ordered keyword tables and independent
// numeric patterns. Extraction is pure: the same text always yields the
// same record.
package extract

import (
	"math"
	"strconv"
	"strings"

	"wa_ingest/identity"
	"wa_ingest/models"
)

// Extractor holds the compiled rule tables
type Extractor struct {
	numericPatterns []*numericPattern
}

// New returns an Extractor with the built-in rule tables.
func New() *Extractor {
	return &Extractor{numericPatterns: initNumericPatterns()}
}

var defaultExtractor = New()

// Extract runs the default Extractor over text.
func Extract(text string) *models.ExtractedPropertyData {
	return defaultExtractor.Extract(text)
}

// Extract returns the property data found in text, or nil when text is a
// system message, a bare price inquiry, or carries neither a property type
// nor a transaction type.
func (e *Extractor) Extract(text string) *models.ExtractedPropertyData {
	lower := strings.ToLower(text)
	if IsSystemMessage(lower) {
		return nil
	}

	data := &models.ExtractedPropertyData{Features: []string{}}
	data.PropertyType, _ = firstMatch(propertyTypeRules, lower)
	data.TransactionType, _ = firstMatch(transactionTypeRules, lower)

	if isPriceInquiry(lower) && !data.TransactionType.IsOffer() {
		return nil
	}
	if data.PropertyType == "" && data.TransactionType == "" {
		return nil
	}

	numeric := digitFolder.Replace(text)
	for _, p := range e.numericPatterns {
		if m := p.regex.FindStringSubmatch(numeric); m != nil {
			if n, err := strconv.ParseInt(m[1], 10, p.bitSize()); err == nil {
				p.set(data, int(n))
			}
		}
	}
	data.FloorNumber = extractFloor(numeric)
	data.TotalPrice = extractPrice(numeric)

	data.Finishing, _ = firstMatch(finishingRules, lower)
	data.Features = extractFeatures(lower)
	data.ContactNumber = identity.FindLocalMobile(numeric)
	data.Description = text

	return data
}

// IsSystemMessage reports whether text is an administrative export line.
// text is expected lowercased.
func IsSystemMessage(text string) bool {
	for _, marker := range systemMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func isPriceInquiry(text string) bool {
	for _, marker := range priceInquiryMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func extractFloor(text string) *int {
	m := floorRegex.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	if n, ok := floorWords[m[1]]; ok {
		return &n
	}
	n, err := strconv.ParseInt(m[1], 10, 32)
	if err != nil {
		return nil
	}
	floor := int(n)
	return &floor
}

// extractPrice scales the number after "سعر"/"مطلوب" by the first unit word
// that follows it, looking no further than the next number.
func extractPrice(text string) *int64 {
	loc := priceRegex.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil
	}
	value, err := strconv.ParseFloat(text[loc[2]:loc[3]], 64)
	if err != nil {
		return nil
	}

	tail := text[loc[3]:]
	if next := digitRegex.FindStringIndex(tail); next != nil {
		tail = tail[:next[0]]
	}
	if unit := unitRegex.FindString(tail); unit != "" {
		value *= unitMultipliers[unit]
	}

	value = math.Round(value)
	if math.IsNaN(value) || math.IsInf(value, 0) || value >= math.MaxInt64 {
		return nil
	}
	price := int64(value)
	return &price
}

func extractFeatures(text string) []string {
	features := []string{}
	seen := make(map[string]bool)
	for _, phrase := range featurePhrases {
		if seen[phrase] || !strings.Contains(text, phrase) {
			continue
		}
		seen[phrase] = true
		features = append(features, phrase)
	}
	return features
}
