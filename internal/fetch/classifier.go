package fetch

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/metabolink/hmdbscan/internal/scan"
)

// Keywords that must both appear in the MetaboCard text for the record to
// count as Endogenous/Animal. Deliberately tolerant of page layout changes.
const (
	keywordEndogenous = "endogenous"
	keywordAnimal     = "animal"
)

// PageClassifier decides the Endogenous/Animal flag from a MetaboCard page.
// A page that parses but lacks the keywords classifies as No: absence of the
// flag means the record is not tagged, it is not a parse failure.
type PageClassifier struct{}

// NewPageClassifier returns the keyword-based classifier.
func NewPageClassifier() *PageClassifier {
	return &PageClassifier{}
}

// Classify reports FlagYes when both keywords appear anywhere in the page
// text. An empty or textless document is an error (the caller surfaces it as
// a parse failure).
func (c *PageClassifier) Classify(body []byte) (scan.Flag, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}
	text := strings.ToLower(doc.Text())
	if strings.TrimSpace(text) == "" {
		return "", errors.New("document has no text content")
	}
	if strings.Contains(text, keywordEndogenous) && strings.Contains(text, keywordAnimal) {
		return scan.FlagYes, nil
	}
	return scan.FlagNo, nil
}
