// Package snapshot encodes, decodes and validates portable backup
// documents. Validation reports every field-level problem it finds so
// an import can be rejected atomically with a precise summary.
package snapshot

import (
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/wordstash/wordstash/internal/errors"
	"github.com/wordstash/wordstash/internal/models"
)

// Version is the current backup document schema version.
const Version = "1.0"

// Build assembles a BackupDocument from store contents.
func Build(words []*models.VocabularyItem, states []*models.ReviewState, now time.Time) *models.BackupDocument {
	doc := &models.BackupDocument{
		Version:    Version,
		ExportedAt: now.Unix(),
	}
	for _, w := range words {
		doc.Words = append(doc.Words, *w)
	}
	for _, s := range states {
		doc.ReviewStates = append(doc.ReviewStates, *s)
	}
	doc.Metadata = models.BackupMetadata{
		TotalWords:        len(doc.Words),
		TotalReviewStates: len(doc.ReviewStates),
	}
	return doc
}

// Encode serializes a document to JSON.
func Encode(doc *models.BackupDocument) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "failed to encode backup document", err)
	}
	return data, nil
}

// Decode parses and validates a document. A shape problem yields a
// STRUCTURAL_VALIDATION error carrying the full issue list.
func Decode(data []byte) (*models.BackupDocument, error) {
	var doc models.BackupDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.Structural([]string{"document is not valid JSON: " + err.Error()})
	}
	if issues := Validate(&doc); len(issues) > 0 {
		return nil, apperrors.Structural(issues)
	}
	return &doc, nil
}

// Validate checks the structural shape of a document and returns every
// problem found, empty when the document is well-formed.
func Validate(doc *models.BackupDocument) []string {
	var issues []string

	if doc.Version == "" {
		issues = append(issues, "version: missing")
	}
	if doc.ExportedAt <= 0 {
		issues = append(issues, "exportedAt: must be a positive timestamp")
	}
	if doc.Metadata.TotalWords != len(doc.Words) {
		issues = append(issues, fmt.Sprintf("metadata.totalWords: %d does not match %d words",
			doc.Metadata.TotalWords, len(doc.Words)))
	}
	if doc.Metadata.TotalReviewStates != len(doc.ReviewStates) {
		issues = append(issues, fmt.Sprintf("metadata.totalReviewStates: %d does not match %d review states",
			doc.Metadata.TotalReviewStates, len(doc.ReviewStates)))
	}

	for i := range doc.Words {
		issues = append(issues, validateWord(i, &doc.Words[i])...)
	}
	for i := range doc.ReviewStates {
		issues = append(issues, validateState(i, &doc.ReviewStates[i])...)
	}

	return issues
}

func validateWord(i int, w *models.VocabularyItem) []string {
	var issues []string
	if w.ID == "" {
		issues = append(issues, fmt.Sprintf("words[%d].id: missing", i))
	}
	if w.DisplayText == "" {
		issues = append(issues, fmt.Sprintf("words[%d].displayText: missing", i))
	}
	if w.NormalizedText == "" {
		issues = append(issues, fmt.Sprintf("words[%d].normalizedText: missing", i))
	}
	if w.ViewCount < 0 {
		issues = append(issues, fmt.Sprintf("words[%d].viewCount: must be non-negative", i))
	}
	if len(w.Tags) > 10 {
		issues = append(issues, fmt.Sprintf("words[%d].tags: more than 10 tags", i))
	}
	if w.CreatedAt <= 0 {
		issues = append(issues, fmt.Sprintf("words[%d].createdAt: must be a positive timestamp", i))
	}
	return issues
}

func validateState(i int, s *models.ReviewState) []string {
	var issues []string
	if s.ID == "" {
		issues = append(issues, fmt.Sprintf("reviewStates[%d].id: missing", i))
	}
	if s.IntervalDays < 0 {
		issues = append(issues, fmt.Sprintf("reviewStates[%d].intervalDays: must be non-negative", i))
	}
	if s.Repetitions < 0 {
		issues = append(issues, fmt.Sprintf("reviewStates[%d].repetitions: must be non-negative", i))
	}
	if s.EaseFactor < 1.3 || s.EaseFactor > 2.5 {
		issues = append(issues, fmt.Sprintf("reviewStates[%d].easeFactor: %g outside [1.3, 2.5]", i, s.EaseFactor))
	}
	for j, entry := range s.History {
		if entry.Rating < 1 || entry.Rating > 5 {
			issues = append(issues, fmt.Sprintf("reviewStates[%d].history[%d].rating: %d outside 1..5", i, j, entry.Rating))
		}
	}
	return issues
}
