// WordStore: CRUD operations for vocabulary items.
package db

import (
	"database/sql"
	"encoding/json"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/wordstash/wordstash/internal/clock"
	apperrors "github.com/wordstash/wordstash/internal/errors"
	"github.com/wordstash/wordstash/internal/identity"
	"github.com/wordstash/wordstash/internal/logging"
	"github.com/wordstash/wordstash/internal/models"
)

// Field constraints enforced on create and update.
const (
	maxTextLen    = 50
	maxContextLen = 500
	maxTags       = 10
	maxTagLen     = 20
)

// supportedLanguages is the fixed set of accepted language codes.
var supportedLanguages = map[string]bool{
	"en": true, "ja": true, "ko": true, "zh": true,
	"fr": true, "de": true, "es": true, "ru": true,
}

// WordStore owns VocabularyItem records.
type WordStore struct {
	db  *sql.DB
	clk clock.Clock
	log *logging.Logger
}

// NewWordStore creates a WordStore. A nil clock falls back to the
// system clock; a nil logger stays silent.
func NewWordStore(db *sql.DB, clk clock.Clock, log *logging.Logger) *WordStore {
	if clk == nil {
		clk = clock.System
	}
	if log == nil {
		log = logging.Nop()
	}
	return &WordStore{db: db, clk: clk, log: log}
}

// Draft is the caller-supplied input for Create.
type Draft struct {
	Text        string
	Context     string
	SourceURL   string
	SourceTitle string
	Language    string
	Tags        []string
	Definitions []string
	Phonetic    string
	AudioURL    string
	Note        string
	Favorite    bool
}

// validate checks the field constraints and returns every problem found.
func (d *Draft) validate() []string {
	var issues []string

	textLen := utf8.RuneCountInString(strings.TrimSpace(d.Text))
	if textLen < 1 || textLen > maxTextLen {
		issues = append(issues, "text must be 1-50 characters")
	}
	if n := utf8.RuneCountInString(d.Context); n < 1 || n > maxContextLen {
		issues = append(issues, "context must be 1-500 characters")
	}
	if len(d.Tags) > maxTags {
		issues = append(issues, "at most 10 tags allowed")
	}
	for _, tag := range d.Tags {
		if n := utf8.RuneCountInString(tag); n < 1 || n > maxTagLen {
			issues = append(issues, "tag must be 1-20 characters: "+tag)
			break
		}
	}
	if d.SourceURL != "" {
		if u, err := url.Parse(d.SourceURL); err != nil || u.Scheme == "" || u.Host == "" {
			issues = append(issues, "source URL must be well-formed or empty")
		}
	}
	if d.Language != "" && !supportedLanguages[d.Language] {
		issues = append(issues, "unsupported language code: "+d.Language)
	}

	return issues
}

// Create validates the draft, derives the item identity and inserts a
// new record. It fails with DUPLICATE when a live record with the same
// derived id already exists; re-collecting a soft-deleted word revives
// it as a fresh record.
func (s *WordStore) Create(draft Draft) (*models.VocabularyItem, error) {
	if issues := draft.validate(); len(issues) > 0 {
		return nil, apperrors.New(apperrors.ErrValidation, strings.Join(issues, "; "))
	}

	language := draft.Language
	if language == "" {
		language = "en"
	}

	now := s.clk().Unix()
	item := &models.VocabularyItem{
		ID:             identity.DeriveID(draft.Text, draft.SourceURL),
		DisplayText:    strings.TrimSpace(draft.Text),
		NormalizedText: identity.Normalize(draft.Text),
		Definitions:    draft.Definitions,
		Phonetic:       draft.Phonetic,
		AudioURL:       draft.AudioURL,
		Context:        draft.Context,
		SourceURL:      draft.SourceURL,
		SourceTitle:    draft.SourceTitle,
		Language:       language,
		Tags:           draft.Tags,
		Favorite:       draft.Favorite,
		Note:           draft.Note,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var deletedAt int64
	err := s.db.QueryRow("SELECT deleted_at FROM words WHERE id = ?", item.ID).Scan(&deletedAt)
	switch {
	case err == sql.ErrNoRows:
		// No record: plain insert below.
	case err != nil:
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to check existing word", err)
	case deletedAt == 0:
		return nil, apperrors.Newf(apperrors.ErrDuplicate, "word already exists: %s", item.ID)
	}

	if err := s.Put(item); err != nil {
		return nil, err
	}

	s.log.Debug("word created", map[string]interface{}{"id": item.ID})
	return item, nil
}

// Put writes the item exactly as given, preserving its timestamps. It
// is the raw upsert used by Create and by the merge engine's import
// path; it never bypasses the id uniqueness invariant because the id
// is the primary key.
func (s *WordStore) Put(item *models.VocabularyItem) error {
	query := `
	INSERT OR REPLACE INTO words (id, display_text, normalized_text, definitions, phonetic,
		audio_url, context, source_url, source_title, language, tags, favorite, note,
		view_count, created_at, updated_at, last_viewed_at, deleted_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, item.ID, item.DisplayText, item.NormalizedText,
		marshalStrings(item.Definitions), item.Phonetic, item.AudioURL, item.Context,
		item.SourceURL, item.SourceTitle, item.Language, marshalStrings(item.Tags),
		item.Favorite, item.Note, item.ViewCount, item.CreatedAt, item.UpdatedAt,
		item.LastViewedAt, item.DeletedAt)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to write word", err)
	}
	return nil
}

const wordColumns = `id, display_text, normalized_text, definitions, phonetic, audio_url,
	context, source_url, source_title, language, tags, favorite, note, view_count,
	created_at, updated_at, last_viewed_at, deleted_at`

// FindByID retrieves a word by id, soft-deleted records included.
func (s *WordStore) FindByID(id string) (*models.VocabularyItem, error) {
	row := s.db.QueryRow("SELECT "+wordColumns+" FROM words WHERE id = ?", id)
	item, err := scanWord(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "word not found: %s", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to load word", err)
	}
	return item, nil
}

// FindByNormalizedText returns live words whose normalized text matches
// the normalization of the given text.
func (s *WordStore) FindByNormalizedText(text string) ([]*models.VocabularyItem, error) {
	return s.queryWords(
		"SELECT "+wordColumns+" FROM words WHERE normalized_text = ? AND deleted_at = 0 ORDER BY created_at DESC",
		identity.Normalize(text))
}

// FindByTag returns live words carrying the given tag.
func (s *WordStore) FindByTag(tag string) ([]*models.VocabularyItem, error) {
	items, err := s.queryWords(
		"SELECT " + wordColumns + " FROM words WHERE deleted_at = 0 ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	// Tags are stored as a JSON array; match exactly in memory rather
	// than substring-matching the encoded column.
	var matched []*models.VocabularyItem
	for _, item := range items {
		for _, t := range item.Tags {
			if t == tag {
				matched = append(matched, item)
				break
			}
		}
	}
	return matched, nil
}

// FindFavorites returns live favorite words, most recent first.
func (s *WordStore) FindFavorites() ([]*models.VocabularyItem, error) {
	return s.queryWords(
		"SELECT " + wordColumns + " FROM words WHERE favorite = 1 AND deleted_at = 0 ORDER BY created_at DESC")
}

// FindRecent returns up to limit live words ordered by creation time,
// newest first.
func (s *WordStore) FindRecent(limit int) ([]*models.VocabularyItem, error) {
	return s.queryWords(
		"SELECT "+wordColumns+" FROM words WHERE deleted_at = 0 ORDER BY created_at DESC LIMIT ?",
		limit)
}

// All returns every word including soft-deleted ones. Used by export so
// deletions survive a backup/restore cycle.
func (s *WordStore) All() ([]*models.VocabularyItem, error) {
	return s.queryWords("SELECT " + wordColumns + " FROM words ORDER BY created_at")
}

// Search performs a case-insensitive substring match across normalized
// text, definitions, context and tags, excluding soft-deleted items.
// An empty query returns an empty result set.
func (s *WordStore) Search(query string) ([]*models.VocabularyItem, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	return s.queryWords(`
	SELECT `+wordColumns+` FROM words
	WHERE deleted_at = 0 AND (
		instr(lower(normalized_text), ?) > 0 OR
		instr(lower(definitions), ?) > 0 OR
		instr(lower(context), ?) > 0 OR
		instr(lower(tags), ?) > 0
	)
	ORDER BY created_at DESC`, q, q, q, q)
}

// SoftDelete marks a live word as deleted.
func (s *WordStore) SoftDelete(id string) error {
	now := s.clk().Unix()
	result, err := s.db.Exec(
		"UPDATE words SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at = 0",
		now, now, id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to delete word", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.Newf(apperrors.ErrNotFound, "word not found: %s", id)
	}
	return nil
}

// HardDelete removes a word permanently; its review state cascades.
func (s *WordStore) HardDelete(id string) error {
	result, err := s.db.Exec("DELETE FROM words WHERE id = ?", id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to delete word", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.Newf(apperrors.ErrNotFound, "word not found: %s", id)
	}
	return nil
}

// DeleteAll removes every word and, via cascade, all review data.
func (s *WordStore) DeleteAll() error {
	if _, err := s.db.Exec("DELETE FROM words"); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to clear words", err)
	}
	return nil
}

// IncrementViewCount bumps the view counter and stamps lastViewedAt.
func (s *WordStore) IncrementViewCount(id string) error {
	result, err := s.db.Exec(
		"UPDATE words SET view_count = view_count + 1, last_viewed_at = ? WHERE id = ? AND deleted_at = 0",
		s.clk().Unix(), id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to increment view count", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.Newf(apperrors.ErrNotFound, "word not found: %s", id)
	}
	return nil
}

// Patch describes a partial update; nil fields are left unchanged.
// UpdatedAt is accepted for symmetry with imported documents but the
// store always stamps its own.
type Patch struct {
	DisplayText *string
	Definitions *[]string
	Context     *string
	SourceTitle *string
	Tags        *[]string
	Favorite    *bool
	Note        *string
	UpdatedAt   *int64
}

// Update applies a patch to an existing word. It always stamps
// updatedAt from the store's clock, even when the patch carries its own
// timestamp.
func (s *WordStore) Update(id string, patch Patch) (*models.VocabularyItem, error) {
	item, err := s.FindByID(id)
	if err != nil {
		return nil, err
	}

	if patch.DisplayText != nil {
		item.DisplayText = *patch.DisplayText
		item.NormalizedText = identity.Normalize(*patch.DisplayText)
	}
	if patch.Definitions != nil {
		item.Definitions = *patch.Definitions
	}
	if patch.Context != nil {
		item.Context = *patch.Context
	}
	if patch.SourceTitle != nil {
		item.SourceTitle = *patch.SourceTitle
	}
	if patch.Tags != nil {
		item.Tags = *patch.Tags
	}
	if patch.Favorite != nil {
		item.Favorite = *patch.Favorite
	}
	if patch.Note != nil {
		item.Note = *patch.Note
	}

	draft := Draft{
		Text:      item.DisplayText,
		Context:   item.Context,
		SourceURL: item.SourceURL,
		Language:  item.Language,
		Tags:      item.Tags,
	}
	if issues := draft.validate(); len(issues) > 0 {
		return nil, apperrors.New(apperrors.ErrValidation, strings.Join(issues, "; "))
	}

	item.UpdatedAt = s.clk().Unix()
	if err := s.Put(item); err != nil {
		return nil, err
	}
	return item, nil
}

// queryWords runs a multi-row word query.
func (s *WordStore) queryWords(query string, args ...interface{}) ([]*models.VocabularyItem, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to query words", err)
	}
	defer rows.Close()

	var items []*models.VocabularyItem
	for rows.Next() {
		item, err := scanWord(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan word", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to iterate words", err)
	}
	return items, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanWord scans one word row.
func scanWord(row scanner) (*models.VocabularyItem, error) {
	var item models.VocabularyItem
	var definitions, tags string
	err := row.Scan(
		&item.ID, &item.DisplayText, &item.NormalizedText, &definitions, &item.Phonetic,
		&item.AudioURL, &item.Context, &item.SourceURL, &item.SourceTitle, &item.Language,
		&tags, &item.Favorite, &item.Note, &item.ViewCount,
		&item.CreatedAt, &item.UpdatedAt, &item.LastViewedAt, &item.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Definitions = unmarshalStrings(definitions)
	item.Tags = unmarshalStrings(tags)
	return &item, nil
}

// marshalStrings encodes a string slice as a JSON array column value.
func marshalStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// unmarshalStrings decodes a JSON array column value.
func unmarshalStrings(data string) []string {
	if data == "" || data == "[]" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil
	}
	return values
}
