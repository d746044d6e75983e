// Package models provides data model definitions for WordStash.
package models

// VocabularyItem represents one learner-collected word or phrase plus
// the context and metadata it was captured with. Timestamps are unix
// seconds; a zero LastViewedAt or DeletedAt means "never".
type VocabularyItem struct {
	ID             string   `db:"id" json:"id"`
	DisplayText    string   `db:"display_text" json:"displayText"`
	NormalizedText string   `db:"normalized_text" json:"normalizedText"`
	Definitions    []string `db:"definitions" json:"definitions"`
	Phonetic       string   `db:"phonetic" json:"phonetic,omitempty"`
	AudioURL       string   `db:"audio_url" json:"audioUrl,omitempty"`
	Context        string   `db:"context" json:"context,omitempty"`
	SourceURL      string   `db:"source_url" json:"sourceUrl,omitempty"`
	SourceTitle    string   `db:"source_title" json:"sourceTitle,omitempty"`
	Language       string   `db:"language" json:"language"`
	Tags           []string `db:"tags" json:"tags"`
	Favorite       bool     `db:"favorite" json:"favorite"`
	Note           string   `db:"note" json:"note,omitempty"`
	ViewCount      int      `db:"view_count" json:"viewCount"`
	CreatedAt      int64    `db:"created_at" json:"createdAt"`
	UpdatedAt      int64    `db:"updated_at" json:"updatedAt"`
	LastViewedAt   int64    `db:"last_viewed_at" json:"lastViewedAt,omitempty"`
	DeletedAt      int64    `db:"deleted_at" json:"deletedAt,omitempty"`
}

// Deleted reports whether the item has been soft-deleted.
func (v *VocabularyItem) Deleted() bool {
	return v.DeletedAt != 0
}
