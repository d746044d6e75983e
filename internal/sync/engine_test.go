package sync

import (
	"testing"
	"time"

	"github.com/wordstash/wordstash/internal/clock"
	"github.com/wordstash/wordstash/internal/db"
	apperrors "github.com/wordstash/wordstash/internal/errors"
	"github.com/wordstash/wordstash/internal/models"
	"github.com/wordstash/wordstash/internal/snapshot"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	words   *db.WordStore
	reviews *db.ReviewStore
	engine  *Engine
}

func setupEngine(t *testing.T) *fixture {
	t.Helper()

	database, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := db.NewMigrator(database).Up(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	clk := clock.Fixed(testNow)
	words := db.NewWordStore(database, clk, nil)
	reviews := db.NewReviewStore(database, clk, nil)
	return &fixture{
		words:   words,
		reviews: reviews,
		engine:  NewEngine(words, reviews, clk, nil),
	}
}

func backupWord(id string, updatedAt int64) models.VocabularyItem {
	return models.VocabularyItem{
		ID:             id,
		DisplayText:    "serendipity",
		NormalizedText: "serendipity",
		Context:        "ctx",
		Language:       "en",
		CreatedAt:      testNow.Unix(),
		UpdatedAt:      updatedAt,
	}
}

func backupDoc(words []models.VocabularyItem, states []models.ReviewState) *models.BackupDocument {
	return &models.BackupDocument{
		Version:      snapshot.Version,
		ExportedAt:   testNow.Unix(),
		Words:        words,
		ReviewStates: states,
		Metadata: models.BackupMetadata{
			TotalWords:        len(words),
			TotalReviewStates: len(states),
		},
	}
}

func TestImportDocumentFillsEmptyStore(t *testing.T) {
	f := setupEngine(t)

	doc := backupDoc(
		[]models.VocabularyItem{backupWord("serendipity::", testNow.Unix())},
		[]models.ReviewState{{
			ID: "serendipity::", NextReviewAt: testNow.Unix(), IntervalDays: 1,
			EaseFactor: 2.5, Repetitions: 1,
			History: []models.ReviewLogEntry{{ReviewedAt: testNow.Unix(), Rating: 4}},
		}},
	)

	result, err := f.engine.ImportDocument(doc)
	if err != nil {
		t.Fatalf("ImportDocument failed: %v", err)
	}
	if result.WordsImported != 1 || result.ReviewsImported != 1 {
		t.Errorf("result = %+v", result)
	}

	state, err := f.reviews.FindByOwner("serendipity::")
	if err != nil {
		t.Fatalf("FindByOwner failed: %v", err)
	}
	if len(state.History) != 1 {
		t.Errorf("history = %d entries", len(state.History))
	}
}

func TestImportDocumentIsIdempotent(t *testing.T) {
	f := setupEngine(t)

	doc := backupDoc(
		[]models.VocabularyItem{backupWord("serendipity::", testNow.Unix())},
		[]models.ReviewState{{ID: "serendipity::", EaseFactor: 2.5}},
	)

	if _, err := f.engine.ImportDocument(doc); err != nil {
		t.Fatalf("first import failed: %v", err)
	}
	second, err := f.engine.ImportDocument(doc)
	if err != nil {
		t.Fatalf("second import failed: %v", err)
	}
	if second.WordsImported != 0 || second.ReviewsImported != 0 {
		t.Errorf("second import wrote records: %+v", second)
	}
	if second.WordsSkipped != 1 || second.ReviewsSkipped != 1 {
		t.Errorf("second import should skip everything: %+v", second)
	}
}

func TestImportDocumentLastWriterWins(t *testing.T) {
	f := setupEngine(t)

	local := backupWord("serendipity::", testNow.Unix())
	if err := f.words.Put(&local); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Older incoming copy is skipped.
	older := backupWord("serendipity::", testNow.Add(-time.Hour).Unix())
	older.Note = "stale note"
	result, err := f.engine.ImportDocument(backupDoc([]models.VocabularyItem{older}, nil))
	if err != nil {
		t.Fatalf("ImportDocument failed: %v", err)
	}
	if result.WordsSkipped != 1 {
		t.Errorf("older copy should be skipped: %+v", result)
	}

	// Newer incoming copy overwrites.
	newer := backupWord("serendipity::", testNow.Add(time.Hour).Unix())
	newer.Note = "fresh note"
	result, err = f.engine.ImportDocument(backupDoc([]models.VocabularyItem{newer}, nil))
	if err != nil {
		t.Fatalf("ImportDocument failed: %v", err)
	}
	if result.WordsImported != 1 {
		t.Errorf("newer copy should win: %+v", result)
	}

	loaded, err := f.words.FindByID("serendipity::")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if loaded.Note != "fresh note" {
		t.Errorf("note = %q", loaded.Note)
	}
}

func TestImportDocumentLongerHistoryWins(t *testing.T) {
	f := setupEngine(t)

	word := backupWord("serendipity::", testNow.Unix())
	if err := f.words.Put(&word); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	local := models.ReviewState{
		ID: "serendipity::", EaseFactor: 2.5, Repetitions: 1,
		History: []models.ReviewLogEntry{{ReviewedAt: 1, Rating: 4}},
	}
	if err := f.reviews.Put(&local); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Equal-length incoming history is skipped even with different fields.
	sameLen := models.ReviewState{
		ID: "serendipity::", EaseFactor: 1.3, Repetitions: 9,
		History: []models.ReviewLogEntry{{ReviewedAt: 2, Rating: 5}},
	}
	result, err := f.engine.ImportDocument(backupDoc(nil, []models.ReviewState{sameLen}))
	if err != nil {
		t.Fatalf("ImportDocument failed: %v", err)
	}
	if result.ReviewsSkipped != 1 {
		t.Errorf("equal history should be skipped: %+v", result)
	}

	longer := models.ReviewState{
		ID: "serendipity::", EaseFactor: 2.36, Repetitions: 2,
		History: []models.ReviewLogEntry{
			{ReviewedAt: 1, Rating: 4},
			{ReviewedAt: 2, Rating: 5},
		},
	}
	result, err = f.engine.ImportDocument(backupDoc(nil, []models.ReviewState{longer}))
	if err != nil {
		t.Fatalf("ImportDocument failed: %v", err)
	}
	if result.ReviewsImported != 1 {
		t.Errorf("longer history should win: %+v", result)
	}

	state, err := f.reviews.FindByOwner("serendipity::")
	if err != nil {
		t.Fatalf("FindByOwner failed: %v", err)
	}
	if len(state.History) != 2 || state.Repetitions != 2 {
		t.Errorf("state = %+v", state)
	}
}

func TestImportDocumentAbortsOnShapeProblems(t *testing.T) {
	f := setupEngine(t)

	doc := backupDoc([]models.VocabularyItem{backupWord("serendipity::", testNow.Unix())}, nil)
	doc.Metadata.TotalWords = 99 // shape problem

	_, err := f.engine.ImportDocument(doc)
	if !apperrors.Is(err, apperrors.ErrStructural) {
		t.Fatalf("expected STRUCTURAL_VALIDATION, got %v", err)
	}

	// Nothing was written.
	if _, err := f.words.FindByID("serendipity::"); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("import should abort before any write, got %v", err)
	}
}

func TestDominates(t *testing.T) {
	base := models.RemoteProgress{Repetitions: 2, IntervalDays: 6, EaseFactor: 2.5}

	tests := []struct {
		name string
		a    models.RemoteProgress
		want bool
	}{
		{"more repetitions", models.RemoteProgress{Repetitions: 3, IntervalDays: 1, EaseFactor: 1.3}, true},
		{"fewer repetitions", models.RemoteProgress{Repetitions: 1, IntervalDays: 30, EaseFactor: 2.5}, false},
		{"same reps longer interval", models.RemoteProgress{Repetitions: 2, IntervalDays: 7, EaseFactor: 1.3}, true},
		{"same reps shorter interval", models.RemoteProgress{Repetitions: 2, IntervalDays: 5, EaseFactor: 2.5}, false},
		{"tie broken by ease", models.RemoteProgress{Repetitions: 2, IntervalDays: 6, EaseFactor: 2.6}, true},
		{"full tie", base, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Dominates(tt.a, base); got != tt.want {
				t.Errorf("Dominates(%+v, base) = %v, want %v", tt.a, got, tt.want)
			}
		})
	}
}

func TestMergeRemoteProgressCreatesWithEmptyHistory(t *testing.T) {
	f := setupEngine(t)

	word := backupWord("serendipity::", testNow.Unix())
	if err := f.words.Put(&word); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	payload := &models.ProgressPayload{
		Records: map[string]models.RemoteProgress{
			"serendipity::": {NextReviewAt: testNow.Unix(), IntervalDays: 6, EaseFactor: 2.5, Repetitions: 2},
		},
		CreatedAt: testNow.Unix(),
	}

	result, err := f.engine.MergeRemoteProgress(payload)
	if err != nil {
		t.Fatalf("MergeRemoteProgress failed: %v", err)
	}
	if result.Created != 1 {
		t.Errorf("result = %+v", result)
	}

	state, err := f.reviews.FindByOwner("serendipity::")
	if err != nil {
		t.Fatalf("FindByOwner failed: %v", err)
	}
	if state.Repetitions != 2 || state.IntervalDays != 6 {
		t.Errorf("state = %+v", state)
	}
	// History is never fabricated from remote progress.
	if len(state.History) != 0 {
		t.Errorf("history should be empty, got %d entries", len(state.History))
	}
}

func TestMergeRemoteProgressDominanceAndIdempotence(t *testing.T) {
	f := setupEngine(t)

	word := backupWord("serendipity::", testNow.Unix())
	if err := f.words.Put(&word); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	local := models.ReviewState{
		ID: "serendipity::", NextReviewAt: testNow.Unix(), IntervalDays: 1,
		EaseFactor: 2.5, Repetitions: 1,
		History: []models.ReviewLogEntry{{ReviewedAt: 1, Rating: 4}},
	}
	if err := f.reviews.Put(&local); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	payload := &models.ProgressPayload{
		Records: map[string]models.RemoteProgress{
			"serendipity::": {NextReviewAt: testNow.AddDate(0, 0, 6).Unix(), IntervalDays: 6, EaseFactor: 2.36, Repetitions: 2},
		},
		CreatedAt: testNow.Unix(),
	}

	result, err := f.engine.MergeRemoteProgress(payload)
	if err != nil {
		t.Fatalf("MergeRemoteProgress failed: %v", err)
	}
	if result.Updated != 1 {
		t.Errorf("dominant remote should update: %+v", result)
	}

	state, _ := f.reviews.FindByOwner("serendipity::")
	if state.Repetitions != 2 {
		t.Errorf("repetitions = %d", state.Repetitions)
	}
	// Local history is preserved through the scheduling overwrite.
	if len(state.History) != 1 {
		t.Errorf("history = %d entries, want 1", len(state.History))
	}

	// Applying the same payload again changes nothing.
	again, err := f.engine.MergeRemoteProgress(payload)
	if err != nil {
		t.Fatalf("second merge failed: %v", err)
	}
	if again.Updated != 0 || again.Skipped != 1 {
		t.Errorf("second merge should skip: %+v", again)
	}
}

func TestMergeRemoteProgressNeverRegresses(t *testing.T) {
	f := setupEngine(t)

	word := backupWord("serendipity::", testNow.Unix())
	if err := f.words.Put(&word); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	local := models.ReviewState{ID: "serendipity::", IntervalDays: 30, EaseFactor: 2.5, Repetitions: 5}
	if err := f.reviews.Put(&local); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	payload := &models.ProgressPayload{
		Records: map[string]models.RemoteProgress{
			"serendipity::": {IntervalDays: 1, EaseFactor: 1.3, Repetitions: 0},
		},
		CreatedAt: testNow.Unix(),
	}

	result, err := f.engine.MergeRemoteProgress(payload)
	if err != nil {
		t.Fatalf("MergeRemoteProgress failed: %v", err)
	}
	if result.Skipped != 1 || result.Updated != 0 {
		t.Errorf("weaker remote must not regress local state: %+v", result)
	}

	state, _ := f.reviews.FindByOwner("serendipity::")
	if state.Repetitions != 5 {
		t.Errorf("repetitions regressed to %d", state.Repetitions)
	}
}

func TestMergeRemoteProgressSoftOutcomes(t *testing.T) {
	f := setupEngine(t)

	// Nil payload.
	result, err := f.engine.MergeRemoteProgress(nil)
	if err != nil {
		t.Fatalf("nil payload: %v", err)
	}
	if *result != (MergeResult{}) {
		t.Errorf("nil payload result = %+v", result)
	}

	// Expired payload.
	expired := &models.ProgressPayload{
		Records:   map[string]models.RemoteProgress{"x::": {Repetitions: 1}},
		ExpiresAt: testNow.Add(-time.Minute).Unix(),
	}
	result, err = f.engine.MergeRemoteProgress(expired)
	if err != nil {
		t.Fatalf("expired payload: %v", err)
	}
	if *result != (MergeResult{}) {
		t.Errorf("expired payload result = %+v", result)
	}

	// Empty payload.
	result, err = f.engine.MergeRemoteProgress(&models.ProgressPayload{CreatedAt: testNow.Unix()})
	if err != nil {
		t.Fatalf("empty payload: %v", err)
	}
	if *result != (MergeResult{}) {
		t.Errorf("empty payload result = %+v", result)
	}
}

func TestBuildProgressPayload(t *testing.T) {
	f := setupEngine(t)

	states := []*models.ReviewState{
		{ID: "a::", NextReviewAt: 10, IntervalDays: 1, EaseFactor: 2.5, Repetitions: 1},
		{ID: "b::", NextReviewAt: 20, IntervalDays: 6, EaseFactor: 2.36, Repetitions: 2},
	}

	payload := f.engine.BuildProgressPayload(states, time.Hour)
	if len(payload.Records) != 2 {
		t.Fatalf("records = %d", len(payload.Records))
	}
	if payload.CreatedAt != testNow.Unix() {
		t.Errorf("createdAt = %d", payload.CreatedAt)
	}
	if payload.ExpiresAt != testNow.Add(time.Hour).Unix() {
		t.Errorf("expiresAt = %d", payload.ExpiresAt)
	}
	if got := payload.Records["b::"]; got.Repetitions != 2 || got.IntervalDays != 6 {
		t.Errorf("record = %+v", got)
	}

	// Zero TTL means no expiry.
	open := f.engine.BuildProgressPayload(states, 0)
	if open.ExpiresAt != 0 {
		t.Errorf("zero ttl should leave expiresAt unset, got %d", open.ExpiresAt)
	}
}
