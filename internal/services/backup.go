package services

import (
	"github.com/wordstash/wordstash/internal/bus"
	"github.com/wordstash/wordstash/internal/clock"
	"github.com/wordstash/wordstash/internal/db"
	"github.com/wordstash/wordstash/internal/logging"
	"github.com/wordstash/wordstash/internal/models"
	"github.com/wordstash/wordstash/internal/snapshot"
	syncpkg "github.com/wordstash/wordstash/internal/sync"
)

// BackupService exports the full local state as a portable document
// and imports such documents back through the merge engine.
type BackupService struct {
	words   *db.WordStore
	reviews *db.ReviewStore
	engine  *syncpkg.Engine
	bus     *bus.Bus
	sender  string
	clk     clock.Clock
	log     *logging.Logger
}

// NewBackupService creates a BackupService. Bus is optional; a nil
// clock falls back to the system clock.
func NewBackupService(words *db.WordStore, reviews *db.ReviewStore, engine *syncpkg.Engine,
	eventBus *bus.Bus, clk clock.Clock, log *logging.Logger) *BackupService {
	if clk == nil {
		clk = clock.System
	}
	if log == nil {
		log = logging.Nop()
	}
	s := &BackupService{
		words:   words,
		reviews: reviews,
		engine:  engine,
		bus:     eventBus,
		clk:     clk,
		log:     log,
	}
	if s.bus != nil {
		s.sender = s.bus.NewSender()
	}
	return s
}

// Export builds a backup document of the full local state. Soft-deleted
// words are included so deletions survive a backup/restore cycle.
func (s *BackupService) Export() (*models.BackupDocument, error) {
	words, err := s.words.All()
	if err != nil {
		return nil, err
	}
	states, err := s.reviews.All()
	if err != nil {
		return nil, err
	}
	return snapshot.Build(words, states, s.clk()), nil
}

// ExportJSON serializes the full local state to a JSON document.
func (s *BackupService) ExportJSON() ([]byte, error) {
	doc, err := s.Export()
	if err != nil {
		return nil, err
	}
	return snapshot.Encode(doc)
}

// Import merges a backup document into the local stores and reports
// exact counts. Shape problems abort before anything is written.
func (s *BackupService) Import(doc *models.BackupDocument) (*syncpkg.ImportResult, error) {
	result, err := s.engine.ImportDocument(doc)
	if err != nil {
		return nil, err
	}
	if s.bus != nil {
		s.bus.Publish(s.sender, bus.EventImportCompleted, map[string]interface{}{
			"words_imported":   result.WordsImported,
			"reviews_imported": result.ReviewsImported,
		})
	}
	return result, nil
}

// ImportJSON decodes a JSON document and merges it.
func (s *BackupService) ImportJSON(data []byte) (*syncpkg.ImportResult, error) {
	doc, err := snapshot.Decode(data)
	if err != nil {
		return nil, err
	}
	return s.Import(doc)
}
