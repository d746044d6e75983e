package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/wordstash/wordstash/internal/clock"
	"github.com/wordstash/wordstash/internal/db"
	apperrors "github.com/wordstash/wordstash/internal/errors"
	"github.com/wordstash/wordstash/internal/logging"
	"github.com/wordstash/wordstash/internal/models"
	"github.com/wordstash/wordstash/internal/services"
	syncpkg "github.com/wordstash/wordstash/internal/sync"
)

// server holds the HTTP handlers and their collaborators.
type server struct {
	collect *services.CollectService
	backup  *services.BackupService
	quiz    *services.QuizService
	sync    *services.RemoteSyncService
	words   *db.WordStore
	reviews *db.ReviewStore
	hub     *wsHub
	notify  func()
	clk     clock.Clock
	log     *logging.Logger
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/words", s.handleWords)
	mux.HandleFunc("/api/words/", s.handleWordByID)
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/reviews/due", s.handleDue)
	mux.HandleFunc("/api/reviews/record", s.handleRecordReview)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/export", s.handleExport)
	mux.HandleFunc("/api/import", s.handleImport)
	mux.HandleFunc("/api/quiz", s.handleQuizCreate)
	mux.HandleFunc("/api/quiz/merge", s.handleQuizMerge)
	mux.HandleFunc("/api/sync", s.handleSync)
	if s.hub != nil {
		mux.HandleFunc("/ws", s.hub.ServeWS)
	}
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWords serves POST (collect a word) and GET (recent words).
func (s *server) handleWords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var draft db.Draft
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		item, err := s.collect.Collect(r.Context(), draft)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, item)

	case http.MethodGet:
		limit := queryInt(r, "limit", 50)
		var (
			items []*models.VocabularyItem
			err   error
		)
		switch {
		case r.URL.Query().Get("tag") != "":
			items, err = s.words.FindByTag(r.URL.Query().Get("tag"))
		case r.URL.Query().Get("favorites") == "true":
			items, err = s.words.FindFavorites()
		default:
			items, err = s.words.FindRecent(limit)
		}
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleWordByID serves GET (fetch), DELETE (soft delete) and
// POST .../view (bump the view counter) for a single word.
func (s *server) handleWordByID(w http.ResponseWriter, r *http.Request) {
	// Derived ids may contain slashes, so only the known action suffix
	// is split off the path.
	rest := strings.TrimPrefix(r.URL.Path, "/api/words/")
	id, action := rest, ""
	if strings.HasSuffix(rest, "/view") {
		id, action = strings.TrimSuffix(rest, "/view"), "view"
	}
	if id == "" {
		http.Error(w, "missing word id", http.StatusBadRequest)
		return
	}

	switch {
	case r.Method == http.MethodGet && action == "":
		item, err := s.words.FindByID(id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)

	case r.Method == http.MethodDelete && action == "":
		if err := s.collect.Delete(id); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodPost && action == "view":
		if err := s.words.IncrementViewCount(id); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodPatch && action == "":
		var patch db.Patch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		item, err := s.words.Update(id, patch)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if s.notify != nil {
			s.notify()
		}
		writeJSON(w, http.StatusOK, item)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	items, err := s.words.Search(r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if items == nil {
		items = []*models.VocabularyItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *server) handleDue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	states, err := s.reviews.FindDue(queryInt(r, "limit", 20), s.clk())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, states)
}

func (s *server) handleRecordReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		ID     string `json:"id"`
		Rating int    `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	state, err := s.collect.Review(req.ID, req.Rating)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats, err := s.reviews.Stats(s.clk())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := s.backup.ExportJSON()
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="wordstash-backup.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	result, err := s.backup.ImportJSON(data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.notify != nil {
		s.notify()
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleQuizCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	key, payload, err := s.quiz.Create(queryInt(r, "limit", 20))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"key":     key,
		"payload": payload,
	})
}

func (s *server) handleQuizMerge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Key     string                  `json:"key"`
		Payload *models.ProgressPayload `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	var (
		result *syncpkg.MergeResult
		err    error
	)
	if req.Payload != nil {
		result, err = s.quiz.MergePayload(req.Payload)
	} else {
		result, err = s.quiz.Merge(req.Key)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.notify != nil {
		s.notify()
	}
	writeJSON(w, http.StatusOK, result)
}

// handleSync triggers a remote sync immediately.
func (s *server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.sync == nil {
		http.Error(w, "remote sync not configured", http.StatusServiceUnavailable)
		return
	}
	result, err := s.sync.Run(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeError maps application error codes to HTTP status codes.
func (s *server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
		switch appErr.Code {
		case apperrors.ErrValidation, apperrors.ErrStructural:
			status = http.StatusBadRequest
		case apperrors.ErrNotFound:
			status = http.StatusNotFound
		case apperrors.ErrDuplicate:
			status = http.StatusConflict
		case apperrors.ErrNetwork:
			status = http.StatusBadGateway
		}
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", err)
	}

	body := map[string]interface{}{"error": message}
	if appErr != nil && len(appErr.Issues) > 0 {
		body["issues"] = appErr.Issues
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
