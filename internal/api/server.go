// Package api exposes the HTTP surface: batch ingestion, question answering,
// theme analysis streaming and session teardown.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"docqa/internal/apperr"
	"docqa/internal/config"
	"docqa/internal/ingest"
	"docqa/internal/logging"
	"docqa/internal/models"
	"docqa/internal/providers"
	"docqa/internal/retrieval"
	"docqa/internal/themes"
	"docqa/internal/vectorstore"
)

const sessionHeader = "X-Session-ID"

const streamErrorFrame = `{"error": "An error occurred during theme analysis."}`

type Server struct {
	cfg       config.Config
	ingest    *ingest.Service
	retrieval *retrieval.Service
	themes    *themes.Service
	store     vectorstore.Store
	manager   *providers.Manager
	log       zerolog.Logger
}

func NewServer(cfg config.Config, ing *ingest.Service, ret *retrieval.Service, th *themes.Service, store vectorstore.Store, pm *providers.Manager) *Server {
	return &Server{
		cfg:       cfg,
		ingest:    ing,
		retrieval: ret,
		themes:    th,
		store:     store,
		manager:   pm,
		log:       logging.Component("api"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/ingest/batch", s.handleIngestBatch)
	mux.HandleFunc("/ask", s.handleAsk)
	mux.HandleFunc("/themes/count", s.handleThemesCount)
	mux.HandleFunc("/themes/analyze-stream", s.handleThemesStream)
	mux.HandleFunc("/admin/session/end", s.handleSessionEnd)
	return s.withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"vector_backend":  s.cfg.VectorBackend,
		"llm_providers":   s.manager.LLMRefs(),
		"embed_providers": s.manager.EmbedRefs(),
	})
}

func (s *Server) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sessionID, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	// 64 MiB in-memory cap; larger parts spill to disk.
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeErr(w, http.StatusBadRequest, "no files provided")
		return
	}

	chunkSize := formInt(r, "chunk_size", s.cfg.ChunkSize)
	overlap := formInt(r, "chunk_overlap", s.cfg.ChunkOverlap)

	var uploads []ingest.Upload
	var open []interface{ Close() error }
	defer func() {
		for _, c := range open {
			c.Close()
		}
	}()
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Sprintf("cannot read upload %s: %v", fh.Filename, err))
			return
		}
		open = append(open, f)
		uploads = append(uploads, ingest.Upload{Filename: fh.Filename, Content: f})
	}

	result := s.ingest.IngestBatch(r.Context(), sessionID, uploads, chunkSize, overlap)
	writeJSON(w, http.StatusOK, result)
}

type askRequest struct {
	Query       string               `json:"query"`
	TopK        int                  `json:"top_k"`
	FinalN      int                  `json:"final_n"`
	ChatHistory []models.ChatMessage `json:"chat_history"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	var req askRequest
	switch r.Method {
	case http.MethodGet:
		req.Query = r.URL.Query().Get("q")
		req.TopK, _ = strconv.Atoi(r.URL.Query().Get("top_k"))
		req.FinalN, _ = strconv.Atoi(r.URL.Query().Get("final_n"))
	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	default:
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		writeErr(w, http.StatusBadRequest, "query must not be empty")
		return
	}

	result, err := s.retrieval.Ask(r.Context(), req.Query, sessionID, req.TopK, req.FinalN, req.ChatHistory)
	if err != nil {
		s.log.Error().Err(err).Str("session", sessionID).Msg("ask failed")
		writeErr(w, apperr.HTTPStatus(err), "failed to answer the question")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleThemesCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sessionID, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	count := s.themes.CountUniqueThemes(r.Context(), sessionID)
	writeJSON(w, http.StatusOK, map[string]int{"theme_count": count})
}

// handleThemesStream emits one SSE data frame per analyzed theme. A stream-
// level failure produces a single error frame; the connection then closes.
func (s *Server) handleThemesStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sessionID, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	flusher, canFlush := w.(http.Flusher)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for ev := range s.themes.AnalyzeAll(r.Context(), sessionID) {
		if ev.Err != nil {
			s.log.Error().Err(ev.Err).Str("session", sessionID).Msg("theme stream failed")
			fmt.Fprintf(w, "data: %s\n\n", streamErrorFrame)
			if canFlush {
				flusher.Flush()
			}
			return
		}
		payload, err := json.Marshal(ev.Theme)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		if canFlush {
			flusher.Flush()
		}
	}
}

func (s *Server) handleSessionEnd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sessionID, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	// Teardown is best-effort: a failed drop is logged but the session is
	// still reported as ended.
	if err := s.store.DeleteCollection(r.Context(), vectorstore.CollectionName(sessionID)); err != nil {
		s.log.Error().Err(err).Str("session", sessionID).Msg("collection teardown failed")
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "session_id": sessionID})
}

func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID := strings.TrimSpace(r.Header.Get(sessionHeader))
	if sessionID == "" {
		writeErr(w, http.StatusBadRequest, sessionHeader+" header is required")
		return "", false
	}
	return sessionID, true
}

func formInt(r *http.Request, key string, fallback int) int {
	v := r.FormValue(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	allowed := map[string]bool{
		"http://localhost:3000": true,
		"http://localhost:5173": true,
	}
	for _, o := range strings.Split(s.cfg.FrontendOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = true
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+sessionHeader)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
