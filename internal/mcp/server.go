package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/SteelMorgan/apex-log-checker/internal/apexlog"
	"github.com/SteelMorgan/apex-log-checker/internal/bookmark"
	"github.com/SteelMorgan/apex-log-checker/internal/domain"
	"github.com/SteelMorgan/apex-log-checker/internal/presets"
	"github.com/SteelMorgan/apex-log-checker/internal/service"
	"github.com/SteelMorgan/apex-log-checker/internal/trace"
)

// Server exposes the log views as JSON tool endpoints. Every request carries
// the log text; nothing but bookmarks is kept between requests.
type Server struct {
	port       int
	httpServer *http.Server
	analyzer   *service.Analyzer
	presets    *presets.Presets
	bookmarks  bookmark.Store // nil disables /tools/bookmarks
}

// NewServer creates a new tool server
func NewServer(port int, analyzer *service.Analyzer, p *presets.Presets, bookmarks bookmark.Store) (*Server, error) {
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}
	if p == nil {
		p = presets.Defaults()
	}
	return &Server{
		port:      port,
		analyzer:  analyzer,
		presets:   p,
		bookmarks: bookmarks,
	}, nil
}

// Handler returns the routing table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/tools/parse_log", s.handleParseLog)
	mux.HandleFunc("/tools/get_trace", s.handleGetTrace)
	mux.HandleFunc("/tools/get_limits", s.handleGetLimits)
	mux.HandleFunc("/tools/soql", s.handleSOQL)
	mux.HandleFunc("/tools/replay", s.handleReplay)
	mux.HandleFunc("/tools/bookmarks", s.handleBookmarks)
	mux.HandleFunc("/tools/presets", s.handlePresets)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	log.Info().
		Int("port", s.port).
		Msg("Tool server starting...")

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	log.Info().Int("port", s.port).Msg("Tool server started")

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}

// Stop stops the server gracefully
func (s *Server) Stop() error {
	log.Info().Msg("Tool server stopping...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Error shutting down HTTP server")
		}
	}

	if s.bookmarks != nil {
		if err := s.bookmarks.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing bookmark store")
		}
	}

	if err := s.analyzer.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing log sink")
	}

	log.Info().Msg("Tool server stopped")
	return nil
}

// logRequest is embedded by every request that carries a log
type logRequest struct {
	Log string `json:"log"`
}

type parseLogRequest struct {
	logRequest
	Preset           string   `json:"preset,omitempty"`
	Kinds            []string `json:"kinds,omitempty"`
	Text             string   `json:"text,omitempty"`
	HideUnclassified bool     `json:"hide_unclassified,omitempty"`
	Offset           int      `json:"offset,omitempty"`
	Limit            int      `json:"limit,omitempty"`
}

type parseLogResponse struct {
	LogID            string                  `json:"log_id"`
	Header           *domain.LogHeader       `json:"header,omitempty"`
	Total            int                     `json:"total"`
	Matched          int                     `json:"matched"`
	KindCounts       map[string]int          `json:"kind_counts"`
	SkippedLimitRows int                     `json:"skipped_limit_rows"`
	Lines            []domain.ClassifiedLine `json:"lines"`
}

func (s *Server) handleParseLog(w http.ResponseWriter, r *http.Request) {
	var req parseLogRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if err := ValidateLog(req.Log); err != nil {
		writeError(w, err)
		return
	}

	filter, err := s.buildFilter(req)
	if err != nil {
		writeError(w, err)
		return
	}

	parsed := s.analyzer.Classify(r.Context(), req.Log)
	matched := filter.Apply(parsed.Lines)

	counts := make(map[string]int)
	for kind, n := range apexlog.KindCounts(parsed.Lines) {
		counts[kind.String()] = n
	}

	writeJSON(w, http.StatusOK, parseLogResponse{
		LogID:            service.LogID(req.Log),
		Header:           parsed.Header,
		Total:            len(parsed.Lines),
		Matched:          len(matched),
		KindCounts:       counts,
		SkippedLimitRows: parsed.SkippedLimitRows,
		Lines:            page(matched, req.Offset, req.Limit),
	})
}

// buildFilter starts from the named preset and narrows it with the
// request's own fields
func (s *Server) buildFilter(req parseLogRequest) (apexlog.Filter, error) {
	var filter apexlog.Filter
	if req.Preset != "" {
		f, err := s.presets.Filter(req.Preset)
		if err != nil {
			return filter, &ValidationError{
				Field:        "preset",
				Message:      err.Error(),
				Instructions: []string{"Call /tools/presets for the available names"},
			}
		}
		filter = f
	}

	if len(req.Kinds) > 0 {
		filter.Kinds = filter.Kinds[:0:0]
		for _, name := range req.Kinds {
			kind, err := domain.ParseEventKind(name)
			if err != nil {
				return filter, &ValidationError{Field: "kinds", Message: err.Error()}
			}
			filter.Kinds = append(filter.Kinds, kind)
		}
	}
	if req.Text != "" {
		filter.Text = req.Text
	}
	if req.HideUnclassified {
		filter.HideUnclassified = true
	}
	return filter, nil
}

func page(lines []domain.ClassifiedLine, offset, limit int) []domain.ClassifiedLine {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(lines) {
		return []domain.ClassifiedLine{}
	}
	lines = lines[offset:]
	if limit > 0 && limit < len(lines) {
		lines = lines[:limit]
	}
	return lines
}

type getTraceRequest struct {
	logRequest
	Stats bool `json:"stats,omitempty"`
}

type getTraceResponse struct {
	LogID  string           `json:"log_id"`
	Forest *trace.Forest    `json:"forest"`
	Stats  []trace.SpanStat `json:"stats,omitempty"`
}

func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	var req getTraceRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if err := ValidateLog(req.Log); err != nil {
		writeError(w, err)
		return
	}

	res, err := s.analyzer.Analyze(r.Context(), req.Log)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := getTraceResponse{LogID: res.ID, Forest: res.Forest}
	if req.Stats {
		resp.Stats = trace.Stats(res.Forest)
	}
	writeJSON(w, http.StatusOK, resp)
}

type getLimitsResponse struct {
	LogID            string                    `json:"log_id"`
	Summary          string                    `json:"summary"`
	Records          []domain.LimitUsageRecord `json:"records"`
	SkippedLimitRows int                       `json:"skipped_limit_rows"`
}

func (s *Server) handleGetLimits(w http.ResponseWriter, r *http.Request) {
	var req logRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if err := ValidateLog(req.Log); err != nil {
		writeError(w, err)
		return
	}

	parsed := s.analyzer.Classify(r.Context(), req.Log)
	records := parsed.Limits()
	if records == nil {
		records = []domain.LimitUsageRecord{}
	}
	writeJSON(w, http.StatusOK, getLimitsResponse{
		LogID:            service.LogID(req.Log),
		Summary:          apexlog.LimitSummary(records),
		Records:          records,
		SkippedLimitRows: parsed.SkippedLimitRows,
	})
}

func (s *Server) handleSOQL(w http.ResponseWriter, r *http.Request) {
	var req logRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if err := ValidateLog(req.Log); err != nil {
		writeError(w, err)
		return
	}

	parsed := s.analyzer.Classify(r.Context(), req.Log)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"log_id":  service.LogID(req.Log),
		"queries": apexlog.SummarizeSOQL(parsed.Lines),
	})
}

type replayRequest struct {
	logRequest
	Cursor   *int   `json:"cursor,omitempty"`
	Bookmark string `json:"bookmark,omitempty"`
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	var req replayRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if err := ValidateLog(req.Log); err != nil {
		writeError(w, err)
		return
	}

	logID := service.LogID(req.Log)
	parsed := s.analyzer.Classify(r.Context(), req.Log)

	cursor := len(parsed.Lines)
	switch {
	case req.Cursor != nil:
		cursor = *req.Cursor
	case req.Bookmark != "":
		if s.bookmarks == nil {
			writeError(w, &ValidationError{Field: "bookmark", Message: "bookmarks are not configured"})
			return
		}
		saved, err := s.bookmarks.Get(r.Context(), logID, req.Bookmark)
		if err != nil {
			writeError(w, err)
			return
		}
		cursor = saved
	}
	if err := ValidateCursor(cursor, len(parsed.Lines)); err != nil {
		writeError(w, err)
		return
	}

	frame, last, err := s.analyzer.Replay(r.Context(), parsed.Lines, cursor)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"log_id": logID,
		"frame":  frame,
		"line":   last,
		"done":   frame.Done(),
	})
}

type bookmarksRequest struct {
	Action string `json:"action"` // list, get, set, delete
	LogID  string `json:"log_id,omitempty"`
	Log    string `json:"log,omitempty"`
	Name   string `json:"name,omitempty"`
	Cursor int    `json:"cursor,omitempty"`
}

func (s *Server) handleBookmarks(w http.ResponseWriter, r *http.Request) {
	if s.bookmarks == nil {
		http.Error(w, "Bookmarks are not configured", http.StatusNotImplemented)
		return
	}

	var req bookmarksRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	logID := req.LogID
	if logID == "" && req.Log != "" {
		logID = service.LogID(req.Log)
	}
	if err := ValidateLogID(logID); err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	switch req.Action {
	case "list", "":
		list, err := s.bookmarks.List(ctx, logID)
		if err != nil {
			writeError(w, err)
			return
		}
		if list == nil {
			list = []bookmark.Bookmark{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"log_id": logID, "bookmarks": list})

	case "get":
		if err := ValidateBookmarkName(req.Name); err != nil {
			writeError(w, err)
			return
		}
		cursor, err := s.bookmarks.Get(ctx, logID, req.Name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bookmark.Bookmark{LogID: logID, Name: req.Name, Cursor: cursor})

	case "set":
		if err := ValidateBookmarkName(req.Name); err != nil {
			writeError(w, err)
			return
		}
		if req.Cursor < 0 {
			writeError(w, &ValidationError{Field: "cursor", Message: "cursor must not be negative"})
			return
		}
		if req.Log != "" {
			if err := ValidateCursor(req.Cursor, len(apexlog.SplitLines(req.Log))); err != nil {
				writeError(w, err)
				return
			}
		}
		if err := s.bookmarks.Set(ctx, logID, req.Name, req.Cursor); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bookmark.Bookmark{LogID: logID, Name: req.Name, Cursor: req.Cursor})

	case "delete":
		if err := ValidateBookmarkName(req.Name); err != nil {
			writeError(w, err)
			return
		}
		if err := s.bookmarks.Delete(ctx, logID, req.Name); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})

	default:
		writeError(w, &ValidationError{
			Field:        "action",
			Message:      fmt.Sprintf("unknown action %q", req.Action),
			Instructions: []string{"Use one of: list, get, set, delete"},
		})
	}
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]presets.Preset, len(s.presets.Presets))
	for _, name := range s.presets.Names() {
		out[name] = s.presets.Presets[name]
	}
	writeJSON(w, http.StatusOK, out)
}

// decodeRequest accepts POST with a JSON body and writes the error response
// itself when it returns false
func decodeRequest(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxLogBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	var valErr *ValidationError
	switch {
	case errors.As(err, &valErr):
		writeJSON(w, http.StatusBadRequest, valErr)
	case errors.Is(err, bookmark.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, context.Canceled):
		http.Error(w, "Request cancelled", http.StatusRequestTimeout)
	default:
		log.Error().Err(err).Msg("Tool request failed")
		http.Error(w, fmt.Sprintf("Internal error: %v", err), http.StatusInternalServerError)
	}
}
