package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"evcal/internal/app"
	"evcal/internal/calendar"
	"evcal/internal/config"
	"evcal/internal/ics"
	appLog "evcal/internal/log"
	"evcal/internal/model"
	"evcal/internal/query"
)

const (
	maxJSONBody   = 1 << 20
	maxImportBody = 8 << 20
)

// Server exposes the calendar over a JSON API.
type Server struct {
	cfg     *config.Config
	app     *app.App
	fetcher *ics.Fetcher
	mux     *http.ServeMux
}

// NewServer constructs a new Server. fetcher may be nil, which disables
// importing calendars by URL.
func NewServer(cfg *config.Config, a *app.App, fetcher *ics.Fetcher) *Server {
	s := &Server{
		cfg:     cfg,
		app:     a,
		fetcher: fetcher,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
// Browser requests that change state must be same-origin; clients
// without Origin or Sec-Fetch-Site headers (curl, scripts) pass.
func (s *Server) Handler() http.Handler {
	h := http.NewCrossOriginProtection().Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured with
// both a username and a password.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="evcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve listens on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/events", s.handleListEvents)
	s.mux.HandleFunc("POST /api/events", s.handleAddEvent)
	s.mux.HandleFunc("PUT /api/events/{id}", s.handleEditEvent)
	s.mux.HandleFunc("DELETE /api/events/{id}", s.handleDeleteEvent)

	s.mux.HandleFunc("GET /api/agenda", s.handleAgenda)
	s.mux.HandleFunc("GET /api/day", s.handleDay)
	s.mux.HandleFunc("GET /api/week", s.handleWeek)
	s.mux.HandleFunc("GET /api/month", s.handleMonth)
	s.mux.HandleFunc("GET /api/summary", s.handleSummary)

	s.mux.HandleFunc("GET /api/view", s.handleGetView)
	s.mux.HandleFunc("PUT /api/view", s.handleSetView)
	s.mux.HandleFunc("GET /api/theme", s.handleGetTheme)
	s.mux.HandleFunc("PUT /api/theme", s.handleSetTheme)

	s.mux.HandleFunc("GET /api/export.csv", s.handleExportCSV)
	s.mux.HandleFunc("POST /api/import", s.handleImportCSV)
	s.mux.HandleFunc("GET /api/export.ics", s.handleExportICS)
	s.mux.HandleFunc("POST /api/import.ics", s.handleImportICS)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type eventsResponse struct {
	Query  string        `json:"query"`
	Events []model.Event `json:"events"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	writeJSON(w, http.StatusOK, eventsResponse{Query: q, Events: s.app.Filtered(q)})
}

func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	writeJSON(w, http.StatusOK, eventsResponse{Query: q, Events: query.AgendaOrder(s.app.Filtered(q))})
}

type createdResponse struct {
	Created []model.Event `json:"created"`
}

func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	var draft model.Draft
	if !decodeJSON(w, r, &draft) {
		return
	}
	created, err := s.app.AddEvent(draft)
	if err != nil && created == nil {
		writeCommandError(w, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{Created: created})
}

func (s *Server) handleEditEvent(w http.ResponseWriter, r *http.Request) {
	var draft model.Draft
	if !decodeJSON(w, r, &draft) {
		return
	}
	ev, err := s.app.EditEvent(model.EventID(r.PathValue("id")), draft)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.app.DeleteEvent(model.EventID(r.PathValue("id"))); err != nil {
		writeCommandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	anchor, ok := s.anchorDate(w, r)
	if !ok {
		return
	}
	events := s.app.Filtered(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, query.Day(events, model.FormatDate(anchor), s.app.Now()))
}

type weekResponse struct {
	WeekStart string          `json:"weekStart"`
	Days      []query.DayView `json:"days"`
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	anchor, ok := s.anchorDate(w, r)
	if !ok {
		return
	}
	events := s.app.Filtered(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, weekResponse{
		WeekStart: strings.ToLower(s.app.WeekStart().String()),
		Days:      query.Week(events, anchor, s.app.WeekStart(), s.app.Now()),
	})
}

func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	anchor, ok := s.anchorDate(w, r)
	if !ok {
		return
	}
	events := s.app.Filtered(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, query.Month(events, anchor, s.app.Now()))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	events := s.app.Filtered(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, query.Summarize(events, s.app.Now()))
}

// anchorDate reads ?date=YYYY-MM-DD, defaulting to today.
func (s *Server) anchorDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return s.app.Now(), true
	}
	t, ok := model.ParseDate(raw, s.app.Location()).Get()
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q; want YYYY-MM-DD", raw))
		return time.Time{}, false
	}
	return t, true
}

type viewBody struct {
	View calendar.View `json:"view"`
}

type themeBody struct {
	Theme calendar.Theme `json:"theme"`
}

func (s *Server) handleGetView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, viewBody{View: s.app.State().View})
}

func (s *Server) handleSetView(w http.ResponseWriter, r *http.Request) {
	var body viewBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := s.app.SetView(body.View); err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewBody{View: s.app.State().View})
}

func (s *Server) handleGetTheme(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, themeBody{Theme: s.app.State().Theme})
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var body themeBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := s.app.SetTheme(body.Theme); err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, themeBody{Theme: s.app.State().Theme})
}

// handleExportCSV exports the filtered events.
//
// GET /api/export.csv?q=...&ids=1
//   - ids: include the ID column (defaults to csv.export_ids)
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	includeIDs := s.cfg != nil && s.cfg.CSV.ExportIDs
	if v := q.Get("ids"); v != "" {
		includeIDs = parseBoolDefault(v, includeIDs)
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar-events.csv"`)
	if err := s.app.ExportCSV(w, q.Get("q"), includeIDs); err != nil {
		appLog.Error("csv export failed", err)
	}
}

type importResponse struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	body, ok := readImportBody(w, r)
	if !ok {
		return
	}
	res, err := s.app.ImportCSV(bytes.NewReader(body))
	if err != nil && res.Accepted == 0 {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Accepted: res.Accepted, Rejected: res.Rejected})
}

func (s *Server) handleExportICS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar-events.ics"`)
	if err := s.app.ExportICS(w, r.URL.Query().Get("q")); err != nil {
		appLog.Error("ics export failed", err)
	}
}

// handleImportICS imports an iCalendar body, or the calendar at ?url=
// when a fetcher is configured.
func (s *Server) handleImportICS(w http.ResponseWriter, r *http.Request) {
	var (
		res app.ImportResult
		err error
	)
	if url := r.URL.Query().Get("url"); url != "" {
		if s.fetcher == nil {
			writeError(w, http.StatusBadRequest, "import by url is disabled")
			return
		}
		res, err = s.app.ImportICSURL(r.Context(), s.fetcher, url)
	} else {
		body, ok := readImportBody(w, r)
		if !ok {
			return
		}
		res, err = s.app.ImportICS(bytes.NewReader(body))
	}

	if err != nil && len(res.Created) == 0 {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// readImportBody reads a whole upload before anything is parsed, so an
// oversized body is refused with 413 and nothing is imported.
func readImportBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return nil, false
	}
	return body, true
}

// decodeJSON reads a size-limited JSON body, answering 415 unless the
// request is declared as application/json and 400 on any other failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != "application/json" {
		writeError(w, http.StatusUnsupportedMediaType, "content type must be application/json")
		return false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "empty request body")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// writeCommandError maps command errors onto status codes.
func writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidEvent),
		errors.Is(err, calendar.ErrInvalidView),
		errors.Is(err, calendar.ErrInvalidTheme):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, calendar.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		appLog.Error("command failed", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func parseBoolDefault(s string, def bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
