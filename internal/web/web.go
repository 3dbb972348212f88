package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"dentcal/internal/blocked"
	"dentcal/internal/capture"
	"dentcal/internal/config"
	"dentcal/internal/geometry"
	"dentcal/internal/gesture"
	"dentcal/internal/ics"
	appLog "dentcal/internal/log"
	"dentcal/internal/model"
	"dentcal/internal/week"
)

// Server exposes the calendar engine over a JSON HTTP API. The embedded
// static UI is a thin client: it draws what /api/week returns and posts raw
// pointer coordinates back; all hit-testing, snapping and remote commits
// happen server-side in the gesture controller.
type Server struct {
	cfg   *config.Config
	debug bool
	mux   *http.ServeMux

	ctrl    *gesture.Controller
	overlay *blocked.Overlay

	// previewPath is where the last week snapshot PNG was written.
	previewPath string
}

// embeddedStatic contains the hand-rolled calendar UI served at / and
// /calendar.
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, ctrl *gesture.Controller, overlay *blocked.Overlay, debug bool) *Server {
	previewPath := "/var/lib/dentcal/preview.png"
	if debug {
		previewPath = "./cache/preview.png"
	}
	s := &Server{
		cfg:         cfg,
		debug:       debug,
		mux:         http.NewServeMux(),
		ctrl:        ctrl,
		overlay:     overlay,
		previewPath: previewPath,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health stays unauthenticated for probes.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="DentCal", charset="UTF-8"`)
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

// StartServer starts an HTTP server bound to cfg.Listen. Graceful shutdown
// is handled by the http.Server wrapper in cmd/dentcal.
func StartServer(_ context.Context, cfg *config.Config, ctrl *gesture.Controller, overlay *blocked.Overlay, debug bool) error {
	s := NewServer(cfg, ctrl, overlay, debug)
	appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen, "debug", debug)
	return http.ListenAndServe(cfg.Listen, s.Handler())
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/week", s.handleWeek)
	s.mux.HandleFunc("POST /api/week/navigate", s.handleNavigate)
	s.mux.HandleFunc("POST /api/week/date", s.handleSetDate)
	s.mux.HandleFunc("GET /api/week.ics", s.handleExportICS)

	s.mux.HandleFunc("POST /api/gesture/down", s.handlePointerDown)
	s.mux.HandleFunc("POST /api/gesture/move", s.handlePointerMove)
	s.mux.HandleFunc("POST /api/gesture/up", s.handlePointerUp)

	s.mux.HandleFunc("POST /api/draft", s.handleOpenDraft)
	s.mux.HandleFunc("GET /api/draft", s.handleGetDraft)
	s.mux.HandleFunc("POST /api/draft/submit", s.handleSubmitDraft)
	s.mux.HandleFunc("DELETE /api/draft", s.handleCancelDraft)

	s.mux.HandleFunc("GET /api/appointments/{id}", s.handleDetail)
	s.mux.HandleFunc("DELETE /api/appointments/{id}", s.handleDelete)

	s.mux.HandleFunc("GET /api/branches", s.handleBranches)
	s.mux.HandleFunc("GET /api/patients", s.handlePatients)
	s.mux.HandleFunc("GET /api/treatments", s.handleTreatments)

	s.mux.HandleFunc("POST /api/snapshot", s.handleSnapshot)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)

	// All non-/api/* paths fall back to the embedded UI.
	s.mux.Handle("/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// weekResponse is the JSON response shape for /api/week. It carries
// everything the thin client needs to draw one frame: the window, the grid
// constants, and pre-placed rectangles for every block and blocked slot.
type weekResponse struct {
	WeekStart string         `json:"week_start"`
	Days      []string       `json:"days"`
	Title     string         `json:"title"`
	Grid      gridDTO        `json:"grid"`
	Blocks    []blockDTO     `json:"blocks"`
	Blocked   []blockedDTO   `json:"blocked"`
	Draft     *gesture.Draft `json:"draft,omitempty"`
}

type gridDTO struct {
	HalfHourHeight int `json:"half_hour_height"`
	HeaderHeight   int `json:"header_height"`
	TimeColWidth   int `json:"time_col_width"`
	SnapMinutes    int `json:"snap_minutes"`
}

// blockDTO is one appointment with its computed rectangle.
type blockDTO struct {
	ID     string       `json:"id"`
	Label  string       `json:"label"`
	Start  time.Time    `json:"start"`
	End    time.Time    `json:"end"`
	Status model.Status `json:"status"`
	Col    int          `json:"col"`
	Top    float64      `json:"top"`
	Height float64      `json:"height"`
}

// blockedDTO is one blocked-time slot with its computed rectangle.
type blockedDTO struct {
	Label  string    `json:"label"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Col    int       `json:"col"`
	Top    float64   `json:"top"`
	Height float64   `json:"height"`
}

// handleWeek returns the full render state for the visible week.
func (s *Server) handleWeek(w http.ResponseWriter, _ *http.Request) {
	days := s.ctrl.Week()
	grid := s.grid()

	resp := weekResponse{
		WeekStart: days[0].Format("2006-01-02"),
		Title:     s.ctrl.Title(),
		Grid: gridDTO{
			HalfHourHeight: s.cfg.Grid.HalfHourHeight,
			HeaderHeight:   s.cfg.Grid.HeaderHeight,
			TimeColWidth:   s.cfg.Grid.TimeColWidth,
			SnapMinutes:    s.cfg.SnapMinutes,
		},
		Blocks:  []blockDTO{},
		Blocked: []blockedDTO{},
	}
	for _, d := range days {
		resp.Days = append(resp.Days, d.Format("2006-01-02"))
	}

	for _, a := range s.ctrl.Appointments() {
		rect, ok := grid.Place(a.Start, a.End, days)
		if !ok {
			continue
		}
		resp.Blocks = append(resp.Blocks, blockDTO{
			ID:     a.ID,
			Label:  a.Label,
			Start:  a.Start,
			End:    a.End,
			Status: a.Status,
			Col:    rect.Col,
			Top:    rect.Top,
			Height: rect.Height,
		})
	}

	if s.overlay != nil {
		for _, slot := range s.overlay.Expand(days) {
			rect, ok := grid.Place(slot.Start, slot.End, days)
			if !ok {
				continue
			}
			resp.Blocked = append(resp.Blocked, blockedDTO{
				Label:  slot.Label,
				Start:  slot.Start,
				End:    slot.End,
				Col:    rect.Col,
				Top:    rect.Top,
				Height: rect.Height,
			})
		}
	}

	if draft, ok := s.ctrl.Draft(); ok {
		resp.Draft = &draft
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleNavigate moves the visible window: {"direction":"prev"|"next"|"today"}.
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction string `json:"direction"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.ctrl.Navigate(r.Context(), week.Direction(req.Direction)); err != nil {
		if errors.Is(err, week.ErrUnknownDirection) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		// Cursor already moved; per-date fetch failures degrade to empty
		// columns, so still return the (partial) week.
		appLog.Warn("navigate fetch degraded", "err", err)
	}
	s.handleWeek(w, r)
}

// handleSetDate jumps the window to an arbitrary date: {"date":"2026-03-04"}.
func (s *Server) handleSetDate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	d, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}
	if err := s.ctrl.SetDate(r.Context(), d); err != nil {
		appLog.Warn("date jump fetch degraded", "err", err)
	}
	s.handleWeek(w, r)
}

// handleExportICS serves the visible week as an iCalendar document, blocked
// slots included.
func (s *Server) handleExportICS(w http.ResponseWriter, _ *http.Request) {
	days := s.ctrl.Week()
	var slots []blocked.Slot
	if s.overlay != nil {
		slots = s.overlay.Expand(days)
	}
	doc := ics.ExportWeek(days, s.ctrl.Appointments(), slots)

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="week.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// sessionResponse is the JSON response shape for /api/gesture/down.
type sessionResponse struct {
	Token string `json:"token"`
	Kind  string `json:"kind"`
}

// handlePointerDown begins a drag or resize:
// {"appointment_id":"...","y":800}.
func (s *Server) handlePointerDown(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AppointmentID string  `json:"appointment_id"`
		Y             float64 `json:"y"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	sess, err := s.ctrl.PointerDown(req.AppointmentID, req.Y)
	if err != nil {
		writeGestureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Token: sess.Token, Kind: string(sess.Kind)})
}

// handlePointerMove applies one gesture frame: {"token":"...","y":880}.
// The optimistically shifted appointment is returned so the client can
// redraw the block live.
func (s *Server) handlePointerMove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string  `json:"token"`
		Y     float64 `json:"y"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	appt, err := s.ctrl.PointerMove(req.Token, req.Y)
	if err != nil {
		writeGestureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// handlePointerUp commits the gesture: {"token":"..."}. On a remote failure
// the rolled-back appointment is returned with 502 so the client redraws the
// pre-gesture span.
func (s *Server) handlePointerUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	appt, err := s.ctrl.PointerUp(r.Context(), req.Token)
	if err != nil {
		if errors.Is(err, gesture.ErrNoSession) {
			writeGestureError(w, err)
			return
		}
		writeJSON(w, http.StatusBadGateway, appt)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// handleOpenDraft recognizes a double-click on an empty cell:
// {"x":250,"y":180,"grid_width":700}.
func (s *Server) handleOpenDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X         float64 `json:"x"`
		Y         float64 `json:"y"`
		GridWidth float64 `json:"grid_width"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	draft, err := s.ctrl.OpenDraft(req.X, req.Y, req.GridWidth)
	if err != nil {
		writeGestureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (s *Server) handleGetDraft(w http.ResponseWriter, _ *http.Request) {
	draft, ok := s.ctrl.Draft()
	if !ok {
		writeError(w, http.StatusNotFound, "no draft open")
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// handleSubmitDraft validates and persists the create form. Validation and
// remote failures return the still-open draft alongside the error so the
// client re-renders the form with the message.
func (s *Server) handleSubmitDraft(w http.ResponseWriter, r *http.Request) {
	var form gesture.DraftForm
	if !decodeBody(w, r, &form) {
		return
	}
	created, err := s.ctrl.SubmitDraft(r.Context(), form)
	if err != nil {
		if errors.Is(err, gesture.ErrNoDraft) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		draft, _ := s.ctrl.Draft()
		writeJSON(w, http.StatusUnprocessableEntity, draft)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleCancelDraft(w http.ResponseWriter, _ *http.Request) {
	if err := s.ctrl.CancelDraft(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDetail returns the expanded record with resolved patient and branch
// names, for the right-click detail popup.
func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	detail, err := s.ctrl.Detail(r.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, "appointment not found")
			return
		}
		appLog.Error("detail fetch failed", err, "appt", id)
		writeError(w, http.StatusBadGateway, "remote store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.ctrl.Delete(r.Context(), id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, "appointment not found")
			return
		}
		writeError(w, http.StatusBadGateway, "remote store unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := s.ctrl.Branches(r.Context())
	if err != nil {
		appLog.Error("branch list failed", err)
		writeError(w, http.StatusBadGateway, "remote store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, branches)
}

// handlePatients searches patients for the create form's picker:
// GET /api/patients?search=kim.
func (s *Server) handlePatients(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("search")
	patients, err := s.ctrl.SearchPatients(r.Context(), term)
	if err != nil {
		appLog.Error("patient search failed", err, "term", term)
		writeError(w, http.StatusBadGateway, "remote store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, patients)
}

func (s *Server) handleTreatments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Treatments())
}

// handleSnapshot renders the current week view to a PNG via a headless
// Chromium pointed back at this server.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	opts := capture.Options{
		BaseURL:    "http://" + s.cfg.Listen,
		WeekStart:  s.ctrl.Week()[0],
		OutputPath: s.previewPath,
	}
	if err := capture.WeekPNG(r.Context(), opts); err != nil {
		appLog.Error("week snapshot failed", err)
		writeError(w, http.StatusInternalServerError, "snapshot failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": s.previewPath})
}

// handlePreview serves the last rendered PNG from disk. http.ServeFile
// returns 404 when no snapshot has been taken yet.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.previewPath)
}

// staticFileServer serves the embedded UI. /calendar is an alias for the
// index page so the capture pipeline has a stable URL.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// /api/* requests never fall back to HTML.
		if path == "/api" || strings.HasPrefix(path, "/api/") {
			http.NotFound(w, r)
			return
		}

		if path == "/calendar" || strings.HasPrefix(path, "/calendar/") {
			r = r.Clone(r.Context())
			r.URL.Path = "/"
		}
		fileServer.ServeHTTP(w, r)
	})
}

func (s *Server) grid() geometry.Grid {
	return geometry.New(s.cfg.Grid.HalfHourHeight, s.cfg.Grid.HeaderHeight, s.cfg.SnapMinutes)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeGestureError maps controller errors to HTTP statuses.
func writeGestureError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gesture.ErrSessionActive):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, gesture.ErrNoSession), errors.Is(err, gesture.ErrNoDraft):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, gesture.ErrNoSlot):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
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
