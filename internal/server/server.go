package server

import (
	"context"
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"netmonitor/internal/history"
	"netmonitor/internal/metrics"
	"netmonitor/internal/models"
	"netmonitor/internal/storage"
)

//go:embed static/*
var embeddedStatic embed.FS

const defaultHistoryLimit = 200

// Server serves the live dashboard: JSON API, static page and websocket push.
type Server struct {
	httpServer   *http.Server
	series       *storage.Series
	staticFS     fs.FS
	historyLimit int
	hub          *hub
	now          func() time.Time
}

// New creates a dashboard bound to addr reading from series.
func New(addr string, series *storage.Series) *Server {
	staticFS, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		panic("static assets missing: " + err.Error())
	}

	mux := http.NewServeMux()
	s := &Server{
		httpServer:   &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second},
		series:       series,
		staticFS:     staticFS,
		historyLimit: defaultHistoryLimit,
		hub:          newHub(),
		now:          func() time.Time { return time.Now().UTC() },
	}
	s.registerRoutes(mux)
	return s
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown closes live connections and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.closeAll()
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routes without a listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Name() string { return "dashboard" }

// Export pushes the newest sample to connected websocket clients.
func (s *Server) Export(_ context.Context, snapshot storage.Snapshot) error {
	latest, ok := snapshot.Latest()
	if !ok {
		return nil
	}
	s.hub.broadcast(liveMessage{Type: messageSample, RunID: snapshot.RunID, Sample: &latest})
	return nil
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		data, err := fs.ReadFile(s.staticFS, "index.html")
		if err != nil {
			http.Error(w, "index missing", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(data)
	}))
	mux.HandleFunc("/api/status", s.handleLatest)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/timeline", s.handleTimeline)
	mux.HandleFunc("/ws", s.handleLive)
}

type statusResponse struct {
	RunID   string          `json:"run_id"`
	Targets []models.Target `json:"targets"`
	Sample  *models.Sample  `json:"sample"`
}

func (s *Server) handleLatest(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{RunID: s.series.RunID(), Targets: s.series.Targets()}
	if latest, ok := s.series.Latest(); ok {
		resp.Sample = &latest
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, "limit", s.historyLimit)
	writeJSON(w, http.StatusOK, s.series.Tail(limit))
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, metrics.ComputeSummary(s.series.Snapshot()))
}

type timelineResponse struct {
	RangeStart time.Time               `json:"range_start"`
	RangeEnd   time.Time               `json:"range_end"`
	Targets    []models.TargetTimeline `json:"targets"`
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	points := parseLimit(r, "points", history.DefaultTimelinePoints)
	snapshot := s.series.Snapshot()

	end := s.now()
	start := end.Add(-time.Hour)
	if len(snapshot.Samples) > 0 {
		start = snapshot.Samples[0].Timestamp
		if last := snapshot.Samples[len(snapshot.Samples)-1].Timestamp; !end.After(last) {
			end = last.Add(time.Second)
		}
	}
	writeJSON(w, http.StatusOK, timelineResponse{
		RangeStart: start,
		RangeEnd:   end,
		Targets:    history.BuildTargetTimelines(snapshot.Samples, snapshot.Targets, start, end, points),
	})
}

func parseLimit(r *http.Request, key string, fallback int) int {
	if fallback <= 0 {
		return fallback
	}
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > fallback {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
