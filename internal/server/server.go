package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/pulsewatch/internal/series"
	"github.com/pulsewatch/pulsewatch/internal/window"
	"github.com/pulsewatch/pulsewatch/pkg/models"
)

// Server is the ingestion/dispatch host: it delivers records to series over
// HTTP and fans the timer tick out to every registered series. Each series
// serializes its own mutation, so delivery here may run on any goroutine.
type Server struct {
	mu     sync.RWMutex
	series map[string]*series.Series

	router *mux.Router
	logger *logrus.Logger
}

// New creates the host with an empty series registry.
func New(logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Server{
		series: make(map[string]*series.Series),
		router: mux.NewRouter(),
		logger: logger,
	}
	s.routes()
	return s
}

// Register adds a series instance to the host.
func (s *Server) Register(sr *series.Series) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[sr.Title()] = sr
}

// Router returns the HTTP handler for the ingestion API.
func (s *Server) Router() http.Handler {
	return s.router
}

// TickAll delivers one timer tick to every registered series.
func (s *Server) TickAll(ctx context.Context, now time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sr := range s.series {
		sr.TimerTick(ctx, now)
	}
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/series", s.handleListSeries).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/series/{title}", s.handleGetSeries).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/series/{title}/records", s.handleIngest).Methods(http.MethodPost)
}

func (s *Server) lookup(title string) (*series.Series, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sr, ok := s.series[title]
	return sr, ok
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSeries(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	titles := make([]string, 0, len(s.series))
	for t := range s.series {
		titles = append(titles, t)
	}
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"series": titles})
}

type seriesResponse struct {
	Title   string              `json:"title"`
	Columns []models.ColumnMeta `json:"columns"`
	Rows    []window.Row        `json:"rows"`
}

func (s *Server) handleGetSeries(w http.ResponseWriter, r *http.Request) {
	title := mux.Vars(r)["title"]
	sr, ok := s.lookup(title)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown series"})
		return
	}
	columns, rows := sr.Snapshot()
	writeJSON(w, http.StatusOK, seriesResponse{Title: title, Columns: columns, Rows: rows})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	title := mux.Vars(r)["title"]
	sr, ok := s.lookup(title)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown series"})
		return
	}

	var rec models.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid record payload"})
		return
	}

	// Malformed records degrade to dropped inside the series; the host
	// accepts anything that parses.
	sr.Ingest(rec)
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Headers are already gone; nothing useful left to do.
		return
	}
}
