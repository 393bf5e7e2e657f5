// Package web serves the chord diagram UI and its JSON/SSE API.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/evnp/graph-of-thrones/pkg/diagram"
	"github.com/evnp/graph-of-thrones/pkg/filter"
	"github.com/evnp/graph-of-thrones/pkg/graph"
	"github.com/evnp/graph-of-thrones/pkg/highlight"
	"github.com/evnp/graph-of-thrones/pkg/logging"
	"github.com/evnp/graph-of-thrones/pkg/matrix"
	"github.com/evnp/graph-of-thrones/pkg/model"
	"github.com/evnp/graph-of-thrones/pkg/pubsub"
)

//go:embed static/*
var staticFiles embed.FS

// DiagramResponse is the payload of GET /api/diagram.
type DiagramResponse struct {
	View      *diagram.View   `json:"view"`
	Highlight highlight.State `json:"highlight"`
}

// HighlightResponse reports whether a highlight request applied.
type HighlightResponse struct {
	Applied bool            `json:"applied"`
	State   highlight.State `json:"state"`
}

// GraphResponse summarises the current generation as a graph.
type GraphResponse struct {
	Generation uint64       `json:"generation"`
	Components [][]string   `json:"components"`
	Isolated   []string     `json:"isolated"`
	Strongest  []graph.Pair `json:"strongest"`
}

// FilterResponse is the payload of GET /api/filter.
type FilterResponse struct {
	Generation uint64         `json:"generation"`
	Filter     *filter.Config `json:"filter"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server exposes one Diagram over HTTP.
type Server struct {
	router    *mux.Router
	diagram   *diagram.Diagram
	publisher pubsub.Publisher
	webUI     bool
	srv       *http.Server
}

// NewServer creates a server for d and publishes its updates to
// subscribers. With webUI false only /api is served.
func NewServer(d *diagram.Diagram, webUI bool) *Server {
	ssePublisher := pubsub.NewSSEPublisher()
	pubsub.ConfigureDiagramTopics(ssePublisher)
	pubsub.Attach(d, ssePublisher)

	s := &Server{
		router:    mux.NewRouter(),
		diagram:   d,
		publisher: ssePublisher,
		webUI:     webUI,
	}
	s.setupRoutes()
	return s
}

// Publisher returns the server's event publisher.
func (s *Server) Publisher() pubsub.Publisher {
	return s.publisher
}

// Handler returns the root handler, including request logging.
func (s *Server) Handler() http.Handler {
	return logging.RequestIDMiddleware(s.router)
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/subscribe/{topic}", s.handleSubscribe).Methods("GET")

	api.HandleFunc("/diagram", s.handleDiagram).Methods("GET")
	api.HandleFunc("/diagram/graph", s.handleGraph).Methods("GET")
	api.HandleFunc("/entity/{name}", s.handleEntity).Methods("GET")
	api.HandleFunc("/neighbors/{index:[0-9]+}", s.handleNeighbors).Methods("GET")
	api.HandleFunc("/weight/{i:[0-9]+}/{j:[0-9]+}", s.handleWeight).Methods("GET")

	api.HandleFunc("/highlight", s.handleHighlightState).Methods("GET")
	api.HandleFunc("/highlight", s.handleUnhoverAll).Methods("DELETE")
	api.HandleFunc("/highlight/arc/{index:[0-9]+}", s.handleHoverArc).Methods("POST")
	api.HandleFunc("/highlight/entity/{name}", s.handleHoverEntity).Methods("POST")
	api.HandleFunc("/highlight/chord", s.handleHoverChord).Methods("POST")
	api.HandleFunc("/highlight/chord", s.handleUnhoverChord).Methods("DELETE")

	api.HandleFunc("/filter", s.handleFilter).Methods("GET")
	api.HandleFunc("/rebuild", s.handleRebuild).Methods("POST")

	if s.webUI {
		staticFS, err := fs.Sub(staticFiles, "static")
		if err != nil {
			panic(err)
		}
		s.router.PathPrefix("/").Handler(http.FileServer(http.FS(staticFS)))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, diagram.ErrUnknownEntity):
		return http.StatusNotFound
	case errors.Is(err, matrix.ErrInvalidFilterResult):
		return http.StatusUnprocessableEntity
	case errors.Is(err, diagram.ErrNoCorpus):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

func intVar(r *http.Request, name string) int {
	// Routes only match digits.
	n, _ := strconv.Atoi(mux.Vars(r)[name])
	return n
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	switch topic {
	case pubsub.TopicDiagram, pubsub.TopicHighlight, pubsub.TopicStatus:
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown topic %q", topic))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	sub, err := s.publisher.Subscribe(r.Context(), topic)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	// Initial comment so Safari treats the stream as open.
	fmt.Fprintf(w, ": connected\n\n")
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}
	logging.DebugContext(r.Context(), "sse subscriber connected", "topic", topic, "subscriber", sub.ID())

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.WarnContext(r.Context(), "error writing SSE event", "topic", topic, "error", err)
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DiagramResponse{
		View:      s.diagram.View(),
		Highlight: s.diagram.HighlightState(),
	})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	top := 10
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid top %q", v))
			return
		}
		top = n
	}

	view := s.diagram.View()
	rg := graph.BuildRelationGraph(view.Names, view.Matrix)
	writeJSON(w, http.StatusOK, GraphResponse{
		Generation: view.Generation,
		Components: rg.Components(),
		Isolated:   rg.Isolated(),
		Strongest:  rg.StrongestPairs(top),
	})
}

func (s *Server) handleEntity(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}

	info, err := s.diagram.Associates(mux.Vars(r)["name"], limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	view := s.diagram.View()
	i := intVar(r, "index")
	if i >= len(view.Names) {
		writeError(w, http.StatusNotFound, fmt.Errorf("no entity at index %d", i))
		return
	}
	neighbors := view.NeighborsOf(i)
	if neighbors == nil {
		neighbors = []model.Neighbor{}
	}
	writeJSON(w, http.StatusOK, neighbors)
}

func (s *Server) handleWeight(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]float64{
		"weight": s.diagram.View().WeightBetween(intVar(r, "i"), intVar(r, "j")),
	})
}

func (s *Server) highlightResult(w http.ResponseWriter, applied bool) {
	writeJSON(w, http.StatusOK, HighlightResponse{Applied: applied, State: s.diagram.HighlightState()})
}

func (s *Server) handleHighlightState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.diagram.HighlightState())
}

func (s *Server) handleUnhoverAll(w http.ResponseWriter, r *http.Request) {
	s.diagram.UnhoverAll()
	s.highlightResult(w, true)
}

func (s *Server) handleHoverArc(w http.ResponseWriter, r *http.Request) {
	s.highlightResult(w, s.diagram.HoverArc(intVar(r, "index")))
}

func (s *Server) handleHoverEntity(w http.ResponseWriter, r *http.Request) {
	s.highlightResult(w, s.diagram.HoverEntity(mux.Vars(r)["name"]))
}

func decodeChord(r *http.Request) (highlight.ChordRef, error) {
	var ref highlight.ChordRef
	if err := json.NewDecoder(r.Body).Decode(&ref); err != nil {
		return ref, fmt.Errorf("invalid chord: %w", err)
	}
	return ref, nil
}

func (s *Server) handleHoverChord(w http.ResponseWriter, r *http.Request) {
	ref, err := decodeChord(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.highlightResult(w, s.diagram.HoverChord(ref))
}

func (s *Server) handleUnhoverChord(w http.ResponseWriter, r *http.Request) {
	ref, err := decodeChord(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.highlightResult(w, s.diagram.UnhoverChord(ref))
}

// handleFilter reports the filter behind the generation on screen; it is
// null when that generation was built from an explicit entity list.
func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	view := s.diagram.View()
	writeJSON(w, http.StatusOK, FilterResponse{Generation: view.Generation, Filter: view.Filter})
}

// handleRebuild applies the posted filter. With ?async=1 the request is
// queued and superseded by any later one.
func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	cfg := s.diagram.Filter()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid filter: %w", err))
		return
	}
	for _, m := range cfg.Months {
		if m < 1 || m > 12 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid month %d", m))
			return
		}
	}

	if r.URL.Query().Get("async") == "1" {
		s.diagram.Submit(cfg)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}

	view, err := s.diagram.Apply(r.Context(), cfg)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Start serves on port until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, port int) error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logging.Info("starting web server", "url", fmt.Sprintf("http://localhost:%d", port))
		errc <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	// Close SSE streams first so Shutdown does not wait on them.
	s.publisher.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
