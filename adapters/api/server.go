package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"phasegrid/domain/core"
	"phasegrid/domain/phases"
	"phasegrid/internal"
	"phasegrid/ports"
)

// Server exposes stored analysis results over a read-only HTTP surface.
// Writes happen through the analysis pipeline only.
type Server struct {
	repo ports.ResultRepository
	log  *internal.Logger
}

// NewServer creates an API server over a result repository
func NewServer(repo ports.ResultRepository) *Server {
	return &Server{
		repo: repo,
		log:  internal.NewDefaultLogger("api"),
	}
}

// Router builds the route tree
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.handleListRuns)
		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", s.handleGetRun)
			r.Route("/plates/{plate}", func(r chi.Router) {
				r.Get("/grid", s.handleGetGrid)
				r.Get("/phenotypes", s.handleListPhenotypes)
				r.Get("/phenotypes/{kind}", s.handleGetPhenotype)
				r.Get("/tensor", s.handleGetTensor)
			})
		})
	})
	return r
}

// ListenAndServe runs the server on the given port
func (s *Server) ListenAndServe(port string) error {
	s.log.Info("listening on :%s", port)
	return http.ListenAndServe(":"+port, s.Router())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	runs, err := s.repo.ListRuns(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, err := core.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	run, err := s.repo.GetRun(r.Context(), runID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetGrid(w http.ResponseWriter, r *http.Request) {
	runID, plate, ok := s.platePath(w, r)
	if !ok {
		return
	}
	grid, err := s.repo.GetPhaseGrid(r.Context(), runID, plate)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, grid)
}

func (s *Server) handleListPhenotypes(w http.ResponseWriter, r *http.Request) {
	runID, plate, ok := s.platePath(w, r)
	if !ok {
		return
	}
	kinds, err := s.repo.ListMetaPhenotypes(r.Context(), runID, plate)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"phenotypes": kinds})
}

func (s *Server) handleGetPhenotype(w http.ResponseWriter, r *http.Request) {
	runID, plate, ok := s.platePath(w, r)
	if !ok {
		return
	}
	kind, err := phases.ParseMetaPhenotype(chi.URLParam(r, "kind"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	grid, err := s.repo.GetMetaPhenotype(r.Context(), runID, plate, kind)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, grid)
}

func (s *Server) handleGetTensor(w http.ResponseWriter, r *http.Request) {
	runID, plate, ok := s.platePath(w, r)
	if !ok {
		return
	}
	tensor, err := s.repo.GetTensor(r.Context(), runID, plate)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tensor)
}

// platePath decodes the runID and plate path params, writing the error
// response itself on failure
func (s *Server) platePath(w http.ResponseWriter, r *http.Request) (core.RunID, int, bool) {
	runID, err := core.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return "", 0, false
	}
	plate, err := strconv.Atoi(chi.URLParam(r, "plate"))
	if err != nil || plate < 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "plate must be a non-negative integer"})
		return "", 0, false
	}
	return runID, plate, true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if core.IsNotFoundError(err) {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	s.log.Error("request failed: %v", err)
	s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response: %v", err)
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}
